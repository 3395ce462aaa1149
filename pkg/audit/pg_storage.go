package audit

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/flagkit/pkg/pg"
)

// Migrations holds the goose migrations of the audit_events table.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory of Migrations to pass to goose.
const MigrationsDir = "migrations"

var eventColumns = []string{
	"id", "organization", "actor_id", "action", "resource", "resource_id",
	"result", "error", "metadata", "created_at",
}

// PGStorage stores events in the audit_events table.
type PGStorage struct {
	pool *pgxpool.Pool
}

func NewPGStorage(pool *pgxpool.Pool) *PGStorage {
	return &PGStorage{pool: pool}
}

func (s *PGStorage) Store(ctx context.Context, event Event) error {
	return s.StoreBatch(ctx, []Event{event})
}

// StoreBatch writes all events with a single COPY, which either stores every row or none.
// A batch that repeats an already stored event id is retried row by row, skipping
// the duplicates, so redelivered batches stay idempotent.
func (s *PGStorage) StoreBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(events))
	for _, e := range events {
		var metadata any
		if len(e.Metadata) > 0 {
			metadata = e.Metadata
		}
		rows = append(rows, []any{
			e.ID, e.Organization, e.ActorID, e.Action, e.Resource, e.ResourceID,
			string(e.Result), e.Error, metadata, e.CreatedAt,
		})
	}
	_, err := s.pool.CopyFrom(ctx, pgx.Identifier{"audit_events"}, eventColumns, pgx.CopyFromRows(rows))
	switch {
	case err == nil:
		return nil
	case pg.IsDuplicateKeyError(err):
		return s.insertSkippingDuplicates(ctx, rows)
	default:
		return errors.Join(ErrStorageNotAvailable, err)
	}
}

var insertEventSQL = fmt.Sprintf(
	"INSERT INTO audit_events (%s) VALUES (%s) ON CONFLICT (id) DO NOTHING",
	strings.Join(eventColumns, ", "), placeholders(len(eventColumns)),
)

func (s *PGStorage) insertSkippingDuplicates(ctx context.Context, rows [][]any) error {
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(insertEventSQL, row...)
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Join(ErrStorageNotAvailable, err)
	}
	return nil
}

func placeholders(n int) string {
	p := make([]string, n)
	for i := range p {
		p[i] = fmt.Sprintf("$%d", i+1)
	}
	return strings.Join(p, ", ")
}

func (s *PGStorage) Query(ctx context.Context, criteria Criteria) ([]Event, error) {
	where := make([]string, 0, 7)
	args := make([]any, 0, 9)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if criteria.Organization != "" {
		add("organization = $%d", criteria.Organization)
	}
	if criteria.Action != "" {
		add("action = $%d", criteria.Action)
	}
	if criteria.Resource != "" {
		add("resource = $%d", criteria.Resource)
	}
	if criteria.ResourceID != "" {
		add("resource_id = $%d", criteria.ResourceID)
	}
	if criteria.ActorID != "" {
		add("actor_id = $%d", criteria.ActorID)
	}
	if !criteria.Since.IsZero() {
		add("created_at >= $%d", criteria.Since)
	}
	if !criteria.Until.IsZero() {
		add("created_at < $%d", criteria.Until)
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(strings.Join(eventColumns, ", "))
	sb.WriteString(" FROM audit_events")
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY created_at DESC")
	if criteria.Limit > 0 {
		args = append(args, criteria.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if criteria.Offset > 0 {
		args = append(args, criteria.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, errors.Join(ErrStorageNotAvailable, err)
	}

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Event, error) {
		var (
			e      Event
			result string
		)
		err := row.Scan(&e.ID, &e.Organization, &e.ActorID, &e.Action, &e.Resource, &e.ResourceID,
			&result, &e.Error, &e.Metadata, &e.CreatedAt)
		e.Result = Result(result)
		return e, err
	})
	if err != nil {
		return nil, errors.Join(ErrStorageNotAvailable, err)
	}
	return events, nil
}
