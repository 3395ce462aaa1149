package notify

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/flagkit/pkg/feature"
	"github.com/dmitrymomot/flagkit/pkg/organization"
	"github.com/dmitrymomot/flagkit/pkg/webhook"
)

// Syncer mirrors feature changes to an external system.
type Syncer interface {
	Sync(ctx context.Context, s Sync) error
}

// SettingsProvider looks up organization settings.
type SettingsProvider interface {
	Get(ctx context.Context, orgID string) (*organization.Settings, error)
}

// SyncPayload is the JSON body posted by WebhookSyncer.
type SyncPayload struct {
	Event        string           `json:"event"`
	Organization string           `json:"organization"`
	FeatureID    string           `json:"feature_id"`
	Feature      *feature.Feature `json:"feature,omitempty"`
	SentAt       time.Time        `json:"sent_at"`
}

// WebhookSyncer posts syncs to the organization's experiment sync endpoint.
// Organizations without ExperimentSync enabled are skipped.
type WebhookSyncer struct {
	sender   *webhook.Sender
	settings SettingsProvider
	opts     []webhook.SendOption
	now      func() time.Time
}

// NewWebhookSyncer creates a syncer. opts apply to every delivery.
func NewWebhookSyncer(sender *webhook.Sender, settings SettingsProvider, opts ...webhook.SendOption) *WebhookSyncer {
	if sender == nil {
		sender = webhook.NewSender(nil)
	}
	return &WebhookSyncer{sender: sender, settings: settings, opts: opts, now: time.Now}
}

func (w *WebhookSyncer) Sync(ctx context.Context, s Sync) error {
	org, err := w.settings.Get(ctx, s.Organization)
	if err != nil {
		return errors.Join(ErrSyncFailed, err)
	}
	cfg := org.Integrations.ExperimentSync
	if !cfg.Enabled || cfg.URL == "" {
		return nil
	}

	payload := SyncPayload{
		Event:        "feature." + string(s.Action),
		Organization: s.Organization,
		Feature:      s.Feature,
		SentAt:       w.now().UTC(),
	}
	if s.Feature != nil {
		payload.FeatureID = s.Feature.ID
	}

	opts := append(slices.Clone(w.opts),
		webhook.WithDeliveryID(uuid.New().String()),
		webhook.WithHeader(webhook.HeaderEvent, payload.Event),
	)
	if cfg.Secret != "" {
		opts = append(opts, webhook.WithSignature(cfg.Secret))
	}
	if err := w.sender.Send(ctx, cfg.URL, payload, opts...); err != nil {
		return errors.Join(ErrSyncFailed, fmt.Errorf("%s: %w", payload.Event, err))
	}
	return nil
}
