package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisInvalidator deletes cached SDK payloads from Redis and announces the
// invalidation on a pub/sub channel so in-process caches can follow.
//
// Keys have the form <prefix>:payload:<organization>:<environment>:<project>;
// the channel is <prefix>:invalidations.
type RedisInvalidator struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// Invalidation is the message published for every Invalidate call.
type Invalidation struct {
	Partitions []Partition `json:"partitions"`
	At         time.Time   `json:"at"`
}

// NewRedisInvalidator creates an invalidator. An empty prefix defaults to "flagkit".
func NewRedisInvalidator(client redis.UniversalClient, prefix string) *RedisInvalidator {
	if prefix == "" {
		prefix = "flagkit"
	}
	return &RedisInvalidator{client: client, prefix: prefix, now: time.Now}
}

// PayloadKey returns the cache key of a partition.
func (r *RedisInvalidator) PayloadKey(p Partition) string {
	return fmt.Sprintf("%s:payload:%s:%s:%s", r.prefix, p.Organization, p.Environment, p.Project)
}

// Channel returns the pub/sub channel invalidations are published on.
func (r *RedisInvalidator) Channel() string {
	return r.prefix + ":invalidations"
}

// Invalidate deletes every partition key and publishes one Invalidation
// message, both inside a single MULTI/EXEC.
func (r *RedisInvalidator) Invalidate(ctx context.Context, partitions []Partition) error {
	if len(partitions) == 0 {
		return nil
	}

	keys := make([]string, 0, len(partitions))
	for _, p := range partitions {
		keys = append(keys, r.PayloadKey(p))
	}
	msg, err := json.Marshal(Invalidation{Partitions: partitions, At: r.now().UTC()})
	if err != nil {
		return fmt.Errorf("encode invalidation: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.Publish(ctx, r.Channel(), msg)
		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidate %d partitions: %w", len(partitions), err)
	}
	return nil
}
