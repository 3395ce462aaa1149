// Package redis connects flagkit to the Redis instance that fronts SDK payload caches.
//
// Connect parses a redis:// URL and retries the initial ping; Healthcheck wraps a
// ping for readiness probes. Config is populated from REDIS_* environment variables
// with github.com/caarlos0/env:
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
// The client is consumed by notify.RedisInvalidator, which drops cached SDK payloads
// whenever a feature changes.
package redis
