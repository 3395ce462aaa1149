// Package logger builds log/slog loggers and provides attribute helpers for flagkit's domain.
//
//	log := logger.New(
//		logger.WithEnvironment(cfg.AppEnv, "flagkit-worker"),
//		logger.WithContextExtractors(logger.ActorExtractor),
//	)
//	log.LogAttrs(ctx, slog.LevelWarn, "cache invalidation failed",
//		logger.Organization(org), logger.FeatureID(id), logger.Error(err))
//
// Helpers such as Error return an empty Attr for nil input, which slog drops.
package logger
