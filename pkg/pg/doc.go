// Package pg connects to PostgreSQL with pgx/v5 and applies goose migrations.
//
// It backs the audit log. Connect retries until the database answers a ping, Migrate runs
// embedded migrations over the same pool and Healthcheck fails unless the pool reaches a
// writable primary:
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, audit.Migrations, audit.MigrationsDir, cfg, log); err != nil {
//		return err
//	}
//
// Configuration is read from PG_* environment variables, see Config.
package pg
