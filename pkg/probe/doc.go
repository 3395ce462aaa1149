// Package probe serves liveness and readiness endpoints for long running flagkit
// processes such as the scheduled-update worker.
//
// The router exposes two routes:
//
//	GET /livez   always 200 while the process serves requests
//	GET /readyz  200 when every named Check passes, 503 otherwise
//
// Readiness responses carry a JSON Report with the outcome of each check:
//
//	srv := probe.New(cfg, map[string]probe.Check{
//		"mongo": mongo.Healthcheck(client),
//		"redis": redis.Healthcheck(rdb),
//	}, probe.WithLogger(log))
//	g.Go(srv.Run(ctx))
package probe
