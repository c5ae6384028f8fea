// Package httpserver wraps net/http with context-driven graceful shutdown,
// configurable timeouts and JSON health probes.
//
// Run binds the listener synchronously, so a busy port is reported as
// ErrStart before any request is served. The server stops when the passed
// context is cancelled; signal handling is left to the caller, typically via
// signal.NotifyContext in main.
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//	if err := srv.Run(ctx, router); err != nil {
//		log.Error("server failed", logger.Error(err))
//	}
//
// HealthCheckHandler mounts as a liveness probe with no checks, or as a
// readiness probe with named checks such as a database ping.
package httpserver
