// Package httpserver wraps net/http with configurable timeouts, graceful
// shutdown and health-check handlers.
//
// Run binds the listener, calls start hooks and serves until the context is
// cancelled or Shutdown is called. Pair it with signal.NotifyContext:
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	if err := srv.Run(ctx, router); err != nil {
//		log.Error("server stopped", logger.Error(err))
//	}
//
// LivenessHandler and ReadinessHandler back /health/live and /health/ready.
// Run wraps listen errors with ErrStart and Shutdown wraps drain errors with
// ErrShutdown.
package httpserver
