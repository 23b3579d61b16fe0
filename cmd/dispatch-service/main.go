package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pawfect/internal/dispatch/bootstrap"
	"pawfect/internal/shared/config"
	"pawfect/internal/shared/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	log := logger.NewLogger("dispatch-service")
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewApp(ctx, cfg, log)
	if err != nil {
		log.Fatal(logger.Entry{
			Action:  "bootstrap_failed",
			Message: "could not start dispatch service",
			Error:   &logger.ErrObj{Msg: err.Error()},
		})
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		log.Info(logger.Entry{
			Action:  "shutdown_signal",
			Message: "signal received, draining",
		})
	case err := <-errCh:
		if err != nil {
			log.Error(logger.Entry{
				Action:  "service_failed",
				Message: "service exited with error",
				Error:   &logger.ErrObj{Msg: err.Error()},
			})
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	app.Shutdown(shutdownCtx)
	_ = os.Stdout.Sync()
}
