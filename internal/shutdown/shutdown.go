// Package shutdown provides graceful HTTP server shutdown with connection draining.
package shutdown

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// GracefulServe starts the HTTP server and blocks until SIGTERM or SIGINT.
// On signal: stops accepting new connections, drains active connections up to
// drainTimeout, then runs onStop hooks and returns.
func GracefulServe(srv *http.Server, drainTimeout time.Duration, log *logrus.Entry, onStop ...func(context.Context)) error {
	serverErr := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(quit)

	select {
	case err := <-serverErr:
		return err
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("shutdown signal received")
	}

	log.WithField("timeout", drainTimeout.String()).Info("draining connections")
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	err := srv.Shutdown(ctx)
	for _, fn := range onStop {
		fn(ctx)
	}
	if err != nil {
		log.WithError(err).Error("graceful shutdown failed")
		return err
	}
	log.Info("server stopped cleanly")
	return nil
}

// WaitForSignal blocks until SIGTERM or SIGINT, then returns.
func WaitForSignal(log *logrus.Entry) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(quit)
	sig := <-quit
	log.WithField("signal", sig.String()).Info("shutdown signal received")
}
