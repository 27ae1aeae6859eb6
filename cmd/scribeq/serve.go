package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/spf13/cobra"

	"github.com/scribeq/scribeq/internal/api"
)

const cacheSweepInterval = 10 * time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the transcription daemon with its REST API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	svc, err := buildServices(true)
	if err != nil {
		return err
	}
	defer svc.close()

	// Setup Signal Handling for Graceful Shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	workerDone := svc.manager.Start(ctx)

	// Expired cache entries are also dropped lazily on lookup; the sweep
	// just reclaims disk for sources nobody asks about again.
	go func() {
		ticker := time.NewTicker(cacheSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				svc.cache.SweepExpired()
			}
		}
	}()

	e := echo.New()
	api.RegisterRoutes(e, svc.appCtx)

	server := &http.Server{
		Addr:    ":" + svc.cfg.Port,
		Handler: e,
	}

	errCh := make(chan error, 1)
	go func() {
		svc.log.Info("scribeq listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		svc.log.Info("shutting down")
	case err := <-errCh:
		stop()
		<-workerDone
		return fmt.Errorf("server error: %w", err)
	}

	// The worker persists its shutdown requeue through the store, so it
	// must finish before the deferred close tears the store down.
	<-workerDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
