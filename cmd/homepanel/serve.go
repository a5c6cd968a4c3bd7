package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/urmzd/homepanel/pkg/api"
	"github.com/urmzd/homepanel/pkg/events"
	"github.com/urmzd/homepanel/pkg/metrics"
	"github.com/urmzd/homepanel/pkg/scheduler"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// serveCmd runs the HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API, websocket events and scene schedules",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	hub := events.NewHub()
	defer hub.Close()
	detachHub := hub.Attach(a.store)
	defer detachHub()

	m := metrics.New()
	detachMetrics := m.Attach(a.store)
	defer detachMetrics()

	sched := scheduler.New(a.store, time.Minute)
	for _, s := range a.cfg.Schedules {
		if err := sched.Add(scheduler.Job{Scene: s.Scene, Cron: s.Cron}); err != nil {
			return err
		}
	}

	router := api.NewRouter(api.Dependencies{
		Store:    a.store,
		Commands: a.assistant,
		Sink:     a.sink,
		Events:   hub,
		Metrics:  m.Handler(),
	})

	srv := &http.Server{
		Addr:              a.cfg.Server.Address(),
		Handler:           router.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	sched.Start(gctx)
	for _, e := range sched.Entries() {
		log.Info().Str("scene", e.Scene).Str("cron", e.Cron).Time("next", e.Next).Msg("Scene scheduled")
	}

	g.Go(func() error {
		log.Info().Str("address", srv.Addr).Msg("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sched.Stop()

		log.Info().Msg("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
