package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/campusevents/internal/aggregate"
	"github.com/alfredjeanlab/campusevents/internal/bus"
	"github.com/alfredjeanlab/campusevents/internal/config"
	"github.com/alfredjeanlab/campusevents/internal/hooks"
	"github.com/alfredjeanlab/campusevents/internal/model"
	"github.com/alfredjeanlab/campusevents/internal/normalize"
	"github.com/alfredjeanlab/campusevents/internal/server"
	eventsync "github.com/alfredjeanlab/campusevents/internal/sync"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Serve the event views over HTTP",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		loc, err := cfg.Location()
		if err != nil {
			return err
		}
		store, err := openStore(false)
		if err != nil {
			return err
		}

		// Rules: loaded once, or watched when a rules file is configured.
		rules := &config.Rules{}
		var loader *config.RulesLoader
		if cfg.RulesPath != "" {
			loader, err = config.NewRulesLoader(cfg.RulesPath, logger)
			if err != nil {
				store.Close()
				return err
			}
			rules = loader.Rules()
		}
		var cat *normalize.Categorizer
		if len(rules.Categories) > 0 {
			cat = normalize.NewCategorizer(rules.Categories, rules.CategoryThreshold)
		}
		agg := aggregate.New(store, loc, cat, rules.ExcludeLocations)

		var stopWatch func()
		if loader != nil {
			loader.OnChange(func(r *config.Rules) {
				agg.SetExclusions(r.ExcludeLocations)
				logger.Info("exclusions reloaded", "count", len(r.ExcludeLocations))
			})
			stopWatch, err = loader.Watch()
			if err != nil {
				logger.Error("failed to watch rules file", "path", cfg.RulesPath, "err", err)
			}
		}

		publisher, err := openPublisher(false)
		if err != nil {
			store.Close()
			return err
		}
		if cfg.NATSURL != "" {
			logger.Info("bus enabled", "nats_url", cfg.NATSURL)
		} else {
			logger.Info("bus disabled (CAMPUSEVENTS_NATS_URL not set)")
		}

		eventsServer := server.NewEventsServer(store, agg, publisher, logger)
		eventsServer.Senders().StartSweeper(nil)

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           eventsServer.NewHTTPHandler(cfg.AuthToken),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		// Start backup scheduler if any destinations are configured.
		var scheduler *eventsync.Scheduler
		if cfg.SyncInterval > 0 {
			dests, err := backupDestinations(context.Background())
			if err != nil {
				logger.Error("failed to create backup destination", "err", err)
			}
			if len(dests) > 0 {
				scheduler = eventsync.NewScheduler(store, dests, cfg.SyncInterval, logger)
				scheduler.Start()
				logger.Info("backup scheduler started", "interval", cfg.SyncInterval, "destinations", len(dests))
			}
		}

		// Relay bus traffic from ingest runs to stream clients and run hooks.
		var busCancel context.CancelFunc
		if cfg.NATSURL != "" {
			sub, err := bus.NewNATSSubscriber(cfg.NATSURL,
				nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
					logger.Warn("nats disconnected", "err", err)
				}),
				nats.ReconnectHandler(func(_ *nats.Conn) {
					logger.Info("nats reconnected")
				}),
			)
			if err != nil {
				logger.Error("failed to create bus subscriber", "err", err)
			} else {
				var busCtx context.Context
				busCtx, busCancel = context.WithCancel(context.Background())
				var wg sync.WaitGroup

				ch, unsubscribe, err := sub.Subscribe(bus.TopicAll)
				if err != nil {
					logger.Error("failed to subscribe relay", "err", err)
				} else {
					wg.Add(1)
					go func() {
						defer wg.Done()
						eventsServer.Relay(busCtx, ch)
						unsubscribe()
					}()
					logger.Info("bus relay started", "topic", bus.TopicAll)
				}

				hookRules := func() []model.HookRule { return rules.Hooks }
				if loader != nil {
					hookRules = func() []model.HookRule { return loader.Rules().Hooks }
				}
				wg.Add(1)
				go func() {
					defer wg.Done()
					if err := hooks.NewHandler(hookRules, logger).StartSubscriber(busCtx, sub); err != nil {
						logger.Error("hooks subscriber error", "err", err)
					}
				}()

				go func() {
					wg.Wait()
					sub.Close()
				}()
			}
		}

		logger.Info("campusevents server started", "http_addr", cfg.HTTPAddr, "timezone", loc.String())

		// Wait for SIGINT or SIGTERM.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		// Graceful shutdown.
		if busCancel != nil {
			busCancel()
			logger.Info("bus relay and hooks stopped")
		}
		if stopWatch != nil {
			stopWatch()
		}
		eventsServer.Senders().Stop()
		if scheduler != nil {
			scheduler.Stop()
			logger.Info("backup scheduler stopped")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := store.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}
