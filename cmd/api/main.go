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

	"rental_kernel/internal/adapters/events"
	"rental_kernel/internal/adapters/genai"
	server "rental_kernel/internal/adapters/http_server"
	"rental_kernel/internal/adapters/observability"
	"rental_kernel/internal/adapters/sheets"
	"rental_kernel/internal/app"
	"rental_kernel/internal/domain"
	"rental_kernel/internal/shared"
	"rental_kernel/internal/storage"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, "api")

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// local state
	kv, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.KVBackend).Msg("kv open failed")
	}
	defer kv.Close()

	// remote sheet
	client := sheets.New(cfg.ScriptURL,
		sheets.WithPrefix(cfg.ScriptPrefix),
		sheets.WithTimeout(cfg.SheetsTimeout),
		sheets.WithRPS(cfg.SheetsRPS),
		sheets.WithMode(sheets.Mode(cfg.MutationMode)),
	)
	settings := app.NewSettingsService(kv, client)
	if err := settings.Apply(ctx); err != nil {
		log.Warn().Err(err).Msg("saved endpoint not applied")
	}

	hub := events.NewHub()
	go hub.Run()
	defer hub.Close()

	st := app.NewState()
	syncSvc := app.NewSyncService(client, app.NewSnapshotStore(kv), st, events.NewBroadcaster(hub))
	if res, err := syncSvc.Refresh(ctx); err != nil {
		log.Warn().Str("diagnostic", domain.Diagnose(err)).Msg("starting without data; retry with POST /v1/sync")
	} else {
		log.Info().Str("source", string(res.Source)).Msg("dataset loaded")
	}

	sched := app.NewScheduler(syncSvc, cfg.SyncSchedule)
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.SyncSchedule).Msg("invalid SYNC_SCHEDULE")
	}
	defer sched.Stop()

	// the assistant is optional; an untyped nil keeps triage in manual mode
	var ai domain.Assistant
	if cfg.GeminiKey != "" {
		gc, err := genai.New(cfg.GeminiBase, cfg.GeminiModel, cfg.GeminiKey, 2)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize assistant client")
		}
		ai = gc
	}

	// http
	srv := server.New(90*time.Second, server.Auth{AdminToken: cfg.AdminToken, Tenants: st})
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{
		Q:        app.NewQueryService(st),
		M:        app.NewMutationService(client, st, app.NewValidator(cfg.PhoneRegion)),
		Sync:     syncSvc,
		Triage:   app.NewTriageService(ai, st),
		Settings: settings,
		Hub:      hub,
	})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
}
