package main

import (
	"context"
	"flag"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"rental_kernel/internal/adapters/genai"
	"rental_kernel/internal/adapters/observability"
	"rental_kernel/internal/adapters/sheets"
	"rental_kernel/internal/app"
	"rental_kernel/internal/shared"
	"rental_kernel/internal/storage"
)

// triage asks the assistant for an assignee and priority for every pending
// task and logs the suggestions. Nothing is written back to the sheet.
func main() {
	category := flag.String("category", "", "only tasks in this category (default: all)")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall deadline")
	flag.Parse()

	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, "triage")

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if cfg.GeminiKey == "" {
		log.Fatal().Msg("GEMINI_API_KEY is required for triage")
	}
	ai, err := genai.New(cfg.GeminiBase, cfg.GeminiModel, cfg.GeminiKey, 2)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize assistant client")
	}

	kv, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("kv open failed")
	}
	defer kv.Close()

	client := sheets.New(cfg.ScriptURL, sheets.WithPrefix(cfg.ScriptPrefix), sheets.WithTimeout(cfg.SheetsTimeout))
	if err := app.NewSettingsService(kv, client).Apply(ctx); err != nil {
		log.Warn().Err(err).Msg("saved endpoint not applied")
	}

	st := app.NewState()
	res, err := app.NewSyncService(client, app.NewSnapshotStore(kv), st, nil).Refresh(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("no dataset available")
	}

	tasks := app.PendingTasks(app.TasksByCategory(res.Dataset.Tasks, *category))
	log.Info().
		Str("source", string(res.Source)).
		Int("tasks", len(tasks)).
		Int("workers", cfg.TriageWorkers).
		Msg("triage starting")

	triage := app.NewTriageService(ai, st)
	sem := semaphore.NewWeighted(int64(max(cfg.TriageWorkers, 1)))
	var wg sync.WaitGroup

	for _, task := range tasks {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Error().Err(err).Msg("semaphore acquire failed")
			break
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			text := task.Title
			if task.Description != "" {
				text += ": " + task.Description
			}
			s, err := triage.SuggestTask(ctx, text)
			if err != nil {
				log.Warn().Str("task", task.ID).Err(err).Msg("triage failed")
				return
			}
			log.Info().
				Str("task", task.ID).
				Str("assignee", s.Assignee).
				Str("priority", string(s.Priority)).
				Str("current_priority", string(task.Priority)).
				Str("reasoning", s.Reasoning).
				Msg("suggestion")
		}()
	}

	wg.Wait()
	log.Info().Msg("triage completed")
}
