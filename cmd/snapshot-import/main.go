package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"rental_kernel/internal/adapters/observability"
	"rental_kernel/internal/adapters/workbook"
	"rental_kernel/internal/app"
	"rental_kernel/internal/shared"
	"rental_kernel/internal/storage"
)

// snapshot-import seeds the offline snapshot from an .xlsx export of the
// sheet so a fresh install can serve data before the backend is reachable.
func main() {
	path := flag.String("file", "", "Required: path to the .xlsx export")
	dryRun := flag.Bool("dry-run", false, "Show counts only (no writes)")
	flag.Parse()

	if strings.TrimSpace(*path) == "" {
		fmt.Fprintln(os.Stderr, "--file is required")
		os.Exit(1)
	}

	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv, "snapshot-import")
	ctx := context.Background()

	raw, err := workbook.ReadFile(*path)
	if err != nil {
		log.Fatal().Err(err).Str("file", *path).Msg("read workbook failed")
	}
	ds := app.MapDataset(raw)
	counts := map[string]int{
		"rooms":    len(ds.Rooms),
		"tenants":  len(ds.Tenants),
		"bookings": len(ds.Bookings),
		"invoices": len(ds.Invoices),
		"tasks":    len(ds.Tasks),
	}
	if *dryRun {
		log.Info().Interface("counts", counts).Msg("dry run, nothing saved")
		return
	}

	kv, err := storage.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("kv open failed")
	}
	defer kv.Close()

	snap, err := app.NewSnapshotStore(kv).Save(ctx, ds)
	if err != nil {
		log.Fatal().Err(err).Msg("save snapshot failed")
	}
	log.Info().
		Interface("counts", counts).
		Time("synced_at", snap.SyncedAt).
		Str("backend", cfg.KVBackend).
		Msg("snapshot imported")
}
