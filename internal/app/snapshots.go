package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"rental_kernel/internal/domain"
)

const (
	keySnapshot = "kernel_cache"
	keyLastSync = "kernel_last_sync"
)

// SnapshotStore keeps the last successfully fetched dataset. The dataset
// and its timestamp are one value, so a save is never partial.
type SnapshotStore struct {
	kv  domain.KeyValueStore
	now func() time.Time
}

func NewSnapshotStore(kv domain.KeyValueStore) *SnapshotStore {
	return &SnapshotStore{kv: kv, now: time.Now}
}

// Save overwrites the stored snapshot unconditionally.
func (s *SnapshotStore) Save(ctx context.Context, ds domain.Dataset) (domain.Snapshot, error) {
	snap := domain.Snapshot{Dataset: ds.Normalize(), SyncedAt: s.now().UTC()}
	if err := s.kv.Set(ctx, keySnapshot, snap); err != nil {
		return domain.Snapshot{}, fmt.Errorf("save snapshot: %w", err)
	}
	if err := s.kv.Set(ctx, keyLastSync, snap.SyncedAt.Format(time.RFC3339Nano)); err != nil {
		log.Warn().Err(err).Msg("last sync marker not written")
	}
	return snap, nil
}

// Load returns the stored snapshot verbatim; ok is false when none exists.
func (s *SnapshotStore) Load(ctx context.Context) (domain.Snapshot, bool, error) {
	var snap domain.Snapshot
	ok, err := s.kv.Get(ctx, keySnapshot, &snap)
	if err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("load snapshot: %w", err)
	}
	if !ok {
		return domain.Snapshot{}, false, nil
	}
	snap.Dataset = snap.Dataset.Normalize()
	return snap, true, nil
}
