package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"rental_kernel/internal/adapters/observability"
	"rental_kernel/internal/domain"
)

// SyncEvent is broadcast to live listeners after every refresh.
type SyncEvent struct {
	Type       string         `json:"type"`
	Source     Source         `json:"source"`
	SyncedAt   *time.Time     `json:"syncedAt,omitempty"`
	Diagnostic string         `json:"diagnostic,omitempty"`
	Counts     map[string]int `json:"counts,omitempty"`
}

const (
	EventSynced   = "sync.completed"
	EventFallback = "sync.fallback"
	EventFailed   = "sync.failed"
)

type Publisher interface {
	Publish(ev SyncEvent)
}

// SyncResult describes where the active dataset came from.
type SyncResult struct {
	Dataset  domain.Dataset
	Source   Source
	SyncedAt time.Time
	// Cause is the fetch failure that forced a snapshot fallback.
	Cause error
}

type SyncService struct {
	backend domain.SheetBackend
	snaps   *SnapshotStore
	state   *State
	pub     Publisher
}

func NewSyncService(backend domain.SheetBackend, snaps *SnapshotStore, state *State, pub Publisher) *SyncService {
	return &SyncService{backend: backend, snaps: snaps, state: state, pub: pub}
}

// FetchDataset loads the whole dataset from the backend and saves it as
// the fallback snapshot. A snapshot write failure does not fail the fetch.
func (s *SyncService) FetchDataset(ctx context.Context) (domain.Dataset, error) {
	ds, _, err := s.fetch(ctx)
	return ds, err
}

func (s *SyncService) fetch(ctx context.Context) (domain.Dataset, time.Time, error) {
	raw, err := s.backend.GetDataset(ctx)
	if err != nil {
		return domain.Dataset{}, time.Time{}, err
	}
	ds := MapDataset(raw)
	snap, err := s.snaps.Save(ctx, ds)
	if err != nil {
		log.Error().Err(err).Msg("snapshot not saved; fallback will serve older data")
		return ds, time.Now().UTC(), nil
	}
	return ds, snap.SyncedAt, nil
}

// Refresh fetches and installs the dataset, falling back to the snapshot
// on any failure. An error is returned only when neither is available.
func (s *SyncService) Refresh(ctx context.Context) (SyncResult, error) {
	s.state.MarkConnecting()

	ds, at, err := s.fetch(ctx)
	if err == nil {
		s.state.Replace(ds, SourceRemote, at)
		observability.ObserveSync(string(SourceRemote), at)
		log.Info().Interface("counts", counts(ds)).Msg("dataset synced")
		s.publish(EventSynced, SourceRemote, at, "", ds)
		return SyncResult{Dataset: ds, Source: SourceRemote, SyncedAt: at}, nil
	}

	diag := domain.Diagnose(err)
	log.Warn().Err(err).Str("diagnostic", diag).Msg("fetch failed")

	snap, ok, lerr := s.snaps.Load(ctx)
	if lerr != nil {
		log.Error().Err(lerr).Msg("snapshot unreadable; treating as absent")
		ok = false
	}
	if ok {
		s.state.Restore(snap, err)
		observability.ObserveSync(string(SourceSnapshot), snap.SyncedAt)
		log.Warn().Time("synced_at", snap.SyncedAt).Msg("serving snapshot")
		s.publish(EventFallback, SourceSnapshot, snap.SyncedAt, diag, snap.Dataset)
		return SyncResult{Dataset: snap.Dataset, Source: SourceSnapshot, SyncedAt: snap.SyncedAt, Cause: err}, nil
	}

	s.state.Fail(err)
	observability.ObserveSync("unavailable", time.Time{})
	s.publish(EventFailed, SourceNone, time.Time{}, diag, domain.Dataset{})
	return SyncResult{Source: SourceNone, Cause: err}, err
}

func (s *SyncService) publish(typ string, src Source, at time.Time, diag string, ds domain.Dataset) {
	if s.pub == nil {
		return
	}
	ev := SyncEvent{Type: typ, Source: src, Diagnostic: diag}
	if !at.IsZero() {
		ev.SyncedAt = &at
	}
	if typ != EventFailed {
		ev.Counts = counts(ds)
	}
	s.pub.Publish(ev)
}
