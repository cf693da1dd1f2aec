package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"rental_kernel/internal/app"
	"rental_kernel/internal/domain"
)

type recorder struct {
	mu  sync.Mutex
	evs []app.SyncEvent
}

func (r *recorder) Publish(ev app.SyncEvent) {
	r.mu.Lock()
	r.evs = append(r.evs, ev)
	r.mu.Unlock()
}

func (r *recorder) last() app.SyncEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evs[len(r.evs)-1]
}

func newSync(be *fakeBackend, kv *memKV) (*app.SyncService, *app.SnapshotStore, *app.State, *recorder) {
	snaps := app.NewSnapshotStore(kv)
	st := app.NewState()
	rec := &recorder{}
	return app.NewSyncService(be, snaps, st, rec), snaps, st, rec
}

func TestFetchDataset_RoundTripSavesSnapshot(t *testing.T) {
	be := &fakeBackend{raw: map[string]any{
		"rooms": []any{map[string]any{"id": "R1", "number": "101", "type": "Standard", "status": "Available", "price": json.Number("4500")}},
	}}
	kv := newMemKV()
	svc, snaps, _, _ := newSync(be, kv)

	ds, err := svc.FetchDataset(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(ds.Rooms) != 1 || ds.Rooms[0].ID != "R1" || !ds.Rooms[0].Price.Equal(dec("4500")) {
		t.Fatalf("unexpected rooms: %+v", ds.Rooms)
	}
	if len(ds.Tenants) != 0 || len(ds.Bookings) != 0 || len(ds.Invoices) != 0 || len(ds.Tasks) != 0 {
		t.Fatalf("other collections must be empty: %+v", ds)
	}

	snap, ok, err := snaps.Load(context.Background())
	if err != nil || !ok {
		t.Fatalf("snapshot missing: ok=%v err=%v", ok, err)
	}
	if !reflect.DeepEqual(snap.Dataset, ds) {
		t.Fatalf("snapshot differs:\n got %+v\nwant %+v", snap.Dataset, ds)
	}
	if snap.SyncedAt.IsZero() {
		t.Fatalf("snapshot must be timestamped")
	}
	var marker string
	if ok, _ := kv.Get(context.Background(), "kernel_last_sync", &marker); !ok || marker == "" {
		t.Fatalf("last sync marker missing")
	}
}

func TestRefresh_RemoteSuccess(t *testing.T) {
	be := &fakeBackend{raw: map[string]any{"rooms": []any{map[string]any{"id": "R1", "status": "Occupied"}}}}
	svc, _, st, rec := newSync(be, newMemKV())

	res, err := svc.Refresh(context.Background())
	if err != nil || res.Source != app.SourceRemote || res.Cause != nil {
		t.Fatalf("unexpected result %+v err=%v", res, err)
	}
	v := st.Status()
	if v.Status != app.StatusConnected || v.Source != app.SourceRemote || v.SyncedAt == nil || v.Counts["rooms"] != 1 {
		t.Fatalf("unexpected status: %+v", v)
	}
	if ev := rec.last(); ev.Type != app.EventSynced || ev.Counts["rooms"] != 1 {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestRefresh_FallbackToSnapshot(t *testing.T) {
	kv := newMemKV()
	cached := sampleDataset()
	if _, err := app.NewSnapshotStore(kv).Save(context.Background(), cached); err != nil {
		t.Fatal(err)
	}

	cases := map[string]error{
		"transport": fmt.Errorf("%w: dial tcp: refused", domain.ErrTransport),
		"http 500":  &domain.HTTPError{Status: 500},
		"malformed": fmt.Errorf("%w: top-level value is not an object", domain.ErrMalformedResponse),
		"config":    fmt.Errorf("%w: bad prefix", domain.ErrInvalidConfiguration),
	}
	for name, cause := range cases {
		t.Run(name, func(t *testing.T) {
			svc, _, st, rec := newSync(&fakeBackend{err: cause}, kv)
			res, err := svc.Refresh(context.Background())
			if err != nil {
				t.Fatalf("fallback must not fail: %v", err)
			}
			if res.Source != app.SourceSnapshot || !errors.Is(res.Cause, cause) {
				t.Fatalf("unexpected result: %+v", res)
			}
			if !reflect.DeepEqual(res.Dataset, cached) || !reflect.DeepEqual(st.Dataset(), cached) {
				t.Fatalf("snapshot not restored verbatim")
			}
			v := st.Status()
			if v.Status != app.StatusError || v.Source != app.SourceSnapshot || v.Diagnostic == "" {
				t.Fatalf("unexpected status: %+v", v)
			}
			if ev := rec.last(); ev.Type != app.EventFallback || ev.Diagnostic != v.Diagnostic {
				t.Fatalf("unexpected event: %+v", ev)
			}
		})
	}
}

func TestRefresh_NoSnapshotSurfacesError(t *testing.T) {
	cause := &domain.HTTPError{Status: 404}
	svc, _, st, rec := newSync(&fakeBackend{err: cause}, newMemKV())

	res, err := svc.Refresh(context.Background())
	var he *domain.HTTPError
	if !errors.As(err, &he) || he.Status != 404 {
		t.Fatalf("expected HTTPError 404, got %v", err)
	}
	if res.Source != app.SourceNone || len(res.Dataset.Rooms) != 0 {
		t.Fatalf("no data expected: %+v", res)
	}
	v := st.Status()
	if v.Status != app.StatusError || v.Diagnostic != domain.Diagnose(cause) {
		t.Fatalf("unexpected status: %+v", v)
	}
	if ev := rec.last(); ev.Type != app.EventFailed {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestRefresh_UnreadableSnapshotTreatedAsAbsent(t *testing.T) {
	kv := newMemKV()
	kv.store["kernel_cache"] = []byte("{not json")
	svc, _, _, _ := newSync(&fakeBackend{err: domain.ErrTransport}, kv)

	if _, err := svc.Refresh(context.Background()); !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestFetchDataset_SnapshotWriteFailureDoesNotFailFetch(t *testing.T) {
	kv := newMemKV()
	kv.setErr = errBoom
	be := &fakeBackend{raw: map[string]any{"tasks": []any{map[string]any{"id": "TSK-1"}}}}
	svc, _, _, _ := newSync(be, kv)

	ds, err := svc.FetchDataset(context.Background())
	if err != nil || len(ds.Tasks) != 1 {
		t.Fatalf("fetch should succeed: %v %+v", err, ds)
	}
}

func TestSaveSnapshot_Idempotent(t *testing.T) {
	kv := newMemKV()
	snaps := app.NewSnapshotStore(kv)
	ds := sampleDataset()

	for i := 0; i < 2; i++ {
		if _, err := snaps.Save(context.Background(), ds); err != nil {
			t.Fatal(err)
		}
	}
	got, ok, err := snaps.Load(context.Background())
	if err != nil || !ok || !reflect.DeepEqual(got.Dataset, ds) {
		t.Fatalf("snapshot changed after second save: ok=%v err=%v", ok, err)
	}
}

func TestSnapshotStore_LoadEmpty(t *testing.T) {
	_, ok, err := app.NewSnapshotStore(newMemKV()).Load(context.Background())
	if ok || err != nil {
		t.Fatalf("expected no snapshot, got ok=%v err=%v", ok, err)
	}
}
