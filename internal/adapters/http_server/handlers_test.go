package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"rental_kernel/internal/adapters/events"
	httpserver "rental_kernel/internal/adapters/http_server"
	"rental_kernel/internal/app"
	"rental_kernel/internal/domain"
)

const adminToken = "s3cret"

type fakeBackend struct {
	mu      sync.Mutex
	raw     map[string]any
	err     error
	sendErr error
}

func (f *fakeBackend) GetDataset(ctx context.Context) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.raw, f.err
}

func (f *fakeBackend) Send(ctx context.Context, a domain.Action, data any) (domain.MutationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return domain.MutationResult{Action: a}, f.sendErr
}

type memKV struct {
	mu sync.Mutex
	m  map[string][]byte
}

func (k *memKV) Get(ctx context.Context, key string, dst any) (bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	b, ok := k.m[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (k *memKV) Set(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	k.m[key] = b
	return nil
}

func (k *memKV) Del(ctx context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.m, key)
	return nil
}

type fakeTarget struct{ endpoint string }

func (f *fakeTarget) Endpoint() string     { return f.endpoint }
func (f *fakeTarget) SetEndpoint(u string) { f.endpoint = u }
func (f *fakeTarget) Prefix() string       { return "https://script.google.com" }

func sheet() map[string]any {
	row := func(kv ...any) map[string]any {
		m := map[string]any{}
		for i := 0; i < len(kv); i += 2 {
			m[kv[i].(string)] = kv[i+1]
		}
		return m
	}
	return map[string]any{
		"rooms": []any{
			row("id", "R1", "number", "101", "status", "Occupied", "price", 4500.0, "tenantName", "Somchai"),
			row("id", "R2", "number", "102", "status", "Available", "price", 6500.0),
		},
		"tenants": []any{
			row("id", "T1", "name", "Somchai", "roomNumber", "101", "status", "Active"),
		},
		"bookings": []any{
			row("id", "BK-AAAAA", "roomNumber", "102", "tenantName", "Mali", "phone", "0812345678", "moveInDate", "2030-01-01", "status", "Pending"),
			row("id", "BK-BBBBB", "roomNumber", "102", "tenantName", "Nok", "phone", "0812345678", "moveInDate", "2030-02-01", "status", "Confirmed"),
		},
		"invoices": []any{
			row("id", "INV-1", "roomNumber", "101", "month", "January", "amount", 4500.0, "status", "Overdue"),
			row("id", "INV-2", "roomNumber", "102", "month", "January", "amount", 6500.0, "status", "Unpaid"),
		},
		"tasks": []any{
			row("id", "TSK-1", "title", "Fix tap", "category", "Maintenance", "status", "Pending"),
		},
	}
}

type fixture struct {
	ts      *httptest.Server
	backend *fakeBackend
	hub     *events.Hub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	be := &fakeBackend{raw: sheet()}
	st := app.NewState()
	hub := events.NewHub()
	go hub.Run()
	t.Cleanup(hub.Close)

	syncSvc := app.NewSyncService(be, app.NewSnapshotStore(&memKV{m: map[string][]byte{}}), st, events.NewBroadcaster(hub))
	if _, err := syncSvc.Refresh(context.Background()); err != nil {
		t.Fatalf("initial refresh: %v", err)
	}

	srv := httpserver.New(5*time.Second, httpserver.Auth{AdminToken: adminToken, Tenants: st})
	srv.MountHandlers(&httpserver.Handlers{
		Q:        app.NewQueryService(st),
		M:        app.NewMutationService(be, st, app.NewValidator("TH")),
		Sync:     syncSvc,
		Triage:   app.NewTriageService(nil, st),
		Settings: app.NewSettingsService(&memKV{m: map[string][]byte{}}, &fakeTarget{}),
		Hub:      hub,
	})
	ts := httptest.NewServer(srv.Mux())
	t.Cleanup(ts.Close)
	return &fixture{ts: ts, backend: be, hub: hub}
}

type caller struct {
	admin bool
	room  string
}

func (f *fixture) do(t *testing.T, c caller, method, path string, body any, hdr ...string) *http.Response {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, f.ts.URL+path, rd)
	req.Header.Set("Content-Type", "application/json")
	if c.admin {
		req.Header.Set("Authorization", "Bearer "+adminToken)
	}
	if c.room != "" {
		req.Header.Set("X-Tenant-Room", c.room)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

var (
	anon   = caller{}
	admin  = caller{admin: true}
	tenant = caller{room: "101"}
)

func TestRooms_PublicWithETag(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, anon, "GET", "/v1/rooms?status=Available", nil)
	if resp.StatusCode != 200 {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var rooms []domain.Room
	_ = json.NewDecoder(resp.Body).Decode(&rooms)
	if len(rooms) != 1 || rooms[0].Number != "102" {
		t.Fatalf("unexpected rooms: %+v", rooms)
	}
	etag := resp.Header.Get("ETag")
	if !strings.HasPrefix(etag, `W/"`) {
		t.Fatalf("missing weak etag: %q", etag)
	}

	again := f.do(t, anon, "GET", "/v1/rooms?status=Available", nil, "If-None-Match", etag)
	if again.StatusCode != http.StatusNotModified {
		t.Fatalf("expected 304, got %d", again.StatusCode)
	}
}

func TestRooms_OccupantOnlyForAdmin(t *testing.T) {
	f := newFixture(t)

	for name, c := range map[string]caller{"anonymous": anon, "tenant": tenant} {
		var rooms []domain.Room
		_ = json.NewDecoder(f.do(t, c, "GET", "/v1/rooms", nil).Body).Decode(&rooms)
		if len(rooms) != 2 {
			t.Fatalf("%s: unexpected rooms %+v", name, rooms)
		}
		for _, r := range rooms {
			if r.TenantName != "" {
				t.Fatalf("%s saw occupant %q", name, r.TenantName)
			}
		}
	}

	var rooms []domain.Room
	_ = json.NewDecoder(f.do(t, admin, "GET", "/v1/rooms?status=Occupied", nil).Body).Decode(&rooms)
	if len(rooms) != 1 || rooms[0].TenantName != "Somchai" {
		t.Fatalf("admin rooms: %+v", rooms)
	}
}

func TestAuth(t *testing.T) {
	f := newFixture(t)
	cases := []struct {
		name   string
		c      caller
		hdr    []string
		path   string
		status int
	}{
		{"anonymous dashboard", anon, nil, "/v1/dashboard", 401},
		{"wrong token", anon, []string{"Authorization", "Bearer nope"}, "/v1/rooms", 401},
		{"unknown room", caller{room: "999"}, nil, "/v1/dashboard", 401},
		{"tenant on admin route", tenant, nil, "/v1/tenants", 403},
		{"tenant dashboard", tenant, nil, "/v1/dashboard", 200},
		{"admin tenants", admin, nil, "/v1/tenants", 200},
		{"status is public", anon, nil, "/v1/status", 200},
		{"anonymous events", anon, nil, "/v1/events", 401},
		{"tenant events", tenant, nil, "/v1/events", 403},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := f.do(t, tc.c, "GET", tc.path, nil, tc.hdr...)
			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, resp.StatusCode)
			}
			if tc.status >= 400 && resp.Header.Get("Content-Type") != "application/problem+json" {
				t.Fatalf("expected problem+json, got %q", resp.Header.Get("Content-Type"))
			}
		})
	}
}

func TestInvoices_RoleScoped(t *testing.T) {
	f := newFixture(t)

	var mine []domain.Invoice
	_ = json.NewDecoder(f.do(t, tenant, "GET", "/v1/invoices", nil).Body).Decode(&mine)
	if len(mine) != 1 || mine[0].RoomNumber != "101" {
		t.Fatalf("tenant saw %+v", mine)
	}

	var all []domain.Invoice
	_ = json.NewDecoder(f.do(t, admin, "GET", "/v1/invoices", nil).Body).Decode(&all)
	if len(all) != 2 {
		t.Fatalf("admin saw %d invoices", len(all))
	}
}

func TestBookingStatus_ErrorMapping(t *testing.T) {
	f := newFixture(t)

	if s := f.do(t, admin, "PUT", "/v1/bookings/BK-BBBBB/status", map[string]string{"status": "Cancelled"}).StatusCode; s != http.StatusConflict {
		t.Fatalf("final booking: expected 409, got %d", s)
	}
	if s := f.do(t, admin, "PUT", "/v1/bookings/BK-ZZZZZ/status", map[string]string{"status": "Confirmed"}).StatusCode; s != http.StatusNotFound {
		t.Fatalf("unknown booking: expected 404, got %d", s)
	}

	resp := f.do(t, admin, "PUT", "/v1/bookings/BK-AAAAA/status", map[string]string{"status": "Pending"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	var p struct {
		Errors map[string]string `json:"errors"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&p)
	if p.Errors["status"] == "" {
		t.Fatalf("expected field error for status: %+v", p)
	}

	ok := f.do(t, admin, "PUT", "/v1/bookings/BK-AAAAA/status", map[string]string{"status": "confirmed"})
	if ok.StatusCode != http.StatusAccepted {
		t.Fatalf("fire-and-forget update: expected 202, got %d", ok.StatusCode)
	}
}

func TestSubmitBooking(t *testing.T) {
	f := newFixture(t)
	body := app.BookingRequest{RoomNumber: "102", TenantName: "Mali", Phone: "0812345678", MoveInDate: "2030-03-01"}

	resp := f.do(t, anon, "POST", "/v1/bookings", body)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	var out struct {
		Booking domain.Booking `json:"booking"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	if out.Booking.Status != domain.BookingPending || !strings.HasPrefix(out.Booking.ID, "BK-") {
		t.Fatalf("unexpected booking: %+v", out.Booking)
	}

	f.backend.mu.Lock()
	f.backend.sendErr = errors.Join(domain.ErrTransport, errors.New("dial tcp: refused"))
	f.backend.mu.Unlock()
	if s := f.do(t, anon, "POST", "/v1/bookings", body).StatusCode; s != http.StatusBadGateway {
		t.Fatalf("transport failure: expected 502, got %d", s)
	}
}

func TestSuggestTask_NoAssistant(t *testing.T) {
	f := newFixture(t)
	if s := f.do(t, admin, "POST", "/v1/tasks/suggest", map[string]string{"description": "leak"}).StatusCode; s != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", s)
	}
}

func TestDraftLease_Routes(t *testing.T) {
	f := newFixture(t)
	if s := f.do(t, tenant, "POST", "/v1/tenants/T1/lease", nil).StatusCode; s != http.StatusForbidden {
		t.Fatalf("tenant: expected 403, got %d", s)
	}
	if s := f.do(t, admin, "POST", "/v1/tenants/T404/lease", nil).StatusCode; s != http.StatusNotFound {
		t.Fatalf("unknown tenant: expected 404, got %d", s)
	}
	if s := f.do(t, admin, "POST", "/v1/tenants/T1/lease", nil).StatusCode; s != http.StatusBadGateway {
		t.Fatalf("no assistant: expected 502, got %d", s)
	}
}

func TestUtilityBill(t *testing.T) {
	f := newFixture(t)
	body := map[string]any{"lines": []map[string]any{
		{"label": "Electricity", "prev": 1200, "curr": 1345, "unitPrice": 8},
		{"label": "Water", "prev": "300", "curr": "290", "unitPrice": "18"},
	}}

	resp := f.do(t, admin, "POST", "/v1/utilities/bill", body)
	if resp.StatusCode != 200 {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var bill app.UtilityBill
	_ = json.NewDecoder(resp.Body).Decode(&bill)
	if bill.Total.String() != "1160" || len(bill.Lines) != 2 || !bill.Lines[1].Units.IsZero() {
		t.Fatalf("unexpected bill: %+v", bill)
	}

	bad := map[string]any{"lines": []map[string]any{{"label": "x", "curr": 1, "unitPrice": -1}}}
	if s := f.do(t, admin, "POST", "/v1/utilities/bill", bad).StatusCode; s != http.StatusBadRequest {
		t.Fatalf("negative price: expected 400, got %d", s)
	}
	if s := f.do(t, anon, "POST", "/v1/utilities/bill", body).StatusCode; s != http.StatusUnauthorized {
		t.Fatalf("anonymous: expected 401, got %d", s)
	}
}

func TestSync_NoDataAvailable(t *testing.T) {
	be := &fakeBackend{err: &domain.HTTPError{Status: 404}}
	st := app.NewState()
	syncSvc := app.NewSyncService(be, app.NewSnapshotStore(&memKV{m: map[string][]byte{}}), st, nil)
	srv := httpserver.New(5*time.Second, httpserver.Auth{AdminToken: adminToken, Tenants: st})
	srv.MountHandlers(&httpserver.Handlers{Q: app.NewQueryService(st), Sync: syncSvc})
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	req, _ := http.NewRequest("POST", ts.URL+"/v1/sync", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
	var p struct {
		Detail string `json:"detail"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&p)
	if !strings.HasPrefix(p.Detail, "HTTP_ERROR_404") {
		t.Fatalf("expected diagnostic, got %q", p.Detail)
	}
}

func TestEvents_StreamSyncOutcome(t *testing.T) {
	f := newFixture(t)

	url := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/v1/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Authorization": {"Bearer " + adminToken}})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for f.hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if s := f.do(t, admin, "POST", "/v1/sync", nil).StatusCode; s != 200 {
		t.Fatalf("sync: %d", s)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg struct {
		Type    string `json:"type"`
		Payload struct {
			Source string         `json:"source"`
			Counts map[string]int `json:"counts"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != app.EventSynced || msg.Payload.Source != "remote" || msg.Payload.Counts["rooms"] != 2 {
		t.Fatalf("unexpected event: %s", data)
	}
}
