package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"rental_kernel/internal/domain"
)

// ---- fakes ----

type sent struct {
	action domain.Action
	data   any
}

type fakeBackend struct {
	mu      sync.Mutex
	raw     map[string]any
	err     error
	sendErr error
	ack     bool
	sent    []sent
}

func (f *fakeBackend) GetDataset(ctx context.Context) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.raw, nil
}

func (f *fakeBackend) Send(ctx context.Context, a domain.Action, data any) (domain.MutationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{a, data})
	if f.sendErr != nil {
		return domain.MutationResult{Action: a}, f.sendErr
	}
	return domain.MutationResult{Action: a, Confirmed: f.ack}, nil
}

func (f *fakeBackend) calls() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.sent...)
}

// memKV stores JSON like the real backends do, so round-trips are honest.
type memKV struct {
	mu     sync.Mutex
	store  map[string][]byte
	getErr error
	setErr error
}

func newMemKV() *memKV { return &memKV{store: map[string][]byte{}} }

func (m *memKV) Get(ctx context.Context, key string, dst any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return false, m.getErr
	}
	b, ok := m.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (m *memKV) Set(ctx context.Context, key string, v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.store[key] = b
	return nil
}

func (m *memKV) Del(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.store, key)
	return nil
}

type fakeAssistant struct {
	text string
	err  error
	got  string
	img  *domain.Image
	inv  domain.Invoice
	ten  domain.Tenant
}

func (f *fakeAssistant) SuggestTask(ctx context.Context, d string) (string, error) {
	f.got = d
	return f.text, f.err
}

func (f *fakeAssistant) AnalyzeMaintenance(ctx context.Context, d string, img *domain.Image) (string, error) {
	f.got, f.img = d, img
	return f.text, f.err
}

func (f *fakeAssistant) DraftPaymentReminder(ctx context.Context, inv domain.Invoice) (string, error) {
	f.inv = inv
	return f.text, f.err
}

func (f *fakeAssistant) DraftLeaseAgreement(ctx context.Context, t domain.Tenant) (string, error) {
	f.ten = t
	return f.text, f.err
}

var errBoom = errors.New("boom")

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleDataset() domain.Dataset {
	return domain.Dataset{
		Rooms: []domain.Room{
			{ID: "R1", Number: "101", Type: domain.RoomStandard, Status: domain.RoomOccupied, Price: dec("4500"), TenantName: "Somchai"},
			{ID: "R2", Number: "102", Type: domain.RoomDeluxe, Status: domain.RoomAvailable, Price: dec("6500")},
			{ID: "R3", Number: "201", Type: domain.RoomSuite, Status: domain.RoomMaintenance, Price: dec("9000")},
		},
		Tenants: []domain.Tenant{
			{ID: "T1", Name: "Somchai", RoomNumber: "101", Phone: "0812345678", Status: domain.TenantActive},
			{ID: "T2", Name: "Anna", RoomNumber: "102", Status: domain.TenantFormer},
		},
		Bookings: []domain.Booking{
			{ID: "BK-AAAAA", RoomNumber: "102", TenantName: "Mali", Phone: "0812345679", MoveInDate: "2030-01-01", Status: domain.BookingPending},
			{ID: "BK-BBBBB", RoomNumber: "102", TenantName: "Niran", Phone: "0812345670", MoveInDate: "2030-02-01", Status: domain.BookingConfirmed},
		},
		Invoices: []domain.Invoice{
			{ID: "INV-1", RoomNumber: "101", Month: "January", Amount: dec("4500"), Status: domain.InvoicePaid},
			{ID: "INV-2", RoomNumber: "101", Month: "February", Amount: dec("4500"), Status: domain.InvoiceOverdue},
			{ID: "INV-3", RoomNumber: "102", Month: "February", Amount: dec("6500"), Status: domain.InvoiceUnpaid},
		},
		Tasks: []domain.Task{
			{ID: "TSK-1", Title: "Fix sink", Status: domain.TaskPending, Category: domain.CategoryMaintenance, Priority: domain.PriorityHigh},
			{ID: "TSK-2", Title: "Renew lease", Status: domain.TaskCompleted, Category: domain.CategoryLegal},
		},
	}
}
