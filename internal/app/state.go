package app

import (
	"sync"
	"time"

	"rental_kernel/internal/domain"
)

type Source string

const (
	SourceNone     Source = "none"
	SourceRemote   Source = "remote"
	SourceSnapshot Source = "snapshot"
)

type KernelStatus string

const (
	StatusConnecting KernelStatus = "CONNECTING"
	StatusConnected  KernelStatus = "CONNECTED"
	StatusError      KernelStatus = "ERROR"
)

// StatusView is what operators see about the last refresh.
type StatusView struct {
	Status     KernelStatus   `json:"status"`
	Source     Source         `json:"source"`
	SyncedAt   *time.Time     `json:"syncedAt,omitempty"`
	Diagnostic string         `json:"diagnostic,omitempty"`
	Counts     map[string]int `json:"counts"`
}

// State owns the active dataset. Collections are replaced, never mutated
// in place, so a Dataset handed to a reader stays consistent.
type State struct {
	mu         sync.RWMutex
	ds         domain.Dataset
	source     Source
	status     KernelStatus
	syncedAt   time.Time
	diagnostic string
}

func NewState() *State {
	return &State{
		ds:     domain.Dataset{}.Normalize(),
		source: SourceNone,
		status: StatusConnecting,
	}
}

func (s *State) Dataset() domain.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ds
}

func (s *State) Source() Source {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.source
}

func (s *State) Status() StatusView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := StatusView{
		Status:     s.status,
		Source:     s.source,
		Diagnostic: s.diagnostic,
		Counts:     counts(s.ds),
	}
	if !s.syncedAt.IsZero() {
		at := s.syncedAt
		v.SyncedAt = &at
	}
	return v
}

func (s *State) MarkConnecting() {
	s.mu.Lock()
	s.status = StatusConnecting
	s.mu.Unlock()
}

// Replace swaps all five collections at once.
func (s *State) Replace(ds domain.Dataset, src Source, syncedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ds = ds.Normalize()
	s.source = src
	s.syncedAt = syncedAt
	if src == SourceRemote {
		s.status = StatusConnected
		s.diagnostic = ""
	}
}

// Restore installs a snapshot after a failed fetch; the status stays ERROR.
func (s *State) Restore(snap domain.Snapshot, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ds = snap.Dataset.Normalize()
	s.source = SourceSnapshot
	s.syncedAt = snap.SyncedAt
	s.status = StatusError
	s.diagnostic = domain.Diagnose(cause)
}

// Fail records a failed refresh and keeps whatever data is loaded.
func (s *State) Fail(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusError
	s.diagnostic = domain.Diagnose(cause)
}

func (s *State) FindBooking(id string) (domain.Booking, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.ds.Bookings {
		if b.ID == id {
			return b, true
		}
	}
	return domain.Booking{}, false
}

func (s *State) FindTenant(id string) (domain.Tenant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.ds.Tenants {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Tenant{}, false
}

// ActiveTenantInRoom resolves the tenant who currently holds a room.
func (s *State) ActiveTenantInRoom(room string) (domain.Tenant, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.ds.Tenants {
		if t.RoomNumber == room && t.Status == domain.TenantActive {
			return t, true
		}
	}
	return domain.Tenant{}, false
}

func (s *State) FindInvoice(id string) (domain.Invoice, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, inv := range s.ds.Invoices {
		if inv.ID == id {
			return inv, true
		}
	}
	return domain.Invoice{}, false
}

func (s *State) HasRoom(number string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.ds.Rooms {
		if r.Number == number {
			return true
		}
	}
	return false
}

func (s *State) RoomCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ds.Rooms)
}

// SetBookingStatus changes only the booking; rooms and tenants are left
// for the next refresh to reconcile.
func (s *State) SetBookingStatus(id string, st domain.BookingStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, b := range s.ds.Bookings {
		if b.ID == id {
			next := append([]domain.Booking(nil), s.ds.Bookings...)
			next[i].Status = st
			s.ds.Bookings = next
			return true
		}
	}
	return false
}

func (s *State) PutTenant(t domain.Tenant) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, cur := range s.ds.Tenants {
		if cur.ID == t.ID {
			next := append([]domain.Tenant(nil), s.ds.Tenants...)
			next[i] = t
			s.ds.Tenants = next
			return true
		}
	}
	return false
}

func counts(ds domain.Dataset) map[string]int {
	return map[string]int{
		"rooms":    len(ds.Rooms),
		"tenants":  len(ds.Tenants),
		"bookings": len(ds.Bookings),
		"invoices": len(ds.Invoices),
		"tasks":    len(ds.Tasks),
	}
}
