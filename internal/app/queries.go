package app

import (
	"time"

	"rental_kernel/internal/domain"
)

// QueryService serves read views of the active dataset. Every slice it
// returns is a fresh copy, so callers can't mutate shared state.
type QueryService struct {
	state *State
	now   func() time.Time
}

func NewQueryService(st *State) *QueryService {
	return &QueryService{state: st, now: time.Now}
}

func (s *QueryService) Status() StatusView { return s.state.Status() }

func (s *QueryService) Dashboard(p domain.Principal) Dashboard {
	return BuildDashboard(s.state.Dataset(), p, s.now())
}

// Rooms is public; only administrative callers see who occupies a room.
func (s *QueryService) Rooms(p domain.Principal, status string) []domain.Room {
	rooms := RoomsByStatus(s.state.Dataset().Rooms, status)
	if !p.Role.Administrative() {
		for i := range rooms {
			rooms[i].TenantName = ""
		}
	}
	return rooms
}

func (s *QueryService) Tenants() []domain.Tenant {
	return append([]domain.Tenant{}, s.state.Dataset().Tenants...)
}

func (s *QueryService) Bookings() []domain.Booking {
	return append([]domain.Booking{}, s.state.Dataset().Bookings...)
}

func (s *QueryService) Tasks(category string) []domain.Task {
	return TasksByCategory(s.state.Dataset().Tasks, category)
}

// Invoices is role-scoped: tenants only ever see their own room.
func (s *QueryService) Invoices(p domain.Principal) []domain.Invoice {
	return InvoicesForRole(s.state.Dataset().Invoices, p.Role, p.Tenant)
}
