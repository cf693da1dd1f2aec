package app

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"rental_kernel/internal/domain"
)

// Aggregates are pure and recomputed on every call.

// OccupancyRate is the percentage of Occupied rooms, rounded to one decimal.
func OccupancyRate(rooms []domain.Room) float64 {
	if len(rooms) == 0 {
		return 0
	}
	occupied := 0
	for _, r := range rooms {
		if r.Status == domain.RoomOccupied {
			occupied++
		}
	}
	return math.Round(float64(occupied)*1000/float64(len(rooms))) / 10
}

func OverdueTotal(invoices []domain.Invoice) decimal.Decimal {
	return sumByStatus(invoices, domain.InvoiceOverdue)
}

func PaidRevenue(invoices []domain.Invoice) decimal.Decimal {
	return sumByStatus(invoices, domain.InvoicePaid)
}

// OutstandingBalance is everything not yet paid.
func OutstandingBalance(invoices []domain.Invoice) decimal.Decimal {
	total := decimal.Zero
	for _, inv := range invoices {
		if inv.Status != domain.InvoicePaid {
			total = total.Add(inv.Amount)
		}
	}
	return total
}

func sumByStatus(invoices []domain.Invoice, st domain.InvoiceStatus) decimal.Decimal {
	total := decimal.Zero
	for _, inv := range invoices {
		if inv.Status == st {
			total = total.Add(inv.Amount)
		}
	}
	return total
}

// UpcomingMoveIns keeps Confirmed bookings moving in at or after now, in
// source order. Unparseable move-in dates are left out.
func UpcomingMoveIns(bookings []domain.Booking, now time.Time) []domain.Booking {
	out := []domain.Booking{}
	for _, b := range bookings {
		if b.Status != domain.BookingConfirmed {
			continue
		}
		at, ok := domain.ParseDate(b.MoveInDate)
		if !ok || at.Before(now) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// InvoicesForRole is the only way tenant-scoped invoices leave the kernel.
// Non-administrative callers see their own room's invoices; with no bound
// tenant they see nothing.
func InvoicesForRole(invoices []domain.Invoice, role domain.Role, tenant *domain.Tenant) []domain.Invoice {
	if role.Administrative() {
		return append([]domain.Invoice{}, invoices...)
	}
	out := []domain.Invoice{}
	if tenant == nil || tenant.RoomNumber == "" {
		return out
	}
	for _, inv := range invoices {
		if inv.RoomNumber == tenant.RoomNumber {
			out = append(out, inv)
		}
	}
	return out
}

func PendingBookings(bookings []domain.Booking) []domain.Booking {
	out := []domain.Booking{}
	for _, b := range bookings {
		if b.Status == domain.BookingPending {
			out = append(out, b)
		}
	}
	return out
}

func OverdueInvoices(invoices []domain.Invoice) []domain.Invoice {
	out := []domain.Invoice{}
	for _, inv := range invoices {
		if inv.Status == domain.InvoiceOverdue {
			out = append(out, inv)
		}
	}
	return out
}

func AvailableRooms(rooms []domain.Room) []domain.Room {
	return RoomsByStatus(rooms, string(domain.RoomAvailable))
}

// UtilityLine is one metered charge: two readings and a price per unit.
// Units and Amount are filled in by BuildUtilityBill.
type UtilityLine struct {
	Label     string          `json:"label"`
	Prev      decimal.Decimal `json:"prev"`
	Curr      decimal.Decimal `json:"curr"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Units     decimal.Decimal `json:"units"`
	Amount    decimal.Decimal `json:"amount"`
}

type UtilityBill struct {
	Lines []UtilityLine   `json:"lines"`
	Total decimal.Decimal `json:"total"`
}

// MeterCharge bills the consumed units. A reading that went backwards
// (meter swap, typo) counts as zero units.
func MeterCharge(prev, curr, unitPrice decimal.Decimal) (units, amount decimal.Decimal) {
	units = curr.Sub(prev)
	if units.IsNegative() {
		units = decimal.Zero
	}
	return units, units.Mul(unitPrice).Round(2)
}

// BuildUtilityBill prices every line and sums them. Negative unit prices
// are rejected per line.
func BuildUtilityBill(lines []UtilityLine) (UtilityBill, error) {
	bill := UtilityBill{Lines: make([]UtilityLine, 0, len(lines)), Total: decimal.Zero}
	fields := map[string]string{}
	for i, l := range lines {
		if l.UnitPrice.IsNegative() {
			fields[fmt.Sprintf("lines[%d].unitPrice", i)] = "gte=0"
			continue
		}
		l.Units, l.Amount = MeterCharge(l.Prev, l.Curr, l.UnitPrice)
		bill.Lines = append(bill.Lines, l)
		bill.Total = bill.Total.Add(l.Amount)
	}
	if len(fields) > 0 {
		return UtilityBill{}, &domain.ValidationError{Fields: fields}
	}
	return bill, nil
}

// RoomsByStatus filters case-insensitively; "" or "All" keeps everything.
func RoomsByStatus(rooms []domain.Room, status string) []domain.Room {
	if status == "" || strings.EqualFold(status, "all") {
		return append([]domain.Room{}, rooms...)
	}
	out := []domain.Room{}
	for _, r := range rooms {
		if strings.EqualFold(string(r.Status), status) {
			out = append(out, r)
		}
	}
	return out
}

// TasksByCategory filters case-insensitively; "" or "All" keeps everything.
func TasksByCategory(tasks []domain.Task, category string) []domain.Task {
	if category == "" || strings.EqualFold(category, "all") {
		return append([]domain.Task{}, tasks...)
	}
	out := []domain.Task{}
	for _, t := range tasks {
		if strings.EqualFold(string(t.Category), category) {
			out = append(out, t)
		}
	}
	return out
}

func PendingTasks(tasks []domain.Task) []domain.Task {
	out := []domain.Task{}
	for _, t := range tasks {
		if t.Status == domain.TaskPending {
			out = append(out, t)
		}
	}
	return out
}

type AdminDashboard struct {
	OccupancyRate   float64          `json:"occupancyRate"`
	TotalRooms      int              `json:"totalRooms"`
	AvailableRooms  int              `json:"availableRooms"`
	ActiveTenants   int              `json:"activeTenants"`
	PendingBookings []domain.Booking `json:"pendingBookings"`
	UpcomingMoveIns []domain.Booking `json:"upcomingMoveIns"`
	OverdueInvoices []domain.Invoice `json:"overdueInvoices"`
	OverdueTotal    decimal.Decimal  `json:"overdueTotal"`
	PaidRevenue     decimal.Decimal  `json:"paidRevenue"`
	OpenTasks       int              `json:"openTasks"`
}

type TenantDashboard struct {
	Tenant      domain.Tenant    `json:"tenant"`
	Invoices    []domain.Invoice `json:"invoices"`
	Outstanding decimal.Decimal  `json:"outstanding"`
}

type Dashboard struct {
	Role   domain.Role      `json:"role"`
	Admin  *AdminDashboard  `json:"admin,omitempty"`
	Tenant *TenantDashboard `json:"tenant,omitempty"`
}

// BuildDashboard assembles the view for one principal. The tenant view is
// built only from InvoicesForRole output.
func BuildDashboard(ds domain.Dataset, p domain.Principal, now time.Time) Dashboard {
	if p.Role.Administrative() {
		active := 0
		for _, t := range ds.Tenants {
			if t.Status == domain.TenantActive {
				active++
			}
		}
		open := 0
		for _, t := range ds.Tasks {
			if t.Status != domain.TaskCompleted && t.Status != domain.TaskCancelled {
				open++
			}
		}
		return Dashboard{Role: p.Role, Admin: &AdminDashboard{
			OccupancyRate:   OccupancyRate(ds.Rooms),
			TotalRooms:      len(ds.Rooms),
			AvailableRooms:  len(AvailableRooms(ds.Rooms)),
			ActiveTenants:   active,
			PendingBookings: PendingBookings(ds.Bookings),
			UpcomingMoveIns: UpcomingMoveIns(ds.Bookings, now),
			OverdueInvoices: OverdueInvoices(ds.Invoices),
			OverdueTotal:    OverdueTotal(ds.Invoices),
			PaidRevenue:     PaidRevenue(ds.Invoices),
			OpenTasks:       open,
		}}
	}

	mine := InvoicesForRole(ds.Invoices, p.Role, p.Tenant)
	td := &TenantDashboard{Invoices: mine, Outstanding: OutstandingBalance(mine)}
	if p.Tenant != nil {
		td.Tenant = *p.Tenant
	}
	return Dashboard{Role: p.Role, Tenant: td}
}
