package domain

import (
	"strings"
	"time"
)

// Dataset is the five-collection bundle loaded wholesale from the sheet.
type Dataset struct {
	Rooms    []Room    `json:"rooms"`
	Tenants  []Tenant  `json:"tenants"`
	Bookings []Booking `json:"bookings"`
	Invoices []Invoice `json:"invoices"`
	Tasks    []Task    `json:"tasks"`
}

// Normalize replaces absent collections with empty ones.
func (d Dataset) Normalize() Dataset {
	if d.Rooms == nil {
		d.Rooms = []Room{}
	}
	if d.Tenants == nil {
		d.Tenants = []Tenant{}
	}
	if d.Bookings == nil {
		d.Bookings = []Booking{}
	}
	if d.Invoices == nil {
		d.Invoices = []Invoice{}
	}
	if d.Tasks == nil {
		d.Tasks = []Task{}
	}
	return d
}

// Clone copies the collection backing arrays so callers can't alias state.
func (d Dataset) Clone() Dataset {
	return Dataset{
		Rooms:    append([]Room{}, d.Rooms...),
		Tenants:  append([]Tenant{}, d.Tenants...),
		Bookings: append([]Booking{}, d.Bookings...),
		Invoices: append([]Invoice{}, d.Invoices...),
		Tasks:    append([]Task{}, d.Tasks...),
	}
}

// Snapshot is the last-known-good dataset with the moment it was saved.
type Snapshot struct {
	Dataset  Dataset   `json:"dataset"`
	SyncedAt time.Time `json:"syncedAt"`
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseDate reads the date formats the sheet produces. Date-only values
// are UTC midnight.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
