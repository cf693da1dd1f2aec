package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

func init() {
	// money goes over the wire as plain JSON numbers, like the sheet sends it
	decimal.MarshalJSONWithoutQuotes = true
}

type RoomType string

const (
	RoomStandard RoomType = "Standard"
	RoomDeluxe   RoomType = "Deluxe"
	RoomSuite    RoomType = "Suite"
)

type RoomStatus string

const (
	RoomAvailable   RoomStatus = "Available"
	RoomOccupied    RoomStatus = "Occupied"
	RoomMaintenance RoomStatus = "Maintenance"
)

type TenantStatus string

const (
	TenantActive TenantStatus = "Active"
	TenantFormer TenantStatus = "Former"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "Pending"
	BookingConfirmed BookingStatus = "Confirmed"
	BookingCancelled BookingStatus = "Cancelled"
)

// Final reports whether no further transition is modeled from s.
func (s BookingStatus) Final() bool {
	return s == BookingConfirmed || s == BookingCancelled
}

type InvoiceStatus string

const (
	InvoiceUnpaid  InvoiceStatus = "Unpaid"
	InvoicePaid    InvoiceStatus = "Paid"
	InvoiceOverdue InvoiceStatus = "Overdue"
)

type TaskPriority string

const (
	PriorityLow      TaskPriority = "Low"
	PriorityMedium   TaskPriority = "Medium"
	PriorityHigh     TaskPriority = "High"
	PriorityCritical TaskPriority = "Critical"
)

type TaskStatus string

const (
	TaskPending    TaskStatus = "Pending"
	TaskInProgress TaskStatus = "In Progress"
	TaskCompleted  TaskStatus = "Completed"
	TaskCancelled  TaskStatus = "Cancelled"
)

type TaskCategory string

const (
	CategoryMaintenance TaskCategory = "Maintenance"
	CategoryAdmin       TaskCategory = "Admin"
	CategoryLegal       TaskCategory = "Legal"
	CategoryOther       TaskCategory = "Other"
)

type Room struct {
	ID         string          `json:"id"`
	Number     string          `json:"number"`
	Type       RoomType        `json:"type"`
	Status     RoomStatus      `json:"status"`
	Price      decimal.Decimal `json:"price"`
	TenantName string          `json:"tenantName,omitempty"`
}

type Tenant struct {
	ID             string           `json:"id"`
	Name           string           `json:"name" validate:"required"`
	RoomNumber     string           `json:"roomNumber" validate:"required"`
	Phone          string           `json:"phone" validate:"omitempty,phone"`
	EntryDate      string           `json:"entryDate"`
	Status         TenantStatus     `json:"status" validate:"omitempty,oneof=Active Former"`
	EmergencyName  string           `json:"emergencyName,omitempty"`
	EmergencyPhone string           `json:"emergencyPhone,omitempty" validate:"omitempty,phone"`
	ContractPeriod string           `json:"contractPeriod,omitempty"`
	DepositAmount  *decimal.Decimal `json:"depositAmount,omitempty"`
}

type Booking struct {
	ID          string        `json:"id"`
	RoomNumber  string        `json:"roomNumber" validate:"required"`
	TenantName  string        `json:"tenantName" validate:"required"`
	Phone       string        `json:"phone" validate:"required,phone"`
	BookingDate string        `json:"bookingDate"`
	MoveInDate  string        `json:"moveInDate" validate:"required,date"`
	Status      BookingStatus `json:"status"`
}

type Invoice struct {
	ID         string          `json:"id"`
	RoomNumber string          `json:"roomNumber" validate:"required"`
	Month      string          `json:"month" validate:"required"`
	Date       string          `json:"date" validate:"omitempty,date"`
	Amount     decimal.Decimal `json:"amount" validate:"gte=0"`
	Status     InvoiceStatus   `json:"status" validate:"oneof=Unpaid Paid Overdue"`
}

type Task struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Assignee    string       `json:"assignee"`
	Priority    TaskPriority `json:"priority"`
	Status      TaskStatus   `json:"status"`
	DueDate     string       `json:"dueDate"`
	Category    TaskCategory `json:"category"`
}

// Normalize helpers match known enum values case-insensitively and keep
// anything else verbatim: the sheet is authoritative.

func NormalizeRoomType(s string) RoomType {
	return RoomType(matchFold(s, string(RoomStandard), string(RoomDeluxe), string(RoomSuite)))
}

func NormalizeRoomStatus(s string) RoomStatus {
	return RoomStatus(matchFold(s, string(RoomAvailable), string(RoomOccupied), string(RoomMaintenance)))
}

func NormalizeTenantStatus(s string) TenantStatus {
	return TenantStatus(matchFold(s, string(TenantActive), string(TenantFormer)))
}

func NormalizeBookingStatus(s string) BookingStatus {
	return BookingStatus(matchFold(s, string(BookingPending), string(BookingConfirmed), string(BookingCancelled)))
}

func NormalizeInvoiceStatus(s string) InvoiceStatus {
	return InvoiceStatus(matchFold(s, string(InvoiceUnpaid), string(InvoicePaid), string(InvoiceOverdue)))
}

func NormalizePriority(s string) TaskPriority {
	return TaskPriority(matchFold(s, string(PriorityLow), string(PriorityMedium), string(PriorityHigh), string(PriorityCritical)))
}

func NormalizeTaskStatus(s string) TaskStatus {
	return TaskStatus(matchFold(s, string(TaskPending), string(TaskInProgress), string(TaskCompleted), string(TaskCancelled)))
}

func NormalizeCategory(s string) TaskCategory {
	return TaskCategory(matchFold(s, string(CategoryMaintenance), string(CategoryAdmin), string(CategoryLegal), string(CategoryOther)))
}

func matchFold(s string, known ...string) string {
	t := strings.TrimSpace(s)
	for _, k := range known {
		if strings.EqualFold(t, k) {
			return k
		}
	}
	return t
}
