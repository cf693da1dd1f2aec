package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"rental_kernel/internal/domain"
)

// MutationService validates writes and dispatches them to the backend.
// Every write is one attempt; a failure is reported, never queued.
type MutationService struct {
	backend  domain.SheetBackend
	state    *State
	validate *Validator
	now      func() time.Time
}

func NewMutationService(b domain.SheetBackend, st *State, v *Validator) *MutationService {
	return &MutationService{backend: b, state: st, validate: v, now: time.Now}
}

type BookingRequest struct {
	RoomNumber string `json:"roomNumber"`
	TenantName string `json:"tenantName"`
	Phone      string `json:"phone"`
	MoveInDate string `json:"moveInDate"`
}

type InvoiceRequest struct {
	ID         string          `json:"id"`
	RoomNumber string          `json:"roomNumber"`
	Month      string          `json:"month"`
	Date       string          `json:"date"`
	Amount     decimal.Decimal `json:"amount"`
	Status     string          `json:"status"`
}

type bookingStatusUpdate struct {
	ID     string               `json:"id"`
	Status domain.BookingStatus `json:"status"`
}

// newID returns prefix-XXXXX with five upper-case characters.
func newID(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "-" + strings.ToUpper(raw[:5])
}

// SubmitBooking records a prospective tenant's request as Pending.
func (s *MutationService) SubmitBooking(ctx context.Context, in BookingRequest) (domain.Booking, domain.MutationResult, error) {
	b := domain.Booking{
		ID:          newID("BK"),
		RoomNumber:  strings.TrimSpace(in.RoomNumber),
		TenantName:  strings.TrimSpace(in.TenantName),
		Phone:       strings.TrimSpace(in.Phone),
		BookingDate: s.now().UTC().Format(time.RFC3339),
		MoveInDate:  strings.TrimSpace(in.MoveInDate),
		Status:      domain.BookingPending,
	}
	if err := s.validate.Struct(b); err != nil {
		return domain.Booking{}, domain.MutationResult{}, err
	}
	// only checkable once rooms are loaded
	if s.state.RoomCount() > 0 && !s.state.HasRoom(b.RoomNumber) {
		return domain.Booking{}, domain.MutationResult{}, &domain.ValidationError{Fields: map[string]string{"roomNumber": "unknown"}}
	}

	res, err := s.backend.Send(ctx, domain.ActionAddBooking, b)
	if err != nil {
		return domain.Booking{}, res, fmt.Errorf("submit booking: %w", err)
	}
	log.Info().Str("booking", b.ID).Str("room", b.RoomNumber).Bool("confirmed", res.Confirmed).Msg("booking submitted")
	return b, res, nil
}

// SetBookingStatus moves a Pending booking to Confirmed or Cancelled. Only
// the booking changes; rooms and tenants are not touched.
func (s *MutationService) SetBookingStatus(ctx context.Context, id string, status string) (domain.Booking, domain.MutationResult, error) {
	st := domain.NormalizeBookingStatus(status)
	if !st.Final() {
		return domain.Booking{}, domain.MutationResult{}, &domain.ValidationError{Fields: map[string]string{"status": "oneof=Confirmed Cancelled"}}
	}
	b, ok := s.state.FindBooking(id)
	if !ok {
		return domain.Booking{}, domain.MutationResult{}, fmt.Errorf("booking %s: %w", id, domain.ErrNotFound)
	}
	if b.Status.Final() {
		return b, domain.MutationResult{}, fmt.Errorf("booking %s is %s: %w", id, b.Status, domain.ErrBookingFinal)
	}

	res, err := s.backend.Send(ctx, domain.ActionUpdateBooking, bookingStatusUpdate{ID: id, Status: st})
	if err != nil {
		return b, res, fmt.Errorf("update booking: %w", err)
	}
	s.state.SetBookingStatus(id, st)
	b.Status = st
	log.Info().Str("booking", id).Str("status", string(st)).Bool("confirmed", res.Confirmed).Msg("booking status sent")
	return b, res, nil
}

// UpdateTenant replaces a known tenant's profile.
func (s *MutationService) UpdateTenant(ctx context.Context, t domain.Tenant) (domain.MutationResult, error) {
	if _, ok := s.state.FindTenant(t.ID); !ok {
		return domain.MutationResult{}, fmt.Errorf("tenant %s: %w", t.ID, domain.ErrNotFound)
	}
	t.Status = domain.NormalizeTenantStatus(string(t.Status))
	if err := s.validate.Struct(t); err != nil {
		return domain.MutationResult{}, err
	}

	res, err := s.backend.Send(ctx, domain.ActionUpdateTenant, t)
	if err != nil {
		return res, fmt.Errorf("update tenant: %w", err)
	}
	s.state.PutTenant(t)
	log.Info().Str("tenant", t.ID).Bool("confirmed", res.Confirmed).Msg("tenant update sent")
	return res, nil
}

// SubmitInvoice sends a new invoice; new invoices default to Unpaid.
func (s *MutationService) SubmitInvoice(ctx context.Context, in InvoiceRequest) (domain.Invoice, domain.MutationResult, error) {
	inv := domain.Invoice{
		ID:         strings.TrimSpace(in.ID),
		RoomNumber: strings.TrimSpace(in.RoomNumber),
		Month:      strings.TrimSpace(in.Month),
		Date:       strings.TrimSpace(in.Date),
		Amount:     in.Amount,
		Status:     domain.NormalizeInvoiceStatus(in.Status),
	}
	if inv.ID == "" {
		inv.ID = newID("INV")
	}
	if inv.Status == "" {
		inv.Status = domain.InvoiceUnpaid
	}
	if inv.Date == "" {
		inv.Date = s.now().UTC().Format("2006-01-02")
	}
	if err := s.validate.Struct(inv); err != nil {
		return domain.Invoice{}, domain.MutationResult{}, err
	}

	res, err := s.backend.Send(ctx, domain.ActionAddInvoice, inv)
	if err != nil {
		return domain.Invoice{}, res, fmt.Errorf("submit invoice: %w", err)
	}
	log.Info().Str("invoice", inv.ID).Str("room", inv.RoomNumber).Str("amount", inv.Amount.String()).Msg("invoice sent")
	return inv, res, nil
}
