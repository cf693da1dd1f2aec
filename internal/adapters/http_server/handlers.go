// internal/adapters/http_server/handlers.go
package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"rental_kernel/internal/adapters/events"
	"rental_kernel/internal/app"
	"rental_kernel/internal/domain"
)

const maxUpload = 10 << 20

type Handlers struct {
	Q        *app.QueryService
	M        *app.MutationService
	Sync     *app.SyncService
	Triage   *app.TriageService
	Settings *app.SettingsService
	Hub      *events.Hub
}

type problem struct {
	Type   string            `json:"type"`
	Title  string            `json:"title"`
	Status int               `json:"status"`
	Detail string            `json:"detail,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.api.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.api.Get("/v1/status", h.status)
	s.api.Get("/v1/rooms", h.listRooms)
	s.api.Post("/v1/bookings", h.submitBooking)

	s.api.Group(func(r chi.Router) {
		r.Use(RequirePrincipal)
		r.Get("/v1/dashboard", h.dashboard)
		r.Get("/v1/invoices", h.listInvoices)
	})

	s.api.Group(func(r chi.Router) {
		r.Use(RequireAdmin)
		r.Post("/v1/sync", h.sync)
		r.Get("/v1/tenants", h.listTenants)
		r.Put("/v1/tenants/{id}", h.updateTenant)
		r.Post("/v1/tenants/{id}/lease", h.draftLease)
		r.Get("/v1/bookings", h.listBookings)
		r.Put("/v1/bookings/{id}/status", h.setBookingStatus)
		r.Get("/v1/tasks", h.listTasks)
		r.Post("/v1/tasks/suggest", h.suggestTask)
		r.Post("/v1/maintenance/analyze", h.analyzeMaintenance)
		r.Post("/v1/invoices", h.submitInvoice)
		r.Post("/v1/invoices/{id}/reminder", h.draftReminder)
		r.Post("/v1/utilities/bill", h.utilityBill)
		r.Get("/v1/settings/endpoint", h.getEndpoint)
		r.Put("/v1/settings/endpoint", h.putEndpoint)
	})

	// sync events carry diagnostics, so the stream is for operators only
	if h.Hub != nil {
		s.mux.With(RequireAdmin).Get("/v1/events", websocketUpgrade(h.Hub))
	}
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	writeProblemDoc(w, problem{Type: "about:blank", Title: title, Status: status, Detail: detail})
}

func writeProblemDoc(w http.ResponseWriter, p problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps domain errors to problem documents in one place.
func writeError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	var he *domain.HTTPError
	switch {
	case errors.As(err, &ve):
		writeProblemDoc(w, problem{Type: "about:blank", Title: "Validation Failed", Status: http.StatusBadRequest, Errors: ve.Fields})
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidConfiguration):
		writeProblem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeProblem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, domain.ErrBookingFinal):
		writeProblem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, domain.ErrAssistantUnavailable):
		writeProblem(w, http.StatusBadGateway, "Assistant Unavailable", "the assistant could not answer; enter the task manually")
	case errors.Is(err, domain.ErrMutationRejected), errors.Is(err, domain.ErrTransport),
		errors.Is(err, domain.ErrMalformedResponse), errors.As(err, &he):
		writeProblem(w, http.StatusBadGateway, "Transmission Failed", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeProblem(w, http.StatusGatewayTimeout, "Gateway Timeout", "the backend did not answer in time")
	default:
		log.Error().Err(err).Msg("unhandled error")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeCached serves a read model with a weak ETag and honors If-None-Match.
func writeCached(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("failed to write body")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write body")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return false
	}
	return true
}

// mutationStatus answers 202 when the write was only dispatched, since
// nothing confirms it landed.
func mutationStatus(res domain.MutationResult, created bool) int {
	switch {
	case !res.Confirmed:
		return http.StatusAccepted
	case created:
		return http.StatusCreated
	default:
		return http.StatusOK
	}
}

// ---- Reads ----

func (h *Handlers) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Q.Status())
}

func (h *Handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	writeCached(w, r, h.Q.Dashboard(PrincipalFrom(r.Context())))
}

func (h *Handlers) listRooms(w http.ResponseWriter, r *http.Request) {
	writeCached(w, r, h.Q.Rooms(PrincipalFrom(r.Context()), r.URL.Query().Get("status")))
}

func (h *Handlers) listTenants(w http.ResponseWriter, r *http.Request) {
	writeCached(w, r, h.Q.Tenants())
}

func (h *Handlers) listBookings(w http.ResponseWriter, r *http.Request) {
	writeCached(w, r, h.Q.Bookings())
}

func (h *Handlers) listTasks(w http.ResponseWriter, r *http.Request) {
	writeCached(w, r, h.Q.Tasks(r.URL.Query().Get("category")))
}

func (h *Handlers) listInvoices(w http.ResponseWriter, r *http.Request) {
	writeCached(w, r, h.Q.Invoices(PrincipalFrom(r.Context())))
}

// ---- Sync & settings ----

func (h *Handlers) sync(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Sync.Refresh(r.Context()); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "No Data Available", domain.Diagnose(err))
		return
	}
	writeJSON(w, http.StatusOK, h.Q.Status())
}

type endpointBody struct {
	Endpoint string `json:"endpoint"`
}

func (h *Handlers) getEndpoint(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, endpointBody{Endpoint: h.Settings.Endpoint()})
}

// putEndpoint saves the endpoint and reloads from it right away.
func (h *Handlers) putEndpoint(w http.ResponseWriter, r *http.Request) {
	var in endpointBody
	if !decodeJSON(w, r, &in) {
		return
	}
	if err := h.Settings.SetEndpoint(r.Context(), in.Endpoint); err != nil {
		writeError(w, err)
		return
	}
	if _, err := h.Sync.Refresh(r.Context()); err != nil {
		log.Warn().Err(err).Msg("reload after endpoint change failed")
	}
	writeJSON(w, http.StatusOK, h.Q.Status())
}

// ---- Mutations ----

type bookingResponse struct {
	Booking   domain.Booking `json:"booking"`
	Confirmed bool           `json:"confirmed"`
}

func (h *Handlers) submitBooking(w http.ResponseWriter, r *http.Request) {
	var in app.BookingRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	b, res, err := h.M.SubmitBooking(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, mutationStatus(res, true), bookingResponse{Booking: b, Confirmed: res.Confirmed})
}

func (h *Handlers) setBookingStatus(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, r, &in) {
		return
	}
	b, res, err := h.M.SetBookingStatus(r.Context(), chi.URLParam(r, "id"), in.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, mutationStatus(res, false), bookingResponse{Booking: b, Confirmed: res.Confirmed})
}

func (h *Handlers) updateTenant(w http.ResponseWriter, r *http.Request) {
	var t domain.Tenant
	if !decodeJSON(w, r, &t) {
		return
	}
	t.ID = chi.URLParam(r, "id")
	res, err := h.M.UpdateTenant(r.Context(), t)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, mutationStatus(res, false), map[string]any{"tenant": t, "confirmed": res.Confirmed})
}

func (h *Handlers) submitInvoice(w http.ResponseWriter, r *http.Request) {
	var in app.InvoiceRequest
	if !decodeJSON(w, r, &in) {
		return
	}
	inv, res, err := h.M.SubmitInvoice(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, mutationStatus(res, true), map[string]any{"invoice": inv, "confirmed": res.Confirmed})
}

func (h *Handlers) utilityBill(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Lines []app.UtilityLine `json:"lines"`
	}
	if !decodeJSON(w, r, &in) {
		return
	}
	bill, err := app.BuildUtilityBill(in.Lines)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bill)
}

// ---- Assistant ----

func (h *Handlers) suggestTask(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Description string `json:"description"`
	}
	if !decodeJSON(w, r, &in) {
		return
	}
	s, err := h.Triage.SuggestTask(r.Context(), in.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

type analyzeBody struct {
	Description string `json:"description"`
	MimeType    string `json:"mimeType"`
	Image       string `json:"image"` // base64
}

// analyzeMaintenance takes either a multipart form (description, photo) or
// JSON with a base64 image.
func (h *Handlers) analyzeMaintenance(w http.ResponseWriter, r *http.Request) {
	var desc string
	var img *domain.Image

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUpload); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid Body", err.Error())
			return
		}
		desc = r.FormValue("description")
		if f, hdr, err := r.FormFile("photo"); err == nil {
			data, err := io.ReadAll(io.LimitReader(f, maxUpload))
			f.Close()
			if err != nil {
				writeProblem(w, http.StatusBadRequest, "Invalid Body", err.Error())
				return
			}
			img = &domain.Image{MimeType: hdr.Header.Get("Content-Type"), Data: data}
		}
	} else {
		var in analyzeBody
		if !decodeJSON(w, r, &in) {
			return
		}
		desc = in.Description
		if in.Image != "" {
			data, err := base64.StdEncoding.DecodeString(in.Image)
			if err != nil {
				writeError(w, &domain.ValidationError{Fields: map[string]string{"image": "base64"}})
				return
			}
			img = &domain.Image{MimeType: in.MimeType, Data: data}
		}
	}

	text, err := h.Triage.AnalyzeMaintenance(r.Context(), desc, img)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"analysis": text})
}

func (h *Handlers) draftReminder(w http.ResponseWriter, r *http.Request) {
	text, err := h.Triage.DraftReminder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": text})
}

func (h *Handlers) draftLease(w http.ResponseWriter, r *http.Request) {
	text, err := h.Triage.DraftLease(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"lease": text})
}
