package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/salonbook/platform/libs/httpx"
	"github.com/salonbook/platform/services/booking-service/internal/availability"
	"github.com/salonbook/platform/services/booking-service/internal/booking"
)

// PublicHandler serves the unauthenticated customer endpoints.
type PublicHandler struct {
	calc     *availability.Calculator
	bookings *booking.Service
	logger   *slog.Logger
}

func NewPublicHandler(bookings *booking.Service, logger *slog.Logger) *PublicHandler {
	return &PublicHandler{calc: bookings.Calculator(), bookings: bookings, logger: logger}
}

func (h *PublicHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	q := availability.Query{
		TenantSlug: queryValue(r, "tenant"),
		ServiceID:  queryValue(r, "service_id"),
		Date:       queryValue(r, "date"),
		StaffID:    queryValue(r, "staff_id"),
	}
	if q.TenantSlug == "" || q.ServiceID == "" || q.Date == "" {
		writeError(w, http.StatusBadRequest, "tenant, service_id and date are required")
		return
	}

	res, err := h.calc.Slots(r.Context(), q)
	if err != nil {
		status, msg := lookupStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "availability failed", "tenant", q.TenantSlug, "err", err)
		}
		writeError(w, status, msg)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAvailabilityResponse(res))
}

type createBookingRequest struct {
	Tenant        string `json:"tenant"`
	ServiceID     string `json:"service_id"`
	StaffID       string `json:"staff_id"`
	StartAt       string `json:"start_at"`
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
	CustomerEmail string `json:"customer_email"`
	CustomerNote  string `json:"customer_note"`
}

// IdempotencyKeyHeader lets clients retry a create without booking twice.
const IdempotencyKeyHeader = "Idempotency-Key"

func (h *PublicHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req createBookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res := h.bookings.Create(r.Context(), booking.CreateRequest{
		TenantSlug: strings.TrimSpace(req.Tenant),
		ServiceID:  strings.TrimSpace(req.ServiceID),
		StaffID:    strings.TrimSpace(req.StaffID),
		StartAt:    req.StartAt,
		Customer: booking.Customer{
			Name:  req.CustomerName,
			Phone: req.CustomerPhone,
			Email: req.CustomerEmail,
			Note:  req.CustomerNote,
		},
		IdempotencyKey: r.Header.Get(IdempotencyKeyHeader),
	})
	writeResult(w, http.StatusCreated, res)
}

type cancelByTokenRequest struct {
	Token string `json:"token"`
}

func (h *PublicHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req cancelByTokenRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeResult(w, http.StatusOK, h.bookings.CancelByToken(r.Context(), req.Token))
}
