package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/salonbook/platform/libs/httpx"
	"github.com/salonbook/platform/services/booking-service/internal/booking"
	"github.com/salonbook/platform/services/booking-service/internal/calendar"
	"github.com/salonbook/platform/services/booking-service/internal/localtime"
	"github.com/salonbook/platform/services/booking-service/internal/model"
	"github.com/salonbook/platform/services/booking-service/internal/roster"
)

// AdminHandler serves operator endpoints. Every route runs behind requireAdmin, so the
// tenant always comes from the caller's identity, never from the request body.
type AdminHandler struct {
	bookings  *booking.Service
	projector *calendar.Projector
	roster    *roster.Service
	logger    *slog.Logger
}

func NewAdminHandler(bookings *booking.Service, projector *calendar.Projector, rosterSvc *roster.Service, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{bookings: bookings, projector: projector, roster: rosterSvc, logger: logger}
}

type rescheduleRequest struct {
	BookingID string `json:"booking_id"`
	StartAt   string `json:"start_at"`
}

func (h *AdminHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req rescheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id := adminFromContext(r.Context())
	writeResult(w, http.StatusOK, h.bookings.Reschedule(r.Context(), id.TenantSlug, req.BookingID, req.StartAt))
}

func (h *AdminHandler) RescheduleSlots(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	bookingID := queryValue(r, "booking_id")
	date := queryValue(r, "date")
	if bookingID == "" || date == "" {
		writeError(w, http.StatusBadRequest, "booking_id and date are required")
		return
	}
	id := adminFromContext(r.Context())
	res, err := h.bookings.RescheduleSlots(r.Context(), id.TenantSlug, bookingID, date)
	if err != nil {
		status, msg := lookupStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.ErrorContext(r.Context(), "reschedule slots failed", "booking_id", bookingID, "err", err)
		}
		writeError(w, status, msg)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toAvailabilityResponse(res))
}

type bookingIDRequest struct {
	BookingID string `json:"booking_id"`
}

func (h *AdminHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req bookingIDRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id := adminFromContext(r.Context())
	writeResult(w, http.StatusOK, h.bookings.CancelByID(r.Context(), id.TenantSlug, req.BookingID))
}

func (h *AdminHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req bookingIDRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id := adminFromContext(r.Context())
	writeResult(w, http.StatusOK, h.bookings.Confirm(r.Context(), id.TenantSlug, req.BookingID))
}

type calendarEvent struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	StartAt       string `json:"start_at"`
	EndAt         string `json:"end_at"`
	StaffID       string `json:"staff_id"`
	StaffName     string `json:"staff_name"`
	Status        string `json:"status,omitempty"`
	CustomerName  string `json:"customer_name,omitempty"`
	CustomerPhone string `json:"customer_phone,omitempty"`
	CustomerEmail string `json:"customer_email,omitempty"`
	CustomerNote  string `json:"customer_note,omitempty"`
	ServiceID     string `json:"service_id,omitempty"`
	ServiceName   string `json:"service_name,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

type calendarResponse struct {
	Mode        string          `json:"mode"`
	Date        string          `json:"date"`
	Timezone    string          `json:"timezone"`
	WindowStart string          `json:"window_start"`
	WindowEnd   string          `json:"window_end"`
	Events      []calendarEvent `json:"events"`
}

func (h *AdminHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	date := queryValue(r, "date")
	if date == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	includeCancelled, _ := strconv.ParseBool(queryValue(r, "include_cancelled"))
	id := adminFromContext(r.Context())

	view, err := h.projector.Events(r.Context(), calendar.Query{
		TenantSlug:       id.TenantSlug,
		Mode:             calendar.Mode(queryValue(r, "mode")),
		Date:             date,
		StaffID:          queryValue(r, "staff_id"),
		IncludeCancelled: includeCancelled,
	})
	if err != nil {
		switch {
		case errors.Is(err, calendar.ErrInvalidMode):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, localtime.ErrInvalidTemporalInput):
			writeError(w, http.StatusBadRequest, "invalid date")
		case errors.Is(err, calendar.ErrTenantNotFound):
			writeError(w, http.StatusNotFound, "business not found")
		default:
			h.logger.ErrorContext(r.Context(), "calendar failed", "tenant_id", id.TenantID, "err", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	events := make([]calendarEvent, 0, len(view.Events))
	for _, ev := range view.Events {
		events = append(events, calendarEvent{
			ID:            ev.ID,
			Type:          string(ev.Type),
			StartAt:       ev.Start.UTC().Format(time.RFC3339),
			EndAt:         ev.End.UTC().Format(time.RFC3339),
			StaffID:       ev.StaffID,
			StaffName:     ev.StaffName,
			Status:        string(ev.Status),
			CustomerName:  ev.CustomerName,
			CustomerPhone: ev.CustomerPhone,
			CustomerEmail: ev.CustomerEmail,
			CustomerNote:  ev.CustomerNote,
			ServiceID:     ev.ServiceID,
			ServiceName:   ev.ServiceName,
			Reason:        ev.Reason,
		})
	}
	httpx.WriteJSON(w, http.StatusOK, calendarResponse{
		Mode:        string(view.Mode),
		Date:        view.Date,
		Timezone:    view.Timezone,
		WindowStart: view.WindowStart.UTC().Format(time.RFC3339),
		WindowEnd:   view.WindowEnd.UTC().Format(time.RFC3339),
		Events:      events,
	})
}

type createStaffRequest struct {
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
}

type idResponse struct {
	ID string `json:"id"`
}

func (h *AdminHandler) CreateStaff(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req createStaffRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id := adminFromContext(r.Context())
	staffID, err := h.roster.CreateStaff(r.Context(), id.TenantID, req.Name, req.IsDefault)
	if err != nil {
		h.writeRosterError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, idResponse{ID: staffID})
}

type staffIDRequest struct {
	StaffID string `json:"staff_id"`
}

func (h *AdminHandler) SetDefaultStaff(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req staffIDRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id := adminFromContext(r.Context())
	if err := h.roster.SetDefaultStaff(r.Context(), id.TenantID, req.StaffID); err != nil {
		h.writeRosterError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type workingHoursRequest struct {
	StaffID   string `json:"staff_id"`
	Weekday   int    `json:"weekday"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	IsClosed  bool   `json:"is_closed"`
}

func (h *AdminHandler) PutWorkingHours(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPut) {
		return
	}
	var req workingHoursRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id := adminFromContext(r.Context())
	err := h.roster.SetWorkingHours(r.Context(), id.TenantID, model.WorkingHours{
		StaffID:   req.StaffID,
		Weekday:   req.Weekday,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		IsClosed:  req.IsClosed,
	})
	if err != nil {
		h.writeRosterError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type timeOffRequest struct {
	StaffID string `json:"staff_id"`
	StartAt string `json:"start_at"`
	EndAt   string `json:"end_at"`
	Reason  string `json:"reason"`
}

func (h *AdminHandler) CreateTimeOff(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	var req timeOffRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	start, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartAt))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_at")
		return
	}
	end, err := time.Parse(time.RFC3339, strings.TrimSpace(req.EndAt))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_at")
		return
	}
	id := adminFromContext(r.Context())
	offID, err := h.roster.AddTimeOff(r.Context(), id.TenantID, model.TimeOff{
		StaffID: req.StaffID,
		StartAt: start,
		EndAt:   end,
		Reason:  req.Reason,
	})
	if err != nil {
		h.writeRosterError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, idResponse{ID: offID})
}

func (h *AdminHandler) writeRosterError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, roster.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, roster.ErrNotFound):
		writeError(w, http.StatusNotFound, "staff not found")
	default:
		h.logger.ErrorContext(r.Context(), "roster update failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
