package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/salonbook/platform/libs/httpx"
	"github.com/salonbook/platform/services/booking-service/internal/availability"
	"github.com/salonbook/platform/services/booking-service/internal/booking"
	"github.com/salonbook/platform/services/booking-service/internal/localtime"
)

type resultResponse struct {
	OK        bool   `json:"ok"`
	BookingID string `json:"booking_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Message   string `json:"message,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeResult renders a booking outcome; success uses okStatus.
func writeResult(w http.ResponseWriter, okStatus int, res booking.Result) {
	if res.OK() {
		httpx.WriteJSON(w, okStatus, resultResponse{OK: true, BookingID: res.BookingID})
		return
	}
	httpx.WriteJSON(w, statusForReason(res.Reason), resultResponse{
		OK:      false,
		Reason:  string(res.Reason),
		Message: res.Message,
	})
}

func statusForReason(reason booking.Reason) int {
	switch reason {
	case booking.ReasonOK:
		return http.StatusOK
	case booking.ReasonInvalid:
		return http.StatusBadRequest
	case booking.ReasonSlotTaken:
		return http.StatusConflict
	case booking.ReasonNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	httpx.WriteJSON(w, status, errorResponse{Error: msg})
}

// lookupStatus maps availability and booking lookup errors to a status and a public message.
func lookupStatus(err error) (int, string) {
	switch {
	case errors.Is(err, availability.ErrTenantNotFound), errors.Is(err, availability.ErrTenantInactive):
		return http.StatusNotFound, "business not found"
	case errors.Is(err, availability.ErrServiceNotFound):
		return http.StatusNotFound, "service not found"
	case errors.Is(err, availability.ErrStaffNotFound):
		return http.StatusNotFound, "staff not found"
	case errors.Is(err, booking.ErrBookingNotFound):
		return http.StatusNotFound, "booking not found"
	case errors.Is(err, booking.ErrBookingCancelled):
		return http.StatusBadRequest, "booking is cancelled"
	case errors.Is(err, localtime.ErrInvalidTemporalInput):
		return http.StatusBadRequest, "invalid date"
	}
	return http.StatusInternalServerError, "internal error"
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

func queryValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

type slotItem struct {
	StartAt string `json:"start_at"`
	EndAt   string `json:"end_at"`
	Label   string `json:"label"`
}

type serviceSummary struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	DurationMinutes int      `json:"duration_minutes"`
	Price           *float64 `json:"price"`
	Currency        string   `json:"currency"`
}

type policyEcho struct {
	SlotStepMinutes         int `json:"slot_step_minutes"`
	MinNoticeMinutes        int `json:"min_notice_minutes"`
	MaxDaysAhead            int `json:"max_days_ahead"`
	CancellationCutoffHours int `json:"cancellation_cutoff_hours"`
}

type availabilityResponse struct {
	TenantID     string         `json:"tenant_id"`
	StaffID      string         `json:"staff_id"`
	BusinessName string         `json:"business_name"`
	Service      serviceSummary `json:"service"`
	Date         string         `json:"date"`
	Timezone     string         `json:"timezone"`
	Slots        []slotItem     `json:"slots"`
	Policy       policyEcho     `json:"policy"`
}

func toAvailabilityResponse(res availability.Result) availabilityResponse {
	slots := make([]slotItem, 0, len(res.Slots))
	for _, s := range res.Slots {
		slots = append(slots, slotItem{
			StartAt: s.Start.UTC().Format(time.RFC3339),
			EndAt:   s.End.UTC().Format(time.RFC3339),
			Label:   s.Label,
		})
	}
	return availabilityResponse{
		TenantID:     res.TenantID,
		StaffID:      res.StaffID,
		BusinessName: res.BusinessName,
		Service: serviceSummary{
			ID:              res.Service.ID,
			Name:            res.Service.Name,
			DurationMinutes: res.Service.DurationMinutes,
			Price:           res.Service.Price,
			Currency:        res.Service.Currency,
		},
		Date:     res.Date,
		Timezone: res.Timezone,
		Slots:    slots,
		Policy: policyEcho{
			SlotStepMinutes:         res.Policy.SlotStepMinutes,
			MinNoticeMinutes:        res.Policy.MinNoticeMinutes,
			MaxDaysAhead:            res.Policy.MaxDaysAhead,
			CancellationCutoffHours: res.Policy.CancellationCutoffHours,
		},
	}
}
