package handlers

import (
	"net/http"

	"github.com/salonbook/platform/libs/httpx"
)

// Register mounts the public, login and admin routes on mux. limit, when set, wraps the
// unauthenticated routes (public endpoints and login).
func Register(mux *http.ServeMux, public *PublicHandler, login *LoginHandler, admin *AdminHandler, authz Authorizer, limit httpx.Middleware) {
	open := func(h http.HandlerFunc) http.Handler {
		if limit == nil {
			return h
		}
		return limit(h)
	}
	mux.Handle("/api/v1/public/availability", open(public.Availability))
	mux.Handle("/api/v1/public/bookings", open(public.CreateBooking))
	mux.Handle("/api/v1/public/bookings/cancel", open(public.CancelBooking))
	mux.Handle("/api/v1/admin/login", open(login.Login))

	mux.Handle("/api/v1/admin/bookings/reschedule", requireAdmin(authz, admin.Reschedule))
	mux.Handle("/api/v1/admin/bookings/reschedule-slots", requireAdmin(authz, admin.RescheduleSlots))
	mux.Handle("/api/v1/admin/bookings/cancel", requireAdmin(authz, admin.Cancel))
	mux.Handle("/api/v1/admin/bookings/confirm", requireAdmin(authz, admin.Confirm))
	mux.Handle("/api/v1/admin/calendar", requireAdmin(authz, admin.Calendar))
	mux.Handle("/api/v1/admin/staff", requireAdmin(authz, admin.CreateStaff))
	mux.Handle("/api/v1/admin/staff/default", requireAdmin(authz, admin.SetDefaultStaff))
	mux.Handle("/api/v1/admin/working-hours", requireAdmin(authz, admin.PutWorkingHours))
	mux.Handle("/api/v1/admin/time-off", requireAdmin(authz, admin.CreateTimeOff))
}
