package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/salonbook/platform/libs/auth"
	"github.com/salonbook/platform/libs/httpx"
	"github.com/salonbook/platform/services/booking-service/internal/booking"
	"github.com/salonbook/platform/services/booking-service/internal/calendar"
	"github.com/salonbook/platform/services/booking-service/internal/model"
	"github.com/salonbook/platform/services/booking-service/internal/roster"
	"github.com/salonbook/platform/services/booking-service/internal/storage/memstore"
)

const (
	testSecret = "test-secret"
	adminKey   = "let-me-in"
)

type testServer struct {
	handler http.Handler
	store   *memstore.Store
	tenant  model.Tenant
	service model.Service
	staffID string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	hash, err := auth.HashKey(adminKey)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	store := memstore.New()
	tenant := store.AddTenant(model.Tenant{Slug: "lila", BusinessName: "Studio Lila", IsActive: true, AdminKeyHash: hash})
	store.PutSettings(tenant.ID, model.BookingSettings{Timezone: "Europe/Sofia", SlotStepMinutes: 30, MaxDaysAhead: 60})
	duration := 60
	service := store.AddService(model.Service{TenantID: tenant.ID, Name: "Haircut", DurationMinutes: &duration})
	staffID, err := store.CreateStaff(ctx, model.Staff{TenantID: tenant.ID, Name: "Mira", IsActive: true, IsDefault: true})
	if err != nil {
		t.Fatalf("staff: %v", err)
	}
	if err := store.UpsertWorkingHours(ctx, tenant.ID, model.WorkingHours{StaffID: staffID, Weekday: 1, StartTime: "09:00", EndTime: "12:00"}); err != nil {
		t.Fatalf("hours: %v", err)
	}

	now := func() time.Time { return time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC) }
	bookings := booking.NewService(store, logger, booking.WithClock(now))
	mux := http.NewServeMux()
	Register(mux,
		NewPublicHandler(bookings, logger),
		NewLoginHandler(store, testSecret, time.Hour, logger),
		NewAdminHandler(bookings, calendar.NewProjector(store), roster.NewService(store), logger),
		NewJWTAuthorizer(testSecret),
		nil,
	)
	return &testServer{handler: mux, store: store, tenant: tenant, service: service, staffID: staffID}
}

func (s *testServer) do(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rw := httptest.NewRecorder()
	s.handler.ServeHTTP(rw, req)
	return rw
}

func (s *testServer) login(t *testing.T) string {
	t.Helper()
	rw := s.do(t, http.MethodPost, "/api/v1/admin/login", "", map[string]string{"tenant": "lila", "key": adminKey})
	if rw.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rw.Code, rw.Body.String())
	}
	var resp loginResponse
	decode(t, rw, &resp)
	if resp.Token == "" {
		t.Fatal("login returned no token")
	}
	return resp.Token
}

func (s *testServer) book(t *testing.T, startAt string) (int, resultResponse) {
	t.Helper()
	rw := s.do(t, http.MethodPost, "/api/v1/public/bookings", "", createBookingRequest{
		Tenant:        "lila",
		ServiceID:     s.service.ID,
		StartAt:       startAt,
		CustomerName:  "Ana",
		CustomerPhone: "+359888123456",
		CustomerEmail: "ana@example.com",
	})
	var resp resultResponse
	decode(t, rw, &resp)
	return rw.Code, resp
}

func decode(t *testing.T, rw *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rw.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", rw.Body.String(), err)
	}
}

func TestAvailabilityEndpoint(t *testing.T) {
	s := newTestServer(t)
	rw := s.do(t, http.MethodGet, "/api/v1/public/availability?tenant=lila&service_id="+s.service.ID+"&date=2024-06-03", "", nil)
	if rw.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rw.Code, rw.Body.String())
	}
	var resp availabilityResponse
	decode(t, rw, &resp)
	if len(resp.Slots) != 5 || resp.Slots[0].Label != "09:00" || resp.Slots[0].StartAt != "2024-06-03T06:00:00Z" {
		t.Fatalf("unexpected slots %+v", resp.Slots)
	}
	if resp.Service.DurationMinutes != 60 || resp.Policy.SlotStepMinutes != 30 || resp.Timezone != "Europe/Sofia" {
		t.Fatalf("unexpected summary %+v", resp)
	}

	if rw := s.do(t, http.MethodGet, "/api/v1/public/availability?tenant=lila", "", nil); rw.Code != http.StatusBadRequest {
		t.Fatalf("missing params: expected 400, got %d", rw.Code)
	}
	if rw := s.do(t, http.MethodGet, "/api/v1/public/availability?tenant=ghost&service_id=x&date=2024-06-03", "", nil); rw.Code != http.StatusNotFound {
		t.Fatalf("unknown tenant: expected 404, got %d", rw.Code)
	}
	if rw := s.do(t, http.MethodGet, "/api/v1/public/availability?tenant=lila&service_id="+s.service.ID+"&date=tomorrow", "", nil); rw.Code != http.StatusBadRequest {
		t.Fatalf("bad date: expected 400, got %d", rw.Code)
	}
	if rw := s.do(t, http.MethodPost, "/api/v1/public/availability", "", nil); rw.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rw.Code)
	}
}

func TestCreateBookingStatusCodes(t *testing.T) {
	s := newTestServer(t)

	code, resp := s.book(t, "2024-06-03T06:00:00Z")
	if code != http.StatusCreated || !resp.OK || resp.BookingID == "" {
		t.Fatalf("expected 201 with id, got %d %+v", code, resp)
	}
	code, resp = s.book(t, "2024-06-03T06:30:00Z")
	if code != http.StatusConflict || resp.Reason != "slot_taken" || resp.Message == "" {
		t.Fatalf("expected 409 slot_taken, got %d %+v", code, resp)
	}
	code, resp = s.book(t, "not-a-date")
	if code != http.StatusBadRequest || resp.Reason != "invalid" {
		t.Fatalf("expected 400 invalid, got %d %+v", code, resp)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/public/bookings", bytes.NewBufferString("{"))
	rw := httptest.NewRecorder()
	s.handler.ServeHTTP(rw, req)
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("malformed json: expected 400, got %d", rw.Code)
	}
}

func TestPublicCancelByToken(t *testing.T) {
	s := newTestServer(t)
	_, created := s.book(t, "2024-06-03T06:00:00Z")
	b, err := s.store.Booking(context.Background(), s.tenant.ID, created.BookingID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	for i := 0; i < 2; i++ {
		rw := s.do(t, http.MethodPost, "/api/v1/public/bookings/cancel", "", cancelByTokenRequest{Token: b.CancelToken})
		if rw.Code != http.StatusOK {
			t.Fatalf("cancel #%d: expected 200, got %d", i+1, rw.Code)
		}
	}
	rw := s.do(t, http.MethodPost, "/api/v1/public/bookings/cancel", "", cancelByTokenRequest{Token: "nope"})
	if rw.Code != http.StatusNotFound {
		t.Fatalf("unknown token: expected 404, got %d", rw.Code)
	}
}

func TestAdminRequiresValidToken(t *testing.T) {
	s := newTestServer(t)

	if rw := s.do(t, http.MethodGet, "/api/v1/admin/calendar?date=2024-06-03", "", nil); rw.Code != http.StatusUnauthorized {
		t.Fatalf("no token: expected 401, got %d", rw.Code)
	}
	if rw := s.do(t, http.MethodGet, "/api/v1/admin/calendar?date=2024-06-03", "garbage", nil); rw.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: expected 401, got %d", rw.Code)
	}
	other, _ := auth.IssueAdminToken(s.tenant.ID, "lila", "other-secret", time.Hour, time.Now())
	if rw := s.do(t, http.MethodGet, "/api/v1/admin/calendar?date=2024-06-03", other, nil); rw.Code != http.StatusUnauthorized {
		t.Fatalf("foreign signature: expected 401, got %d", rw.Code)
	}
	if rw := s.do(t, http.MethodPost, "/api/v1/admin/login", "", map[string]string{"tenant": "lila", "key": "wrong"}); rw.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key: expected 401, got %d", rw.Code)
	}
	if rw := s.do(t, http.MethodPost, "/api/v1/admin/login", "", map[string]string{"tenant": "ghost", "key": adminKey}); rw.Code != http.StatusUnauthorized {
		t.Fatalf("unknown tenant: expected 401, got %d", rw.Code)
	}
}

func TestAdminBookingLifecycle(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)
	_, a := s.book(t, "2024-06-03T06:00:00Z")
	_, b := s.book(t, "2024-06-03T08:00:00Z")

	rw := s.do(t, http.MethodGet, "/api/v1/admin/bookings/reschedule-slots?booking_id="+a.BookingID+"&date=2024-06-03", token, nil)
	if rw.Code != http.StatusOK {
		t.Fatalf("reschedule slots: expected 200, got %d: %s", rw.Code, rw.Body.String())
	}
	var slots availabilityResponse
	decode(t, rw, &slots)
	// A is ignored, B (11:00-12:00) still blocks: 09:00, 09:30, 10:00.
	if len(slots.Slots) != 3 {
		t.Fatalf("expected 3 reschedule slots, got %+v", slots.Slots)
	}

	rw = s.do(t, http.MethodPost, "/api/v1/admin/bookings/reschedule", token, rescheduleRequest{BookingID: a.BookingID, StartAt: "2024-06-03T06:30:00Z"})
	if rw.Code != http.StatusOK {
		t.Fatalf("reschedule: expected 200, got %d: %s", rw.Code, rw.Body.String())
	}
	rw = s.do(t, http.MethodPost, "/api/v1/admin/bookings/reschedule", token, rescheduleRequest{BookingID: a.BookingID, StartAt: "2024-06-03T07:30:00Z"})
	if rw.Code != http.StatusConflict {
		t.Fatalf("overlapping reschedule: expected 409, got %d", rw.Code)
	}
	rw = s.do(t, http.MethodPost, "/api/v1/admin/bookings/reschedule", token, rescheduleRequest{BookingID: "missing", StartAt: "2024-06-03T07:30:00Z"})
	if rw.Code != http.StatusNotFound {
		t.Fatalf("unknown booking: expected 404, got %d", rw.Code)
	}

	if rw := s.do(t, http.MethodPost, "/api/v1/admin/bookings/confirm", token, bookingIDRequest{BookingID: a.BookingID}); rw.Code != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d", rw.Code)
	}
	if rw := s.do(t, http.MethodPost, "/api/v1/admin/bookings/cancel", token, bookingIDRequest{BookingID: b.BookingID}); rw.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", rw.Code)
	}
	if rw := s.do(t, http.MethodPost, "/api/v1/admin/bookings/confirm", token, bookingIDRequest{BookingID: b.BookingID}); rw.Code != http.StatusBadRequest {
		t.Fatalf("confirm cancelled: expected 400, got %d", rw.Code)
	}

	rw = s.do(t, http.MethodGet, "/api/v1/admin/calendar?mode=day&date=2024-06-03", token, nil)
	if rw.Code != http.StatusOK {
		t.Fatalf("calendar: expected 200, got %d: %s", rw.Code, rw.Body.String())
	}
	var cal calendarResponse
	decode(t, rw, &cal)
	if len(cal.Events) != 1 || cal.Events[0].ID != a.BookingID || cal.Events[0].Status != "confirmed" {
		t.Fatalf("expected only the confirmed booking, got %+v", cal.Events)
	}
	if cal.Events[0].StartAt != "2024-06-03T06:30:00Z" || cal.Events[0].ServiceName != "Haircut" {
		t.Fatalf("unexpected event %+v", cal.Events[0])
	}

	rw = s.do(t, http.MethodGet, "/api/v1/admin/calendar?mode=week&date=2024-06-05&include_cancelled=true", token, nil)
	decode(t, rw, &cal)
	if len(cal.Events) != 2 || cal.WindowStart != "2024-06-02T21:00:00Z" {
		t.Fatalf("expected both bookings in the Monday week, got %d from %s", len(cal.Events), cal.WindowStart)
	}
	if rw := s.do(t, http.MethodGet, "/api/v1/admin/calendar?mode=month&date=2024-06-05", token, nil); rw.Code != http.StatusBadRequest {
		t.Fatalf("bad mode: expected 400, got %d", rw.Code)
	}
}

func TestAdminRoster(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t)
	ctx := context.Background()

	rw := s.do(t, http.MethodPost, "/api/v1/admin/staff", token, createStaffRequest{Name: "Ivo"})
	if rw.Code != http.StatusCreated {
		t.Fatalf("create staff: expected 201, got %d", rw.Code)
	}
	var created idResponse
	decode(t, rw, &created)

	if rw := s.do(t, http.MethodPost, "/api/v1/admin/staff/default", token, staffIDRequest{StaffID: created.ID}); rw.Code != http.StatusNoContent {
		t.Fatalf("set default: expected 204, got %d", rw.Code)
	}
	def, err := s.store.DefaultStaff(ctx, s.tenant.ID)
	if err != nil || def.ID != created.ID {
		t.Fatalf("expected Ivo as default, got %+v (%v)", def, err)
	}

	rw = s.do(t, http.MethodPut, "/api/v1/admin/working-hours", token, workingHoursRequest{StaffID: created.ID, Weekday: 1, StartTime: "10:00", EndTime: "14:00"})
	if rw.Code != http.StatusNoContent {
		t.Fatalf("working hours: expected 204, got %d: %s", rw.Code, rw.Body.String())
	}
	rw = s.do(t, http.MethodPut, "/api/v1/admin/working-hours", token, workingHoursRequest{StaffID: created.ID, Weekday: 1, StartTime: "14:00", EndTime: "10:00"})
	if rw.Code != http.StatusBadRequest {
		t.Fatalf("inverted hours: expected 400, got %d", rw.Code)
	}

	rw = s.do(t, http.MethodPost, "/api/v1/admin/time-off", token, timeOffRequest{
		StaffID: created.ID, StartAt: "2024-06-03T07:00:00Z", EndAt: "2024-06-03T09:00:00Z", Reason: "training",
	})
	if rw.Code != http.StatusCreated {
		t.Fatalf("time off: expected 201, got %d: %s", rw.Code, rw.Body.String())
	}
	rw = s.do(t, http.MethodPost, "/api/v1/admin/time-off", token, timeOffRequest{StaffID: "ghost", StartAt: "2024-06-03T07:00:00Z", EndAt: "2024-06-03T09:00:00Z"})
	if rw.Code != http.StatusNotFound {
		t.Fatalf("unknown staff: expected 404, got %d", rw.Code)
	}

	// Ivo works 10:00-14:00 local with 10:00-12:00 off: only 12:00, 12:30 and 13:00 remain.
	rw = s.do(t, http.MethodGet, "/api/v1/public/availability?tenant=lila&service_id="+s.service.ID+"&date=2024-06-03", "", nil)
	var resp availabilityResponse
	decode(t, rw, &resp)
	if resp.StaffID != created.ID || len(resp.Slots) != 3 || resp.Slots[0].Label != "12:00" {
		t.Fatalf("unexpected availability for new default %+v", resp)
	}
}

func TestPublicRoutesUseLimiter(t *testing.T) {
	s := newTestServer(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bookings := booking.NewService(s.store, logger)
	mux := http.NewServeMux()
	Register(mux,
		NewPublicHandler(bookings, logger),
		NewLoginHandler(s.store, testSecret, time.Hour, logger),
		NewAdminHandler(bookings, calendar.NewProjector(s.store), roster.NewService(s.store), logger),
		NewJWTAuthorizer(testSecret),
		httpx.NewRateLimiter(1, time.Minute).Middleware(),
	)

	target := "/api/v1/public/availability?tenant=lila&service_id=" + s.service.ID + "&date=2024-06-03"
	first := httptest.NewRecorder()
	mux.ServeHTTP(first, httptest.NewRequest(http.MethodGet, target, nil))
	second := httptest.NewRecorder()
	mux.ServeHTTP(second, httptest.NewRequest(http.MethodGet, target, nil))
	if first.Code != http.StatusOK || second.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 200 then 429, got %d then %d", first.Code, second.Code)
	}

	// Admin routes are not limited: the second call still reaches requireAdmin.
	for i := 0; i < 2; i++ {
		rw := httptest.NewRecorder()
		mux.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/api/v1/admin/calendar?date=2024-06-03", nil))
		if rw.Code != http.StatusUnauthorized {
			t.Fatalf("admin call %d: expected 401, got %d", i+1, rw.Code)
		}
	}
}

func TestCreateBookingReplaysIdempotencyKey(t *testing.T) {
	s := newTestServer(t)
	body := createBookingRequest{
		Tenant:        "lila",
		ServiceID:     s.service.ID,
		StartAt:       "2024-06-03T06:00:00Z",
		CustomerName:  "Ana",
		CustomerPhone: "+359888123456",
		CustomerEmail: "ana@example.com",
	}
	post := func() (int, resultResponse) {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/public/bookings", bytes.NewReader(raw))
		req.Header.Set(IdempotencyKeyHeader, "checkout-42")
		rw := httptest.NewRecorder()
		s.handler.ServeHTTP(rw, req)
		var resp resultResponse
		decode(t, rw, &resp)
		return rw.Code, resp
	}

	code, first := post()
	if code != http.StatusCreated || first.BookingID == "" {
		t.Fatalf("expected 201 with id, got %d %+v", code, first)
	}
	code, retry := post()
	if code != http.StatusCreated || retry.BookingID != first.BookingID {
		t.Fatalf("retry: expected 201 with %s, got %d %+v", first.BookingID, code, retry)
	}

	body.StartAt = "2024-06-03T08:00:00Z"
	code, reused := post()
	if code != http.StatusBadRequest || reused.Reason != "invalid" {
		t.Fatalf("key reused for another slot: expected 400 invalid, got %d %+v", code, reused)
	}
}

func TestCreateBookingOutsideWorkingHours(t *testing.T) {
	s := newTestServer(t)
	// 03:00 local on the Monday.
	code, resp := s.book(t, "2024-06-03T00:00:00Z")
	if code != http.StatusBadRequest || resp.Reason != "invalid" || resp.Message == "" {
		t.Fatalf("expected 400 invalid, got %d %+v", code, resp)
	}
}

func TestRequestErrorsAreJSON(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/public/bookings", bytes.NewBufferString("{"))
	rw := httptest.NewRecorder()
	s.handler.ServeHTTP(rw, req)
	var bad errorResponse
	decode(t, rw, &bad)
	if rw.Code != http.StatusBadRequest || bad.Error != "invalid json body" {
		t.Fatalf("malformed json: expected 400 with json error, got %d %q", rw.Code, rw.Body.String())
	}

	rw = s.do(t, http.MethodGet, "/api/v1/public/bookings", "", nil)
	var notAllowed errorResponse
	decode(t, rw, &notAllowed)
	if rw.Code != http.StatusMethodNotAllowed || notAllowed.Error != "method not allowed" || rw.Header().Get("Allow") != http.MethodPost {
		t.Fatalf("wrong method: expected 405 with json error, got %d %q", rw.Code, rw.Body.String())
	}
	if ct := rw.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected application/json, got %q", ct)
	}
}
