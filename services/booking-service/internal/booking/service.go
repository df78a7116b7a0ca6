// Package booking commits, moves, cancels and confirms bookings. The store's conditional
// write is the only check against other bookings; nothing here reads busy slots before
// writing.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/salonbook/platform/services/booking-service/internal/availability"
	"github.com/salonbook/platform/services/booking-service/internal/localtime"
	"github.com/salonbook/platform/services/booking-service/internal/model"
	"github.com/salonbook/platform/services/booking-service/internal/notify"
	"github.com/salonbook/platform/services/booking-service/internal/storage"
)

var (
	ErrBookingNotFound  = errors.New("booking not found")
	ErrBookingCancelled = errors.New("booking cancelled")
)

// Store is implemented by storage.Repository and memstore.Store.
type Store interface {
	availability.Store
	CreateBooking(ctx context.Context, b model.Booking) (string, error)
	CreateBookingIdempotent(ctx context.Context, b model.Booking, key storage.IdempotencyKey) (string, bool, error)
	IdempotentBooking(ctx context.Context, tenantID, key string) (storage.IdempotencyRecord, error)
	Booking(ctx context.Context, tenantID, bookingID string) (model.Booking, error)
	RescheduleBooking(ctx context.Context, tenantID, bookingID string, start, end time.Time) (model.Booking, error)
	CancelBooking(ctx context.Context, tenantID, bookingID string) (model.Booking, bool, error)
	CancelBookingByToken(ctx context.Context, token string) (model.Booking, bool, error)
	ConfirmBooking(ctx context.Context, tenantID, bookingID string) (model.Booking, bool, error)
}

type Service struct {
	store    Store
	calc     *availability.Calculator
	notifier notify.Notifier
	logger   *slog.Logger
	now      func() time.Time
	newToken func() (string, error)
	tracer   trace.Tracer
}

type Option func(*Service)

func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithTokenSource(fn func() (string, error)) Option {
	return func(s *Service) {
		if fn != nil {
			s.newToken = fn
		}
	}
}

func NewService(store Store, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:    store,
		notifier: notify.Nop{},
		logger:   logger,
		now:      time.Now,
		newToken: NewCancelToken,
		tracer:   otel.Tracer("booking-service/booking"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.calc = availability.NewCalculator(store, s.now)
	return s
}

// Calculator exposes the availability calculator sharing this service's store and clock.
func (s *Service) Calculator() *availability.Calculator {
	return s.calc
}

type CreateRequest struct {
	TenantSlug string
	ServiceID  string
	// StaffID is optional; empty books the tenant's default staff member.
	StaffID  string
	StartAt  string
	Customer Customer
	// IdempotencyKey makes retries of the same request return the first booking.
	IdempotencyKey string
}

// Create books a slot for a customer. The result distinguishes caller mistakes (invalid)
// from a lost race (slot_taken) and setup or store failures (server_error).
func (s *Service) Create(ctx context.Context, req CreateRequest) Result {
	ctx, span := s.tracer.Start(ctx, "booking.create", trace.WithAttributes(
		attribute.String("tenant.slug", req.TenantSlug),
		attribute.String("service.id", req.ServiceID),
	))
	defer span.End()

	sc, err := availability.Resolve(ctx, s.store, req.TenantSlug, req.ServiceID, req.StaffID)
	if err != nil {
		return s.finish(span, s.resolveFailure(ctx, "create", err))
	}

	start, err := parseStart(req.StartAt)
	if err != nil {
		return s.finish(span, fail(ReasonInvalid, msgInvalidStart))
	}
	duration := sc.Service.Duration()
	end := start.Add(duration)

	customer := req.Customer.normalized()
	if msg := customer.validate(); msg != "" {
		return s.finish(span, fail(ReasonInvalid, msg))
	}

	var idem storage.IdempotencyKey
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		if len(key) > MaxIdempotencyKeyLen {
			return s.finish(span, fail(ReasonInvalid, msgIdempotencyKey))
		}
		idem = storage.IdempotencyKey{Key: key, Fingerprint: requestFingerprint(req, start, customer)}
		if res, done := s.replay(ctx, span, sc.Tenant.ID, idem); done {
			return s.finish(span, res)
		}
	}

	if !availability.PolicyBounds(s.now(), sc.Settings).Allows(start) {
		return s.finish(span, fail(ReasonInvalid, msgOutsideWindow))
	}
	if err := availability.CheckWorkingTime(ctx, s.store, sc, start, end); err != nil {
		switch {
		case errors.Is(err, availability.ErrOutsideWorkingHours):
			return s.finish(span, fail(ReasonInvalid, msgOutsideHours))
		case errors.Is(err, availability.ErrDuringTimeOff):
			return s.finish(span, fail(ReasonInvalid, msgStaffUnavailable))
		}
		s.logger.ErrorContext(ctx, "working time check failed", "tenant_id", sc.Tenant.ID, "staff_id", sc.Staff.ID, "err", err)
		return s.finish(span, fail(ReasonServerError, msgServerError))
	}

	token, err := s.newToken()
	if err != nil {
		s.logger.ErrorContext(ctx, "cancel token generation failed", "err", err)
		return s.finish(span, fail(ReasonServerError, msgServerError))
	}

	b := model.Booking{
		TenantID:      sc.Tenant.ID,
		StaffID:       sc.Staff.ID,
		ServiceID:     sc.Service.ID,
		StartAt:       start,
		EndAt:         end,
		Status:        model.StatusPending,
		CustomerName:  customer.Name,
		CustomerPhone: customer.Phone,
		CustomerEmail: customer.Email,
		CustomerNote:  customer.Note,
		CancelToken:   token,
	}
	id, replayed, err := s.insert(ctx, b, idem)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrSlotTaken):
			return s.finish(span, fail(ReasonSlotTaken, msgSlotTaken))
		case errors.Is(err, storage.ErrIdempotencyMismatch):
			return s.finish(span, fail(ReasonInvalid, msgIdempotencyReused))
		}
		s.logger.ErrorContext(ctx, "create booking failed", "tenant_id", sc.Tenant.ID, "staff_id", sc.Staff.ID, "err", err)
		return s.finish(span, fail(ReasonServerError, msgServerError))
	}
	span.SetAttributes(attribute.String("booking.id", id))
	if replayed {
		// A concurrent request under the same key committed first.
		s.logger.InfoContext(ctx, "booking create replayed", "booking_id", id, "tenant_id", sc.Tenant.ID)
		return s.finish(span, ok(id))
	}
	s.logger.InfoContext(ctx, "booking created", "booking_id", id, "tenant_id", sc.Tenant.ID, "staff_id", sc.Staff.ID, "start_at", start)

	err = s.notifier.BookingCreated(ctx, notify.BookingCreated{
		To:           customer.Email,
		CustomerName: customer.Name,
		BusinessName: sc.Tenant.BusinessName,
		ServiceName:  sc.Service.Name,
		StartAt:      start,
		Location:     sc.Location,
		CancelToken:  token,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "booking confirmation email failed", "booking_id", id, "err", err)
	}
	return s.finish(span, ok(id))
}

// Reschedule moves a booking to a new start keeping its service duration. The booking's
// own current interval never blocks the move.
func (s *Service) Reschedule(ctx context.Context, tenantSlug, bookingID, startAt string) Result {
	ctx, span := s.tracer.Start(ctx, "booking.reschedule", trace.WithAttributes(
		attribute.String("tenant.slug", tenantSlug),
		attribute.String("booking.id", bookingID),
	))
	defer span.End()

	tenant, res, found := s.tenant(ctx, tenantSlug)
	if !found {
		return s.finish(span, res)
	}
	b, err := s.store.Booking(ctx, tenant.ID, strings.TrimSpace(bookingID))
	if err != nil {
		return s.finish(span, s.storeFailure(ctx, "reschedule", err))
	}
	if b.Status == model.StatusCancelled {
		return s.finish(span, fail(ReasonInvalid, msgCancelled))
	}

	service, err := s.store.Service(ctx, tenant.ID, b.ServiceID)
	if err != nil {
		s.logger.ErrorContext(ctx, "load booking service failed", "booking_id", b.ID, "service_id", b.ServiceID, "err", err)
		return s.finish(span, fail(ReasonServerError, msgServerError))
	}
	start, err := parseStart(startAt)
	if err != nil {
		return s.finish(span, fail(ReasonInvalid, msgInvalidStart))
	}
	end := start.Add(service.Duration())

	if _, err := s.store.RescheduleBooking(ctx, tenant.ID, b.ID, start, end); err != nil {
		return s.finish(span, s.storeFailure(ctx, "reschedule", err))
	}
	s.logger.InfoContext(ctx, "booking rescheduled", "booking_id", b.ID, "tenant_id", tenant.ID, "start_at", start)
	return s.finish(span, ok(b.ID))
}

// RescheduleSlots lists the slots a booking could move to on date, ignoring the booking itself.
func (s *Service) RescheduleSlots(ctx context.Context, tenantSlug, bookingID, date string) (availability.Result, error) {
	ctx, span := s.tracer.Start(ctx, "booking.reschedule_slots")
	defer span.End()

	tenant, err := s.store.TenantBySlug(ctx, strings.TrimSpace(tenantSlug))
	if err != nil {
		if storage.IsNotFound(err) {
			return availability.Result{}, availability.ErrTenantNotFound
		}
		return availability.Result{}, err
	}
	if !tenant.IsActive {
		return availability.Result{}, availability.ErrTenantInactive
	}
	b, err := s.store.Booking(ctx, tenant.ID, strings.TrimSpace(bookingID))
	if err != nil {
		if storage.IsNotFound(err) {
			return availability.Result{}, ErrBookingNotFound
		}
		return availability.Result{}, err
	}
	if b.Status == model.StatusCancelled {
		return availability.Result{}, ErrBookingCancelled
	}
	sc, err := availability.Resolve(ctx, s.store, tenant.Slug, b.ServiceID, b.StaffID)
	if err != nil {
		return availability.Result{}, err
	}
	return s.calc.SlotsInScope(ctx, sc, date, b.ID)
}

// CancelByToken cancels through the customer's self-service link. Cancelling twice succeeds.
func (s *Service) CancelByToken(ctx context.Context, token string) Result {
	ctx, span := s.tracer.Start(ctx, "booking.cancel_by_token")
	defer span.End()

	token = strings.TrimSpace(token)
	if token == "" {
		return s.finish(span, fail(ReasonNotFound, msgBookingNotFound))
	}
	b, changed, err := s.store.CancelBookingByToken(ctx, token)
	if err != nil {
		return s.finish(span, s.storeFailure(ctx, "cancel", err))
	}
	if changed {
		s.logger.InfoContext(ctx, "booking cancelled", "booking_id", b.ID, "tenant_id", b.TenantID, "via", "token")
	}
	return s.finish(span, ok(b.ID))
}

// CancelByID is the operator path. Bookings of other tenants are reported as not found.
func (s *Service) CancelByID(ctx context.Context, tenantSlug, bookingID string) Result {
	ctx, span := s.tracer.Start(ctx, "booking.cancel", trace.WithAttributes(attribute.String("booking.id", bookingID)))
	defer span.End()

	tenant, res, found := s.tenant(ctx, tenantSlug)
	if !found {
		return s.finish(span, res)
	}
	b, changed, err := s.store.CancelBooking(ctx, tenant.ID, strings.TrimSpace(bookingID))
	if err != nil {
		return s.finish(span, s.storeFailure(ctx, "cancel", err))
	}
	if changed {
		s.logger.InfoContext(ctx, "booking cancelled", "booking_id", b.ID, "tenant_id", tenant.ID, "via", "admin")
	}
	return s.finish(span, ok(b.ID))
}

// Confirm moves a pending booking to confirmed. Confirming a cancelled booking is invalid.
func (s *Service) Confirm(ctx context.Context, tenantSlug, bookingID string) Result {
	ctx, span := s.tracer.Start(ctx, "booking.confirm", trace.WithAttributes(attribute.String("booking.id", bookingID)))
	defer span.End()

	tenant, res, found := s.tenant(ctx, tenantSlug)
	if !found {
		return s.finish(span, res)
	}
	b, changed, err := s.store.ConfirmBooking(ctx, tenant.ID, strings.TrimSpace(bookingID))
	if err != nil {
		return s.finish(span, s.storeFailure(ctx, "confirm", err))
	}
	if changed {
		s.logger.InfoContext(ctx, "booking confirmed", "booking_id", b.ID, "tenant_id", tenant.ID)
	}
	return s.finish(span, ok(b.ID))
}

func (s *Service) tenant(ctx context.Context, slug string) (model.Tenant, Result, bool) {
	t, err := s.store.TenantBySlug(ctx, strings.TrimSpace(slug))
	if err == nil {
		if !t.IsActive {
			return model.Tenant{}, fail(ReasonNotFound, msgTenantNotFound), false
		}
		return t, Result{}, true
	}
	if storage.IsNotFound(err) {
		return model.Tenant{}, fail(ReasonNotFound, msgTenantNotFound), false
	}
	s.logger.ErrorContext(ctx, "load tenant failed", "tenant_slug", slug, "err", err)
	return model.Tenant{}, fail(ReasonServerError, msgServerError), false
}

func (s *Service) resolveFailure(ctx context.Context, op string, err error) Result {
	switch {
	case errors.Is(err, availability.ErrTenantNotFound), errors.Is(err, availability.ErrTenantInactive):
		return fail(ReasonInvalid, msgTenantNotFound)
	case errors.Is(err, availability.ErrServiceNotFound):
		return fail(ReasonInvalid, msgServiceNotFound)
	case errors.Is(err, availability.ErrStaffNotFound):
		return fail(ReasonInvalid, msgStaffNotFound)
	}
	// No default staff or a bad tenant timezone is a setup problem, not a caller mistake.
	s.logger.ErrorContext(ctx, "booking scope resolution failed", "op", op, "err", err)
	return fail(ReasonServerError, msgServerError)
}

func (s *Service) storeFailure(ctx context.Context, op string, err error) Result {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fail(ReasonNotFound, msgBookingNotFound)
	case errors.Is(err, storage.ErrSlotTaken):
		return fail(ReasonSlotTaken, msgSlotTaken)
	case errors.Is(err, storage.ErrCancelled):
		return fail(ReasonInvalid, msgCancelled)
	}
	s.logger.ErrorContext(ctx, "booking store failed", "op", op, "err", err)
	return fail(ReasonServerError, msgServerError)
}

func (s *Service) finish(span trace.Span, res Result) Result {
	span.SetAttributes(attribute.String("booking.outcome", string(res.Reason)))
	if res.Reason == ReasonServerError {
		span.SetStatus(codes.Error, res.Message)
	}
	return res
}

func parseStart(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, fmt.Errorf("%w: empty start", localtime.ErrInvalidTemporalInput)
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", localtime.ErrInvalidTemporalInput, err)
	}
	return t.UTC(), nil
}
