package availability

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/salonbook/platform/services/booking-service/internal/localtime"
	"github.com/salonbook/platform/services/booking-service/internal/model"
	"github.com/salonbook/platform/services/booking-service/internal/storage"
)

var (
	ErrTenantNotFound  = errors.New("tenant not found")
	ErrTenantInactive  = errors.New("tenant inactive")
	ErrServiceNotFound = errors.New("service not found")
	ErrStaffNotFound   = errors.New("staff not found")
	ErrNoDefaultStaff  = errors.New("no default staff configured")

	ErrOutsideWorkingHours = errors.New("outside working hours")
	ErrDuringTimeOff       = errors.New("staff unavailable")
)

// Directory is the read side the calculator needs. Every lookup is scoped to a tenant and
// returns storage.ErrNotFound for absent or foreign rows.
type Directory interface {
	TenantBySlug(ctx context.Context, slug string) (model.Tenant, error)
	Settings(ctx context.Context, tenantID string) (model.BookingSettings, error)
	Service(ctx context.Context, tenantID, serviceID string) (model.Service, error)
	Staff(ctx context.Context, tenantID, staffID string) (model.Staff, error)
	DefaultStaff(ctx context.Context, tenantID string) (model.Staff, error)
}

type Store interface {
	Directory
	WorkingHours(ctx context.Context, staffID string, weekday int) (model.WorkingHours, error)
	TimeOffBetween(ctx context.Context, staffID string, from, to time.Time) ([]model.TimeOff, error)
	ActiveBookingsBetween(ctx context.Context, staffID string, from, to time.Time) ([]model.Booking, error)
}

// Scope is a resolved tenant/service/staff triple with the tenant's policy.
type Scope struct {
	Tenant   model.Tenant
	Settings model.BookingSettings
	Location *time.Location
	Service  model.Service
	Staff    model.Staff
}

// Resolve loads tenant, settings, staff and service in that order. An empty staffID resolves the tenant's
// default active staff member.
// TODO: make staffID required once the public booking flow offers staff selection.
func Resolve(ctx context.Context, dir Directory, tenantSlug, serviceID, staffID string) (Scope, error) {
	var sc Scope
	tenant, err := dir.TenantBySlug(ctx, strings.TrimSpace(tenantSlug))
	if err != nil {
		if storage.IsNotFound(err) {
			return sc, ErrTenantNotFound
		}
		return sc, fmt.Errorf("load tenant: %w", err)
	}
	if !tenant.IsActive {
		return sc, ErrTenantInactive
	}
	sc.Tenant = tenant

	settings, err := dir.Settings(ctx, tenant.ID)
	if err != nil {
		if !storage.IsNotFound(err) {
			return sc, fmt.Errorf("load settings: %w", err)
		}
		settings = model.DefaultSettings()
	}
	sc.Settings = settings.WithDefaults()
	loc, err := localtime.LoadZone(sc.Settings.Timezone)
	if err != nil {
		return sc, err
	}
	sc.Location = loc

	staffID = strings.TrimSpace(staffID)
	var staff model.Staff
	if staffID == "" {
		staff, err = dir.DefaultStaff(ctx, tenant.ID)
		if storage.IsNotFound(err) {
			return sc, ErrNoDefaultStaff
		}
	} else {
		staff, err = dir.Staff(ctx, tenant.ID, staffID)
		if err == nil && !staff.IsActive {
			err = storage.ErrNotFound
		}
		if storage.IsNotFound(err) {
			return sc, ErrStaffNotFound
		}
	}
	if err != nil {
		return sc, fmt.Errorf("load staff: %w", err)
	}
	sc.Staff = staff

	service, err := dir.Service(ctx, tenant.ID, strings.TrimSpace(serviceID))
	if err != nil {
		if storage.IsNotFound(err) {
			return sc, ErrServiceNotFound
		}
		return sc, fmt.Errorf("load service: %w", err)
	}
	sc.Service = service
	return sc, nil
}

type Query struct {
	TenantSlug string
	ServiceID  string
	Date       string
	StaffID    string
	// ExcludeBookingID removes one booking from the blocking set (rescheduling it).
	ExcludeBookingID string
}

type Slot struct {
	Start time.Time
	End   time.Time
	Label string
}

type ServiceSummary struct {
	ID              string
	Name            string
	DurationMinutes int
	Price           *float64
	Currency        string
}

type Policy struct {
	SlotStepMinutes         int
	MinNoticeMinutes        int
	MaxDaysAhead            int
	CancellationCutoffHours int
}

type Result struct {
	TenantID     string
	StaffID      string
	BusinessName string
	Service      ServiceSummary
	Date         string
	Timezone     string
	Slots        []Slot
	Policy       Policy
}

// Calculator computes bookable start times for one local day. Its output is a
// point-in-time snapshot; the booking write re-checks atomically.
type Calculator struct {
	store Store
	now   func() time.Time
}

func NewCalculator(store Store, now func() time.Time) *Calculator {
	if now == nil {
		now = time.Now
	}
	return &Calculator{store: store, now: now}
}

func (c *Calculator) Slots(ctx context.Context, q Query) (Result, error) {
	sc, err := Resolve(ctx, c.store, q.TenantSlug, q.ServiceID, q.StaffID)
	if err != nil {
		return Result{}, err
	}
	return c.SlotsInScope(ctx, sc, q.Date, q.ExcludeBookingID)
}

// SlotsInScope runs the slot search for an already resolved scope.
func (c *Calculator) SlotsInScope(ctx context.Context, sc Scope, date, excludeBookingID string) (Result, error) {
	date = strings.TrimSpace(date)
	duration := sc.Service.Duration()
	res := Result{
		TenantID:     sc.Tenant.ID,
		StaffID:      sc.Staff.ID,
		BusinessName: sc.Tenant.BusinessName,
		Service: ServiceSummary{
			ID:              sc.Service.ID,
			Name:            sc.Service.Name,
			DurationMinutes: int(duration / time.Minute),
			Price:           sc.Service.Price,
			Currency:        sc.Settings.Currency,
		},
		Date:     date,
		Timezone: sc.Settings.Timezone,
		Slots:    []Slot{},
		Policy: Policy{
			SlotStepMinutes:         sc.Settings.SlotStepMinutes,
			MinNoticeMinutes:        sc.Settings.MinNoticeMinutes,
			MaxDaysAhead:            sc.Settings.MaxDaysAhead,
			CancellationCutoffHours: sc.Settings.CancellationCutoffHours,
		},
	}

	weekday, err := localtime.WeekdayIn(date, sc.Location)
	if err != nil {
		return Result{}, err
	}
	wh, err := c.store.WorkingHours(ctx, sc.Staff.ID, weekday)
	if err != nil {
		if storage.IsNotFound(err) {
			return res, nil
		}
		return Result{}, fmt.Errorf("load working hours: %w", err)
	}
	if wh.IsClosed {
		return res, nil
	}

	windowStart, err := localtime.LocalToUTCIn(date, wh.StartTime, sc.Location)
	if err != nil {
		return Result{}, err
	}
	windowEnd, err := localtime.LocalToUTCIn(date, wh.EndTime, sc.Location)
	if err != nil {
		return Result{}, err
	}
	if !windowEnd.After(windowStart) {
		return res, nil
	}

	dayStart, dayEnd, err := localtime.DayWindow(date, sc.Location)
	if err != nil {
		return Result{}, err
	}
	from, to := dayStart, dayEnd
	if windowStart.Before(from) {
		from = windowStart
	}
	if windowEnd.After(to) {
		to = windowEnd
	}

	busy, err := c.loadBusy(ctx, sc.Staff.ID, from, to, excludeBookingID)
	if err != nil {
		return Result{}, err
	}

	bounds := PolicyBounds(c.now(), sc.Settings)
	step := time.Duration(sc.Settings.SlotStepMinutes) * time.Minute
	for _, start := range AvailableSlots(windowStart, windowEnd, duration, step, busy, bounds) {
		res.Slots = append(res.Slots, Slot{
			Start: start,
			End:   start.Add(duration),
			Label: localtime.Label(start, sc.Location),
		})
	}
	return res, nil
}

func (c *Calculator) loadBusy(ctx context.Context, staffID string, from, to time.Time, excludeBookingID string) ([]Interval, error) {
	offs, err := c.store.TimeOffBetween(ctx, staffID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load time off: %w", err)
	}
	bookings, err := c.store.ActiveBookingsBetween(ctx, staffID, from, to)
	if err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}

	busy := make([]Interval, 0, len(offs)+len(bookings))
	for _, o := range offs {
		busy = append(busy, Interval{Start: o.StartAt, End: o.EndAt})
	}
	for _, b := range bookings {
		if excludeBookingID != "" && b.ID == excludeBookingID {
			continue
		}
		busy = append(busy, Interval{Start: b.StartAt, End: b.EndAt})
	}
	return busy, nil
}

// CheckWorkingTime verifies that [start, end) lies inside the staff member's working
// hours for the local day of start and clear of any time off.
func CheckWorkingTime(ctx context.Context, store Store, sc Scope, start, end time.Time) error {
	date := localtime.DateOf(start, sc.Location)
	weekday, err := localtime.WeekdayIn(date, sc.Location)
	if err != nil {
		return err
	}
	wh, err := store.WorkingHours(ctx, sc.Staff.ID, weekday)
	if err != nil {
		if storage.IsNotFound(err) {
			return ErrOutsideWorkingHours
		}
		return fmt.Errorf("load working hours: %w", err)
	}
	if wh.IsClosed {
		return ErrOutsideWorkingHours
	}
	windowStart, err := localtime.LocalToUTCIn(date, wh.StartTime, sc.Location)
	if err != nil {
		return err
	}
	windowEnd, err := localtime.LocalToUTCIn(date, wh.EndTime, sc.Location)
	if err != nil {
		return err
	}
	if start.Before(windowStart) || end.After(windowEnd) {
		return ErrOutsideWorkingHours
	}

	offs, err := store.TimeOffBetween(ctx, sc.Staff.ID, start, end)
	if err != nil {
		return fmt.Errorf("load time off: %w", err)
	}
	for _, o := range offs {
		if o.StartAt.Before(end) && o.EndAt.After(start) {
			return ErrDuringTimeOff
		}
	}
	return nil
}

// PolicyBounds is the bookable range for a tenant policy: from now plus the minimum
// notice to now plus the maximum days ahead.
func PolicyBounds(now time.Time, settings model.BookingSettings) Bounds {
	now = now.UTC()
	return Bounds{
		Earliest: localtime.AddMinutes(now, settings.MinNoticeMinutes),
		Latest:   localtime.AddMinutes(now, settings.MaxDaysAhead*24*60),
	}
}
