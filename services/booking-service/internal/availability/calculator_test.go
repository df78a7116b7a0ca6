package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/salonbook/platform/services/booking-service/internal/localtime"
	"github.com/salonbook/platform/services/booking-service/internal/model"
	"github.com/salonbook/platform/services/booking-service/internal/storage/memstore"
)

type calcFixture struct {
	store   *memstore.Store
	tenant  model.Tenant
	service model.Service
	staffID string
}

func newCalcFixture(t *testing.T, settings model.BookingSettings, durationMinutes int) *calcFixture {
	t.Helper()
	store := memstore.New()
	tenant := store.AddTenant(model.Tenant{Slug: "lila", BusinessName: "Studio Lila", IsActive: true})
	store.PutSettings(tenant.ID, settings)
	service := store.AddService(model.Service{TenantID: tenant.ID, Name: "Haircut", DurationMinutes: &durationMinutes})
	staffID, err := store.CreateStaff(context.Background(), model.Staff{TenantID: tenant.ID, Name: "Mira", IsActive: true, IsDefault: true})
	if err != nil {
		t.Fatalf("create staff: %v", err)
	}
	return &calcFixture{store: store, tenant: tenant, service: service, staffID: staffID}
}

func (f *calcFixture) hours(t *testing.T, weekday int, start, end string, closed bool) {
	t.Helper()
	err := f.store.UpsertWorkingHours(context.Background(), f.tenant.ID, model.WorkingHours{
		StaffID: f.staffID, Weekday: weekday, StartTime: start, EndTime: end, IsClosed: closed,
	})
	if err != nil {
		t.Fatalf("working hours: %v", err)
	}
}

func (f *calcFixture) slots(t *testing.T, now time.Time, date string) []string {
	t.Helper()
	c := NewCalculator(f.store, func() time.Time { return now })
	res, err := c.Slots(context.Background(), Query{TenantSlug: "lila", ServiceID: f.service.ID, Date: date})
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	out := make([]string, 0, len(res.Slots))
	for _, s := range res.Slots {
		out = append(out, s.Label)
	}
	return out
}

func sofia(maxDays int) model.BookingSettings {
	return model.BookingSettings{Timezone: "Europe/Sofia", SlotStepMinutes: 30, MinNoticeMinutes: 0, MaxDaysAhead: maxDays}
}

func assertLabels(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestSlots_EndToEndMorning(t *testing.T) {
	f := newCalcFixture(t, sofia(60), 60)
	f.hours(t, 1, "09:00", "12:00", false)

	got := f.slots(t, time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC), "2024-06-03")
	assertLabels(t, got, []string{"09:00", "09:30", "10:00", "10:30", "11:00"})
}

func TestSlots_ResultCarriesSummaryAndPolicy(t *testing.T) {
	f := newCalcFixture(t, sofia(60), 60)
	f.hours(t, 1, "09:00", "12:00", false)
	c := NewCalculator(f.store, func() time.Time { return time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC) })

	res, err := c.Slots(context.Background(), Query{TenantSlug: "lila", ServiceID: f.service.ID, Date: "2024-06-03"})
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	if res.TenantID != f.tenant.ID || res.StaffID != f.staffID || res.BusinessName != "Studio Lila" {
		t.Fatalf("unexpected identity fields %+v", res)
	}
	if res.Service.DurationMinutes != 60 || res.Service.Currency != model.DefaultCurrency {
		t.Fatalf("unexpected service summary %+v", res.Service)
	}
	if res.Timezone != "Europe/Sofia" || res.Date != "2024-06-03" {
		t.Fatalf("unexpected echo %q %q", res.Timezone, res.Date)
	}
	// A stored zero cutoff and zero notice are policies of their own, not unset fields.
	if res.Policy.SlotStepMinutes != 30 || res.Policy.MaxDaysAhead != 60 || res.Policy.CancellationCutoffHours != 0 || res.Policy.MinNoticeMinutes != 0 {
		t.Fatalf("unexpected policy echo %+v", res.Policy)
	}
	first := res.Slots[0]
	if !first.Start.Equal(time.Date(2024, 6, 3, 6, 0, 0, 0, time.UTC)) || !first.End.Equal(first.Start.Add(time.Hour)) {
		t.Fatalf("unexpected first slot %+v", first)
	}
}

func TestSlots_ClosedOrMissingDayIsEmpty(t *testing.T) {
	f := newCalcFixture(t, sofia(60), 60)
	f.hours(t, 1, "09:00", "12:00", true)
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	if got := f.slots(t, now, "2024-06-03"); len(got) != 0 {
		t.Fatalf("closed day should be empty, got %v", got)
	}
	// Tuesday has no row at all.
	if got := f.slots(t, now, "2024-06-04"); len(got) != 0 {
		t.Fatalf("missing day should be empty, got %v", got)
	}
}

func TestSlots_LeadTime(t *testing.T) {
	settings := sofia(60)
	settings.MinNoticeMinutes = 60
	f := newCalcFixture(t, settings, 30)
	f.hours(t, 1, "09:00", "13:00", false)

	// 10:00 local.
	got := f.slots(t, time.Date(2024, 6, 3, 7, 0, 0, 0, time.UTC), "2024-06-03")
	assertLabels(t, got, []string{"11:00", "11:30", "12:00", "12:30"})
}

func TestSlots_AcrossDST(t *testing.T) {
	f := newCalcFixture(t, sofia(365), 60)
	f.hours(t, 0, "09:00", "10:00", false)
	c := NewCalculator(f.store, func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) })

	for date, want := range map[string]time.Time{
		"2024-03-31": time.Date(2024, 3, 31, 6, 0, 0, 0, time.UTC),
		"2024-10-27": time.Date(2024, 10, 27, 7, 0, 0, 0, time.UTC),
	} {
		res, err := c.Slots(context.Background(), Query{TenantSlug: "lila", ServiceID: f.service.ID, Date: date})
		if err != nil {
			t.Fatalf("%s: %v", date, err)
		}
		if len(res.Slots) != 1 || !res.Slots[0].Start.Equal(want) {
			t.Fatalf("%s: expected single slot at %s, got %+v", date, want, res.Slots)
		}
		if res.Slots[0].Label != "09:00" {
			t.Fatalf("%s: expected label 09:00, got %s", date, res.Slots[0].Label)
		}
	}
}

func TestSlots_TimeOffAndBookingsBlock(t *testing.T) {
	f := newCalcFixture(t, sofia(60), 60)
	f.hours(t, 1, "09:00", "13:00", false)
	ctx := context.Background()

	_, err := f.store.CreateTimeOff(ctx, f.tenant.ID, model.TimeOff{
		StaffID: f.staffID,
		StartAt: time.Date(2024, 6, 3, 7, 0, 0, 0, time.UTC), // 10:00 local
		EndAt:   time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("time off: %v", err)
	}
	_, err = f.store.CreateBooking(ctx, model.Booking{
		TenantID: f.tenant.ID, StaffID: f.staffID, ServiceID: f.service.ID,
		StartAt: time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC), // 11:00 local
		EndAt:   time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC),
		Status:  model.StatusConfirmed,
	})
	if err != nil {
		t.Fatalf("booking: %v", err)
	}
	_, err = f.store.CreateBooking(ctx, model.Booking{
		TenantID: f.tenant.ID, StaffID: f.staffID, ServiceID: f.service.ID,
		StartAt: time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC), // 12:00 local, cancelled
		EndAt:   time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC),
		Status:  model.StatusCancelled,
	})
	if err != nil {
		t.Fatalf("cancelled booking: %v", err)
	}

	got := f.slots(t, time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC), "2024-06-03")
	assertLabels(t, got, []string{"09:00", "12:00"})
}

func TestSlots_Errors(t *testing.T) {
	f := newCalcFixture(t, sofia(60), 60)
	f.hours(t, 1, "09:00", "12:00", false)
	c := NewCalculator(f.store, nil)
	ctx := context.Background()

	if _, err := c.Slots(ctx, Query{TenantSlug: "nope", ServiceID: f.service.ID, Date: "2024-06-03"}); !errors.Is(err, ErrTenantNotFound) {
		t.Fatalf("expected ErrTenantNotFound, got %v", err)
	}
	if _, err := c.Slots(ctx, Query{TenantSlug: "lila", ServiceID: "nope", Date: "2024-06-03"}); !errors.Is(err, ErrServiceNotFound) {
		t.Fatalf("expected ErrServiceNotFound, got %v", err)
	}
	if _, err := c.Slots(ctx, Query{TenantSlug: "lila", ServiceID: f.service.ID, StaffID: "ghost", Date: "2024-06-03"}); !errors.Is(err, ErrStaffNotFound) {
		t.Fatalf("expected ErrStaffNotFound, got %v", err)
	}
	if _, err := c.Slots(ctx, Query{TenantSlug: "lila", ServiceID: f.service.ID, Date: "03/06/2024"}); !errors.Is(err, localtime.ErrInvalidTemporalInput) {
		t.Fatalf("expected ErrInvalidTemporalInput, got %v", err)
	}

	f.store.PutSettings(f.tenant.ID, model.BookingSettings{Timezone: "Mars/Olympus"})
	if _, err := c.Slots(ctx, Query{TenantSlug: "lila", ServiceID: f.service.ID, Date: "2024-06-03"}); !errors.Is(err, localtime.ErrInvalidTimezone) {
		t.Fatalf("expected ErrInvalidTimezone, got %v", err)
	}
}

func TestSlots_DefaultsWithoutSettingsRow(t *testing.T) {
	store := memstore.New()
	tenant := store.AddTenant(model.Tenant{Slug: "plain", BusinessName: "Plain", IsActive: true})
	service := store.AddService(model.Service{TenantID: tenant.ID, Name: "Trim"})
	staffID, _ := store.CreateStaff(context.Background(), model.Staff{TenantID: tenant.ID, Name: "Ivo", IsActive: true, IsDefault: true})
	_ = store.UpsertWorkingHours(context.Background(), tenant.ID, model.WorkingHours{StaffID: staffID, Weekday: 1, StartTime: "09:00", EndTime: "11:00"})

	c := NewCalculator(store, func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) })
	res, err := c.Slots(context.Background(), Query{TenantSlug: "plain", ServiceID: service.ID, Date: "2024-06-03"})
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	// UTC, 15 minute step, 60 minute default duration: 09:00 through 10:00.
	if len(res.Slots) != 5 || res.Timezone != model.DefaultTimezone {
		t.Fatalf("expected 5 default-policy slots in UTC, got %d (%s)", len(res.Slots), res.Timezone)
	}
	if res.Policy.CancellationCutoffHours != model.DefaultCancellationCutoffHours || res.Policy.MinNoticeMinutes != model.DefaultMinNoticeMinutes {
		t.Fatalf("expected default cutoff and notice without a settings row, got %+v", res.Policy)
	}
}

func TestCheckWorkingTime(t *testing.T) {
	f := newCalcFixture(t, sofia(60), 60)
	f.hours(t, 1, "09:00", "12:00", false)
	ctx := context.Background()
	if _, err := f.store.CreateTimeOff(ctx, f.tenant.ID, model.TimeOff{
		StaffID: f.staffID,
		StartAt: time.Date(2024, 6, 3, 7, 30, 0, 0, time.UTC), // 10:30 local
		EndAt:   time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC),
	}); err != nil {
		t.Fatalf("time off: %v", err)
	}
	sc, err := Resolve(ctx, f.store, "lila", f.service.ID, "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	cases := []struct {
		name  string
		start time.Time
		want  error
	}{
		{"opening", time.Date(2024, 6, 3, 6, 0, 0, 0, time.UTC), nil},
		{"ends at closing", time.Date(2024, 6, 3, 8, 0, 0, 0, time.UTC), nil},
		{"before opening", time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), ErrOutsideWorkingHours},
		{"runs past closing", time.Date(2024, 6, 3, 8, 30, 0, 0, time.UTC), ErrOutsideWorkingHours},
		{"day without hours", time.Date(2024, 6, 2, 7, 0, 0, 0, time.UTC), ErrOutsideWorkingHours},
		{"overlaps time off", time.Date(2024, 6, 3, 7, 0, 0, 0, time.UTC), ErrDuringTimeOff},
	}
	for _, tc := range cases {
		err := CheckWorkingTime(ctx, f.store, sc, tc.start, tc.start.Add(time.Hour))
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	f.hours(t, 1, "09:00", "12:00", true)
	if err := CheckWorkingTime(ctx, f.store, sc, time.Date(2024, 6, 3, 6, 0, 0, 0, time.UTC), time.Date(2024, 6, 3, 7, 0, 0, 0, time.UTC)); !errors.Is(err, ErrOutsideWorkingHours) {
		t.Fatalf("closed day: expected ErrOutsideWorkingHours, got %v", err)
	}
}
