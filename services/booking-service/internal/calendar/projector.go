// Package calendar projects bookings and time off into display events for an operator's
// day or week view. It never mutates anything.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/salonbook/platform/services/booking-service/internal/localtime"
	"github.com/salonbook/platform/services/booking-service/internal/model"
	"github.com/salonbook/platform/services/booking-service/internal/storage"
)

var (
	ErrTenantNotFound = errors.New("tenant not found")
	ErrInvalidMode    = errors.New("mode must be day or week")
)

type Mode string

const (
	ModeDay  Mode = "day"
	ModeWeek Mode = "week"
)

type EventType string

const (
	EventBooking EventType = "booking"
	EventTimeOff EventType = "time_off"
)

type Store interface {
	TenantBySlug(ctx context.Context, slug string) (model.Tenant, error)
	Settings(ctx context.Context, tenantID string) (model.BookingSettings, error)
	BookingsInWindow(ctx context.Context, tenantID, staffID string, from, to time.Time, includeCancelled bool) ([]model.BookingDetail, error)
	TimeOffInWindow(ctx context.Context, tenantID, staffID string, from, to time.Time) ([]model.TimeOffDetail, error)
}

type Query struct {
	TenantSlug string
	Mode       Mode
	Date       string
	// StaffID narrows the view to one staff member; empty shows everyone.
	StaffID          string
	IncludeCancelled bool
}

// Event is one block on the calendar. Booking-only fields are empty for time off.
type Event struct {
	ID        string
	Type      EventType
	Start     time.Time
	End       time.Time
	StaffID   string
	StaffName string

	Status        model.BookingStatus
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	CustomerNote  string
	ServiceID     string
	ServiceName   string

	Reason string
}

type View struct {
	Mode        Mode
	Date        string
	Timezone    string
	WindowStart time.Time
	WindowEnd   time.Time
	Events      []Event
}

type Projector struct {
	store Store
}

func NewProjector(store Store) *Projector {
	return &Projector{store: store}
}

func (p *Projector) Events(ctx context.Context, q Query) (View, error) {
	mode := Mode(strings.ToLower(strings.TrimSpace(string(q.Mode))))
	if mode == "" {
		mode = ModeDay
	}
	if mode != ModeDay && mode != ModeWeek {
		return View{}, ErrInvalidMode
	}

	tenant, err := p.store.TenantBySlug(ctx, strings.TrimSpace(q.TenantSlug))
	if err != nil {
		if storage.IsNotFound(err) {
			return View{}, ErrTenantNotFound
		}
		return View{}, fmt.Errorf("load tenant: %w", err)
	}
	settings, err := p.store.Settings(ctx, tenant.ID)
	if err != nil {
		if !storage.IsNotFound(err) {
			return View{}, fmt.Errorf("load settings: %w", err)
		}
		settings = model.DefaultSettings()
	}
	settings = settings.WithDefaults()
	loc, err := localtime.LoadZone(settings.Timezone)
	if err != nil {
		return View{}, err
	}

	date := strings.TrimSpace(q.Date)
	var from, to time.Time
	if mode == ModeWeek {
		from, to, err = localtime.WeekWindow(date, loc)
	} else {
		from, to, err = localtime.DayWindow(date, loc)
	}
	if err != nil {
		return View{}, err
	}

	staffID := strings.TrimSpace(q.StaffID)
	bookings, err := p.store.BookingsInWindow(ctx, tenant.ID, staffID, from, to, q.IncludeCancelled)
	if err != nil {
		return View{}, fmt.Errorf("load bookings: %w", err)
	}
	offs, err := p.store.TimeOffInWindow(ctx, tenant.ID, staffID, from, to)
	if err != nil {
		return View{}, fmt.Errorf("load time off: %w", err)
	}

	events := make([]Event, 0, len(bookings)+len(offs))
	for _, b := range bookings {
		if !intersects(b.StartAt, b.EndAt, from, to) {
			continue
		}
		if !q.IncludeCancelled && !b.Status.Active() {
			continue
		}
		events = append(events, bookingEvent(b))
	}
	for _, o := range offs {
		if !intersects(o.StartAt, o.EndAt, from, to) {
			continue
		}
		events = append(events, Event{
			ID:        o.ID,
			Type:      EventTimeOff,
			Start:     o.StartAt,
			End:       o.EndAt,
			StaffID:   o.StaffID,
			StaffName: o.StaffName,
			Reason:    o.Reason,
		})
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Start.Equal(events[j].Start) {
			return events[i].ID < events[j].ID
		}
		return events[i].Start.Before(events[j].Start)
	})

	return View{
		Mode:        mode,
		Date:        date,
		Timezone:    settings.Timezone,
		WindowStart: from,
		WindowEnd:   to,
		Events:      events,
	}, nil
}

func bookingEvent(b model.BookingDetail) Event {
	return Event{
		ID:            b.ID,
		Type:          EventBooking,
		Start:         b.StartAt,
		End:           b.EndAt,
		StaffID:       b.StaffID,
		StaffName:     b.StaffName,
		Status:        b.Status,
		CustomerName:  b.CustomerName,
		CustomerPhone: b.CustomerPhone,
		CustomerEmail: b.CustomerEmail,
		CustomerNote:  b.CustomerNote,
		ServiceID:     b.ServiceID,
		ServiceName:   b.ServiceName,
	}
}

// intersects is start < windowEnd && end > windowStart.
func intersects(start, end, windowStart, windowEnd time.Time) bool {
	return start.Before(windowEnd) && end.After(windowStart)
}
