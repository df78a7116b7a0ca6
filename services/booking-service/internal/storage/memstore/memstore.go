// Package memstore is an in-process implementation of the booking stores.
//
// Overlap safety comes from a per-staff lane: every write for a staff member takes that
// lane's mutex, checks the committed intervals and writes before releasing it. Lock order
// is idemMu, then lane.mu, then Store.mu; nothing acquires a lane while holding Store.mu.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/salonbook/platform/services/booking-service/internal/model"
	"github.com/salonbook/platform/services/booking-service/internal/storage"
)

type lane struct {
	mu       sync.Mutex
	bookings map[string]*model.Booking
}

type Store struct {
	idemMu      sync.Mutex
	idempotency map[string]storage.IdempotencyRecord

	mu           sync.RWMutex
	tenants      map[string]model.Tenant
	slugs        map[string]string
	settings     map[string]model.BookingSettings
	services     map[string]model.Service
	staff        map[string]model.Staff
	hours        map[string]map[int]model.WorkingHours
	timeOff      map[string]model.TimeOff
	lanes        map[string]*lane
	bookingStaff map[string]string
	tokens       map[string]string
	now          func() time.Time
}

func New() *Store {
	return &Store{
		tenants:      map[string]model.Tenant{},
		slugs:        map[string]string{},
		settings:     map[string]model.BookingSettings{},
		services:     map[string]model.Service{},
		staff:        map[string]model.Staff{},
		hours:        map[string]map[int]model.WorkingHours{},
		timeOff:      map[string]model.TimeOff{},
		lanes:        map[string]*lane{},
		bookingStaff: map[string]string{},
		tokens:       map[string]string{},
		now:          time.Now,
		idempotency:  map[string]storage.IdempotencyRecord{},
	}
}

// AddTenant registers a tenant, assigning an id when empty.
func (s *Store) AddTenant(t model.Tenant) model.Tenant {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	s.tenants[t.ID] = t
	s.slugs[t.Slug] = t.ID
	return t
}

func (s *Store) PutSettings(tenantID string, settings model.BookingSettings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[tenantID] = settings
}

func (s *Store) AddService(svc model.Service) model.Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	if svc.ID == "" {
		svc.ID = uuid.NewString()
	}
	s.services[svc.ID] = svc
	return svc
}

func (s *Store) TenantBySlug(_ context.Context, slug string) (model.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.slugs[slug]
	if !ok {
		return model.Tenant{}, storage.ErrNotFound
	}
	return s.tenants[id], nil
}

func (s *Store) Settings(_ context.Context, tenantID string) (model.BookingSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.settings[tenantID]
	if !ok {
		return model.BookingSettings{}, storage.ErrNotFound
	}
	return st, nil
}

func (s *Store) Service(_ context.Context, tenantID, serviceID string) (model.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	svc, ok := s.services[serviceID]
	if !ok || svc.TenantID != tenantID {
		return model.Service{}, storage.ErrNotFound
	}
	return svc, nil
}

func (s *Store) Staff(_ context.Context, tenantID, staffID string) (model.Staff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.staff[staffID]
	if !ok || st.TenantID != tenantID {
		return model.Staff{}, storage.ErrNotFound
	}
	return st, nil
}

func (s *Store) DefaultStaff(_ context.Context, tenantID string) (model.Staff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range s.staff {
		if st.TenantID == tenantID && st.IsDefault && st.IsActive {
			return st, nil
		}
	}
	return model.Staff{}, storage.ErrNotFound
}

func (s *Store) WorkingHours(_ context.Context, staffID string, weekday int) (model.WorkingHours, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	wh, ok := s.hours[staffID][weekday]
	if !ok {
		return model.WorkingHours{}, storage.ErrNotFound
	}
	return wh, nil
}

func (s *Store) TimeOffBetween(_ context.Context, staffID string, from, to time.Time) ([]model.TimeOff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.TimeOff
	for _, t := range s.timeOff {
		if t.StaffID == staffID && t.EndAt.After(from) && t.StartAt.Before(to) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartAt.Before(out[j].StartAt) })
	return out, nil
}

func (s *Store) ActiveBookingsBetween(_ context.Context, staffID string, from, to time.Time) ([]model.Booking, error) {
	l := s.lane(staffID, false)
	if l == nil {
		return nil, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []model.Booking
	for _, b := range l.bookings {
		if b.Status.Active() && b.Overlaps(from, to) {
			out = append(out, *b)
		}
	}
	sortBookings(out)
	return out, nil
}

func (s *Store) lane(staffID string, create bool) *lane {
	if !create {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.lanes[staffID]
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lanes[staffID]
	if !ok {
		l = &lane{bookings: map[string]*model.Booking{}}
		s.lanes[staffID] = l
	}
	return l
}

func sortBookings(bs []model.Booking) {
	sort.Slice(bs, func(i, j int) bool {
		if bs[i].StartAt.Equal(bs[j].StartAt) {
			return bs[i].ID < bs[j].ID
		}
		return bs[i].StartAt.Before(bs[j].StartAt)
	})
}

// SetClock replaces the clock used for created_at and cancelled_at stamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) clock() time.Time {
	s.mu.RLock()
	now := s.now
	s.mu.RUnlock()
	return now()
}
