package memstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/salonbook/platform/services/booking-service/internal/model"
	"github.com/salonbook/platform/services/booking-service/internal/storage"
)

// CreateStaff adds a staff member. A default staff member replaces the tenant's previous default.
func (s *Store) CreateStaff(_ context.Context, st model.Staff) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[st.TenantID]; !ok {
		return "", storage.ErrNotFound
	}
	if st.ID == "" {
		st.ID = uuid.NewString()
	}
	if st.IsDefault {
		s.clearDefaultLocked(st.TenantID)
	}
	s.staff[st.ID] = st
	return st.ID, nil
}

func (s *Store) SetDefaultStaff(_ context.Context, tenantID, staffID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.staff[staffID]
	if !ok || st.TenantID != tenantID {
		return storage.ErrNotFound
	}
	s.clearDefaultLocked(tenantID)
	st.IsDefault = true
	s.staff[staffID] = st
	return nil
}

func (s *Store) UpsertWorkingHours(_ context.Context, tenantID string, wh model.WorkingHours) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.staff[wh.StaffID]
	if !ok || st.TenantID != tenantID {
		return storage.ErrNotFound
	}
	days, ok := s.hours[wh.StaffID]
	if !ok {
		days = map[int]model.WorkingHours{}
		s.hours[wh.StaffID] = days
	}
	days[wh.Weekday] = wh
	return nil
}

func (s *Store) CreateTimeOff(_ context.Context, tenantID string, t model.TimeOff) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.staff[t.StaffID]
	if !ok || st.TenantID != tenantID {
		return "", storage.ErrNotFound
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	s.timeOff[t.ID] = t
	return t.ID, nil
}

func (s *Store) clearDefaultLocked(tenantID string) {
	for id, other := range s.staff {
		if other.TenantID == tenantID && other.IsDefault {
			other.IsDefault = false
			s.staff[id] = other
		}
	}
}
