package memstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/salonbook/platform/services/booking-service/internal/model"
	"github.com/salonbook/platform/services/booking-service/internal/storage"
)

// CreateBooking inserts b if no active booking of the same staff overlaps it.
func (s *Store) CreateBooking(_ context.Context, b model.Booking) (string, error) {
	return s.insertBooking(b)
}

// CreateBookingIdempotent inserts b unless key already names a booking of the tenant, in
// which case the stored booking id is returned with replayed set.
func (s *Store) CreateBookingIdempotent(_ context.Context, b model.Booking, key storage.IdempotencyKey) (string, bool, error) {
	s.idemMu.Lock()
	defer s.idemMu.Unlock()

	ref := b.TenantID + "/" + key.Key
	if rec, ok := s.idempotency[ref]; ok {
		if rec.Fingerprint != key.Fingerprint {
			return "", false, storage.ErrIdempotencyMismatch
		}
		return rec.BookingID, true, nil
	}
	id, err := s.insertBooking(b)
	if err != nil {
		return "", false, err
	}
	s.idempotency[ref] = storage.IdempotencyRecord{
		TenantID:    b.TenantID,
		Key:         key.Key,
		Fingerprint: key.Fingerprint,
		BookingID:   id,
	}
	return id, false, nil
}

func (s *Store) IdempotentBooking(_ context.Context, tenantID, key string) (storage.IdempotencyRecord, error) {
	s.idemMu.Lock()
	defer s.idemMu.Unlock()
	rec, ok := s.idempotency[tenantID+"/"+key]
	if !ok {
		return storage.IdempotencyRecord{}, storage.ErrNotFound
	}
	return rec, nil
}

func (s *Store) insertBooking(b model.Booking) (string, error) {
	l := s.lane(b.StaffID, true)
	l.mu.Lock()
	defer l.mu.Unlock()

	if b.Status.Active() && l.conflicts(b.StartAt, b.EndAt, "") {
		return "", storage.ErrSlotTaken
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.clock().UTC()
	}
	stored := b
	l.bookings[b.ID] = &stored

	s.mu.Lock()
	s.bookingStaff[b.ID] = b.StaffID
	if b.CancelToken != "" {
		s.tokens[b.CancelToken] = b.ID
	}
	s.mu.Unlock()
	return b.ID, nil
}

func (s *Store) Booking(_ context.Context, tenantID, bookingID string) (model.Booking, error) {
	_, b, unlock, err := s.lockBooking(bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	defer unlock()
	if b.TenantID != tenantID {
		return model.Booking{}, storage.ErrNotFound
	}
	return *b, nil
}

// RescheduleBooking moves an active booking, ignoring its own current interval.
func (s *Store) RescheduleBooking(_ context.Context, tenantID, bookingID string, start, end time.Time) (model.Booking, error) {
	l, b, unlock, err := s.lockBooking(bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	defer unlock()
	if b.TenantID != tenantID {
		return model.Booking{}, storage.ErrNotFound
	}
	if !b.Status.Active() {
		return model.Booking{}, storage.ErrCancelled
	}
	if l.conflicts(start, end, b.ID) {
		return model.Booking{}, storage.ErrSlotTaken
	}
	b.StartAt = start
	b.EndAt = end
	return *b, nil
}

func (s *Store) CancelBooking(_ context.Context, tenantID, bookingID string) (model.Booking, bool, error) {
	_, b, unlock, err := s.lockBooking(bookingID)
	if err != nil {
		return model.Booking{}, false, err
	}
	defer unlock()
	if b.TenantID != tenantID {
		return model.Booking{}, false, storage.ErrNotFound
	}
	changed := s.cancelLocked(b)
	return *b, changed, nil
}

func (s *Store) CancelBookingByToken(_ context.Context, token string) (model.Booking, bool, error) {
	s.mu.RLock()
	bookingID, ok := s.tokens[token]
	s.mu.RUnlock()
	if !ok || token == "" {
		return model.Booking{}, false, storage.ErrNotFound
	}
	_, b, unlock, err := s.lockBooking(bookingID)
	if err != nil {
		return model.Booking{}, false, err
	}
	defer unlock()
	changed := s.cancelLocked(b)
	return *b, changed, nil
}

func (s *Store) ConfirmBooking(_ context.Context, tenantID, bookingID string) (model.Booking, bool, error) {
	_, b, unlock, err := s.lockBooking(bookingID)
	if err != nil {
		return model.Booking{}, false, err
	}
	defer unlock()
	if b.TenantID != tenantID {
		return model.Booking{}, false, storage.ErrNotFound
	}
	switch b.Status {
	case model.StatusCancelled:
		return model.Booking{}, false, storage.ErrCancelled
	case model.StatusConfirmed:
		return *b, false, nil
	}
	b.Status = model.StatusConfirmed
	return *b, true, nil
}

// BookingsInWindow lists tenant bookings intersecting [from, to), optionally for one staff member.
func (s *Store) BookingsInWindow(_ context.Context, tenantID, staffID string, from, to time.Time, includeCancelled bool) ([]model.BookingDetail, error) {
	s.mu.RLock()
	type laneRef struct {
		staff model.Staff
		lane  *lane
	}
	var refs []laneRef
	for id, l := range s.lanes {
		st, ok := s.staff[id]
		if !ok || st.TenantID != tenantID || (staffID != "" && id != staffID) {
			continue
		}
		refs = append(refs, laneRef{staff: st, lane: l})
	}
	serviceNames := make(map[string]string, len(s.services))
	for id, svc := range s.services {
		serviceNames[id] = svc.Name
	}
	s.mu.RUnlock()

	var out []model.BookingDetail
	for _, ref := range refs {
		ref.lane.mu.Lock()
		for _, b := range ref.lane.bookings {
			if b.TenantID != tenantID || !b.Overlaps(from, to) {
				continue
			}
			if !includeCancelled && !b.Status.Active() {
				continue
			}
			out = append(out, model.BookingDetail{
				Booking:     *b,
				StaffName:   ref.staff.Name,
				ServiceName: serviceNames[b.ServiceID],
			})
		}
		ref.lane.mu.Unlock()
	}
	return out, nil
}

func (s *Store) TimeOffInWindow(_ context.Context, tenantID, staffID string, from, to time.Time) ([]model.TimeOffDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.TimeOffDetail
	for _, t := range s.timeOff {
		st, ok := s.staff[t.StaffID]
		if !ok || st.TenantID != tenantID || (staffID != "" && t.StaffID != staffID) {
			continue
		}
		if t.EndAt.After(from) && t.StartAt.Before(to) {
			out = append(out, model.TimeOffDetail{TimeOff: t, StaffName: st.Name})
		}
	}
	return out, nil
}

func (s *Store) cancelLocked(b *model.Booking) bool {
	if b.Status == model.StatusCancelled {
		return false
	}
	now := s.clock().UTC()
	b.Status = model.StatusCancelled
	b.CancelledAt = &now
	return true
}

// lockBooking returns the booking with its lane locked; callers must call unlock.
func (s *Store) lockBooking(bookingID string) (*lane, *model.Booking, func(), error) {
	s.mu.RLock()
	staffID, ok := s.bookingStaff[bookingID]
	l := s.lanes[staffID]
	s.mu.RUnlock()
	if !ok || l == nil {
		return nil, nil, nil, storage.ErrNotFound
	}
	l.mu.Lock()
	b, ok := l.bookings[bookingID]
	if !ok {
		l.mu.Unlock()
		return nil, nil, nil, storage.ErrNotFound
	}
	return l, b, l.mu.Unlock, nil
}

func (l *lane) conflicts(start, end time.Time, excludeID string) bool {
	for id, b := range l.bookings {
		if id == excludeID || !b.Status.Active() {
			continue
		}
		if b.Overlaps(start, end) {
			return true
		}
	}
	return false
}
