// Package roster manages staff, their weekly hours and time off for one tenant.
package roster

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/salonbook/platform/services/booking-service/internal/localtime"
	"github.com/salonbook/platform/services/booking-service/internal/model"
	"github.com/salonbook/platform/services/booking-service/internal/storage"
)

var (
	ErrInvalid  = errors.New("invalid roster input")
	ErrNotFound = errors.New("staff not found")
)

type Store interface {
	CreateStaff(ctx context.Context, st model.Staff) (string, error)
	SetDefaultStaff(ctx context.Context, tenantID, staffID string) error
	UpsertWorkingHours(ctx context.Context, tenantID string, wh model.WorkingHours) error
	CreateTimeOff(ctx context.Context, tenantID string, t model.TimeOff) (string, error)
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// CreateStaff adds an active staff member. isDefault moves the tenant default to the new member.
func (s *Service) CreateStaff(ctx context.Context, tenantID, name string, isDefault bool) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name is required", ErrInvalid)
	}
	id, err := s.store.CreateStaff(ctx, model.Staff{TenantID: tenantID, Name: name, IsActive: true, IsDefault: isDefault})
	return id, mapErr(err)
}

func (s *Service) SetDefaultStaff(ctx context.Context, tenantID, staffID string) error {
	staffID = strings.TrimSpace(staffID)
	if staffID == "" {
		return fmt.Errorf("%w: staff_id is required", ErrInvalid)
	}
	return mapErr(s.store.SetDefaultStaff(ctx, tenantID, staffID))
}

// SetWorkingHours replaces one weekday. Times are local HH:MM and "24:00" closes at
// midnight; an open day needs end after start.
func (s *Service) SetWorkingHours(ctx context.Context, tenantID string, wh model.WorkingHours) error {
	wh.StaffID = strings.TrimSpace(wh.StaffID)
	if wh.StaffID == "" {
		return fmt.Errorf("%w: staff_id is required", ErrInvalid)
	}
	if wh.Weekday < 0 || wh.Weekday > 6 {
		return fmt.Errorf("%w: weekday must be 0..6", ErrInvalid)
	}
	if wh.IsClosed && wh.StartTime == "" && wh.EndTime == "" {
		wh.StartTime, wh.EndTime = "00:00", "00:00"
	}
	sh, sm, err := localtime.ParseClock(wh.StartTime)
	if err != nil {
		return fmt.Errorf("%w: start_time: %v", ErrInvalid, err)
	}
	eh, em, err := localtime.ParseClock(wh.EndTime)
	if err != nil {
		return fmt.Errorf("%w: end_time: %v", ErrInvalid, err)
	}
	if !wh.IsClosed && eh*60+em <= sh*60+sm {
		return fmt.Errorf("%w: end_time must be after start_time", ErrInvalid)
	}
	wh.StartTime = fmt.Sprintf("%02d:%02d", sh, sm)
	wh.EndTime = fmt.Sprintf("%02d:%02d", eh, em)
	return mapErr(s.store.UpsertWorkingHours(ctx, tenantID, wh))
}

func (s *Service) AddTimeOff(ctx context.Context, tenantID string, t model.TimeOff) (string, error) {
	t.StaffID = strings.TrimSpace(t.StaffID)
	if t.StaffID == "" {
		return "", fmt.Errorf("%w: staff_id is required", ErrInvalid)
	}
	if t.StartAt.IsZero() || t.EndAt.IsZero() || !t.EndAt.After(t.StartAt) {
		return "", fmt.Errorf("%w: end_at must be after start_at", ErrInvalid)
	}
	t.StartAt = t.StartAt.UTC()
	t.EndAt = t.EndAt.UTC()
	t.Reason = strings.TrimSpace(t.Reason)
	id, err := s.store.CreateTimeOff(ctx, tenantID, t)
	return id, mapErr(err)
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if storage.IsNotFound(err) {
		return ErrNotFound
	}
	return err
}
