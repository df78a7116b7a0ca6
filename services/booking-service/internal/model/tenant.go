package model

import "time"

type Tenant struct {
	ID           string
	Slug         string
	BusinessName string
	IsActive     bool
	AdminKeyHash string
}

type Staff struct {
	ID        string
	TenantID  string
	Name      string
	IsActive  bool
	IsDefault bool
}

const DefaultServiceDurationMinutes = 60

type Service struct {
	ID              string
	TenantID        string
	Name            string
	DurationMinutes *int
	Price           *float64
	Category        string
	SortOrder       int
}

// Duration falls back to one hour when the duration is unset or non-positive.
func (s Service) Duration() time.Duration {
	if s.DurationMinutes == nil || *s.DurationMinutes <= 0 {
		return DefaultServiceDurationMinutes * time.Minute
	}
	return time.Duration(*s.DurationMinutes) * time.Minute
}

// WorkingHours holds one weekday of a staff member's local schedule.
// Weekday follows time.Weekday (0 = Sunday).
type WorkingHours struct {
	StaffID   string
	Weekday   int
	StartTime string
	EndTime   string
	IsClosed  bool
}
