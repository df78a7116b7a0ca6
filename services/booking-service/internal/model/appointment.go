package model

import "time"

type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
)

// Active reports whether a booking in this status blocks its staff member's time.
func (s BookingStatus) Active() bool {
	return s == StatusPending || s == StatusConfirmed
}

type Booking struct {
	ID            string
	TenantID      string
	StaffID       string
	ServiceID     string
	StartAt       time.Time
	EndAt         time.Time
	Status        BookingStatus
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	CustomerNote  string
	CancelToken   string
	CreatedAt     time.Time
	CancelledAt   *time.Time
}

// Overlaps reports whether [start, end) intersects the booking's interval.
func (b Booking) Overlaps(start, end time.Time) bool {
	return start.Before(b.EndAt) && b.StartAt.Before(end)
}

type TimeOff struct {
	ID      string
	StaffID string
	StartAt time.Time
	EndAt   time.Time
	Reason  string
}
