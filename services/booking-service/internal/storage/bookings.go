package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/salonbook/platform/services/booking-service/internal/model"
	"github.com/salonbook/platform/services/booking-service/internal/outbox"
)

const bookingColumns = `b.id::text, b.tenant_id::text, b.staff_id::text, b.service_id::text, b.start_at, b.end_at, b.status,
	b.customer_name, b.customer_phone, COALESCE(b.customer_email, ''), COALESCE(b.customer_note, ''),
	b.cancel_token, b.created_at, b.cancelled_at`

func scanBooking(row pgx.Row) (model.Booking, error) {
	var b model.Booking
	err := row.Scan(
		&b.ID,
		&b.TenantID,
		&b.StaffID,
		&b.ServiceID,
		&b.StartAt,
		&b.EndAt,
		&b.Status,
		&b.CustomerName,
		&b.CustomerPhone,
		&b.CustomerEmail,
		&b.CustomerNote,
		&b.CancelToken,
		&b.CreatedAt,
		&b.CancelledAt,
	)
	return b, err
}

// validID filters out ids Postgres would reject with a cast error; they cannot match a row.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// CreateBooking inserts b and its booked event. An overlapping active booking for the
// same staff member makes the insert fail with ErrSlotTaken.
func (r *Repository) CreateBooking(ctx context.Context, b model.Booking) (string, error) {
	var id string
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		id, err = r.insertBooking(ctx, tx, b)
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repository) insertBooking(ctx context.Context, tx pgx.Tx, b model.Booking) (string, error) {
	err := tx.QueryRow(ctx, `
		INSERT INTO bookings
			(tenant_id, staff_id, service_id, start_at, end_at, status,
			 customer_name, customer_phone, customer_email, customer_note, cancel_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''), $11)
		RETURNING id::text, created_at
	`, b.TenantID, b.StaffID, b.ServiceID, b.StartAt, b.EndAt, b.Status,
		b.CustomerName, b.CustomerPhone, b.CustomerEmail, b.CustomerNote, b.CancelToken).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		if IsConflict(err) {
			return "", ErrSlotTaken
		}
		return "", err
	}
	if err := r.emit(ctx, tx, outbox.EventBookingBooked, b); err != nil {
		return "", err
	}
	return b.ID, nil
}

func (r *Repository) Booking(ctx context.Context, tenantID, bookingID string) (model.Booking, error) {
	if !validID(bookingID) {
		return model.Booking{}, ErrNotFound
	}
	b, err := scanBooking(r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings b
		WHERE b.id = $1 AND b.tenant_id = $2
	`, bookingID, tenantID))
	if err != nil {
		return model.Booking{}, notFound(err)
	}
	return b, nil
}

// RescheduleBooking moves an active booking. The exclusion constraint only compares the
// new interval against other rows, so the booking never conflicts with itself.
func (r *Repository) RescheduleBooking(ctx context.Context, tenantID, bookingID string, start, end time.Time) (model.Booking, error) {
	if !validID(bookingID) {
		return model.Booking{}, ErrNotFound
	}
	var out model.Booking
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		b, err := scanBooking(tx.QueryRow(ctx, `
			UPDATE bookings b
			SET start_at = $3, end_at = $4, updated_at = now()
			WHERE b.id = $1 AND b.tenant_id = $2 AND b.status <> 'cancelled'
			RETURNING `+bookingColumns,
			bookingID, tenantID, start, end))
		if err != nil {
			if IsConflict(err) {
				return ErrSlotTaken
			}
			if IsNotFound(err) {
				return r.missingOrCancelled(ctx, tx, tenantID, bookingID)
			}
			return err
		}
		out = b
		return r.emit(ctx, tx, outbox.EventBookingRescheduled, b)
	})
	return out, err
}

// CancelBooking is idempotent: cancelling a cancelled booking returns it with changed=false.
func (r *Repository) CancelBooking(ctx context.Context, tenantID, bookingID string) (model.Booking, bool, error) {
	if !validID(bookingID) {
		return model.Booking{}, false, ErrNotFound
	}
	return r.cancel(ctx, `b.id = $1 AND b.tenant_id = $2`, bookingID, tenantID)
}

func (r *Repository) CancelBookingByToken(ctx context.Context, token string) (model.Booking, bool, error) {
	if token == "" {
		return model.Booking{}, false, ErrNotFound
	}
	return r.cancel(ctx, `b.cancel_token = $1`, token)
}

func (r *Repository) cancel(ctx context.Context, where string, args ...any) (model.Booking, bool, error) {
	var (
		out     model.Booking
		changed bool
	)
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		b, err := scanBooking(tx.QueryRow(ctx, `
			UPDATE bookings b
			SET status = 'cancelled', cancelled_at = now(), updated_at = now()
			WHERE `+where+` AND b.status <> 'cancelled'
			RETURNING `+bookingColumns,
			args...))
		if err == nil {
			out, changed = b, true
			return r.emit(ctx, tx, outbox.EventBookingCancelled, b)
		}
		if !IsNotFound(err) {
			return err
		}
		b, err = scanBooking(tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE `+where, args...))
		if err != nil {
			return notFound(err)
		}
		out = b
		return nil
	})
	return out, changed, err
}

// ConfirmBooking moves a pending booking to confirmed. Confirming twice is a no-op.
func (r *Repository) ConfirmBooking(ctx context.Context, tenantID, bookingID string) (model.Booking, bool, error) {
	if !validID(bookingID) {
		return model.Booking{}, false, ErrNotFound
	}
	var (
		out     model.Booking
		changed bool
	)
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		b, err := scanBooking(tx.QueryRow(ctx, `
			UPDATE bookings b
			SET status = 'confirmed', updated_at = now()
			WHERE b.id = $1 AND b.tenant_id = $2 AND b.status = 'pending'
			RETURNING `+bookingColumns,
			bookingID, tenantID))
		if err == nil {
			out, changed = b, true
			return r.emit(ctx, tx, outbox.EventBookingConfirmed, b)
		}
		if !IsNotFound(err) {
			return err
		}
		b, err = scanBooking(tx.QueryRow(ctx, `
			SELECT `+bookingColumns+` FROM bookings b WHERE b.id = $1 AND b.tenant_id = $2
		`, bookingID, tenantID))
		if err != nil {
			return notFound(err)
		}
		if b.Status == model.StatusCancelled {
			return ErrCancelled
		}
		out = b
		return nil
	})
	return out, changed, err
}

func (r *Repository) ActiveBookingsBetween(ctx context.Context, staffID string, from, to time.Time) ([]model.Booking, error) {
	if !validID(staffID) {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings b
		WHERE b.staff_id = $1
			AND b.status IN ('pending', 'confirmed')
			AND b.start_at < $3
			AND b.end_at > $2
		ORDER BY b.start_at ASC, b.id ASC
	`, staffID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// BookingsInWindow lists tenant bookings intersecting [from, to) with staff and service names.
func (r *Repository) BookingsInWindow(ctx context.Context, tenantID, staffID string, from, to time.Time, includeCancelled bool) ([]model.BookingDetail, error) {
	if staffID != "" && !validID(staffID) {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+`, s.name, COALESCE(sv.name, '')
		FROM bookings b
		JOIN staff s ON s.id = b.staff_id
		LEFT JOIN services sv ON sv.id = b.service_id
		WHERE b.tenant_id = $1
			AND ($2 = '' OR b.staff_id::text = $2)
			AND b.start_at < $4
			AND b.end_at > $3
			AND ($5 OR b.status <> 'cancelled')
		ORDER BY b.start_at ASC, b.id ASC
	`, tenantID, staffID, from, to, includeCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.BookingDetail
	for rows.Next() {
		var d model.BookingDetail
		if err := rows.Scan(
			&d.ID,
			&d.TenantID,
			&d.StaffID,
			&d.ServiceID,
			&d.StartAt,
			&d.EndAt,
			&d.Status,
			&d.CustomerName,
			&d.CustomerPhone,
			&d.CustomerEmail,
			&d.CustomerNote,
			&d.CancelToken,
			&d.CreatedAt,
			&d.CancelledAt,
			&d.StaffName,
			&d.ServiceName,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *Repository) missingOrCancelled(ctx context.Context, tx pgx.Tx, tenantID, bookingID string) error {
	var status model.BookingStatus
	err := tx.QueryRow(ctx, `SELECT status FROM bookings WHERE id = $1 AND tenant_id = $2`, bookingID, tenantID).Scan(&status)
	if err != nil {
		return notFound(err)
	}
	return ErrCancelled
}

// BookingEvent is the outbox payload for booking state changes.
type BookingEvent struct {
	BookingID  string    `json:"booking_id"`
	TenantID   string    `json:"tenant_id"`
	StaffID    string    `json:"staff_id"`
	ServiceID  string    `json:"service_id"`
	StartAt    time.Time `json:"start_at"`
	EndAt      time.Time `json:"end_at"`
	Status     string    `json:"status"`
	OccurredAt time.Time `json:"occurred_at"`
}

func (r *Repository) emit(ctx context.Context, tx pgx.Tx, eventType string, b model.Booking) error {
	if r.outbox == nil {
		return nil
	}
	payload, err := json.Marshal(BookingEvent{
		BookingID:  b.ID,
		TenantID:   b.TenantID,
		StaffID:    b.StaffID,
		ServiceID:  b.ServiceID,
		StartAt:    b.StartAt.UTC(),
		EndAt:      b.EndAt.UTC(),
		Status:     string(b.Status),
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: outbox.AggregateBooking,
		AggregateID:   b.ID,
		EventType:     eventType,
		Payload:       payload,
	})
}
