package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/salonbook/platform/libs/db"
	"github.com/salonbook/platform/services/booking-service/internal/model"
)

// CreateStaff inserts a staff member. A new default replaces the tenant's previous default
// in the same transaction, so a tenant never has two.
func (r *Repository) CreateStaff(ctx context.Context, st model.Staff) (string, error) {
	var id string
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		if st.IsDefault {
			if err := clearDefault(ctx, tx, st.TenantID); err != nil {
				return err
			}
		}
		err := tx.QueryRow(ctx, `
			INSERT INTO staff (tenant_id, name, is_active, is_default)
			VALUES ($1, $2, $3, $4)
			RETURNING id::text
		`, st.TenantID, st.Name, st.IsActive, st.IsDefault).Scan(&id)
		if db.IsForeignKeyViolation(err) {
			return ErrNotFound
		}
		return err
	})
	return id, err
}

func (r *Repository) SetDefaultStaff(ctx context.Context, tenantID, staffID string) error {
	if !validID(staffID) {
		return ErrNotFound
	}
	return r.withTx(ctx, func(tx pgx.Tx) error {
		if err := clearDefault(ctx, tx, tenantID); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `
			UPDATE staff SET is_default = true
			WHERE id = $1 AND tenant_id = $2
		`, staffID, tenantID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// UpsertWorkingHours replaces one weekday of a staff member's schedule.
func (r *Repository) UpsertWorkingHours(ctx context.Context, tenantID string, wh model.WorkingHours) error {
	if !validID(wh.StaffID) {
		return ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO working_hours (staff_id, weekday, start_time, end_time, is_closed)
		SELECT s.id, $3, $4::time, $5::time, $6
		FROM staff s
		WHERE s.id = $1 AND s.tenant_id = $2
		ON CONFLICT (staff_id, weekday) DO UPDATE
		SET start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			is_closed = EXCLUDED.is_closed
	`, wh.StaffID, tenantID, wh.Weekday, wh.StartTime, wh.EndTime, wh.IsClosed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) CreateTimeOff(ctx context.Context, tenantID string, t model.TimeOff) (string, error) {
	if !validID(t.StaffID) {
		return "", ErrNotFound
	}
	var id string
	err := r.pool.QueryRow(ctx, `
		INSERT INTO time_off (staff_id, start_at, end_at, reason)
		SELECT s.id, $3, $4, NULLIF($5, '')
		FROM staff s
		WHERE s.id = $1 AND s.tenant_id = $2
		RETURNING id::text
	`, t.StaffID, tenantID, t.StartAt, t.EndAt, t.Reason).Scan(&id)
	if err != nil {
		return "", notFound(err)
	}
	return id, nil
}

func clearDefault(ctx context.Context, tx pgx.Tx, tenantID string) error {
	_, err := tx.Exec(ctx, `UPDATE staff SET is_default = false WHERE tenant_id = $1 AND is_default`, tenantID)
	return err
}
