package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/salonbook/platform/libs/db"
	"github.com/salonbook/platform/services/booking-service/internal/model"
	"github.com/salonbook/platform/services/booking-service/internal/outbox"
)

// Repository is the Postgres store. The bookings overlap rule lives in the
// bookings_no_overlap exclusion constraint, so every booking write is a single statement.
type Repository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewRepository(pool *db.Pool, outboxRepo *outbox.Repository) *Repository {
	return &Repository{pool: pool, outbox: outboxRepo}
}

func (r *Repository) TenantBySlug(ctx context.Context, slug string) (model.Tenant, error) {
	var t model.Tenant
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, slug, business_name, is_active, COALESCE(admin_key_hash, '')
		FROM tenants
		WHERE slug = $1
	`, slug).Scan(&t.ID, &t.Slug, &t.BusinessName, &t.IsActive, &t.AdminKeyHash)
	if err != nil {
		return model.Tenant{}, notFound(err)
	}
	return t, nil
}

func (r *Repository) Settings(ctx context.Context, tenantID string) (model.BookingSettings, error) {
	var s model.BookingSettings
	err := r.pool.QueryRow(ctx, `
		SELECT timezone, slot_step_minutes, min_notice_minutes, max_days_ahead, cancellation_cutoff_hours, currency
		FROM booking_settings
		WHERE tenant_id = $1
	`, tenantID).Scan(&s.Timezone, &s.SlotStepMinutes, &s.MinNoticeMinutes, &s.MaxDaysAhead, &s.CancellationCutoffHours, &s.Currency)
	if err != nil {
		return model.BookingSettings{}, notFound(err)
	}
	return s, nil
}

func (r *Repository) Service(ctx context.Context, tenantID, serviceID string) (model.Service, error) {
	if !validID(serviceID) {
		return model.Service{}, ErrNotFound
	}
	var s model.Service
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, tenant_id::text, name, duration_minutes, price::float8, COALESCE(category, ''), sort_order
		FROM services
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, serviceID).Scan(&s.ID, &s.TenantID, &s.Name, &s.DurationMinutes, &s.Price, &s.Category, &s.SortOrder)
	if err != nil {
		return model.Service{}, notFound(err)
	}
	return s, nil
}

func (r *Repository) Staff(ctx context.Context, tenantID, staffID string) (model.Staff, error) {
	if !validID(staffID) {
		return model.Staff{}, ErrNotFound
	}
	var s model.Staff
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, tenant_id::text, name, is_active, is_default
		FROM staff
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, staffID).Scan(&s.ID, &s.TenantID, &s.Name, &s.IsActive, &s.IsDefault)
	if err != nil {
		return model.Staff{}, notFound(err)
	}
	return s, nil
}

func (r *Repository) DefaultStaff(ctx context.Context, tenantID string) (model.Staff, error) {
	var s model.Staff
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, tenant_id::text, name, is_active, is_default
		FROM staff
		WHERE tenant_id = $1 AND is_default AND is_active
		ORDER BY created_at ASC
		LIMIT 1
	`, tenantID).Scan(&s.ID, &s.TenantID, &s.Name, &s.IsActive, &s.IsDefault)
	if err != nil {
		return model.Staff{}, notFound(err)
	}
	return s, nil
}

func (r *Repository) WorkingHours(ctx context.Context, staffID string, weekday int) (model.WorkingHours, error) {
	if !validID(staffID) {
		return model.WorkingHours{}, ErrNotFound
	}
	var wh model.WorkingHours
	err := r.pool.QueryRow(ctx, `
		SELECT staff_id::text, weekday, to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'), is_closed
		FROM working_hours
		WHERE staff_id = $1 AND weekday = $2
	`, staffID, weekday).Scan(&wh.StaffID, &wh.Weekday, &wh.StartTime, &wh.EndTime, &wh.IsClosed)
	if err != nil {
		return model.WorkingHours{}, notFound(err)
	}
	return wh, nil
}

func (r *Repository) TimeOffBetween(ctx context.Context, staffID string, from, to time.Time) ([]model.TimeOff, error) {
	if !validID(staffID) {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, staff_id::text, start_at, end_at, COALESCE(reason, '')
		FROM time_off
		WHERE staff_id = $1
			AND end_at > $2
			AND start_at < $3
		ORDER BY start_at ASC
	`, staffID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TimeOff
	for rows.Next() {
		var t model.TimeOff
		if err := rows.Scan(&t.ID, &t.StaffID, &t.StartAt, &t.EndAt, &t.Reason); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *Repository) TimeOffInWindow(ctx context.Context, tenantID, staffID string, from, to time.Time) ([]model.TimeOffDetail, error) {
	if staffID != "" && !validID(staffID) {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT t.id::text, t.staff_id::text, t.start_at, t.end_at, COALESCE(t.reason, ''), s.name
		FROM time_off t
		JOIN staff s ON s.id = t.staff_id
		WHERE s.tenant_id = $1
			AND ($2 = '' OR t.staff_id::text = $2)
			AND t.end_at > $3
			AND t.start_at < $4
		ORDER BY t.start_at ASC
	`, tenantID, staffID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TimeOffDetail
	for rows.Next() {
		var t model.TimeOffDetail
		if err := rows.Scan(&t.ID, &t.StaffID, &t.StartAt, &t.EndAt, &t.Reason, &t.StaffName); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func notFound(err error) error {
	if db.IsNoRows(err) {
		return ErrNotFound
	}
	return err
}

func (r *Repository) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return r.pool.InTx(ctx, fn)
}
