package storage

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/salonbook/platform/libs/db"
	"github.com/salonbook/platform/services/booking-service/internal/model"
)

// IdempotencyKey scopes a client-supplied key to the request it was first used with.
type IdempotencyKey struct {
	Key         string
	Fingerprint string
}

type IdempotencyRecord struct {
	TenantID    string
	Key         string
	Fingerprint string
	BookingID   string
}

// CreateBookingIdempotent inserts b under key in one transaction. When the key already
// names a booking of the tenant, that booking id is returned with replayed set and no
// row is written.
func (r *Repository) CreateBookingIdempotent(ctx context.Context, b model.Booking, key IdempotencyKey) (string, bool, error) {
	var (
		id       string
		replayed bool
	)
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		rec, err := lockIdempotencyKey(ctx, tx, b.TenantID, key)
		if err != nil {
			return err
		}
		if rec.BookingID != "" {
			if rec.Fingerprint != key.Fingerprint {
				return ErrIdempotencyMismatch
			}
			id, replayed = rec.BookingID, true
			return nil
		}
		id, err = r.insertBooking(ctx, tx, b)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			UPDATE booking_idempotency_keys
			SET booking_id = $3, updated_at = now()
			WHERE tenant_id = $1 AND idempotency_key = $2
		`, b.TenantID, key.Key, id)
		return err
	})
	if err != nil {
		return "", false, err
	}
	return id, replayed, nil
}

// IdempotentBooking returns the completed record stored for key, or ErrNotFound.
func (r *Repository) IdempotentBooking(ctx context.Context, tenantID, key string) (IdempotencyRecord, error) {
	if !validID(tenantID) {
		return IdempotencyRecord{}, ErrNotFound
	}
	rec := IdempotencyRecord{TenantID: tenantID, Key: key}
	err := r.pool.QueryRow(ctx, `
		SELECT fingerprint, booking_id::text
		FROM booking_idempotency_keys
		WHERE tenant_id = $1 AND idempotency_key = $2 AND booking_id IS NOT NULL
	`, tenantID, key).Scan(&rec.Fingerprint, &rec.BookingID)
	if err != nil {
		if db.IsNoRows(err) {
			return IdempotencyRecord{}, ErrNotFound
		}
		return IdempotencyRecord{}, err
	}
	return rec, nil
}

// lockIdempotencyKey claims key for the transaction. A concurrent holder of the same key
// blocks the insert until it commits or rolls back.
func lockIdempotencyKey(ctx context.Context, tx pgx.Tx, tenantID string, key IdempotencyKey) (IdempotencyRecord, error) {
	rec, err := selectIdempotencyForUpdate(ctx, tx, tenantID, key.Key)
	if err == nil {
		return rec, nil
	}
	if !db.IsNoRows(err) {
		return IdempotencyRecord{}, err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO booking_idempotency_keys (tenant_id, idempotency_key, fingerprint)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, idempotency_key) DO NOTHING
	`, tenantID, key.Key, key.Fingerprint); err != nil {
		return IdempotencyRecord{}, err
	}
	return selectIdempotencyForUpdate(ctx, tx, tenantID, key.Key)
}

func selectIdempotencyForUpdate(ctx context.Context, tx pgx.Tx, tenantID, key string) (IdempotencyRecord, error) {
	rec := IdempotencyRecord{TenantID: tenantID, Key: key}
	err := tx.QueryRow(ctx, `
		SELECT fingerprint, COALESCE(booking_id::text, '')
		FROM booking_idempotency_keys
		WHERE tenant_id = $1 AND idempotency_key = $2
		FOR UPDATE
	`, tenantID, key).Scan(&rec.Fingerprint, &rec.BookingID)
	return rec, err
}
