package booking

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/salonbook/platform/services/booking-service/internal/model"
	"github.com/salonbook/platform/services/booking-service/internal/storage"
)

// MaxIdempotencyKeyLen bounds the Idempotency-Key a client may send.
const MaxIdempotencyKeyLen = 128

// requestFingerprint identifies what a create request asked for, so a reused key can be
// told apart from a retry.
func requestFingerprint(req CreateRequest, start time.Time, c Customer) string {
	h := sha256.New()
	for _, part := range []string{
		strings.TrimSpace(req.ServiceID),
		strings.TrimSpace(req.StaffID),
		start.UTC().Format(time.RFC3339),
		c.Name, c.Phone, c.Email, c.Note,
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// replay returns the stored outcome for key when an earlier create under it committed.
func (s *Service) replay(ctx context.Context, span trace.Span, tenantID string, key storage.IdempotencyKey) (Result, bool) {
	rec, err := s.store.IdempotentBooking(ctx, tenantID, key.Key)
	if err != nil {
		if storage.IsNotFound(err) {
			return Result{}, false
		}
		s.logger.ErrorContext(ctx, "load idempotency key failed", "tenant_id", tenantID, "err", err)
		return fail(ReasonServerError, msgServerError), true
	}
	if rec.Fingerprint != key.Fingerprint {
		return fail(ReasonInvalid, msgIdempotencyReused), true
	}
	span.SetAttributes(attribute.String("booking.id", rec.BookingID), attribute.Bool("booking.replayed", true))
	s.logger.InfoContext(ctx, "booking create replayed", "booking_id", rec.BookingID, "tenant_id", tenantID)
	return ok(rec.BookingID), true
}

func (s *Service) insert(ctx context.Context, b model.Booking, key storage.IdempotencyKey) (string, bool, error) {
	if key.Key == "" {
		id, err := s.store.CreateBooking(ctx, b)
		return id, false, err
	}
	return s.store.CreateBookingIdempotent(ctx, b, key)
}
