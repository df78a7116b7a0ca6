// Package notify sends booking confirmation emails. Delivery is best effort; callers
// log failures and never roll a booking back because of them.
package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/salonbook/platform/services/booking-service/internal/localtime"
)

// BookingCreated is what a confirmation email needs to know about a new booking.
type BookingCreated struct {
	To           string
	CustomerName string
	BusinessName string
	ServiceName  string
	StartAt      time.Time
	Location     *time.Location
	CancelToken  string
}

type Notifier interface {
	BookingCreated(ctx context.Context, n BookingCreated) error
}

// Nop drops every notification.
type Nop struct{}

func (Nop) BookingCreated(context.Context, BookingCreated) error { return nil }

// EmailNotifier renders notifications as plain text and hands them to a Sender.
type EmailNotifier struct {
	sender  Sender
	baseURL string
}

func NewEmailNotifier(sender Sender, publicBaseURL string) *EmailNotifier {
	return &EmailNotifier{sender: sender, baseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/")}
}

func (n *EmailNotifier) BookingCreated(ctx context.Context, msg BookingCreated) error {
	if strings.TrimSpace(msg.To) == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	loc := msg.Location
	if loc == nil {
		loc = time.UTC
	}

	subject := fmt.Sprintf("Booking received: %s", msg.BusinessName)
	var body strings.Builder
	fmt.Fprintf(&body, "Hi %s,\n\n", msg.CustomerName)
	fmt.Fprintf(&body, "we received your booking for %s at %s.\n", msg.ServiceName, msg.BusinessName)
	fmt.Fprintf(&body, "When: %s %s (%s)\n\n", localtime.DateOf(msg.StartAt, loc), localtime.Label(msg.StartAt, loc), loc.String())
	fmt.Fprintf(&body, "To cancel, open: %s\n", n.CancelURL(msg.CancelToken))
	return n.sender.Send(msg.To, subject, body.String())
}

// CancelURL is the self-service cancellation link carrying the booking's token.
func (n *EmailNotifier) CancelURL(token string) string {
	return n.baseURL + "/cancel?token=" + url.QueryEscape(token)
}
