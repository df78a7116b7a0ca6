package outbox

// Event is the domain event envelope written to the outbox table.
// The Kafka topic name equals EventType.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

const (
	AggregateBooking = "booking"

	EventBookingBooked      = "booking.appointment.booked.v1"
	EventBookingRescheduled = "booking.appointment.rescheduled.v1"
	EventBookingCancelled   = "booking.appointment.cancelled.v1"
	EventBookingConfirmed   = "booking.appointment.confirmed.v1"
)
