package booking

// Reason classifies an operation outcome. Callers branch on it: invalid means fix the
// input, slot_taken means re-fetch availability, server_error means retry later.
type Reason string

const (
	ReasonOK          Reason = "ok"
	ReasonInvalid     Reason = "invalid"
	ReasonSlotTaken   Reason = "slot_taken"
	ReasonServerError Reason = "server_error"
	ReasonNotFound    Reason = "not_found"
)

type Result struct {
	Reason    Reason
	BookingID string
	Message   string
}

func (r Result) OK() bool {
	return r.Reason == ReasonOK
}

func ok(bookingID string) Result {
	return Result{Reason: ReasonOK, BookingID: bookingID}
}

func fail(reason Reason, message string) Result {
	return Result{Reason: reason, Message: message}
}

const (
	msgTenantNotFound  = "Business not found."
	msgServiceNotFound = "Service not found."
	msgStaffNotFound   = "Staff member not found."
	msgBookingNotFound = "Booking not found."
	msgInvalidStart    = "Invalid start time."
	msgOutsideWindow   = "This time can no longer be booked. Please pick another slot."
	msgSlotTaken       = "This time was just taken. Please pick another slot."
	msgCancelled       = "This booking is cancelled."
	msgServerError     = "Something went wrong. Please try again later."
	msgName            = "Please enter your name."
	msgPhone           = "Please enter a valid phone number."
	msgEmail           = "Please enter a valid email address."

	msgOutsideHours      = "This time is outside working hours. Please pick another slot."
	msgStaffUnavailable  = "The staff member is unavailable at this time. Please pick another slot."
	msgIdempotencyKey    = "Idempotency key is too long."
	msgIdempotencyReused = "Idempotency key was already used for a different booking."
)
