package model

// BookingDetail is a booking joined with the names an operator needs to act on it.
type BookingDetail struct {
	Booking
	StaffName   string
	ServiceName string
}

type TimeOffDetail struct {
	TimeOff
	StaffName string
}
