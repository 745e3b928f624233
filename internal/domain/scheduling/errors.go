package scheduling

import "errors"

var (
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrInvalidStatusTransition is returned when cancelling an appointment
	// that is already cancelled or completed.
	ErrInvalidStatusTransition = errors.New("this appointment can no longer be cancelled: it is already cancelled or completed")
)
