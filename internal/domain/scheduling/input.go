package scheduling

import (
	"strings"

	"github.com/randevu/randevu/internal/platform/validation"
)

const scheduledAtMessage = "must be a date and time such as 2025-03-14T09:30 or 2025-03-14T09:30:00+03:00"

// AppointmentInput is the admin request body for creating or editing an
// appointment.
type AppointmentInput struct {
	PatientID   int64  `json:"patient_id" form:"patient_id"`
	DoctorID    int64  `json:"doctor_id" form:"doctor_id"`
	ScheduledAt string `json:"scheduled_at" form:"scheduled_at"`
	DoctorName  string `json:"doctor_name" form:"doctor_name"`
	Department  string `json:"department" form:"department"`
	Complaint   string `json:"complaint" form:"complaint"`
	Notes       string `json:"notes" form:"notes"`
	Status      string `json:"status" form:"status"`
}

// ToAppointment converts the input. Unparseable times and unknown statuses
// are returned as field failures; a blank status stays empty so the service
// can apply its default.
func (in AppointmentInput) ToAppointment() (*Appointment, validation.Errors) {
	a := &Appointment{
		PatientID:  in.PatientID,
		DoctorID:   in.DoctorID,
		DoctorName: optional(in.DoctorName),
		Department: optional(in.Department),
		Complaint:  in.Complaint,
		Notes:      optional(in.Notes),
	}
	var errs validation.Errors
	if raw := strings.TrimSpace(in.ScheduledAt); raw != "" {
		t, err := ParseScheduledAt(raw)
		if err != nil {
			errs.Add("scheduled_at", scheduledAtMessage)
		}
		a.ScheduledAt = t
	}
	if strings.TrimSpace(in.Status) != "" {
		st, ok := ParseStatus(in.Status)
		if !ok {
			errs.Add("status", statusMessage)
		}
		a.Status = st
	}
	return a, errs
}

// StatusInput is the body of the status endpoint.
type StatusInput struct {
	Status string `json:"status" form:"status"`
}

func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
