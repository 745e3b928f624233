package scheduling

import (
	"fmt"
	"strings"
	"time"

	"github.com/randevu/randevu/internal/platform/validation"
)

const (
	complaintMaxLen = 1000
	notesMaxLen     = 1000
	snapshotMaxLen  = 200
)

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Statuses lists every known status in lifecycle order.
var Statuses = []Status{StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted}

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	return st, st.Valid()
}

func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, to := range transitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

// SourcesOf returns the statuses from which next can be reached.
func SourcesOf(next Status) []Status {
	var out []Status
	for _, s := range Statuses {
		if s.CanTransitionTo(next) {
			out = append(out, s)
		}
	}
	return out
}

// Appointment maps to the appointment table. The Patient* fields are filled
// by reads that join the owning patient.
type Appointment struct {
	ID          int64     `db:"id" json:"id"`
	PatientID   int64     `db:"patient_id" json:"patient_id"`
	DoctorID    int64     `db:"doctor_id" json:"doctor_id"`
	ScheduledAt time.Time `db:"scheduled_at" json:"scheduled_at"`
	DoctorName  *string   `db:"doctor_name" json:"doctor_name,omitempty"`
	Department  *string   `db:"department" json:"department,omitempty"`
	Complaint   string    `db:"complaint" json:"complaint"`
	Notes       *string   `db:"notes" json:"notes,omitempty"`
	Status      Status    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`

	PatientFirstName  string `db:"patient_first_name" json:"patient_first_name,omitempty"`
	PatientLastName   string `db:"patient_last_name" json:"patient_last_name,omitempty"`
	PatientNationalID string `db:"patient_national_id" json:"-"`
}

func (a *Appointment) PatientFullName() string {
	return strings.TrimSpace(a.PatientFirstName + " " + a.PatientLastName)
}

// Cancel moves a pending or confirmed appointment to cancelled.
func (a *Appointment) Cancel() error {
	if !a.Status.CanTransitionTo(StatusCancelled) {
		return ErrInvalidStatusTransition
	}
	a.Status = StatusCancelled
	return nil
}

// Normalize trims text fields, drops blank optional values and moves the
// scheduled time to UTC.
func (a *Appointment) Normalize() {
	a.Complaint = validation.Clean(a.Complaint)
	a.Notes = validation.CleanOptional(a.Notes)
	a.DoctorName = validation.CleanOptional(a.DoctorName)
	a.Department = validation.CleanOptional(a.Department)
	a.ScheduledAt = a.ScheduledAt.UTC()
}

// Validate checks every field, including the patient and doctor references.
func (a *Appointment) Validate() validation.Errors {
	var errs validation.Errors
	if a.PatientID <= 0 {
		errs.Add("patient_id", "is required")
	}
	if a.DoctorID <= 0 {
		errs.Add("doctor_id", "is required")
	}
	return append(errs, a.ValidateDetails()...)
}

// ValidateDetails checks the fields a caller supplies about the visit itself.
func (a *Appointment) ValidateDetails() validation.Errors {
	var errs validation.Errors
	if a.ScheduledAt.IsZero() {
		errs.Add("scheduled_at", "is required")
	}
	if errs.Required("complaint", a.Complaint) {
		errs.MaxLen("complaint", a.Complaint, complaintMaxLen)
	}
	errs.OptionalMaxLen("notes", a.Notes, notesMaxLen)
	errs.OptionalMaxLen("doctor_name", a.DoctorName, snapshotMaxLen)
	errs.OptionalMaxLen("department", a.Department, snapshotMaxLen)
	if !a.Status.Valid() {
		errs.Add("status", statusMessage)
	}
	return errs
}

var statusMessage = func() string {
	names := make([]string, len(Statuses))
	for i, s := range Statuses {
		names[i] = string(s)
	}
	return "must be one of " + strings.Join(names, ", ")
}()

var zonedLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04Z07:00"}

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseScheduledAt accepts RFC 3339 timestamps, converted to UTC, and
// zone-less date-times, read as UTC.
func ParseScheduledAt(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse scheduled time %q", s)
}
