// Package booking is the public self-service flow: browse active doctors,
// book an appointment with patient details, look appointments up by national
// ID and cancel them. Possession of the national ID is the only credential.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/randevu/randevu/internal/domain/identity"
	"github.com/randevu/randevu/internal/domain/scheduling"
	"github.com/randevu/randevu/internal/platform/validation"
)

var (
	ErrDoctorUnavailable = errors.New("the selected doctor was not found or is not accepting appointments")

	// ErrCancelDenied covers both an unknown appointment and a national ID
	// that does not own it, so the response never reveals which ids exist.
	ErrCancelDenied = errors.New("no appointment matches this reference and national ID")

	ErrBookingFailed = errors.New("your appointment could not be created, please try again")
)

// MsgNoPatient accompanies an empty lookup result.
const MsgNoPatient = "no patient is registered with this national ID"

// Booking outcomes reported to the Recorder.
const (
	OutcomeCreated  = "created"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Catalogue lists the doctors open for booking and finds patients by
// national ID. *identity.Service satisfies it.
type Catalogue interface {
	ListActiveDoctors(ctx context.Context) ([]*identity.Doctor, error)
	GetActiveDoctor(ctx context.Context, id int64) (*identity.Doctor, error)
	FindPatientByNationalID(ctx context.Context, nid string) (*identity.Patient, bool, error)
}

// Scheduler reads and cancels appointments. *scheduling.Service satisfies it.
type Scheduler interface {
	GetAppointment(ctx context.Context, id int64) (*scheduling.Appointment, error)
	ListByPatient(ctx context.Context, patientID int64) ([]*scheduling.Appointment, error)
	CancelAppointment(ctx context.Context, id int64, origin string) error
}

// Recorder receives booking metrics. *metrics.Collector satisfies it.
type Recorder interface {
	PatientCreated(source string)
	BookingOutcome(outcome string)
}

type noopRecorder struct{}

func (noopRecorder) PatientCreated(string) {}
func (noopRecorder) BookingOutcome(string) {}

// Request is a booking form submission: the chosen doctor, the patient's
// details and the visit.
type Request struct {
	DoctorID    int64  `json:"doctor_id" form:"doctor_id"`
	FirstName   string `json:"first_name" form:"first_name"`
	LastName    string `json:"last_name" form:"last_name"`
	NationalID  string `json:"national_id" form:"national_id"`
	Phone       string `json:"phone" form:"phone"`
	Email       string `json:"email" form:"email"`
	BirthDate   string `json:"birth_date" form:"birth_date"`
	Address     string `json:"address" form:"address"`
	ScheduledAt string `json:"scheduled_at" form:"scheduled_at"`
	Complaint   string `json:"complaint" form:"complaint"`
	Notes       string `json:"notes" form:"notes"`
}

func (r Request) patientInput() identity.PatientInput {
	return identity.PatientInput{
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		NationalID: r.NationalID,
		Phone:      r.Phone,
		Email:      r.Email,
		BirthDate:  r.BirthDate,
		Address:    r.Address,
	}
}

// Confirmation is what a patient sees after booking, and again when opening
// the booking with its reference and national ID.
type Confirmation struct {
	AppointmentID int64             `json:"appointment_id"`
	PatientID     int64             `json:"patient_id"`
	PatientName   string            `json:"patient_name"`
	DoctorID      int64             `json:"doctor_id"`
	DoctorName    string            `json:"doctor_name"`
	Department    string            `json:"department"`
	ScheduledAt   time.Time         `json:"scheduled_at"`
	Complaint     string            `json:"complaint"`
	Notes         *string           `json:"notes,omitempty"`
	Status        scheduling.Status `json:"status"`
	PatientReused bool              `json:"patient_reused,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

func confirmationOf(a *scheduling.Appointment) *Confirmation {
	c := &Confirmation{
		AppointmentID: a.ID,
		PatientID:     a.PatientID,
		PatientName:   a.PatientFullName(),
		DoctorID:      a.DoctorID,
		ScheduledAt:   a.ScheduledAt,
		Complaint:     a.Complaint,
		Notes:         a.Notes,
		Status:        a.Status,
		CreatedAt:     a.CreatedAt,
	}
	if a.DoctorName != nil {
		c.DoctorName = *a.DoctorName
	}
	if a.Department != nil {
		c.Department = *a.Department
	}
	return c
}

// PatientSummary identifies the patient a lookup resolved to.
type PatientSummary struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type LookupResult struct {
	Found        bool                      `json:"found"`
	Message      string                    `json:"message,omitempty"`
	Patient      *PatientSummary           `json:"patient,omitempty"`
	Appointments []*scheduling.Appointment `json:"appointments"`
}

// Service reads through the identity and scheduling services. Only Book
// writes through the repositories, since its patient and appointment inserts
// share one transaction.
type Service struct {
	catalogue    Catalogue
	scheduler    Scheduler
	patients     identity.PatientRepository
	appointments scheduling.AppointmentRepository
	tx           identity.Transactor
	rec          Recorder
	now          func() time.Time
}

func NewService(catalogue Catalogue, scheduler Scheduler, patients identity.PatientRepository, appts scheduling.AppointmentRepository, tx identity.Transactor, rec Recorder) *Service {
	if rec == nil {
		rec = noopRecorder{}
	}
	return &Service{
		catalogue:    catalogue,
		scheduler:    scheduler,
		patients:     patients,
		appointments: appts,
		tx:           tx,
		rec:          rec,
		now:          time.Now,
	}
}

func (s *Service) ListDoctors(ctx context.Context) ([]*identity.Doctor, error) {
	return s.catalogue.ListActiveDoctors(ctx)
}

// GetDoctor returns identity.ErrDoctorNotFound for unknown and inactive doctors.
func (s *Service) GetDoctor(ctx context.Context, id int64) (*identity.Doctor, error) {
	return s.catalogue.GetActiveDoctor(ctx, id)
}

// Book creates a pending appointment for an active doctor. A national ID
// already on file reuses that patient and the submitted patient details are
// discarded; otherwise a new patient is inserted. Patient resolution and the
// appointment insert share one transaction holding the national-ID lock, so
// a failure leaves neither row behind.
func (s *Service) Book(ctx context.Context, req Request) (*Confirmation, error) {
	p, a, errs := s.parse(req)
	if len(errs) > 0 {
		s.rec.BookingOutcome(OutcomeRejected)
		return nil, errs
	}

	d, err := s.catalogue.GetActiveDoctor(ctx, req.DoctorID)
	if err != nil {
		if errors.Is(err, identity.ErrDoctorNotFound) {
			s.rec.BookingOutcome(OutcomeRejected)
			return nil, ErrDoctorUnavailable
		}
		s.rec.BookingOutcome(OutcomeFailed)
		return nil, fmt.Errorf("%w: %w", ErrBookingFailed, err)
	}

	var reused bool
	err = s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.patients.LockNationalID(ctx, p.NationalID); err != nil {
			return err
		}
		existing, err := s.patients.GetByNationalID(ctx, p.NationalID)
		switch {
		case err == nil:
			p, reused = existing, true
		case errors.Is(err, identity.ErrPatientNotFound):
			if err := s.patients.Create(ctx, p); err != nil {
				return err
			}
		default:
			return err
		}

		a.PatientID = p.ID
		a.DoctorID = d.ID
		scheduling.Snapshot(a, d)
		return s.appointments.Create(ctx, a)
	})
	if err != nil {
		s.rec.BookingOutcome(OutcomeFailed)
		return nil, fmt.Errorf("%w: %w", ErrBookingFailed, err)
	}

	if !reused {
		s.rec.PatientCreated("booking")
	}
	s.rec.BookingOutcome(OutcomeCreated)

	a.PatientFirstName, a.PatientLastName, a.PatientNationalID = p.FirstName, p.LastName, p.NationalID
	c := confirmationOf(a)
	c.PatientReused = reused
	return c, nil
}

// parse converts and validates every submitted field. Patient fields are
// checked even when the national ID turns out to be on file.
func (s *Service) parse(req Request) (*identity.Patient, *scheduling.Appointment, validation.Errors) {
	p, errs := req.patientInput().ToPatient()
	p.Normalize()
	errs = append(errs, p.Validate(s.now())...)

	if req.DoctorID <= 0 {
		errs.Add("doctor_id", "is required")
	}

	a := &scheduling.Appointment{
		Complaint: req.Complaint,
		Status:    scheduling.StatusPending,
	}
	if req.Notes != "" {
		notes := req.Notes
		a.Notes = &notes
	}
	if req.ScheduledAt != "" {
		t, err := scheduling.ParseScheduledAt(req.ScheduledAt)
		if err != nil {
			errs.Add("scheduled_at", "must be a date and time such as 2025-03-14T09:30")
		}
		a.ScheduledAt = t
	}
	a.Normalize()
	return p, a, errs.Merge(a.ValidateDetails())
}

// Lookup lists the appointments of the patient holding nid, most recent
// first. An unknown national ID is a normal empty result.
func (s *Service) Lookup(ctx context.Context, nid string) (*LookupResult, error) {
	nid, err := requireNationalID(nid)
	if err != nil {
		return nil, err
	}
	p, found, err := s.catalogue.FindPatientByNationalID(ctx, nid)
	if err != nil {
		return nil, err
	}
	if !found {
		return &LookupResult{Message: MsgNoPatient, Appointments: []*scheduling.Appointment{}}, nil
	}
	appts, err := s.scheduler.ListByPatient(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	return &LookupResult{
		Found:        true,
		Patient:      &PatientSummary{ID: p.ID, FirstName: p.FirstName, LastName: p.LastName},
		Appointments: appts,
	}, nil
}

// Cancel cancels appointment id on behalf of the holder of nid. Only status
// changes.
func (s *Service) Cancel(ctx context.Context, id int64, nid string) (*scheduling.Appointment, error) {
	a, err := s.owned(ctx, id, nid)
	if err != nil {
		return nil, err
	}
	if err := a.Cancel(); err != nil {
		return nil, err
	}
	err = s.scheduler.CancelAppointment(ctx, id, scheduling.OriginSelfService)
	if errors.Is(err, scheduling.ErrAppointmentNotFound) {
		return nil, ErrCancelDenied
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Confirmation shows a booking to the holder of nid.
func (s *Service) Confirmation(ctx context.Context, id int64, nid string) (*Confirmation, error) {
	a, err := s.owned(ctx, id, nid)
	if err != nil {
		return nil, err
	}
	return confirmationOf(a), nil
}

func (s *Service) owned(ctx context.Context, id int64, nid string) (*scheduling.Appointment, error) {
	nid, err := requireNationalID(nid)
	if err != nil {
		return nil, err
	}
	a, err := s.scheduler.GetAppointment(ctx, id)
	if errors.Is(err, scheduling.ErrAppointmentNotFound) {
		return nil, ErrCancelDenied
	}
	if err != nil {
		return nil, err
	}
	if a.PatientNationalID != nid {
		return nil, ErrCancelDenied
	}
	return a, nil
}

func requireNationalID(nid string) (string, error) {
	nid = validation.Clean(nid)
	if nid == "" {
		return "", validation.Errors{{Field: "national_id", Message: "is required"}}
	}
	return nid, nil
}
