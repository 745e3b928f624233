package scheduling

import (
	"context"
	"errors"
	"fmt"

	"github.com/randevu/randevu/internal/domain/identity"
	"github.com/randevu/randevu/internal/platform/validation"
)

// Recorder counts status changes. *metrics.Collector satisfies it.
type Recorder interface {
	StatusChanged(status, origin string)
}

type noopRecorder struct{}

func (noopRecorder) StatusChanged(string, string) {}

// Origins reported to the Recorder.
const (
	OriginAdmin       = "admin"
	OriginSelfService = "self_service"
)

type Service struct {
	appointments AppointmentRepository
	dir          Directory
	rec          Recorder
}

func NewService(appts AppointmentRepository, dir Directory, rec Recorder) *Service {
	if rec == nil {
		rec = noopRecorder{}
	}
	return &Service{appointments: appts, dir: dir, rec: rec}
}

// CreateAppointment validates a and inserts it for an existing patient and
// doctor. A missing status defaults to pending and missing doctor_name or
// department are copied from the doctor.
func (s *Service) CreateAppointment(ctx context.Context, a *Appointment) error {
	if a.Status == "" {
		a.Status = StatusPending
	}
	a.Normalize()
	if errs := a.Validate(); len(errs) > 0 {
		return errs
	}
	p, d, err := s.resolve(ctx, a.PatientID, a.DoctorID)
	if err != nil {
		return err
	}
	Snapshot(a, d)
	if err := s.appointments.Create(ctx, a); err != nil {
		return err
	}
	a.PatientFirstName, a.PatientLastName, a.PatientNationalID = p.FirstName, p.LastName, p.NationalID
	return nil
}

// CheckAppointment returns the field failures a create would report for a,
// without touching the store. A blank status is checked as pending.
func (s *Service) CheckAppointment(a *Appointment) validation.Errors {
	cp := *a
	if cp.Status == "" {
		cp.Status = StatusPending
	}
	cp.Normalize()
	return cp.Validate()
}

// Snapshot copies the doctor's current name and specialty into a, keeping
// values that are already set.
func Snapshot(a *Appointment, d *identity.Doctor) {
	if a.DoctorName == nil {
		name := d.FullName()
		a.DoctorName = &name
	}
	if a.Department == nil {
		dept := d.Specialty
		a.Department = &dept
	}
}

func (s *Service) resolve(ctx context.Context, patientID, doctorID int64) (*identity.Patient, *identity.Doctor, error) {
	p, err := s.dir.GetPatient(ctx, patientID)
	if err != nil {
		return nil, nil, err
	}
	d, err := s.dir.GetDoctor(ctx, doctorID)
	if err != nil {
		return nil, nil, err
	}
	return p, d, nil
}

func (s *Service) GetAppointment(ctx context.Context, id int64) (*Appointment, error) {
	return s.appointments.GetByID(ctx, id)
}

// UpdateAppointment is the staff edit. Status is written as given, without
// transition checks. A blank status keeps the stored one; blank snapshot
// fields keep the stored ones unless the doctor changed.
func (s *Service) UpdateAppointment(ctx context.Context, a *Appointment) error {
	existing, err := s.appointments.GetByID(ctx, a.ID)
	if err != nil {
		return err
	}
	if a.Status == "" {
		a.Status = existing.Status
	}
	if a.DoctorID == existing.DoctorID {
		if a.DoctorName == nil {
			a.DoctorName = existing.DoctorName
		}
		if a.Department == nil {
			a.Department = existing.Department
		}
	}
	a.Normalize()
	if errs := a.Validate(); len(errs) > 0 {
		return errs
	}
	p, d, err := s.resolve(ctx, a.PatientID, a.DoctorID)
	if err != nil {
		return err
	}
	Snapshot(a, d)
	if err := s.appointments.Update(ctx, a); err != nil {
		return err
	}
	a.PatientFirstName, a.PatientLastName, a.PatientNationalID = p.FirstName, p.LastName, p.NationalID
	if a.Status != existing.Status {
		s.rec.StatusChanged(string(a.Status), OriginAdmin)
	}
	return nil
}

// SetStatus is the unguarded staff setter: any known status is accepted
// from any current status.
func (s *Service) SetStatus(ctx context.Context, id int64, raw string) (*Appointment, error) {
	status, ok := ParseStatus(raw)
	if !ok {
		return nil, validation.Errors{{Field: "status", Message: statusMessage}}
	}
	if err := s.appointments.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}
	s.rec.StatusChanged(string(status), OriginAdmin)
	return s.appointments.GetByID(ctx, id)
}

// CancelAppointment moves the appointment to cancelled only if its stored
// status still allows it. The check and the write are one statement.
func (s *Service) CancelAppointment(ctx context.Context, id int64, origin string) error {
	if err := s.appointments.UpdateStatusFrom(ctx, id, StatusCancelled, SourcesOf(StatusCancelled)); err != nil {
		return err
	}
	s.rec.StatusChanged(string(StatusCancelled), origin)
	return nil
}

func (s *Service) DeleteAppointment(ctx context.Context, id int64) error {
	return s.appointments.Delete(ctx, id)
}

func (s *Service) ListAppointments(ctx context.Context, f AppointmentFilter) ([]*Appointment, int, error) {
	return s.appointments.List(ctx, f)
}

// ListByPatient returns the patient's appointments, most recent first.
func (s *Service) ListByPatient(ctx context.Context, patientID int64) ([]*Appointment, error) {
	if _, err := s.dir.GetPatient(ctx, patientID); err != nil {
		return nil, err
	}
	appts, err := s.appointments.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list appointments for patient %d: %w", patientID, err)
	}
	return appts, nil
}

// IsNotFound reports whether err means a referenced record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAppointmentNotFound) ||
		errors.Is(err, identity.ErrPatientNotFound) ||
		errors.Is(err, identity.ErrDoctorNotFound)
}
