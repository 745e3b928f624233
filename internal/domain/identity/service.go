package identity

import (
	"context"
	"errors"
	"time"

	"github.com/randevu/randevu/internal/platform/validation"
)

// Recorder counts patient creation. *metrics.Collector satisfies it.
type Recorder interface {
	PatientCreated(source string)
}

type noopRecorder struct{}

func (noopRecorder) PatientCreated(string) {}

type Service struct {
	patients PatientRepository
	doctors  DoctorRepository
	tx       Transactor
	rec      Recorder
	now      func() time.Time
}

func NewService(patients PatientRepository, doctors DoctorRepository, tx Transactor, rec Recorder) *Service {
	if rec == nil {
		rec = noopRecorder{}
	}
	return &Service{patients: patients, doctors: doctors, tx: tx, rec: rec, now: time.Now}
}

// -- Patient --

// CheckPatient returns the field failures CreatePatient and UpdatePatient
// would report for p, without touching the store.
func (s *Service) CheckPatient(p *Patient) validation.Errors {
	p.Normalize()
	return p.Validate(s.now())
}

// CreatePatient validates p and inserts it. A national ID already on file is
// reported as a field failure on national_id.
func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	p.Normalize()
	if errs := p.Validate(s.now()); len(errs) > 0 {
		return errs
	}
	err := s.tx.InTx(ctx, func(ctx context.Context) error {
		if err := s.claimNationalID(ctx, p.NationalID, 0); err != nil {
			return err
		}
		return s.patients.Create(ctx, p)
	})
	if err != nil {
		return err
	}
	s.rec.PatientCreated("admin")
	return nil
}

func (s *Service) GetPatient(ctx context.Context, id int64) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

// FindPatientByNationalID reports found=false, with no error, for an unknown ID.
func (s *Service) FindPatientByNationalID(ctx context.Context, nid string) (*Patient, bool, error) {
	p, err := s.patients.GetByNationalID(ctx, nid)
	if errors.Is(err, ErrPatientNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}

// UpdatePatient replaces the editable fields of an existing patient. The
// creation timestamp is kept.
func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	p.Normalize()
	if errs := p.Validate(s.now()); len(errs) > 0 {
		return errs
	}
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.patients.GetByID(ctx, p.ID); err != nil {
			return err
		}
		if err := s.claimNationalID(ctx, p.NationalID, p.ID); err != nil {
			return err
		}
		return s.patients.Update(ctx, p)
	})
}

// claimNationalID takes the per-ID lock and fails when another patient than
// selfID already holds nid. Must run inside a transaction.
func (s *Service) claimNationalID(ctx context.Context, nid string, selfID int64) error {
	if err := s.patients.LockNationalID(ctx, nid); err != nil {
		return err
	}
	taken, err := s.patients.NationalIDTaken(ctx, nid, selfID)
	if err != nil {
		return err
	}
	if taken {
		return validation.Errors{{Field: "national_id", Message: MsgDuplicateNationalID}}
	}
	return nil
}

func (s *Service) DeletePatient(ctx context.Context, id int64) error {
	n, err := s.patients.CountAppointments(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrHasDependents
	}
	return s.patients.Delete(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, f PatientFilter) ([]*Patient, int, error) {
	return s.patients.List(ctx, f)
}

func (s *Service) PatientAppointmentCount(ctx context.Context, id int64) (int, error) {
	return s.patients.CountAppointments(ctx, id)
}

// -- Doctor --

func (s *Service) CreateDoctor(ctx context.Context, d *Doctor) error {
	d.Normalize()
	if errs := d.Validate(); len(errs) > 0 {
		return errs
	}
	return s.doctors.Create(ctx, d)
}

func (s *Service) GetDoctor(ctx context.Context, id int64) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

// GetActiveDoctor treats an inactive doctor as missing.
func (s *Service) GetActiveDoctor(ctx context.Context, id int64) (*Doctor, error) {
	d, err := s.doctors.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !d.Active {
		return nil, ErrDoctorNotFound
	}
	return d, nil
}

func (s *Service) UpdateDoctor(ctx context.Context, d *Doctor) error {
	d.Normalize()
	if errs := d.Validate(); len(errs) > 0 {
		return errs
	}
	return s.doctors.Update(ctx, d)
}

func (s *Service) DeleteDoctor(ctx context.Context, id int64) error {
	n, err := s.doctors.CountAppointments(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return ErrHasDependents
	}
	return s.doctors.Delete(ctx, id)
}

func (s *Service) ListDoctors(ctx context.Context, f DoctorFilter) ([]*Doctor, int, error) {
	return s.doctors.List(ctx, f)
}

func (s *Service) ListActiveDoctors(ctx context.Context) ([]*Doctor, error) {
	return s.doctors.ListActive(ctx)
}
