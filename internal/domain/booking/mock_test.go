package booking

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/randevu/randevu/internal/domain/identity"
	"github.com/randevu/randevu/internal/domain/scheduling"
)

// memStore backs both mock repositories so the mock transaction can roll
// them back together.
type memStore struct {
	patients      map[int64]*identity.Patient
	appts         map[int64]*scheduling.Appointment
	nextPatientID int64
	nextApptID    int64
	locked        []string
	failCreate    error
}

func newMemStore() *memStore {
	return &memStore{
		patients:      make(map[int64]*identity.Patient),
		appts:         make(map[int64]*scheduling.Appointment),
		nextPatientID: 1,
		nextApptID:    1,
	}
}

func (m *memStore) snapshot() func() {
	patients := make(map[int64]*identity.Patient, len(m.patients))
	for k, v := range m.patients {
		patients[k] = v
	}
	appts := make(map[int64]*scheduling.Appointment, len(m.appts))
	for k, v := range m.appts {
		cp := *v
		appts[k] = &cp
	}
	return func() { m.patients, m.appts = patients, appts }
}

// -- Mock Patient Repository --

type patientRepo struct{ *memStore }

func (r patientRepo) Create(_ context.Context, p *identity.Patient) error {
	p.ID = r.nextPatientID
	r.nextPatientID++
	p.CreatedAt = time.Now().UTC()
	cp := *p
	r.patients[p.ID] = &cp
	return nil
}

func (r patientRepo) GetByID(_ context.Context, id int64) (*identity.Patient, error) {
	p, ok := r.patients[id]
	if !ok {
		return nil, identity.ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

func (r patientRepo) GetByNationalID(_ context.Context, nid string) (*identity.Patient, error) {
	for _, p := range r.patients {
		if p.NationalID == nid {
			cp := *p
			return &cp, nil
		}
	}
	return nil, identity.ErrPatientNotFound
}

func (r patientRepo) NationalIDTaken(ctx context.Context, nid string, excludeID int64) (bool, error) {
	p, err := r.GetByNationalID(ctx, nid)
	return err == nil && p.ID != excludeID, nil
}

func (r patientRepo) Update(_ context.Context, p *identity.Patient) error {
	cp := *p
	r.patients[p.ID] = &cp
	return nil
}

func (r patientRepo) Delete(_ context.Context, id int64) error {
	delete(r.patients, id)
	return nil
}

func (r patientRepo) List(context.Context, identity.PatientFilter) ([]*identity.Patient, int, error) {
	return nil, 0, nil
}

func (r patientRepo) CountAppointments(_ context.Context, id int64) (int, error) {
	n := 0
	for _, a := range r.appts {
		if a.PatientID == id {
			n++
		}
	}
	return n, nil
}

func (r patientRepo) LockNationalID(_ context.Context, nid string) error {
	r.locked = append(r.locked, nid)
	return nil
}

// -- Mock Appointment Repository --

type apptRepo struct{ *memStore }

func (r apptRepo) join(a *scheduling.Appointment) *scheduling.Appointment {
	cp := *a
	if p, ok := r.patients[a.PatientID]; ok {
		cp.PatientFirstName, cp.PatientLastName, cp.PatientNationalID = p.FirstName, p.LastName, p.NationalID
	}
	return &cp
}

func (r apptRepo) Create(_ context.Context, a *scheduling.Appointment) error {
	if r.failCreate != nil {
		return r.failCreate
	}
	a.ID = r.nextApptID
	r.nextApptID++
	a.CreatedAt = time.Now().UTC()
	cp := *a
	r.appts[a.ID] = &cp
	return nil
}

func (r apptRepo) GetByID(_ context.Context, id int64) (*scheduling.Appointment, error) {
	a, ok := r.appts[id]
	if !ok {
		return nil, scheduling.ErrAppointmentNotFound
	}
	return r.join(a), nil
}

func (r apptRepo) Update(_ context.Context, a *scheduling.Appointment) error {
	cp := *a
	r.appts[a.ID] = &cp
	return nil
}

func (r apptRepo) UpdateStatus(_ context.Context, id int64, status scheduling.Status) error {
	a, ok := r.appts[id]
	if !ok {
		return scheduling.ErrAppointmentNotFound
	}
	a.Status = status
	return nil
}

func (r apptRepo) UpdateStatusFrom(_ context.Context, id int64, status scheduling.Status, from []scheduling.Status) error {
	a, ok := r.appts[id]
	if !ok {
		return scheduling.ErrAppointmentNotFound
	}
	for _, s := range from {
		if a.Status == s {
			a.Status = status
			return nil
		}
	}
	return scheduling.ErrInvalidStatusTransition
}

func (r apptRepo) Delete(_ context.Context, id int64) error {
	delete(r.appts, id)
	return nil
}

func (r apptRepo) List(context.Context, scheduling.AppointmentFilter) ([]*scheduling.Appointment, int, error) {
	return nil, 0, nil
}

func (r apptRepo) ListByPatient(_ context.Context, patientID int64) ([]*scheduling.Appointment, error) {
	result := []*scheduling.Appointment{}
	for _, a := range r.appts {
		if a.PatientID == patientID {
			result = append(result, r.join(a))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].ScheduledAt.Equal(result[j].ScheduledAt) {
			return result[i].ScheduledAt.After(result[j].ScheduledAt)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

// -- Mock Transactor --

// rollbackTx restores the store when fn fails.
type rollbackTx struct {
	store *memStore
}

func (t rollbackTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	restore := t.store.snapshot()
	if err := fn(ctx); err != nil {
		restore()
		return err
	}
	return nil
}

// -- Mock Doctor Repository --

type doctorRepo struct {
	doctors map[int64]*identity.Doctor
	err     error
}

func newDoctorRepo() *doctorRepo {
	doctors := map[int64]*identity.Doctor{}
	for _, d := range identity.DefaultDoctors() {
		d := d
		doctors[d.ID] = &d
	}
	doctors[4] = &identity.Doctor{ID: 4, FirstName: "Emre", LastName: "Şahin", Specialty: "Dermatology", Active: false}
	return &doctorRepo{doctors: doctors}
}

func (r *doctorRepo) Create(_ context.Context, d *identity.Doctor) error {
	d.ID = int64(len(r.doctors) + 1)
	r.doctors[d.ID] = d
	return nil
}

func (r *doctorRepo) GetByID(_ context.Context, id int64) (*identity.Doctor, error) {
	if r.err != nil {
		return nil, r.err
	}
	d, ok := r.doctors[id]
	if !ok {
		return nil, identity.ErrDoctorNotFound
	}
	return d, nil
}

func (r *doctorRepo) Update(_ context.Context, d *identity.Doctor) error {
	r.doctors[d.ID] = d
	return nil
}

func (r *doctorRepo) Delete(_ context.Context, id int64) error {
	delete(r.doctors, id)
	return nil
}

func (r *doctorRepo) List(context.Context, identity.DoctorFilter) ([]*identity.Doctor, int, error) {
	return nil, 0, nil
}

func (r *doctorRepo) ListActive(context.Context) ([]*identity.Doctor, error) {
	var out []*identity.Doctor
	for _, d := range r.doctors {
		if d.Active {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Specialty < out[j].Specialty })
	return out, nil
}

func (r *doctorRepo) CountAppointments(context.Context, int64) (int, error) {
	return 0, nil
}

func (r *doctorRepo) Seed(context.Context, *identity.Doctor) (bool, error) {
	return false, nil
}

// -- Recorder --

type recorder struct {
	patients []string
	outcomes []string
	statuses []string
}

func (r *recorder) PatientCreated(source string)  { r.patients = append(r.patients, source) }
func (r *recorder) BookingOutcome(outcome string) { r.outcomes = append(r.outcomes, outcome) }
func (r *recorder) StatusChanged(status, origin string) {
	r.statuses = append(r.statuses, status+"/"+origin)
}

var errStoreDown = errors.New("connection refused")

type fixture struct {
	svc     *Service
	store   *memStore
	doctors *doctorRepo
	rec     *recorder
}

// newFixture wires the real identity and scheduling services over the
// in-memory repositories.
func newFixture() *fixture {
	store := newMemStore()
	doctors := newDoctorRepo()
	rec := &recorder{}
	tx := rollbackTx{store}

	ids := identity.NewService(patientRepo{store}, doctors, tx, rec)
	sched := scheduling.NewService(apptRepo{store}, ids, rec)
	svc := NewService(ids, sched, patientRepo{store}, apptRepo{store}, tx, rec)
	svc.now = func() time.Time { return time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC) }
	return &fixture{svc: svc, store: store, doctors: doctors, rec: rec}
}

func validRequest() Request {
	return Request{
		DoctorID:    1,
		FirstName:   "Ayşe",
		LastName:    "Demir",
		NationalID:  "12345678901",
		Phone:       "0532 123 45 67",
		Email:       "ayse@example.com",
		BirthDate:   "1990-05-14",
		ScheduledAt: "2025-03-14T09:30",
		Complaint:   "Chest pain on exertion",
	}
}
