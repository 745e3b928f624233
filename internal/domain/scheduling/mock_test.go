package scheduling

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/randevu/randevu/internal/domain/identity"
)

// -- Mock Directory --

type mockDirectory struct {
	patients map[int64]*identity.Patient
	doctors  map[int64]*identity.Doctor
}

func newMockDirectory() *mockDirectory {
	return &mockDirectory{
		patients: map[int64]*identity.Patient{
			1: {ID: 1, FirstName: "Ayşe", LastName: "Demir", NationalID: "12345678901", Phone: "05321234567"},
			2: {ID: 2, FirstName: "Can", LastName: "Öztürk", NationalID: "98765432109", Phone: "05329876543"},
		},
		doctors: map[int64]*identity.Doctor{
			1: {ID: 1, FirstName: "Mehmet", LastName: "Kaya", Specialty: "Cardiology", Active: true},
			2: {ID: 2, FirstName: "Ayşe", LastName: "Yıldız", Specialty: "Neurology", Active: true},
		},
	}
}

func (m *mockDirectory) GetPatient(_ context.Context, id int64) (*identity.Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, identity.ErrPatientNotFound
	}
	return p, nil
}

func (m *mockDirectory) GetDoctor(_ context.Context, id int64) (*identity.Doctor, error) {
	d, ok := m.doctors[id]
	if !ok {
		return nil, identity.ErrDoctorNotFound
	}
	return d, nil
}

// -- Mock Appointment Repository --

type mockAppointmentRepo struct {
	dir    *mockDirectory
	appts  map[int64]*Appointment
	nextID int64
	err    error
}

func newMockAppointmentRepo(dir *mockDirectory) *mockAppointmentRepo {
	return &mockAppointmentRepo{dir: dir, appts: make(map[int64]*Appointment), nextID: 1}
}

func (m *mockAppointmentRepo) join(a *Appointment) *Appointment {
	cp := *a
	if p, ok := m.dir.patients[a.PatientID]; ok {
		cp.PatientFirstName, cp.PatientLastName, cp.PatientNationalID = p.FirstName, p.LastName, p.NationalID
	}
	return &cp
}

func (m *mockAppointmentRepo) Create(_ context.Context, a *Appointment) error {
	if m.err != nil {
		return m.err
	}
	a.ID = m.nextID
	m.nextID++
	a.CreatedAt = time.Now().UTC()
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *mockAppointmentRepo) GetByID(_ context.Context, id int64) (*Appointment, error) {
	if m.err != nil {
		return nil, m.err
	}
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return m.join(a), nil
}

func (m *mockAppointmentRepo) Update(_ context.Context, a *Appointment) error {
	existing, ok := m.appts[a.ID]
	if !ok {
		return ErrAppointmentNotFound
	}
	a.CreatedAt = existing.CreatedAt
	cp := *a
	m.appts[a.ID] = &cp
	return nil
}

func (m *mockAppointmentRepo) UpdateStatus(_ context.Context, id int64, status Status) error {
	a, ok := m.appts[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	a.Status = status
	return nil
}

func (m *mockAppointmentRepo) UpdateStatusFrom(_ context.Context, id int64, status Status, from []Status) error {
	a, ok := m.appts[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	for _, s := range from {
		if a.Status == s {
			a.Status = status
			return nil
		}
	}
	return ErrInvalidStatusTransition
}

func (m *mockAppointmentRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.appts[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(m.appts, id)
	return nil
}

func (m *mockAppointmentRepo) List(_ context.Context, f AppointmentFilter) ([]*Appointment, int, error) {
	if m.err != nil {
		return nil, 0, m.err
	}
	q := strings.ToLower(f.Query)
	result := []*Appointment{}
	for _, a := range m.appts {
		j := m.join(a)
		hay := strings.ToLower(j.PatientFirstName + " " + j.PatientLastName + " " + deref(j.DoctorName) + " " + deref(j.Department))
		switch {
		case q != "" && !strings.Contains(hay, q):
		case f.Status != "" && j.Status != f.Status:
		case f.PatientID > 0 && j.PatientID != f.PatientID:
		case f.DoctorID > 0 && j.DoctorID != f.DoctorID:
		default:
			result = append(result, j)
		}
	}
	sortByDateDesc(result)
	return result, len(result), nil
}

func (m *mockAppointmentRepo) ListByPatient(_ context.Context, patientID int64) ([]*Appointment, error) {
	if m.err != nil {
		return nil, m.err
	}
	result := []*Appointment{}
	for _, a := range m.appts {
		if a.PatientID == patientID {
			result = append(result, m.join(a))
		}
	}
	sortByDateDesc(result)
	return result, nil
}

func sortByDateDesc(appts []*Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		if !appts[i].ScheduledAt.Equal(appts[j].ScheduledAt) {
			return appts[i].ScheduledAt.After(appts[j].ScheduledAt)
		}
		return appts[i].ID > appts[j].ID
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

type statusRecorder struct {
	changes []string
}

func (r *statusRecorder) StatusChanged(status, origin string) {
	r.changes = append(r.changes, status+"/"+origin)
}

var errStoreDown = errors.New("connection refused")

var baseTime = time.Date(2025, time.March, 14, 9, 30, 0, 0, time.UTC)

func validAppointment() *Appointment {
	return &Appointment{
		PatientID:   1,
		DoctorID:    1,
		ScheduledAt: baseTime,
		Complaint:   "Chest pain on exertion",
	}
}

func newTestService() (*Service, *mockAppointmentRepo, *mockDirectory, *statusRecorder) {
	dir := newMockDirectory()
	repo := newMockAppointmentRepo(dir)
	rec := &statusRecorder{}
	return NewService(repo, dir, rec), repo, dir, rec
}
