package identity

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
)

// -- Mock Patient Repository --

type mockPatientRepo struct {
	patients     map[int64]*Patient
	appointments map[int64]int
	nextID       int64
	locked       []string
	err          error
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{
		patients:     make(map[int64]*Patient),
		appointments: make(map[int64]int),
		nextID:       1,
	}
}

func (m *mockPatientRepo) Create(_ context.Context, p *Patient) error {
	if m.err != nil {
		return m.err
	}
	p.ID = m.nextID
	m.nextID++
	p.CreatedAt = time.Now().UTC()
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id int64) (*Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockPatientRepo) GetByNationalID(_ context.Context, nid string) (*Patient, error) {
	var found *Patient
	for _, p := range m.patients {
		if p.NationalID == nid && (found == nil || p.ID < found.ID) {
			found = p
		}
	}
	if found == nil {
		return nil, ErrPatientNotFound
	}
	cp := *found
	return &cp, nil
}

func (m *mockPatientRepo) NationalIDTaken(_ context.Context, nid string, excludeID int64) (bool, error) {
	for _, p := range m.patients {
		if p.NationalID == nid && p.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockPatientRepo) Update(_ context.Context, p *Patient) error {
	existing, ok := m.patients[p.ID]
	if !ok {
		return ErrPatientNotFound
	}
	p.CreatedAt = existing.CreatedAt
	cp := *p
	m.patients[p.ID] = &cp
	return nil
}

func (m *mockPatientRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.patients[id]; !ok {
		return ErrPatientNotFound
	}
	delete(m.patients, id)
	return nil
}

func (m *mockPatientRepo) List(_ context.Context, f PatientFilter) ([]*Patient, int, error) {
	if m.err != nil {
		return nil, 0, m.err
	}
	q := strings.ToLower(f.Query)
	result := []*Patient{}
	for _, p := range m.patients {
		hay := strings.ToLower(p.FirstName + " " + p.LastName + " " + p.NationalID + " " + p.Phone)
		if q == "" || strings.Contains(hay, q) {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, len(result), nil
}

func (m *mockPatientRepo) CountAppointments(_ context.Context, id int64) (int, error) {
	return m.appointments[id], nil
}

func (m *mockPatientRepo) LockNationalID(_ context.Context, nid string) error {
	m.locked = append(m.locked, nid)
	return nil
}

// -- Mock Doctor Repository --

type mockDoctorRepo struct {
	doctors      map[int64]*Doctor
	appointments map[int64]int
	nextID       int64
}

func newMockDoctorRepo() *mockDoctorRepo {
	return &mockDoctorRepo{
		doctors:      make(map[int64]*Doctor),
		appointments: make(map[int64]int),
		nextID:       100,
	}
}

func (m *mockDoctorRepo) Create(_ context.Context, d *Doctor) error {
	d.ID = m.nextID
	m.nextID++
	d.CreatedAt = time.Now().UTC()
	cp := *d
	m.doctors[d.ID] = &cp
	return nil
}

func (m *mockDoctorRepo) GetByID(_ context.Context, id int64) (*Doctor, error) {
	d, ok := m.doctors[id]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *mockDoctorRepo) Update(_ context.Context, d *Doctor) error {
	existing, ok := m.doctors[d.ID]
	if !ok {
		return ErrDoctorNotFound
	}
	d.CreatedAt = existing.CreatedAt
	cp := *d
	m.doctors[d.ID] = &cp
	return nil
}

func (m *mockDoctorRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.doctors[id]; !ok {
		return ErrDoctorNotFound
	}
	delete(m.doctors, id)
	return nil
}

func (m *mockDoctorRepo) List(_ context.Context, f DoctorFilter) ([]*Doctor, int, error) {
	result := []*Doctor{}
	for _, d := range m.doctors {
		if f.Active != nil && d.Active != *f.Active {
			continue
		}
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, len(result), nil
}

func (m *mockDoctorRepo) ListActive(_ context.Context) ([]*Doctor, error) {
	result := []*Doctor{}
	for _, d := range m.doctors {
		if d.Active {
			result = append(result, d)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Specialty != result[j].Specialty {
			return result[i].Specialty < result[j].Specialty
		}
		return result[i].FirstName < result[j].FirstName
	})
	return result, nil
}

func (m *mockDoctorRepo) CountAppointments(_ context.Context, id int64) (int, error) {
	return m.appointments[id], nil
}

func (m *mockDoctorRepo) Seed(_ context.Context, d *Doctor) (bool, error) {
	if _, ok := m.doctors[d.ID]; ok {
		return false, nil
	}
	cp := *d
	m.doctors[d.ID] = &cp
	if d.ID >= m.nextID {
		m.nextID = d.ID + 1
	}
	return true, nil
}

// -- Mock Transactor --

// mockTx runs fn directly and counts calls.
type mockTx struct {
	calls int
}

func (m *mockTx) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(ctx)
}

type countingRecorder struct {
	sources []string
}

func (r *countingRecorder) PatientCreated(source string) {
	r.sources = append(r.sources, source)
}

var errStoreDown = errors.New("connection refused")

func validPatient() *Patient {
	email := "ayse@example.com"
	birth := NewDate(1990, time.May, 14)
	return &Patient{
		FirstName:  "Ayşe",
		LastName:   "Demir",
		NationalID: "12345678901",
		Phone:      "0532 123 45 67",
		Email:      &email,
		BirthDate:  &birth,
	}
}

func newTestService() (*Service, *mockPatientRepo, *mockDoctorRepo, *countingRecorder) {
	pr := newMockPatientRepo()
	dr := newMockDoctorRepo()
	rec := &countingRecorder{}
	return NewService(pr, dr, &mockTx{}, rec), pr, dr, rec
}
