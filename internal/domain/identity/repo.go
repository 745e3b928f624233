package identity

import (
	"context"

	"github.com/randevu/randevu/pkg/pagination"
)

// Sort keys accepted by the list endpoints.
var (
	PatientSortKeys    = []string{"name", "surname"}
	DefaultPatientSort = pagination.Sort{Key: "name"}

	DoctorSortKeys    = []string{"name", "surname", "specialty"}
	DefaultDoctorSort = pagination.Sort{Key: "name"}
)

// PatientFilter narrows a patient listing. Query matches first name, last
// name, national ID and phone as a case-insensitive substring.
type PatientFilter struct {
	Query  string
	Sort   pagination.Sort
	Limit  int
	Offset int
}

// DoctorFilter narrows a doctor listing. Query matches names and specialty.
type DoctorFilter struct {
	Query  string
	Active *bool
	Sort   pagination.Sort
	Limit  int
	Offset int
}

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id int64) (*Patient, error)
	// GetByNationalID returns ErrPatientNotFound when no patient holds nid.
	GetByNationalID(ctx context.Context, nid string) (*Patient, error)
	// NationalIDTaken reports whether a patient other than excludeID holds nid.
	NationalIDTaken(ctx context.Context, nid string, excludeID int64) (bool, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f PatientFilter) ([]*Patient, int, error)
	CountAppointments(ctx context.Context, id int64) (int, error)
	// LockNationalID serializes writers for one national ID until the
	// surrounding transaction ends.
	LockNationalID(ctx context.Context, nid string) error
}

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id int64) (*Doctor, error)
	Update(ctx context.Context, d *Doctor) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f DoctorFilter) ([]*Doctor, int, error)
	// ListActive returns active doctors ordered by specialty, then name.
	ListActive(ctx context.Context) ([]*Doctor, error)
	CountAppointments(ctx context.Context, id int64) (int, error)
	// Seed inserts d with its fixed id unless that id exists, and reports
	// whether a row was written.
	Seed(ctx context.Context, d *Doctor) (bool, error)
}

// Transactor runs fn inside a database transaction carried by ctx.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
