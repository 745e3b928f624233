package scheduling

import (
	"context"

	"github.com/randevu/randevu/internal/domain/identity"
	"github.com/randevu/randevu/pkg/pagination"
)

var (
	AppointmentSortKeys    = []string{"date", "patient"}
	DefaultAppointmentSort = pagination.Sort{Key: "date", Desc: true}
)

// AppointmentFilter narrows an appointment listing. Query matches the
// patient's first or last name, the doctor name and the department. Zero
// values leave a field unfiltered.
type AppointmentFilter struct {
	Query     string
	Status    Status
	PatientID int64
	DoctorID  int64
	Sort      pagination.Sort
	Limit     int
	Offset    int
}

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	// GetByID joins the owning patient.
	GetByID(ctx context.Context, id int64) (*Appointment, error)
	// Update rewrites every editable column and keeps created_at.
	Update(ctx context.Context, a *Appointment) error
	UpdateStatus(ctx context.Context, id int64, status Status) error
	// UpdateStatusFrom sets status only while the current status is one of
	// from. It returns ErrInvalidStatusTransition when the row exists in
	// another status.
	UpdateStatusFrom(ctx context.Context, id int64, status Status, from []Status) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f AppointmentFilter) ([]*Appointment, int, error)
	// ListByPatient orders by scheduled time, most recent first.
	ListByPatient(ctx context.Context, patientID int64) ([]*Appointment, error)
}

// Directory resolves the patients and doctors appointments refer to.
// *identity.Service satisfies it.
type Directory interface {
	GetPatient(ctx context.Context, id int64) (*identity.Patient, error)
	GetDoctor(ctx context.Context, id int64) (*identity.Doctor, error)
}
