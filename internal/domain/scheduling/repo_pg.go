package scheduling

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/randevu/randevu/internal/platform/db"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type appointmentRepoPG struct {
	pool *pgxpool.Pool
}

func NewAppointmentRepo(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const appointmentCols = `a.id, a.patient_id, a.doctor_id, a.scheduled_at, a.doctor_name, a.department,
	a.complaint, a.notes, a.status, a.created_at, p.first_name, p.last_name, p.national_id`

const appointmentFrom = ` FROM appointment a JOIN patient p ON p.id = a.patient_id`

var appointmentOrder = map[string]string{
	"date":    "a.scheduled_at",
	"patient": "p.first_name",
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointment (patient_id, doctor_id, scheduled_at, doctor_name, department, complaint, notes, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`,
		a.PatientID, a.DoctorID, a.ScheduledAt.UTC(), a.DoctorName, a.Department,
		a.Complaint, a.Notes, string(a.Status), time.Now().UTC(),
	).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id int64) (*Appointment, error) {
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+appointmentCols+appointmentFrom+` WHERE a.id = $1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("get appointment %d: %w", id, err)
	}
	return a, nil
}

func (r *appointmentRepoPG) Update(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE appointment SET
			patient_id=$2, doctor_id=$3, scheduled_at=$4, doctor_name=$5, department=$6,
			complaint=$7, notes=$8, status=$9
		WHERE id = $1
		RETURNING created_at`,
		a.ID, a.PatientID, a.DoctorID, a.ScheduledAt.UTC(), a.DoctorName, a.Department,
		a.Complaint, a.Notes, string(a.Status),
	).Scan(&a.CreatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return ErrAppointmentNotFound
		}
		return fmt.Errorf("update appointment %d: %w", a.ID, err)
	}
	return nil
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE appointment SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("update appointment %d status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *appointmentRepoPG) UpdateStatusFrom(ctx context.Context, id int64, status Status, from []Status) error {
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE appointment SET status = $2 WHERE id = $1 AND status = ANY($3::text[])`,
		id, string(status), allowed)
	if err != nil {
		return fmt.Errorf("update appointment %d status: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM appointment WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check appointment %d: %w", id, err)
	}
	if !exists {
		return ErrAppointmentNotFound
	}
	return ErrInvalidStatusTransition
}

func (r *appointmentRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointment WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *appointmentRepoPG) List(ctx context.Context, f AppointmentFilter) ([]*Appointment, int, error) {
	var conds []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q := strings.TrimSpace(f.Query); q != "" {
		n := arg(db.LikePattern(q))
		conds = append(conds, fmt.Sprintf(
			"(p.first_name ILIKE %[1]s OR p.last_name ILIKE %[1]s OR a.doctor_name ILIKE %[1]s OR a.department ILIKE %[1]s)", n))
	}
	if f.Status != "" {
		conds = append(conds, "a.status = "+arg(string(f.Status)))
	}
	if f.PatientID > 0 {
		conds = append(conds, "a.patient_id = "+arg(f.PatientID))
	}
	if f.DoctorID > 0 {
		conds = append(conds, "a.doctor_id = "+arg(f.DoctorID))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+appointmentFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	order := db.OrderBy(appointmentOrder, f.Sort, DefaultAppointmentSort, "a.id DESC")
	query := fmt.Sprintf(`SELECT %s%s%s ORDER BY %s LIMIT %s OFFSET %s`,
		appointmentCols, appointmentFrom, where, order, arg(f.Limit), arg(f.Offset))

	appts, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return appts, total, nil
}

func (r *appointmentRepoPG) ListByPatient(ctx context.Context, patientID int64) ([]*Appointment, error) {
	return r.query(ctx, `SELECT `+appointmentCols+appointmentFrom+`
		WHERE a.patient_id = $1 ORDER BY a.scheduled_at DESC, a.id DESC`, patientID)
}

func (r *appointmentRepoPG) query(ctx context.Context, sql string, args ...interface{}) ([]*Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	appts := []*Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		appts = append(appts, a)
	}
	return appts, rows.Err()
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status string
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.ScheduledAt, &a.DoctorName, &a.Department,
		&a.Complaint, &a.Notes, &status, &a.CreatedAt,
		&a.PatientFirstName, &a.PatientLastName, &a.PatientNationalID)
	if err != nil {
		return nil, err
	}
	a.Status = Status(status)
	a.ScheduledAt = a.ScheduledAt.UTC()
	return &a, nil
}
