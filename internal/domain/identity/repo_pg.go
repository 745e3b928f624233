package identity

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

// -- Patient Repository --

type patientRepoPG struct {
	pool *pgxpool.Pool
}

func NewPatientRepo(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const patientCols = `id, first_name, last_name, national_id, phone, email, birth_date, address, created_at`

var patientOrder = map[string]string{
	"name":    "first_name",
	"surname": "last_name",
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patient (first_name, last_name, national_id, phone, email, birth_date, address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`,
		p.FirstName, p.LastName, p.NationalID, p.Phone, p.Email, dateArg(p.BirthDate), p.Address, time.Now().UTC(),
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *patientRepoPG) GetByID(ctx context.Context, id int64) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("get patient %d: %w", id, err)
	}
	return p, nil
}

// GetByNationalID picks the oldest row if duplicates slipped in before the
// lock existed.
func (r *patientRepoPG) GetByNationalID(ctx context.Context, nid string) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient WHERE national_id = $1 ORDER BY id LIMIT 1`, nid))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("get patient by national id: %w", err)
	}
	return p, nil
}

func (r *patientRepoPG) NationalIDTaken(ctx context.Context, nid string, excludeID int64) (bool, error) {
	var taken bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM patient WHERE national_id = $1 AND id <> $2)`, nid, excludeID,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check national id: %w", err)
	}
	return taken, nil
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE patient SET
			first_name=$2, last_name=$3, national_id=$4, phone=$5, email=$6, birth_date=$7, address=$8
		WHERE id = $1
		RETURNING created_at`,
		p.ID, p.FirstName, p.LastName, p.NationalID, p.Phone, p.Email, dateArg(p.BirthDate), p.Address,
	).Scan(&p.CreatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return ErrPatientNotFound
		}
		return fmt.Errorf("update patient %d: %w", p.ID, err)
	}
	return nil
}

func (r *patientRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient WHERE id = $1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrHasDependents
		}
		return fmt.Errorf("delete patient %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPatientNotFound
	}
	return nil
}

func (r *patientRepoPG) List(ctx context.Context, f PatientFilter) ([]*Patient, int, error) {
	where := ""
	var args []interface{}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, db.LikePattern(q))
		where = ` WHERE first_name ILIKE $1 OR last_name ILIKE $1 OR national_id ILIKE $1 OR phone ILIKE $1`
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	order := db.OrderBy(patientOrder, f.Sort, DefaultPatientSort, "id ASC")
	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(`SELECT %s FROM patient%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		patientCols, where, order, len(args)-1, len(args))

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	patients := []*Patient{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan patient: %w", err)
		}
		patients = append(patients, p)
	}
	return patients, total, rows.Err()
}

func (r *patientRepoPG) CountAppointments(ctx context.Context, id int64) (int, error) {
	var n int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointment WHERE patient_id = $1`, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("count appointments for patient %d: %w", id, err)
	}
	return n, nil
}

func (r *patientRepoPG) LockNationalID(ctx context.Context, nid string) error {
	if _, err := r.conn(ctx).Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "patient.national_id:"+nid); err != nil {
		return fmt.Errorf("lock national id: %w", err)
	}
	return nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var birth *time.Time
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.NationalID, &p.Phone,
		&p.Email, &birth, &p.Address, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	if birth != nil {
		p.BirthDate = &Date{birth.UTC()}
	}
	return &p, nil
}

func dateArg(d *Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

// -- Doctor Repository --

type doctorRepoPG struct {
	pool *pgxpool.Pool
}

func NewDoctorRepo(pool *pgxpool.Pool) DoctorRepository {
	return &doctorRepoPG{pool: pool}
}

func (r *doctorRepoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const doctorCols = `id, first_name, last_name, specialty, description, photo_url, active, created_at`

var doctorOrder = map[string]string{
	"name":      "first_name",
	"surname":   "last_name",
	"specialty": "specialty",
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctor (first_name, last_name, specialty, description, photo_url, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		d.FirstName, d.LastName, d.Specialty, d.Description, d.PhotoURL, d.Active, time.Now().UTC(),
	).Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert doctor: %w", err)
	}
	return nil
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id int64) (*Doctor, error) {
	d, err := scanDoctor(r.conn(ctx).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctor WHERE id = $1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("get doctor %d: %w", id, err)
	}
	return d, nil
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE doctor SET
			first_name=$2, last_name=$3, specialty=$4, description=$5, photo_url=$6, active=$7
		WHERE id = $1
		RETURNING created_at`,
		d.ID, d.FirstName, d.LastName, d.Specialty, d.Description, d.PhotoURL, d.Active,
	).Scan(&d.CreatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return ErrDoctorNotFound
		}
		return fmt.Errorf("update doctor %d: %w", d.ID, err)
	}
	return nil
}

func (r *doctorRepoPG) Delete(ctx context.Context, id int64) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM doctor WHERE id = $1`, id)
	if err != nil {
		if db.IsForeignKeyViolation(err) {
			return ErrHasDependents
		}
		return fmt.Errorf("delete doctor %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDoctorNotFound
	}
	return nil
}

func (r *doctorRepoPG) List(ctx context.Context, f DoctorFilter) ([]*Doctor, int, error) {
	var conds []string
	var args []interface{}
	if q := strings.TrimSpace(f.Query); q != "" {
		args = append(args, db.LikePattern(q))
		n := len(args)
		conds = append(conds, fmt.Sprintf("(first_name ILIKE $%d OR last_name ILIKE $%d OR specialty ILIKE $%d)", n, n, n))
	}
	if f.Active != nil {
		args = append(args, *f.Active)
		conds = append(conds, fmt.Sprintf("active = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM doctor`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count doctors: %w", err)
	}

	order := db.OrderBy(doctorOrder, f.Sort, DefaultDoctorSort, "id ASC")
	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf(`SELECT %s FROM doctor%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		doctorCols, where, order, len(args)-1, len(args))

	doctors, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return doctors, total, nil
}

func (r *doctorRepoPG) ListActive(ctx context.Context) ([]*Doctor, error) {
	return r.query(ctx, `SELECT `+doctorCols+` FROM doctor WHERE active ORDER BY specialty, first_name, last_name, id`)
}

func (r *doctorRepoPG) query(ctx context.Context, sql string, args ...interface{}) ([]*Doctor, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()

	doctors := []*Doctor{}
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, fmt.Errorf("scan doctor: %w", err)
		}
		doctors = append(doctors, d)
	}
	return doctors, rows.Err()
}

func (r *doctorRepoPG) CountAppointments(ctx context.Context, id int64) (int, error) {
	var n int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM appointment WHERE doctor_id = $1`, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("count appointments for doctor %d: %w", id, err)
	}
	return n, nil
}

func (r *doctorRepoPG) Seed(ctx context.Context, d *Doctor) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO doctor (id, first_name, last_name, specialty, description, photo_url, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`,
		d.ID, d.FirstName, d.LastName, d.Specialty, d.Description, d.PhotoURL, d.Active, time.Now().UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("seed doctor %d: %w", d.ID, err)
	}
	// Explicit ids do not advance the sequence.
	_, err = r.conn(ctx).Exec(ctx,
		`SELECT setval(pg_get_serial_sequence('doctor', 'id'), GREATEST((SELECT MAX(id) FROM doctor), 1))`)
	if err != nil {
		return false, fmt.Errorf("advance doctor sequence: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.FirstName, &d.LastName, &d.Specialty,
		&d.Description, &d.PhotoURL, &d.Active, &d.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
