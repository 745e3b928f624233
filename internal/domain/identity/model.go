package identity

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/randevu/randevu/internal/platform/validation"
)

const (
	nameMaxLen        = 100
	nationalIDLen     = 11
	phoneMaxLen       = 20
	emailMaxLen       = 200
	addressMaxLen     = 500
	specialtyMaxLen   = 200
	descriptionMaxLen = 500
	photoURLMaxLen    = 200
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar date with no time of day, encoded as YYYY-MM-DD.
type Date struct {
	time.Time
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{t}, nil
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// AfterDay reports whether d falls on a later calendar day than t (in UTC).
func (d Date) AfterDay(t time.Time) bool {
	y, m, day := t.UTC().Date()
	return d.Time.After(time.Date(y, m, day, 0, 0, 0, 0, time.UTC))
}

// Patient maps to the patient table.
type Patient struct {
	ID         int64     `db:"id" json:"id"`
	FirstName  string    `db:"first_name" json:"first_name"`
	LastName   string    `db:"last_name" json:"last_name"`
	NationalID string    `db:"national_id" json:"national_id"`
	Phone      string    `db:"phone" json:"phone"`
	Email      *string   `db:"email" json:"email,omitempty"`
	BirthDate  *Date     `db:"birth_date" json:"birth_date,omitempty"`
	Address    *string   `db:"address" json:"address,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Normalize trims text fields and drops blank optional values.
func (p *Patient) Normalize() {
	p.FirstName = validation.Clean(p.FirstName)
	p.LastName = validation.Clean(p.LastName)
	p.NationalID = validation.Clean(p.NationalID)
	p.Phone = validation.Clean(p.Phone)
	p.Email = validation.CleanOptional(p.Email)
	p.Address = validation.CleanOptional(p.Address)
}

// Validate checks field constraints. now bounds the birth date.
func (p *Patient) Validate(now time.Time) validation.Errors {
	var errs validation.Errors
	if errs.Required("first_name", p.FirstName) {
		errs.MaxLen("first_name", p.FirstName, nameMaxLen)
	}
	if errs.Required("last_name", p.LastName) {
		errs.MaxLen("last_name", p.LastName, nameMaxLen)
	}
	if errs.Required("national_id", p.NationalID) {
		errs.ExactLen("national_id", p.NationalID, nationalIDLen)
	}
	if errs.Required("phone", p.Phone) {
		errs.MaxLen("phone", p.Phone, phoneMaxLen)
		errs.Phone("phone", p.Phone)
	}
	if p.Email != nil {
		errs.MaxLen("email", *p.Email, emailMaxLen)
		errs.Email("email", *p.Email)
	}
	if p.BirthDate != nil && p.BirthDate.AfterDay(now) {
		errs.Add("birth_date", "must not be in the future")
	}
	errs.OptionalMaxLen("address", p.Address, addressMaxLen)
	return errs
}

// Doctor maps to the doctor table.
type Doctor struct {
	ID          int64     `db:"id" json:"id"`
	FirstName   string    `db:"first_name" json:"first_name"`
	LastName    string    `db:"last_name" json:"last_name"`
	Specialty   string    `db:"specialty" json:"specialty"`
	Description *string   `db:"description" json:"description,omitempty"`
	PhotoURL    *string   `db:"photo_url" json:"photo_url,omitempty"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

func (d *Doctor) FullName() string {
	return d.FirstName + " " + d.LastName
}

func (d *Doctor) Normalize() {
	d.FirstName = validation.Clean(d.FirstName)
	d.LastName = validation.Clean(d.LastName)
	d.Specialty = validation.Clean(d.Specialty)
	d.Description = validation.CleanOptional(d.Description)
	d.PhotoURL = validation.CleanOptional(d.PhotoURL)
}

func (d *Doctor) Validate() validation.Errors {
	var errs validation.Errors
	if errs.Required("first_name", d.FirstName) {
		errs.MaxLen("first_name", d.FirstName, nameMaxLen)
	}
	if errs.Required("last_name", d.LastName) {
		errs.MaxLen("last_name", d.LastName, nameMaxLen)
	}
	if errs.Required("specialty", d.Specialty) {
		errs.MaxLen("specialty", d.Specialty, specialtyMaxLen)
	}
	errs.OptionalMaxLen("description", d.Description, descriptionMaxLen)
	if d.PhotoURL != nil {
		errs.MaxLen("photo_url", *d.PhotoURL, photoURLMaxLen)
		errs.URL("photo_url", *d.PhotoURL)
	}
	return errs
}
