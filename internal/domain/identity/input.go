package identity

import (
	"strings"

	"github.com/randevu/randevu/internal/platform/validation"
)

// PatientInput is the request body for creating or editing a patient. It
// binds from JSON or form fields; blank optional fields become absent.
type PatientInput struct {
	FirstName  string `json:"first_name" form:"first_name"`
	LastName   string `json:"last_name" form:"last_name"`
	NationalID string `json:"national_id" form:"national_id"`
	Phone      string `json:"phone" form:"phone"`
	Email      string `json:"email" form:"email"`
	BirthDate  string `json:"birth_date" form:"birth_date"`
	Address    string `json:"address" form:"address"`
}

// ToPatient converts the input. An unparseable birth date is returned as a
// field failure; all other checks happen in Patient.Validate.
func (in PatientInput) ToPatient() (*Patient, validation.Errors) {
	p := &Patient{
		FirstName:  in.FirstName,
		LastName:   in.LastName,
		NationalID: in.NationalID,
		Phone:      in.Phone,
		Email:      optional(in.Email),
		Address:    optional(in.Address),
	}
	var errs validation.Errors
	if raw := strings.TrimSpace(in.BirthDate); raw != "" {
		d, err := ParseDate(raw)
		if err != nil {
			errs.Add("birth_date", "must be a date in YYYY-MM-DD format")
		} else {
			p.BirthDate = &d
		}
	}
	return p, errs
}

// DoctorInput is the request body for creating or editing a doctor. Callers
// preset Active before binding so an omitted field keeps that value.
type DoctorInput struct {
	FirstName   string `json:"first_name" form:"first_name"`
	LastName    string `json:"last_name" form:"last_name"`
	Specialty   string `json:"specialty" form:"specialty"`
	Description string `json:"description" form:"description"`
	PhotoURL    string `json:"photo_url" form:"photo_url"`
	Active      bool   `json:"active" form:"active"`
}

func (in DoctorInput) ToDoctor() *Doctor {
	return &Doctor{
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		Specialty:   in.Specialty,
		Description: optional(in.Description),
		PhotoURL:    optional(in.PhotoURL),
		Active:      in.Active,
	}
}

func optional(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
