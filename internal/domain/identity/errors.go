package identity

import "errors"

var (
	ErrPatientNotFound = errors.New("patient not found")
	ErrDoctorNotFound  = errors.New("doctor not found")
	// ErrHasDependents blocks deleting a patient or doctor that appointments still reference.
	ErrHasDependents = errors.New("record has appointments and cannot be deleted")
)

// MsgDuplicateNationalID is attached to the national_id field when another
// patient already holds the value.
const MsgDuplicateNationalID = "a patient with this national ID already exists"
