package identity

import (
	"context"
	"fmt"
)

const seedPhotoURL = "https://via.placeholder.com/150"

func strPtr(s string) *string { return &s }

// DefaultDoctors are the doctors every installation starts with.
func DefaultDoctors() []Doctor {
	return []Doctor{
		{
			ID: 1, FirstName: "Mehmet", LastName: "Kaya", Specialty: "Cardiology",
			Description: strPtr("Heart and vascular diseases specialist. 15 years of experience."),
			PhotoURL:    strPtr(seedPhotoURL), Active: true,
		},
		{
			ID: 2, FirstName: "Ayşe", LastName: "Yıldız", Specialty: "Neurology",
			Description: strPtr("Brain and nervous system diseases specialist. 12 years of experience."),
			PhotoURL:    strPtr(seedPhotoURL), Active: true,
		},
		{
			ID: 3, FirstName: "Ali", LastName: "Demir", Specialty: "Orthopedics",
			Description: strPtr("Bone, joint and muscle diseases specialist. 10 years of experience."),
			PhotoURL:    strPtr(seedPhotoURL), Active: true,
		},
	}
}

// SeedDoctors inserts each seed doctor whose id is not taken yet and returns
// how many rows were written. Running it again is a no-op.
func (s *Service) SeedDoctors(ctx context.Context) (int, error) {
	inserted := 0
	for _, d := range DefaultDoctors() {
		d := d
		ok, err := s.doctors.Seed(ctx, &d)
		if err != nil {
			return inserted, fmt.Errorf("seed doctors: %w", err)
		}
		if ok {
			inserted++
		}
	}
	return inserted, nil
}
