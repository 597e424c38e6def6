package directory

import (
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
)

const syntheticPatientCount = 50

// Doctors on staff. CalendarLink is the provider handle passed to the
// calendar gateway.
var staffDoctors = []Doctor{
	{
		ID:           "1",
		Name:         "Dr. Sarah Johnson",
		Specialty:    "Family Medicine",
		CalendarLink: "sarah-johnson",
		ImageURL:     "https://images.unsplash.com/photo-1559839734-2b71ea197ec2?q=80&w=200&h=200&auto=format&fit=crop",
	},
	{
		ID:           "2",
		Name:         "Dr. Michael Chen",
		Specialty:    "Cardiology",
		CalendarLink: "michael-chen",
		ImageURL:     "https://images.unsplash.com/photo-1612349317150-e413f6a5b16d?q=80&w=200&h=200&auto=format&fit=crop",
	},
	{
		ID:           "3",
		Name:         "Dr. Amara Patel",
		Specialty:    "Pediatrics",
		CalendarLink: "amara-patel",
		ImageURL:     "https://images.unsplash.com/photo-1594824476967-48c8b964273f?q=80&w=200&h=200&auto=format&fit=crop",
	},
}

var clinicLocations = []Location{
	{ID: "1", Name: "Downtown Medical Center", Address: "123 Main Street, Suite 100", City: "New York", State: "NY", Zip: "10001", Phone: "(212) 555-1234"},
	{ID: "2", Name: "Westside Health Clinic", Address: "456 Park Avenue", City: "New York", State: "NY", Zip: "10022", Phone: "(212) 555-5678"},
	{ID: "3", Name: "Eastside Medical Plaza", Address: "789 Lexington Avenue", City: "New York", State: "NY", Zip: "10065", Phone: "(212) 555-9012"},
}

// Synthetic builds the demo directory. The same seed always yields the same
// patients, so separate processes agree on identifiers and contact details.
func Synthetic(seed uint64, now time.Time) *Directory {
	faker := gofakeit.New(seed)

	dobFrom := time.Date(1950, time.January, 1, 0, 0, 0, 0, time.UTC)
	dobTo := time.Date(2000, time.December, 28, 0, 0, 0, 0, time.UTC)

	patients := make([]Patient, 0, syntheticPatientCount)
	for i := 0; i < syntheticPatientCount; i++ {
		first := faker.FirstName()
		last := faker.LastName()
		dob := faker.DateRange(dobFrom, dobTo)

		patients = append(patients, Patient{
			ID:          fmt.Sprintf("%03d", i+1),
			FirstName:   first,
			LastName:    last,
			DateOfBirth: dob.Format("2006-01-02"),
			Email:       strings.ToLower(first + "." + last + "@example.com"),
			Phone: fmt.Sprintf("(%d) %d-%d",
				faker.Number(100, 999), faker.Number(100, 999), faker.Number(1000, 9999)),
			CreatedAt: now.Add(-time.Duration(faker.Number(0, 90*24)) * time.Hour).UTC(),
			UpdatedAt: now.Add(-time.Duration(faker.Number(0, 30*24)) * time.Hour).UTC(),
		})
	}

	return New(patients, staffDoctors, clinicLocations)
}
