// Package directory holds the practice's reference data: patients, doctors
// and locations. Doctors and locations are immutable; patients only grow
// through Enroll.
package directory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

type Patient struct {
	ID          string    `json:"id"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	DateOfBirth string    `json:"dob"` // YYYY-MM-DD
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Doctor struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Specialty    string `json:"specialty"`
	CalendarLink string `json:"calendlyLink"`
	ImageURL     string `json:"imageUrl,omitempty"`
}

type Location struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Phone   string `json:"phone"`
}

// FullAddress renders "street, city, state zip".
func (l Location) FullAddress() string {
	return l.Address + ", " + l.City + ", " + l.State + " " + l.Zip
}

// PatientStore persists enrolled patients so every process sharing it can
// resolve them.
type PatientStore interface {
	SavePatient(ctx context.Context, p Patient) error
	PatientByID(ctx context.Context, id string) (Patient, bool, error)
	FindPatient(ctx context.Context, given, family, dob string) (Patient, bool, error)
}

type Directory struct {
	mu        sync.RWMutex
	patients  []Patient
	byID      map[string]int
	doctors   []Doctor
	locations []Location
	store     PatientStore
}

func New(patients []Patient, doctors []Doctor, locations []Location) *Directory {
	d := &Directory{
		byID:      make(map[string]int, len(patients)),
		doctors:   append([]Doctor(nil), doctors...),
		locations: append([]Location(nil), locations...),
	}
	for _, p := range patients {
		d.add(p)
	}
	return d
}

// WithStore attaches the store enrolled patients are written to and read
// back from.
func (d *Directory) WithStore(store PatientStore) *Directory {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.store = store
	return d
}

func (d *Directory) add(p Patient) {
	d.byID[p.ID] = len(d.patients)
	d.patients = append(d.patients, p)
}

// Patient resolves a patient by id, falling back to the patient store for
// patients enrolled by another process or before a restart.
func (d *Directory) Patient(ctx context.Context, id string) (Patient, bool, error) {
	d.mu.RLock()
	i, ok := d.byID[id]
	var p Patient
	if ok {
		p = d.patients[i]
	}
	store := d.store
	d.mu.RUnlock()
	if ok || store == nil {
		return p, ok, nil
	}

	p, ok, err := store.PatientByID(ctx, id)
	if err != nil || !ok {
		return Patient{}, false, err
	}
	d.remember(p)
	return p, true, nil
}

// FindPatient matches given and family name case-insensitively and the date
// of birth exactly. The first match in registration order wins; the patient
// store is only asked when no loaded patient matches.
func (d *Directory) FindPatient(ctx context.Context, given, family, dob string) (Patient, bool, error) {
	d.mu.RLock()
	for _, p := range d.patients {
		if strings.EqualFold(p.FirstName, given) &&
			strings.EqualFold(p.LastName, family) &&
			p.DateOfBirth == dob {
			d.mu.RUnlock()
			return p, true, nil
		}
	}
	store := d.store
	d.mu.RUnlock()
	if store == nil {
		return Patient{}, false, nil
	}

	p, ok, err := store.FindPatient(ctx, given, family, dob)
	if err != nil || !ok {
		return Patient{}, false, err
	}
	d.remember(p)
	return p, true, nil
}

// Enroll registers a patient created by a new-patient booking, writing it
// to the patient store first when one is attached. Identifiers are trusted
// to be fresh; no deduplication is attempted.
func (d *Directory) Enroll(ctx context.Context, p Patient) error {
	d.mu.RLock()
	store := d.store
	d.mu.RUnlock()
	if store != nil {
		if err := store.SavePatient(ctx, p); err != nil {
			return fmt.Errorf("enroll patient %s: %w", p.ID, err)
		}
	}
	d.remember(p)
	return nil
}

func (d *Directory) remember(p Patient) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i, ok := d.byID[p.ID]; ok {
		d.patients[i] = p
		return
	}
	d.add(p)
}

func (d *Directory) Doctor(id string) (Doctor, bool) {
	for _, doc := range d.doctors {
		if doc.ID == id {
			return doc, true
		}
	}
	return Doctor{}, false
}

func (d *Directory) Location(id string) (Location, bool) {
	for _, loc := range d.locations {
		if loc.ID == id {
			return loc, true
		}
	}
	return Location{}, false
}

func (d *Directory) Doctors() []Doctor {
	return append([]Doctor(nil), d.doctors...)
}

func (d *Directory) Locations() []Location {
	return append([]Location(nil), d.locations...)
}

func (d *Directory) PatientCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.patients)
}

// Patients returns a snapshot of every registered patient.
func (d *Directory) Patients() []Patient {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Patient(nil), d.patients...)
}
