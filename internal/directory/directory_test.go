package directory

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDirectory() *Directory {
	return New(
		[]Patient{
			{ID: "017", FirstName: "John", LastName: "Smith", DateOfBirth: "1975-03-14", Email: "john.smith@example.com", Phone: "(555) 010-0017"},
			{ID: "018", FirstName: "Jane", LastName: "Doe", DateOfBirth: "1980-01-01"},
		},
		staffDoctors,
		clinicLocations,
	)
}

func TestFindPatientCaseInsensitiveNames(t *testing.T) {
	d := testDirectory()

	p, ok, err := d.FindPatient(context.Background(), "JOHN", "smith", "1975-03-14")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "017", p.ID)
}

func TestFindPatientExactDateOfBirth(t *testing.T) {
	d := testDirectory()

	_, ok, _ := d.FindPatient(context.Background(), "John", "Smith", "1975-3-14")
	assert.False(t, ok)
	_, ok, _ = d.FindPatient(context.Background(), "John", "Smith", "1975-03-15")
	assert.False(t, ok)
}

func TestLookupsByID(t *testing.T) {
	d := testDirectory()

	doc, ok := d.Doctor("2")
	require.True(t, ok)
	assert.Equal(t, "Dr. Michael Chen", doc.Name)
	assert.Equal(t, "michael-chen", doc.CalendarLink)

	loc, ok := d.Location("1")
	require.True(t, ok)
	assert.Equal(t, "123 Main Street, Suite 100, New York, NY 10001", loc.FullAddress())

	_, ok = d.Doctor("99")
	assert.False(t, ok)
	_, ok = d.Location("")
	assert.False(t, ok)
	_, ok, err := d.Patient(context.Background(), "999")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEnrollMakesPatientResolvable(t *testing.T) {
	d := testDirectory()
	before := d.PatientCount()

	ctx := context.Background()
	require.NoError(t, d.Enroll(ctx, Patient{ID: "new-1", FirstName: "Ada", LastName: "Lovelace", DateOfBirth: "1990-12-10"}))

	assert.Equal(t, before+1, d.PatientCount())
	p, ok, _ := d.Patient(ctx, "new-1")
	require.True(t, ok)
	assert.Equal(t, "Ada", p.FirstName)

	found, ok, _ := d.FindPatient(ctx, "ada", "LOVELACE", "1990-12-10")
	require.True(t, ok)
	assert.Equal(t, "new-1", found.ID)
}

func TestEnrollSameIDReplaces(t *testing.T) {
	d := testDirectory()
	require.NoError(t, d.Enroll(context.Background(), Patient{ID: "018", FirstName: "Janet", LastName: "Doe", DateOfBirth: "1980-01-01"}))

	assert.Equal(t, 2, d.PatientCount())
	p, _, _ := d.Patient(context.Background(), "018")
	assert.Equal(t, "Janet", p.FirstName)
}

type fakeStore struct {
	patients map[string]Patient
	reads    int
	saveErr  error
}

func newFakeStore(ps ...Patient) *fakeStore {
	s := &fakeStore{patients: map[string]Patient{}}
	for _, p := range ps {
		s.patients[p.ID] = p
	}
	return s
}

func (s *fakeStore) SavePatient(_ context.Context, p Patient) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.patients[p.ID] = p
	return nil
}

func (s *fakeStore) PatientByID(_ context.Context, id string) (Patient, bool, error) {
	s.reads++
	p, ok := s.patients[id]
	return p, ok, nil
}

func (s *fakeStore) FindPatient(_ context.Context, given, family, dob string) (Patient, bool, error) {
	s.reads++
	for _, p := range s.patients {
		if strings.EqualFold(p.FirstName, given) && strings.EqualFold(p.LastName, family) && p.DateOfBirth == dob {
			return p, true, nil
		}
	}
	return Patient{}, false, nil
}

func TestPatientFallsBackToStore(t *testing.T) {
	store := newFakeStore(Patient{ID: "p-9", FirstName: "Grace", LastName: "Hopper", DateOfBirth: "1986-12-09"})
	d := testDirectory().WithStore(store)
	ctx := context.Background()

	p, ok, err := d.Patient(ctx, "p-9")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Grace", p.FirstName)

	// the hit is cached, so the store is not asked twice
	_, ok, _ = d.Patient(ctx, "p-9")
	assert.True(t, ok)
	assert.Equal(t, 1, store.reads)
	assert.Equal(t, 3, d.PatientCount())
}

func TestFindPatientFallsBackToStore(t *testing.T) {
	store := newFakeStore(Patient{ID: "p-9", FirstName: "Grace", LastName: "Hopper", DateOfBirth: "1986-12-09"})
	d := testDirectory().WithStore(store)

	p, ok, err := d.FindPatient(context.Background(), "grace", "HOPPER", "1986-12-09")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "p-9", p.ID)

	_, ok, err = d.FindPatient(context.Background(), "John", "Smith", "1975-03-14")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, store.reads)
}

func TestEnrollWritesThroughToStore(t *testing.T) {
	store := newFakeStore()
	d := testDirectory().WithStore(store)

	require.NoError(t, d.Enroll(context.Background(), Patient{ID: "new-2", FirstName: "Alan", LastName: "Turing", DateOfBirth: "1991-06-23"}))
	assert.Contains(t, store.patients, "new-2")

	// a second process sharing the store resolves the enrolled patient
	other := testDirectory().WithStore(store)
	p, ok, err := other.Patient(context.Background(), "new-2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Alan", p.FirstName)
}

func TestEnrollStoreErrorLeavesDirectoryUnchanged(t *testing.T) {
	store := newFakeStore()
	store.saveErr = errors.New("connection refused")
	d := testDirectory().WithStore(store)

	err := d.Enroll(context.Background(), Patient{ID: "new-3", FirstName: "Alan", LastName: "Kay", DateOfBirth: "1990-05-17"})
	assert.ErrorContains(t, err, "enroll patient new-3")
	assert.Equal(t, 2, d.PatientCount())
}

func TestReferenceDataIsCopied(t *testing.T) {
	d := testDirectory()
	docs := d.Doctors()
	docs[0].Name = "changed"

	doc, _ := d.Doctor("1")
	assert.Equal(t, "Dr. Sarah Johnson", doc.Name)
	assert.Len(t, d.Locations(), 3)
}

func TestSyntheticIsDeterministicPerSeed(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	a := Synthetic(7, now).Patients()
	b := Synthetic(7, now).Patients()

	require.Len(t, a, syntheticPatientCount)
	assert.Equal(t, a, b)
}

func TestSyntheticPatientShape(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	d := Synthetic(11, now)

	phone := regexp.MustCompile(`^\(\d{3}\) \d{3}-\d{4}$`)
	for i, p := range d.Patients() {
		assert.Len(t, p.ID, 3)
		if i == 0 {
			assert.Equal(t, "001", p.ID)
		}
		dob, err := time.Parse("2006-01-02", p.DateOfBirth)
		require.NoError(t, err)
		assert.True(t, dob.Year() >= 1950 && dob.Year() <= 2000, "dob %s out of range", p.DateOfBirth)
		assert.Regexp(t, phone, p.Phone)
		assert.Contains(t, p.Email, "@example.com")
		assert.False(t, p.CreatedAt.After(now))
		assert.True(t, p.CreatedAt.After(now.Add(-91*24*time.Hour)))
	}
	assert.Len(t, d.Doctors(), 3)
	assert.Len(t, d.Locations(), 3)
}
