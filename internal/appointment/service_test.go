package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/praxis-scheduling/internal/apperr"
	"github.com/hackgods/praxis-scheduling/internal/calendar"
	"github.com/hackgods/praxis-scheduling/internal/directory"
	"github.com/hackgods/praxis-scheduling/internal/patient"
)

type stubCalendar struct {
	mu      sync.Mutex
	calls   []calendar.Reservation
	refuse  bool
	failErr error
}

func (c *stubCalendar) Reserve(_ context.Context, r calendar.Reservation) (calendar.Confirmation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, r)
	if c.failErr != nil {
		return calendar.Confirmation{}, c.failErr
	}
	if c.refuse {
		return calendar.Confirmation{Success: false}, nil
	}
	return calendar.Confirmation{Success: true, ExternalEventID: "cal-test"}, nil
}

func (c *stubCalendar) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

type fixture struct {
	svc  *Service
	repo *MemoryRepository
	dir  *directory.Directory
	cal  *stubCalendar
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := directory.New(
		[]directory.Patient{{ID: "017", FirstName: "John", LastName: "Smith", DateOfBirth: "1975-03-14"}},
		[]directory.Doctor{{ID: "1", Name: "Dr. Sarah Johnson", CalendarLink: "https://calendly.com/dr-sarah-johnson"}},
		[]directory.Location{{ID: "1", Name: "Main Street Clinic"}},
	)
	repo := NewMemoryRepository()
	cal := &stubCalendar{}
	svc := NewService(repo, dir, cal, nil, nil, zerolog.Nop())
	return &fixture{svc: svc, repo: repo, dir: dir, cal: cal}
}

func validBooking() BookRequest {
	return BookRequest{
		PatientID:   "017",
		PatientType: patient.TypeReturning,
		DoctorID:    "1",
		LocationID:  "1",
		Date:        "2024-01-10",
		Time:        "09:00",
	}
}

func TestBookReturningPatient(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Book(context.Background(), validBooking())
	require.NoError(t, err)

	a := res.Appointment
	assert.Equal(t, "017", a.PatientID)
	assert.Equal(t, ReturningPatientMinutes, a.DurationMinutes)
	assert.Equal(t, StatusScheduled, a.Status)
	assert.Equal(t, ConfirmationPending, a.ConfirmationStatus)
	assert.Equal(t, 0, a.RemindersSent)
	assert.Equal(t, "cal-test", a.CalendarEventID)
	assert.Equal(t, "cal-test", res.CalendarEventID)

	stored, err := f.repo.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, stored.ID)

	require.Equal(t, 1, f.cal.callCount())
	assert.Equal(t, "https://calendly.com/dr-sarah-johnson", f.cal.calls[0].ProviderLink)
	assert.Equal(t, 30, f.cal.calls[0].DurationMinutes)
}

func TestBookNewPatientEnrolls(t *testing.T) {
	f := newFixture(t)

	req := validBooking()
	req.PatientID = ""
	req.PatientType = patient.TypeNew
	req.PatientData = &NewPatient{
		FullName:    "Ada Lovelace",
		DateOfBirth: "1990-12-10",
		Email:       "ada@example.com",
		Phone:       "(555) 123-4567",
	}

	res, err := f.svc.Book(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, NewPatientMinutes, res.Appointment.DurationMinutes)
	assert.NotEmpty(t, res.Appointment.PatientID)

	p, ok, err := f.dir.Patient(context.Background(), res.Appointment.PatientID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Ada", p.FirstName)
	assert.Equal(t, "Lovelace", p.LastName)
	assert.Equal(t, "ada@example.com", p.Email)

	found, ok, err := f.dir.FindPatient(context.Background(), "ada", "lovelace", "1990-12-10")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, p.ID, found.ID)
}

type failingPatientStore struct{}

func (failingPatientStore) SavePatient(context.Context, directory.Patient) error {
	return errors.New("patients table unavailable")
}

func (failingPatientStore) PatientByID(context.Context, string) (directory.Patient, bool, error) {
	return directory.Patient{}, false, nil
}

func (failingPatientStore) FindPatient(context.Context, string, string, string) (directory.Patient, bool, error) {
	return directory.Patient{}, false, nil
}

func TestBookNewPatientEnrollFailureStoresNothing(t *testing.T) {
	f := newFixture(t)
	f.dir.WithStore(failingPatientStore{})

	req := validBooking()
	req.PatientID = ""
	req.PatientType = patient.TypeNew
	req.PatientData = &NewPatient{FirstName: "Ada", LastName: "Lovelace", DateOfBirth: "1990-12-10"}

	_, err := f.svc.Book(context.Background(), req)
	assert.ErrorContains(t, err, "patients table unavailable")

	pending, _ := f.repo.ListPendingBetween(context.Background(), "0000-01-01", "9999-12-31")
	assert.Empty(t, pending)
}

func TestDurationForEveryDoctorAndLocation(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	dir := directory.Synthetic(42, now)
	svc := NewService(NewMemoryRepository(), dir, &stubCalendar{}, nil, nil, zerolog.Nop())
	returning := dir.Patients()[0].ID

	for _, doc := range dir.Doctors() {
		for _, loc := range dir.Locations() {
			for _, tt := range []struct {
				kind patient.Type
				want int
			}{
				{patient.TypeNew, 60},
				{patient.TypeReturning, 30},
			} {
				req := BookRequest{
					PatientType: tt.kind,
					DoctorID:    doc.ID,
					LocationID:  loc.ID,
					Date:        "2024-01-10",
					Time:        "09:00",
				}
				if tt.kind == patient.TypeReturning {
					req.PatientID = returning
				}

				res, err := svc.Book(context.Background(), req)
				require.NoError(t, err, "doctor %s location %s", doc.ID, loc.ID)
				assert.Equal(t, tt.want, res.Appointment.DurationMinutes, "doctor %s location %s %s", doc.ID, loc.ID, tt.kind)
			}
		}
	}
}

func TestBookNewPatientIgnoresSuppliedID(t *testing.T) {
	f := newFixture(t)

	req := validBooking()
	req.PatientType = patient.TypeNew

	res, err := f.svc.Book(context.Background(), req)
	require.NoError(t, err)
	assert.NotEqual(t, "017", res.Appointment.PatientID)
}

func TestBookValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *BookRequest)
		want   error
	}{
		{"missing doctor", func(r *BookRequest) { r.DoctorID = "" }, ErrMissingBookingFields},
		{"missing location", func(r *BookRequest) { r.LocationID = "" }, ErrMissingBookingFields},
		{"missing date", func(r *BookRequest) { r.Date = "" }, ErrMissingBookingFields},
		{"missing time", func(r *BookRequest) { r.Time = "" }, ErrMissingBookingFields},
		{"missing patient type", func(r *BookRequest) { r.PatientType = "" }, ErrMissingBookingFields},
		{"unknown patient type", func(r *BookRequest) { r.PatientType = "vip" }, ErrInvalidPatientType},
		{"bad date", func(r *BookRequest) { r.Date = "10/01/2024" }, ErrInvalidDate},
		{"bad time", func(r *BookRequest) { r.Time = "noon" }, ErrInvalidTime},
		{"returning without id", func(r *BookRequest) { r.PatientID = "" }, ErrPatientIDRequired},
		{"unknown doctor", func(r *BookRequest) { r.DoctorID = "99" }, ErrDoctorNotFound},
		{"unknown location", func(r *BookRequest) { r.LocationID = "99" }, ErrLocationNotFound},
		{"unknown patient", func(r *BookRequest) { r.PatientID = "999" }, ErrPatientNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := validBooking()
			tt.mutate(&req)

			_, err := f.svc.Book(context.Background(), req)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, f.cal.callCount(), "calendar must not be called")
		})
	}
}

func TestBookAcceptsTwelveHourClock(t *testing.T) {
	f := newFixture(t)
	req := validBooking()
	req.Time = "2:30 pm"

	res, err := f.svc.Book(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "2:30 pm", res.Appointment.Time)
}

func TestBookCalendarFailuresStoreNothing(t *testing.T) {
	t.Run("refused", func(t *testing.T) {
		f := newFixture(t)
		f.cal.refuse = true

		_, err := f.svc.Book(context.Background(), validBooking())
		assert.ErrorIs(t, err, ErrCalendarRejected)
		assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))

		pending, _ := f.repo.ListPendingBetween(context.Background(), "0000-01-01", "9999-12-31")
		assert.Empty(t, pending)
	})

	t.Run("error", func(t *testing.T) {
		f := newFixture(t)
		f.cal.failErr = errors.New("connection reset")

		req := validBooking()
		req.PatientID = ""
		req.PatientType = patient.TypeNew
		req.PatientData = &NewPatient{FirstName: "Ada", LastName: "Lovelace", DateOfBirth: "1990-12-10"}

		_, err := f.svc.Book(context.Background(), req)
		assert.ErrorIs(t, err, ErrCalendarUnavailable)

		_, ok, _ := f.dir.FindPatient(context.Background(), "Ada", "Lovelace", "1990-12-10")
		assert.False(t, ok, "patient must not be enrolled when booking fails")
	})
}

func book(t *testing.T, f *fixture) *Appointment {
	t.Helper()
	res, err := f.svc.Book(context.Background(), validBooking())
	require.NoError(t, err)
	return res.Appointment
}

func TestConfirmTransitions(t *testing.T) {
	tests := []struct {
		action     ConfirmationAction
		wantConf   ConfirmationStatus
		wantStatus Status
	}{
		{ActionConfirm, ConfirmationConfirmed, StatusConfirmed},
		{ActionDecline, ConfirmationDeclined, StatusCancelled},
		{ActionReschedule, ConfirmationPending, StatusScheduled},
	}

	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			f := newFixture(t)
			a := book(t, f)

			res, err := f.svc.Confirm(context.Background(), ConfirmRequest{AppointmentID: a.ID, ConfirmationStatus: tt.action})
			require.NoError(t, err)

			assert.Equal(t, "Appointment "+string(tt.action)+" successfully", res.Message)
			assert.Equal(t, tt.wantConf, res.Appointment.ConfirmationStatus)
			assert.Equal(t, tt.wantStatus, res.Appointment.Status)

			stored, err := f.repo.GetByID(context.Background(), a.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantConf, stored.ConfirmationStatus)
		})
	}
}

func TestConfirmIsIdempotentForSameAnswer(t *testing.T) {
	f := newFixture(t)
	a := book(t, f)

	_, err := f.svc.Confirm(context.Background(), ConfirmRequest{AppointmentID: a.ID, ConfirmationStatus: ActionConfirm})
	require.NoError(t, err)

	res, err := f.svc.Confirm(context.Background(), ConfirmRequest{AppointmentID: a.ID, ConfirmationStatus: ActionConfirm})
	require.NoError(t, err)
	assert.Equal(t, ConfirmationConfirmed, res.Appointment.ConfirmationStatus)
}

func TestConfirmRejectsChangeOfTerminalAnswer(t *testing.T) {
	f := newFixture(t)
	a := book(t, f)

	_, err := f.svc.Confirm(context.Background(), ConfirmRequest{AppointmentID: a.ID, ConfirmationStatus: ActionDecline})
	require.NoError(t, err)

	for _, action := range []ConfirmationAction{ActionConfirm, ActionReschedule} {
		_, err = f.svc.Confirm(context.Background(), ConfirmRequest{AppointmentID: a.ID, ConfirmationStatus: action})
		assert.ErrorIs(t, err, ErrInvalidStatusTransition, action)
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	}

	stored, err := f.repo.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, ConfirmationDeclined, stored.ConfirmationStatus)
	assert.Equal(t, StatusCancelled, stored.Status)
}

func TestConfirmRescheduleMovesAppointment(t *testing.T) {
	f := newFixture(t)
	a := book(t, f)

	res, err := f.svc.Confirm(context.Background(), ConfirmRequest{
		AppointmentID:      a.ID,
		ConfirmationStatus: ActionReschedule,
		Date:               "2024-01-12",
		Time:               "11:00",
	})
	require.NoError(t, err)

	assert.Equal(t, "2024-01-12", res.Appointment.Date)
	assert.Equal(t, "11:00", res.Appointment.Time)
	assert.Equal(t, ConfirmationPending, res.Appointment.ConfirmationStatus)
	assert.Equal(t, 2, f.cal.callCount())
	assert.Equal(t, ReturningPatientMinutes, f.cal.calls[1].DurationMinutes)
}

func TestConfirmValidation(t *testing.T) {
	f := newFixture(t)
	a := book(t, f)

	tests := []struct {
		name string
		req  ConfirmRequest
		want error
	}{
		{"missing id", ConfirmRequest{ConfirmationStatus: ActionConfirm}, ErrMissingConfirmFields},
		{"missing status", ConfirmRequest{AppointmentID: a.ID}, ErrMissingConfirmFields},
		{"unknown status", ConfirmRequest{AppointmentID: a.ID, ConfirmationStatus: "maybe"}, ErrInvalidConfirmation},
		{"date without time", ConfirmRequest{AppointmentID: a.ID, ConfirmationStatus: ActionReschedule, Date: "2024-01-12"}, ErrRescheduleNeedsDateTime},
		{"unknown appointment", ConfirmRequest{AppointmentID: "nope", ConfirmationStatus: ActionConfirm}, ErrAppointmentNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Confirm(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestConfirmRejectsCaseVariants(t *testing.T) {
	f := newFixture(t)
	a := book(t, f)

	for _, status := range []ConfirmationAction{"Confirmed", "CONFIRMED", " confirmed", "confirmed ", "Declined"} {
		_, err := f.svc.Confirm(context.Background(), ConfirmRequest{AppointmentID: a.ID, ConfirmationStatus: status})
		assert.ErrorIs(t, err, ErrInvalidConfirmation, "%q", status)
	}

	stored, err := f.repo.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, ConfirmationPending, stored.ConfirmationStatus)
}

func TestConfirmIgnoresStrayDate(t *testing.T) {
	f := newFixture(t)
	a := book(t, f)

	res, err := f.svc.Confirm(context.Background(), ConfirmRequest{
		AppointmentID:      a.ID,
		ConfirmationStatus: ActionConfirm,
		Date:               "2024-01-12",
	})
	require.NoError(t, err)
	assert.Equal(t, ConfirmationConfirmed, res.Appointment.ConfirmationStatus)
	assert.Equal(t, "2024-01-10", res.Appointment.Date)

	b := book(t, f)
	res, err = f.svc.Confirm(context.Background(), ConfirmRequest{
		AppointmentID:      b.ID,
		ConfirmationStatus: ActionDecline,
		Time:               "11:00",
	})
	require.NoError(t, err)
	assert.Equal(t, ConfirmationDeclined, res.Appointment.ConfirmationStatus)
}

func TestConcurrentConfirmAndDecline(t *testing.T) {
	f := newFixture(t)
	a := book(t, f)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, action := range []ConfirmationAction{ActionConfirm, ActionDecline} {
		wg.Add(1)
		go func(i int, action ConfirmationAction) {
			defer wg.Done()
			_, errs[i] = f.svc.Confirm(context.Background(), ConfirmRequest{AppointmentID: a.ID, ConfirmationStatus: action})
		}(i, action)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrInvalidStatusTransition)
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestStartsAt(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	a := Appointment{Date: "2024-01-10", Time: "2:30 PM"}
	start, err := a.StartsAt(loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 10, 14, 30, 0, 0, loc), start)
}
