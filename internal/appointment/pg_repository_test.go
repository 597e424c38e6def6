package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var appointmentColumnNames = []string{
	"id", "patient_id", "doctor_id", "location_id", "appointment_date", "appointment_time",
	"duration_minutes", "status", "confirmation_status", "reminders_sent", "calendar_event_id",
	"created_at", "updated_at",
}

func appointmentRow(id string, conf ConfirmationStatus, status Status, eventID *string) *pgxmock.Rows {
	now := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	return pgxmock.NewRows(appointmentColumnNames).AddRow(
		id, "017", "1", "1", "2024-01-10", "09:00",
		30, status, conf, 0, eventID, now, now,
	)
}

func strPtr(s string) *string { return &s }

func TestPgRepositoryCreate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	a := seedAppointment("a", "2024-01-10")
	a.CalendarEventID = "cal-1"

	mock.ExpectExec("INSERT INTO appointments").
		WithArgs("a", "017", "1", "1", "2024-01-10", "09:00", 30, StatusScheduled, ConfirmationPending, 0,
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := NewPgRepository(mock)
	require.NoError(t, repo.Create(context.Background(), a))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryGetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM appointments").
		WithArgs("a").
		WillReturnRows(appointmentRow("a", ConfirmationPending, StatusScheduled, strPtr("cal-1")))

	repo := NewPgRepository(mock)
	a, err := repo.GetByID(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "a", a.ID)
	assert.Equal(t, "cal-1", a.CalendarEventID)
	assert.Equal(t, ConfirmationPending, a.ConfirmationStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryGetByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("FROM appointments").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	repo := NewPgRepository(mock)
	_, err = repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryTransitionConfirmation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("UPDATE appointments").
		WithArgs("a", ConfirmationConfirmed, StatusConfirmed, ConfirmationPending).
		WillReturnRows(appointmentRow("a", ConfirmationConfirmed, StatusConfirmed, nil))

	repo := NewPgRepository(mock)
	a, err := repo.TransitionConfirmation(context.Background(), "a", ConfirmationPending, ConfirmationConfirmed, StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, a.Status)
	assert.Empty(t, a.CalendarEventID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRepositoryTransitionLostRace(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("UPDATE appointments").
		WithArgs("a", ConfirmationDeclined, StatusCancelled, ConfirmationPending).
		WillReturnError(pgx.ErrNoRows)

	repo := NewPgRepository(mock)
	_, err = repo.TransitionConfirmation(context.Background(), "a", ConfirmationPending, ConfirmationDeclined, StatusCancelled)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestPgRepositoryListPendingBetween(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows(appointmentColumnNames).
		AddRow("a", "017", "1", "1", "2024-01-10", "09:00", 30, StatusScheduled, ConfirmationPending, 0, nil, now, now).
		AddRow("b", "018", "2", "1", "2024-01-11", "10:00", 60, StatusScheduled, ConfirmationPending, 1, strPtr("cal-b"), now, now)

	mock.ExpectQuery("FROM appointments").
		WithArgs("2024-01-10", "2024-01-13").
		WillReturnRows(rows)

	repo := NewPgRepository(mock)
	list, err := repo.ListPendingBetween(context.Background(), "2024-01-10", "2024-01-13")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[1].ID)
	assert.Equal(t, 1, list[1].RemindersSent)
	assert.Equal(t, "cal-b", list[1].CalendarEventID)
	require.NoError(t, mock.ExpectationsWereMet())
}
