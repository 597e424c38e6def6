package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAppointment(id, date string) *Appointment {
	return &Appointment{
		ID:                 id,
		PatientID:          "017",
		DoctorID:           "1",
		LocationID:         "1",
		Date:               date,
		Time:               "09:00",
		DurationMinutes:    30,
		Status:             StatusScheduled,
		ConfirmationStatus: ConfirmationPending,
	}
}

func TestMemoryRepositoryCreateRejectsDuplicate(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	require.NoError(t, r.Create(ctx, seedAppointment("a", "2024-01-10")))
	assert.Error(t, r.Create(ctx, seedAppointment("a", "2024-01-11")))
}

func TestMemoryRepositoryReturnsCopies(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, r.Create(ctx, seedAppointment("a", "2024-01-10")))

	got, err := r.GetByID(ctx, "a")
	require.NoError(t, err)
	got.Date = "1999-01-01"

	again, err := r.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-10", again.Date)
}

func TestMemoryRepositoryTransitionGuard(t *testing.T) {
	r := NewMemoryRepository()
	fixed := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }
	ctx := context.Background()
	require.NoError(t, r.Create(ctx, seedAppointment("a", "2024-01-10")))

	a, err := r.TransitionConfirmation(ctx, "a", ConfirmationPending, ConfirmationConfirmed, StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, ConfirmationConfirmed, a.ConfirmationStatus)
	assert.Equal(t, fixed, a.UpdatedAt)

	_, err = r.TransitionConfirmation(ctx, "a", ConfirmationPending, ConfirmationDeclined, StatusCancelled)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	_, err = r.Reschedule(ctx, "a", "2024-01-12", "10:00", "cal-2")
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestMemoryRepositoryIncrementReminders(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, r.Create(ctx, seedAppointment("a", "2024-01-10")))

	for i := 1; i <= 3; i++ {
		a, err := r.IncrementReminders(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, i, a.RemindersSent)
	}

	_, err := r.IncrementReminders(ctx, "missing")
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
}

func TestMemoryRepositoryListPendingBetween(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	require.NoError(t, r.Create(ctx, seedAppointment("b", "2024-01-11")))
	require.NoError(t, r.Create(ctx, seedAppointment("a", "2024-01-11")))
	require.NoError(t, r.Create(ctx, seedAppointment("c", "2024-01-10")))
	require.NoError(t, r.Create(ctx, seedAppointment("late", "2024-01-20")))
	require.NoError(t, r.Create(ctx, seedAppointment("done", "2024-01-10")))
	_, err := r.TransitionConfirmation(ctx, "done", ConfirmationPending, ConfirmationConfirmed, StatusConfirmed)
	require.NoError(t, err)

	list, err := r.ListPendingBetween(ctx, "2024-01-10", "2024-01-13")
	require.NoError(t, err)

	ids := make([]string, 0, len(list))
	for _, a := range list {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}
