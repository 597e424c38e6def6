package appointment

import (
	"context"

	"github.com/hackgods/praxis-scheduling/internal/apperr"
)

var ErrAppointmentNotFound = apperr.NotFound("appointment_not_found", "Appointment not found")

// Repository contains all storage interactions needed by the service.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id string) (*Appointment, error)

	// TransitionConfirmation moves the confirmation status from -> to and sets
	// status, only if the stored confirmation status is still from.
	// A mismatch reports ErrAppointmentNotFound.
	TransitionConfirmation(ctx context.Context, id string, from, to ConfirmationStatus, status Status) (*Appointment, error)
	// Reschedule moves a pending appointment to a new date and time.
	Reschedule(ctx context.Context, id, date, clock, eventID string) (*Appointment, error)

	// Reminder bookkeeping
	IncrementReminders(ctx context.Context, id string) (*Appointment, error)
	// ListPendingBetween returns scheduled, unconfirmed appointments whose
	// date falls in [fromDate, toDate] (YYYY-MM-DD, inclusive).
	ListPendingBetween(ctx context.Context, fromDate, toDate string) ([]Appointment, error)
}
