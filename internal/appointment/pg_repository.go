package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is satisfied by *pgxpool.Pool and by pgxmock pools.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	db DBTX
}

func NewPgRepository(db DBTX) *PgRepository {
	return &PgRepository{db: db}
}

const appointmentColumns = `id, patient_id, doctor_id, location_id, appointment_date, appointment_time,
	duration_minutes, status, confirmation_status, reminders_sent, calendar_event_id, created_at, updated_at`

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var eventID *string

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.LocationID,
		&a.Date,
		&a.Time,
		&a.DurationMinutes,
		&a.Status,
		&a.ConfirmationStatus,
		&a.RemindersSent,
		&eventID,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	if eventID != nil {
		a.CalendarEventID = *eventID
	}
	return &a, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Interface methods

func (r *PgRepository) Create(ctx context.Context, a *Appointment) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO appointments (`+appointmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		a.ID, a.PatientID, a.DoctorID, a.LocationID, a.Date, a.Time,
		a.DurationMinutes, a.Status, a.ConfirmationStatus, a.RemindersSent,
		nullableString(a.CalendarEventID), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *PgRepository) GetByID(ctx context.Context, id string) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) TransitionConfirmation(ctx context.Context, id string, from, to ConfirmationStatus, status Status) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET confirmation_status = $2,
		    status = $3,
		    updated_at = now()
		WHERE id = $1
		  AND confirmation_status = $4
		RETURNING `+appointmentColumns,
		id, to, status, from)
	return scanAppointment(row)
}

func (r *PgRepository) Reschedule(ctx context.Context, id, date, clock, eventID string) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET appointment_date = $2,
		    appointment_time = $3,
		    calendar_event_id = $4,
		    updated_at = now()
		WHERE id = $1
		  AND confirmation_status = 'pending'
		RETURNING `+appointmentColumns,
		id, date, clock, nullableString(eventID))
	return scanAppointment(row)
}

func (r *PgRepository) IncrementReminders(ctx context.Context, id string) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE appointments
		SET reminders_sent = reminders_sent + 1,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns,
		id)
	return scanAppointment(row)
}

func (r *PgRepository) ListPendingBetween(ctx context.Context, fromDate, toDate string) ([]Appointment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'scheduled'
		  AND confirmation_status = 'pending'
		  AND appointment_date BETWEEN $1 AND $2
		ORDER BY appointment_date, id
	`, fromDate, toDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}
