package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/praxis-scheduling/internal/apperr"
	"github.com/hackgods/praxis-scheduling/internal/calendar"
	"github.com/hackgods/praxis-scheduling/internal/directory"
	"github.com/hackgods/praxis-scheduling/internal/observability/metrics"
	"github.com/hackgods/praxis-scheduling/internal/patient"
)

var (
	ErrMissingBookingFields    = apperr.Validation("missing_fields", "Missing required appointment details")
	ErrInvalidPatientType      = apperr.Validation("invalid_patient_type", "Patient type must be new or returning")
	ErrInvalidDate             = apperr.Validation("invalid_date", "Date must be formatted as YYYY-MM-DD")
	ErrInvalidTime             = apperr.Validation("invalid_time", "Time must be formatted as HH:MM or H:MM AM")
	ErrPatientIDRequired       = apperr.Validation("patient_id_required", "Patient ID is required for returning patients")
	ErrMissingConfirmFields    = apperr.Validation("missing_confirmation_fields", "Appointment ID and confirmation status are required")
	ErrInvalidConfirmation     = apperr.Validation("invalid_confirmation_status", "Invalid confirmation status. Must be confirmed, declined, or rescheduled")
	ErrRescheduleNeedsDateTime = apperr.Validation("reschedule_requires_date_and_time", "Rescheduling requires both a new date and a new time")
	ErrDoctorNotFound          = apperr.NotFound("doctor_not_found", "Doctor not found")
	ErrLocationNotFound        = apperr.NotFound("location_not_found", "Location not found")
	ErrPatientNotFound         = apperr.NotFound("patient_not_found", "Patient not found")
	ErrInvalidStatusTransition = apperr.Conflict("invalid_status_transition", "Appointment has already been answered")
	ErrCalendarRejected        = apperr.Upstream("calendar_rejected", "Failed to book appointment with the calendar provider")
	ErrCalendarUnavailable     = apperr.Upstream("calendar_unavailable", "Failed to book appointment")
)

// Directory is the part of the practice directory booking needs.
type Directory interface {
	Patient(ctx context.Context, id string) (directory.Patient, bool, error)
	Doctor(id string) (directory.Doctor, bool)
	Location(id string) (directory.Location, bool)
	Enroll(ctx context.Context, p directory.Patient) error
}

type NewPatient struct {
	FullName    string `json:"fullName,omitempty"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	DateOfBirth string `json:"dateOfBirth,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
}

type BookRequest struct {
	PatientID   string       `json:"patientId,omitempty"`
	PatientType patient.Type `json:"patientType" validate:"required,oneof=new returning"`
	PatientData *NewPatient  `json:"patientData,omitempty"`
	DoctorID    string       `json:"doctorId" validate:"required"`
	LocationID  string       `json:"locationId" validate:"required"`
	Date        string       `json:"date" validate:"required,datetime=2006-01-02"`
	Time        string       `json:"time" validate:"required"`
}

type BookResult struct {
	Appointment     *Appointment
	CalendarEventID string
}

type ConfirmRequest struct {
	AppointmentID      string             `json:"appointmentId" validate:"required"`
	ConfirmationStatus ConfirmationAction `json:"confirmationStatus" validate:"required,oneof=confirmed declined rescheduled"`
	// Date and Time move the appointment when rescheduling.
	Date string `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Time string `json:"time,omitempty"`
}

type ConfirmResult struct {
	Appointment *Appointment
	Action      ConfirmationAction
	Message     string
}

type Service struct {
	repo     Repository
	dir      Directory
	calendar calendar.Gateway
	validate *validator.Validate
	metrics  *metrics.BookingMetrics
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, dir Directory, cal calendar.Gateway, validate *validator.Validate, m *metrics.BookingMetrics, logger zerolog.Logger) *Service {
	if validate == nil {
		validate = apperr.NewValidator()
	}
	return &Service{
		repo:     repo,
		dir:      dir,
		calendar: cal,
		validate: validate,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// DurationFor is the only rule for slot length: new patients get an hour,
// returning patients half an hour.
func DurationFor(t patient.Type) int {
	if t == patient.TypeNew {
		return NewPatientMinutes
	}
	return ReturningPatientMinutes
}

// Book validates the request, reserves the slot with the calendar provider
// and stores a scheduled, pending appointment. Nothing is stored when the
// provider refuses or fails.
func (s *Service) Book(ctx context.Context, req BookRequest) (*BookResult, error) {
	res, err := s.book(ctx, req)
	s.metrics.ObserveBooking(string(req.PatientType), outcomeLabel(err, "booked"))
	return res, err
}

func (s *Service) book(ctx context.Context, req BookRequest) (*BookResult, error) {
	if err := s.validateBooking(ctx, req); err != nil {
		return nil, err
	}

	doctor, ok := s.dir.Doctor(req.DoctorID)
	if !ok {
		return nil, ErrDoctorNotFound
	}
	if _, ok := s.dir.Location(req.LocationID); !ok {
		return nil, ErrLocationNotFound
	}

	var (
		patientID string
		enroll    *directory.Patient
	)
	switch req.PatientType {
	case patient.TypeReturning:
		if req.PatientID == "" {
			return nil, ErrPatientIDRequired
		}
		_, ok, err := s.dir.Patient(ctx, req.PatientID)
		if err != nil {
			return nil, fmt.Errorf("load patient: %w", err)
		}
		if !ok {
			return nil, ErrPatientNotFound
		}
		patientID = req.PatientID
	default:
		patientID = uuid.NewString()
		if req.PatientData != nil {
			p := s.newPatientRecord(patientID, *req.PatientData)
			enroll = &p
		}
	}

	duration := DurationFor(req.PatientType)

	conf, err := s.calendar.Reserve(ctx, calendar.Reservation{
		ProviderLink:    doctor.CalendarLink,
		Date:            req.Date,
		Time:            req.Time,
		DurationMinutes: duration,
	})
	if err != nil {
		return nil, ErrCalendarUnavailable.Wrap(err)
	}
	if !conf.Success {
		return nil, ErrCalendarRejected
	}

	now := s.now().UTC()
	appt := &Appointment{
		ID:                 uuid.NewString(),
		PatientID:          patientID,
		DoctorID:           req.DoctorID,
		LocationID:         req.LocationID,
		Date:               req.Date,
		Time:               req.Time,
		DurationMinutes:    duration,
		Status:             StatusScheduled,
		ConfirmationStatus: ConfirmationPending,
		RemindersSent:      0,
		CalendarEventID:    conf.ExternalEventID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	// the patient is stored before the appointment that references it
	if enroll != nil {
		if err := s.dir.Enroll(ctx, *enroll); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Create(ctx, appt); err != nil {
		return nil, fmt.Errorf("create appointment: %w", err)
	}

	s.logger.Info().
		Str("appointment_id", appt.ID).
		Str("patient_id", patientID).
		Str("patient_type", string(req.PatientType)).
		Str("doctor_id", req.DoctorID).
		Int("duration_minutes", duration).
		Msg("appointment booked")

	return &BookResult{Appointment: appt, CalendarEventID: conf.ExternalEventID}, nil
}

func (s *Service) validateBooking(ctx context.Context, req BookRequest) error {
	err := s.validate.StructCtx(ctx, req)
	if err != nil {
		issues := apperr.Issues(err)
		for _, field := range []string{"patientType", "doctorId", "locationId", "date", "time"} {
			if issues[field] == "required" {
				return ErrMissingBookingFields.Wrap(err)
			}
		}
		if _, bad := issues["patientType"]; bad {
			return ErrInvalidPatientType.Wrap(err)
		}
		if _, bad := issues["date"]; bad {
			return ErrInvalidDate.Wrap(err)
		}
		return ErrMissingBookingFields.Wrap(err)
	}
	if _, err := ParseClock(req.Time); err != nil {
		return ErrInvalidTime.Wrap(err)
	}
	return nil
}

func (s *Service) newPatientRecord(id string, data NewPatient) directory.Patient {
	first, last := strings.TrimSpace(data.FirstName), strings.TrimSpace(data.LastName)
	if first == "" || last == "" {
		if parts := strings.Fields(data.FullName); len(parts) >= 2 {
			first, last = parts[0], parts[len(parts)-1]
		}
	}
	now := s.now().UTC()
	return directory.Patient{
		ID:          id,
		FirstName:   first,
		LastName:    last,
		DateOfBirth: strings.TrimSpace(data.DateOfBirth),
		Email:       strings.TrimSpace(data.Email),
		Phone:       strings.TrimSpace(data.Phone),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Confirm records the patient's answer:
//
//	pending --confirmed--> confirmed (status confirmed)
//	pending --declined--> declined (status cancelled)
//	pending --rescheduled--> pending (date/time moved when supplied)
//
// Repeating the terminal answer already recorded is accepted; any other
// answer to a non-pending appointment is a conflict.
func (s *Service) Confirm(ctx context.Context, req ConfirmRequest) (*ConfirmResult, error) {
	res, err := s.confirm(ctx, req)
	s.metrics.ObserveConfirmation(string(req.ConfirmationStatus), outcomeLabel(err, "ok"))
	return res, err
}

func (s *Service) confirm(ctx context.Context, req ConfirmRequest) (*ConfirmResult, error) {
	if err := s.validate.StructCtx(ctx, req); err != nil {
		issues := apperr.Issues(err)
		switch {
		case issues["appointmentId"] == "required", issues["confirmationStatus"] == "required":
			return nil, ErrMissingConfirmFields.Wrap(err)
		case issues["confirmationStatus"] == "oneof":
			return nil, ErrInvalidConfirmation.Wrap(err)
		default:
			return nil, ErrInvalidDate.Wrap(err)
		}
	}
	// date and time only matter when moving the appointment
	if req.ConfirmationStatus == ActionReschedule && (req.Date == "") != (req.Time == "") {
		return nil, ErrRescheduleNeedsDateTime
	}

	appt, err := s.repo.GetByID(ctx, req.AppointmentID)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	var updated *Appointment
	switch req.ConfirmationStatus {
	case ActionConfirm:
		updated, err = s.answer(ctx, appt, ConfirmationConfirmed, StatusConfirmed)
	case ActionDecline:
		updated, err = s.answer(ctx, appt, ConfirmationDeclined, StatusCancelled)
	case ActionReschedule:
		updated, err = s.reschedule(ctx, appt, req.Date, req.Time)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", updated.ID).
		Str("action", string(req.ConfirmationStatus)).
		Str("confirmation_status", string(updated.ConfirmationStatus)).
		Msg("confirmation recorded")

	return &ConfirmResult{
		Appointment: updated,
		Action:      req.ConfirmationStatus,
		Message:     fmt.Sprintf("Appointment %s successfully", req.ConfirmationStatus),
	}, nil
}

func (s *Service) answer(ctx context.Context, appt *Appointment, to ConfirmationStatus, status Status) (*Appointment, error) {
	if appt.ConfirmationStatus == to {
		return appt, nil
	}
	if appt.ConfirmationStatus != ConfirmationPending {
		return nil, ErrInvalidStatusTransition
	}

	updated, err := s.repo.TransitionConfirmation(ctx, appt.ID, ConfirmationPending, to, status)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// answered concurrently
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("update confirmation: %w", err)
	}
	return updated, nil
}

func (s *Service) reschedule(ctx context.Context, appt *Appointment, date, clock string) (*Appointment, error) {
	if appt.ConfirmationStatus != ConfirmationPending {
		return nil, ErrInvalidStatusTransition
	}
	if date == "" {
		return appt, nil
	}
	if _, err := ParseClock(clock); err != nil {
		return nil, ErrInvalidTime.Wrap(err)
	}

	doctor, ok := s.dir.Doctor(appt.DoctorID)
	if !ok {
		return nil, ErrDoctorNotFound
	}

	conf, err := s.calendar.Reserve(ctx, calendar.Reservation{
		ProviderLink:    doctor.CalendarLink,
		Date:            date,
		Time:            clock,
		DurationMinutes: appt.DurationMinutes,
	})
	if err != nil {
		return nil, ErrCalendarUnavailable.Wrap(err)
	}
	if !conf.Success {
		return nil, ErrCalendarRejected
	}

	updated, err := s.repo.Reschedule(ctx, appt.ID, date, clock, conf.ExternalEventID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrInvalidStatusTransition
		}
		return nil, fmt.Errorf("reschedule appointment: %w", err)
	}
	return updated, nil
}

// GetAppointment returns a stored appointment.
func (s *Service) GetAppointment(ctx context.Context, id string) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

func outcomeLabel(err error, ok string) string {
	if err == nil {
		return ok
	}
	return string(apperr.KindOf(err))
}
