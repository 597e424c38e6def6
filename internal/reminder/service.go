// Package reminder sends tiered appointment reminders, on request or from a
// periodic sweep, and records every channel attempt.
package reminder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/praxis-scheduling/internal/apperr"
	"github.com/hackgods/praxis-scheduling/internal/appointment"
	"github.com/hackgods/praxis-scheduling/internal/notify"
	redisclient "github.com/hackgods/praxis-scheduling/internal/redis"
)

var (
	ErrMissingFields = apperr.Validation("missing_fields", "Patient ID, appointment ID, and reminder type are required")
	ErrInFlight      = apperr.Conflict("reminder_in_flight", "A reminder for this appointment is already being sent")
	ErrNotRemindable = apperr.Conflict("appointment_closed", "Reminders cannot be sent for a cancelled or completed appointment")
)

type Dispatcher interface {
	SendReminder(ctx context.Context, patientID, appointmentID string, tier appointment.ReminderTier) (*notify.Report, error)
}

type Appointments interface {
	GetByID(ctx context.Context, id string) (*appointment.Appointment, error)
	IncrementReminders(ctx context.Context, id string) (*appointment.Appointment, error)
	ListPendingBetween(ctx context.Context, fromDate, toDate string) ([]appointment.Appointment, error)
}

type SendRequest struct {
	PatientID     string                   `json:"patientId" validate:"required"`
	AppointmentID string                   `json:"appointmentId" validate:"required"`
	Tier          appointment.ReminderTier `json:"reminderType" validate:"required"`
}

type SendResult struct {
	Report        *notify.Report
	RemindersSent int
}

type Service struct {
	dispatcher Dispatcher
	appts      Appointments
	logs       LogStore
	locker     redisclient.Locker
	validate   *validator.Validate
	loc        *time.Location
	logger     zerolog.Logger
}

func NewService(d Dispatcher, appts Appointments, logs LogStore, locker redisclient.Locker, loc *time.Location, logger zerolog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		dispatcher: d,
		appts:      appts,
		logs:       logs,
		locker:     locker,
		validate:   apperr.NewValidator(),
		loc:        loc,
		logger:     logger,
	}
}

// Send dispatches one reminder tier on request. A tier may be resent
// manually; only the sweep skips tiers already attempted. Cancelled and
// completed appointments get no reminders.
func (s *Service) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	if err := s.validate.StructCtx(ctx, req); err != nil {
		return nil, ErrMissingFields.Wrap(err)
	}
	if !req.Tier.Valid() {
		return nil, notify.ErrInvalidTier
	}

	appt, err := s.appts.GetByID(ctx, req.AppointmentID)
	if err != nil {
		if errors.Is(err, appointment.ErrAppointmentNotFound) {
			return nil, notify.ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if appt.Status == appointment.StatusCancelled || appt.Status == appointment.StatusCompleted {
		return nil, ErrNotRemindable
	}

	var res *SendResult
	err = s.locker.WithLock(ctx, lockKey(req.AppointmentID, req.Tier), func(ctx context.Context) error {
		report, err := s.dispatcher.SendReminder(ctx, req.PatientID, req.AppointmentID, req.Tier)
		if err != nil {
			return err
		}
		res, err = s.record(ctx, req.AppointmentID, req.Tier, report)
		return err
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return nil, ErrInFlight
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// record stores one log per channel attempted and counts the reminder when
// any channel delivered.
func (s *Service) record(ctx context.Context, appointmentID string, tier appointment.ReminderTier, report *notify.Report) (*SendResult, error) {
	logs := make([]appointment.ReminderLog, 0, len(report.Results))
	for _, ch := range []appointment.Channel{appointment.ChannelEmail, appointment.ChannelSMS} {
		r, ok := report.Results[ch]
		if !ok {
			continue
		}
		logs = append(logs, logFor(appointmentID, tier, ch, r))
	}
	if err := s.logs.Append(ctx, logs...); err != nil {
		// delivery already happened; a lost log must not hide it
		s.logger.Error().Err(err).Str("appointment_id", appointmentID).Msg("store reminder logs")
	}

	res := &SendResult{Report: report}
	if !report.Succeeded() {
		return res, nil
	}

	appt, err := s.appts.IncrementReminders(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("count reminder: %w", err)
	}
	res.RemindersSent = appt.RemindersSent

	s.logger.Info().
		Str("appointment_id", appointmentID).
		Str("tier", string(tier)).
		Str("outcome", string(report.Outcome)).
		Int("reminders_sent", appt.RemindersSent).
		Msg("reminder sent")

	return res, nil
}

// recordUndeliverable marks a tier attempted when dispatch failed before any
// channel was tried, so the sweep does not retry it every tick.
func (s *Service) recordUndeliverable(ctx context.Context, appointmentID string, tier appointment.ReminderTier, cause error) {
	reason := cause.Error()
	var ae *apperr.Error
	if errors.As(cause, &ae) {
		reason = ae.Code
	}

	now := time.Now().UTC()
	logs := make([]appointment.ReminderLog, 0, 2)
	for _, ch := range []appointment.Channel{appointment.ChannelEmail, appointment.ChannelSMS} {
		logs = append(logs, appointment.ReminderLog{
			ID:               uuid.NewString(),
			AppointmentID:    appointmentID,
			Tier:             tier,
			Channel:          ch,
			Status:           appointment.ReminderFailed,
			ProviderResponse: reason,
			SentAt:           now,
		})
	}
	if err := s.logs.Append(ctx, logs...); err != nil {
		s.logger.Error().Err(err).Str("appointment_id", appointmentID).Msg("store reminder logs")
	}
}

func logFor(appointmentID string, tier appointment.ReminderTier, ch appointment.Channel, r notify.ChannelResult) appointment.ReminderLog {
	l := appointment.ReminderLog{
		ID:            uuid.NewString(),
		AppointmentID: appointmentID,
		Tier:          tier,
		Channel:       ch,
		Status:        appointment.ReminderSent,
		SentAt:        r.SentAt,
	}
	switch {
	case !r.Success:
		l.Status = appointment.ReminderFailed
		l.ProviderResponse = r.Error
	case r.Mock:
		l.ProviderResponse = "mock"
	default:
		l.ProviderResponse = r.MessageID
	}
	return l
}

func lockKey(appointmentID string, tier appointment.ReminderTier) string {
	return "reminder:" + appointmentID + ":" + string(tier)
}

// TierFor picks the reminder tier for an appointment starting in remaining:
// 72h for (48h, 72h], 48h for (24h, 48h], 24h for (0, 24h].
func TierFor(remaining time.Duration) (appointment.ReminderTier, bool) {
	switch {
	case remaining <= 0 || remaining > 72*time.Hour:
		return "", false
	case remaining > 48*time.Hour:
		return appointment.Tier72h, true
	case remaining > 24*time.Hour:
		return appointment.Tier48h, true
	default:
		return appointment.Tier24h, true
	}
}

type SweepResult struct {
	Considered int
	Sent       int
	Skipped    int
	Failed     int
}

// Sweep sends the due tier to every pending appointment starting within the
// next 72 hours. Each tier is dispatched at most once: tiers already
// attempted, and tiers another worker holds, are skipped. One failing
// appointment does not stop the sweep.
func (s *Service) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	var res SweepResult

	local := now.In(s.loc)
	from := local.Format("2006-01-02")
	to := local.Add(72 * time.Hour).Format("2006-01-02")

	appts, err := s.appts.ListPendingBetween(ctx, from, to)
	if err != nil {
		return res, fmt.Errorf("list pending appointments: %w", err)
	}

	for _, a := range appts {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}

		start, err := a.StartsAt(s.loc)
		if err != nil {
			s.logger.Warn().Err(err).Str("appointment_id", a.ID).Msg("skip appointment with unreadable start")
			continue
		}
		tier, due := TierFor(start.Sub(now))
		if !due {
			continue
		}
		res.Considered++

		sent, err := s.logs.TierAttempted(ctx, a.ID, tier)
		if err != nil {
			res.Failed++
			s.logger.Error().Err(err).Str("appointment_id", a.ID).Msg("check reminder history")
			continue
		}
		if sent {
			res.Skipped++
			continue
		}

		err = s.locker.WithLock(ctx, lockKey(a.ID, tier), func(ctx context.Context) error {
			// another worker may have finished between the check and the lock
			if sent, err := s.logs.TierAttempted(ctx, a.ID, tier); err != nil || sent {
				if err == nil {
					res.Skipped++
				}
				return err
			}
			report, err := s.dispatcher.SendReminder(ctx, a.PatientID, a.ID, tier)
			if err != nil {
				s.recordUndeliverable(ctx, a.ID, tier, err)
				return err
			}
			r, err := s.record(ctx, a.ID, tier, report)
			if err != nil {
				return err
			}
			if r.Report.Succeeded() {
				res.Sent++
			} else {
				res.Failed++
			}
			return nil
		})
		switch {
		case errors.Is(err, redisclient.ErrLockNotAcquired):
			res.Skipped++
		case err != nil:
			res.Failed++
			s.logger.Error().Err(err).Str("appointment_id", a.ID).Str("tier", string(tier)).Msg("reminder failed")
		}
	}

	s.logger.Info().
		Int("considered", res.Considered).
		Int("sent", res.Sent).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Msg("reminder sweep finished")

	return res, nil
}

// History returns the reminder attempts recorded for an appointment.
func (s *Service) History(ctx context.Context, appointmentID string) ([]appointment.ReminderLog, error) {
	if _, err := s.appts.GetByID(ctx, appointmentID); err != nil {
		return nil, err
	}
	return s.logs.ForAppointment(ctx, appointmentID)
}
