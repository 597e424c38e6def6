package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/praxis-scheduling/internal/apperr"
	"github.com/hackgods/praxis-scheduling/internal/appointment"
	"github.com/hackgods/praxis-scheduling/internal/directory"
	"github.com/hackgods/praxis-scheduling/internal/observability/metrics"
)

var (
	ErrMissingFields           = apperr.Validation("missing_fields", "Patient ID and appointment ID are required")
	ErrInvalidNotificationType = apperr.Validation("invalid_notification_type", "Invalid notification type. Must be email, sms, or both")
	ErrInvalidTier             = apperr.Validation("invalid_reminder_type", "Invalid reminder type. Must be 72h, 48h, or 24h")
	ErrPatientNotFound         = apperr.NotFound("patient_not_found", "Patient not found")
	ErrAppointmentNotFound     = apperr.NotFound("appointment_not_found", "Appointment not found")
)

// Selection picks the channels of a confirmation send.
type Selection string

const (
	SelectEmail Selection = "email"
	SelectSMS   Selection = "sms"
	SelectBoth  Selection = "both"
)

func (s Selection) channels() []appointment.Channel {
	switch s {
	case SelectEmail:
		return []appointment.Channel{appointment.ChannelEmail}
	case SelectSMS:
		return []appointment.Channel{appointment.ChannelSMS}
	default:
		return []appointment.Channel{appointment.ChannelEmail, appointment.ChannelSMS}
	}
}

type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomePartial   Outcome = "partial"
	OutcomeFailed    Outcome = "failed"
)

// ChannelResult is one channel's answer. Mock marks a channel with no
// provider configured; it still counts as a success.
type ChannelResult struct {
	Success   bool      `json:"success"`
	Mock      bool      `json:"mock,omitempty"`
	MessageID string    `json:"messageId,omitempty"`
	Error     string    `json:"error,omitempty"`
	SentAt    time.Time `json:"-"`
}

type Report struct {
	Outcome Outcome                               `json:"outcome"`
	Results map[appointment.Channel]ChannelResult `json:"results"`
}

// Succeeded reports whether any channel succeeded, mocks included.
func (r Report) Succeeded() bool {
	return r.Outcome != OutcomeFailed
}

type ConfirmationRequest struct {
	PatientID     string    `json:"patientId" validate:"required"`
	AppointmentID string    `json:"appointmentId" validate:"required"`
	Channel       Selection `json:"notificationType" validate:"omitempty,oneof=email sms both"`
}

// Directory is the part of the practice directory templates need.
type Directory interface {
	Patient(ctx context.Context, id string) (directory.Patient, bool, error)
	Doctor(id string) (directory.Doctor, bool)
	Location(id string) (directory.Location, bool)
}

type AppointmentReader interface {
	GetByID(ctx context.Context, id string) (*appointment.Appointment, error)
}

type Dispatcher struct {
	dir       Directory
	appts     AppointmentReader
	email     EmailSender
	sms       SMSSender
	validate  *validator.Validate
	metrics   *metrics.NotificationMetrics
	logger    zerolog.Logger
	publicURL string
	now       func() time.Time
}

type Config struct {
	// Email and SMS may be nil; a nil channel is reported as a mock success.
	Email     EmailSender
	SMS       SMSSender
	// PublicURL is the booking site; emails link to its appointment page.
	PublicURL string
	Metrics   *metrics.NotificationMetrics
	Validate  *validator.Validate
}

func NewDispatcher(dir Directory, appts AppointmentReader, cfg Config, logger zerolog.Logger) *Dispatcher {
	if cfg.Validate == nil {
		cfg.Validate = apperr.NewValidator()
	}
	return &Dispatcher{
		dir:       dir,
		appts:     appts,
		email:     cfg.Email,
		sms:       cfg.SMS,
		validate:  cfg.Validate,
		metrics:   cfg.Metrics,
		logger:    logger,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
		now:       time.Now,
	}
}

// SendConfirmation renders the booking confirmation and sends it over the
// selected channels. An empty selection means both.
func (d *Dispatcher) SendConfirmation(ctx context.Context, req ConfirmationRequest) (*Report, error) {
	if err := d.validate.StructCtx(ctx, req); err != nil {
		if apperr.HasTag(apperr.Issues(err), "required") {
			return nil, ErrMissingFields.Wrap(err)
		}
		return nil, ErrInvalidNotificationType.Wrap(err)
	}

	p, data, err := d.resolve(ctx, req.PatientID, req.AppointmentID)
	if err != nil {
		return nil, err
	}
	msg, err := RenderConfirmation(data)
	if err != nil {
		return nil, err
	}
	return d.deliver(ctx, "confirmation", p, msg, req.Channel.channels()), nil
}

// SendReminder sends the tier's reminder over both channels.
func (d *Dispatcher) SendReminder(ctx context.Context, patientID, appointmentID string, tier appointment.ReminderTier) (*Report, error) {
	if !tier.Valid() {
		return nil, ErrInvalidTier
	}
	p, data, err := d.resolve(ctx, patientID, appointmentID)
	if err != nil {
		return nil, err
	}
	msg, err := RenderReminder(tier, data)
	if err != nil {
		return nil, err
	}
	return d.deliver(ctx, "reminder_"+string(tier), p, msg, SelectBoth.channels()), nil
}

func (d *Dispatcher) resolve(ctx context.Context, patientID, appointmentID string) (directory.Patient, MessageData, error) {
	p, ok, err := d.dir.Patient(ctx, patientID)
	if err != nil {
		return directory.Patient{}, MessageData{}, fmt.Errorf("load patient: %w", err)
	}
	if !ok {
		return directory.Patient{}, MessageData{}, ErrPatientNotFound
	}

	appt, err := d.appts.GetByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, appointment.ErrAppointmentNotFound) {
			return directory.Patient{}, MessageData{}, ErrAppointmentNotFound
		}
		return directory.Patient{}, MessageData{}, fmt.Errorf("load appointment: %w", err)
	}
	if appt.PatientID != p.ID {
		return directory.Patient{}, MessageData{}, ErrAppointmentNotFound
	}

	data := MessageData{
		PatientFirstName: p.FirstName,
		PatientLastName:  p.LastName,
		DoctorName:       "Not specified",
		LocationName:     "Not specified",
		Date:             longDate(appt.Date),
		Time:             appt.Time,
		DurationMinutes:  appt.DurationMinutes,
		ManageURL:        "#",
	}
	if d.publicURL != "" {
		data.ManageURL = d.publicURL + "/appointments/" + appt.ID
	}
	if doc, ok := d.dir.Doctor(appt.DoctorID); ok {
		data.DoctorName = doc.Name
		data.Specialty = doc.Specialty
	}
	if loc, ok := d.dir.Location(appt.LocationID); ok {
		data.LocationName = loc.Name
		data.Address = loc.FullAddress()
	}
	return p, data, nil
}

// deliver runs the channels concurrently. Channel failures land in the
// report; they never fail the call.
func (d *Dispatcher) deliver(ctx context.Context, kind string, p directory.Patient, msg Rendered, channels []appointment.Channel) *Report {
	results := make([]ChannelResult, len(channels))

	g, gctx := errgroup.WithContext(ctx)
	for i, ch := range channels {
		g.Go(func() error {
			switch ch {
			case appointment.ChannelEmail:
				results[i] = d.sendEmail(gctx, p, msg)
			case appointment.ChannelSMS:
				results[i] = d.sendSMS(gctx, p, msg)
			}
			results[i].SentAt = d.now().UTC()
			d.metrics.ObserveSend(string(ch), kind, resultLabel(results[i]))
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{Results: make(map[appointment.Channel]ChannelResult, len(channels))}
	succeeded := 0
	for i, ch := range channels {
		report.Results[ch] = results[i]
		if results[i].Success {
			succeeded++
		}
	}
	switch {
	case succeeded == len(channels):
		report.Outcome = OutcomeDelivered
	case succeeded == 0:
		report.Outcome = OutcomeFailed
	default:
		report.Outcome = OutcomePartial
	}
	d.metrics.ObserveOutcome(kind, string(report.Outcome))

	d.logger.Info().
		Str("patient_id", p.ID).
		Str("kind", kind).
		Str("outcome", string(report.Outcome)).
		Msg("notification dispatched")

	return report
}

func (d *Dispatcher) sendEmail(ctx context.Context, p directory.Patient, msg Rendered) ChannelResult {
	if d.email == nil {
		d.logger.Info().Str("patient_id", p.ID).Msg("SendGrid API key not found, skipping email")
		return ChannelResult{Success: true, Mock: true}
	}
	err := d.email.Send(ctx, EmailMessage{
		To:      p.Email,
		ToName:  p.FirstName + " " + p.LastName,
		Subject: msg.Subject,
		HTML:    msg.HTML,
	})
	if err != nil {
		return ChannelResult{Success: false, Error: err.Error()}
	}
	return ChannelResult{Success: true}
}

func (d *Dispatcher) sendSMS(ctx context.Context, p directory.Patient, msg Rendered) ChannelResult {
	if d.sms == nil {
		d.logger.Info().Str("patient_id", p.ID).Msg("Twilio credentials not found, skipping SMS")
		return ChannelResult{Success: true, Mock: true}
	}
	sid, err := d.sms.SendSMS(ctx, p.Phone, msg.SMS)
	if err != nil {
		return ChannelResult{Success: false, Error: err.Error()}
	}
	return ChannelResult{Success: true, MessageID: sid}
}

func resultLabel(r ChannelResult) string {
	switch {
	case r.Mock:
		return "mock"
	case r.Success:
		return "sent"
	default:
		return "failed"
	}
}

// longDate renders 2024-01-10 as "Wednesday, January 10, 2024"; anything
// unparseable is printed as given.
func longDate(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return t.Format("Monday, January 2, 2006")
}
