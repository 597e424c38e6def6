package appointment

import (
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// ConfirmationStatus is the patient's answer as recorded on the appointment.
type ConfirmationStatus string

const (
	ConfirmationPending   ConfirmationStatus = "pending"
	ConfirmationConfirmed ConfirmationStatus = "confirmed"
	ConfirmationDeclined  ConfirmationStatus = "declined"
)

// ConfirmationAction is what the patient sends back. "rescheduled" is an
// action only: it keeps the appointment pending and may move it.
type ConfirmationAction string

const (
	ActionConfirm    ConfirmationAction = "confirmed"
	ActionDecline    ConfirmationAction = "declined"
	ActionReschedule ConfirmationAction = "rescheduled"
)

const (
	NewPatientMinutes       = 60
	ReturningPatientMinutes = 30
)

type Appointment struct {
	ID                 string             `json:"id"`
	PatientID          string             `json:"patientId"`
	DoctorID           string             `json:"doctorId"`
	LocationID         string             `json:"locationId"`
	Date               string             `json:"date"` // YYYY-MM-DD
	Time               string             `json:"time"` // HH:MM or H:MM AM
	DurationMinutes    int                `json:"duration"`
	Status             Status             `json:"status"`
	ConfirmationStatus ConfirmationStatus `json:"confirmationStatus"`
	RemindersSent      int                `json:"remindersSent"`
	CalendarEventID    string             `json:"calendlyEventId,omitempty"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

// StartsAt resolves Date and Time in loc.
func (a Appointment) StartsAt(loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", a.Date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", a.Date, err)
	}
	clock, err := ParseClock(a.Time)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, loc), nil
}

var clockLayouts = []string{"15:04", "3:04 PM", "3:04PM", "03:04 PM"}

// ParseClock accepts 24-hour "09:00" and 12-hour "9:00 AM" forms.
func ParseClock(s string) (time.Time, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for _, layout := range clockLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised time of day %q", s)
}

type ReminderTier string

const (
	Tier72h ReminderTier = "72h"
	Tier48h ReminderTier = "48h"
	Tier24h ReminderTier = "24h"
)

// Tiers in the order they are sent.
var Tiers = []ReminderTier{Tier72h, Tier48h, Tier24h}

func (t ReminderTier) Valid() bool {
	switch t {
	case Tier72h, Tier48h, Tier24h:
		return true
	}
	return false
}

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

type ReminderLogStatus string

const (
	ReminderSent   ReminderLogStatus = "sent"
	ReminderFailed ReminderLogStatus = "failed"
)

// ReminderLog is one record per reminder channel attempt.
type ReminderLog struct {
	ID               string            `json:"id"`
	AppointmentID    string            `json:"appointmentId"`
	Tier             ReminderTier      `json:"tier"`
	Channel          Channel           `json:"channel"`
	Status           ReminderLogStatus `json:"status"`
	SentAt           time.Time         `json:"sentAt"`
	ProviderResponse string            `json:"providerResponse,omitempty"`
}
