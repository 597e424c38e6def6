package api

import (
	"github.com/hackgods/praxis-scheduling/internal/appointment"
	"github.com/hackgods/praxis-scheduling/internal/directory"
	"github.com/hackgods/praxis-scheduling/internal/notify"
)

type BookAppointmentResponse struct {
	Success         bool                     `json:"success"`
	Appointment     *appointment.Appointment `json:"appointment"`
	CalendarEventID string                   `json:"calendlyEventId"`
}

type ConfirmAppointmentResponse struct {
	Success            bool                           `json:"success"`
	AppointmentID      string                         `json:"appointmentId"`
	ConfirmationStatus appointment.ConfirmationAction `json:"confirmationStatus"`
	Message            string                         `json:"message"`
	Appointment        *appointment.Appointment       `json:"appointment"`
}

// DispatchResponse keeps success=true even when channels failed; Outcome
// tells delivered, partial and failed apart.
type DispatchResponse struct {
	Success       bool                                         `json:"success"`
	Outcome       notify.Outcome                               `json:"outcome"`
	Results       map[appointment.Channel]notify.ChannelResult `json:"results"`
	RemindersSent *int                                         `json:"remindersSent,omitempty"`
}

type ReminderHistoryResponse struct {
	AppointmentID string                    `json:"appointmentId"`
	Reminders     []appointment.ReminderLog `json:"reminders"`
}

type DoctorsResponse struct {
	Doctors []directory.Doctor `json:"doctors"`
}

type LocationsResponse struct {
	Locations []directory.Location `json:"locations"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Kind  string `json:"kind"`
}
