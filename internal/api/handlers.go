package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/praxis-scheduling/internal/appointment"
	"github.com/hackgods/praxis-scheduling/internal/directory"
	"github.com/hackgods/praxis-scheduling/internal/notify"
	"github.com/hackgods/praxis-scheduling/internal/patient"
	"github.com/hackgods/praxis-scheduling/internal/reminder"
)

type PatientLookup interface {
	Lookup(ctx context.Context, req patient.LookupRequest) (patient.LookupResult, error)
}

type AppointmentService interface {
	Book(ctx context.Context, req appointment.BookRequest) (*appointment.BookResult, error)
	Confirm(ctx context.Context, req appointment.ConfirmRequest) (*appointment.ConfirmResult, error)
	GetAppointment(ctx context.Context, id string) (*appointment.Appointment, error)
}

type Notifier interface {
	SendConfirmation(ctx context.Context, req notify.ConfirmationRequest) (*notify.Report, error)
}

type ReminderService interface {
	Send(ctx context.Context, req reminder.SendRequest) (*reminder.SendResult, error)
	History(ctx context.Context, appointmentID string) ([]appointment.ReminderLog, error)
}

type ReferenceData interface {
	Doctors() []directory.Doctor
	Locations() []directory.Location
}

func lookupPatientHandler(svc PatientLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req patient.LookupRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		res, err := svc.Lookup(r.Context(), req)
		if err != nil {
			handleError(w, r, err, "Failed to process patient lookup")
			return
		}

		writeJSON(w, http.StatusOK, res)
	}
}

func bookAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req appointment.BookRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		res, err := svc.Book(r.Context(), req)
		if err != nil {
			handleError(w, r, err, "Failed to book appointment")
			return
		}

		writeJSON(w, http.StatusOK, BookAppointmentResponse{
			Success:         true,
			Appointment:     res.Appointment,
			CalendarEventID: res.CalendarEventID,
		})
	}
}

func confirmAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req appointment.ConfirmRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		res, err := svc.Confirm(r.Context(), req)
		if err != nil {
			handleError(w, r, err, "Failed to process appointment confirmation")
			return
		}

		writeJSON(w, http.StatusOK, ConfirmAppointmentResponse{
			Success:            true,
			AppointmentID:      res.Appointment.ID,
			ConfirmationStatus: res.Action,
			Message:            res.Message,
			Appointment:        res.Appointment,
		})
	}
}

func getAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appt, err := svc.GetAppointment(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			handleError(w, r, err, "Failed to load appointment")
			return
		}
		writeJSON(w, http.StatusOK, appt)
	}
}

func sendNotificationHandler(svc Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req notify.ConfirmationRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		report, err := svc.SendConfirmation(r.Context(), req)
		if err != nil {
			handleError(w, r, err, "Failed to send notifications")
			return
		}

		writeJSON(w, http.StatusOK, DispatchResponse{
			Success: true,
			Outcome: report.Outcome,
			Results: report.Results,
		})
	}
}

func sendReminderHandler(svc ReminderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reminder.SendRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		res, err := svc.Send(r.Context(), req)
		if err != nil {
			handleError(w, r, err, "Failed to send reminders")
			return
		}

		sent := res.RemindersSent
		resp := DispatchResponse{
			Success: true,
			Outcome: res.Report.Outcome,
			Results: res.Report.Results,
		}
		if res.Report.Succeeded() {
			resp.RemindersSent = &sent
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func reminderHistoryHandler(svc ReminderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		logs, err := svc.History(r.Context(), id)
		if err != nil {
			handleError(w, r, err, "Failed to load reminders")
			return
		}
		writeJSON(w, http.StatusOK, ReminderHistoryResponse{AppointmentID: id, Reminders: logs})
	}
}

func listDoctorsHandler(dir ReferenceData) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, DoctorsResponse{Doctors: dir.Doctors()})
	}
}

func listLocationsHandler(dir ReferenceData) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, LocationsResponse{Locations: dir.Locations()})
	}
}
