package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics counts booking and confirmation outcomes.
type BookingMetrics struct {
	bookings      *prometheus.CounterVec
	confirmations *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "praxis",
			Subsystem: "booking",
			Name:      "appointments_total",
			Help:      "Appointment booking attempts by patient type and outcome",
		}, []string{"patient_type", "outcome"}),
		confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "praxis",
			Subsystem: "booking",
			Name:      "confirmations_total",
			Help:      "Confirmation responses by action and outcome",
		}, []string{"action", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookings, m.confirmations)
	return m
}

func (m *BookingMetrics) ObserveBooking(patientType, outcome string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(patientType, outcome).Inc()
}

func (m *BookingMetrics) ObserveConfirmation(action, outcome string) {
	if m == nil {
		return
	}
	m.confirmations.WithLabelValues(action, outcome).Inc()
}

// NotificationMetrics counts per-channel sends and aggregate dispatch
// outcomes.
type NotificationMetrics struct {
	sends    *prometheus.CounterVec
	outcomes *prometheus.CounterVec
}

func NewNotificationMetrics(reg prometheus.Registerer) *NotificationMetrics {
	m := &NotificationMetrics{
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "praxis",
			Subsystem: "notify",
			Name:      "channel_sends_total",
			Help:      "Channel send attempts by channel, template kind and result (sent, mock, failed)",
		}, []string{"channel", "kind", "result"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "praxis",
			Subsystem: "notify",
			Name:      "dispatch_outcomes_total",
			Help:      "Dispatch outcomes (delivered, partial, failed) by template kind",
		}, []string{"kind", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.sends, m.outcomes)
	return m
}

func (m *NotificationMetrics) ObserveSend(channel, kind, result string) {
	if m == nil {
		return
	}
	m.sends.WithLabelValues(channel, kind, result).Inc()
}

func (m *NotificationMetrics) ObserveOutcome(kind, outcome string) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(kind, outcome).Inc()
}
