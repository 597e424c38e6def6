// Package calendar is the boundary to the external scheduling provider that
// holds each doctor's calendar.
package calendar

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Reservation struct {
	ProviderLink    string
	Date            string
	Time            string
	DurationMinutes int
}

// Confirmation is the provider's answer. Success=false is a refusal, not an
// error.
type Confirmation struct {
	Success         bool
	ExternalEventID string
}

type Gateway interface {
	Reserve(ctx context.Context, r Reservation) (Confirmation, error)
}

// MockGateway accepts every reservation after a fixed delay.
type MockGateway struct {
	latency time.Duration
	logger  zerolog.Logger
}

func NewMockGateway(latency time.Duration, logger zerolog.Logger) *MockGateway {
	return &MockGateway{latency: latency, logger: logger}
}

func (g *MockGateway) Reserve(ctx context.Context, r Reservation) (Confirmation, error) {
	g.logger.Info().
		Str("provider", r.ProviderLink).
		Str("date", r.Date).
		Str("time", r.Time).
		Int("duration_minutes", r.DurationMinutes).
		Msg("reserving calendar slot (mock)")

	if g.latency > 0 {
		timer := time.NewTimer(g.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Confirmation{}, ctx.Err()
		case <-timer.C:
		}
	}

	return Confirmation{
		Success:         true,
		ExternalEventID: "cal-" + uuid.NewString(),
	}, nil
}
