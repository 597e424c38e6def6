package appointment

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryRepository keeps appointments for the lifetime of the process.
type MemoryRepository struct {
	mu    sync.RWMutex
	items map[string]Appointment
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		items: make(map[string]Appointment),
		now:   time.Now,
	}
}

func (r *MemoryRepository) Create(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[a.ID]; exists {
		return fmt.Errorf("appointment %s already exists", a.ID)
	}
	r.items[a.ID] = *a
	return nil
}

func (r *MemoryRepository) GetByID(_ context.Context, id string) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.items[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) TransitionConfirmation(_ context.Context, id string, from, to ConfirmationStatus, status Status) (*Appointment, error) {
	return r.mutate(id, func(a *Appointment) bool {
		if a.ConfirmationStatus != from {
			return false
		}
		a.ConfirmationStatus = to
		a.Status = status
		return true
	})
}

func (r *MemoryRepository) Reschedule(_ context.Context, id, date, clock, eventID string) (*Appointment, error) {
	return r.mutate(id, func(a *Appointment) bool {
		if a.ConfirmationStatus != ConfirmationPending {
			return false
		}
		a.Date = date
		a.Time = clock
		a.CalendarEventID = eventID
		return true
	})
}

func (r *MemoryRepository) IncrementReminders(_ context.Context, id string) (*Appointment, error) {
	return r.mutate(id, func(a *Appointment) bool {
		a.RemindersSent++
		return true
	})
}

func (r *MemoryRepository) ListPendingBetween(_ context.Context, fromDate, toDate string) ([]Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []Appointment
	for _, a := range r.items {
		if a.Status != StatusScheduled || a.ConfirmationStatus != ConfirmationPending {
			continue
		}
		if a.Date < fromDate || a.Date > toDate {
			continue
		}
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date < result[j].Date
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (r *MemoryRepository) mutate(id string, fn func(a *Appointment) bool) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok || !fn(&a) {
		return nil, ErrAppointmentNotFound
	}
	a.UpdatedAt = r.now().UTC()
	r.items[id] = a
	return &a, nil
}
