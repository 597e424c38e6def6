package reminder

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/praxis-scheduling/internal/appointment"
)

// LogStore keeps one ReminderLog per channel attempt.
type LogStore interface {
	Append(ctx context.Context, logs ...appointment.ReminderLog) error
	ForAppointment(ctx context.Context, appointmentID string) ([]appointment.ReminderLog, error)
	// TierAttempted reports whether tier was already dispatched for the
	// appointment, whatever the channel results were.
	TierAttempted(ctx context.Context, appointmentID string, tier appointment.ReminderTier) (bool, error)
}

type MemoryLogStore struct {
	mu   sync.RWMutex
	logs map[string][]appointment.ReminderLog
}

func NewMemoryLogStore() *MemoryLogStore {
	return &MemoryLogStore{logs: make(map[string][]appointment.ReminderLog)}
}

func (s *MemoryLogStore) Append(_ context.Context, logs ...appointment.ReminderLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range logs {
		s.logs[l.AppointmentID] = append(s.logs[l.AppointmentID], l)
	}
	return nil
}

func (s *MemoryLogStore) ForAppointment(_ context.Context, appointmentID string) ([]appointment.ReminderLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]appointment.ReminderLog, len(s.logs[appointmentID]))
	copy(out, s.logs[appointmentID])
	return out, nil
}

func (s *MemoryLogStore) TierAttempted(_ context.Context, appointmentID string, tier appointment.ReminderTier) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.logs[appointmentID] {
		if l.Tier == tier {
			return true, nil
		}
	}
	return false, nil
}

// RedisLogStore keeps logs in a list per appointment and the dispatched
// tiers in a set beside it, so every worker sharing the Redis sees the same
// history.
type RedisLogStore struct {
	client *redis.Client
	prefix string
}

func NewRedisLogStore(client *redis.Client) *RedisLogStore {
	return &RedisLogStore{client: client, prefix: "praxis:reminders:"}
}

func (s *RedisLogStore) logsKey(appointmentID string) string {
	return s.prefix + appointmentID + ":logs"
}

func (s *RedisLogStore) tiersKey(appointmentID string) string {
	return s.prefix + appointmentID + ":tiers"
}

func (s *RedisLogStore) Append(ctx context.Context, logs ...appointment.ReminderLog) error {
	if len(logs) == 0 {
		return nil
	}

	pipe := s.client.TxPipeline()
	for _, l := range logs {
		raw, err := json.Marshal(l)
		if err != nil {
			return fmt.Errorf("encode reminder log: %w", err)
		}
		pipe.RPush(ctx, s.logsKey(l.AppointmentID), raw)
		pipe.SAdd(ctx, s.tiersKey(l.AppointmentID), string(l.Tier))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append reminder logs: %w", err)
	}
	return nil
}

func (s *RedisLogStore) ForAppointment(ctx context.Context, appointmentID string) ([]appointment.ReminderLog, error) {
	raw, err := s.client.LRange(ctx, s.logsKey(appointmentID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read reminder logs: %w", err)
	}

	out := make([]appointment.ReminderLog, 0, len(raw))
	for _, item := range raw {
		var l appointment.ReminderLog
		if err := json.Unmarshal([]byte(item), &l); err != nil {
			return nil, fmt.Errorf("decode reminder log: %w", err)
		}
		out = append(out, l)
	}
	return out, nil
}

func (s *RedisLogStore) TierAttempted(ctx context.Context, appointmentID string, tier appointment.ReminderTier) (bool, error) {
	ok, err := s.client.SIsMember(ctx, s.tiersKey(appointmentID), string(tier)).Result()
	if err != nil {
		return false, fmt.Errorf("check reminder tier: %w", err)
	}
	return ok, nil
}
