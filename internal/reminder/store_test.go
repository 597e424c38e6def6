package reminder

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/praxis-scheduling/internal/appointment"
)

func sampleLogs() []appointment.ReminderLog {
	at := time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC)
	return []appointment.ReminderLog{
		{ID: "l1", AppointmentID: "a1", Tier: appointment.Tier72h, Channel: appointment.ChannelEmail, Status: appointment.ReminderSent, SentAt: at, ProviderResponse: "mock"},
		{ID: "l2", AppointmentID: "a1", Tier: appointment.Tier72h, Channel: appointment.ChannelSMS, Status: appointment.ReminderFailed, SentAt: at, ProviderResponse: "down"},
		{ID: "l3", AppointmentID: "b1", Tier: appointment.Tier24h, Channel: appointment.ChannelSMS, Status: appointment.ReminderSent, SentAt: at},
	}
}

func exerciseLogStore(t *testing.T, store LogStore) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, sampleLogs()...))
	require.NoError(t, store.Append(ctx))

	got, err := store.ForAppointment(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, sampleLogs()[:2], got)

	empty, err := store.ForAppointment(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)

	ok, err := store.TierAttempted(ctx, "a1", appointment.Tier72h)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.TierAttempted(ctx, "a1", appointment.Tier48h)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.TierAttempted(ctx, "b1", appointment.Tier24h)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLogStore(t *testing.T) {
	exerciseLogStore(t, NewMemoryLogStore())
}

func TestRedisLogStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	exerciseLogStore(t, NewRedisLogStore(client))

	assert.True(t, mr.Exists("praxis:reminders:a1:logs"))
	members, err := mr.Members("praxis:reminders:a1:tiers")
	require.NoError(t, err)
	assert.Equal(t, []string{"72h"}, members)
}

func TestRedisLogStoreUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	store := NewRedisLogStore(client)
	assert.Error(t, store.Append(context.Background(), sampleLogs()...))
	_, err := store.TierAttempted(context.Background(), "a1", appointment.Tier72h)
	assert.Error(t, err)
}
