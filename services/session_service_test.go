package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamCastAPI/internal/types/plan"
	"streamCastAPI/internal/types/session"
	"streamCastAPI/internal/types/subscriber"
)

type fakeSessionStore struct {
	sub      *subscriber.Subscriber
	sessions []session.Entry
	plans    map[string]plan.Plan

	subErr     error
	sessionErr error
	written    []session.Entry
}

func (f *fakeSessionStore) GetSubscriberByEmail(ctx context.Context, email string) (*subscriber.Subscriber, error) {
	if f.subErr != nil {
		return nil, f.subErr
	}
	if f.sub == nil || f.sub.Email != email {
		return nil, ErrNotFound
	}
	return f.sub, nil
}

func (f *fakeSessionStore) GetSubscriberByID(ctx context.Context, id string) (*subscriber.Subscriber, error) {
	if f.subErr != nil {
		return nil, f.subErr
	}
	if f.sub == nil || f.sub.ID != id {
		return nil, ErrNotFound
	}
	return f.sub, nil
}

func (f *fakeSessionStore) GetSessions(ctx context.Context, subscriberID string) ([]session.Entry, error) {
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	out := make([]session.Entry, len(f.sessions))
	copy(out, f.sessions)
	return out, nil
}

func (f *fakeSessionStore) ReplaceSessions(ctx context.Context, subscriberID string, entries []session.Entry) error {
	f.written = entries
	f.sessions = entries
	return nil
}

func (f *fakeSessionStore) GetPlansByID(ctx context.Context, planIDs []string) ([]plan.Plan, error) {
	out := []plan.Plan{}
	for _, id := range planIDs {
		if p, ok := f.plans[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func limitedConfig(maxDevices int) SessionConfig {
	return SessionConfig{LimitingEnabled: true, DefaultMaxDevices: maxDevices}
}

func testSubscriber() *subscriber.Subscriber {
	return &subscriber.Subscriber{ID: "sub-1", Email: "viewer@example.com"}
}

func TestTrackSessionEvictsLeastRecentlyActive(t *testing.T) {
	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)
	store := &fakeSessionStore{
		sub: testSubscriber(),
		sessions: []session.Entry{
			{DeviceID: "device-a", LastActive: t1},
			{DeviceID: "device-b", LastActive: t2},
		},
	}
	svc := NewSessionService(store, limitedConfig(2))
	svc.now = func() time.Time { return t2.Add(time.Minute) }

	sub, err := svc.TrackSession(context.Background(), "viewer@example.com", "device-c", "1.2.3.4", "tv-app")
	require.NoError(t, err)
	require.NotNil(t, sub)

	// The oldest device falls out; the newcomer is tracked.
	require.Len(t, store.written, 2)
	assert.Equal(t, "device-b", store.written[0].DeviceID)
	assert.Equal(t, "device-c", store.written[1].DeviceID)
}

func TestTrackSessionDeduplicatesByDevice(t *testing.T) {
	t1 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store := &fakeSessionStore{
		sub: testSubscriber(),
		sessions: []session.Entry{
			{DeviceID: "device-a", LastActive: t1},
			{DeviceID: "device-b", LastActive: t1.Add(time.Minute)},
		},
	}
	svc := NewSessionService(store, limitedConfig(2))
	now := t1.Add(time.Hour)
	svc.now = func() time.Time { return now }

	// Re-tracking an existing device refreshes it without evicting anything.
	sub, err := svc.TrackSession(context.Background(), "viewer@example.com", "device-a", "1.2.3.4", "tv-app")
	require.NoError(t, err)
	require.NotNil(t, sub)

	require.Len(t, store.written, 2)
	byDevice := map[string]session.Entry{}
	for _, e := range store.written {
		byDevice[e.DeviceID] = e
	}
	assert.Contains(t, byDevice, "device-a")
	assert.Contains(t, byDevice, "device-b")
	assert.Equal(t, now, byDevice["device-a"].LastActive)
}

func TestTrackSessionCapNeverExceeded(t *testing.T) {
	store := &fakeSessionStore{sub: testSubscriber()}
	svc := NewSessionService(store, limitedConfig(2))

	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, device := range []string{"a", "b", "c", "d", "e"} {
		tick := base.Add(time.Duration(i) * time.Minute)
		svc.now = func() time.Time { return tick }
		_, err := svc.TrackSession(ctx, "viewer@example.com", "device-"+device, "1.2.3.4", "tv-app")
		require.NoError(t, err)
		assert.LessOrEqual(t, len(store.sessions), 2)
	}

	// Only the two most recent devices survive.
	require.Len(t, store.sessions, 2)
	assert.Equal(t, "device-d", store.sessions[0].DeviceID)
	assert.Equal(t, "device-e", store.sessions[1].DeviceID)
}

func TestTrackSessionUnknownSubscriberIsNoOp(t *testing.T) {
	store := &fakeSessionStore{}
	svc := NewSessionService(store, limitedConfig(2))

	sub, err := svc.TrackSession(context.Background(), "ghost@example.com", "device-a", "1.2.3.4", "tv-app")
	require.NoError(t, err)
	assert.Nil(t, sub)
	assert.Nil(t, store.written)
}

func TestResolveMaxDevices(t *testing.T) {
	store := &fakeSessionStore{
		plans: map[string]plan.Plan{
			"basic":   {ID: "basic", MaxDevices: 1},
			"premium": {ID: "premium", MaxDevices: 4},
		},
	}
	ctx := context.Background()

	t.Run("limiting disabled means unlimited", func(t *testing.T) {
		svc := NewSessionService(store, SessionConfig{LimitingEnabled: false, DefaultMaxDevices: 2})
		sub := testSubscriber()
		assert.Equal(t, unlimitedDevices, svc.ResolveMaxDevices(ctx, sub))
	})

	t.Run("highest plan cap wins", func(t *testing.T) {
		svc := NewSessionService(store, limitedConfig(2))
		sub := testSubscriber()
		sub.ActivePlans = []string{"basic", "premium"}
		assert.Equal(t, 4, svc.ResolveMaxDevices(ctx, sub))
	})

	t.Run("no plans falls back to default", func(t *testing.T) {
		svc := NewSessionService(store, limitedConfig(3))
		sub := testSubscriber()
		assert.Equal(t, 3, svc.ResolveMaxDevices(ctx, sub))
	})
}

func TestHasReachedDeviceLimit(t *testing.T) {
	sub := testSubscriber()

	t.Run("at cap", func(t *testing.T) {
		store := &fakeSessionStore{
			sub: sub,
			sessions: []session.Entry{
				{DeviceID: "device-a"},
				{DeviceID: "device-b"},
			},
		}
		svc := NewSessionService(store, limitedConfig(2))
		assert.True(t, svc.HasReachedDeviceLimit(context.Background(), "sub-1"))
	})

	t.Run("under cap", func(t *testing.T) {
		store := &fakeSessionStore{
			sub:      sub,
			sessions: []session.Entry{{DeviceID: "device-a"}},
		}
		svc := NewSessionService(store, limitedConfig(2))
		assert.False(t, svc.HasReachedDeviceLimit(context.Background(), "sub-1"))
	})

	t.Run("store error fails open", func(t *testing.T) {
		store := &fakeSessionStore{subErr: errors.New("connection reset")}
		svc := NewSessionService(store, limitedConfig(2))
		assert.False(t, svc.HasReachedDeviceLimit(context.Background(), "sub-1"))
	})

	t.Run("session lookup error fails open", func(t *testing.T) {
		store := &fakeSessionStore{sub: sub, sessionErr: errors.New("connection reset")}
		svc := NewSessionService(store, limitedConfig(2))
		assert.False(t, svc.HasReachedDeviceLimit(context.Background(), "sub-1"))
	})
}

func TestRevokeSession(t *testing.T) {
	store := &fakeSessionStore{
		sub: testSubscriber(),
		sessions: []session.Entry{
			{DeviceID: "device-a"},
			{DeviceID: "device-b"},
		},
	}
	svc := NewSessionService(store, limitedConfig(2))

	require.NoError(t, svc.RevokeSession(context.Background(), "sub-1", "device-a"))
	require.Len(t, store.written, 1)
	assert.Equal(t, "device-b", store.written[0].DeviceID)

	// Revoking an untracked device is a no-op.
	require.NoError(t, svc.RevokeSession(context.Background(), "sub-1", "device-x"))
	require.Len(t, store.written, 1)
}
