package services

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"streamCastAPI/internal/types/plan"
	"streamCastAPI/internal/types/session"
	"streamCastAPI/internal/types/subscriber"
)

// unlimitedDevices is the effective cap when device limiting is disabled.
const unlimitedDevices = 1 << 30

type SessionStore interface {
	GetSubscriberByEmail(ctx context.Context, email string) (*subscriber.Subscriber, error)
	GetSubscriberByID(ctx context.Context, id string) (*subscriber.Subscriber, error)
	GetSessions(ctx context.Context, subscriberID string) ([]session.Entry, error)
	ReplaceSessions(ctx context.Context, subscriberID string, entries []session.Entry) error
	GetPlansByID(ctx context.Context, planIDs []string) ([]plan.Plan, error)
}

type SessionConfig struct {
	// LimitingEnabled gates the whole feature; off means every subscriber is
	// effectively unlimited.
	LimitingEnabled   bool
	DefaultMaxDevices int
}

// SessionService enforces the per-subscriber concurrent-device cap. The cap
// is advisory UX policy, not a security boundary: the read-modify-write on a
// subscriber's session list is not locked, and concurrent logins race with
// last-writer-wins.
type SessionService struct {
	store SessionStore
	cfg   SessionConfig
	now   func() time.Time
}

func NewSessionService(store SessionStore, cfg SessionConfig) *SessionService {
	if cfg.DefaultMaxDevices <= 0 {
		cfg.DefaultMaxDevices = 2
	}
	return &SessionService{store: store, cfg: cfg, now: time.Now}
}

// ResolveMaxDevices returns the device cap for a subscriber: the highest
// max_devices across their active plans, or the configured default when no
// plan sets one.
func (s *SessionService) ResolveMaxDevices(ctx context.Context, sub *subscriber.Subscriber) int {
	if !s.cfg.LimitingEnabled {
		return unlimitedDevices
	}
	if len(sub.ActivePlans) == 0 {
		return s.cfg.DefaultMaxDevices
	}

	plans, err := s.store.GetPlansByID(ctx, sub.ActivePlans)
	if err != nil {
		log.Printf("Session limiter: plan lookup failed for subscriber %s: %v", sub.ID, err)
		return s.cfg.DefaultMaxDevices
	}

	max := 0
	for _, p := range plans {
		if p.MaxDevices > max {
			max = p.MaxDevices
		}
	}
	if max == 0 {
		return s.cfg.DefaultMaxDevices
	}
	return max
}

// TrackSession records activity for a device: de-duplicates by device id,
// refreshes last_active, and evicts the least-recently-active sessions when
// the list exceeds the subscriber's cap. An evicted device must
// re-authenticate to be tracked again. Unknown subscribers are a logged
// no-op, not an error.
func (s *SessionService) TrackSession(ctx context.Context, email, deviceID, ip, userAgent string) (*subscriber.Subscriber, error) {
	if email == "" || deviceID == "" {
		return nil, errors.New("email and deviceId are required")
	}

	sub, err := s.store.GetSubscriberByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Printf("Session tracking for unknown subscriber %q, skipping", email)
			return nil, nil
		}
		return nil, err
	}

	entries, err := s.store.GetSessions(ctx, sub.ID)
	if err != nil {
		return nil, err
	}

	// De-dup: an existing entry for this device is replaced, not appended.
	kept := entries[:0]
	for _, e := range entries {
		if e.DeviceID != deviceID {
			kept = append(kept, e)
		}
	}
	entries = append(kept, session.Entry{
		DeviceID:   deviceID,
		IP:         ip,
		UserAgent:  userAgent,
		LastActive: s.now(),
	})

	maxDevices := s.ResolveMaxDevices(ctx, sub)
	if len(entries) > maxDevices {
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].LastActive.Before(entries[j].LastActive)
		})
		evicted := len(entries) - maxDevices
		entries = entries[evicted:]
		sessionsEvictedTotal.Add(float64(evicted))
		log.Printf("Evicted %d oldest session(s) for subscriber %s (cap %d)", evicted, sub.ID, maxDevices)
	}

	if err := s.store.ReplaceSessions(ctx, sub.ID, entries); err != nil {
		return nil, err
	}

	sub.Sessions = entries
	return sub, nil
}

// HasReachedDeviceLimit gates new-session admission before TrackSession.
// Errors fail open here: this governs a UX limit, and a store hiccup should
// not lock every subscriber out of playback.
func (s *SessionService) HasReachedDeviceLimit(ctx context.Context, subscriberID string) bool {
	sub, err := s.store.GetSubscriberByID(ctx, subscriberID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Printf("Device limit check failed for %s: %v", subscriberID, err)
		}
		return false
	}

	entries, err := s.store.GetSessions(ctx, sub.ID)
	if err != nil {
		log.Printf("Device limit check: session lookup failed for %s: %v", subscriberID, err)
		return false
	}

	return len(entries) >= s.ResolveMaxDevices(ctx, sub)
}

func (s *SessionService) ListSessions(ctx context.Context, subscriberID string) ([]session.Entry, error) {
	return s.store.GetSessions(ctx, subscriberID)
}

// RevokeSession removes one device's session, e.g. from a "manage devices"
// screen. Revoking a device that is not tracked is a no-op.
func (s *SessionService) RevokeSession(ctx context.Context, subscriberID, deviceID string) error {
	entries, err := s.store.GetSessions(ctx, subscriberID)
	if err != nil {
		return err
	}

	kept := entries[:0]
	for _, e := range entries {
		if e.DeviceID != deviceID {
			kept = append(kept, e)
		}
	}
	return s.store.ReplaceSessions(ctx, subscriberID, kept)
}
