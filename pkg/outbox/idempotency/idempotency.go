// Package idempotency keeps a relay from handing the same outbox event to
// the broker twice when it crashes between the ack and the row update.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNoStore = errors.New("idempotency: store is required")
	ErrBadTTL  = errors.New("idempotency: ttl must be positive")
	ErrNoRelay = errors.New("idempotency: relay name is required")
	ErrNoEvent = errors.New("idempotency: event id is required")
)

// Store is the Redis subset the manager needs; *redis.Client satisfies it.
type Store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Manager holds one marker per (relay, event) for ttl.
type Manager struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

func NewManager(store Store, ttl time.Duration) (*Manager, error) {
	switch {
	case store == nil:
		return nil, ErrNoStore
	case ttl <= 0:
		return nil, ErrBadTTL
	}
	return &Manager{store: store, ttl: ttl, now: time.Now}, nil
}

// Reserve returns false when another attempt already claimed the event.
// The marker value is the claim time, which helps when inspecting keys by hand.
func (m *Manager) Reserve(ctx context.Context, relay string, eventID uuid.UUID) (bool, error) {
	key, err := m.markerKey(relay, eventID)
	if err != nil {
		return false, err
	}
	ok, err := m.store.SetNX(ctx, key, m.now().UTC().Format(time.RFC3339), m.ttl)
	if err != nil {
		return false, fmt.Errorf("reserve %s: %w", eventID, err)
	}
	return ok, nil
}

// Release drops the marker after a failed publish.
func (m *Manager) Release(ctx context.Context, relay string, eventID uuid.UUID) error {
	key, err := m.markerKey(relay, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) markerKey(relay string, eventID uuid.UUID) (string, error) {
	if relay == "" {
		return "", ErrNoRelay
	}
	if eventID == uuid.Nil {
		return "", ErrNoEvent
	}
	return m.store.IdempotencyKey("evt:published:"+relay, eventID.String()), nil
}
