// Package session keeps server-side login sessions and the signed cookie that
// points at them.
//
// The browser only ever holds an opaque, HMAC-signed session ID. Who the
// session belongs to lives in the Store, so logging out (Delete) revokes the
// session immediately; a JWT can't be revoked like that before it expires.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/sakif/event-rsvp/internal/apperror"
	"github.com/sakif/event-rsvp/internal/model"
)

// DefaultTTL is the lifetime of a login session.
const DefaultTTL = 24 * time.Hour

// Store persists sessions. Get reports a missing or expired session as
// apperror.ErrNotFound. Deleting a session that doesn't exist is not an error.
type Store interface {
	Create(ctx context.Context, userID string, ttl time.Duration) (*model.Session, error)
	Get(ctx context.Context, id string) (*model.Session, error)
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps sessions in process memory with per-item expiry.
//
// go-cache sweeps expired items on a timer and also refuses to return an
// expired item from Get, so a session can never outlive its ExpiresAt even
// between sweeps. Sessions don't survive a restart, which only means users
// log in again; the JWT they hold keeps working.
type MemoryStore struct {
	items *cache.Cache
}

// NewMemoryStore creates a store that purges expired sessions every
// cleanupInterval.
func NewMemoryStore(cleanupInterval time.Duration) *MemoryStore {
	return &MemoryStore{items: cache.New(DefaultTTL, cleanupInterval)}
}

// Create opens a session for userID. Session IDs are random (UUIDv4, 122 bits
// from crypto/rand) because, unlike row IDs, they must not be guessable.
func (m *MemoryStore) Create(_ context.Context, userID string, ttl time.Duration) (*model.Session, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := time.Now().UTC()
	s := &model.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	m.items.Set(s.ID, *s, ttl)
	return s, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*model.Session, error) {
	v, found := m.items.Get(id)
	if !found {
		return nil, apperror.NotFound("session", id)
	}
	s := v.(model.Session)
	return &s, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.items.Delete(id)
	return nil
}

// Len reports how many sessions are stored, including expired ones the
// janitor hasn't swept yet.
func (m *MemoryStore) Len() int {
	return m.items.ItemCount()
}
