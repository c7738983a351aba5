package session

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/hkdf"

	"github.com/sakif/event-rsvp/internal/apperror"
	"github.com/sakif/event-rsvp/internal/model"
)

// CookieName is the name of the session cookie.
const CookieName = "sid"

// Manager ties a Store to the session cookie.
//
// COOKIE VALUE FORMAT:
//
//	<session id>.<base64url(HMAC-SHA256(id))>
//
// The signature lets us reject forged or mangled cookies without a store
// round-trip. The HMAC key is derived from SESSION_SECRET with HKDF, so the
// raw secret is never used as a key directly.
type Manager struct {
	store  Store
	key    []byte
	ttl    time.Duration
	secure bool
}

// NewManager creates a Manager. secure sets the cookie's Secure flag and
// should be true whenever the site is served over HTTPS (production).
func NewManager(store Store, secret string, ttl time.Duration, secure bool) (*Manager, error) {
	if len(secret) < 16 {
		return nil, errors.New("session: secret must be at least 16 characters")
	}
	key, err := deriveKey(secret)
	if err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: store, key: key, ttl: ttl, secure: secure}, nil
}

func deriveKey(secret string) ([]byte, error) {
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte("event-rsvp session cookie"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("session: deriving cookie key: %w", err)
	}
	return key, nil
}

// Start opens a session for userID and sets the cookie on w.
func (m *Manager) Start(ctx context.Context, w http.ResponseWriter, userID string) (*model.Session, error) {
	s, err := m.store.Create(ctx, userID, m.ttl)
	if err != nil {
		return nil, fmt.Errorf("session: creating: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    m.sign(s.ID),
		Path:     "/",
		Expires:  s.ExpiresAt,
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return s, nil
}

// Load returns the session the request's cookie points at.
//
// A missing, forged or expired session is apperror.ErrUnauthenticated.
// Anything else is a store fault and is returned wrapped.
func (m *Manager) Load(ctx context.Context, r *http.Request) (*model.Session, error) {
	id, ok := m.sessionID(r)
	if !ok {
		return nil, apperror.Unauthenticated("no valid session")
	}

	s, err := m.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthenticated("session expired")
		}
		return nil, fmt.Errorf("session: loading: %w", err)
	}
	return s, nil
}

// End deletes the request's session (if any) and clears the cookie.
// The cookie is cleared even when the store delete fails.
func (m *Manager) End(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	defer m.clearCookie(w)

	id, ok := m.sessionID(r)
	if !ok {
		return nil
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("session: deleting: %w", err)
	}
	return nil
}

func (m *Manager) clearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) sessionID(r *http.Request) (string, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return "", false
	}
	return m.verify(c.Value)
}

func (m *Manager) sign(id string) string {
	return id + "." + base64.RawURLEncoding.EncodeToString(m.mac(id))
}

func (m *Manager) verify(value string) (string, bool) {
	i := strings.LastIndexByte(value, '.')
	if i <= 0 {
		return "", false
	}
	id, sig := value[:i], value[i+1:]

	got, err := base64.RawURLEncoding.DecodeString(sig)
	if err != nil {
		return "", false
	}
	// hmac.Equal is constant-time.
	if !hmac.Equal(got, m.mac(id)) {
		return "", false
	}
	return id, true
}

func (m *Manager) mac(id string) []byte {
	h := hmac.New(sha256.New, m.key)
	h.Write([]byte(id))
	return h.Sum(nil)
}
