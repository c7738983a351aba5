package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sakif/event-rsvp/internal/apperror"
	"github.com/sakif/event-rsvp/internal/model"
)

// newTestTokenService creates a TokenService for testing.
// It uses a fixed, known secret so tests are deterministic.
func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService("test-secret-at-least-16-chars!!", DefaultTokenTTL)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

func testUser() *model.User {
	return &model.User{
		ID:        "user-abc-123",
		FirstName: "Jo",
		LastName:  "Doe",
		Email:     "jo@doe.com",
		Picture:   "https://example.com/jo.png",
	}
}

// =========================================================================
// TOKEN SERVICE CONSTRUCTION TESTS
// =========================================================================

func TestNewTokenService_ShortSecret(t *testing.T) {
	_, err := NewTokenService("short", time.Hour)
	if err == nil {
		t.Fatal("NewTokenService() should reject secrets shorter than 16 chars")
	}
}

func TestNewTokenService_NonPositiveTTL(t *testing.T) {
	_, err := NewTokenService("this-is-16-chars", 0)
	if err == nil {
		t.Fatal("NewTokenService() should reject a zero lifetime")
	}
}

func TestNewTokenService_ValidSecret(t *testing.T) {
	ts, err := NewTokenService("this-is-16-chars", 12*time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService() unexpected error for valid secret: %v", err)
	}
	if ts.TTL() != 12*time.Hour {
		t.Errorf("TTL() = %v, want 12h", ts.TTL())
	}
}

// =========================================================================
// ISSUE TESTS
// =========================================================================

func TestIssue_LooksLikeJWT(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	// header.payload.signature
	if n := strings.Count(token, "."); n != 2 {
		t.Errorf("Issue() token doesn't look like a JWT (expected 2 dots, got %d)", n)
	}
}

func TestIssue_RequiresUserID(t *testing.T) {
	ts := newTestTokenService(t)

	if _, err := ts.Issue(&model.User{Email: "x@y.com"}); err == nil {
		t.Error("Issue() should refuse a user without an ID")
	}
	if _, err := ts.Issue(nil); err == nil {
		t.Error("Issue() should refuse a nil user")
	}
}

// =========================================================================
// VERIFY TESTS
// =========================================================================

func TestVerify_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Issue(testUser())
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	c, err := ts.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if c.ID != "user-abc-123" || c.Subject != "user-abc-123" {
		t.Errorf("ID/sub = %q/%q, want user-abc-123", c.ID, c.Subject)
	}
	if c.Email != "jo@doe.com" {
		t.Errorf("Email = %q, want %q", c.Email, "jo@doe.com")
	}
	if c.Name != "Jo Doe" {
		t.Errorf("Name = %q, want %q", c.Name, "Jo Doe")
	}
	if c.Picture != "https://example.com/jo.png" {
		t.Errorf("Picture = %q", c.Picture)
	}

	lifetime := c.ExpiresAt.Sub(c.IssuedAt.Time)
	if lifetime != DefaultTokenTTL {
		t.Errorf("exp - iat = %v, want %v", lifetime, DefaultTokenTTL)
	}
}

func TestVerify_ExpiredToken(t *testing.T) {
	ts := newTestTokenService(t)

	// Issued eight days ago with a seven day lifetime.
	token, err := ts.issueAt(testUser(), time.Now().Add(-8*24*time.Hour))
	if err != nil {
		t.Fatalf("issueAt() error = %v", err)
	}

	_, err = ts.Verify(token)
	if !errors.Is(err, apperror.ErrInvalidCredential) {
		t.Fatalf("Verify() error = %v, want ErrInvalidCredential", err)
	}
	if !strings.Contains(err.Error(), "expired") {
		t.Errorf("Verify() error = %q, want it to mention expiry", err)
	}
}

func TestVerify_TamperedToken(t *testing.T) {
	ts := newTestTokenService(t)

	token, _ := ts.Issue(testUser())

	// Replace the tail of the signature to simulate an attacker modifying it.
	tampered := token[:len(token)-3] + "xxx"

	_, err := ts.Verify(tampered)
	if !errors.Is(err, apperror.ErrInvalidCredential) {
		t.Fatalf("Verify() error = %v, want ErrInvalidCredential", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	ts1, _ := NewTokenService("correct-secret-32-chars-long!!!!", time.Hour)
	ts2, _ := NewTokenService("wrong-secret-32-chars-long!!!!!!", time.Hour)

	token, _ := ts1.Issue(testUser())

	if _, err := ts2.Verify(token); err == nil {
		t.Fatal("Verify() should fail when using a different secret")
	}
}

func TestVerify_Garbage(t *testing.T) {
	ts := newTestTokenService(t)

	for _, in := range []string{"", "not.a.jwt.token", "abc"} {
		if _, err := ts.Verify(in); !errors.Is(err, apperror.ErrInvalidCredential) {
			t.Errorf("Verify(%q) error = %v, want ErrInvalidCredential", in, err)
		}
	}
}
