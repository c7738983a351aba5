package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/sakif/event-rsvp/internal/model"
)

// googleClaims is the portion of Google's ID token we care about.
// Google returns more (locale, hd, at_hash); we only unmarshal what a
// Profile needs.
//
// Claim docs: https://developers.google.com/identity/openid-connect/openid-connect#an-id-tokens-payload
type googleClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
}

// GoogleProvider wraps golang.org/x/oauth2 and go-oidc for the Google
// Authorization Code flow.
//
// OAUTH 2.0 + OPENID CONNECT:
//  1. Redirect the user to Google's authorization endpoint with our ClientID
//     and the "openid profile email" scopes.
//  2. Google redirects back to our callback URL with a short-lived "code".
//  3. Exchange the code for tokens (server-to-server, using ClientSecret).
//  4. The token response carries an id_token: a JWT signed by Google.
//     go-oidc checks its signature against Google's published keys, plus the
//     issuer, audience and expiry. No extra userinfo call is needed.
type GoogleProvider struct {
	config   *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// NewGoogleProvider discovers the issuer's endpoints and signing keys and
// returns a ready provider. Discovery is a network call, so this runs once
// at startup.
//
// issuerURL is normally "https://accounts.google.com".
// callbackURL must match an "Authorized redirect URI" in the Google console
// exactly, e.g. "http://localhost:8000/api/v1/auth/google/callback".
func NewGoogleProvider(ctx context.Context, issuerURL, clientID, clientSecret, callbackURL string) (*GoogleProvider, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("auth: discovering OIDC issuer %s: %w", issuerURL, err)
	}

	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  callbackURL,
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		Endpoint:     provider.Endpoint(),
	}
	return newGoogleProvider(cfg, provider.Verifier(&oidc.Config{ClientID: clientID})), nil
}

func newGoogleProvider(cfg *oauth2.Config, verifier *oidc.IDTokenVerifier) *GoogleProvider {
	return &GoogleProvider{config: cfg, verifier: verifier}
}

// AuthURL returns the consent-page URL to redirect the user to.
//
// STATE PARAMETER:
// state is a random value we also store in a short-lived cookie. When Google
// calls back, the two must match; otherwise an attacker could make a victim's
// browser complete a login for the attacker's account (login CSRF).
func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades the authorization code for a verified Google profile.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*model.Profile, error) {
	oauthToken, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: exchanging OAuth code: %w", err)
	}

	rawIDToken, ok := oauthToken.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, errors.New("auth: token response has no id_token")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("auth: verifying id_token: %w", err)
	}

	var claims googleClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("auth: decoding id_token claims: %w", err)
	}

	return profileFromClaims(idToken.Subject, claims), nil
}

// profileFromClaims maps Google's claims onto a Profile.
//
// An unverified email is dropped. The reconciler links accounts by email, so
// trusting an address Google hasn't verified would let anyone claim an
// existing guest's record.
func profileFromClaims(subject string, c googleClaims) *model.Profile {
	p := &model.Profile{
		ProviderID: subject,
		FirstName:  strings.TrimSpace(c.GivenName),
		LastName:   strings.TrimSpace(c.FamilyName),
		Picture:    c.Picture,
	}
	if c.EmailVerified {
		p.Email = strings.ToLower(strings.TrimSpace(c.Email))
	}
	return p
}
