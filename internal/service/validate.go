package service

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/sakif/event-rsvp/internal/apperror"
)

// Validation constants.
const (
	MaxNameLength = 50
)

var (
	// emailPattern is permissive about the local part and
	// strict about the TLD length. RE2 (Go's regexp engine) runs in linear
	// time, so the nested quantifiers can't blow up on hostile input.
	emailPattern = regexp.MustCompile(`^\w+([.-]?\w+)*@\w+([.-]?\w+)*(\.\w{2,3})+$`)

	// phonePattern allows digits, spaces, dashes, parentheses and a leading +.
	phonePattern = regexp.MustCompile(`^\+?[\d\s\-()]+$`)
)

// normalizeName trims a first or last name and enforces presence and length.
// label is the human name of the field ("First name"), field its JSON key.
func normalizeName(field, label, value string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", apperror.ValidationFailed(field, label+" is required")
	}
	// Count characters, not bytes: "Zoë" is three letters.
	if utf8.RuneCountInString(v) > MaxNameLength {
		return "", apperror.ValidationFailed(field, label+" cannot exceed 50 characters")
	}
	return v, nil
}

// normalizeEmail trims and lower-cases an email and checks its shape.
func normalizeEmail(value string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return "", apperror.ValidationFailed("email", "Email is required")
	}
	if !emailPattern.MatchString(v) {
		return "", apperror.ValidationFailed("email", "Please enter a valid email")
	}
	return v, nil
}

// normalizePhone trims a phone number. Phone is optional, so "" is valid.
func normalizePhone(value string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return "", nil
	}
	if !phonePattern.MatchString(v) {
		return "", apperror.ValidationFailed("phone", "Please enter a valid phone number")
	}
	return v, nil
}
