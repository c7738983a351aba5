package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Duration is a time.Duration that also understands day and week units, so
// JWT_EXPIRES_IN can be written the way people usually write token
// lifetimes: "7d", "7D", "2w", "7 days", as well as anything
// time.ParseDuration accepts ("12h", "90m").
//
// A bare number is rejected. "3600" could mean seconds or milliseconds
// depending on who wrote it.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler, which env.Parse uses
// for custom field types.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

var longUnits = map[string]time.Duration{
	"d": 24 * time.Hour, "day": 24 * time.Hour, "days": 24 * time.Hour,
	"w": 7 * 24 * time.Hour, "week": 7 * 24 * time.Hour, "weeks": 7 * 24 * time.Hour,
	"h": time.Hour, "hr": time.Hour, "hrs": time.Hour, "hour": time.Hour, "hours": time.Hour,
	"m": time.Minute, "min": time.Minute, "mins": time.Minute, "minute": time.Minute, "minutes": time.Minute,
	"s": time.Second, "sec": time.Second, "secs": time.Second, "second": time.Second, "seconds": time.Second,
}

// ParseDuration parses a positive duration. Units are case-insensitive.
func ParseDuration(s string) (time.Duration, error) {
	raw := s
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("invalid duration %q: empty", raw)
	}

	if v, err := time.ParseDuration(s); err == nil {
		if v <= 0 {
			return 0, fmt.Errorf("invalid duration %q: must be positive", raw)
		}
		return v, nil
	}

	// "<integer>[ ]<unit>"
	i := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsDigit(r) })
	if i <= 0 {
		return 0, fmt.Errorf("invalid duration %q: expected a number followed by a unit such as 7d or 12h", raw)
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	unit, ok := longUnits[strings.TrimSpace(s[i:])]
	if !ok {
		return 0, fmt.Errorf("invalid duration %q: unknown unit %q", raw, strings.TrimSpace(s[i:]))
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid duration %q: must be positive", raw)
	}
	if int64(n) > math.MaxInt64/int64(unit) {
		return 0, fmt.Errorf("invalid duration %q: out of range", raw)
	}
	return time.Duration(n) * unit, nil
}
