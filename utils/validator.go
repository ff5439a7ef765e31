package utils

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// ParseDate parses an ISO-8601 timestamp. Date-only input (2025-01-13)
// is accepted and interpreted as midnight UTC.
func ParseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
}

// ValidateDateRange checks chronological order. Equal bounds are a valid
// single-instant window.
func ValidateDateRange(start, end time.Time) error {
	if start.After(end) {
		return ErrDateRangeOrder
	}
	return nil
}

// ValidateIP accepts IPv4 and IPv6 literals.
func ValidateIP(raw string) error {
	if net.ParseIP(raw) == nil {
		return fmt.Errorf("%w: %q", ErrInvalidIP, raw)
	}
	return nil
}

// ParseLimit parses a limit query parameter, falling back to def when the
// parameter is absent. Values outside [min, max] return ErrLimitOutOfRange.
func ParseLimit(raw string, def, min, max int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrLimitOutOfRange, raw)
	}
	if n < min || n > max {
		return n, ErrLimitOutOfRange
	}
	return n, nil
}

// ParseCSV splits a comma-separated filter list, trimming whitespace and
// dropping empty entries.
func ParseCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
