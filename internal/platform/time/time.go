// Package time contains time related helpers
package time

import "time"

// Ptr returns a pointer to t or nil if t is zero
func Ptr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// UTCDay truncates t to the start of its UTC calendar day
func UTCDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// NextUTCDay returns the start of the UTC day after t
func NextUTCDay(t time.Time) time.Time {
	return UTCDay(t).Add(24 * time.Hour)
}
