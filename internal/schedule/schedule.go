// Package schedule resolves which day's duty roster is active. Rosters
// rotate at a fixed local cutoff (duty handover), not at midnight.
package schedule

import "time"

const keyLayout = "02/01/2006"

// Defaults match the national duty schedule: Turkish local time, 08:30 handover.
const (
	DefaultUTCOffsetHours = 3
	DefaultCutoffHour     = 8
	DefaultCutoffMinute   = 30
)

// ActiveKey returns the DD/MM/YYYY cache key for the roster active at now.
// Before the cutoff in the shifted local day, yesterday's roster is still on
// duty; at or after the cutoff, today's.
func ActiveKey(now time.Time, utcOffsetHours, cutoffHour, cutoffMinute int) string {
	shifted := now.UTC().Add(time.Duration(utcOffsetHours) * time.Hour)

	midnight := time.Date(shifted.Year(), shifted.Month(), shifted.Day(), 0, 0, 0, 0, time.UTC)
	cutoff := midnight.Add(time.Duration(cutoffHour)*time.Hour + time.Duration(cutoffMinute)*time.Minute)

	target := midnight
	if shifted.Before(cutoff) {
		target = midnight.AddDate(0, 0, -1)
	}
	return target.Format(keyLayout)
}

// CurrentKey is ActiveKey with the default offset and cutoff.
func CurrentKey(now time.Time) string {
	return ActiveKey(now, DefaultUTCOffsetHours, DefaultCutoffHour, DefaultCutoffMinute)
}

// KeyFor formats t's calendar date as a roster key.
func KeyFor(t time.Time) string {
	return t.Format(keyLayout)
}

// ValidKey reports whether s is a strict DD/MM/YYYY calendar date.
// Round-trips through time.Parse so 31/02/2024 and friends are rejected.
func ValidKey(s string) bool {
	t, err := time.Parse(keyLayout, s)
	if err != nil {
		return false
	}
	return t.Format(keyLayout) == s
}
