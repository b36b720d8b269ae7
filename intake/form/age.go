package form

import (
	"strings"
	"time"
)

// ParseDOB accepts a plain date or a minute-precision local timestamp.
func ParseDOB(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{DateLayout, DateTimeLayout} {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseTimestamp parses a minute-precision local timestamp such as a
// check-in time.
func ParseTimestamp(value string) (time.Time, bool) {
	t, err := time.ParseInLocation(DateTimeLayout, strings.TrimSpace(value), time.Local)
	return t, err == nil
}

// AgeOn returns whole years elapsed between dob and now, counting a year
// only once its month and day have been reached.
func AgeOn(dob, now time.Time) int {
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}
