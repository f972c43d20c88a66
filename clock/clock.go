package clock

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zero-day-ai/itinerary/planerr"
)

// Time is minutes since midnight. Arithmetic never wraps, so a plan that runs
// past midnight yields values of 1440 and above.
type Time int

// Midnight is the zero Time.
const Midnight Time = 0

const minutesPerHalfDay = 12 * 60

// Parse parses a 12-hour clock string such as "9:00AM" or "02:30pm".
func Parse(text string) (Time, error) {
	s := strings.ToUpper(strings.TrimSpace(text))
	if len(s) < 5 {
		return 0, planerr.Parse("parse_time", "invalid time %q", text)
	}

	meridiem := s[len(s)-2:]
	if meridiem != "AM" && meridiem != "PM" {
		return 0, planerr.Parse("parse_time", "invalid time %q: missing AM/PM", text)
	}

	hh, mm, ok := strings.Cut(s[:len(s)-2], ":")
	if !ok || len(hh) < 1 || len(hh) > 2 || len(mm) < 1 || len(mm) > 2 {
		return 0, planerr.Parse("parse_time", "invalid time %q", text)
	}

	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 1 || hour > 12 {
		return 0, planerr.Parse("parse_time", "invalid hour in %q", text)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 {
		return 0, planerr.Parse("parse_time", "invalid minute in %q", text)
	}

	t := Time((hour%12)*60 + minute)
	if meridiem == "PM" {
		t += minutesPerHalfDay
	}
	return t, nil
}

// MustParse is Parse for constants; it panics on error.
func MustParse(text string) Time {
	t, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return t
}

// Add returns t advanced by minutes.
func (t Time) Add(minutes int) Time {
	return t + Time(minutes)
}

// Before reports whether t is strictly earlier than u.
func (t Time) Before(u Time) bool { return t < u }

// After reports whether t is strictly later than u.
func (t Time) After(u Time) bool { return t > u }

// Sub returns t-u in minutes.
func (t Time) Sub(u Time) int { return int(t - u) }

// String formats t as a zero-padded 12-hour clock, e.g. "09:15AM".
// Times past midnight are folded back onto the day.
func (t Time) String() string {
	m := int(t) % (2 * minutesPerHalfDay)
	if m < 0 {
		m += 2 * minutesPerHalfDay
	}
	meridiem := "AM"
	if m >= minutesPerHalfDay {
		meridiem = "PM"
	}
	hour := (m / 60) % 12
	if hour == 0 {
		hour = 12
	}
	return fmt.Sprintf("%02d:%02d%s", hour, m%60, meridiem)
}

// MarshalText implements encoding.TextMarshaler.
func (t Time) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Time) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
