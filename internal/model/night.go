package model

import (
	"fmt"
	"time"
)

// NightWindow is a daily time window during which new task admissions are held.
// Start and End are offsets from local midnight; End <= Start wraps past midnight.
type NightWindow struct {
	Enabled bool
	Start   time.Duration
	End     time.Duration
}

// ParseClock parses "HH:MM" into an offset from midnight
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q: %w", s, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// FormatClock renders an offset from midnight as "HH:MM"
func FormatClock(d time.Duration) string {
	d = d % (24 * time.Hour)
	return fmt.Sprintf("%02d:%02d", int(d/time.Hour), int((d%time.Hour)/time.Minute))
}

// Contains reports whether t falls inside the window
func (w NightWindow) Contains(t time.Time) bool {
	if !w.Enabled || w.Start == w.End {
		return false
	}
	offset := sinceMidnight(t)
	if w.Start < w.End {
		return offset >= w.Start && offset < w.End
	}
	return offset >= w.Start || offset < w.End
}

// NextEnd returns the first moment at or after t when the window closes
func (w NightWindow) NextEnd(t time.Time) time.Time {
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	end := midnight.Add(w.End)
	if !end.After(t) {
		end = end.AddDate(0, 0, 1)
	}
	return end
}

// String returns the window as "HH:MM-HH:MM"
func (w NightWindow) String() string {
	return FormatClock(w.Start) + "-" + FormatClock(w.End)
}

func sinceMidnight(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second
}
