package clock

import (
	"fmt"
	"strings"
	"time"
)

// Countdown is the derived display state of a scheduled start time.
type Countdown struct {
	Expired   bool          `json:"expired"`
	Label     string        `json:"label"`
	Remaining time.Duration `json:"-"`
}

// Evaluate computes the countdown from now until start. It has no side effects
// and returns the same result for the same (start, now) pair.
func Evaluate(start, now time.Time) Countdown {
	diff := start.Sub(now)
	if diff <= 0 {
		return Countdown{Expired: true}
	}

	secs := int64(diff / time.Second)
	hours := secs / 3600
	minutes := (secs % 3600) / 60
	seconds := secs % 60

	var label string
	switch {
	case hours > 0:
		label = fmt.Sprintf("%d hours %02d:%02d", hours, minutes, seconds)
	case minutes > 0:
		label = fmt.Sprintf("%02d:%02d", minutes, seconds)
	default:
		label = fmt.Sprintf("%02d", seconds)
	}

	return Countdown{Label: label, Remaining: diff}
}

var naiveLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

// ParseStart parses a start time. Naive wall-clock strings are interpreted in
// loc; RFC3339 strings keep their own offset.
func ParseStart(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty start time")
	}
	if loc == nil {
		loc = time.Local
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized start time %q", s)
}

// FormatLocal renders t as a naive wall-clock string in loc.
func FormatLocal(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format("2006-01-02 15:04:05")
}
