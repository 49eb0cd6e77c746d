package auth

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var shortDuration = regexp.MustCompile(`^(\d+)([dwh])$`)

// ParseExpiry turns a token lifetime into an absolute expiry relative to now.
// It accepts "never" or "" (no expiry), Go durations such as "90m", day/week
// shorthands such as "30d" or "2w", and dates as "2006-01-02" or
// "2006-01-02 15:04" (UTC), which must lie in the future.
func ParseExpiry(in string, now time.Time) (*time.Time, error) {
	if in == "" || in == "never" {
		return nil, nil
	}

	if dur, err := time.ParseDuration(in); err == nil {
		if dur <= 0 {
			return nil, fmt.Errorf("expiry must be positive: %s", in)
		}
		t := now.Add(dur)
		return &t, nil
	}

	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, in); err == nil {
			if !t.After(now) {
				return nil, fmt.Errorf("expiry date must be in the future: %s", in)
			}
			return &t, nil
		}
	}

	m := shortDuration.FindStringSubmatch(in)
	if m == nil {
		return nil, fmt.Errorf("invalid expiry %q (use never, 30d, 2w, 24h, 2027-01-31 or a Go duration)", in)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, fmt.Errorf("invalid expiry %q: %w", in, err)
	}

	unit := time.Hour
	switch m[2] {
	case "d":
		unit = 24 * time.Hour
	case "w":
		unit = 7 * 24 * time.Hour
	}
	t := now.Add(time.Duration(n) * unit)
	return &t, nil
}
