// Package duration parses and formats durations with the day and week
// units that retention settings need, on top of Go's own duration
// syntax. "7d", "2w", and "1w2d12h" all work; anything without d or w
// tokens goes straight to time.ParseDuration.
package duration

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// Day is 24 hours.
	Day = 24 * time.Hour
	// Week is 7 days.
	Week = 7 * Day
)

// Parse converts a duration string into a time.Duration. Integer day
// (d) and week (w) tokens may be mixed with the standard units in any
// order; fractional values are only supported for the standard units.
func Parse(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("duration: empty string")
	}

	negative := strings.HasPrefix(s, "-")
	if negative {
		s = s[1:]
	}

	var total time.Duration
	var rest strings.Builder

	i := 0
	for i < len(s) {
		j := i
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
		}
		if j == i || j == len(s) {
			// No leading number, or a number with no unit; let the
			// standard parser report it.
			rest.WriteString(s[i:])
			break
		}

		switch s[j] {
		case 'd', 'w':
			n, err := strconv.ParseInt(s[i:j], 10, 64)
			if err != nil {
				return 0, fmt.Errorf("duration: invalid value %q", s[i:j])
			}
			unit := Day
			if s[j] == 'w' {
				unit = Week
			}
			total += time.Duration(n) * unit
			i = j + 1
		default:
			// Copy the number and whatever unit follows for the
			// standard parser.
			k := j
			for k < len(s) && (s[k] < '0' || s[k] > '9') {
				k++
			}
			rest.WriteString(s[i:k])
			i = k
		}
	}

	if rest.Len() > 0 {
		d, err := time.ParseDuration(rest.String())
		if err != nil {
			return 0, fmt.Errorf("duration: %w", err)
		}
		total += d
	}

	if negative {
		total = -total
	}
	return total, nil
}

// Format renders a duration using weeks and days where they divide
// evenly, falling back to the standard notation for the remainder.
func Format(d time.Duration) string {
	if d == 0 {
		return "0s"
	}

	negative := d < 0
	if negative {
		d = -d
	}

	var b strings.Builder
	if weeks := d / Week; weeks > 0 {
		fmt.Fprintf(&b, "%dw", weeks)
		d -= weeks * Week
	}
	if days := d / Day; days > 0 {
		fmt.Fprintf(&b, "%dd", days)
		d -= days * Day
	}
	if d > 0 {
		b.WriteString(d.String())
	}

	if negative {
		return "-" + b.String()
	}
	return b.String()
}
