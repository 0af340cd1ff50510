// Package bytesize parses and formats byte counts the way they appear
// in configuration files: "64KB", "1.5 MB", or a bare number of bytes.
// Units are binary (1024-based); KB and KiB mean the same thing.
package bytesize

import (
	"fmt"
	"strconv"
	"strings"
)

// Size is a byte count.
type Size int64

const (
	B  Size = 1
	KB      = 1024 * B
	MB      = 1024 * KB
	GB      = 1024 * MB
	TB      = 1024 * GB
)

// Parse converts a human-readable size into bytes. The value may be an
// integer or a decimal, the unit is optional (bytes when absent), and
// whitespace around and between value and unit is ignored.
func Parse(s string) (Size, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("bytesize: empty string")
	}

	// Split the numeric prefix from the unit suffix.
	cut := len(s)
	for i, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			cut = i
			break
		}
	}
	numStr := s[:cut]
	unitStr := strings.TrimSpace(s[cut:])

	value, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		return 0, fmt.Errorf("bytesize: invalid size %q", s)
	}

	unit, err := unitFor(unitStr)
	if err != nil {
		return 0, err
	}
	return Size(value * float64(unit)), nil
}

func unitFor(s string) (Size, error) {
	switch strings.ToLower(s) {
	case "", "b":
		return B, nil
	case "k", "kb", "kib":
		return KB, nil
	case "m", "mb", "mib":
		return MB, nil
	case "g", "gb", "gib":
		return GB, nil
	case "t", "tb", "tib":
		return TB, nil
	}
	return 0, fmt.Errorf("bytesize: unknown unit %q", s)
}

// Format renders a size with the largest unit that keeps the value at
// or above one, trimming the fraction to at most two digits.
func Format(s Size) string {
	negative := s < 0
	if negative {
		s = -s
	}

	var out string
	switch {
	case s >= TB:
		out = trim(float64(s)/float64(TB)) + "TB"
	case s >= GB:
		out = trim(float64(s)/float64(GB)) + "GB"
	case s >= MB:
		out = trim(float64(s)/float64(MB)) + "MB"
	case s >= KB:
		out = trim(float64(s)/float64(KB)) + "KB"
	default:
		out = strconv.FormatInt(int64(s), 10) + "B"
	}

	if negative {
		return "-" + out
	}
	return out
}

func trim(v float64) string {
	out := strconv.FormatFloat(v, 'f', 2, 64)
	out = strings.TrimRight(out, "0")
	return strings.TrimRight(out, ".")
}

// Bytes returns the size as a plain int64.
func (s Size) Bytes() int64 { return int64(s) }

func (s Size) String() string { return Format(s) }
