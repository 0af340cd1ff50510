package duration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"0s", 0},
		{"45s", 45 * time.Second},
		{"30m", 30 * time.Minute},
		{"1h30m", 90 * time.Minute},
		{"720h", 720 * time.Hour},
		{"1.5h", 90 * time.Minute},
		{"1d", Day},
		{"7d", 7 * Day},
		{"1d12h", Day + 12*time.Hour},
		{"2w", 2 * Week},
		{"1w2d", Week + 2*Day},
		{"1w2d12h", Week + 2*Day + 12*time.Hour},
		{"12h1d", Day + 12*time.Hour},
		{"-3d", -3 * Day},
		{" 2w ", 2 * Week},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"", "  ", "d", "5", "5x", "abc", "1.5d"} {
		_, err := Parse(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{45 * time.Second, "45s"},
		{12 * time.Hour, "12h0m0s"},
		{3 * Day, "3d"},
		{2 * Week, "2w"},
		{Week + 2*Day, "1w2d"},
		{Week + 2*Day + 12*time.Hour, "1w2d12h0m0s"},
		{-3 * Day, "-3d"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Format(tt.in), "input %s", tt.in)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, in := range []string{"7d", "2w", "1w2d"} {
		d, err := Parse(in)
		require.NoError(t, err)
		assert.Equal(t, in, Format(d))
	}
}
