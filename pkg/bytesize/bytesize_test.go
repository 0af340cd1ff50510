package bytesize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Size
	}{
		{"0", 0},
		{"1024", 1024},
		{"64KB", 64 * KB},
		{"64kb", 64 * KB},
		{"64KiB", 64 * KB},
		{"128 KB", 128 * KB},
		{"5MB", 5 * MB},
		{"1.5MB", Size(1.5 * float64(MB))},
		{"2GB", 2 * GB},
		{"1TB", TB},
		{" 512 ", 512},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		require.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
}

func TestParseErrors(t *testing.T) {
	for _, in := range []string{"", "  ", "abc", "5XB", "MB", "5MBs"} {
		_, err := Parse(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		in   Size
		want string
	}{
		{0, "0B"},
		{500, "500B"},
		{64 * KB, "64KB"},
		{5 * MB, "5MB"},
		{Size(1.5 * float64(GB)), "1.5GB"},
		{2 * TB, "2TB"},
		{-(5 * MB), "-5MB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Format(tt.in))
	}
}

func TestRoundTrip(t *testing.T) {
	for _, in := range []string{"64KB", "5MB", "2GB"} {
		size, err := Parse(in)
		require.NoError(t, err)
		assert.Equal(t, in, size.String())
	}
}
