package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
)

// ProbeResult is the subset of ffprobe output the service needs.
type ProbeResult struct {
	Format  ProbeFormat   `json:"format"`
	Streams []ProbeStream `json:"streams"`
}

// ProbeFormat contains container-level information.
type ProbeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	BitRate    string `json:"bit_rate"`
}

// ProbeStream contains per-stream information.
type ProbeStream struct {
	CodecType string `json:"codec_type"` // video, audio
	CodecName string `json:"codec_name"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Duration  string `json:"duration,omitempty"`
}

// Prober runs ffprobe against a media locator.
type Prober struct {
	binary string
}

// NewProber creates a prober using the given ffprobe binary.
func NewProber(binary string) *Prober {
	if binary == "" {
		binary = DefaultProbeBinary
	}
	return &Prober{binary: binary}
}

// Probe runs ffprobe with JSON output against the given URL or path.
func (p *Prober) Probe(ctx context.Context, target string) (*ProbeResult, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		target,
	}

	out, err := exec.CommandContext(ctx, p.binary, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var result ProbeResult
	if err := json.Unmarshal(out, &result); err != nil {
		return nil, fmt.Errorf("parsing ffprobe output: %w", err)
	}
	return &result, nil
}

// ProbeDuration returns the duration in seconds, preferring the
// container value and falling back to the longest stream. Returns 0
// when ffprobe reports no duration at all (live streams).
func (p *Prober) ProbeDuration(ctx context.Context, target string) (float64, error) {
	result, err := p.Probe(ctx, target)
	if err != nil {
		return 0, err
	}
	return result.DurationSeconds(), nil
}

// DurationSeconds extracts the best-known duration from a probe result.
func (r *ProbeResult) DurationSeconds() float64 {
	if d, err := strconv.ParseFloat(r.Format.Duration, 64); err == nil && d > 0 {
		return d
	}
	var longest float64
	for _, s := range r.Streams {
		if d, err := strconv.ParseFloat(s.Duration, 64); err == nil && d > longest {
			longest = d
		}
	}
	return longest
}
