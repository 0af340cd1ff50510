package handlers

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/clipserve/clipserve/internal/archive"
	"github.com/clipserve/clipserve/internal/media"
	"github.com/clipserve/clipserve/internal/pipeline"
)

// SourceResolver resolves a platform URL into a source catalog.
type SourceResolver interface {
	Resolve(ctx context.Context, url string) (*media.Source, error)
	UserAgent() string
}

// SegmentStreamer runs one encode job against a writer.
type SegmentStreamer interface {
	Stream(ctx context.Context, job pipeline.Job, w io.Writer) (int64, error)
	ActiveJobs() int64
}

// BatchStreamer produces a zip of segments.
type BatchStreamer interface {
	Stream(ctx context.Context, req archive.Request, w io.Writer) error
}

// selectTracks picks tracks by explicit format id when given, otherwise
// by requested quality.
func selectTracks(formats []media.FormatDescriptor, formatID, quality string) (media.TrackSelection, error) {
	if formatID != "" {
		return media.SelectByID(formats, formatID)
	}
	height, err := parseQuality(quality)
	if err != nil {
		return media.TrackSelection{}, err
	}
	return media.Select(formats, height)
}

// parseQuality converts a quality request value into a desired height.
// Accepts "720", "720p", "best" (or empty) for the highest available.
func parseQuality(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "best" {
		return 0, nil
	}
	s = strings.TrimSuffix(s, "p")
	height, err := strconv.Atoi(s)
	if err != nil || height <= 0 {
		return 0, fmt.Errorf("%w: invalid quality %q", media.ErrNoFormatsAvailable, s)
	}
	return height, nil
}

// sanitizeFilename reduces a video title to something safe inside a
// Content-Disposition filename: ASCII word characters and dashes only.
func sanitizeFilename(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		case r == ' ', r == '_':
			b.WriteByte('_')
		}
	}
	name := strings.Trim(b.String(), "._")
	if name == "" {
		return "segment"
	}
	const maxLen = 80
	if len(name) > maxLen {
		name = name[:maxLen]
	}
	return name
}

// segmentFilename builds the download name for one cut.
func segmentFilename(title string, start, end float64) string {
	return fmt.Sprintf("%s_%s-%s.mp4", sanitizeFilename(title), formatStamp(start), formatStamp(end))
}

// formatStamp renders a timestamp for a filename, dropping a trailing
// .0 fraction so whole seconds stay short.
func formatStamp(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	return strings.ReplaceAll(s, ".", "_")
}
