// Package media holds the domain types for video sources, format
// catalogs, track selection, and cut planning. Everything in this
// package is pure: no subprocesses, no network, no clocks.
package media

import "fmt"

// FormatDescriptor describes one downloadable format of a source video
// as reported by the extraction tool. Formats are unique by ID within
// one catalog.
type FormatDescriptor struct {
	// ID is the extractor's format identifier (e.g. "137", "hls-720").
	ID string `json:"format_id"`
	// Container is the file extension / container name (mp4, webm, m4a).
	Container string `json:"container"`
	// Width and Height are zero for audio-only formats.
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
	// Bitrate is the total bitrate in kbps (0 if unknown).
	Bitrate float64 `json:"bitrate,omitempty"`
	// HasVideo and HasAudio report which elementary streams the format carries.
	HasVideo bool `json:"has_video"`
	HasAudio bool `json:"has_audio"`
	// EstimatedSize is the approximate file size in bytes (0 if unknown).
	EstimatedSize int64 `json:"estimated_size,omitempty"`
	// URL is the direct media locator. It is typically a signed URL with
	// a short lifetime; it is never logged verbatim.
	URL string `json:"-"`
}

// QualityLabel returns a human-readable label like "1080p" or "audio".
func (f FormatDescriptor) QualityLabel() string {
	if !f.HasVideo {
		return "audio"
	}
	if f.Height > 0 {
		return fmt.Sprintf("%dp", f.Height)
	}
	return "video"
}

// Source is a resolved platform video: canonical identity, duration,
// and the catalog of available formats. Immutable once resolved.
type Source struct {
	ID         string             `json:"id"`
	Title      string             `json:"title"`
	WebpageURL string             `json:"webpage_url"`
	// Duration is the video length in seconds.
	Duration float64            `json:"duration"`
	Formats  []FormatDescriptor `json:"formats"`
}

// TrackSelection is the outcome of the selection policy: either a
// single format carrying both streams, or a video format paired with a
// separate audio format that must be muxed together.
type TrackSelection struct {
	// Video is always set. For a combined selection it carries both
	// audio and video.
	Video FormatDescriptor
	// Audio is set only when Split is true.
	Audio FormatDescriptor
	// Split reports whether two tracks must be merged.
	Split bool
	// Silent reports a degraded selection: the requested resolution was
	// only available as video-only and no audio-only format exists. The
	// output will have no audio track; callers must surface this.
	Silent bool
}

// CutWindow is the requested time range. End == nil means "to the end
// of the video".
type CutWindow struct {
	Start float64  `json:"start"`
	End   *float64 `json:"end,omitempty"`
}

// WindowTo builds a bounded window. Convenience for tests and the
// batch driver.
func WindowTo(start, end float64) CutWindow {
	return CutWindow{Start: start, End: &end}
}

// CutPlan carries the trim parameters for the encode step. Both tracks
// of a split selection share the same plan because they are co-timed
// on the original timeline.
type CutPlan struct {
	// Seek is the absolute input seek offset in seconds.
	Seek float64
	// Duration is the output duration in seconds; 0 means "until the
	// input ends".
	Duration float64
}

// Bounded reports whether the plan has an explicit duration.
func (p CutPlan) Bounded() bool { return p.Duration > 0 }
