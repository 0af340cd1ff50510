// Package extractor resolves a platform video URL into a normalized
// format catalog by driving yt-dlp as a subprocess. The extraction
// tool is treated as an untrusted collaborator: it may block for
// seconds, get rate-limited, or be rejected by the platform, and its
// stderr is the only signal for why.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/clipserve/clipserve/internal/ffmpeg"
	"github.com/clipserve/clipserve/internal/media"
)

// DefaultBinary is the extraction tool resolved on PATH when no
// explicit path is configured.
const DefaultBinary = "yt-dlp"

// DefaultUserAgent is sent to the platform unless overridden; a
// desktop browser agent keeps rejection rates down.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// Config controls how the extraction subprocess is invoked.
type Config struct {
	// BinaryPath is the yt-dlp binary (empty = look up on PATH).
	BinaryPath string
	// CookiesFile is an optional credential bundle in Netscape cookie
	// format. Absence is not an error, only a higher rejection rate.
	CookiesFile string
	// Timeout bounds one extraction call.
	Timeout time.Duration
	// UserAgent overrides DefaultUserAgent when set.
	UserAgent string
}

// Resolver resolves source URLs into catalogs.
type Resolver struct {
	cfg    Config
	prober *ffmpeg.Prober
	logger *slog.Logger
}

// NewResolver creates a resolver. The prober is used as a duration
// fallback when the extractor reports none; it may be nil to disable
// the fallback.
func NewResolver(cfg Config, prober *ffmpeg.Prober, logger *slog.Logger) *Resolver {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = DefaultBinary
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{cfg: cfg, prober: prober, logger: logger}
}

// UserAgent returns the agent string the resolver sends upstream, so
// the encode step can present the same identity to the CDN.
func (r *Resolver) UserAgent() string { return r.cfg.UserAgent }

// Resolve performs one extraction call. No retries happen here; a
// failed resolution is reported immediately and retry policy belongs
// to the caller.
func (r *Resolver) Resolve(ctx context.Context, url string) (*media.Source, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	args := []string{
		"-J",
		"--no-playlist",
		"--no-warnings",
		"--user-agent", r.cfg.UserAgent,
	}
	if r.cfg.CookiesFile != "" {
		args = append(args, "--cookies", r.cfg.CookiesFile)
	}
	args = append(args, url)

	cmd := exec.CommandContext(ctx, r.cfg.BinaryPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	runErr := cmd.Run()
	r.logger.Debug("extraction call finished",
		slog.String("url", url),
		slog.Duration("took", time.Since(started)),
		slog.Bool("ok", runErr == nil),
	)

	if runErr != nil {
		return nil, classify(ctx, stderr.String(), runErr)
	}

	source, err := parseInfo(stdout.Bytes())
	if err != nil {
		return nil, err
	}

	if source.Duration == 0 {
		if err := r.probeDuration(ctx, source); err != nil {
			return nil, err
		}
	}

	return source, nil
}

// probeDuration fills in the duration via ffprobe when yt-dlp reports
// none, which is common for direct URLs on some platforms. A source
// that still has no duration is treated as a live stream and rejected.
func (r *Resolver) probeDuration(ctx context.Context, source *media.Source) error {
	if r.prober != nil {
		target := ""
		for _, f := range source.Formats {
			if f.HasVideo && f.URL != "" {
				target = f.URL
				break
			}
		}
		if target != "" {
			d, err := r.prober.ProbeDuration(ctx, target)
			if err != nil {
				r.logger.Warn("ffprobe duration fallback failed",
					slog.String("source_id", source.ID),
					slog.String("error", err.Error()),
				)
			} else {
				source.Duration = d
			}
		}
	}
	if source.Duration == 0 {
		return fmt.Errorf("%w: no known duration (live stream?)", media.ErrUnsupportedSource)
	}
	return nil
}

// ytdlpInfo is the subset of yt-dlp's -J output the service consumes.
type ytdlpInfo struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	WebpageURL string        `json:"webpage_url"`
	Duration   float64       `json:"duration"`
	IsLive     bool          `json:"is_live"`
	Formats    []ytdlpFormat `json:"formats"`
}

type ytdlpFormat struct {
	FormatID       string  `json:"format_id"`
	Ext            string  `json:"ext"`
	Protocol       string  `json:"protocol"`
	URL            string  `json:"url"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	TBR            float64 `json:"tbr"`
	VCodec         string  `json:"vcodec"`
	ACodec         string  `json:"acodec"`
	Filesize       int64   `json:"filesize"`
	FilesizeApprox int64   `json:"filesize_approx"`
}

func parseInfo(data []byte) (*media.Source, error) {
	var info ytdlpInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parsing extractor output: %w", err)
	}
	if info.IsLive {
		return nil, fmt.Errorf("%w: live streams cannot be cut", media.ErrUnsupportedSource)
	}

	source := &media.Source{
		ID:         info.ID,
		Title:      info.Title,
		WebpageURL: info.WebpageURL,
		Duration:   info.Duration,
	}

	for _, f := range info.Formats {
		hasVideo := f.VCodec != "" && f.VCodec != "none"
		hasAudio := f.ACodec != "" && f.ACodec != "none"
		// Storyboards and other non-media pseudo-formats.
		if f.URL == "" || (!hasVideo && !hasAudio) || f.Protocol == "mhtml" {
			continue
		}
		size := f.Filesize
		if size == 0 {
			size = f.FilesizeApprox
		}
		source.Formats = append(source.Formats, media.FormatDescriptor{
			ID:            f.FormatID,
			Container:     f.Ext,
			Width:         f.Width,
			Height:        f.Height,
			Bitrate:       f.TBR,
			HasVideo:      hasVideo,
			HasAudio:      hasAudio,
			EstimatedSize: size,
			URL:           f.URL,
		})
	}

	return source, nil
}

// classify maps an extraction failure onto the error taxonomy using
// the subprocess stderr. The distinctions matter to the user: a bot
// check wants cookies, a missing video wants a different URL.
func classify(ctx context.Context, stderr string, runErr error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", media.ErrUpstreamTimeout, ctx.Err())
	}

	lower := strings.ToLower(stderr)
	detail := lastLine(stderr)

	switch {
	case strings.Contains(lower, "sign in to confirm"),
		strings.Contains(lower, "login required"),
		strings.Contains(lower, "captcha"),
		strings.Contains(lower, "not a bot"),
		strings.Contains(lower, "http error 429"),
		strings.Contains(lower, "http error 403"):
		return fmt.Errorf("%w: %s", media.ErrUpstreamRejected, detail)

	case strings.Contains(lower, "video unavailable"),
		strings.Contains(lower, "private video"),
		strings.Contains(lower, "has been removed"),
		strings.Contains(lower, "does not exist"),
		strings.Contains(lower, "http error 404"):
		return fmt.Errorf("%w: %s", media.ErrNotFound, detail)

	case strings.Contains(lower, "unsupported url"),
		strings.Contains(lower, "is not a valid url"),
		strings.Contains(lower, "no suitable extractor"):
		return fmt.Errorf("%w: %s", media.ErrUnsupportedSource, detail)
	}

	if detail != "" {
		return fmt.Errorf("extraction failed: %s: %w", detail, runErr)
	}
	return fmt.Errorf("extraction failed: %w", runErr)
}

// lastLine returns the final non-empty stderr line, which is where
// yt-dlp puts its actual error message.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
