// Package pipeline runs encode jobs: one ffmpeg subprocess per job,
// streaming fragmented MP4 to a writer, with a concurrency bound, a
// startup watchdog, and failure classification.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/semaphore"

	"github.com/clipserve/clipserve/internal/ffmpeg"
	"github.com/clipserve/clipserve/internal/media"
)

const (
	// DefaultMaxConcurrent bounds simultaneous encoder subprocesses.
	DefaultMaxConcurrent = 4
	// DefaultStartupGrace is how long an encoder may run without
	// producing output before it is presumed wedged.
	DefaultStartupGrace = 20 * time.Second
	// DefaultBufferSize is the relay chunk size.
	DefaultBufferSize = 64 * 1024
)

// Options configures an Orchestrator.
type Options struct {
	// FFmpegBinary is the resolved encoder binary path.
	FFmpegBinary string
	// EncodeSpec is the fixed output encoding.
	EncodeSpec ffmpeg.EncodeSpec
	// UserAgent is sent with network inputs so the CDN sees the same
	// identity that resolved the URLs.
	UserAgent string
	// MaxConcurrent caps simultaneous jobs (DefaultMaxConcurrent if 0).
	MaxConcurrent int64
	// StartupGrace is the no-output watchdog window (DefaultStartupGrace if 0).
	StartupGrace time.Duration
	// BufferSize is the relay chunk size (DefaultBufferSize if 0).
	BufferSize int
	// StreamTimeout caps one job's wall-clock run time (0 = unlimited).
	StreamTimeout time.Duration
	// LogDir, when set, receives one ffmpeg stderr log per session.
	LogDir string
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Orchestrator runs encode jobs against a shared concurrency budget.
type Orchestrator struct {
	opts   Options
	sem    *semaphore.Weighted
	logger *slog.Logger
	active atomic.Int64
}

// New creates an orchestrator, applying defaults for unset options.
func New(opts Options) *Orchestrator {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.StartupGrace <= 0 {
		opts.StartupGrace = DefaultStartupGrace
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Orchestrator{
		opts:   opts,
		sem:    semaphore.NewWeighted(opts.MaxConcurrent),
		logger: opts.Logger,
	}
}

// Job binds a resolved source, a track selection, and a cut plan into
// one unit of encode work.
type Job struct {
	ID        string
	Source    *media.Source
	Selection media.TrackSelection
	Plan      media.CutPlan
}

// NewJob creates a job with a fresh ULID.
func NewJob(source *media.Source, sel media.TrackSelection, plan media.CutPlan) Job {
	return Job{
		ID:        ulid.Make().String(),
		Source:    source,
		Selection: sel,
		Plan:      plan,
	}
}

// ActiveJobs returns the number of jobs currently streaming.
func (o *Orchestrator) ActiveJobs() int64 {
	return o.active.Load()
}

// Stream runs the job's encoder and copies its output to w. It blocks
// until the subprocess exits or ctx is cancelled.
//
// Failures before the first output byte are classified onto the error
// taxonomy. Failures after bytes have flowed are logged but not
// returned: the caller has already committed its response and can only
// abort the connection.
func (o *Orchestrator) Stream(ctx context.Context, job Job, w io.Writer) (int64, error) {
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return 0, fmt.Errorf("waiting for encode slot: %w", err)
	}
	defer o.sem.Release(1)

	o.active.Add(1)
	defer o.active.Add(-1)

	cmd := o.buildCommand(job)
	o.logger.Info("encode job starting",
		slog.String("job_id", job.ID),
		slog.String("source_id", job.Source.ID),
		slog.String("video_format", job.Selection.Video.ID),
		slog.Bool("split", job.Selection.Split),
		slog.Bool("silent", job.Selection.Silent),
		slog.Float64("seek", job.Plan.Seek),
		slog.Float64("duration", job.Plan.Duration),
	)

	var cancel context.CancelFunc
	if o.opts.StreamTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, o.opts.StreamTimeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	fw := newFirstByteWriter(w)
	var timedOut atomic.Bool
	watchdogDone := make(chan struct{})
	go func() {
		defer close(watchdogDone)
		timer := time.NewTimer(o.opts.StartupGrace)
		defer timer.Stop()
		select {
		case <-fw.first:
		case <-ctx.Done():
		case <-timer.C:
			timedOut.Store(true)
			cancel()
		}
	}()

	written, runErr := cmd.StreamToWriter(ctx, fw, o.opts.BufferSize)
	// Snapshot before cancel(): afterwards ctx.Err() is always non-nil
	// and can no longer tell a disconnect from an encoder crash.
	ctxErr := ctx.Err()
	cancel()
	<-watchdogDone

	o.logFinalStats(job, cmd, written, runErr)

	switch {
	case timedOut.Load() && written == 0:
		return written, fmt.Errorf("%w: no output within %s",
			media.ErrEncodeStartupTimeout, o.opts.StartupGrace)

	case runErr == nil:
		return written, nil

	case written > 0:
		// Stream already under way; the exit status is diagnostic only.
		o.logger.Warn("encoder exited abnormally mid-stream",
			slog.String("job_id", job.ID),
			slog.Int64("bytes_written", written),
			slog.String("error", runErr.Error()),
		)
		return written, nil

	case ctxErr != nil:
		// Cancelled before any output, typically a client disconnect.
		return written, ctxErr

	default:
		return written, o.classifyCrash(job, cmd, runErr)
	}
}

// classifyCrash inspects the encoder's stderr to distinguish an expired
// or revoked input URL from a genuine encoder failure.
func (o *Orchestrator) classifyCrash(job Job, cmd *ffmpeg.Command, runErr error) error {
	lines := cmd.StderrLines()
	joined := strings.ToLower(strings.Join(lines, "\n"))

	if strings.Contains(joined, "403 forbidden") ||
		strings.Contains(joined, "404 not found") ||
		strings.Contains(joined, "server returned 403") ||
		strings.Contains(joined, "server returned 404") {
		return fmt.Errorf("%w: input rejected by origin", media.ErrSourceUnavailable)
	}

	detail := ""
	for i := len(lines) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(lines[i]); s != "" {
			detail = s
			break
		}
	}
	if detail != "" {
		return fmt.Errorf("%w: %s", media.ErrEncodeProcessCrashed, detail)
	}
	return fmt.Errorf("%w: %v", media.ErrEncodeProcessCrashed, runErr)
}

func (o *Orchestrator) buildCommand(job Job) *ffmpeg.Command {
	b := ffmpeg.NewCommandBuilder(o.opts.FFmpegBinary).
		HideBanner().
		UserAgent(o.opts.UserAgent)

	b.AddInput(ffmpeg.Input{
		URL:      job.Selection.Video.URL,
		Seek:     job.Plan.Seek,
		Duration: job.Plan.Duration,
	})
	if job.Selection.Split {
		b.AddInput(ffmpeg.Input{
			URL:      job.Selection.Audio.URL,
			Seek:     job.Plan.Seek,
			Duration: job.Plan.Duration,
		})
		b.MapSplit()
	}

	b.Encode(o.opts.EncodeSpec).FragmentedMP4()

	if o.opts.LogDir != "" {
		b.StderrLogPath(filepath.Join(o.opts.LogDir, "session-"+job.ID+".log"))
	}
	return b.Build()
}

func (o *Orchestrator) logFinalStats(job Job, cmd *ffmpeg.Command, written int64, runErr error) {
	attrs := []any{
		slog.String("job_id", job.ID),
		slog.Int64("bytes_written", written),
		slog.Duration("elapsed", cmd.Duration()),
		slog.Bool("ok", runErr == nil),
	}
	if stats := cmd.ProcessStats(); stats != nil {
		attrs = append(attrs,
			slog.Float64("cpu_percent", stats.CPUPercent),
			slog.Uint64("memory_rss_bytes", stats.MemoryRSSBytes),
			slog.Float64("write_rate_kbps", stats.WriteRateKbps),
		)
	}
	o.logger.Info("encode job finished", attrs...)
}

// firstByteWriter signals once when the first byte passes through.
type firstByteWriter struct {
	w     io.Writer
	first chan struct{}
	once  sync.Once
}

func newFirstByteWriter(w io.Writer) *firstByteWriter {
	return &firstByteWriter{w: w, first: make(chan struct{})}
}

func (f *firstByteWriter) Write(p []byte) (int, error) {
	if len(p) > 0 {
		f.once.Do(func() { close(f.first) })
	}
	return f.w.Write(p)
}
