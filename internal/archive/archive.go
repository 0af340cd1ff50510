// Package archive streams a batch of encoded segments as a single zip
// straight to the client, one pipeline run per window, no temp files.
package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/oklog/ulid/v2"

	"github.com/clipserve/clipserve/internal/media"
	"github.com/clipserve/clipserve/internal/pipeline"
)

// Request is one batch job: a resolved source, a track selection, and
// the windows to cut. Windows are independent and run sequentially.
type Request struct {
	Source    *media.Source
	Selection media.TrackSelection
	Windows   []media.CutWindow
}

// Archiver drives the encode pipeline once per window and assembles
// the outputs into a zip.
type Archiver struct {
	orch   *pipeline.Orchestrator
	logger *slog.Logger
}

// New creates an archiver over the given orchestrator.
func New(orch *pipeline.Orchestrator, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{orch: orch, logger: logger}
}

// Filename returns a fresh download name for a batch archive.
func Filename() string {
	return "segments_" + ulid.Make().String() + ".zip"
}

// Stream encodes every window and writes the archive to w.
//
// All windows are planned before the first byte goes out, so an
// invalid window is reported while the caller can still send a proper
// error. A pipeline failure after the archive has started can only
// truncate it.
func (a *Archiver) Stream(ctx context.Context, req Request, w io.Writer) error {
	if len(req.Windows) == 0 {
		return fmt.Errorf("%w: no windows requested", media.ErrInvalidWindow)
	}

	plans := make([]media.CutPlan, len(req.Windows))
	for i, window := range req.Windows {
		plan, err := media.PlanCut(req.Source.Duration, window)
		if err != nil {
			return fmt.Errorf("window %d: %w", i+1, err)
		}
		plans[i] = plan
	}

	zw := zip.NewWriter(w)
	for i, plan := range plans {
		// The payload is already compressed video; Store keeps the
		// entry streamable and skips pointless deflate work.
		entry, err := zw.CreateHeader(&zip.FileHeader{
			Name:   fmt.Sprintf("part_%d.mp4", i+1),
			Method: zip.Store,
		})
		if err != nil {
			return fmt.Errorf("creating archive entry %d: %w", i+1, err)
		}

		job := pipeline.NewJob(req.Source, req.Selection, plan)
		written, err := a.orch.Stream(ctx, job, entry)
		if err != nil {
			return fmt.Errorf("window %d: %w", i+1, err)
		}
		a.logger.Debug("archive entry written",
			slog.Int("part", i+1),
			slog.Int64("bytes", written),
		)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalizing archive: %w", err)
	}
	return nil
}
