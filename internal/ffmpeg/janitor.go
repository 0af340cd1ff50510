package ffmpeg

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// janitorSchedule runs the prune nightly at 03:00 (6-field cron).
const janitorSchedule = "0 0 3 * * *"

// LogJanitor prunes encoder session logs past their retention age.
type LogJanitor struct {
	dir       string
	retention time.Duration
	cron      *cron.Cron
	logger    *slog.Logger
}

// NewLogJanitor creates a janitor for the given log directory. A zero
// retention disables pruning entirely.
func NewLogJanitor(dir string, retention time.Duration, logger *slog.Logger) *LogJanitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogJanitor{
		dir:       dir,
		retention: retention,
		cron:      cron.New(cron.WithSeconds()),
		logger:    logger,
	}
}

// Start schedules the nightly prune and runs one immediately so a
// restart does not postpone cleanup by a day.
func (j *LogJanitor) Start() error {
	if j.dir == "" || j.retention <= 0 {
		return nil
	}
	if _, err := j.cron.AddFunc(janitorSchedule, j.Prune); err != nil {
		return err
	}
	j.cron.Start()
	go j.Prune()
	return nil
}

// Stop halts the schedule. Running prunes finish on their own.
func (j *LogJanitor) Stop() {
	j.cron.Stop()
}

// Prune removes session logs older than the retention window.
func (j *LogJanitor) Prune() {
	cutoff := time.Now().Add(-j.retention)

	entries, err := os.ReadDir(j.dir)
	if err != nil {
		j.logger.Warn("session log prune failed",
			slog.String("dir", j.dir),
			slog.String("error", err.Error()),
		)
		return
	}

	removed := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "session-") || !strings.HasSuffix(name, ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(j.dir, name)); err != nil {
			j.logger.Warn("removing stale session log failed",
				slog.String("file", name),
				slog.String("error", err.Error()),
			)
			continue
		}
		removed++
	}

	if removed > 0 {
		j.logger.Info("pruned session logs",
			slog.Int("removed", removed),
			slog.Duration("retention", j.retention),
		)
	}
}
