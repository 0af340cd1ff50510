package ffmpeg

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ProcessStats contains resource usage for one encoder process.
type ProcessStats struct {
	PID int `json:"pid"`

	// CPUPercent is current usage as a percentage of one core.
	CPUPercent float64       `json:"cpu_percent"`
	CPUTotal   time.Duration `json:"cpu_total"`

	// MemoryRSSBytes is the resident set size.
	MemoryRSSBytes uint64 `json:"memory_rss_bytes"`

	// BytesWritten counts encoded output bytes delivered downstream.
	BytesWritten  uint64  `json:"bytes_written"`
	WriteRateKbps float64 `json:"write_rate_kbps"`

	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
	LastUpdated time.Time     `json:"last_updated"`
}

// ProcessMonitor samples CPU and memory for an encoder PID from /proc
// and aggregates byte counts fed in by CountingWriter. On non-Linux
// platforms only the byte counters are live.
type ProcessMonitor struct {
	pid       int
	startedAt time.Time
	interval  time.Duration

	mu    sync.RWMutex
	stats ProcessStats

	lastCPUTime   time.Duration
	lastCheckTime time.Time

	lastBytesWritten uint64
	lastBytesCheck   time.Time

	bytesWritten atomic.Uint64

	clockTicksHz int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProcessMonitor creates a monitor for the given PID.
func NewProcessMonitor(pid int) *ProcessMonitor {
	ctx, cancel := context.WithCancel(context.Background())
	return &ProcessMonitor{
		pid:          pid,
		startedAt:    time.Now(),
		interval:     time.Second,
		clockTicksHz: 100, // USER_HZ; sysconf(_SC_CLK_TCK) needs cgo
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start begins sampling.
func (pm *ProcessMonitor) Start() {
	pm.mu.Lock()
	pm.lastCheckTime = time.Now()
	pm.lastBytesCheck = time.Now()
	pm.mu.Unlock()

	pm.wg.Add(1)
	go pm.loop()
}

// Stop stops sampling and waits for the sampler to exit.
func (pm *ProcessMonitor) Stop() {
	pm.cancel()
	pm.wg.Wait()
}

// Stats returns a snapshot of the current statistics.
func (pm *ProcessMonitor) Stats() ProcessStats {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	stats := pm.stats
	stats.BytesWritten = pm.bytesWritten.Load()
	return stats
}

// AddBytesWritten adds to the output byte counter.
func (pm *ProcessMonitor) AddBytesWritten(n uint64) {
	pm.bytesWritten.Add(n)
}

func (pm *ProcessMonitor) loop() {
	defer pm.wg.Done()

	ticker := time.NewTicker(pm.interval)
	defer ticker.Stop()

	pm.sample()
	for {
		select {
		case <-pm.ctx.Done():
			return
		case <-ticker.C:
			pm.sample()
		}
	}
}

func (pm *ProcessMonitor) sample() {
	now := time.Now()

	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.stats.PID = pm.pid
	pm.stats.StartedAt = pm.startedAt
	pm.stats.Duration = now.Sub(pm.startedAt)
	pm.stats.LastUpdated = now

	if runtime.GOOS == "linux" {
		pm.sampleProc(now)
	}

	current := pm.bytesWritten.Load()
	if elapsed := now.Sub(pm.lastBytesCheck); elapsed > 0 {
		delta := current - pm.lastBytesWritten
		pm.stats.WriteRateKbps = float64(delta) / elapsed.Seconds() * 8 / 1000
	}
	pm.stats.BytesWritten = current
	pm.lastBytesWritten = current
	pm.lastBytesCheck = now
}

// sampleProc reads /proc/[pid]/stat and /proc/[pid]/statm. A read
// failure means the process exited; the last sample is kept.
func (pm *ProcessMonitor) sampleProc(now time.Time) {
	statData, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pm.pid))
	if err != nil {
		return
	}

	// Fields after the parenthesized command name; utime/stime are at
	// offsets 11 and 12 in clock ticks.
	statStr := string(statData)
	commEnd := strings.LastIndex(statStr, ")")
	if commEnd == -1 {
		return
	}
	fields := strings.Fields(statStr[commEnd+2:])
	if len(fields) < 13 {
		return
	}

	utime, _ := strconv.ParseInt(fields[11], 10, 64)
	stime, _ := strconv.ParseInt(fields[12], 10, 64)

	tick := time.Second / time.Duration(pm.clockTicksHz)
	cpuTotal := time.Duration(utime+stime) * tick
	pm.stats.CPUTotal = cpuTotal

	if elapsed := now.Sub(pm.lastCheckTime); elapsed > 0 && pm.lastCPUTime > 0 {
		pm.stats.CPUPercent = float64(cpuTotal-pm.lastCPUTime) / float64(elapsed) * 100.0
	}
	pm.lastCPUTime = cpuTotal
	pm.lastCheckTime = now

	statmData, err := os.ReadFile(fmt.Sprintf("/proc/%d/statm", pm.pid))
	if err != nil {
		return
	}
	statmFields := strings.Fields(string(statmData))
	if len(statmFields) >= 2 {
		rss, _ := strconv.ParseUint(statmFields[1], 10, 64)
		pm.stats.MemoryRSSBytes = rss * uint64(os.Getpagesize())
	}
}

// CountingWriter wraps an io.Writer and reports bytes to a monitor.
type CountingWriter struct {
	w       io.Writer
	monitor *ProcessMonitor
}

// NewCountingWriter creates a writer that counts bytes written.
func NewCountingWriter(w io.Writer, monitor *ProcessMonitor) *CountingWriter {
	return &CountingWriter{w: w, monitor: monitor}
}

// Write implements io.Writer.
func (cw *CountingWriter) Write(p []byte) (n int, err error) {
	n, err = cw.w.Write(p)
	if n > 0 && cw.monitor != nil {
		cw.monitor.AddBytesWritten(uint64(n))
	}
	return n, err
}
