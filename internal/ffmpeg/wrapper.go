package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// EncodeSpec is the fixed output encoding: one codec/container pair
// regardless of source, so clients always receive a predictable,
// playable file.
type EncodeSpec struct {
	VideoCodec string // e.g. "libx264"
	AudioCodec string // e.g. "aac"
	Preset     string // e.g. "superfast"
	CRF        int    // constant rate factor, 0 = encoder default
}

// DefaultEncodeSpec matches the service-wide default: h264+aac in
// fragmented MP4, tuned for real-time streaming.
func DefaultEncodeSpec() EncodeSpec {
	return EncodeSpec{
		VideoCodec: "libx264",
		AudioCodec: "aac",
		Preset:     "superfast",
		CRF:        23,
	}
}

// Input is one ffmpeg input with its own trim parameters. Seek and
// Duration are emitted before -i so ffmpeg seeks on the demuxer side,
// which is the only viable option for remote URLs.
type Input struct {
	URL      string
	Seek     float64
	Duration float64 // 0 = until the input ends
}

// CommandBuilder builds ffmpeg invocations with a fluent API.
type CommandBuilder struct {
	binary        string
	logLevel      string
	globalArgs    []string
	inputs        []Input
	userAgent     string
	outputArgs    []string
	output        string
	stderrLogPath string
}

// NewCommandBuilder creates a builder for the given ffmpeg binary.
func NewCommandBuilder(binary string) *CommandBuilder {
	return &CommandBuilder{
		binary:   binary,
		logLevel: "error",
		output:   "pipe:1",
	}
}

// LogLevel sets the ffmpeg log level.
func (b *CommandBuilder) LogLevel(level string) *CommandBuilder {
	b.logLevel = level
	return b
}

// HideBanner hides the ffmpeg banner.
func (b *CommandBuilder) HideBanner() *CommandBuilder {
	b.globalArgs = append(b.globalArgs, "-hide_banner")
	return b
}

// UserAgent sets the HTTP user agent for network inputs.
func (b *CommandBuilder) UserAgent(ua string) *CommandBuilder {
	b.userAgent = ua
	return b
}

// AddInput appends an input with its trim parameters.
func (b *CommandBuilder) AddInput(in Input) *CommandBuilder {
	b.inputs = append(b.inputs, in)
	return b
}

// MapSplit maps video from the first input and audio from the second,
// stopping at the shorter of the two. Used when separate video-only
// and audio-only tracks are merged into one output container.
func (b *CommandBuilder) MapSplit() *CommandBuilder {
	b.outputArgs = append(b.outputArgs,
		"-map", "0:v:0",
		"-map", "1:a:0",
		"-shortest",
	)
	return b
}

// Encode applies the output encoding spec.
func (b *CommandBuilder) Encode(spec EncodeSpec) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, "-c:v", spec.VideoCodec)
	if spec.Preset != "" {
		b.outputArgs = append(b.outputArgs, "-preset", spec.Preset)
	}
	if spec.CRF > 0 {
		b.outputArgs = append(b.outputArgs, "-crf", strconv.Itoa(spec.CRF))
	}
	b.outputArgs = append(b.outputArgs, "-c:a", spec.AudioCodec)
	return b
}

// FragmentedMP4 adds the fragmented MP4 output arguments. A normal MP4
// writes its moov index at the end of the file, which is impossible on
// a non-seekable pipe; frag_keyframe+empty_moov makes the output
// playable as it streams.
func (b *CommandBuilder) FragmentedMP4() *CommandBuilder {
	b.outputArgs = append(b.outputArgs,
		"-f", "mp4",
		"-movflags", "frag_keyframe+empty_moov",
	)
	return b
}

// OutputArgs adds arbitrary output arguments.
func (b *CommandBuilder) OutputArgs(args ...string) *CommandBuilder {
	b.outputArgs = append(b.outputArgs, args...)
	return b
}

// Output sets the output destination (default "pipe:1").
func (b *CommandBuilder) Output(output string) *CommandBuilder {
	b.output = output
	return b
}

// StderrLogPath sets a file to append ffmpeg stderr to for debugging.
func (b *CommandBuilder) StderrLogPath(path string) *CommandBuilder {
	b.stderrLogPath = path
	return b
}

// Build assembles the final argument list.
func (b *CommandBuilder) Build() *Command {
	args := []string{"-loglevel", b.logLevel}
	args = append(args, b.globalArgs...)

	for _, in := range b.inputs {
		if b.userAgent != "" && isNetworkURL(in.URL) {
			args = append(args, "-user_agent", b.userAgent)
		}
		if in.Seek > 0 {
			args = append(args, "-ss", formatSeconds(in.Seek))
		}
		if in.Duration > 0 {
			args = append(args, "-t", formatSeconds(in.Duration))
		}
		args = append(args, "-i", in.URL)
	}

	args = append(args, b.outputArgs...)
	args = append(args, b.output)

	return &Command{
		Binary:        b.binary,
		Args:          args,
		stderrLogPath: b.stderrLogPath,
		stderrLines:   make([]string, 0, maxStderrLines),
	}
}

// formatSeconds renders a seek/duration value with millisecond
// precision, which is finer than any encoder frame interval.
func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func isNetworkURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

const maxStderrLines = 100

// Command is a built ffmpeg invocation.
type Command struct {
	Binary string
	Args   []string

	mu      sync.RWMutex
	cmd     *exec.Cmd
	started time.Time
	monitor *ProcessMonitor

	stderrLogPath string
	stderrMu      sync.RWMutex
	stderrLines   []string
}

// String returns the full command line.
func (c *Command) String() string {
	return c.Binary + " " + strings.Join(c.Args, " ")
}

// StreamToWriter starts ffmpeg, copies its stdout to w, and waits for
// the process to exit. The copy uses the provided buffer size so the
// working set stays bounded regardless of input length. Cancelling ctx
// kills the process.
//
// The returned byte count is what reached w; the error is the process
// exit error (if any), with copy errors taking precedence only when the
// process itself exited cleanly.
func (c *Command) StreamToWriter(ctx context.Context, w io.Writer, bufSize int) (int64, error) {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}

	c.mu.Lock()
	c.cmd = exec.CommandContext(ctx, c.Binary, c.Args...)
	c.started = time.Now()

	stdout, err := c.cmd.StdoutPipe()
	if err != nil {
		c.mu.Unlock()
		return 0, fmt.Errorf("getting stdout pipe: %w", err)
	}
	stderr, err := c.cmd.StderrPipe()
	if err != nil {
		c.mu.Unlock()
		return 0, fmt.Errorf("getting stderr pipe: %w", err)
	}
	c.mu.Unlock()

	if err := c.cmd.Start(); err != nil {
		return 0, fmt.Errorf("starting ffmpeg: %w", err)
	}

	c.mu.Lock()
	c.monitor = NewProcessMonitor(c.cmd.Process.Pid)
	c.monitor.Start()
	logPath := c.stderrLogPath
	c.mu.Unlock()

	stderrDone := make(chan struct{})
	go c.captureStderr(stderr, logPath, stderrDone)

	counting := NewCountingWriter(w, c.monitor)
	written, copyErr := io.CopyBuffer(counting, stdout, make([]byte, bufSize))

	waitErr := c.cmd.Wait()
	<-stderrDone
	c.stopMonitor()

	if waitErr != nil {
		return written, waitErr
	}
	if copyErr != nil {
		return written, fmt.Errorf("copying output: %w", copyErr)
	}
	return written, nil
}

// Kill terminates the process if it is running.
func (c *Command) Kill() error {
	c.mu.RLock()
	cmd := c.cmd
	c.mu.RUnlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	return cmd.Process.Kill()
}

// Duration returns how long the command has been running.
func (c *Command) Duration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.started.IsZero() {
		return 0
	}
	return time.Since(c.started)
}

// ProcessStats returns the current process statistics, or nil if
// monitoring is not active.
func (c *Command) ProcessStats() *ProcessStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.monitor == nil {
		return nil
	}
	stats := c.monitor.Stats()
	return &stats
}

// StderrLines returns the recent stderr lines captured from ffmpeg.
func (c *Command) StderrLines() []string {
	c.stderrMu.RLock()
	defer c.stderrMu.RUnlock()

	lines := make([]string, len(c.stderrLines))
	copy(lines, c.stderrLines)
	return lines
}

func (c *Command) stopMonitor() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.monitor != nil {
		c.monitor.Stop()
	}
}

// captureStderr reads ffmpeg stderr into a ring buffer of recent lines
// and optionally appends the session to a log file.
func (c *Command) captureStderr(stderr io.ReadCloser, logPath string, done chan struct{}) {
	defer close(done)

	var logFile *os.File
	if logPath != "" {
		var err error
		logFile, err = os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open ffmpeg log file %s: %v\n", logPath, err)
		} else {
			defer logFile.Close()
			fmt.Fprintf(logFile, "\n=== ffmpeg session started at %s ===\n", time.Now().Format(time.RFC3339))
			fmt.Fprintf(logFile, "Command: %s\n\n", c.String())
		}
	}

	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := scanner.Text()

		c.stderrMu.Lock()
		if len(c.stderrLines) >= maxStderrLines {
			c.stderrLines = c.stderrLines[1:]
		}
		c.stderrLines = append(c.stderrLines, line)
		c.stderrMu.Unlock()

		if logFile != nil {
			fmt.Fprintln(logFile, line)
		}
	}

	if logFile != nil {
		fmt.Fprintf(logFile, "\n=== ffmpeg session ended at %s ===\n", time.Now().Format(time.RFC3339))
	}
}
