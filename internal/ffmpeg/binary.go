// Package ffmpeg wraps the external ffmpeg and ffprobe binaries as
// untrusted, failure-prone subprocesses: command construction, stdout
// streaming, stderr capture, and resource monitoring.
package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// DefaultBinary and DefaultProbeBinary are the names resolved on PATH
// when no explicit path is configured.
const (
	DefaultBinary      = "ffmpeg"
	DefaultProbeBinary = "ffprobe"
)

// ResolveBinary returns the path to use for the given configured
// value, falling back to PATH lookup of the fallback name. A missing
// binary is surfaced at startup rather than at first request.
func ResolveBinary(configured, fallback string) (string, error) {
	name := configured
	if name == "" {
		name = fallback
	}
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("locating %s: %w", name, err)
	}
	return path, nil
}

// Version runs `<binary> -version` and returns the first line, e.g.
// "ffmpeg version 6.1.1". Used for startup logging and health output.
func Version(ctx context.Context, binary string) (string, error) {
	out, err := exec.CommandContext(ctx, binary, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("running %s -version: %w", binary, err)
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line), nil
}
