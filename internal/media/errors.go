package media

import "errors"

// Error taxonomy for the whole segment pipeline. Handlers map these to
// HTTP statuses; everything else wraps them with context.
var (
	// ErrUpstreamRejected means the platform refused the extraction
	// request (bot check, login wall). Distinct from ErrNotFound because
	// the user remedy differs: supplying a cookie bundle may help.
	ErrUpstreamRejected = errors.New("upstream rejected the request")

	// ErrNotFound means the video does not exist or is private.
	ErrNotFound = errors.New("video not found")

	// ErrUpstreamTimeout means the extraction call exceeded its deadline.
	ErrUpstreamTimeout = errors.New("upstream extraction timed out")

	// ErrUnsupportedSource means the URL is not a supported platform
	// video, or is a live stream without a known duration.
	ErrUnsupportedSource = errors.New("unsupported source")

	// ErrNoFormatsAvailable means the resolved catalog is empty, or an
	// explicitly requested format ID is not in the catalog.
	ErrNoFormatsAvailable = errors.New("no formats available")

	// ErrInvalidWindow means the requested cut window is malformed
	// (negative start, start at/after the end of the video, empty range).
	ErrInvalidWindow = errors.New("invalid cut window")

	// ErrSourceUnavailable means the direct media URL could not be read
	// by the encoder (typically an expired signed URL). Retried once by
	// re-resolving before being surfaced.
	ErrSourceUnavailable = errors.New("source media unavailable")

	// ErrEncodeStartupTimeout means the encoder produced no output
	// within the startup grace period.
	ErrEncodeStartupTimeout = errors.New("encoder startup timed out")

	// ErrEncodeProcessCrashed means the encoder exited non-zero before
	// producing any output.
	ErrEncodeProcessCrashed = errors.New("encoder process crashed")
)
