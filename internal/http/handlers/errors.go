// Package handlers implements the clipserve HTTP API.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clipserve/clipserve/internal/media"
)

// errorBody is the JSON error envelope for the raw chi endpoints. The
// huma endpoints produce their own problem-details format.
type errorBody struct {
	Error  string `json:"error"`
	Code   string `json:"code"`
	Status int    `json:"status"`
}

// statusFor maps a taxonomy error onto an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, media.ErrInvalidWindow):
		return http.StatusBadRequest
	case errors.Is(err, media.ErrUpstreamRejected):
		return http.StatusForbidden
	case errors.Is(err, media.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, media.ErrUnsupportedSource),
		errors.Is(err, media.ErrNoFormatsAvailable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, media.ErrSourceUnavailable),
		errors.Is(err, media.ErrEncodeProcessCrashed):
		return http.StatusBadGateway
	case errors.Is(err, media.ErrUpstreamTimeout),
		errors.Is(err, media.ErrEncodeStartupTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// codeFor maps a taxonomy error onto a stable machine-readable code.
func codeFor(err error) string {
	switch {
	case errors.Is(err, media.ErrInvalidWindow):
		return "invalid_window"
	case errors.Is(err, media.ErrUpstreamRejected):
		return "upstream_rejected"
	case errors.Is(err, media.ErrNotFound):
		return "not_found"
	case errors.Is(err, media.ErrUnsupportedSource):
		return "unsupported_source"
	case errors.Is(err, media.ErrNoFormatsAvailable):
		return "no_formats_available"
	case errors.Is(err, media.ErrSourceUnavailable):
		return "source_unavailable"
	case errors.Is(err, media.ErrEncodeProcessCrashed):
		return "encode_failed"
	case errors.Is(err, media.ErrUpstreamTimeout):
		return "upstream_timeout"
	case errors.Is(err, media.ErrEncodeStartupTimeout):
		return "encode_startup_timeout"
	default:
		return "internal_error"
	}
}

// writeError sends the JSON error envelope on a raw chi endpoint.
// Callers must not have written any response body yet.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	// The streaming handlers set download framing before the first byte.
	// Drop it so a failed request is delivered as a plain JSON error,
	// not an attachment.
	w.Header().Del("Content-Disposition")
	w.Header().Del(SilentHeader)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error:  err.Error(),
		Code:   codeFor(err),
		Status: status,
	})
}

// humaError converts a taxonomy error into huma's error model for the
// structured (non-streaming) endpoints.
func humaError(err error) error {
	return huma.NewError(statusFor(err), err.Error())
}
