package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/clipserve/clipserve/internal/archive"
	"github.com/clipserve/clipserve/internal/media"
)

// SegmentsHandler streams a zip of several cut segments.
type SegmentsHandler struct {
	resolver SourceResolver
	batch    BatchStreamer
	logger   *slog.Logger
}

// NewSegmentsHandler creates the batch handler.
func NewSegmentsHandler(resolver SourceResolver, batch BatchStreamer, logger *slog.Logger) *SegmentsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SegmentsHandler{resolver: resolver, batch: batch, logger: logger}
}

// segmentsRequest is the wire request for a batch of segments.
type segmentsRequest struct {
	URL      string `json:"url"`
	Quality  string `json:"quality,omitempty"`
	FormatID string `json:"format_id,omitempty"`
	Windows  []struct {
		Start float64  `json:"start"`
		End   *float64 `json:"end,omitempty"`
	} `json:"windows"`
}

// RegisterChiRoutes registers the batch streaming route.
func (h *SegmentsHandler) RegisterChiRoutes(router chi.Router) {
	router.Post("/api/v1/segments", h.handleSegments)
}

// Register adds a documentation-only operation for the batch endpoint.
func (h *SegmentsHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "streamSegments",
		Method:      "POST",
		Path:        "/api/v1/segments",
		Summary:     "Stream a zip of cut segments",
		Description: "Cuts every requested window out of the video and streams the results as one zip archive with part_N.mp4 entries. Windows run sequentially against a single resolved catalog.",
		Tags:        []string{"Segments"},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Zip archive stream",
				Headers: map[string]*huma.Param{
					"Content-Type":        {Description: "application/zip"},
					"Content-Disposition": {Description: "attachment with a generated archive name"},
					SilentHeader:          {Description: "\"true\" when the output has no audio track"},
				},
			},
			"400": {Description: "Invalid time window in the batch"},
			"403": {Description: "Upstream rejected the extraction"},
			"404": {Description: "Video not found"},
			"422": {Description: "Unsupported source or no usable formats"},
			"502": {Description: "Encode failed or source became unavailable"},
			"504": {Description: "Upstream or encoder startup timeout"},
		},
		SkipValidateBody: true,
	}, func(ctx context.Context, input *struct{}) (*huma.StreamResponse, error) {
		// Handled by the raw chi route; present for documentation only.
		return nil, huma.Error500InternalServerError("handled by raw chi route", nil)
	})
}

func (h *SegmentsHandler) handleSegments(w http.ResponseWriter, r *http.Request) {
	var req segmentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: malformed request body", media.ErrInvalidWindow))
		return
	}
	if req.URL == "" {
		writeError(w, fmt.Errorf("%w: url is required", media.ErrInvalidWindow))
		return
	}

	ctx := r.Context()
	batch, err := h.prepare(ctx, req)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", archive.Filename()))
	if batch.Selection.Silent {
		w.Header().Set(SilentHeader, "true")
	}

	fw := newFlushWriter(w)
	if err := h.streamWithRetry(ctx, req, batch, fw); err != nil {
		if fw.bytes == 0 {
			writeError(w, err)
			return
		}
		// Archive already under way; it arrives truncated.
		h.logger.Warn("batch stream aborted",
			slog.Int64("bytes_written", fw.bytes),
			slog.String("error", err.Error()),
		)
	}
}

// streamWithRetry runs the batch, and when the input URLs have gone
// stale before any archive bytes reached the client (typically an
// expired signature), re-resolves the source once and starts over with
// fresh URLs. The zip writer buffers its headers, so a first-window
// encoder failure still leaves the response untouched.
func (h *SegmentsHandler) streamWithRetry(
	ctx context.Context,
	req segmentsRequest,
	batch archive.Request,
	fw *flushWriter,
) error {
	err := h.batch.Stream(ctx, batch, fw)
	if err == nil || fw.bytes > 0 || !errors.Is(err, media.ErrSourceUnavailable) {
		return err
	}

	h.logger.Info("source urls stale, re-resolving once",
		slog.String("source_id", batch.Source.ID),
	)
	batch, rerr := h.prepare(ctx, req)
	if rerr != nil {
		return rerr
	}
	return h.batch.Stream(ctx, batch, fw)
}

// prepare resolves the source and builds the batch request.
func (h *SegmentsHandler) prepare(ctx context.Context, req segmentsRequest) (archive.Request, error) {
	source, err := h.resolver.Resolve(ctx, req.URL)
	if err != nil {
		return archive.Request{}, err
	}

	sel, err := selectTracks(source.Formats, req.FormatID, req.Quality)
	if err != nil {
		return archive.Request{}, err
	}

	windows := make([]media.CutWindow, len(req.Windows))
	for i, win := range req.Windows {
		windows[i] = media.CutWindow{Start: win.Start, End: win.End}
	}

	return archive.Request{Source: source, Selection: sel, Windows: windows}, nil
}
