package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/clipserve/clipserve/internal/media"
	"github.com/clipserve/clipserve/internal/pipeline"
)

// SilentHeader flags a degraded selection: the response carries no
// audio track because the source offered none at the chosen quality.
const SilentHeader = "X-Clipserve-Silent"

// SegmentHandler streams a single cut segment.
type SegmentHandler struct {
	resolver SourceResolver
	streamer SegmentStreamer
	logger   *slog.Logger
}

// NewSegmentHandler creates the segment handler.
func NewSegmentHandler(resolver SourceResolver, streamer SegmentStreamer, logger *slog.Logger) *SegmentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SegmentHandler{resolver: resolver, streamer: streamer, logger: logger}
}

// segmentRequest is the wire request for one segment, accepted as a
// JSON body (POST) or query parameters (GET, for browser-native
// downloads).
type segmentRequest struct {
	URL      string   `json:"url"`
	Start    float64  `json:"start"`
	End      *float64 `json:"end,omitempty"`
	Quality  string   `json:"quality,omitempty"`
	FormatID string   `json:"format_id,omitempty"`
	// Index with ChunkDuration selects the Nth window of the equal-chunk
	// plan that the analyze endpoint reports, instead of start/end.
	Index         *int    `json:"index,omitempty"`
	ChunkDuration float64 `json:"chunk_duration,omitempty"`
}

// RegisterChiRoutes registers the streaming routes as raw chi handlers.
// Huma's StreamResponse commits HTTP 200 before the body callback runs,
// which would make pre-stream error statuses impossible, so the
// streaming endpoints bypass it.
func (h *SegmentHandler) RegisterChiRoutes(router chi.Router) {
	router.Get("/api/v1/segment", h.handleSegment)
	router.Post("/api/v1/segment", h.handleSegment)
}

// Register adds documentation-only operations so the streaming
// endpoint still appears in the OpenAPI document.
func (h *SegmentHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "streamSegment",
		Method:      "GET",
		Path:        "/api/v1/segment",
		Summary:     "Stream a cut segment",
		Description: "Cuts the requested time window out of the video and streams it as fragmented MP4. Accepts the same fields as the POST body via query parameters.",
		Tags:        []string{"Segments"},
		Responses: map[string]*huma.Response{
			"200": {
				Description: "Fragmented MP4 stream",
				Headers: map[string]*huma.Param{
					"Content-Type":        {Description: "video/mp4"},
					"Content-Disposition": {Description: "attachment with a filename derived from the title and window"},
					SilentHeader:          {Description: "\"true\" when the output has no audio track"},
				},
			},
			"400": {Description: "Invalid time window"},
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

func (h *SegmentHandler) handleSegment(w http.ResponseWriter, r *http.Request) {
	req, err := parseSegmentRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx := r.Context()
	source, sel, plan, err := h.prepare(ctx, req)
	if err != nil {
		writeError(w, err)
		return
	}

	end := source.Duration
	if plan.Bounded() {
		end = plan.Seek + plan.Duration
	}
	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", segmentFilename(source.Title, plan.Seek, end)))
	if sel.Silent {
		w.Header().Set(SilentHeader, "true")
	}

	fw := newFlushWriter(w)
	written, err := h.streamWithRetry(ctx, req, source, sel, plan, fw)
	switch {
	case err == nil:
	case written == 0 && fw.bytes == 0:
		writeError(w, err)
	default:
		// Response already committed; the connection just ends early.
		h.logger.Warn("segment stream aborted",
			slog.Int64("bytes_written", written),
			slog.String("error", err.Error()),
		)
	}
}

// streamWithRetry runs the encode, and when the input URL has gone
// stale before any output (typically an expired signature), re-resolves
// the source once and tries again with fresh URLs.
func (h *SegmentHandler) streamWithRetry(
	ctx context.Context,
	req segmentRequest,
	source *media.Source,
	sel media.TrackSelection,
	plan media.CutPlan,
	w *flushWriter,
) (int64, error) {
	job := pipeline.NewJob(source, sel, plan)
	written, err := h.streamer.Stream(ctx, job, w)
	if err == nil || written > 0 || !errors.Is(err, media.ErrSourceUnavailable) {
		return written, err
	}

	h.logger.Info("source urls stale, re-resolving once",
		slog.String("source_id", source.ID),
	)
	source, sel, plan, rerr := h.prepare(ctx, req)
	if rerr != nil {
		return 0, rerr
	}
	job = pipeline.NewJob(source, sel, plan)
	return h.streamer.Stream(ctx, job, w)
}

// prepare resolves, selects tracks, and plans the cut for a request.
func (h *SegmentHandler) prepare(ctx context.Context, req segmentRequest) (*media.Source, media.TrackSelection, media.CutPlan, error) {
	var (
		sel  media.TrackSelection
		plan media.CutPlan
	)

	source, err := h.resolver.Resolve(ctx, req.URL)
	if err != nil {
		return nil, sel, plan, err
	}

	sel, err = selectTracks(source.Formats, req.FormatID, req.Quality)
	if err != nil {
		return nil, sel, plan, err
	}

	window := media.CutWindow{Start: req.Start, End: req.End}
	if req.Index != nil {
		window, err = chunkWindow(source.Duration, req.ChunkDuration, *req.Index)
		if err != nil {
			return nil, sel, plan, err
		}
	}
	plan, err = media.PlanCut(source.Duration, window)
	if err != nil {
		return nil, sel, plan, err
	}

	return source, sel, plan, nil
}

// chunkWindow maps a chunk index back onto the equal-window plan the
// analyze endpoint reports for the same chunk duration.
func chunkWindow(duration, chunk float64, index int) (media.CutWindow, error) {
	if chunk <= 0 {
		return media.CutWindow{}, fmt.Errorf("%w: index requires a positive chunk_duration", media.ErrInvalidWindow)
	}
	plan := planChunks(duration, chunk)
	if index < 0 || index >= len(plan) {
		return media.CutWindow{}, fmt.Errorf("%w: index %d outside plan of %d windows", media.ErrInvalidWindow, index, len(plan))
	}
	entry := plan[index]
	return media.CutWindow{Start: entry.Start, End: &entry.End}, nil
}

// parseSegmentRequest reads the request from the JSON body (POST) or
// the query string (GET).
func parseSegmentRequest(r *http.Request) (segmentRequest, error) {
	var req segmentRequest

	if r.Method == http.MethodPost {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, fmt.Errorf("%w: malformed request body", media.ErrInvalidWindow)
		}
	} else {
		q := r.URL.Query()
		req.URL = q.Get("url")
		req.Quality = q.Get("quality")
		req.FormatID = q.Get("format_id")

		if s := q.Get("start"); s != "" {
			start, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return req, fmt.Errorf("%w: invalid start %q", media.ErrInvalidWindow, s)
			}
			req.Start = start
		}
		if s := q.Get("end"); s != "" {
			end, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return req, fmt.Errorf("%w: invalid end %q", media.ErrInvalidWindow, s)
			}
			req.End = &end
		}
		if s := q.Get("index"); s != "" {
			index, err := strconv.Atoi(s)
			if err != nil {
				return req, fmt.Errorf("%w: invalid index %q", media.ErrInvalidWindow, s)
			}
			req.Index = &index
		}
		if s := q.Get("chunk_duration"); s != "" {
			chunk, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return req, fmt.Errorf("%w: invalid chunk_duration %q", media.ErrInvalidWindow, s)
			}
			req.ChunkDuration = chunk
		}
	}

	if req.URL == "" {
		return req, fmt.Errorf("%w: url is required", media.ErrInvalidWindow)
	}
	return req, nil
}

// flushWriter flushes after every chunk so the client sees fragments
// as soon as the encoder emits them.
type flushWriter struct {
	w     http.ResponseWriter
	rc    *http.ResponseController
	bytes int64
}

func newFlushWriter(w http.ResponseWriter) *flushWriter {
	return &flushWriter{w: w, rc: http.NewResponseController(w)}
}

func (f *flushWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	f.bytes += int64(n)
	if n > 0 {
		// Flush errors are not actionable mid-stream.
		_ = f.rc.Flush()
	}
	return n, err
}
