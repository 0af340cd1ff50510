package handlers

import (
	"context"
	"log/slog"
	"math"

	"github.com/danielgtaylor/huma/v2"

	"github.com/clipserve/clipserve/internal/media"
)

// AnalyzeHandler exposes source inspection.
type AnalyzeHandler struct {
	resolver SourceResolver
	logger   *slog.Logger
}

// NewAnalyzeHandler creates the analyze handler.
func NewAnalyzeHandler(resolver SourceResolver, logger *slog.Logger) *AnalyzeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyzeHandler{resolver: resolver, logger: logger}
}

// AnalyzeInput is the request for source analysis.
type AnalyzeInput struct {
	Body struct {
		// URL is the platform video URL to inspect.
		URL string `json:"url" minLength:"1" doc:"Video page URL"`
		// ChunkDuration, when positive, asks for a precomputed plan of
		// equal windows covering the whole video.
		ChunkDuration float64 `json:"chunk_duration,omitempty" minimum:"0" doc:"Window length in seconds for the segment plan"`
	}
}

// SegmentPlanEntry is one window of a precomputed chunk plan.
type SegmentPlanEntry struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// AnalyzeOutput is the response for source analysis.
type AnalyzeOutput struct {
	Body struct {
		ID       string                   `json:"id"`
		Title    string                   `json:"title"`
		Duration float64                  `json:"duration"`
		Formats  []media.FormatDescriptor `json:"formats"`
		Segments []SegmentPlanEntry       `json:"segments,omitempty"`
	}
}

// Register registers the analyze operation.
func (h *AnalyzeHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "analyzeSource",
		Method:      "POST",
		Path:        "/api/v1/analyze",
		Summary:     "Analyze a video URL",
		Description: "Resolves a platform video URL and returns its title, duration, and available formats. With chunk_duration set, also returns a plan of equal time windows covering the video.",
		Tags:        []string{"Segments"},
	}, h.Analyze)
}

// Analyze resolves the URL and reports the catalog.
func (h *AnalyzeHandler) Analyze(ctx context.Context, input *AnalyzeInput) (*AnalyzeOutput, error) {
	source, err := h.resolver.Resolve(ctx, input.Body.URL)
	if err != nil {
		h.logger.Warn("analyze failed",
			slog.String("url", input.Body.URL),
			slog.String("error", err.Error()),
		)
		return nil, humaError(err)
	}

	out := &AnalyzeOutput{}
	out.Body.ID = source.ID
	out.Body.Title = source.Title
	out.Body.Duration = source.Duration
	out.Body.Formats = source.Formats

	if input.Body.ChunkDuration > 0 {
		out.Body.Segments = planChunks(source.Duration, input.Body.ChunkDuration)
	} else {
		out.Body.Segments = []SegmentPlanEntry{{Index: 0, Start: 0, End: source.Duration}}
	}

	return out, nil
}

// planChunks splits [0, duration) into consecutive windows of the
// given length; the final window is shorter when the division is not
// exact. Window bounds come from the index, not a running sum, so
// float error cannot produce a sliver window past the real end.
func planChunks(duration, chunk float64) []SegmentPlanEntry {
	if duration <= 0 || chunk <= 0 {
		return nil
	}
	count := int(math.Ceil(duration / chunk))
	plan := make([]SegmentPlanEntry, 0, count)
	for i := 0; i < count; i++ {
		start := float64(i) * chunk
		if start >= duration {
			break
		}
		end := start + chunk
		if end > duration {
			end = duration
		}
		plan = append(plan, SegmentPlanEntry{Index: i, Start: start, End: end})
	}
	return plan
}
