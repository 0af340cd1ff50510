package handlers

import (
	"context"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clipserve/clipserve/internal/media"
)

func TestAnalyzeReturnsCatalog(t *testing.T) {
	handler := NewAnalyzeHandler(&stubResolver{source: combinedSource()}, nil)

	input := &AnalyzeInput{}
	input.Body.URL = "https://example.com/v"

	output, err := handler.Analyze(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "abc123", output.Body.ID)
	assert.Equal(t, "My Test Video", output.Body.Title)
	assert.Equal(t, 120.0, output.Body.Duration)
	require.Len(t, output.Body.Formats, 1)
	assert.Equal(t, "22", output.Body.Formats[0].ID)

	// Without a chunk duration the plan is one full-video window.
	require.Len(t, output.Body.Segments, 1)
	assert.Equal(t, SegmentPlanEntry{Index: 0, Start: 0, End: 120}, output.Body.Segments[0])
}

func TestAnalyzeChunkPlan(t *testing.T) {
	handler := NewAnalyzeHandler(&stubResolver{source: combinedSource()}, nil)

	input := &AnalyzeInput{}
	input.Body.URL = "https://example.com/v"
	input.Body.ChunkDuration = 50

	output, err := handler.Analyze(context.Background(), input)
	require.NoError(t, err)

	// 120s in 50s windows: two full windows plus a 20s remainder.
	require.Len(t, output.Body.Segments, 3)
	assert.Equal(t, SegmentPlanEntry{Index: 0, Start: 0, End: 50}, output.Body.Segments[0])
	assert.Equal(t, SegmentPlanEntry{Index: 1, Start: 50, End: 100}, output.Body.Segments[1])
	assert.Equal(t, SegmentPlanEntry{Index: 2, Start: 100, End: 120}, output.Body.Segments[2])
}

func TestAnalyzeResolveFailure(t *testing.T) {
	handler := NewAnalyzeHandler(&stubResolver{err: media.ErrNotFound}, nil)

	input := &AnalyzeInput{}
	input.Body.URL = "https://example.com/gone"

	_, err := handler.Analyze(context.Background(), input)
	require.Error(t, err)

	var statusErr huma.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 404, statusErr.GetStatus())
}

func TestPlanChunksExactDivision(t *testing.T) {
	plan := planChunks(100, 25)
	require.Len(t, plan, 4)
	assert.Equal(t, 100.0, plan[3].End)
}

func TestPlanChunksFractionalChunk(t *testing.T) {
	// 1.0/0.1 is not exact in float64; a running-sum plan emits an
	// eleventh sliver window here.
	plan := planChunks(1.0, 0.1)
	require.Len(t, plan, 10)
	assert.Equal(t, 1.0, plan[9].End)
	for i, entry := range plan {
		assert.Equal(t, i, entry.Index)
		assert.Less(t, entry.Start, entry.End, "window %d must have positive length", i)
	}
}

func TestPlanChunksDegenerateInputs(t *testing.T) {
	assert.Empty(t, planChunks(0, 10))
	assert.Empty(t, planChunks(100, 0))
}
