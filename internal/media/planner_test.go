package media

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanCut(t *testing.T) {
	end := func(v float64) *float64 { return &v }

	tests := []struct {
		name     string
		duration float64
		window   CutWindow
		want     CutPlan
		wantErr  bool
	}{
		{"simple window", 120, CutWindow{Start: 10, End: end(25)}, CutPlan{Seek: 10, Duration: 15}, false},
		{"to end of video", 120, CutWindow{Start: 30}, CutPlan{Seek: 30}, false},
		{"from zero", 120, CutWindow{Start: 0, End: end(60)}, CutPlan{Seek: 0, Duration: 60}, false},
		{"end clamped to duration", 120, CutWindow{Start: 100, End: end(500)}, CutPlan{Seek: 100, Duration: 20}, false},
		{"negative start", 120, CutWindow{Start: -1, End: end(10)}, CutPlan{}, true},
		{"start equals end", 120, CutWindow{Start: 10, End: end(10)}, CutPlan{}, true},
		{"end before start", 120, CutWindow{Start: 20, End: end(10)}, CutPlan{}, true},
		{"start at duration", 120, CutWindow{Start: 120, End: end(130)}, CutPlan{}, true},
		{"start past duration", 120, CutWindow{Start: 121}, CutPlan{}, true},
		{"unknown duration accepts any start", 0, CutWindow{Start: 500, End: end(510)}, CutPlan{Seek: 500, Duration: 10}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PlanCut(tt.duration, tt.window)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidWindow), "error %v should wrap ErrInvalidWindow", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlanCutFractionalSeconds(t *testing.T) {
	end := 25.5
	plan, err := PlanCut(120.04, CutWindow{Start: 10.25, End: &end})
	require.NoError(t, err)
	assert.InDelta(t, 10.25, plan.Seek, 1e-9)
	assert.InDelta(t, 15.25, plan.Duration, 1e-9)
}
