package media

import "fmt"

// PlanCut validates the window against the source duration and
// computes the trim parameters for the encode step.
//
// Validation is intentionally strict on the start and lenient on the
// end: a start outside the video is a caller mistake and is rejected
// before any subprocess is spawned, but an end past the video just
// means "to the end" and is clamped. start == end is an empty segment
// and is rejected.
func PlanCut(duration float64, window CutWindow) (CutPlan, error) {
	if window.Start < 0 {
		return CutPlan{}, fmt.Errorf("%w: start %.3fs is negative", ErrInvalidWindow, window.Start)
	}
	if duration > 0 && window.Start >= duration {
		return CutPlan{}, fmt.Errorf("%w: start %.3fs is at or past the end of a %.3fs video", ErrInvalidWindow, window.Start, duration)
	}

	if window.End == nil {
		return CutPlan{Seek: window.Start}, nil
	}

	end := *window.End
	if end <= window.Start {
		return CutPlan{}, fmt.Errorf("%w: end %.3fs is not after start %.3fs", ErrInvalidWindow, end, window.Start)
	}
	if duration > 0 && end > duration {
		end = duration
	}

	return CutPlan{Seek: window.Start, Duration: end - window.Start}, nil
}
