package media

import "fmt"

// Select chooses the best track selection for the desired height.
// desiredHeight <= 0 means "best available".
//
// The policy is deterministic:
//  1. The target height is the largest available video height at or
//     below the desired height. If every format is taller than the
//     desired height, the smallest available height is used instead
//     (the output is never upsampled, and never fails for this alone).
//  2. At the target height, a format carrying both audio and video wins
//     over a split pair. Ties break by bitrate, then format ID.
//  3. Otherwise the best video-only format at the target height is
//     paired with the highest-bitrate audio-only format.
//  4. If a pair is needed but no audio-only format exists, the
//     selection degrades to silent video rather than failing; Silent is
//     set so callers can inform the client.
func Select(catalog []FormatDescriptor, desiredHeight int) (TrackSelection, error) {
	if len(catalog) == 0 {
		return TrackSelection{}, ErrNoFormatsAvailable
	}
	if desiredHeight <= 0 {
		desiredHeight = int(^uint(0) >> 1)
	}

	target := targetHeight(catalog, desiredHeight)
	if target == 0 {
		// Catalog has no video formats at all.
		return TrackSelection{}, fmt.Errorf("%w: catalog has no video formats", ErrNoFormatsAvailable)
	}

	if combined, ok := bestMatch(catalog, func(f FormatDescriptor) bool {
		return f.HasVideo && f.HasAudio && f.Height == target
	}); ok {
		return TrackSelection{Video: combined}, nil
	}

	video, ok := bestMatch(catalog, func(f FormatDescriptor) bool {
		return f.HasVideo && f.Height == target
	})
	if !ok {
		return TrackSelection{}, fmt.Errorf("%w: no format at %dp", ErrNoFormatsAvailable, target)
	}

	audio, ok := bestMatch(catalog, func(f FormatDescriptor) bool {
		return f.HasAudio && !f.HasVideo
	})
	if !ok {
		// Degraded: silent video-only output, documented policy.
		return TrackSelection{Video: video, Silent: true}, nil
	}

	return TrackSelection{Video: video, Audio: audio, Split: true}, nil
}

// SelectByID pins an explicit format from the catalog. A pinned
// video-only format is paired with the best audio-only format when one
// exists, mirroring Select's split behavior.
func SelectByID(catalog []FormatDescriptor, formatID string) (TrackSelection, error) {
	var pinned *FormatDescriptor
	for i := range catalog {
		if catalog[i].ID == formatID {
			pinned = &catalog[i]
			break
		}
	}
	if pinned == nil {
		return TrackSelection{}, fmt.Errorf("%w: format %q not in catalog", ErrNoFormatsAvailable, formatID)
	}

	if !pinned.HasVideo || pinned.HasAudio {
		return TrackSelection{Video: *pinned}, nil
	}

	audio, ok := bestMatch(catalog, func(f FormatDescriptor) bool {
		return f.HasAudio && !f.HasVideo
	})
	if !ok {
		return TrackSelection{Video: *pinned, Silent: true}, nil
	}
	return TrackSelection{Video: *pinned, Audio: audio, Split: true}, nil
}

// targetHeight finds the height the policy should aim for.
func targetHeight(catalog []FormatDescriptor, desired int) int {
	best := 0
	smallest := 0
	for _, f := range catalog {
		if !f.HasVideo || f.Height <= 0 {
			continue
		}
		if f.Height <= desired && f.Height > best {
			best = f.Height
		}
		if smallest == 0 || f.Height < smallest {
			smallest = f.Height
		}
	}
	if best == 0 {
		return smallest
	}
	return best
}

// bestMatch returns the best format among those matching the
// predicate: highest height, then highest bitrate, then lexically
// greatest format ID so that equal inputs always yield equal outputs.
func bestMatch(catalog []FormatDescriptor, match func(FormatDescriptor) bool) (FormatDescriptor, bool) {
	var best FormatDescriptor
	found := false
	for _, f := range catalog {
		if !match(f) {
			continue
		}
		if !found || better(f, best) {
			best = f
			found = true
		}
	}
	return best, found
}

func better(a, b FormatDescriptor) bool {
	if a.Height != b.Height {
		return a.Height > b.Height
	}
	if a.Bitrate != b.Bitrate {
		return a.Bitrate > b.Bitrate
	}
	return a.ID > b.ID
}
