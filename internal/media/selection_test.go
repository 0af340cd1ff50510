package media

import (
	"errors"
	"testing"
)

// Catalog from a typical platform: combined formats stop at 720p,
// 1080p only exists as separate video and audio tracks.
func splitCatalog() []FormatDescriptor {
	return []FormatDescriptor{
		{ID: "22", Container: "mp4", Width: 1280, Height: 720, Bitrate: 1200, HasVideo: true, HasAudio: true},
		{ID: "137", Container: "mp4", Width: 1920, Height: 1080, Bitrate: 4400, HasVideo: true},
		{ID: "140", Container: "m4a", Bitrate: 129, HasAudio: true},
		{ID: "18", Container: "mp4", Width: 640, Height: 360, Bitrate: 500, HasVideo: true, HasAudio: true},
	}
}

func TestSelectPrefersCombinedAtTarget(t *testing.T) {
	sel, err := Select(splitCatalog(), 720)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if sel.Split {
		t.Fatal("Select() chose split, want combined")
	}
	if sel.Video.ID != "22" {
		t.Errorf("Select() video = %q, want %q", sel.Video.ID, "22")
	}
}

func TestSelectFallsBackToSplit(t *testing.T) {
	sel, err := Select(splitCatalog(), 1080)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if !sel.Split {
		t.Fatal("Select() chose combined, want split")
	}
	if sel.Video.ID != "137" || sel.Audio.ID != "140" {
		t.Errorf("Select() = (%q, %q), want (137, 140)", sel.Video.ID, sel.Audio.ID)
	}
	if sel.Silent {
		t.Error("Select() marked silent with audio available")
	}
}

func TestSelectNeverUpsamples(t *testing.T) {
	// 4K requested, 1080 is the ceiling.
	sel, err := Select(splitCatalog(), 2160)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if sel.Video.Height != 1080 {
		t.Errorf("Select() height = %d, want 1080", sel.Video.Height)
	}
}

func TestSelectBelowSmallestAvailable(t *testing.T) {
	sel, err := Select(splitCatalog(), 144)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if sel.Video.Height != 360 {
		t.Errorf("Select() height = %d, want smallest available 360", sel.Video.Height)
	}
}

func TestSelectTieBreaks(t *testing.T) {
	catalog := []FormatDescriptor{
		{ID: "a", Height: 720, Bitrate: 900, HasVideo: true, HasAudio: true},
		{ID: "b", Height: 720, Bitrate: 1400, HasVideo: true, HasAudio: true},
		{ID: "c", Height: 720, Bitrate: 1400, HasVideo: true, HasAudio: true},
	}
	sel, err := Select(catalog, 720)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	// Highest bitrate wins; at equal bitrate the greater ID wins so the
	// result is stable across runs.
	if sel.Video.ID != "c" {
		t.Errorf("Select() video = %q, want %q", sel.Video.ID, "c")
	}
}

func TestSelectDegradesToSilent(t *testing.T) {
	catalog := []FormatDescriptor{
		{ID: "v1080", Height: 1080, Bitrate: 4000, HasVideo: true},
		{ID: "v720+a", Height: 720, Bitrate: 1200, HasVideo: true, HasAudio: true},
	}
	sel, err := Select(catalog, 1080)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if !sel.Silent {
		t.Fatal("Select() should degrade to silent when no audio-only format exists")
	}
	if sel.Split {
		t.Error("silent selection must not be split")
	}
	if sel.Video.ID != "v1080" {
		t.Errorf("Select() video = %q, want v1080", sel.Video.ID)
	}
}

func TestSelectEmptyCatalog(t *testing.T) {
	_, err := Select(nil, 720)
	if !errors.Is(err, ErrNoFormatsAvailable) {
		t.Errorf("Select(empty) error = %v, want ErrNoFormatsAvailable", err)
	}
}

func TestSelectAudioOnlyCatalog(t *testing.T) {
	catalog := []FormatDescriptor{{ID: "140", HasAudio: true}}
	_, err := Select(catalog, 720)
	if !errors.Is(err, ErrNoFormatsAvailable) {
		t.Errorf("Select(audio-only) error = %v, want ErrNoFormatsAvailable", err)
	}
}

func TestSelectByID(t *testing.T) {
	tests := []struct {
		name      string
		formatID  string
		wantSplit bool
		wantErr   bool
	}{
		{"combined", "22", false, false},
		{"video-only pairs audio", "137", true, false},
		{"audio-only stays single", "140", false, false},
		{"unknown", "999", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel, err := SelectByID(splitCatalog(), tt.formatID)
			if tt.wantErr {
				if !errors.Is(err, ErrNoFormatsAvailable) {
					t.Fatalf("SelectByID(%q) error = %v, want ErrNoFormatsAvailable", tt.formatID, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("SelectByID(%q) error = %v", tt.formatID, err)
			}
			if sel.Split != tt.wantSplit {
				t.Errorf("SelectByID(%q) split = %v, want %v", tt.formatID, sel.Split, tt.wantSplit)
			}
			if sel.Video.ID != tt.formatID {
				t.Errorf("SelectByID(%q) selected %q", tt.formatID, sel.Video.ID)
			}
		})
	}
}

func TestSelectDeterministic(t *testing.T) {
	first, err := Select(splitCatalog(), 1080)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		again, err := Select(splitCatalog(), 1080)
		if err != nil {
			t.Fatal(err)
		}
		if again.Video.ID != first.Video.ID || again.Audio.ID != first.Audio.ID {
			t.Fatalf("Select() not deterministic: run %d gave (%s, %s)", i, again.Video.ID, again.Audio.ID)
		}
	}
}
