package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseAppliesDefaultsAndPositionalPath(t *testing.T) {
	p, err := Parse([]string{"out.mp4"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.OutputPath != "out.mp4" {
		t.Fatalf("unexpected output path %q", p.OutputPath)
	}
	if p.FrameRate != 60 {
		t.Fatalf("expected default frame rate 60, got %d", p.FrameRate)
	}
	if p.AudioEncoder != "aac" {
		t.Fatalf("expected default audio encoder aac, got %q", p.AudioEncoder)
	}
}

func TestParseFlagsOverrideDefaults(t *testing.T) {
	p, err := Parse([]string{"--frame-rate", "30", "--video-encoder", "h264_nvenc", "--bitrate", "4000000", "out.mp4"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.FrameRate != 30 {
		t.Fatalf("expected frame rate 30, got %d", p.FrameRate)
	}
	if p.VideoEncoder != "h264_nvenc" {
		t.Fatalf("unexpected video encoder %q", p.VideoEncoder)
	}
	if p.BitRate != 4_000_000 {
		t.Fatalf("unexpected bitrate %d", p.BitRate)
	}
}

func TestParseRejectsMissingOutputPath(t *testing.T) {
	if _, err := Parse([]string{"--frame-rate", "30"}); err == nil {
		t.Fatal("expected an error with no positional output path")
	}
}

func TestParseRejectsOutOfRangeFrameRate(t *testing.T) {
	if _, err := Parse([]string{"--frame-rate", "999", "out.mp4"}); err == nil {
		t.Fatal("expected an error for an out-of-range frame rate")
	}
}

func TestParseRejectsBadResolution(t *testing.T) {
	if _, err := Parse([]string{"--resolution", "garbage", "out.mp4"}); err == nil {
		t.Fatal("expected an error for a malformed resolution")
	}
}

func TestParseResolutionParsesWidthAndHeight(t *testing.T) {
	p, err := Parse([]string{"--resolution", "1920x1080", "out.mp4"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Resolution.Width != 1920 || p.Resolution.Height != 1080 {
		t.Fatalf("unexpected resolution %+v", p.Resolution)
	}
}

func TestParseZeroBitrateSelectsVBRWithDefaultQuality(t *testing.T) {
	p, err := Parse([]string{"--bitrate", "0", "out.mp4"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	q, err := p.MediaQuality()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Level != p.Quality {
		t.Fatalf("expected VBR quality level %d, got %d", p.Quality, q.Level)
	}
}

func TestParseConfigOverlayAppliesBeforeFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "frame_rate: 24\nvideo_encoder: h264_nvenc\nquality: 5\n"
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("write overlay: %v", err)
	}

	p, err := Parse([]string{"--config", path, "--frame-rate", "50", "out.mp4"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.FrameRate != 50 {
		t.Fatalf("expected the flag (50) to override the overlay (24), got %d", p.FrameRate)
	}
	if p.VideoEncoder != "h264_nvenc" {
		t.Fatalf("expected the overlay's video encoder to apply, got %q", p.VideoEncoder)
	}
	if p.Quality != 5 {
		t.Fatalf("expected the overlay's quality to apply, got %d", p.Quality)
	}
}

func TestParseHelpReturnsErrHelpRequested(t *testing.T) {
	_, err := Parse([]string{"--help"})
	if err != ErrHelpRequested {
		t.Fatalf("expected ErrHelpRequested, got %v", err)
	}
}

func TestParseVersionReturnsErrVersionRequested(t *testing.T) {
	_, err := Parse([]string{"--version", "out.mp4"})
	if err != ErrVersionRequested {
		t.Fatalf("expected ErrVersionRequested, got %v", err)
	}
}
