// Package config parses the CLI & Configuration surface of spec.md §6:
// a flag-driven set of recognized options plus an optional YAML overlay
// file read before flags are applied (flags always win).
//
// Grounded on the teacher's src/config.go (a YAML-persisted settings
// struct, loaded with gopkg.in/yaml.v2 via os.ReadFile+yaml.Unmarshal)
// generalized from a GUI settings dialog's on-disk format to a one-shot
// CLI overlay, and on _examples/richinsley-bunghole/main.go's package-
// level flag.String/flag.Int/flag.Bool variable style (the only other
// flag-parsing CLI in the retrieved pack).
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/shadow-cast/shadow-cast/internal/errkind"
	"github.com/shadow-cast/shadow-cast/internal/media"
)

// DefaultLogLevel is used when neither the overlay file nor --log-level
// set one explicitly.
const DefaultLogLevel = "info"

// Parameters is the fully-resolved set of spec.md §6 CLI options plus
// SPEC_FULL.md §4.9's ambient additions.
type Parameters struct {
	OutputPath      string
	FrameRate       int
	VideoEncoder    string
	AudioEncoder    string
	SampleRate      int
	BitRate         int64 // bits/second; 0 selects VBR
	Quality         int   // 1..10, used when BitRate == 0
	Resolution      media.OutputSize
	StrictFrameTime bool
	Metrics         bool
	LogLevel        string
	ConfigPath      string
}

// fileOverlay is the YAML shape an optional --config file may supply.
// Every field is optional; zero values mean "not overridden".
type fileOverlay struct {
	FrameRate       int    `yaml:"frame_rate,omitempty"`
	VideoEncoder    string `yaml:"video_encoder,omitempty"`
	AudioEncoder    string `yaml:"audio_encoder,omitempty"`
	SampleRate      int    `yaml:"sample_rate,omitempty"`
	BitRate         int64  `yaml:"bitrate,omitempty"`
	Quality         int    `yaml:"quality,omitempty"`
	Resolution      string `yaml:"resolution,omitempty"`
	StrictFrameTime bool   `yaml:"strict_frame_time,omitempty"`
	Metrics         bool   `yaml:"metrics,omitempty"`
	LogLevel        string `yaml:"log_level,omitempty"`
}

// Defaults returns spec.md §6's baseline values before any overlay or
// flag is applied.
func Defaults() Parameters {
	return Parameters{
		FrameRate:    60,
		VideoEncoder: "hevc_nvenc",
		AudioEncoder: "aac",
		SampleRate:   48000,
		Quality:      8,
		LogLevel:     DefaultLogLevel,
	}
}

// ErrHelpRequested is returned by Parse when --help was given, after the
// flag set has already printed its usage; the caller exits 0 without
// starting a session.
var ErrHelpRequested = errkind.New(errkind.ConfigError, "config.parse", fmt.Errorf("help requested"))

// ErrVersionRequested is returned by Parse when --version was given.
var ErrVersionRequested = errkind.New(errkind.ConfigError, "config.parse", fmt.Errorf("version requested"))

// Parse builds a flag.FlagSet over args (os.Args[1:] in production),
// applies an optional --config YAML overlay ahead of flags (so flags
// always override file values, per SPEC_FULL.md §4.9), and validates the
// positional output path.
func Parse(args []string) (*Parameters, error) {
	fs := flag.NewFlagSet("shadow-cast", flag.ContinueOnError)

	frameRate := fs.Int("frame-rate", 0, "video frame rate, 1..240")
	videoEncoder := fs.String("video-encoder", "", "video codec name, e.g. hevc_nvenc")
	audioEncoder := fs.String("audio-encoder", "", "audio codec name, default aac")
	sampleRate := fs.Int("sample-rate", 0, "audio sample rate")
	bitRate := fs.Int("bitrate", -1, "constant bit rate in bits/second; 0 selects VBR")
	quality := fs.Int("quality", 0, "1..10 constant-quality level, used when bitrate is 0")
	resolution := fs.String("resolution", "", "capture override resolution, WxH")
	strictFrameTime := fs.Bool("strict-frame-time", false, "do not truncate frame time to milliseconds")
	metrics := fs.Bool("metrics", false, "write a CSV metrics sidecar at <output>.metrics")
	logLevel := fs.String("log-level", "", "debug|info|warn|error")
	configPath := fs.String("config", "", "optional YAML overlay file")
	version := fs.Bool("version", false, "exit without starting a session (no version text is printed)")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, ErrHelpRequested
		}
		return nil, errkind.New(errkind.ConfigError, "config.parse", err)
	}
	if *version {
		return nil, ErrVersionRequested
	}

	params := Defaults()

	if *configPath != "" {
		params.ConfigPath = *configPath
		overlay, err := loadOverlay(*configPath)
		if err != nil {
			return nil, err
		}
		applyOverlay(&params, overlay)
	}

	if *frameRate != 0 {
		params.FrameRate = *frameRate
	}
	if *videoEncoder != "" {
		params.VideoEncoder = *videoEncoder
	}
	if *audioEncoder != "" {
		params.AudioEncoder = *audioEncoder
	}
	if *sampleRate != 0 {
		params.SampleRate = *sampleRate
	}
	if *bitRate >= 0 {
		params.BitRate = int64(*bitRate)
	}
	if *quality != 0 {
		params.Quality = *quality
	}
	if *resolution != "" {
		size, err := parseResolution(*resolution)
		if err != nil {
			return nil, err
		}
		params.Resolution = size
	}
	if *strictFrameTime {
		params.StrictFrameTime = true
	}
	if *metrics {
		params.Metrics = true
	}
	if *logLevel != "" {
		params.LogLevel = *logLevel
	}

	if fs.NArg() != 1 {
		return nil, errkind.New(errkind.ConfigError, "config.parse",
			fmt.Errorf("expected exactly one positional output path, got %d", fs.NArg()))
	}
	params.OutputPath = fs.Arg(0)

	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &params, nil
}

// Validate checks spec.md §6's recognized-option ranges.
func (p Parameters) Validate() error {
	if p.OutputPath == "" {
		return errkind.New(errkind.ConfigError, "config.validate", fmt.Errorf("output path is required"))
	}
	if p.FrameRate < 1 || p.FrameRate > 240 {
		return errkind.New(errkind.ConfigError, "config.validate", fmt.Errorf("frame rate must be in 1..240, got %d", p.FrameRate))
	}
	if p.BitRate == 0 && (p.Quality < 1 || p.Quality > 10) {
		return errkind.New(errkind.ConfigError, "config.validate", fmt.Errorf("quality must be in 1..10, got %d", p.Quality))
	}
	if p.BitRate < 0 {
		return errkind.New(errkind.ConfigError, "config.validate", fmt.Errorf("bitrate must be >= 0, got %d", p.BitRate))
	}
	if p.LogLevel != "" && !isRecognizedLogLevel(p.LogLevel) {
		return errkind.New(errkind.ConfigError, "config.validate", fmt.Errorf("unrecognized log level %q", p.LogLevel))
	}
	return nil
}

// MediaQuality builds the media.Quality selection the bitrate/quality
// flags describe (spec.md §3 "Capture Quality / Bit-rate": zero bitrate
// selects VBR).
func (p Parameters) MediaQuality() (media.Quality, error) {
	if p.BitRate > 0 {
		return media.NewCBR(p.BitRate)
	}
	return media.NewVBR(p.Quality)
}

func isRecognizedLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func parseResolution(s string) (media.OutputSize, error) {
	parts := strings.SplitN(strings.ToLower(s), "x", 2)
	if len(parts) != 2 {
		return media.OutputSize{}, errkind.New(errkind.ConfigError, "config.parse_resolution",
			fmt.Errorf("expected WxH, got %q", s))
	}
	w, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return media.OutputSize{}, errkind.New(errkind.ConfigError, "config.parse_resolution", err)
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return media.OutputSize{}, errkind.New(errkind.ConfigError, "config.parse_resolution", err)
	}
	size := media.OutputSize{Width: w, Height: h}
	if err := size.Validate(); err != nil {
		return media.OutputSize{}, errkind.New(errkind.ConfigError, "config.parse_resolution", err)
	}
	return size, nil
}

func loadOverlay(path string) (fileOverlay, error) {
	var overlay fileOverlay
	b, err := os.ReadFile(path)
	if err != nil {
		return overlay, errkind.New(errkind.IoError, "config.load_overlay", err)
	}
	if err := yaml.Unmarshal(b, &overlay); err != nil {
		return overlay, errkind.New(errkind.ConfigError, "config.load_overlay", err)
	}
	return overlay, nil
}

func applyOverlay(params *Parameters, overlay fileOverlay) {
	if overlay.FrameRate != 0 {
		params.FrameRate = overlay.FrameRate
	}
	if overlay.VideoEncoder != "" {
		params.VideoEncoder = overlay.VideoEncoder
	}
	if overlay.AudioEncoder != "" {
		params.AudioEncoder = overlay.AudioEncoder
	}
	if overlay.SampleRate != 0 {
		params.SampleRate = overlay.SampleRate
	}
	if overlay.BitRate != 0 {
		params.BitRate = overlay.BitRate
	}
	if overlay.Quality != 0 {
		params.Quality = overlay.Quality
	}
	if overlay.Resolution != "" {
		if size, err := parseResolution(overlay.Resolution); err == nil {
			params.Resolution = size
		}
	}
	if overlay.StrictFrameTime {
		params.StrictFrameTime = true
	}
	if overlay.Metrics {
		params.Metrics = true
	}
	if overlay.LogLevel != "" {
		params.LogLevel = overlay.LogLevel
	}
}
