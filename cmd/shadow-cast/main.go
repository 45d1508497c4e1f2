// Command shadow-cast is the CLI entry point of spec.md §6: it parses
// the command line, selects a capture path off spec.md's selection
// table (X11+NVIDIA -> NvFBC, Wayland+NVIDIA -> DMA-BUF, anything else
// -> ConfigError), wires the two capture/sink pairs and the muxer
// around a shared packet queue, and runs the session coordinator until
// SIGINT/SIGTERM or a fatal error.
//
// Grounded on _examples/richinsley-bunghole/main.go's flag-parse ->
// build-pipeline -> signal.Notify -> run-until-cancelled shape, the
// only other standalone CLI command in the retrieved pack.
package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/asticode/go-astiav"
	"github.com/google/uuid"

	"github.com/shadow-cast/shadow-cast/internal/audioenc"
	"github.com/shadow-cast/shadow-cast/internal/capture"
	"github.com/shadow-cast/shadow-cast/internal/config"
	"github.com/shadow-cast/shadow-cast/internal/dmabuf"
	"github.com/shadow-cast/shadow-cast/internal/drmhelper"
	"github.com/shadow-cast/shadow-cast/internal/errkind"
	"github.com/shadow-cast/shadow-cast/internal/frametime"
	"github.com/shadow-cast/shadow-cast/internal/gpu"
	"github.com/shadow-cast/shadow-cast/internal/hwstub"
	"github.com/shadow-cast/shadow-cast/internal/logging"
	"github.com/shadow-cast/shadow-cast/internal/media"
	"github.com/shadow-cast/shadow-cast/internal/metrics"
	"github.com/shadow-cast/shadow-cast/internal/muxer"
	"github.com/shadow-cast/shadow-cast/internal/nvenc"
	"github.com/shadow-cast/shadow-cast/internal/nvfbc"
	"github.com/shadow-cast/shadow-cast/internal/platform"
	"github.com/shadow-cast/shadow-cast/internal/pwaudio"
	"github.com/shadow-cast/shadow-cast/internal/queue"
	"github.com/shadow-cast/shadow-cast/internal/session"
)

// fallbackWidth/fallbackHeight are used when no --resolution override is
// given and the desktop's native size cannot be queried (spec.md §1
// excludes X11/Wayland display-server querying from scope; only GPU and
// session-type detection are in scope, per internal/platform).
const (
	fallbackWidth  = 1920
	fallbackHeight = 1080
)

// nvfbcKeyEnv names the environment variable carrying the base64-encoded
// NvFBC session key the X11 capture path requires (spec.md §6). Decoding
// it is all this command does with it: interpreting its contents is
// NvFBC library binding, out of scope per spec.md §1.
const nvfbcKeyEnv = "SHADOW_CAST_NVFBC_KEY"

// signalCancelSource adapts os/signal delivery of SIGINT/SIGTERM into
// internal/session.CancelSource, grounded on bunghole's own
// signal.Notify+goroutine shutdown pattern.
type signalCancelSource struct {
	done chan struct{}
}

func newSignalCancelSource() *signalCancelSource {
	s := &signalCancelSource{done: make(chan struct{})}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		close(s.done)
	}()
	return s
}

func (s *signalCancelSource) Done() <-chan struct{} { return s.done }

func main() {
	if err := run(os.Args[1:]); err != nil {
		if err == config.ErrHelpRequested || err == config.ErrVersionRequested {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "shadow-cast: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	params, err := config.Parse(args)
	if err != nil {
		return err
	}

	log := logging.New(os.Stderr, parseLogLevel(params.LogLevel))

	sessionID := uuid.NewString()
	log.Infof("main: starting session %s -> %s", sessionID, params.OutputPath)

	recorder, err := buildMetricsRecorder(params, sessionID)
	if err != nil {
		return err
	}
	defer recorder.Close()

	desktop := platform.DetectDesktop()
	gpuDesc, err := platform.DetectGPU()
	if err != nil {
		return errkind.New(errkind.ConfigError, "main.detect_gpu", err)
	}

	size := params.Resolution
	if size.Width == 0 || size.Height == 0 {
		size = media.OutputSize{Width: fallbackWidth, Height: fallbackHeight}
	}

	ft, err := frametime.FromFPS(params.FrameRate, params.StrictFrameTime)
	if err != nil {
		return errkind.New(errkind.ConfigError, "main.frame_time", err)
	}

	quality, err := params.MediaQuality()
	if err != nil {
		return err
	}

	container, err := muxer.New(params.OutputPath)
	if err != nil {
		return err
	}
	closeContainer := true
	defer func() {
		if closeContainer {
			container.Close()
		}
	}()

	q := queue.New(queue.DefaultCapacityBytes)
	device := gpu.Descriptor{Name: gpuDesc.Name, PCIBus: gpuDesc.PCIBusID}

	videoSink, videoSource, err := buildVideoPath(desktop, device, size, ft, params, quality, q)
	if err != nil {
		return err
	}
	if err := videoSource.Init(); err != nil {
		return err
	}
	defer videoSource.Deinit()
	if err := videoSink.BindStream(container); err != nil {
		return err
	}

	channelLayout := astiav.ChannelLayoutStereo
	audioSink, err := audioenc.New(audioenc.Config{
		CodecName:     params.AudioEncoder,
		SampleRate:    params.SampleRate,
		BitRate:       audioenc.BitRateStandard,
		ChannelLayout: channelLayout,
	}, q)
	if err != nil {
		return err
	}
	if err := audioSink.BindStream(container); err != nil {
		return err
	}

	audioSource := pwaudio.New(pwaudio.Config{
		SampleRate:    params.SampleRate,
		FrameSize:     audioSink.FrameSize(),
		ChannelLayout: channelLayout,
	})
	if err := audioSource.Init(); err != nil {
		return err
	}
	defer audioSource.Deinit()

	videoLoop := capture.NewVideoLoop[*astiav.Frame](videoSink, videoSource, log).WithMetrics(recorder)
	audioLoop := capture.NewAudioLoop[*astiav.Frame](audioSink, audioSource).WithMetrics(recorder)

	videoCapture := capture.NewVideoCapture[*astiav.Frame](videoLoop, videoSource)
	audioCapture := capture.NewAudioCapture[*astiav.Frame](audioLoop, audioSource)

	consumer := muxer.NewConsumer(q, container, streamMap(videoSink, audioSink), log)
	go consumer.Run()

	cancelSource := newSignalCancelSource()
	coordinator := session.New(container, videoCapture, audioCapture, consumer, cancelSource, log)

	closeContainer = false
	runErr := coordinator.Run()
	q.Shutdown()
	<-consumer.Done()
	if cerr := consumer.Err(); cerr != nil {
		if runErr == nil {
			runErr = cerr
		} else {
			log.Warnf("main: muxer consumer also reported an error: %v", cerr)
		}
	}
	if cerr := container.Close(); cerr != nil && runErr == nil {
		runErr = cerr
	}
	return runErr
}

func parseLogLevel(level string) logging.Level {
	switch level {
	case "debug":
		return logging.LevelDebug
	case "warn":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func buildMetricsRecorder(params *config.Parameters, sessionID string) (*metrics.Recorder, error) {
	if !params.Metrics {
		return metrics.Disabled(), nil
	}
	r, err := metrics.New(params.OutputPath+".metrics", 1024, sessionID, logging.Default())
	if err != nil {
		return nil, errkind.New(errkind.IoError, "main.metrics", err)
	}
	return r, nil
}

// buildVideoPath implements spec.md §6's capture selection table: X11 +
// NVIDIA picks NvFBC, Wayland + NVIDIA picks DMA-BUF via the DRM helper,
// anything else is a ConfigError. Both paths bind the hardware boundary
// interfaces (Grabber/Copier, Importer) to internal/hwstub, since the
// actual NvFBC/CUDA/EGL symbol binding they require is out of scope
// (spec.md §1).
func buildVideoPath(
	desktop media.DesktopKind,
	device gpu.Descriptor,
	size media.OutputSize,
	ft frametime.FrameTime,
	params *config.Parameters,
	quality media.Quality,
	q *queue.Queue,
) (*nvenc.Sink, capture.VideoSource[*astiav.Frame], error) {
	pool, err := gpu.NewPool(device, size.Width, size.Height, astiav.PixelFormatNv12)
	if err != nil {
		return nil, nil, err
	}

	sink, err := nvenc.New(nvenc.Config{
		Size:      size,
		FrameRate: params.FrameRate,
		CodecName: params.VideoEncoder,
		Quality:   quality,
	}, pool, q)
	if err != nil {
		return nil, nil, err
	}

	switch desktop {
	case media.DesktopX11:
		if _, err := requireNvfbcKey(); err != nil {
			return nil, nil, err
		}
		source := nvfbc.New(hwstub.Grabber{}, hwstub.Copier{}, ft.Duration())
		return sink, source, nil
	case media.DesktopWayland:
		client := drmhelper.New(drmhelper.DefaultSocketPath)
		source := dmabuf.New(client, hwstub.Importer{}, ft.Duration())
		return sink, source, nil
	default:
		return nil, nil, errkind.New(errkind.ConfigError, "main.build_video_path",
			fmt.Errorf("unsupported desktop kind %v", desktop))
	}
}

// requireNvfbcKey decodes SHADOW_CAST_NVFBC_KEY without interpreting its
// contents; base64 decoding of the key material is all this command
// does with it (spec.md §1 excludes NvFBC symbol binding itself).
func requireNvfbcKey() ([]byte, error) {
	raw := os.Getenv(nvfbcKeyEnv)
	if raw == "" {
		return nil, errkind.New(errkind.ConfigError, "main.nvfbc_key",
			fmt.Errorf("%s must be set for the X11/NvFBC capture path", nvfbcKeyEnv))
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, errkind.New(errkind.ConfigError, "main.nvfbc_key", err)
	}
	return key, nil
}

// streamMap builds the consumer's StreamIndex -> StreamHandle lookup
// from the two bound sinks' stream handles.
func streamMap(videoSink *nvenc.Sink, audioSink *audioenc.Sink) map[int]*muxer.StreamHandle {
	vh := videoSink.Stream()
	ah := audioSink.Stream()
	m := make(map[int]*muxer.StreamHandle, 2)
	m[vh.Index()] = vh
	m[ah.Index()] = ah
	return m
}
