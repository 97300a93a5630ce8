package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Static errors for media operations.
var (
	// ErrResizeFailed is returned when the overlay image could not be resized.
	ErrResizeFailed = errors.New("resize failed")
	// ErrCompositionFailed is returned when the compositing subprocess fails.
	ErrCompositionFailed = errors.New("composition failed")
	// ErrProbeFailed is returned when a video's frame size cannot be determined.
	ErrProbeFailed = errors.New("probe failed")
)

// Encoder defaults for the composited video stream.
const (
	DefaultVideoCodec  = "libx264"
	DefaultVideoPreset = "veryfast"
	DefaultVideoCRF    = 23
)

// ProbeFunc returns ffprobe's JSON description of a media file.
type ProbeFunc func(ctx context.Context, path string) (string, error)

// FFmpegProcessor implements Processor using the ffmpeg CLI for
// probing and compositing and an in-process resize.
type FFmpegProcessor struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	codec      string
	preset     string
	crf        int
	probe      ProbeFunc
	logger     *slog.Logger
}

// Option configures an FFmpegProcessor.
type Option func(*FFmpegProcessor)

// WithEncoder sets the video encoder used for composited output.
// Empty values keep the defaults.
func WithEncoder(codec, preset string, crf int) Option {
	return func(p *FFmpegProcessor) {
		if codec != "" {
			p.codec = codec
		}
		if preset != "" {
			p.preset = preset
		}
		if crf > 0 {
			p.crf = crf
		}
	}
}

// WithProbe replaces the ffprobe invocation.
func WithProbe(fn ProbeFunc) Option {
	return func(p *FFmpegProcessor) {
		p.probe = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *FFmpegProcessor) {
		p.logger = logger
	}
}

// NewFFmpegProcessor creates a new FFmpegProcessor.
// If ffmpegPath is empty, it defaults to "ffmpeg" (found via PATH).
func NewFFmpegProcessor(ffmpegPath string, opts ...Option) *FFmpegProcessor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	p := &FFmpegProcessor{
		ffmpegPath: ffmpegPath,
		codec:      DefaultVideoCodec,
		preset:     DefaultVideoPreset,
		crf:        DefaultVideoCRF,
		probe:      ffprobe,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

func ffprobe(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return ffmpeg.Probe(path)
}

type probeStream struct {
	CodecType string `json:"codec_type"`
	CodecName string `json:"codec_name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Duration  string `json:"duration"`
	Tags      struct {
		Rotate string `json:"rotate"`
	} `json:"tags"`
	SideDataList []struct {
		Rotation float64 `json:"rotation"`
	} `json:"side_data_list"`
}

type probeResult struct {
	Streams []probeStream `json:"streams"`
	Format  struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ProbeVideo returns the native frame size of the first video stream.
func (p *FFmpegProcessor) ProbeVideo(ctx context.Context, path string) (*VideoInfo, error) {
	raw, err := p.probe(ctx, path)
	if err != nil {
		return nil, errors.WithStack(fmt.Errorf("%w: %w", ErrProbeFailed, err))
	}
	return parseProbe(raw)
}

func parseProbe(raw string) (*VideoInfo, error) {
	var res probeResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return nil, errors.WithStack(fmt.Errorf("%w: decode ffprobe output: %w", ErrProbeFailed, err))
	}

	info := &VideoInfo{}
	var video *probeStream
	for i := range res.Streams {
		s := &res.Streams[i]
		switch s.CodecType {
		case "video":
			if video == nil {
				video = s
			}
		case "audio":
			info.HasAudio = true
		}
	}
	if video == nil {
		return nil, errors.Wrap(ErrProbeFailed, "no video stream found")
	}
	if video.Width <= 0 || video.Height <= 0 {
		return nil, errors.Wrapf(ErrProbeFailed, "video stream reports %dx%d", video.Width, video.Height)
	}

	info.Width, info.Height = video.Width, video.Height
	if quarterTurn(video) {
		info.Width, info.Height = info.Height, info.Width
	}
	info.Codec = video.CodecName

	duration := video.Duration
	if duration == "" {
		duration = res.Format.Duration
	}
	if d, err := strconv.ParseFloat(strings.TrimSpace(duration), 64); err == nil {
		info.Duration = d
	}
	return info, nil
}

// quarterTurn reports whether the stream is displayed rotated by 90 or 270 degrees.
func quarterTurn(s *probeStream) bool {
	rotation := 0.0
	if s.Tags.Rotate != "" {
		if r, err := strconv.ParseFloat(s.Tags.Rotate, 64); err == nil {
			rotation = r
		}
	}
	for _, sd := range s.SideDataList {
		if sd.Rotation != 0 {
			rotation = sd.Rotation
		}
	}
	return math.Mod(math.Abs(rotation), 180) == 90
}

// ResizeImage scales the image to cover w x h and crops the overflow
// around the center.
func (p *FFmpegProcessor) ResizeImage(ctx context.Context, src, dst string, w, h int) error {
	if w <= 0 || h <= 0 {
		return errors.Wrapf(ErrResizeFailed, "target %dx%d", w, h)
	}
	if filepath.Clean(src) == filepath.Clean(dst) {
		return errors.Wrap(ErrResizeFailed, "refusing to resize in place")
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrResizeFailed, err)
	}

	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return errors.WithStack(fmt.Errorf("%w: open image: %w", ErrResizeFailed, err))
	}

	resized := imaging.Fill(img, w, h, imaging.Center, imaging.Lanczos)

	if err := imaging.Save(resized, dst); err != nil {
		return errors.WithStack(fmt.Errorf("%w: save image: %w", ErrResizeFailed, err))
	}

	p.logger.Debug("image resized", "width", w, "height", h)
	return nil
}

// compositeArgs builds the ffmpeg argument list for one composition.
// The output path is pre-reserved, so it is overwritten.
func (p *FFmpegProcessor) compositeArgs(in CompositeInput) []string {
	video := ffmpeg.Input(in.VideoPath)
	image := ffmpeg.Input(in.ImagePath)

	overlaid := ffmpeg.Filter(
		[]*ffmpeg.Stream{video, image},
		"overlay",
		ffmpeg.Args{strconv.Itoa(in.X), strconv.Itoa(in.Y)},
	)

	streams := []*ffmpeg.Stream{overlaid}
	kwargs := ffmpeg.KwArgs{
		"c:v":      p.codec,
		"preset":   p.preset,
		"crf":      strconv.Itoa(p.crf),
		"pix_fmt":  "yuv420p",
		"movflags": "+faststart",
	}
	if in.HasAudio {
		streams = append(streams, video.Audio())
		kwargs["c:a"] = "copy"
	}

	return ffmpeg.Output(streams, in.OutputPath, kwargs).
		OverWriteOutput().
		GetArgs()
}

// StartComposite starts ffmpeg in the background. The subprocess runs
// until it exits or ctx is cancelled.
func (p *FFmpegProcessor) StartComposite(ctx context.Context, in CompositeInput) (*Pending, error) {
	if in.VideoPath == "" || in.ImagePath == "" || in.OutputPath == "" {
		return nil, errors.Wrap(ErrCompositionFailed, "video, image and output paths are required")
	}

	args := p.compositeArgs(in)

	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, errors.WithStack(fmt.Errorf("%w: %w", ErrCompositionFailed, &FFmpegError{
			Args: args,
			Err:  err,
		}))
	}

	p.logger.Debug("composition started", "pid", cmd.Process.Pid, "x", in.X, "y", in.Y)

	pending := newPending(in.OutputPath)
	go func() {
		err := cmd.Wait()
		if err == nil {
			pending.resolve(nil)
			return
		}
		if ctx.Err() != nil {
			err = fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		pending.resolve(fmt.Errorf("%w: %w", ErrCompositionFailed, &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}))
	}()

	return pending, nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
