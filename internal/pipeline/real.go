package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"strconv"
	"strings"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

const (
	probeTimeout   = 15 * time.Second
	extractTimeout = 10 * time.Second
	renderTimeout  = 30 * time.Minute

	// stderrTailBytes bounds the diagnostic tail surfaced on render failure.
	stderrTailBytes = 2048
)

// RenderError carries the encoder's trailing log lines so export failures can
// be surfaced to the user with a diagnostic tail.
type RenderError struct {
	Err        error
	StderrTail string
}

func (e *RenderError) Error() string {
	if e.StderrTail == "" {
		return fmt.Sprintf("render failed: %v", e.Err)
	}
	return fmt.Sprintf("render failed: %v: %s", e.Err, e.StderrTail)
}

func (e *RenderError) Unwrap() error { return e.Err }

// RealFFmpeg shells out to ffmpeg/ffprobe through ffmpeg-go.
type RealFFmpeg struct {
	logger *slog.Logger
}

func NewRealFFmpeg(logger *slog.Logger) *RealFFmpeg {
	return &RealFFmpeg{logger: logger}
}

type probeFormat struct {
	Duration string `json:"duration"`
}

type probeStream struct {
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	RFrameRate string `json:"r_frame_rate"`
}

type probeOutput struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

func (f *RealFFmpeg) Probe(ctx context.Context, filePath string) (*ProbeResult, error) {
	raw, err := ffmpeg.Probe(filePath)
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", filePath, err)
	}

	var out probeOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	result := &ProbeResult{}
	result.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)

	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if result.Width == 0 {
				result.Width = s.Width
				result.Height = s.Height
				result.Codec = s.CodecName
				result.FrameRate = parseFrameRate(s.RFrameRate)
			}
		case "audio":
			result.HasAudio = true
		}
	}

	if result.Duration <= 0 {
		return nil, fmt.Errorf("no usable duration in %s", filePath)
	}
	return result, nil
}

// parseFrameRate turns ffprobe's "30000/1001" fraction into a float.
func parseFrameRate(raw string) float64 {
	parts := strings.SplitN(raw, "/", 2)
	if len(parts) != 2 {
		v, _ := strconv.ParseFloat(raw, 64)
		return v
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}

func (f *RealFFmpeg) ExtractFrame(ctx context.Context, filePath string, timeOffset float64) (image.Image, error) {
	var stdout, stderr bytes.Buffer

	err := ffmpeg.Input(filePath, ffmpeg.KwArgs{"ss": fmt.Sprintf("%.3f", timeOffset)}).
		Output("pipe:", ffmpeg.KwArgs{"vframes": 1, "format": "image2", "vcodec": "mjpeg"}).
		WithOutput(&stdout).
		WithErrorOutput(&stderr).
		WithTimeout(extractTimeout).
		Run()
	if err != nil {
		return nil, fmt.Errorf("frame extraction at %.3fs failed: %w: %s",
			timeOffset, err, tail(stderr.String(), stderrTailBytes))
	}

	img, err := jpeg.Decode(&stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to decode extracted frame: %w", err)
	}
	return img, nil
}

func (f *RealFFmpeg) Render(ctx context.Context, segments []Segment, outputPath string, opts RenderOptions) error {
	if len(segments) == 0 {
		return fmt.Errorf("no segments to render")
	}

	streams := make([]*ffmpeg.Stream, 0, len(segments)*2)
	for _, seg := range segments {
		in := ffmpeg.Input(seg.SourcePath, ffmpeg.KwArgs{
			"ss": fmt.Sprintf("%.3f", seg.In),
			"to": fmt.Sprintf("%.3f", seg.Out),
		})
		streams = append(streams, in.Video(), in.Audio())
	}

	outArgs := ffmpeg.KwArgs{}
	if opts.VideoCodec != "" {
		outArgs["c:v"] = opts.VideoCodec
	}
	if opts.FrameRate > 0 {
		outArgs["r"] = fmt.Sprintf("%.3f", opts.FrameRate)
	}
	if opts.Width > 0 && opts.Height > 0 {
		outArgs["s"] = fmt.Sprintf("%dx%d", opts.Width, opts.Height)
	}

	var stderr bytes.Buffer
	start := time.Now()

	err := ffmpeg.Concat(streams, ffmpeg.KwArgs{"v": 1, "a": 1}).
		Output(outputPath, outArgs).
		OverWriteOutput().
		WithErrorOutput(&stderr).
		WithTimeout(renderTimeout).
		Run()
	if err != nil {
		return &RenderError{Err: err, StderrTail: tail(stderr.String(), stderrTailBytes)}
	}

	f.logger.Info("render completed",
		"output", outputPath,
		"segments", len(segments),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
