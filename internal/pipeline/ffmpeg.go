// Package pipeline wraps the external ffmpeg/ffprobe tooling behind a small
// interface: metadata probing, single-frame extraction for thumbnails, and
// rendering a trimmed-clip list into one output file.
package pipeline

import (
	"context"
	"image"
	"log/slog"
)

// FFmpeg is the boundary to the external encoder. The engine only ever sees
// this contract; the encoder's internals are out of scope.
type FFmpeg interface {
	// Probe reads container metadata for a media file.
	Probe(ctx context.Context, filePath string) (*ProbeResult, error)
	// ExtractFrame decodes the frame nearest to timeOffset (seconds on the
	// file's own axis) into an image.
	ExtractFrame(ctx context.Context, filePath string, timeOffset float64) (image.Image, error)
	// Render concatenates the segments, in order, into a single output
	// artifact. A failure carries a diagnostic tail of encoder log lines.
	Render(ctx context.Context, segments []Segment, outputPath string, opts RenderOptions) error
}

// ProbeResult is the subset of ffprobe output the agent cares about.
type ProbeResult struct {
	Duration  float64
	Width     int
	Height    int
	Codec     string
	FrameRate float64
	HasAudio  bool
}

// Segment is one (source, in-point, out-point) element of a render request.
type Segment struct {
	SourcePath string
	In         float64
	Out        float64
}

// RenderOptions are the target encoding parameters.
type RenderOptions struct {
	Width      int
	Height     int
	FrameRate  float64
	VideoCodec string
}

// StubFFmpeg logs requests and returns fixed metadata. Used where a real
// ffmpeg binary is unavailable (tests, headless CI).
type StubFFmpeg struct {
	logger *slog.Logger

	// StubDuration is reported by Probe for every file.
	StubDuration float64
}

func NewStubFFmpeg(logger *slog.Logger) *StubFFmpeg {
	return &StubFFmpeg{logger: logger, StubDuration: 10}
}

func (f *StubFFmpeg) Probe(ctx context.Context, filePath string) (*ProbeResult, error) {
	f.logger.Info("ffmpeg stub: probe requested", "path", filePath)
	return &ProbeResult{Duration: f.StubDuration, Width: 1920, Height: 1080, FrameRate: 30}, nil
}

func (f *StubFFmpeg) ExtractFrame(ctx context.Context, filePath string, timeOffset float64) (image.Image, error) {
	f.logger.Info("ffmpeg stub: frame requested", "path", filePath, "offset", timeOffset)
	return image.NewRGBA(image.Rect(0, 0, 16, 9)), nil
}

func (f *StubFFmpeg) Render(ctx context.Context, segments []Segment, outputPath string, opts RenderOptions) error {
	f.logger.Info("ffmpeg stub: render requested", "segments", len(segments), "output", outputPath)
	return nil
}
