package media

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/cutroom/cutroom-agent/internal/pipeline"
)

// FileSurface plays local files through ffmpeg. It keeps an authoritative
// simulated clock (the actual pixels are rendered elsewhere, e.g. by the
// browser's video element); metadata comes from ffprobe and frames from
// single-frame extraction, so the one surface type serves both the visible
// and the hidden capture role.
type FileSurface struct {
	ffmpeg pipeline.FFmpeg
	logger *slog.Logger

	mu         sync.Mutex
	source     string
	generation uint64
	readyCh    chan struct{}
	meta       Metadata
	metaErr    error

	position float64
	playing  bool
	anchor   time.Time

	muted  bool
	volume float64
}

func NewFileSurface(ffmpeg pipeline.FFmpeg, logger *slog.Logger) *FileSurface {
	return &FileSurface{
		ffmpeg: ffmpeg,
		logger: logger,
		volume: 1.0,
	}
}

// Attach swaps the surface to a new source and kicks off an asynchronous
// metadata probe. Readiness from any earlier attachment is invalidated; a
// stale probe result is discarded by generation check.
func (s *FileSurface) Attach(source string) {
	s.mu.Lock()
	s.source = source
	s.generation++
	gen := s.generation
	s.position = 0
	s.playing = false
	s.meta = Metadata{}
	s.metaErr = nil
	ready := make(chan struct{})
	s.readyCh = ready
	s.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		probe, err := s.ffmpeg.Probe(ctx, source)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.generation != gen {
			return // source changed again while probing
		}
		if err != nil {
			s.metaErr = err
		} else {
			s.meta = Metadata{
				Duration:  probe.Duration,
				FrameRate: probe.FrameRate,
				Width:     probe.Width,
				Height:    probe.Height,
			}
		}
		close(ready)
	}()
}

func (s *FileSurface) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// Ready blocks until the attached source has reported metadata, the probe
// failed, or the context deadline passed.
func (s *FileSurface) Ready(ctx context.Context) (Metadata, error) {
	s.mu.Lock()
	ready := s.readyCh
	s.mu.Unlock()

	if ready == nil {
		return Metadata{}, fmt.Errorf("no source attached")
	}

	select {
	case <-ready:
	case <-ctx.Done():
		return Metadata{}, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.metaErr != nil {
		return Metadata{}, s.metaErr
	}
	return s.meta, nil
}

func (s *FileSurface) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playing {
		return
	}
	s.playing = true
	s.anchor = time.Now()
}

func (s *FileSurface) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing {
		return
	}
	s.position = s.currentLocked()
	s.playing = false
}

func (s *FileSurface) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Seek moves the clock. A file surface honors seeks immediately; the context
// keeps the Surface contract of a bounded, cancellable operation.
func (s *FileSurface) Seek(ctx context.Context, t float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if t < 0 {
		t = 0
	}
	if s.meta.Duration > 0 && t > s.meta.Duration {
		t = s.meta.Duration
	}
	s.position = t
	s.anchor = time.Now()
	return nil
}

func (s *FileSurface) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLocked()
}

func (s *FileSurface) currentLocked() float64 {
	if !s.playing {
		return s.position
	}
	t := s.position + time.Since(s.anchor).Seconds()
	if s.meta.Duration > 0 && t > s.meta.Duration {
		t = s.meta.Duration
	}
	return t
}

func (s *FileSurface) SetMuted(muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted = muted
}

func (s *FileSurface) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

func (s *FileSurface) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	s.volume = v
}

func (s *FileSurface) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// Frame extracts the decoded frame at the surface's current position.
func (s *FileSurface) Frame(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	source := s.source
	pos := s.currentLocked()
	s.mu.Unlock()

	if source == "" {
		return nil, fmt.Errorf("no source attached")
	}
	return s.ffmpeg.ExtractFrame(ctx, source, pos)
}
