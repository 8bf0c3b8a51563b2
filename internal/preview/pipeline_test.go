package preview

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cutroom/cutroom-agent/internal/media"
	"github.com/cutroom/cutroom-agent/internal/sequence"
)

// captureFake simulates the hidden surface with configurable latencies so
// tests can put requests in flight while an iteration is still working.
type captureFake struct {
	mu         sync.Mutex
	source     string
	pos        float64
	seekDelay  time.Duration
	readyErr   error
	frameErr   error
	frameCalls int
	seekCalls  int
	frameColor color.RGBA
}

var _ media.FrameSurface = (*captureFake)(nil)

func (f *captureFake) Attach(source string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.source = source
	f.pos = 0
}

func (f *captureFake) Source() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.source
}

func (f *captureFake) Ready(ctx context.Context) (media.Metadata, error) {
	f.mu.Lock()
	err := f.readyErr
	f.mu.Unlock()
	if err != nil {
		return media.Metadata{}, err
	}
	return media.Metadata{Duration: 100, Width: 1920, Height: 1080}, nil
}

func (f *captureFake) Play()         {}
func (f *captureFake) Pause()        {}
func (f *captureFake) Playing() bool { return false }

func (f *captureFake) Seek(ctx context.Context, t float64) error {
	f.mu.Lock()
	delay := f.seekDelay
	f.seekCalls++
	f.pos = t
	f.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (f *captureFake) CurrentTime() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos
}

func (f *captureFake) SetMuted(bool)      {}
func (f *captureFake) Muted() bool        { return false }
func (f *captureFake) SetVolume(float64)  {}
func (f *captureFake) Volume() float64    { return 1 }

func (f *captureFake) Frame(ctx context.Context) (image.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frameCalls++
	if f.frameErr != nil {
		return nil, f.frameErr
	}
	img := image.NewRGBA(image.Rect(0, 0, 64, 36))
	c := f.frameColor
	if (c == color.RGBA{}) {
		c = color.RGBA{R: 255, A: 255}
	}
	for y := 0; y < 36; y++ {
		for x := 0; x < 64; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img, nil
}

func (f *captureFake) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seekCalls, f.frameCalls
}

func previewEntries() []sequence.Entry {
	mk := func(id string, dur float64) sequence.Clip {
		return sequence.Clip{
			ID: id, Name: id, SourcePath: "/media/" + id + ".mp4",
			OriginalDuration: dur, Start: 0, End: dur, FrameRate: 30,
		}
	}
	return sequence.Derive([]sequence.Clip{mk("a", 10), mk("b", 5), mk("c", 8)})
}

func testPipeline(t *testing.T, surface media.FrameSurface) *Pipeline {
	t.Helper()
	return New(Config{
		Surface:      surface,
		Sequence:     previewEntries,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		PollInterval: 2 * time.Millisecond,
		MaxIdlePolls: 10,
		ReadyTimeout: 200 * time.Millisecond,
		SeekTimeout:  200 * time.Millisecond,
		FrameTimeout: 200 * time.Millisecond,
		SettleDelay:  -1, // disabled for tests
	})
}

func waitThumb(t *testing.T, p *Pipeline) *Thumbnail {
	t.Helper()
	require.Eventually(t, func() bool { return p.Thumbnail() != nil },
		2*time.Second, 2*time.Millisecond)
	return p.Thumbnail()
}

func TestRequest_RendersThumbnail(t *testing.T) {
	fake := &captureFake{}
	p := testPipeline(t, fake)

	p.Request(12) // clip b, local 2
	thumb := waitThumb(t, p)

	assert.Equal(t, 12.0, thumb.GlobalTime)
	assert.Equal(t, "/media/b.mp4", fake.Source())
	assert.Equal(t, 2.0, fake.CurrentTime())
	assert.NotEmpty(t, thumb.PNG)
	assert.Equal(t, 0, thumb.Width%2, "width must be even")
	assert.Equal(t, 0, thumb.Height%2, "height must be even")
}

func TestRapidRequests_OnlyNewestRendered(t *testing.T) {
	fake := &captureFake{seekDelay: 25 * time.Millisecond}
	p := testPipeline(t, fake)

	// Five pointer positions faster than one worker iteration.
	p.Request(1)
	p.Request(2)
	p.Request(3)
	p.Request(5)
	p.Request(7)

	thumb := waitThumb(t, p)
	assert.Equal(t, 7.0, thumb.GlobalTime, "only the last pointer position is rendered")

	// Intermediate positions were overwritten before being picked up, and
	// the iteration already in flight was abandoned on token mismatch
	// before compositing.
	_, frames := fake.counts()
	assert.Equal(t, 1, frames, "exactly one rendered thumbnail")
}

func TestCancel_AbandonsInFlightWork(t *testing.T) {
	fake := &captureFake{seekDelay: 25 * time.Millisecond}
	p := testPipeline(t, fake)

	p.Request(3)
	time.Sleep(5 * time.Millisecond) // let the worker enter the slow seek
	p.Cancel()

	time.Sleep(100 * time.Millisecond)
	assert.Nil(t, p.Thumbnail(), "cancelled work must not emit a result")
}

func TestWorker_WindsDownWhenIdleAndRestarts(t *testing.T) {
	fake := &captureFake{}
	p := testPipeline(t, fake)

	p.Request(2)
	waitThumb(t, p)

	require.Eventually(t, func() bool { return !p.workerRunning() },
		2*time.Second, 2*time.Millisecond, "worker exits after bounded idle polling")

	// A fresh request after wind-down starts a new (single) loop.
	p.Request(16)
	require.Eventually(t, func() bool {
		thumb := p.Thumbnail()
		return thumb != nil && thumb.GlobalTime == 16.0
	}, 2*time.Second, 2*time.Millisecond)
}

func TestReadyFailure_SkipsFrameSilently(t *testing.T) {
	fake := &captureFake{readyErr: errors.New("metadata never arrived")}
	p := testPipeline(t, fake)

	p.Request(3)
	time.Sleep(50 * time.Millisecond)
	assert.Nil(t, p.Thumbnail())

	// Pipeline recovers once the source behaves.
	fake.mu.Lock()
	fake.readyErr = nil
	fake.mu.Unlock()
	p.Request(4)
	thumb := waitThumb(t, p)
	assert.Equal(t, 4.0, thumb.GlobalTime)
}

func TestFrameFailure_LoopContinues(t *testing.T) {
	fake := &captureFake{frameErr: errors.New("decode failed")}
	p := testPipeline(t, fake)

	p.Request(3)
	time.Sleep(50 * time.Millisecond)
	assert.Nil(t, p.Thumbnail(), "frame failure aborts the single attempt")

	fake.mu.Lock()
	fake.frameErr = nil
	fake.mu.Unlock()
	p.Request(6)
	thumb := waitThumb(t, p)
	assert.Equal(t, 6.0, thumb.GlobalTime)
}

func TestSetAspect_InvalidatesInFlight(t *testing.T) {
	fake := &captureFake{seekDelay: 25 * time.Millisecond}
	p := testPipeline(t, fake)

	p.Request(3)
	time.Sleep(5 * time.Millisecond)
	p.SetAspect(1, 1) // mid-flight ratio change routes through the token

	time.Sleep(100 * time.Millisecond)
	assert.Nil(t, p.Thumbnail())

	p.Request(3)
	thumb := waitThumb(t, p)
	assert.Equal(t, thumb.Width, thumb.Height, "square aspect applied")
}

func TestEmptySequence_NoThumbnail(t *testing.T) {
	fake := &captureFake{}
	p := New(Config{
		Surface:      fake,
		Sequence:     func() []sequence.Entry { return nil },
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		PollInterval: 2 * time.Millisecond,
		MaxIdlePolls: 5,
		SettleDelay:  -1,
	})

	p.Request(3)
	time.Sleep(50 * time.Millisecond)
	assert.Nil(t, p.Thumbnail())
}
