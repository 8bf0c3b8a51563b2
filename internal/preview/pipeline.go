// Package preview renders thumbnails for arbitrary global timeline positions
// by driving a second, hidden media surface. A single lazy worker loop
// services the newest pending request; a monotonic token invalidates stale
// in-flight work, so fast pointer movement never leaks work or races itself.
package preview

import (
	"bytes"
	"context"
	"image/png"
	"log/slog"
	"sync"
	"time"

	"github.com/cutroom/cutroom-agent/internal/media"
	"github.com/cutroom/cutroom-agent/internal/sequence"
)

const (
	defaultPollInterval = 15 * time.Millisecond
	defaultMaxIdlePolls = 40
	defaultReadyTimeout = 2 * time.Second
	defaultSeekTimeout  = 1 * time.Second
	defaultFrameTimeout = 5 * time.Second
	// defaultSettleDelay approximates one display refresh, giving the
	// freshly seeked frame time to decode.
	defaultSettleDelay = 16 * time.Millisecond
)

// Thumbnail is one rendered preview bitmap.
type Thumbnail struct {
	PNG        []byte
	GlobalTime float64
	Width      int
	Height     int
	RenderedAt time.Time
}

// Config wires a Pipeline. Surface must be the hidden capture surface; the
// pipeline never touches the visible one.
type Config struct {
	Surface  media.FrameSurface
	Sequence func() []sequence.Entry
	Logger   *slog.Logger

	// Tunables; zero values pick the defaults. Tests shrink these.
	PollInterval time.Duration
	MaxIdlePolls int
	ReadyTimeout time.Duration
	SeekTimeout  time.Duration
	FrameTimeout time.Duration
	SettleDelay  time.Duration
}

type request struct {
	globalTime float64
	token      uint64
}

type Pipeline struct {
	surface media.FrameSurface
	seq     func() []sequence.Entry
	logger  *slog.Logger

	pollInterval time.Duration
	maxIdlePolls int
	readyTimeout time.Duration
	seekTimeout  time.Duration
	frameTimeout time.Duration
	settleDelay  time.Duration

	mu      sync.Mutex
	token   uint64
	pending *request
	running bool

	fitMode FitMode
	aspectW int
	aspectH int

	thumb *Thumbnail
}

func New(cfg Config) *Pipeline {
	p := &Pipeline{
		surface:      cfg.Surface,
		seq:          cfg.Sequence,
		logger:       cfg.Logger,
		pollInterval: cfg.PollInterval,
		maxIdlePolls: cfg.MaxIdlePolls,
		readyTimeout: cfg.ReadyTimeout,
		seekTimeout:  cfg.SeekTimeout,
		frameTimeout: cfg.FrameTimeout,
		settleDelay:  cfg.SettleDelay,
		fitMode:      FitContain,
		aspectW:      16,
		aspectH:      9,
	}
	if p.pollInterval <= 0 {
		p.pollInterval = defaultPollInterval
	}
	if p.maxIdlePolls <= 0 {
		p.maxIdlePolls = defaultMaxIdlePolls
	}
	if p.readyTimeout <= 0 {
		p.readyTimeout = defaultReadyTimeout
	}
	if p.seekTimeout <= 0 {
		p.seekTimeout = defaultSeekTimeout
	}
	if p.frameTimeout <= 0 {
		p.frameTimeout = defaultFrameTimeout
	}
	if p.settleDelay < 0 {
		p.settleDelay = 0
	} else if p.settleDelay == 0 {
		p.settleDelay = defaultSettleDelay
	}
	return p
}

// Request asks for a thumbnail at a global timeline position. Older unpicked
// requests are overwritten, not queued: during a fast drag only the newest
// position is worth rendering. The worker loop starts lazily on first
// request; at most one loop is ever alive.
func (p *Pipeline) Request(globalTime float64) {
	p.mu.Lock()
	p.token++
	p.pending = &request{globalTime: globalTime, token: p.token}
	start := !p.running
	if start {
		p.running = true
	}
	p.mu.Unlock()

	if start {
		go p.worker()
	}
}

// Cancel invalidates all outstanding preview work. Any in-flight iteration
// observes the token mismatch at its next check and abandons its result.
func (p *Pipeline) Cancel() {
	p.mu.Lock()
	p.token++
	p.pending = nil
	p.mu.Unlock()
}

// SetAspect changes the thumbnail canvas ratio. It routes through the token:
// an in-flight frame composed for the old ratio must not land.
func (p *Pipeline) SetAspect(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	p.mu.Lock()
	p.aspectW = w
	p.aspectH = h
	p.token++
	p.mu.Unlock()
}

// SetFitMode switches contain/cover. No token bump: the mode is read fresh
// on each iteration, so a mid-drag change applies from the next frame on.
func (p *Pipeline) SetFitMode(mode FitMode) {
	if mode != FitContain && mode != FitCover {
		return
	}
	p.mu.Lock()
	p.fitMode = mode
	p.mu.Unlock()
}

// Thumbnail returns the latest rendered thumbnail, or nil if none yet.
func (p *Pipeline) Thumbnail() *Thumbnail {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.thumb
}

// worker is the single long-lived loop. It exits after a bounded number of
// idle polls; a fresh request arriving while it still polls is picked up
// without a restart.
func (p *Pipeline) worker() {
	idle := 0
	for {
		p.mu.Lock()
		req := p.pending
		p.pending = nil
		if req == nil && idle >= p.maxIdlePolls {
			p.running = false
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()

		if req == nil {
			idle++
			time.Sleep(p.pollInterval)
			continue
		}
		idle = 0
		p.process(req)
	}
}

func (p *Pipeline) stale(token uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return token != p.token
}

// process renders one request. Every failure (stalled metadata, seek
// timeout, decode error) silently aborts this single attempt; the loop
// continues to the next request. Preview failures never surface as errors.
func (p *Pipeline) process(req *request) {
	if p.stale(req.token) {
		return
	}

	entries := p.seq()
	entry, local, ok := sequence.GlobalToLocal(entries, req.globalTime)
	if !ok {
		return
	}

	if p.surface.Source() != entry.Clip.SourcePath {
		p.surface.Attach(entry.Clip.SourcePath)

		ctx, cancel := context.WithTimeout(context.Background(), p.readyTimeout)
		_, err := p.surface.Ready(ctx)
		cancel()
		if err != nil {
			p.logger.Debug("preview source not ready, skipping frame", "error", err)
			return
		}
		if p.stale(req.token) {
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.seekTimeout)
	err := p.surface.Seek(ctx, local)
	cancel()
	if err != nil {
		p.logger.Debug("preview seek failed, skipping frame", "error", err)
		return
	}
	if p.stale(req.token) {
		return
	}

	if p.settleDelay > 0 {
		time.Sleep(p.settleDelay)
		if p.stale(req.token) {
			return
		}
	}

	ctx, cancel = context.WithTimeout(context.Background(), p.frameTimeout)
	frame, err := p.surface.Frame(ctx)
	cancel()
	if err != nil {
		p.logger.Debug("preview frame extraction failed, skipping", "error", err)
		return
	}
	if p.stale(req.token) {
		return
	}

	// Fit mode and aspect are read fresh: the user may change them
	// mid-drag.
	p.mu.Lock()
	mode := p.fitMode
	aspectW, aspectH := p.aspectW, p.aspectH
	p.mu.Unlock()

	w, h := thumbSize(aspectW, aspectH)
	bitmap := compose(frame, w, h, mode)

	var buf bytes.Buffer
	if err := png.Encode(&buf, bitmap); err != nil {
		p.logger.Debug("thumbnail encode failed", "error", err)
		return
	}

	p.mu.Lock()
	if req.token == p.token {
		p.thumb = &Thumbnail{
			PNG:        buf.Bytes(),
			GlobalTime: req.globalTime,
			Width:      w,
			Height:     h,
			RenderedAt: time.Now(),
		}
	}
	p.mu.Unlock()
}

// workerRunning reports whether the worker loop is alive. Used by tests to
// verify the loop winds down and restarts lazily.
func (p *Pipeline) workerRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
