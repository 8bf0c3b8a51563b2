// Package player implements the playback state machine that owns the single
// visible media surface. It maps the global timeline onto whichever source is
// active, keeps committed playback, user scrubbing and ephemeral hover
// preview from corrupting each other, and produces the illusion of one
// continuous video from N discrete sources.
package player

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cutroom/cutroom-agent/internal/media"
	"github.com/cutroom/cutroom-agent/internal/sequence"
)

// State is the playback state machine's current mode. Scrubbing and
// Previewing are mutually exclusive overlays on top of a remembered
// committed sub-state (Paused or Playing).
type State int

const (
	StateIdle State = iota
	StatePaused
	StatePlaying
	StateScrubbing
	StatePreviewing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePaused:
		return "paused"
	case StatePlaying:
		return "playing"
	case StateScrubbing:
		return "scrubbing"
	case StatePreviewing:
		return "previewing"
	default:
		return "unknown"
	}
}

const (
	// sampleInterval is the per-frame cadence of the position sampler.
	sampleInterval = 16 * time.Millisecond
	// notifyInterval throttles the externally-facing time notification.
	notifyInterval = 33 * time.Millisecond

	seekTimeout  = 1 * time.Second
	readyTimeout = 3 * time.Second

	// endEpsilon absorbs clock jitter when detecting the trimmed end.
	endEpsilon = 1e-3
)

// SequenceFunc returns the current derived sequence. The player pulls it on
// demand instead of holding a copy, so clip-list mutations are always
// observed fresh.
type SequenceFunc func() []sequence.Entry

// snapshot records the committed state before a preview overlay so it can be
// restored exactly on exit.
type snapshot struct {
	source    string
	clipID    string
	local     float64
	global    float64
	committed State
}

type Player struct {
	surface media.Surface
	seq     SequenceFunc
	logger  *slog.Logger

	mu           sync.Mutex
	state        State
	committed    State // sub-state behind a Scrubbing/Previewing overlay
	position     float64
	activeClipID string

	// pendingLocal defers applying a local seek by one sampler tick so a
	// source swap takes effect before the seek lands.
	pendingLocal *float64
	// previewTarget coalesces previewAt calls; at most one applied per tick.
	previewTarget *float64
	snap          *snapshot

	onTime     func(t float64)
	lastNotify time.Time
}

func New(surface media.Surface, seq SequenceFunc, logger *slog.Logger) *Player {
	return &Player{
		surface:   surface,
		seq:       seq,
		logger:    logger,
		state:     StateIdle,
		committed: StatePaused,
	}
}

// SetTimeListener registers the rate-limited current-time callback. It fires
// at most every notifyInterval, never from under the player's lock.
func (p *Player) SetTimeListener(fn func(t float64)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onTime = fn
}

// Run drives the per-frame sampler until the context is cancelled. The timer
// is rescheduled after each pass rather than fixed-interval, so a slow tick
// never causes a backlog of samples.
func (p *Player) Run(ctx context.Context) {
	timer := time.NewTimer(sampleInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		p.tick()
		timer.Reset(sampleInterval)
	}
}

// tick is the single scheduling point: it applies deferred and coalesced
// seeks, samples playback position, advances across clip boundaries, and
// emits the throttled notification.
func (p *Player) tick() {
	p.mu.Lock()

	entries := p.seq()

	// Idle bookkeeping follows the clip list.
	if len(entries) == 0 {
		p.state = StateIdle
		p.committed = StatePaused
		p.activeClipID = ""
		p.position = 0
		p.pendingLocal = nil
		p.previewTarget = nil
		p.snap = nil
		p.mu.Unlock()
		return
	}
	if p.state == StateIdle {
		p.state = StatePaused
		p.seekLocked(entries, 0)
	}

	pending := p.pendingLocal
	p.pendingLocal = nil

	var previewTarget *float64
	if p.state == StatePreviewing {
		previewTarget = p.previewTarget
		p.previewTarget = nil
	}

	resumePlay := p.state == StatePlaying ||
		(p.state == StateScrubbing && p.committed == StatePlaying)
	p.mu.Unlock()

	if pending != nil {
		p.applyDeferredSeek(*pending, resumePlay)
	}
	if previewTarget != nil {
		p.applyPreviewSeek(entries, *previewTarget)
	}

	p.mu.Lock()
	if p.state == StatePlaying && p.pendingLocal == nil {
		p.samplePlaybackLocked(entries)
	}

	var notify func(float64)
	var notifyAt float64
	if p.onTime != nil && time.Since(p.lastNotify) >= notifyInterval {
		p.lastNotify = time.Now()
		notify = p.onTime
		notifyAt = p.position
	}
	p.mu.Unlock()

	if notify != nil {
		notify(notifyAt)
	}
}

// applyDeferredSeek lands a local seek one tick after the source swap that
// scheduled it, waiting for the new source's metadata first.
func (p *Player) applyDeferredSeek(local float64, resumePlay bool) {
	ctx, cancel := context.WithTimeout(context.Background(), readyTimeout)
	defer cancel()

	if _, err := p.surface.Ready(ctx); err != nil {
		// Stalled metadata: abandon silently, keep whatever position the
		// surface ends up at.
		p.logger.Debug("deferred seek abandoned, source not ready", "error", err)
		return
	}

	seekCtx, cancelSeek := context.WithTimeout(context.Background(), seekTimeout)
	defer cancelSeek()
	if err := p.surface.Seek(seekCtx, local); err != nil {
		p.logger.Debug("deferred seek failed", "error", err)
	}
	if resumePlay {
		p.surface.Play()
	}
}

// applyPreviewSeek applies the newest coalesced preview target.
func (p *Player) applyPreviewSeek(entries []sequence.Entry, globalTime float64) {
	entry, local, ok := sequence.GlobalToLocal(entries, globalTime)
	if !ok {
		return
	}

	if entry.Clip.SourcePath != p.surface.Source() {
		p.surface.Attach(entry.Clip.SourcePath)
		ctx, cancel := context.WithTimeout(context.Background(), readyTimeout)
		defer cancel()
		if _, err := p.surface.Ready(ctx); err != nil {
			p.logger.Debug("preview source not ready", "error", err)
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), seekTimeout)
	defer cancel()
	if err := p.surface.Seek(ctx, local); err != nil {
		p.logger.Debug("preview seek failed", "error", err)
		return
	}

	p.mu.Lock()
	if p.state == StatePreviewing {
		p.activeClipID = entry.Clip.ID
		p.position = sequence.ClampGlobal(entries, globalTime)
	}
	p.mu.Unlock()
}

// samplePlaybackLocked reads the surface clock, advances across the trimmed
// end to the next entry (wrapping after the last), and updates the displayed
// global position.
func (p *Player) samplePlaybackLocked(entries []sequence.Entry) {
	entry, ok := p.activeEntry(entries)
	if !ok {
		// Active clip was removed mid-playback: recommit to the same
		// global position on the recomputed sequence.
		p.seekLocked(entries, p.position)
		return
	}

	local := p.surface.CurrentTime()
	if local >= entry.Clip.End-endEpsilon {
		next, ok := sequence.NextEntry(entries, entry.Clip.ID)
		if !ok {
			return
		}
		if next.Clip.SourcePath != p.surface.Source() {
			p.surface.Attach(next.Clip.SourcePath)
			start := next.Clip.Start
			p.pendingLocal = &start
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), seekTimeout)
			if err := p.surface.Seek(ctx, next.Clip.Start); err != nil {
				p.logger.Debug("wrap seek failed", "error", err)
			}
			cancel()
			p.surface.Play()
		}
		p.activeClipID = next.Clip.ID
		p.position = next.SequenceStart
		return
	}

	p.position = sequence.LocalToGlobal(entry, local)
}

func (p *Player) activeEntry(entries []sequence.Entry) (sequence.Entry, bool) {
	for _, e := range entries {
		if e.Clip.ID == p.activeClipID {
			return e, true
		}
	}
	return sequence.Entry{}, false
}

// Play begins advancing. Valid only in Paused; a no-op while previewing,
// scrubbing, playing or idle. If the local position sits at or past the
// active clip's trimmed end, it resets to the trimmed start first.
func (p *Player) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StatePaused {
		return
	}
	entries := p.seq()
	if len(entries) == 0 {
		return
	}

	entry, ok := p.activeEntry(entries)
	if !ok {
		p.seekLocked(entries, 0)
		entry, ok = p.activeEntry(entries)
		if !ok {
			return
		}
	}

	if p.surface.CurrentTime() >= entry.Clip.End-endEpsilon {
		ctx, cancel := context.WithTimeout(context.Background(), seekTimeout)
		if err := p.surface.Seek(ctx, entry.Clip.Start); err != nil {
			p.logger.Debug("play reset seek failed", "error", err)
		}
		cancel()
		p.position = entry.SequenceStart
	}

	p.surface.Play()
	p.state = StatePlaying
	p.committed = StatePlaying
}

// Pause stops advancing and retains the current position. Valid only in
// Playing.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StatePlaying {
		return
	}
	p.surface.Pause()
	p.state = StatePaused
	p.committed = StatePaused
}

// Seek commits a new authoritative global position. It clamps to the
// sequence, switches the active source if the target entry's clip differs
// (deferring the local seek by one tick), and preserves the playing/paused
// sub-state. Ignored while previewing; the overlay must end first.
func (p *Player) Seek(globalTime float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StatePreviewing {
		return
	}
	entries := p.seq()
	if len(entries) == 0 {
		return
	}
	if p.state == StateIdle {
		p.state = StatePaused
		p.committed = StatePaused
	}
	p.seekLocked(entries, globalTime)
}

func (p *Player) seekLocked(entries []sequence.Entry, globalTime float64) {
	globalTime = sequence.ClampGlobal(entries, globalTime)
	entry, local, ok := sequence.GlobalToLocal(entries, globalTime)
	if !ok {
		return
	}

	if entry.Clip.SourcePath != p.surface.Source() {
		p.surface.Attach(entry.Clip.SourcePath)
		l := local
		p.pendingLocal = &l
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), seekTimeout)
		if err := p.surface.Seek(ctx, local); err != nil {
			p.logger.Debug("seek failed", "error", err)
		}
		cancel()
	}
	p.activeClipID = entry.Clip.ID
	p.position = globalTime
}

// BeginScrub enters the scrubbing overlay on pointer-down and performs an
// immediate commit-seek. An active preview overlay is ended first; the two
// overlays are mutually exclusive.
func (p *Player) BeginScrub(globalTime float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StatePreviewing {
		p.endPreviewLocked()
	}
	if p.state == StateIdle {
		return
	}
	if p.state != StateScrubbing {
		p.committed = p.state
		p.state = StateScrubbing
	}
	p.seekLocked(p.seq(), globalTime)
}

// Scrub repeats the commit-seek while the pointer is held. The drag is
// authoritative: the sampler never overwrites position in this state.
func (p *Player) Scrub(globalTime float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateScrubbing {
		return
	}
	p.seekLocked(p.seq(), globalTime)
}

// EndScrub exits back to the committed sub-state on pointer-up.
func (p *Player) EndScrub() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateScrubbing {
		return
	}
	p.state = p.committed
	if p.state == StatePlaying {
		p.surface.Play()
	}
}

// PreviewAt enters (or stays in) the preview overlay and records the newest
// target, coalesced onto the sampler so at most one preview seek is applied
// per tick. Preview is a paused-only affordance: ignored while playing or
// scrubbing. The first entry captures the restore snapshot.
func (p *Player) PreviewAt(globalTime float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StatePlaying || p.state == StateScrubbing || p.state == StateIdle {
		return
	}
	entries := p.seq()
	if len(entries) == 0 {
		return
	}

	if p.state != StatePreviewing {
		p.snap = &snapshot{
			source:    p.surface.Source(),
			clipID:    p.activeClipID,
			local:     p.surface.CurrentTime(),
			global:    p.position,
			committed: p.state,
		}
		p.committed = p.state
		p.state = StatePreviewing
	}

	t := sequence.ClampGlobal(entries, globalTime)
	p.previewTarget = &t
}

// EndPreview restores the snapshot exactly (source, local time and global
// display position) and returns to the committed sub-state that preceded
// the overlay. Idempotent: a no-op when not previewing.
func (p *Player) EndPreview() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endPreviewLocked()
}

func (p *Player) endPreviewLocked() {
	if p.state != StatePreviewing {
		return
	}
	snap := p.snap
	p.snap = nil
	p.previewTarget = nil
	p.state = snap.committed

	if snap.source != p.surface.Source() {
		p.surface.Attach(snap.source)
		l := snap.local
		p.pendingLocal = &l
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), seekTimeout)
		if err := p.surface.Seek(ctx, snap.local); err != nil {
			p.logger.Debug("preview restore seek failed", "error", err)
		}
		cancel()
	}
	p.activeClipID = snap.clipID
	p.position = snap.global
}

// SetMuted applies to the one active surface regardless of playback state.
func (p *Player) SetMuted(muted bool) {
	p.surface.SetMuted(muted)
}

// SetVolume applies to the one active surface regardless of playback state.
func (p *Player) SetVolume(v float64) {
	p.surface.SetVolume(v)
}

// Status is the presentation layer's read-back view.
type Status struct {
	State        string  `json:"state"`
	Position     float64 `json:"position"`
	Duration     float64 `json:"duration"`
	Playing      bool    `json:"playing"`
	ActiveClipID string  `json:"active_clip_id,omitempty"`
	Muted        bool    `json:"muted"`
	Volume       float64 `json:"volume"`
}

func (p *Player) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Status{
		State:        p.state.String(),
		Position:     p.position,
		Duration:     sequence.TotalDuration(p.seq()),
		Playing:      p.state == StatePlaying,
		ActiveClipID: p.activeClipID,
		Muted:        p.surface.Muted(),
		Volume:       p.surface.Volume(),
	}
}

// State returns the current machine state.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Position returns the displayed global timeline position.
func (p *Player) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

// Tick runs one sampler pass. Exposed for tests and for callers that drive
// the schedule themselves instead of using Run.
func (p *Player) Tick() {
	p.tick()
}
