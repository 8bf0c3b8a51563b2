// Package media defines the playable surface boundary. A Surface is one
// attachment point for a source media item: it resolves metadata, honors
// play/pause/seek, and tracks a current position on the source's own time
// axis. The engine owns exactly two surfaces, the visible one (playback
// state machine) and a hidden one (preview capture), and they never share a
// source assignment at the same instant.
package media

import (
	"context"
	"image"
)

// Metadata describes an attached source once it has reported ready.
type Metadata struct {
	Duration  float64
	FrameRate float64
	Width     int
	Height    int
}

// Surface is a single playable attachment point. Attach swaps the source and
// invalidates any previous readiness; Ready and Seek block until the
// operation is honored or the context deadline passes, so callers always
// carry an explicit timeout.
type Surface interface {
	Attach(source string)
	Source() string
	Ready(ctx context.Context) (Metadata, error)

	Play()
	Pause()
	Playing() bool

	Seek(ctx context.Context, t float64) error
	CurrentTime() float64

	SetMuted(muted bool)
	Muted() bool
	SetVolume(v float64)
	Volume() float64
}

// FrameSurface is a Surface that can also hand back the decoded frame at its
// current position. The hidden capture surface is a FrameSurface.
type FrameSurface interface {
	Surface
	Frame(ctx context.Context) (image.Image, error)
}
