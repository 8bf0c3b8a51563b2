// Package library manages the ordered clip list: importing media files,
// probing their metadata, trimming, reordering, and deriving the sequence
// entries every playback consumer pulls from.
package library

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cutroom/cutroom-agent/internal/pipeline"
	"github.com/cutroom/cutroom-agent/internal/sequence"
)

const probeTimeout = 15 * time.Second

type Service struct {
	repo   Repository
	ffmpeg pipeline.FFmpeg
	logger *slog.Logger

	mu      sync.RWMutex
	entries []sequence.Entry

	// onChange, when set, fires after every mutation that altered the
	// derived sequence. Wired to the playback layer so stale timeline
	// state never outlives the edit that invalidated it.
	onChange func()
}

func NewService(repo Repository, ffmpeg pipeline.FFmpeg, logger *slog.Logger) *Service {
	return &Service{repo: repo, ffmpeg: ffmpeg, logger: logger}
}

// SetChangeListener registers a callback invoked after sequence-affecting
// mutations. Must be called before the service is shared across goroutines.
func (s *Service) SetChangeListener(fn func()) {
	s.onChange = fn
}

// Load derives the in-memory sequence from the persisted clip list. Called
// once at startup before any consumer pulls entries.
func (s *Service) Load(ctx context.Context) error {
	return s.recompute(ctx)
}

// AddClip imports a media file. The clip is persisted immediately with zeroed
// metadata and contributes nothing to the sequence until the async probe
// promotes it with a real duration and a full-width trim window.
func (s *Service) AddClip(ctx context.Context, path string) (*sequence.Clip, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("file does not exist: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory")
	}
	if !IsVideoFile(absPath) {
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(absPath))
	}

	clips, err := s.repo.ListClips(ctx)
	if err != nil {
		return nil, err
	}

	// Removals leave gaps in the position column, so the next position is
	// one past the maximum, never the count. Duplicate positions would make
	// the ORDER BY position read order unspecified.
	position := 0
	for _, c := range clips {
		if c.Position >= position {
			position = c.Position + 1
		}
	}

	clip := &sequence.Clip{
		ID:         NewID(),
		Name:       filepath.Base(absPath),
		SourcePath: absPath,
		Position:   position,
		CreatedAt:  time.Now(),
	}

	if err := s.repo.CreateClip(ctx, clip); err != nil {
		return nil, err
	}

	s.logger.Info("clip added", "clip_id", clip.ID, "path", absPath)
	go s.probeClip(clip.ID, absPath)

	return clip, nil
}

// probeClip resolves a freshly imported clip's metadata and promotes it into
// the sequence with a full-width trim window.
func (s *Service) probeClip(clipID, path string) {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	result, err := s.ffmpeg.Probe(ctx, path)
	if err != nil {
		s.logger.Warn("probe failed, clip stays pending", "clip_id", clipID, "error", err)
		return
	}
	if result.Duration <= 0 {
		s.logger.Warn("probe returned no duration, clip stays pending", "clip_id", clipID)
		return
	}

	frameRate := result.FrameRate
	if frameRate <= 0 {
		frameRate = sequence.DefaultFrameRate
	}

	if err := s.repo.UpdateClipMetadata(ctx, clipID, result.Duration, frameRate, 0, result.Duration); err != nil {
		s.logger.Error("failed to store clip metadata", "clip_id", clipID, "error", err)
		return
	}

	s.logger.Info("clip promoted", "clip_id", clipID, "duration", result.Duration, "frame_rate", frameRate)

	if err := s.recompute(ctx); err != nil {
		s.logger.Error("failed to recompute sequence", "error", err)
	}
}

func (s *Service) Clips(ctx context.Context) ([]sequence.Clip, error) {
	return s.repo.ListClips(ctx)
}

func (s *Service) GetClip(ctx context.Context, id string) (*sequence.Clip, error) {
	return s.repo.GetClip(ctx, id)
}

// SetTrim applies a trim window to a clip. The requested window is clamped to
// a valid one rather than rejected, and the clamped values are what both the
// store and the response carry.
func (s *Service) SetTrim(ctx context.Context, id string, start, end float64) (*sequence.Clip, error) {
	clip, err := s.repo.GetClip(ctx, id)
	if err != nil {
		return nil, err
	}
	if clip == nil {
		return nil, fmt.Errorf("clip not found")
	}
	if clip.OriginalDuration <= 0 {
		return nil, fmt.Errorf("clip metadata not resolved yet")
	}

	start, end = sequence.ClampTrim(*clip, start, end)
	if err := s.repo.UpdateClipTrim(ctx, id, start, end); err != nil {
		return nil, err
	}
	clip.Start = start
	clip.End = end

	s.logger.Info("clip trimmed", "clip_id", id, "start", start, "end", end)

	if err := s.recompute(ctx); err != nil {
		return nil, err
	}
	return clip, nil
}

// Reorder replaces the clip ordering. The id list must be a permutation of
// the stored clips.
func (s *Service) Reorder(ctx context.Context, orderedIDs []string) error {
	clips, err := s.repo.ListClips(ctx)
	if err != nil {
		return err
	}
	if len(orderedIDs) != len(clips) {
		return fmt.Errorf("order lists %d clips, library has %d", len(orderedIDs), len(clips))
	}
	known := make(map[string]bool, len(clips))
	for _, c := range clips {
		known[c.ID] = true
	}
	for _, id := range orderedIDs {
		if !known[id] {
			return fmt.Errorf("unknown clip id: %s", id)
		}
		delete(known, id)
	}

	if err := s.repo.UpdateClipOrder(ctx, orderedIDs); err != nil {
		return err
	}

	s.logger.Info("clips reordered", "count", len(orderedIDs))
	return s.recompute(ctx)
}

func (s *Service) RemoveClip(ctx context.Context, id string) error {
	clip, err := s.repo.GetClip(ctx, id)
	if err != nil {
		return err
	}
	if clip == nil {
		return fmt.Errorf("clip not found")
	}

	if err := s.repo.DeleteClip(ctx, id); err != nil {
		return err
	}

	s.logger.Info("clip removed", "clip_id", id)
	return s.recompute(ctx)
}

// Sequence returns the current derived entries. The slice is a fresh copy;
// callers may hold it across their own lock boundaries.
func (s *Service) Sequence() []sequence.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]sequence.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// TotalDuration returns the derived global timeline length.
func (s *Service) TotalDuration() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sequence.TotalDuration(s.entries)
}

func (s *Service) recompute(ctx context.Context) error {
	clips, err := s.repo.ListClips(ctx)
	if err != nil {
		return err
	}
	entries := sequence.Derive(clips)

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()

	if s.onChange != nil {
		s.onChange()
	}
	return nil
}
