// Package export turns the current sequence into deliverables: a rendered
// movie via the encoder boundary, or a CMX3600 EDL for downstream editors.
// Jobs run asynchronously and their lifecycle is persisted in the exports
// table.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cutroom/cutroom-agent/internal/library"
	"github.com/cutroom/cutroom-agent/internal/pipeline"
	"github.com/cutroom/cutroom-agent/internal/sequence"
)

const (
	maxNameLen = 64

	jobTimeout = 30 * time.Minute
)

type Runner struct {
	repo       library.Repository
	ffmpeg     pipeline.FFmpeg
	sequence   func() []sequence.Entry
	defaultDir string
	logger     *slog.Logger
}

func NewRunner(repo library.Repository, ffmpeg pipeline.FFmpeg, seq func() []sequence.Entry, defaultDir string, logger *slog.Logger) *Runner {
	return &Runner{repo: repo, ffmpeg: ffmpeg, sequence: seq, defaultDir: defaultDir, logger: logger}
}

// Start validates the request against the current sequence, records a pending
// export, and kicks off the job. The returned record reflects the pending
// state; poll the exports list for completion.
func (r *Runner) Start(ctx context.Context, req Request) (*library.Export, error) {
	format := req.Format
	if format == "" {
		format = library.ExportFormatMP4
	}
	if format != library.ExportFormatMP4 && format != library.ExportFormatEDL {
		return nil, fmt.Errorf("unsupported format: %s", format)
	}

	entries := r.sequence()
	if len(entries) == 0 {
		return nil, fmt.Errorf("sequence is empty")
	}

	outputDir := req.OutputDir
	if outputDir == "" {
		if err := os.MkdirAll(r.defaultDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create export directory: %w", err)
		}
		outputDir = r.defaultDir
	} else if err := ValidateOutputDir(outputDir); err != nil {
		return nil, err
	}

	name := ExportName(req.ProjectName, entries, maxNameLen)

	ext := "mp4"
	if format == library.ExportFormatEDL {
		ext = "edl"
	}
	outputPath := filepath.Join(outputDir, fmt.Sprintf("%s.%s", name, ext))

	now := time.Now()
	job := &library.Export{
		ID:        library.NewID(),
		Format:    format,
		Status:    library.ExportStatusPending,
		ClipCount: len(entries),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.repo.CreateExport(ctx, job); err != nil {
		return nil, err
	}

	r.logger.Info("export started", "export_id", job.ID, "format", format, "clips", len(entries))
	go r.run(job.ID, name, format, outputPath, entries, req)

	return job, nil
}

func (r *Runner) run(id, name, format, outputPath string, entries []sequence.Entry, req Request) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := r.repo.UpdateExportStatus(ctx, id, library.ExportStatusRunning, "", ""); err != nil {
		r.logger.Error("failed to mark export running", "export_id", id, "error", err)
	}

	var err error
	switch format {
	case library.ExportFormatEDL:
		err = r.writeEDL(name, outputPath, entries, req.FrameRate)
	default:
		err = r.render(ctx, outputPath, entries, req)
	}

	if err != nil {
		r.logger.Error("export failed", "export_id", id, "error", err)
		if uerr := r.repo.UpdateExportStatus(ctx, id, library.ExportStatusFailed, "", err.Error()); uerr != nil {
			r.logger.Error("failed to mark export failed", "export_id", id, "error", uerr)
		}
		return
	}

	r.logger.Info("export completed", "export_id", id, "output", outputPath)
	if uerr := r.repo.UpdateExportStatus(ctx, id, library.ExportStatusCompleted, outputPath, ""); uerr != nil {
		r.logger.Error("failed to mark export completed", "export_id", id, "error", uerr)
	}
}

func (r *Runner) writeEDL(name, outputPath string, entries []sequence.Entry, frameRate float64) error {
	if frameRate <= 0 {
		frameRate = entries[0].Clip.FrameRate
	}
	content := GenerateEDL(entries, name, frameRate)
	if err := os.WriteFile(outputPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write edl: %w", err)
	}
	return nil
}

func (r *Runner) render(ctx context.Context, outputPath string, entries []sequence.Entry, req Request) error {
	segments := make([]pipeline.Segment, 0, len(entries))
	for _, e := range entries {
		segments = append(segments, pipeline.Segment{
			SourcePath: e.Clip.SourcePath,
			In:         e.Clip.Start,
			Out:        e.Clip.End,
		})
	}

	opts := pipeline.RenderOptions{
		Width:      req.Width,
		Height:     req.Height,
		FrameRate:  req.FrameRate,
		VideoCodec: "libx264",
	}
	if opts.FrameRate <= 0 {
		opts.FrameRate = entries[0].Clip.FrameRate
	}

	return r.ffmpeg.Render(ctx, segments, outputPath, opts)
}
