package export

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cutroom/cutroom-agent/internal/db"
	"github.com/cutroom/cutroom-agent/internal/library"
	"github.com/cutroom/cutroom-agent/internal/pipeline"
	"github.com/cutroom/cutroom-agent/internal/sequence"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRepo(t *testing.T) library.Repository {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return library.NewRepository(database.Conn())
}

func testEntries() []sequence.Entry {
	return sequence.Derive([]sequence.Clip{
		{ID: "a", Name: "First", SourcePath: "/media/a.mp4", OriginalDuration: 10, Start: 0, End: 4, FrameRate: 30},
		{ID: "b", Name: "Second", SourcePath: "/media/b.mp4", OriginalDuration: 8, Start: 2, End: 6, FrameRate: 30},
	})
}

func waitForStatus(t *testing.T, repo library.Repository, id, status string) *library.Export {
	t.Helper()
	var got *library.Export
	require.Eventually(t, func() bool {
		e, err := repo.GetExport(context.Background(), id)
		if err != nil || e == nil {
			return false
		}
		got = e
		return e.Status == status
	}, 2*time.Second, 10*time.Millisecond, "export never reached status %s", status)
	return got
}

func TestStart_EDLJobWritesFile(t *testing.T) {
	repo := testRepo(t)
	outDir := t.TempDir()
	runner := NewRunner(repo, pipeline.NewStubFFmpeg(testLogger()), testEntries, outDir, testLogger())

	job, err := runner.Start(context.Background(), Request{ProjectName: "My Cut", Format: "edl"})
	require.NoError(t, err)
	assert.Equal(t, library.ExportStatusPending, job.Status)
	assert.Equal(t, 2, job.ClipCount)

	done := waitForStatus(t, repo, job.ID, library.ExportStatusCompleted)
	assert.True(t, strings.HasSuffix(done.OutputPath, "My Cut.edl"))

	content, err := os.ReadFile(done.OutputPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "TITLE: My Cut")
	assert.Contains(t, string(content), "* FROM CLIP NAME:  Second")
}

func TestStart_RenderJobCompletes(t *testing.T) {
	repo := testRepo(t)
	runner := NewRunner(repo, pipeline.NewStubFFmpeg(testLogger()), testEntries, t.TempDir(), testLogger())

	job, err := runner.Start(context.Background(), Request{ProjectName: "Render Me"})
	require.NoError(t, err)

	done := waitForStatus(t, repo, job.ID, library.ExportStatusCompleted)
	assert.Equal(t, library.ExportFormatMP4, done.Format)
	assert.True(t, strings.HasSuffix(done.OutputPath, "Render Me.mp4"))
}

func TestStart_DefaultNameUsesDuration(t *testing.T) {
	repo := testRepo(t)
	runner := NewRunner(repo, pipeline.NewStubFFmpeg(testLogger()), testEntries, t.TempDir(), testLogger())

	// Total trimmed duration is 8s.
	job, err := runner.Start(context.Background(), Request{Format: "edl"})
	require.NoError(t, err)

	done := waitForStatus(t, repo, job.ID, library.ExportStatusCompleted)
	assert.Contains(t, filepath.Base(done.OutputPath), "Sequence 00_08.00")
}

func TestStart_EmptySequenceRejected(t *testing.T) {
	repo := testRepo(t)
	runner := NewRunner(repo, pipeline.NewStubFFmpeg(testLogger()), func() []sequence.Entry { return nil }, t.TempDir(), testLogger())

	_, err := runner.Start(context.Background(), Request{})
	assert.ErrorContains(t, err, "sequence is empty")
}

func TestStart_UnsupportedFormatRejected(t *testing.T) {
	repo := testRepo(t)
	runner := NewRunner(repo, pipeline.NewStubFFmpeg(testLogger()), testEntries, t.TempDir(), testLogger())

	_, err := runner.Start(context.Background(), Request{Format: "avi"})
	assert.ErrorContains(t, err, "unsupported format")
}

func TestStart_BadOutputDirRejected(t *testing.T) {
	repo := testRepo(t)
	runner := NewRunner(repo, pipeline.NewStubFFmpeg(testLogger()), testEntries, t.TempDir(), testLogger())

	_, err := runner.Start(context.Background(), Request{OutputDir: filepath.Join(t.TempDir(), "missing")})
	assert.ErrorContains(t, err, "does not exist")
}

type failingFFmpeg struct{ *pipeline.StubFFmpeg }

func (f *failingFFmpeg) Render(ctx context.Context, segments []pipeline.Segment, outputPath string, opts pipeline.RenderOptions) error {
	return &pipeline.RenderError{Err: fmt.Errorf("exit status 1"), StderrTail: "No such file or directory"}
}

func (f *failingFFmpeg) ExtractFrame(ctx context.Context, path string, offset float64) (image.Image, error) {
	return f.StubFFmpeg.ExtractFrame(ctx, path, offset)
}

func TestStart_RenderFailureRecorded(t *testing.T) {
	repo := testRepo(t)
	ffmpeg := &failingFFmpeg{StubFFmpeg: pipeline.NewStubFFmpeg(testLogger())}
	runner := NewRunner(repo, ffmpeg, testEntries, t.TempDir(), testLogger())

	job, err := runner.Start(context.Background(), Request{ProjectName: "Doomed"})
	require.NoError(t, err)

	failed := waitForStatus(t, repo, job.ID, library.ExportStatusFailed)
	assert.Contains(t, failed.Error, "No such file or directory")
	assert.Empty(t, failed.OutputPath)
}
