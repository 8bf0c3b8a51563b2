package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cutroom/cutroom-agent/internal/db"
	"github.com/cutroom/cutroom-agent/internal/export"
	"github.com/cutroom/cutroom-agent/internal/library"
	"github.com/cutroom/cutroom-agent/internal/media"
	"github.com/cutroom/cutroom-agent/internal/pipeline"
	"github.com/cutroom/cutroom-agent/internal/player"
	"github.com/cutroom/cutroom-agent/internal/preview"
	"github.com/cutroom/cutroom-agent/internal/stream"
)

const testToken = "test-token-0123456789"

type testEnv struct {
	cfg     ServerConfig
	router  http.Handler
	library *library.Service
	stub    *pipeline.StubFFmpeg
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	repo := library.NewRepository(database.Conn())
	require.NoError(t, repo.SetConfig(context.Background(), "auth_token", testToken))

	stub := pipeline.NewStubFFmpeg(logger)
	lib := library.NewService(repo, stub, logger)
	require.NoError(t, lib.Load(context.Background()))

	pl := player.New(media.NewFileSurface(stub, logger), lib.Sequence, logger)
	prev := preview.New(preview.Config{
		Surface:  media.NewFileSurface(stub, logger),
		Sequence: lib.Sequence,
		Logger:   logger,
	})
	exporter := export.NewRunner(repo, stub, lib.Sequence, t.TempDir(), logger)

	cfg := ServerConfig{
		Port:       0,
		Library:    lib,
		Repository: repo,
		Player:     pl,
		Preview:    prev,
		Stream:     stream.NewServer(logger),
		Exporter:   exporter,
		Hub:        NewHub(logger),
		Logger:     logger,
		StartTime:  time.Now(),
		DeviceID:   "test-device",
	}

	return &testEnv{cfg: cfg, router: NewRouter(cfg), library: lib, stub: stub}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+testToken)
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) addReadyClip(t *testing.T, name string) ClipResponse {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))

	rr := e.do(t, http.MethodPost, "/clips", AddClipRequest{Path: path})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var clip ClipResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &clip))

	require.Eventually(t, func() bool {
		for _, entry := range e.library.Sequence() {
			if entry.Clip.ID == clip.ID {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond, "clip never promoted")
	return clip
}

func TestHealth_NoAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "test-device", resp.DeviceID)
}

func TestAuth_RejectsMissingAndBadTokens(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/clips", nil)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/clips", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	rr = httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestClips_AddListDelete(t *testing.T) {
	env := newTestEnv(t)
	env.stub.StubDuration = 8

	clip := env.addReadyClip(t, "a.mp4")

	rr := env.do(t, http.MethodGet, "/clips", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var list ClipsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list.Clips, 1)
	assert.True(t, list.Clips[0].Ready)
	assert.Equal(t, 8.0, list.TotalDuration)
	assert.Equal(t, "00:08.00", list.Clips[0].DurationDisplay)

	rr = env.do(t, http.MethodDelete, "/clips/"+clip.ID, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = env.do(t, http.MethodDelete, "/clips/"+clip.ID, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestClips_AddValidation(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/clips", AddClipRequest{})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodPost, "/clips", AddClipRequest{Path: "/nope/missing.mp4"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestClips_TrimClampsWindow(t *testing.T) {
	env := newTestEnv(t)
	env.stub.StubDuration = 10

	clip := env.addReadyClip(t, "a.mp4")

	rr := env.do(t, http.MethodPut, "/clips/"+clip.ID+"/trim", TrimRequest{Start: 2, End: 50})
	require.Equal(t, http.StatusOK, rr.Code)

	var trimmed ClipResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &trimmed))
	assert.Equal(t, 2.0, trimmed.Start)
	assert.Equal(t, 10.0, trimmed.End)
}

func TestClips_Reorder(t *testing.T) {
	env := newTestEnv(t)
	env.stub.StubDuration = 10

	a := env.addReadyClip(t, "a.mp4")
	b := env.addReadyClip(t, "b.mp4")

	rr := env.do(t, http.MethodPut, "/clips/order", OrderRequest{ClipIDs: []string{b.ID, a.ID}})
	require.Equal(t, http.StatusNoContent, rr.Code)

	entries := env.library.Sequence()
	require.Len(t, entries, 2)
	assert.Equal(t, b.ID, entries[0].Clip.ID)

	rr = env.do(t, http.MethodPut, "/clips/order", OrderRequest{ClipIDs: []string{"phantom", a.ID}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestClips_MediaStreaming(t *testing.T) {
	env := newTestEnv(t)
	clip := env.addReadyClip(t, "a.mp4")

	rr := env.do(t, http.MethodGet, "/clips/"+clip.ID+"/media", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "bytes", rr.Header().Get("Accept-Ranges"))

	rr = env.do(t, http.MethodGet, "/clips/phantom/media", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPlayer_TransportEndpoints(t *testing.T) {
	env := newTestEnv(t)
	env.stub.StubDuration = 10
	env.addReadyClip(t, "a.mp4")

	rr := env.do(t, http.MethodGet, "/player", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var st PlayerResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.Equal(t, 10.0, st.Duration)
	assert.Equal(t, "00:10.00", st.DurationDisplay)

	rr = env.do(t, http.MethodPost, "/player/seek", SeekRequest{Time: 4})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodPost, "/player/volume", VolumeRequest{Muted: boolPtr(true)})
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.True(t, st.Muted)
}

func TestPreview_ThumbnailLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.stub.StubDuration = 10
	env.addReadyClip(t, "a.mp4")

	rr := env.do(t, http.MethodGet, "/preview/thumbnail", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(t, http.MethodPost, "/preview", SeekRequest{Time: 3})
	require.Equal(t, http.StatusOK, rr.Code)

	require.Eventually(t, func() bool {
		rec := env.do(t, http.MethodGet, "/preview/thumbnail", nil)
		return rec.Code == http.StatusOK
	}, 3*time.Second, 20*time.Millisecond, "thumbnail never rendered")

	rr = env.do(t, http.MethodGet, "/preview/thumbnail", nil)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.Equal(t, "00:03.00", rr.Header().Get("X-Preview-Time"))

	rr = env.do(t, http.MethodDelete, "/preview", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestExports_StartAndList(t *testing.T) {
	env := newTestEnv(t)
	env.stub.StubDuration = 10
	env.addReadyClip(t, "a.mp4")

	rr := env.do(t, http.MethodPost, "/export", export.Request{ProjectName: "Cut", Format: "edl"})
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	var job ExportResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &job))
	assert.Equal(t, "edl", job.Format)

	require.Eventually(t, func() bool {
		rec := env.do(t, http.MethodGet, "/exports/"+job.ID, nil)
		if rec.Code != http.StatusOK {
			return false
		}
		var got ExportResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			return false
		}
		return got.Status == library.ExportStatusCompleted
	}, 3*time.Second, 20*time.Millisecond, "export never completed")

	rr = env.do(t, http.MethodGet, "/exports", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var list ExportsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Len(t, list.Exports, 1)
}

func TestExports_EmptySequenceRejected(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodPost, "/export", export.Request{Format: "edl"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStatus_Summary(t *testing.T) {
	env := newTestEnv(t)
	env.stub.StubDuration = 6
	env.addReadyClip(t, "a.mp4")

	rr := env.do(t, http.MethodGet, "/status", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var st StatusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.Equal(t, 1, st.ClipCount)
	assert.Equal(t, 1, st.SequenceCount)
	assert.Equal(t, 6.0, st.TotalDuration)
	assert.Equal(t, "00:06.00", st.DurationDisplay)
}

func boolPtr(b bool) *bool { return &b }
