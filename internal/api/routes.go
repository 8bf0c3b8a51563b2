package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cutroom/cutroom-agent/internal/config"
	"github.com/cutroom/cutroom-agent/internal/export"
	"github.com/cutroom/cutroom-agent/internal/library"
	"github.com/cutroom/cutroom-agent/internal/preview"
	"github.com/cutroom/cutroom-agent/internal/timecode"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))

		r.Get("/clips", listClipsHandler(cfg))
		r.Post("/clips", addClipHandler(cfg))
		r.Delete("/clips/{id}", deleteClipHandler(cfg))
		r.Put("/clips/{id}/trim", trimClipHandler(cfg))
		r.Put("/clips/order", orderClipsHandler(cfg))
		r.Get("/clips/{id}/media", mediaHandler(cfg))

		r.Get("/player", playerStatusHandler(cfg))
		r.Post("/player/play", playHandler(cfg))
		r.Post("/player/pause", pauseHandler(cfg))
		r.Post("/player/seek", seekHandler(cfg))
		r.Post("/player/scrub/start", scrubStartHandler(cfg))
		r.Post("/player/scrub/move", scrubMoveHandler(cfg))
		r.Post("/player/scrub/end", scrubEndHandler(cfg))
		r.Post("/player/volume", volumeHandler(cfg))

		r.Post("/preview", previewAtHandler(cfg))
		r.Delete("/preview", endPreviewHandler(cfg))
		r.Get("/preview/thumbnail", thumbnailHandler(cfg))
		r.Put("/preview/config", previewConfigHandler(cfg))

		r.Post("/export", startExportHandler(cfg))
		r.Get("/exports", listExportsHandler(cfg))
		r.Get("/exports/{id}", getExportHandler(cfg))

		if cfg.Hub != nil {
			r.Get("/ws", cfg.Hub.Handler())
		}
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  config.Version,
			UptimeS:  uptime,
			DeviceID: cfg.DeviceID,
		})
	}
}

func playerResponse(cfg ServerConfig) PlayerResponse {
	st := cfg.Player.Status()
	return PlayerResponse{
		State:           st.State,
		Position:        st.Position,
		PositionDisplay: timecode.Duration(st.Position),
		Duration:        st.Duration,
		DurationDisplay: timecode.Duration(st.Duration),
		Playing:         st.Playing,
		ActiveClipID:    st.ActiveClipID,
		Muted:           st.Muted,
		Volume:          st.Volume,
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		clips, _ := cfg.Library.Clips(ctx)
		entries := cfg.Library.Sequence()
		exports, _ := cfg.Repository.ListExports(ctx, 50)

		running := 0
		for _, e := range exports {
			if e.Status == library.ExportStatusRunning || e.Status == library.ExportStatusPending {
				running++
			}
		}

		total := cfg.Library.TotalDuration()
		WriteJSON(w, http.StatusOK, StatusResponse{
			Player:          playerResponse(cfg),
			ClipCount:       len(clips),
			SequenceCount:   len(entries),
			TotalDuration:   total,
			DurationDisplay: timecode.Duration(total),
			ExportsRunning:  running,
		})
	}
}

func listClipsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clips, err := cfg.Library.Clips(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list clips", "INTERNAL_ERROR")
			return
		}

		resp := ClipsResponse{
			Clips:         make([]ClipResponse, len(clips)),
			TotalDuration: cfg.Library.TotalDuration(),
		}
		for i, c := range clips {
			resp.Clips[i] = ClipToResponse(c)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func addClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddClipRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Path == "" {
			WriteError(w, http.StatusBadRequest, "path is required", "BAD_REQUEST")
			return
		}

		clip, err := cfg.Library.AddClip(r.Context(), req.Path)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		WriteJSON(w, http.StatusCreated, ClipToResponse(*clip))
	}
}

func deleteClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "clip id required", "BAD_REQUEST")
			return
		}

		if err := cfg.Library.RemoveClip(r.Context(), id); err != nil {
			WriteError(w, http.StatusNotFound, err.Error(), "NOT_FOUND")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func trimClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var req TrimRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		clip, err := cfg.Library.SetTrim(r.Context(), id, req.Start, req.End)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		WriteJSON(w, http.StatusOK, ClipToResponse(*clip))
	}
}

func orderClipsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req OrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if len(req.ClipIDs) == 0 {
			WriteError(w, http.StatusBadRequest, "clip_ids is required", "BAD_REQUEST")
			return
		}

		if err := cfg.Library.Reorder(r.Context(), req.ClipIDs); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func mediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		clip, err := cfg.Library.GetClip(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if clip == nil {
			WriteError(w, http.StatusNotFound, "clip not found", "NOT_FOUND")
			return
		}

		if err := cfg.Stream.ServeFile(w, r, clip.SourcePath); err != nil {
			cfg.Logger.Error("media stream error", "error", err, "clip_id", id)
		}
	}
}

func playerStatusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, playerResponse(cfg))
	}
}

func playHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg.Player.Play()
		WriteJSON(w, http.StatusOK, playerResponse(cfg))
	}
}

func pauseHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg.Player.Pause()
		WriteJSON(w, http.StatusOK, playerResponse(cfg))
	}
}

func decodeSeek(w http.ResponseWriter, r *http.Request) (SeekRequest, bool) {
	var req SeekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return req, false
	}
	return req, true
}

func seekHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeSeek(w, r)
		if !ok {
			return
		}
		cfg.Player.Seek(req.Time)
		WriteJSON(w, http.StatusOK, playerResponse(cfg))
	}
}

func scrubStartHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeSeek(w, r)
		if !ok {
			return
		}
		cfg.Player.BeginScrub(req.Time)
		WriteJSON(w, http.StatusOK, playerResponse(cfg))
	}
}

func scrubMoveHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeSeek(w, r)
		if !ok {
			return
		}
		cfg.Player.Scrub(req.Time)
		WriteJSON(w, http.StatusOK, playerResponse(cfg))
	}
}

func scrubEndHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg.Player.EndScrub()
		WriteJSON(w, http.StatusOK, playerResponse(cfg))
	}
}

func volumeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req VolumeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Muted != nil {
			cfg.Player.SetMuted(*req.Muted)
		}
		if req.Volume != nil {
			cfg.Player.SetVolume(*req.Volume)
		}
		WriteJSON(w, http.StatusOK, playerResponse(cfg))
	}
}

func previewAtHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeSeek(w, r)
		if !ok {
			return
		}
		cfg.Player.PreviewAt(req.Time)
		cfg.Preview.Request(req.Time)
		WriteJSON(w, http.StatusOK, playerResponse(cfg))
	}
}

func endPreviewHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg.Preview.Cancel()
		cfg.Player.EndPreview()
		WriteJSON(w, http.StatusOK, playerResponse(cfg))
	}
}

func thumbnailHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		thumb := cfg.Preview.Thumbnail()
		if thumb == nil {
			WriteError(w, http.StatusNotFound, "no thumbnail rendered yet", "NOT_FOUND")
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("X-Preview-Time", timecode.Duration(thumb.GlobalTime))
		w.WriteHeader(http.StatusOK)
		w.Write(thumb.PNG)
	}
}

func previewConfigHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PreviewConfigRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.AspectW > 0 && req.AspectH > 0 {
			cfg.Preview.SetAspect(req.AspectW, req.AspectH)
		}
		if req.FitMode != "" {
			cfg.Preview.SetFitMode(preview.FitMode(req.FitMode))
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func startExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req export.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		job, err := cfg.Exporter.Start(r.Context(), req)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		WriteJSON(w, http.StatusAccepted, ExportToResponse(job))
	}
}

func listExportsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		exports, err := cfg.Repository.ListExports(r.Context(), 50)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list exports", "INTERNAL_ERROR")
			return
		}

		resp := ExportsResponse{Exports: make([]ExportResponse, len(exports))}
		for i, e := range exports {
			resp.Exports[i] = ExportToResponse(e)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func getExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		job, err := cfg.Repository.GetExport(r.Context(), id)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if job == nil {
			WriteError(w, http.StatusNotFound, "export not found", "NOT_FOUND")
			return
		}

		WriteJSON(w, http.StatusOK, ExportToResponse(job))
	}
}
