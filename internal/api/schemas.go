package api

import (
	"time"

	"github.com/cutroom/cutroom-agent/internal/library"
	"github.com/cutroom/cutroom-agent/internal/sequence"
	"github.com/cutroom/cutroom-agent/internal/timecode"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	DeviceID string `json:"device_id"`
}

type StatusResponse struct {
	Player          PlayerResponse `json:"player"`
	ClipCount       int            `json:"clip_count"`
	SequenceCount   int            `json:"sequence_count"`
	TotalDuration   float64        `json:"total_duration"`
	DurationDisplay string         `json:"duration_display"`
	ExportsRunning  int            `json:"exports_running"`
}

type PlayerResponse struct {
	State           string  `json:"state"`
	Position        float64 `json:"position"`
	PositionDisplay string  `json:"position_display"`
	Duration        float64 `json:"duration"`
	DurationDisplay string  `json:"duration_display"`
	Playing         bool    `json:"playing"`
	ActiveClipID    string  `json:"active_clip_id,omitempty"`
	Muted           bool    `json:"muted"`
	Volume          float64 `json:"volume"`
}

type AddClipRequest struct {
	Path string `json:"path"`
}

type ClipResponse struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	SourcePath       string  `json:"source_path"`
	OriginalDuration float64 `json:"original_duration"`
	Start            float64 `json:"start"`
	End              float64 `json:"end"`
	FrameRate        float64 `json:"frame_rate"`
	Position         int     `json:"position"`
	Ready            bool    `json:"ready"`
	DurationDisplay  string  `json:"duration_display"`
	CreatedAt        string  `json:"created_at"`
}

type ClipsResponse struct {
	Clips         []ClipResponse `json:"clips"`
	TotalDuration float64        `json:"total_duration"`
}

type TrimRequest struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

type OrderRequest struct {
	ClipIDs []string `json:"clip_ids"`
}

type SeekRequest struct {
	Time float64 `json:"time"`
}

type VolumeRequest struct {
	Muted  *bool    `json:"muted,omitempty"`
	Volume *float64 `json:"volume,omitempty"`
}

type PreviewConfigRequest struct {
	AspectW int    `json:"aspect_w,omitempty"`
	AspectH int    `json:"aspect_h,omitempty"`
	FitMode string `json:"fit_mode,omitempty"`
}

type ExportResponse struct {
	ID         string `json:"id"`
	Format     string `json:"format"`
	Status     string `json:"status"`
	OutputPath string `json:"output_path,omitempty"`
	Error      string `json:"error,omitempty"`
	ClipCount  int    `json:"clip_count"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

type ExportsResponse struct {
	Exports []ExportResponse `json:"exports"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func ClipToResponse(c sequence.Clip) ClipResponse {
	return ClipResponse{
		ID:               c.ID,
		Name:             c.Name,
		SourcePath:       c.SourcePath,
		OriginalDuration: c.OriginalDuration,
		Start:            c.Start,
		End:              c.End,
		FrameRate:        c.FrameRate,
		Position:         c.Position,
		Ready:            c.Ready(),
		DurationDisplay:  timecode.Duration(c.TrimmedDuration()),
		CreatedAt:        c.CreatedAt.Format(time.RFC3339),
	}
}

func ExportToResponse(e *library.Export) ExportResponse {
	return ExportResponse{
		ID:         e.ID,
		Format:     e.Format,
		Status:     e.Status,
		OutputPath: e.OutputPath,
		Error:      e.Error,
		ClipCount:  e.ClipCount,
		CreatedAt:  e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  e.UpdatedAt.Format(time.RFC3339),
	}
}
