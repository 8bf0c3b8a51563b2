package library

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	ExportFormatMP4 = "mp4"
	ExportFormatEDL = "edl"

	ExportStatusPending   = "pending"
	ExportStatusRunning   = "running"
	ExportStatusCompleted = "completed"
	ExportStatusFailed    = "failed"
)

// Export is one render or EDL job and its lifecycle record.
type Export struct {
	ID         string    `json:"id"`
	Format     string    `json:"format"`
	Status     string    `json:"status"`
	OutputPath string    `json:"output_path,omitempty"`
	Error      string    `json:"error,omitempty"`
	ClipCount  int       `json:"clip_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mov":  true,
	".mkv":  true,
	".webm": true,
	".m4v":  true,
}

func NewID() string {
	return uuid.NewString()
}

func IsVideoFile(filename string) bool {
	return VideoExtensions[strings.ToLower(filepath.Ext(filename))]
}
