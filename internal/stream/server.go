// Package stream serves clip source files over HTTP with byte-range support
// so the browser UI can seek inside a clip without downloading the whole
// file.
package stream

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
)

type Server struct {
	logger *slog.Logger
}

func NewServer(logger *slog.Logger) *Server {
	return &Server{logger: logger}
}

// ServeFile streams a clip's source media, honoring a single Range header.
// An invalid Range header degrades to a full-content response per RFC 9110.
func (s *Server) ServeFile(w http.ResponseWriter, r *http.Request, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			http.Error(w, "media file not found", http.StatusNotFound)
			return nil
		}
		return fmt.Errorf("failed to open media file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat media file: %w", err)
	}

	size := stat.Size()
	contentType := mime.TypeByExtension(filepath.Ext(filePath))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", contentType)

	byteRange, err := ParseRange(r.Header.Get("Range"), size)
	if err == ErrUnsatisfiable {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "Range Not Satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	}

	if byteRange == nil {
		w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
		w.WriteHeader(http.StatusOK)
		if _, err := io.Copy(w, file); err != nil {
			s.logger.Debug("media stream aborted", "path", filePath, "error", err)
		}
		return nil
	}

	if _, err := file.Seek(byteRange.Start, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek media file: %w", err)
	}

	w.Header().Set("Content-Length", fmt.Sprintf("%d", byteRange.Length()))
	w.Header().Set("Content-Range", byteRange.ContentRange(size))
	w.WriteHeader(http.StatusPartialContent)

	if _, err := io.CopyN(w, file, byteRange.Length()); err != nil {
		s.logger.Debug("media stream aborted", "path", filePath, "error", err)
	}
	return nil
}
