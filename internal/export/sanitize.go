package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/cutroom/cutroom-agent/internal/sequence"
	"github.com/cutroom/cutroom-agent/internal/timecode"
)

// nameRunes are the non-alphanumeric runes allowed in an export file name.
const nameRunes = " -_.,()"

// ExportName resolves the requested project name into a filesystem-safe base
// name. An empty or fully-stripped request falls back to a name stamped with
// the sequence's total duration, e.g. "Sequence 01_23.15"; the timecode colon
// folds to an underscore like any other reserved rune.
func ExportName(requested string, entries []sequence.Entry, maxLen int) string {
	if name := SanitizeName(requested, maxLen); name != "" {
		return name
	}
	stamp := timecode.Duration(sequence.TotalDuration(entries))
	return SanitizeName(fmt.Sprintf("Sequence %s", stamp), maxLen)
}

// SanitizeName drops control runes, folds anything outside the allowed set to
// underscores, and truncates to maxLen runes.
func SanitizeName(s string, maxLen int) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsControl(r):
			return -1
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return r
		case strings.ContainsRune(nameRunes, r):
			return r
		default:
			return '_'
		}
	}, s)

	cleaned = strings.TrimSpace(cleaned)
	if maxLen > 0 {
		if runes := []rune(cleaned); len(runes) > maxLen {
			cleaned = strings.TrimSpace(string(runes[:maxLen]))
		}
	}
	return cleaned
}

// ValidateOutputDir accepts only a clean, existing directory with no
// traversal elements. A caller-supplied directory is never created on their
// behalf; only the agent's own default export dir is made on demand.
func ValidateOutputDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("output_dir is required")
	}
	if dir != filepath.Clean(dir) {
		return fmt.Errorf("output_dir must be a clean path")
	}
	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if part == ".." {
			return fmt.Errorf("output_dir cannot contain path traversal")
		}
	}

	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		return fmt.Errorf("output_dir does not exist")
	case err != nil:
		return fmt.Errorf("invalid output_dir: %w", err)
	case !info.IsDir():
		return fmt.Errorf("output_dir is not a directory")
	}
	return nil
}
