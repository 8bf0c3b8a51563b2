package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/cutroom/cutroom-agent/internal/sequence"
)

// GenerateEDL renders the sequence as a CMX3600-style edit decision list.
// Source timecodes come from each clip's own axis, record timecodes from the
// cumulative global timeline.
func GenerateEDL(entries []sequence.Entry, title string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = int(sequence.DefaultFrameRate)
	}

	isDropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01

	lines := []string{fmt.Sprintf("TITLE: %s", title)}
	if isDropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	for i, e := range entries {
		srcIn := secondsToTimecode(e.Clip.Start, fps)
		srcOut := secondsToTimecode(e.Clip.End, fps)
		recIn := secondsToTimecode(e.SequenceStart, fps)
		recOut := secondsToTimecode(e.SequenceEnd, fps)

		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, "AX", "V", srcIn, srcOut, recIn, recOut),
			fmt.Sprintf("* FROM CLIP NAME:  %s", e.Clip.Name),
			fmt.Sprintf("* MEDIA PATH:  %s", e.Clip.SourcePath),
		)
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func secondsToTimecode(t float64, fps int) string {
	totalFrames := int(math.Round(t * float64(fps)))
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	seconds := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, seconds, frames)
}
