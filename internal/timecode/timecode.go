// Package timecode formats fractional-second positions as display timecodes
// at a fixed 60-subdivision frame granularity. The frame component is a
// display convention and is independent of any clip's source frame rate.
package timecode

import (
	"fmt"
	"math"
)

// Subdivisions is the fixed display granularity: frames per second as shown
// on screen and in export names, regardless of the media's real rate.
const Subdivisions = 60

// totalFrames rounds a seconds value onto the 60-per-second grid. Rounding
// the total (not the fractional part) lets 0.9999s carry into the next
// second instead of printing a frame count of 60.
func totalFrames(seconds float64) int {
	if seconds < 0 {
		seconds = 0
	}
	return int(math.Round(seconds * Subdivisions))
}

// Seconds formats a position as "SS:FF", e.g. 0.3 -> "00:18".
func Seconds(t float64) string {
	total := totalFrames(t)
	return fmt.Sprintf("%02d:%02d", total/Subdivisions, total%Subdivisions)
}

// Duration formats a duration as "MM:SS.FF", e.g. 65.5 -> "01:05.30".
func Duration(t float64) string {
	total := totalFrames(t)
	frames := total % Subdivisions
	seconds := total / Subdivisions
	return fmt.Sprintf("%02d:%02d.%02d", seconds/60, seconds%60, frames)
}
