package sequence

// DefaultFrameRate is assumed when a clip's probed rate is missing or bogus.
const DefaultFrameRate = 30.0

// MinTrimDuration returns the smallest allowed trim window for a clip: one
// frame at the clip's own source rate.
func MinTrimDuration(frameRate float64) float64 {
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}
	return 1.0 / frameRate
}

// ClampTrim adjusts a requested trim window so it stays inside the clip's
// original duration and never drops below one frame. Invalid requests are
// clamped to the nearest valid window, never rejected, so a bad request can
// not corrupt the stored Start/End.
func ClampTrim(c Clip, start, end float64) (float64, float64) {
	minDur := MinTrimDuration(c.FrameRate)

	start = clamp(start, 0, c.OriginalDuration)
	end = clamp(end, 0, c.OriginalDuration)

	if end-start < minDur {
		// Grow the window forward from start; if the clip end is in the
		// way, pull start back instead.
		end = start + minDur
		if end > c.OriginalDuration {
			end = c.OriginalDuration
			start = end - minDur
			if start < 0 {
				start = 0
			}
		}
	}
	return start, end
}
