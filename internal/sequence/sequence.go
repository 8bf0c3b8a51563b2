// Package sequence derives the global playback timeline from an ordered clip
// list and maps positions between the global axis and a single clip's own
// time axis.
package sequence

import "time"

// Clip is one source media item plus its trim window. Start and End are
// positions on the clip's own (untrimmed) axis, in seconds, with
// 0 <= Start < End <= OriginalDuration once metadata has resolved. A freshly
// imported clip carries OriginalDuration=0 and Start=End=0 until probed.
type Clip struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	SourcePath       string    `json:"source_path"`
	OriginalDuration float64   `json:"original_duration"`
	Start            float64   `json:"start"`
	End              float64   `json:"end"`
	FrameRate        float64   `json:"frame_rate"`
	Position         int       `json:"position"`
	CreatedAt        time.Time `json:"created_at"`
}

// TrimmedDuration returns the length of the clip's trim window.
func (c Clip) TrimmedDuration() float64 {
	return c.End - c.Start
}

// Ready reports whether the clip has usable metadata and a non-degenerate
// trim window. Clips that are not ready contribute no sequence entry.
func (c Clip) Ready() bool {
	return c.End > c.Start
}

// Entry is a clip annotated with its span on the global timeline.
// SequenceEnd - SequenceStart always equals End - Start.
type Entry struct {
	Clip          Clip    `json:"clip"`
	SequenceStart float64 `json:"sequence_start"`
	SequenceEnd   float64 `json:"sequence_end"`
}

// Derive computes sequence entries as a left-to-right cumulative sum over the
// clip list in list order. It is a pure function and must be re-run whenever
// the list identity, ordering, or any trim window changes; entries are never
// patched incrementally.
func Derive(clips []Clip) []Entry {
	entries := make([]Entry, 0, len(clips))
	cursor := 0.0
	for _, c := range clips {
		if !c.Ready() {
			continue
		}
		next := cursor + c.TrimmedDuration()
		entries = append(entries, Entry{
			Clip:          c,
			SequenceStart: cursor,
			SequenceEnd:   next,
		})
		cursor = next
	}
	return entries
}

// TotalDuration returns the global timeline length, 0 for an empty sequence.
func TotalDuration(entries []Entry) float64 {
	if len(entries) == 0 {
		return 0
	}
	return entries[len(entries)-1].SequenceEnd
}

// GlobalToLocal resolves a global timeline position to the entry whose
// half-open span [SequenceStart, SequenceEnd) contains it and the matching
// local time on that clip's source axis. Out-of-range input clamps rather
// than errors: negative positions resolve to the first entry at its trimmed
// start, positions at or past the total duration to the last entry at its
// trimmed end. The bool is false only for an empty sequence.
func GlobalToLocal(entries []Entry, globalTime float64) (Entry, float64, bool) {
	if len(entries) == 0 {
		return Entry{}, 0, false
	}

	globalTime = ClampGlobal(entries, globalTime)

	entry := entries[len(entries)-1]
	for _, e := range entries {
		if globalTime >= e.SequenceStart && globalTime < e.SequenceEnd {
			entry = e
			break
		}
	}

	local := entry.Clip.Start + (globalTime - entry.SequenceStart)
	local = clamp(local, entry.Clip.Start, entry.Clip.End)
	return entry, local, true
}

// LocalToGlobal is the inverse mapping. The local time is clamped to the
// entry's trim window first, absorbing floating-point overshoot at clip
// boundaries.
func LocalToGlobal(entry Entry, localTime float64) float64 {
	localTime = clamp(localTime, entry.Clip.Start, entry.Clip.End)
	return entry.SequenceStart + (localTime - entry.Clip.Start)
}

// NextEntry returns the entry following the one holding the given clip id,
// wrapping from the last entry back to the first. Used for the natural
// end-of-clip advance during playback. The bool is false for an empty
// sequence or an unknown clip id.
func NextEntry(entries []Entry, clipID string) (Entry, bool) {
	for i, e := range entries {
		if e.Clip.ID == clipID {
			return entries[(i+1)%len(entries)], true
		}
	}
	return Entry{}, false
}

// ClampGlobal clamps a global position into [0, TotalDuration].
func ClampGlobal(entries []Entry, t float64) float64 {
	return clamp(t, 0, TotalDuration(entries))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
