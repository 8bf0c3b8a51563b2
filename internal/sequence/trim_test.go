package sequence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClampTrim(t *testing.T) {
	clip := Clip{OriginalDuration: 10, FrameRate: 30}
	minDur := MinTrimDuration(30)

	tests := []struct {
		name       string
		start, end float64
		wantStart  float64
		wantEnd    float64
	}{
		{name: "valid window untouched", start: 1, end: 4, wantStart: 1, wantEnd: 4},
		{name: "negative start clamps", start: -2, end: 4, wantStart: 0, wantEnd: 4},
		{name: "end past duration clamps", start: 1, end: 15, wantStart: 1, wantEnd: 10},
		{name: "inverted window grows forward", start: 5, end: 3, wantStart: 5, wantEnd: 5 + minDur},
		{name: "zero window grows forward", start: 2, end: 2, wantStart: 2, wantEnd: 2 + minDur},
		{name: "degenerate at clip end pulls start back", start: 10, end: 10, wantStart: 10 - minDur, wantEnd: 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gotStart, gotEnd := ClampTrim(clip, tc.start, tc.end)
			assert.InDelta(t, tc.wantStart, gotStart, 1e-9)
			assert.InDelta(t, tc.wantEnd, gotEnd, 1e-9)
			assert.GreaterOrEqual(t, gotEnd-gotStart, minDur-1e-9,
				"window must never drop below one frame")
		})
	}
}

func TestMinTrimDuration_BadRate(t *testing.T) {
	assert.InDelta(t, 1.0/DefaultFrameRate, MinTrimDuration(0), 1e-9)
	assert.InDelta(t, 1.0/DefaultFrameRate, MinTrimDuration(-24), 1e-9)
	assert.InDelta(t, 1.0/60.0, MinTrimDuration(60), 1e-9)
}
