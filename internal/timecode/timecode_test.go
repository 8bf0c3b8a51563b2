package timecode

import "testing"

func TestSeconds(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want string
	}{
		{name: "zero", in: 0, want: "00:00"},
		{name: "fractional", in: 0.3, want: "00:18"},
		{name: "whole second", in: 2, want: "02:00"},
		{name: "half second", in: 1.5, want: "01:30"},
		{name: "carry into next second", in: 0.9999, want: "01:00"},
		{name: "negative clamps", in: -1.2, want: "00:00"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Seconds(tc.in); got != tc.want {
				t.Fatalf("Seconds(%v) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestDuration(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want string
	}{
		{name: "zero", in: 0, want: "00:00.00"},
		{name: "minute and a half second", in: 65.5, want: "01:05.30"},
		{name: "under a minute", in: 9.25, want: "00:09.15"},
		{name: "exact minute", in: 60, want: "01:00.00"},
		{name: "carry at minute boundary", in: 59.999, want: "01:00.00"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Duration(tc.in); got != tc.want {
				t.Fatalf("Duration(%v) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
