package stream

import "testing"

func TestParseRange(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		size      int64
		wantStart int64
		wantEnd   int64
		wantNil   bool
		wantErr   error
	}{
		{"empty header", "", 1000, 0, 0, true, nil},
		{"full range", "bytes=0-999", 1000, 0, 999, false, nil},
		{"open end", "bytes=500-", 1000, 500, 999, false, nil},
		{"suffix range", "bytes=-500", 1000, 500, 999, false, nil},
		{"single byte", "bytes=0-0", 1000, 0, 0, false, nil},
		{"middle range", "bytes=100-199", 1000, 100, 199, false, nil},
		{"end clamped to size", "bytes=0-2000", 1000, 0, 999, false, nil},
		{"suffix larger than file", "bytes=-2000", 500, 0, 499, false, nil},
		{"last byte", "bytes=999-", 1000, 999, 999, false, nil},
		{"multi range takes first", "bytes=0-99, 200-299", 1000, 0, 99, false, nil},

		{"start at size", "bytes=1000-", 1000, 0, 0, false, ErrUnsatisfiable},
		{"span beyond size", "bytes=1500-2000", 1000, 0, 0, false, ErrUnsatisfiable},
		{"no unit", "invalid", 1000, 0, 0, false, ErrInvalidRange},
		{"wrong unit", "chars=0-100", 1000, 0, 0, false, ErrInvalidRange},
		{"garbage start", "bytes=abc-100", 1000, 0, 0, false, ErrInvalidRange},
		{"garbage end", "bytes=0-abc", 1000, 0, 0, false, ErrInvalidRange},
		{"zero suffix", "bytes=-0", 1000, 0, 0, false, ErrInvalidRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRange(tt.header, tt.size)

			if tt.wantErr != nil {
				if err != tt.wantErr {
					t.Errorf("ParseRange() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRange() unexpected error: %v", err)
			}
			if tt.wantNil {
				if got != nil {
					t.Errorf("ParseRange() = %v, want nil", got)
				}
				return
			}
			if got == nil {
				t.Fatal("ParseRange() = nil, want non-nil")
			}
			if got.Start != tt.wantStart || got.End != tt.wantEnd {
				t.Errorf("ParseRange() = {%d, %d}, want {%d, %d}", got.Start, got.End, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestByteRange_Length(t *testing.T) {
	tests := []struct {
		start, end, want int64
	}{
		{0, 99, 100},
		{0, 0, 1},
		{500, 999, 500},
	}
	for _, tt := range tests {
		r := ByteRange{Start: tt.start, End: tt.end}
		if got := r.Length(); got != tt.want {
			t.Errorf("Length() = %d, want %d", got, tt.want)
		}
	}
}

func TestByteRange_ContentRange(t *testing.T) {
	r := ByteRange{Start: 500, End: 999}
	if got := r.ContentRange(1000); got != "bytes 500-999/1000" {
		t.Errorf("ContentRange() = %s", got)
	}
}
