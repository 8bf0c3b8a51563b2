package stream

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidRange  = errors.New("invalid range format")
	ErrUnsatisfiable = errors.New("range not satisfiable")
)

// ByteRange is an inclusive byte span within a file of known size.
type ByteRange struct {
	Start int64
	End   int64
}

func (r ByteRange) Length() int64 {
	return r.End - r.Start + 1
}

func (r ByteRange) ContentRange(total int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, total)
}

// ParseRange resolves a Range request header against a file size. A nil
// result with nil error means no range was requested. Multi-range requests
// collapse to their first span; suffix ranges ("-500") address the file tail.
func ParseRange(header string, size int64) (*ByteRange, error) {
	if header == "" {
		return nil, nil
	}

	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return nil, ErrInvalidRange
	}
	if first, _, found := strings.Cut(spec, ","); found {
		spec = strings.TrimSpace(first)
	}

	startStr, endStr, found := strings.Cut(spec, "-")
	if !found {
		return nil, ErrInvalidRange
	}

	var start, end int64
	if startStr == "" {
		suffixLen, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || suffixLen <= 0 {
			return nil, ErrInvalidRange
		}
		start = size - suffixLen
		if start < 0 {
			start = 0
		}
		end = size - 1
	} else {
		var err error
		start, err = strconv.ParseInt(startStr, 10, 64)
		if err != nil || start < 0 {
			return nil, ErrInvalidRange
		}
		if endStr == "" {
			end = size - 1
		} else {
			end, err = strconv.ParseInt(endStr, 10, 64)
			if err != nil {
				return nil, ErrInvalidRange
			}
		}
	}

	if start > end || start >= size {
		return nil, ErrUnsatisfiable
	}
	if end >= size {
		end = size - 1
	}

	return &ByteRange{Start: start, End: end}, nil
}
