package core

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the canonical persisted timestamp format. Stored as
// TEXT, it orders lexicographically the same as chronologically, which is
// what the range-bounded aggregate queries rely on.
const TimestampLayout = "2006-01-02 15:04:05"

var timestampLayouts = []string{
	TimestampLayout,
	"2006-01-02T15:04:05",
	time.RFC3339,
	dateLayout,
}

var errNotInteger = errors.New("not an integer")

// CastInt converts a CSV field to an integer. Surrounding whitespace is
// tolerated, as are float-shaped strings with an integral value ("42.0").
func CastInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || f < math.MinInt64 || f > math.MaxInt64 {
		return 0, errNotInteger
	}
	return int64(f), nil
}

// CastTimestamp converts a CSV field to a timestamp, trying the accepted
// layouts in order. A bare date parses to midnight.
func CastTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// CastAmount converts a CSV field to a nullable amount. An empty field
// (after trimming) is NULL, not an error.
func CastAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return NullAmount(), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Amount{}, err
	}
	return NewAmount(f), nil
}
