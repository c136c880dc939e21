package registration

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// CoerceText trims raw and returns nil when nothing is left.
func CoerceText(raw *string) *string {
	if raw == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// CoerceInteger parses raw as an integer, falling back to a truncated decimal
// parse ("2020.0" -> 2020). Any failure yields def.
func CoerceInteger(raw *string, def int) int {
	text := CoerceText(raw)
	if text == nil {
		return def
	}
	n, err := strconv.Atoi(*text)
	if err == nil {
		return n
	}
	if errors.Is(err, strconv.ErrRange) {
		return def
	}
	f, err := strconv.ParseFloat(*text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	// float64 cannot hold MaxInt64; 2^63 is the first value that does not fit.
	truncated := math.Trunc(f)
	if truncated >= 1<<63 || truncated < -(1<<63) {
		return def
	}
	return int(truncated)
}
