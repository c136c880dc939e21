package registration

import (
	"regexp"
	"strconv"
	"strings"
)

// pointPattern matches the WKT-style "POINT (<lon> <lat>)" prefix written by
// the registration export. Anchored at the start only, like the export's
// consumers have always parsed it.
var pointPattern = regexp.MustCompile(`^POINT \((-?\d+\.?\d*) (-?\d+\.?\d*)\)`)

// ParsePoint extracts (latitude, longitude) from a vehicle location. The
// source text is longitude first; the result is latitude first. Either both
// values are returned or neither is.
func ParsePoint(raw *string) (lat, lon *float64) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	m := pointPattern.FindStringSubmatch(*raw)
	if m == nil {
		return nil, nil
	}
	longitude, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil, nil
	}
	latitude, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return nil, nil
	}
	return &latitude, &longitude
}
