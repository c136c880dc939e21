package registration

import "strings"

const (
	bevMarker         = "Battery Electric Vehicle"
	cafvEligible      = "Eligible"
	cafvNotEligible   = "Not eligible"
	shortRangeCeiling = 100
	midRangeCeiling   = 200
)

// DeriveIsBEV reports whether the vehicle type names a battery electric
// vehicle. Absent type in, absent answer out.
func DeriveIsBEV(evType *string) *bool {
	if evType == nil {
		return nil
	}
	isBEV := strings.Contains(*evType, bevMarker)
	return &isBEV
}

// DeriveRangeCategory buckets electric range. Zero means the range was never
// researched, not that the vehicle has none.
func DeriveRangeCategory(electricRange int) RangeCategory {
	switch {
	case electricRange == 0:
		return RangeUnknown
	case electricRange < shortRangeCeiling:
		return RangeShort
	case electricRange < midRangeCeiling:
		return RangeMedium
	default:
		return RangeLong
	}
}

// DeriveCAFVEligible collapses the free-form eligibility text into a
// tri-state. Rule order matters for text carrying both markers: the positive
// branch requires the negative marker to be missing, so such text is false.
func DeriveCAFVEligible(cafv *string) *bool {
	if cafv == nil {
		return nil
	}
	text := *cafv
	var eligible bool
	switch {
	case strings.Contains(text, cafvEligible) && !strings.Contains(text, cafvNotEligible):
		eligible = true
	case strings.Contains(text, cafvNotEligible):
		eligible = false
	default:
		return nil
	}
	return &eligible
}

// IsPublishable is the minimum-field gate: VIN, make and model must all be
// present.
func IsPublishable(rec Record) bool {
	return rec.VIN != nil && rec.Make != nil && rec.Model != nil
}
