package registration

import "strconv"

// RawRecord is one source row keyed by column header. A missing key and an
// absent value are the same thing to the normalizer.
type RawRecord map[string]*string

// Field returns the raw value for a column, or nil when the column is absent.
func (r RawRecord) Field(name string) *string {
	if r == nil {
		return nil
	}
	return r[name]
}

// RangeCategory buckets a vehicle's electric range.
type RangeCategory string

const (
	RangeUnknown RangeCategory = "Unknown"
	RangeShort   RangeCategory = "Short Range"
	RangeMedium  RangeCategory = "Medium Range"
	RangeLong    RangeCategory = "Long Range"
)

// Record is the canonical, analysis-ready registration. Nil pointers encode
// absence and serialize as JSON null; integer fields default to zero.
type Record struct {
	VIN                 *string       `json:"vin"`
	County              *string       `json:"county"`
	City                *string       `json:"city"`
	State               *string       `json:"state"`
	PostalCode          *string       `json:"postal_code"`
	Make                *string       `json:"make"`
	Model               *string       `json:"model"`
	ElectricVehicleType *string       `json:"electric_vehicle_type"`
	CAFVEligibility     *string       `json:"cafv_eligibility"`
	ElectricUtility     *string       `json:"electric_utility"`
	ModelYear           int           `json:"model_year"`
	ElectricRange       int           `json:"electric_range"`
	BaseMSRP            int           `json:"base_msrp"`
	LegislativeDistrict int           `json:"legislative_district"`
	DOLVehicleID        int           `json:"dol_vehicle_id"`
	CensusTract         *string       `json:"census_tract"`
	Latitude            *float64      `json:"latitude"`
	Longitude           *float64      `json:"longitude"`
	IsBEV               *bool         `json:"is_bev"`
	RangeCategory       RangeCategory `json:"range_category"`
	IsCAFVEligible      *bool         `json:"is_cafv_eligible"`
}

// Source column headers as they appear in the state registration export.
const (
	ColumnVIN                 = "VIN (1-10)"
	ColumnCounty              = "County"
	ColumnCity                = "City"
	ColumnState               = "State"
	ColumnPostalCode          = "Postal Code"
	ColumnModelYear           = "Model Year"
	ColumnMake                = "Make"
	ColumnModel               = "Model"
	ColumnElectricVehicleType = "Electric Vehicle Type"
	ColumnCAFVEligibility     = "Clean Alternative Fuel Vehicle (CAFV) Eligibility"
	ColumnElectricRange       = "Electric Range"
	ColumnBaseMSRP            = "Base MSRP"
	ColumnLegislativeDistrict = "Legislative District"
	ColumnDOLVehicleID        = "DOL Vehicle ID"
	ColumnVehicleLocation     = "Vehicle Location"
	ColumnElectricUtility     = "Electric Utility"
	ColumnCensusTract         = "2020 Census Tract"
)

// deref returns the pointed-to string or "" for absent values. Only used for
// log and progress output, never for derived-field decisions.
func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Sample is the short make/model/city identification used in progress output.
func (r *Record) Sample() (vehicleMake, model, city string) {
	return deref(r.Make), deref(r.Model), deref(r.City)
}

// MessageKey is the broker partition key: the DOL vehicle id when known.
// Vehicles without one get no key and are spread across partitions.
func (r *Record) MessageKey() []byte {
	if r.DOLVehicleID == 0 {
		return nil
	}
	return strconv.AppendInt(nil, int64(r.DOLVehicleID), 10)
}
