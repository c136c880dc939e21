package registration

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool         { return &b }
func floatPtr(f float64) *float64 { return &f }

func teslaRow() RawRecord {
	return RawRecord{
		ColumnVIN:                 ptr("5YJ3E1EB4K"),
		ColumnCounty:              ptr("King"),
		ColumnCity:                ptr("Seattle "),
		ColumnState:               ptr("WA"),
		ColumnPostalCode:          ptr("98103"),
		ColumnModelYear:           ptr("2019"),
		ColumnMake:                ptr("TESLA"),
		ColumnModel:               ptr("MODEL 3"),
		ColumnElectricVehicleType: ptr("Battery Electric Vehicle (BEV)"),
		ColumnCAFVEligibility:     ptr("Clean Alternative Fuel Vehicle Eligible"),
		ColumnElectricRange:       ptr("220"),
		ColumnBaseMSRP:            ptr("0"),
		ColumnLegislativeDistrict: ptr("43.0"),
		ColumnDOLVehicleID:        ptr("478093654"),
		ColumnVehicleLocation:     ptr("POINT (-122.34301 47.659185)"),
		ColumnElectricUtility:     ptr("CITY OF SEATTLE - (WA)|CITY OF TACOMA - (WA)"),
		ColumnCensusTract:         ptr("53033004601"),
	}
}

func TestNormalize_FullRow(t *testing.T) {
	got := Normalize(teslaRow())

	want := Record{
		VIN:                 ptr("5YJ3E1EB4K"),
		County:              ptr("King"),
		City:                ptr("Seattle"),
		State:               ptr("WA"),
		PostalCode:          ptr("98103"),
		Make:                ptr("TESLA"),
		Model:               ptr("MODEL 3"),
		ElectricVehicleType: ptr("Battery Electric Vehicle (BEV)"),
		CAFVEligibility:     ptr("Clean Alternative Fuel Vehicle Eligible"),
		ElectricUtility:     ptr("CITY OF SEATTLE - (WA)|CITY OF TACOMA - (WA)"),
		ModelYear:           2019,
		ElectricRange:       220,
		BaseMSRP:            0,
		LegislativeDistrict: 43,
		DOLVehicleID:        478093654,
		CensusTract:         ptr("53033004601"),
		Latitude:            floatPtr(47.659185),
		Longitude:           floatPtr(-122.34301),
		IsBEV:               boolPtr(true),
		RangeCategory:       RangeLong,
		IsCAFVEligible:      boolPtr(true),
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalize_EmptyRow(t *testing.T) {
	got := Normalize(RawRecord{})

	if diff := cmp.Diff(Record{RangeCategory: RangeUnknown}, got); diff != "" {
		t.Errorf("Normalize() mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, IsPublishable(got))
}

func TestNormalize_NilRow(t *testing.T) {
	got := Normalize(nil)
	assert.Equal(t, RangeUnknown, got.RangeCategory)
	assert.Nil(t, got.VIN)
}

func TestNormalize_MalformedFieldsDegrade(t *testing.T) {
	row := teslaRow()
	row[ColumnModelYear] = ptr("twenty-twenty")
	row[ColumnElectricRange] = ptr("")
	row[ColumnVehicleLocation] = ptr("POINT (garbage)")
	row[ColumnElectricVehicleType] = ptr("   ")
	row[ColumnCAFVEligibility] = nil

	got := Normalize(row)

	assert.Equal(t, 0, got.ModelYear)
	assert.Equal(t, 0, got.ElectricRange)
	assert.Equal(t, RangeUnknown, got.RangeCategory)
	assert.Nil(t, got.Latitude)
	assert.Nil(t, got.Longitude)
	assert.Nil(t, got.ElectricVehicleType)
	assert.Nil(t, got.IsBEV)
	assert.Nil(t, got.IsCAFVEligible)
	assert.True(t, IsPublishable(got))
}

func TestNormalize_CensusTractStaysText(t *testing.T) {
	row := teslaRow()
	row[ColumnCensusTract] = ptr("053033004601")

	got := Normalize(row)
	require.NotNil(t, got.CensusTract)
	assert.Equal(t, "053033004601", *got.CensusTract)
}

func TestNormalize_IsDeterministic(t *testing.T) {
	first := Normalize(teslaRow())
	second := Normalize(teslaRow())
	assert.Empty(t, cmp.Diff(first, second))
}

func TestRecord_JSONKeepsAbsentAsNull(t *testing.T) {
	rec := Normalize(RawRecord{ColumnVIN: ptr("1N4AZ0CP5D"), ColumnCity: ptr("")})

	payload, err := json.Marshal(rec)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))

	assert.Len(t, decoded, 21)
	assert.Equal(t, "1N4AZ0CP5D", decoded["vin"])
	assert.Contains(t, decoded, "city")
	assert.Nil(t, decoded["city"])
	assert.Nil(t, decoded["latitude"])
	assert.Nil(t, decoded["is_bev"])
	assert.Equal(t, "Unknown", decoded["range_category"])
	assert.Equal(t, float64(0), decoded["model_year"])
}

func TestRecord_Sample(t *testing.T) {
	rec := Normalize(teslaRow())
	vehicleMake, model, city := rec.Sample()
	assert.Equal(t, "TESLA", vehicleMake)
	assert.Equal(t, "MODEL 3", model)
	assert.Equal(t, "Seattle", city)

	vehicleMake, model, city = (&Record{}).Sample()
	assert.Empty(t, vehicleMake + model + city)
}

func TestRecord_MessageKey(t *testing.T) {
	rec := Normalize(teslaRow())
	assert.Equal(t, []byte("478093654"), rec.MessageKey())

	assert.Nil(t, (&Record{}).MessageKey())
}
