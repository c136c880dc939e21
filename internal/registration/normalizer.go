package registration

// Normalize maps one raw row onto a canonical Record and fills in the derived
// fields. It never fails: malformed input degrades to absent or zero values.
func Normalize(raw RawRecord) Record {
	rec := Record{
		VIN:                 CoerceText(raw.Field(ColumnVIN)),
		County:              CoerceText(raw.Field(ColumnCounty)),
		City:                CoerceText(raw.Field(ColumnCity)),
		State:               CoerceText(raw.Field(ColumnState)),
		PostalCode:          CoerceText(raw.Field(ColumnPostalCode)),
		Make:                CoerceText(raw.Field(ColumnMake)),
		Model:               CoerceText(raw.Field(ColumnModel)),
		ElectricVehicleType: CoerceText(raw.Field(ColumnElectricVehicleType)),
		CAFVEligibility:     CoerceText(raw.Field(ColumnCAFVEligibility)),
		ElectricUtility:     CoerceText(raw.Field(ColumnElectricUtility)),

		ModelYear:           CoerceInteger(raw.Field(ColumnModelYear), 0),
		ElectricRange:       CoerceInteger(raw.Field(ColumnElectricRange), 0),
		BaseMSRP:            CoerceInteger(raw.Field(ColumnBaseMSRP), 0),
		LegislativeDistrict: CoerceInteger(raw.Field(ColumnLegislativeDistrict), 0),
		DOLVehicleID:        CoerceInteger(raw.Field(ColumnDOLVehicleID), 0),
		CensusTract:         CoerceText(raw.Field(ColumnCensusTract)),
	}

	rec.Latitude, rec.Longitude = ParsePoint(raw.Field(ColumnVehicleLocation))

	rec.IsBEV = DeriveIsBEV(rec.ElectricVehicleType)
	rec.RangeCategory = DeriveRangeCategory(rec.ElectricRange)
	rec.IsCAFVEligible = DeriveCAFVEligible(rec.CAFVEligibility)

	return rec
}
