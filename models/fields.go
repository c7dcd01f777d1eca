package models

// Raw field names produced by the ad parsers. They double as spreadsheet
// column headers where a column exists.
const (
	FieldKey          = "Finnkode"
	FieldStatus       = "Tilgjengelighet"
	FieldAddress      = "Adresse"
	FieldPostalCode   = "Postnummer"
	FieldPrice        = "Pris"
	FieldRent         = "Leiepris"
	FieldURL          = "URL"
	FieldArea         = "AREAL"
	FieldPricePerSqm  = "PRIS KVM"
	FieldMapsURL      = "GOOGLE MAPS"
	FieldPrimaryArea  = "Primærrom"
	FieldUsableIArea  = "Internt bruksareal (BRA-i)"
	FieldUsableArea   = "Bruksareal"
	FieldUsableEArea  = "Eksternt bruksareal (BRA-e)"
	FieldOpenArea     = "Balkong/Terrasse (TBA)"
	FieldGrossArea    = "Bruttoareal"
	FieldDeadlineRaw  = "Søknadsfrist"
	FieldIndustry     = "Industri"
	FieldJobPositions = "Posisjoner"
)
