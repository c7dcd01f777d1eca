package sheets

import (
	"strconv"

	"finnsync/models"
)

// Column maps one header to the value written for a row.
type Column struct {
	Header string
	Value  func(r models.ExportRow) string
}

func keyColumn() Column {
	return Column{Header: models.FieldKey, Value: func(r models.ExportRow) string { return HyperlinkCell(r.URL, r.Key) }}
}

func textColumn(header string, get func(r models.ExportRow) string) Column {
	return Column{Header: header, Value: func(r models.ExportRow) string { return Sanitize(get(r)) }}
}

func intColumn(header string, get func(r models.ExportRow) *int) Column {
	return Column{Header: header, Value: func(r models.ExportRow) string { return formatInt(get(r)) }}
}

func extraColumn(header, extraKey string) Column {
	return textColumn(header, func(r models.ExportRow) string { return r.Extra[extraKey] })
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func commuteColumns() []Column {
	cols := make([]Column, 0, len(models.CommuteAttributes)+1)
	cols = append(cols, textColumn(models.FieldMapsURL, func(r models.ExportRow) string {
		if r.Commute == nil {
			return ""
		}
		return r.Commute.MapsURL
	}))
	for _, attr := range models.CommuteAttributes {
		field := attr.Field
		cols = append(cols, intColumn(attr.Column, func(r models.ExportRow) *int { return r.Commute.Value(field) }))
	}
	return cols
}

var (
	statusColumn  = textColumn(models.FieldStatus, func(r models.ExportRow) string { return r.Status })
	addressColumn = textColumn(models.FieldAddress, func(r models.ExportRow) string { return r.Address })
	postalColumn  = textColumn(models.FieldPostalCode, func(r models.ExportRow) string { return r.PostalCode })
	urlColumn     = textColumn(models.FieldURL, func(r models.ExportRow) string { return r.URL })
	areaColumn    = intColumn(models.FieldArea, func(r models.ExportRow) *int { return r.Area })
	ppsqmColumn   = intColumn(models.FieldPricePerSqm, func(r models.ExportRow) *int { return r.PricePerSqm })
)

// Columns returns the export columns for kind in their default order.
func Columns(kind models.Kind) []Column {
	switch kind {
	case models.KindEiendom:
		cols := []Column{
			keyColumn(), statusColumn, addressColumn, postalColumn,
			intColumn(models.FieldPrice, func(r models.ExportRow) *int { return r.Price }),
			urlColumn, areaColumn, ppsqmColumn,
		}
		return append(cols, commuteColumns()...)
	case models.KindRental:
		cols := []Column{
			keyColumn(), statusColumn, addressColumn, postalColumn,
			intColumn(models.FieldRent, func(r models.ExportRow) *int { return r.Price }),
			extraColumn(models.ExtraDeposit, models.ExtraDeposit),
			urlColumn, areaColumn, ppsqmColumn,
		}
		return append(cols, commuteColumns()...)
	case models.KindJobs:
		return []Column{
			keyColumn(),
			extraColumn(models.ExtraCompany, models.ExtraCompany),
			extraColumn(models.ExtraTitle, models.ExtraTitle),
			extraColumn(models.ExtraAdTitle, models.ExtraAdTitle),
			extraColumn(models.ExtraDeadline, models.ExtraDeadline),
			urlColumn,
		}
	}
	return nil
}

// Headers lists the header names of cols.
func Headers(cols []Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Header
	}
	return out
}
