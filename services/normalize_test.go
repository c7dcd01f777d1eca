package services

import (
	"testing"
	"time"

	"finnsync/models"

	"github.com/stretchr/testify/require"
)

func TestNormalizeEiendom(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	raw := models.RawListing{
		URL: "https://www.finn.no/realestate/homes/ad.html?finnkode=345678901",
		Fields: map[string]string{
			models.FieldStatus:      "Solgt",
			models.FieldAddress:     "STORGATA 1B",
			models.FieldPostalCode:  "0155",
			models.FieldPrice:       "4 250 000",
			models.FieldUsableIArea: "52",
			models.FieldUsableArea:  "55",
		},
	}

	l, err := Normalize(models.KindEiendom, raw, now)
	require.NoError(t, err)
	require.Equal(t, "345678901", l.Key)
	require.Equal(t, "Storgata 1B", l.Address)
	require.Equal(t, "0155", l.PostalCode)
	require.Equal(t, "Solgt", l.Status)
	require.Equal(t, 4250000, *l.Price)
	require.Equal(t, 52, *l.Area, "BRA-i wins over Bruksareal")
	require.Equal(t, 81731, *l.PricePerSqm)
	require.Equal(t, now, l.ScrapedAt)
	require.True(t, l.IsActive)
}

func TestNormalizeRental(t *testing.T) {
	raw := models.RawListing{
		Key: "222",
		URL: "https://www.finn.no/realestate/lettings/ad.html?finnkode=222",
		Fields: map[string]string{
			models.FieldAddress:     "Lille grensen 3",
			models.FieldRent:        "15 500",
			models.ExtraDeposit:     "46 500",
			models.FieldPrimaryArea: "40",
			models.FieldUsableArea:  "45",
		},
	}

	l, err := Normalize(models.KindRental, raw, time.Now())
	require.NoError(t, err)
	require.Equal(t, 15500, *l.Price)
	require.Equal(t, 40, *l.Area)
	require.Equal(t, 388, *l.PricePerSqm)
	require.Equal(t, "46500", l.Extra[models.ExtraDeposit])
}

func TestNormalizeWithoutArea(t *testing.T) {
	raw := models.RawListing{
		Key:    "1",
		Fields: map[string]string{models.FieldPrice: "3 000 000 kr"},
	}
	l, err := Normalize(models.KindEiendom, raw, time.Now())
	require.NoError(t, err)
	require.Equal(t, 3000000, *l.Price)
	require.Nil(t, l.Area)
	require.Nil(t, l.PricePerSqm)
}

func TestNormalizeJobs(t *testing.T) {
	raw := models.RawListing{
		URL: "https://www.finn.no/job/ad/412345678",
		Fields: map[string]string{
			models.ExtraCompany:      "Acme AS",
			models.ExtraTitle:        "Utvikler",
			models.ExtraAdTitle:      "Backend-utvikler  søkes",
			models.FieldDeadlineRaw:  "01-04-2024",
			models.FieldJobPositions: "",
		},
	}

	l, err := Normalize(models.KindJobs, raw, time.Now())
	require.NoError(t, err)
	require.Equal(t, "412345678", l.Key)
	require.Equal(t, "Acme AS", l.Extra[models.ExtraCompany])
	require.Equal(t, "Backend-utvikler søkes", l.Extra[models.ExtraAdTitle])
	require.Equal(t, "01.04.2024", l.Extra[models.ExtraDeadline])
	_, ok := l.Extra[models.FieldJobPositions]
	require.False(t, ok)
	require.Nil(t, l.Price)
}

func TestNormalizeMissingKey(t *testing.T) {
	_, err := Normalize(models.KindEiendom, models.RawListing{}, time.Now())
	require.Error(t, err)
}

func TestNormalizeDeadline(t *testing.T) {
	tests := map[string]string{
		"1.4.2024":   "1.4.2024",
		"15-12-2024": "15.12.2024",
		"Snarest":    "",
		"":           "",
	}
	for in, want := range tests {
		if got := NormalizeDeadline(in); got != want {
			t.Errorf("NormalizeDeadline(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseInt(t *testing.T) {
	tests := []struct {
		in   string
		want *int
	}{
		{"4 250 000 kr", models.IntPtr(4250000)},
		{"52 m²", models.IntPtr(52)},
		{"12 000,-", models.IntPtr(12000)},
		{"52,5", models.IntPtr(53)},
		{"", nil},
		{"Pris kommer", nil},
	}
	for _, tt := range tests {
		got := ParseInt(tt.in)
		if (got == nil) != (tt.want == nil) || (got != nil && *got != *tt.want) {
			t.Errorf("ParseInt(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
