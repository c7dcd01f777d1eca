package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"finnsync/identity"
	"finnsync/models"
)

var deadlineRegex = regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{4}`)

// Normalize turns a parsed ad into a storable listing: it picks the area
// from the size sub-fields, derives the price per m² and tidies text fields.
func Normalize(kind models.Kind, raw models.RawListing, now time.Time) (models.Listing, error) {
	key := strings.TrimSpace(raw.Key)
	if key == "" {
		key = identity.KeyFromURL(raw.URL)
	}
	if key == "" {
		return models.Listing{}, fmt.Errorf("normalize %s: no key for %q", kind, raw.URL)
	}

	f := raw.Fields
	l := models.Listing{
		Kind:      kind,
		Key:       key,
		URL:       strings.TrimSpace(raw.URL),
		Status:    identity.NormalizeSpace(f[models.FieldStatus]),
		ScrapedAt: now,
		IsActive:  true,
	}
	if l.URL == "" {
		l.URL = strings.TrimSpace(f[models.FieldURL])
	}

	switch kind {
	case models.KindEiendom, models.KindRental:
		l.Address = identity.TitleCase(f[models.FieldAddress])
		l.PostalCode = identity.NormalizeSpace(f[models.FieldPostalCode])
		if kind == models.KindEiendom {
			l.Price = ParseInt(f[models.FieldPrice])
		} else {
			l.Price = ParseInt(f[models.FieldRent])
			if dep := ParseInt(f[models.ExtraDeposit]); dep != nil {
				l.Extra = map[string]string{models.ExtraDeposit: strconv.Itoa(*dep)}
			}
		}
		l.Area = PickArea(f)
		l.RecomputePricePerSqm()

	case models.KindJobs:
		l.Extra = make(map[string]string)
		for _, k := range []string{models.ExtraCompany, models.ExtraTitle, models.ExtraAdTitle, models.FieldIndustry, models.FieldJobPositions} {
			if v := identity.NormalizeSpace(f[k]); v != "" {
				l.Extra[k] = v
			}
		}
		if d := NormalizeDeadline(f[models.FieldDeadlineRaw]); d != "" {
			l.Extra[models.ExtraDeadline] = d
		}

	default:
		return models.Listing{}, fmt.Errorf("normalize: unknown kind %q", kind)
	}

	return l, nil
}

// PickArea prefers Primærrom, then BRA-i, then Bruksareal.
func PickArea(fields map[string]string) *int {
	for _, k := range []string{models.FieldPrimaryArea, models.FieldUsableIArea, models.FieldUsableArea} {
		if v := ParseInt(fields[k]); v != nil {
			return v
		}
	}
	return nil
}

// NormalizeDeadline accepts D.M.YYYY style dates (dashes allowed) and
// returns "" for anything else, such as "Snarest".
func NormalizeDeadline(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "-", ".")
	if m := deadlineRegex.FindString(s); m != "" {
		return m
	}
	return ""
}

// ParseInt reads a Norwegian formatted integer such as "4 250 000 kr" or
// "52 m²". Decimals are rounded.
func ParseInt(s string) *int {
	s = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "").Replace(strings.TrimSpace(s))
	s = strings.TrimSuffix(strings.TrimSuffix(s, "kr"), "m²")
	s = strings.TrimSuffix(s, ",-")
	if s == "" {
		return nil
	}
	if i, err := strconv.Atoi(s); err == nil {
		return &i
	}
	if f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64); err == nil {
		v := int(f + 0.5)
		return &v
	}
	return nil
}
