package identity

import (
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode"
)

var (
	finnkodeRegex   = regexp.MustCompile(`finnkode=(\d+)`)
	multiSpaceRegex = regexp.MustCompile(`\s+`)
	postalRegex     = regexp.MustCompile(`^\d{4}$`)
)

const mapsSearchURL = "https://www.google.com/maps/search/?api=1&query="

// KeyFromURL extracts the listing key from an ad URL: the finnkode query
// value when present, otherwise the last path segment (job ads).
func KeyFromURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if m := finnkodeRegex.FindStringSubmatch(raw); m != nil {
		return m[1]
	}

	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	seg := path.Base(strings.TrimRight(u.Path, "/"))
	if seg == "." || seg == "/" {
		return ""
	}
	return seg
}

// NormalizeSpace collapses runs of whitespace, including non-breaking
// spaces, and trims the result.
func NormalizeSpace(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = multiSpaceRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// CleanAddress builds the routing origin for a listing. A valid four digit
// postal code is appended unless the address already ends with it.
func CleanAddress(address, postalCode string) string {
	address = strings.Trim(NormalizeSpace(address), ", ")
	postalCode = NormalizeSpace(postalCode)
	if address == "" {
		return ""
	}
	if !postalRegex.MatchString(postalCode) || strings.HasSuffix(address, postalCode) {
		return address
	}
	return address + ", " + postalCode
}

// MapsURL is a map search link for a cleaned address.
func MapsURL(cleaned string) string {
	if cleaned == "" {
		return ""
	}
	return mapsSearchURL + url.QueryEscape(cleaned)
}

// TitleCase upper-cases the first letter of every word and lower-cases the
// rest. Any non-letter starts a new word, so "5b" becomes "5B".
func TitleCase(s string) string {
	s = NormalizeSpace(s)
	var b strings.Builder
	b.Grow(len(s))
	start := true
	for _, r := range s {
		switch {
		case !unicode.IsLetter(r):
			start = true
			b.WriteRune(r)
		case start:
			b.WriteRune(unicode.ToUpper(r))
			start = false
		default:
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
