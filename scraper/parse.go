package scraper

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"finnsync/identity"
	"finnsync/models"

	"github.com/PuerkitoBio/goquery"
)

const maxLinkLength = 100

var (
	firstNumberRegex = regexp.MustCompile(`\d+`)
	postalCodeRegex  = regexp.MustCompile(`\b(\d{4})\s+`)
	totalPriceRegex  = regexp.MustCompile(`([\d\x{a0}\s]+)[\s\x{a0}]*kr`)
	areaRegex        = regexp.MustCompile(`([\d\s\x{a0}]+)[\s\x{a0}]*m²`)
	rentRegex        = regexp.MustCompile(`Månedsleie[\s\x{a0}]*([\d\x{a0}\s]+)`)
	depositRegex     = regexp.MustCompile(`Depositum[\s\x{a0}]*([\d\x{a0}\s]+)`)
	deadlineRegex    = regexp.MustCompile(`\d{2}\.\d{2}\.\d{4}`)
)

// areaTestIDs maps the size blocks on an ad page to raw field names.
var areaTestIDs = []struct {
	testID string
	field  string
}{
	{"info-primary-area", models.FieldPrimaryArea},
	{"info-usable-i-area", models.FieldUsableIArea},
	{"info-usable-area", models.FieldUsableArea},
	{"info-usable-e-area", models.FieldUsableEArea},
	{"info-open-area", models.FieldOpenArea},
	{"info-gross-area", models.FieldGrossArea},
}

var badgeKinds = []string{"warning", "negative", "info"}

// ExtractLinks returns the distinct ad links on a result page in page
// order. A link must match pattern from its first character, be at most
// 100 characters long and is made absolute against base.
func ExtractLinks(body []byte, base string, pattern *regexp.Regexp) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse result page: %w", err)
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	seen := make(map[string]bool)
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if len(href) > maxLinkLength {
			return
		}
		if loc := pattern.FindStringIndex(href); loc == nil || loc[0] != 0 {
			return
		}
		abs := href
		if !strings.HasPrefix(href, "http") {
			ref, err := url.Parse(href)
			if err != nil {
				return
			}
			abs = baseURL.ResolveReference(ref).String()
		}
		if !seen[abs] {
			seen[abs] = true
			links = append(links, abs)
		}
	})
	return links, nil
}

// ParseAd reads the fields of one ad page.
func ParseAd(kind models.Kind, adURL string, body []byte) (models.RawListing, error) {
	key := identity.KeyFromURL(adURL)
	if key == "" {
		return models.RawListing{}, fmt.Errorf("no key in %s", adURL)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return models.RawListing{}, fmt.Errorf("parse ad %s: %w", key, err)
	}

	raw := models.RawListing{Key: key, URL: adURL, Fields: map[string]string{
		models.FieldKey: key,
		models.FieldURL: adURL,
	}}
	set := func(field, value string) {
		if value = strings.TrimSpace(value); value != "" {
			raw.Fields[field] = value
		}
	}

	switch kind {
	case models.KindEiendom, models.KindRental:
		address, postal := parseAddress(doc)
		set(models.FieldAddress, address)
		set(models.FieldPostalCode, postal)
		set(models.FieldStatus, ParseStatus(doc))
		for _, a := range areaTestIDs {
			set(a.field, parseArea(doc, a.testID))
		}
		if kind == models.KindEiendom {
			set(models.FieldPrice, parsePrice(doc))
		} else {
			set(models.FieldRent, matchDigits(rentRegex, testIDText(doc, "div", "pricing-common-monthly-cost")))
			set(models.ExtraDeposit, matchDigits(depositRegex, testIDText(doc, "div", "pricing-deposit")))
		}

	case models.KindJobs:
		targeting := parseTargeting(doc)
		company := targeting["company_name"]
		if company == "" {
			company, _ = doc.Find(`img[src*="finncdn.no/mmo/logo"]`).First().Attr("alt")
		}
		set(models.ExtraCompany, company)
		set(models.ExtraTitle, targeting["job_title"])
		set(models.FieldIndustry, targeting["industry"])
		set(models.FieldJobPositions, targeting["job_positions"])
		set(models.ExtraAdTitle, parseTitle(doc))
		set(models.FieldDeadlineRaw, parseDeadline(doc))

	default:
		return models.RawListing{}, fmt.Errorf("unknown kind %q", kind)
	}

	return raw, nil
}

func testIDText(doc *goquery.Document, tag, testID string) string {
	return strings.TrimSpace(doc.Find(fmt.Sprintf(`%s[data-testid="%s"]`, tag, testID)).First().Text())
}

func stripSpaces(s string) string {
	return strings.NewReplacer(" ", "", "\u00a0", "", "\n", "", "\t", "", "\r", "").Replace(s)
}

func matchDigits(re *regexp.Regexp, text string) string {
	if m := re.FindStringSubmatch(text); m != nil {
		return stripSpaces(m[1])
	}
	return ""
}

// parseAddress splits "Storgata 1, 0155 Oslo" into street address and
// postal code. Without the address element it falls back to the heading
// and the first four-digit number on the page.
func parseAddress(doc *goquery.Document) (address, postal string) {
	if el := doc.Find(`span[data-testid="object-address"]`).First(); el.Length() > 0 {
		full := strings.TrimSpace(el.Text())
		if street, area, ok := strings.Cut(full, ","); ok {
			return strings.TrimSpace(street), firstNumberRegex.FindString(area)
		}
		return "", firstNumberRegex.FindString(full)
	}
	if h1 := doc.Find("h1").First(); h1.Length() > 0 {
		if m := postalCodeRegex.FindStringSubmatch(doc.Text()); m != nil {
			postal = m[1]
		}
		return strings.TrimSpace(h1.Text()), postal
	}
	return "", ""
}

func parsePrice(doc *goquery.Document) string {
	for _, testID := range []string{"pricing-total-price", "pricing-incicative-price"} {
		if v := matchDigits(totalPriceRegex, testIDText(doc, "div", testID)); v != "" {
			return v
		}
	}
	return ""
}

func parseArea(doc *goquery.Document, testID string) string {
	return matchDigits(areaRegex, testIDText(doc, "div", testID))
}

// ParseStatus returns the text of the ad's status badge ("Solgt",
// "Reservert", ...) or "" when the ad has none.
func ParseStatus(doc *goquery.Document) string {
	for _, kind := range badgeKinds {
		sel := fmt.Sprintf(`div[class*="bg-[--w-color-badge-%s-background]"]`, kind)
		if el := doc.Find(sel).First(); el.Length() > 0 {
			return identity.NormalizeSpace(el.Text())
		}
	}
	return ""
}

type advertisingState struct {
	Config struct {
		AdServer struct {
			Gam struct {
				Targeting []struct {
					Key   string          `json:"key"`
					Value json.RawMessage `json:"value"`
				} `json:"targeting"`
			} `json:"gam"`
		} `json:"adServer"`
	} `json:"config"`
}

// parseTargeting reads the first value of every ad targeting entry from the
// embedded advertising state.
func parseTargeting(doc *goquery.Document) map[string]string {
	out := make(map[string]string)
	script := doc.Find(`script#advertising-initial-state`).First()
	if script.Length() == 0 {
		return out
	}
	var state advertisingState
	if err := json.Unmarshal([]byte(script.Text()), &state); err != nil {
		return out
	}
	for _, t := range state.Config.AdServer.Gam.Targeting {
		if _, ok := out[t.Key]; ok {
			continue
		}
		var values []any
		if err := json.Unmarshal(t.Value, &values); err != nil {
			var single any
			if json.Unmarshal(t.Value, &single) != nil || single == nil {
				continue
			}
			values = []any{single}
		}
		if len(values) > 0 && values[0] != nil {
			out[t.Key] = fmt.Sprint(values[0])
		}
	}
	return out
}

func parseTitle(doc *goquery.Document) string {
	title := doc.Find("title").First().Text()
	title, _, _ = strings.Cut(title, " | FINN.no")
	return strings.TrimSpace(title)
}

func parseDeadline(doc *goquery.Document) string {
	var deadline string
	doc.Find("li").EachWithBreak(func(_ int, li *goquery.Selection) bool {
		text := li.Text()
		if !strings.Contains(text, "Frist") {
			return true
		}
		if m := deadlineRegex.FindString(text); m != "" {
			deadline = m
			return false
		}
		if rest := strings.TrimSpace(strings.Replace(text, "Frist", "", 1)); rest != "" {
			deadline = identity.NormalizeSpace(rest)
			return false
		}
		return true
	})
	return deadline
}
