package sheets

import (
	"regexp"
	"strconv"
	"strings"
)

type ChangeKind int

const (
	NoChange ChangeKind = iota
	// SafeChange fills an empty cell or clears a filled one.
	SafeChange
	// UnsafeChange replaces one non-empty value with a different one.
	UnsafeChange
)

func (k ChangeKind) String() string {
	switch k {
	case SafeChange:
		return "safe"
	case UnsafeChange:
		return "unsafe"
	default:
		return "none"
	}
}

var numeric = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

var grouped = regexp.MustCompile(`^-?\d{1,3}([.,]\d{3})+([.,]\d+)?$`)

var unitSuffixes = []string{"kr", ",-", ".-", "m²", "m2", "min", "%"}

var spaceReplacer = strings.NewReplacer("\u00a0", " ", "\u202f", " ", "\r", " ", "\n", " ", "\t", " ")

// Sanitize prepares a value for writing: line breaks become spaces and the
// result is trimmed.
func Sanitize(v string) string {
	return strings.TrimSpace(strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ").Replace(v))
}

// NormalizeCell reduces a cell to a comparable form so that formatting-only
// differences ("4 250 000 kr" vs "4250000") compare equal.
func NormalizeCell(v string) string {
	v = strings.TrimSpace(spaceReplacer.Replace(v))
	v = strings.Join(strings.Fields(v), " ")
	if v == "" {
		return ""
	}

	num := strings.TrimSpace(strings.TrimPrefix(strings.ToLower(v), "kr"))
	for _, suffix := range unitSuffixes {
		num = strings.TrimSpace(strings.TrimSuffix(num, suffix))
	}
	num = foldGrouping(strings.ReplaceAll(num, " ", ""))
	if strings.Count(num, ",") == 1 && !strings.Contains(num, ".") {
		num = strings.Replace(num, ",", ".", 1)
	}
	if !numeric.MatchString(num) {
		return v
	}
	if f, err := strconv.ParseFloat(num, 64); err == nil {
		if f == float64(int64(f)) {
			return strconv.FormatInt(int64(f), 10)
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return v
}

// foldGrouping removes comma or dot thousands separators ("4,250,000.00",
// "4.250.000,5"). The first separator is the grouping one; the other may
// appear once as the decimal mark.
func foldGrouping(num string) string {
	if !grouped.MatchString(num) {
		return num
	}
	sep, dec := ",", "."
	if num[strings.IndexAny(num, ".,")] == '.' {
		sep, dec = ".", ","
	}
	intPart, frac, hasFrac := strings.Cut(num, dec)
	if strings.Contains(frac, sep) {
		return num
	}
	for _, g := range strings.Split(intPart, sep)[1:] {
		if len(g) != 3 {
			return num
		}
	}
	out := strings.ReplaceAll(intPart, sep, "")
	if hasFrac {
		out += "." + frac
	}
	return out
}

// Classify decides how a cell going from old to new must be treated.
func Classify(old, new string) ChangeKind {
	o, n := NormalizeCell(old), NormalizeCell(new)
	switch {
	case o == n:
		return NoChange
	case o == "" || n == "":
		return SafeChange
	default:
		return UnsafeChange
	}
}
