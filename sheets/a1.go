package sheets

import (
	"fmt"
	"regexp"
	"strings"
)

var plainSheetName = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ColumnLetter converts a 1-based column index to A1 letters (1 → A,
// 27 → AA).
func ColumnLetter(n int) string {
	if n < 1 {
		return ""
	}
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}

// QuoteSheet quotes a sheet name for use in a range when it contains
// anything besides letters, digits and underscores.
func QuoteSheet(name string) string {
	if plainSheetName.MatchString(name) {
		return name
	}
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// Cell addresses a single 1-based cell.
func Cell(sheet string, col, row int) string {
	return fmt.Sprintf("%s!%s%d", QuoteSheet(sheet), ColumnLetter(col), row)
}

// ParseKeyCell reads a key cell written either as plain text or as
// =HYPERLINK("url","key").
func ParseKeyCell(v string) string {
	v = strings.TrimSpace(v)
	if strings.Contains(strings.ToUpper(v), "HYPERLINK") {
		parts := strings.Split(v, `"`)
		if len(parts) >= 4 {
			return strings.TrimSpace(parts[3])
		}
	}
	return v
}

// HyperlinkCell renders a key that links to url.
func HyperlinkCell(url, key string) string {
	if url == "" {
		return key
	}
	return fmt.Sprintf(`=HYPERLINK("%s","%s")`, strings.ReplaceAll(url, `"`, `""`), key)
}
