package sheets

import (
	"fmt"
	"strconv"
	"strings"
)

// columnIndex is the inverse of ColumnLetter. It returns 0 for anything that
// is not a column reference.
func columnIndex(letters string) int {
	if letters == "" {
		return 0
	}
	n := 0
	for _, r := range strings.ToUpper(letters) {
		if r < 'A' || r > 'Z' {
			return 0
		}
		n = n*26 + int(r-'A') + 1
	}
	return n
}

// a1Range is a parsed range. Zero bounds are open.
type a1Range struct {
	Sheet    string
	StartCol int
	StartRow int
	EndCol   int
	EndRow   int
}

// parseRange parses "Sheet", "Sheet!B2", "'My sheet'!A1:C", "Sheet!1:1" and
// similar A1 ranges.
func parseRange(s string) (a1Range, error) {
	var r a1Range
	rest := s
	if strings.HasPrefix(s, "'") {
		i := 1
		var name strings.Builder
		for ; i < len(s); i++ {
			if s[i] == '\'' {
				if i+1 < len(s) && s[i+1] == '\'' {
					name.WriteByte('\'')
					i++
					continue
				}
				break
			}
			name.WriteByte(s[i])
		}
		if i >= len(s) {
			return r, fmt.Errorf("unterminated sheet name in %q", s)
		}
		r.Sheet = name.String()
		rest = s[i+1:]
		if rest == "" {
			return r, nil
		}
		if rest[0] != '!' {
			return r, fmt.Errorf("invalid range %q", s)
		}
		rest = rest[1:]
	} else {
		sheet, ref, ok := strings.Cut(s, "!")
		r.Sheet = sheet
		if !ok {
			return r, nil
		}
		rest = ref
	}

	start, end, hasEnd := strings.Cut(rest, ":")
	var err error
	if r.StartCol, r.StartRow, err = parseRef(start); err != nil {
		return r, fmt.Errorf("invalid range %q: %w", s, err)
	}
	if !hasEnd {
		r.EndCol, r.EndRow = r.StartCol, r.StartRow
		return r, nil
	}
	if r.EndCol, r.EndRow, err = parseRef(end); err != nil {
		return r, fmt.Errorf("invalid range %q: %w", s, err)
	}
	return r, nil
}

func parseRef(ref string) (col, row int, err error) {
	i := 0
	for i < len(ref) && (ref[i] >= 'A' && ref[i] <= 'Z' || ref[i] >= 'a' && ref[i] <= 'z') {
		i++
	}
	col = columnIndex(ref[:i])
	if ref[i:] != "" {
		row, err = strconv.Atoi(ref[i:])
		if err != nil || row < 1 {
			return 0, 0, fmt.Errorf("bad row in %q", ref)
		}
	}
	if col == 0 && row == 0 {
		return 0, 0, fmt.Errorf("empty reference")
	}
	return col, row, nil
}
