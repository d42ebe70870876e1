package sheets

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"jobsheet-engine/internal/domain"
)

var reHyperlink = regexp.MustCompile(`(?is)^\s*=\s*HYPERLINK\(\s*"((?:[^"]|"")*)"\s*[,;]\s*"((?:[^"]|"")*)"\s*\)\s*$`)

// linkCell encodes a title cell, as a HYPERLINK formula when url is set.
func linkCell(title, url string) string {
	if strings.TrimSpace(url) == "" {
		return literalCell(title)
	}
	return fmt.Sprintf(`=HYPERLINK("%s","%s")`, quoteFormula(url), quoteFormula(title))
}

// parseLinkCell is the inverse of linkCell. Plain text returns an empty url.
func parseLinkCell(v string) (title, url string) {
	m := reHyperlink.FindStringSubmatch(v)
	if m == nil {
		return unliteralCell(v), ""
	}
	return unquoteFormula(m[2]), unquoteFormula(m[1])
}

// literalCell quote-prefixes text that USER_ENTERED input would otherwise
// parse as a formula.
func literalCell(v string) string {
	if v != "" && strings.ContainsRune("=+-@'", rune(v[0])) {
		return "'" + v
	}
	return v
}

// unliteralCell drops the quote prefix when the API hands it back.
func unliteralCell(v string) string { return strings.TrimPrefix(v, "'") }

func quoteFormula(s string) string   { return strings.ReplaceAll(s, `"`, `""`) }
func unquoteFormula(s string) string { return strings.ReplaceAll(s, `""`, `"`) }

var dateLayouts = []string{
	domain.DateLayout,
	"1/2/2006",
	"2006/01/02",
	"Jan 2, 2006",
	"January 2, 2006",
}

// sheetsEpoch is day zero of spreadsheet date serials.
var sheetsEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// normalizeDate turns the date renderings a sheet may hand back into
// YYYY-MM-DD. Anything unrecognised is returned trimmed.
func normalizeDate(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format(domain.DateLayout)
		}
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && f > 20000 && f < 80000 {
		return sheetsEpoch.AddDate(0, 0, int(f)).Format(domain.DateLayout)
	}
	return v
}

// columnName converts a zero-based index to A1 column letters.
func columnName(i int) string {
	name := ""
	for i >= 0 {
		name = string(rune('A'+i%26)) + name
		i = i/26 - 1
	}
	return name
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

func toStrings(values [][]any) [][]string {
	out := make([][]string, len(values))
	for i, row := range values {
		r := make([]string, len(row))
		for j, v := range row {
			r[j] = cellString(v)
		}
		out[i] = r
	}
	return out
}

func blankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
