package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"jobsheet-engine/internal/domain"
)

var locationSelectors = []string{
	".location",
	".opening .location",
	".job__location",
	".app-title + .location",
	".posting-categories .location",
	"[data-automation-id='locations']",
	"[data-testid='job-location']",
	"[data-testid='location']",
	".topcard__flavor--bullet",
}

// FindLocation tries board-specific selectors, then a labelled "Location:" line
// in og:description, then the body text.
func FindLocation(doc *goquery.Document) string {
	for _, sel := range locationSelectors {
		if t := domain.CleanText(doc.Find(sel).First().Text()); t != "" {
			return NormalizeLocation(t)
		}
	}

	if v, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok {
		if loc := LabeledLocation(v); loc != "" {
			return NormalizeLocation(loc)
		}
	}

	if loc := LabeledLocation(doc.Find("body").Text()); loc != "" {
		return NormalizeLocation(loc)
	}
	return ""
}

// LabeledLocation returns the text after a "Location:" style label, up to the
// end of the line or a separator.
func LabeledLocation(s string) string {
	low := strings.ToLower(s)
	for _, lab := range []string{"job location:", "locations:", "location:"} {
		i := strings.Index(low, lab)
		if i < 0 {
			continue
		}
		rest := strings.TrimSpace(s[i+len(lab):])
		for _, cut := range []string{"\n", "\r", " | ", " · "} {
			if j := strings.Index(rest, cut); j >= 0 {
				rest = rest[:j]
			}
		}
		rest = domain.CleanText(rest)
		if rest != "" && len(rest) <= 80 {
			return rest
		}
	}
	return ""
}

// NormalizeLocation drops label prefixes and repeated comma parts.
func NormalizeLocation(loc string) string {
	loc = domain.CleanText(loc)
	for _, p := range []string{"Location:", "LOCATIONS:", "Locations:"} {
		loc = strings.TrimSpace(strings.TrimPrefix(loc, p))
	}
	if loc == "" {
		return ""
	}

	seen := map[string]bool{}
	var out []string
	for _, p := range strings.Split(loc, ",") {
		p = domain.CleanText(p)
		if p == "" {
			continue
		}
		k := strings.ToLower(p)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, p)
	}
	return strings.Join(out, ", ")
}
