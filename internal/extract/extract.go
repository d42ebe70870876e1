// Package extract builds a CaptureEntry from a raw job posting page using the
// schema.org JobPosting block when present and OpenGraph/DOM hints otherwise.
package extract

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cockroachdb/errors"

	"jobsheet-engine/internal/domain"
)

var ErrNoPosting = errors.New("page does not look like a job posting")

// FromHTML extracts what it can; title and company are required.
func FromHTML(pageURL, html string) (domain.CaptureEntry, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return domain.CaptureEntry{}, errors.Wrap(err, "parse html")
	}

	e := domain.CaptureEntry{
		JobPostingURL: CanonicalURL(pageURL),
		Source:        SourceForURL(pageURL),
	}

	if jp := findJobPosting(doc); jp != nil {
		applyJobPosting(&e, jp)
	}

	if e.JobTitle == "" {
		e.JobTitle = firstText(doc, "h1", ".posting-headline h2", ".app-title", "[data-automation-id='jobPostingHeader']")
	}
	if e.JobTitle == "" {
		e.JobTitle = metaContent(doc, "og:title")
	}
	if e.Company == "" {
		e.Company = metaContent(doc, "og:site_name")
	}
	if e.Company == "" {
		e.Company = firstText(doc, ".company-name", "[data-testid='company-name']", ".topcard__org-name-link")
	}
	if e.Location == "" {
		e.Location = FindLocation(doc)
	}

	e.JobTitle = domain.CleanText(e.JobTitle)
	e.Company = domain.CleanText(e.Company)
	if e.JobTitle == "" || e.Company == "" {
		return e, ErrNoPosting
	}
	return e, nil
}

// SourceForURL names the extractor family a URL belongs to.
func SourceForURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "page"
	}
	host := strings.ToLower(u.Host)
	switch {
	case strings.Contains(host, "linkedin.com"):
		return "linkedin"
	case strings.Contains(host, "myworkdayjobs.com"), strings.Contains(host, "workday"):
		return "workday"
	case strings.Contains(host, "greenhouse.io"):
		return "greenhouse"
	case strings.Contains(host, "lever.co"):
		return "lever"
	case strings.Contains(host, "ashbyhq.com"):
		return "ashby"
	case strings.Contains(host, "smartrecruiters.com"):
		return "smartrecruiters"
	default:
		return "page"
	}
}

func findJobPosting(doc *goquery.Document) map[string]any {
	var found map[string]any
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var v any
		if err := json.Unmarshal([]byte(s.Text()), &v); err != nil {
			return true
		}
		found = walkForJobPosting(v)
		return found == nil
	})
	return found
}

func walkForJobPosting(v any) map[string]any {
	switch x := v.(type) {
	case []any:
		for _, item := range x {
			if jp := walkForJobPosting(item); jp != nil {
				return jp
			}
		}
	case map[string]any:
		if isType(x["@type"], "JobPosting") {
			return x
		}
		if g, ok := x["@graph"]; ok {
			return walkForJobPosting(g)
		}
	}
	return nil
}

func isType(v any, want string) bool {
	switch t := v.(type) {
	case string:
		return strings.EqualFold(t, want)
	case []any:
		for _, x := range t {
			if isType(x, want) {
				return true
			}
		}
	}
	return false
}

func applyJobPosting(e *domain.CaptureEntry, jp map[string]any) {
	e.JobTitle = str(jp["title"])
	e.Company = nameOf(jp["hiringOrganization"])
	e.Location = jobLocation(jp)
	e.ListingPostedDate = dateOnly(str(jp["datePosted"]))
	e.JobTimeline = strings.Join(strList(jp["employmentType"]), ", ")
	e.SalaryText = salary(jp["baseSalary"])
}

func jobLocation(jp map[string]any) string {
	var parts []string
	for _, loc := range asList(jp["jobLocation"]) {
		switch l := loc.(type) {
		case string:
			parts = append(parts, l)
		case map[string]any:
			addr, ok := l["address"].(map[string]any)
			if !ok {
				if s := str(l["address"]); s != "" {
					parts = append(parts, s)
				}
				continue
			}
			var segs []string
			for _, k := range []string{"addressLocality", "addressRegion"} {
				if s := str(addr[k]); s != "" {
					segs = append(segs, s)
				}
			}
			if c := nameOf(addr["addressCountry"]); c != "" {
				segs = append(segs, c)
			}
			if len(segs) > 0 {
				parts = append(parts, strings.Join(segs, ", "))
			}
		}
	}
	loc := NormalizeLocation(strings.Join(parts, "; "))
	if strings.EqualFold(str(jp["jobLocationType"]), "TELECOMMUTE") {
		if loc == "" {
			return "Remote"
		}
		if !strings.Contains(strings.ToLower(loc), "remote") {
			return "Remote, " + loc
		}
	}
	return loc
}

func salary(v any) string {
	m, ok := v.(map[string]any)
	if !ok {
		return str(v)
	}
	currency := str(m["currency"])
	val, ok := m["value"].(map[string]any)
	if !ok {
		return strings.TrimSpace(currency + " " + num(m["value"]))
	}
	amount := num(val["value"])
	lo, hi := num(val["minValue"]), num(val["maxValue"])
	switch {
	case lo != "" && hi != "":
		amount = lo + "-" + hi
	case lo != "":
		amount = lo + "+"
	}
	out := strings.TrimSpace(currency + " " + amount)
	if unit := str(val["unitText"]); unit != "" && amount != "" {
		out += " / " + strings.ToLower(unit)
	}
	return out
}

func dateOnly(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 10 {
		if t, err := time.Parse(domain.DateLayout, s[:10]); err == nil {
			return t.Format(domain.DateLayout)
		}
	}
	return s
}

func nameOf(v any) string {
	if m, ok := v.(map[string]any); ok {
		return str(m["name"])
	}
	return str(v)
}

func str(v any) string {
	if s, ok := v.(string); ok {
		return domain.CleanText(s)
	}
	return ""
}

func num(v any) string {
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case string:
		return strings.TrimSpace(n)
	}
	return ""
}

func strList(v any) []string {
	var out []string
	for _, x := range asList(v) {
		if s := str(x); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func asList(v any) []any {
	switch x := v.(type) {
	case nil:
		return nil
	case []any:
		return x
	default:
		return []any{x}
	}
}

func firstText(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if t := domain.CleanText(doc.Find(sel).First().Text()); t != "" {
			return t
		}
	}
	return ""
}

func metaContent(doc *goquery.Document, property string) string {
	v, _ := doc.Find(`meta[property="` + property + `"]`).Attr("content")
	return domain.CleanText(v)
}
