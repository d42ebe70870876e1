package identity

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	reLinkedInView = regexp.MustCompile(`/jobs/view/(?:[^/]*-)?(\d{5,})(?:/|$)`)
	reDigits       = regexp.MustCompile(`^\d{5,}$`)
	reRequisition  = regexp.MustCompile(`(?:^|[^A-Z0-9])(R-?\d{4,})`)
)

func matchLinkedIn(u *url.URL) (string, string, bool) {
	if !hostIs(u.Host, "linkedin.com") {
		return "", "", false
	}
	if m := reLinkedInView.FindStringSubmatch(u.Path); m != nil {
		return "li:" + m[1], "", true
	}
	if v := strings.TrimSpace(u.Query().Get("currentJobId")); reDigits.MatchString(v) {
		return "li:" + v, "", true
	}
	return "", "", false
}

type board struct {
	name  string
	hosts []string
	// slug reduces the path segments to <company>/<id>, or "" when the path is not a posting.
	slug func(segs []string) string
}

var boards = []board{
	{
		name:  "greenhouse",
		hosts: []string{"boards.greenhouse.io", "job-boards.greenhouse.io", "boards.eu.greenhouse.io", "job-boards.eu.greenhouse.io"},
		slug: func(segs []string) string {
			// /<company>/jobs/<id>
			if len(segs) >= 3 && segs[1] == "jobs" && isDigits(segs[2]) {
				return segs[0] + "/" + segs[2]
			}
			return ""
		},
	},
	{name: "lever", hosts: []string{"jobs.lever.co", "jobs.eu.lever.co"}, slug: twoSegments("apply")},
	{name: "ashby", hosts: []string{"jobs.ashbyhq.com"}, slug: twoSegments("application")},
	{name: "smartrecruiters", hosts: []string{"jobs.smartrecruiters.com"}, slug: twoSegments("apply")},
}

// twoSegments accepts /<company>/<id> with an optional trailing action segment.
func twoSegments(action string) func([]string) string {
	return func(segs []string) string {
		switch {
		case len(segs) == 2:
		case len(segs) == 3 && strings.EqualFold(segs[2], action):
		default:
			return ""
		}
		return segs[0] + "/" + segs[1]
	}
}

func matchBoard(u *url.URL) (string, string, bool) {
	segs := pathSegments(strings.ToLower(u.Path))
	for _, b := range boards {
		if !hostIs(u.Host, b.hosts...) {
			continue
		}
		if slug := b.slug(segs); slug != "" {
			return b.name + ":" + slug, "", true
		}
	}
	return "", "", false
}

// matchRequisition handles Workday style URLs such as
// https://acme.wd5.myworkdayjobs.com/en-US/External/job/Remote/SWE_R-12345/apply
func matchRequisition(u *url.URL) (string, string, bool) {
	segs := pathSegments(u.Path)
	if !(strings.Contains(u.Host, "myworkdayjobs.com") || strings.Contains(u.Host, "workday") || hasSegment(segs, "job")) {
		return "", "", false
	}

	if len(segs) > 0 && looksLikeLocale(segs[0]) {
		segs = segs[1:]
	}
	for i, s := range segs {
		if strings.EqualFold(s, "apply") {
			segs = segs[:i]
			break
		}
	}
	if len(segs) == 0 {
		return "", "", false
	}

	req := findRequisition(segs[len(segs)-1])
	if req == "" {
		req = findRequisition(strings.Join(segs, "/"))
	}
	if req == "" {
		return "", "", false
	}

	scheme := u.Scheme
	if scheme == "" {
		scheme = "https"
	}
	clean := url.URL{Scheme: scheme, Host: u.Host, Path: "/" + strings.Join(segs, "/")}
	return "wd:" + req, clean.String(), true
}

func findRequisition(s string) string {
	s = strings.ReplaceAll(strings.ToUpper(s), "_", "-")
	if m := reRequisition.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}

func hasSegment(segs []string, want string) bool {
	for _, s := range segs {
		if strings.EqualFold(s, want) {
			return true
		}
	}
	return false
}

// looksLikeLocale accepts en-US, en-us, etc.
func looksLikeLocale(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) != 5 || s[2] != '-' {
		return false
	}
	return isAlpha(s[0:2]) && isAlpha(s[3:5])
}

func isAlpha(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')) {
			return false
		}
	}
	return true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
