// Package identity derives the stable record id used for dedup, update and
// delete addressing.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"

	"jobsheet-engine/internal/domain"
)

// Rule recognises one URL family. CleanURL is non-empty only when the rule
// rewrites the posting URL into its canonical form.
type Rule struct {
	Name  string
	Match func(u *url.URL) (id string, cleanURL string, ok bool)
}

// Resolver evaluates its rules in order and falls back to a content hash.
type Resolver struct {
	rules []Rule
}

func New(rules ...Rule) *Resolver {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Resolver{rules: rules}
}

// DefaultRules is the priority order: LinkedIn, two-segment job boards, Workday requisitions.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "linkedin", Match: matchLinkedIn},
		{Name: "board", Match: matchBoard},
		{Name: "workday", Match: matchRequisition},
	}
}

// Resolve attaches the id to e and returns it. It never fails. The Workday rule
// also replaces e.JobPostingURL with the cleaned URL.
func (r *Resolver) Resolve(e *domain.CaptureEntry) string {
	if u := parseLoose(e.JobPostingURL); u != nil {
		for _, rule := range r.rules {
			id, clean, ok := rule.Match(u)
			if !ok {
				continue
			}
			if clean != "" {
				e.JobPostingURL = clean
			}
			e.RecordID = id
			return id
		}
	}
	e.RecordID = ContentHash(e)
	return e.RecordID
}

// ContentHash is the fallback id: h:<16 hex chars of sha256(title|company|url|date_applied)>.
func ContentHash(e *domain.CaptureEntry) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{
		e.JobTitle, e.Company, e.JobPostingURL, e.DateApplied,
	}, "|")))
	return "h:" + hex.EncodeToString(sum[:])[:16]
}

func parseLoose(raw string) *url.URL {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil
	}
	u.Host = strings.ToLower(u.Host)
	u.Scheme = strings.ToLower(u.Scheme)
	return u
}

// pathSegments splits a path, dropping the empty segments produced by repeated slashes.
func pathSegments(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func hostIs(host string, names ...string) bool {
	host = strings.TrimPrefix(host, "www.")
	for _, n := range names {
		if host == n || strings.HasSuffix(host, "."+n) {
			return true
		}
	}
	return false
}
