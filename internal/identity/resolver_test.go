package identity

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobsheet-engine/internal/domain"
)

func TestResolveKnownFamilies(t *testing.T) {
	cases := []struct {
		name string
		url  string
		want string
	}{
		{"linkedin view", "https://www.linkedin.com/jobs/view/3912345678/", "li:3912345678"},
		{"linkedin slug", "https://www.linkedin.com/jobs/view/senior-go-engineer-at-acme-3912345678?trk=abc", "li:3912345678"},
		{"linkedin search pane", "https://www.linkedin.com/jobs/search/?currentJobId=3912345678&keywords=go", "li:3912345678"},
		{"greenhouse", "https://boards.greenhouse.io/Acme/jobs/4012345?gh_src=x", "greenhouse:acme/4012345"},
		{"greenhouse new host", "https://job-boards.greenhouse.io/acme/jobs/4012345", "greenhouse:acme/4012345"},
		{"lever", "https://jobs.lever.co/acme/5b1f0c2e-1111-2222-3333-444455556666/apply", "lever:acme/5b1f0c2e-1111-2222-3333-444455556666"},
		{"ashby", "https://jobs.ashbyhq.com/Acme/8d3a/application", "ashby:acme/8d3a"},
		{"smartrecruiters", "https://jobs.smartrecruiters.com/Acme/744000012345-backend-engineer", "smartrecruiters:acme/744000012345-backend-engineer"},
	}
	r := New()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := &domain.CaptureEntry{JobTitle: "Engineer", Company: "Acme", JobPostingURL: tc.url}
			got := r.Resolve(e)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.want, e.RecordID)
			assert.Equal(t, tc.url, e.JobPostingURL, "non-workday urls are left alone")
		})
	}
}

func TestResolveWorkdayCleansURL(t *testing.T) {
	e := &domain.CaptureEntry{
		JobTitle:      "SWE",
		Company:       "Acme",
		JobPostingURL: "https://acme.wd5.myworkdayjobs.com/en-US/External/job/Remote/SWE_R-12345/apply",
	}
	id := New().Resolve(e)

	assert.Equal(t, "wd:R-12345", id)
	assert.Equal(t, "https://acme.wd5.myworkdayjobs.com/External/job/Remote/SWE_R-12345", e.JobPostingURL)

	// Resolving the cleaned entry again is stable.
	again := New().Resolve(e)
	assert.Equal(t, id, again)
	assert.Equal(t, "https://acme.wd5.myworkdayjobs.com/External/job/Remote/SWE_R-12345", e.JobPostingURL)
}

func TestResolveWorkdayVariants(t *testing.T) {
	cases := []struct {
		name, url, id, clean string
	}{
		{
			"double slashes and query",
			"https://acme.wd1.myworkdayjobs.com//Careers//job/NYC/Engineer_R12345?source=li#top",
			"wd:R12345",
			"https://acme.wd1.myworkdayjobs.com/Careers/job/NYC/Engineer_R12345",
		},
		{
			"token outside last segment",
			"https://acme.wd1.myworkdayjobs.com/en-us/Careers/job/R-99887/Staff-Engineer/apply/autofillWithResume",
			"wd:R-99887",
			"https://acme.wd1.myworkdayjobs.com/Careers/job/R-99887/Staff-Engineer",
		},
		{
			"lowercase token",
			"https://acme.wd3.myworkdayjobs.com/Careers/job/Remote/engineer_r-20001",
			"wd:R-20001",
			"https://acme.wd3.myworkdayjobs.com/Careers/job/Remote/engineer_r-20001",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := &domain.CaptureEntry{JobPostingURL: tc.url}
			assert.Equal(t, tc.id, New().Resolve(e))
			assert.Equal(t, tc.clean, e.JobPostingURL)
		})
	}
}

func TestResolveWorkdayWithoutRequisitionFallsBack(t *testing.T) {
	raw := "https://acme.wd5.myworkdayjobs.com/en-US/External/job/Remote/Senior2024Engineer"
	e := &domain.CaptureEntry{JobTitle: "SWE", Company: "Acme", JobPostingURL: raw, DateApplied: "2026-01-02"}
	id := New().Resolve(e)

	assert.Regexp(t, `^h:[0-9a-f]{16}$`, id)
	assert.Equal(t, raw, e.JobPostingURL)
}

func TestResolveFallbackHash(t *testing.T) {
	mk := func() *domain.CaptureEntry {
		return &domain.CaptureEntry{
			JobTitle:      "Backend Engineer",
			Company:       "Acme",
			JobPostingURL: "https://careers.acme.example/openings/42",
			DateApplied:   "2026-03-01",
		}
	}
	a, b := mk(), mk()
	r := New()
	require.Equal(t, r.Resolve(a), r.Resolve(b))
	assert.Regexp(t, `^h:[0-9a-f]{16}$`, a.RecordID)

	c := mk()
	c.DateApplied = "2026-03-02"
	assert.NotEqual(t, a.RecordID, r.Resolve(c))
}

func TestResolveEmptyURL(t *testing.T) {
	e := &domain.CaptureEntry{JobTitle: "X", Company: "Y"}
	id := New().Resolve(e)
	assert.Equal(t, ContentHash(&domain.CaptureEntry{JobTitle: "X", Company: "Y"}), id)
}

func TestResolveSchemeLessURL(t *testing.T) {
	e := &domain.CaptureEntry{JobPostingURL: "linkedin.com/jobs/view/123456789"}
	assert.Equal(t, "li:123456789", New().Resolve(e))
}

func TestCustomRulesTakePriority(t *testing.T) {
	r := New(Rule{Name: "always", Match: func(_ *url.URL) (string, string, bool) { return "x:1", "", true }})
	e := &domain.CaptureEntry{JobPostingURL: "https://www.linkedin.com/jobs/view/3912345678"}
	assert.Equal(t, "x:1", r.Resolve(e))
}
