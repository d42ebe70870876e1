package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jobPostingPage = `<html><head>
<meta property="og:title" content="ignored when json-ld is present">
<script type="application/ld+json">
{"@context":"https://schema.org","@type":"JobPosting",
 "title":"Senior  Engineer",
 "hiringOrganization":{"@type":"Organization","name":"Acme"},
 "jobLocation":[{"@type":"Place","address":{"addressLocality":"Austin","addressRegion":"TX","addressCountry":"US"}}],
 "datePosted":"2026-02-20T10:00:00Z",
 "employmentType":["FULL_TIME"],
 "baseSalary":{"@type":"MonetaryAmount","currency":"USD","value":{"minValue":150000,"maxValue":180000,"unitText":"YEAR"}}}
</script></head><body><h1>Page heading</h1></body></html>`

func TestFromHTMLJobPosting(t *testing.T) {
	e, err := FromHTML("https://boards.greenhouse.io/acme/jobs/12345?utm_source=x&gh_src=abc#apply", jobPostingPage)
	require.NoError(t, err)

	assert.Equal(t, "Senior Engineer", e.JobTitle)
	assert.Equal(t, "Acme", e.Company)
	assert.Equal(t, "Austin, TX, US", e.Location)
	assert.Equal(t, "2026-02-20", e.ListingPostedDate)
	assert.Equal(t, "FULL_TIME", e.JobTimeline)
	assert.Equal(t, "USD 150000-180000 / year", e.SalaryText)
	assert.Equal(t, "https://boards.greenhouse.io/acme/jobs/12345", e.JobPostingURL)
	assert.Equal(t, "greenhouse", e.Source)
}

func TestFromHTMLGraphAndRemote(t *testing.T) {
	page := `<html><head><script type="application/ld+json">
{"@context":"https://schema.org","@graph":[
 {"@type":"WebPage","name":"Careers"},
 {"@type":["JobPosting"],"title":"Platform Engineer","hiringOrganization":"Initech","jobLocationType":"TELECOMMUTE"}]}
</script></head><body></body></html>`

	e, err := FromHTML("https://jobs.ashbyhq.com/initech/abc", page)
	require.NoError(t, err)
	assert.Equal(t, "Platform Engineer", e.JobTitle)
	assert.Equal(t, "Initech", e.Company)
	assert.Equal(t, "Remote", e.Location)
	assert.Equal(t, "ashby", e.Source)
}

func TestFromHTMLOpenGraphFallback(t *testing.T) {
	page := `<html><head>
<meta property="og:title" content="Backend Developer">
<meta property="og:site_name" content="Globex">
<script type="application/ld+json">{ not json</script>
</head><body><div>Location: Denver, CO | Full time</div></body></html>`

	e, err := FromHTML("https://careers.globex.example/jobs/9", page)
	require.NoError(t, err)
	assert.Equal(t, "Backend Developer", e.JobTitle)
	assert.Equal(t, "Globex", e.Company)
	assert.Equal(t, "Denver, CO", e.Location)
	assert.Equal(t, "page", e.Source)
}

func TestFromHTMLNotAPosting(t *testing.T) {
	_, err := FromHTML("https://example.com", `<html><body><p>hello</p></body></html>`)
	assert.ErrorIs(t, err, ErrNoPosting)
}

func TestCanonicalURL(t *testing.T) {
	assert.Empty(t, CanonicalURL("  "))
	assert.Equal(t, "https://example.com/a?a=1&b=2",
		CanonicalURL("HTTPS://Example.COM/a?b=2&a=1&utm_medium=e"))
	assert.Equal(t, "https://www.linkedin.com/jobs/search/?currentJobId=4012345678",
		CanonicalURL("https://www.linkedin.com/jobs/search/?currentJobId=4012345678&keywords=go&trk=x"))
	assert.Equal(t, "https://jobs.lever.co/acme/uuid",
		CanonicalURL("https://jobs.lever.co/acme/uuid?fbclid=1#top"))
}

func TestNormalizeLocation(t *testing.T) {
	assert.Equal(t, "Seattle, WA", NormalizeLocation("Location:  Seattle,  WA, seattle"))
	assert.Equal(t, "", NormalizeLocation("   "))
}

func TestFindLocationSelector(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<html><body><div class="job__location"> New York, NY </div></body></html>`))
	require.NoError(t, err)
	assert.Equal(t, "New York, NY", FindLocation(doc))
}

func TestLabeledLocationTooLong(t *testing.T) {
	assert.Empty(t, LabeledLocation("Location: "+strings.Repeat("x", 100)))
	assert.Equal(t, "Boston, MA", LabeledLocation("Job Location: Boston, MA\nApply now"))
}
