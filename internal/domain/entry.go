package domain

import (
	"strings"
	"time"
)

// DateLayout is the calendar format used for every date cell in the sheet.
const DateLayout = "2006-01-02"

// CaptureEntry is one detected job application, as handed over by an extractor.
// RecordID stays empty until the identity resolver assigns one.
type CaptureEntry struct {
	JobTitle          string `json:"job_title"`
	Company           string `json:"company"`
	Location          string `json:"location"`
	JobPostingURL     string `json:"job_posting_url"`
	DateApplied       string `json:"date_applied"`
	ListingPostedDate string `json:"listing_posted_date"`
	JobTimeline       string `json:"job_timeline"`
	SalaryText        string `json:"salary_text"`
	CoverLetter       string `json:"cover_letter,omitempty"`
	Status            string `json:"status,omitempty"`
	RecordID          string `json:"record_id,omitempty"`
	Source            string `json:"source,omitempty"` // linkedin/workday/greenhouse/page/...
}

// Normalize trims every field and fills DateApplied with the given day when it is missing.
func (e *CaptureEntry) Normalize(now time.Time) {
	e.JobTitle = CleanText(e.JobTitle)
	e.Company = CleanText(e.Company)
	e.Location = CleanText(e.Location)
	e.JobPostingURL = strings.TrimSpace(e.JobPostingURL)
	e.DateApplied = strings.TrimSpace(e.DateApplied)
	e.ListingPostedDate = strings.TrimSpace(e.ListingPostedDate)
	e.JobTimeline = CleanText(e.JobTimeline)
	e.SalaryText = CleanText(e.SalaryText)
	e.CoverLetter = NormalizeCoverLetter(e.CoverLetter)
	e.Status = NormalizeStatus(e.Status)
	e.RecordID = strings.TrimSpace(e.RecordID)
	e.Source = strings.ToLower(strings.TrimSpace(e.Source))

	if e.DateApplied == "" {
		e.DateApplied = now.Format(DateLayout)
	}
}

// CleanText collapses whitespace runs and non-breaking spaces.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}
