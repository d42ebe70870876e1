package domain

import "strings"

// Cover Letter column values.
const (
	CoverLetterYes = "Yes"
	CoverLetterNo  = "No"
)

// Status column values.
const (
	StatusApplied      = "Applied"
	StatusInterviewing = "Interviewing"
	StatusOffer        = "Offer"
	StatusRejected     = "Rejected"
	StatusGhosted      = "Ghosted"
	StatusWithdrawn    = "Withdrawn"
)

var (
	CoverLetterValues = []string{CoverLetterYes, CoverLetterNo}
	StatusValues      = []string{StatusApplied, StatusInterviewing, StatusOffer, StatusRejected, StatusGhosted, StatusWithdrawn}
)

func NormalizeCoverLetter(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "":
		return ""
	case "yes", "y", "true", "1":
		return CoverLetterYes
	case "no", "n", "false", "0":
		return CoverLetterNo
	default:
		return strings.TrimSpace(v)
	}
}

// NormalizeStatus maps loose spellings onto the dropdown values; unknown values pass through.
func NormalizeStatus(v string) string {
	v = strings.TrimSpace(v)
	for _, s := range StatusValues {
		if strings.EqualFold(v, s) {
			return s
		}
	}
	switch strings.ToLower(v) {
	case "interview", "interviewing", "oa":
		return StatusInterviewing
	case "withdrew":
		return StatusWithdrawn
	}
	return v
}
