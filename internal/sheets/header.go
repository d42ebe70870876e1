package sheets

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"google.golang.org/api/sheets/v4"

	"jobsheet-engine/internal/domain"
)

// Column labels. Header is the canonical order.
const (
	ColTitle       = "Job Title"
	ColDateApplied = "Date Applied"
	ColCompany     = "Company"
	ColLocation    = "Location"
	ColDatePosted  = "Date Posted"
	ColTimeline    = "Job Timeline"
	ColCoverLetter = "Cover Letter"
	ColStatus      = "Status"
	ColRecordID    = "Record ID"

	// ColSalary is optional and only filled when a user added it.
	ColSalary = "Salary"
)

var Header = []string{
	ColTitle, ColDateApplied, ColCompany, ColLocation, ColDatePosted,
	ColTimeline, ColCoverLetter, ColStatus, ColRecordID,
}

var columnWidths = map[string]int64{
	ColTitle:       320,
	ColDateApplied: 110,
	ColCompany:     200,
	ColLocation:    180,
	ColDatePosted:  110,
	ColTimeline:    140,
	ColCoverLetter: 110,
	ColStatus:      120,
	ColRecordID:    160,
}

// dedupedColumns may appear more than once in sheets written by older versions.
var dedupedColumns = []string{ColRecordID, ColCoverLetter, ColStatus}

type rgb struct{ r, g, b float64 }

var enumColors = map[string]map[string]rgb{
	ColCoverLetter: {
		domain.CoverLetterYes: {0.85, 0.94, 0.83},
		domain.CoverLetterNo:  {0.94, 0.94, 0.94},
	},
	ColStatus: {
		domain.StatusApplied:      {0.81, 0.89, 0.95},
		domain.StatusInterviewing: {1.00, 0.95, 0.80},
		domain.StatusOffer:        {0.85, 0.94, 0.83},
		domain.StatusRejected:     {0.96, 0.80, 0.80},
		domain.StatusGhosted:      {0.85, 0.85, 0.85},
		domain.StatusWithdrawn:    {0.93, 0.89, 0.96},
	},
}

var enumValues = map[string][]string{
	ColCoverLetter: domain.CoverLetterValues,
	ColStatus:      domain.StatusValues,
}

// EnsureHeader rewrites row 1 with the canonical labels and reapplies the
// header styling, dropdowns and colour rules. Data rows are left in place.
func (t *Table) EnsureHeader(ctx context.Context) error {
	_, err := t.ensureHeader(ctx)
	return err
}

func (t *Table) ensureHeader(ctx context.Context) (*sheets.Sheet, error) {
	sh, err := t.sheet(ctx)
	if err != nil {
		return nil, err
	}
	sheetID := sh.Properties.SheetId

	current, err := t.readHeader(ctx)
	if err != nil {
		return nil, err
	}
	if dups := duplicateColumns(current); len(dups) > 0 {
		reqs := make([]*sheets.Request, 0, len(dups))
		for _, idx := range dups {
			reqs = append(reqs, &sheets.Request{DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "COLUMNS",
					StartIndex: int64(idx),
					EndIndex:   int64(idx + 1),
				},
			}})
		}
		if _, err := t.batch(ctx, reqs); err != nil {
			return nil, errors.Wrap(err, "remove duplicate columns")
		}
		t.log.Info("removed duplicate columns", zap.Ints("indexes", dups))
		// Column deletes shift the conditional format ranges.
		if sh, err = t.sheet(ctx); err != nil {
			return nil, err
		}
	}

	row := make([]any, len(Header))
	for i, label := range Header {
		row[i] = label
	}
	rng := t.a1("A1:" + columnName(len(Header)-1) + "1")
	_, err = t.svc.Spreadsheets.Values.Update(t.spreadsheetID, rng, &sheets.ValueRange{Values: [][]any{row}}).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return nil, wrapAPI(err, "write header")
	}

	if _, err := t.batch(ctx, styleRequests(sh)); err != nil {
		return nil, errors.Wrap(err, "style header")
	}
	return sh, nil
}

// duplicateColumns returns the indexes to delete, right-most first, keeping
// the left-most occurrence of each deduplicated label.
func duplicateColumns(header []string) []int {
	var out []int
	for _, label := range dedupedColumns {
		seen := false
		for i, h := range header {
			if !sameLabel(h, label) {
				continue
			}
			if seen {
				out = append(out, i)
			}
			seen = true
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(out)))
	return out
}

func styleRequests(sh *sheets.Sheet) []*sheets.Request {
	sheetID := sh.Properties.SheetId
	var reqs []*sheets.Request

	// Drop previously applied colour rules on the enum columns, highest index first.
	for i := len(sh.ConditionalFormats) - 1; i >= 0; i-- {
		if ownedRule(sh.ConditionalFormats[i]) {
			reqs = append(reqs, &sheets.Request{DeleteConditionalFormatRule: &sheets.DeleteConditionalFormatRuleRequest{
				SheetId: sheetID,
				Index:   int64(i),
			}})
		}
	}

	reqs = append(reqs,
		&sheets.Request{RepeatCell: &sheets.RepeatCellRequest{
			Range: &sheets.GridRange{SheetId: sheetID, StartRowIndex: 0, EndRowIndex: 1},
			Cell: &sheets.CellData{UserEnteredFormat: &sheets.CellFormat{
				TextFormat: &sheets.TextFormat{Bold: true},
			}},
			Fields: "userEnteredFormat.textFormat.bold",
		}},
		&sheets.Request{UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
			Properties: &sheets.SheetProperties{
				SheetId:        sheetID,
				GridProperties: &sheets.GridProperties{FrozenRowCount: 1},
			},
			Fields: "gridProperties.frozenRowCount",
		}},
	)

	for i, label := range Header {
		reqs = append(reqs, &sheets.Request{UpdateDimensionProperties: &sheets.UpdateDimensionPropertiesRequest{
			Range: &sheets.DimensionRange{
				SheetId:    sheetID,
				Dimension:  "COLUMNS",
				StartIndex: int64(i),
				EndIndex:   int64(i + 1),
			},
			Properties: &sheets.DimensionProperties{PixelSize: columnWidths[label]},
			Fields:     "pixelSize",
		}})
	}

	var ruleIndex int64
	for _, label := range []string{ColCoverLetter, ColStatus} {
		col := int64(indexOf(Header, label))
		values := enumValues[label]

		cond := make([]*sheets.ConditionValue, len(values))
		for i, v := range values {
			cond[i] = &sheets.ConditionValue{UserEnteredValue: v}
		}
		reqs = append(reqs, &sheets.Request{SetDataValidation: &sheets.SetDataValidationRequest{
			Range: enumRange(sheetID, col),
			Rule: &sheets.DataValidationRule{
				Condition:    &sheets.BooleanCondition{Type: "ONE_OF_LIST", Values: cond},
				ShowCustomUi: true,
			},
		}})

		for _, v := range values {
			c := enumColors[label][v]
			reqs = append(reqs, &sheets.Request{AddConditionalFormatRule: &sheets.AddConditionalFormatRuleRequest{
				Index: ruleIndex,
				Rule: &sheets.ConditionalFormatRule{
					Ranges: []*sheets.GridRange{enumRange(sheetID, col)},
					BooleanRule: &sheets.BooleanRule{
						Condition: &sheets.BooleanCondition{
							Type:   "TEXT_EQ",
							Values: []*sheets.ConditionValue{{UserEnteredValue: v}},
						},
						Format: &sheets.CellFormat{BackgroundColor: &sheets.Color{Red: c.r, Green: c.g, Blue: c.b}},
					},
				},
			}})
			ruleIndex++
		}
	}
	return reqs
}

// enumRange covers one column below the header.
func enumRange(sheetID, col int64) *sheets.GridRange {
	return &sheets.GridRange{
		SheetId:          sheetID,
		StartRowIndex:    1,
		StartColumnIndex: col,
		EndColumnIndex:   col + 1,
	}
}

// ownedRule matches the colour rules styleRequests adds: one enum column, one
// enum value and that value's colour. Rules a user added are left alone.
func ownedRule(r *sheets.ConditionalFormatRule) bool {
	if r == nil || len(r.Ranges) != 1 || r.BooleanRule == nil || r.BooleanRule.Condition == nil {
		return false
	}
	cond := r.BooleanRule.Condition
	if cond.Type != "TEXT_EQ" || len(cond.Values) != 1 || r.BooleanRule.Format == nil {
		return false
	}
	g := r.Ranges[0]
	for _, label := range []string{ColCoverLetter, ColStatus} {
		col := int64(indexOf(Header, label))
		if g.StartColumnIndex != col || g.EndColumnIndex != col+1 {
			continue
		}
		c, ok := enumColors[label][cond.Values[0].UserEnteredValue]
		return ok && sameColor(r.BooleanRule.Format.BackgroundColor, c)
	}
	return false
}

// sameColor allows for the single-precision floats the API stores.
func sameColor(got *sheets.Color, want rgb) bool {
	if got == nil {
		return false
	}
	near := func(a, b float64) bool { return math.Abs(a-b) < 1e-3 }
	return near(got.Red, want.r) && near(got.Green, want.g) && near(got.Blue, want.b)
}

func sameLabel(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func indexOf(header []string, label string) int {
	for i, h := range header {
		if sameLabel(h, label) {
			return i
		}
	}
	return -1
}
