package sheets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"google.golang.org/api/sheets/v4"

	"jobsheet-engine/internal/domain"
)

type Table struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetName     string
	log           *zap.Logger
}

// Grid is the sheet as stored: header row, data rows and a version token.
type Grid struct {
	Header  []string   `json:"header"`
	Rows    [][]string `json:"rows"`
	Version string     `json:"version"`
}

// Record is one decoded data row. Row is the 1-based sheet row.
type Record struct {
	Row         int    `json:"row"`
	RecordID    string `json:"record_id"`
	Title       string `json:"job_title"`
	URL         string `json:"job_posting_url"`
	DateApplied string `json:"date_applied"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	DatePosted  string `json:"listing_posted_date"`
	Timeline    string `json:"job_timeline"`
	CoverLetter string `json:"cover_letter"`
	Status      string `json:"status"`
	Salary      string `json:"salary_text,omitempty"`
}

type Snapshot struct {
	Header  []string `json:"header"`
	Records []Record `json:"records"`
	Version string   `json:"version"`
}

// Patch lists the fields to change; nil fields are left alone. Title,
// Company and DateApplied also drive the legacy-row fallback lookup.
type Patch struct {
	Title       *string `json:"job_title,omitempty"`
	URL         *string `json:"job_posting_url,omitempty"`
	DateApplied *string `json:"date_applied,omitempty"`
	Company     *string `json:"company,omitempty"`
	Location    *string `json:"location,omitempty"`
	DatePosted  *string `json:"listing_posted_date,omitempty"`
	Timeline    *string `json:"job_timeline,omitempty"`
	CoverLetter *string `json:"cover_letter,omitempty"`
	Status      *string `json:"status,omitempty"`
	Salary      *string `json:"salary_text,omitempty"`
}

func (p Patch) field(label string) *string {
	switch {
	case sameLabel(label, ColDateApplied):
		return p.DateApplied
	case sameLabel(label, ColCompany):
		return p.Company
	case sameLabel(label, ColLocation):
		return p.Location
	case sameLabel(label, ColDatePosted):
		return p.DatePosted
	case sameLabel(label, ColTimeline):
		return p.Timeline
	case sameLabel(label, ColCoverLetter):
		if p.CoverLetter != nil {
			v := domain.NormalizeCoverLetter(*p.CoverLetter)
			return &v
		}
	case sameLabel(label, ColStatus):
		if p.Status != nil {
			v := domain.NormalizeStatus(*p.Status)
			return &v
		}
	case sameLabel(label, ColSalary):
		return p.Salary
	}
	return nil
}

func (t *Table) a1(r string) string { return quoteSheet(t.sheetName) + "!" + r }

// AppendRow writes e below the last row, mapping fields onto the current
// header by label. Labels the entry has no value for are left empty.
func (t *Table) AppendRow(ctx context.Context, e domain.CaptureEntry) error {
	if err := t.EnsureHeader(ctx); err != nil {
		return err
	}
	header, err := t.readHeader(ctx)
	if err != nil {
		return err
	}

	row := make([]any, len(header))
	for i, label := range header {
		row[i] = entryCell(label, e)
	}

	_, err = t.svc.Spreadsheets.Values.Append(t.spreadsheetID, t.a1("A1"), &sheets.ValueRange{Values: [][]any{row}}).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return wrapAPI(err, "append row")
	}
	t.log.Debug("row appended", zap.String("record_id", e.RecordID))
	return nil
}

func entryCell(label string, e domain.CaptureEntry) string {
	if sameLabel(label, ColTitle) {
		return linkCell(e.JobTitle, e.JobPostingURL)
	}
	return literalCell(entryValue(label, e))
}

func entryValue(label string, e domain.CaptureEntry) string {
	switch {
	case sameLabel(label, ColDateApplied):
		return e.DateApplied
	case sameLabel(label, ColCompany):
		return e.Company
	case sameLabel(label, ColLocation):
		return e.Location
	case sameLabel(label, ColDatePosted):
		return e.ListingPostedDate
	case sameLabel(label, ColTimeline):
		return e.JobTimeline
	case sameLabel(label, ColCoverLetter):
		return e.CoverLetter
	case sameLabel(label, ColStatus):
		return e.Status
	case sameLabel(label, ColRecordID):
		return e.RecordID
	case sameLabel(label, ColSalary):
		return e.SalaryText
	}
	return ""
}

// ReadRaw returns header and rows with formulas unevaluated so links survive.
// Version is the response ETag, or a hash of the payload when there is none.
func (t *Table) ReadRaw(ctx context.Context) (Grid, error) {
	vr, err := t.svc.Spreadsheets.Values.Get(t.spreadsheetID, t.a1("A:ZZ")).
		ValueRenderOption("FORMULA").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return Grid{}, wrapAPI(err, "read sheet")
	}

	rows := toStrings(vr.Values)
	g := Grid{Header: []string{}, Rows: [][]string{}}
	if len(rows) > 0 {
		g.Header = rows[0]
		g.Rows = rows[1:]
	}
	g.Version = strings.Trim(vr.Header.Get("ETag"), `"`)
	if g.Version == "" {
		g.Version = payloadVersion(rows)
	}
	return g, nil
}

func payloadVersion(rows [][]string) string {
	b, _ := json.Marshal(rows)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func (t *Table) ReadAll(ctx context.Context) (Snapshot, error) {
	g, err := t.ReadRaw(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Header: g.Header, Records: []Record{}, Version: g.Version}
	for i, row := range g.Rows {
		if blankRow(row) {
			continue
		}
		snap.Records = append(snap.Records, decodeRow(g.Header, row, i+2))
	}
	return snap, nil
}

func decodeRow(header, row []string, sheetRow int) Record {
	rec := Record{Row: sheetRow}
	for i, label := range header {
		if i >= len(row) {
			break
		}
		v := strings.TrimSpace(row[i])
		if sameLabel(label, ColTitle) {
			rec.Title, rec.URL = parseLinkCell(v)
			continue
		}
		v = unliteralCell(v)
		switch {
		case sameLabel(label, ColDateApplied):
			rec.DateApplied = normalizeDate(v)
		case sameLabel(label, ColCompany):
			rec.Company = v
		case sameLabel(label, ColLocation):
			rec.Location = v
		case sameLabel(label, ColDatePosted):
			rec.DatePosted = normalizeDate(v)
		case sameLabel(label, ColTimeline):
			rec.Timeline = v
		case sameLabel(label, ColCoverLetter):
			rec.CoverLetter = v
		case sameLabel(label, ColStatus):
			rec.Status = v
		case sameLabel(label, ColRecordID):
			rec.RecordID = v
		case sameLabel(label, ColSalary):
			rec.Salary = v
		}
	}
	return rec
}

// UpdateByRecordID rewrites the row holding id with p applied. Rows written
// before the id column existed are found by title, company and date applied
// from p, and get the id backfilled.
func (t *Table) UpdateByRecordID(ctx context.Context, id string, p Patch) error {
	if _, err := t.ensureHeader(ctx); err != nil {
		return err
	}
	g, err := t.ReadRaw(ctx)
	if err != nil {
		return err
	}
	idCol := indexOf(g.Header, ColRecordID)
	if idCol < 0 {
		return ErrNoIDColumn
	}

	idx := findByID(g, idCol, id)
	backfill := false
	if idx < 0 {
		idx = findLegacy(g, idCol, p)
		backfill = idx >= 0
	}
	if idx < 0 {
		return errors.Wrapf(ErrNotFound, "record %s", id)
	}

	width := len(g.Header)
	if n := len(g.Rows[idx]); n > width {
		width = n
	}
	row := make([]string, width)
	copy(row, g.Rows[idx])

	// The row goes back as USER_ENTERED, so text in the engine's columns is
	// quote-prefixed again. Other columns are written as read.
	for i, label := range g.Header {
		if sameLabel(label, ColTitle) {
			title, link := parseLinkCell(row[i])
			if p.Title != nil {
				title = *p.Title
			}
			if p.URL != nil {
				link = *p.URL
			}
			row[i] = linkCell(title, link)
			continue
		}
		if !engineColumn(label) {
			continue
		}
		row[i] = literalCell(unliteralCell(row[i]))
		if v := p.field(label); v != nil {
			row[i] = literalCell(*v)
		}
	}
	if backfill {
		row[idCol] = literalCell(id)
	}

	values := make([]any, len(row))
	for i, v := range row {
		values[i] = v
	}
	sheetRow := idx + 2
	rng := t.a1(strconv.Itoa(sheetRow) + ":" + strconv.Itoa(sheetRow))
	_, err = t.svc.Spreadsheets.Values.Update(t.spreadsheetID, rng, &sheets.ValueRange{Values: [][]any{values}}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return wrapAPI(err, "update row")
	}
	t.log.Debug("row updated", zap.String("record_id", id), zap.Int("row", sheetRow), zap.Bool("backfilled", backfill))
	return nil
}

// DeleteByRecordID removes the row holding id. There is no legacy fallback.
func (t *Table) DeleteByRecordID(ctx context.Context, id string) error {
	sh, err := t.ensureHeader(ctx)
	if err != nil {
		return err
	}
	g, err := t.ReadRaw(ctx)
	if err != nil {
		return err
	}
	idCol := indexOf(g.Header, ColRecordID)
	if idCol < 0 {
		return ErrNoIDColumn
	}
	idx := findByID(g, idCol, id)
	if idx < 0 {
		return errors.Wrapf(ErrNotFound, "record %s", id)
	}

	// Data row idx sits at zero-based sheet row idx+1.
	_, err = t.batch(ctx, []*sheets.Request{{DeleteDimension: &sheets.DeleteDimensionRequest{
		Range: &sheets.DimensionRange{
			SheetId:    sh.Properties.SheetId,
			Dimension:  "ROWS",
			StartIndex: int64(idx + 1),
			EndIndex:   int64(idx + 2),
		},
	}}})
	if err != nil {
		return errors.Wrap(err, "delete row")
	}
	t.log.Debug("row deleted", zap.String("record_id", id), zap.Int("row", idx+2))
	return nil
}

func findByID(g Grid, idCol int, id string) int {
	id = strings.TrimSpace(id)
	if id == "" {
		return -1
	}
	for i, row := range g.Rows {
		if idCol < len(row) && unliteralCell(strings.TrimSpace(row[idCol])) == id {
			return i
		}
	}
	return -1
}

func engineColumn(label string) bool {
	return sameLabel(label, ColSalary) || indexOf(Header, label) >= 0
}

// findLegacy matches rows without an id on title, company and date applied.
func findLegacy(g Grid, idCol int, p Patch) int {
	if p.Title == nil || p.Company == nil || p.DateApplied == nil {
		return -1
	}
	want := Record{
		Title:       strings.TrimSpace(*p.Title),
		Company:     strings.TrimSpace(*p.Company),
		DateApplied: normalizeDate(*p.DateApplied),
	}
	for i, row := range g.Rows {
		if idCol < len(row) && strings.TrimSpace(row[idCol]) != "" {
			continue
		}
		rec := decodeRow(g.Header, row, i+2)
		if strings.EqualFold(rec.Title, want.Title) &&
			strings.EqualFold(rec.Company, want.Company) &&
			rec.DateApplied == want.DateApplied {
			return i
		}
	}
	return -1
}

// sheet resolves the tab, adding it when the spreadsheet does not have it yet.
func (t *Table) sheet(ctx context.Context) (*sheets.Sheet, error) {
	ss, err := t.svc.Spreadsheets.Get(t.spreadsheetID).
		Fields("sheets(properties,conditionalFormats)").
		Context(ctx).Do()
	if err != nil {
		return nil, wrapAPI(err, "get spreadsheet")
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == t.sheetName {
			return sh, nil
		}
	}

	resp, err := t.batch(ctx, []*sheets.Request{{AddSheet: &sheets.AddSheetRequest{
		Properties: &sheets.SheetProperties{Title: t.sheetName},
	}}})
	if err != nil {
		return nil, errors.Wrap(err, "add sheet")
	}
	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil || resp.Replies[0].AddSheet.Properties == nil {
		return nil, errors.Newf("sheet %q could not be created", t.sheetName)
	}
	t.log.Info("sheet tab added")
	return &sheets.Sheet{Properties: resp.Replies[0].AddSheet.Properties}, nil
}

func (t *Table) readHeader(ctx context.Context) ([]string, error) {
	vr, err := t.svc.Spreadsheets.Values.Get(t.spreadsheetID, t.a1("1:1")).Context(ctx).Do()
	if err != nil {
		return nil, wrapAPI(err, "read header")
	}
	rows := toStrings(vr.Values)
	if len(rows) == 0 {
		return []string{}, nil
	}
	return rows[0], nil
}

func (t *Table) batch(ctx context.Context, reqs []*sheets.Request) (*sheets.BatchUpdateSpreadsheetResponse, error) {
	if len(reqs) == 0 {
		return &sheets.BatchUpdateSpreadsheetResponse{}, nil
	}
	resp, err := t.svc.Spreadsheets.BatchUpdate(t.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{Requests: reqs}).
		Context(ctx).Do()
	if err != nil {
		return nil, wrapAPI(err, "batch update")
	}
	return resp, nil
}
