package sheets

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"

	"google.golang.org/api/sheets/v4"
)

// fakeTab is one sheet tab held as plain strings.
type fakeTab struct {
	id          int64
	title       string
	rows        [][]string
	frozen      int64
	widths      map[int64]int64
	validations int
	bold        bool
	cond        []*sheets.ConditionalFormatRule
}

// fakeSheets serves the subset of the Sheets v4 REST API the client uses.
type fakeSheets struct {
	t   *testing.T
	srv *httptest.Server

	mu         sync.Mutex
	docs       map[string][]*fakeTab
	nextID     int64
	etag       string
	failAppend int
	appends    int
	batches    [][]*sheets.Request
}

func newFakeSheets(t *testing.T) *fakeSheets {
	f := &fakeSheets{t: t, docs: map[string][]*fakeTab{}, nextID: 100}
	f.srv = httptest.NewServer(f)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeSheets) addTab(doc, title string, rows ...[]string) *fakeTab {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	tab := &fakeTab{id: f.nextID, title: title, widths: map[int64]int64{}}
	for _, r := range rows {
		tab.rows = append(tab.rows, append([]string(nil), r...))
	}
	f.docs[doc] = append(f.docs[doc], tab)
	return tab
}

func (f *fakeSheets) tab(doc, title string) *fakeTab {
	for _, tab := range f.docs[doc] {
		if tab.title == title {
			return tab
		}
	}
	return nil
}

func (f *fakeSheets) tabByID(doc string, id int64) *fakeTab {
	for _, tab := range f.docs[doc] {
		if tab.id == id {
			return tab
		}
	}
	return nil
}

// snapshot returns a copy of the tab rows.
func (f *fakeSheets) snapshot(doc, title string) [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	tab := f.tab(doc, title)
	if tab == nil {
		return nil
	}
	out := make([][]string, len(tab.rows))
	for i, r := range tab.rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	if path == "/v4/spreadsheets" && r.Method == http.MethodPost {
		f.create(w, r)
		return
	}
	rest, ok := strings.CutPrefix(path, "/v4/spreadsheets/")
	if !ok {
		apiError(w, http.StatusNotFound, "unknown path "+path)
		return
	}

	switch {
	case strings.HasSuffix(rest, ":batchUpdate"):
		f.batchUpdate(w, r, strings.TrimSuffix(rest, ":batchUpdate"))
	case strings.Contains(rest, "/values/"):
		doc, rng, _ := strings.Cut(rest, "/values/")
		switch {
		case strings.HasSuffix(rng, ":append"):
			f.appendValues(w, r, doc, strings.TrimSuffix(rng, ":append"))
		case r.Method == http.MethodGet:
			f.getValues(w, doc, rng)
		case r.Method == http.MethodPut:
			f.updateValues(w, r, doc, rng)
		default:
			apiError(w, http.StatusMethodNotAllowed, r.Method)
		}
	default:
		f.getSpreadsheet(w, rest)
	}
}

func apiError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": status, "message": msg},
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(t *testing.T, r *http.Request, out any) {
	b, err := io.ReadAll(r.Body)
	if err == nil {
		err = json.Unmarshal(b, out)
	}
	if err != nil {
		t.Errorf("decode %s body: %v", r.URL.Path, err)
	}
}

// splitRange turns 'Tab'!A1:B2 into (Tab, A1:B2).
func splitRange(rng string) (string, string) {
	i := strings.LastIndex(rng, "!")
	if i < 0 {
		return rng, ""
	}
	name := rng[:i]
	if strings.HasPrefix(name, "'") && strings.HasSuffix(name, "'") {
		name = strings.ReplaceAll(name[1:len(name)-1], "''", "'")
	}
	return name, rng[i+1:]
}

var (
	reRowRange = regexp.MustCompile(`^(\d+):(\d+)$`)
	reCell     = regexp.MustCompile(`^([A-Z]+)(\d+)`)
)

// start returns the zero-based top-left cell of an A1 range.
func start(a1 string) (row, col int) {
	if m := reRowRange.FindStringSubmatch(a1); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n - 1, 0
	}
	if m := reCell.FindStringSubmatch(a1); m != nil {
		n, _ := strconv.Atoi(m[2])
		c := 0
		for _, ch := range m[1] {
			c = c*26 + int(ch-'A'+1)
		}
		return n - 1, c - 1
	}
	return 0, 0
}

func trimRows(rows [][]string) [][]any {
	out := [][]any{}
	for _, r := range rows {
		n := len(r)
		for n > 0 && r[n-1] == "" {
			n--
		}
		row := make([]any, n)
		for i := 0; i < n; i++ {
			row[i] = r[i]
		}
		out = append(out, row)
	}
	for len(out) > 0 && len(out[len(out)-1]) == 0 {
		out = out[:len(out)-1]
	}
	return out
}

func (f *fakeSheets) getSpreadsheet(w http.ResponseWriter, doc string) {
	tabs, ok := f.docs[doc]
	if !ok {
		apiError(w, http.StatusNotFound, "Requested entity was not found.")
		return
	}
	ss := &sheets.Spreadsheet{
		SpreadsheetId: doc,
		Properties:    &sheets.SpreadsheetProperties{Title: "Applications " + doc},
	}
	for _, tab := range tabs {
		ss.Sheets = append(ss.Sheets, &sheets.Sheet{
			Properties: &sheets.SheetProperties{
				SheetId:        tab.id,
				Title:          tab.title,
				GridProperties: &sheets.GridProperties{FrozenRowCount: tab.frozen},
			},
			ConditionalFormats: tab.cond,
		})
	}
	writeJSON(w, ss)
}

func (f *fakeSheets) create(w http.ResponseWriter, r *http.Request) {
	var req sheets.Spreadsheet
	decodeBody(f.t, r, &req)
	f.nextID++
	doc := "created-" + strconv.FormatInt(f.nextID, 10)
	f.docs[doc] = nil
	for _, sh := range req.Sheets {
		f.nextID++
		f.docs[doc] = append(f.docs[doc], &fakeTab{id: f.nextID, title: sh.Properties.Title, widths: map[int64]int64{}})
	}
	req.SpreadsheetId = doc
	writeJSON(w, &req)
}

func (f *fakeSheets) getValues(w http.ResponseWriter, doc, rng string) {
	name, a1 := splitRange(rng)
	tab := f.tab(doc, name)
	if tab == nil {
		apiError(w, http.StatusBadRequest, "Unable to parse range: "+rng)
		return
	}
	var rows [][]string
	if m := reRowRange.FindStringSubmatch(a1); m != nil {
		n, _ := strconv.Atoi(m[1])
		if n-1 < len(tab.rows) {
			rows = [][]string{tab.rows[n-1]}
		}
	} else {
		rows = tab.rows
	}
	if f.etag != "" {
		w.Header().Set("ETag", f.etag)
	}
	resp := map[string]any{"range": rng, "majorDimension": "ROWS"}
	if vals := trimRows(rows); len(vals) > 0 {
		resp["values"] = vals
	}
	writeJSON(w, resp)
}

func (f *fakeSheets) updateValues(w http.ResponseWriter, r *http.Request, doc, rng string) {
	var vr sheets.ValueRange
	decodeBody(f.t, r, &vr)
	name, a1 := splitRange(rng)
	tab := f.tab(doc, name)
	if tab == nil {
		apiError(w, http.StatusBadRequest, "Unable to parse range: "+rng)
		return
	}
	row0, col0 := start(a1)
	for i, vals := range vr.Values {
		for row0+i >= len(tab.rows) {
			tab.rows = append(tab.rows, nil)
		}
		row := tab.rows[row0+i]
		for j, v := range vals {
			for col0+j >= len(row) {
				row = append(row, "")
			}
			row[col0+j] = cellString(v)
		}
		tab.rows[row0+i] = row
	}
	writeJSON(w, map[string]any{"spreadsheetId": doc, "updatedRange": rng})
}

func (f *fakeSheets) appendValues(w http.ResponseWriter, r *http.Request, doc, rng string) {
	if f.failAppend != 0 {
		apiError(w, f.failAppend, "backend error")
		return
	}
	var vr sheets.ValueRange
	decodeBody(f.t, r, &vr)
	name, _ := splitRange(rng)
	tab := f.tab(doc, name)
	if tab == nil {
		apiError(w, http.StatusBadRequest, "Unable to parse range: "+rng)
		return
	}
	last := len(trimRows(tab.rows))
	tab.rows = tab.rows[:last]
	for _, vals := range vr.Values {
		row := make([]string, len(vals))
		for j, v := range vals {
			row[j] = cellString(v)
		}
		tab.rows = append(tab.rows, row)
	}
	f.appends++
	writeJSON(w, map[string]any{"spreadsheetId": doc, "tableRange": rng})
}

func (f *fakeSheets) batchUpdate(w http.ResponseWriter, r *http.Request, doc string) {
	var req sheets.BatchUpdateSpreadsheetRequest
	decodeBody(f.t, r, &req)
	f.batches = append(f.batches, req.Requests)

	resp := &sheets.BatchUpdateSpreadsheetResponse{SpreadsheetId: doc}
	for _, q := range req.Requests {
		reply := &sheets.Response{}
		switch {
		case q.AddSheet != nil:
			f.nextID++
			tab := &fakeTab{id: f.nextID, title: q.AddSheet.Properties.Title, widths: map[int64]int64{}}
			f.docs[doc] = append(f.docs[doc], tab)
			reply.AddSheet = &sheets.AddSheetResponse{Properties: &sheets.SheetProperties{SheetId: tab.id, Title: tab.title}}
		case q.DeleteDimension != nil:
			d := q.DeleteDimension.Range
			tab := f.tabByID(doc, d.SheetId)
			if d.Dimension == "ROWS" {
				tab.rows = append(tab.rows[:d.StartIndex], tab.rows[d.EndIndex:]...)
				break
			}
			for i, row := range tab.rows {
				if int(d.StartIndex) < len(row) {
					end := int(d.EndIndex)
					if end > len(row) {
						end = len(row)
					}
					tab.rows[i] = append(row[:d.StartIndex], row[end:]...)
				}
			}
		case q.RepeatCell != nil:
			f.tabByID(doc, q.RepeatCell.Range.SheetId).bold = q.RepeatCell.Cell.UserEnteredFormat.TextFormat.Bold
		case q.UpdateSheetProperties != nil:
			p := q.UpdateSheetProperties.Properties
			f.tabByID(doc, p.SheetId).frozen = p.GridProperties.FrozenRowCount
		case q.UpdateDimensionProperties != nil:
			d := q.UpdateDimensionProperties.Range
			f.tabByID(doc, d.SheetId).widths[d.StartIndex] = q.UpdateDimensionProperties.Properties.PixelSize
		case q.SetDataValidation != nil:
			f.tabByID(doc, q.SetDataValidation.Range.SheetId).validations++
		case q.DeleteConditionalFormatRule != nil:
			tab := f.tabByID(doc, q.DeleteConditionalFormatRule.SheetId)
			i := q.DeleteConditionalFormatRule.Index
			tab.cond = append(tab.cond[:i], tab.cond[i+1:]...)
		case q.AddConditionalFormatRule != nil:
			rule := q.AddConditionalFormatRule.Rule
			tab := f.tabByID(doc, rule.Ranges[0].SheetId)
			i := int(q.AddConditionalFormatRule.Index)
			if i > len(tab.cond) {
				i = len(tab.cond)
			}
			tab.cond = append(tab.cond[:i], append([]*sheets.ConditionalFormatRule{rule}, tab.cond[i:]...)...)
		}
		resp.Replies = append(resp.Replies, reply)
	}
	writeJSON(w, resp)
}
