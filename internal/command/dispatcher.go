// Package command routes named requests from UI collaborators to the capture
// orchestrator and the destination table.
package command

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"jobsheet-engine/internal/capture"
	"jobsheet-engine/internal/config"
	"jobsheet-engine/internal/dedup"
	"jobsheet-engine/internal/domain"
	"jobsheet-engine/internal/events"
	"jobsheet-engine/internal/extract"
	"jobsheet-engine/internal/sheets"
)

// Command names.
const (
	TestConnection = "test-connection"
	AppendEntry    = "append-entry"
	WorkdayCapture = "workday-capture"
	GetSettings    = "get-settings"
	SaveSettings   = "save-settings"
	GetRecent      = "get-recent"
	DeleteRecord   = "delete-record"
	SheetPull      = "sheet-pull"
	SheetUpdate    = "sheet-update"
	CreateSheet    = "create-sheet"
	CapturePage    = "capture-page"
	CacheHealth    = "cache-health"
)

const defaultSpreadsheetTitle = "Job Applications"

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrBadRequest     = errors.New("bad request")
)

func badRequest(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrBadRequest)
}

// Request is the envelope every command arrives in. Only the fields the
// named command reads need to be set.
type Request struct {
	Type     string               `json:"type"`
	Entry    *domain.CaptureEntry `json:"entry,omitempty"`
	Settings *config.Settings     `json:"settings,omitempty"`
	RecordID string               `json:"recordId,omitempty"`
	Patch    *sheets.Patch        `json:"patch,omitempty"`
	Title    string               `json:"title,omitempty"`
	URL      string               `json:"url,omitempty"`
	HTML     string               `json:"html,omitempty"`
}

type Capturer interface {
	Capture(ctx context.Context, e domain.CaptureEntry) (capture.Result, error)
	Forget(ctx context.Context, id string) error
	Recent(ctx context.Context) ([]domain.CaptureEntry, error)
	CacheHealth(ctx context.Context) (dedup.Health, error)
}

type SettingsStore interface {
	Load(ctx context.Context) (config.Settings, error)
	Save(ctx context.Context, s config.Settings) (config.Settings, error)
}

// Table is the part of sheets.Table the commands use.
type Table interface {
	EnsureHeader(ctx context.Context) error
	ReadRaw(ctx context.Context) (sheets.Grid, error)
	UpdateByRecordID(ctx context.Context, id string, p sheets.Patch) error
	DeleteByRecordID(ctx context.Context, id string) error
}

type Spreadsheets interface {
	CreateSpreadsheet(ctx context.Context, title, sheetName string) (string, error)
	Describe(ctx context.Context, spreadsheetID string) (sheets.Info, error)
}

type Deps struct {
	Capture      Capturer
	Settings     SettingsStore
	Tables       func(config.Settings) Table
	Spreadsheets Spreadsheets
	Events       *events.Hub
	Logger       *zap.Logger
}

type Dispatcher struct {
	d   Deps
	log *zap.Logger
}

func New(d Deps) *Dispatcher {
	if d.Events == nil {
		d.Events = events.NewHub()
	}
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{d: d, log: log.Named("command")}
}

// Dispatch runs one command and returns its JSON-encodable response.
func (x *Dispatcher) Dispatch(ctx context.Context, req Request) (any, error) {
	typ := strings.ToLower(strings.TrimSpace(req.Type))
	x.log.Debug("dispatch", zap.String("type", typ), zap.String("request_id", events.RequestIDFrom(ctx)))

	switch typ {
	case TestConnection:
		return x.testConnection(ctx)
	case AppendEntry, WorkdayCapture:
		if req.Entry == nil {
			return nil, badRequest("%s requires entry", typ)
		}
		return x.d.Capture.Capture(ctx, *req.Entry)
	case GetSettings:
		s, err := x.d.Settings.Load(ctx)
		if err != nil {
			return nil, err
		}
		return SettingsResponse{Settings: s}, nil
	case SaveSettings:
		return x.saveSettings(ctx, req)
	case GetRecent:
		list, err := x.d.Capture.Recent(ctx)
		if err != nil {
			return nil, err
		}
		if list == nil {
			list = []domain.CaptureEntry{}
		}
		return RecentResponse{Entries: list}, nil
	case DeleteRecord:
		return x.deleteRecord(ctx, req)
	case SheetPull:
		t, err := x.table(ctx)
		if err != nil {
			return nil, err
		}
		return t.ReadRaw(ctx)
	case SheetUpdate:
		return x.sheetUpdate(ctx, req)
	case CreateSheet:
		return x.createSheet(ctx, req)
	case CapturePage:
		return x.capturePage(ctx, req)
	case CacheHealth:
		return x.d.Capture.CacheHealth(ctx)
	case "":
		return nil, badRequest("missing command type")
	default:
		return nil, errors.Wrapf(ErrUnknownCommand, "%q", req.Type)
	}
}

type SettingsResponse struct {
	Settings config.Settings `json:"settings"`
}

type RecentResponse struct {
	Entries []domain.CaptureEntry `json:"entries"`
}

type ConnectionResponse struct {
	OK          bool        `json:"ok"`
	Spreadsheet sheets.Info `json:"spreadsheet"`
}

type DeleteResponse struct {
	Deleted  bool   `json:"deleted"`
	RecordID string `json:"recordId"`
}

type VersionResponse struct {
	Version string `json:"version"`
}

type CreateSheetResponse struct {
	SheetID string `json:"sheetId"`
}

// table opens the configured destination or fails with capture.ErrNotConfigured.
func (x *Dispatcher) table(ctx context.Context) (Table, error) {
	s, err := x.d.Settings.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !s.Configured() {
		return nil, capture.ErrNotConfigured
	}
	return x.d.Tables(s), nil
}

func (x *Dispatcher) testConnection(ctx context.Context) (any, error) {
	s, err := x.d.Settings.Load(ctx)
	if err != nil {
		return nil, err
	}
	if !s.Configured() {
		return nil, capture.ErrNotConfigured
	}
	info, err := x.d.Spreadsheets.Describe(ctx, s.SpreadsheetID)
	if err != nil {
		return nil, err
	}
	if err := x.d.Tables(s).EnsureHeader(ctx); err != nil {
		return nil, err
	}
	return ConnectionResponse{OK: true, Spreadsheet: info}, nil
}

func (x *Dispatcher) saveSettings(ctx context.Context, req Request) (any, error) {
	if req.Settings == nil {
		return nil, badRequest("save-settings requires settings")
	}
	s, err := x.d.Settings.Save(ctx, *req.Settings)
	if err != nil {
		return nil, err
	}
	x.d.Events.Emit(events.RequestIDFrom(ctx), events.TypeSettingsSaved, s)
	return SettingsResponse{Settings: s}, nil
}

func (x *Dispatcher) deleteRecord(ctx context.Context, req Request) (any, error) {
	id := strings.TrimSpace(req.RecordID)
	if id == "" {
		return nil, badRequest("delete-record requires recordId")
	}
	t, err := x.table(ctx)
	if err != nil {
		return nil, err
	}
	if err := t.DeleteByRecordID(ctx, id); err != nil {
		return nil, err
	}
	if err := x.d.Capture.Forget(ctx, id); err != nil {
		x.log.Warn("forget after delete failed", zap.String("record_id", id), zap.Error(err))
	}
	x.d.Events.Emit(events.RequestIDFrom(ctx), events.TypeRecordDeleted, map[string]string{"recordId": id})
	return DeleteResponse{Deleted: true, RecordID: id}, nil
}

func (x *Dispatcher) sheetUpdate(ctx context.Context, req Request) (any, error) {
	id := strings.TrimSpace(req.RecordID)
	if id == "" || req.Patch == nil {
		return nil, badRequest("sheet-update requires recordId and patch")
	}
	t, err := x.table(ctx)
	if err != nil {
		return nil, err
	}
	if err := t.UpdateByRecordID(ctx, id, *req.Patch); err != nil {
		return nil, err
	}
	g, err := t.ReadRaw(ctx)
	if err != nil {
		return nil, err
	}
	x.d.Events.Emit(events.RequestIDFrom(ctx), events.TypeRecordUpdated, map[string]string{"recordId": id})
	return VersionResponse{Version: g.Version}, nil
}

// createSheet makes a new spreadsheet with the canonical header and points
// the settings at it.
func (x *Dispatcher) createSheet(ctx context.Context, req Request) (any, error) {
	s, err := x.d.Settings.Load(ctx)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = defaultSpreadsheetTitle
	}
	s = s.Normalize()
	id, err := x.d.Spreadsheets.CreateSpreadsheet(ctx, title, s.SheetName)
	if err != nil {
		return nil, err
	}
	s.SpreadsheetID = id
	if _, err := x.d.Settings.Save(ctx, s); err != nil {
		return nil, errors.Wrap(err, "save settings")
	}
	x.log.Info("spreadsheet created", zap.String("spreadsheet_id", id), zap.String("title", title))
	return CreateSheetResponse{SheetID: id}, nil
}

func (x *Dispatcher) capturePage(ctx context.Context, req Request) (any, error) {
	if strings.TrimSpace(req.URL) == "" || strings.TrimSpace(req.HTML) == "" {
		return nil, badRequest("capture-page requires url and html")
	}
	e, err := extract.FromHTML(req.URL, req.HTML)
	if err != nil {
		if errors.Is(err, extract.ErrNoPosting) {
			return nil, errors.Mark(err, ErrBadRequest)
		}
		return nil, err
	}
	return x.d.Capture.Capture(ctx, e)
}
