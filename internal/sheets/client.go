// Package sheets treats one tab of a Google spreadsheet as a label-addressed
// table: append, bulk read, update by record id and delete by record id.
//
// None of the read-then-write operations are transactional. A concurrent
// editor of the same sheet can interleave with them; the last writer wins.
package sheets

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

var (
	ErrNotFound   = errors.New("record not found")
	ErrNoIDColumn = errors.New("sheet has no Record ID column")
)

// HTTPError carries the status and body of a failed Sheets API call.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("sheets api: http %d: %s", e.Status, strings.TrimSpace(e.Body))
}

func wrapAPI(err error, op string) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		body := gerr.Body
		if body == "" {
			body = gerr.Message
		}
		return errors.Wrap(&HTTPError{Status: gerr.Code, Body: body}, op)
	}
	return errors.Wrap(err, op)
}

type Options struct {
	// HTTPClient must attach credentials (see auth.Transport).
	HTTPClient *http.Client
	// Endpoint overrides the API base URL.
	Endpoint string
	Logger   *zap.Logger
}

type Client struct {
	svc *sheets.Service
	log *zap.Logger
}

func New(ctx context.Context, opts Options) (*Client, error) {
	hc := opts.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	copts := []option.ClientOption{option.WithHTTPClient(hc)}
	if opts.Endpoint != "" {
		copts = append(copts, option.WithEndpoint(opts.Endpoint))
	}
	svc, err := sheets.NewService(ctx, copts...)
	if err != nil {
		return nil, errors.Wrap(err, "sheets service")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{svc: svc, log: log.Named("sheets")}, nil
}

// Table addresses one tab. The tab is created on first use when missing.
func (c *Client) Table(spreadsheetID, sheetName string) *Table {
	return &Table{
		svc:           c.svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		log:           c.log.With(zap.String("spreadsheet", spreadsheetID), zap.String("sheet", sheetName)),
	}
}

// CreateSpreadsheet creates a spreadsheet with one tab and writes the header.
func (c *Client) CreateSpreadsheet(ctx context.Context, title, sheetName string) (string, error) {
	ss, err := c.svc.Spreadsheets.Create(&sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{Title: title},
		Sheets: []*sheets.Sheet{
			{Properties: &sheets.SheetProperties{Title: sheetName}},
		},
	}).Context(ctx).Do()
	if err != nil {
		return "", wrapAPI(err, "create spreadsheet")
	}
	if err := c.Table(ss.SpreadsheetId, sheetName).EnsureHeader(ctx); err != nil {
		return "", err
	}
	c.log.Info("spreadsheet created", zap.String("spreadsheet", ss.SpreadsheetId), zap.String("title", title))
	return ss.SpreadsheetId, nil
}

type Info struct {
	SpreadsheetID string   `json:"spreadsheetId"`
	Title         string   `json:"title"`
	Sheets        []string `json:"sheets"`
}

// Describe is a cheap authenticated read used to test the connection.
func (c *Client) Describe(ctx context.Context, spreadsheetID string) (Info, error) {
	ss, err := c.svc.Spreadsheets.Get(spreadsheetID).
		Fields("spreadsheetId,properties.title,sheets.properties.title").
		Context(ctx).Do()
	if err != nil {
		return Info{}, wrapAPI(err, "describe spreadsheet")
	}
	info := Info{SpreadsheetID: ss.SpreadsheetId}
	if ss.Properties != nil {
		info.Title = ss.Properties.Title
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			info.Sheets = append(info.Sheets, sh.Properties.Title)
		}
	}
	return info, nil
}
