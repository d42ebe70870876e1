package httpapi

import (
	"net/http"

	"jobsheet-engine/internal/command"
	"jobsheet-engine/internal/config"
	"jobsheet-engine/internal/domain"
	"jobsheet-engine/internal/sheets"
)

// CommandHandler serves the command envelope and its REST aliases.
type CommandHandler struct {
	Commands Dispatcher
}

func (h CommandHandler) run(w http.ResponseWriter, r *http.Request, req command.Request) {
	out, err := h.Commands.Dispatch(r.Context(), req)
	if err != nil {
		writeErr(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, out)
}

func (h CommandHandler) Command(w http.ResponseWriter, r *http.Request) {
	var req command.Request
	if err := decodeJSON(w, r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	h.run(w, r, req)
}

func (h CommandHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, command.Request{Type: command.GetSettings})
}

func (h CommandHandler) SaveSettings(w http.ResponseWriter, r *http.Request) {
	var s config.Settings
	if err := decodeJSON(w, r, &s); err != nil {
		writeErr(w, r, err)
		return
	}
	h.run(w, r, command.Request{Type: command.SaveSettings, Settings: &s})
}

func (h CommandHandler) Recent(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, command.Request{Type: command.GetRecent})
}

func (h CommandHandler) AppendEntry(w http.ResponseWriter, r *http.Request) {
	var e domain.CaptureEntry
	if err := decodeJSON(w, r, &e); err != nil {
		writeErr(w, r, err)
		return
	}
	h.run(w, r, command.Request{Type: command.AppendEntry, Entry: &e})
}

func (h CommandHandler) CapturePage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL  string `json:"url"`
		HTML string `json:"html"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeErr(w, r, err)
		return
	}
	h.run(w, r, command.Request{Type: command.CapturePage, URL: body.URL, HTML: body.HTML})
}

func (h CommandHandler) SheetPull(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, command.Request{Type: command.SheetPull})
}

func (h CommandHandler) CreateSheet(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
	}
	if err := decodeOptionalJSON(w, r, &body); err != nil {
		writeErr(w, r, err)
		return
	}
	h.run(w, r, command.Request{Type: command.CreateSheet, Title: body.Title})
}

func (h CommandHandler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	var p sheets.Patch
	if err := decodeJSON(w, r, &p); err != nil {
		writeErr(w, r, err)
		return
	}
	h.run(w, r, command.Request{Type: command.SheetUpdate, RecordID: r.PathValue("id"), Patch: &p})
}

func (h CommandHandler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, command.Request{Type: command.DeleteRecord, RecordID: r.PathValue("id")})
}

func (h CommandHandler) TestConnection(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, command.Request{Type: command.TestConnection})
}

func (h CommandHandler) CacheHealth(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, command.Request{Type: command.CacheHealth})
}
