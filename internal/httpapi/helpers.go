package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/cockroachdb/errors"

	"jobsheet-engine/internal/command"
)

// maxBody bounds request bodies; capture-page carries whole HTML documents.
const maxBody = 8 << 20

func methodMux(m map[string]http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h, ok := m[r.Method]; ok {
			h(w, r)
			return
		}
		WriteError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		return errors.Mark(errors.Wrap(err, "invalid JSON"), command.ErrBadRequest)
	}
	if dec.More() {
		return errors.Mark(errors.New("invalid JSON: trailing data"), command.ErrBadRequest)
	}
	return nil
}

// decodeOptionalJSON is decodeJSON for endpoints whose body may be empty.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, v any) error {
	err := decodeJSON(w, r, v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
