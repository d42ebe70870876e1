package events

import (
	"context"
	"encoding/json"
	"time"
)

// Event types published to listeners.
const (
	TypeCaptureConfirmed = "capture_confirmed"
	TypeCaptureFailed    = "capture_failed"
	TypeRecordDeleted    = "record_deleted"
	TypeRecordUpdated    = "record_updated"
	TypeSettingsSaved    = "settings_saved"
)

type Event struct {
	Type      string          `json:"type"`
	Version   int             `json:"v"`
	At        time.Time       `json:"at"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// MakeEvent renders an event as the JSON line sent to listeners.
func MakeEvent(reqID, typ string, v int, data any) string {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	e := Event{
		Type:      typ,
		Version:   v,
		At:        time.Now().UTC(),
		RequestID: reqID,
		Data:      raw,
	}
	b, _ := json.Marshal(e)
	return string(b)
}

type ctxKey struct{}

// WithRequestID tags ctx so events emitted on its behalf carry the id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func RequestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKey{}).(string); ok {
		return v
	}
	return ""
}
