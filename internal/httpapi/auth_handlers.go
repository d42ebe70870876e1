package httpapi

import (
	"net/http"
	"time"
)

// AuthHandler lets the UI start consent ahead of the first capture and sign out.
type AuthHandler struct {
	Tokens Tokens
}

type authStatus struct {
	SignedIn bool       `json:"signed_in"`
	Expiry   *time.Time `json:"expiry,omitempty"`
}

func (h AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	b, ok := h.Tokens.CachedToken(r.Context())
	st := authStatus{SignedIn: ok}
	if ok {
		st.Expiry = &b.Expiry
	}
	WriteJSON(w, http.StatusOK, st)
}

func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if _, err := h.Tokens.EnsureToken(r.Context(), true); err != nil {
		writeErr(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Tokens.SignOut(); err != nil {
		writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
