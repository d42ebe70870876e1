package main

import (
	"crypto/subtle"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// shutdownToken returns the token guarding /shutdown: the given one, or a fresh
// one written to dataDir/engine.token for the host app to read.
func shutdownToken(dataDir, given string) (string, error) {
	if t := strings.TrimSpace(given); t != "" {
		return t, nil
	}
	t := uuid.NewString()
	if err := os.WriteFile(filepath.Join(dataDir, "engine.token"), []byte(t+"\n"), 0o600); err != nil {
		return "", errors.Wrap(err, "write shutdown token")
	}
	return t, nil
}

func shutdownHandler(token string, stop func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if host != "127.0.0.1" && host != "::1" && host != "localhost" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		got := r.Header.Get("X-Shutdown-Token")
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("shutting down\n"))
		stop()
	}
}
