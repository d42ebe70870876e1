package auth

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// LoopbackConsent receives the authorization redirect on a local listener.
// The user is pointed at the URL through the log, or Open when set.
type LoopbackConsent struct {
	// Addr defaults to 127.0.0.1:0.
	Addr   string
	Open   func(authURL string) error
	Logger *zap.Logger
}

func (c *LoopbackConsent) Obtain(ctx context.Context, authURL func(redirectURL string) string) (url.Values, error) {
	log := c.Logger
	if log == nil {
		log = zap.NewNop()
	}
	addr := c.Addr
	if addr == "" {
		addr = "127.0.0.1:0"
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "consent listener")
	}

	redirect := fmt.Sprintf("http://%s/callback", ln.Addr().String())
	target := authURL(redirect)

	result := make(chan url.Values, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		select {
		case result <- q:
		default:
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if q.Get("error") != "" {
			_, _ = fmt.Fprintln(w, "Authorization failed. You can close this window.")
			return
		}
		_, _ = fmt.Fprintln(w, "Authorization complete. You can close this window.")
	})

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.Serve(ln) }()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	log.Info("authorize the engine in your browser", zap.String("url", target))
	if c.Open != nil {
		if err := c.Open(target); err != nil {
			log.Warn("could not open browser", zap.Error(err))
		}
	}

	select {
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), "waiting for consent")
	case q := <-result:
		return q, nil
	}
}
