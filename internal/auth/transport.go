package auth

import (
	"context"
	"io"
	"net/http"
)

// TokenSource is the part of Manager the transport needs.
type TokenSource interface {
	EnsureToken(ctx context.Context, interactive bool) (string, error)
	Invalidate(ctx context.Context, rejected string) error
}

var _ TokenSource = (*Manager)(nil)

// Transport attaches the bearer token and, on a 401, invalidates the token it
// sent and retries exactly once with a fresh one. A second 401 is returned as is.
type Transport struct {
	Base        http.RoundTripper
	Tokens      TokenSource
	Interactive bool
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	tok, err := t.Tokens.EnsureToken(ctx, t.Interactive)
	if err != nil {
		return nil, err
	}

	resp, err := t.base().RoundTrip(withBearer(req, tok))
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		// Body cannot be replayed.
		return resp, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	if err := t.Tokens.Invalidate(ctx, tok); err != nil {
		return nil, err
	}
	tok, err = t.Tokens.EnsureToken(ctx, t.Interactive)
	if err != nil {
		return nil, err
	}

	retry := withBearer(req, tok)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	return t.base().RoundTrip(retry)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func withBearer(req *http.Request, token string) *http.Request {
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}
