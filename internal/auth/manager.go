// Package auth obtains and caches the Google bearer token used by the sheets
// client. Concurrent callers share a single acquisition.
package auth

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/singleflight"

	"jobsheet-engine/internal/secrets"
)

const (
	SheetsScope = "https://www.googleapis.com/auth/spreadsheets"

	// ExpiryMargin is how close to expiry a stored token stops being handed out.
	ExpiryMargin = 60 * time.Second

	defaultAcquireTimeout = 5 * time.Minute
	defaultLifetime       = time.Hour
)

var ErrAuth = errors.New("auth: no token obtained")

// Consent drives the interactive authorization step. authURL builds the
// provider URL for the redirect the driver listens on; Obtain returns the query
// values of that redirect (code, state or error).
type Consent interface {
	Obtain(ctx context.Context, authURL func(redirectURL string) string) (url.Values, error)
}

type Options struct {
	ClientID     string
	ClientSecret string
	// Endpoint defaults to Google's.
	Endpoint oauth2.Endpoint
	Scopes   []string
	// AcquireTimeout bounds one shared acquisition, consent included.
	AcquireTimeout time.Duration
	// HTTPClient is used against the token endpoint.
	HTTPClient *http.Client
	Now        func() time.Time
	Logger     *zap.Logger
}

type Manager struct {
	cfg            oauth2.Config
	store          secrets.TokenStore
	consent        Consent
	group          singleflight.Group
	storeMu        sync.Mutex
	acquireTimeout time.Duration
	httpClient     *http.Client
	now            func() time.Time
	log            *zap.Logger
}

func NewManager(store secrets.TokenStore, consent Consent, opts Options) *Manager {
	endpoint := opts.Endpoint
	if endpoint.AuthURL == "" && endpoint.TokenURL == "" {
		endpoint = google.Endpoint
	}
	scopes := opts.Scopes
	if len(scopes) == 0 {
		scopes = []string{SheetsScope}
	}
	m := &Manager{
		cfg: oauth2.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			Endpoint:     endpoint,
			Scopes:       scopes,
		},
		store:          store,
		consent:        consent,
		acquireTimeout: opts.AcquireTimeout,
		httpClient:     opts.HTTPClient,
		now:            opts.Now,
		log:            opts.Logger,
	}
	if m.acquireTimeout <= 0 {
		m.acquireTimeout = defaultAcquireTimeout
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.log == nil {
		m.log = zap.NewNop()
	}
	m.log = m.log.Named("auth")
	return m
}

// CachedToken returns the stored bundle only while it is valid beyond ExpiryMargin.
func (m *Manager) CachedToken(ctx context.Context) (secrets.TokenBundle, bool) {
	b, err := m.store.Load()
	if err != nil {
		if !errors.Is(err, secrets.ErrNoToken) {
			m.log.Warn("token load failed", zap.Error(err))
		}
		return secrets.TokenBundle{}, false
	}
	if !b.ValidAt(m.now(), ExpiryMargin) {
		return secrets.TokenBundle{}, false
	}
	return b, true
}

// EnsureToken returns a usable access token. Callers arriving while an
// acquisition is running wait for that same acquisition.
func (m *Manager) EnsureToken(ctx context.Context, interactive bool) (string, error) {
	if b, ok := m.CachedToken(ctx); ok {
		return b.AccessToken, nil
	}

	ch := m.group.DoChan("token", func() (any, error) {
		// The acquisition outlives any single caller.
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.acquireTimeout)
		defer cancel()
		return m.acquire(actx, interactive)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Invalidate drops the access token the server rejected. A token stored since
// then is left alone. A refresh token, if any, is kept so the next acquisition
// can stay silent.
func (m *Manager) Invalidate(ctx context.Context, rejected string) error {
	m.storeMu.Lock()
	defer m.storeMu.Unlock()

	b, err := m.store.Load()
	if errors.Is(err, secrets.ErrNoToken) {
		return nil
	}
	if err == nil && b.AccessToken != rejected {
		m.log.Debug("rejected token already replaced")
		return nil
	}
	if err != nil || b.RefreshToken == "" {
		return m.store.Delete()
	}
	return m.store.Save(secrets.TokenBundle{RefreshToken: b.RefreshToken})
}

// SignOut forgets every stored credential; the next acquisition needs consent.
func (m *Manager) SignOut() error {
	m.log.Info("signed out")
	return m.store.Delete()
}

func (m *Manager) acquire(ctx context.Context, interactive bool) (string, error) {
	if b, ok := m.CachedToken(ctx); ok {
		return b.AccessToken, nil
	}

	stored, _ := m.store.Load()
	if stored.RefreshToken != "" {
		tok, err := m.refresh(ctx, stored.RefreshToken)
		if err == nil {
			return tok, nil
		}
		m.log.Warn("silent refresh failed", zap.Error(err))
	}

	if !interactive {
		return "", errors.Wrap(ErrAuth, "interactive consent not allowed")
	}
	if m.consent == nil {
		return "", errors.Wrap(ErrAuth, "no consent driver configured")
	}
	return m.interactiveGrant(ctx)
}

func (m *Manager) refresh(ctx context.Context, refreshToken string) (string, error) {
	src := m.cfg.TokenSource(m.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return "", errors.Wrap(err, "refresh token")
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = refreshToken
	}
	m.log.Debug("token refreshed")
	return m.persist(tok)
}

func (m *Manager) interactiveGrant(ctx context.Context) (string, error) {
	verifier := oauth2.GenerateVerifier()
	state := uuid.NewString()

	var redirect string
	authURL := func(redirectURL string) string {
		redirect = redirectURL
		cfg := m.cfg
		cfg.RedirectURL = redirectURL
		return cfg.AuthCodeURL(state,
			oauth2.AccessTypeOffline,
			oauth2.S256ChallengeOption(verifier),
			oauth2.SetAuthURLParam("prompt", "consent"))
	}

	m.log.Info("requesting user consent")
	vals, err := m.consent.Obtain(ctx, authURL)
	if err != nil {
		return "", errors.Wrap(errors.Mark(err, ErrAuth), "consent")
	}
	if e := strings.TrimSpace(vals.Get("error")); e != "" {
		return "", errors.Wrapf(ErrAuth, "consent denied: %s", e)
	}
	if vals.Get("state") != state {
		return "", errors.Wrap(ErrAuth, "consent state mismatch")
	}
	code := strings.TrimSpace(vals.Get("code"))
	if code == "" {
		return "", errors.Wrap(ErrAuth, "consent returned no code")
	}

	cfg := m.cfg
	cfg.RedirectURL = redirect
	tok, err := cfg.Exchange(m.clientContext(ctx), code, oauth2.VerifierOption(verifier))
	if err != nil {
		return "", errors.Wrap(errors.Mark(err, ErrAuth), "exchange code")
	}
	m.log.Info("consent granted")
	return m.persist(tok)
}

func (m *Manager) persist(tok *oauth2.Token) (string, error) {
	if tok == nil || tok.AccessToken == "" {
		return "", errors.Wrap(ErrAuth, "empty token response")
	}
	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = m.now().Add(defaultLifetime)
	}
	b := secrets.TokenBundle{
		AccessToken:  tok.AccessToken,
		Expiry:       expiry,
		RefreshToken: tok.RefreshToken,
	}
	m.storeMu.Lock()
	err := m.store.Save(b)
	m.storeMu.Unlock()
	if err != nil {
		// The token is still good for this process.
		m.log.Warn("token persist failed", zap.Error(err))
	}
	return b.AccessToken, nil
}

func (m *Manager) clientContext(ctx context.Context) context.Context {
	if m.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
}
