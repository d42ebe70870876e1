package httpapi

import (
	"context"
	"time"

	"go.uber.org/zap"

	"jobsheet-engine/internal/command"
	"jobsheet-engine/internal/config"
	"jobsheet-engine/internal/events"
	"jobsheet-engine/internal/secrets"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, req command.Request) (any, error)
}

// Tokens is the slice of auth.Manager the sign-in endpoints need.
type Tokens interface {
	EnsureToken(ctx context.Context, interactive bool) (string, error)
	CachedToken(ctx context.Context) (secrets.TokenBundle, bool)
	SignOut() error
}

type Deps struct {
	Commands Dispatcher
	Hub      *events.Hub

	// Optional; the /auth routes are not mounted without it.
	Tokens Tokens

	// Engine config as loaded at startup and the file it came from.
	Config      config.Config
	UserCfgPath string

	Started time.Time
	Logger  *zap.Logger
}
