package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gofrs/flock"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"jobsheet-engine/internal/auth"
	"jobsheet-engine/internal/capture"
	"jobsheet-engine/internal/command"
	"jobsheet-engine/internal/config"
	"jobsheet-engine/internal/dedup"
	"jobsheet-engine/internal/events"
	"jobsheet-engine/internal/httpapi"
	"jobsheet-engine/internal/identity"
	"jobsheet-engine/internal/logging"
	"jobsheet-engine/internal/scheduler"
	"jobsheet-engine/internal/secrets"
	"jobsheet-engine/internal/sheets"
	"jobsheet-engine/internal/store"
	"jobsheet-engine/internal/throttle"
)

const shutdownGrace = 10 * time.Second

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "engine: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	dataDir := strings.TrimSpace(os.Getenv("JOBSHEET_DATA_DIR"))
	if dataDir == "" {
		dataDir = config.DefaultDataDir()
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return errors.Wrap(err, "data dir")
	}

	userCfgPath, err := config.EnsureUserConfig(dataDir)
	if err != nil {
		return errors.Wrap(err, "config bootstrap")
	}
	cfg, err := config.Load(userCfgPath)
	if err != nil {
		return err
	}
	config.OverlayEnv(&cfg, os.Getenv)
	cfg, vr := config.NormalizeAndValidate(cfg)

	log := logging.New(cfg.Log.Level, nil)
	defer func() { _ = log.Sync() }()
	for _, w := range vr.Warnings {
		log.Warn("config", zap.String("warning", w))
	}
	if !vr.OK() {
		return errors.Newf("invalid config %s: %s", userCfgPath, strings.Join(vr.Errors, "; "))
	}

	lock := flock.New(filepath.Join(dataDir, "engine.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return errors.Wrap(err, "data dir lock")
	}
	if !locked {
		return errors.Newf("another engine is already using %s", dataDir)
	}
	defer func() { _ = lock.Unlock() }()

	kv, err := openStore(cfg, dataDir)
	if err != nil {
		return err
	}
	defer func() { _ = kv.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := events.NewHub()
	limiter := throttle.NewHostLimiter(cfg.Google.RequestsPerSecond, cfg.Google.Burst)
	limited := &throttle.Transport{Limiter: limiter}

	tokens := auth.NewManager(
		secrets.NewKeyringStore(cfg.Google.KeyringAccount),
		&auth.LoopbackConsent{Logger: log.Named("consent")},
		auth.Options{
			ClientID:       cfg.Google.ClientID,
			ClientSecret:   cfg.Google.ClientSecret,
			Endpoint:       oauth2.Endpoint{AuthURL: cfg.Google.AuthURL, TokenURL: cfg.Google.TokenURL},
			AcquireTimeout: cfg.Google.ConsentTimeout,
			HTTPClient:     &http.Client{Transport: limited, Timeout: 30 * time.Second},
			Logger:         log,
		})

	api := &http.Client{
		Transport: &auth.Transport{Base: limited, Tokens: tokens, Interactive: true},
	}
	sc, err := sheets.New(ctx, sheets.Options{
		HTTPClient: api,
		Endpoint:   cfg.Google.APIBaseURL,
		Logger:     log,
	})
	if err != nil {
		return err
	}

	settings := config.NewSettingsStore(kv)
	orch := capture.New(capture.Options{
		Settings: settings,
		Resolver: identity.New(),
		Cache: dedup.NewCache(kv, dedup.Options{
			TTL:        cfg.Capture.DedupTTL,
			MaxEntries: cfg.Capture.MaxCacheEntries,
			Logger:     log,
		}),
		Locks:  dedup.NewLocks(cfg.Capture.LockWindow, nil),
		Recent: capture.NewRecentList(kv, cfg.Capture.RecentLimit),
		Table: func(s config.Settings) capture.Appender {
			return sc.Table(s.SpreadsheetID, s.SheetName)
		},
		Events:        hub,
		AppendTimeout: cfg.Capture.AppendTimeout,
		Logger:        log,
	})
	disp := command.New(command.Deps{
		Capture:  orch,
		Settings: settings,
		Tables: func(s config.Settings) command.Table {
			return sc.Table(s.SpreadsheetID, s.SheetName)
		},
		Spreadsheets: sc,
		Events:       hub,
		Logger:       log,
	})

	token, err := shutdownToken(dataDir, os.Getenv("JOBSHEET_SHUTDOWN_TOKEN"))
	if err != nil {
		return err
	}
	root := http.NewServeMux()
	root.Handle("/", httpapi.NewHandler(httpapi.Deps{
		Commands:    disp,
		Hub:         hub,
		Tokens:      tokens,
		Config:      cfg,
		UserCfgPath: userCfgPath,
		Started:     time.Now(),
		Logger:      log,
	}))
	root.HandleFunc("/shutdown", shutdownHandler(token, stop))

	addr := net.JoinHostPort(cfg.App.Host, strconv.Itoa(cfg.App.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen %s", addr)
	}
	srv := &http.Server{
		Handler:           root,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("engine listening",
			zap.String("addr", "http://"+ln.Addr().String()),
			zap.String("data_dir", dataDir),
			zap.String("store", cfg.Store.Driver))
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		scheduler.Every(gctx, log.Named("scheduler"), cfg.Capture.HealthCheckInterval, "cache-health",
			func(ctx context.Context) error {
				_, err := orch.CacheHealth(ctx)
				return err
			})
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		err := srv.Shutdown(sctx)
		if werr := orch.Wait(sctx); werr != nil {
			log.Warn("background appends still pending", zap.Error(werr))
		}
		return err
	})
	return g.Wait()
}

func openStore(cfg config.Config, dataDir string) (store.KV, error) {
	switch cfg.Store.Driver {
	case config.DriverRedis:
		return store.OpenRedis(store.RedisOptions{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
			Prefix:   cfg.Store.Redis.Prefix,
		})
	default:
		path := cfg.Store.SQLitePath
		if !filepath.IsAbs(path) {
			path = filepath.Join(dataDir, path)
		}
		return store.Open(path)
	}
}
