package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/dmitrijs2005/fieldvisit/internal/client/auth"
	"github.com/dmitrijs2005/fieldvisit/internal/client/client"
	"github.com/dmitrijs2005/fieldvisit/internal/client/config"
	"github.com/dmitrijs2005/fieldvisit/internal/client/credentials"
	"github.com/dmitrijs2005/fieldvisit/internal/client/models"
	"github.com/dmitrijs2005/fieldvisit/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/fieldvisit/internal/client/services"
	"github.com/dmitrijs2005/fieldvisit/internal/client/session"
	"github.com/dmitrijs2005/fieldvisit/internal/client/storage"
	"github.com/dmitrijs2005/fieldvisit/internal/filex"
	"github.com/dmitrijs2005/fieldvisit/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	dbFileName  = "fieldvisit.db"
	keyFileName = "storage.key"
	kvDirName   = "appstate"
)

type Mode string

const (
	ModeOnDuty  Mode = "on-duty"
	ModeOffDuty Mode = "off-duty"
	ModeVisit   Mode = "visiting"
)

type identitySource interface {
	Current() (models.Identity, bool)
	Linked() []models.Identity
}

type tokenLoader interface {
	Load(ctx context.Context) (credentials.Credentials, bool)
}

type imageResolver interface {
	ProfileImageURL(thumbnail string) (string, error)
}

type App struct {
	config  *config.Config
	log     logging.Logger
	auth    services.AuthService
	visits  services.VisitService
	session identitySource
	tokens  tokenLoader
	images  imageResolver

	registry *prometheus.Registry
	reader   *bufio.Reader
	out      io.Writer
	now      func() time.Time

	// providers is the last listing shown by the providers command; start
	// picks from it.
	providers []models.Provider

	closers []func() error
}

// NewApp opens local storage under cfg.DataDir and builds the service graph.
// The refresh client is built first so the coordinator can be handed to the
// API client's transport and to the session manager, which logs out through it.
func NewApp(ctx context.Context, cfg *config.Config, log *logging.SlogLogger) (*App, error) {
	app := &App{
		config:   cfg,
		log:      log,
		registry: prometheus.NewRegistry(),
		reader:   bufio.NewReader(os.Stdin),
		out:      os.Stdout,
		now:      time.Now,
	}

	dir, err := filex.EnsureDir(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	db, err := client.InitDatabase(ctx, filepath.Join(dir, dbFileName))
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}
	app.closers = append(app.closers, db.Close)

	deviceID := cfg.DeviceID
	if deviceID == "" {
		if deviceID, err = metadata.EnsureDeviceID(ctx, metadata.NewSQLiteRepository(db)); err != nil {
			app.Close()
			return nil, fmt.Errorf("device id: %w", err)
		}
	}

	key, err := credentials.StorageKey(filepath.Join(dir, keyFileName), deviceID)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("storage key: %w", err)
	}
	store := credentials.NewSQLiteStore(db, key, log)

	kvdb, err := storage.Open(storage.Config{Path: filepath.Join(dir, kvDirName), Logger: log.Slog()})
	if err != nil {
		app.Close()
		return nil, err
	}
	app.closers = append(app.closers, kvdb.Close)
	kv := storage.NewKV(kvdb)

	metrics := auth.NewMetrics(app.registry)
	refresher := client.NewRefreshClient(cfg.RefreshBaseURL, cfg.RequestTimeout, nil, log)
	coord := auth.NewCoordinator(store, refresher, log, metrics)
	sess := session.NewManager(kv, coord, cfg.RestoreTimeout, log)
	api := client.NewHTTPClient(client.Options{
		PortalBaseURL:       cfg.PortalBaseURL,
		ProfileImageBaseURL: cfg.ProfileImageBaseURL,
		DeviceType:          cfg.DeviceType,
		DeviceToken:         cfg.DeviceToken,
		DeviceID:            deviceID,
		AuthScheme:          cfg.AuthScheme,
		Timeout:             cfg.RequestTimeout,
		Logger:              log,
		Metrics:             metrics,
	}, store, coord)

	app.auth = services.NewAuthService(api, sess, store, kv, log)
	app.visits = services.NewVisitService(api, sess, kv, log)
	app.session = sess
	app.tokens = store
	app.images = api

	return app, nil
}

// Close releases local storage in reverse opening order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Run restores the previous session or asks for a login, then serves the
// REPL until the user exits.
func (a *App) Run(ctx context.Context) {
	defer a.Close()

	if a.config.MetricsAddr != "" {
		stop := a.serveMetrics(ctx)
		defer stop()
	}

	fmt.Fprintln(a.out, "Welcome to fieldvisit CLI (type 'help' for commands)")

	if id, ok := a.auth.Restore(ctx); ok {
		fmt.Fprintf(a.out, "Welcome back, %s\n", displayName(id))
	} else if err := a.Login(ctx); err != nil {
		fmt.Fprintln(a.out, "error:", err)
	}

	runREPL(ctx, a, func() string { return a.getStatus(ctx) }, bufio.NewScanner(a.reader))
}

func (a *App) serveMetrics(ctx context.Context) func() {
	srv := &http.Server{
		Addr:              a.config.MetricsAddr,
		Handler:           promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error(ctx, "metrics server failed", "error", err)
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}
}

func (a *App) isLoggedIn() bool {
	_, ok := a.session.Current()
	return ok
}

// getStatus renders "(<name> <mode>)" for the prompt, or "" when logged out.
func (a *App) getStatus(ctx context.Context) string {
	id, ok := a.session.Current()
	if !ok {
		return ""
	}
	mode := ModeOffDuty
	if st, err := a.visits.State(ctx); err == nil {
		switch {
		case st.VisitInProgress():
			mode = ModeVisit
		case st.OnDuty:
			mode = ModeOnDuty
		}
	}
	return fmt.Sprintf("(%s %s)", displayName(id), mode)
}

func displayName(id models.Identity) string {
	if id.FullName != "" {
		return id.FullName
	}
	return fmt.Sprintf("#%d", id.AccountID)
}
