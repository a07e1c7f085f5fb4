package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/promogate/internal/gateway/client"
	"github.com/aussiebroadwan/promogate/internal/gateway/domain"
	"github.com/aussiebroadwan/promogate/internal/gateway/service"
	"github.com/aussiebroadwan/promogate/internal/gateway/store"
	"github.com/aussiebroadwan/promogate/internal/gateway/store/drivers/memory"
	"github.com/aussiebroadwan/promogate/internal/gateway/store/drivers/redis"
	"github.com/aussiebroadwan/promogate/internal/gateway/store/drivers/sqlite"
	"github.com/aussiebroadwan/promogate/pkg/authsdk"
	"github.com/aussiebroadwan/promogate/pkg/cryptox"
	"github.com/aussiebroadwan/promogate/pkg/httpx"
	"github.com/aussiebroadwan/promogate/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application holds the gateway and everything it depends on.
type Application struct {
	cfg    Config
	logger *slog.Logger

	driver      store.Driver
	credentials *store.Credentials

	provider    *authsdk.SDKClient
	coordinator *service.RefreshCoordinator
	api         *client.Client
	status      *client.StatusClient
	gatekeeper  *service.Gatekeeper
	sessions    *service.SessionService

	sessionEnded chan string
}

// New creates an Application with all dependencies initialised.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "promogate",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		sessionEnded: make(chan string, 1),
	}

	if err := app.initStore(); err != nil {
		return nil, err
	}

	app.initServices()

	return app, nil
}

// initStore opens the configured driver and wraps it in the credential store.
func (app *Application) initStore() error {
	var opts []store.Option
	opts = append(opts, store.WithLogger(app.logger))

	if app.cfg.MasterKeyPath != "" {
		sealer, err := cryptox.NewSealerFromFile(app.cfg.MasterKeyPath)
		if err != nil {
			return fmt.Errorf("failed to load master key: %w", err)
		}
		opts = append(opts, store.WithSealer(sealer))
	}

	switch app.cfg.Store {
	case StoreMemory:
		driver, err := memory.NewStore(app.cfg.CodeCapacity)
		if err != nil {
			return fmt.Errorf("failed to initialize memory store: %w", err)
		}
		app.driver = driver

	case StoreRedis:
		driver := redis.NewStore(app.cfg.RedisAddr, app.cfg.RedisPrefix)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := driver.Ping(ctx); err != nil {
			_ = driver.Close()
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.driver = driver

	case StoreSQLite, "":
		dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
		driver, err := sqlite.NewStore(dsn)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		driver.SetCodeCapacity(app.cfg.CodeCapacity)

		if err := driver.ApplyMigrations(); err != nil {
			_ = driver.Close()
			return fmt.Errorf("failed to apply database migrations: %w", err)
		}
		app.logger.Info("database migrations applied successfully")
		app.driver = driver

	default:
		return fmt.Errorf("unknown store driver %q", app.cfg.Store)
	}

	app.credentials = store.New(app.driver, opts...)
	app.logger.Info("credential store ready", "driver", app.cfg.Store, "sealed", app.cfg.MasterKeyPath != "")
	return nil
}

func (app *Application) initServices() {
	msgs := domain.MessagesFor(app.cfg.Locale)

	app.provider = authsdk.NewSDKClient(authsdk.Config{
		AppID:       app.cfg.AppID,
		AppSecret:   app.cfg.AppSecret,
		AppHost:     app.cfg.AppHost,
		RedirectURI: app.cfg.RedirectURI,
		Scope:       app.cfg.Scope,
	})
	app.provider.HTTPClient = &http.Client{
		Timeout:   app.cfg.RefreshTimeout,
		Transport: slogx.NewTransport(nil, app.logger),
	}

	// API calls and their replays share the same rate-limited, logged client.
	apiHTTP := &http.Client{
		Transport: slogx.NewTransport(httpx.NewLimitTransport(nil, app.cfg.APILimit), app.logger),
	}

	app.coordinator = &service.RefreshCoordinator{
		Store:          app.credentials,
		Provider:       app.provider,
		HTTP:           apiHTTP,
		Messages:       msgs,
		Logger:         app.logger,
		Timeout:        app.cfg.RefreshTimeout,
		OnSessionEnded: app.notifySessionEnded,
	}

	app.api = &client.Client{
		BaseURL:      app.cfg.APIBaseURL,
		HTTP:         apiHTTP,
		Store:        app.credentials,
		Unauthorized: app.coordinator,
		Timeout:      app.cfg.RequestTimeout,
		Messages:     msgs,
		Logger:       app.logger,
	}

	app.status = &client.StatusClient{API: app.api}

	app.gatekeeper = &service.Gatekeeper{
		Store:  app.credentials,
		Status: app.status,
		Pages:  service.DefaultPages,
		Routes: service.DefaultRoutes(),
		Logger: app.logger,
	}

	app.sessions = &service.SessionService{
		Store:             app.credentials,
		Provider:          app.provider,
		AppID:             app.cfg.AppID,
		LogoutRedirectURI: app.cfg.LogoutRedirectURI,
		Scopes:            httpx.ParseSpaceDelimitedFields(app.cfg.Scope),
		Logger:            app.logger,
	}
}

// notifySessionEnded publishes the login-buffer path. A pending notification
// is enough; repeats are dropped rather than blocking the refresh flight.
func (app *Application) notifySessionEnded(ctx context.Context) {
	select {
	case app.sessionEnded <- app.cfg.LoginBufferPath:
	default:
		slogx.FromContext(ctx, app.logger).DebugContext(ctx, "session_ended_notification_dropped")
	}
}

// SessionEnded delivers the redirect target each time a failed refresh ends
// the session.
func (app *Application) SessionEnded() <-chan string { return app.sessionEnded }

func (app *Application) Logger() *slog.Logger { return app.logger }
func (app *Application) Store() store.CredentialStore { return app.credentials }
func (app *Application) API() *client.Client { return app.api }
func (app *Application) Status() *client.StatusClient { return app.status }
func (app *Application) Coordinator() *service.RefreshCoordinator { return app.coordinator }
func (app *Application) Gatekeeper() *service.Gatekeeper { return app.gatekeeper }
func (app *Application) Sessions() *service.SessionService { return app.sessions }

// Close releases the credential store.
func (app *Application) Close() error {
	if err := app.credentials.Close(); err != nil {
		app.logger.Error("error closing credential store", "error", err)
		return err
	}

	app.logger.Info("promogate stopped")
	return nil
}
