// Package app wires the platform driver, services and HTTP servers together.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/bissquit/leavedesk/api/openapi"
	"github.com/bissquit/leavedesk/internal/auth"
	"github.com/bissquit/leavedesk/internal/auth/token"
	"github.com/bissquit/leavedesk/internal/config"
	"github.com/bissquit/leavedesk/internal/domain"
	"github.com/bissquit/leavedesk/internal/leave"
	"github.com/bissquit/leavedesk/internal/notifications"
	"github.com/bissquit/leavedesk/internal/pkg/ctxlog"
	"github.com/bissquit/leavedesk/internal/pkg/httputil"
	"github.com/bissquit/leavedesk/internal/pkg/metrics"
	"github.com/bissquit/leavedesk/internal/pkg/postgres"
	"github.com/bissquit/leavedesk/internal/platform"
	"github.com/bissquit/leavedesk/internal/platform/memory"
	platformpostgres "github.com/bissquit/leavedesk/internal/platform/postgres"
	"github.com/bissquit/leavedesk/internal/platform/supabase"
	"github.com/bissquit/leavedesk/internal/users"
	usersstore "github.com/bissquit/leavedesk/internal/users/store"
	"github.com/bissquit/leavedesk/internal/version"
	"github.com/bissquit/leavedesk/migrations"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const dbMetricsInterval = 15 * time.Second

// App owns the API server, the metrics server and the platform connection.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	platform      platform.Platform
	server        *http.Server
	metricsServer *http.Server
	metricsCancel context.CancelFunc
	tokenLimiter  *httputil.RateLimiter
}

// New connects the configured platform driver and builds both servers.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)

	codec, err := token.NewCodec(cfg.JWT.SecretKey, cfg.JWT.AccessTokenDuration)
	if err != nil {
		return nil, fmt.Errorf("create token codec: %w", err)
	}

	metricsCtx, metricsCancel := context.WithCancel(context.Background())

	app := &App{
		config:        cfg,
		logger:        logger,
		metricsCancel: metricsCancel,
	}

	p, err := app.connectPlatform(metricsCtx, codec)
	if err != nil {
		metricsCancel()
		return nil, fmt.Errorf("connect platform: %w", err)
	}
	app.platform = platform.Instrument(p, cfg.Platform.Driver)

	router, err := app.setupRouter(p, codec)
	if err != nil {
		app.platform.Close()
		metricsCancel()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// connectPlatform builds the driver selected by platform.driver.
func (a *App) connectPlatform(ctx context.Context, codec *token.Codec) (platform.Platform, error) {
	cfg := a.config
	a.logger.Info("connecting platform", "driver", cfg.Platform.Driver)

	switch cfg.Platform.Driver {
	case config.DriverSupabase:
		client, err := supabase.NewClient(supabase.Config{
			URL:     cfg.Platform.URL,
			APIKey:  cfg.Platform.APIKey,
			Timeout: cfg.Platform.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return client, nil

	case config.DriverPostgres:
		connectCtx, cancel := context.WithTimeout(ctx, cfg.Database.ConnectTimeout)
		defer cancel()

		db, err := postgres.Connect(connectCtx, postgres.Config{
			URL:             cfg.Database.URL,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			ConnectAttempts: cfg.Database.ConnectAttempts,
		})
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}

		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(cfg.Database.URL, migrations.FS); err != nil {
				db.Close()
				return nil, err
			}
		}

		go metrics.CollectDBPoolMetrics(ctx, db, dbMetricsInterval)
		return platformpostgres.New(db, codec), nil

	case config.DriverMemory:
		a.logger.Warn("memory platform selected: data is lost on restart")
		return memory.New(codec), nil
	}

	return nil, fmt.Errorf("unknown platform driver %q", cfg.Platform.Driver)
}

// seedIdentities registers the configured accounts with the memory platform
// and mirrors each one into the user directory.
func (a *App) seedIdentities(ctx context.Context, mem *memory.Platform, directory *users.Service) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	for _, seed := range a.config.Platform.Identities {
		role := seed.Role
		if role == "" {
			role = string(domain.RoleMember)
		}

		if _, err := mem.AddIdentity(memory.Identity{
			Email:    seed.Email,
			Password: seed.Password,
			Metadata: map[string]any{
				auth.MetaFirstName: seed.FirstName,
				auth.MetaLastName:  seed.LastName,
				auth.MetaRole:      role,
			},
		}); err != nil {
			return fmt.Errorf("seed identity %s: %w", seed.Email, err)
		}

		_, err := directory.CreateUser(ctx, users.CreateUserInput{
			Email:     seed.Email,
			FirstName: seed.FirstName,
			LastName:  seed.LastName,
			Role:      &role,
		})
		if err != nil && !errors.Is(err, users.ErrEmailExists) {
			return fmt.Errorf("seed directory user %s: %w", seed.Email, err)
		}
		a.logger.Info("seeded identity", "email", seed.Email, "role", role)
	}
	return nil
}

// Run serves the metrics port in the background and blocks on the API port.
func (a *App) Run() error {
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
		"driver", a.config.Platform.Driver,
	)

	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown drains both servers concurrently, then closes the platform.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	a.metricsCancel()
	a.stopLimiters()

	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	for name, srv := range map[string]*http.Server{"server": a.server, "metrics server": a.metricsServer} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Shutdown(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("shutdown %s: %w", name, err))
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	// Closes the pgx pool for the postgres driver.
	a.platform.Close()

	return errors.Join(errs...)
}

func (a *App) stopLimiters() {
	if a.tokenLimiter != nil {
		a.tokenLimiter.Stop()
	}
}

// Router returns the API handler without starting a listener.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// setupRouter mounts every service. raw is the uninstrumented driver.
func (a *App) setupRouter(raw platform.Platform, codec *token.Codec) (*chi.Mux, error) {
	r := chi.NewRouter()

	// Outermost, so durations include every other middleware.
	r.Use(httputil.MetricsMiddleware)

	// Preflights are answered before logging and auth.
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	if a.config.Server.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		_, _ = w.Write(openapi.Spec)
	})

	r.Get("/docs", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>leavedesk API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
        SwaggerUIBundle({
            url: "/api/openapi.yaml",
            dom_id: '#swagger-ui',
            presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
            layout: "BaseLayout"
        });
    </script>
</body>
</html>`))
	})

	usersService := users.NewService(usersstore.NewRepository(a.platform))
	usersHandler := users.NewHandler(usersService)

	if mem, ok := raw.(*memory.Platform); ok {
		if err := a.seedIdentities(context.Background(), mem, usersService); err != nil {
			return nil, err
		}
	}

	var tokenLimiter func(http.Handler) http.Handler
	if a.config.RateLimit.Enabled {
		a.tokenLimiter = httputil.NewRateLimiter("token", a.config.RateLimit.TokenRPS, a.config.RateLimit.TokenBurst)
		tokenLimiter = a.tokenLimiter.Middleware
	}
	authHandler := auth.NewHandler(auth.NewService(a.platform, codec), tokenLimiter)

	authHandler.RegisterRoutes(r)
	usersHandler.RegisterRoutes(r)
	leave.NewHandler().RegisterRoutes(r)
	notifications.NewHandler().RegisterRoutes(r)

	return r, nil
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.platform.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Platform unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
