package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agrilink/agrilink/internal/gateway/proxy"
	"github.com/agrilink/agrilink/pkg/authsdk"
	"github.com/agrilink/agrilink/pkg/httpx"
	"github.com/agrilink/agrilink/pkg/jwtx"
	"github.com/agrilink/agrilink/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the gateway with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	keyCache *authsdk.KeySetCache
	filter   *proxy.AuthFilter

	server *http.Server
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "gateway",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if cfg.UpstreamURL == "" {
		return nil, fmt.Errorf("GATEWAY_UPSTREAM_URL is required")
	}
	if cfg.IssuerURL == "" {
		return nil, fmt.Errorf("GATEWAY_ISSUER_URL is required")
	}

	upstream, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream URL: %w", err)
	}

	// Remote key source: issuer JWKS behind a TTL cache
	app.keyCache = authsdk.NewKeySetCache(
		&authsdk.SDKClient{BaseURL: cfg.IssuerURL},
		authsdk.KeySetCacheConfig{
			TTL:          cfg.JWKSCacheTTL,
			FetchTimeout: cfg.JWKSFetchTimeout,
		},
	)

	verifier := jwtx.NewVerifierRS256(app.keyCache, cfg.TokenIssuer)

	app.filter = proxy.NewAuthFilter(upstream, verifier)
	app.filter.PublicPrefixes = cfg.PublicPrefixes
	app.filter.Disabled = cfg.AuthDisabled

	app.initHTTP()

	return app, nil
}

// Run starts the gateway and blocks until shutdown is requested
func (app *Application) Run() error {
	// Pre-fetch the key set so the first verified request doesn't pay the
	// JWKS round trip. Failure is non-fatal, the issuer may still be booting.
	warmCtx, cancel := context.WithTimeout(context.Background(), app.cfg.JWKSFetchTimeout)
	if err := app.keyCache.Warm(warmCtx); err != nil {
		app.logger.Warn("initial JWKS fetch failed", "err", err)
	}
	cancel()

	app.logger.Info("gateway starting",
		"port", app.cfg.Port,
		"upstream", app.cfg.UpstreamURL,
		"auth_disabled", app.cfg.AuthDisabled,
		"version", BuildVersion,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the gateway
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.keyCache.Stop()

	app.logger.Info("gateway stopped")
	return nil
}

// initHTTP initializes the HTTP server
func (app *Application) initHTTP() {
	mux := http.NewServeMux()

	// Gateway's own liveness probe, never proxied
	mux.HandleFunc("GET /livez", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, authsdk.HealthResponse{
			Status:  "ok",
			Version: BuildVersion,
		})
	})

	// Everything else flows through the auth filter into the proxy
	mux.Handle("/", app.filter)

	handler := httpx.Chain(mux,
		slogx.HTTPMiddleware(app.logger),
		httpx.RateLimitByIP(httpx.PublicLimit),
	)

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
