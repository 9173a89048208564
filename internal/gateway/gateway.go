// ABOUTME: Gateway orchestrator wiring resolver, authorizer, forwarder, and audit
// ABOUTME: Manages the HTTP server lifecycle and health endpoints

package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/dorc/dorc-gateway/internal/audit"
	"github.com/dorc/dorc-gateway/internal/auth"
	"github.com/dorc/dorc-gateway/internal/backend"
	"github.com/dorc/dorc-gateway/internal/config"
)

// forwarder is the outbound call to the internal backend. It assumes the
// gateway already authorized the request. Satisfied by *backend.Forwarder;
// tests inject a spy.
type forwarder interface {
	Forward(w http.ResponseWriter, r *http.Request, token string) error
}

// Gateway is the single externally reachable component in front of the
// dorc-engine backend. Every inbound request is independent; the gateway
// holds no per-request state between calls and no session state at all.
type Gateway struct {
	config     *config.Config
	resolver   *auth.Resolver
	routes     *routeTable
	forwarder  forwarder
	audit      *audit.Recorder
	auditStore *audit.SQLiteStore
	metrics    *metrics
	httpServer *http.Server
	logger     *slog.Logger

	// now is injectable for deterministic tests.
	now func() time.Time
}

// New creates a Gateway from configuration. All trust inputs — signing
// secret, static-key table, route table — are loaded here, once, and are
// read-only afterwards.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	codec, err := auth.NewCodec([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer)
	if err != nil {
		return nil, fmt.Errorf("creating token codec: %w", err)
	}

	keys := map[string]auth.StaticKey{}
	if cfg.Auth.StaticKeysFile != "" {
		entries, err := config.LoadStaticKeys(cfg.Auth.StaticKeysFile)
		if err != nil {
			return nil, fmt.Errorf("loading static keys: %w", err)
		}
		for id, entry := range entries {
			keys[entry.Key] = auth.StaticKey{
				ID:     id,
				Tenant: entry.Tenant,
				Scopes: entry.Scopes,
			}
		}
		logger.Info("static key table loaded", "keys", len(keys))
	}

	routes, err := newRouteTable(cfg.Routes)
	if err != nil {
		return nil, fmt.Errorf("building route table: %w", err)
	}

	fwd, err := backend.New(cfg.Backend.BaseURL, cfg.Backend.Timeout, logger.With("component", "forwarder"))
	if err != nil {
		return nil, fmt.Errorf("creating forwarder: %w", err)
	}

	var auditStore *audit.SQLiteStore
	if cfg.Audit.Path != "" {
		auditStore, err = audit.NewSQLiteStore(cfg.Audit.Path)
		if err != nil {
			return nil, fmt.Errorf("opening audit store: %w", err)
		}
		logger.Info("audit store opened", "path", cfg.Audit.Path)
	}

	g := &Gateway{
		config:     cfg,
		resolver:   auth.NewResolver(codec, keys, cfg.Auth.StaticKeyTTL),
		routes:     routes,
		forwarder:  fwd,
		audit:      audit.NewRecorder(logger, auditStore),
		auditStore: auditStore,
		metrics:    newMetrics(),
		logger:     logger.With("component", "gateway"),
		now:        time.Now,
	}

	mux := http.NewServeMux()

	// Health endpoints answer locally and never reach the auth path or
	// the backend.
	mux.HandleFunc("GET /healthz", g.handleHealth)
	mux.HandleFunc("GET /health", g.handleHealth)

	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, g.metrics.handler())
		logger.Info("metrics endpoint enabled", "path", cfg.Metrics.Path)
	}

	mux.HandleFunc("/", g.handleProxy)

	g.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return g, nil
}

// Run starts the gateway server and blocks until the context is canceled.
// Returns nil on graceful shutdown or an error if the server fails.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serverErr = <-errCh:
		g.logger.Error("server error", "error", serverErr)
	}

	shutdownErr := g.gracefulShutdown()
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// Uses context.Background() intentionally since the original context is
// already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown gracefully stops the server and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	err := g.httpServer.Shutdown(ctx)
	if g.auditStore != nil {
		if closeErr := g.auditStore.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing audit store: %w", closeErr)
		}
	}
	return err
}

// handleHealth serves the fixed health payload for /health and /healthz.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
