// ABOUTME: Gateway wiring: store, services and HTTP server lifecycle
// ABOUTME: New builds the object graph, Run blocks until shutdown

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/2389/pairlink/internal/api"
	"github.com/2389/pairlink/internal/channel"
	"github.com/2389/pairlink/internal/config"
	"github.com/2389/pairlink/internal/identity"
	"github.com/2389/pairlink/internal/pairing"
	"github.com/2389/pairlink/internal/store"
	"github.com/2389/pairlink/internal/stream"
)

// Gateway owns the store, the domain services and the HTTP server.
type Gateway struct {
	config     *config.Config
	store      *store.SQLiteStore
	stream     *stream.Service
	httpServer *http.Server
	logger     *slog.Logger
}

// New builds a gateway from configuration: SQLite store, pairing manager,
// identity service, stream service and the HTTP API on top of them.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	sqlStore, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	pairer := pairing.New(sqlStore, logger)
	tokens := identity.NewTokens([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
	ident := identity.NewService(sqlStore, pairer, tokens, logger)
	resolver := channel.NewResolver(sqlStore)
	streamSvc := stream.NewService(sqlStore, logger)

	apiServer := api.NewServer(ident, pairer, resolver, streamSvc, sqlStore, logger)

	gw := &Gateway{
		config: cfg,
		store:  sqlStore,
		stream: streamSvc,
		logger: logger.With("component", "gateway"),
	}
	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// Run starts the HTTP server and blocks until the context is canceled or
// the server fails. Returns nil on graceful shutdown.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
// Uses context.Background() intentionally since the original context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return g.Shutdown(ctx)
}

// Shutdown stops the HTTP server and releases resources in dependency
// order: server first so no new appends arrive, then the live fan-out,
// then the store.
func (g *Gateway) Shutdown(ctx context.Context) error {
	var errs []error

	if err := g.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
	}

	g.stream.Close()

	if err := g.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store close: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	g.logger.Info("gateway shut down cleanly")
	return nil
}
