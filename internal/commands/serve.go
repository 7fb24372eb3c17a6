package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cineflex/cineflex/catalog"
	"github.com/cineflex/cineflex/config"
	"github.com/cineflex/cineflex/logger"
	"github.com/cineflex/cineflex/observability"
	"github.com/cineflex/cineflex/proxy"
	"github.com/cineflex/cineflex/server"
)

// NewServeCommand creates the serve command
func NewServeCommand(global *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long: `Starts the HTTP server with the catalog JSON routes, the forwarding proxy
and the health, readiness and metrics endpoints. Stops on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := global.load()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, logger.New(cfg.Log.Level, cfg.Log.Pretty))
		},
	}

	return cmd
}

// app is the assembled server and everything it must release on shutdown.
type app struct {
	server   *server.Server
	cleanups []func(context.Context) error
}

// newApp wires configuration into the server, the catalog service and the proxy.
func newApp(cfg *config.Config, log logger.Logger, obsOpts ...observability.Option) (*app, error) {
	a := &app{}

	provider, err := observability.NewProvider(&cfg.Observability, log, obsOpts...)
	if err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}
	a.cleanups = append(a.cleanups, provider.Shutdown)
	mp, tp := provider.MeterProvider(), provider.TracerProvider()

	client, err := newCatalogClient(cfg, log, mp, tp)
	if err != nil {
		a.close(context.Background(), log)
		return nil, fmt.Errorf("catalog client: %w", err)
	}

	store, err := newCache(cfg, mp)
	if err != nil {
		a.close(context.Background(), log)
		return nil, fmt.Errorf("cache: %w", err)
	}
	if store != nil {
		a.cleanups = append(a.cleanups, func(context.Context) error { return store.Close() })
	}
	svc := catalog.NewService(client, log, serviceOptions(cfg, store)...)

	registry := server.NewRegistry()
	registry.MustRegister(server.NewClientCollector("catalog", client))

	serverOpts := []server.Option{
		server.WithProbe("catalog", server.ClientProbe(client)),
		server.WithGatherer(registry),
		server.WithMeterProvider(mp),
		server.WithTracerProvider(tp),
	}

	var proxyHandler *proxy.Handler
	if cfg.Proxy.Enabled {
		proxyClient, err := newProxyClient(cfg, log, mp, tp)
		if err != nil {
			a.close(context.Background(), log)
			return nil, fmt.Errorf("proxy client: %w", err)
		}
		registry.MustRegister(server.NewClientCollector("proxy", proxyClient))
		proxyHandler = proxy.New(proxyClient, cfg.Proxy.Token, log)
		serverOpts = append(serverOpts, server.WithSelfManagedCORS(proxyHandler.Prefixes()...))
	}

	srv, err := server.New(cfg, log, serverOpts...)
	if err != nil {
		a.close(context.Background(), log)
		return nil, fmt.Errorf("server: %w", err)
	}

	modules := srv.ModuleGroup()
	catalog.NewHandler(svc).Register(modules)
	if proxyHandler != nil {
		proxyHandler.Register(modules)
	}

	a.server = srv
	return a, nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close(ctx context.Context, log logger.Logger) {
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		if err := a.cleanups[i](ctx); err != nil {
			log.Warn().Err(err).Msg("Cleanup failed")
		}
	}
	a.cleanups = nil
}

// runServe blocks until ctx is done or the listener fails, then shuts down gracefully.
func runServe(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Start()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("server stopped: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.server.ShutdownTimeout())
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
		if serveErr == nil {
			serveErr = err
		}
	}
	a.close(shutdownCtx, log)

	if serveErr == nil {
		log.Info().Msg("Server stopped")
	}
	return serveErr
}
