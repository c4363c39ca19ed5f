package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/GM-Tomas/arbot/internal/domain"
	"github.com/GM-Tomas/arbot/internal/server"
	"github.com/GM-Tomas/arbot/internal/server/handler"
	"github.com/GM-Tomas/arbot/internal/server/ws"
)

// shutdownTimeout bounds the graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// ScanMode runs the feed and the scanner loop without the API server.
// Opportunities still reach the signal bus for external consumers.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")

	g, ctx := errgroup.WithContext(ctx)

	if err := a.startScanning(ctx, g, deps); err != nil {
		return err
	}

	return g.Wait()
}

// ServerMode runs only the API server and WebSocket hub. Scanner state stays
// empty unless another process publishes on the shared bus, which requires a
// Redis address to be configured.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	if a.cfg.Redis.Addr == "" {
		a.logger.Warn("server mode without redis sees no external events")
	}

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// FullMode runs everything: feed, scanner loop, API server, WebSocket hub.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	if err := a.startScanning(ctx, g, deps); err != nil {
		return err
	}
	a.startHTTPServer(ctx, g, deps)

	return g.Wait()
}

// startScanning resolves the universe, builds the cycle set, starts the feed
// with the cycle symbols subscribed, and launches the scan loop.
func (a *App) startScanning(ctx context.Context, g *errgroup.Group, deps *Dependencies) error {
	u := resolveUniverse(ctx, a.cfg, a.logger)

	var cycles []domain.TriangularCycle
	if a.cfg.Universe.TopPairsCount > 0 {
		cycles = deps.Builder.BuildTop(u.All, u.Top)
	} else {
		cycles = deps.Builder.Build(u.All)
	}
	deps.Scanner.SetCycles(cycles)

	symbols := cycleSymbols(cycles)
	if len(symbols) == 0 {
		a.logger.Warn("no cycles found in universe, feed has nothing to watch")
	}
	deps.Feed.Subscribe(symbols)

	if err := deps.Feed.Start(); err != nil {
		return err
	}

	g.Go(func() error {
		<-ctx.Done()
		deps.Feed.Stop()
		return ctx.Err()
	})

	g.Go(func() error {
		return deps.Scanner.Run(ctx)
	})

	a.logger.Info("scanning started",
		slog.Int("cycles", len(cycles)),
		slog.Int("symbols", len(symbols)),
	)
	return nil
}

// startHTTPServer registers all handlers, starts the WebSocket hub, and runs
// the HTTP server with graceful shutdown tied to the group context.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	startedAt := time.Now().UTC()

	hub := ws.NewHub(deps.Bus, deps.Scanner.GetStatus, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
		},
		server.Handlers{
			Health:        handler.NewHealthHandler(a.logger),
			Status:        handler.NewStatusHandler(deps.Scanner, a.cfg.Mode, startedAt),
			Prices:        handler.NewPricesHandler(deps.Scanner, deps.History),
			Opportunities: handler.NewOpportunitiesHandler(deps.Scanner),
			Dashboard:     handler.NewDashboardHandler(deps.Scanner, a.cfg.Mode, startedAt),
		},
		hub,
		a.logger,
	)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
