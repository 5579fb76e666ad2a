package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/truesightdao/tokenops/internal/crypto"
	"github.com/truesightdao/tokenops/internal/domain"
	"github.com/truesightdao/tokenops/internal/metrics"
	"github.com/truesightdao/tokenops/internal/server"
	"github.com/truesightdao/tokenops/internal/server/handler"
	"github.com/truesightdao/tokenops/internal/server/ws"
	"github.com/truesightdao/tokenops/internal/sigrequest"
)

// ServerMode runs the HTTP API, WebSocket hub, and metrics endpoint. Cycle
// triggers are available over the API but no interval loops run.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	a.startMetrics(ctx, g)
	a.startHTTPServer(ctx, g, deps)

	return g.Wait()
}

// MarketMakerMode runs the exchange buy cycle on its configured interval.
func (a *App) MarketMakerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting marketmaker mode")

	if deps.MarketMakerSvc == nil {
		return fmt.Errorf("marketmaker mode: cycle is disabled in config")
	}

	g, ctx := errgroup.WithContext(ctx)

	a.startMetrics(ctx, g)
	a.startMarketMakerLoop(ctx, g, deps)

	return g.Wait()
}

// BuybackMode runs the on-chain buyback cycle on its configured interval.
func (a *App) BuybackMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting buyback mode")

	if deps.BuybackSvc == nil {
		return fmt.Errorf("buyback mode: cycle is disabled in config")
	}

	g, ctx := errgroup.WithContext(ctx)

	a.startMetrics(ctx, g)
	a.startBuybackLoop(ctx, g, deps)

	return g.Wait()
}

// FullMode starts every subsystem: the HTTP API, both trading cycle loops,
// and the archival/report loop.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	a.startMetrics(ctx, g)

	if deps.MarketMakerSvc != nil {
		a.startMarketMakerLoop(ctx, g, deps)
	}
	if deps.BuybackSvc != nil {
		a.startBuybackLoop(ctx, g, deps)
	}
	if deps.ReportSvc != nil {
		a.startReportLoop(ctx, g, deps)
	}

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}

	return g.Wait()
}

// VerifyMode reads one signed request from stdin, verifies it, and prints
// the result as JSON. It touches no backends and exits immediately.
func (a *App) VerifyMode(ctx context.Context) error {
	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("verify mode: read stdin: %w", err)
	}

	msg, err := sigrequest.Parse(string(raw))
	if err != nil {
		return fmt.Errorf("verify mode: %w", err)
	}
	verified, err := crypto.Verify(msg.Message, msg.PublicKeyBase64, msg.SignatureBase64)
	if err != nil {
		return fmt.Errorf("verify mode: %w", err)
	}
	body := sigrequest.ParseBody(msg.Message)

	out := struct {
		Valid           bool              `json:"valid"`
		Digest          string            `json:"digest"`
		Fingerprint     string            `json:"fingerprint"`
		TransactionType string            `json:"transaction_type,omitempty"`
		Fields          map[string]string `json:"fields,omitempty"`
	}{
		Valid:           verified.Valid,
		Digest:          verified.MessageDigestHex,
		Fingerprint:     verified.KeyFingerprint,
		TransactionType: body.TransactionType,
		Fields:          body.Fields,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// startHTTPServer adds the API server and WebSocket hub to the errgroup.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	handlers := server.Handlers{
		Health:       handler.NewHealthHandler(deps.DB, deps.Cache),
		Verify:       handler.NewVerifyHandler(deps.VerificationSvc, a.logger),
		Cycles:       handler.NewCycleHandler(deps.MarketMakerSvc, deps.BuybackSvc, deps.Plans, a.logger),
		Contributors: handler.NewContributorHandler(deps.Contributors, a.logger),
	}
	if deps.BlobReader != nil {
		handlers.Archives = handler.NewArchiveHandler(deps.BlobReader, a.logger)
	}

	srv := server.New(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.ApiKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// startMetrics exposes the Prometheus endpoint when enabled.
func (a *App) startMetrics(ctx context.Context, g *errgroup.Group) {
	if !a.cfg.Metrics.Enabled {
		return
	}
	srv := metrics.Serve(a.cfg.Metrics.Addr)
	a.logger.InfoContext(ctx, "metrics endpoint listening", slog.String("addr", a.cfg.Metrics.Addr))
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

func (a *App) startMarketMakerLoop(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	interval := a.cfg.MarketMaker.Interval.Duration
	g.Go(func() error {
		return a.runCycleLoop(ctx, "marketmaker", interval, func(ctx context.Context) error {
			_, err := deps.MarketMakerSvc.RunCycle(ctx)
			return err
		})
	})
}

func (a *App) startBuybackLoop(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	interval := a.cfg.Buyback.Interval.Duration
	g.Go(func() error {
		return a.runCycleLoop(ctx, "buyback", interval, func(ctx context.Context) error {
			_, err := deps.BuybackSvc.RunCycle(ctx)
			return err
		})
	})
}

func (a *App) startReportLoop(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	interval := a.cfg.Report.Interval.Duration
	g.Go(func() error {
		return a.runCycleLoop(ctx, "report", interval, func(ctx context.Context) error {
			if _, _, err := deps.ReportSvc.Archive(ctx); err != nil {
				return err
			}
			// Publish yesterday's report; today's rows are still arriving.
			day := time.Now().UTC().AddDate(0, 0, -1)
			_, err := deps.ReportSvc.PublishDailyReport(ctx, day)
			return err
		})
	})
}

// runCycleLoop runs fn immediately and then on every interval tick until the
// context is cancelled. Cycle errors are logged, not fatal; a held lock means
// another replica ran the cycle and is only worth a debug line.
func (a *App) runCycleLoop(ctx context.Context, name string, interval time.Duration, fn func(context.Context) error) error {
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	runOnce := func() {
		if err := fn(ctx); err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				a.logger.DebugContext(ctx, "cycle skipped, lock held elsewhere", slog.String("cycle", name))
				return
			}
			a.logger.ErrorContext(ctx, "cycle failed",
				slog.String("cycle", name),
				slog.String("error", err.Error()),
			)
		}
	}

	runOnce()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			runOnce()
		}
	}
}
