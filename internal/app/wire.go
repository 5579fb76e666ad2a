package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	solsdk "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	s3blob "github.com/truesightdao/tokenops/internal/blob/s3"
	"github.com/truesightdao/tokenops/internal/cache/redis"
	"github.com/truesightdao/tokenops/internal/config"
	"github.com/truesightdao/tokenops/internal/crypto"
	"github.com/truesightdao/tokenops/internal/dex/solana"
	"github.com/truesightdao/tokenops/internal/domain"
	"github.com/truesightdao/tokenops/internal/notify"
	"github.com/truesightdao/tokenops/internal/platform/github"
	"github.com/truesightdao/tokenops/internal/platform/latoken"
	"github.com/truesightdao/tokenops/internal/platform/wix"
	"github.com/truesightdao/tokenops/internal/service"
	"github.com/truesightdao/tokenops/internal/store/postgres"
)

// Dependencies bundles every dependency the application modes need to
// operate. It is constructed by Wire and torn down by the returned cleanup
// function. Fields for disabled subsystems are nil.
type Dependencies struct {
	// Infra clients (exposed for health checks)
	DB    *postgres.Client
	Cache *redis.Client

	// Stores
	Contributors  domain.ContributorStore
	Verifications domain.VerificationStore
	Plans         domain.PlanStore
	Audit         domain.AuditStore

	// Redis-backed primitives
	BudgetCache domain.BudgetCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	// Notifications
	Notifier *notify.Notifier

	// Services
	VerificationSvc *service.VerificationService
	MarketMakerSvc  *service.MarketMakerService
	BuybackSvc      *service.BuybackService
	ReportSvc       *service.ReportService
}

// needsS3 returns true for modes that archive to object storage.
func needsS3(mode string) bool {
	return mode == "full"
}

// wantsMarketMaker returns true when the given mode runs the exchange cycle.
func wantsMarketMaker(cfg *config.Config) bool {
	return cfg.MarketMaker.Enabled && (cfg.Mode == "marketmaker" || cfg.Mode == "full")
}

// wantsBuyback returns true when the given mode runs the on-chain buyback.
func wantsBuyback(cfg *config.Config) bool {
	return cfg.Buyback.Enabled && (cfg.Mode == "buyback" || cfg.Mode == "full")
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.DB = pgClient
	deps.Contributors = postgres.NewContributorStore(pool)
	deps.Verifications = postgres.NewVerificationStore(pool)
	deps.Plans = postgres.NewPlanStore(pool)
	deps.Audit = postgres.NewAuditStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.Cache = redisClient
	deps.BudgetCache = redis.NewBudgetCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- S3 blob storage (only for modes that archive) ---
	if needsS3(cfg.Mode) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.Verifications, deps.Plans, deps.Audit)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Services ---
	deps.VerificationSvc = service.NewVerificationService(
		deps.Verifications, deps.Contributors, deps.Audit,
		deps.SignalBus, deps.Notifier, logger,
	)

	// Budget source backs both trading cycles.
	var budgetSource domain.BudgetSource
	if wantsMarketMaker(cfg) || wantsBuyback(cfg) {
		wixClient, err := wix.NewClient(wix.Config{
			BaseURL:      cfg.Wix.BaseURL,
			APIKey:       cfg.Wix.ApiKey,
			AccountID:    cfg.Wix.AccountID,
			SiteID:       cfg.Wix.SiteID,
			CollectionID: cfg.Wix.CollectionID,
			BudgetItemID: cfg.Wix.BudgetItemID,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: wix: %w", err)
		}
		budgetSource = wixClient
	}

	if wantsMarketMaker(cfg) {
		exchange := latoken.NewClient(latoken.Config{
			BaseURL:    cfg.Latoken.BaseURL,
			CurrencyID: cfg.Latoken.CurrencyID,
			QuoteID:    cfg.Latoken.QuoteID,
			Auth: crypto.LatokenAuth{
				Key:    cfg.Latoken.ApiKey,
				Secret: cfg.Latoken.ApiSecret,
			},
			Limiter: deps.RateLimiter,
		})
		deps.MarketMakerSvc = service.NewMarketMakerService(
			exchange, budgetSource, deps.BudgetCache, deps.LockManager,
			deps.Plans, deps.Audit, deps.SignalBus, deps.Notifier,
			service.MarketMakerConfig{
				Pair:         cfg.MarketMaker.Pair,
				BookDepth:    cfg.MarketMaker.BookDepth,
				BudgetKey:    "marketmaker:daily",
				BudgetTTL:    cfg.MarketMaker.BudgetTTL.Duration,
				LockTTL:      cfg.MarketMaker.LockTTL.Duration,
				MaxBudgetUSD: decimal.NewFromFloat(cfg.MarketMaker.MaxBudgetUSD),
				DryRun:       cfg.MarketMaker.DryRun,
			},
			logger,
		)
	}

	if wantsBuyback(cfg) {
		swapper, err := buildSwapper(cfg)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: solana: %w", err)
		}
		deps.BuybackSvc = service.NewBuybackService(
			swapper, budgetSource, deps.BudgetCache, deps.LockManager,
			deps.Audit, deps.SignalBus, deps.Notifier,
			service.BuybackConfig{
				TokenMint:   cfg.Buyback.TokenMint,
				InputMint:   cfg.Buyback.InputMint,
				SlippageBps: cfg.Buyback.SlippageBps,
				BudgetKey:   "buyback:daily",
				BudgetTTL:   cfg.Buyback.BudgetTTL.Duration,
				LockTTL:     cfg.Buyback.LockTTL.Duration,
				DryRun:      cfg.Buyback.DryRun,
			},
			logger,
		)
	}

	if cfg.Report.Enabled && deps.Archiver != nil {
		var uploader service.Uploader
		if cfg.GitHub.Token != "" && cfg.GitHub.Owner != "" && cfg.GitHub.Repo != "" {
			ghClient, err := github.NewClient(github.Config{
				BaseURL: cfg.GitHub.BaseURL,
				Token:   cfg.GitHub.Token,
				Owner:   cfg.GitHub.Owner,
				Repo:    cfg.GitHub.Repo,
				Branch:  cfg.GitHub.Branch,
			})
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: github: %w", err)
			}
			uploader = ghClient
		}
		deps.ReportSvc = service.NewReportService(
			deps.Verifications, deps.Plans, deps.Archiver, uploader, deps.Audit,
			service.ReportConfig{
				Retention:     time.Duration(cfg.Report.RetentionDays) * 24 * time.Hour,
				ReportDir:     cfg.Report.ReportDir,
				ReportEntries: cfg.Report.ReportEntries,
			},
			logger,
		)
	}

	return deps, cleanup, nil
}

// buildSwapper constructs the Jupiter swap client. The wallet key is only
// loaded for live swaps; dry-run quoting needs no signer.
func buildSwapper(cfg *config.Config) (*solana.SwapClient, error) {
	var owner solsdk.PrivateKey
	if !cfg.Buyback.DryRun {
		key, err := solana.LoadWallet(crypto.SecretConfig{
			Raw:           cfg.Solana.WalletKey,
			EncryptedPath: cfg.Solana.EncryptedKeyPath,
			Password:      cfg.Solana.KeyPassword,
		})
		if err != nil {
			return nil, err
		}
		owner = key
	}
	return solana.NewSwapClient(cfg.Solana.RpcURL, cfg.Solana.JupiterURL, owner, cfg.Solana.Commitment), nil
}
