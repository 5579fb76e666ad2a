package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TOKENOPS_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TOKENOPS_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "TOKENOPS_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "TOKENOPS_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "TOKENOPS_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "TOKENOPS_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "TOKENOPS_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "TOKENOPS_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "TOKENOPS_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "TOKENOPS_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "TOKENOPS_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "TOKENOPS_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "TOKENOPS_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TOKENOPS_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TOKENOPS_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TOKENOPS_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "TOKENOPS_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "TOKENOPS_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "TOKENOPS_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TOKENOPS_S3_REGION")
	setStr(&cfg.S3.Bucket, "TOKENOPS_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "TOKENOPS_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TOKENOPS_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "TOKENOPS_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "TOKENOPS_S3_FORCE_PATH_STYLE")

	// ── Latoken ──
	setStr(&cfg.Latoken.BaseURL, "TOKENOPS_LATOKEN_BASE_URL")
	setStr(&cfg.Latoken.ApiKey, "TOKENOPS_LATOKEN_API_KEY")
	setStr(&cfg.Latoken.ApiSecret, "TOKENOPS_LATOKEN_API_SECRET")
	setStr(&cfg.Latoken.CurrencyID, "TOKENOPS_LATOKEN_CURRENCY_ID")
	setStr(&cfg.Latoken.QuoteID, "TOKENOPS_LATOKEN_QUOTE_ID")

	// ── Wix ──
	setStr(&cfg.Wix.BaseURL, "TOKENOPS_WIX_BASE_URL")
	setStr(&cfg.Wix.ApiKey, "TOKENOPS_WIX_API_KEY")
	setStr(&cfg.Wix.AccountID, "TOKENOPS_WIX_ACCOUNT_ID")
	setStr(&cfg.Wix.SiteID, "TOKENOPS_WIX_SITE_ID")
	setStr(&cfg.Wix.CollectionID, "TOKENOPS_WIX_COLLECTION_ID")
	setStr(&cfg.Wix.BudgetItemID, "TOKENOPS_WIX_BUDGET_ITEM_ID")

	// ── GitHub ──
	setStr(&cfg.GitHub.BaseURL, "TOKENOPS_GITHUB_BASE_URL")
	setStr(&cfg.GitHub.Token, "TOKENOPS_GITHUB_TOKEN")
	setStr(&cfg.GitHub.Owner, "TOKENOPS_GITHUB_OWNER")
	setStr(&cfg.GitHub.Repo, "TOKENOPS_GITHUB_REPO")
	setStr(&cfg.GitHub.Branch, "TOKENOPS_GITHUB_BRANCH")

	// ── Solana ──
	setStr(&cfg.Solana.RpcURL, "TOKENOPS_SOLANA_RPC_URL")
	setStr(&cfg.Solana.JupiterURL, "TOKENOPS_SOLANA_JUPITER_URL")
	setStr(&cfg.Solana.Commitment, "TOKENOPS_SOLANA_COMMITMENT")
	setStr(&cfg.Solana.WalletKey, "TOKENOPS_SOLANA_WALLET_KEY")
	setStr(&cfg.Solana.EncryptedKeyPath, "TOKENOPS_SOLANA_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Solana.KeyPassword, "TOKENOPS_SOLANA_KEY_PASSWORD")

	// ── MarketMaker ──
	setBool(&cfg.MarketMaker.Enabled, "TOKENOPS_MARKETMAKER_ENABLED")
	setStr(&cfg.MarketMaker.Pair, "TOKENOPS_MARKETMAKER_PAIR")
	setInt(&cfg.MarketMaker.BookDepth, "TOKENOPS_MARKETMAKER_BOOK_DEPTH")
	setFloat64(&cfg.MarketMaker.MaxBudgetUSD, "TOKENOPS_MARKETMAKER_MAX_BUDGET_USD")
	setDuration(&cfg.MarketMaker.Interval, "TOKENOPS_MARKETMAKER_INTERVAL")
	setDuration(&cfg.MarketMaker.BudgetTTL, "TOKENOPS_MARKETMAKER_BUDGET_TTL")
	setDuration(&cfg.MarketMaker.LockTTL, "TOKENOPS_MARKETMAKER_LOCK_TTL")
	setBool(&cfg.MarketMaker.DryRun, "TOKENOPS_MARKETMAKER_DRY_RUN")

	// ── Buyback ──
	setBool(&cfg.Buyback.Enabled, "TOKENOPS_BUYBACK_ENABLED")
	setStr(&cfg.Buyback.TokenMint, "TOKENOPS_BUYBACK_TOKEN_MINT")
	setStr(&cfg.Buyback.InputMint, "TOKENOPS_BUYBACK_INPUT_MINT")
	setInt(&cfg.Buyback.SlippageBps, "TOKENOPS_BUYBACK_SLIPPAGE_BPS")
	setDuration(&cfg.Buyback.Interval, "TOKENOPS_BUYBACK_INTERVAL")
	setDuration(&cfg.Buyback.BudgetTTL, "TOKENOPS_BUYBACK_BUDGET_TTL")
	setDuration(&cfg.Buyback.LockTTL, "TOKENOPS_BUYBACK_LOCK_TTL")
	setBool(&cfg.Buyback.DryRun, "TOKENOPS_BUYBACK_DRY_RUN")

	// ── Report ──
	setBool(&cfg.Report.Enabled, "TOKENOPS_REPORT_ENABLED")
	setInt(&cfg.Report.RetentionDays, "TOKENOPS_REPORT_RETENTION_DAYS")
	setStr(&cfg.Report.ReportDir, "TOKENOPS_REPORT_DIR")
	setInt(&cfg.Report.ReportEntries, "TOKENOPS_REPORT_ENTRIES")
	setDuration(&cfg.Report.Interval, "TOKENOPS_REPORT_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "TOKENOPS_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "TOKENOPS_SERVER_PORT")
	setStr(&cfg.Server.ApiKey, "TOKENOPS_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "TOKENOPS_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "TOKENOPS_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "TOKENOPS_SERVER_RATE_WINDOW")

	// ── Metrics ──
	setBool(&cfg.Metrics.Enabled, "TOKENOPS_METRICS_ENABLED")
	setStr(&cfg.Metrics.Addr, "TOKENOPS_METRICS_ADDR")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "TOKENOPS_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "TOKENOPS_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "TOKENOPS_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "TOKENOPS_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "TOKENOPS_MODE")
	setStr(&cfg.LogLevel, "TOKENOPS_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
