// Package config defines the top-level configuration for the token
// automation suite and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by TOKENOPS_* environment variables.
type Config struct {
	Postgres    PostgresConfig    `toml:"postgres"`
	Redis       RedisConfig       `toml:"redis"`
	S3          S3Config          `toml:"s3"`
	Latoken     LatokenConfig     `toml:"latoken"`
	Wix         WixConfig         `toml:"wix"`
	GitHub      GitHubConfig      `toml:"github"`
	Solana      SolanaConfig      `toml:"solana"`
	MarketMaker MarketMakerConfig `toml:"marketmaker"`
	Buyback     BuybackConfig     `toml:"buyback"`
	Report      ReportConfig      `toml:"report"`
	Server      ServerConfig      `toml:"server"`
	Metrics     MetricsConfig     `toml:"metrics"`
	Notify      NotifyConfig      `toml:"notify"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the archive.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// LatokenConfig holds LATOKEN exchange credentials and the traded pair's
// asset identifiers.
type LatokenConfig struct {
	BaseURL    string `toml:"base_url"`
	ApiKey     string `toml:"api_key"`
	ApiSecret  string `toml:"api_secret"`
	CurrencyID string `toml:"currency_id"`
	QuoteID    string `toml:"quote_id"`
}

// WixConfig holds Wix Data API credentials and the budget item coordinates.
type WixConfig struct {
	BaseURL      string `toml:"base_url"`
	ApiKey       string `toml:"api_key"`
	AccountID    string `toml:"account_id"`
	SiteID       string `toml:"site_id"`
	CollectionID string `toml:"collection_id"`
	BudgetItemID string `toml:"budget_item_id"`
}

// GitHubConfig holds the report repository coordinates and access token.
type GitHubConfig struct {
	BaseURL string `toml:"base_url"`
	Token   string `toml:"token"`
	Owner   string `toml:"owner"`
	Repo    string `toml:"repo"`
	Branch  string `toml:"branch"`
}

// SolanaConfig holds the RPC endpoint, Jupiter aggregator endpoint, and the
// buyback wallet credentials. The wallet key may be supplied raw or as an
// encrypted key file plus password.
type SolanaConfig struct {
	RpcURL           string `toml:"rpc_url"`
	JupiterURL       string `toml:"jupiter_url"`
	Commitment       string `toml:"commitment"`
	WalletKey        string `toml:"wallet_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// MarketMakerConfig holds the daily market-making cycle parameters.
type MarketMakerConfig struct {
	Enabled      bool     `toml:"enabled"`
	Pair         string   `toml:"pair"`
	BookDepth    int      `toml:"book_depth"`
	MaxBudgetUSD float64  `toml:"max_budget_usd"`
	Interval     duration `toml:"interval"`
	BudgetTTL    duration `toml:"budget_ttl"`
	LockTTL      duration `toml:"lock_ttl"`
	DryRun       bool     `toml:"dry_run"`
}

// BuybackConfig holds the Solana buyback cycle parameters.
type BuybackConfig struct {
	Enabled     bool     `toml:"enabled"`
	TokenMint   string   `toml:"token_mint"`
	InputMint   string   `toml:"input_mint"`
	SlippageBps int      `toml:"slippage_bps"`
	Interval    duration `toml:"interval"`
	BudgetTTL   duration `toml:"budget_ttl"`
	LockTTL     duration `toml:"lock_ttl"`
	DryRun      bool     `toml:"dry_run"`
}

// ReportConfig holds archival retention and daily report parameters.
type ReportConfig struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	ReportDir     string   `toml:"report_dir"`
	ReportEntries int      `toml:"report_entries"`
	Interval      duration `toml:"interval"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	ApiKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
}

// MetricsConfig holds the Prometheus exposition endpoint parameters.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "tokenops",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "tokenops-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Latoken: LatokenConfig{
			BaseURL: "https://api.latoken.com",
		},
		Wix: WixConfig{
			CollectionID: "ExchangeRate",
		},
		Solana: SolanaConfig{
			RpcURL:     "https://api.mainnet-beta.solana.com",
			JupiterURL: "https://quote-api.jup.ag",
			Commitment: "confirmed",
		},
		MarketMaker: MarketMakerConfig{
			Enabled:      true,
			Pair:         "TDG/USDT",
			BookDepth:    50,
			MaxBudgetUSD: 100.0,
			Interval:     duration{24 * time.Hour},
			BudgetTTL:    duration{time.Hour},
			LockTTL:      duration{5 * time.Minute},
			DryRun:       false,
		},
		Buyback: BuybackConfig{
			Enabled:     false,
			SlippageBps: 50,
			Interval:    duration{24 * time.Hour},
			BudgetTTL:   duration{time.Hour},
			LockTTL:     duration{5 * time.Minute},
			DryRun:      false,
		},
		Report: ReportConfig{
			Enabled:       true,
			RetentionDays: 90,
			ReportDir:     "reports",
			ReportEntries: 50,
			Interval:      duration{24 * time.Hour},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   0,
			RateWindow:  duration{time.Minute},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9100",
		},
		Notify: NotifyConfig{
			Events: []string{"verification", "plan_executed", "buyback", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":      true,
	"marketmaker": true,
	"buyback":     true,
	"verify":      true,
	"full":        true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, marketmaker, buyback, verify, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 — only mode "full" runs the archival path.
	if c.Mode == "full" {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	// Latoken — credentials are required whenever live orders can be placed.
	needsExchange := c.MarketMaker.Enabled && !c.MarketMaker.DryRun &&
		(c.Mode == "marketmaker" || c.Mode == "full")
	if needsExchange {
		if c.Latoken.ApiKey == "" || c.Latoken.ApiSecret == "" {
			errs = append(errs, "latoken: api_key and api_secret are required when marketmaker is enabled and not dry_run")
		}
	}
	if c.MarketMaker.Enabled && (c.Mode == "marketmaker" || c.Mode == "full") {
		if c.Latoken.CurrencyID == "" || c.Latoken.QuoteID == "" {
			errs = append(errs, "latoken: currency_id and quote_id are required when marketmaker is enabled")
		}
	}

	// Wix — the budget source backs both trading cycles.
	needsBudget := (c.MarketMaker.Enabled || c.Buyback.Enabled) &&
		(c.Mode == "marketmaker" || c.Mode == "buyback" || c.Mode == "full")
	if needsBudget {
		if c.Wix.ApiKey == "" {
			errs = append(errs, "wix: api_key is required when a trading cycle is enabled")
		}
		if c.Wix.AccountID == "" && c.Wix.SiteID == "" {
			errs = append(errs, "wix: either account_id or site_id must be set")
		}
		if c.Wix.BudgetItemID == "" {
			errs = append(errs, "wix: budget_item_id must not be empty")
		}
	}

	// Solana — wallet credentials are required for live buybacks.
	if c.Buyback.Enabled && (c.Mode == "buyback" || c.Mode == "full") {
		if c.Buyback.TokenMint == "" {
			errs = append(errs, "buyback: token_mint must not be empty when enabled")
		}
		if c.Buyback.SlippageBps <= 0 {
			errs = append(errs, fmt.Sprintf("buyback: slippage_bps must be > 0, got %d", c.Buyback.SlippageBps))
		}
		if !c.Buyback.DryRun {
			if c.Solana.WalletKey == "" && c.Solana.EncryptedKeyPath == "" {
				errs = append(errs, "solana: either wallet_key or encrypted_key_path must be set for live buybacks")
			}
			if c.Solana.EncryptedKeyPath != "" && c.Solana.KeyPassword == "" {
				errs = append(errs, "solana: key_password is required when encrypted_key_path is set")
			}
		}
	}

	// MarketMaker
	if c.MarketMaker.Enabled {
		if c.MarketMaker.Pair == "" {
			errs = append(errs, "marketmaker: pair must not be empty when enabled")
		}
		if c.MarketMaker.BookDepth < 1 {
			errs = append(errs, "marketmaker: book_depth must be >= 1")
		}
		if c.MarketMaker.MaxBudgetUSD < 0 {
			errs = append(errs, "marketmaker: max_budget_usd must not be negative")
		}
	}

	// Report
	if c.Report.Enabled {
		if c.Report.RetentionDays < 1 {
			errs = append(errs, "report: retention_days must be >= 1")
		}
		if c.Report.ReportEntries < 1 {
			errs = append(errs, "report: report_entries must be >= 1")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must not be negative")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
