// Package config provides application configuration loaded from environment
// variables (with an optional .env file for development).  Use the
// package-level Get() function to obtain the singleton Config instance.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/candlerush/arcade/internal/domain"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sub-config structs
// ──────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           string        // e.g. "8080"
	Env            string        // "development" | "production"
	ReadTimeout    time.Duration // default 10s
	WriteTimeout   time.Duration // default 10s
	AllowedOrigins []string      // CORS and WS origins; empty allows all in dev
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	DSN             string        // full postgres DSN
	MaxOpenConns    int           // default 25
	MaxIdleConns    int           // default 10
	ConnMaxLifetime time.Duration // default 5m
}

// ChainConfig holds wallet-bridge / ledger settings.
type ChainConfig struct {
	RPCEndpoint     string        // wallet-bridge JSON-RPC URL
	RequestTimeout  time.Duration // default 30s (signature prompts are slow)
	BalancePollRate time.Duration // default 5s
}

// GameConfig holds round and trading settings.
type GameConfig struct {
	StakeAmount    decimal.Decimal // committed at every round start
	MinBalance     decimal.Decimal // required to start a round
	FeeRate        decimal.Decimal // trading fee on position size
	PositionRatio  decimal.Decimal // share of balance per trade
	CandleInterval time.Duration   // default 64ms (~15.6 candles/s)
	RoundGap       time.Duration   // pause between round end and next seed
	StakeTimeout   time.Duration   // ceiling on waiting for a stake signature
	RejectCooldown time.Duration   // suppress restake after a rejection
}

// ReconcileConfig holds balance-reconciliation retry settings.
type ReconcileConfig struct {
	Intervals []time.Duration // sleep before each read attempt
	Tolerance decimal.Decimal // acceptable balance delta
	Network   []time.Duration // backoff between network-error resubmissions
}

// SessionConfig holds wallet-session token settings.
type SessionConfig struct {
	Secret string        // HMAC key for session JWTs; must be set
	TTL    time.Duration // default 12h
}

// ──────────────────────────────────────────────────────────────────────────────
// Top-level Config
// ──────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object for the entire application.
type Config struct {
	Server    ServerConfig
	DB        DBConfig
	Chain     ChainConfig
	Game      GameConfig
	Reconcile ReconcileConfig
	Session   SessionConfig
}

// IsProd returns true when running in the production environment.
func (c *Config) IsProd() bool {
	return c.Server.Env == "production"
}

// Validate checks that all required configuration values are present and
// valid.  Returns every validation error encountered, joined.
func (c *Config) Validate() error {
	var errs []error

	if c.Session.Secret == "" {
		errs = append(errs, errors.New("SESSION_SECRET must be set"))
	}
	if c.IsProd() && c.DB.DSN == "" {
		errs = append(errs, errors.New("DATABASE_DSN must be set in production"))
	}
	if c.Chain.RPCEndpoint == "" {
		errs = append(errs, errors.New("CHAIN_RPC_ENDPOINT must be set"))
	}
	if !c.Game.StakeAmount.IsPositive() {
		errs = append(errs, fmt.Errorf("GAME_STAKE_AMOUNT must be positive, got %s", c.Game.StakeAmount))
	}
	if c.Game.FeeRate.IsNegative() || c.Game.FeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		errs = append(errs, fmt.Errorf("GAME_FEE_RATE must be in [0,1), got %s", c.Game.FeeRate))
	}
	if !c.Game.PositionRatio.IsPositive() || c.Game.PositionRatio.GreaterThan(decimal.NewFromInt(1)) {
		errs = append(errs, fmt.Errorf("GAME_POSITION_RATIO must be in (0,1], got %s", c.Game.PositionRatio))
	}
	if len(c.Reconcile.Intervals) == 0 {
		errs = append(errs, errors.New("RECONCILE_INTERVALS must list at least one delay"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Singleton
// ──────────────────────────────────────────────────────────────────────────────

var (
	instance *Config
	once     sync.Once
	loadErr  error
)

// Get returns the singleton Config, loading it once from the environment.
// Panics if loading fails — call this early in main() so misconfiguration is
// caught at startup.
func Get() *Config {
	once.Do(func() {
		instance, loadErr = load()
	})
	if loadErr != nil {
		panic(fmt.Sprintf("config: failed to load: %v", loadErr))
	}
	return instance
}

// MustLoad loads and validates configuration.  Intended for use in main().
func MustLoad() *Config {
	cfg := Get()
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("config: validation failed: %v", err))
	}
	return cfg
}

// ──────────────────────────────────────────────────────────────────────────────
// Internal loader
// ──────────────────────────────────────────────────────────────────────────────

func load() (*Config, error) {
	// Best effort: a missing .env is fine outside development.
	_ = godotenv.Load()

	cfg := &Config{}

	// ── Server ────────────────────────────────────────────────────────────────
	cfg.Server = ServerConfig{
		Port:           getEnv("SERVER_PORT", "8080"),
		Env:            getEnv("ENVIRONMENT", "development"),
		ReadTimeout:    getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:   getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
		AllowedOrigins: getStringList("CORS_ALLOWED_ORIGINS"),
	}

	// ── Database ──────────────────────────────────────────────────────────────
	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		// Build DSN from individual components for convenience in dev
		dsn = fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			getEnv("DB_HOST", "localhost"),
			getEnv("DB_PORT", "5432"),
			getEnv("DB_USER", "postgres"),
			getEnv("DB_PASSWORD", ""),
			getEnv("DB_NAME", "candlerush"),
			getEnv("DB_SSLMODE", "disable"),
		)
	}

	maxOpen, err := getInt("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_OPEN_CONNS: %w", err)
	}
	maxIdle, err := getInt("DB_MAX_IDLE_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("DB_MAX_IDLE_CONNS: %w", err)
	}

	cfg.DB = DBConfig{
		DSN:             dsn,
		MaxOpenConns:    maxOpen,
		MaxIdleConns:    maxIdle,
		ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}

	// ── Chain ─────────────────────────────────────────────────────────────────
	cfg.Chain = ChainConfig{
		RPCEndpoint:     getEnv("CHAIN_RPC_ENDPOINT", "http://localhost:8899"),
		RequestTimeout:  getDuration("CHAIN_REQUEST_TIMEOUT", 30*time.Second),
		BalancePollRate: getDuration("CHAIN_BALANCE_POLL_RATE", 5*time.Second),
	}

	// ── Game ──────────────────────────────────────────────────────────────────
	stake, err := getDecimal("GAME_STAKE_AMOUNT", "0.05")
	if err != nil {
		return nil, fmt.Errorf("GAME_STAKE_AMOUNT: %w", err)
	}
	minBal, err := getDecimal("GAME_MIN_BALANCE", "0.1")
	if err != nil {
		return nil, fmt.Errorf("GAME_MIN_BALANCE: %w", err)
	}
	feeRate, err := getDecimal("GAME_FEE_RATE", domain.TradingFeeRate.String())
	if err != nil {
		return nil, fmt.Errorf("GAME_FEE_RATE: %w", err)
	}
	posRatio, err := getDecimal("GAME_POSITION_RATIO", domain.PositionSizeRatio.String())
	if err != nil {
		return nil, fmt.Errorf("GAME_POSITION_RATIO: %w", err)
	}

	cfg.Game = GameConfig{
		StakeAmount:    stake,
		MinBalance:     minBal,
		FeeRate:        feeRate,
		PositionRatio:  posRatio,
		CandleInterval: getDuration("GAME_CANDLE_INTERVAL", 64*time.Millisecond),
		RoundGap:       getDuration("GAME_ROUND_GAP", 5*time.Second),
		StakeTimeout:   getDuration("GAME_STAKE_TIMEOUT", 45*time.Second),
		RejectCooldown: getDuration("GAME_REJECT_COOLDOWN", 10*time.Second),
	}

	// ── Reconcile ─────────────────────────────────────────────────────────────
	intervals, err := getDurationList("RECONCILE_INTERVALS", []time.Duration{
		2 * time.Second, 3 * time.Second, 5 * time.Second, 8 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("RECONCILE_INTERVALS: %w", err)
	}
	tolerance, err := getDecimal("RECONCILE_TOLERANCE", "0.001")
	if err != nil {
		return nil, fmt.Errorf("RECONCILE_TOLERANCE: %w", err)
	}
	network, err := getDurationList("NETWORK_RETRY_INTERVALS", []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("NETWORK_RETRY_INTERVALS: %w", err)
	}

	cfg.Reconcile = ReconcileConfig{
		Intervals: intervals,
		Tolerance: tolerance,
		Network:   network,
	}

	// ── Session ───────────────────────────────────────────────────────────────
	cfg.Session = SessionConfig{
		Secret: getEnv("SESSION_SECRET", ""),
		TTL:    getDuration("SESSION_TTL", 12*time.Hour),
	}

	return cfg, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Helper functions
// ──────────────────────────────────────────────────────────────────────────────

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", v)
	}
	return n, nil
}

func getDecimal(key, defaultVal string) (decimal.Decimal, error) {
	v := os.Getenv(key)
	if v == "" {
		v = defaultVal
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal %q", v)
	}
	return d, nil
}

// getDuration parses an env var as a Go duration string (e.g. "15m", "2s").
// Falls back to defaultVal if the variable is unset or invalid.
func getDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// getStringList parses a comma-separated env var into a slice, nil when unset.
func getStringList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// getDurationList parses a comma-separated list of Go durations ("2s,3s,5s").
func getDurationList(key string, defaultVal []time.Duration) ([]time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	parts := strings.Split(v, ",")
	out := make([]time.Duration, 0, len(parts))
	for _, p := range parts {
		d, err := time.ParseDuration(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid duration %q", p)
		}
		out = append(out, d)
	}
	return out, nil
}
