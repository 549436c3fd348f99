// Package config provides application configuration loaded from environment variables.
// Use the package-level Get() function to obtain the singleton Config instance.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/evetabi/bookie/internal/chain"
	"github.com/evetabi/bookie/internal/domain"
	"github.com/evetabi/bookie/internal/odds"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sub-config structs
// ──────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        // e.g. "8080"
	Env          string        // "development" | "production"
	ReadTimeout  time.Duration // default 10s
	WriteTimeout time.Duration // default 10s
}

// DBConfig holds PostgreSQL connection settings for the journal database.
type DBConfig struct {
	DSN             string        // full postgres DSN
	MaxOpenConns    int           // default 25
	MaxIdleConns    int           // default 10
	ConnMaxLifetime time.Duration // default 5m
}

// JWTConfig holds JWT verification settings for operator and bettor tokens.
type JWTConfig struct {
	Secret    string        // must be set
	AccessTTL time.Duration // default 15m
}

// ChainConfig holds the consensus parameters of the betting engine as they
// arrive from the environment. Odds bounds and the increment ladder are
// written in decimal-odds notation ("1.01", "2.00:0.01,...") and converted to
// fixed-point backer multipliers by Parameters().
type ChainConfig struct {
	BlockInterval    time.Duration // default 3s
	LiveBettingDelay time.Duration // in-play match delay, default 5s
	MinOdds          decimal.Decimal
	MaxOdds          decimal.Decimal
	OddsLadder       string // "maxOdds:increment,..." ascending; "" = engine default
	RakeFeeBps       int    // rake on net winnings, basis points
	DividendAccount  uint64 // account collecting the undistributed rake
}

// ──────────────────────────────────────────────────────────────────────────────
// Top-level Config
// ──────────────────────────────────────────────────────────────────────────────

// Config is the root configuration object for the entire application.
type Config struct {
	Server ServerConfig
	DB     DBConfig
	JWT    JWTConfig
	Chain  ChainConfig
}

// IsProd returns true when running in the production environment.
func (c *Config) IsProd() bool {
	return c.Server.Env == "production"
}

// Validate checks that all required configuration values are present and valid.
func (c *Config) Validate() error {
	var errs []error

	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET must be set"))
	}

	// In production, DB DSN must be explicit
	if c.IsProd() && c.DB.DSN == "" {
		errs = append(errs, errors.New("DATABASE_DSN must be set in production"))
	}

	if c.Chain.BlockInterval < time.Second {
		errs = append(errs, fmt.Errorf(
			"BLOCK_INTERVAL must be at least 1s, got %s", c.Chain.BlockInterval))
	}
	if c.Chain.RakeFeeBps < 0 || c.Chain.RakeFeeBps > 10000 {
		errs = append(errs, fmt.Errorf(
			"RAKE_FEE_BPS must be between 0 and 10000, got %d", c.Chain.RakeFeeBps))
	}
	if c.Chain.DividendAccount == 0 {
		errs = append(errs, errors.New("DIVIDEND_ACCOUNT must be a nonzero account id"))
	}

	// The full odds checks (bounds vs precision, ladder ordering) live in
	// chain.Parameters.Validate; running the conversion here surfaces
	// malformed odds strings at boot instead of at engine construction.
	if _, err := c.Chain.Parameters(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Chain parameter conversion
// ──────────────────────────────────────────────────────────────────────────────

// Parameters converts the env-facing decimal-odds settings into the engine's
// fixed-point consensus parameters and validates the result.
func (cc ChainConfig) Parameters() (chain.Parameters, error) {
	p := chain.DefaultParameters()

	p.BlockInterval = int64(cc.BlockInterval / time.Second)
	p.LiveBettingDelay = int64(cc.LiveBettingDelay / time.Second)
	p.RakeFeeBasisPoints = int64(cc.RakeFeeBps)
	p.DividendAccount = domain.AccountID(cc.DividendAccount)

	var err error
	if p.MinMultiplier, err = toMultiplier(cc.MinOdds); err != nil {
		return chain.Parameters{}, fmt.Errorf("MIN_ODDS: %w", err)
	}
	if p.MaxMultiplier, err = toMultiplier(cc.MaxOdds); err != nil {
		return chain.Parameters{}, fmt.Errorf("MAX_ODDS: %w", err)
	}

	if cc.OddsLadder != "" {
		ladder, err := parseLadder(cc.OddsLadder)
		if err != nil {
			return chain.Parameters{}, fmt.Errorf("ODDS_LADDER: %w", err)
		}
		p.OddsLadder = ladder
	}

	if err := p.Validate(); err != nil {
		return chain.Parameters{}, fmt.Errorf("chain parameters: %w", err)
	}
	return p, nil
}

// toMultiplier scales decimal odds to a fixed-point backer multiplier.
// Rejects odds with more fractional digits than the multiplier can carry.
func toMultiplier(d decimal.Decimal) (int64, error) {
	scaled := d.Mul(decimal.NewFromInt(odds.Precision))
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("odds %s have more than 4 decimal places", d)
	}
	return scaled.IntPart(), nil
}

// parseLadder parses "2.00:0.01,3.00:0.02,..." into ascending odds tiers.
func parseLadder(s string) ([]chain.OddsTier, error) {
	var tiers []chain.OddsTier
	for _, entry := range strings.Split(s, ",") {
		maxStr, incStr, ok := strings.Cut(strings.TrimSpace(entry), ":")
		if !ok {
			return nil, fmt.Errorf("tier %q is not maxOdds:increment", entry)
		}
		maxOdds, err := decimal.NewFromString(maxStr)
		if err != nil {
			return nil, fmt.Errorf("tier %q: %w", entry, err)
		}
		incOdds, err := decimal.NewFromString(incStr)
		if err != nil {
			return nil, fmt.Errorf("tier %q: %w", entry, err)
		}
		maxMult, err := toMultiplier(maxOdds)
		if err != nil {
			return nil, fmt.Errorf("tier %q: %w", entry, err)
		}
		increment, err := toMultiplier(incOdds)
		if err != nil {
			return nil, fmt.Errorf("tier %q: %w", entry, err)
		}
		tiers = append(tiers, chain.OddsTier{MaxMultiplier: maxMult, Increment: increment})
	}
	return tiers, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Singleton
// ──────────────────────────────────────────────────────────────────────────────

var (
	instance *Config
	once     sync.Once
	loadErr  error
)

// Get returns the singleton Config, loading it once from environment variables.
// Panics if loading fails — call this early in main() to catch misconfigurations
// at startup.
func Get() *Config {
	once.Do(func() {
		instance, loadErr = load()
	})
	if loadErr != nil {
		panic(fmt.Sprintf("config: failed to load: %v", loadErr))
	}
	return instance
}

// MustLoad loads and validates configuration. Intended for use in main().
// Panics on any error so misconfiguration is caught immediately at boot.
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
	cfg := &Config{}

	// ── Server ────────────────────────────────────────────────────────────────
	cfg.Server = ServerConfig{
		Port:         getEnv("SERVER_PORT", "8080"),
		Env:          getEnv("ENVIRONMENT", "development"),
		ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
		WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
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
			getEnv("DB_NAME", "bookie"),
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

	// ── JWT ───────────────────────────────────────────────────────────────────
	cfg.JWT = JWTConfig{
		Secret:    getEnv("JWT_SECRET", ""),
		AccessTTL: getDuration("JWT_ACCESS_TTL", 15*time.Minute),
	}

	// ── Chain ─────────────────────────────────────────────────────────────────
	minOdds, err := getDecimal("MIN_ODDS", "1.01")
	if err != nil {
		return nil, fmt.Errorf("MIN_ODDS: %w", err)
	}
	maxOdds, err := getDecimal("MAX_ODDS", "1000")
	if err != nil {
		return nil, fmt.Errorf("MAX_ODDS: %w", err)
	}
	rakeBps, err := getInt("RAKE_FEE_BPS", 500)
	if err != nil {
		return nil, fmt.Errorf("RAKE_FEE_BPS: %w", err)
	}
	dividend, err := getUint64("DIVIDEND_ACCOUNT", 1)
	if err != nil {
		return nil, fmt.Errorf("DIVIDEND_ACCOUNT: %w", err)
	}

	cfg.Chain = ChainConfig{
		BlockInterval:    getDuration("BLOCK_INTERVAL", 3*time.Second),
		LiveBettingDelay: getDuration("LIVE_BETTING_DELAY", 5*time.Second),
		MinOdds:          minOdds,
		MaxOdds:          maxOdds,
		OddsLadder:       getEnv("ODDS_LADDER", ""),
		RakeFeeBps:       rakeBps,
		DividendAccount:  dividend,
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

func getUint64(key string, defaultVal uint64) (uint64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid unsigned integer %q", v)
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
// Falls back to defaultVal if the variable is unset or empty.
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
