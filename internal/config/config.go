package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App     AppConfig
	DB      DBConfig
	Redis   RedisConfig
	Auth    AuthConfig
	Payment PaymentConfig
	Bank    BankConfig
	Feed    FeedConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// PaymentConfig governs deposit intent creation and settlement.
type PaymentConfig struct {
	// IntentTTL is how long a deposit intent stays matchable.
	IntentTTL time.Duration
	// MaxAmountMinor rejects absurdly large deposits (smallest currency unit).
	MaxAmountMinor int64
	// MatchingCodeLength is the fixed length of the transfer reference code.
	MatchingCodeLength int
	// OpenIntentLimit caps concurrently open intents per user (0 = unlimited).
	OpenIntentLimit int
	// SweepInterval is how often the expiry sweep runs.
	SweepInterval time.Duration
}

// BankConfig describes the platform's collection account rendered into
// QR payloads. These are public values, safe to log.
type BankConfig struct {
	Name          string
	AccountNumber string
	HolderName    string
}

// FeedConfig governs bank feed consumption.
type FeedConfig struct {
	// APIURL is the bank transaction history endpoint. Empty disables the
	// poll consumer (webhook pushes still work).
	APIURL   string
	APIToken string

	PollInterval time.Duration
	// Backoff bounds for transient fetch failures.
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate().
	c.Auth.AccessTokenTTL = optDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = optDuration("JWT_REFRESH_TTL")

	c.Payment.IntentTTL = optDuration("PAYMENT_INTENT_TTL")
	c.Payment.MaxAmountMinor = optInt64("PAYMENT_MAX_AMOUNT_MINOR")
	c.Payment.MatchingCodeLength = optInt("PAYMENT_CODE_LENGTH")
	c.Payment.OpenIntentLimit = optInt("PAYMENT_OPEN_INTENT_LIMIT")
	c.Payment.SweepInterval = optDuration("PAYMENT_SWEEP_INTERVAL")

	c.Bank.Name = strings.TrimSpace(os.Getenv("BANK_NAME"))
	c.Bank.AccountNumber = strings.TrimSpace(os.Getenv("BANK_ACCOUNT_NUMBER"))
	c.Bank.HolderName = strings.TrimSpace(os.Getenv("BANK_HOLDER_NAME"))

	c.Feed.APIURL = strings.TrimSpace(os.Getenv("FEED_API_URL"))
	c.Feed.APIToken = os.Getenv("FEED_API_TOKEN")
	c.Feed.PollInterval = optDuration("FEED_POLL_INTERVAL")
	c.Feed.BackoffBase = optDuration("FEED_BACKOFF_BASE")
	c.Feed.BackoffMax = optDuration("FEED_BACKOFF_MAX")

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Payment.IntentTTL <= 0 {
		// Matches the window a payer realistically needs to complete a
		// manual bank transfer.
		c.Payment.IntentTTL = 15 * time.Minute
	}
	if c.Payment.MaxAmountMinor <= 0 {
		c.Payment.MaxAmountMinor = 500_000_000
	}
	if c.Payment.MatchingCodeLength <= 0 {
		c.Payment.MatchingCodeLength = 8
	}
	if c.Payment.MatchingCodeLength < 6 {
		errs = append(errs, fmt.Errorf("PAYMENT_CODE_LENGTH must be at least 6, got %d", c.Payment.MatchingCodeLength))
	}
	if c.Payment.SweepInterval <= 0 {
		c.Payment.SweepInterval = time.Minute
	}

	if c.Bank.Name == "" {
		errs = append(errs, errors.New("BANK_NAME is required"))
	}
	if c.Bank.AccountNumber == "" {
		errs = append(errs, errors.New("BANK_ACCOUNT_NUMBER is required"))
	}
	if c.Bank.HolderName == "" {
		errs = append(errs, errors.New("BANK_HOLDER_NAME is required"))
	}

	if c.Feed.PollInterval <= 0 {
		c.Feed.PollInterval = 10 * time.Second
	}
	if c.Feed.BackoffBase <= 0 {
		c.Feed.BackoffBase = time.Second
	}
	if c.Feed.BackoffMax <= 0 {
		c.Feed.BackoffMax = 2 * time.Minute
	}
	if c.Feed.BackoffMax < c.Feed.BackoffBase {
		errs = append(errs, errors.New("FEED_BACKOFF_MAX must be >= FEED_BACKOFF_BASE"))
	}
	if c.Feed.APIURL == "" && c.IsProduction() {
		errs = append(errs, errors.New("FEED_API_URL is required in production"))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func optInt(key string) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func optInt64(key string) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func optDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
