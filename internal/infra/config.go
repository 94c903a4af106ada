package infra

import (
	"fmt"
	"time"

	"github.com/attaboy/adrewards/internal/domain"
	"github.com/attaboy/adrewards/internal/policy"
	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST" envDefault:"localhost"`
	PGPort      int    `env:"PGPORT" envDefault:"5435"`
	PGUser      string `env:"PGUSER" envDefault:"adrewards"`
	PGPassword  string `env:"PGPASSWORD" envDefault:"adrewards"`
	PGDatabase  string `env:"PGDATABASE" envDefault:"adrewards"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns  int32  `env:"DB_MIN_CONNS" envDefault:"2"`

	// Redis (empty keeps rate counters in process memory)
	RedisURL string `env:"REDIS_URL"`

	// JWT
	JWTSecret       string        `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	JWTPlayerExpiry time.Duration `env:"JWT_PLAYER_EXPIRY" envDefault:"24h"`
	JWTAdminExpiry  time.Duration `env:"JWT_ADMIN_EXPIRY" envDefault:"8h"`

	// Server
	APIPort int `env:"API_PORT" envDefault:"3100"`

	// Kafka
	KafkaBrokers string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled bool   `env:"KAFKA_ENABLED" envDefault:"false"`

	// Outbox relay
	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL" envDefault:"2s"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`

	// CORS
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	// Dev
	AllowInsecureDefaults bool `env:"ALLOW_INSECURE_DEFAULTS" envDefault:"false"`

	// Ad engine: fraud thresholds
	AdMinWatchTime       time.Duration `env:"AD_MIN_WATCH_TIME" envDefault:"15s"`
	AdMaxSessionsPerHour int           `env:"AD_MAX_SESSIONS_PER_HOUR" envDefault:"10"`
	AdMaxRewardsPerDay   int           `env:"AD_MAX_REWARDS_PER_DAY" envDefault:"50"`

	// Ad engine: per-placement overrides, "placement:value,..."
	AdDailyCap        map[string]int   `env:"AD_DAILY_CAP"`
	AdCooldownMinutes map[string]int   `env:"AD_COOLDOWN_MINUTES"`
	AdRewardDefaults  map[string]int64 `env:"AD_REWARD_DEFAULTS"`

	AdWheelSpinCost       int64           `env:"AD_WHEEL_SPIN_COST" envDefault:"10"`
	AdTradingBonusPercent decimal.Decimal `env:"AD_TRADING_BONUS_PERCENT" envDefault:"5"`

	// Ad engine: providers
	AdProviderTimeout  time.Duration `env:"AD_PROVIDER_TIMEOUT" envDefault:"30s"`
	AdProviderOrder    []string      `env:"AD_PROVIDER_ORDER" envDefault:"primary_sdk,secondary_sdk,simulation" envSeparator:","`
	AdSimulationMin    time.Duration `env:"AD_SIMULATION_MIN" envDefault:"15s"`
	AdSimulationMax    time.Duration `env:"AD_SIMULATION_MAX" envDefault:"30s"`
	AdTestMode         bool          `env:"AD_TEST_MODE" envDefault:"false"`
	AdPrimarySDKURL    string        `env:"AD_PRIMARY_SDK_URL"`
	AdPrimarySDKKey    string        `env:"AD_PRIMARY_SDK_KEY"`
	AdSecondarySDKURL  string        `env:"AD_SECONDARY_SDK_URL"`
	AdSecondarySDKKey  string        `env:"AD_SECONDARY_SDK_KEY"`
	AdBreakerThreshold int           `env:"AD_BREAKER_THRESHOLD" envDefault:"3"`
	AdBreakerReset     time.Duration `env:"AD_BREAKER_RESET" envDefault:"1m"`

	// Ad engine: session housekeeping
	AdSessionTTL     time.Duration `env:"AD_SESSION_TTL" envDefault:"5m"`
	AdReaperInterval time.Duration `env:"AD_REAPER_INTERVAL" envDefault:"30s"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks the ad engine settings and rejects insecure configuration
// that must not run in production.
// Set ALLOW_INSECURE_DEFAULTS=true to bypass the secret checks (local dev only).
func (c *Config) Validate() error {
	if err := c.validateAds(); err != nil {
		return err
	}
	if c.AllowInsecureDefaults {
		return nil
	}
	if c.JWTSecret == "change-me-in-production" {
		return fmt.Errorf("JWT_SECRET is set to the insecure default; set a strong secret or set ALLOW_INSECURE_DEFAULTS=true for local dev")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET is too short (%d chars); minimum 32 characters required", len(c.JWTSecret))
	}
	return nil
}

func (c *Config) validateAds() error {
	if c.AdMinWatchTime < 0 || c.AdMaxSessionsPerHour < 0 || c.AdMaxRewardsPerDay < 0 {
		return fmt.Errorf("fraud thresholds must not be negative")
	}
	for p, v := range c.AdDailyCap {
		if err := checkPlacementValue("AD_DAILY_CAP", p, int64(v)); err != nil {
			return err
		}
	}
	for p, v := range c.AdCooldownMinutes {
		if err := checkPlacementValue("AD_COOLDOWN_MINUTES", p, int64(v)); err != nil {
			return err
		}
	}
	for p, v := range c.AdRewardDefaults {
		if err := checkPlacementValue("AD_REWARD_DEFAULTS", p, v); err != nil {
			return err
		}
	}
	if c.AdTradingBonusPercent.IsNegative() {
		return fmt.Errorf("AD_TRADING_BONUS_PERCENT must not be negative")
	}

	if len(c.AdProviderOrder) == 0 {
		return fmt.Errorf("AD_PROVIDER_ORDER is empty")
	}
	seen := make(map[domain.ProviderID]bool)
	for i, raw := range c.AdProviderOrder {
		id := domain.ProviderID(raw)
		switch id {
		case domain.ProviderPrimarySDK, domain.ProviderSecondarySDK:
		case domain.ProviderSimulation:
			if i != len(c.AdProviderOrder)-1 {
				return fmt.Errorf("AD_PROVIDER_ORDER: simulation must be last")
			}
		default:
			return fmt.Errorf("AD_PROVIDER_ORDER: unknown provider %q", raw)
		}
		if seen[id] {
			return fmt.Errorf("AD_PROVIDER_ORDER: %s listed twice", raw)
		}
		seen[id] = true
	}
	if !seen[domain.ProviderSimulation] {
		return fmt.Errorf("AD_PROVIDER_ORDER: simulation must be last")
	}
	if c.AdSimulationMin <= 0 || c.AdSimulationMin > c.AdSimulationMax {
		return fmt.Errorf("AD_SIMULATION_MIN/MAX must satisfy 0 < min <= max")
	}
	if c.AdSessionTTL <= 0 || c.AdReaperInterval <= 0 {
		return fmt.Errorf("AD_SESSION_TTL and AD_REAPER_INTERVAL must be positive")
	}
	if budget := c.WatchBudget(); c.AdSessionTTL <= budget {
		return fmt.Errorf("AD_SESSION_TTL (%s) must exceed the watch budget (%s)", c.AdSessionTTL, budget)
	}
	return nil
}

// WatchBudget is the longest a single watch can run: every real SDK times
// out in turn and the simulation plays its longest ad.
func (c *Config) WatchBudget() time.Duration {
	var sdks time.Duration
	for _, raw := range c.AdProviderOrder {
		if domain.ProviderID(raw) != domain.ProviderSimulation {
			sdks++
		}
	}
	return c.AdProviderTimeout*sdks + c.AdSimulationMax
}

func checkPlacementValue(name, placement string, v int64) error {
	if !domain.Placement(placement).Valid() {
		return fmt.Errorf("%s: unknown placement %q", name, placement)
	}
	if v < 0 {
		return fmt.Errorf("%s: %s must not be negative", name, placement)
	}
	return nil
}

// EligibilityConfig returns the per-placement rules with env overrides applied.
func (c *Config) EligibilityConfig() policy.EligibilityConfig {
	cfg := policy.DefaultEligibilityConfig()
	for p, v := range c.AdDailyCap {
		rule := cfg.Rules[domain.Placement(p)]
		rule.DailyCap = v
		cfg.Rules[domain.Placement(p)] = rule
	}
	for p, v := range c.AdCooldownMinutes {
		rule := cfg.Rules[domain.Placement(p)]
		rule.CooldownMinutes = v
		cfg.Rules[domain.Placement(p)] = rule
	}
	return cfg
}

// FraudConfig returns the fraud thresholds.
func (c *Config) FraudConfig() policy.FraudConfig {
	return policy.FraudConfig{
		MinWatchTime:       c.AdMinWatchTime,
		MaxSessionsPerHour: c.AdMaxSessionsPerHour,
		MaxRewardsPerDay:   c.AdMaxRewardsPerDay,
	}
}

// RewardConfig returns the payout defaults with env overrides applied.
func (c *Config) RewardConfig() policy.RewardConfig {
	cfg := policy.DefaultRewardConfig()
	for p, v := range c.AdRewardDefaults {
		cfg.Defaults[domain.Placement(p)] = v
	}
	cfg.WheelSpinCost = c.AdWheelSpinCost
	cfg.TradingBonusPercent = c.AdTradingBonusPercent
	return cfg
}

// ProviderOrder returns AD_PROVIDER_ORDER as provider IDs.
func (c *Config) ProviderOrder() []domain.ProviderID {
	ids := make([]domain.ProviderID, 0, len(c.AdProviderOrder))
	for _, raw := range c.AdProviderOrder {
		ids = append(ids, domain.ProviderID(raw))
	}
	return ids
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}
