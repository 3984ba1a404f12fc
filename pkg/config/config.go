package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	RateLimit    RateLimitConfig
	FeatureFlags FeatureFlagsConfig
	Stripe       StripeConfig
	Plans        PlansConfig
	GCP          GCPConfig
	BigQuery     BigQueryConfig
	PubSub       PubSubConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.App.validateBaseURL(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"LUXE_APP_ENV" required:"true"`
	Port         string `envconfig:"LUXE_APP_PORT" required:"true"`
	BaseURL      string `envconfig:"LUXE_APP_BASE_URL" required:"true"`
	LogLevel     string `envconfig:"LUXE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"LUXE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

func (a AppConfig) validateBaseURL() error {
	parsed, err := url.Parse(a.BaseURL)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return fmt.Errorf("%s must be an absolute URL", EnvAppBaseURL)
	}
	return nil
}

type DBConfig struct {
	DSN    string `envconfig:"LUXE_DB_DSN"`
	Driver string `envconfig:"LUXE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"LUXE_DB_HOST"`
	LegacyPort     int    `envconfig:"LUXE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"LUXE_DB_USER"`
	LegacyPassword string `envconfig:"LUXE_DB_PASSWORD"`
	LegacyName     string `envconfig:"LUXE_DB_NAME"`
	LegacySSLMode  string `envconfig:"LUXE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"LUXE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"LUXE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"LUXE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"LUXE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"LUXE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"LUXE_REDIS_ADDR"`
	Password     string        `envconfig:"LUXE_REDIS_PASSWORD"`
	DB           int           `envconfig:"LUXE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"LUXE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"LUXE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"LUXE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"LUXE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"LUXE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig holds the shared signing secret the external auth framework uses
// to sign session tokens. This service only verifies, it never mints.
type JWTConfig struct {
	Secret   string `envconfig:"LUXE_AUTH_SECRET" required:"true"`
	Issuer   string `envconfig:"LUXE_AUTH_ISSUER" required:"true"`
	Audience string `envconfig:"LUXE_AUTH_AUDIENCE"`
}

type RateLimitConfig struct {
	CheckoutWindow    time.Duration `envconfig:"LUXE_RATE_LIMIT_CHECKOUT_WINDOW" default:"1m"`
	CheckoutIPLimit   int           `envconfig:"LUXE_RATE_LIMIT_CHECKOUT_IP_LIMIT" default:"20"`
	CheckoutUserLimit int           `envconfig:"LUXE_RATE_LIMIT_CHECKOUT_USER_LIMIT" default:"5"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"LUXE_AUTO_MIGRATE" default:"false"`
}

type StripeConfig struct {
	APIKey         string        `envconfig:"LUXE_STRIPE_API_KEY" required:"true"`
	WebhookSecret  string        `envconfig:"LUXE_STRIPE_WEBHOOK_SECRET"`
	PublishableKey string        `envconfig:"LUXE_STRIPE_PUBLISHABLE_KEY"`
	Env            string        `envconfig:"LUXE_STRIPE_ENV" default:"test"`
	IdempotencyTTL time.Duration `envconfig:"LUXE_STRIPE_EVENT_IDEMPOTENCY_TTL" default:"72h"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

// PlansConfig carries the Stripe price IDs the catalog is built from.
// These are deployment-time configuration; a missing price is a boot failure.
type PlansConfig struct {
	BasicPriceID      string `envconfig:"LUXE_PLAN_BASIC_PRICE_ID" required:"true"`
	ProPriceID        string `envconfig:"LUXE_PLAN_PRO_PRICE_ID" required:"true"`
	EnterprisePriceID string `envconfig:"LUXE_PLAN_ENTERPRISE_PRICE_ID" required:"true"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"LUXE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"LUXE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"LUXE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type BigQueryConfig struct {
	Dataset       string `envconfig:"LUXE_BIGQUERY_DATASET" default:"luxeaccount"`
	PaymentsTable string `envconfig:"LUXE_BIGQUERY_PAYMENTS_TABLE" default:"payments"`
}

type PubSubConfig struct {
	BillingTopic string `envconfig:"LUXE_PUBSUB_BILLING_TOPIC"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
