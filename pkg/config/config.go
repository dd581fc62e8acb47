package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is passed to envconfig; every variable below already carries the
// full name so the prefix stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App         AppConfig
	DB          DBConfig
	Redis       RedisConfig
	Curlec      CurlecConfig
	Commission  CommissionConfig
	GCP         GCPConfig
	PubSub      PubSubConfig
	Outbox      OutboxConfig
	Eventing    EventingConfig
	FeatureFlag FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"AGENTPAY_APP_ENV" required:"true"`
	Port         string `envconfig:"AGENTPAY_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"AGENTPAY_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"AGENTPAY_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"AGENTPAY_DB_DSN"`
	Driver string `envconfig:"AGENTPAY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"AGENTPAY_DB_HOST"`
	LegacyPort     int    `envconfig:"AGENTPAY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"AGENTPAY_DB_USER"`
	LegacyPassword string `envconfig:"AGENTPAY_DB_PASSWORD"`
	LegacyName     string `envconfig:"AGENTPAY_DB_NAME"`
	LegacySSLMode  string `envconfig:"AGENTPAY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"AGENTPAY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"AGENTPAY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"AGENTPAY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"AGENTPAY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"AGENTPAY_REDIS_URL" required:"true"`
	Address      string        `envconfig:"AGENTPAY_REDIS_ADDR"`
	Password     string        `envconfig:"AGENTPAY_REDIS_PASSWORD"`
	DB           int           `envconfig:"AGENTPAY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"AGENTPAY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"AGENTPAY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"AGENTPAY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"AGENTPAY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"AGENTPAY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// CurlecConfig carries the payment gateway credentials. When KeyID or
// KeySecret is empty the client runs in mock mode and never calls out.
type CurlecConfig struct {
	BaseURL        string        `envconfig:"AGENTPAY_CURLEC_BASE_URL" default:"https://api.curlec.com"`
	KeyID          string        `envconfig:"AGENTPAY_CURLEC_KEY_ID"`
	KeySecret      string        `envconfig:"AGENTPAY_CURLEC_KEY_SECRET"`
	Sandbox        bool          `envconfig:"AGENTPAY_CURLEC_SANDBOX" default:"true"`
	RequestTimeout time.Duration `envconfig:"AGENTPAY_CURLEC_REQUEST_TIMEOUT" default:"15s"`
	WebhookTTL     time.Duration `envconfig:"AGENTPAY_CURLEC_WEBHOOK_DEDUPE_TTL" default:"24h"`
}

// Configured reports whether a real credential pair is present.
func (c CurlecConfig) Configured() bool {
	return strings.TrimSpace(c.KeyID) != "" && strings.TrimSpace(c.KeySecret) != ""
}

// CommissionConfig describes the referral payout ladder as basis points per
// upline level, starting at the direct referrer.
type CommissionConfig struct {
	LevelRatesBps []int `envconfig:"AGENTPAY_COMMISSION_LEVEL_RATES_BPS" default:"1000,500,250"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"AGENTPAY_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	PaymentEventsTopic        string `envconfig:"AGENTPAY_PUBSUB_PAYMENT_EVENTS_TOPIC" default:"agentpay-payment-events"`
	PaymentEventsSubscription string `envconfig:"AGENTPAY_PUBSUB_PAYMENT_EVENTS_SUBSCRIPTION" default:"agentpay-payment-events-notifications"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"AGENTPAY_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"AGENTPAY_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"AGENTPAY_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type EventingConfig struct {
	ConsumerIdempotencyTTL time.Duration `envconfig:"AGENTPAY_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"AGENTPAY_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		"AGENTPAY_DB_HOST": db.LegacyHost,
		"AGENTPAY_DB_USER": db.LegacyUser,
		"AGENTPAY_DB_NAME": db.LegacyName,
	}
	for _, env := range []string{"AGENTPAY_DB_HOST", "AGENTPAY_DB_USER", "AGENTPAY_DB_NAME"} {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either AGENTPAY_DB_DSN or %s are required", strings.Join(missing, ", "))
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
