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
	FeatureFlags FeatureFlagsConfig
	Payme        PaymeConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Payme.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env             string        `envconfig:"BIZNESPILOT_APP_ENV" required:"true"`
	Port            string        `envconfig:"BIZNESPILOT_APP_PORT" required:"true"`
	LogLevel        string        `envconfig:"BIZNESPILOT_LOG_LEVEL" default:"info"`
	LogWarnStack    bool          `envconfig:"BIZNESPILOT_LOG_WARN_STACK" default:"false"`
	ShutdownTimeout time.Duration `envconfig:"BIZNESPILOT_SHUTDOWN_TIMEOUT" default:"15s"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"BIZNESPILOT_DB_DSN"`
	Driver string `envconfig:"BIZNESPILOT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"BIZNESPILOT_DB_HOST"`
	LegacyPort     int    `envconfig:"BIZNESPILOT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"BIZNESPILOT_DB_USER"`
	LegacyPassword string `envconfig:"BIZNESPILOT_DB_PASSWORD"`
	LegacyName     string `envconfig:"BIZNESPILOT_DB_NAME"`
	LegacySSLMode  string `envconfig:"BIZNESPILOT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BIZNESPILOT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BIZNESPILOT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BIZNESPILOT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BIZNESPILOT_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	SlowQueryThreshold time.Duration `envconfig:"BIZNESPILOT_DB_SLOW_QUERY_THRESHOLD" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BIZNESPILOT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BIZNESPILOT_REDIS_ADDR"`
	Password     string        `envconfig:"BIZNESPILOT_REDIS_PASSWORD"`
	DB           int           `envconfig:"BIZNESPILOT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BIZNESPILOT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BIZNESPILOT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BIZNESPILOT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BIZNESPILOT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BIZNESPILOT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"BIZNESPILOT_AUTO_MIGRATE" default:"false"`
}

// PaymeConfig tunes the merchant API behaviour. Wire-level constants (error codes,
// states) are not configurable.
type PaymeConfig struct {
	CheckoutURL          string        `envconfig:"BIZNESPILOT_PAYME_CHECKOUT_URL" default:"https://checkout.paycom.uz"`
	TestCheckoutURL      string        `envconfig:"BIZNESPILOT_PAYME_TEST_CHECKOUT_URL" default:"https://test.paycom.uz"`
	DefaultLanguage      string        `envconfig:"BIZNESPILOT_PAYME_DEFAULT_LANGUAGE" default:"uz"`
	TransactionTimeout   time.Duration `envconfig:"BIZNESPILOT_PAYME_TRANSACTION_TIMEOUT" default:"12h"`
	StatementLimit       int           `envconfig:"BIZNESPILOT_PAYME_STATEMENT_LIMIT" default:"1000"`
	AllowCancelAfterPaid bool          `envconfig:"BIZNESPILOT_PAYME_ALLOW_CANCEL_AFTER_PERFORM" default:"true"`
	AuthFailureWindow    time.Duration `envconfig:"BIZNESPILOT_PAYME_AUTH_FAILURE_WINDOW" default:"1m"`
	AuthFailureLimit     int           `envconfig:"BIZNESPILOT_PAYME_AUTH_FAILURE_LIMIT" default:"20"`
	MaxRequestBodyBytes  int64         `envconfig:"BIZNESPILOT_PAYME_MAX_BODY_BYTES" default:"1048576"`
}

func (p PaymeConfig) validate() error {
	if p.StatementLimit < 0 {
		return fmt.Errorf("%s must be non-negative", EnvPaymeStatementLimit)
	}
	if p.TransactionTimeout < 0 {
		return fmt.Errorf("%s must be non-negative", EnvPaymeTransactionTimeout)
	}
	if p.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("%s must be positive", EnvPaymeMaxBodyBytes)
	}
	return nil
}

type GCPConfig struct {
	ProjectID              string `envconfig:"BIZNESPILOT_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"BIZNESPILOT_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"BIZNESPILOT_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	PaymentsTopic string `envconfig:"BIZNESPILOT_PUBSUB_PAYMENTS_TOPIC" default:"bp-payment-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"BIZNESPILOT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"BIZNESPILOT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"BIZNESPILOT_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

// CronConfig drives cmd/cron-worker. LockTTL should exceed the longest cycle.
type CronConfig struct {
	Interval            time.Duration `envconfig:"BIZNESPILOT_CRON_INTERVAL" default:"5m"`
	LockTTL             time.Duration `envconfig:"BIZNESPILOT_CRON_LOCK_TTL" default:"10m"`
	ExpiryBatchSize     int           `envconfig:"BIZNESPILOT_CRON_EXPIRY_BATCH_SIZE" default:"200"`
	OutboxRetentionDays int           `envconfig:"BIZNESPILOT_CRON_OUTBOX_RETENTION_DAYS" default:"30"`
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
