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
	FeatureFlags FeatureFlagsConfig
	Reports      ReportsConfig
	Reconcile    ReconcileConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if !cfg.FeatureFlags.UseSQLite {
		if err := cfg.DB.ensureDSN(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"CBWIS_APP_ENV" required:"true"`
	Port         string `envconfig:"CBWIS_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"CBWIS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CBWIS_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"CBWIS_LOG_FORMAT" default:"json"`
	FrontendURL  string `envconfig:"CBWIS_FRONTEND_URL" default:"http://localhost:5173"`
	// MetricsAddr exposes /metrics from background workers when set.
	MetricsAddr string `envconfig:"CBWIS_METRICS_ADDR"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"CBWIS_DB_DSN"`

	LegacyHost     string `envconfig:"CBWIS_DB_HOST"`
	LegacyPort     int    `envconfig:"CBWIS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CBWIS_DB_USER"`
	LegacyPassword string `envconfig:"CBWIS_DB_PASSWORD"`
	LegacyName     string `envconfig:"CBWIS_DB_NAME"`
	LegacySSLMode  string `envconfig:"CBWIS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CBWIS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CBWIS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CBWIS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CBWIS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CBWIS_REDIS_URL"`
	Address      string        `envconfig:"CBWIS_REDIS_ADDR" default:"localhost:6379"`
	Password     string        `envconfig:"CBWIS_REDIS_PASSWORD"`
	DB           int           `envconfig:"CBWIS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CBWIS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CBWIS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CBWIS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CBWIS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CBWIS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig holds verification settings for tokens minted by the identity provider.
type JWTConfig struct {
	Secret string `envconfig:"CBWIS_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"CBWIS_JWT_ISSUER" required:"true"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool   `envconfig:"CBWIS_USE_SQLITE" default:"false"`
	SQLitePath  string `envconfig:"CBWIS_SQLITE_PATH" default:"cbwis.db"`
	AutoMigrate bool   `envconfig:"CBWIS_AUTO_MIGRATE" default:"false"`
}

type ReportsConfig struct {
	LowStockThreshold int           `envconfig:"CBWIS_REPORTS_LOW_STOCK_THRESHOLD" default:"10"`
	CacheTTL          time.Duration `envconfig:"CBWIS_REPORTS_CACHE_TTL" default:"30s"`
}

type ReconcileConfig struct {
	Interval   time.Duration `envconfig:"CBWIS_RECONCILE_INTERVAL" default:"1h"`
	AutoRepair bool          `envconfig:"CBWIS_RECONCILE_AUTO_REPAIR" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"CBWIS_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	LedgerTopic string `envconfig:"CBWIS_PUBSUB_LEDGER_TOPIC" default:"cbwis-ledger-events"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"CBWIS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"CBWIS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"CBWIS_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"CBWIS_OUTBOX_RETENTION" default:"168h"`
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
