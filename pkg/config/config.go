package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "FUNNEL_DB_DSN"
	EnvDBHost = "FUNNEL_DB_HOST"
	EnvDBUser = "FUNNEL_DB_USER"
	EnvDBName = "FUNNEL_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App        AppConfig
	DB         DBConfig
	Redis      RedisConfig
	AdminJWT   AdminJWTConfig
	RateLimit  RateLimitConfig
	Conversion ConversionConfig
	GCP        GCPConfig
	PubSub     PubSubConfig
	BigQuery   BigQueryConfig
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
	Env          string `envconfig:"FUNNEL_APP_ENV" required:"true"`
	Port         string `envconfig:"FUNNEL_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"FUNNEL_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"FUNNEL_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"FUNNEL_DB_DSN"`
	Driver string `envconfig:"FUNNEL_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"FUNNEL_DB_HOST"`
	LegacyPort     int    `envconfig:"FUNNEL_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"FUNNEL_DB_USER"`
	LegacyPassword string `envconfig:"FUNNEL_DB_PASSWORD"`
	LegacyName     string `envconfig:"FUNNEL_DB_NAME"`
	LegacySSLMode  string `envconfig:"FUNNEL_DB_SSLMODE" default:"disable"`

	MigrateOnStart bool `envconfig:"FUNNEL_DB_MIGRATE_ON_START" default:"true"`

	MaxOpenConns    int           `envconfig:"FUNNEL_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"FUNNEL_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"FUNNEL_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"FUNNEL_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"FUNNEL_REDIS_URL" required:"true"`
	Address      string        `envconfig:"FUNNEL_REDIS_ADDR"`
	Password     string        `envconfig:"FUNNEL_REDIS_PASSWORD"`
	DB           int           `envconfig:"FUNNEL_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"FUNNEL_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"FUNNEL_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"FUNNEL_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"FUNNEL_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"FUNNEL_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// AdminJWTConfig verifies bearer tokens issued by the platform auth service.
type AdminJWTConfig struct {
	Secret string `envconfig:"FUNNEL_ADMIN_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"FUNNEL_ADMIN_JWT_ISSUER" required:"true"`
}

type RateLimitConfig struct {
	FunnelWindow  time.Duration `envconfig:"FUNNEL_RATE_LIMIT_WINDOW" default:"1m"`
	FunnelIPLimit int           `envconfig:"FUNNEL_RATE_LIMIT_IP_LIMIT" default:"120"`
}

// ConversionConfig tunes the outbound conversion webhook call.
type ConversionConfig struct {
	Timeout   time.Duration `envconfig:"FUNNEL_CONVERSION_TIMEOUT" default:"10s"`
	UserAgent string        `envconfig:"FUNNEL_CONVERSION_USER_AGENT" default:"checkout-backend/1.0"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"FUNNEL_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"FUNNEL_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"FUNNEL_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	FunnelTopic        string `envconfig:"FUNNEL_PUBSUB_FUNNEL_TOPIC" default:"funnel-events"`
	FunnelSubscription string `envconfig:"FUNNEL_PUBSUB_FUNNEL_SUBSCRIPTION"`
}

type BigQueryConfig struct {
	Dataset          string `envconfig:"FUNNEL_BIGQUERY_DATASET" default:"checkout"`
	FunnelEventTable string `envconfig:"FUNNEL_BIGQUERY_FUNNEL_TABLE" default:"funnel_events"`
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
