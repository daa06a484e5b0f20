package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Terminal     TerminalConfig
	DB           DBConfig
	Redis        RedisConfig
	Gateway      GatewayConfig
	Sync         SyncConfig
	Connectivity ConnectivityConfig
	Admin        AdminConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks rules envconfig tags cannot express.
func (c *Config) Validate() error {
	switch strings.ToLower(c.DB.Driver) {
	case DBDriverSQLite, DBDriverPostgres:
	default:
		return fmt.Errorf("%s must be %q or %q, got %q", EnvDBDriver, DBDriverSQLite, DBDriverPostgres, c.DB.Driver)
	}
	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("%s must be positive", EnvSyncBatchSize)
	}
	if c.Sync.Multiplier < 1 {
		return fmt.Errorf("%s must be >= 1", EnvSyncMultiplier)
	}
	if c.Sync.BaseDelay <= 0 || c.Sync.MaxDelay < c.Sync.BaseDelay {
		return fmt.Errorf("%s must be positive and not exceed %s", EnvSyncBaseDelay, EnvSyncMaxDelay)
	}
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("%s must be positive", EnvSyncInterval)
	}
	switch strings.ToLower(c.Connectivity.Mode) {
	case ConnectivityModeProbe, ConnectivityModeManual:
	default:
		return fmt.Errorf("%s must be %q or %q, got %q", EnvConnectivityMode, ConnectivityModeProbe, ConnectivityModeManual, c.Connectivity.Mode)
	}
	return nil
}

type AppConfig struct {
	Env          string `envconfig:"POS_APP_ENV" default:"dev"`
	LogLevel     string `envconfig:"POS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"POS_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"POS_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// TerminalConfig identifies the register and the tenant/branch scope it sells under.
type TerminalConfig struct {
	StoreID    string `envconfig:"POS_STORE_ID" required:"true"`
	BranchID   string `envconfig:"POS_BRANCH_ID" required:"true"`
	TerminalID string `envconfig:"POS_TERMINAL_ID" required:"true"`
}

type DBConfig struct {
	Driver string `envconfig:"POS_DB_DRIVER" default:"sqlite"`
	DSN    string `envconfig:"POS_DB_DSN" default:"file:pos.db?_busy_timeout=5000&_foreign_keys=on"`

	MaxOpenConns    int           `envconfig:"POS_DB_MAX_OPEN_CONNS" default:"4"`
	MaxIdleConns    int           `envconfig:"POS_DB_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime time.Duration `envconfig:"POS_DB_CONN_MAX_LIFETIME" default:"30m"`
	ConnMaxIdleTime time.Duration `envconfig:"POS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d DBConfig) IsSQLite() bool {
	return strings.EqualFold(d.Driver, DBDriverSQLite)
}

// RedisConfig is optional; an empty URL keeps the sync guard in-process.
type RedisConfig struct {
	URL          string        `envconfig:"POS_REDIS_URL"`
	PoolSize     int           `envconfig:"POS_REDIS_POOL_SIZE" default:"4"`
	DialTimeout  time.Duration `envconfig:"POS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"POS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"POS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != ""
}

type GatewayConfig struct {
	BaseURL string        `envconfig:"POS_GATEWAY_BASE_URL" required:"true"`
	Token   string        `envconfig:"POS_GATEWAY_TOKEN"`
	Timeout time.Duration `envconfig:"POS_GATEWAY_TIMEOUT" default:"30s"`
}

type SyncConfig struct {
	BatchSize         int           `envconfig:"POS_SYNC_BATCH_SIZE" default:"10"`
	BaseDelay         time.Duration `envconfig:"POS_SYNC_BASE_DELAY" default:"5s"`
	Multiplier        float64       `envconfig:"POS_SYNC_MULTIPLIER" default:"5"`
	MaxDelay          time.Duration `envconfig:"POS_SYNC_MAX_DELAY" default:"30m"`
	AuthCooldown      time.Duration `envconfig:"POS_SYNC_AUTH_COOLDOWN" default:"10m"`
	Interval          time.Duration `envconfig:"POS_SYNC_INTERVAL" default:"30s"`
	MaxRejectAttempts int           `envconfig:"POS_SYNC_MAX_REJECT_ATTEMPTS" default:"5"`
	LockTTL           time.Duration `envconfig:"POS_SYNC_LOCK_TTL" default:"5m"`
}

type ConnectivityConfig struct {
	Mode          string        `envconfig:"POS_CONNECTIVITY_MODE" default:"probe"`
	ProbeInterval time.Duration `envconfig:"POS_CONNECTIVITY_PROBE_INTERVAL" default:"15s"`
}

func (c ConnectivityConfig) IsManual() bool {
	return strings.EqualFold(c.Mode, ConnectivityModeManual)
}

type AdminConfig struct {
	Addr           string        `envconfig:"POS_ADMIN_ADDR" default:"127.0.0.1:8090"`
	AllowedOrigins []string      `envconfig:"POS_ADMIN_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	ReadTimeout    time.Duration `envconfig:"POS_ADMIN_READ_TIMEOUT" default:"15s"`
	WriteTimeout   time.Duration `envconfig:"POS_ADMIN_WRITE_TIMEOUT" default:"2m"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"POS_AUTO_MIGRATE" default:"true"`
}
