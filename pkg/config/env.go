package config

const EnvPrefix = "POS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverSQLite   = "sqlite"
	DBDriverPostgres = "postgres"

	ConnectivityModeProbe  = "probe"
	ConnectivityModeManual = "manual"
)

const (
	EnvAppEnv       = "POS_APP_ENV"
	EnvLogLevel     = "POS_LOG_LEVEL"
	EnvLogWarnStack = "POS_LOG_WARN_STACK"
	EnvLogFormat    = "POS_LOG_FORMAT"

	EnvStoreID    = "POS_STORE_ID"
	EnvBranchID   = "POS_BRANCH_ID"
	EnvTerminalID = "POS_TERMINAL_ID"

	EnvDBDriver = "POS_DB_DRIVER"
	EnvDBDSN    = "POS_DB_DSN"

	EnvRedisURL = "POS_REDIS_URL"

	EnvGatewayBaseURL = "POS_GATEWAY_BASE_URL"
	EnvGatewayToken   = "POS_GATEWAY_TOKEN"
	EnvGatewayTimeout = "POS_GATEWAY_TIMEOUT"

	EnvSyncBatchSize         = "POS_SYNC_BATCH_SIZE"
	EnvSyncBaseDelay         = "POS_SYNC_BASE_DELAY"
	EnvSyncMultiplier        = "POS_SYNC_MULTIPLIER"
	EnvSyncMaxDelay          = "POS_SYNC_MAX_DELAY"
	EnvSyncAuthCooldown      = "POS_SYNC_AUTH_COOLDOWN"
	EnvSyncInterval          = "POS_SYNC_INTERVAL"
	EnvSyncMaxRejectAttempts = "POS_SYNC_MAX_REJECT_ATTEMPTS"

	EnvConnectivityMode = "POS_CONNECTIVITY_MODE"

	EnvAdminAddr   = "POS_ADMIN_ADDR"
	EnvAutoMigrate = "POS_AUTO_MIGRATE"
)
