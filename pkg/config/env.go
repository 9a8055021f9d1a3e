package config

const (
	EnvPrefix = "CBWIS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv     = "CBWIS_APP_ENV"
	EnvPort       = "CBWIS_APP_PORT"
	EnvDBDSN      = "CBWIS_DB_DSN"
	EnvDBHost     = "CBWIS_DB_HOST"
	EnvDBUser     = "CBWIS_DB_USER"
	EnvDBName     = "CBWIS_DB_NAME"
	EnvDBPassword = "CBWIS_DB_PASSWORD"
	EnvRedisURL   = "CBWIS_REDIS_URL"
	EnvJWTSecret  = "CBWIS_JWT_SECRET"
	EnvJWTIssuer  = "CBWIS_JWT_ISSUER"
	EnvUseSQLite  = "CBWIS_USE_SQLITE"
	EnvLowStock   = "CBWIS_REPORTS_LOW_STOCK_THRESHOLD"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
