package config

const EnvPrefix = "GIFTVOUCHERS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	LookupGuardBackendMemory = "memory"
	LookupGuardBackendRedis  = "redis"
)

const (
	EnvAppEnv             = "GIFTVOUCHERS_APP_ENV"
	EnvPort               = "GIFTVOUCHERS_APP_PORT"
	EnvLogLevel           = "GIFTVOUCHERS_LOG_LEVEL"
	EnvDBDSN              = "GIFTVOUCHERS_DB_DSN"
	EnvDBHost             = "GIFTVOUCHERS_DB_HOST"
	EnvDBUser             = "GIFTVOUCHERS_DB_USER"
	EnvDBPassword         = "GIFTVOUCHERS_DB_PASSWORD"
	EnvDBName             = "GIFTVOUCHERS_DB_NAME"
	EnvRedisURL           = "GIFTVOUCHERS_REDIS_URL"
	EnvJWTSecret          = "GIFTVOUCHERS_JWT_SECRET"
	EnvJWTIssuer          = "GIFTVOUCHERS_JWT_ISSUER"
	EnvJWTExpMins         = "GIFTVOUCHERS_JWT_EXPIRATION_MINUTES"
	EnvLookupGuardWindow  = "GIFTVOUCHERS_LOOKUP_GUARD_WINDOW"
	EnvLookupGuardLimit   = "GIFTVOUCHERS_LOOKUP_GUARD_DISTINCT_LIMIT"
	EnvLookupGuardBackend = "GIFTVOUCHERS_LOOKUP_GUARD_BACKEND"
	EnvVoucherDigits      = "GIFTVOUCHERS_VOUCHER_NUMBER_DIGITS"
	EnvWebhookSecret      = "GIFTVOUCHERS_WEBHOOK_SECRET"
	EnvStaffPINHash       = "GIFTVOUCHERS_STAFF_PIN_HASH"
	EnvSendgridAPIKey     = "GIFTVOUCHERS_SENDGRID_API_KEY"
	EnvGCPProjectID       = "GIFTVOUCHERS_GCP_PROJECT_ID"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
