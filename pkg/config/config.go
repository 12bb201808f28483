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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	RateLimit    RateLimitConfig
	LookupGuard  LookupGuardConfig
	Purchases    PurchasesConfig
	Fulfillment  FulfillmentConfig
	Renderer     RendererConfig
	Sendgrid     SendgridConfig
	Webhook      WebhookConfig
	Staff        StaffConfig
	FeatureFlags FeatureFlagsConfig
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
	if err := cfg.LookupGuard.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"GIFTVOUCHERS_APP_ENV" required:"true"`
	Port         string `envconfig:"GIFTVOUCHERS_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"GIFTVOUCHERS_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"GIFTVOUCHERS_LOG_WARN_STACK" default:"false"`
	// PublicBaseURL prefixes voucher image links sent by email.
	PublicBaseURL string `envconfig:"GIFTVOUCHERS_PUBLIC_BASE_URL" default:"http://localhost:8080"`
	// CORSOrigins lists the storefront and admin panel origins.
	CORSOrigins []string `envconfig:"GIFTVOUCHERS_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"GIFTVOUCHERS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"GIFTVOUCHERS_DB_DSN"`
	Driver string `envconfig:"GIFTVOUCHERS_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"GIFTVOUCHERS_DB_HOST"`
	LegacyPort     int    `envconfig:"GIFTVOUCHERS_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"GIFTVOUCHERS_DB_USER"`
	LegacyPassword string `envconfig:"GIFTVOUCHERS_DB_PASSWORD"`
	LegacyName     string `envconfig:"GIFTVOUCHERS_DB_NAME"`
	LegacySSLMode  string `envconfig:"GIFTVOUCHERS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"GIFTVOUCHERS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"GIFTVOUCHERS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"GIFTVOUCHERS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"GIFTVOUCHERS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"GIFTVOUCHERS_REDIS_URL" required:"true"`
	Address      string        `envconfig:"GIFTVOUCHERS_REDIS_ADDR"`
	Password     string        `envconfig:"GIFTVOUCHERS_REDIS_PASSWORD"`
	DB           int           `envconfig:"GIFTVOUCHERS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"GIFTVOUCHERS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"GIFTVOUCHERS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"GIFTVOUCHERS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"GIFTVOUCHERS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"GIFTVOUCHERS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"GIFTVOUCHERS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"GIFTVOUCHERS_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"GIFTVOUCHERS_JWT_EXPIRATION_MINUTES" default:"1440"`
}

// TokenTTL returns the access token lifetime.
func (j JWTConfig) TokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"GIFTVOUCHERS_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"GIFTVOUCHERS_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"GIFTVOUCHERS_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"GIFTVOUCHERS_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"GIFTVOUCHERS_ARGON_KEY_LEN" default:"32"`
}

type RateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"GIFTVOUCHERS_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginIPLimit       int           `envconfig:"GIFTVOUCHERS_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	LoginEmailLimit    int           `envconfig:"GIFTVOUCHERS_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	StaffRedeemWindow  time.Duration `envconfig:"GIFTVOUCHERS_RATE_LIMIT_STAFF_REDEEM_WINDOW" default:"1m"`
	StaffRedeemIPLimit int           `envconfig:"GIFTVOUCHERS_RATE_LIMIT_STAFF_REDEEM_IP_LIMIT" default:"10"`
}

// LookupGuardConfig bounds how many distinct voucher numbers a single source
// may query inside the observation window.
type LookupGuardConfig struct {
	Window        time.Duration `envconfig:"GIFTVOUCHERS_LOOKUP_GUARD_WINDOW" default:"60s"`
	DistinctLimit int           `envconfig:"GIFTVOUCHERS_LOOKUP_GUARD_DISTINCT_LIMIT" default:"10"`
	BlockDuration time.Duration `envconfig:"GIFTVOUCHERS_LOOKUP_GUARD_BLOCK" default:"5m"`
	SweepInterval time.Duration `envconfig:"GIFTVOUCHERS_LOOKUP_GUARD_SWEEP_INTERVAL" default:"10m"`
	Backend       string        `envconfig:"GIFTVOUCHERS_LOOKUP_GUARD_BACKEND" default:"memory"`
}

func (l LookupGuardConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(l.Backend)) {
	case LookupGuardBackendMemory, LookupGuardBackendRedis:
	default:
		return fmt.Errorf("%s must be one of %s, %s", EnvLookupGuardBackend, LookupGuardBackendMemory, LookupGuardBackendRedis)
	}
	if l.DistinctLimit <= 0 {
		return fmt.Errorf("%s must be positive", EnvLookupGuardLimit)
	}
	return nil
}

// UsesRedis reports whether lookup records are shared through redis.
func (l LookupGuardConfig) UsesRedis() bool {
	return strings.EqualFold(strings.TrimSpace(l.Backend), LookupGuardBackendRedis)
}

type PurchasesConfig struct {
	VoucherNumberDigits int           `envconfig:"GIFTVOUCHERS_VOUCHER_NUMBER_DIGITS" default:"13"`
	MaxDrawAttempts     int           `envconfig:"GIFTVOUCHERS_VOUCHER_NUMBER_MAX_ATTEMPTS" default:"10"`
	DefaultPaymentKey   string        `envconfig:"GIFTVOUCHERS_DEFAULT_PAYMENT_KEY" default:"100"`
	StalePendingAge     time.Duration `envconfig:"GIFTVOUCHERS_STALE_PENDING_AGE" default:"24h"`
}

type FulfillmentConfig struct {
	VoucherLifetime time.Duration `envconfig:"GIFTVOUCHERS_VOUCHER_LIFETIME" default:"8760h"`
	RenderTimeout   time.Duration `envconfig:"GIFTVOUCHERS_RENDER_TIMEOUT" default:"20s"`
	NotifyTimeout   time.Duration `envconfig:"GIFTVOUCHERS_NOTIFY_TIMEOUT" default:"10s"`
	ImageDir        string        `envconfig:"GIFTVOUCHERS_IMAGE_DIR" default:"voucher-images"`
}

type RendererConfig struct {
	URL          string `envconfig:"GIFTVOUCHERS_HTML2PNG_URL" default:"https://html2png.botomat.co.il/html2png/coordinates"`
	ScreenWidth  int    `envconfig:"GIFTVOUCHERS_HTML2PNG_SCREEN_WIDTH" default:"1200"`
	ScreenHeight int    `envconfig:"GIFTVOUCHERS_HTML2PNG_SCREEN_HEIGHT" default:"800"`
	StartRightX  int    `envconfig:"GIFTVOUCHERS_HTML2PNG_START_RIGHT_X" default:"100"`
	StartRightY  int    `envconfig:"GIFTVOUCHERS_HTML2PNG_START_RIGHT_Y" default:"250"`
	EndLeftX     int    `envconfig:"GIFTVOUCHERS_HTML2PNG_END_LEFT_X" default:"1100"`
	EndLeftY     int    `envconfig:"GIFTVOUCHERS_HTML2PNG_END_LEFT_Y" default:"550"`
}

type SendgridConfig struct {
	APIKey      string `envconfig:"GIFTVOUCHERS_SENDGRID_API_KEY"`
	DefaultFrom string `envconfig:"GIFTVOUCHERS_SENDGRID_FROM_EMAIL"`
	FromName    string `envconfig:"GIFTVOUCHERS_SENDGRID_FROM_NAME" default:"שפת המדבר"`
	AdminEmail  string `envconfig:"GIFTVOUCHERS_ADMIN_ALERT_EMAIL"`
}

// Enabled reports whether outbound mail is configured.
func (s SendgridConfig) Enabled() bool {
	return strings.TrimSpace(s.APIKey) != "" && strings.TrimSpace(s.DefaultFrom) != ""
}

type WebhookConfig struct {
	Secret string `envconfig:"GIFTVOUCHERS_WEBHOOK_SECRET"`
	// ClaimTTL bounds how long a crashed delivery keeps its reference locked.
	ClaimTTL time.Duration `envconfig:"GIFTVOUCHERS_WEBHOOK_CLAIM_TTL" default:"2m"`
}

type StaffConfig struct {
	// PINHash is an argon2id encoded hash of the shared terminal PIN.
	PINHash string `envconfig:"GIFTVOUCHERS_STAFF_PIN_HASH"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"GIFTVOUCHERS_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"GIFTVOUCHERS_GCP_PROJECT_ID"`
	ApplicationCredentials string `envconfig:"GIFTVOUCHERS_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	VoucherEventsTopic string `envconfig:"GIFTVOUCHERS_PUBSUB_VOUCHER_EVENTS_TOPIC" default:"voucher-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"GIFTVOUCHERS_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"GIFTVOUCHERS_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"GIFTVOUCHERS_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"GIFTVOUCHERS_OUTBOX_RETENTION_DAYS" default:"30"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"GIFTVOUCHERS_CRON_INTERVAL" default:"1h"`
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
