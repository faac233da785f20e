package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	NodeID      int64

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int
	DBRunMigrations   bool

	Redis         RedisConfig
	RateLimit     RateLimitConfig
	Provisioning  ProvisioningConfig
	Automation    AutomationConfig
	Reconcile     ReconcileConfig
	Email         EmailConfig
	Alerts        AlertConfig
	Gateways      GatewaySecrets
	OperatorKeys  []OperatorKey
	GatewayConfig string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

// RateLimitConfig bounds unauthenticated endpoints per client IP.
type RateLimitConfig struct {
	Enabled     bool
	PublicRate  float64
	PublicBurst int
}

// ProvisioningConfig configures the outbound IPTV provisioning API client.
type ProvisioningConfig struct {
	Mode           string
	BaseURL        string
	APIKey         string
	Country        string
	RequestTimeout time.Duration
	MaxAttempts    int
	BaseDelay      time.Duration
	MaxDelay       time.Duration
	StreamHost     string
	FallbackHost   string
	FallbackPrefix string
}

const (
	ProvisioningModeLive     = "live"
	ProvisioningModeFallback = "fallback"
)

// FallbackOnly reports whether the provisioning API must be skipped entirely.
func (c ProvisioningConfig) FallbackOnly() bool {
	return c.Mode == ProvisioningModeFallback || strings.TrimSpace(c.BaseURL) == ""
}

type AutomationConfig struct {
	SagaTimeout   time.Duration
	StepTimeout   time.Duration
	NotifyTimeout time.Duration
}

type ReconcileConfig struct {
	Enabled     bool
	Interval    time.Duration
	StaleAfter  time.Duration
	RetryAfter  time.Duration
	MaxAttempts int
	BatchSize   int
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

// AlertConfig routes operator alerts raised by the reconciler.
type AlertConfig struct {
	SlackWebhookURL string
	SlackChannel    string
}

// GatewaySecrets are the env-provided defaults for webhook signing secrets.
type GatewaySecrets struct {
	Stripe      string
	NowPayments string
	MoonPay     string
}

// OperatorKey binds a support/operator API key to a role.
type OperatorKey struct {
	Role string
	Key  string
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	provisioningMode := strings.ToLower(strings.TrimSpace(getenv("PROVISIONING_MODE", ProvisioningModeLive)))
	if provisioningMode != ProvisioningModeFallback {
		provisioningMode = ProvisioningModeLive
	}

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "streamgate"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		NodeID:       getenvInt64("NODE_ID", 1),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "streamgate"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", "postgres"),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		DBRunMigrations:   getenvBool("DATABASE_RUN_MIGRATIONS", true),

		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:     getenvBool("RATE_LIMIT_ENABLED", true),
			PublicRate:  getenvFloat("RATE_LIMIT_PUBLIC_RATE", 2),
			PublicBurst: getenvInt("RATE_LIMIT_PUBLIC_BURST", 20),
		},
		Provisioning: ProvisioningConfig{
			Mode:           provisioningMode,
			BaseURL:        strings.TrimRight(strings.TrimSpace(getenv("PROVISIONING_API_URL", "")), "/"),
			APIKey:         strings.TrimSpace(getenv("PROVISIONING_API_KEY", "")),
			Country:        getenv("PROVISIONING_COUNTRY", "ALL"),
			RequestTimeout: getenvDuration("PROVISIONING_REQUEST_TIMEOUT", 8*time.Second),
			MaxAttempts:    getenvInt("PROVISIONING_MAX_ATTEMPTS", 3),
			BaseDelay:      getenvDuration("PROVISIONING_BASE_DELAY", 500*time.Millisecond),
			MaxDelay:       getenvDuration("PROVISIONING_MAX_DELAY", 4*time.Second),
			StreamHost:     strings.TrimRight(getenv("PROVISIONING_STREAM_HOST", "http://line.streamgate.tv:8080"), "/"),
			FallbackHost:   strings.TrimRight(getenv("PROVISIONING_FALLBACK_HOST", "http://fallback.streamgate.tv:8080"), "/"),
			FallbackPrefix: getenv("PROVISIONING_FALLBACK_PREFIX", "sg"),
		},
		Automation: AutomationConfig{
			SagaTimeout:   getenvDuration("AUTOMATION_SAGA_TIMEOUT", 30*time.Second),
			StepTimeout:   getenvDuration("AUTOMATION_STEP_TIMEOUT", 10*time.Second),
			NotifyTimeout: getenvDuration("AUTOMATION_NOTIFY_TIMEOUT", 10*time.Second),
		},
		Reconcile: ReconcileConfig{
			Enabled:     getenvBool("RECONCILE_ENABLED", true),
			Interval:    getenvDuration("RECONCILE_INTERVAL", time.Minute),
			StaleAfter:  getenvDuration("RECONCILE_STALE_AFTER", 5*time.Minute),
			RetryAfter:  getenvDuration("RECONCILE_RETRY_AFTER", 2*time.Minute),
			MaxAttempts: getenvInt("RECONCILE_MAX_ATTEMPTS", 3),
			BatchSize:   getenvInt("RECONCILE_BATCH_SIZE", 50),
		},
		Email: EmailConfig{
			SMTPHost:     strings.TrimSpace(getenv("SMTP_HOST", "")),
			SMTPPort:     getenvInt("SMTP_PORT", 587),
			SMTPUsername: strings.TrimSpace(getenv("SMTP_USERNAME", "")),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", "StreamGate <no-reply@streamgate.tv>"),
		},
		Alerts: AlertConfig{
			SlackWebhookURL: strings.TrimSpace(getenv("SLACK_WEBHOOK_URL", "")),
			SlackChannel:    strings.TrimSpace(getenv("SLACK_ALERT_CHANNEL", "")),
		},
		Gateways: GatewaySecrets{
			Stripe:      strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
			NowPayments: strings.TrimSpace(getenv("NOWPAYMENTS_IPN_SECRET", "")),
			MoonPay:     strings.TrimSpace(getenv("MOONPAY_WEBHOOK_SECRET", "")),
		},
		OperatorKeys:  parseOperatorKeys(getenv("OPERATOR_API_KEYS", "")),
		GatewayConfig: strings.TrimSpace(getenv("GATEWAY_CONFIG_PATH", "")),
	}

	return cfg
}

// parseOperatorKeys reads "role:key,role:key".
func parseOperatorKeys(raw string) []OperatorKey {
	parts := strings.Split(raw, ",")
	out := make([]OperatorKey, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		role, key, ok := strings.Cut(p, ":")
		role = strings.ToLower(strings.TrimSpace(role))
		key = strings.TrimSpace(key)
		if !ok || role == "" || key == "" {
			continue
		}
		out = append(out, OperatorKey{Role: role, Key: key})
	}
	return out
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

// getenvDuration accepts Go durations ("30s") or plain seconds ("30").
func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return def
}
