package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	"github.com/slighter12/go-lib/database/postgres"
)

const (
	defaultPath               = "."
	defaultMaxRequestBodySize = "100KB"
	defaultPort               = 8080
	defaultWorkerPort         = 8081
	minBcryptCost             = 10
)

type Config struct {
	Env struct {
		Env         string `json:"env" yaml:"env"`
		ServiceName string `json:"serviceName" yaml:"serviceName"`
		Debug       bool   `json:"debug" yaml:"debug"`
		Log         Log    `json:"log" yaml:"log"`
	} `json:"env" yaml:"env"`

	HTTP struct {
		Port               int    `json:"port" yaml:"port"`
		MaxRequestBodySize string `json:"maxRequestBodySize" yaml:"maxRequestBodySize"`
		CookieSecure       bool   `json:"cookieSecure" yaml:"cookieSecure"`
		Timeouts           struct {
			ReadTimeout       time.Duration `json:"readTimeout" yaml:"readTimeout"`
			ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"`
			WriteTimeout      time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
			IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
		} `json:"timeouts" yaml:"timeouts"`
	} `json:"http" yaml:"http"`

	Postgres *postgres.DBConn `json:"postgres" yaml:"postgres" mapstructure:"postgres"`

	Database struct {
		AutoMigrate bool `json:"autoMigrate" yaml:"autoMigrate"`
	} `json:"database" yaml:"database"`

	SecretKey struct {
		Access string `json:"access" yaml:"access"`
	} `json:"secretKey" yaml:"secretKey"`

	Auth *AuthConfig `json:"auth" yaml:"auth"`

	PasswordStrength *PasswordStrengthConfig `json:"passwordStrength" yaml:"passwordStrength"`

	// Secrets configures the one-time PIN and link tokens
	Secrets *SecretsConfig `json:"secrets" yaml:"secrets"`

	// Account configures the delayed cleanup of accounts
	Account *AccountConfig `json:"account" yaml:"account"`

	Reservation *ReservationConfig `json:"reservation" yaml:"reservation"`

	Redis *RedisConfig `json:"redis" yaml:"redis"`

	Scheduler *SchedulerConfig `json:"scheduler" yaml:"scheduler"`

	RateLimit *RateLimitConfig `json:"rateLimit" yaml:"rateLimit"`

	// PubSub configuration for notification event publishing
	PubSub *PubSubConfig `json:"pubsub" yaml:"pubsub"`

	RabbitMQ *RabbitMQConfig `json:"rabbitmq" yaml:"rabbitmq"`

	Notification *NotificationConfig `json:"notification" yaml:"notification"`

	// QRCode configuration for parking check-in codes
	QRCode *QRCodeConfig `json:"qrcode" yaml:"qrcode"`

	Metrics *MetricsConfig `json:"metrics" yaml:"metrics"`

	Tracing *TracingConfig `json:"tracing" yaml:"tracing"`

	Worker struct {
		Port int `json:"port" yaml:"port"`
		// Audience expected in Google Pub/Sub push tokens. Empty disables verification.
		PushAudience string `json:"pushAudience" yaml:"pushAudience"`
	} `json:"worker" yaml:"worker"`
}

// AuthConfig defines authentication-related configuration
type AuthConfig struct {
	BcryptCost int           `json:"bcryptCost" yaml:"bcryptCost"`
	TokenTTL   time.Duration `json:"tokenTTL" yaml:"tokenTTL"`
}

// PasswordStrengthConfig defines password strength requirements
type PasswordStrengthConfig struct {
	MinLength        int  `json:"minLength" yaml:"minLength"`
	RequireUppercase bool `json:"requireUppercase" yaml:"requireUppercase"`
	RequireLowercase bool `json:"requireLowercase" yaml:"requireLowercase"`
	RequireNumbers   bool `json:"requireNumbers" yaml:"requireNumbers"`
	RequireSpecial   bool `json:"requireSpecial" yaml:"requireSpecial"`
	MaxLength        int  `json:"maxLength" yaml:"maxLength"`
}

type Log struct {
	Pretty bool   `json:"pretty" yaml:"pretty"`
	Level  string `json:"level" yaml:"level"`
}

// SecretsConfig defines lifetimes of transient secrets
type SecretsConfig struct {
	PinLength int           `json:"pinLength" yaml:"pinLength"`
	PinTTL    time.Duration `json:"pinTTL" yaml:"pinTTL"`
	// PinMaxAttempts is the number of wrong PINs after which the PIN is discarded
	PinMaxAttempts   int           `json:"pinMaxAttempts" yaml:"pinMaxAttempts"`
	EmailConfirmTTL  time.Duration `json:"emailConfirmTTL" yaml:"emailConfirmTTL"`
	PasswordResetTTL time.Duration `json:"passwordResetTTL" yaml:"passwordResetTTL"`
}

// AccountConfig defines the delays before unconfirmed or deactivated accounts are removed
type AccountConfig struct {
	ConfirmationDelay time.Duration `json:"confirmationDelay" yaml:"confirmationDelay"`
	PurgeDelay        time.Duration `json:"purgeDelay" yaml:"purgeDelay"`
}

// ReservationConfig defines reservation behaviour
type ReservationConfig struct {
	DeviceConfirmation struct {
		Enabled bool          `json:"enabled" yaml:"enabled"`
		Timeout time.Duration `json:"timeout" yaml:"timeout"`
	} `json:"deviceConfirmation" yaml:"deviceConfirmation"`
}

// RedisConfig defines the Redis connection. An empty Addr disables Redis-backed components.
type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

// SchedulerConfig defines the delayed job scheduler
type SchedulerConfig struct {
	// Provider type: "memory" or "redis"
	Provider      string        `json:"provider" yaml:"provider"`
	PollInterval  time.Duration `json:"pollInterval" yaml:"pollInterval"`
	BatchSize     int           `json:"batchSize" yaml:"batchSize"`
	MaxAttempts   int           `json:"maxAttempts" yaml:"maxAttempts"`
	SweepInterval time.Duration `json:"sweepInterval" yaml:"sweepInterval"`
}

// RateLimitConfig defines the token bucket applied to credential endpoints
type RateLimitConfig struct {
	Enabled        bool          `json:"enabled" yaml:"enabled"`
	Capacity       int           `json:"capacity" yaml:"capacity"`
	RefillTokens   int           `json:"refillTokens" yaml:"refillTokens"`
	RefillInterval time.Duration `json:"refillInterval" yaml:"refillInterval"`
	TTL            time.Duration `json:"ttl" yaml:"ttl"`
}

// PubSubConfig defines Pub/Sub configuration for event publishing
type PubSubConfig struct {
	// Provider type: "noop" delivers in-process, "local" posts to a local worker,
	// "google" uses Google Pub/Sub and "rabbitmq" uses the notification queue
	Provider string `json:"provider" yaml:"provider"`

	// Google Cloud project ID (for google provider)
	ProjectID string `json:"projectId" yaml:"projectId"`

	// Pub/Sub topic ID (for google provider)
	TopicID string `json:"topicId" yaml:"topicId"`

	// Local HTTP endpoint for development (for local provider)
	LocalEndpoint string `json:"localEndpoint" yaml:"localEndpoint"`
}

// RabbitMQConfig defines the broker connection and queues
type RabbitMQConfig struct {
	URL               string `json:"url" yaml:"url"`
	NotificationQueue string `json:"notificationQueue" yaml:"notificationQueue"`
	DeviceQueue       string `json:"deviceQueue" yaml:"deviceQueue"`
	Prefetch          int    `json:"prefetch" yaml:"prefetch"`
	// MaxRetries bounds redeliveries of a failed message before it is dead-lettered
	MaxRetries int           `json:"maxRetries" yaml:"maxRetries"`
	RetryDelay time.Duration `json:"retryDelay" yaml:"retryDelay"`
}

// NotificationConfig defines the email and SMS gateways
type NotificationConfig struct {
	PublicBaseURL string `json:"publicBaseURL" yaml:"publicBaseURL"`
	SMTP          struct {
		Host     string `json:"host" yaml:"host"`
		Port     int    `json:"port" yaml:"port"`
		Username string `json:"username" yaml:"username"`
		Password string `json:"password" yaml:"password"`
		From     string `json:"from" yaml:"from"`
	} `json:"smtp" yaml:"smtp"`
	SMS struct {
		Endpoint string        `json:"endpoint" yaml:"endpoint"`
		APIKey   string        `json:"apiKey" yaml:"apiKey"`
		Sender   string        `json:"sender" yaml:"sender"`
		Timeout  time.Duration `json:"timeout" yaml:"timeout"`
	} `json:"sms" yaml:"sms"`
}

// QRCodeConfig defines QR code generation configuration
type QRCodeConfig struct {
	Size                 int    `json:"size" yaml:"size"`
	ErrorCorrectionLevel string `json:"errorCorrectionLevel" yaml:"errorCorrectionLevel"`
}

// MetricsConfig defines the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
}

// TracingConfig defines the OTLP trace exporter
type TracingConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	Insecure bool   `json:"insecure" yaml:"insecure"`
}

// LoadWithEnv loads .yaml files through koanf.
func LoadWithEnv[T any](currEnv string, configPath ...string) (*T, error) {
	cfg := new(T)
	koanfInstance := koanf.New(".")

	// Build list of paths to search for config file
	searchPaths := []string{defaultPath}
	if len(configPath) != 0 {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "os.Getwd")
		}
		for _, path := range configPath {
			abs := filepath.Join(pwd, path)
			searchPaths = append(searchPaths, abs)
		}
	}

	// Try to find and load the config file
	var configFile string
	var found bool
	for _, path := range searchPaths {
		candidate := filepath.Join(path, currEnv+".yaml")
		if _, err := os.Stat(candidate); err == nil {
			configFile = candidate
			found = true

			break
		}
	}

	if !found {
		return nil, errors.Errorf("config file %s.yaml not found in any search path", currEnv)
	}

	// Load YAML config file
	if err := koanfInstance.Load(file.Provider(configFile), yaml.Parser()); err != nil {
		return nil, errors.Wrapf(err, "read %s config failed", currEnv)
	}

	existingConfigMap := koanfInstance.Raw()

	// Load environment variables
	if err := koanfInstance.Load(env.Provider(".", env.Opt{
		TransformFunc: func(k, v string) (string, any) {
			// Convert ENV_VAR_NAME to path and align each segment with existing YAML keys.
			// Example: POSTGRES_SSLMODE -> postgres.sslMode (not postgres.sslmode)
			key := canonicalizeEnvKey(k, existingConfigMap)

			return key, v
		},
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env variables failed")
	}

	// Unmarshal into the config struct (case-insensitive to match env vars)
	if err := koanfInstance.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			MatchName: func(mapKey, fieldName string) bool {
				// Case-insensitive matching for env var overrides
				return strings.EqualFold(mapKey, fieldName)
			},
		},
	}); err != nil {
		return nil, errors.Wrapf(err, "unmarshal %s config failed", currEnv)
	}

	return cfg, nil
}

func New() (*Config, error) {
	// A missing .env file is the normal case outside local development.
	_ = godotenv.Load()

	cfg, err := LoadWithEnv[Config]("config", "config", "../config", "../../config")
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	// Build replicas from environment variables (POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, etc.)
	if cfg.Postgres != nil {
		cfg.Postgres.Replicas = buildReplicasFromEnv()
	}

	if strings.TrimSpace(cfg.SecretKey.Access) == "" {
		return nil, errors.New("secretKey.access must be set")
	}

	return cfg, nil
}

//nolint:cyclop,gocyclo // flat list of zero-value defaults
func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.HTTP.MaxRequestBodySize) == "" {
		cfg.HTTP.MaxRequestBodySize = defaultMaxRequestBodySize
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = defaultPort
	}
	if cfg.Worker.Port == 0 {
		cfg.Worker.Port = defaultWorkerPort
	}

	if cfg.Auth == nil {
		cfg.Auth = &AuthConfig{}
	}
	if cfg.Auth.BcryptCost < minBcryptCost {
		cfg.Auth.BcryptCost = minBcryptCost
	}
	if cfg.Auth.TokenTTL <= 0 {
		cfg.Auth.TokenTTL = 24 * time.Hour
	}

	if cfg.PasswordStrength == nil {
		cfg.PasswordStrength = &PasswordStrengthConfig{
			MinLength:        8,
			MaxLength:        100,
			RequireUppercase: true,
			RequireLowercase: true,
			RequireNumbers:   true,
			RequireSpecial:   true,
		}
	}

	if cfg.Secrets == nil {
		cfg.Secrets = &SecretsConfig{}
	}
	if cfg.Secrets.PinLength <= 0 {
		cfg.Secrets.PinLength = 6
	}
	if cfg.Secrets.PinTTL <= 0 {
		cfg.Secrets.PinTTL = 5 * time.Minute
	}
	if cfg.Secrets.PinMaxAttempts <= 0 {
		cfg.Secrets.PinMaxAttempts = 5
	}
	if cfg.Secrets.EmailConfirmTTL <= 0 {
		cfg.Secrets.EmailConfirmTTL = 24 * time.Hour
	}
	if cfg.Secrets.PasswordResetTTL <= 0 {
		cfg.Secrets.PasswordResetTTL = 10 * time.Minute
	}

	if cfg.Account == nil {
		cfg.Account = &AccountConfig{}
	}
	if cfg.Account.ConfirmationDelay <= 0 {
		cfg.Account.ConfirmationDelay = 240 * time.Hour
	}
	if cfg.Account.PurgeDelay <= 0 {
		cfg.Account.PurgeDelay = 720 * time.Hour
	}

	if cfg.Reservation == nil {
		cfg.Reservation = &ReservationConfig{}
	}
	if cfg.Reservation.DeviceConfirmation.Timeout <= 0 {
		cfg.Reservation.DeviceConfirmation.Timeout = 2 * time.Minute
	}

	if cfg.Redis == nil {
		cfg.Redis = &RedisConfig{}
	}

	if cfg.Scheduler == nil {
		cfg.Scheduler = &SchedulerConfig{}
	}
	if cfg.Scheduler.Provider == "" {
		cfg.Scheduler.Provider = "memory"
	}
	if cfg.Scheduler.PollInterval <= 0 {
		cfg.Scheduler.PollInterval = time.Second
	}
	if cfg.Scheduler.BatchSize <= 0 {
		cfg.Scheduler.BatchSize = 50
	}
	if cfg.Scheduler.MaxAttempts <= 0 {
		cfg.Scheduler.MaxAttempts = 5
	}
	if cfg.Scheduler.SweepInterval <= 0 {
		cfg.Scheduler.SweepInterval = time.Minute
	}

	if cfg.RateLimit == nil {
		cfg.RateLimit = &RateLimitConfig{}
	}
	if cfg.RateLimit.Capacity <= 0 {
		cfg.RateLimit.Capacity = 10
	}
	if cfg.RateLimit.RefillTokens <= 0 {
		cfg.RateLimit.RefillTokens = 1
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = 6 * time.Second
	}
	if cfg.RateLimit.TTL <= 0 {
		cfg.RateLimit.TTL = 10 * time.Minute
	}

	if cfg.PubSub == nil {
		cfg.PubSub = &PubSubConfig{}
	}
	if cfg.PubSub.Provider == "" {
		cfg.PubSub.Provider = "noop"
	}

	if cfg.RabbitMQ == nil {
		cfg.RabbitMQ = &RabbitMQConfig{}
	}
	if cfg.RabbitMQ.NotificationQueue == "" {
		cfg.RabbitMQ.NotificationQueue = "parkshare.notifications"
	}
	if cfg.RabbitMQ.DeviceQueue == "" {
		cfg.RabbitMQ.DeviceQueue = "parkshare.device-signals"
	}
	if cfg.RabbitMQ.Prefetch <= 0 {
		cfg.RabbitMQ.Prefetch = 50
	}
	if cfg.RabbitMQ.MaxRetries <= 0 {
		cfg.RabbitMQ.MaxRetries = 5
	}
	if cfg.RabbitMQ.RetryDelay <= 0 {
		cfg.RabbitMQ.RetryDelay = 2 * time.Second
	}

	if cfg.Notification == nil {
		cfg.Notification = &NotificationConfig{}
	}
	if cfg.Notification.SMS.Timeout <= 0 {
		cfg.Notification.SMS.Timeout = 10 * time.Second
	}

	if cfg.QRCode == nil {
		cfg.QRCode = &QRCodeConfig{}
	}
	if cfg.QRCode.Size <= 0 {
		cfg.QRCode.Size = 256
	}
	if cfg.QRCode.ErrorCorrectionLevel == "" {
		cfg.QRCode.ErrorCorrectionLevel = "medium"
	}

	if cfg.Metrics == nil {
		cfg.Metrics = &MetricsConfig{}
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}

	if cfg.Tracing == nil {
		cfg.Tracing = &TracingConfig{}
	}
}

func canonicalizeEnvKey(rawKey string, existing map[string]any) string {
	segments := strings.Split(strings.ToLower(rawKey), "_")
	canonical := make([]string, 0, len(segments))
	current := existing

	for _, segment := range segments {
		if segment == "" {
			continue
		}

		if matched, next, ok := findExistingSegment(current, segment); ok {
			canonical = append(canonical, matched)
			current = next
		} else {
			canonical = append(canonical, segment)
			current = nil
		}
	}

	return strings.Join(canonical, ".")
}

func findExistingSegment(current map[string]any, segment string) (matched string, next map[string]any, ok bool) {
	if len(current) == 0 {
		return "", nil, false
	}

	needle := normalizeToken(segment)
	for key, value := range current {
		if normalizeToken(key) != needle {
			continue
		}

		child, _ := value.(map[string]any)

		return key, child, true
	}

	return "", nil, false
}

func normalizeToken(s string) string {
	var normalized strings.Builder
	normalized.Grow(len(s))

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		normalized.WriteRune(unicode.ToLower(r))
	}

	return normalized.String()
}

// buildReplicasFromEnv builds the replicas slice from environment variables.
// Environment variable format: POSTGRES_REPLICAS_{index}_{field}
// Example: POSTGRES_REPLICAS_0_HOST, POSTGRES_REPLICAS_0_PORT, POSTGRES_REPLICAS_0_USERNAME, POSTGRES_REPLICAS_0_PASSWORD
func buildReplicasFromEnv() []postgres.ConnectionConfig {
	var replicas []postgres.ConnectionConfig

	for i := 0; ; i++ {
		prefix := "POSTGRES_REPLICAS_" + strconv.Itoa(i) + "_"

		host := os.Getenv(prefix + "HOST")
		port := os.Getenv(prefix + "PORT")
		if host == "" || port == "" {
			// No more replicas or incomplete configuration.
			break
		}

		replica := postgres.ConnectionConfig{
			Host:     host,
			Port:     port,
			UserName: os.Getenv(prefix + "USERNAME"),
			Password: os.Getenv(prefix + "PASSWORD"),
		}

		replicas = append(replicas, replica)
	}

	return replicas
}
