package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Database  DatabaseConfig
	GRPC      GRPCConfig
	HTTP      HTTPConfig
	Auth      AuthConfig
	Log       LogConfig
	Tracing   TracingConfig
	Notify    NotifyConfig
	DroneLink DroneLinkConfig
	Fleet     FleetConfig
}

// DatabaseConfig contains database-related settings.
type DatabaseConfig struct {
	Path string // SQLite database file path
}

// GRPCConfig contains gRPC server settings.
type GRPCConfig struct {
	Address   string  // gRPC server listen address (e.g., ":50051")
	RateLimit float64 // requests per second per principal, 0 disables limiting
	RateBurst int
}

// HTTPConfig contains the address serving /metrics and /events.
type HTTPConfig struct {
	Address string
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	JWTSecret string // JWT signing secret
}

// LogConfig selects the logger flavour.
type LogConfig struct {
	AppEnv string // "production" selects the production zap config
}

// TracingConfig governs how tracing is initialised.
type TracingConfig struct {
	Enabled     bool
	Exporter    string // stdout
	ServiceName string
	SampleRatio float64
}

// NotifyConfig configures notification fan-out. Empty Redis or AMQP settings disable
// that sink.
type NotifyConfig struct {
	Workers       int
	QueueSize     int
	RedisAddr     string
	RedisPassword string
	AMQPURL       string
	AMQPExchange  string
}

// DroneLinkConfig configures the HTTP client talking to onboard flight controllers.
type DroneLinkConfig struct {
	Timeout time.Duration
	PingTTL time.Duration
}

// FleetConfig configures the stale-drone sweeper.
type FleetConfig struct {
	StaleAfter    time.Duration
	SweepInterval time.Duration
}

// Load loads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg, err := load("")
	if err != nil {
		return nil, err
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is not set; required for production")
	}
	return cfg, nil
}

// LoadWithDefaults is like Load but uses a safe default for JWT_SECRET in development.
// WARNING: Only use in development! Use Load() in production.
func LoadWithDefaults() (*Config, error) {
	return load("dev-secret-change-me")
}

func load(defaultSecret string) (*Config, error) {
	var errs []error
	intVar := func(key string, def int) int {
		v, err := getEnvInt(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	floatVar := func(key string, def float64) float64 {
		v, err := getEnvFloat(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	durVar := func(key string, def time.Duration) time.Duration {
		v, err := getEnvDuration(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	boolVar := func(key string, def bool) bool {
		v, err := getEnvBool(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Path: getEnv("DB_PATH", "dispatch.db"),
		},
		GRPC: GRPCConfig{
			Address:   getEnv("GRPC_ADDRESS", ":50051"),
			RateLimit: floatVar("GRPC_RATE_LIMIT", 50),
			RateBurst: intVar("GRPC_RATE_BURST", 100),
		},
		HTTP: HTTPConfig{
			Address: getEnv("HTTP_ADDRESS", ":8080"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", defaultSecret),
		},
		Log: LogConfig{
			AppEnv: getEnv("APP_ENV", "development"),
		},
		Tracing: TracingConfig{
			Enabled:     boolVar("TRACING_ENABLED", false),
			Exporter:    strings.ToLower(getEnv("TRACING_EXPORTER", "stdout")),
			ServiceName: getEnv("TRACING_SERVICE_NAME", "drone-dispatch"),
			SampleRatio: floatVar("TRACING_SAMPLE_RATIO", 1),
		},
		Notify: NotifyConfig{
			Workers:       intVar("NOTIFY_WORKERS", 4),
			QueueSize:     intVar("NOTIFY_QUEUE_SIZE", 1024),
			RedisAddr:     getEnv("REDIS_ADDR", ""),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			AMQPURL:       getEnv("AMQP_URL", ""),
			AMQPExchange:  getEnv("AMQP_EXCHANGE", "dispatch.notifications"),
		},
		DroneLink: DroneLinkConfig{
			Timeout: durVar("DRONELINK_TIMEOUT", 5*time.Second),
			PingTTL: durVar("DRONELINK_PING_TTL", 10*time.Second),
		},
		Fleet: FleetConfig{
			StaleAfter:    durVar("FLEET_STALE_AFTER", 2*time.Minute),
			SweepInterval: durVar("FLEET_SWEEP_INTERVAL", 30*time.Second),
		},
	}
	if len(errs) > 0 {
		return nil, errs[0]
	}
	if r := cfg.Tracing.SampleRatio; r < 0 || r > 1 {
		return nil, fmt.Errorf("TRACING_SAMPLE_RATIO must be within [0,1], got %v", r)
	}
	if cfg.Notify.Workers <= 0 || cfg.Notify.QueueSize <= 0 {
		return nil, fmt.Errorf("NOTIFY_WORKERS and NOTIFY_QUEUE_SIZE must be positive")
	}
	return cfg, nil
}

// getEnv retrieves an environment variable with a default fallback.
func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

// getEnvInt retrieves an environment variable as an integer with a default fallback.
func getEnvInt(key string, defaultVal int) (int, error) {
	if value, exists := os.LookupEnv(key); exists {
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
		}
		return intVal, nil
	}
	return defaultVal, nil
}

func getEnvFloat(key string, defaultVal float64) (float64, error) {
	if value, exists := os.LookupEnv(key); exists {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid number for %s: %w", key, err)
		}
		return f, nil
	}
	return defaultVal, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	if value, exists := os.LookupEnv(key); exists {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return false, fmt.Errorf("invalid boolean for %s: %w", key, err)
		}
		return b, nil
	}
	return defaultVal, nil
}

// getEnvDuration accepts Go duration strings such as "5s" or "2m".
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	if value, exists := os.LookupEnv(key); exists {
		d, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
		}
		return d, nil
	}
	return defaultVal, nil
}

// String returns a string representation of the config (sensitive values are masked).
func (c *Config) String() string {
	redis := "off"
	if c.Notify.RedisAddr != "" {
		redis = c.Notify.RedisAddr
	}
	amqp := "off"
	if c.Notify.AMQPURL != "" {
		amqp = "*** (masked) ***"
	}
	return fmt.Sprintf("Config{DB: %s, gRPC: %s, HTTP: %s, Env: %s, Tracing: %t, Redis: %s, AMQP: %s, Auth: *** (masked) ***}",
		c.Database.Path, c.GRPC.Address, c.HTTP.Address, c.Log.AppEnv, c.Tracing.Enabled, redis, amqp)
}
