package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// MongoDB document store
	Mongo MongoConfig `mapstructure:"mongo"`

	// PostgreSQL, used when a store is switched to postgres
	Database DatabaseConfig `mapstructure:"database"`

	// Storage backend selection
	Storage StorageConfig `mapstructure:"storage"`

	// Redis configuration
	Redis RedisConfig `mapstructure:"redis"`

	// JWT configuration
	JWT JWTConfig `mapstructure:"jwt"`

	// External collaborators
	Cloudinary CloudinaryConfig `mapstructure:"cloudinary"`
	EmailJS    EmailJSConfig    `mapstructure:"emailjs"`
	Gemini     GeminiConfig     `mapstructure:"gemini"`
	Google     GoogleConfig     `mapstructure:"google"`

	// Logging configuration
	LogLevel string `mapstructure:"log_level"`

	// Rate limiting configuration
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// Monitoring configuration
	Monitoring MonitoringConfig `mapstructure:"monitoring"`

	// Tracing configuration
	Tracing TracingConfig `mapstructure:"tracing"`

	// Realtime handoff channel
	Realtime RealtimeConfig `mapstructure:"realtime"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Host            string   `mapstructure:"host"`
	Port            int      `mapstructure:"port"`
	ReadTimeout     int      `mapstructure:"read_timeout"`
	WriteTimeout    int      `mapstructure:"write_timeout"`
	IdleTimeout     int      `mapstructure:"idle_timeout"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	MaxUploadSizeMB int      `mapstructure:"max_upload_size_mb"`
}

// MongoConfig holds document store configuration
type MongoConfig struct {
	URI            string `mapstructure:"uri"`
	Database       string `mapstructure:"database"`
	ConnectTimeout int    `mapstructure:"connect_timeout"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// StorageConfig selects the backend of each store
type StorageConfig struct {
	// Prescriptions is "mongo" or "postgres"
	Prescriptions string `mapstructure:"prescriptions"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
	// ResetCodeTTL is the lifetime of a password reset code in seconds
	ResetCodeTTL int `mapstructure:"reset_code_ttl"`
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SecretKey      string `mapstructure:"secret_key"`
	AccessTokenTTL int    `mapstructure:"access_token_ttl"`
	Issuer         string `mapstructure:"issuer"`
}

// CloudinaryConfig holds blob service credentials
type CloudinaryConfig struct {
	CloudName      string `mapstructure:"cloud_name"`
	APIKey         string `mapstructure:"api_key"`
	APISecret      string `mapstructure:"api_secret"`
	DocumentFolder string `mapstructure:"document_folder"`
	AudioFolder    string `mapstructure:"audio_folder"`
}

// EmailJSConfig holds outbound email credentials
type EmailJSConfig struct {
	Endpoint   string `mapstructure:"endpoint"`
	ServiceID  string `mapstructure:"service_id"`
	TemplateID string `mapstructure:"template_id"`
	PublicKey  string `mapstructure:"public_key"`
	PrivateKey string `mapstructure:"private_key"`
}

// GeminiConfig holds the assistant model configuration
type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

// GoogleConfig holds Google sign-in configuration
type GoogleConfig struct {
	ClientID string `mapstructure:"client_id"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	LoginPerMin     int  `mapstructure:"login_per_min"`
	AskPerMin       int  `mapstructure:"ask_per_min"`
	CleanupInterval int  `mapstructure:"cleanup_interval"`
}

// MonitoringConfig holds monitoring configuration
type MonitoringConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	MetricsPath   string `mapstructure:"metrics_path"`
	HealthPath    string `mapstructure:"health_path"`
	HealthTimeout int    `mapstructure:"health_timeout"` // seconds per dependency check
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	Environment    string  `mapstructure:"environment"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

// RealtimeConfig tunes the websocket hub
type RealtimeConfig struct {
	Path           string `mapstructure:"path"`
	WriteWait      int    `mapstructure:"write_wait"`
	PongWait       int    `mapstructure:"pong_wait"`
	MaxMessageSize int64  `mapstructure:"max_message_size"`
	SendBuffer     int    `mapstructure:"send_buffer"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/mediflow")

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideWithEnv(&config)

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 30)
	v.SetDefault("server.idle_timeout", 120)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_upload_size_mb", 20)

	// Mongo defaults
	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "Mediflow")
	v.SetDefault("mongo.connect_timeout", 10)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "mediflow")
	v.SetDefault("database.user", "mediflow")
	v.SetDefault("database.ssl_mode", "require")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)

	v.SetDefault("storage.prescriptions", "mongo")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.reset_code_ttl", 600)

	// JWT defaults
	v.SetDefault("jwt.access_token_ttl", 3600) // 1 hour
	v.SetDefault("jwt.issuer", "mediflow")

	// Collaborator defaults
	v.SetDefault("cloudinary.document_folder", "Mediflow_(Zense)")
	v.SetDefault("cloudinary.audio_folder", "Mediflow_Audio")
	v.SetDefault("emailjs.endpoint", "https://api.emailjs.com/api/v1.0/email/send")
	v.SetDefault("gemini.model", "gemma-3n-e2b-it")

	// Rate limiting defaults
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.login_per_min", 10)
	v.SetDefault("rate_limit.ask_per_min", 20)
	v.SetDefault("rate_limit.cleanup_interval", 3600)

	// Monitoring defaults
	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("monitoring.metrics_path", "/metrics")
	v.SetDefault("monitoring.health_path", "/health")
	v.SetDefault("monitoring.health_timeout", 5)

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.jaeger_endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("tracing.environment", "development")
	v.SetDefault("tracing.sampling_rate", 1.0)

	// Realtime defaults
	v.SetDefault("realtime.path", "/ws")
	v.SetDefault("realtime.write_wait", 10)
	v.SetDefault("realtime.pong_wait", 60)
	v.SetDefault("realtime.max_message_size", 64*1024)
	v.SetDefault("realtime.send_buffer", 32)

	// Logging defaults
	v.SetDefault("log_level", "info")
}

// overrideWithEnv applies the environment names the deployment already uses
func overrideWithEnv(config *Config) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	overrideString(&config.JWT.SecretKey, "JWT_SECRET")
	overrideString(&config.Mongo.URI, "MONGODB_URI")
	overrideString(&config.Cloudinary.CloudName, "CLOUDINARY_CLOUD_NAME")
	overrideString(&config.Cloudinary.APIKey, "CLOUDINARY_API_KEY")
	overrideString(&config.Cloudinary.APISecret, "CLOUDINARY_API_SECRET")
	overrideString(&config.EmailJS.ServiceID, "EMAILJS_SERVICE_ID")
	overrideString(&config.EmailJS.TemplateID, "EMAILJS_TEMPLATE_ID")
	overrideString(&config.EmailJS.PublicKey, "EMAILJS_PUBLIC_KEY")
	overrideString(&config.EmailJS.PrivateKey, "EMAILJS_PRIVATE_KEY")
	overrideString(&config.Gemini.APIKey, "GEMINI_API_KEY")
	overrideString(&config.Google.ClientID, "GOOGLE_CLIENT_ID")
	overrideString(&config.LogLevel, "LOG_LEVEL")
}

func overrideString(field *string, env string) {
	if value := os.Getenv(env); value != "" {
		*field = value
	}
}

// validate validates the configuration
func validate(config *Config) error {
	if config.JWT.SecretKey == "" {
		return fmt.Errorf("JWT secret key is required")
	}

	if config.Mongo.URI == "" {
		return fmt.Errorf("MONGODB_URI not set")
	}

	switch config.Storage.Prescriptions {
	case "mongo":
	case "postgres":
		if config.Database.Password == "" {
			return fmt.Errorf("database password is required for postgres prescriptions")
		}
	default:
		return fmt.Errorf("unknown prescription storage %q", config.Storage.Prescriptions)
	}

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	return nil
}
