package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/collabtext/collabtext/pkg/logger"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Store     StoreConfig
	Postgres  PostgresConfig
	MongoDB   MongoDBConfig
	Body      BodyConfig
	MinIO     MinIOConfig
	Redis     RedisConfig
	Relay     RelayConfig
	Keycloak  KeycloakConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Presence  PresenceConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	Environment     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type LogConfig struct {
	Level  string
	Format string
}

// StoreConfig selects the metadata backend: memory, postgres or mongo.
type StoreConfig struct {
	Backend string
}

type PostgresConfig struct {
	URL string
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// BodyConfig selects where document bodies live: file or minio.
type BodyConfig struct {
	Backend string
	Dir     string
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port, or "" when Redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return r.Host + ":" + r.Port
}

// RelayConfig selects the broadcast relay: memory or redis.
type RelayConfig struct {
	Backend string
	Channel string
	Buffer  int
}

type KeycloakConfig struct {
	URL      string
	Realm    string
	ClientID string
	// AllowInsecure accepts unverified provider tokens when discovery fails (local dev only)
	AllowInsecure bool
}

// Enabled reports whether an OIDC provider is configured.
func (k KeycloakConfig) Enabled() bool {
	return k.URL != "" && k.Realm != ""
}

type JWTConfig struct {
	Secret         string
	AccessTokenTTL time.Duration
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

type PresenceConfig struct {
	ReleaseOnClose bool
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_ENVIRONMENT", "development")
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", 10)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("STORE_BACKEND", "memory")
	v.SetDefault("MONGODB_DATABASE", "collabtext")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("BODY_BACKEND", "file")
	v.SetDefault("DOCUMENTS_DIR", "documents")
	v.SetDefault("MINIO_BUCKET", "collabtext")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RELAY_BACKEND", "memory")
	v.SetDefault("RELAY_CHANNEL", "collabtext:relay")
	v.SetDefault("RELAY_BUFFER", 256)
	v.SetDefault("JWT_ACCESS_TOKEN_TTL", 1440)
	v.SetDefault("RATE_LIMIT_ENABLED", false)
	v.SetDefault("RATE_LIMIT_USE_REDIS", false)
	v.SetDefault("RATE_LIMIT_RPS", 20.0)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)
	v.SetDefault("PRESENCE_RELEASE_ON_CLOSE", false)

	cfg := &Config{
		Server: ServerConfig{
			Port:            v.GetString("SERVER_PORT"),
			Host:            v.GetString("SERVER_HOST"),
			Environment:     v.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: time.Duration(v.GetInt("SERVER_SHUTDOWN_TIMEOUT")) * time.Second,
			AllowedOrigins:  splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Store: StoreConfig{
			Backend: strings.ToLower(v.GetString("STORE_BACKEND")),
		},
		Postgres: PostgresConfig{
			URL: v.GetString("DATABASE_URL"),
		},
		MongoDB: MongoDBConfig{
			URI:      v.GetString("MONGODB_URI"),
			Database: v.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Body: BodyConfig{
			Backend: strings.ToLower(v.GetString("BODY_BACKEND")),
			Dir:     v.GetString("DOCUMENTS_DIR"),
		},
		MinIO: MinIOConfig{
			Endpoint:  v.GetString("MINIO_ENDPOINT"),
			AccessKey: v.GetString("MINIO_ACCESS_KEY"),
			SecretKey: v.GetString("MINIO_SECRET_KEY"),
			UseSSL:    v.GetBool("MINIO_USE_SSL"),
			Bucket:    v.GetString("MINIO_BUCKET"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Relay: RelayConfig{
			Backend: strings.ToLower(v.GetString("RELAY_BACKEND")),
			Channel: v.GetString("RELAY_CHANNEL"),
			Buffer:  v.GetInt("RELAY_BUFFER"),
		},
		Keycloak: KeycloakConfig{
			URL:           v.GetString("KEYCLOAK_URL"),
			Realm:         v.GetString("KEYCLOAK_REALM"),
			ClientID:      v.GetString("KEYCLOAK_CLIENT_ID"),
			AllowInsecure: v.GetBool("ALLOW_INSECURE_TOKEN"),
		},
		JWT: JWTConfig{
			Secret:         v.GetString("JWT_SECRET"),
			AccessTokenTTL: time.Duration(v.GetInt("JWT_ACCESS_TOKEN_TTL")) * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:       v.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      v.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         v.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		Presence: PresenceConfig{
			ReleaseOnClose: v.GetBool("PRESENCE_RELEASE_ON_CLOSE"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.JWT.Secret == "" {
		logger.Warn("JWT_SECRET is not set; set a secure value in production")
	}

	return cfg, nil
}

// Validate checks the backend selectors and the settings they depend on.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "memory":
	case "postgres":
		if c.Postgres.URL == "" {
			return fmt.Errorf("STORE_BACKEND=postgres requires DATABASE_URL")
		}
	case "mongo":
		if c.MongoDB.URI == "" {
			return fmt.Errorf("STORE_BACKEND=mongo requires MONGODB_URI")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}

	switch c.Body.Backend {
	case "file":
		if c.Body.Dir == "" {
			return fmt.Errorf("BODY_BACKEND=file requires DOCUMENTS_DIR")
		}
	case "minio":
		if c.MinIO.Endpoint == "" {
			return fmt.Errorf("BODY_BACKEND=minio requires MINIO_ENDPOINT")
		}
	default:
		return fmt.Errorf("unknown BODY_BACKEND %q", c.Body.Backend)
	}

	switch c.Relay.Backend {
	case "memory":
	case "redis":
		if c.Redis.Host == "" {
			return fmt.Errorf("RELAY_BACKEND=redis requires REDIS_HOST")
		}
	default:
		return fmt.Errorf("unknown RELAY_BACKEND %q", c.Relay.Backend)
	}
	if c.Relay.Buffer <= 0 {
		c.Relay.Buffer = 256
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
