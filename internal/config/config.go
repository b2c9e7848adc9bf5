package config

import (
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

type Config struct {
	Server ServerConfig `envPrefix:"SERVER_"`

	// Database Configuration
	Database DatabaseConfig `envPrefix:"DB_"`

	// MongoDB holds the GridFS bucket used for attachments
	MongoDB MongoConfig `envPrefix:"MONGO_"`

	Redis RedisConfig `envPrefix:"REDIS_"`

	Kafka KafkaConfig `envPrefix:"KAFKA_"`

	// Fanout Configuration
	Fanout FanoutConfig `envPrefix:"FANOUT_"`

	Chat ChatConfig `envPrefix:"CHAT_"`

	Auth AuthConfig `envPrefix:"AUTH_"`

	Encryption EncryptionConfig `envPrefix:"ENCRYPTION_"`

	// Logging Configuration
	Logging LoggingConfig `envPrefix:"LOG_"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host         string `env:"HOST" envDefault:"0.0.0.0"`
	Port         string `env:"PORT" envDefault:"8080"`
	GRPCPort     string `env:"GRPC_PORT" envDefault:"7003"`
	ReadTimeout  int    `env:"READ_TIMEOUT" envDefault:"15"`
	WriteTimeout int    `env:"WRITE_TIMEOUT" envDefault:"15"`
	Environment  string `env:"ENVIRONMENT" envDefault:"development"` // development, staging, production
	MediaBaseURL string `env:"MEDIA_BASE_URL" envDefault:"/media/"`
}

// DatabaseConfig contains database connection configuration
type DatabaseConfig struct {
	Driver       string `env:"DRIVER" envDefault:"mysql"` // mysql, postgres, memory
	Host         string `env:"HOST" envDefault:"localhost"`
	Port         string `env:"PORT"`
	Username     string `env:"USER" envDefault:"gochat"`
	Password     string `env:"PASSWORD" envDefault:"gochat123"`
	DatabaseName string `env:"NAME" envDefault:"gochat"`
	SSLMode      string `env:"SSL_MODE" envDefault:"disable"`
	MaxOpenConns int    `env:"MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int    `env:"MAX_IDLE_CONNS" envDefault:"5"`
	AutoMigrate  bool   `env:"AUTO_MIGRATE" envDefault:"true"`
}

// MongoConfig contains the GridFS connection used for attachment blobs
type MongoConfig struct {
	Enabled  bool   `env:"ENABLED" envDefault:"true"`
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     string `env:"PORT" envDefault:"27017"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	Database string `env:"DATABASE" envDefault:"gochat"`
	Bucket   string `env:"BUCKET" envDefault:"chat_attachments"`

	// MaxPoolSize caps concurrent GridFS connections; 0 keeps the driver default.
	MaxPoolSize uint64 `env:"MAX_POOL_SIZE" envDefault:"50"`
}

type RedisConfig struct {
	Enabled       bool   `env:"ENABLED" envDefault:"false"`
	Addr          string `env:"ADDR" envDefault:"localhost:6379"`
	Password      string `env:"PASSWORD"`
	DB            int    `env:"DB" envDefault:"0"`
	ChannelPrefix string `env:"CHANNEL_PREFIX" envDefault:"chat:events:"`
}

type KafkaConfig struct {
	Enabled bool     `env:"ENABLED" envDefault:"false"`
	Brokers []string `env:"BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	Topic   string   `env:"TOPIC" envDefault:"chat-events"`
}

// FanoutConfig contains event fan-out worker configuration
type FanoutConfig struct {
	Workers           int `env:"WORKERS" envDefault:"8"`              // Number of shard goroutines
	ChannelBufferSize int `env:"CHANNEL_BUFFER_SIZE" envDefault:"256"` // Per-shard queue size
}

type ChatConfig struct {
	DefaultLimit    int           `env:"DEFAULT_LIMIT" envDefault:"50"`
	MaxLimit        int           `env:"MAX_LIMIT" envDefault:"100"`
	DefaultPageSize int           `env:"DEFAULT_PAGE_SIZE" envDefault:"20"`
	MaxForwardDepth int           `env:"MAX_FORWARD_DEPTH" envDefault:"50"`
	MaxBodyLength   int           `env:"MAX_BODY_LENGTH" envDefault:"10000"`
	ExpiryInterval  time.Duration `env:"EXPIRY_INTERVAL" envDefault:"1m"`
	ExpiryBatchSize int           `env:"EXPIRY_BATCH_SIZE" envDefault:"200"`
}

type AuthConfig struct {
	JWTSecret string `env:"JWT_SECRET" envDefault:"change-me"`
	Issuer    string `env:"ISSUER" envDefault:"gochat"`
}

// EncryptionConfig enables at-rest encryption of message bodies when Key is set
type EncryptionConfig struct {
	Key string `env:"KEY"` // base64, 32 bytes
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`  // debug, info, warn, error
	Format string `env:"FORMAT" envDefault:"text"` // json, text
}

// LoadConfig reads .env (if present) and the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Database.Port == "" {
		cfg.Database.Port = defaultPort(cfg.Database.Driver)
	}

	return &cfg, nil
}

func defaultPort(driver string) string {
	if driver == "postgres" {
		return "5432"
	}
	return "3306"
}

func (cfg *Config) DSN() string {
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == "" {
		cfg.Database.Port = defaultPort(cfg.Database.Driver)
	}

	if cfg.Database.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			cfg.Database.Host,
			cfg.Database.Port,
			cfg.Database.Username,
			cfg.Database.Password,
			cfg.Database.DatabaseName,
			cfg.Database.SSLMode,
		)
	}

	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		cfg.Database.Username,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.DatabaseName,
	)
}

func (cfg *Config) GetMongoURI() string {
	if cfg.MongoDB.Username == "" {
		return fmt.Sprintf("mongodb://%s:%s", cfg.MongoDB.Host, cfg.MongoDB.Port)
	}
	return fmt.Sprintf("mongodb://%s:%s@%s:%s/?authSource=admin",
		url.QueryEscape(cfg.MongoDB.Username),
		url.QueryEscape(cfg.MongoDB.Password),
		cfg.MongoDB.Host,
		cfg.MongoDB.Port,
	)
}
