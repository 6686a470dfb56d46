package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Kafka     KafkaConfig     `toml:"kafka"`
	Redis     RedisConfig     `toml:"redis"`
	Portfolio PortfolioConfig `toml:"portfolio"`
	Snapshot  SnapshotConfig  `toml:"snapshot"`
	Log       LogConfig       `toml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string `toml:"port"`
	Host string `toml:"host"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Enabled  bool   `toml:"enabled"`
	Host     string `toml:"host"`
	Port     string `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	DBName   string `toml:"dbname"`
	SSLMode  string `toml:"sslmode"`
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Enabled    bool     `toml:"enabled"`
	Brokers    []string `toml:"brokers"`
	Topic      string   `toml:"topic"`
	PriceTopic string   `toml:"price_topic"`
	GroupID    string   `toml:"group_id"`
}

// RedisConfig holds the price cache connection
type RedisConfig struct {
	Enabled  bool   `toml:"enabled"`
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

// PortfolioConfig holds the simulated account parameters
type PortfolioConfig struct {
	InitialCapital string `toml:"initial_capital"`
	CommissionRate string `toml:"commission_rate"`
	TaxRate        string `toml:"tax_rate"`
	Currency       string `toml:"currency"`
	Timezone       string `toml:"timezone"`
}

// SnapshotConfig holds the asset history job schedule (cron with seconds)
type SnapshotConfig struct {
	Schedule string `toml:"schedule"`
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

// Defaults returns the built-in configuration
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: "8080",
			Host: "0.0.0.0",
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    "5432",
			User:    "postgres",
			DBName:  "papertrade",
			SSLMode: "disable",
		},
		Kafka: KafkaConfig{
			Brokers:    []string{"localhost:9092"},
			Topic:      "portfolio-events",
			PriceTopic: "stock-prices",
			GroupID:    "papertrade",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Portfolio: PortfolioConfig{
			InitialCapital: "100000000",
			CommissionRate: "0.00015",
			TaxRate:        "0.002",
			Currency:       "KRW",
			Timezone:       "UTC",
		},
		Snapshot: SnapshotConfig{
			Schedule: "0 0 18 * * *",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from defaults, an optional TOML file named by
// PAPERTRADE_CONFIG, a .env file if present, and environment variables,
// in that order of precedence (last wins).
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("PAPERTRADE_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	}

	_ = godotenv.Load()

	applyEnv(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnv("SERVER_PORT", cfg.Server.Port)
	cfg.Server.Host = getEnv("SERVER_HOST", cfg.Server.Host)

	cfg.Database.Enabled = getEnvBool("DB_ENABLED", cfg.Database.Enabled)
	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnv("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.DBName = getEnv("DB_NAME", cfg.Database.DBName)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)

	cfg.Kafka.Enabled = getEnvBool("KAFKA_ENABLED", cfg.Kafka.Enabled)
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
	cfg.Kafka.Topic = getEnv("KAFKA_TOPIC", cfg.Kafka.Topic)
	cfg.Kafka.PriceTopic = getEnv("KAFKA_PRICE_TOPIC", cfg.Kafka.PriceTopic)
	cfg.Kafka.GroupID = getEnv("KAFKA_GROUP_ID", cfg.Kafka.GroupID)

	cfg.Redis.Enabled = getEnvBool("REDIS_ENABLED", cfg.Redis.Enabled)
	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvInt("REDIS_DB", cfg.Redis.DB)

	cfg.Portfolio.InitialCapital = getEnv("PORTFOLIO_INITIAL_CAPITAL", cfg.Portfolio.InitialCapital)
	cfg.Portfolio.CommissionRate = getEnv("PORTFOLIO_COMMISSION_RATE", cfg.Portfolio.CommissionRate)
	cfg.Portfolio.TaxRate = getEnv("PORTFOLIO_TAX_RATE", cfg.Portfolio.TaxRate)
	cfg.Portfolio.Currency = getEnv("PORTFOLIO_CURRENCY", cfg.Portfolio.Currency)
	cfg.Portfolio.Timezone = getEnv("PORTFOLIO_TIMEZONE", cfg.Portfolio.Timezone)

	cfg.Snapshot.Schedule = getEnv("SNAPSHOT_SCHEDULE", cfg.Snapshot.Schedule)

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Pretty = getEnvBool("LOG_PRETTY", cfg.Log.Pretty)
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server port is required"))
	}
	if _, err := c.Portfolio.Options(); err != nil {
		errs = append(errs, err)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		errs = append(errs, errors.New("kafka brokers are required when kafka is enabled"))
	}
	return errors.Join(errs...)
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

// Address returns the HTTP listen address
func (s *ServerConfig) Address() string {
	return s.Host + ":" + s.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
