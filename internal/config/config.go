package config

import (
	"os"
	"strconv"

	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Kafka    KafkaConfig
	Redis    RedisConfig
	Advisor  AdvisorConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Brokers       []string
	IngestTopic   string
	PublishTopic  string
	ConsumerGroup string
}

// RedisConfig holds the quote-cache configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AdvisorConfig holds the rebalancing knobs
type AdvisorConfig struct {
	StrategyID        string
	RankThreshold     int
	MaxHoldings       int
	MonthlySalesLimit decimal.Decimal
	MaterialityFloor  decimal.Decimal
	CostBasisMethod   string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "portfolioadvisor"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Kafka: KafkaConfig{
			Brokers:       []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			IngestTopic:   getEnv("KAFKA_INGEST_TOPIC", "ledger-events"),
			PublishTopic:  getEnv("KAFKA_PUBLISH_TOPIC", "recommendation-events"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "portfolio-advisor"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Advisor: AdvisorConfig{
			StrategyID:        getEnv("ADVISOR_STRATEGY_ID", "default"),
			RankThreshold:     getEnvInt("ADVISOR_RANK_THRESHOLD", 30),
			MaxHoldings:       getEnvInt("ADVISOR_MAX_HOLDINGS", 20),
			MonthlySalesLimit: getEnvDecimal("ADVISOR_MONTHLY_SALES_LIMIT", "20000"),
			MaterialityFloor:  getEnvDecimal("ADVISOR_MATERIALITY_FLOOR", "100"),
			CostBasisMethod:   getEnv("ADVISOR_COST_BASIS", "average"),
		},
	}
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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

func getEnvDecimal(key, defaultValue string) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	d, _ := decimal.NewFromString(defaultValue)
	return d
}
