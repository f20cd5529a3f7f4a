package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/trogers1052/trade-ledger/internal/accounting"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Kafka      KafkaConfig
	Redis      RedisConfig
	Accounting AccountingConfig
	Ledger     LedgerConfig
	Log        LogConfig
	// RefreshSchedule is the cron expression for report refreshes and --watch
	RefreshSchedule string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// Addr returns host:port
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MigrationsPath string
}

// KafkaConfig holds Kafka configuration
type KafkaConfig struct {
	Enabled     bool
	Brokers     []string
	Topic       string // TRADE_RECORDED events are published here
	InputTopic  string // TRADE_DETECTED events are consumed from here
	GroupID     string
	EventSource string
}

// RedisConfig holds report cache configuration
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// AccountingConfig selects the cost policy and fee schedule
type AccountingConfig struct {
	Policy  string
	FeeRate string
	MinFee  string
	TaxRate string
}

// LedgerConfig holds the CSV ledger location used in file mode
type LedgerConfig struct {
	File string
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string
	Pretty bool
}

// Load reads configuration from environment variables, after loading a
// .env file when one exists
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			DBName:         getEnv("DB_NAME", "tradeledger"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MigrationsPath: getEnv("DB_MIGRATIONS_PATH", "db/migrations"),
		},
		Kafka: KafkaConfig{
			Enabled:     getEnvAsBool("KAFKA_ENABLED", true),
			Brokers:     getEnvAsList("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:       getEnv("KAFKA_TOPIC", "trade-ledger-events"),
			InputTopic:  getEnv("KAFKA_INPUT_TOPIC", "trading.orders"),
			GroupID:     getEnv("KAFKA_GROUP_ID", "trade-ledger"),
			EventSource: getEnv("KAFKA_EVENT_SOURCE", "trade-ledger"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			TTL:      getEnvAsDuration("REDIS_REPORT_TTL", 5*time.Minute),
		},
		Accounting: AccountingConfig{
			Policy:  getEnv("COST_POLICY", accounting.PolicyFeeInclusive.String()),
			FeeRate: getEnv("FEE_RATE", accounting.DefaultFeeRate.String()),
			MinFee:  getEnv("MIN_FEE", accounting.DefaultMinFee.String()),
			TaxRate: getEnv("TAX_RATE", accounting.DefaultTaxRate.String()),
		},
		Ledger: LedgerConfig{
			File: getEnv("LEDGER_FILE", "stock_trades.csv"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: getEnvAsBool("LOG_PRETTY", true),
		},
		RefreshSchedule: getEnv("REFRESH_SCHEDULE", "@every 1m"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that settings parse
func (c *Config) Validate() error {
	if _, err := c.Accounting.CostPolicy(); err != nil {
		return err
	}
	if _, err := c.Accounting.FeeSchedule(); err != nil {
		return err
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when Kafka is enabled")
	}
	if c.RefreshSchedule == "" {
		return fmt.Errorf("REFRESH_SCHEDULE is required")
	}
	return nil
}

// CostPolicy parses the configured policy
func (a AccountingConfig) CostPolicy() (accounting.CostPolicy, error) {
	return accounting.ParseCostPolicy(a.Policy)
}

// FeeSchedule parses the configured rates
func (a AccountingConfig) FeeSchedule() (accounting.FeeSchedule, error) {
	var f accounting.FeeSchedule
	var err error
	if f.FeeRate, err = decimal.NewFromString(a.FeeRate); err != nil {
		return f, fmt.Errorf("invalid FEE_RATE %q: %w", a.FeeRate, err)
	}
	if f.MinFee, err = decimal.NewFromString(a.MinFee); err != nil {
		return f, fmt.Errorf("invalid MIN_FEE %q: %w", a.MinFee, err)
	}
	if f.TaxRate, err = decimal.NewFromString(a.TaxRate); err != nil {
		return f, fmt.Errorf("invalid TAX_RATE %q: %w", a.TaxRate, err)
	}
	if err := f.Validate(); err != nil {
		return f, err
	}
	return f, nil
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

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
