package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database    DatabaseConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Analysis    AnalysisConfig
	Forecast    ForecastConfig
	Simulator   SimulatorConfig
	Aggregation AggregationConfig
	Metrics     MetricsConfig
	SMTP        SMTPConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type KafkaConfig struct {
	Brokers        []string
	TopicReadings  string
	TopicAlerts    string
	TopicForecasts string
	NumPartitions  int
}

// AnalysisConfig holds the tunables of the anomaly scorer and the per-node
// sliding window.
type AnalysisConfig struct {
	WindowSize       int
	AnomalyThreshold float64
	AlertDedupWindow time.Duration
}

type ForecastConfig struct {
	Horizons        []int
	RefreshInterval time.Duration
}

type SimulatorConfig struct {
	Enabled  bool
	Nodes    []string
	Interval time.Duration
}

type AggregationConfig struct {
	HourlyDelay time.Duration
	DailyTime   string
}

type MetricsConfig struct {
	Port int
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "sensornet_user"),
			Password: getEnv("DB_PASSWORD", "sensornet_pass"),
			DBName:   getEnv("DB_NAME", "sensornet_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Brokers:        strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			TopicReadings:  getEnv("KAFKA_TOPIC_READINGS", "sensornet.readings.raw"),
			TopicAlerts:    getEnv("KAFKA_TOPIC_ALERTS", "sensornet.alerts"),
			TopicForecasts: getEnv("KAFKA_TOPIC_FORECASTS", "sensornet.forecasts"),
			NumPartitions:  getEnvAsInt("KAFKA_NUM_PARTITIONS", 10),
		},
		Analysis: AnalysisConfig{
			WindowSize:       getEnvAsInt("ANALYSIS_WINDOW_SIZE", 60),
			AnomalyThreshold: getEnvAsFloat("ANALYSIS_ANOMALY_THRESHOLD", 0.65),
			AlertDedupWindow: getEnvAsDuration("ALERT_DEDUP_WINDOW", 20*time.Minute),
		},
		Forecast: ForecastConfig{
			Horizons:        getEnvAsIntSlice("FORECAST_HORIZONS", []int{3, 6, 12, 24}),
			RefreshInterval: getEnvAsDuration("FORECAST_REFRESH_INTERVAL", 15*time.Minute),
		},
		Simulator: SimulatorConfig{
			Enabled:  getEnvAsBool("SIMULATOR_ENABLED", true),
			Nodes:    strings.Split(getEnv("SIMULATOR_NODES", "node-001,node-002,node-003"), ","),
			Interval: getEnvAsDuration("SIMULATOR_INTERVAL", 30*time.Second),
		},
		Aggregation: AggregationConfig{
			HourlyDelay: getEnvAsDuration("AGGREGATION_HOURLY_DELAY", 5*time.Minute),
			DailyTime:   getEnv("AGGREGATION_DAILY_TIME", "00:05"),
		},
		Metrics: MetricsConfig{
			Port: getEnvAsInt("METRICS_PORT", 9090),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "sensornet-server@example.com"),
			To:       getEnv("SMTP_TO", "admin@example.com"),
		},
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsIntSlice(key string, defaultValue []int) []int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	var values []int
	for _, part := range strings.Split(valueStr, ",") {
		value, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return defaultValue
		}
		values = append(values, value)
	}
	return values
}
