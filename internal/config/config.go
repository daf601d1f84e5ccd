package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type StoreBackend string

const (
	StorePostgres StoreBackend = "postgres"
	StoreLocal    StoreBackend = "local"
)

type Config struct {
	ServerPort string

	StoreBackend  StoreBackend
	LocalStoreDir string

	DBDriver   string
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string

	AWSRegion          string
	OCREngine          string
	TesseractLanguage  string
	SQSCaptureQueueURL string
	IoTMQTTEndpoint    string
	IoTTopicPrefix     string

	AMQPURL      string
	AMQPExchange string

	JWTSecret          string
	JWTExpirationHours time.Duration
	AdminUsername      string
	AdminPassword      string

	LogRefreshInterval time.Duration
	LogLevel           string
	LogPretty          bool
}

// Load reads .env (if present) and then the process environment.
func Load() *Config {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("component", "CONFIG").Msg("could not load .env file")
	}

	dbPort, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))
	jwtExpHours, _ := strconv.Atoi(getEnv("JWT_EXPIRATION_HOURS", "24"))
	refresh, err := time.ParseDuration(getEnv("LOG_REFRESH_INTERVAL", "1m"))
	if err != nil {
		log.Warn().Err(err).Str("component", "CONFIG").Msg("bad LOG_REFRESH_INTERVAL, using 1m")
		refresh = time.Minute
	}
	pretty, _ := strconv.ParseBool(getEnv("LOG_PRETTY", "false"))

	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),

		StoreBackend:  StoreBackend(strings.ToLower(getEnv("STORE_BACKEND", string(StoreLocal)))),
		LocalStoreDir: getEnv("LOCAL_STORE_DIR", "./data"),

		DBDriver:   getEnv("DB_DRIVER", "pgx"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     dbPort,
		DBUser:     getEnv("DB_USER", "smartpark"),
		DBPassword: getSecret("DB_PASSWORD", "smartpark"),
		DBName:     getEnv("DB_NAME", "smartpark"),
		DBSslMode:  getEnv("DB_SSLMODE", "disable"),

		AWSRegion:          getEnv("AWS_REGION", "ap-southeast-1"),
		OCREngine:          getEnv("OCR_ENGINE", "tesseract"),
		TesseractLanguage:  getEnv("TESSERACT_LANG", "eng"),
		SQSCaptureQueueURL: getEnv("SQS_CAPTURE_QUEUE_URL", ""),
		IoTMQTTEndpoint:    getEnv("IOT_MQTT_ENDPOINT", ""),
		IoTTopicPrefix:     getEnv("IOT_TOPIC_PREFIX", "smartpark/gates"),

		AMQPURL:      getSecret("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "smartpark.entries"),

		JWTSecret:          getSecret("JWT_SECRET", "change-me-smartpark-jwt-secret"),
		JWTExpirationHours: time.Duration(jwtExpHours) * time.Hour,
		AdminUsername:      getEnv("ADMIN_USERNAME", ""),
		AdminPassword:      getSecret("ADMIN_PASSWORD", ""),

		LogRefreshInterval: refresh,
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogPretty:          pretty,
	}
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Debug().Str("component", "CONFIG").Str("key", key).Str("default", fallback).Msg("env not set, using default")
	return fallback
}

// getSecret is getEnv without echoing the default.
func getSecret(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Debug().Str("component", "CONFIG").Str("key", key).Msg("env not set, using default")
	return fallback
}
