package config

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

// Config holds the project config values
type Config struct {
	URL          string
	DatabaseName string
	BaseURL      string
	Port         string

	// StoreDriver selects the entity store, "mongo" or "memory"
	StoreDriver     string
	LockWaitTimeout time.Duration
	QueryTimeout    time.Duration
	RequestTimeout  time.Duration

	RedisURL     string
	RedisChannel string

	MQTTBrokerURL     string
	MQTTClientID      string
	MQTTUsername      string
	MQTTPassword      string
	MQTTLocationTopic string

	JWTSecret   string
	WSTicketTTL time.Duration

	LogEnv        string
	LogFile       string
	FleetSchedule string

	// SeedPassword, when set, seeds a demo fleet into the memory store
	SeedPassword string
}

// New sets up all config related services
func New() *Config {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	conf := &Config{
		URL:          os.Getenv("DB_URI"),
		DatabaseName: getEnv("DB_NAME", "ambulance-dispatch"),
		BaseURL:      getEnv("BASE_URL", "/api/v1"),
		Port:         getEnv("PORT", "8080"),

		StoreDriver:     getEnv("STORE_DRIVER", "mongo"),
		LockWaitTimeout: getEnvAsDuration("LOCK_WAIT_TIMEOUT", 5*time.Second),
		QueryTimeout:    getEnvAsDuration("QUERY_TIMEOUT", 10*time.Second),
		RequestTimeout:  getEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second),

		RedisURL:     os.Getenv("REDIS_URL"),
		RedisChannel: getEnv("REDIS_CHANNEL", "ambulance-dispatch:notifications"),

		MQTTBrokerURL:     os.Getenv("MQTT_BROKER_URL"),
		MQTTClientID:      getEnv("MQTT_CLIENT_ID", "ambulance-dispatch-api"),
		MQTTUsername:      os.Getenv("MQTT_USERNAME"),
		MQTTPassword:      os.Getenv("MQTT_PASSWORD"),
		MQTTLocationTopic: getEnv("MQTT_LOCATION_TOPIC", "ambulances/+/location"),

		JWTSecret:   os.Getenv("JWT_SECRET"),
		WSTicketTTL: getEnvAsDuration("WS_TICKET_TTL", time.Minute),

		LogEnv:        getEnv("LOG_ENV", "production"),
		LogFile:       os.Getenv("LOG_FILE"),
		FleetSchedule: getEnv("FLEET_SCHEDULE", "@every 30s"),

		SeedPassword: os.Getenv("SEED_PASSWORD"),
	}

	//setup zap logger and replace default logger
	logger, err := setLogger(conf.LogEnv)
	if err != nil {
		logger = zap.NewExample()
	}
	_ = zap.ReplaceGlobals(logger)

	return conf
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	// bare numbers are seconds
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	zap.S().Errorw(message, "status", httpStatusCode, "error", err)

	detail := ""
	if err != nil {
		detail = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatusCode)
	_ = json.NewEncoder(w).Encode(models.ErrorMessageResponse{
		Response: models.MessageError{Message: message, Error: detail},
	})
}

// StatusFromError maps an error kind onto an http status code
func StatusFromError(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidState),
		errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
