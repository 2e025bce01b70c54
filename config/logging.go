package config

import (
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/linesmerrill/ambulance-dispatch-api/logging"
)

// setLogger builds the process logger for env, teeing to LOG_FILE when set
func setLogger(env string) (*zap.Logger, error) {
	return logging.New(env, logging.FileOptions{
		Path:       os.Getenv("LOG_FILE"),
		MaxSizeMB:  envInt("LOG_FILE_MAX_SIZE_MB", 50),
		MaxBackups: envInt("LOG_FILE_MAX_BACKUPS", 5),
		MaxAgeDays: envInt("LOG_FILE_MAX_AGE_DAYS", 28),
	})
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}
