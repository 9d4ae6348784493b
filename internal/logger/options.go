package logger

import (
	"io"
	"os"
	"strconv"
)

// Options configures a Logger. Zero values fall back to the defaults used by DefaultOptions.
type Options struct {
	Level       string    // debug, info, warn, error
	Format      string    // json, text
	Output      io.Writer // explicit destination, overrides file settings
	ServiceName string

	// Environment selects the output: "local" logs to stdout only,
	// anything else also writes to LogFile through lumberjack.
	Environment string
	LogFile     string
	LogFileOnly bool

	MaxSize    int // MB before rotation
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Level:       "info",
		Format:      "json",
		ServiceName: "layoffwatch",
		Environment: "local",
		LogFile:     "/var/log/layoffwatch/app.log",
		MaxSize:     100,
		MaxBackups:  7,
		MaxAge:      30,
		Compress:    true,
	}
}

// OptionsFromEnv reads LOG_* / APP_ENV / SERVICE_NAME on top of DefaultOptions.
func OptionsFromEnv() Options {
	d := DefaultOptions()
	return Options{
		Level:       envString("LOG_LEVEL", d.Level),
		Format:      envString("LOG_FORMAT", d.Format),
		ServiceName: envString("SERVICE_NAME", d.ServiceName),
		Environment: envString("APP_ENV", d.Environment),
		LogFile:     envString("LOG_FILE", d.LogFile),
		LogFileOnly: envBool("LOG_FILE_ONLY", d.LogFileOnly),
		MaxSize:     envInt("LOG_MAX_SIZE", d.MaxSize),
		MaxBackups:  envInt("LOG_MAX_BACKUPS", d.MaxBackups),
		MaxAge:      envInt("LOG_MAX_AGE", d.MaxAge),
		Compress:    envBool("LOG_COMPRESS", d.Compress),
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	i, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return i
}
