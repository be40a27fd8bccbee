package config

import (
	"flag"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port       int        // Web panel HTTP/websocket port
	ConfigPath string     // Path to the YAML container/channel config
	DataDir    string     // Path to data directory (task DB)
	LogLevel   slog.Level // Parsed log level (debug, info, warn, error)
	Dev        bool       // Development mode
}

func Parse() *Config {
	cfg := &Config{}

	var logLevel string
	flag.IntVar(&cfg.Port, "port", 8374, "Web panel port")
	flag.StringVar(&cfg.ConfigPath, "config", "/config/ddc.yaml", "Path to container/channel config file")
	flag.StringVar(&cfg.DataDir, "data-dir", "./data", "Path to data directory (task DB)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.BoolVar(&cfg.Dev, "dev", false, "Development mode")
	flag.Parse()

	// Env vars override flags (if set)
	if v := os.Getenv("DDC_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := os.Getenv("DDC_CONFIG"); v != "" {
		cfg.ConfigPath = v
	}
	if v := os.Getenv("DDC_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("DDC_LOG_LEVEL"); v != "" {
		logLevel = v
	}
	if v := os.Getenv("DDC_DEV"); v == "1" || v == "true" {
		cfg.Dev = true
	}

	cfg.LogLevel = parseLogLevel(logLevel)

	return cfg
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
