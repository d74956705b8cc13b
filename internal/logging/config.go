// Package logging configures the structured logger shared by the CLI and the
// build pipeline.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
)

const (
	EnvLogLevel     = "RIVET_LOG_LEVEL"
	EnvLogTimestamp = "RIVET_LOG_TIMESTAMP"
	EnvLogNoColor   = "RIVET_LOG_NOCOLOR"
	EnvLogFormat    = "RIVET_LOG_FORMAT"
)

// LevelOff silences every message, fatal included.
const LevelOff = log.FatalLevel + 1

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

// Config describes one logger.
type Config struct {
	Level     log.Level
	Timestamp bool
	NoColor   bool
	Formatter log.Formatter
	Prefix    string
}

// DefaultConfig returns the baseline for profile before env overrides.
func DefaultConfig(profile Profile) Config {
	cfg := Config{Level: log.InfoLevel, Timestamp: true, Formatter: log.TextFormatter}
	if profile == ProfileTest {
		cfg.Level = log.DebugLevel
		cfg.Timestamp = false
		cfg.NoColor = true
	}
	return cfg
}

// FromEnv applies RIVET_LOG_* overrides to the profile defaults.
func FromEnv(profile Profile) Config {
	cfg := DefaultConfig(profile)
	ApplyEnv(&cfg, os.Getenv)
	return cfg
}

// ApplyEnv overrides cfg from getenv. Unparsable values are ignored.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if lvl, ok := ParseLevel(getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	if v, ok := parseBool(getenv(EnvLogTimestamp)); ok {
		cfg.Timestamp = v
	}
	if v, ok := parseBool(getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
	if f, ok := ParseFormatter(getenv(EnvLogFormat)); ok {
		cfg.Formatter = f
	}
}

// New builds a logger writing to w.
func New(w io.Writer, cfg Config) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		Level:           cfg.Level,
		ReportTimestamp: cfg.Timestamp,
		TimeFormat:      time.TimeOnly,
		Formatter:       cfg.Formatter,
		Prefix:          cfg.Prefix,
	})
	if cfg.NoColor {
		logger.SetColorProfile(termenv.Ascii)
	}
	return logger
}

// ParseLevel accepts the usual level names plus "off".
func ParseLevel(raw string) (log.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return log.InfoLevel, false
	case "debug", "trace":
		return log.DebugLevel, true
	case "info":
		return log.InfoLevel, true
	case "warn", "warning":
		return log.WarnLevel, true
	case "error":
		return log.ErrorLevel, true
	case "off", "none", "disabled", "quiet":
		return LevelOff, true
	default:
		return log.InfoLevel, false
	}
}

// ParseFormatter maps text, json and logfmt to charmbracelet formatters.
func ParseFormatter(raw string) (log.Formatter, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "text":
		return log.TextFormatter, true
	case "json":
		return log.JSONFormatter, true
	case "logfmt":
		return log.LogfmtFormatter, true
	default:
		return log.TextFormatter, false
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
