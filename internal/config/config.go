// Package config manages goreflector daemon configuration using koanf/v2.
//
// Supports YAML files, environment variables, and compiled-in defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete goreflector configuration.
type Config struct {
	Admin    AdminConfig    `koanf:"admin"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Log      LogConfig      `koanf:"log"`
	Modules  []ModuleConfig `koanf:"modules"`
	Sessions SessionsConfig `koanf:"sessions"`
}

// AdminConfig holds the admin text-protocol server configuration (§6).
type AdminConfig struct {
	// Addr is the admin server listen address (e.g., ":8700").
	Addr string `koanf:"addr"`
	// MaxConns caps concurrent admin connections; 0 means
	// internal/admin.DefaultMaxConnections.
	MaxConns int `koanf:"max_conns"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// ModuleConfig declaratively describes one module instance to load at
// startup, the generalization of the donor's single compiled-in BFD
// parameter block into the reflector's class/name/param module-registry
// shape (§4.1).
type ModuleConfig struct {
	// Class is the module's wire class: "listener", "processor",
	// "sender", "aaa", "management", or "msg-interface".
	Class string `koanf:"class"`

	// Name identifies the module implementation to load, matching the
	// name a module.Initializer was registered under.
	Name string `koanf:"name"`

	// Params overrides the module's compiled-in parameter defaults,
	// applied via module.ParamSet.Set after Load and before Init.
	Params map[string]string `koanf:"params"`
}

// SessionsConfig holds defaults governing client-list membership (§4.6),
// the generalization of the donor's per-session BFD timer defaults into
// the reflector's stale-client reaping policy.
type SessionsConfig struct {
	// DefaultTimeout is how long a non-permanent client may go unseen
	// before the stale-client reaper evicts it; 0 or less disables client
	// eviction. ClientAdd does not read it.
	DefaultTimeout time.Duration `koanf:"default_timeout"`

	// ReapInterval controls how often the stale-client reaper sweeps
	// every registered listener's client list for expired entries.
	ReapInterval time.Duration `koanf:"reap_interval"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Admin: AdminConfig{
			Addr:     ":8700",
			MaxConns: 256,
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Sessions: SessionsConfig{
			DefaultTimeout: 0,
			ReapInterval:   30 * time.Second,
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for goreflector
// configuration. Variables are named GOREFLECTOR_<section>_<key>, e.g.,
// GOREFLECTOR_ADMIN_ADDR.
const envPrefix = "GOREFLECTOR_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (GOREFLECTOR_ prefix), and merges on top of
// DefaultConfig(). Missing fields inherit defaults.
//
// Environment variable mapping:
//
//	GOREFLECTOR_ADMIN_ADDR    -> admin.addr
//	GOREFLECTOR_METRICS_ADDR  -> metrics.addr
//	GOREFLECTOR_METRICS_PATH  -> metrics.path
//	GOREFLECTOR_LOG_LEVEL     -> log.level
//	GOREFLECTOR_LOG_FORMAT    -> log.format
//
// Uses koanf/v2 with file + env providers and YAML parser. Module
// instances and their per-module params are only configurable via the
// YAML file; env overrides only reach the flat scalar sections, the same
// restriction the donor's own env provider has on its bfd.* defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms GOREFLECTOR_ADMIN_ADDR -> admin.addr.
// Strips the GOREFLECTOR_ prefix, lowercases, and replaces _ with .
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "_", ".")
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"admin.addr":              defaults.Admin.Addr,
		"admin.max_conns":         defaults.Admin.MaxConns,
		"metrics.addr":            defaults.Metrics.Addr,
		"metrics.path":            defaults.Metrics.Path,
		"log.level":               defaults.Log.Level,
		"log.format":              defaults.Log.Format,
		"sessions.default_timeout": defaults.Sessions.DefaultTimeout.String(),
		"sessions.reap_interval":   defaults.Sessions.ReapInterval.String(),
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrEmptyAdminAddr indicates the admin listen address is empty.
	ErrEmptyAdminAddr = errors.New("admin.addr must not be empty")

	// ErrInvalidReapInterval indicates the reap interval is not positive.
	ErrInvalidReapInterval = errors.New("sessions.reap_interval must be > 0")

	// ErrInvalidModuleClass indicates a module entry names an unrecognized class.
	ErrInvalidModuleClass = errors.New("module class is invalid")

	// ErrEmptyModuleName indicates a module entry has no name.
	ErrEmptyModuleName = errors.New("module name must not be empty")

	// ErrDuplicateModuleKey indicates two module entries share the same (class, name) key.
	ErrDuplicateModuleKey = errors.New("duplicate module class/name")
)

// validModuleClasses lists the recognized module class strings (§4.1).
var validModuleClasses = map[string]bool{
	"listener":      true,
	"processor":     true,
	"sender":        true,
	"aaa":           true,
	"management":    true,
	"msg-interface": true,
}

// Validate checks the configuration for logical errors.
// Returns the first validation error encountered.
func Validate(cfg *Config) error {
	if cfg.Admin.Addr == "" {
		return ErrEmptyAdminAddr
	}

	if cfg.Sessions.ReapInterval <= 0 {
		return ErrInvalidReapInterval
	}

	return validateModules(cfg.Modules)
}

// validateModules checks each declarative module entry for correctness.
func validateModules(modules []ModuleConfig) error {
	seen := make(map[string]struct{}, len(modules))

	for i, mc := range modules {
		if !validModuleClasses[mc.Class] {
			return fmt.Errorf("modules[%d] class %q: %w", i, mc.Class, ErrInvalidModuleClass)
		}

		if mc.Name == "" {
			return fmt.Errorf("modules[%d]: %w", i, ErrEmptyModuleName)
		}

		key := mc.Class + "/" + mc.Name
		if _, dup := seen[key]; dup {
			return fmt.Errorf("modules[%d] key %q: %w", i, key, ErrDuplicateModuleKey)
		}
		seen[key] = struct{}{}
	}

	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
