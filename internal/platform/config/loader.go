// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/MahdiBaghbani/sessionkit/internal/platform/hostport"
	"github.com/MahdiBaghbani/sessionkit/internal/platform/logutil"
)

// LoaderOptions controls how configuration is loaded.
type LoaderOptions struct {
	// ConfigPath is the path to a TOML config file (optional).
	// If provided but file is missing or invalid, loading fails.
	ConfigPath string

	// FlagOverrides are CLI flag values that override config file values.
	FlagOverrides FlagOverrides

	// Logger is used for warning messages (e.g., undecoded keys).
	// If nil, slog.Default() is used.
	Logger *slog.Logger
}

// FlagOverrides holds CLI flag values that override config file values.
// Nil or empty means unset.
type FlagOverrides struct {
	Host              *string
	HTTPS             *string // "true", "false", or "" (unset)
	MaxRedirects      *string
	LoggingLevel      *string
	TranscriptDriver  *string
	TranscriptDataDir *string
}

// fileConfig mirrors Config but with pointer fields to detect presence.
type fileConfig struct {
	Session     *sessionFileConfig        `toml:"session"`
	Logging     *loggingFileConfig        `toml:"logging"`
	Transcript  *transcriptFileConfig     `toml:"transcript"`
	Controllers map[string]map[string]any `toml:"controllers"`
	Routes      []RouteConfig             `toml:"routes"`
}

type sessionFileConfig struct {
	Host         string `toml:"host"`
	HTTPS        *bool  `toml:"https"`
	RemoteAddr   string `toml:"remote_addr"`
	Accept       string `toml:"accept"`
	MaxRedirects *int   `toml:"max_redirects"`
}

type loggingFileConfig struct {
	Level string `toml:"level"`
}

type transcriptFileConfig struct {
	Enabled *bool  `toml:"enabled"`
	Driver  string `toml:"driver"`
	DataDir string `toml:"data_dir"`

	IncludeCookies *bool `toml:"include_cookies"`
}

// Load loads configuration with the following precedence:
//  1. Start from DefaultConfig
//  2. Overlay TOML config file values
//  3. Overlay CLI flags
//  4. Validate
//
// If ConfigPath is provided but the file is missing, unreadable, or invalid TOML,
// Load returns an error (fail fast). Unknown/undecoded TOML keys produce a warning
// but do not fail the load.
func Load(opts LoaderOptions) (*Config, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cfg := DefaultConfig()

	if opts.ConfigPath != "" {
		data, err := os.ReadFile(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigPath, err)
		}
		var fc fileConfig
		md, err := toml.Decode(string(data), &fc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", opts.ConfigPath, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			logger.Warn("config file contains undecoded keys", "path", opts.ConfigPath, "keys", keys)
		}
		overlayFileConfig(cfg, &fc)
	}

	if err := overlayFlags(cfg, opts.FlagOverrides); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overlayFileConfig applies TOML file values onto cfg.
func overlayFileConfig(cfg *Config, fc *fileConfig) {
	if fc.Session != nil {
		if fc.Session.Host != "" {
			cfg.Session.Host = fc.Session.Host
		}
		if fc.Session.HTTPS != nil {
			cfg.Session.HTTPS = *fc.Session.HTTPS
		}
		if fc.Session.RemoteAddr != "" {
			cfg.Session.RemoteAddr = fc.Session.RemoteAddr
		}
		if fc.Session.Accept != "" {
			cfg.Session.Accept = fc.Session.Accept
		}
		if fc.Session.MaxRedirects != nil {
			cfg.Session.MaxRedirects = *fc.Session.MaxRedirects
		}
	}

	if fc.Logging != nil && fc.Logging.Level != "" {
		cfg.Logging.Level = fc.Logging.Level
	}

	if fc.Transcript != nil {
		if fc.Transcript.Enabled != nil {
			cfg.Transcript.Enabled = *fc.Transcript.Enabled
		}
		if fc.Transcript.Driver != "" {
			cfg.Transcript.Driver = fc.Transcript.Driver
		}
		if fc.Transcript.DataDir != "" {
			cfg.Transcript.DataDir = fc.Transcript.DataDir
		}
		if fc.Transcript.IncludeCookies != nil {
			cfg.Transcript.IncludeCookies = *fc.Transcript.IncludeCookies
		}
	}

	for name, raw := range fc.Controllers {
		if raw == nil {
			raw = map[string]any{}
		}
		cfg.Controllers[name] = raw
	}

	if len(fc.Routes) > 0 {
		cfg.Routes = append([]RouteConfig(nil), fc.Routes...)
	}
}

// overlayFlags applies CLI flag values onto cfg.
func overlayFlags(cfg *Config, f FlagOverrides) error {
	if f.Host != nil && *f.Host != "" {
		cfg.Session.Host = *f.Host
	}
	if f.HTTPS != nil && *f.HTTPS != "" {
		// Parse "true" or "false" string (only apply when explicitly set)
		cfg.Session.HTTPS = *f.HTTPS == "true"
	}
	if f.MaxRedirects != nil && *f.MaxRedirects != "" {
		n, err := strconv.Atoi(*f.MaxRedirects)
		if err != nil {
			return fmt.Errorf("invalid max redirects %q: %w", *f.MaxRedirects, err)
		}
		cfg.Session.MaxRedirects = n
	}
	if f.LoggingLevel != nil && *f.LoggingLevel != "" {
		cfg.Logging.Level = *f.LoggingLevel
	}
	if f.TranscriptDriver != nil && *f.TranscriptDriver != "" {
		cfg.Transcript.Driver = *f.TranscriptDriver
		cfg.Transcript.Enabled = true
	}
	if f.TranscriptDataDir != nil && *f.TranscriptDataDir != "" {
		cfg.Transcript.DataDir = *f.TranscriptDataDir
	}
	return nil
}

// Validate checks enum-like fields and the routing table.
func Validate(cfg *Config) error {
	if _, err := hostport.Canonical(cfg.Session.Host, cfg.Session.HTTPS); err != nil {
		return fmt.Errorf("invalid session.host: %w", err)
	}
	if cfg.Session.MaxRedirects < 0 {
		return fmt.Errorf("invalid session.max_redirects %d: must be >= 0", cfg.Session.MaxRedirects)
	}

	if _, err := logutil.ParseLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("invalid logging.level: %w", err)
	}

	switch cfg.Transcript.Driver {
	case "memory":
	case "json", "sqlite", "mirror":
		if cfg.Transcript.Enabled && cfg.Transcript.DataDir == "" {
			return fmt.Errorf("transcript.data_dir is required for driver %q", cfg.Transcript.Driver)
		}
	default:
		return fmt.Errorf("invalid transcript.driver %q: must be one of memory, json, sqlite, mirror", cfg.Transcript.Driver)
	}

	for i, r := range cfg.Routes {
		if r.Pattern == "" {
			return fmt.Errorf("routes[%d]: pattern is required", i)
		}
		if r.Controller == "" {
			return fmt.Errorf("routes[%d] %s: controller is required", i, r.Pattern)
		}
		if _, ok := cfg.Controllers[r.Controller]; !ok {
			return fmt.Errorf("routes[%d] %s: controller %q is not configured under [controllers]", i, r.Pattern, r.Controller)
		}
	}
	return nil
}
