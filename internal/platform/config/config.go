package config

import (
	"fmt"
	"sort"
	"strings"
)

// Config holds the harness configuration.
type Config struct {
	Session    SessionConfig
	Logging    LoggingConfig
	Transcript TranscriptConfig

	// Controllers maps a registered controller name to its raw config
	// ([controllers.<name>]). Only listed controllers are built.
	Controllers map[string]map[string]any

	// Routes is the ordered routing table; the first match wins.
	Routes []RouteConfig
}

// SessionConfig holds the defaults every new session starts with.
type SessionConfig struct {
	Host       string
	HTTPS      bool
	RemoteAddr string
	Accept     string

	// MaxRedirects bounds redirect chains; 0 disables the bound.
	MaxRedirects int
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string
}

// TranscriptConfig selects where exchanges are recorded.
type TranscriptConfig struct {
	// Enabled turns transcript recording on.
	Enabled bool

	// Driver is one of memory, json, sqlite, mirror.
	Driver string

	// DataDir is required by the json, sqlite and mirror drivers.
	DataDir string

	// IncludeCookies keeps cookie headers in the mirror export.
	IncludeCookies bool
}

// RouteConfig is one routing table entry.
type RouteConfig struct {
	Pattern    string   `toml:"pattern"`
	Controller string   `toml:"controller"`
	Action     string   `toml:"action"`
	Methods    []string `toml:"methods"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Session: SessionConfig{
			Host:         "www.example.com",
			RemoteAddr:   "127.0.0.1",
			Accept:       "text/xml,application/xml,application/xhtml+xml,text/html;q=0.9,text/plain;q=0.8,image/png,*/*;q=0.5",
			MaxRedirects: 20,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Transcript: TranscriptConfig{
			Driver: "memory",
		},
		Controllers: map[string]map[string]any{},
	}
}

// BuildControllerConfig returns a copy of the raw config of a controller,
// or nil when the controller is not configured.
func (c *Config) BuildControllerConfig(name string) map[string]any {
	if c.Controllers == nil {
		return nil
	}
	raw, ok := c.Controllers[name]
	if !ok {
		return nil
	}
	result := make(map[string]any, len(raw))
	for k, v := range raw {
		result[k] = v
	}
	return result
}

// ControllerNames returns the configured controller names, sorted.
func (c *Config) ControllerNames() []string {
	names := make([]string, 0, len(c.Controllers))
	for name := range c.Controllers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Redacted renders the config for logging. Controller keys that look
// like secrets are masked.
func (c *Config) Redacted() string {
	var sb strings.Builder
	sb.WriteString("Config{\n")
	sb.WriteString(fmt.Sprintf("  Session: {Host: %q, HTTPS: %v, RemoteAddr: %q, MaxRedirects: %d},\n",
		c.Session.Host, c.Session.HTTPS, c.Session.RemoteAddr, c.Session.MaxRedirects))
	sb.WriteString(fmt.Sprintf("  Logging: {Level: %q},\n", c.Logging.Level))
	sb.WriteString(fmt.Sprintf("  Transcript: {Enabled: %v, Driver: %q, DataDir: %q},\n",
		c.Transcript.Enabled, c.Transcript.Driver, c.Transcript.DataDir))
	sb.WriteString("  Controllers: {\n")
	for _, name := range c.ControllerNames() {
		sb.WriteString(fmt.Sprintf("    %s: %s,\n", name, redactMap(c.Controllers[name])))
	}
	sb.WriteString("  },\n")
	sb.WriteString(fmt.Sprintf("  Routes: %d entries,\n", len(c.Routes)))
	sb.WriteString("}")
	return sb.String()
}

func redactMap(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := m[k]
		if isSecretKey(k) {
			v = "[REDACTED]"
		} else {
			v = redactValue(v)
		}
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func redactValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return redactMap(t)
	case []map[string]any:
		out := make([]string, len(t))
		for i, m := range t {
			out[i] = redactMap(m)
		}
		return "[" + strings.Join(out, " ") + "]"
	case []any:
		out := make([]string, len(t))
		for i, e := range t {
			out[i] = fmt.Sprint(redactValue(e))
		}
		return "[" + strings.Join(out, " ") + "]"
	default:
		return v
	}
}

func isSecretKey(k string) bool {
	k = strings.ToLower(k)
	return strings.Contains(k, "password") || strings.Contains(k, "secret") || strings.Contains(k, "token")
}
