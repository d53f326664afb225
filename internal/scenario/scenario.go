// Package scenario describes browser sessions as TOML files and replays
// them through a harness. A scenario declares named sessions and an
// ordered list of steps; every step may carry expectations about the
// response it produced.
package scenario

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/MahdiBaghbani/sessionkit/internal/platform/logutil"
)

// DefaultSession names the harness's default session.
const DefaultSession = "default"

// Scenario is a parsed scenario file.
type Scenario struct {
	Name     string        `toml:"name"`
	Sessions []SessionSpec `toml:"session"`
	Steps    []Step        `toml:"step"`
}

// SessionSpec declares a named session and its initial state.
type SessionSpec struct {
	Name    string            `toml:"name"`
	Host    string            `toml:"host"`
	HTTPS   bool              `toml:"https"`
	Cookies map[string]string `toml:"cookies"`
}

// Step is one request.
type Step struct {
	Session         string            `toml:"session"`
	Method          string            `toml:"method"`
	Path            string            `toml:"path"`
	Params          map[string]string `toml:"params"`
	Headers         map[string]string `toml:"headers"`
	XHR             bool              `toml:"xhr"`
	FollowRedirects bool              `toml:"follow_redirects"`
	Expect          *Expect           `toml:"expect"`
}

// Expect lists the checks applied to a step's final response.
type Expect struct {
	Status       int               `toml:"status"`
	Response     string            `toml:"response"`
	BodyContains []string          `toml:"body_contains"`
	Location     string            `toml:"location"`
	Cookies      map[string]string `toml:"cookies"`
	HasCookies   []string          `toml:"has_cookies"`
}

// Load reads and validates a scenario file. Unknown keys are logged.
func Load(path string, log *slog.Logger) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario %s: %w", path, err)
	}
	sc, err := Parse(string(data), logutil.NoopIfNil(log).With("path", path))
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return sc, nil
}

// Parse decodes and validates scenario text.
func Parse(data string, log *slog.Logger) (*Scenario, error) {
	log = logutil.NoopIfNil(log)

	var sc Scenario
	md, err := toml.Decode(data, &sc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		log.Warn("scenario contains undecoded keys", "keys", keys)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks session references, methods and paths.
func (sc *Scenario) Validate() error {
	names := map[string]bool{DefaultSession: true}
	for i, s := range sc.Sessions {
		if s.Name == "" {
			return fmt.Errorf("session %d: name is required", i)
		}
		if names[s.Name] {
			return fmt.Errorf("session %d: duplicate name %q", i, s.Name)
		}
		names[s.Name] = true
	}

	if len(sc.Steps) == 0 {
		return fmt.Errorf("scenario has no steps")
	}
	for i, st := range sc.Steps {
		if st.Session != "" && !names[st.Session] {
			return fmt.Errorf("step %d: unknown session %q", i+1, st.Session)
		}
		if !strings.HasPrefix(st.Path, "/") {
			return fmt.Errorf("step %d: path %q must begin with '/'", i+1, st.Path)
		}
		if st.XHR && st.FollowRedirects {
			return fmt.Errorf("step %d: xhr and follow_redirects cannot be combined", i+1)
		}
		switch strings.ToUpper(st.Method) {
		case "", http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
			http.MethodDelete, http.MethodHead, http.MethodOptions:
		default:
			return fmt.Errorf("step %d: unsupported method %q", i+1, st.Method)
		}
	}
	return nil
}

func (st *Step) method() string {
	if st.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(st.Method)
}

func (st *Step) session() string {
	if st.Session == "" {
		return DefaultSession
	}
	return st.Session
}

func (st *Step) params() url.Values {
	if len(st.Params) == 0 {
		return nil
	}
	v := make(url.Values, len(st.Params))
	for k, val := range st.Params {
		v.Set(k, val)
	}
	return v
}

func (st *Step) headers() http.Header {
	if len(st.Headers) == 0 {
		return nil
	}
	h := make(http.Header, len(st.Headers))
	for k, val := range st.Headers {
		h.Set(k, val)
	}
	return h
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
