// Package jar holds the cookie state of one simulated client.
//
// The jar is deliberately simpler than a browser's: there is no expiry
// tracking, no domain matching and no path scoping. A cookie that the
// target clears keeps its name in the jar with an empty value, so tests
// can observe the deletion.
package jar

import (
	"net/http"
	"sort"
	"strings"
	"time"
)

// DefaultPath is used for cookies that do not name a path.
const DefaultPath = "/"

// Cookie is a single jar entry.
type Cookie struct {
	Name  string
	Value string
	Path  string
}

// Jar maps cookie names to their current state.
// A Jar is owned by one session and is not safe for concurrent use.
type Jar struct {
	cookies map[string]*Cookie
	now     func() time.Time
}

// New creates an empty jar.
func New() *Jar {
	return &Jar{
		cookies: make(map[string]*Cookie),
		now:     time.Now,
	}
}

// Apply merges the Set-Cookie directives of a response header into the jar.
// Directives that fail to parse are skipped.
func (j *Jar) Apply(h http.Header) {
	for _, line := range h.Values("Set-Cookie") {
		c, err := http.ParseSetCookie(line)
		if err != nil {
			continue
		}
		value := c.Value
		if j.cleared(c) {
			value = ""
		}
		path := c.Path
		if path == "" {
			path = DefaultPath
		}
		j.cookies[c.Name] = &Cookie{Name: c.Name, Value: value, Path: path}
	}
}

func (j *Jar) cleared(c *http.Cookie) bool {
	if c.Value == "" || c.MaxAge < 0 {
		return true
	}
	return !c.Expires.IsZero() && c.Expires.Before(j.now())
}

// Set stores a cookie directly, as a caller would before a request.
func (j *Jar) Set(name, value string) {
	j.cookies[name] = &Cookie{Name: name, Value: value, Path: DefaultPath}
}

// Get returns the value of a cookie and whether the jar knows it.
func (j *Jar) Get(name string) (string, bool) {
	c, ok := j.cookies[name]
	if !ok {
		return "", false
	}
	return c.Value, true
}

// Len returns the number of entries, cleared ones included.
func (j *Jar) Len() int { return len(j.cookies) }

// Snapshot returns a copy of the current name to value mapping.
func (j *Jar) Snapshot() map[string]string {
	out := make(map[string]string, len(j.cookies))
	for name, c := range j.cookies {
		out[name] = c.Value
	}
	return out
}

// Cookies returns copies of all entries sorted by name.
func (j *Jar) Cookies() []Cookie {
	out := make([]Cookie, 0, len(j.cookies))
	for _, c := range j.cookies {
		out = append(out, *c)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}

// Header renders the outgoing Cookie header value. Cleared entries are
// not sent. Returns "" when there is nothing to send.
func (j *Jar) Header() string {
	pairs := make([]string, 0, len(j.cookies))
	for _, c := range j.Cookies() {
		if c.Value == "" {
			continue
		}
		pairs = append(pairs, c.Name+"="+c.Value)
	}
	return strings.Join(pairs, "; ")
}
