// Package hostport canonicalizes the host[:port] a session talks to, so
// that "WWW.Example.com:80" and "www.example.com" name the same host for
// cookie matching and host comparisons.
package hostport

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Canonical returns a lowercase host[:port] with the default port of the
// scheme stripped (:443 when https is set, :80 otherwise).
//
// Values carrying a scheme or a path are rejected. IPv6 literals keep
// their brackets.
func Canonical(authority string, https bool) (string, error) {
	authority = strings.TrimSpace(authority)
	if authority == "" {
		return "", errors.New("hostport: empty host")
	}
	if strings.Contains(authority, "://") {
		return "", fmt.Errorf("hostport: host %q must not contain a scheme", authority)
	}
	if strings.ContainsAny(authority, "/?#") {
		return "", fmt.Errorf("hostport: host %q must not contain a path", authority)
	}

	u, err := url.Parse("http://" + authority)
	if err != nil {
		return "", fmt.Errorf("hostport: invalid host %q: %w", authority, err)
	}
	name := strings.ToLower(u.Hostname())
	if name == "" {
		return "", fmt.Errorf("hostport: %q has no host name", authority)
	}

	port := u.Port()
	if port == DefaultPort(https) {
		port = ""
	}
	if port == "" {
		if strings.Contains(name, ":") {
			return "[" + name + "]", nil
		}
		return name, nil
	}
	return net.JoinHostPort(name, port), nil
}

// DefaultPort returns "443" for https and "80" for plain http.
func DefaultPort(https bool) string {
	if https {
		return "443"
	}
	return "80"
}

