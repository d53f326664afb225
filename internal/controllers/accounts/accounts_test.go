package accounts

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/MahdiBaghbani/sessionkit/internal/dispatch"
	"github.com/MahdiBaghbani/sessionkit/internal/routing"
	"github.com/MahdiBaghbani/sessionkit/internal/session"
)

func testConfig() map[string]any {
	return map[string]any{
		"bcrypt_cost": bcrypt.MinCost,
		"users": []map[string]any{
			{"username": "alice", "password": "wonderland"},
			{"username": "bob", "password": "builder"},
		},
	}
}

func newApp(t *testing.T, conf map[string]any) (*ctrl, dispatch.Dispatcher) {
	t.Helper()
	c, err := New(conf, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	rs := routing.MustRouteSet(
		routing.Route{Pattern: "/login", Controller: c, Action: "login", Methods: []string{http.MethodPost}},
		routing.Route{Pattern: "/{action}", Controller: c},
	)
	return c.(*ctrl), dispatch.NewRouteDispatcher(dispatch.Static(rs), nil)
}

func login(t *testing.T, s *session.Session, user, pass string) int {
	t.Helper()
	status, err := s.PostViaRedirect(context.Background(), "/login", url.Values{"username": {user}, "password": {pass}}, nil)
	if err != nil {
		t.Fatalf("login %s: %v", user, err)
	}
	return status
}

func TestLogin_MultipleUsersKeepOwnSessions(t *testing.T) {
	_, d := newApp(t, testConfig())
	alice := session.New(d, session.DefaultOptions())
	bob := session.New(d, session.DefaultOptions())

	if status := login(t, alice, "alice", "wonderland"); status != http.StatusOK {
		t.Fatalf("alice login status %d", status)
	}
	if alice.Body() != "Hello, alice" {
		t.Errorf("alice: got %q", alice.Body())
	}
	if alice.RequestCount() != 2 {
		t.Errorf("expected POST + GET, got %d requests", alice.RequestCount())
	}

	if status := login(t, bob, "bob", "builder"); status != http.StatusOK {
		t.Fatalf("bob login status %d", status)
	}

	ctx := context.Background()
	if _, err := alice.Get(ctx, "/whoami", nil, nil); err != nil {
		t.Fatal(err)
	}
	if alice.Body() != "Hello, alice" {
		t.Errorf("alice sees %q after bob logged in", alice.Body())
	}
	if _, err := bob.Get(ctx, "/whoami", nil, nil); err != nil {
		t.Fatal(err)
	}
	if bob.Body() != "Hello, bob" {
		t.Errorf("bob sees %q", bob.Body())
	}
	if alice.Cookies()["_session_id"] == bob.Cookies()["_session_id"] {
		t.Error("sessions share a login token")
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	_, d := newApp(t, testConfig())
	s := session.New(d, session.DefaultOptions())

	if status := login(t, s, "alice", "wrong"); status != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", status)
	}
	if status := login(t, s, "mallory", "x"); status != http.StatusUnauthorized {
		t.Errorf("expected 401 for unknown user, got %d", status)
	}
	if len(s.Cookies()) != 0 {
		t.Errorf("no cookie expected after failed login, got %v", s.Cookies())
	}
}

func TestLogin_IgnoresQueryCredentials(t *testing.T) {
	_, d := newApp(t, testConfig())
	s := session.New(d, session.DefaultOptions())

	// GET /login skips the POST-only entry and reaches login via /{action}.
	status, err := s.Get(context.Background(), "/login", url.Values{"username": {"alice"}, "password": {"wonderland"}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if status != http.StatusUnauthorized {
		t.Errorf("credentials in the query must not log in, got %d", status)
	}
}

func TestLogout(t *testing.T) {
	c, d := newApp(t, testConfig())
	s := session.New(d, session.DefaultOptions())
	ctx := context.Background()

	login(t, s, "alice", "wonderland")
	if c.sessions.len() != 1 {
		t.Fatalf("expected 1 login session, got %d", c.sessions.len())
	}

	if _, err := s.Post(ctx, "/logout", nil, nil); err != nil {
		t.Fatal(err)
	}
	if s.Cookies()["_session_id"] != "" {
		t.Errorf("logout should clear the cookie, got %q", s.Cookies()["_session_id"])
	}
	if c.sessions.len() != 0 {
		t.Errorf("logout should drop the login session")
	}

	status, err := s.Get(ctx, "/whoami", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if status != http.StatusUnauthorized || s.Body() != "Not logged in" {
		t.Errorf("unexpected whoami after logout: %d %q", status, s.Body())
	}
}

func TestSessionExpiry(t *testing.T) {
	conf := testConfig()
	conf["session_ttl"] = "1m"
	c, d := newApp(t, conf)
	s := session.New(d, session.DefaultOptions())

	login(t, s, "alice", "wonderland")
	c.sessions.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	status, err := s.Get(context.Background(), "/whoami", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if status != http.StatusUnauthorized || s.Body() != "Session expired" {
		t.Errorf("unexpected response %d %q", status, s.Body())
	}
	if c.sessions.len() != 0 {
		t.Errorf("expired login session should be dropped, %d left", c.sessions.len())
	}

	status, err = s.Get(context.Background(), "/whoami", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if status != http.StatusUnauthorized || s.Body() != "Not logged in" {
		t.Errorf("unexpected response after expiry %d %q", status, s.Body())
	}
}

func TestNew_ConfigErrors(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		conf    map[string]any
		wantErr bool
	}{
		{"no users", nil, false},
		{"prehashed", map[string]any{"users": []map[string]any{{"username": "carol", "password_hash": string(hash)}}}, false},
		{"missing password", map[string]any{"users": []map[string]any{{"username": "dave"}}}, true},
		{"missing username", map[string]any{"users": []map[string]any{{"password": "x"}}}, true},
		{"duplicate", map[string]any{"bcrypt_cost": bcrypt.MinCost, "users": []map[string]any{
			{"username": "erin", "password": "a"}, {"username": "erin", "password": "b"},
		}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.conf, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPrehashedUserAuthenticates(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	c, err := New(map[string]any{"users": []map[string]any{{"username": "carol", "password_hash": string(hash)}}}, nil)
	if err != nil {
		t.Fatal(err)
	}
	auth := c.(*ctrl).auth
	if _, err := auth.authenticate("carol", "secret"); err != nil {
		t.Errorf("authenticate failed: %v", err)
	}
	if _, err := auth.authenticate("carol", "nope"); !errors.Is(err, ErrInvalidPassword) {
		t.Errorf("expected ErrInvalidPassword, got %v", err)
	}
}
