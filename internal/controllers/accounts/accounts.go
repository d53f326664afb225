// Package accounts provides a cookie-session login controller, used to
// drive several users through one application at once.
package accounts

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MahdiBaghbani/sessionkit/internal/frameworks/controller"
	"github.com/MahdiBaghbani/sessionkit/internal/frameworks/controller/cfg"
	"github.com/MahdiBaghbani/sessionkit/internal/platform/appctx"
	"github.com/MahdiBaghbani/sessionkit/internal/platform/logutil"
)

func init() {
	controller.MustRegister("accounts", New)
}

// Config holds accounts controller configuration.
type Config struct {
	SessionCookie string        `mapstructure:"session_cookie"`
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
	AfterLogin    string        `mapstructure:"after_login"`
	BcryptCost    int           `mapstructure:"bcrypt_cost"`
	Users         []UserConfig  `mapstructure:"users"`
}

// UserConfig is one [[controllers.accounts.users]] entry.
type UserConfig struct {
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	PasswordHash string `mapstructure:"password_hash"`
}

// ApplyDefaults implements cfg.Setter.
func (c *Config) ApplyDefaults() {
	if c.SessionCookie == "" {
		c.SessionCookie = "_session_id"
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = time.Hour
	}
	if c.AfterLogin == "" {
		c.AfterLogin = "/whoami"
	}
}

type ctrl struct {
	conf     *Config
	auth     *userAuth
	sessions *sessionRepo
	log      *slog.Logger
}

// New creates the accounts controller. Implements controller.NewController.
func New(m map[string]any, log *slog.Logger) (controller.Controller, error) {
	log = logutil.NoopIfNil(log)

	var c Config
	unused, err := cfg.DecodeWithUnused(m, &c)
	if err != nil {
		return nil, err
	}
	if len(unused) > 0 {
		log.Warn("unused config keys", "controller", "accounts", "unused_keys", unused)
	}

	auth := newUserAuth(c.BcryptCost)
	for _, u := range c.Users {
		if err := auth.add(u); err != nil {
			return nil, fmt.Errorf("accounts: %w", err)
		}
	}

	return &ctrl{
		conf:     &c,
		auth:     auth,
		sessions: newSessionRepo(),
		log:      log,
	}, nil
}

func (c *ctrl) Name() string { return "accounts" }

func (c *ctrl) Close() error { return nil }

func (c *ctrl) Actions() map[string]controller.ActionFunc {
	return map[string]controller.ActionFunc{
		"login":  c.login,
		"whoami": c.whoami,
		"logout": c.logout,
	}
}

func (c *ctrl) login(w http.ResponseWriter, r *http.Request) error {
	if err := r.ParseForm(); err != nil {
		return err
	}
	log := appctx.GetLogger(r.Context())
	username := r.PostForm.Get("username")

	u, err := c.auth.authenticate(username, r.PostForm.Get("password"))
	if err != nil {
		log.Info("login failed", "username", username, "error", err)
		return controller.Text(w, http.StatusUnauthorized, "Invalid credentials")
	}

	s, err := c.sessions.create(u.Username, c.conf.SessionTTL)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.conf.SessionCookie,
		Value:    s.Token,
		Path:     "/",
		HttpOnly: true,
	})
	log.Info("login", "username", u.Username)
	return controller.Redirect(w, r, c.conf.AfterLogin)
}

func (c *ctrl) current(r *http.Request) (*loginSession, error) {
	cookie, err := r.Cookie(c.conf.SessionCookie)
	if err != nil || cookie.Value == "" {
		return nil, ErrSessionNotFound
	}
	return c.sessions.get(cookie.Value)
}

func (c *ctrl) whoami(w http.ResponseWriter, r *http.Request) error {
	s, err := c.current(r)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			return controller.Text(w, http.StatusUnauthorized, "Session expired")
		}
		return controller.Text(w, http.StatusUnauthorized, "Not logged in")
	}
	return controller.Text(w, http.StatusOK, "Hello, "+s.Username)
}

func (c *ctrl) logout(w http.ResponseWriter, r *http.Request) error {
	if s, err := c.current(r); err == nil {
		c.sessions.delete(s.Token)
	}
	http.SetCookie(w, &http.Cookie{Name: c.conf.SessionCookie, Value: "", Path: "/", MaxAge: -1})
	return controller.Text(w, http.StatusOK, "Logged out")
}
