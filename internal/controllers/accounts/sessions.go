package accounts

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

// loginSession is an active login.
type loginSession struct {
	Token     string
	Username  string
	ExpiresAt time.Time
}

// sessionRepo keeps login sessions in memory, keyed by token.
type sessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]*loginSession
	now      func() time.Time
}

func newSessionRepo() *sessionRepo {
	return &sessionRepo{
		sessions: make(map[string]*loginSession),
		now:      time.Now,
	}
}

func (r *sessionRepo) create(username string, ttl time.Duration) (*loginSession, error) {
	token, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}
	s := &loginSession{
		Token:     token.String(),
		Username:  username,
		ExpiresAt: r.now().Add(ttl),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.Token] = s
	return s, nil
}

// get returns the login for token. An expired login is dropped.
func (r *sessionRepo) get(token string) (*loginSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if r.now().After(s.ExpiresAt) {
		delete(r.sessions, token)
		return nil, ErrSessionExpired
	}
	return s, nil
}

func (r *sessionRepo) delete(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, token)
}

func (r *sessionRepo) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
