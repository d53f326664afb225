package accounts

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrInvalidPassword = errors.New("invalid password")
)

// user is a configured account.
type user struct {
	Username     string
	PasswordHash string
}

// userAuth handles password hashing and verification.
type userAuth struct {
	cost  int
	users map[string]*user
}

func newUserAuth(cost int) *userAuth {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return &userAuth{cost: cost, users: make(map[string]*user)}
}

// add registers a user. A plain password is hashed; an existing hash is
// taken as is.
func (a *userAuth) add(u UserConfig) error {
	if u.Username == "" {
		return fmt.Errorf("user without username")
	}
	if _, exists := a.users[u.Username]; exists {
		return fmt.Errorf("duplicate user %q", u.Username)
	}

	hash := u.PasswordHash
	if hash == "" {
		if u.Password == "" {
			return fmt.Errorf("user %q needs password or password_hash", u.Username)
		}
		b, err := bcrypt.GenerateFromPassword([]byte(u.Password), a.cost)
		if err != nil {
			return fmt.Errorf("hash password of %q: %w", u.Username, err)
		}
		hash = string(b)
	}
	a.users[u.Username] = &user{Username: u.Username, PasswordHash: hash}
	return nil
}

// authenticate verifies a user's credentials.
func (a *userAuth) authenticate(username, password string) (*user, error) {
	u, ok := a.users[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidPassword
	}
	return u, nil
}
