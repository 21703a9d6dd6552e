// Package auth tracks the current participant identity, carried as a JWT
// issued by the backend's auth service.
package auth

import (
	"errors"
	"fmt"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoSession    = errors.New("auth: no active session")
	ErrInvalidToken = errors.New("auth: invalid or expired token")
)

// Watcher is notified with the participant id on sign-in and with the
// empty string on sign-out.
type Watcher func(participantID string)

// Client holds the active session token and the participant identity
// parsed from it. Construct one and inject it; it is not a global.
type Client struct {
	secret []byte

	mu          sync.RWMutex
	token       string
	participant string
	watchers    []Watcher
}

// New returns a client. When secret is non-empty the token signature is
// verified (HS256); otherwise claims are read without verification, for
// setups where only the backend holds the signing key.
func New(secret string) *Client {
	var key []byte
	if secret != "" {
		key = []byte(secret)
	}
	return &Client{secret: key}
}

// SetSession installs an access token and returns the participant id from
// its subject claim. Watchers are notified on success.
func (c *Client) SetSession(token string) (string, error) {
	sub, err := c.subject(token)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.token = token
	c.participant = sub
	watchers := append([]Watcher(nil), c.watchers...)
	c.mu.Unlock()

	for _, w := range watchers {
		w(sub)
	}
	return sub, nil
}

// Clear drops the session and notifies watchers with the empty id.
func (c *Client) Clear() {
	c.mu.Lock()
	c.token = ""
	c.participant = ""
	watchers := append([]Watcher(nil), c.watchers...)
	c.mu.Unlock()

	for _, w := range watchers {
		w("")
	}
}

// CurrentUser returns the signed-in participant id.
func (c *Client) CurrentUser() (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.participant == "" {
		return "", ErrNoSession
	}
	return c.participant, nil
}

// Token returns the raw access token for use as a bearer credential.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// OnChange registers a watcher for sign-in/out transitions.
func (c *Client) OnChange(w Watcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchers = append(c.watchers, w)
}

func (c *Client) subject(tokenStr string) (string, error) {
	var claims jwt.MapClaims

	if c.secret != nil {
		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
			return c.secret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		var ok bool
		claims, ok = token.Claims.(jwt.MapClaims)
		if !ok {
			return "", ErrInvalidToken
		}
	} else {
		token, _, err := jwt.NewParser().ParseUnverified(tokenStr, jwt.MapClaims{})
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		claims = token.Claims.(jwt.MapClaims)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return sub, nil
}
