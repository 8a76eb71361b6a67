// Package security issues and verifies the time-bound tokens that tie an
// intake submission to a form the service rendered.
package security

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

// SubmitAction is the action every intake form token is bound to.
const SubmitAction = "submit-application"

// tokenBytes is the number of MAC bytes kept in a token.
const tokenBytes = 16

// Nonce mints and checks HMAC-SHA256 tokens for one action.
//
// Time is divided into ticks of half the lifetime. A token names the tick it
// was issued in and is accepted during that tick and the next one, so it
// lives between half and the full lifetime.
type Nonce struct {
	secret []byte
	action string
	tick   time.Duration
	now    func() time.Time
}

// Option configures a Nonce.
type Option func(*Nonce)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(n *Nonce) {
		n.now = now
	}
}

// NewNonce creates a token issuer and validator for action.
func NewNonce(secret []byte, action string, lifetime time.Duration, opts ...Option) (*Nonce, error) {
	if len(secret) == 0 {
		return nil, errors.New("nonce secret must not be empty")
	}

	if lifetime < 2*time.Second {
		return nil, errors.New("nonce lifetime must be at least 2s")
	}

	n := &Nonce{
		secret: secret,
		action: action,
		tick:   lifetime / 2,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(n)
	}

	return n, nil
}

// GenerateSecret returns 32 random bytes for deployments that do not
// configure a secret.
func GenerateSecret() ([]byte, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}

	return secret, nil
}

// Issue returns a token for the current tick.
func (n *Nonce) Issue(_ context.Context) string {
	return n.token(n.currentTick())
}

// Validate reports whether token was issued for this action in the current
// or the previous tick.
func (n *Nonce) Validate(_ context.Context, token string) bool {
	if token == "" {
		return false
	}

	tick := n.currentTick()

	for _, candidate := range []int64{tick, tick - 1} {
		if hmac.Equal([]byte(token), []byte(n.token(candidate))) {
			return true
		}
	}

	return false
}

func (n *Nonce) currentTick() int64 {
	return n.now().UnixNano() / int64(n.tick)
}

func (n *Nonce) token(tick int64) string {
	mac := hmac.New(sha256.New, n.secret)
	mac.Write([]byte(strconv.FormatInt(tick, 10)))
	mac.Write([]byte{'|'})
	mac.Write([]byte(n.action))

	return hex.EncodeToString(mac.Sum(nil)[:tokenBytes])
}
