package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSessionTTL is how long an issued session stays valid.
const DefaultSessionTTL = 24 * time.Hour

var (
	ErrMissingSecret  = errors.New("session secret is required")
	ErrInvalidSession = errors.New("invalid or expired session")
)

type SessionUser struct {
	ID int64 `json:"id"`
}

// SessionClaims is the signed payload carried in the session cookie.
type SessionClaims struct {
	User    SessionUser `json:"user"`
	Expires time.Time   `json:"expires"`
	jwt.RegisteredClaims
}

// IssuedSession is a freshly signed token with its expiry.
type IssuedSession struct {
	Token     string
	ExpiresAt time.Time
	TTL       time.Duration
}

// SessionCodec signs and verifies HS256 session tokens.
type SessionCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessionCodec(secret string, ttl time.Duration) (*SessionCodec, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionCodec{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// WithClock returns a copy of the codec that reads time from now.
func (c *SessionCodec) WithClock(now func() time.Time) *SessionCodec {
	clone := *c
	clone.now = now
	return &clone
}

func (c *SessionCodec) Issue(userID int64) (*IssuedSession, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("cannot issue session for user %d", userID)
	}

	issuedAt := c.now()
	expires := issuedAt.Add(c.ttl)

	claims := SessionClaims{
		User:    SessionUser{ID: userID},
		Expires: expires,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session: %w", err)
	}

	return &IssuedSession{Token: token, ExpiresAt: expires, TTL: c.ttl}, nil
}

// Verify checks the signature and expiry of token. Every failure is reported
// as ErrInvalidSession.
func (c *SessionCodec) Verify(token string) (*SessionClaims, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}

	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidSession
	}

	if claims.User.ID <= 0 || !c.now().Before(claims.Expires) {
		return nil, ErrInvalidSession
	}

	return claims, nil
}
