package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/ridehail/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultValidity is the lifetime of an access token unless configured otherwise.
const DefaultValidity = 30 * 24 * time.Hour

// Claims is the payload of an access token. The subject is the user ID;
// UserID repeats it for tokens minted before "sub" was written.
type Claims struct {
	jwt.RegisteredClaims
	UserID string
}

// subject prefers "sub" and falls back to the legacy UserID claim. Tokens
// carrying two different ids are rejected.
func (c *Claims) subject() (string, bool) {
	switch {
	case c.Subject == "":
		return c.UserID, c.UserID != ""
	case c.UserID != "" && c.UserID != c.Subject:
		return "", false
	}
	return c.Subject, true
}

type tokenOptions struct {
	now    func() time.Time
	issuer string
}

// Option tweaks an Issuer or Verifier.
type Option func(*tokenOptions)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *tokenOptions) { o.now = now }
}

// WithIssuer sets the "iss" claim written by the Issuer and required by the Verifier.
func WithIssuer(issuer string) Option {
	return func(o *tokenOptions) { o.issuer = issuer }
}

func buildOptions(opts []Option) tokenOptions {
	o := tokenOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Issuer signs access tokens with a process-wide HMAC secret.
type Issuer struct {
	secret   []byte
	validity time.Duration
	opts     tokenOptions
}

// NewIssuer fails with common.ErrMissingSecret when secret is empty; the
// caller is expected to treat that as a fatal startup error. A non-positive
// validity falls back to DefaultValidity.
func NewIssuer(secret []byte, validity time.Duration, opts ...Option) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, common.ErrMissingSecret
	}
	if validity <= 0 {
		validity = DefaultValidity
	}
	return &Issuer{secret: secret, validity: validity, opts: buildOptions(opts)}, nil
}

// Issue returns a signed HS256 token for subjectID and its absolute expiry.
func (i *Issuer) Issue(subjectID string) (string, time.Time, error) {
	now := i.opts.now().Truncate(jwt.TimePrecision)
	expires := now.Add(i.validity)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			Issuer:    i.opts.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		UserID: subjectID,
	})

	tokenString, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expires, nil
}

// Verifier checks tokens produced by an Issuer holding the same secret.
type Verifier struct {
	secret []byte
	opts   tokenOptions
}

func NewVerifier(secret []byte, opts ...Option) (*Verifier, error) {
	if len(secret) == 0 {
		return nil, common.ErrMissingSecret
	}
	return &Verifier{secret: secret, opts: buildOptions(opts)}, nil
}

// Verify returns the subject of a valid token. Expired tokens yield
// common.ErrTokenExpired, every other failure common.ErrInvalidToken.
func (v *Verifier) Verify(tokenString string) (string, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.opts.now),
	}
	if v.opts.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.opts.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	subject, ok := claims.subject()
	if !token.Valid || !ok {
		return "", common.ErrInvalidToken
	}

	return subject, nil
}
