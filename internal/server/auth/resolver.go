package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/ridehail/internal/common"
	"github.com/dmitrijs2005/ridehail/internal/logging"
	"github.com/dmitrijs2005/ridehail/internal/server/models"
)

// DefaultLookupTimeout bounds the account lookup when none is configured.
const DefaultLookupTimeout = 3 * time.Second

// Reason tells why a request was rejected. It is for logs and metrics only:
// transports must render every rejection the same way.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonUnauthenticated
	ReasonInvalidCredentials
	ReasonUnknownSubject
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "authenticated"
	case ReasonUnauthenticated:
		return "unauthenticated"
	case ReasonInvalidCredentials:
		return "invalid_credentials"
	case ReasonUnknownSubject:
		return "unknown_subject"
	}
	return "unknown"
}

// Result is either Authenticated (Identity set, Reason == ReasonNone) or
// Rejected (Identity nil, Reason set).
type Result struct {
	Identity *models.Identity
	Reason   Reason
}

func (r Result) Authenticated() bool {
	return r.Identity != nil && r.Reason == ReasonNone
}

// Err maps any rejection to common.ErrUnauthenticated.
func (r Result) Err() error {
	if r.Authenticated() {
		return nil
	}
	return common.ErrUnauthenticated
}

func rejected(reason Reason) Result {
	return Result{Reason: reason}
}

// TokenVerifier is satisfied by *Verifier.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// IdentityFinder looks up the account behind a token subject.
type IdentityFinder interface {
	FindIdentityByID(ctx context.Context, id string) (*models.Identity, error)
}

// Resolver turns the Authorization value of a request into a Result.
type Resolver struct {
	verifier TokenVerifier
	finder   IdentityFinder
	timeout  time.Duration
	logger   logging.Logger
}

func NewResolver(v TokenVerifier, f IdentityFinder, lookupTimeout time.Duration, l logging.Logger) *Resolver {
	if lookupTimeout <= 0 {
		lookupTimeout = DefaultLookupTimeout
	}
	if l == nil {
		l = logging.Nop{}
	}
	return &Resolver{verifier: v, finder: f, timeout: lookupTimeout, logger: l.With("module", "session_resolver")}
}

// Authenticate runs extract, verify and resolve in order and stops at the
// first failure. Store errors and timeouts reject the request.
func (r *Resolver) Authenticate(ctx context.Context, authorization string) Result {
	token, ok := BearerToken(authorization)
	if !ok {
		return rejected(ReasonUnauthenticated)
	}

	subject, err := r.verifier.Verify(token)
	if err != nil {
		r.logger.Debug(ctx, "token rejected", "error", err)
		return rejected(ReasonInvalidCredentials)
	}

	lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	identity, err := r.finder.FindIdentityByID(lookupCtx, subject)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			r.logger.Error(ctx, "identity lookup failed", "user_id", subject, "error", err)
		}
		return rejected(ReasonUnknownSubject)
	}
	if identity == nil || !identity.Active || identity.ID != subject {
		return rejected(ReasonUnknownSubject)
	}

	return Result{Identity: identity}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// value. The scheme is matched case-insensitively.
func BearerToken(authorization string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(authorization), " ")
	if !ok || !strings.EqualFold(scheme, common.BearerScheme) {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}
