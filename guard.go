package accounts

import (
	"fmt"
	"strings"
)

// DefaultAuthScheme is the expected Authorization header scheme
const DefaultAuthScheme = "Bearer"

// Guard turns an Authorization header into a verified Principal
type Guard struct {
	verifier   TokenVerifier
	authScheme string
	logger     Logger
}

// GuardOption configures a Guard
type GuardOption func(*Guard)

// WithAuthScheme overrides the header scheme, default Bearer
func WithAuthScheme(scheme string) GuardOption {
	return func(g *Guard) {
		if s := strings.TrimSpace(scheme); s != "" {
			g.authScheme = s
		}
	}
}

// WithGuardLogger sets the logger
func WithGuardLogger(logger Logger) GuardOption {
	return func(g *Guard) {
		g.logger = normalizeLogger(logger)
	}
}

// NewGuard returns a guard backed by verifier
func NewGuard(verifier TokenVerifier, opts ...GuardOption) *Guard {
	g := &Guard{
		verifier:   verifier,
		authScheme: DefaultAuthScheme,
		logger:     defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Authenticate extracts the bearer token from rawHeader and verifies it.
// A missing or malformed header returns ErrUnauthenticated. A token that
// fails verification returns ErrUnauthorized wrapping the verifier error.
func (g *Guard) Authenticate(rawHeader string) (Principal, error) {
	token, err := ExtractBearerToken(rawHeader, g.authScheme)
	if err != nil {
		return Principal{}, err
	}

	principal, err := g.verifier.Verify(token)
	if err != nil {
		g.logger.Debug("Guard rejected token", "error", err)
		return Principal{}, fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}

	return principal, nil
}

// RequireAdmin passes the principal through when it holds the admin role.
// It only looks at the role claim of the already verified principal.
func (g *Guard) RequireAdmin(principal Principal) (Principal, error) {
	return RequireAdmin(principal)
}

// RequireAdmin is the guard free form of Guard.RequireAdmin
func RequireAdmin(principal Principal) (Principal, error) {
	if !principal.IsAdmin() {
		return Principal{}, ErrForbidden
	}
	return principal, nil
}

// ExtractBearerToken returns the token part of "<scheme> <token>". The
// scheme comparison is case insensitive.
func ExtractBearerToken(header, scheme string) (string, error) {
	header = strings.TrimSpace(header)
	scheme = strings.TrimSpace(scheme)
	if scheme == "" {
		scheme = DefaultAuthScheme
	}

	l := len(scheme)
	if len(header) <= l+1 || !strings.EqualFold(header[:l], scheme) || header[l] != ' ' {
		return "", ErrUnauthenticated
	}

	token := strings.TrimSpace(header[l:])
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", ErrUnauthenticated
	}

	return token, nil
}
