package accounts

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is used when neither the caller nor the configuration
// provide a token lifetime
const DefaultTokenTTL = 24 * time.Hour

// MinTokenTTL is the shortest accepted lifetime. exp is encoded in whole
// seconds, anything shorter could expire before it is handed out.
const MinTokenTTL = time.Second

// TokenService issues and verifies HS256 bearer tokens. The signing key is
// fixed at construction; rotating it invalidates every token issued before.
type TokenService struct {
	signingKey []byte
	defaultTTL time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	logger     Logger
	now        func() time.Time
}

// TokenServiceOption configures a TokenService
type TokenServiceOption func(*TokenService)

// WithClock overrides the time source used for iat, exp and verification
func WithClock(now func() time.Time) TokenServiceOption {
	return func(ts *TokenService) {
		if now != nil {
			ts.now = now
		}
	}
}

// WithTokenIssuer sets the iss claim and requires it on verification
func WithTokenIssuer(issuer string) TokenServiceOption {
	return func(ts *TokenService) {
		ts.issuer = issuer
	}
}

// WithTokenAudience sets the aud claim and requires it on verification
func WithTokenAudience(audience ...string) TokenServiceOption {
	return func(ts *TokenService) {
		if len(audience) == 0 {
			ts.audience = nil
			return
		}
		ts.audience = append(jwt.ClaimStrings(nil), audience...)
	}
}

// WithTokenLogger sets the logger
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenService) {
		ts.logger = normalizeLogger(logger)
	}
}

// NewTokenService creates a new TokenService instance
func NewTokenService(signingKey []byte, defaultTTL time.Duration, opts ...TokenServiceOption) (*TokenService, error) {
	if len(signingKey) == 0 {
		return nil, errors.New("token signing key is required")
	}

	if defaultTTL < MinTokenTTL {
		defaultTTL = DefaultTokenTTL
	}

	ts := &TokenService{
		signingKey: append([]byte(nil), signingKey...),
		defaultTTL: defaultTTL,
		logger:     defLogger{},
		now:        time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	return ts, nil
}

// NewTokenServiceFromConfig builds a TokenService from Config
func NewTokenServiceFromConfig(cfg Config, opts ...TokenServiceOption) (*TokenService, error) {
	base := []TokenServiceOption{
		WithTokenIssuer(cfg.GetIssuer()),
		WithTokenAudience(cfg.GetAudience()...),
	}
	return NewTokenService([]byte(cfg.GetSigningKey()), cfg.GetTokenExpiration(), append(base, opts...)...)
}

var (
	_ TokenIssuer   = (*TokenService)(nil)
	_ TokenVerifier = (*TokenService)(nil)
)

// DefaultTTL returns the lifetime used when Issue is called with a zero ttl
func (ts *TokenService) DefaultTTL() time.Duration {
	return ts.defaultTTL
}

// Issue creates a signed token for identity and role. A zero ttl uses the
// default lifetime, negative or sub-second ttls fail with ErrInvalidTTL.
func (ts *TokenService) Issue(identity string, role Role, ttl time.Duration) (string, time.Time, error) {
	if ttl < 0 || (ttl > 0 && ttl < MinTokenTTL) {
		return "", time.Time{}, fmt.Errorf("%w: %s", ErrInvalidTTL, ttl)
	}

	if !role.IsValid() {
		return "", time.Time{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	if ttl == 0 {
		ttl = ts.defaultTTL
	}

	now := ts.now()
	expiresAt := now.Add(ttl)

	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   identity,
			Audience:  ts.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		UserRole: role.String(),
	}

	ensureTokenID(&claims.RegisteredClaims)

	signed, err := ts.signClaims(claims)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, claims.Expires(), nil
}

func (ts *TokenService) signClaims(claims *JWTClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil")
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}

	return signedString, nil
}

// Verify checks the signature first and the expiration second. Signature
// problems return ErrInvalidSignature, expired tokens ErrTokenExpired.
func (ts *TokenService) Verify(tokenString string) (Principal, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ts.now),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience[0]))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService verify encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		tokenVerifications.WithLabelValues(verificationResult(err)).Inc()
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Principal{}, ErrTokenExpired
		}
		return Principal{}, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		tokenVerifications.WithLabelValues("invalid").Inc()
		return Principal{}, ErrInvalidSignature
	}

	if _, known := ParseRole(claims.UserRole); !known {
		tokenVerifications.WithLabelValues("invalid").Inc()
		return Principal{}, fmt.Errorf("%w: %w", ErrInvalidSignature, ErrInvalidRole)
	}

	tokenVerifications.WithLabelValues("ok").Inc()
	return principalFromClaims(claims), nil
}

func verificationResult(err error) string {
	switch {
	case IsTokenExpiredError(err):
		return "expired"
	case IsMalformedError(err):
		return "malformed"
	default:
		return "invalid"
	}
}
