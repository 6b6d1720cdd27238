package accounts

import (
	"context"
	"time"
)

// TokenTypeBearer is reported to clients alongside issued tokens
const TokenTypeBearer = "bearer"

// LoginResult is returned by a successful login
type LoginResult struct {
	Token     string
	TokenType string
	ExpiresAt time.Time
	User      *User
}

// IdentityVerifier checks an identity and password pair
type IdentityVerifier interface {
	VerifyIdentity(ctx context.Context, identifier, password string) (*User, error)
}

type Auther struct {
	provider IdentityVerifier
	tokens   TokenIssuer
	ttl      time.Duration
	logger   Logger
	sink     ActivitySink
}

// NewAuthenticator returns a new Authenticator. A zero ttl uses the token
// issuer default.
func NewAuthenticator(provider IdentityVerifier, tokens TokenIssuer, ttl time.Duration) *Auther {
	return &Auther{
		provider: provider,
		tokens:   tokens,
		ttl:      ttl,
		logger:   defLogger{},
		sink:     noopActivitySink{},
	}
}

var _ Authenticator = (*Auther)(nil)

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = normalizeLogger(logger)
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.sink = normalizeActivitySink(sink)
	return s
}

// Login verifies the credentials and issues a token carrying the stored role.
func (s *Auther) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	identity := NormalizeIdentity(identifier)

	user, err := s.provider.VerifyIdentity(ctx, identity, password)
	if err != nil {
		loginAttempts.WithLabelValues("failure").Inc()
		s.logger.Info("Login verify identity error", "identity", identity, "error", err)
		emitActivity(ctx, s.sink, s.logger, ActivityEvent{
			EventType: ActivityEventLoginFailure,
			Actor:     ActorRef{Type: "unknown"},
			Identity:  identity,
			Metadata:  map[string]any{"error": err.Error()},
		})
		return nil, err
	}

	token, expiresAt, err := s.tokens.Issue(user.Email, user.Role, s.ttl)
	if err != nil {
		loginAttempts.WithLabelValues("error").Inc()
		s.logger.Error("Login token issue error", "identity", identity, "error", err)
		return nil, err
	}

	loginAttempts.WithLabelValues("success").Inc()
	emitActivity(ctx, s.sink, s.logger, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Actor:     ActorRef{Type: "user", ID: user.ID.String()},
		Identity:  user.Email,
	})

	return &LoginResult{
		Token:     token,
		TokenType: TokenTypeBearer,
		ExpiresAt: expiresAt,
		User:      user,
	}, nil
}
