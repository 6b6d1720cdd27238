package jwtware

import (
	"context"
	"net/http"

	"github.com/goliatone/go-router"
)

// TokenGuard turns the raw credential header into a verified principal
type TokenGuard[P any] interface {
	Authenticate(rawHeader string) (P, error)
}

// ContextEnricher stores the principal in the request context
type ContextEnricher[P any] func(ctx context.Context, principal P) context.Context

type Config[P any] struct {
	// Guard is required for token validation
	Guard TokenGuard[P]
	// Filter skips the middleware when it returns true
	Filter func(router.Context) bool
	// Authorize runs after the token is verified, a non nil error is
	// passed to ErrorHandler
	Authorize func(P) error
	// ErrorHandler receives authentication and authorization errors
	ErrorHandler router.ErrorHandler
	// ContextEnricher copies the principal into ctx.Context
	ContextEnricher ContextEnricher[P]
	// ContextKey is the router locals key for the principal
	ContextKey string
	// Header is the request header holding the credential
	Header string
}

// DefaultContextKey is used when Config.ContextKey is empty
const DefaultContextKey = "principal"

// New returns a router middleware that verifies the credential header,
// stores the principal in locals and hands over to the next handler.
func New[P any](config Config[P]) router.MiddlewareFunc {
	cfg := makeCfg(config)

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return next(ctx)
			}

			principal, err := cfg.Guard.Authenticate(ctx.Header(cfg.Header))
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			if cfg.Authorize != nil {
				if err := cfg.Authorize(principal); err != nil {
					return cfg.ErrorHandler(ctx, err)
				}
			}

			ctx.Locals(cfg.ContextKey, principal)
			if cfg.ContextEnricher != nil {
				ctx.SetContext(cfg.ContextEnricher(ctx.Context(), principal))
			}

			return next(ctx)
		}
	}
}

func makeCfg[P any](cfg Config[P]) Config[P] {
	if cfg.Guard == nil {
		panic("JWT middleware configuration: Guard is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}

	if cfg.Header == "" {
		cfg.Header = router.HeaderAuthorization
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = DefaultErrorHandler
	}

	return cfg
}

// DefaultErrorHandler answers 401 with a bearer challenge
func DefaultErrorHandler(ctx router.Context, err error) error {
	ctx.SetHeader("WWW-Authenticate", `Bearer error="invalid_token"`)
	return ctx.JSON(http.StatusUnauthorized, map[string]any{
		"success": false,
		"error":   err.Error(),
	})
}
