package accounts

import (
	"errors"
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goliatone/go-accounts/middleware/jwtware"
)

// MetricsPath serves the prometheus registry
const MetricsPath = "/metrics"

// NewHTTPServer returns a go-router server backed by fiber with the package
// error handler, panic recovery, CORS for the given origins and the metrics
// endpoint. No origins allows any origin.
func NewHTTPServer(logger Logger, corsOrigins []string) router.Server[*fiber.App] {
	return router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		app := fiber.New(fiber.Config{
			AppName:               "accounts",
			DisableStartupMessage: true,
			ErrorHandler:          HTTPErrorHandler(logger),
		})

		allowOrigins := corsAllowOrigins(corsOrigins)

		app.Use(recover.New())
		app.Use(cors.New(cors.Config{
			AllowOrigins:     allowOrigins,
			AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
			AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
			AllowCredentials: allowOrigins != "*",
		}))
		app.Get(MetricsPath, adaptor.HTTPHandler(promhttp.Handler()))

		return router.DefaultFiberOptions(app)
	})
}

func corsAllowOrigins(corsOrigins []string) string {
	origins := make([]string, 0, len(corsOrigins))
	for _, origin := range corsOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}

	if len(origins) == 0 {
		return "*"
	}
	return strings.Join(origins, ",")
}

// RouteAuthenticator builds the router middleware guarding protected routes
type RouteAuthenticator struct {
	guard        *Guard
	contextKey   string
	Logger       Logger
	ErrorHandler router.ErrorHandler
}

// NewHTTPAuthenticator returns a RouteAuthenticator for guard. The context
// key is read from cfg when provided.
func NewHTTPAuthenticator(guard *Guard, cfg Config) *RouteAuthenticator {
	contextKey := DefaultContextKey
	if cfg != nil && cfg.GetContextKey() != "" {
		contextKey = cfg.GetContextKey()
	}

	a := &RouteAuthenticator{
		guard:      guard,
		contextKey: contextKey,
		Logger:     defLogger{},
	}
	a.ErrorHandler = a.defaultErrHandler

	return a
}

func (a *RouteAuthenticator) WithLogger(logger Logger) *RouteAuthenticator {
	a.Logger = normalizeLogger(logger)
	return a
}

// ContextKey is the router locals key holding the Principal
func (a *RouteAuthenticator) ContextKey() string {
	return a.contextKey
}

// ProtectedRoute requires a valid bearer token
func (a *RouteAuthenticator) ProtectedRoute() router.MiddlewareFunc {
	return jwtware.New(jwtware.Config[Principal]{
		Guard:           a.guard,
		ContextKey:      a.contextKey,
		ErrorHandler:    a.ErrorHandler,
		ContextEnricher: ContextEnricherAdapter,
	})
}

// AdminRoute requires a valid bearer token carrying the admin role
func (a *RouteAuthenticator) AdminRoute() router.MiddlewareFunc {
	return jwtware.New(jwtware.Config[Principal]{
		Guard:           a.guard,
		ContextKey:      a.contextKey,
		ErrorHandler:    a.ErrorHandler,
		ContextEnricher: ContextEnricherAdapter,
		Authorize: func(p Principal) error {
			_, err := RequireAdmin(p)
			return err
		},
	})
}

func (a *RouteAuthenticator) defaultErrHandler(ctx router.Context, err error) error {
	a.Logger.Debug("Route authentication rejected",
		"path", ctx.Path(),
		"malformed", IsMalformedError(err),
		"error", err,
	)
	return RouterErrorHandler(a.Logger)(ctx, err)
}

// HTTPError is the JSON error body
type HTTPError struct {
	Success  bool              `json:"success"`
	Error    string            `json:"error"`
	TextCode string            `json:"text_code,omitempty"`
	Details  map[string]string `json:"details,omitempty"`
}

// RouterErrorHandler maps package errors to status codes and JSON bodies
// for route handlers and the auth middleware.
func RouterErrorHandler(logger Logger) router.ErrorHandler {
	logger = normalizeLogger(logger)

	return func(ctx router.Context, err error) error {
		status, body := mapHTTPError(err)

		if status >= http.StatusInternalServerError {
			logger.Error("Request failed", "method", ctx.Method(), "path", ctx.Path(), "error", err)
		}

		if status == http.StatusUnauthorized {
			ctx.SetHeader(fiber.HeaderWWWAuthenticate, challenge(err))
		}

		return ctx.JSON(status, body)
	}
}

// HTTPErrorHandler is the fiber app ErrorHandler, it catches whatever the
// router handlers did not answer themselves.
func HTTPErrorHandler(logger Logger) fiber.ErrorHandler {
	logger = normalizeLogger(logger)

	return func(c *fiber.Ctx, err error) error {
		status, body := mapHTTPError(err)

		if status >= http.StatusInternalServerError {
			logger.Error("Request failed", "method", c.Method(), "path", c.Path(), "error", err)
		}

		if status == http.StatusUnauthorized {
			c.Set(fiber.HeaderWWWAuthenticate, challenge(err))
		}

		return c.Status(status).JSON(body)
	}
}

var httpErrorMappers = []goerrors.ErrorMapper{
	mapValidationErrors,
	mapFiberErrors,
}

// toRichError resolves err to the go-errors value rendered by the HTTP
// layer. Expired tokens win over the wrapping unauthorized error so clients
// can tell them apart.
func toRichError(err error) *goerrors.Error {
	if errors.Is(err, ErrTokenExpired) {
		return ErrTokenExpired
	}
	return goerrors.MapToError(err, httpErrorMappers)
}

func mapHTTPError(err error) (int, HTTPError) {
	rich := toRichError(err)
	status := statusForError(rich)

	body := HTTPError{
		Success:  false,
		Error:    rich.Message,
		TextCode: rich.TextCode,
	}

	switch rich.Category {
	case goerrors.CategoryValidation:
		body.Details = rich.ValidationMap()
	case goerrors.CategoryInternal, goerrors.CategoryExternal:
		body.Error = "internal server error"
		body.TextCode = ""
	}

	return status, body
}

func statusForError(rich *goerrors.Error) int {
	if rich.Code >= http.StatusBadRequest {
		return rich.Code
	}

	switch rich.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func mapValidationErrors(err error) *goerrors.Error {
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return nil
	}

	fields := make(map[string]string, len(verrs))
	for field, e := range verrs {
		if e != nil {
			fields[field] = e.Error()
		}
	}

	return goerrors.NewValidationFromMap("validation failed", fields).
		WithTextCode("VALIDATION_FAILED")
}

func mapFiberErrors(err error) *goerrors.Error {
	var ferr *fiber.Error
	if !errors.As(err, &ferr) {
		return nil
	}

	return goerrors.New(ferr.Message, goerrors.HTTPStatusToCategory(ferr.Code)).
		WithCode(ferr.Code).
		WithTextCode(goerrors.HTTPStatusToTextCode(ferr.Code))
}

func challenge(err error) string {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return `Bearer error="invalid_token", error_description="token expired"`
	case errors.Is(err, ErrUnauthorized):
		return `Bearer error="invalid_token"`
	default:
		return "Bearer"
	}
}

// debugPayload renders v for debug logs, never pass secrets
func debugPayload(v any) string {
	return strings.TrimSpace(print.MaybePrettyJSON(v))
}
