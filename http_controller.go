package accounts

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// RegisterAccountRoutes mounts the account API on app
func RegisterAccountRoutes[T any](app router.Router[T], opts ...AccountControllerOption) *AccountController {
	controller := NewAccountController(opts...)

	protected := controller.HTTPAuth.ProtectedRoute()
	admin := controller.HTTPAuth.AdminRoute()

	app.Get(controller.Routes.Info, controller.Info).SetName("accounts.info")
	app.Get(controller.Routes.Health, controller.Health).SetName("accounts.health")

	app.Post(controller.Routes.Register, controller.Register).SetName("accounts.register")
	app.Post(controller.Routes.Login, controller.Login).SetName("accounts.login")
	app.Get(controller.Routes.PublicUsers, controller.PublicUsers).SetName("accounts.public_users")

	app.Get(controller.Routes.Me, controller.Me, protected).SetName("accounts.me")

	app.Get(controller.Routes.Users, controller.ListUsers, admin).SetName("accounts.users.list")
	app.Delete(controller.Routes.Users+"/:id", controller.DeleteUser, admin).SetName("accounts.users.delete")
	app.Post(controller.Routes.AdminSetup, controller.AdminSetup, admin).SetName("accounts.admin.setup")

	return controller
}

type AccountControllerRoutes struct {
	Info        string
	Health      string
	Register    string
	Login       string
	PublicUsers string
	Users       string
	Me          string
	AdminSetup  string
}

// AdminSetupRunner re-runs admin reconciliation on demand
type AdminSetupRunner interface {
	Reconcile(ctx context.Context) (ReconcileOutcome, error)
}

type AccountController struct {
	Debug        bool
	ErrorHandler router.ErrorHandler
	ServiceName string
	Version     string
	Logger      Logger
	Repo        RepositoryManager
	Routes      *AccountControllerRoutes
	Auther      Authenticator
	HTTPAuth    *RouteAuthenticator
	Registrar   *RegisterUserHandler
	Users       *UserAdmin
	AdminSetups AdminSetupRunner
	AdminEmail  string
	now         func() time.Time
}

type AccountControllerOption func(*AccountController) *AccountController

func WithControllerLogger(logger Logger) AccountControllerOption {
	return func(ac *AccountController) *AccountController {
		ac.Logger = normalizeLogger(logger)
		return ac
	}
}

func WithControllerDebug(debug bool) AccountControllerOption {
	return func(ac *AccountController) *AccountController {
		ac.Debug = debug
		return ac
	}
}

func WithControllerRepository(repo RepositoryManager) AccountControllerOption {
	return func(ac *AccountController) *AccountController {
		ac.Repo = repo
		return ac
	}
}

func WithControllerAuthenticator(auther Authenticator) AccountControllerOption {
	return func(ac *AccountController) *AccountController {
		ac.Auther = auther
		return ac
	}
}

func WithControllerHTTPAuth(httpAuth *RouteAuthenticator) AccountControllerOption {
	return func(ac *AccountController) *AccountController {
		ac.HTTPAuth = httpAuth
		return ac
	}
}

func WithControllerRegistrar(registrar *RegisterUserHandler) AccountControllerOption {
	return func(ac *AccountController) *AccountController {
		ac.Registrar = registrar
		return ac
	}
}

func WithControllerUserAdmin(users *UserAdmin) AccountControllerOption {
	return func(ac *AccountController) *AccountController {
		ac.Users = users
		return ac
	}
}

// WithControllerAdminSetup enables POST /admin/setup
func WithControllerAdminSetup(runner AdminSetupRunner, adminEmail string) AccountControllerOption {
	return func(ac *AccountController) *AccountController {
		ac.AdminSetups = runner
		ac.AdminEmail = NormalizeIdentity(adminEmail)
		return ac
	}
}

func WithControllerServiceInfo(name, version string) AccountControllerOption {
	return func(ac *AccountController) *AccountController {
		ac.ServiceName = name
		ac.Version = version
		return ac
	}
}

// WithControllerErrorHandler overrides how handler errors are rendered
func WithControllerErrorHandler(handler router.ErrorHandler) AccountControllerOption {
	return func(ac *AccountController) *AccountController {
		if handler != nil {
			ac.ErrorHandler = handler
		}
		return ac
	}
}

func WithControllerClock(now func() time.Time) AccountControllerOption {
	return func(ac *AccountController) *AccountController {
		if now != nil {
			ac.now = now
		}
		return ac
	}
}

func NewAccountController(opts ...AccountControllerOption) *AccountController {
	c := &AccountController{
		Logger:      defLogger{},
		ServiceName: "accounts",
		Version:     "dev",
		now:         time.Now,
		Routes: &AccountControllerRoutes{
			Info:        "/",
			Health:      "/health",
			Register:    "/register",
			Login:       "/login",
			PublicUsers: "/public-users",
			Users:       "/users",
			Me:          "/me",
			AdminSetup:  "/admin/setup",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in account controller...")
	}

	if c.Auther == nil {
		panic("Missing Authenticator in account controller...")
	}

	if c.HTTPAuth == nil {
		panic("Missing RouteAuthenticator in account controller...")
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = RouterErrorHandler(c.Logger)
	}

	if c.Registrar == nil {
		c.Registrar = NewRegisterUserHandler(c.Repo, nil, c.Logger, nil)
	}

	if c.Users == nil {
		c.Users = NewUserAdmin(c.Repo.Users(), c.Logger, nil)
	}

	return c
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// LoginResponse is returned by POST /login
type LoginResponse struct {
	AccessToken string         `json:"access_token"`
	TokenType   string         `json:"token_type"`
	ExpiresAt   time.Time      `json:"expires_at"`
	User        map[string]any `json:"user"`
}

func (a *AccountController) Info(ctx router.Context) error {
	return ctx.JSON(http.StatusOK, map[string]any{
		"service": a.ServiceName,
		"version": a.Version,
		"status":  "ok",
	})
}

func (a *AccountController) Health(ctx router.Context) error {
	database := "connected"
	status := http.StatusOK

	if err := a.Repo.Ping(ctx.Context()); err != nil {
		a.Logger.Error("Health check database ping failed", "error", err)
		database = "unavailable"
		status = http.StatusServiceUnavailable
	}

	healthy := "healthy"
	if status != http.StatusOK {
		healthy = "degraded"
	}

	return ctx.JSON(status, map[string]any{
		"status":    healthy,
		"api":       "ok",
		"database":  database,
		"timestamp": a.now().UTC().Format(time.RFC3339),
	})
}

func (a *AccountController) Register(ctx router.Context) error {
	payload := new(RegisterUserMessage)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, errInvalidBody(err))
	}

	user, err := a.Registrar.Execute(ctx.Context(), *payload)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusCreated, user.Summary())
}

// Login never validates the payload itself: malformed identities go through
// the authenticator so they are counted and reported like any other failure.
func (a *AccountController) Login(ctx router.Context) error {
	payload := new(LoginRequest)
	if err := ctx.Bind(payload); err != nil {
		return a.ErrorHandler(ctx, errInvalidBody(err))
	}

	if a.Debug {
		a.Logger.Debug("Login attempt", "payload", debugPayload(map[string]any{"email": payload.Email}))
	}

	result, err := a.Auther.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return a.ErrorHandler(ctx, ErrInvalidCredentials)
		}
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, LoginResponse{
		AccessToken: result.Token,
		TokenType:   result.TokenType,
		ExpiresAt:   result.ExpiresAt.UTC(),
		User:        result.User.Summary(),
	})
}

func (a *AccountController) PublicUsers(ctx router.Context) error {
	names, err := a.Users.PublicNames(ctx.Context())
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	out := make([]map[string]any, 0, len(names))
	for _, name := range names {
		out = append(out, map[string]any{"first_name": name})
	}

	return ctx.JSON(http.StatusOK, out)
}

func (a *AccountController) Me(ctx router.Context) error {
	user, err := a.Users.Current(ctx.Context(), a.principal(ctx))
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, user.Summary())
}

func (a *AccountController) ListUsers(ctx router.Context) error {
	users, err := a.Users.List(ctx.Context(), a.principal(ctx))
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	out := make([]map[string]any, 0, len(users))
	for _, user := range users {
		out = append(out, user.Summary())
	}

	return ctx.JSON(http.StatusOK, out)
}

func (a *AccountController) DeleteUser(ctx router.Context) error {
	id, err := uuid.Parse(strings.TrimSpace(ctx.Param("id")))
	if err != nil {
		return a.ErrorHandler(ctx, ErrIdentityNotFound)
	}

	if err := a.Users.Delete(ctx.Context(), a.principal(ctx), id); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": "User deleted successfully",
	})
}

func (a *AccountController) AdminSetup(ctx router.Context) error {
	if a.AdminSetups == nil {
		return a.ErrorHandler(ctx, goerrors.New("admin setup not configured", goerrors.CategoryOperation).
			WithCode(http.StatusNotImplemented))
	}

	outcome, err := a.AdminSetups.Reconcile(ctx.Context())
	if err != nil {
		a.Logger.Error("Admin setup failed", "outcome", outcome, "error", err)
		return ctx.JSON(http.StatusInternalServerError, map[string]any{
			"success": false,
			"error":   "admin setup failed",
			"outcome": string(outcome),
		})
	}

	return ctx.JSON(http.StatusOK, map[string]any{
		"success":     true,
		"message":     "Admin user setup completed successfully",
		"outcome":     string(outcome),
		"admin_email": a.AdminEmail,
		"timestamp":   a.now().UTC().Format(time.RFC3339),
	})
}

// principal prefers the request context filled by the auth middleware and
// falls back to the router locals.
func (a *AccountController) principal(ctx router.Context) Principal {
	if p, ok := PrincipalFromContext(ctx.Context()); ok {
		return p
	}
	p, _ := PrincipalFromRouter(ctx, a.HTTPAuth.ContextKey())
	return p
}

func errInvalidBody(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid request body").
		WithTextCode("INVALID_BODY")
}
