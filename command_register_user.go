package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/uptrace/bun"
)

// RegisterUserMessage is the registration payload
type RegisterUserMessage struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	BirthDate  string `json:"birth_date"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// Validate checks the payload. Passwords are capped at 72 bytes, the
// bcrypt input limit.
func (e RegisterUserMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.FirstName, validation.Required, validation.Length(1, 100)),
		validation.Field(&e.LastName, validation.Required, validation.Length(1, 100)),
		validation.Field(&e.Email, validation.Required, validation.Length(3, 255), is.Email),
		validation.Field(&e.Password, validation.Required, validation.Length(6, 72)),
		validation.Field(&e.BirthDate, validation.Required, validation.Date(DateLayout)),
		validation.Field(&e.City, validation.Required, validation.Length(1, 100)),
		validation.Field(&e.PostalCode, validation.Required, validation.Length(1, 20)),
	)
}

// RegisterUserHandler creates regular user accounts
type RegisterUserHandler struct {
	repo   RepositoryManager
	hasher PasswordHasher
	logger Logger
	sink   ActivitySink
}

// NewRegisterUserHandler returns a handler storing users through repo
func NewRegisterUserHandler(repo RepositoryManager, hasher PasswordHasher, logger Logger, sink ActivitySink) *RegisterUserHandler {
	if hasher == nil {
		hasher = NewBcryptHasher()
	}
	return &RegisterUserHandler{
		repo:   repo,
		hasher: hasher,
		logger: normalizeLogger(logger),
		sink:   normalizeActivitySink(sink),
	}
}

// Execute validates and stores the new user. The returned user never has
// the admin role, regardless of the payload.
func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled during user registration: %w", ctx.Err())
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) (*User, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}

	birthDate, err := time.Parse(DateLayout, event.BirthDate)
	if err != nil {
		return nil, validation.Errors{"birth_date": err}
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	hash, err := h.hasher.Hash(event.Password)
	if err != nil {
		h.logger.Error("Registration password hashing failed", "error", err)
		return nil, err
	}

	user := &User{
		Email:        NormalizeIdentity(event.Email),
		PasswordHash: hash,
		Role:         RoleUser,
		FirstName:    event.FirstName,
		LastName:     event.LastName,
		BirthDate:    &birthDate,
		City:         event.City,
		PostalCode:   event.PostalCode,
	}

	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing, err := h.repo.Users().FindByIdentityTx(ctx, tx, user.Email)
		switch {
		case err == nil && existing != nil:
			return fmt.Errorf("%s: %w", user.Email, ErrDuplicateIdentity)
		case err != nil && !errors.Is(err, ErrIdentityNotFound):
			return err
		}

		user, err = h.repo.Users().InsertTx(ctx, tx, user)
		return err
	})

	if err != nil {
		if !errors.Is(err, ErrDuplicateIdentity) {
			h.logger.Error("User registration failed", "identity", NormalizeIdentity(event.Email), "error", err)
		}
		return nil, err
	}

	emitActivity(ctx, h.sink, h.logger, ActivityEvent{
		EventType: ActivityEventUserRegistered,
		Actor:     ActorRef{Type: "user", ID: user.ID.String()},
		Identity:  user.Email,
	})

	return user, nil
}
