package accounts

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// UserAdmin holds the role gated user management operations. Callers pass
// the verified Principal; role checks never go back to the store.
type UserAdmin struct {
	users  Users
	logger Logger
	sink   ActivitySink
}

// NewUserAdmin returns a UserAdmin over users
func NewUserAdmin(users Users, logger Logger, sink ActivitySink) *UserAdmin {
	return &UserAdmin{
		users:  users,
		logger: normalizeLogger(logger),
		sink:   normalizeActivitySink(sink),
	}
}

// List returns every user, admin only
func (a *UserAdmin) List(ctx context.Context, actor Principal) ([]*User, error) {
	if _, err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	return a.users.ListAccounts(ctx)
}

// PublicNames returns first names only, no authentication required
func (a *UserAdmin) PublicNames(ctx context.Context) ([]string, error) {
	return a.users.ListFirstNames(ctx)
}

// Current returns the stored user behind principal
func (a *UserAdmin) Current(ctx context.Context, principal Principal) (*User, error) {
	if principal.IsZero() {
		return nil, ErrUnauthenticated
	}
	return a.users.FindByIdentity(ctx, principal.Identity)
}

// Delete removes a non admin user, admin only
func (a *UserAdmin) Delete(ctx context.Context, actor Principal, id uuid.UUID) error {
	if _, err := RequireAdmin(actor); err != nil {
		return err
	}

	user, err := a.users.GetAccount(ctx, id)
	if err != nil {
		return err
	}

	if user.IsAdmin() {
		return fmt.Errorf("%s: %w", user.Email, ErrCannotDeleteAdmin)
	}

	if err := a.users.DeleteAccount(ctx, id); err != nil {
		a.logger.Error("User delete failed", "id", id.String(), "error", err)
		return err
	}

	emitActivity(ctx, a.sink, a.logger, ActivityEvent{
		EventType: ActivityEventUserDeleted,
		Actor:     ActorRef{Type: "user", ID: actor.Identity},
		Identity:  user.Email,
		Metadata:  map[string]any{"id": id.String()},
	})

	return nil
}
