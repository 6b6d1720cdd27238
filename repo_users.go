package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
)

// Users is the user repository. The generic go-repository-bun methods are
// embedded; account specific lookups map store errors onto the package
// sentinels.
type Users interface {
	repository.Repository[*User]
	AdminStore

	GetAccount(ctx context.Context, id uuid.UUID) (*User, error)
	ListAccounts(ctx context.Context) ([]*User, error)
	ListFirstNames(ctx context.Context) ([]string, error)
	DeleteAccount(ctx context.Context, id uuid.UUID) error

	InsertTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	FindByIdentityTx(ctx context.Context, tx bun.IDB, identity string) (*User, error)
}

var listAccountsSQL = `SELECT * FROM "users" ORDER BY "created_at" ASC, "email" ASC`

var deleteAccountSQL = `DELETE FROM "users" WHERE "id" = ? RETURNING *`

type users struct {
	repository.Repository[*User]
	db  *bun.DB
	now func() time.Time
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

// NewUsersRepository returns a bun backed Users repository
func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
}

func (a *users) FindByIdentity(ctx context.Context, identity string) (*User, error) {
	return a.FindByIdentityTx(ctx, a.db, identity)
}

func (a *users) FindByIdentityTx(ctx context.Context, tx bun.IDB, identity string) (*User, error) {
	identity = NormalizeIdentity(identity)
	if identity == "" {
		return nil, ErrIdentityNotFound
	}

	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", identity).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, storeError(err, "find user by identity")
	}

	return record, nil
}

func (a *users) GetAccount(ctx context.Context, id uuid.UUID) (*User, error) {
	record, err := a.Repository.GetByID(ctx, id.String())
	if err != nil {
		return nil, storeError(err, "get user by id")
	}

	return record, nil
}

func (a *users) Insert(ctx context.Context, user *User) (*User, error) {
	return a.InsertTx(ctx, a.db, user)
}

// InsertTx relies on the unique email constraint: a concurrent insert of
// the same identity fails with ErrDuplicateIdentity.
func (a *users) InsertTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	if user == nil {
		return nil, goerrors.New("user must not be nil", goerrors.CategoryBadInput)
	}

	prepareUserDefaults(user, a.now())

	if user.Email == "" {
		return nil, fmt.Errorf("%w: empty identity", ErrIdentityNotFound)
	}

	created, err := a.Repository.CreateTx(ctx, tx, user)
	if err != nil {
		return nil, storeError(err, "insert user")
	}

	return created, nil
}

func (a *users) UpdateSecretHash(ctx context.Context, identity, hash string) error {
	res, err := a.db.NewUpdate().
		Model((*User)(nil)).
		Set("password_hash = ?", hash).
		Set("updated_at = ?", a.now()).
		Where("email = ?", NormalizeIdentity(identity)).
		Exec(ctx)
	if err != nil {
		return storeError(err, "update password hash")
	}

	return expectAffected(res, identity)
}

func (a *users) UpdateRole(ctx context.Context, identity string, role Role) error {
	if !role.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	res, err := a.db.NewUpdate().
		Model((*User)(nil)).
		Set("user_role = ?", role).
		Set("updated_at = ?", a.now()).
		Where("email = ?", NormalizeIdentity(identity)).
		Exec(ctx)
	if err != nil {
		return storeError(err, "update role")
	}

	return expectAffected(res, identity)
}

func (a *users) ListAccounts(ctx context.Context) ([]*User, error) {
	records, err := a.Repository.RawTx(ctx, a.db, listAccountsSQL)
	if err != nil {
		return nil, storeError(err, "list users")
	}

	if records == nil {
		records = make([]*User, 0)
	}

	return records, nil
}

func (a *users) ListFirstNames(ctx context.Context) ([]string, error) {
	names := make([]string, 0)
	err := a.db.NewSelect().
		Model((*User)(nil)).
		Column("first_name").
		Order("first_name ASC").
		Scan(ctx, &names)
	if err != nil {
		return nil, storeError(err, "list first names")
	}

	return names, nil
}

func (a *users) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	deleted, err := a.Repository.RawTx(ctx, a.db, deleteAccountSQL, id.String())
	if err != nil {
		return storeError(err, "delete user")
	}

	if len(deleted) == 0 {
		return fmt.Errorf("%s: %w", id, ErrIdentityNotFound)
	}

	return nil
}

func expectAffected(res sql.Result, identifier string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storeError(err, "rows affected")
	}

	if n == 0 {
		return fmt.Errorf("%s: %w", identifier, ErrIdentityNotFound)
	}

	return nil
}

// storeError maps driver errors onto the package sentinels. Anything that is
// not a missing row or a unique violation is reported as unavailable.
func storeError(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows), repository.IsRecordNotFound(err):
		return ErrIdentityNotFound
	case IsUniqueViolation(err), goerrors.HasCategory(err, goerrors.CategoryConflict):
		return fmt.Errorf("%s: %w", op, ErrDuplicateIdentity)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrRepositoryUnavailable, err)
	}
}

// IsUniqueViolation detects unique constraint failures for Postgres and
// SQLite drivers
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint")
}
