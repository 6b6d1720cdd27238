package accounts

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DateLayout is the wire format for birth dates
const DateLayout = "2006-01-02"

// User is the user model. Email is the credential identity and is stored
// normalized, see NormalizeIdentity.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Email         string     `bun:"email,notnull,unique" json:"email"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	Role          Role       `bun:"user_role,notnull" json:"role"`
	FirstName     string     `bun:"first_name,notnull" json:"first_name"`
	LastName      string     `bun:"last_name,notnull" json:"last_name"`
	BirthDate     *time.Time `bun:"birth_date" json:"birth_date,omitempty"`
	City          string     `bun:"city,notnull" json:"city"`
	PostalCode    string     `bun:"postal_code,notnull" json:"postal_code"`
	CreatedAt     time.Time  `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time  `bun:"updated_at,notnull" json:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role
func (u *User) IsAdmin() bool {
	return u != nil && u.Role.IsAdmin()
}

// Summary is the client facing view of a user
func (u *User) Summary() map[string]any {
	out := map[string]any{
		"id":          u.ID.String(),
		"email":       u.Email,
		"first_name":  u.FirstName,
		"last_name":   u.LastName,
		"city":        u.City,
		"postal_code": u.PostalCode,
		"role":        u.Role.String(),
		"is_admin":    u.IsAdmin(),
		"created_at":  u.CreatedAt,
		"updated_at":  u.UpdatedAt,
	}
	if u.BirthDate != nil {
		out["birth_date"] = u.BirthDate.Format(DateLayout)
	}
	return out
}

// NormalizeIdentity trims and lower cases an email identity
func NormalizeIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

func isEmail(email string) bool {
	return validation.Validate(email, validation.Required, is.Email) == nil
}

func prepareUserDefaults(record *User, now time.Time) {
	if record == nil {
		return
	}

	if record.Role == "" {
		record.Role = RoleUser
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	record.Email = NormalizeIdentity(record.Email)

	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
}
