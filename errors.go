package accounts

import (
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeHashing            = "SECRET_HASHING_FAILED"
	TextCodeEmptySecret        = goerrors.TextCodeEmptyPassword
	TextCodePasswordMismatch   = "PASSWORD_MISMATCH"
	TextCodeInvalidSignature   = "TOKEN_INVALID_SIGNATURE"
	TextCodeTokenExpired       = goerrors.TextCodeTokenExpired
	TextCodeInvalidTTL         = "TOKEN_INVALID_TTL"
	TextCodeInvalidRole        = "INVALID_ROLE"
	TextCodeUnauthenticated    = "UNAUTHENTICATED"
	TextCodeUnauthorized       = "UNAUTHORIZED"
	TextCodeForbidden          = "FORBIDDEN"
	TextCodeIdentityNotFound   = "IDENTITY_NOT_FOUND"
	TextCodeDuplicateIdentity  = "IDENTITY_EXISTS"
	TextCodeRepository         = "REPOSITORY_UNAVAILABLE"
	TextCodeInvalidCredentials = goerrors.TextCodeInvalidCredentials
	TextCodeAdminRepair        = "ADMIN_REPAIR_FAILED"
	TextCodeCannotDeleteAdmin  = "CANNOT_DELETE_ADMIN"
)

// ErrHashing is returned when the password hasher cannot produce a hash
var ErrHashing = goerrors.New("unable to hash secret", goerrors.CategoryInternal).
	WithTextCode(TextCodeHashing)

// ErrNoEmptyString is returned when hashing an empty secret
var ErrNoEmptyString = goerrors.New("secret must not be empty", goerrors.CategoryBadInput).
	WithTextCode(TextCodeEmptySecret)

// ErrMismatchedHashAndPassword is returned when a secret does not match a hash
var ErrMismatchedHashAndPassword = goerrors.New("password does not match", goerrors.CategoryAuth).
	WithTextCode(TextCodePasswordMismatch)

// ErrInvalidSignature covers tokens that are malformed or fail signature checks
var ErrInvalidSignature = goerrors.New("token signature is invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidSignature)

// ErrTokenExpired is returned for tokens past their expiration time
var ErrTokenExpired = goerrors.New("token expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired)

// ErrInvalidTTL is returned when a token is requested with a negative or
// sub-second lifetime
var ErrInvalidTTL = goerrors.New("token ttl must be zero or at least one second", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidTTL)

// ErrInvalidRole is returned for roles outside the supported set
var ErrInvalidRole = goerrors.New("invalid role", goerrors.CategoryBadInput).
	WithTextCode(TextCodeInvalidRole)

// ErrUnauthenticated means no usable credential was presented
var ErrUnauthenticated = goerrors.New("not authenticated", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated)

// ErrUnauthorized means a credential was presented but rejected
var ErrUnauthorized = goerrors.New("invalid authentication credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized)

// ErrForbidden means the principal lacks the required role
var ErrForbidden = goerrors.New("not authorized", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = goerrors.New("User not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeIdentityNotFound)

// ErrDuplicateIdentity is returned when inserting an identity that already exists
var ErrDuplicateIdentity = goerrors.New("Email already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateIdentity)

// ErrRepositoryUnavailable wraps store failures that are not domain outcomes
var ErrRepositoryUnavailable = goerrors.New("user repository unavailable", goerrors.CategoryExternal).
	WithTextCode(TextCodeRepository)

// ErrInvalidCredentials is the only error login callers ever see for bad
// identity or password combinations
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials)

// ErrAdminRepairFailed marks reconciliation failures that leave the
// previously stored admin account in place
var ErrAdminRepairFailed = goerrors.New("admin account repair failed", goerrors.CategoryOperation).
	WithTextCode(TextCodeAdminRepair)

// ErrCannotDeleteAdmin is returned when deleting an admin account
var ErrCannotDeleteAdmin = goerrors.New("Cannot delete admin user", goerrors.CategoryBadInput).
	WithTextCode(TextCodeCannotDeleteAdmin)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTokenExpired) {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInvalidSignature) || errors.Is(err, ErrUnauthenticated) {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed")
}
