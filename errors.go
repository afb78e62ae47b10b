package users

import (
	"net/http"

	"github.com/goliatone/go-errors"
)

// Error text codes used across the service boundary
const (
	TextCodeUserNotFound    = "USER_NOT_FOUND"
	TextCodeUserExists      = "USER_ALREADY_EXISTS"
	TextCodeUserValue       = "USER_VALUE_ERROR"
	TextCodeInvalidPassword = "INVALID_PASSWORD"
	TextCodeInvalidCreds    = "INVALID_CREDENTIALS"
	TextCodeInvalidToken    = "INVALID_TOKEN"
	TextCodeInactiveUser    = "INACTIVE_USER"
	TextCodeSelfDelete      = "SELF_DELETE_FORBIDDEN"
)

// ErrUserNotFound is returned when a lookup does not match a user
var ErrUserNotFound = errors.New("User not found", errors.CategoryNotFound).
	WithCode(errors.CodeNotFound).
	WithTextCode(TextCodeUserNotFound)

// ErrDuplicateEmail is the store level uniqueness violation
var ErrDuplicateEmail = errors.New("email is already registered", errors.CategoryConflict).
	WithCode(errors.CodeBadRequest).
	WithTextCode(TextCodeUserExists)

// ErrUserAlreadyExists is returned when creating a user with a taken email
var ErrUserAlreadyExists = errors.New("A user with this email already exists", errors.CategoryConflict).
	WithCode(errors.CodeBadRequest).
	WithTextCode(TextCodeUserExists)

// ErrUserValue is a generic update conflict at the service boundary
var ErrUserValue = errors.New("invalid user value", errors.CategoryValidation).
	WithCode(errors.CodeBadRequest).
	WithTextCode(TextCodeUserValue)

// ErrInvalidPassword is a password policy violation at validation time
var ErrInvalidPassword = errors.New("password does not satisfy the password policy", errors.CategoryValidation).
	WithCode(errors.CodeBadRequest).
	WithTextCode(TextCodeInvalidPassword)

// ErrInvalidCredentials covers both unknown user and wrong password, so the
// response never discloses whether an account exists
var ErrInvalidCredentials = errors.New("Incorrect email or password", errors.CategoryAuth).
	WithCode(errors.CodeBadRequest).
	WithTextCode(TextCodeInvalidCreds)

// ErrInvalidToken is the single token failure exposed at the API boundary.
// Malformed, bad signature, wrong kind and expired all collapse into it.
var ErrInvalidToken = errors.New("Invalid token", errors.CategoryAuth).
	WithCode(errors.CodeBadRequest).
	WithTextCode(TextCodeInvalidToken)

// ErrInactiveUser rejects operations on non active accounts
var ErrInactiveUser = errors.New("Inactive user", errors.CategoryAuth).
	WithCode(errors.CodeBadRequest).
	WithTextCode(TextCodeInactiveUser)

// ErrUnauthorized is the missing or unusable credential error
var ErrUnauthorized = errors.New("Not authenticated", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// ErrForbidden is the authorization failure
var ErrForbidden = errors.New("The user does not have enough privileges", errors.CategoryAuthz).
	WithCode(errors.CodeForbidden)

// ErrSelfDeleteForbidden stops admins from deleting their own account
var ErrSelfDeleteForbidden = errors.New("Admins are not allowed to delete themselves", errors.CategoryAuthz).
	WithCode(errors.CodeForbidden).
	WithTextCode(TextCodeSelfDelete)

// ErrDatabaseUnavailable hides pool exhaustion and connectivity failures
var ErrDatabaseUnavailable = errors.New("database error", errors.CategoryInternal).
	WithCode(errors.CodeInternal)

// HTTPStatus resolves the status code for a service error. Unknown errors
// map to 500 so raw database or library messages never pick a status.
func HTTPStatus(err error) int {
	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.Code > 0 {
		return richErr.Code
	}
	return http.StatusInternalServerError
}

// ErrorDetail returns the message safe to show to a client
func ErrorDetail(err error) string {
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.Message
	}
	return "internal server error"
}
