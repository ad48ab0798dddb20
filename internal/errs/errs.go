// Package errs defines the error taxonomy shared by all operations.
// Services wrap these sentinels with context via fmt.Errorf and %w;
// the HTTP layer maps them to status codes with response.FromError.
package errs

import "errors"

var (
	// ErrNotFound means no such person, token or record.
	ErrNotFound = errors.New("not found")
	// ErrTokenInvalid means no token exists with that identifier and kind.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired means the token exists but is expired or already used.
	ErrTokenExpired = errors.New("token expired")
	// ErrConflict means a uniqueness violation: duplicate badge, duplicate
	// pass or attendance triple, or re-registration.
	ErrConflict = errors.New("conflict")
	// ErrPreconditionFailed means the action was attempted out of the
	// required lifecycle state.
	ErrPreconditionFailed = errors.New("precondition failed")
	// ErrPermissionDenied means an elevated-capability action was attempted
	// without the capability.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrValidation means malformed input.
	ErrValidation = errors.New("validation error")
	// ErrNoActivePassType means no pass type is currently issuable.
	ErrNoActivePassType = errors.New("no active pass type")
)
