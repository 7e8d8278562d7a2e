package auth

import "errors"

// Domain errors. Callers wrap them with detail via fmt.Errorf("%w: ...") and the
// HTTP layer maps them with errors.Is.
var (
	ErrValidation                = errors.New("validation failed")
	ErrConflict                  = errors.New("already exist")
	ErrPreconditionFailed        = errors.New("some condition failed at backend level")
	ErrInvalidOrExpiredChallenge = errors.New("otp expired")
	ErrIncorrectOtp              = errors.New("incorrect otp")
	ErrInvalidExternalToken      = errors.New("invalid external identity token")
	ErrAccountDisabled           = errors.New("user is disabled")
	ErrUnauthorized              = errors.New("unauthorized")
	ErrInvalidCredentials        = errors.New("invalid credential")
	ErrNotFound                  = errors.New("user not exist")
)
