package campusAuth

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is the root of every input validation failure.
	ErrValidation = errors.New("invalid request")
	// ErrMissingFields is returned when a required field is empty.
	ErrMissingFields = fmt.Errorf("%w: all fields are required", ErrValidation)
	// ErrInvalidEmail is returned when an email does not have the local@domain.tld shape.
	ErrInvalidEmail = fmt.Errorf("%w: invalid email", ErrValidation)
	// ErrPasswordTooLong is returned when a password exceeds the hasher input limit.
	ErrPasswordTooLong = fmt.Errorf("%w: password too long", ErrValidation)
	// ErrPasswordMismatch is returned when a password and its confirmation differ.
	ErrPasswordMismatch = errors.New("password and confirmation do not match")

	// ErrOTPNotFound is returned when no code was requested for the email.
	ErrOTPNotFound = errors.New("otp not found for email")
	// ErrOTPInvalid is returned when the submitted code does not match.
	ErrOTPInvalid = errors.New("otp invalid")
	// ErrOTPExpired is returned when the code is older than the validity window.
	ErrOTPExpired = errors.New("otp expired")
	// ErrOTPConsumed is returned when a single-use code has already created an account.
	ErrOTPConsumed = errors.New("otp already used")
	// ErrOTPUnavailable is returned when the OTP backend cannot be reached.
	ErrOTPUnavailable = errors.New("otp backend unavailable")

	// ErrAccountExists is returned when signup hits an email that is already registered.
	ErrAccountExists = errors.New("account already exists")
	// ErrNotRegistered is returned by login for an unknown email.
	ErrNotRegistered = errors.New("user not registered")
	// ErrWrongPassword is returned when a password does not match the stored hash.
	ErrWrongPassword = errors.New("password incorrect")
	// ErrUserNotFound is returned when an authenticated id no longer resolves.
	ErrUserNotFound = errors.New("user not found")

	// ErrUnauthorized is the root of every authentication failure.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTokenMissing is returned when a request carries no access token.
	ErrTokenMissing = fmt.Errorf("%w: access token missing", ErrUnauthorized)
	// ErrTokenInvalid covers expired, malformed and badly signed access tokens.
	ErrTokenInvalid = fmt.Errorf("%w: access token invalid", ErrUnauthorized)
	// ErrAccountNotResolved is returned when a valid token names a deleted account.
	ErrAccountNotResolved = fmt.Errorf("%w: account not resolved", ErrUnauthorized)
	// ErrRefreshInvalid is returned when a refresh token fails verification or was rotated away.
	ErrRefreshInvalid = fmt.Errorf("%w: refresh token invalid", ErrUnauthorized)

	// ErrForbidden is returned when the account type does not match the route.
	ErrForbidden = errors.New("forbidden")

	// ErrEngineNotReady is returned when an Engine was not built with all dependencies.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrTokenIssue is returned when signing a token fails.
	ErrTokenIssue = errors.New("token generation failed")

	// ErrProviderNotFound must be returned by a UserProvider when no account matches.
	ErrProviderNotFound = errors.New("provider: user not found")
	// ErrProviderDuplicateEmail must be returned by a UserProvider when the email is taken.
	ErrProviderDuplicateEmail = errors.New("provider: duplicate email")
)
