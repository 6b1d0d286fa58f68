// Package campusAuth is the authentication engine of the college app API.
//
// It covers email signup verified by a one-time code, password login with
// an access token and a rotating refresh token, password change, logout,
// and account-type checks for the Student and Teacher routes.
//
// Build an [Engine] once with [New] and the With* methods, then share it:
// Engine methods are safe for concurrent use. OTP records live in Redis;
// accounts live behind a [UserProvider] such as the mongostore package.
// Verification mail goes through a [Mailer], queued unless Mail.Async is
// off.
//
// Errors are sentinels from errors.go. Input problems wrap [ErrValidation]
// and every authentication failure wraps [ErrUnauthorized], so transports
// can map them with errors.Is.
package campusAuth
