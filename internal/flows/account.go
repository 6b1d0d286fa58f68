package flows

import "time"

// Account is the flow-local view of a stored user.
type Account struct {
	ID            string
	FirstName     string
	LastName      string
	Email         string
	PasswordHash  string
	Gender        string
	ContactNumber string
	AccountType   string
	Avatar        string
	RefreshToken  string
	OTPID         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TokenPair is what login and refresh hand back to the caller.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// SessionResult bundles the account and its freshly issued tokens.
type SessionResult struct {
	Account Account
	Tokens  TokenPair
}
