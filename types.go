package campusAuth

import (
	"context"
	"time"
)

// AccountType is the role stored on every account.
type AccountType string

const (
	AccountStudent AccountType = "Student"
	AccountTeacher AccountType = "Teacher"
	AccountAdmin   AccountType = "Admin"
)

// Valid reports whether a is one of the known account types.
func (a AccountType) Valid() bool {
	switch a {
	case AccountStudent, AccountTeacher, AccountAdmin:
		return true
	default:
		return false
	}
}

// UserRecord is the stored shape of an account as seen by the engine.
type UserRecord struct {
	ID            string
	FirstName     string
	LastName      string
	Email         string
	PasswordHash  string
	Gender        string
	ContactNumber string
	AccountType   AccountType
	Avatar        string
	RefreshToken  string
	OTPID         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CreateUserInput carries a new account to the provider. PasswordHash is
// already hashed.
type CreateUserInput struct {
	FirstName     string
	LastName      string
	Email         string
	PasswordHash  string
	Gender        string
	ContactNumber string
	AccountType   AccountType
	Avatar        string
	OTPID         string
}

// UserProvider is the credential store. Implementations return
// ErrProviderNotFound for unknown accounts and ErrProviderDuplicateEmail
// when CreateUser hits an existing email.
type UserProvider interface {
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
	CreateUser(ctx context.Context, input CreateUserInput) (UserRecord, error)
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error
	SetRefreshToken(ctx context.Context, userID, refreshToken string) error
	ClearRefreshToken(ctx context.Context, userID string) error
}

// AccountView is an account with its password hash and refresh token
// removed. It is safe to return to clients.
type AccountView struct {
	ID            string      `json:"_id"`
	FirstName     string      `json:"firstName"`
	LastName      string      `json:"lastName"`
	Email         string      `json:"email"`
	Gender        string      `json:"gender"`
	ContactNumber string      `json:"contactNumber"`
	AccountType   AccountType `json:"accountType"`
	Avatar        string      `json:"avatar"`
	OTPID         string      `json:"otp,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

func viewOf(u UserRecord) AccountView {
	return AccountView{
		ID:            u.ID,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Email:         u.Email,
		Gender:        u.Gender,
		ContactNumber: u.ContactNumber,
		AccountType:   u.AccountType,
		Avatar:        u.Avatar,
		OTPID:         u.OTPID,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

// OTPRequestResult describes an issued code. Code is empty unless the
// engine is configured to expose it.
type OTPRequestResult struct {
	ID        string    `json:"_id"`
	Email     string    `json:"email"`
	Code      string    `json:"otp,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SignupRequest is the completed signup form.
type SignupRequest struct {
	FirstName       string
	LastName        string
	Email           string
	Password        string
	ConfirmPassword string
	OTP             string
	Gender          string
	ContactNumber   string
}

// LoginResult is returned by Login and Refresh.
type LoginResult struct {
	Account      AccountView
	AccessToken  string
	RefreshToken string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
}
