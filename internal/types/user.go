package types

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// User is the stored account. PasswordHash and OTP fields never leave the server.
type User struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Preferences  []string   `json:"preferences"`
	IsVerified   bool       `json:"isVerified"`
	OTP          string     `json:"-"`
	OTPExpiresAt *time.Time `json:"-"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// UserProfile is the public projection of a User.
type UserProfile struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Email       string     `json:"email"`
	Preferences []string   `json:"preferences"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
}

func (u *User) Profile() UserProfile {
	created := u.CreatedAt
	return UserProfile{
		ID:          u.ID,
		Name:        u.Name,
		Email:       u.Email,
		Preferences: u.Preferences,
		CreatedAt:   &created,
	}
}

type RegisterRequest struct {
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Password    string   `json:"password"`
	Preferences []string `json:"preferences,omitempty"`
}

type RegisterResponse struct {
	Message string    `json:"message"`
	UserID  uuid.UUID `json:"userId"`
	Email   string    `json:"email"`
}

type VerifyOTPRequest struct {
	UserID string `json:"userId"`
	OTP    string `json:"otp"`
}

type ResendOTPRequest struct {
	UserID string `json:"userId"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by OTP verification and login.
type AuthResponse struct {
	Message string      `json:"message,omitempty"`
	User    UserProfile `json:"user"`
	Token   string      `json:"token"`
}

type UpdateProfileRequest struct {
	Name        *string  `json:"name,omitempty"`
	Preferences []string `json:"preferences,omitempty"`
}

// Claims are the custom claims carried by the access token.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}
