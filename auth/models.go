package auth

import (
	"time"

	"pactflow/profile"
)

// User is the credential-bearing view of a registered account. Profile
// fields are joined in so registration and login return one value.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Username     string
	FirstName    string
	LastName     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal is the authenticated identity every agreement operation acts as.
type Principal struct {
	ID          string
	Email       string
	DisplayName string
}

// Anonymous reports whether p carries no identity.
func (p Principal) Anonymous() bool {
	return p.ID == ""
}

// RegisterRequest contains user registration data supplied by callers.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Mobile    string `json:"mobile"`
}

// LoginRequest contains user login credentials.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ChangePasswordRequest replaces the caller's password after checking the current one.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// DisplayName follows the profile rule: full name, then username, then email.
func (u User) DisplayName() string {
	return profile.Profile{
		Email:     u.Email,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}.DisplayName()
}
