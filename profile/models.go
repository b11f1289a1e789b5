package profile

import (
	"strings"
	"time"
)

// Profile is the public record of a registered user. Invitations resolve
// recipients against it by email.
type Profile struct {
	ID        string
	Email     string
	Username  string
	FirstName string
	LastName  string
	Mobile    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DisplayName prefers the full name, then the username, then the email.
func (p Profile) DisplayName() string {
	full := strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
	switch {
	case full != "":
		return full
	case strings.TrimSpace(p.Username) != "":
		return strings.TrimSpace(p.Username)
	default:
		return p.Email
	}
}

// UpdateParams carries a partial profile update; nil fields are left untouched.
type UpdateParams struct {
	Username  *string
	FirstName *string
	LastName  *string
	Mobile    *string
}

// NormalizeEmail is the canonical form used for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
