package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var ErrInvalidProfile = errors.New("profile: invalid profile")

// Service exposes profile reads and self-service updates.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Get(ctx context.Context, id string) (Profile, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (Profile, error) {
	if NormalizeEmail(email) == "" {
		return Profile{}, ErrNotFound
	}
	return s.repo.GetByEmail(ctx, email)
}

// Update applies a partial update after trimming and validating the fields.
func (s *Service) Update(ctx context.Context, id string, params UpdateParams) (Profile, error) {
	trim := func(v *string) *string {
		if v == nil {
			return nil
		}
		t := strings.TrimSpace(*v)
		return &t
	}
	params.Username = trim(params.Username)
	params.FirstName = trim(params.FirstName)
	params.LastName = trim(params.LastName)
	params.Mobile = trim(params.Mobile)

	if params.Username != nil && len(*params.Username) > 64 {
		return Profile{}, fmt.Errorf("%w: username longer than 64 characters", ErrInvalidProfile)
	}
	if params.Mobile != nil && *params.Mobile != "" && !validMobile(*params.Mobile) {
		return Profile{}, fmt.Errorf("%w: mobile must be digits with optional leading +", ErrInvalidProfile)
	}

	return s.repo.Update(ctx, id, params)
}

func validMobile(m string) bool {
	m = strings.TrimPrefix(m, "+")
	if len(m) < 7 || len(m) > 15 {
		return false
	}
	for _, r := range m {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
