package profile

import (
	"context"
	"errors"
	"testing"
)

func TestService_GetByEmailIsCaseInsensitive(t *testing.T) {
	repo := NewMemoryRepository()
	stored := repo.Put(Profile{Email: "Tenant@Example.com", FirstName: "Tara"})
	svc := NewService(repo)

	got, err := svc.GetByEmail(context.Background(), "  tenant@example.COM ")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got.ID != stored.ID {
		t.Fatalf("expected id %q got %q", stored.ID, got.ID)
	}

	if _, err := svc.GetByEmail(context.Background(), "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.GetByEmail(context.Background(), "   "); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for blank email, got %v", err)
	}
}

func TestService_UpdateTrimsAndValidates(t *testing.T) {
	repo := NewMemoryRepository()
	p := repo.Put(Profile{Email: "owner@example.com"})
	svc := NewService(repo)

	first, last, mobile := "  Olga ", " Owner", "+441234567890"
	updated, err := svc.Update(context.Background(), p.ID, UpdateParams{FirstName: &first, LastName: &last, Mobile: &mobile})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.DisplayName() != "Olga Owner" {
		t.Fatalf("unexpected display name %q", updated.DisplayName())
	}

	bad := "12ab"
	if _, err := svc.Update(context.Background(), p.ID, UpdateParams{Mobile: &bad}); !errors.Is(err, ErrInvalidProfile) {
		t.Fatalf("expected ErrInvalidProfile, got %v", err)
	}
}

func TestProfile_DisplayNameFallbacks(t *testing.T) {
	cases := []struct {
		profile Profile
		want    string
	}{
		{Profile{FirstName: "Ana", LastName: "Lee", Username: "ana", Email: "a@example.com"}, "Ana Lee"},
		{Profile{FirstName: "Ana", Email: "a@example.com"}, "Ana"},
		{Profile{Username: "ana", Email: "a@example.com"}, "ana"},
		{Profile{Email: "a@example.com"}, "a@example.com"},
	}
	for _, tc := range cases {
		if got := tc.profile.DisplayName(); got != tc.want {
			t.Errorf("DisplayName(%+v) = %q, want %q", tc.profile, got, tc.want)
		}
	}
}
