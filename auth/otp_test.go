package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestOTPService_IssueAndVerify(t *testing.T) {
	repo := newFakeOTPRepository()
	svc := NewOTPService(repo, 10*time.Minute)
	ctx := context.Background()

	code, expires, err := svc.Issue(ctx, "agr-1", "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if len(code) != OTPCodeLength {
		t.Fatalf("expected %d digit code, got %q", OTPCodeLength, code)
	}
	if !expires.After(time.Now()) {
		t.Fatalf("expiry %v not in the future", expires)
	}

	if err := svc.Verify(ctx, repo, "agr-1", "user-2", code); !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("expected ErrOTPInvalid for other user, got %v", err)
	}
	if err := svc.Verify(ctx, repo, "agr-1", "user-1", code); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := svc.Verify(ctx, repo, "agr-1", "user-1", code); !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("expected reused code to be rejected, got %v", err)
	}
}

func TestOTPService_WrongCode(t *testing.T) {
	repo := newFakeOTPRepository()
	svc := NewOTPService(repo, time.Minute)
	ctx := context.Background()

	code, _, err := svc.Issue(ctx, "agr-1", "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	if err := svc.Verify(ctx, repo, "agr-1", "user-1", wrong); !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("expected ErrOTPInvalid, got %v", err)
	}
	if err := svc.Verify(ctx, repo, "agr-1", "user-1", code); err != nil {
		t.Fatalf("a wrong guess must not consume the code: %v", err)
	}
}

func TestOTPService_Expired(t *testing.T) {
	repo := newFakeOTPRepository()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := NewOTPService(repo, 5*time.Minute).WithClock(func() time.Time { return now })
	ctx := context.Background()

	code, _, err := svc.Issue(ctx, "agr-1", "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	now = now.Add(5 * time.Minute)
	if err := svc.Verify(ctx, repo, "agr-1", "user-1", code); !errors.Is(err, ErrOTPExpired) {
		t.Fatalf("expected ErrOTPExpired, got %v", err)
	}
}

func TestOTPService_VerifyConsumesInGivenStore(t *testing.T) {
	repo := newFakeOTPRepository()
	svc := NewOTPService(repo, time.Minute)
	ctx := context.Background()

	code, _, err := svc.Issue(ctx, "agr-1", "user-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	// A store whose writes are discarded, like a rolled back transaction.
	discarded := &discardingOTPStore{base: repo}
	if err := svc.Verify(ctx, discarded, "agr-1", "user-1", code); err != nil {
		t.Fatalf("verify in discarded store: %v", err)
	}
	if discarded.marked != 1 {
		t.Fatalf("expected the code to be consumed through the given store, marked=%d", discarded.marked)
	}
	if err := svc.Verify(ctx, nil, "agr-1", "user-1", code); err != nil {
		t.Fatalf("code must stay usable after a discarded consumption: %v", err)
	}
}

type discardingOTPStore struct {
	base   OTPStore
	marked int
}

func (d *discardingOTPStore) LatestUnused(ctx context.Context, agreementID, userID string) (OTP, error) {
	return d.base.LatestUnused(ctx, agreementID, userID)
}

func (d *discardingOTPStore) MarkUsed(context.Context, string, time.Time) error {
	d.marked++
	return nil
}

func TestGenerateCodeIsNumeric(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := generateCode()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(code) != OTPCodeLength {
			t.Fatalf("bad length %q", code)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("non-digit in %q", code)
			}
		}
	}
}

type fakeOTPRepository struct {
	rows   []OTP
	nextID int
}

func newFakeOTPRepository() *fakeOTPRepository {
	return &fakeOTPRepository{nextID: 1}
}

func (f *fakeOTPRepository) InsertOTP(ctx context.Context, otp OTP) (OTP, error) {
	otp.ID = fmt.Sprintf("otp-%d", f.nextID)
	f.nextID++
	f.rows = append(f.rows, otp)
	return otp, nil
}

func (f *fakeOTPRepository) LatestUnused(ctx context.Context, agreementID, userID string) (OTP, error) {
	for i := len(f.rows) - 1; i >= 0; i-- {
		row := f.rows[i]
		if row.AgreementID == agreementID && row.UserID == userID && row.UsedAt == nil {
			return row, nil
		}
	}
	return OTP{}, ErrOTPNotFound
}

func (f *fakeOTPRepository) MarkUsed(ctx context.Context, id string, at time.Time) error {
	for i := range f.rows {
		if f.rows[i].ID == id && f.rows[i].UsedAt == nil {
			used := at
			f.rows[i].UsedAt = &used
			return nil
		}
	}
	return ErrOTPNotFound
}
