package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrOTPInvalid signals a code that does not match an outstanding one.
	ErrOTPInvalid = errors.New("auth: invalid one-time code")
	// ErrOTPExpired signals the outstanding code is past its expiry.
	ErrOTPExpired = errors.New("auth: one-time code expired")
	// ErrOTPNotFound is returned by repositories when no unused code exists.
	ErrOTPNotFound = errors.New("auth: no outstanding one-time code")
)

// OTPCodeLength is the number of digits in an issued code.
const OTPCodeLength = 6

// OTP is a stored signing code. Only the bcrypt hash is persisted.
type OTP struct {
	ID          string
	AgreementID string
	UserID      string
	CodeHash    string
	ExpiresAt   time.Time
	UsedAt      *time.Time
	CreatedAt   time.Time
}

// OTPStore reads and consumes outstanding codes.
type OTPStore interface {
	// LatestUnused returns the newest code for the pair that has not been used.
	LatestUnused(ctx context.Context, agreementID, userID string) (OTP, error)
	// MarkUsed consumes the code; it returns ErrOTPNotFound if it was already used.
	MarkUsed(ctx context.Context, id string, at time.Time) error
}

// OTPRepository persists signing codes.
type OTPRepository interface {
	InsertOTP(ctx context.Context, otp OTP) (OTP, error)
	OTPStore
}

// OTPService issues and verifies one-time signing codes.
type OTPService struct {
	repo OTPRepository
	ttl  time.Duration
	now  func() time.Time
}

func NewOTPService(repo OTPRepository, ttl time.Duration) *OTPService {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &OTPService{repo: repo, ttl: ttl, now: time.Now}
}

// WithClock overrides the expiry clock.
func (s *OTPService) WithClock(now func() time.Time) *OTPService {
	if now != nil {
		s.now = now
	}
	return s
}

// Issue creates a fresh code for the signer of agreementID. The plain code is
// returned once and never stored.
func (s *OTPService) Issue(ctx context.Context, agreementID, userID string) (string, time.Time, error) {
	code, err := generateCode()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: generate otp: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: hash otp: %w", err)
	}

	now := s.now().UTC()
	stored, err := s.repo.InsertOTP(ctx, OTP{
		AgreementID: agreementID,
		UserID:      userID,
		CodeHash:    string(hash),
		ExpiresAt:   now.Add(s.ttl),
		CreatedAt:   now,
	})
	if err != nil {
		return "", time.Time{}, err
	}
	return code, stored.ExpiresAt, nil
}

// Verify consumes the latest outstanding code in codes when it matches.
// Passing a transaction-bound store ties the consumption to that
// transaction, so a rolled back signature leaves the code usable.
func (s *OTPService) Verify(ctx context.Context, codes OTPStore, agreementID, userID, code string) error {
	if codes == nil {
		codes = s.repo
	}
	otp, err := codes.LatestUnused(ctx, agreementID, userID)
	if err != nil {
		if errors.Is(err, ErrOTPNotFound) {
			return ErrOTPInvalid
		}
		return err
	}

	now := s.now().UTC()
	if !now.Before(otp.ExpiresAt) {
		return ErrOTPExpired
	}
	if err := bcrypt.CompareHashAndPassword([]byte(otp.CodeHash), []byte(code)); err != nil {
		return ErrOTPInvalid
	}
	if err := codes.MarkUsed(ctx, otp.ID, now); err != nil {
		if errors.Is(err, ErrOTPNotFound) {
			return ErrOTPInvalid
		}
		return err
	}
	return nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", OTPCodeLength, n.Int64()), nil
}

// OTPDB is satisfied by pgxpool.Pool and pgx.Tx.
type OTPDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGOTPRepository stores codes in signature_otps.
type PGOTPRepository struct {
	db OTPDB
}

// NewOTPRepository binds the repository to a pool, or to a transaction
// when codes must be consumed together with other writes.
func NewOTPRepository(db OTPDB) *PGOTPRepository {
	return &PGOTPRepository{db: db}
}

func (r *PGOTPRepository) InsertOTP(ctx context.Context, otp OTP) (OTP, error) {
	const query = `
INSERT INTO signature_otps (agreement_id, user_id, code_hash, expires_at)
VALUES ($1, $2, $3, $4)
RETURNING id::text, created_at
`
	if err := r.db.QueryRow(ctx, query, otp.AgreementID, otp.UserID, otp.CodeHash, otp.ExpiresAt).
		Scan(&otp.ID, &otp.CreatedAt); err != nil {
		return OTP{}, fmt.Errorf("auth: insert otp: %w", err)
	}
	return otp, nil
}

func (r *PGOTPRepository) LatestUnused(ctx context.Context, agreementID, userID string) (OTP, error) {
	const query = `
SELECT id::text, agreement_id::text, user_id::text, code_hash, expires_at, used_at, created_at
FROM signature_otps
WHERE agreement_id = $1 AND user_id = $2 AND used_at IS NULL
ORDER BY created_at DESC
LIMIT 1
`
	var otp OTP
	err := r.db.QueryRow(ctx, query, agreementID, userID).Scan(
		&otp.ID, &otp.AgreementID, &otp.UserID, &otp.CodeHash, &otp.ExpiresAt, &otp.UsedAt, &otp.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OTP{}, ErrOTPNotFound
		}
		return OTP{}, fmt.Errorf("auth: latest otp: %w", err)
	}
	return otp, nil
}

func (r *PGOTPRepository) MarkUsed(ctx context.Context, id string, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE signature_otps SET used_at = $2 WHERE id = $1 AND used_at IS NULL`, id, at)
	if err != nil {
		return fmt.Errorf("auth: mark otp used: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOTPNotFound
	}
	return nil
}
