package agreement

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"pactflow/audit"
	"pactflow/auth"
	"pactflow/notify"
	"pactflow/profile"
)

// TestSigning_Integration connects to a real PostgreSQL via DATABASE_URL and
// runs invitations and concurrent signatures through the Postgres store.
func TestSigning_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is empty; set it to a live PostgreSQL to run integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	defer pool.Close()

	for _, table := range []string{"profiles", "agreements", "agreement_parties", "signatures", "audit_logs", "notify_outbox"} {
		if !tableExists(ctx, t, pool, table) {
			t.Skip("database schema missing; run migrations: pactctl migrate up")
		}
	}

	suffix := time.Now().UnixNano()
	seed := func(first string) auth.Principal {
		email := fmt.Sprintf("%s+%d@example.com", first, suffix)
		var id string
		if err := pool.QueryRow(ctx, `INSERT INTO profiles (email, first_name) VALUES ($1, $2) RETURNING id::text`, email, first).Scan(&id); err != nil {
			t.Fatalf("seed profile %s: %v", first, err)
		}
		return auth.Principal{ID: id, Email: email, DisplayName: first}
	}
	creator := seed("cara")
	alice := seed("alice")
	bob := seed("bob")

	var agreementID string
	t.Cleanup(func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel2()
		pool.Exec(ctx2, `DELETE FROM notify_outbox WHERE agreement_id = $1`, agreementID)
		pool.Exec(ctx2, `DELETE FROM agreements WHERE id = $1`, agreementID)
		pool.Exec(ctx2, `DELETE FROM profiles WHERE id IN ($1, $2, $3)`, creator.ID, alice.ID, bob.ID)
		// audit_logs is append-only; its rows stay behind.
	})

	store := NewPGStore(pool, notify.NewOutbox(pool))
	directory := profile.NewService(profile.NewRepository(pool))
	svc := NewService(store, directory, audit.NewLogger(audit.NewPGRecorder(pool), nil))

	a, err := svc.Create(ctx, creator, CreateParams{Title: "Integration lease", Type: TypeRental, Content: "terms"}, ClientMeta{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	agreementID = a.ID

	for _, p := range []auth.Principal{alice, bob} {
		if _, err := svc.Invite(ctx, creator, a.ID, p.Email, ClientMeta{}); err != nil {
			t.Fatalf("invite %s: %v", p.Email, err)
		}
	}
	if _, err := svc.Invite(ctx, creator, a.ID, alice.Email, ClientMeta{}); !errors.Is(err, ErrDuplicateParty) {
		t.Fatalf("expected ErrDuplicateParty, got %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range []auth.Principal{alice, bob} {
		g.Go(func() error {
			_, err := svc.Sign(gctx, p, a.ID, SignRequest{Payload: DigitalPayload{Name: p.DisplayName}})
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent sign: %v", err)
	}

	got, err := svc.Get(ctx, creator, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if len(got.Signatures) != 2 || len(got.Parties) != 2 {
		t.Fatalf("expected 2 parties and 2 signatures, got %d and %d", len(got.Parties), len(got.Signatures))
	}

	var invitations, completions int
	err = pool.QueryRow(ctx, `
SELECT COUNT(*) FILTER (WHERE type = 'invitation'), COUNT(*) FILTER (WHERE type = 'completed')
FROM notify_outbox WHERE agreement_id = $1`, a.ID).Scan(&invitations, &completions)
	if err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	if invitations != 2 || completions != 3 {
		t.Fatalf("expected 2 invitations and 3 completion notices, got %d and %d", invitations, completions)
	}

	inconsistent, err := store.ListInconsistent(ctx)
	if err != nil {
		t.Fatalf("list inconsistent: %v", err)
	}
	for _, id := range inconsistent {
		if id == a.ID {
			t.Fatalf("completed agreement reported inconsistent")
		}
	}

	trail, err := svc.AuditTrail(ctx, creator, a.ID)
	if err != nil {
		t.Fatalf("audit trail: %v", err)
	}
	if len(trail) != 5 {
		t.Fatalf("expected 5 audit entries (created, 2 invites, 2 signatures), got %d", len(trail))
	}
}

func tableExists(ctx context.Context, t *testing.T, pool *pgxpool.Pool, name string) bool {
	t.Helper()
	var exists bool
	err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)`, name).Scan(&exists)
	if err != nil {
		t.Fatalf("check table %s: %v", name, err)
	}
	return exists
}

// TestSigning_IntegrationSmallPool signs with more concurrent signers than
// pool connections, with OTP codes required, and checks a failed signature
// leaves its code usable.
func TestSigning_IntegrationSmallPool(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is empty; set it to a live PostgreSQL to run integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("parse dsn: %v", err)
	}
	cfg.MaxConns = 2
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	defer pool.Close()

	for _, table := range []string{"profiles", "agreements", "agreement_parties", "signatures", "audit_logs", "notify_outbox", "signature_otps"} {
		if !tableExists(ctx, t, pool, table) {
			t.Skip("database schema missing; run migrations: pactctl migrate up")
		}
	}

	suffix := time.Now().UnixNano()
	var seeded []string
	seed := func(first string) auth.Principal {
		email := fmt.Sprintf("%s+%d@example.com", first, suffix)
		var id string
		if err := pool.QueryRow(ctx, `INSERT INTO profiles (email, first_name) VALUES ($1, $2) RETURNING id::text`, email, first).Scan(&id); err != nil {
			t.Fatalf("seed profile %s: %v", first, err)
		}
		seeded = append(seeded, id)
		return auth.Principal{ID: id, Email: email, DisplayName: first}
	}
	creator := seed("cara")
	signers := make([]auth.Principal, 6)
	for i := range signers {
		signers[i] = seed(fmt.Sprintf("signer%d", i))
	}

	var agreementID string
	t.Cleanup(func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel2()
		pool.Exec(ctx2, `DELETE FROM notify_outbox WHERE agreement_id = $1`, agreementID)
		pool.Exec(ctx2, `DELETE FROM signature_otps WHERE agreement_id = $1`, agreementID)
		pool.Exec(ctx2, `DELETE FROM agreements WHERE id = $1`, agreementID)
		pool.Exec(ctx2, `DELETE FROM profiles WHERE id::text = ANY($1)`, seeded)
	})

	store := NewPGStore(pool, notify.NewOutbox(pool))
	directory := profile.NewService(profile.NewRepository(pool))
	otp := auth.NewOTPService(auth.NewOTPRepository(pool), 10*time.Minute)
	svc := NewService(store, directory, audit.NewLogger(audit.NewPGRecorder(pool), nil)).WithOTPVerifier(otp)

	a, err := svc.Create(ctx, creator, CreateParams{Title: "Small pool lease", Type: TypeRental, Content: "terms"}, ClientMeta{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	agreementID = a.ID

	codes := make([]string, len(signers))
	for i, p := range signers {
		if _, err := svc.Invite(ctx, creator, a.ID, p.Email, ClientMeta{}); err != nil {
			t.Fatalf("invite %s: %v", p.Email, err)
		}
		if codes[i], _, err = otp.Issue(ctx, a.ID, p.ID); err != nil {
			t.Fatalf("issue otp: %v", err)
		}
	}

	failing := NewService(&failingSignatureStore{Store: store}, directory, audit.NewLogger(audit.NewPGRecorder(pool), nil)).WithOTPVerifier(otp)
	if _, err := failing.Sign(ctx, signers[0], a.ID, SignRequest{Payload: OTPPayload{Code: codes[0]}}); !errors.Is(err, ErrStore) {
		t.Fatalf("expected ErrStore from failed insert, got %v", err)
	}
	var unused int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM signature_otps WHERE agreement_id = $1 AND used_at IS NULL`, a.ID).Scan(&unused); err != nil {
		t.Fatalf("count codes: %v", err)
	}
	if unused != len(signers) {
		t.Fatalf("a rolled back signature consumed its code: %d of %d unused", unused, len(signers))
	}

	results := make([]SignResult, len(signers))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range signers {
		g.Go(func() error {
			res, err := svc.Sign(gctx, p, a.ID, SignRequest{Payload: OTPPayload{Code: codes[i]}})
			results[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent sign: %v", err)
	}

	completed := 0
	for _, res := range results {
		if res.Completed {
			completed++
		}
	}
	if completed != 1 {
		t.Fatalf("expected exactly one signer to complete the agreement, got %d", completed)
	}

	got, err := svc.Get(ctx, creator, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusCompleted || len(got.Signatures) != len(signers) {
		t.Fatalf("expected completed with %d signatures, got %s with %d", len(signers), got.Status, len(got.Signatures))
	}

	var completions int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM notify_outbox WHERE agreement_id = $1 AND type = 'completed'`, a.ID).Scan(&completions); err != nil {
		t.Fatalf("count outbox: %v", err)
	}
	if completions != len(signers)+1 {
		t.Fatalf("expected %d completion notices, got %d", len(signers)+1, completions)
	}
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM signature_otps WHERE agreement_id = $1 AND used_at IS NULL`, a.ID).Scan(&unused); err != nil {
		t.Fatalf("count codes: %v", err)
	}
	if unused != 0 {
		t.Fatalf("expected every code consumed, %d left", unused)
	}
}
