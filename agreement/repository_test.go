package agreement

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"pactflow/notify"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "no rows", err: pgx.ErrNoRows, want: ErrNotFound},
		{name: "wrapped no rows", err: fmt.Errorf("scan: %w", pgx.ErrNoRows), want: ErrNotFound},
		{name: "duplicate party", err: &pgconn.PgError{Code: "23505", ConstraintName: partyUniqueConstraint}, want: ErrDuplicateParty},
		{name: "duplicate signature", err: &pgconn.PgError{Code: "23505", ConstraintName: signatureUniqueConstraint}, want: ErrAlreadyResponded},
		{name: "malformed uuid", err: &pgconn.PgError{Code: "22P02"}, want: ErrNotFound},
		{name: "other unique violation", err: &pgconn.PgError{Code: "23505", ConstraintName: "profiles_email_key"}, want: ErrStore},
		{name: "connection failure", err: errors.New("connection reset"), want: ErrStore},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := translate("op", tc.err); !errors.Is(got, tc.want) {
				t.Fatalf("translate(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}

	if translate("op", nil) != nil {
		t.Fatal("translate(nil) must be nil")
	}

	var storeErr *StoreError
	if !errors.As(translate("lock agreement", errors.New("boom")), &storeErr) || storeErr.Op != "lock agreement" {
		t.Fatalf("expected *StoreError with op, got %v", storeErr)
	}
}

func TestWithinAgreement_CommitsOnSuccess(t *testing.T) {
	pool := &fakePool{row: agreementRow("agreement-1", StatusDraft)}
	outbox := &fakeOutbox{}
	store := NewPGStore(pool, outbox)

	msg := notify.Message{To: "alice@example.com", Type: notify.TypeInvitation, AgreementID: "agreement-1"}
	err := store.WithinAgreement(context.Background(), "agreement-1", func(u Unit) error {
		if u.Agreement().ID != "agreement-1" || u.Agreement().Status != StatusDraft || u.Agreement().CreatorEmail != "cara@example.com" {
			return fmt.Errorf("unexpected locked agreement %+v", u.Agreement())
		}
		return u.Enqueue(context.Background(), msg)
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if pool.tx == nil {
		t.Fatalf("expected Begin to provide transaction")
	}
	if !pool.tx.committed {
		t.Errorf("expected commit to be called")
	}
	if outbox.tx != pool.tx {
		t.Errorf("expected notification to be written in the unit's transaction")
	}
	if len(pool.tx.queries) == 0 || !strings.Contains(pool.tx.queries[0], "FOR UPDATE") {
		t.Errorf("expected the agreement row to be locked, queries: %v", pool.tx.queries)
	}
}

func TestWithinAgreement_RollsBackOnError(t *testing.T) {
	pool := &fakePool{row: agreementRow("agreement-1", StatusPending)}
	store := NewPGStore(pool, &fakeOutbox{})

	err := store.WithinAgreement(context.Background(), "agreement-1", func(u Unit) error {
		return ErrNotAParty
	})
	if !errors.Is(err, ErrNotAParty) {
		t.Fatalf("expected ErrNotAParty to pass through, got %v", err)
	}
	if !pool.tx.rolled {
		t.Errorf("expected rollback to be called")
	}
	if pool.tx.committed {
		t.Errorf("expected commit to be skipped")
	}
}

func TestWithinAgreement_UnknownAgreement(t *testing.T) {
	pool := &fakePool{row: fakeRow{err: pgx.ErrNoRows}}
	store := NewPGStore(pool, &fakeOutbox{})

	called := false
	err := store.WithinAgreement(context.Background(), "missing", func(Unit) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if called {
		t.Errorf("fn must not run without a locked agreement")
	}
	if !pool.tx.rolled || pool.tx.committed {
		t.Errorf("expected rollback only, rolled=%v committed=%v", pool.tx.rolled, pool.tx.committed)
	}
}

func TestWithinAgreement_BeginFailure(t *testing.T) {
	pool := &fakePool{beginErr: errors.New("pool exhausted")}
	store := NewPGStore(pool, &fakeOutbox{})

	err := store.WithinAgreement(context.Background(), "agreement-1", func(Unit) error { return nil })
	if !errors.Is(err, ErrStore) {
		t.Fatalf("expected ErrStore, got %v", err)
	}
}

func TestPGUnit_EnqueueFailureIsStoreError(t *testing.T) {
	pool := &fakePool{row: agreementRow("agreement-1", StatusDraft)}
	store := NewPGStore(pool, &fakeOutbox{err: errors.New("disk full")})

	err := store.WithinAgreement(context.Background(), "agreement-1", func(u Unit) error {
		return u.Enqueue(context.Background(), notify.Message{To: "a@example.com", Type: notify.TypeCompleted, AgreementID: "agreement-1"})
	})
	if !errors.Is(err, ErrStore) {
		t.Fatalf("expected ErrStore, got %v", err)
	}
	if pool.tx.committed {
		t.Errorf("expected commit to be skipped")
	}
}

func TestPGUnit_OTPsUseUnitTransaction(t *testing.T) {
	pool := &fakePool{row: agreementRow("agreement-1", StatusPending)}
	store := NewPGStore(pool, &fakeOutbox{})

	err := store.WithinAgreement(context.Background(), "agreement-1", func(u Unit) error {
		return u.OTPs().MarkUsed(context.Background(), "otp-1", time.Now())
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	var consumed bool
	for _, q := range pool.tx.queries {
		if strings.Contains(q, "UPDATE signature_otps") {
			consumed = true
		}
	}
	if !consumed {
		t.Fatalf("expected the code to be consumed in the unit's transaction, queries: %v", pool.tx.queries)
	}
	if !pool.tx.committed {
		t.Errorf("expected commit to be called")
	}
}

func agreementRow(id string, status Status) fakeRow {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return fakeRow{values: []any{
		id, "Lease", string(TypeRental), "content", []byte(`{"ownerName":"Cara"}`),
		string(status), "creator-1", "cara@example.com", (*string)(nil), now, now,
	}}
}

type fakeOutbox struct {
	err error
	tx  pgx.Tx
}

func (f *fakeOutbox) Enqueue(_ context.Context, tx pgx.Tx, msg notify.Message) error {
	f.tx = tx
	return f.err
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return fmt.Errorf("fakeRow: %d destinations for %d values", len(dest), len(r.values))
	}
	for i, d := range dest {
		switch d := d.(type) {
		case *string:
			*d = r.values[i].(string)
		case **string:
			*d = r.values[i].(*string)
		case *[]byte:
			*d = r.values[i].([]byte)
		case *time.Time:
			*d = r.values[i].(time.Time)
		default:
			return fmt.Errorf("fakeRow: unsupported destination %T", d)
		}
	}
	return nil
}

type fakePool struct {
	row      fakeRow
	beginErr error
	tx       *fakeTx
}

func (f *fakePool) Begin(ctx context.Context) (pgx.Tx, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	f.tx = &fakeTx{row: f.row}
	return f.tx, nil
}

func (f *fakePool) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("not implemented")
}

func (f *fakePool) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("not implemented")
}

type fakeTx struct {
	row       fakeRow
	queries   []string
	rolled    bool
	committed bool
}

func (f *fakeTx) Begin(context.Context) (pgx.Tx, error) {
	return nil, errors.New("fakeTx does not support nested transactions")
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolled = true
	return nil
}

func (f *fakeTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}

func (f *fakeTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}

func (f *fakeTx) LargeObjects() pgx.LargeObjects {
	panic("not implemented")
}

func (f *fakeTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}

func (f *fakeTx) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.queries = append(f.queries, sql)
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

func (f *fakeTx) Query(context.Context, string, ...any) (pgx.Rows, error) {
	panic("not implemented")
}

func (f *fakeTx) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	f.queries = append(f.queries, sql)
	return f.row
}

func (f *fakeTx) Conn() *pgx.Conn {
	return nil
}
