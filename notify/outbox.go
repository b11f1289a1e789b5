package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgxpool.Pool the outbox needs outside a business transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Outbox persists notifications in notify_outbox.
type Outbox struct {
	db Querier
}

func NewOutbox(db Querier) *Outbox {
	return &Outbox{db: db}
}

// Enqueue writes msg inside the caller's transaction so it commits or rolls
// back together with the business change that produced it.
func (o *Outbox) Enqueue(ctx context.Context, tx pgx.Tx, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notify: marshal outbox payload: %w", err)
	}

	const insertSQL = `
INSERT INTO notify_outbox (agreement_id, type, payload)
VALUES ($1, $2, $3);
`
	if _, err := tx.Exec(ctx, insertSQL, msg.AgreementID, string(msg.Type), payload); err != nil {
		return fmt.Errorf("notify: insert outbox message: %w", err)
	}
	return nil
}

// Claim leases up to limit due messages. Leased rows are pushed forward by
// lease so concurrent workers skip them until they are marked or the lease lapses.
func (o *Outbox) Claim(ctx context.Context, limit int, lease time.Duration) ([]Envelope, error) {
	const claimSQL = `
WITH due AS (
    SELECT id
    FROM notify_outbox
    WHERE status = 'pending' AND next_attempt_at <= now()
    ORDER BY created_at
    FOR UPDATE SKIP LOCKED
    LIMIT $1
)
UPDATE notify_outbox o
SET next_attempt_at = now() + make_interval(secs => $2)
FROM due
WHERE o.id = due.id
RETURNING o.id::text, o.payload, o.attempts, o.created_at;
`
	rows, err := o.db.Query(ctx, claimSQL, limit, lease.Seconds())
	if err != nil {
		return nil, fmt.Errorf("notify: claim outbox: %w", err)
	}
	defer rows.Close()

	var out []Envelope
	for rows.Next() {
		var (
			env     Envelope
			payload []byte
		)
		if err := rows.Scan(&env.ID, &payload, &env.Attempts, &env.CreatedAt); err != nil {
			return nil, fmt.Errorf("notify: scan outbox row: %w", err)
		}
		if err := json.Unmarshal(payload, &env.Message); err != nil {
			return nil, fmt.Errorf("notify: decode outbox payload %s: %w", env.ID, err)
		}
		out = append(out, env)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notify: iterate outbox: %w", err)
	}
	return out, nil
}

func (o *Outbox) MarkSent(ctx context.Context, id string) error {
	const updateSQL = `
UPDATE notify_outbox
SET status = 'sent', sent_at = now(), attempts = attempts + 1, last_error = NULL
WHERE id = $1;
`
	if _, err := o.db.Exec(ctx, updateSQL, id); err != nil {
		return fmt.Errorf("notify: mark sent: %w", err)
	}
	return nil
}

// MarkFailed records a failed delivery. dead rows are never retried.
func (o *Outbox) MarkFailed(ctx context.Context, id string, cause error, retryAt time.Time, dead bool) error {
	status := StatusPending
	if dead {
		status = StatusDead
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	const updateSQL = `
UPDATE notify_outbox
SET status = $2, attempts = attempts + 1, last_error = $3, next_attempt_at = $4
WHERE id = $1;
`
	if _, err := o.db.Exec(ctx, updateSQL, id, status, msg, retryAt.UTC()); err != nil {
		return fmt.Errorf("notify: mark failed: %w", err)
	}
	return nil
}
