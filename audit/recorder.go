package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrInvalidEntry = errors.New("audit: invalid entry")

// Recorder persists audit entries.
type Recorder interface {
	Append(ctx context.Context, e Entry) error
	List(ctx context.Context, agreementID string) ([]Entry, error)
}

type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PGRecorder stores entries in audit_logs.
type PGRecorder struct {
	db Querier
}

func NewPGRecorder(db Querier) *PGRecorder {
	return &PGRecorder{db: db}
}

func (r *PGRecorder) Append(ctx context.Context, e Entry) error {
	if e.AgreementID == "" || e.Action == "" {
		return ErrInvalidEntry
	}
	details := e.Details
	if details == nil {
		details = map[string]any{}
	}
	payload, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("audit: marshal details: %w", err)
	}

	const insertSQL = `
INSERT INTO audit_logs (agreement_id, user_id, action, details, ip_address, user_agent)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''));
`
	if _, err := r.db.Exec(ctx, insertSQL, e.AgreementID, e.UserID, string(e.Action), payload, e.IPAddress, e.UserAgent); err != nil {
		return fmt.Errorf("audit: insert entry: %w", err)
	}
	return nil
}

func (r *PGRecorder) List(ctx context.Context, agreementID string) ([]Entry, error) {
	const selectSQL = `
SELECT id, agreement_id::text, user_id::text, action, details,
       COALESCE(ip_address, ''), COALESCE(user_agent, ''), created_at
FROM audit_logs
WHERE agreement_id = $1
ORDER BY id;
`
	rows, err := r.db.Query(ctx, selectSQL, agreementID)
	if err != nil {
		return nil, fmt.Errorf("audit: list entries: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var (
			e       Entry
			action  string
			details []byte
		)
		if err := rows.Scan(&e.ID, &e.AgreementID, &e.UserID, &action, &details, &e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan entry: %w", err)
		}
		e.Action = Action(action)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("audit: decode details: %w", err)
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: iterate entries: %w", err)
	}
	return out, nil
}

// MemoryRecorder keeps entries in process.
type MemoryRecorder struct {
	mu      sync.Mutex
	entries []Entry
	nextID  int64
	now     func() time.Time
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{now: time.Now}
}

func (r *MemoryRecorder) Append(_ context.Context, e Entry) error {
	if e.AgreementID == "" || e.Action == "" {
		return ErrInvalidEntry
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	e.ID = r.nextID
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now().UTC()
	}
	r.entries = append(r.entries, e)
	return nil
}

func (r *MemoryRecorder) List(_ context.Context, agreementID string) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Entry{}
	for _, e := range r.entries {
		if e.AgreementID == agreementID {
			out = append(out, e)
		}
	}
	return out, nil
}
