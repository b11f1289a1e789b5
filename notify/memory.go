package notify

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRow struct {
	env       Envelope
	status    string
	nextAt    time.Time
	lastError string
}

// MemoryQueue is an in-process outbox used with the in-memory agreement store
// and in tests. It implements Source.
type MemoryQueue struct {
	mu   sync.Mutex
	rows map[string]*memoryRow
	now  func() time.Time
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{rows: make(map[string]*memoryRow), now: time.Now}
}

// Push appends msg as a pending message.
func (q *MemoryQueue) Push(msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	id := uuid.NewString()
	q.rows[id] = &memoryRow{
		env:    Envelope{ID: id, Message: msg, CreatedAt: now},
		status: StatusPending,
		nextAt: now,
	}
	return nil
}

func (q *MemoryQueue) Claim(_ context.Context, limit int, lease time.Duration) ([]Envelope, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()

	due := make([]*memoryRow, 0, len(q.rows))
	for _, r := range q.rows {
		if r.status == StatusPending && !r.nextAt.After(now) {
			due = append(due, r)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].env.CreatedAt.Before(due[j].env.CreatedAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	out := make([]Envelope, 0, len(due))
	for _, r := range due {
		r.nextAt = now.Add(lease)
		out = append(out, r.env)
	}
	return out, nil
}

func (q *MemoryQueue) MarkSent(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if r, ok := q.rows[id]; ok {
		r.status = StatusSent
		r.env.Attempts++
		r.lastError = ""
	}
	return nil
}

func (q *MemoryQueue) MarkFailed(_ context.Context, id string, cause error, retryAt time.Time, dead bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	r, ok := q.rows[id]
	if !ok {
		return nil
	}
	r.env.Attempts++
	r.nextAt = retryAt
	if cause != nil {
		r.lastError = cause.Error()
	}
	if dead {
		r.status = StatusDead
	}
	return nil
}

// Messages returns every message with the given status, oldest first.
func (q *MemoryQueue) Messages(status string) []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	rows := make([]*memoryRow, 0, len(q.rows))
	for _, r := range q.rows {
		if r.status == status {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].env.CreatedAt.Before(rows[j].env.CreatedAt) })
	out := make([]Message, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.env.Message)
	}
	return out
}
