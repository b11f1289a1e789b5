package profile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the requested profile does not exist.
var ErrNotFound = errors.New("profile: not found")

// Repository provides access to profiles.
type Repository interface {
	GetByID(ctx context.Context, id string) (Profile, error)
	GetByEmail(ctx context.Context, email string) (Profile, error)
	Update(ctx context.Context, id string, params UpdateParams) (Profile, error)
}

// PGRepository reads and writes the profiles table.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const profileColumns = `id::text, email, username, first_name, last_name, mobile, created_at, updated_at`

func (r *PGRepository) GetByID(ctx context.Context, id string) (Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`

	p, err := scanProfile(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("profile: query by id: %w", err)
	}
	return p, nil
}

// GetByEmail matches case-insensitively; the unique index is on lower(email).
func (r *PGRepository) GetByEmail(ctx context.Context, email string) (Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE lower(email) = $1`

	p, err := scanProfile(r.pool.QueryRow(ctx, query, NormalizeEmail(email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("profile: query by email: %w", err)
	}
	return p, nil
}

func (r *PGRepository) Update(ctx context.Context, id string, params UpdateParams) (Profile, error) {
	query := `
UPDATE profiles
SET username   = COALESCE($2, username),
    first_name = COALESCE($3, first_name),
    last_name  = COALESCE($4, last_name),
    mobile     = COALESCE($5, mobile),
    updated_at = now()
WHERE id = $1
RETURNING ` + profileColumns

	p, err := scanProfile(r.pool.QueryRow(ctx, query, id, params.Username, params.FirstName, params.LastName, params.Mobile))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("profile: update: %w", err)
	}
	return p, nil
}

func scanProfile(row pgx.Row) (Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.Email, &p.Username, &p.FirstName, &p.LastName, &p.Mobile, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// MemoryRepository is an in-process Repository for tests and local runs.
type MemoryRepository struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

func NewMemoryRepository(seed ...Profile) *MemoryRepository {
	m := &MemoryRepository{profiles: make(map[string]Profile)}
	for _, p := range seed {
		m.Put(p)
	}
	return m
}

// Put inserts or replaces p, assigning an id when empty.
func (m *MemoryRepository) Put(p Profile) Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	m.profiles[p.ID] = p
	return p
}

func (m *MemoryRepository) GetByID(_ context.Context, id string) (Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return p, nil
}

func (m *MemoryRepository) GetByEmail(_ context.Context, email string) (Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	want := NormalizeEmail(email)
	for _, p := range m.profiles {
		if NormalizeEmail(p.Email) == want {
			return p, nil
		}
	}
	return Profile{}, ErrNotFound
}

func (m *MemoryRepository) Update(_ context.Context, id string, params UpdateParams) (Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return Profile{}, ErrNotFound
	}
	if params.Username != nil {
		p.Username = *params.Username
	}
	if params.FirstName != nil {
		p.FirstName = *params.FirstName
	}
	if params.LastName != nil {
		p.LastName = *params.LastName
	}
	if params.Mobile != nil {
		p.Mobile = *params.Mobile
	}
	p.UpdatedAt = time.Now().UTC()
	m.profiles[id] = p
	return p, nil
}
