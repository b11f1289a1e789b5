package chaos

import (
	"context"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TerminateRandomBackend periodically kills one backend whose application_name
// is appName, other than the caller's own. It returns the number killed once
// stop closes or ctx is done.
func TerminateRandomBackend(ctx context.Context, pool *pgxpool.Pool, appName string, rng *rand.Rand, stop <-chan struct{}) int64 {
	var killed atomic.Int64
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return killed.Load()
		case <-stop:
			return killed.Load()
		case <-ticker.C:
			if rng.IntN(5) != 0 {
				continue
			}
			tag, err := pool.Exec(ctx, `
SELECT pg_terminate_backend(pid) FROM pg_stat_activity
WHERE datname = current_database() AND application_name = $1 AND pid <> pg_backend_pid()
ORDER BY random() LIMIT 1`, appName)
			if err == nil {
				killed.Add(tag.RowsAffected())
			}
		}
	}
}
