package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"pactflow/agreement"
	"pactflow/auth"
	"pactflow/notify"
)

// Registry is the shared set of agreements the actors compete over.
type Registry struct {
	mu  sync.RWMutex
	ids []string
}

func (r *Registry) Add(id string) {
	r.mu.Lock()
	r.ids = append(r.ids, id)
	r.mu.Unlock()
}

// Pick returns a random known agreement id, or "" when none exist yet.
func (r *Registry) Pick(rng *rand.Rand) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.ids) == 0 {
		return ""
	}
	return r.ids[rng.IntN(len(r.ids))]
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ids)
}

// expected reports errors that concurrent actors legitimately provoke. Store
// errors are expected too because chaos kills backends mid-transaction.
func expected(err error) bool {
	return err == nil ||
		errors.Is(err, agreement.ErrNotAParty) ||
		errors.Is(err, agreement.ErrAlreadyResponded) ||
		errors.Is(err, agreement.ErrInvalidInput) ||
		errors.Is(err, agreement.ErrDuplicateParty) ||
		errors.Is(err, agreement.ErrStore) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func pause(rng *rand.Rand, minMS, spreadMS int) {
	time.Sleep(time.Duration(minMS+rng.IntN(spreadMS)) * time.Millisecond)
}

func stopped(ctx context.Context, stop <-chan struct{}) bool {
	select {
	case <-ctx.Done():
		return true
	case <-stop:
		return true
	default:
		return false
	}
}

// Creator drafts agreements and invites a random subset of signers to each.
func Creator(ctx context.Context, svc *agreement.Service, creator auth.Principal, signers []auth.Principal, reg *Registry, rng *rand.Rand, stop <-chan struct{}) error {
	for !stopped(ctx, stop) {
		a, err := svc.Create(ctx, creator, agreement.CreateParams{
			Title: fmt.Sprintf("Stress NDA %d", rng.Int64()),
			Type:  agreement.TypeNDA,
		}, agreement.ClientMeta{})
		if err != nil {
			if expected(err) {
				continue
			}
			return fmt.Errorf("creator create: %w", err)
		}

		n := 1 + rng.IntN(len(signers))
		for _, i := range rng.Perm(len(signers))[:n] {
			if _, err := svc.Invite(ctx, creator, a.ID, signers[i].Email, agreement.ClientMeta{}); !expected(err) {
				return fmt.Errorf("creator invite: %w", err)
			}
		}
		reg.Add(a.ID)
		pause(rng, 20, 40)
	}
	return nil
}

// Signer signs random agreements, sometimes twice in a row to exercise the
// idempotent path.
func Signer(ctx context.Context, svc *agreement.Service, signer auth.Principal, reg *Registry, rng *rand.Rand, stop <-chan struct{}) error {
	for !stopped(ctx, stop) {
		id := reg.Pick(rng)
		if id == "" {
			pause(rng, 10, 20)
			continue
		}
		req := agreement.SignRequest{Payload: agreement.DigitalPayload{Name: signer.DisplayName, Timestamp: time.Now().UTC()}}
		repeats := 1 + rng.IntN(2)
		for range repeats {
			if _, err := svc.Sign(ctx, signer, id, req); !expected(err) {
				return fmt.Errorf("signer sign %s: %w", id, err)
			}
		}
		pause(rng, 10, 30)
	}
	return nil
}

// Viewer marks random agreements viewed and occasionally rejects one.
func Viewer(ctx context.Context, svc *agreement.Service, party auth.Principal, reg *Registry, rng *rand.Rand, stop <-chan struct{}) error {
	for !stopped(ctx, stop) {
		id := reg.Pick(rng)
		if id == "" {
			pause(rng, 10, 20)
			continue
		}
		if err := svc.MarkViewed(ctx, party, id, agreement.ClientMeta{}); !expected(err) {
			return fmt.Errorf("viewer view %s: %w", id, err)
		}
		if rng.IntN(20) == 0 {
			if _, err := svc.Reject(ctx, party, id, "stress", agreement.ClientMeta{}); !expected(err) {
				return fmt.Errorf("viewer reject %s: %w", id, err)
			}
		}
		pause(rng, 30, 50)
	}
	return nil
}

// OutboxDrainer delivers queued notifications through a sender that fails
// about one time in ten.
func OutboxDrainer(ctx context.Context, source notify.Source, rng *rand.Rand, stop <-chan struct{}) error {
	var mu sync.Mutex
	sender := notify.SenderFunc(func(context.Context, notify.Message) error {
		mu.Lock()
		defer mu.Unlock()
		if rng.IntN(10) == 0 {
			return errors.New("simulated delivery failure")
		}
		return nil
	})
	worker := notify.NewWorker(source, sender, notify.WorkerConfig{
		BatchSize:   20,
		BaseBackoff: 10 * time.Millisecond,
		MaxBackoff:  100 * time.Millisecond,
	}, nil)

	for !stopped(ctx, stop) {
		n, err := worker.DrainOnce(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			// claim fails while chaos has the connection
			pause(rng, 50, 50)
			continue
		}
		if n == 0 {
			time.Sleep(100 * time.Millisecond)
		}
	}
	return nil
}

// Repairer runs the repair pass. Every service write keeps the stored status
// in step with the parties, so any repair is a failure.
func Repairer(ctx context.Context, repairer *agreement.Repairer, stop <-chan struct{}) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-stop:
			return nil
		case <-ticker.C:
		}
		n, err := repairer.Run(ctx)
		if n > 0 {
			return fmt.Errorf("repair pass corrected %d agreement(s)", n)
		}
		if err != nil && !expected(err) {
			return fmt.Errorf("repair pass: %w", err)
		}
	}
}
