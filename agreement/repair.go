package agreement

import (
	"context"
	"errors"
	"log/slog"

	"pactflow/audit"
)

// Repairer re-runs Aggregate for agreements whose stored status disagrees
// with their parties, for example after a crash between writes.
type Repairer struct {
	svc *Service
}

func NewRepairer(svc *Service) *Repairer {
	return &Repairer{svc: svc}
}

// Run fixes every inconsistent agreement and returns how many changed.
// Failures on one agreement are logged and do not stop the pass.
func (r *Repairer) Run(ctx context.Context) (int, error) {
	ids, err := r.svc.store.ListInconsistent(ctx)
	if err != nil {
		return 0, err
	}

	repaired := 0
	var errs []error
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return repaired, err
		}
		from, to, err := r.repairOne(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			r.svc.logger.ErrorContext(ctx, "status repair failed",
				slog.String("agreement_id", id), slog.Any("error", err))
			errs = append(errs, err)
			continue
		}
		if from == to {
			continue
		}
		repaired++
		r.svc.logger.InfoContext(ctx, "agreement status repaired",
			slog.String("agreement_id", id),
			slog.String("from", string(from)),
			slog.String("to", string(to)),
		)
		r.svc.record(ctx, audit.ActionStatusRepaired, id, "", ClientMeta{}, map[string]any{
			"from": string(from),
			"to":   string(to),
		})
		r.svc.observer.StatusRepaired()
	}
	return repaired, errors.Join(errs...)
}

func (r *Repairer) repairOne(ctx context.Context, id string) (from, to Status, err error) {
	err = r.svc.store.WithinAgreement(ctx, id, func(u Unit) error {
		var err error
		from, to, err = r.svc.transition(ctx, u)
		return err
	})
	return from, to, err
}
