package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Source is the queue a Worker drains. *Outbox and *MemoryQueue implement it.
type Source interface {
	Claim(ctx context.Context, limit int, lease time.Duration) ([]Envelope, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, cause error, retryAt time.Time, dead bool) error
}

// Observer receives delivery outcomes, typically a metrics collector.
type Observer interface {
	NotificationDelivered(t Type)
	NotificationFailed(t Type, dead bool)
}

type nopObserver struct{}

func (nopObserver) NotificationDelivered(Type)     {}
func (nopObserver) NotificationFailed(Type, bool) {}

type WorkerConfig struct {
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	Lease        time.Duration
	BaseBackoff  time.Duration
	MaxBackoff   time.Duration
	Concurrency  int
	SendTimeout  time.Duration
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 10
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.Lease <= 0 {
		c.Lease = time.Minute
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 5 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = time.Hour
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 4
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 15 * time.Second
	}
	return c
}

// Worker polls a Source and hands each message to a Sender. Delivery failures
// are retried with exponential backoff and never surface to the business flow.
type Worker struct {
	source   Source
	sender   Sender
	cfg      WorkerConfig
	logger   *slog.Logger
	observer Observer
	now      func() time.Time
}

func NewWorker(source Source, sender Sender, cfg WorkerConfig, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		source:   source,
		sender:   sender,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		observer: nopObserver{},
		now:      time.Now,
	}
}

func (w *Worker) WithObserver(o Observer) *Worker {
	if o != nil {
		w.observer = o
	}
	return w
}

func (w *Worker) WithClock(now func() time.Time) *Worker {
	w.now = now
	return w
}

// Run drains the source until ctx is cancelled. It returns nil on cancellation.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		n, err := w.DrainOnce(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			w.logger.WarnContext(ctx, "outbox drain failed", slog.Any("error", err))
		}
		// keep draining while full batches come back
		if err == nil && n == w.cfg.BatchSize {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// DrainOnce claims a single batch and delivers it. It returns the number of
// messages claimed.
func (w *Worker) DrainOnce(ctx context.Context) (int, error) {
	batch, err := w.source.Claim(ctx, w.cfg.BatchSize, w.cfg.Lease)
	if err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Concurrency)
	for _, env := range batch {
		g.Go(func() error {
			return w.deliver(gctx, env)
		})
	}
	return len(batch), g.Wait()
}

func (w *Worker) deliver(ctx context.Context, env Envelope) error {
	sendCtx, cancel := context.WithTimeout(ctx, w.cfg.SendTimeout)
	sendErr := w.sender.Send(sendCtx, env.Message)
	cancel()

	// bookkeeping must land even if the worker is shutting down
	markCtx, markCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer markCancel()

	if sendErr == nil {
		w.observer.NotificationDelivered(env.Message.Type)
		return w.source.MarkSent(markCtx, env.ID)
	}

	attempts := env.Attempts + 1
	dead := attempts >= w.cfg.MaxAttempts
	w.observer.NotificationFailed(env.Message.Type, dead)
	w.logger.WarnContext(ctx, "notification delivery failed",
		slog.String("outbox_id", env.ID),
		slog.String("type", string(env.Message.Type)),
		slog.String("agreement_id", env.Message.AgreementID),
		slog.Int("attempts", attempts),
		slog.Bool("dead", dead),
		slog.Any("error", sendErr),
	)
	return w.source.MarkFailed(markCtx, env.ID, sendErr, w.now().Add(w.backoff(attempts)), dead)
}

func (w *Worker) backoff(attempts int) time.Duration {
	d := w.cfg.BaseBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= w.cfg.MaxBackoff {
			return w.cfg.MaxBackoff
		}
	}
	return d
}
