package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pactflow/notify"
)

func newOutboxCmd(opts *globalOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and drain the notification outbox",
	}

	var (
		webhookURL string
		batches    int
		batchSize  int
		timeout    time.Duration
	)
	drain := &cobra.Command{
		Use:   "drain",
		Short: "Deliver pending notifications and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if batches <= 0 {
				return fmt.Errorf("--batches must be positive, got %d", batches)
			}
			ctx := cmd.Context()
			pool, err := opts.connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			log := opts.logger(cmd)
			var sender notify.Sender = notify.NewLogSender(log)
			if webhookURL != "" {
				sender = notify.NewWebhookSender(webhookURL, notify.NewSafeHTTPClient(timeout))
			}
			worker := notify.NewWorker(notify.NewOutbox(pool), sender, notify.WorkerConfig{
				BatchSize:   batchSize,
				SendTimeout: timeout,
			}, log)

			total := 0
			for i := 0; i < batches; i++ {
				n, err := worker.DrainOnce(ctx)
				total += n
				if err != nil {
					return err
				}
				if n == 0 {
					break
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "claimed %d notification(s)\n", total)
			return nil
		},
	}
	drain.Flags().StringVar(&webhookURL, "webhook-url", "", "deliver to this webhook instead of the log")
	drain.Flags().IntVar(&batches, "batches", 10, "maximum batches to claim")
	drain.Flags().IntVar(&batchSize, "batch-size", 50, "messages per batch")
	drain.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "per-message send timeout")

	cmd.AddCommand(drain)
	return cmd
}
