package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pactflow/agreement"
	"pactflow/audit"
	"pactflow/notify"
	"pactflow/profile"
)

func newRepairCmd(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "Re-derive agreement statuses that disagree with their parties",
		Long: `Re-derive agreement statuses that disagree with their parties.

Each corrected agreement gets a status_repaired audit entry, and agreements
that become completed get their completion notices queued.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := opts.connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			log := opts.logger(cmd)
			svc := agreement.NewService(
				agreement.NewPGStore(pool, notify.NewOutbox(pool)),
				profile.NewService(profile.NewRepository(pool)),
				audit.NewLogger(audit.NewPGRecorder(pool), log),
			).WithLogger(log)

			n, err := agreement.NewRepairer(svc).Run(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "repaired %d agreement(s)\n", n)
			return err
		},
	}
}
