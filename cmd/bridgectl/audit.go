package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"aibridge.io/internal/store/pg"
)

func newAuditCommand(flags *globalFlags) *cobra.Command {
	var (
		since time.Duration
		limit int
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Print recent audit records as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(flags)
			if err != nil {
				return err
			}
			defer store.Close()
			ctx, cancel := commandContext(cmd, flags)
			defer cancel()

			records, err := pg.NewAuditSink(store.DB()).Recent(ctx, time.Now().Add(-since), limit)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, r := range records {
				if err := enc.Encode(r); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&since, "since", time.Hour, "how far back to look")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum records to print")
	return cmd
}
