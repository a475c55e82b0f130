package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newCleanupCmd() *cobra.Command {

	var maxAge time.Duration
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "End the sessions that have been active for too long",
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxAge <= 0 {
				maxAge = cfg.Tracking.StaleMaxAge.Duration
			}
			stores, err := openStores(cfg)
			if err != nil {
				return err
			}
			defer stores.Close()

			count, err := stores.tracking.CleanupStale(cmd.Context(), maxAge)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ended %d sessions older than %s\n", count, maxAge)
			return nil
		},
	}
	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "Sessions older than this are ended (default from tracking.stale_max_age)")
	return cmd
}
