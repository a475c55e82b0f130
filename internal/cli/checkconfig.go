package cli

import (
	"fmt"

	"apbeeper/internal/tracking"

	"github.com/spf13/cobra"
)

func newCheckConfigCmd() *cobra.Command {

	var settingsOnly bool
	cmd := &cobra.Command{
		Use:   "check-config",
		Short: "Validate the configuration and print a summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			validate := cfg.Validate
			if settingsOnly {
				validate = cfg.ValidateSettings
			}
			if err := validate(); err != nil {
				return err
			}
			policy, _ := tracking.ParseMatchPolicy(cfg.Tracking.MatchPolicy)

			database := "sqlite " + cfg.Database.Path
			if cfg.Database.Url != "" {
				database = "postgres"
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Database:       %s\n", database)
			fmt.Fprintf(out, "Session cache:  %t\n", cfg.Redis.Url != "")
			fmt.Fprintf(out, "Twitch:         %t\n", cfg.TwitchEnabled())
			fmt.Fprintf(out, "Match policy:   %s\n", policy)
			fmt.Fprintf(out, "Stale max age:  %s\n", cfg.Tracking.StaleMaxAge.Duration)
			fmt.Fprintf(out, "Health server:  %t (port %d)\n", cfg.Health.Enabled, cfg.Health.Port)
			fmt.Fprintln(out, "Configuration is valid")
			return nil
		},
	}
	cmd.Flags().BoolVar(&settingsOnly, "settings-only", false, "Skip the discord credentials")
	return cmd
}
