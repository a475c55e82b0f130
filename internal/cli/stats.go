package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {

	var guildId, game, userId string
	var limit int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the session statistics of a game, or the last sessions of a member",
		RunE: func(cmd *cobra.Command, args []string) error {
			stores, err := openStores(cfg)
			if err != nil {
				return err
			}
			defer stores.Close()
			out := cmd.OutOrStdout()

			if userId != "" {
				sessions, err := stores.tracking.UserSessions(cmd.Context(), guildId, userId, limit)
				if err != nil {
					return err
				}
				for _, session := range sessions {
					duration := time.Since(session.StartedAt).Round(time.Second)
					if session.EndedAt != nil {
						duration = session.EndedAt.Sub(session.StartedAt).Round(time.Second)
					}
					fmt.Fprintf(out, "%s\t%s\t%s\tactive=%t\n", session.GameName, session.StartedAt.Format(time.RFC3339), duration, session.IsActive)
				}
				return nil
			}

			if game == "" {
				settings, err := stores.settings.GetSettings(cmd.Context(), guildId)
				if err != nil {
					return err
				}
				game = settings.GameName
			}
			stats, err := stores.tracking.SessionStats(cmd.Context(), guildId, game)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Game:             %s\n", game)
			fmt.Fprintf(out, "Players:          %d\n", stats.TotalPlayers)
			fmt.Fprintf(out, "Longest session:  %s\n", time.Duration(stats.LongestSessionMs)*time.Millisecond)
			fmt.Fprintf(out, "Average session:  %s\n", time.Duration(stats.AverageSessionMs)*time.Millisecond)
			fmt.Fprintf(out, "Total playtime:   %s\n", time.Duration(stats.TotalPlaytimeMs)*time.Millisecond)
			return nil
		},
	}
	cmd.Flags().StringVar(&guildId, "guild", "", "Guild id")
	cmd.Flags().StringVar(&game, "game", "", "Game name, defaults to the game of the guild")
	cmd.Flags().StringVar(&userId, "user", "", "Print the last sessions of this member instead")
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of sessions printed with --user")
	cmd.MarkFlagRequired("guild")
	return cmd
}
