package cli

import (
	"fmt"

	"apbeeper/internal/population"

	"github.com/spf13/cobra"
)

func newPanelsCmd() *cobra.Command {

	cmd := &cobra.Command{
		Use:   "panels",
		Short: "Inspect and remove the APB population panels",
	}

	var guildId string
	list := &cobra.Command{
		Use:   "list",
		Short: "List the population panels, of one guild or all of them",
		RunE: func(cmd *cobra.Command, args []string) error {
			stores, err := openStores(cfg)
			if err != nil {
				return err
			}
			defer stores.Close()

			panels, err := stores.panels.ListPanels(cmd.Context(), guildId)
			if err != nil {
				return err
			}
			for _, panel := range panels {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\t%s\n", panel.GuildId, panel.ChannelId, panel.Region, panel.MessageId)
			}
			return nil
		},
	}
	list.Flags().StringVar(&guildId, "guild", "", "Guild id, all guilds when empty")

	var channelId, region string
	remove := &cobra.Command{
		Use:   "remove",
		Short: "Stop updating a population panel",
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := population.ParseRegion(region)
			if err != nil {
				return err
			}
			stores, err := openStores(cfg)
			if err != nil {
				return err
			}
			defer stores.Close()

			removed := 0
			for _, server := range parsed.Servers() {
				ok, err := stores.panels.RemovePanel(cmd.Context(), guildId, channelId, server)
				if err != nil {
					return err
				}
				if ok {
					removed++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d panels\n", removed)
			return nil
		},
	}
	remove.Flags().StringVar(&guildId, "guild", "", "Guild id")
	remove.Flags().StringVar(&channelId, "channel", "", "Channel id")
	remove.Flags().StringVar(&region, "region", "BOTH", "NA, EU or BOTH")
	remove.MarkFlagRequired("guild")
	remove.MarkFlagRequired("channel")

	cmd.AddCommand(list, remove)
	return cmd
}
