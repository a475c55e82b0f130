package cli

import (
	"io"
	"os"

	"apbeeper/internal/config"
	"apbeeper/internal/logging"

	"github.com/spf13/cobra"
)

var (
	configPath string
	cfg        *config.Config
	logs       io.Closer
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {

	rootCmd := &cobra.Command{
		Use:   "apbeeper",
		Short: "Discord bot that tracks who is playing a game",
		Long:  `apbeeper watches the presence of the members of a Discord server,
keeps auto updating panels of who is playing the tracked games, shows the
APB population and announces members going live on Twitch.

Without a subcommand it runs the bot.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
			logs = logging.Setup(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File, MaxSizeMB: cfg.Log.MaxSizeMB})
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logs != nil {
				logs.Close()
			}
		},
		RunE:         runBot,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path of the TOML configuration file")

	// Add subcommands
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newCleanupCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newPanelsCmd())
	rootCmd.AddCommand(newCheckConfigCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
