package cli

import (
	"os/signal"
	"syscall"
	"time"

	"apbeeper/internal/bot"
	"apbeeper/internal/cache"
	"apbeeper/internal/health"
	"apbeeper/internal/metrics"
	"apbeeper/internal/population"
	"apbeeper/internal/tracking"
	"apbeeper/internal/twitch"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const populationTimeout = 10 * time.Second

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to Discord and run the bot",
		RunE:  runBot,
	}
}

func runBot(cmd *cobra.Command, args []string) error {

	if err := cfg.Validate(); err != nil {
		return err
	}
	policy, err := tracking.ParseMatchPolicy(cfg.Tracking.MatchPolicy)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer stores.Close()

	// Active sessions are read through redis when configured
	var sessions tracking.SessionStore = stores.tracking
	if cfg.Redis.Url != "" {
		sessionCache, err := cache.NewSessionCache(stores.tracking, cache.Config{Url: cfg.Redis.Url, Ttl: cfg.Redis.Ttl.Duration})
		if err != nil {
			log.Warn().Err(err).Msg("Redis not available, reading sessions from the database")
		} else {
			defer sessionCache.Close()
			sessions = sessionCache
			log.Info().Msg("Session cache enabled")
		}
	}

	m := metrics.New()
	var twitchClient *twitch.Client
	if cfg.TwitchEnabled() {
		twitchClient = twitch.NewClient(twitch.Options{ClientId: cfg.Twitch.ClientId, ClientSecret: cfg.Twitch.ClientSecret})
	}
	source := population.NewHTTPSource(map[population.Region]string{
		population.RegionNA: cfg.Population.NaUrl,
		population.RegionEU: cfg.Population.EuUrl,
	}, populationTimeout)

	options := bot.Options{
		Token:              cfg.Discord.Token,
		ApplicationId:      cfg.Discord.ClientId,
		GuildId:            cfg.Discord.GuildId,
		MainCycle:          cfg.MainCycle.Duration,
		PanelInterval:      cfg.Tracking.PanelInterval.Duration,
		CleanupInterval:    cfg.Tracking.CleanupInterval.Duration,
		StaleMaxAge:        cfg.Tracking.StaleMaxAge.Duration,
		TwitchInterval:     cfg.Twitch.Interval.Duration,
		PopulationInterval: cfg.Population.Interval.Duration,
		QueueSize:          cfg.Tracking.QueueSize,
		Policy:             policy,
	}
	components := bot.Components{
		Tracking:   stores.tracking,
		Sessions:   sessions,
		Settings:   stores.settings,
		Streamers:  stores.streamers,
		Twitch:     twitchClient,
		Panels:     stores.panels,
		Population: source,
		Metrics:    m,
	}
	b, err := bot.CreateBot(options, components)
	if err != nil {
		return err
	}

	// Health server
	if cfg.Health.Enabled {
		server := health.NewServer(cfg.Health.Port, b.Status, stores.database.Ping, m)
		go func() {
			if err := server.Run(ctx); err != nil {
				log.Error().Err(err).Msg("Health server failed")
			}
		}()
	}

	log.Info().Str("policy", string(policy)).Msg("Starting bot")
	return b.Run(ctx)
}
