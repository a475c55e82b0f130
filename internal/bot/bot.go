package bot

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"apbeeper/internal/common"
	"apbeeper/internal/health"
	"apbeeper/internal/metrics"
	"apbeeper/internal/population"
	"apbeeper/internal/tracking"
	"apbeeper/internal/twitch"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

const (
	eventTimeout   = 30 * time.Second
	commandTimeout = 2 * time.Minute
)

type Options struct {
	Token         string
	ApplicationId string
	// Commands are registered in this guild only when set
	GuildId            string
	MainCycle          time.Duration
	PanelInterval      time.Duration
	CleanupInterval    time.Duration
	StaleMaxAge        time.Duration
	TwitchInterval     time.Duration
	PopulationInterval time.Duration
	QueueSize          int
	Policy             tracking.MatchPolicy
}

// Storage and clients the bot works with
type Components struct {
	Tracking *tracking.DatabaseTracking
	// Session store used by the tracker, the tracking database
	// itself or a cache in front of it
	Sessions   tracking.SessionStore
	Settings   *DatabaseBot
	Streamers  *twitch.DatabaseTwitch
	Twitch     *twitch.Client
	Panels     *population.DatabasePopulation
	Population population.Source
	Metrics    *metrics.Metrics
}

// Everything the bot needs from discord besides the gateway
type platform interface {
	tracking.MemberSource
	common.Messenger
	roleName(guildId, roleId string) string
	guildName(guildId string) string
	isBot(guildId, userId string) bool
	canSend(channelId string) bool
}

type channelValidator interface {
	ValidateChannel(ctx context.Context, channelUrl string) (bool, error)
}

type Bot struct {
	options    Options
	session    *discordgo.Session
	platform   platform
	presences  *Presences
	database   *DatabaseBot
	games      *tracking.DatabaseTracking
	tracker    *tracking.Tracker
	streamers  *twitch.DatabaseTwitch
	channels   channelValidator
	notifier   *twitch.Notifier
	population *population.Updater
	queue      *common.KeyedQueue
	metrics    *metrics.Metrics
	executors  []common.TimedExecutor
	// Events and commands keep running during shutdown
	ctx     context.Context
	readyAt atomic.Pointer[time.Time]
}

func CreateBot(options Options, components Components) (*Bot, error) {

	// Create session
	session, err := discordgo.New("Bot " + options.Token)
	if err != nil {
		return nil, fmt.Errorf("could not create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildPresences |
		discordgo.IntentsGuildMembers
	// Presence updates of a guild have to be seen in arrival order
	session.SyncEvents = true

	presences := NewPresences()
	bot := newBot(options, components, &discord{session: session, presences: presences}, presences)
	bot.session = session

	// Event handlers
	session.AddHandler(bot.ready)
	session.AddHandler(bot.guildCreate)
	session.AddHandler(bot.guildDelete)
	session.AddHandler(bot.presenceUpdate)
	session.AddHandler(bot.Receive)

	return bot, nil
}

func newBot(options Options, components Components, platform platform, presences *Presences) *Bot {

	bot := &Bot{
		options:   options,
		platform:  platform,
		presences: presences,
		database:  components.Settings,
		games:     components.Tracking,
		streamers: components.Streamers,
		queue:     common.NewKeyedQueue(options.QueueSize),
		metrics:   components.Metrics,
		ctx:       context.Background(),
	}

	if components.Twitch != nil {
		bot.channels = components.Twitch
	}

	sessions := components.Sessions
	if sessions == nil {
		sessions = components.Tracking
	}
	bot.tracker = tracking.NewTracker(tracking.TrackerOptions{
		Store:     sessions,
		Games:     components.Tracking,
		Members:   platform,
		Messenger: platform,
		Render:    bot.renderPlayers,
		Policy:    options.Policy,
		Metrics:   components.Metrics,
	})
	bot.notifier = twitch.NewNotifier(components.Streamers, components.Twitch, components.Settings, platform, StreamNotification, components.Metrics)
	bot.population = population.NewUpdater(components.Panels, components.Population, platform, PopulationPanel, components.Metrics)

	// Periodic tasks
	bot.executors = []common.TimedExecutor{
		common.NewTimedExecutor("panels", options.PanelInterval, bot.reconcilePanels),
		common.NewTimedExecutor("cleanup", options.CleanupInterval, bot.cleanupStale),
		common.NewTimedExecutor("population", options.PopulationInterval, bot.updatePopulation),
	}
	if components.Twitch != nil && components.Twitch.Configured() {
		bot.executors = append(bot.executors, common.NewTimedExecutor("twitch", options.TwitchInterval, bot.checkStreams))
	} else {
		log.Info().Msg("Twitch credentials not set, stream notifications are disabled")
	}

	return bot
}

// Connect to discord and serve until the context is cancelled
func (bot *Bot) Run(ctx context.Context) error {

	bot.ctx = context.WithoutCancel(ctx)

	// Open session
	if err := bot.session.Open(); err != nil {
		return fmt.Errorf("could not open discord session: %w", err)
	}
	defer bot.session.Close()

	if err := bot.registerCommands(); err != nil {
		log.Error().Err(err).Msg("Slash commands are not available")
	}

	bot.mainLoop(ctx)

	// Let the queued presence updates finish
	log.Info().Msg("Stopping bot")
	bot.queue.Close()
	return nil
}

func (bot *Bot) mainLoop(ctx context.Context) {

	ticker := time.NewTicker(bot.options.MainCycle)
	defer ticker.Stop()
	log.Info().Dur("cycle", bot.options.MainCycle).Msg("Starting main loop")

	for {
		for i := range bot.executors {
			if ctx.Err() != nil {
				return
			}
			bot.executors[i].Execute(ctx)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (bot *Bot) reconcilePanels(ctx context.Context) {
	if _, err := bot.tracker.ReconcilePanels(ctx); err != nil {
		log.Error().Err(err).Msg("Players panels pass failed")
	}
}

func (bot *Bot) cleanupStale(ctx context.Context) {
	// Errors are logged by the tracker, the next pass retries
	bot.tracker.CleanupStale(ctx, bot.options.StaleMaxAge)
}

func (bot *Bot) updatePopulation(ctx context.Context) {
	if _, err := bot.population.UpdatePanels(ctx); err != nil {
		log.Error().Err(err).Msg("Population panels pass failed")
	}
}

func (bot *Bot) checkStreams(ctx context.Context) {
	if _, err := bot.notifier.CheckStreams(ctx); err != nil {
		log.Error().Err(err).Msg("Twitch check failed")
	}
}

func (bot *Bot) renderPlayers(ctx context.Context, game tracking.TrackedGame, players []tracking.ActivePlayer) (*discordgo.MessageEmbed, error) {
	settings, err := bot.database.GetSettings(ctx, game.GuildId)
	if err != nil {
		return nil, err
	}
	return PlayersPanel(game.GameName, players, settings.ClanRoleId, bot.platform.roleName(game.GuildId, settings.ClanRoleId)), nil
}

// What the health server reports
func (bot *Bot) Status() health.Status {
	status := health.Status{ReadyAt: bot.readyAt.Load()}
	if bot.session != nil {
		status.Connected = status.ReadyAt != nil && bot.session.DataReady
		bot.session.State.RLock()
		status.Guilds = len(bot.session.State.Guilds)
		bot.session.State.RUnlock()
	}
	return status
}

func (bot *Bot) ready(discord *discordgo.Session, ready *discordgo.Ready) {
	now := time.Now()
	bot.readyAt.Store(&now)
	log.Info().Str("user", ready.User.Username).Int("guilds", len(ready.Guilds)).Msg("Bot is online")
}

func (bot *Bot) guildCreate(discord *discordgo.Session, guild *discordgo.GuildCreate) {
	bot.presences.Seed(guild.ID, guild.Presences)
	log.Info().Str("guild", guild.ID).Str("name", guild.Name).Int("presences", len(guild.Presences)).Msg("Guild available")
}

func (bot *Bot) guildDelete(discord *discordgo.Session, guild *discordgo.GuildDelete) {
	if guild.Unavailable {
		return
	}
	bot.presences.Forget(guild.ID)
	log.Info().Str("guild", guild.ID).Msg("Left guild")
}

func (bot *Bot) presenceUpdate(discord *discordgo.Session, update *discordgo.PresenceUpdate) {
	bot.onPresence(update.GuildID, &update.Presence)
}

// Turn a presence update into a presence change and queue it behind
// the other changes of the guild
func (bot *Bot) onPresence(guildId string, presence *discordgo.Presence) {

	if guildId == "" || presence.User == nil {
		return
	}
	userId := presence.User.ID
	if presence.User.Bot || bot.platform.isBot(guildId, userId) {
		return
	}

	activities := convertActivities(presence.Activities)
	old := bot.presences.Swap(guildId, userId, activities)
	change := tracking.PresenceChange{UserId: userId, GuildId: guildId, Old: old, New: activities}

	queued := bot.queue.Submit(guildId, func() {
		ctx, cancel := context.WithTimeout(bot.ctx, eventTimeout)
		defer cancel()
		if _, err := bot.tracker.Reduce(ctx, change); err != nil {
			log.Error().Err(err).Str("guild", guildId).Str("user", userId).Msg("Could not apply presence update")
		}
	})
	if !queued {
		log.Debug().Str("guild", guildId).Str("user", userId).Msg("Dropping presence update, shutting down")
	}
}

func (bot *Bot) Receive(discord *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}
	// Events are delivered in order, commands must not hold them
	go bot.execute(discord, interaction.Interaction)
}

func hasPermission(member *discordgo.Member, permission int64) bool {
	if member == nil {
		return false
	}
	return member.Permissions&discordgo.PermissionAdministrator != 0 || member.Permissions&permission == permission
}

func callerOf(interaction *discordgo.Interaction) caller {
	c := caller{guildId: interaction.GuildID}
	user := interaction.User
	if interaction.Member != nil && interaction.Member.User != nil {
		user = interaction.Member.User
	}
	if user != nil {
		c.userId = user.ID
		c.userName = user.Username
	}
	return c
}

func (bot *Bot) execute(discord *discordgo.Session, interaction *discordgo.Interaction) {

	data := interaction.ApplicationCommandData()
	logger := log.With().Str("command", data.Name).Str("guild", interaction.GuildID).Logger()
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Command panicked")
		}
	}()

	// Commands only make sense inside a guild
	if interaction.GuildID == "" {
		respondNow(interaction, discord, Warning("Server Only", "For the time being, I only answer commands inside a server"))
		return
	}

	// Parse the input provided and call the appropriate function
	parseResult := Parse(data)
	if parseResult.parseid != PARSEID_OK {
		logger.Info().Str("reason", parseResult.errorMessage).Msg("Wrong input")
		if err := respondNow(interaction, discord, InputNotValid(parseResult.errorMessage)); err != nil {
			logger.Error().Err(err).Msg("Could not respond")
		}
		return
	}
	if permission, ok := adminCommands[parseResult.command]; ok && !hasPermission(interaction.Member, permission) {
		respondNow(interaction, discord, Error("Permission Denied", "You don't have the permissions required to use this command."))
		return
	}

	if err := deferResponse(interaction, discord, ephemeralCommands[parseResult.command]); err != nil {
		logger.Error().Err(err).Msg("Could not acknowledge command")
		return
	}
	ctx, cancel := context.WithTimeout(bot.ctx, commandTimeout)
	defer cancel()

	stopwatch := time.Now()
	response := bot.handle(ctx, callerOf(interaction), parseResult)
	if err := response.Send(interaction, discord); err != nil {
		logger.Error().Err(err).Msg("Could not send response")
		return
	}
	logger.Debug().Dur("took", time.Since(stopwatch)).Msg("Command answered")
}
