package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"apbeeper/internal/population"
	"apbeeper/internal/tracking"
	"apbeeper/internal/twitch"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

var (
	manageServer   int64 = discordgo.PermissionManageServer
	manageChannels int64 = discordgo.PermissionManageChannels
)

func regionChoices() []*discordgo.ApplicationCommandOptionChoice {
	return []*discordgo.ApplicationCommandOptionChoice{
		{Name: RegionName(population.RegionNA), Value: string(population.RegionNA)},
		{Name: RegionName(population.RegionEU), Value: string(population.RegionEU)},
		{Name: "Both Regions", Value: string(population.RegionBoth)},
	}
}

func gameOption(required bool, description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "game",
		Description: description,
		Required:    required,
	}
}

func textChannelOption(description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:         discordgo.ApplicationCommandOptionChannel,
		Name:         "channel",
		Description:  description,
		Required:     true,
		ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
	}
}

func userOption(required bool, description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionUser,
		Name:        "user",
		Description: description,
		Required:    required,
	}
}

func urlOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "url",
		Description: "The Twitch channel URL or username",
		Required:    true,
	}
}

func subcommandOption(name string, description string, options ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Name:        name,
		Description: description,
		Options:     options,
	}
}

// Slash commands registered on startup
func commandDefinitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:                     "trackgame",
			Description:              "Manage the auto updating players panels",
			DefaultMemberPermissions: &manageServer,
			Options: []*discordgo.ApplicationCommandOption{
				subcommandOption("add", "Track a game with a players panel in a channel",
					gameOption(true, "The game name to track (e.g., \"APB: Reloaded\")"),
					textChannelOption("The channel for the players panel")),
				subcommandOption("remove", "Stop tracking a game", gameOption(true, "The tracked game")),
				subcommandOption("list", "List the games tracked in this server"),
			},
		},
		{
			Name:        "players",
			Description: "Show members currently playing a game",
			Options:     []*discordgo.ApplicationCommandOption{gameOption(false, "The game, defaults to the server game")},
		},
		{
			Name:        "stats",
			Description: "Show the play session statistics of a game",
			Options:     []*discordgo.ApplicationCommandOption{gameOption(false, "The game, defaults to the server game")},
		},
		{
			Name:                     "forcescan",
			Description:              "Manually scan all members for game activity",
			DefaultMemberPermissions: &manageChannels,
		},
		{
			Name:                     "debug",
			Description:              "Debug player presence detection",
			DefaultMemberPermissions: &manageChannels,
			Options:                  []*discordgo.ApplicationCommandOption{userOption(false, "User to debug (defaults to you)")},
		},
		{
			Name:                     "setgame",
			Description:              "Set the game name to track for Discord status",
			DefaultMemberPermissions: &manageServer,
			Options:                  []*discordgo.ApplicationCommandOption{gameOption(true, "The game name to track (e.g., \"APB: Reloaded\")")},
		},
		{
			Name:                     "setclangroup",
			Description:              "Set the clan role for separating clan members from community members",
			DefaultMemberPermissions: &manageServer,
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionRole,
				Name:        "role",
				Description: "The role that identifies clan members",
				Required:    true,
			}},
		},
		{
			Name:                     "setchannel",
			Description:              "Set up auto-updating APB population panels in a channel",
			DefaultMemberPermissions: &manageServer,
			Options: []*discordgo.ApplicationCommandOption{
				textChannelOption("The channel for APB population updates"),
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "region",
					Description: "Which region to display (NA, EU, or both)",
					Choices:     regionChoices(),
				},
			},
		},
		{
			Name:        "apbpop",
			Description: "Show current APB population",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "region",
				Description: "Which region to show (NA, EU, or both)",
				Choices:     regionChoices(),
			}},
		},
		{
			Name:        "twitch",
			Description: "Manage Twitch stream integration",
			Options: []*discordgo.ApplicationCommandOption{
				subcommandOption("add", "Add your Twitch stream", urlOption()),
				subcommandOption("remove", "Remove your Twitch stream"),
				subcommandOption("list", "List all streamers in this server"),
			},
		},
		{
			Name:                     "twitchadmin",
			Description:              "Admin commands for Twitch integration",
			DefaultMemberPermissions: &manageServer,
			Options: []*discordgo.ApplicationCommandOption{
				subcommandOption("enable", "Enable Twitch features for this server"),
				subcommandOption("disable", "Disable Twitch features for this server"),
				subcommandOption("add", "Add a Twitch stream for a user", userOption(true, "The user to add a stream for"), urlOption()),
				subcommandOption("remove", "Remove a user's Twitch stream", userOption(true, "The user to remove the stream for")),
				subcommandOption("setchannel", "Set the channel for stream notifications", textChannelOption("The channel for stream notifications")),
			},
		},
		{
			Name:        "test",
			Description: "Test if the bot is working",
		},
		{
			Name:        "help",
			Description: "Show the commands available",
		},
	}
}

// Register every command, globally or in the configured guild only
func (bot *Bot) registerCommands() error {
	applicationId := bot.options.ApplicationId
	if applicationId == "" {
		applicationId = bot.session.State.User.ID
	}
	registered, err := bot.session.ApplicationCommandBulkOverwrite(applicationId, bot.options.GuildId, commandDefinitions())
	if err != nil {
		return fmt.Errorf("could not register commands: %w", err)
	}
	log.Info().Int("commands", len(registered)).Str("guild", bot.options.GuildId).Msg("Registered slash commands")
	return nil
}

// Who sent a command, and from where
type caller struct {
	guildId  string
	userId   string
	userName string
}

// Run a parsed command
func (bot *Bot) handle(ctx context.Context, caller caller, parseResult ParseResult) Response {

	switch parseResult.command {
	case COMMAND_TRACKGAME_ADD:
		return bot.trackGameAdd(ctx, caller.guildId, parseResult.arguments.(GameArguments))
	case COMMAND_TRACKGAME_REMOVE:
		return bot.trackGameRemove(ctx, caller.guildId, parseResult.arguments.(GameArguments))
	case COMMAND_TRACKGAME_LIST:
		return bot.trackGameList(ctx, caller.guildId)
	case COMMAND_PLAYERS:
		return bot.players(ctx, caller.guildId, parseResult.arguments.(string))
	case COMMAND_STATS:
		return bot.stats(ctx, caller.guildId, parseResult.arguments.(string))
	case COMMAND_FORCESCAN:
		return bot.forceScan(ctx, caller.guildId)
	case COMMAND_DEBUG:
		userId := parseResult.arguments.(string)
		if userId == "" {
			userId = caller.userId
		}
		return bot.debug(ctx, caller.guildId, userId)
	case COMMAND_SETGAME:
		return bot.setGame(ctx, caller.guildId, parseResult.arguments.(string))
	case COMMAND_SETCLANGROUP:
		return bot.setClanGroup(ctx, caller.guildId, parseResult.arguments.(string))
	case COMMAND_SETCHANNEL:
		return bot.setChannel(ctx, caller.guildId, parseResult.arguments.(PanelArguments))
	case COMMAND_APBPOP:
		return bot.apbPopulation(ctx, parseResult.arguments.(population.Region))
	case COMMAND_TWITCH_ADD:
		return bot.twitchAdd(ctx, caller, parseResult.arguments.(StreamArguments), false)
	case COMMAND_TWITCH_REMOVE:
		return bot.twitchRemove(ctx, caller, caller.userId, false)
	case COMMAND_TWITCH_LIST:
		return bot.twitchList(ctx, caller.guildId)
	case COMMAND_TWITCHADMIN_ENABLE:
		return bot.twitchEnable(ctx, caller.guildId, true)
	case COMMAND_TWITCHADMIN_DISABLE:
		return bot.twitchEnable(ctx, caller.guildId, false)
	case COMMAND_TWITCHADMIN_ADD:
		return bot.twitchAdd(ctx, caller, parseResult.arguments.(StreamArguments), true)
	case COMMAND_TWITCHADMIN_REMOVE:
		return bot.twitchRemove(ctx, caller, parseResult.arguments.(string), true)
	case COMMAND_TWITCHADMIN_SETCHANNEL:
		return bot.twitchSetChannel(ctx, caller.guildId, parseResult.arguments.(string))
	case COMMAND_TEST:
		return TestMessage(bot.platform.guildName(caller.guildId), caller.userName, time.Now())
	case COMMAND_HELP:
		return HelpMessage()
	default:
		panic(fmt.Sprintf("Command %d is not one of the possible ones", parseResult.command))
	}
}

func (bot *Bot) trackGameAdd(ctx context.Context, guildId string, arguments GameArguments) Response {

	if !bot.platform.canSend(arguments.ChannelId) {
		return Error("Permission Error", fmt.Sprintf("I don't have permission to send messages or embed links in <#%s>. Please check my permissions.", arguments.ChannelId))
	}
	game, err := bot.games.AddTrackedGame(ctx, guildId, arguments.ChannelId, arguments.Game)
	if errors.Is(err, tracking.ErrTrackedGameExists) {
		return Warning("Already Tracked", fmt.Sprintf("**%s** already has a players panel in <#%s>.", arguments.Game, arguments.ChannelId))
	}
	if err != nil {
		log.Error().Err(err).Str("guild", guildId).Str("game", arguments.Game).Msg("Could not track game")
		return InternalError()
	}

	// Publish the panel now instead of waiting for the next pass
	if err := bot.tracker.RefreshPanel(ctx, game); err != nil {
		log.Warn().Err(err).Str("guild", guildId).Str("game", game.GameName).Msg("Could not publish the first players panel")
	}
	return Success("🎮 Game Tracked", fmt.Sprintf("Now tracking **%s** in <#%s>.\n\nRun `/forcescan` to pick up members that are already playing.", game.GameName, game.ChannelId))
}

func (bot *Bot) trackGameRemove(ctx context.Context, guildId string, arguments GameArguments) Response {

	removed, err := bot.games.RemoveTrackedGame(ctx, guildId, arguments.Game)
	if err != nil {
		log.Error().Err(err).Str("guild", guildId).Str("game", arguments.Game).Msg("Could not stop tracking game")
		return InternalError()
	}
	if len(removed) == 0 {
		return Warning("Not Tracked", fmt.Sprintf("**%s** is not tracked in this server.", arguments.Game))
	}
	return Success("🎮 Game Removed", fmt.Sprintf("Stopped tracking **%s** in %d channels.", arguments.Game, len(removed)))
}

func (bot *Bot) trackGameList(ctx context.Context, guildId string) Response {

	games, err := bot.games.TrackedGamesForGuild(ctx, guildId)
	if err != nil {
		log.Error().Err(err).Str("guild", guildId).Msg("Could not list tracked games")
		return InternalError()
	}
	return TrackedGamesMessage(games)
}

// Game of a command, the server game when not provided
func (bot *Bot) gameName(ctx context.Context, guildId string, game string) (string, ServerSettings, error) {
	settings, err := bot.database.GetSettings(ctx, guildId)
	if err != nil {
		return "", ServerSettings{}, err
	}
	if game == "" {
		game = settings.GameName
	}
	return game, settings, nil
}

func (bot *Bot) players(ctx context.Context, guildId string, game string) Response {

	game, settings, err := bot.gameName(ctx, guildId, game)
	if err != nil {
		log.Error().Err(err).Str("guild", guildId).Msg("Could not get server settings")
		return InternalError()
	}
	players, _, err := bot.tracker.ActivePlayers(ctx, guildId, game)
	if err != nil {
		log.Error().Err(err).Str("guild", guildId).Str("game", game).Msg("Could not get active players")
		return Error("Error", "Failed to get player information. Please try again.")
	}
	if len(players) == 0 {
		return Info("🎮 No Players Online", fmt.Sprintf("No one is currently playing **%s**.\n\nMake sure your Discord status shows the game you're playing!", game))
	}
	return ResponseEmbed{PlayersPanel(game, players, settings.ClanRoleId, bot.platform.roleName(guildId, settings.ClanRoleId))}
}

func (bot *Bot) stats(ctx context.Context, guildId string, game string) Response {

	game, _, err := bot.gameName(ctx, guildId, game)
	if err != nil {
		log.Error().Err(err).Str("guild", guildId).Msg("Could not get server settings")
		return InternalError()
	}
	stats, err := bot.tracker.SessionStats(ctx, guildId, game)
	if err != nil {
		log.Error().Err(err).Str("guild", guildId).Str("game", game).Msg("Could not get session stats")
		return InternalError()
	}
	return StatsMessage(game, stats)
}

func (bot *Bot) forceScan(ctx context.Context, guildId string) Response {

	result, err := bot.tracker.ForceScan(ctx, guildId)
	if err != nil {
		log.Error().Err(err).Str("guild", guildId).Str("scan", result.ScanId.String()).Msg("Force scan failed")
		return Error("Force Scan", "❌ Error during force scan. Check logs for details.")
	}
	return ScanMessage(result)
}

func (bot *Bot) debug(ctx context.Context, guildId string, userId string) Response {

	result, err := bot.tracker.Debug(ctx, guildId, userId)
	if errors.Is(err, tracking.ErrMemberNotFound) {
		return Warning("Member Not Found", fmt.Sprintf("<@%s> is not a member of this server.", userId))
	}
	if err != nil {
		log.Error().Err(err).Str("guild", guildId).Str("user", userId).Msg("Could not debug presence")
		return InternalError()
	}
	return DebugMessage(userId, result)
}

func (bot *Bot) setGame(ctx context.Context, guildId string, game string) Response {

	if err := bot.database.SetGameName(ctx, guildId, game); err != nil {
		log.Error().Err(err).Str("guild", guildId).Msg("Could not update game name")
		return Error("Error", "Failed to update the game name. Please try again.")
	}
	return Success("🎮 Game Updated", fmt.Sprintf("Now tracking players for: **%s**\n\nUse `/players` to see who's currently playing!", game))
}

func (bot *Bot) setClanGroup(ctx context.Context, guildId string, roleId string) Response {

	roleName := bot.platform.roleName(guildId, roleId)
	if roleName == "" {
		return Error("Invalid Role", "The specified role could not be found in this server.")
	}
	if err := bot.database.SetClanRole(ctx, guildId, roleId); err != nil {
		log.Error().Err(err).Str("guild", guildId).Msg("Could not update clan role")
		return Error("Error", "Failed to update the clan role. Please try again.")
	}
	return Success("👑 Clan Role Updated", fmt.Sprintf("Clan role set to: **%s**\n\nMembers with this role will be shown separately in the `/players` command.", roleName))
}

func (bot *Bot) setChannel(ctx context.Context, guildId string, arguments PanelArguments) Response {

	if !bot.platform.canSend(arguments.ChannelId) {
		return Error("Permission Error", fmt.Sprintf("I don't have permission to send messages or embed links in <#%s>. Please check my permissions.", arguments.ChannelId))
	}
	if err := bot.database.SetApbChannel(ctx, guildId, arguments.ChannelId); err != nil {
		log.Error().Err(err).Str("guild", guildId).Msg("Could not update population channel")
		return InternalError()
	}

	// One panel per region
	regions := arguments.Region.Servers()
	for _, region := range regions {
		if _, err := bot.population.CreatePanel(ctx, guildId, arguments.ChannelId, region); err != nil {
			log.Error().Err(err).Str("guild", guildId).Str("region", string(region)).Msg("Could not create population panel")
			return Error("Error", "Failed to set up the APB population channel. Please make sure I have the necessary permissions and try again.")
		}
	}

	if len(regions) > 1 {
		return Success("📊 APB Population Panels Created",
			fmt.Sprintf("Auto-updating population panels for both regions have been set up in <#%s>.\n\nThe panels will update every 5 minutes automatically.", arguments.ChannelId))
	}
	return Success("📊 APB Population Panel Created",
		fmt.Sprintf("Auto-updating population panel for %s has been set up in <#%s>.\n\nThe panel will update every 5 minutes automatically.", RegionName(arguments.Region), arguments.ChannelId))
}

func (bot *Bot) apbPopulation(ctx context.Context, region population.Region) Response {

	var embeds []*discordgo.MessageEmbed
	for _, server := range region.Servers() {
		districts, err := bot.population.Current(ctx, server)
		if err != nil {
			log.Warn().Err(err).Str("region", string(server)).Msg("Could not fetch population")
			continue
		}
		embeds = append(embeds, PopulationPanel(server, districts))
	}
	if len(embeds) == 0 {
		return Error("Error", "Failed to fetch APB population data. The servers might be offline or there could be a connection issue.")
	}
	return ResponseEmbeds{embeds}
}

// Twitch commands of regular members need the integration enabled
func (bot *Bot) twitchEnabled(ctx context.Context, guildId string) (bool, error) {
	settings, err := bot.database.GetSettings(ctx, guildId)
	if err != nil {
		return false, err
	}
	return settings.TwitchEnabled, nil
}

func twitchDisabled() Response {
	return Warning("Twitch Features Disabled", "Twitch integration is currently disabled for this server. Contact an admin to enable it.")
}

func (bot *Bot) twitchAdd(ctx context.Context, caller caller, arguments StreamArguments, admin bool) Response {

	if !admin {
		enabled, err := bot.twitchEnabled(ctx, caller.guildId)
		if err != nil {
			log.Error().Err(err).Str("guild", caller.guildId).Msg("Could not get server settings")
			return InternalError()
		}
		if !enabled {
			return twitchDisabled()
		}
	}

	username := twitch.ExtractUsername(arguments.Url)
	channelUrl := arguments.Url
	if !strings.HasPrefix(channelUrl, "http") {
		channelUrl = twitch.ChannelUrl(username)
	}

	// Check the channel exists, unless there are no credentials to ask
	valid, err := false, twitch.ErrNotConfigured
	if bot.channels != nil {
		valid, err = bot.channels.ValidateChannel(ctx, channelUrl)
	}
	switch {
	case errors.Is(err, twitch.ErrNotConfigured):
		log.Warn().Str("twitch", channelUrl).Msg("Adding twitch channel without validation")
	case err != nil:
		log.Error().Err(err).Str("twitch", channelUrl).Msg("Could not validate twitch channel")
		return InternalError()
	case !valid:
		return Error("Channel Not Found", "The specified Twitch channel could not be found. Please check the URL and try again.")
	}

	userId := caller.userId
	if admin {
		userId = arguments.UserId
	}
	streamer := twitch.Streamer{
		GuildId:   caller.guildId,
		UserId:    userId,
		Username:  username,
		TwitchUrl: channelUrl,
		AddedBy:   caller.userId,
	}
	if err := bot.streamers.AddStreamer(ctx, streamer); err != nil {
		log.Error().Err(err).Str("guild", caller.guildId).Str("user", userId).Msg("Could not add streamer")
		return InternalError()
	}

	if admin {
		return Success("📺 Stream Added (Admin)", fmt.Sprintf("Added Twitch stream for <@%s>: **%s**", userId, username))
	}
	return Success("📺 Stream Added", fmt.Sprintf("Your Twitch stream has been added: **%s**\n\nYou'll receive notifications when you go live!", username))
}

func (bot *Bot) twitchRemove(ctx context.Context, caller caller, userId string, admin bool) Response {

	if !admin {
		enabled, err := bot.twitchEnabled(ctx, caller.guildId)
		if err != nil {
			log.Error().Err(err).Str("guild", caller.guildId).Msg("Could not get server settings")
			return InternalError()
		}
		if !enabled {
			return twitchDisabled()
		}
	}

	removed, err := bot.streamers.RemoveStreamer(ctx, caller.guildId, userId)
	if err != nil {
		log.Error().Err(err).Str("guild", caller.guildId).Str("user", userId).Msg("Could not remove streamer")
		return InternalError()
	}
	switch {
	case !removed && admin:
		return Warning("No Stream Found", fmt.Sprintf("<@%s> doesn't have a Twitch stream registered in this server.", userId))
	case !removed:
		return Warning("No Stream Found", "You don't have a Twitch stream registered in this server.")
	case admin:
		return Success("📺 Stream Removed (Admin)", fmt.Sprintf("Removed Twitch stream for <@%s>.", userId))
	default:
		return Success("📺 Stream Removed", "Your Twitch stream has been removed from this server.")
	}
}

func (bot *Bot) twitchList(ctx context.Context, guildId string) Response {

	enabled, err := bot.twitchEnabled(ctx, guildId)
	if err != nil {
		log.Error().Err(err).Str("guild", guildId).Msg("Could not get server settings")
		return InternalError()
	}
	if !enabled {
		return twitchDisabled()
	}
	streamers, err := bot.streamers.ListStreamers(ctx, guildId)
	if err != nil {
		log.Error().Err(err).Str("guild", guildId).Msg("Could not list streamers")
		return InternalError()
	}
	return StreamerList(streamers, bot.platform.guildName(guildId))
}

func (bot *Bot) twitchEnable(ctx context.Context, guildId string, enabled bool) Response {

	if err := bot.database.SetTwitchEnabled(ctx, guildId, enabled); err != nil {
		log.Error().Err(err).Str("guild", guildId).Msg("Could not update twitch setting")
		return InternalError()
	}
	if enabled {
		return Success("✅ Twitch Features Enabled", "Users can now add their Twitch streams and receive notifications.")
	}
	return Success("❌ Twitch Features Disabled", "Twitch integration has been disabled. Stream notifications will stop.")
}

func (bot *Bot) twitchSetChannel(ctx context.Context, guildId string, channelId string) Response {

	if !bot.platform.canSend(channelId) {
		return Error("Permission Error", fmt.Sprintf("I don't have permission to send messages in <#%s>. Please check my permissions.", channelId))
	}
	if err := bot.database.SetTwitchChannel(ctx, guildId, channelId); err != nil {
		log.Error().Err(err).Str("guild", guildId).Msg("Could not update notification channel")
		return InternalError()
	}
	return Success("📺 Notification Channel Set", fmt.Sprintf("Stream notifications will now be sent to <#%s>.", channelId))
}
