package bot

import (
	"context"
	"testing"
	"time"

	"apbeeper/internal/population"
	"apbeeper/internal/tracking"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var admin = caller{guildId: "g1", userId: "admin", userName: "admin"}

func run(t *testing.T, bot testBot, who caller, data ParseResult) Response {
	require.Equal(t, PARSEID_OK, data.parseid, data.errorMessage)
	return bot.handle(context.Background(), who, data)
}

func TestTrackGamePublishesPanel(t *testing.T) {
	bot := newTestBot(t)
	ctx := context.Background()

	response := run(t, bot, admin, Parse(command("trackgame", sub("add", option("game", "APB: Reloaded"), option("channel", "c1")))))
	assert.Equal(t, colorSuccess, embedOf(t, response).Color)

	games, err := bot.tracking.TrackedGamesForGuild(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.NotEmpty(t, games[0].PanelMessageId)
	assert.Equal(t, 1, bot.platform.published())

	// Same game in the same channel
	response = run(t, bot, admin, Parse(command("trackgame", sub("add", option("game", "apb: reloaded"), option("channel", "c1")))))
	assert.Equal(t, colorWarning, embedOf(t, response).Color)

	response = run(t, bot, admin, Parse(command("trackgame", sub("list"))))
	assert.Contains(t, embedOf(t, response).Description, "APB: Reloaded")

	response = run(t, bot, admin, Parse(command("trackgame", sub("remove", option("game", "APB: RELOADED")))))
	assert.Equal(t, colorSuccess, embedOf(t, response).Color)
	response = run(t, bot, admin, Parse(command("trackgame", sub("remove", option("game", "APB: Reloaded")))))
	assert.Equal(t, colorWarning, embedOf(t, response).Color)
}

func TestTrackGameWithoutPermission(t *testing.T) {
	bot := newTestBot(t)
	bot.platform.denied["c1"] = true

	response := run(t, bot, admin, Parse(command("trackgame", sub("add", option("game", "APB"), option("channel", "c1")))))
	assert.Equal(t, colorError, embedOf(t, response).Color)
	assert.Zero(t, bot.platform.published())
}

func TestPresenceToPlayers(t *testing.T) {
	bot := newTestBot(t)
	ctx := context.Background()

	_, err := bot.tracking.AddTrackedGame(ctx, "g1", "c1", "APB: Reloaded")
	require.NoError(t, err)
	require.NoError(t, bot.settings.SetClanRole(ctx, "g1", "r1"))
	bot.platform.roles["r1"] = "Officers"
	bot.platform.addMember(tracking.Member{UserId: "u1", DisplayName: "Alice", Roles: []string{"r1"}})
	bot.platform.addMember(tracking.Member{UserId: "u2", DisplayName: "Bob"})

	for _, userId := range []string{"u1", "u2"} {
		change := tracking.PresenceChange{UserId: userId, GuildId: "g1", New: playing("APB Reloaded")}
		_, err := bot.tracker.Reduce(ctx, change)
		require.NoError(t, err)
	}

	response := run(t, bot, admin, Parse(command("players")))
	embed := embedOf(t, response)
	assert.Contains(t, embed.Title, "APB: Reloaded")
	require.Len(t, embed.Fields, 2)
	assert.Contains(t, embed.Fields[0].Name, "Officers (1)")
	assert.Contains(t, embed.Fields[0].Value, "Alice")
	assert.Contains(t, embed.Fields[1].Value, "Bob")

	// Another game has nobody
	response = run(t, bot, admin, Parse(command("players", option("game", "Rocket League"))))
	assert.Equal(t, colorInfo, embedOf(t, response).Color)
}

func presence(userId string, game string) *discordgo.Presence {
	presence := &discordgo.Presence{User: &discordgo.User{ID: userId}}
	if game != "" {
		presence.Activities = []*discordgo.Activity{{Name: game, Type: discordgo.ActivityTypeGame}}
	}
	return presence
}

func TestOnPresenceQueuesChange(t *testing.T) {
	bot := newTestBot(t)
	ctx := context.Background()

	_, err := bot.tracking.AddTrackedGame(ctx, "g1", "c1", "APB: Reloaded")
	require.NoError(t, err)
	bot.platform.bots["b1"] = true

	bot.onPresence("g1", presence("u1", "APB Reloaded"))
	bot.onPresence("g1", presence("b1", "APB Reloaded"))

	require.Eventually(t, func() bool {
		sessions, err := bot.tracker.ActiveSessions(ctx, "g1", "APB: Reloaded")
		return err == nil && len(sessions) == 1
	}, time.Second, 10*time.Millisecond)
	sessions, err := bot.tracker.ActiveSessions(ctx, "g1", "APB: Reloaded")
	require.NoError(t, err)
	assert.Equal(t, "u1", sessions[0].UserId)

	// The cached presence is the old one of the next update
	bot.onPresence("g1", presence("u1", ""))
	require.Eventually(t, func() bool {
		sessions, err := bot.tracker.ActiveSessions(ctx, "g1", "APB: Reloaded")
		return err == nil && len(sessions) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestForceScanCommand(t *testing.T) {
	bot := newTestBot(t)
	ctx := context.Background()

	response := run(t, bot, admin, Parse(command("forcescan")))
	assert.Equal(t, colorWarning, embedOf(t, response).Color)

	_, err := bot.tracking.AddTrackedGame(ctx, "g1", "c1", "APB: Reloaded")
	require.NoError(t, err)
	bot.platform.addMember(tracking.Member{UserId: "u1", DisplayName: "Alice", Activities: playing("APB")})
	bot.platform.addMember(tracking.Member{UserId: "u2", DisplayName: "Bob"})

	response = run(t, bot, admin, Parse(command("forcescan")))
	embed := embedOf(t, response)
	assert.Contains(t, embed.Description, "Scanned 2 members")
	assert.Contains(t, embed.Description, "Found 1 active players")
}

func TestDebugCommand(t *testing.T) {
	bot := newTestBot(t)
	ctx := context.Background()

	_, err := bot.tracking.AddTrackedGame(ctx, "g1", "c1", "APB: Reloaded")
	require.NoError(t, err)
	bot.platform.addMember(tracking.Member{UserId: "admin", Activities: playing("APB Reloaded")})

	response := run(t, bot, admin, Parse(command("debug")))
	embed := embedOf(t, response)
	require.Len(t, embed.Fields, 2)
	assert.Contains(t, embed.Fields[1].Value, "✅ APB: Reloaded")

	response = run(t, bot, admin, Parse(command("debug", option("user", "ghost"))))
	assert.Equal(t, colorWarning, embedOf(t, response).Color)
}

func TestSettingsCommands(t *testing.T) {
	bot := newTestBot(t)
	ctx := context.Background()

	run(t, bot, admin, Parse(command("setgame", option("game", "Rocket League"))))
	settings, err := bot.settings.GetSettings(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "Rocket League", settings.GameName)

	// Unknown roles are refused
	response := run(t, bot, admin, Parse(command("setclangroup", option("role", "r9"))))
	assert.Equal(t, colorError, embedOf(t, response).Color)

	bot.platform.roles["r1"] = "Clan"
	response = run(t, bot, admin, Parse(command("setclangroup", option("role", "r1"))))
	assert.Contains(t, embedOf(t, response).Description, "Clan")
	settings, err = bot.settings.GetSettings(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "r1", settings.ClanRoleId)
}

func TestSetChannelCreatesPanels(t *testing.T) {
	bot := newTestBot(t)
	ctx := context.Background()

	response := run(t, bot, admin, Parse(command("setchannel", option("channel", "c1"))))
	assert.Equal(t, colorSuccess, embedOf(t, response).Color)

	panels, err := bot.panels.ListPanels(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, panels, 2)
	regions := []population.Region{panels[0].Region, panels[1].Region}
	assert.ElementsMatch(t, []population.Region{population.RegionNA, population.RegionEU}, regions)
	assert.Equal(t, 2, bot.platform.published())

	settings, err := bot.settings.GetSettings(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "c1", settings.ApbChannelId)
}

func TestApbPopulation(t *testing.T) {
	bot := newTestBot(t)

	response := run(t, bot, admin, Parse(command("apbpop", option("region", "EU"))))
	embeds, ok := response.(ResponseEmbeds)
	require.True(t, ok)
	require.Len(t, embeds.embeds, 1)
	assert.Contains(t, embeds.embeds[0].Fields[0].Value, "**65**")

	// No data for NA is shown as such, not as an error
	response = run(t, bot, admin, Parse(command("apbpop")))
	embeds, ok = response.(ResponseEmbeds)
	require.True(t, ok)
	require.Len(t, embeds.embeds, 2)
	assert.Contains(t, embeds.embeds[0].Description, "Unable to fetch")
}

func TestTwitchCommands(t *testing.T) {
	bot := newTestBot(t)
	ctx := context.Background()
	member := caller{guildId: "g1", userId: "u1", userName: "alice"}

	response := run(t, bot, member, Parse(command("twitch", sub("add", option("url", "unknown")))))
	assert.Equal(t, "Channel Not Found", embedOf(t, response).Title)

	response = run(t, bot, member, Parse(command("twitch", sub("add", option("url", "Streamer")))))
	assert.Equal(t, colorSuccess, embedOf(t, response).Color)
	streamer, found, err := bot.streamers.GetStreamer(ctx, "g1", "u1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "streamer", streamer.Username)
	assert.Equal(t, "https://twitch.tv/streamer", streamer.TwitchUrl)

	response = run(t, bot, member, Parse(command("twitch", sub("list"))))
	assert.Contains(t, embedOf(t, response).Fields[0].Value, "streamer")

	// Disabled integrations refuse member commands but not admin ones
	run(t, bot, admin, Parse(command("twitchadmin", sub("disable"))))
	response = run(t, bot, member, Parse(command("twitch", sub("remove"))))
	assert.Equal(t, "Twitch Features Disabled", embedOf(t, response).Title)
	response = run(t, bot, admin, Parse(command("twitchadmin", sub("remove", option("user", "u1")))))
	assert.Equal(t, colorSuccess, embedOf(t, response).Color)
	response = run(t, bot, admin, Parse(command("twitchadmin", sub("remove", option("user", "u1")))))
	assert.Equal(t, colorWarning, embedOf(t, response).Color)

	run(t, bot, admin, Parse(command("twitchadmin", sub("setchannel", option("channel", "c9")))))
	notification, err := bot.settings.NotificationSettings(ctx, "g1")
	require.NoError(t, err)
	assert.False(t, notification.Enabled)
	assert.Equal(t, "c9", notification.ChannelId)
}

func TestPlayersPanelsPass(t *testing.T) {
	bot := newTestBot(t)
	ctx := context.Background()

	game, err := bot.tracking.AddTrackedGame(ctx, "g1", "c1", "APB: Reloaded")
	require.NoError(t, err)
	_, err = bot.tracking.StartSession(ctx, "u1", "g1", game.GameName)
	require.NoError(t, err)
	bot.platform.addMember(tracking.Member{UserId: "u1", DisplayName: "Alice", Activities: playing("APB")})

	bot.reconcilePanels(ctx)
	games, err := bot.tracking.TrackedGamesForGuild(ctx, "g1")
	require.NoError(t, err)
	embed := bot.platform.messages[games[0].PanelMessageId]
	require.NotNil(t, embed)
	assert.Contains(t, embed.Fields[0].Value, "Alice")
}
