package bot

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"apbeeper/internal/population"
	"apbeeper/internal/tracking"
	"apbeeper/internal/twitch"

	"github.com/bwmarrin/discordgo"
)

const (
	colorPrimary int = 0x00AE86
	colorSuccess int = 0x00FF00
	colorWarning int = 0xFFAA00
	colorError   int = 0xFF0000
	colorInfo    int = 0x0099FF
	colorTwitch  int = 0x9146FF
)

// Discord rejects field values longer than this
const maxFieldLength = 1024

func baseEmbed(title string, description string, color int) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}

func field(name string, value string, inline bool) *discordgo.MessageEmbedField {
	// Cut on a line break to keep whole entries
	if len(value) > maxFieldLength {
		cut := strings.LastIndex(value[:maxFieldLength-3], "\n")
		if cut <= 0 {
			cut = maxFieldLength - 3
			for cut > 0 && !utf8.RuneStart(value[cut]) {
				cut--
			}
		}
		value = value[:cut] + "..."
	}
	return &discordgo.MessageEmbedField{Name: name, Value: value, Inline: inline}
}

func Success(title string, description string) ResponseEmbed {
	return ResponseEmbed{baseEmbed(title, description, colorSuccess)}
}

func Warning(title string, description string) ResponseEmbed {
	return ResponseEmbed{baseEmbed(title, description, colorWarning)}
}

func Error(title string, description string) ResponseEmbed {
	return ResponseEmbed{baseEmbed(title, description, colorError)}
}

func Info(title string, description string) ResponseEmbed {
	return ResponseEmbed{baseEmbed(title, description, colorInfo)}
}

func InputNotValid(errorMessage string) ResponseEmbed {
	return Error("Input not valid", errorMessage)
}

func InternalError() ResponseEmbed {
	return Error("Error", "An error occurred while processing your request. Please try again.")
}

// Like 2h 5m, or 45s under a minute
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	hours := int(d / time.Hour)
	minutes := int(d % time.Hour / time.Minute)
	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm", minutes)
	default:
		return fmt.Sprintf("%ds", int(d/time.Second))
	}
}

func formatMs(ms int64) string {
	return formatDuration(time.Duration(ms) * time.Millisecond)
}

func hasRole(member tracking.Member, roleId string) bool {
	for _, role := range member.Roles {
		if role == roleId {
			return true
		}
	}
	return false
}

func playerList(players []tracking.ActivePlayer) string {
	lines := make([]string, 0, len(players))
	for _, player := range players {
		lines = append(lines, fmt.Sprintf("• %s (%s)", player.Member.DisplayName, formatDuration(player.Duration)))
	}
	return strings.Join(lines, "\n")
}

// Players of a game, clan members first when the guild has a clan role
func PlayersPanel(gameName string, players []tracking.ActivePlayer, clanRoleId string, clanRoleName string) *discordgo.MessageEmbed {

	embed := baseEmbed(fmt.Sprintf("🎮 Players Online - %s", gameName), "", colorPrimary)
	embed.Footer = &discordgo.MessageEmbedFooter{Text: "Based on Discord status"}

	if len(players) == 0 {
		embed.Description = fmt.Sprintf("No one is currently playing **%s**.", gameName)
		return embed
	}
	plural := "players"
	if len(players) == 1 {
		plural = "player"
	}
	embed.Description = fmt.Sprintf("**%d** %s currently online", len(players), plural)

	// Longest sessions first
	sorted := make([]tracking.ActivePlayer, len(players))
	copy(sorted, players)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Duration > sorted[j].Duration })

	var clan, community []tracking.ActivePlayer
	for _, player := range sorted {
		if clanRoleId != "" && hasRole(player.Member, clanRoleId) {
			clan = append(clan, player)
		} else {
			community = append(community, player)
		}
	}

	if len(clan) > 0 {
		if clanRoleName == "" {
			clanRoleName = "Clan Members"
		}
		embed.Fields = append(embed.Fields, field(fmt.Sprintf("👑 %s (%d)", clanRoleName, len(clan)), playerList(clan), false))
	}
	if len(community) > 0 {
		embed.Fields = append(embed.Fields, field(fmt.Sprintf("🌟 Community Members (%d)", len(community)), playerList(community), false))
	}
	return embed
}

func StatsMessage(gameName string, stats tracking.SessionStats) Response {

	embed := baseEmbed(fmt.Sprintf("📊 Session Stats - %s", gameName), "", colorInfo)
	if stats.TotalPlayers == 0 {
		embed.Description = fmt.Sprintf("No sessions recorded for **%s** yet.", gameName)
		return ResponseEmbed{embed}
	}
	embed.Fields = append(embed.Fields,
		field("Players", fmt.Sprint(stats.TotalPlayers), true),
		field("Longest session", formatMs(stats.LongestSessionMs), true),
		field("Average session", formatMs(stats.AverageSessionMs), true),
		field("Total playtime", formatMs(stats.TotalPlaytimeMs), true),
	)
	return ResponseEmbed{embed}
}

func TrackedGamesMessage(games []tracking.TrackedGame) Response {

	if len(games) == 0 {
		return Info("🎮 Tracked Games", "No games are being tracked in this server. Use `/trackgame add` first.")
	}
	lines := make([]string, 0, len(games))
	for _, game := range games {
		lines = append(lines, fmt.Sprintf("• **%s** in <#%s>", game.GameName, game.ChannelId))
	}
	return Info("🎮 Tracked Games", strings.Join(lines, "\n"))
}

func ScanMessage(result tracking.ScanResult) Response {

	if len(result.Games) == 0 {
		return Warning("Force Scan", "❌ No games are being tracked in this server. Use `/trackgame add` first.")
	}
	names := make([]string, 0, len(result.Games))
	for name := range result.Games {
		names = append(names, name)
	}
	sort.Strings(names)

	var content strings.Builder
	fmt.Fprintf(&content, "✅ Scanned %d members\n", result.Scanned)
	fmt.Fprintf(&content, "🎮 Found %d active players\n", result.Found)
	fmt.Fprintf(&content, "📊 Tracking %d games\n", len(names))
	if result.Failed > 0 {
		fmt.Fprintf(&content, "⚠️ %d members could not be scanned\n", result.Failed)
	}
	content.WriteString("\n**Tracked Games:**\n")
	for _, name := range names {
		fmt.Fprintf(&content, "• %s (%d)\n", name, result.Games[name])
	}
	return Success("Force Scan Complete", content.String())
}

func DebugMessage(userId string, result tracking.DebugResult) Response {

	embed := baseEmbed("🔍 Presence Debug", fmt.Sprintf("Presence of <@%s>", userId), colorInfo)

	activities := make([]string, 0, len(result.Activities))
	for _, activity := range result.Activities {
		activities = append(activities, fmt.Sprintf("• %s (%s)", activity.Name, activity.Type))
	}
	if len(activities) == 0 {
		activities = append(activities, "No activities")
	}
	embed.Fields = append(embed.Fields, field("Activities", strings.Join(activities, "\n"), false))

	names := make([]string, 0, len(result.Games))
	for name := range result.Games {
		names = append(names, name)
	}
	sort.Strings(names)
	games := make([]string, 0, len(names))
	for _, name := range names {
		mark := "❌"
		if result.Games[name] {
			mark = "✅"
		}
		games = append(games, fmt.Sprintf("%s %s", mark, name))
	}
	if len(games) == 0 {
		games = append(games, "No tracked games")
	}
	embed.Fields = append(embed.Fields, field("Tracked games", strings.Join(games, "\n"), false))
	return ResponseEmbed{embed}
}

func RegionName(region population.Region) string {
	switch region {
	case population.RegionNA:
		return "North America (Jericho)"
	case population.RegionEU:
		return "Europe (Citadel)"
	default:
		return "All Regions"
	}
}

func PopulationPanel(region population.Region, districts []population.District) *discordgo.MessageEmbed {

	embed := baseEmbed(fmt.Sprintf("🎮 APB Population - %s", RegionName(region)), "", colorPrimary)
	embed.Footer = &discordgo.MessageEmbedFooter{Text: "Updates every 5 minutes"}

	if len(districts) == 0 {
		embed.Description = "❌ Unable to fetch population data or servers are offline."
		return embed
	}
	total := population.Total(districts)
	if total == 0 {
		embed.Description = "🔴 All servers appear to be offline or empty."
		return embed
	}

	embed.Fields = append(embed.Fields, field("📊 Total Population", fmt.Sprintf("**%d** players online", total), false))

	sorted := make([]population.District, 0, len(districts))
	for _, district := range districts {
		if district.Population > 0 {
			sorted = append(sorted, district)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Population > sorted[j].Population })
	lines := make([]string, 0, len(sorted))
	for _, district := range sorted {
		line := fmt.Sprintf("**%s**: %d", district.Name, district.Population)
		if region == population.RegionBoth && district.Region != "" {
			line += fmt.Sprintf(" [%s]", district.Region)
		}
		lines = append(lines, line)
	}
	embed.Fields = append(embed.Fields, field("🏙️ Active Districts", strings.Join(lines, "\n"), false))
	return embed
}

func StreamNotification(streamer twitch.Streamer, stream twitch.StreamInfo) *discordgo.MessageEmbed {

	embed := baseEmbed(fmt.Sprintf("🔴 %s is now live!", streamer.Username), "", colorTwitch)
	embed.URL = streamer.TwitchUrl
	if stream.Title != "" {
		embed.Fields = append(embed.Fields, field("📺 Stream Title", stream.Title, false))
	}
	if stream.Game != "" {
		embed.Fields = append(embed.Fields, field("🎮 Playing", stream.Game, true))
	}
	embed.Fields = append(embed.Fields, field("👥 Viewers", fmt.Sprint(stream.Viewers), true))
	if stream.Thumbnail != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: stream.Thumbnail}
	}
	embed.Fields = append(embed.Fields, field("🔗 Watch Stream", fmt.Sprintf("[Click here to watch](%s)", streamer.TwitchUrl), false))
	embed.Footer = &discordgo.MessageEmbedFooter{Text: "Stream notification"}
	return embed
}

func StreamerList(streamers []twitch.Streamer, guildName string) Response {

	embed := baseEmbed(fmt.Sprintf("📺 Twitch Streamers - %s", guildName), "", colorTwitch)
	if len(streamers) == 0 {
		embed.Description = "No streamers have been added yet.\nUse `/twitch add <url>` to add your stream!"
		return ResponseEmbed{embed}
	}

	var live, offline []string
	for _, streamer := range streamers {
		if streamer.IsLive {
			live = append(live, fmt.Sprintf("🔴 **%s** - [Watch](%s)", streamer.Username, streamer.TwitchUrl))
		} else {
			offline = append(offline, fmt.Sprintf("⚫ %s - [Channel](%s)", streamer.Username, streamer.TwitchUrl))
		}
	}
	if len(live) > 0 {
		embed.Fields = append(embed.Fields, field(fmt.Sprintf("🔴 Live Now (%d)", len(live)), strings.Join(live, "\n"), false))
	}
	if len(offline) > 0 {
		embed.Fields = append(embed.Fields, field(fmt.Sprintf("⚫ Offline (%d)", len(offline)), strings.Join(offline, "\n"), false))
	}
	embed.Footer = &discordgo.MessageEmbedFooter{Text: "Stream status updates automatically"}
	return ResponseEmbed{embed}
}

func TestMessage(guildName string, userName string, now time.Time) Response {
	return Success("Bot Test", fmt.Sprintf("✅ Bot is working!\n\n**Server:** %s\n**User:** %s\n**Time:** <t:%d:F>", guildName, userName, now.Unix()))
}

func HelpMessage() Response {

	embed := baseEmbed("Commands available", "", colorPrimary)
	commands := [][2]string{
		{"`/players [game]`", "Show the members currently playing a game"},
		{"`/stats [game]`", "Show the play session statistics of a game"},
		{"`/apbpop [region]`", "Show the current APB population"},
		{"`/twitch add|remove|list`", "Manage your Twitch stream notifications"},
		{"`/trackgame add|remove|list`", "Manage the auto updating players panels"},
		{"`/forcescan`", "Scan all members for game activity"},
		{"`/debug [user]`", "Check the presence of a member against the tracked games"},
		{"`/setgame <game>`", "Set the default game of `/players`"},
		{"`/setclangroup <role>`", "Set the role that separates clan members from the community"},
		{"`/setchannel <channel> [region]`", "Set up auto updating APB population panels"},
		{"`/twitchadmin ...`", "Admin commands for the Twitch integration"},
		{"`/test`", "Check that the bot is working"},
	}
	for _, command := range commands {
		embed.Fields = append(embed.Fields, field(command[0], command[1], false))
	}
	return ResponseEmbed{embed}
}
