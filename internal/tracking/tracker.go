package tracking

import (
	"context"
	"time"

	"apbeeper/internal/common"
	"apbeeper/internal/metrics"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

// Builds the embed of a players panel
type RenderFunc func(ctx context.Context, game TrackedGame, players []ActivePlayer) (*discordgo.MessageEmbed, error)

// Tracker turns presence updates into play sessions and keeps
// the players panels up to date
type Tracker struct {
	store     SessionStore
	games     GameRegistry
	members   MemberSource
	messenger common.Messenger
	render    RenderFunc
	match     MatchFunc
	clock     common.Clock
	metrics   *metrics.Metrics
}

type TrackerOptions struct {
	Store     SessionStore
	Games     GameRegistry
	Members   MemberSource
	Messenger common.Messenger
	Render    RenderFunc
	Policy    MatchPolicy
	Clock     common.Clock
	Metrics   *metrics.Metrics
}

func NewTracker(options TrackerOptions) *Tracker {
	tracker := &Tracker{
		store:     options.Store,
		games:     options.Games,
		members:   options.Members,
		messenger: options.Messenger,
		render:    options.Render,
		match:     options.Policy.Func(),
		clock:     options.Clock,
		metrics:   options.Metrics,
	}
	if tracker.clock == nil {
		tracker.clock = common.RealClock{}
	}
	return tracker
}

func (tracker *Tracker) ActiveSessions(ctx context.Context, guildId, gameName string) ([]PlaySession, error) {
	return tracker.store.ListActiveSessions(ctx, guildId, gameName)
}

func (tracker *Tracker) SessionStats(ctx context.Context, guildId, gameName string) (SessionStats, error) {
	return tracker.store.SessionStats(ctx, guildId, gameName)
}

// Force end the sessions older than maxAge
func (tracker *Tracker) CleanupStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	count, err := tracker.store.CleanupStale(ctx, maxAge)
	if err != nil {
		log.Error().Err(err).Msg("Could not clean up stale sessions")
		return 0, err
	}
	tracker.metrics.SessionsEnded(metrics.EndStale, int(count))
	if count > 0 {
		log.Info().Int64("sessions", count).Dur("maxAge", maxAge).Msg("Cleaned up stale sessions")
	} else {
		log.Debug().Msg("No stale sessions to clean up")
	}
	return count, nil
}

// Tracked games of a guild, keeping only the first entry of every
// game name so one key is never started twice for the same event
func (tracker *Tracker) uniqueGames(ctx context.Context, guildId string) ([]TrackedGame, error) {
	games, err := tracker.games.TrackedGamesForGuild(ctx, guildId)
	if err != nil {
		return nil, err
	}
	return UniqueGames(games), nil
}

func UniqueGames(games []TrackedGame) []TrackedGame {
	unique := make([]TrackedGame, 0, len(games))
	seen := make(map[string]struct{}, len(games))
	for _, game := range games {
		key := game.GuildId + "\x00" + GameKey(game.GameName)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, game)
	}
	return unique
}

// What a member is playing, game by game
type DebugResult struct {
	Activities []Activity
	Games      map[string]bool
}

// Check a member's current presence against every tracked game of the guild
func (tracker *Tracker) Debug(ctx context.Context, guildId, userId string) (DebugResult, error) {
	member, err := tracker.members.ResolveMember(ctx, guildId, userId)
	if err != nil {
		return DebugResult{}, err
	}
	games, err := tracker.uniqueGames(ctx, guildId)
	if err != nil {
		return DebugResult{}, err
	}
	names := PlayingNames(member.Activities)
	result := DebugResult{Activities: member.Activities, Games: make(map[string]bool, len(games))}
	for _, game := range games {
		playing := AnyMatches(tracker.match, names, game.GameName)
		result.Games[game.GameName] = playing
		log.Info().Str("user", userId).Str("game", game.GameName).Bool("playing", playing).Msg("Debug presence")
	}
	return result, nil
}
