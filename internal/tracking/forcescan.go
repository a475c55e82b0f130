package tracking

import (
	"context"
	"fmt"

	"apbeeper/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Outcome of a full membership sweep
type ScanResult struct {
	ScanId  uuid.UUID
	Scanned int
	Found   int
	Failed  int
	// Members playing, per tracked game name
	Games map[string]int
}

// Re-derive every session of the guild from the current presence of all
// its members. Members that fail are logged and skipped
func (tracker *Tracker) ForceScan(ctx context.Context, guildId string) (ScanResult, error) {

	result := ScanResult{ScanId: uuid.New(), Games: make(map[string]int)}
	logger := log.With().Str("scan", result.ScanId.String()).Str("guild", guildId).Logger()

	games, err := tracker.uniqueGames(ctx, guildId)
	if err != nil {
		return result, err
	}
	if len(games) == 0 {
		logger.Info().Msg("No tracked games, nothing to scan")
		return result, nil
	}
	for _, game := range games {
		result.Games[game.GameName] = 0
	}

	members, err := tracker.members.ListMembers(ctx, guildId)
	if err != nil {
		return result, fmt.Errorf("could not list members of guild %s: %w", guildId, err)
	}
	logger.Info().Int("members", len(members)).Int("games", len(games)).Msg("Starting force scan")

	for _, member := range members {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if member.Bot {
			continue
		}
		result.Scanned++
		found, err := tracker.scanMember(ctx, guildId, member, games, result.Games)
		if err != nil {
			result.Failed++
			logger.Warn().Err(err).Str("user", member.UserId).Msg("Could not scan member")
			continue
		}
		if found {
			result.Found++
		}
	}

	tracker.metrics.ForceScan(result.Failed)
	logger.Info().Int("scanned", result.Scanned).Int("found", result.Found).Int("failed", result.Failed).Msg("Force scan finished")
	return result, nil
}

func (tracker *Tracker) scanMember(ctx context.Context, guildId string, member Member, games []TrackedGame, counts map[string]int) (bool, error) {

	names := PlayingNames(member.Activities)
	found := false
	for _, game := range games {
		if AnyMatches(tracker.match, names, game.GameName) {
			if _, err := tracker.store.StartSession(ctx, member.UserId, guildId, game.GameName); err != nil {
				return found, err
			}
			tracker.metrics.SessionStarted()
			counts[game.GameName]++
			found = true
			continue
		}
		ended, err := tracker.store.EndSession(ctx, member.UserId, guildId, game.GameName)
		if err != nil {
			return found, err
		}
		if ended {
			tracker.metrics.SessionsEnded(metrics.EndScan, 1)
		}
	}
	return found, nil
}
