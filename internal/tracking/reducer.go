package tracking

import (
	"context"

	"apbeeper/internal/metrics"

	"github.com/rs/zerolog/log"
)

// Sessions to start and to end after a presence change
type Transitions struct {
	Start []TrackedGame
	End   []TrackedGame
}

// Decide which tracked games the user started and stopped playing.
// Only Playing activities are considered. A game that is matched before
// and after, or neither, produces nothing
func Transition(match MatchFunc, old, new []Activity, games []TrackedGame) Transitions {
	oldNames := PlayingNames(old)
	newNames := PlayingNames(new)

	var transitions Transitions
	for _, game := range games {
		wasPlaying := AnyMatches(match, oldNames, game.GameName)
		isPlaying := AnyMatches(match, newNames, game.GameName)
		switch {
		case isPlaying && !wasPlaying:
			transitions.Start = append(transitions.Start, game)
		case !isPlaying && wasPlaying:
			transitions.End = append(transitions.End, game)
		}
	}
	return transitions
}

// Apply a presence change of one user to the session store.
// A storage failure stops the reduction and is returned
func (tracker *Tracker) Reduce(ctx context.Context, change PresenceChange) (Transitions, error) {

	tracker.metrics.PresenceEvent()
	games, err := tracker.uniqueGames(ctx, change.GuildId)
	if err != nil {
		return Transitions{}, err
	}
	if len(games) == 0 {
		return Transitions{}, nil
	}

	transitions := Transition(tracker.match, change.Old, change.New, games)
	for _, game := range transitions.Start {
		if _, err := tracker.store.StartSession(ctx, change.UserId, change.GuildId, game.GameName); err != nil {
			return transitions, err
		}
		tracker.metrics.SessionStarted()
		log.Info().Str("user", change.UserId).Str("guild", change.GuildId).Str("game", game.GameName).Msg("Started playing")
	}
	for _, game := range transitions.End {
		ended, err := tracker.store.EndSession(ctx, change.UserId, change.GuildId, game.GameName)
		if err != nil {
			return transitions, err
		}
		if ended {
			tracker.metrics.SessionsEnded(metrics.EndPresence, 1)
		}
		log.Info().Str("user", change.UserId).Str("guild", change.GuildId).Str("game", game.GameName).Bool("ended", ended).Msg("Stopped playing")
	}
	return transitions, nil
}
