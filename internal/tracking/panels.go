package tracking

import (
	"context"
	"errors"
	"fmt"

	"apbeeper/internal/common"
	"apbeeper/internal/metrics"

	"github.com/rs/zerolog/log"
)

// Outcome of one pass of the panel reconciliation loop
type PanelReport struct {
	Updated   int
	Recreated int
	Failed    int
	Ended     int
}

// Re-render the players panel of every tracked game. A failure on one
// game is logged and the pass goes on with the next one
func (tracker *Tracker) ReconcilePanels(ctx context.Context) (PanelReport, error) {

	games, err := tracker.games.ListTrackedGames(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Could not list tracked games")
		return PanelReport{}, err
	}

	var report PanelReport
	for _, game := range games {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		recreated, ended, err := tracker.reconcilePanel(ctx, game)
		report.Ended += ended
		tracker.metrics.PanelUpdated("players", err)
		if err != nil {
			report.Failed++
			log.Error().Err(err).Str("guild", game.GuildId).Str("game", game.GameName).Msg("Could not update players panel")
			continue
		}
		report.Updated++
		if recreated {
			report.Recreated++
		}
	}
	log.Debug().Int("updated", report.Updated).Int("failed", report.Failed).Int("ended", report.Ended).Msg("Players panels reconciled")
	return report, nil
}

// Render the panel of one game right away, outside of the periodic pass
func (tracker *Tracker) RefreshPanel(ctx context.Context, game TrackedGame) error {
	_, _, err := tracker.reconcilePanel(ctx, game)
	tracker.metrics.PanelUpdated("players", err)
	return err
}

func (tracker *Tracker) reconcilePanel(ctx context.Context, game TrackedGame) (bool, int, error) {

	players, ended, err := tracker.ActivePlayers(ctx, game.GuildId, game.GameName)
	if err != nil {
		return false, ended, err
	}

	// Render
	embed, err := tracker.render(ctx, game, players)
	if err != nil {
		return false, ended, fmt.Errorf("could not render panel: %w", err)
	}

	// Publish
	messageId, changed, err := common.PublishOrEdit(ctx, tracker.messenger, game.ChannelId, game.PanelMessageId, embed)
	if err != nil {
		return false, ended, fmt.Errorf("could not publish panel: %w", err)
	}
	if !changed {
		return false, ended, nil
	}
	if err := tracker.games.SetPanelMessage(ctx, game.Id, messageId); err != nil {
		return true, ended, fmt.Errorf("could not save panel message %s: %w", messageId, err)
	}
	log.Info().Str("guild", game.GuildId).Str("game", game.GameName).Str("message", messageId).Msg("Created new players panel")
	return true, ended, nil
}

// Resolve the members behind the active sessions of a game. Members that
// left the guild get their session ended. Returns the number of such sessions
func (tracker *Tracker) ActivePlayers(ctx context.Context, guildId, gameName string) ([]ActivePlayer, int, error) {

	sessions, err := tracker.store.ListActiveSessions(ctx, guildId, gameName)
	if err != nil {
		return nil, 0, err
	}

	now := tracker.clock.Now()
	players := make([]ActivePlayer, 0, len(sessions))
	ended := 0
	for _, session := range sessions {
		member, err := tracker.members.ResolveMember(ctx, guildId, session.UserId)
		if errors.Is(err, ErrMemberNotFound) {
			ok, err := tracker.store.EndSession(ctx, session.UserId, guildId, session.GameName)
			if err != nil {
				return nil, ended, err
			}
			if ok {
				ended++
				tracker.metrics.SessionsEnded(metrics.EndUnresolved, 1)
			}
			log.Info().Str("guild", guildId).Str("user", session.UserId).Str("game", session.GameName).Msg("Member left, ended session")
			continue
		}
		if err != nil {
			log.Warn().Err(err).Str("guild", guildId).Str("user", session.UserId).Msg("Could not resolve member")
			continue
		}
		duration := now.Sub(session.StartedAt)
		if duration < 0 {
			duration = 0
		}
		players = append(players, ActivePlayer{Member: member, StartedAt: session.StartedAt, Duration: duration})
	}
	return players, ended, nil
}
