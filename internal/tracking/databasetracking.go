package tracking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"apbeeper/internal/common"

	"gorm.io/gorm"
)

var ErrTrackedGameExists = errors.New("game is already tracked in this channel")

// Session store and tracked-game registry backed by gorm
type DatabaseTracking struct {
	common.Database
	locks *common.KeyLock
	clock common.Clock
}

func NewDatabaseTracking(database common.Database, clock common.Clock) (*DatabaseTracking, error) {
	if err := database.Migrate(&TrackedGame{}, &PlaySession{}); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = common.RealClock{}
	}
	return &DatabaseTracking{Database: database, locks: common.NewKeyLock(), clock: clock}, nil
}

var _ SessionStore = (*DatabaseTracking)(nil)
var _ GameRegistry = (*DatabaseTracking)(nil)

func sessionLockKey(userId, guildId, gameKey string) string {
	return guildId + "\x00" + userId + "\x00" + gameKey
}

// Sessions

// Start a session for the key. An active session for the same key is
// ended first, so there is exactly one active session afterwards
func (db *DatabaseTracking) StartSession(ctx context.Context, userId, guildId, gameName string) (uint64, error) {

	gameKey := GameKey(gameName)
	unlock := db.locks.Lock(sessionLockKey(userId, guildId, gameKey))
	defer unlock()

	now := db.clock.Now()
	session := PlaySession{
		UserId:    userId,
		GuildId:   guildId,
		GameKey:   gameKey,
		GameName:  gameName,
		StartedAt: now,
		IsActive:  true,
	}
	err := db.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := endActive(tx, userId, guildId, gameKey, now); err != nil {
			return err
		}
		return tx.Create(&session).Error
	})
	if err != nil {
		return 0, fmt.Errorf("could not start session for user %s in guild %s (%s): %w", userId, guildId, gameName, err)
	}
	return session.Id, nil
}

// End the active session of the key. Returns false when there was none
func (db *DatabaseTracking) EndSession(ctx context.Context, userId, guildId, gameName string) (bool, error) {

	gameKey := GameKey(gameName)
	unlock := db.locks.Lock(sessionLockKey(userId, guildId, gameKey))
	defer unlock()

	var ended int
	err := db.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		ended, err = endActive(tx, userId, guildId, gameKey, db.clock.Now())
		return err
	})
	if err != nil {
		return false, fmt.Errorf("could not end session for user %s in guild %s (%s): %w", userId, guildId, gameName, err)
	}
	return ended > 0, nil
}

// End every active row of the key, computing its duration
func endActive(tx *gorm.DB, userId, guildId, gameKey string, now time.Time) (int, error) {
	var active []PlaySession
	err := tx.Where("user_id = ? AND guild_id = ? AND game_key = ? AND is_active = ?", userId, guildId, gameKey, true).
		Find(&active).Error
	if err != nil {
		return 0, err
	}
	for _, session := range active {
		duration := now.Sub(session.StartedAt).Milliseconds()
		if duration < 0 {
			duration = 0
		}
		err := tx.Model(&PlaySession{}).Where("id = ?", session.Id).Updates(map[string]interface{}{
			"is_active":   false,
			"ended_at":    now,
			"duration_ms": duration,
		}).Error
		if err != nil {
			return 0, err
		}
	}
	return len(active), nil
}

// Active sessions of a game in a guild, most recently started first
func (db *DatabaseTracking) ListActiveSessions(ctx context.Context, guildId, gameName string) ([]PlaySession, error) {
	var sessions []PlaySession
	err := db.DB().WithContext(ctx).
		Where("guild_id = ? AND game_key = ? AND is_active = ?", guildId, GameKey(gameName), true).
		Order("started_at DESC").
		Order("id DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("could not list active sessions for %s in guild %s: %w", gameName, guildId, err)
	}
	return sessions, nil
}

// Force end every active session started more than maxAge ago.
// Their elapsed time is not trusted, so they keep a zero duration
func (db *DatabaseTracking) CleanupStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	now := db.clock.Now()
	result := db.DB().WithContext(ctx).Model(&PlaySession{}).
		Where("is_active = ? AND started_at < ?", true, now.Add(-maxAge)).
		Updates(map[string]interface{}{
			"is_active":   false,
			"ended_at":    now,
			"duration_ms": 0,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("could not clean up stale sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Aggregates over the history of a game in a guild. Players count every
// session, durations only the ended ones
func (db *DatabaseTracking) SessionStats(ctx context.Context, guildId, gameName string) (SessionStats, error) {

	gameKey := GameKey(gameName)
	var stats SessionStats

	err := db.DB().WithContext(ctx).Model(&PlaySession{}).
		Where("guild_id = ? AND game_key = ?", guildId, gameKey).
		Distinct("user_id").
		Count(&stats.TotalPlayers).Error
	if err != nil {
		return SessionStats{}, fmt.Errorf("could not count players of %s in guild %s: %w", gameName, guildId, err)
	}

	var row struct {
		Longest int64
		Average float64
		Total   int64
	}
	err = db.DB().WithContext(ctx).Model(&PlaySession{}).
		Select("COALESCE(MAX(duration_ms), 0) AS longest, COALESCE(AVG(duration_ms), 0) AS average, COALESCE(SUM(duration_ms), 0) AS total").
		Where("guild_id = ? AND game_key = ? AND is_active = ?", guildId, gameKey, false).
		Scan(&row).Error
	if err != nil {
		return SessionStats{}, fmt.Errorf("could not compute session stats of %s in guild %s: %w", gameName, guildId, err)
	}
	stats.LongestSessionMs = row.Longest
	stats.AverageSessionMs = int64(row.Average)
	stats.TotalPlaytimeMs = row.Total
	return stats, nil
}

// Every session of a user, most recent first
func (db *DatabaseTracking) UserSessions(ctx context.Context, guildId, userId string, limit int) ([]PlaySession, error) {
	var sessions []PlaySession
	err := db.DB().WithContext(ctx).
		Where("guild_id = ? AND user_id = ?", guildId, userId).
		Order("started_at DESC").
		Limit(limit).
		Find(&sessions).Error
	return sessions, err
}

// Tracked games

// Track a game in a channel. Names are compared case insensitively,
// the unique index on the game key rejects concurrent duplicates
func (db *DatabaseTracking) AddTrackedGame(ctx context.Context, guildId, channelId, gameName string) (TrackedGame, error) {

	gameName = strings.TrimSpace(gameName)
	game := TrackedGame{GuildId: guildId, ChannelId: channelId, GameKey: GameKey(gameName), GameName: gameName}
	err := db.DB().WithContext(ctx).Create(&game).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return TrackedGame{}, ErrTrackedGameExists
	}
	if err != nil {
		return TrackedGame{}, fmt.Errorf("could not track %s in guild %s: %w", gameName, guildId, err)
	}
	return game, nil
}

// Stop tracking a game in a guild, in every channel. Sessions are kept as history
func (db *DatabaseTracking) RemoveTrackedGame(ctx context.Context, guildId, gameName string) ([]TrackedGame, error) {
	var removed []TrackedGame
	err := db.DB().WithContext(ctx).
		Where("guild_id = ? AND game_key = ?", guildId, GameKey(gameName)).
		Find(&removed).Error
	if err != nil {
		return nil, err
	}
	if len(removed) == 0 {
		return nil, nil
	}
	err = db.DB().WithContext(ctx).
		Where("guild_id = ? AND game_key = ?", guildId, GameKey(gameName)).
		Delete(&TrackedGame{}).Error
	return removed, err
}

func (db *DatabaseTracking) ListTrackedGames(ctx context.Context) ([]TrackedGame, error) {
	var games []TrackedGame
	err := db.DB().WithContext(ctx).Order("id").Find(&games).Error
	return games, err
}

func (db *DatabaseTracking) TrackedGamesForGuild(ctx context.Context, guildId string) ([]TrackedGame, error) {
	var games []TrackedGame
	err := db.DB().WithContext(ctx).Where("guild_id = ?", guildId).Order("id").Find(&games).Error
	return games, err
}

func (db *DatabaseTracking) SetPanelMessage(ctx context.Context, trackedGameId uint64, messageId string) error {
	return db.DB().WithContext(ctx).Model(&TrackedGame{}).
		Where("id = ?", trackedGameId).
		Update("panel_message_id", messageId).Error
}
