package twitch

import (
	"context"
	"fmt"
	"time"

	"apbeeper/internal/common"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DatabaseTwitch struct {
	common.Database
	now func() time.Time
}

func NewDatabaseTwitch(database common.Database) (*DatabaseTwitch, error) {
	if err := database.Migrate(&Streamer{}); err != nil {
		return nil, err
	}
	return &DatabaseTwitch{Database: database, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Add a streamer, or update the channel of an existing one
func (db *DatabaseTwitch) AddStreamer(ctx context.Context, streamer Streamer) error {
	err := db.DB().WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guild_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "twitch_url", "added_by"}),
	}).Create(&streamer).Error
	if err != nil {
		return fmt.Errorf("could not add streamer %s in guild %s: %w", streamer.UserId, streamer.GuildId, err)
	}
	return nil
}

// Returns false when the user was not registered
func (db *DatabaseTwitch) RemoveStreamer(ctx context.Context, guildId, userId string) (bool, error) {
	result := db.DB().WithContext(ctx).
		Where("guild_id = ? AND user_id = ?", guildId, userId).
		Delete(&Streamer{})
	return result.RowsAffected > 0, result.Error
}

func (db *DatabaseTwitch) GetStreamer(ctx context.Context, guildId, userId string) (Streamer, bool, error) {
	var streamers []Streamer
	err := db.DB().WithContext(ctx).
		Where("guild_id = ? AND user_id = ?", guildId, userId).
		Limit(1).
		Find(&streamers).Error
	if err != nil || len(streamers) == 0 {
		return Streamer{}, false, err
	}
	return streamers[0], true, nil
}

// Streamers of a guild, or of every guild when guildId is empty
func (db *DatabaseTwitch) ListStreamers(ctx context.Context, guildId string) ([]Streamer, error) {
	var streamers []Streamer
	query := db.DB().WithContext(ctx).Order("id")
	if guildId != "" {
		query = query.Where("guild_id = ?", guildId)
	}
	err := query.Find(&streamers).Error
	return streamers, err
}

// Store the live status. The notification time is only
// overwritten when a new one is provided
func (db *DatabaseTwitch) SetLiveStatus(ctx context.Context, guildId, userId string, isLive bool, notified *time.Time) error {
	updates := map[string]interface{}{"is_live": isLive}
	if notified != nil {
		updates["last_notified"] = *notified
	}
	return db.DB().WithContext(ctx).Model(&Streamer{}).
		Where("guild_id = ? AND user_id = ?", guildId, userId).
		Updates(updates).Error
}

// Forget the live status of streamers not notified in maxAge
func (db *DatabaseTwitch) ResetStaleLive(ctx context.Context, maxAge time.Duration) (int64, error) {
	result := db.DB().WithContext(ctx).Model(&Streamer{}).
		Where("last_notified < ?", db.now().Add(-maxAge)).
		Updates(map[string]interface{}{"is_live": false, "last_notified": gorm.Expr("NULL")})
	return result.RowsAffected, result.Error
}
