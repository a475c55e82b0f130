package bot

import (
	"context"
	"fmt"
	"time"

	"apbeeper/internal/common"
	"apbeeper/internal/twitch"
)

const defaultGameName = "APB: Reloaded"

// Per guild configuration set through the admin commands
type ServerSettings struct {
	GuildId         string `gorm:"primaryKey"`
	GameName        string `gorm:"not null"`
	ClanRoleId      string
	ApbChannelId    string
	TwitchEnabled   bool `gorm:"not null"`
	TwitchChannelId string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (ServerSettings) TableName() string {
	return "server_settings"
}

func defaultSettings(guildId string) ServerSettings {
	return ServerSettings{GuildId: guildId, GameName: defaultGameName, TwitchEnabled: true}
}

type DatabaseBot struct {
	common.Database
}

func NewDatabaseBot(database common.Database) (*DatabaseBot, error) {
	if err := database.Migrate(&ServerSettings{}); err != nil {
		return nil, err
	}
	return &DatabaseBot{Database: database}, nil
}

// Settings of the guild, created with the defaults the first time
func (db *DatabaseBot) GetSettings(ctx context.Context, guildId string) (ServerSettings, error) {
	var settings ServerSettings
	err := db.DB().WithContext(ctx).
		Where(ServerSettings{GuildId: guildId}).
		Attrs(defaultSettings(guildId)).
		FirstOrCreate(&settings).Error
	if err != nil {
		return ServerSettings{}, fmt.Errorf("could not get settings of guild %s: %w", guildId, err)
	}
	return settings, nil
}

func (db *DatabaseBot) update(ctx context.Context, guildId string, column string, value interface{}) error {
	// Make sure the row exists so that the update has something to change
	if _, err := db.GetSettings(ctx, guildId); err != nil {
		return err
	}
	err := db.DB().WithContext(ctx).
		Model(&ServerSettings{}).
		Where("guild_id = ?", guildId).
		Update(column, value).Error
	if err != nil {
		return fmt.Errorf("could not update %s of guild %s: %w", column, guildId, err)
	}
	return nil
}

func (db *DatabaseBot) SetGameName(ctx context.Context, guildId, gameName string) error {
	return db.update(ctx, guildId, "game_name", gameName)
}

func (db *DatabaseBot) SetClanRole(ctx context.Context, guildId, roleId string) error {
	return db.update(ctx, guildId, "clan_role_id", roleId)
}

func (db *DatabaseBot) SetApbChannel(ctx context.Context, guildId, channelId string) error {
	return db.update(ctx, guildId, "apb_channel_id", channelId)
}

func (db *DatabaseBot) SetTwitchEnabled(ctx context.Context, guildId string, enabled bool) error {
	return db.update(ctx, guildId, "twitch_enabled", enabled)
}

func (db *DatabaseBot) SetTwitchChannel(ctx context.Context, guildId, channelId string) error {
	return db.update(ctx, guildId, "twitch_channel_id", channelId)
}

// Where the live notifications of a guild go
func (db *DatabaseBot) NotificationSettings(ctx context.Context, guildId string) (twitch.NotificationSettings, error) {
	settings, err := db.GetSettings(ctx, guildId)
	if err != nil {
		return twitch.NotificationSettings{}, err
	}
	return twitch.NotificationSettings{Enabled: settings.TwitchEnabled, ChannelId: settings.TwitchChannelId}, nil
}
