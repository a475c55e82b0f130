package population

import (
	"context"

	"apbeeper/internal/common"

	"gorm.io/gorm/clause"
)

type DatabasePopulation struct {
	common.Database
}

func NewDatabasePopulation(database common.Database) (*DatabasePopulation, error) {
	if err := database.Migrate(&Panel{}); err != nil {
		return nil, err
	}
	return &DatabasePopulation{database}, nil
}

// Save a panel, replacing the message of an existing one
func (db *DatabasePopulation) SavePanel(ctx context.Context, panel Panel) error {
	return db.DB().WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "guild_id"}, {Name: "channel_id"}, {Name: "region"}},
		DoUpdates: clause.AssignmentColumns([]string{"message_id"}),
	}).Create(&panel).Error
}

func (db *DatabasePopulation) RemovePanel(ctx context.Context, guildId, channelId string, region Region) (bool, error) {
	result := db.DB().WithContext(ctx).
		Where("guild_id = ? AND channel_id = ? AND region = ?", guildId, channelId, region).
		Delete(&Panel{})
	return result.RowsAffected > 0, result.Error
}

// Panels of a guild, or of every guild when guildId is empty
func (db *DatabasePopulation) ListPanels(ctx context.Context, guildId string) ([]Panel, error) {
	var panels []Panel
	query := db.DB().WithContext(ctx).Order("id")
	if guildId != "" {
		query = query.Where("guild_id = ?", guildId)
	}
	err := query.Find(&panels).Error
	return panels, err
}

func (db *DatabasePopulation) SetPanelMessage(ctx context.Context, panelId uint64, messageId string) error {
	return db.DB().WithContext(ctx).Model(&Panel{}).
		Where("id = ?", panelId).
		Update("message_id", messageId).Error
}
