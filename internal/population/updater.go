package population

import (
	"context"
	"errors"
	"fmt"

	"apbeeper/internal/common"
	"apbeeper/internal/metrics"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

// Builds a population panel. Districts are empty when there is no data
type RenderFunc func(region Region, districts []District) *discordgo.MessageEmbed

type UpdateReport struct {
	Updated   int
	Recreated int
	Failed    int
}

type Updater struct {
	database  *DatabasePopulation
	source    Source
	messenger common.Messenger
	render    RenderFunc
	metrics   *metrics.Metrics
}

func NewUpdater(database *DatabasePopulation, source Source, messenger common.Messenger, render RenderFunc, m *metrics.Metrics) *Updater {
	return &Updater{database: database, source: source, messenger: messenger, render: render, metrics: m}
}

// Current districts of a region. Missing data is not an error
func (updater *Updater) Current(ctx context.Context, region Region) ([]District, error) {
	districts, err := updater.source.Fetch(ctx, region)
	if errors.Is(err, ErrNoData) {
		return nil, nil
	}
	return districts, err
}

// Publish a new panel and remember it
func (updater *Updater) CreatePanel(ctx context.Context, guildId, channelId string, region Region) (Panel, error) {

	districts, err := updater.Current(ctx, region)
	if err != nil {
		log.Warn().Err(err).Str("region", string(region)).Msg("Creating population panel without data")
	}
	messageId, err := updater.messenger.Publish(ctx, channelId, updater.render(region, districts))
	if err != nil {
		return Panel{}, fmt.Errorf("could not publish population panel: %w", err)
	}
	panel := Panel{GuildId: guildId, ChannelId: channelId, Region: region, MessageId: messageId}
	if err := updater.database.SavePanel(ctx, panel); err != nil {
		return Panel{}, err
	}
	log.Info().Str("guild", guildId).Str("channel", channelId).Str("region", string(region)).Msg("Created population panel")
	return panel, nil
}

// Refresh every population panel. Regions are fetched once per pass
// and a failing panel does not stop the others
func (updater *Updater) UpdatePanels(ctx context.Context) (UpdateReport, error) {

	panels, err := updater.database.ListPanels(ctx, "")
	if err != nil {
		log.Error().Err(err).Msg("Could not list population panels")
		return UpdateReport{}, err
	}

	var report UpdateReport
	fetched := make(map[Region][]District)
	for _, panel := range panels {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		recreated, err := updater.updatePanel(ctx, panel, fetched)
		updater.metrics.PanelUpdated("population", err)
		if err != nil {
			report.Failed++
			log.Error().Err(err).Str("guild", panel.GuildId).Str("channel", panel.ChannelId).Msg("Could not update population panel")
			continue
		}
		report.Updated++
		if recreated {
			report.Recreated++
		}
	}
	log.Info().Int("panels", len(panels)).Int("failed", report.Failed).Msg("Updated population panels")
	return report, nil
}

func (updater *Updater) updatePanel(ctx context.Context, panel Panel, fetched map[Region][]District) (bool, error) {

	districts, ok := fetched[panel.Region]
	if !ok {
		var err error
		districts, err = updater.Current(ctx, panel.Region)
		if err != nil {
			return false, err
		}
		fetched[panel.Region] = districts
	}

	messageId, changed, err := common.PublishOrEdit(ctx, updater.messenger, panel.ChannelId, panel.MessageId, updater.render(panel.Region, districts))
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}
	log.Warn().Str("guild", panel.GuildId).Str("old", panel.MessageId).Str("new", messageId).Msg("Population panel was gone, created a new one")
	return true, updater.database.SetPanelMessage(ctx, panel.Id, messageId)
}
