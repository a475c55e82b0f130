package twitch

import (
	"context"
	"time"

	"apbeeper/internal/common"
	"apbeeper/internal/metrics"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

// Live notifications are forgotten after this long
const staleNotification = 30 * 24 * time.Hour

// Where a guild wants its notifications
type NotificationSettings struct {
	Enabled   bool
	ChannelId string
}

type SettingsSource interface {
	NotificationSettings(ctx context.Context, guildId string) (NotificationSettings, error)
}

type StreamSource interface {
	GetStream(ctx context.Context, channel string) (StreamInfo, error)
}

type RenderFunc func(streamer Streamer, stream StreamInfo) *discordgo.MessageEmbed

// Outcome of one pass over the streamers
type CheckReport struct {
	Checked  int
	Notified int
	Skipped  int
	Failed   int
}

type Notifier struct {
	database  *DatabaseTwitch
	streams   StreamSource
	settings  SettingsSource
	messenger common.Messenger
	render    RenderFunc
	metrics   *metrics.Metrics
	// Pause between two streamers
	delay time.Duration
	now   func() time.Time
}

func NewNotifier(database *DatabaseTwitch, streams StreamSource, settings SettingsSource, messenger common.Messenger, render RenderFunc, m *metrics.Metrics) *Notifier {
	return &Notifier{
		database:  database,
		streams:   streams,
		settings:  settings,
		messenger: messenger,
		render:    render,
		metrics:   m,
		delay:     500 * time.Millisecond,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Check every registered streamer and announce the ones that just went live
func (notifier *Notifier) CheckStreams(ctx context.Context) (CheckReport, error) {

	streamers, err := notifier.database.ListStreamers(ctx, "")
	if err != nil {
		log.Error().Err(err).Msg("Could not list twitch streamers")
		return CheckReport{}, err
	}

	var report CheckReport
	for i, streamer := range streamers {
		if i > 0 && notifier.delay > 0 {
			select {
			case <-ctx.Done():
				return report, ctx.Err()
			case <-time.After(notifier.delay):
			}
		}
		result := notifier.checkStreamer(ctx, streamer)
		notifier.metrics.StreamChecked(result)
		switch result {
		case "notified":
			report.Notified++
			report.Checked++
		case "skipped":
			report.Skipped++
		case "error":
			report.Failed++
		default:
			report.Checked++
		}
	}

	// Housekeeping
	if count, err := notifier.database.ResetStaleLive(ctx, staleNotification); err != nil {
		log.Warn().Err(err).Msg("Could not reset old live statuses")
	} else if count > 0 {
		log.Info().Int64("streamers", count).Msg("Reset old live statuses")
	}

	log.Debug().Int("streamers", len(streamers)).Int("notified", report.Notified).Msg("Checked twitch streamers")
	return report, nil
}

func (notifier *Notifier) checkStreamer(ctx context.Context, streamer Streamer) string {

	logger := log.With().Str("guild", streamer.GuildId).Str("user", streamer.UserId).Str("twitch", streamer.TwitchUrl).Logger()

	settings, err := notifier.settings.NotificationSettings(ctx, streamer.GuildId)
	if err != nil {
		logger.Error().Err(err).Msg("Could not get notification settings")
		return "error"
	}
	if !settings.Enabled {
		return "skipped"
	}

	stream, err := notifier.streams.GetStream(ctx, streamer.TwitchUrl)
	if err != nil {
		logger.Error().Err(err).Msg("Could not get stream")
		return "error"
	}

	justLive := stream.IsLive && !streamer.IsLive
	var notified *time.Time
	if justLive {
		now := notifier.now()
		notified = &now
	}
	if err := notifier.database.SetLiveStatus(ctx, streamer.GuildId, streamer.UserId, stream.IsLive, notified); err != nil {
		logger.Error().Err(err).Msg("Could not save live status")
		return "error"
	}
	if !justLive {
		if stream.IsLive {
			return "live"
		}
		return "offline"
	}

	if settings.ChannelId == "" {
		logger.Warn().Msg("No channel for stream notifications")
		return "skipped"
	}
	if _, err := notifier.messenger.Publish(ctx, settings.ChannelId, notifier.render(streamer, stream)); err != nil {
		logger.Error().Err(err).Msg("Could not send stream notification")
		return "error"
	}
	logger.Info().Str("title", stream.Title).Msg("Sent stream notification")
	return "notified"
}
