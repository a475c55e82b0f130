package bot

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"apbeeper/internal/common"
	"apbeeper/internal/population"
	"apbeeper/internal/tracking"
	"apbeeper/internal/twitch"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"
)

type fakePlatform struct {
	mu       sync.Mutex
	members  map[string]tracking.Member
	roles    map[string]string
	bots     map[string]bool
	denied   map[string]bool
	messages map[string]*discordgo.MessageEmbed
	next     int
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		members:  map[string]tracking.Member{},
		roles:    map[string]string{},
		bots:     map[string]bool{},
		denied:   map[string]bool{},
		messages: map[string]*discordgo.MessageEmbed{},
	}
}

func (p *fakePlatform) addMember(member tracking.Member) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.members[member.UserId] = member
}

func (p *fakePlatform) ListMembers(ctx context.Context, guildId string) ([]tracking.Member, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	members := make([]tracking.Member, 0, len(p.members))
	for _, member := range p.members {
		members = append(members, member)
	}
	return members, nil
}

func (p *fakePlatform) ResolveMember(ctx context.Context, guildId, userId string) (tracking.Member, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	member, ok := p.members[userId]
	if !ok {
		return tracking.Member{}, tracking.ErrMemberNotFound
	}
	return member, nil
}

func (p *fakePlatform) Publish(ctx context.Context, channelId string, embed *discordgo.MessageEmbed) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	id := fmt.Sprintf("m%d", p.next)
	p.messages[id] = embed
	return id, nil
}

func (p *fakePlatform) Edit(ctx context.Context, channelId string, messageId string, embed *discordgo.MessageEmbed) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.messages[messageId]; !ok {
		return common.ErrMessageNotFound
	}
	p.messages[messageId] = embed
	return nil
}

func (p *fakePlatform) published() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

func (p *fakePlatform) roleName(guildId, roleId string) string {
	return p.roles[roleId]
}

func (p *fakePlatform) guildName(guildId string) string {
	return "Test Server"
}

func (p *fakePlatform) isBot(guildId, userId string) bool {
	return p.bots[userId]
}

func (p *fakePlatform) canSend(channelId string) bool {
	return !p.denied[channelId]
}

// Twitch logins that exist
type fakeChannels map[string]bool

func (f fakeChannels) ValidateChannel(ctx context.Context, channelUrl string) (bool, error) {
	return f[twitch.ExtractUsername(channelUrl)], nil
}

type fakeSource map[population.Region][]population.District

func (f fakeSource) Fetch(ctx context.Context, region population.Region) ([]population.District, error) {
	districts, ok := f[region]
	if !ok {
		return nil, population.ErrNoData
	}
	return districts, nil
}

type testBot struct {
	*Bot
	platform  *fakePlatform
	settings  *DatabaseBot
	tracking  *tracking.DatabaseTracking
	streamers *twitch.DatabaseTwitch
	panels    *population.DatabasePopulation
}

func newTestBot(t *testing.T) testBot {

	database, err := common.OpenDatabase(common.DatabaseOptions{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	games, err := tracking.NewDatabaseTracking(database, nil)
	require.NoError(t, err)
	settings, err := NewDatabaseBot(database)
	require.NoError(t, err)
	streamers, err := twitch.NewDatabaseTwitch(database)
	require.NoError(t, err)
	panels, err := population.NewDatabasePopulation(database)
	require.NoError(t, err)

	platform := newFakePlatform()
	options := Options{
		MainCycle:          time.Second,
		PanelInterval:      time.Minute,
		CleanupInterval:    time.Hour,
		StaleMaxAge:        24 * time.Hour,
		TwitchInterval:     time.Minute,
		PopulationInterval: time.Minute,
		QueueSize:          8,
		Policy:             tracking.MatchPermissive,
	}
	components := Components{
		Tracking:   games,
		Settings:   settings,
		Streamers:  streamers,
		Panels:     panels,
		Population: fakeSource{population.RegionEU: {{Name: "Financial", Population: 40}, {Name: "Waterfront", Population: 25}}},
	}
	bot := newBot(options, components, platform, NewPresences())
	bot.channels = fakeChannels{"streamer": true}
	t.Cleanup(bot.queue.Close)

	return testBot{Bot: bot, platform: platform, settings: settings, tracking: games, streamers: streamers, panels: panels}
}

func embedOf(t *testing.T, response Response) *discordgo.MessageEmbed {
	embed, ok := response.(ResponseEmbed)
	require.True(t, ok, "response is %T", response)
	return embed.MessageEmbed
}

func playing(name string) []tracking.Activity {
	return []tracking.Activity{{Name: name, Type: tracking.ActivityPlaying}}
}
