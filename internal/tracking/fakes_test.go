package tracking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"apbeeper/internal/common"

	"github.com/bwmarrin/discordgo"
)

// In memory session store counting the calls it receives
type fakeStore struct {
	mu       sync.Mutex
	clock    common.Clock
	sessions []PlaySession
	starts   int
	ends     int
	failWith error
}

func newFakeStore(clock common.Clock) *fakeStore {
	return &fakeStore{clock: clock}
}

func (s *fakeStore) StartSession(ctx context.Context, userId, guildId, gameName string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts++
	if s.failWith != nil {
		return 0, s.failWith
	}
	s.endLocked(userId, guildId, gameName)
	session := PlaySession{
		Id:        uint64(len(s.sessions) + 1),
		UserId:    userId,
		GuildId:   guildId,
		GameKey:   GameKey(gameName),
		GameName:  gameName,
		StartedAt: s.clock.Now(),
		IsActive:  true,
	}
	s.sessions = append(s.sessions, session)
	return session.Id, nil
}

func (s *fakeStore) EndSession(ctx context.Context, userId, guildId, gameName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ends++
	if s.failWith != nil {
		return false, s.failWith
	}
	return s.endLocked(userId, guildId, gameName), nil
}

func (s *fakeStore) endLocked(userId, guildId, gameName string) bool {
	ended := false
	now := s.clock.Now()
	for i := range s.sessions {
		session := &s.sessions[i]
		if session.IsActive && session.UserId == userId && session.GuildId == guildId && session.GameKey == GameKey(gameName) {
			session.IsActive = false
			session.EndedAt = &now
			session.DurationMs = now.Sub(session.StartedAt).Milliseconds()
			ended = true
		}
	}
	return ended
}

func (s *fakeStore) ListActiveSessions(ctx context.Context, guildId, gameName string) ([]PlaySession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	var active []PlaySession
	for _, session := range s.sessions {
		if session.IsActive && session.GuildId == guildId && session.GameKey == GameKey(gameName) {
			active = append(active, session)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].StartedAt.After(active[j].StartedAt) })
	return active, nil
}

func (s *fakeStore) CleanupStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	return 0, nil
}

func (s *fakeStore) SessionStats(ctx context.Context, guildId, gameName string) (SessionStats, error) {
	return SessionStats{}, nil
}

func (s *fakeStore) calls() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts, s.ends
}

func (s *fakeStore) resetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts, s.ends = 0, 0
}

type fakeRegistry struct {
	mu     sync.Mutex
	games  []TrackedGame
	panels map[uint64]string
}

func newFakeRegistry(games ...TrackedGame) *fakeRegistry {
	for i := range games {
		if games[i].Id == 0 {
			games[i].Id = uint64(i + 1)
		}
	}
	return &fakeRegistry{games: games, panels: make(map[uint64]string)}
}

func (r *fakeRegistry) ListTrackedGames(ctx context.Context) ([]TrackedGame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	games := make([]TrackedGame, len(r.games))
	copy(games, r.games)
	return games, nil
}

func (r *fakeRegistry) TrackedGamesForGuild(ctx context.Context, guildId string) ([]TrackedGame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var games []TrackedGame
	for _, game := range r.games {
		if game.GuildId == guildId {
			games = append(games, game)
		}
	}
	return games, nil
}

func (r *fakeRegistry) SetPanelMessage(ctx context.Context, trackedGameId uint64, messageId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.panels[trackedGameId] = messageId
	for i := range r.games {
		if r.games[i].Id == trackedGameId {
			r.games[i].PanelMessageId = messageId
		}
	}
	return nil
}

type fakeMembers struct {
	members  map[string]Member
	failing  map[string]error
	listFail error
}

func newFakeMembers(members ...Member) *fakeMembers {
	fake := &fakeMembers{members: make(map[string]Member), failing: make(map[string]error)}
	for _, member := range members {
		fake.members[member.UserId] = member
	}
	return fake
}

func (m *fakeMembers) ListMembers(ctx context.Context, guildId string) ([]Member, error) {
	if m.listFail != nil {
		return nil, m.listFail
	}
	ids := make([]string, 0, len(m.members))
	for id := range m.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	members := make([]Member, 0, len(ids))
	for _, id := range ids {
		members = append(members, m.members[id])
	}
	return members, nil
}

func (m *fakeMembers) ResolveMember(ctx context.Context, guildId, userId string) (Member, error) {
	if err, ok := m.failing[userId]; ok {
		return Member{}, err
	}
	member, ok := m.members[userId]
	if !ok {
		return Member{}, ErrMemberNotFound
	}
	return member, nil
}

// Messenger keeping the published panels in memory
type fakeMessenger struct {
	mu       sync.Mutex
	messages map[string]*discordgo.MessageEmbed
	next     int
	failOn   map[string]error
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{messages: make(map[string]*discordgo.MessageEmbed), failOn: make(map[string]error)}
}

func (m *fakeMessenger) Publish(ctx context.Context, channelId string, embed *discordgo.MessageEmbed) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failOn[channelId]; ok {
		return "", err
	}
	m.next++
	id := fmt.Sprintf("message-%d", m.next)
	m.messages[id] = embed
	return id, nil
}

func (m *fakeMessenger) Edit(ctx context.Context, channelId string, messageId string, embed *discordgo.MessageEmbed) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failOn[channelId]; ok {
		return err
	}
	if _, ok := m.messages[messageId]; !ok {
		return common.ErrMessageNotFound
	}
	m.messages[messageId] = embed
	return nil
}

func (m *fakeMessenger) delete(messageId string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.messages, messageId)
}

var errStorage = errors.New("storage unavailable")

func renderTitles(ctx context.Context, game TrackedGame, players []ActivePlayer) (*discordgo.MessageEmbed, error) {
	embed := &discordgo.MessageEmbed{Title: game.GameName}
	for _, player := range players {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: player.Member.DisplayName})
	}
	return embed, nil
}

var startTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func playing(names ...string) []Activity {
	activities := make([]Activity, 0, len(names))
	for _, name := range names {
		activities = append(activities, Activity{Name: name, Type: ActivityPlaying})
	}
	return activities
}
