package tracking

import (
	"context"
	"errors"
	"time"
)

// Returned by a MemberSource when the user is not part of the guild anymore
var ErrMemberNotFound = errors.New("member not found")

// A game a guild wants a players panel for
type TrackedGame struct {
	Id             uint64 `gorm:"primaryKey;autoIncrement"`
	GuildId        string `gorm:"not null;uniqueIndex:idx_tracked_game_key"`
	ChannelId      string `gorm:"not null;uniqueIndex:idx_tracked_game_key"`
	GameKey        string `gorm:"not null;uniqueIndex:idx_tracked_game_key"`
	GameName       string `gorm:"not null"`
	PanelMessageId string
	CreatedAt      time.Time
}

// One continuous interval during which a user was playing a tracked game
type PlaySession struct {
	Id         uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserId     string     `gorm:"not null;index:idx_session_key" json:"user_id"`
	GuildId    string     `gorm:"not null;index:idx_session_key;index:idx_session_game" json:"guild_id"`
	GameKey    string     `gorm:"not null;index:idx_session_key;index:idx_session_game" json:"game_key"`
	GameName   string     `gorm:"not null" json:"game_name"`
	StartedAt  time.Time  `gorm:"not null;index" json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	DurationMs int64      `gorm:"not null;default:0" json:"duration_ms"`
	IsActive   bool       `gorm:"not null;index" json:"is_active"`
}

type SessionStats struct {
	TotalPlayers     int64
	LongestSessionMs int64
	AverageSessionMs int64
	TotalPlaytimeMs  int64
}

// A guild member as seen by the platform
type Member struct {
	UserId      string
	DisplayName string
	Activities  []Activity
	Roles       []string
	Bot         bool
}

// A presence update delivered by the platform
type PresenceChange struct {
	UserId  string
	GuildId string
	Old     []Activity
	New     []Activity
}

// A player shown in a panel
type ActivePlayer struct {
	Member    Member
	StartedAt time.Time
	Duration  time.Duration
}

// Durable table of play sessions
type SessionStore interface {
	StartSession(ctx context.Context, userId, guildId, gameName string) (uint64, error)
	EndSession(ctx context.Context, userId, guildId, gameName string) (bool, error)
	ListActiveSessions(ctx context.Context, guildId, gameName string) ([]PlaySession, error)
	CleanupStale(ctx context.Context, maxAge time.Duration) (int64, error)
	SessionStats(ctx context.Context, guildId, gameName string) (SessionStats, error)
}

// Read access to the tracked games, plus the panel message id the
// reconciliation loop persists when it has to recreate a panel
type GameRegistry interface {
	ListTrackedGames(ctx context.Context) ([]TrackedGame, error)
	TrackedGamesForGuild(ctx context.Context, guildId string) ([]TrackedGame, error)
	SetPanelMessage(ctx context.Context, trackedGameId uint64, messageId string) error
}

// Membership and presence lookups on the platform
type MemberSource interface {
	ListMembers(ctx context.Context, guildId string) ([]Member, error)
	ResolveMember(ctx context.Context, guildId, userId string) (Member, error)
}
