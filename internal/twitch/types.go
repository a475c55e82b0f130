package twitch

import (
	"errors"
	"time"
)

var ErrUserNotFound = errors.New("twitch user not found")
var ErrNotConfigured = errors.New("twitch credentials are not configured")

type User struct {
	Id          string `json:"id"`
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
}

// Current state of a channel
type StreamInfo struct {
	IsLive    bool
	Title     string
	Game      string
	Viewers   int
	Thumbnail string
	StartedAt time.Time
}

// A guild member that streams on Twitch
type Streamer struct {
	Id           uint64 `gorm:"primaryKey;autoIncrement"`
	GuildId      string `gorm:"not null;uniqueIndex:idx_streamer;index"`
	UserId       string `gorm:"not null;uniqueIndex:idx_streamer;index"`
	Username     string `gorm:"not null"`
	TwitchUrl    string `gorm:"not null"`
	IsLive       bool   `gorm:"not null;default:false"`
	LastNotified *time.Time
	AddedBy      string
	CreatedAt    time.Time
}

func (Streamer) TableName() string {
	return "twitch_streamers"
}
