package bot

import (
	"sync"

	"apbeeper/internal/tracking"

	"github.com/bwmarrin/discordgo"
)

// Last presence seen for every member. The discordgo state is
// updated before the handlers run, so it cannot provide the old
// presence of an update
type Presences struct {
	mu         sync.RWMutex
	activities map[string]map[string][]tracking.Activity
}

func NewPresences() *Presences {
	return &Presences{activities: make(map[string]map[string][]tracking.Activity)}
}

// Store the new activities of a member and return the previous ones
func (p *Presences) Swap(guildId, userId string, activities []tracking.Activity) []tracking.Activity {
	p.mu.Lock()
	defer p.mu.Unlock()
	guild, ok := p.activities[guildId]
	if !ok {
		guild = make(map[string][]tracking.Activity)
		p.activities[guildId] = guild
	}
	old := guild[userId]
	if len(activities) == 0 {
		delete(guild, userId)
	} else {
		guild[userId] = activities
	}
	return old
}

func (p *Presences) Get(guildId, userId string) []tracking.Activity {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.activities[guildId][userId]
}

// Replace what is known of a guild with the presences of a guild create
func (p *Presences) Seed(guildId string, presences []*discordgo.Presence) {
	guild := make(map[string][]tracking.Activity, len(presences))
	for _, presence := range presences {
		if presence == nil || presence.User == nil {
			continue
		}
		if activities := convertActivities(presence.Activities); len(activities) > 0 {
			guild[presence.User.ID] = activities
		}
	}
	p.mu.Lock()
	p.activities[guildId] = guild
	p.mu.Unlock()
}

func (p *Presences) Forget(guildId string) {
	p.mu.Lock()
	delete(p.activities, guildId)
	p.mu.Unlock()
}

func convertActivityType(t discordgo.ActivityType) tracking.ActivityType {
	switch t {
	case discordgo.ActivityTypeGame:
		return tracking.ActivityPlaying
	case discordgo.ActivityTypeStreaming:
		return tracking.ActivityStreaming
	case discordgo.ActivityTypeListening:
		return tracking.ActivityListening
	case discordgo.ActivityTypeCustom:
		return tracking.ActivityCustom
	default:
		return tracking.ActivityOther
	}
}

func convertActivities(activities []*discordgo.Activity) []tracking.Activity {
	converted := make([]tracking.Activity, 0, len(activities))
	for _, activity := range activities {
		if activity == nil {
			continue
		}
		converted = append(converted, tracking.Activity{Name: activity.Name, Type: convertActivityType(activity.Type)})
	}
	return converted
}
