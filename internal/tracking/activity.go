package tracking

// Kind of an activity in a presence. Only Playing activities
// are ever matched against tracked games
type ActivityType int

const (
	ActivityPlaying ActivityType = iota
	ActivityStreaming
	ActivityListening
	ActivityCustom
	ActivityOther
)

func (t ActivityType) String() string {
	switch t {
	case ActivityPlaying:
		return "playing"
	case ActivityStreaming:
		return "streaming"
	case ActivityListening:
		return "listening"
	case ActivityCustom:
		return "custom"
	default:
		return "other"
	}
}

type Activity struct {
	Name string
	Type ActivityType
}

// Names of the Playing activities, in order and without duplicates
func PlayingNames(activities []Activity) []string {
	names := make([]string, 0, len(activities))
	seen := make(map[string]struct{}, len(activities))
	for _, activity := range activities {
		if activity.Type != ActivityPlaying || activity.Name == "" {
			continue
		}
		if _, ok := seen[activity.Name]; ok {
			continue
		}
		seen[activity.Name] = struct{}{}
		names = append(names, activity.Name)
	}
	return names
}
