package tracking

import (
	"fmt"
	"strings"
	"unicode"
)

// Decides whether a presence activity name is the tracked game
type MatchFunc func(activityName, trackedGameName string) bool

type MatchPolicy string

const (
	// Exact, substring and alias-substring rules. Accepts false positives
	MatchPermissive MatchPolicy = "permissive"
	// Only exact normalized names or exact aliases
	MatchStrict MatchPolicy = "strict"
)

func ParseMatchPolicy(s string) (MatchPolicy, error) {
	switch MatchPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", MatchPermissive:
		return MatchPermissive, nil
	case MatchStrict:
		return MatchStrict, nil
	default:
		return "", fmt.Errorf("unknown match policy %q", s)
	}
}

func (policy MatchPolicy) Func() MatchFunc {
	if policy == MatchStrict {
		return MatchesStrict
	}
	return Matches
}

// Common abbreviations, listed once per pair and looked up both ways
var aliasPairs = [][2]string{
	{"apb", "apb reloaded"},
	{"apb", "apb all points bulletin"},
	{"apb", "all points bulletin"},
	{"apb reloaded", "all points bulletin"},
	{"counter-strike", "cs"},
	{"counter-strike", "csgo"},
	{"counter-strike", "counter-strike global offensive"},
	{"cs", "csgo"},
	{"cs", "cs go"},
	{"league of legends", "lol"},
	{"league of legends", "league"},
	{"lol", "league"},
	{"world of warcraft", "wow"},
	{"call of duty", "cod"},
	{"call of duty", "warzone"},
	{"cod", "warzone"},
	{"grand theft auto", "gta"},
	{"grand theft auto", "gta v"},
	{"grand theft auto", "gta 5"},
	{"gta", "gta v"},
	{"gta", "gta 5"},
	{"valorant", "val"},
}

var aliases = buildAliases(aliasPairs)

func buildAliases(pairs [][2]string) map[string][]string {
	table := make(map[string][]string)
	add := func(from, to string) {
		for _, existing := range table[from] {
			if existing == to {
				return
			}
		}
		table[from] = append(table[from], to)
	}
	for _, pair := range pairs {
		a, b := Normalize(pair[0]), Normalize(pair[1])
		add(a, b)
		add(b, a)
	}
	return table
}

// Lowercase, trim, keep only letters, digits and whitespace
// and collapse whitespace runs into one space
func Normalize(name string) string {
	var builder strings.Builder
	builder.Grow(len(name))
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			builder.WriteRune(r)
		case unicode.IsSpace(r):
			builder.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(builder.String()), " ")
}

// Permissive game name equality: exact, substring either way, or an alias
// of either side found as a substring of the other
func Matches(activityName, trackedGameName string) bool {

	activity := Normalize(activityName)
	tracked := Normalize(trackedGameName)
	if activity == "" || tracked == "" {
		return false
	}

	// Exact match
	if activity == tracked {
		return true
	}

	// One contains the other
	if strings.Contains(activity, tracked) || strings.Contains(tracked, activity) {
		return true
	}

	// Aliases
	return aliasContained(aliases[activity], tracked) || aliasContained(aliases[tracked], activity)
}

func aliasContained(variations []string, other string) bool {
	for _, variation := range variations {
		if strings.Contains(other, variation) || strings.Contains(variation, other) {
			return true
		}
	}
	return false
}

// Strict game name equality: the normalized names are equal,
// or one is listed as an alias of the other
func MatchesStrict(activityName, trackedGameName string) bool {

	activity := Normalize(activityName)
	tracked := Normalize(trackedGameName)
	if activity == "" || tracked == "" {
		return false
	}
	if activity == tracked {
		return true
	}
	for _, variation := range aliases[tracked] {
		if variation == activity {
			return true
		}
	}
	return false
}

// Whether any of the names is the tracked game
func AnyMatches(match MatchFunc, names []string, trackedGameName string) bool {
	for _, name := range names {
		if match(name, trackedGameName) {
			return true
		}
	}
	return false
}

// Key sessions are stored under for a tracked game name
func GameKey(gameName string) string {
	return strings.ToLower(strings.TrimSpace(gameName))
}
