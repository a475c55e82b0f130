package bot

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"apbeeper/internal/population"
	"apbeeper/internal/tracking"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func player(name string, duration time.Duration, roles ...string) tracking.ActivePlayer {
	return tracking.ActivePlayer{Member: tracking.Member{UserId: name, DisplayName: name, Roles: roles}, Duration: duration}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "45s", formatDuration(45*time.Second))
	assert.Equal(t, "5m", formatDuration(5*time.Minute+10*time.Second))
	assert.Equal(t, "2h 5m", formatDuration(2*time.Hour+5*time.Minute))
	assert.Equal(t, "0s", formatDuration(0))
	assert.Equal(t, "1m", formatMs(60000))
}

func TestPlayersPanel(t *testing.T) {

	embed := PlayersPanel("APB: Reloaded", nil, "", "")
	assert.Equal(t, "🎮 Players Online - APB: Reloaded", embed.Title)
	assert.Equal(t, "No one is currently playing **APB: Reloaded**.", embed.Description)
	assert.Empty(t, embed.Fields)

	players := []tracking.ActivePlayer{
		player("short", time.Minute),
		player("officer", 3*time.Hour, "r1"),
		player("long", 2*time.Hour),
	}
	embed = PlayersPanel("APB: Reloaded", players, "r1", "")
	assert.Equal(t, "**3** players currently online", embed.Description)
	require.Len(t, embed.Fields, 2)
	assert.Equal(t, "👑 Clan Members (1)", embed.Fields[0].Name)
	assert.Equal(t, "• officer (3h 0m)", embed.Fields[0].Value)
	assert.Equal(t, "🌟 Community Members (2)", embed.Fields[1].Name)
	assert.Equal(t, "• long (2h 0m)\n• short (1m)", embed.Fields[1].Value)

	// Without a clan role everybody is community
	embed = PlayersPanel("APB: Reloaded", players[:1], "", "")
	assert.Equal(t, "**1** player currently online", embed.Description)
	require.Len(t, embed.Fields, 1)
	assert.Equal(t, "🌟 Community Members (1)", embed.Fields[0].Name)
}

func TestFieldTruncation(t *testing.T) {

	lines := make([]string, 200)
	for i := range lines {
		lines[i] = "• some player (1h 1m)"
	}
	value := field("Players", strings.Join(lines, "\n"), false).Value
	assert.LessOrEqual(t, len(value), maxFieldLength)
	assert.True(t, strings.HasSuffix(value, "..."))
	assert.True(t, strings.HasSuffix(strings.TrimSuffix(value, "..."), ")"))

	// No line breaks, the cut must not split a rune
	value = field("Players", strings.Repeat("é", maxFieldLength), false).Value
	assert.LessOrEqual(t, len(value), maxFieldLength)
	assert.True(t, utf8.ValidString(value))

	assert.Equal(t, "short", field("Players", "short", true).Value)
}

func TestPopulationPanel(t *testing.T) {

	embed := PopulationPanel(population.RegionNA, nil)
	assert.Equal(t, "🎮 APB Population - North America (Jericho)", embed.Title)
	assert.Contains(t, embed.Description, "Unable to fetch")

	embed = PopulationPanel(population.RegionEU, []population.District{{Name: "Financial", Population: 0}})
	assert.Contains(t, embed.Description, "offline or empty")

	districts := []population.District{
		{Name: "Waterfront", Population: 25, Region: population.RegionEU},
		{Name: "Social", Population: 0, Region: population.RegionEU},
		{Name: "Financial", Population: 40, Region: population.RegionEU},
	}
	embed = PopulationPanel(population.RegionEU, districts)
	require.Len(t, embed.Fields, 2)
	assert.Equal(t, "**65** players online", embed.Fields[0].Value)
	assert.Equal(t, "**Financial**: 40\n**Waterfront**: 25", embed.Fields[1].Value)

	embed = PopulationPanel(population.RegionBoth, districts)
	assert.Contains(t, embed.Fields[1].Value, "**Financial**: 40 [EU]")
}

func TestScanMessage(t *testing.T) {

	embed := embedOf(t, ScanMessage(tracking.ScanResult{Games: map[string]int{}}))
	assert.Equal(t, colorWarning, embed.Color)

	result := tracking.ScanResult{Scanned: 10, Found: 3, Failed: 1, Games: map[string]int{"Rocket League": 1, "APB: Reloaded": 2}}
	embed = embedOf(t, ScanMessage(result))
	assert.Contains(t, embed.Description, "✅ Scanned 10 members")
	assert.Contains(t, embed.Description, "⚠️ 1 members could not be scanned")
	assert.Contains(t, embed.Description, "• APB: Reloaded (2)\n• Rocket League (1)")
}
