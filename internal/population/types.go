package population

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Returned when no population data is available for a region
var ErrNoData = errors.New("no population data available")

type Region string

const (
	RegionNA   Region = "NA"
	RegionEU   Region = "EU"
	RegionBoth Region = "BOTH"
)

func ParseRegion(s string) (Region, error) {
	switch Region(strings.ToUpper(strings.TrimSpace(s))) {
	case RegionNA:
		return RegionNA, nil
	case RegionEU:
		return RegionEU, nil
	case RegionBoth, "":
		return RegionBoth, nil
	default:
		return "", fmt.Errorf("unknown region %q", s)
	}
}

// Regions a panel of the region shows
func (region Region) Servers() []Region {
	if region == RegionBoth {
		return []Region{RegionNA, RegionEU}
	}
	return []Region{region}
}

type District struct {
	Name       string `json:"name"`
	Population int    `json:"population"`
	Region     Region `json:"region,omitempty"`
}

func Total(districts []District) int {
	total := 0
	for _, district := range districts {
		total += district.Population
	}
	return total
}

// An auto updating population message
type Panel struct {
	Id        uint64 `gorm:"primaryKey;autoIncrement"`
	GuildId   string `gorm:"not null;uniqueIndex:idx_apb_panel;index"`
	ChannelId string `gorm:"not null;uniqueIndex:idx_apb_panel"`
	Region    Region `gorm:"not null;uniqueIndex:idx_apb_panel"`
	MessageId string `gorm:"not null"`
	CreatedAt time.Time
}

func (Panel) TableName() string {
	return "apb_panels"
}
