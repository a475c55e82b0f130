package cli

import (
	"fmt"

	"apbeeper/internal/bot"
	"apbeeper/internal/common"
	"apbeeper/internal/config"
	"apbeeper/internal/population"
	"apbeeper/internal/tracking"
	"apbeeper/internal/twitch"
)

// Every table the bot owns, on one database
type stores struct {
	database  common.Database
	tracking  *tracking.DatabaseTracking
	settings  *bot.DatabaseBot
	streamers *twitch.DatabaseTwitch
	panels    *population.DatabasePopulation
}

func openStores(config *config.Config) (*stores, error) {

	database, err := common.OpenDatabase(common.DatabaseOptions{Path: config.Database.Path, Url: config.Database.Url})
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}
	s := &stores{database: database}

	if s.tracking, err = tracking.NewDatabaseTracking(database, nil); err != nil {
		database.Close()
		return nil, err
	}
	if s.settings, err = bot.NewDatabaseBot(database); err != nil {
		database.Close()
		return nil, err
	}
	if s.streamers, err = twitch.NewDatabaseTwitch(database); err != nil {
		database.Close()
		return nil, err
	}
	if s.panels, err = population.NewDatabasePopulation(database); err != nil {
		database.Close()
		return nil, err
	}
	return s, nil
}

func (s *stores) Close() error {
	return s.database.Close()
}
