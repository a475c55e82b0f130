// Package config loads the bot configuration.
//
// Values come from an optional TOML file, then from the environment
// (a .env file is loaded first when present). Environment variables win.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const DefaultPath = "apbeeper.toml"

// Duration decodes TOML strings such as "5m" or "24h"
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = duration
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Config struct {
	Discord    DiscordConfig    `toml:"discord"`
	Database   DatabaseConfig   `toml:"database"`
	Redis      RedisConfig      `toml:"redis"`
	Tracking   TrackingConfig   `toml:"tracking"`
	Twitch     TwitchConfig     `toml:"twitch"`
	Population PopulationConfig `toml:"population"`
	Health     HealthConfig     `toml:"health"`
	Log        LogConfig        `toml:"log"`
	// Period of the main loop, every other interval is checked this often
	MainCycle Duration `toml:"main_cycle"`
}

type DiscordConfig struct {
	Token    string `toml:"token"`
	ClientId string `toml:"client_id"`
	// Register the slash commands on this guild only, for development
	GuildId string `toml:"guild_id"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
	// PostgreSQL dsn, takes precedence over the path
	Url string `toml:"url"`
}

type RedisConfig struct {
	// Empty disables the session cache
	Url string   `toml:"url"`
	Ttl Duration `toml:"ttl"`
}

type TrackingConfig struct {
	PanelInterval   Duration `toml:"panel_interval"`
	CleanupInterval Duration `toml:"cleanup_interval"`
	StaleMaxAge     Duration `toml:"stale_max_age"`
	MatchPolicy     string   `toml:"match_policy"`
	QueueSize       int      `toml:"queue_size"`
}

type TwitchConfig struct {
	ClientId     string   `toml:"client_id"`
	ClientSecret string   `toml:"client_secret"`
	Interval     Duration `toml:"interval"`
}

type PopulationConfig struct {
	NaUrl    string   `toml:"na_url"`
	EuUrl    string   `toml:"eu_url"`
	Interval Duration `toml:"interval"`
}

type HealthConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

type LogConfig struct {
	Level string `toml:"level"`
	// Also write to this file, rotated
	File      string `toml:"file"`
	MaxSizeMB int    `toml:"max_size_mb"`
}

func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./data/apbeeper.db"},
		Redis:    RedisConfig{Ttl: Duration{30 * time.Second}},
		Tracking: TrackingConfig{
			PanelInterval:   Duration{5 * time.Minute},
			CleanupInterval: Duration{time.Hour},
			StaleMaxAge:     Duration{24 * time.Hour},
			MatchPolicy:     "permissive",
			QueueSize:       64,
		},
		Twitch:     TwitchConfig{Interval: Duration{2 * time.Minute}},
		Population: PopulationConfig{Interval: Duration{5 * time.Minute}},
		Health:     HealthConfig{Enabled: true, Port: 3000},
		Log:        LogConfig{Level: "info", MaxSizeMB: 10},
		MainCycle:  Duration{10 * time.Second},
	}
}

// Load the file at path if it exists, then apply the environment
func Load(path string) (*Config, error) {

	config := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	// Ignore a missing .env
	_ = godotenv.Load()
	if err := config.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return config, nil
}

func (config *Config) applyEnv(lookup func(string) (string, bool)) error {

	strs := map[string]*string{
		"DISCORD_TOKEN":         &config.Discord.Token,
		"CLIENT_ID":             &config.Discord.ClientId,
		"GUILD_ID":              &config.Discord.GuildId,
		"DATABASE_PATH":         &config.Database.Path,
		"DATABASE_URL":          &config.Database.Url,
		"REDIS_URL":             &config.Redis.Url,
		"TWITCH_CLIENT_ID":      &config.Twitch.ClientId,
		"TWITCH_CLIENT_SECRET":  &config.Twitch.ClientSecret,
		"APB_POPULATION_NA_URL": &config.Population.NaUrl,
		"APB_POPULATION_EU_URL": &config.Population.EuUrl,
		"LOG_LEVEL":             &config.Log.Level,
		"LOG_FILE":              &config.Log.File,
		"TRACKING_MATCH_POLICY": &config.Tracking.MatchPolicy,
	}
	for key, target := range strs {
		if value, ok := lookup(key); ok && value != "" {
			*target = value
		}
	}

	if value, ok := lookup("PORT"); ok && value != "" {
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid PORT: %w", err)
		}
		config.Health.Port = port
	}
	if value, ok := lookup("HEALTH_CHECK_ENABLED"); ok && value != "" {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid HEALTH_CHECK_ENABLED: %w", err)
		}
		config.Health.Enabled = enabled
	}
	if value, ok := lookup("STALE_SESSION_MAX_AGE"); ok && value != "" {
		if err := config.Tracking.StaleMaxAge.UnmarshalText([]byte(value)); err != nil {
			return fmt.Errorf("invalid STALE_SESSION_MAX_AGE: %w", err)
		}
	}
	return nil
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

func isPlaceholder(value string) bool {
	return strings.Contains(value, "your_") || strings.Contains(value, "_here")
}

// Check the values needed to connect to discord
func (config *Config) Validate() error {

	var errs []error
	if config.Discord.Token == "" || isPlaceholder(config.Discord.Token) {
		errs = append(errs, errors.New("DISCORD_TOKEN is missing"))
	}
	if config.Discord.ClientId == "" || isPlaceholder(config.Discord.ClientId) {
		errs = append(errs, errors.New("CLIENT_ID is missing"))
	}
	errs = append(errs, config.ValidateSettings())
	return errors.Join(errs...)
}

// Check everything but the discord credentials
func (config *Config) ValidateSettings() error {

	var errs []error
	if config.Database.Path == "" && config.Database.Url == "" {
		errs = append(errs, errors.New("database path or url is required"))
	}
	intervals := map[string]Duration{
		"main_cycle":                config.MainCycle,
		"tracking.panel_interval":   config.Tracking.PanelInterval,
		"tracking.cleanup_interval": config.Tracking.CleanupInterval,
		"tracking.stale_max_age":    config.Tracking.StaleMaxAge,
		"twitch.interval":           config.Twitch.Interval,
		"population.interval":       config.Population.Interval,
	}
	for name, interval := range intervals {
		if interval.Duration <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, interval.Duration))
		}
	}
	switch strings.ToLower(config.Tracking.MatchPolicy) {
	case "", "permissive", "strict":
	default:
		errs = append(errs, fmt.Errorf("invalid tracking.match_policy %q: must be permissive or strict", config.Tracking.MatchPolicy))
	}
	if !validLogLevels[strings.ToLower(config.Log.Level)] {
		errs = append(errs, fmt.Errorf("invalid log.level %q: must be trace, debug, info, warn, or error", config.Log.Level))
	}
	if config.Health.Enabled && (config.Health.Port <= 0 || config.Health.Port > 65535) {
		errs = append(errs, fmt.Errorf("invalid health port %d", config.Health.Port))
	}
	return errors.Join(errs...)
}

// Twitch notifications need both credentials
func (config *Config) TwitchEnabled() bool {
	return config.Twitch.ClientId != "" && config.Twitch.ClientSecret != "" &&
		!isPlaceholder(config.Twitch.ClientId) && !isPlaceholder(config.Twitch.ClientSecret)
}
