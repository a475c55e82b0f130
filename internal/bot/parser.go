package bot

import (
	"fmt"
	"strings"

	"apbeeper/internal/population"
	"apbeeper/internal/twitch"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

const (
	COMMAND_TRACKGAME_ADD = iota
	COMMAND_TRACKGAME_REMOVE
	COMMAND_TRACKGAME_LIST
	COMMAND_PLAYERS
	COMMAND_STATS
	COMMAND_FORCESCAN
	COMMAND_DEBUG
	COMMAND_SETGAME
	COMMAND_SETCLANGROUP
	COMMAND_SETCHANNEL
	COMMAND_APBPOP
	COMMAND_TWITCH_ADD
	COMMAND_TWITCH_REMOVE
	COMMAND_TWITCH_LIST
	COMMAND_TWITCHADMIN_ENABLE
	COMMAND_TWITCHADMIN_DISABLE
	COMMAND_TWITCHADMIN_ADD
	COMMAND_TWITCHADMIN_REMOVE
	COMMAND_TWITCHADMIN_SETCHANNEL
	COMMAND_TEST
	COMMAND_HELP
)

const (
	PARSEID_OK = iota
	PARSEID_COMMAND_NOT_RECOGNISED
	PARSEID_NO_SUBCOMMAND
	PARSEID_NO_INPUT
	PARSEID_NOT_A_REGION
	PARSEID_NOT_A_TWITCH_URL
)

var errorMessages map[int]string = map[int]string{
	PARSEID_COMMAND_NOT_RECOGNISED: "Command `%s` not recognised",
	PARSEID_NO_SUBCOMMAND:          "Command `%s` requires a subcommand",
	PARSEID_NO_INPUT:               "Command `%s` requires the option `%s`",
	PARSEID_NOT_A_REGION:           "`%s` is not a region, use NA, EU or BOTH",
	PARSEID_NOT_A_TWITCH_URL:       "Please provide a valid Twitch URL (e.g., `https://twitch.tv/username` or just `username`).",
}

// Replies of these commands are only shown to the caller
var ephemeralCommands = map[int]bool{
	COMMAND_FORCESCAN:     true,
	COMMAND_DEBUG:         true,
	COMMAND_TWITCH_ADD:    true,
	COMMAND_TWITCH_REMOVE: true,
}

// Permission the caller needs on top of the command defaults
var adminCommands = map[int]int64{
	COMMAND_TRACKGAME_ADD:          discordgo.PermissionManageServer,
	COMMAND_TRACKGAME_REMOVE:       discordgo.PermissionManageServer,
	COMMAND_FORCESCAN:              discordgo.PermissionManageChannels,
	COMMAND_DEBUG:                  discordgo.PermissionManageChannels,
	COMMAND_SETGAME:                discordgo.PermissionManageServer,
	COMMAND_SETCLANGROUP:           discordgo.PermissionManageServer,
	COMMAND_SETCHANNEL:             discordgo.PermissionManageServer,
	COMMAND_TWITCHADMIN_ENABLE:     discordgo.PermissionManageServer,
	COMMAND_TWITCHADMIN_DISABLE:    discordgo.PermissionManageServer,
	COMMAND_TWITCHADMIN_ADD:        discordgo.PermissionManageServer,
	COMMAND_TWITCHADMIN_REMOVE:     discordgo.PermissionManageServer,
	COMMAND_TWITCHADMIN_SETCHANNEL: discordgo.PermissionManageServer,
}

type ParseResult struct {
	command      int
	parseid      int
	errorMessage string
	arguments    interface{}
}

// Arguments of the trackgame commands
type GameArguments struct {
	Game      string
	ChannelId string
}

// Arguments of setchannel
type PanelArguments struct {
	ChannelId string
	Region    population.Region
}

// Arguments of the twitch registration commands. The user is
// empty when the caller registers their own stream
type StreamArguments struct {
	UserId string
	Url    string
}

// Values of the options of a command. User, role and channel
// options hold the id of the entity
func optionValues(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]string {
	values := make(map[string]string, len(options))
	for _, option := range options {
		if value, ok := option.Value.(string); ok {
			values[option.Name] = strings.TrimSpace(value)
		}
	}
	return values
}

// Name and options of the subcommand, if the first option is one
func subcommand(options []*discordgo.ApplicationCommandInteractionDataOption) (string, []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(options) == 0 || options[0].Type != discordgo.ApplicationCommandOptionSubCommand {
		return "", options
	}
	return options[0].Name, options[0].Options
}

func Parse(data discordgo.ApplicationCommandInteractionData) ParseResult {

	notRecognised := func(commandString string) ParseResult {
		parseid := PARSEID_COMMAND_NOT_RECOGNISED
		return ParseResult{parseid: parseid, errorMessage: fmt.Sprintf(errorMessages[parseid], commandString)}
	}
	noInput := func(command int, commandString string, option string) ParseResult {
		parseid := PARSEID_NO_INPUT
		return ParseResult{command: command, parseid: parseid, errorMessage: fmt.Sprintf(errorMessages[parseid], commandString, option)}
	}
	ok := func(command int, arguments interface{}) ParseResult {
		return ParseResult{command: command, parseid: PARSEID_OK, arguments: arguments}
	}

	commandString := data.Name
	sub, options := subcommand(data.Options)
	values := optionValues(options)
	if sub != "" {
		commandString += " " + sub
	}
	log.Debug().Str("command", commandString).Interface("options", values).Msg("Parsing command")

	switch data.Name {
	case "trackgame":
		switch sub {
		case "add":
			// /trackgame add <game> <channel>
			command := COMMAND_TRACKGAME_ADD
			if values["game"] == "" {
				return noInput(command, commandString, "game")
			}
			if values["channel"] == "" {
				return noInput(command, commandString, "channel")
			}
			return ok(command, GameArguments{Game: values["game"], ChannelId: values["channel"]})
		case "remove":
			// /trackgame remove <game>
			command := COMMAND_TRACKGAME_REMOVE
			if values["game"] == "" {
				return noInput(command, commandString, "game")
			}
			return ok(command, GameArguments{Game: values["game"]})
		case "list":
			return ok(COMMAND_TRACKGAME_LIST, nil)
		}
	case "players":
		// /players [game]
		return ok(COMMAND_PLAYERS, values["game"])
	case "stats":
		// /stats [game]
		return ok(COMMAND_STATS, values["game"])
	case "forcescan":
		return ok(COMMAND_FORCESCAN, nil)
	case "debug":
		// /debug [user]
		return ok(COMMAND_DEBUG, values["user"])
	case "setgame":
		// /setgame <game>
		command := COMMAND_SETGAME
		if values["game"] == "" {
			return noInput(command, commandString, "game")
		}
		return ok(command, values["game"])
	case "setclangroup":
		// /setclangroup <role>
		command := COMMAND_SETCLANGROUP
		if values["role"] == "" {
			return noInput(command, commandString, "role")
		}
		return ok(command, values["role"])
	case "setchannel":
		// /setchannel <channel> [region]
		command := COMMAND_SETCHANNEL
		if values["channel"] == "" {
			return noInput(command, commandString, "channel")
		}
		region, err := population.ParseRegion(values["region"])
		if err != nil {
			parseid := PARSEID_NOT_A_REGION
			return ParseResult{command: command, parseid: parseid, errorMessage: fmt.Sprintf(errorMessages[parseid], values["region"])}
		}
		return ok(command, PanelArguments{ChannelId: values["channel"], Region: region})
	case "apbpop":
		// /apbpop [region]
		command := COMMAND_APBPOP
		region, err := population.ParseRegion(values["region"])
		if err != nil {
			parseid := PARSEID_NOT_A_REGION
			return ParseResult{command: command, parseid: parseid, errorMessage: fmt.Sprintf(errorMessages[parseid], values["region"])}
		}
		return ok(command, region)
	case "twitch":
		switch sub {
		case "add":
			// /twitch add <url>
			return parseStream(COMMAND_TWITCH_ADD, commandString, "", values["url"])
		case "remove":
			return ok(COMMAND_TWITCH_REMOVE, nil)
		case "list":
			return ok(COMMAND_TWITCH_LIST, nil)
		}
	case "twitchadmin":
		switch sub {
		case "enable":
			return ok(COMMAND_TWITCHADMIN_ENABLE, nil)
		case "disable":
			return ok(COMMAND_TWITCHADMIN_DISABLE, nil)
		case "add":
			// /twitchadmin add <user> <url>
			command := COMMAND_TWITCHADMIN_ADD
			if values["user"] == "" {
				return noInput(command, commandString, "user")
			}
			return parseStream(command, commandString, values["user"], values["url"])
		case "remove":
			// /twitchadmin remove <user>
			command := COMMAND_TWITCHADMIN_REMOVE
			if values["user"] == "" {
				return noInput(command, commandString, "user")
			}
			return ok(command, values["user"])
		case "setchannel":
			// /twitchadmin setchannel <channel>
			command := COMMAND_TWITCHADMIN_SETCHANNEL
			if values["channel"] == "" {
				return noInput(command, commandString, "channel")
			}
			return ok(command, values["channel"])
		}
	case "test":
		return ok(COMMAND_TEST, nil)
	case "help":
		return ok(COMMAND_HELP, nil)
	default:
		return notRecognised(commandString)
	}

	// A command with subcommands, without a known one
	if sub == "" {
		parseid := PARSEID_NO_SUBCOMMAND
		return ParseResult{parseid: parseid, errorMessage: fmt.Sprintf(errorMessages[parseid], data.Name)}
	}
	return notRecognised(commandString)
}

func parseStream(command int, commandString string, userId string, url string) ParseResult {

	if url == "" {
		parseid := PARSEID_NO_INPUT
		return ParseResult{command: command, parseid: parseid, errorMessage: fmt.Sprintf(errorMessages[parseid], commandString, "url")}
	}
	if !twitch.IsValidURL(url) {
		parseid := PARSEID_NOT_A_TWITCH_URL
		return ParseResult{command: command, parseid: parseid, errorMessage: errorMessages[parseid]}
	}
	return ParseResult{command: command, parseid: PARSEID_OK, arguments: StreamArguments{UserId: userId, Url: url}}
}
