package common

import (
	"context"
	"errors"

	"github.com/bwmarrin/discordgo"
)

// Returned by a Messenger when the message to edit does not exist anymore
var ErrMessageNotFound = errors.New("message not found")

// Messenger publishes and edits the auto updating panels
type Messenger interface {
	Publish(ctx context.Context, channelId string, embed *discordgo.MessageEmbed) (string, error)
	Edit(ctx context.Context, channelId string, messageId string, embed *discordgo.MessageEmbed) error
}

// Edit the panel message if it exists, else publish a new one.
// Returns the id of the message holding the panel and whether it changed
func PublishOrEdit(ctx context.Context, messenger Messenger, channelId string, messageId string, embed *discordgo.MessageEmbed) (string, bool, error) {
	if messageId != "" {
		err := messenger.Edit(ctx, channelId, messageId, embed)
		if err == nil {
			return messageId, false, nil
		}
		if !errors.Is(err, ErrMessageNotFound) {
			return messageId, false, err
		}
	}
	newId, err := messenger.Publish(ctx, channelId, embed)
	if err != nil {
		return messageId, false, err
	}
	return newId, true, nil
}
