package bot

import (
	"github.com/bwmarrin/discordgo"
)

type ResponseString struct {
	string
}
type ResponseEmbed struct {
	*discordgo.MessageEmbed
}
type ResponseEmbeds struct {
	embeds []*discordgo.MessageEmbed
}

// A reply to a command. Commands are always deferred first,
// so replying means editing the deferred response
type Response interface {
	Send(interaction *discordgo.Interaction, discord *discordgo.Session) error
}

func (response ResponseString) Send(interaction *discordgo.Interaction, discord *discordgo.Session) error {
	content := response.string
	_, err := discord.InteractionResponseEdit(interaction, &discordgo.WebhookEdit{Content: &content})
	return err
}

func (response ResponseEmbed) Send(interaction *discordgo.Interaction, discord *discordgo.Session) error {
	embeds := []*discordgo.MessageEmbed{response.MessageEmbed}
	_, err := discord.InteractionResponseEdit(interaction, &discordgo.WebhookEdit{Embeds: &embeds})
	return err
}

func (response ResponseEmbeds) Send(interaction *discordgo.Interaction, discord *discordgo.Session) error {
	embeds := response.embeds
	_, err := discord.InteractionResponseEdit(interaction, &discordgo.WebhookEdit{Embeds: &embeds})
	return err
}

func deferResponse(interaction *discordgo.Interaction, discord *discordgo.Session, ephemeral bool) error {
	var flags discordgo.MessageFlags
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	return discord.InteractionRespond(interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: flags},
	})
}

// Reply right away, for input that could not be parsed
func respondNow(interaction *discordgo.Interaction, discord *discordgo.Session, response ResponseEmbed) error {
	return discord.InteractionRespond(interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{response.MessageEmbed},
			Flags:  discordgo.MessageFlagsEphemeral,
		},
	})
}
