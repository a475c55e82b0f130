package bot

import (
	"context"
	"errors"
	"fmt"

	"apbeeper/internal/common"
	"apbeeper/internal/tracking"

	"github.com/bwmarrin/discordgo"
)

// Upper limit of the members endpoint
const membersPageSize = 1000

// discord implements the platform interfaces the packages
// depend on: tracking.MemberSource and common.Messenger
type discord struct {
	session   *discordgo.Session
	presences *Presences
}

func hasErrorCode(err error, code int) bool {
	var restErr *discordgo.RESTError
	return errors.As(err, &restErr) && restErr.Message != nil && restErr.Message.Code == code
}

func memberErr(err error) error {
	if hasErrorCode(err, discordgo.ErrCodeUnknownMember) {
		return tracking.ErrMemberNotFound
	}
	return err
}

func messageErr(err error) error {
	if hasErrorCode(err, discordgo.ErrCodeUnknownMessage) {
		return common.ErrMessageNotFound
	}
	return err
}

func displayName(member *discordgo.Member) string {
	if member.Nick != "" {
		return member.Nick
	}
	if member.User == nil {
		return ""
	}
	if member.User.GlobalName != "" {
		return member.User.GlobalName
	}
	return member.User.Username
}

func (d *discord) convertMember(guildId string, member *discordgo.Member) tracking.Member {
	return tracking.Member{
		UserId:      member.User.ID,
		DisplayName: displayName(member),
		Activities:  d.presences.Get(guildId, member.User.ID),
		Roles:       member.Roles,
		Bot:         member.User.Bot,
	}
}

func (d *discord) ListMembers(ctx context.Context, guildId string) ([]tracking.Member, error) {

	var members []tracking.Member
	after := ""
	for {
		page, err := d.session.GuildMembers(guildId, after, membersPageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("could not list members of guild %s: %w", guildId, err)
		}
		for _, member := range page {
			if member.User == nil {
				continue
			}
			members = append(members, d.convertMember(guildId, member))
		}
		if len(page) < membersPageSize {
			return members, nil
		}
		after = page[len(page)-1].User.ID
	}
}

func (d *discord) ResolveMember(ctx context.Context, guildId, userId string) (tracking.Member, error) {

	// Check state
	if member, err := d.session.State.Member(guildId, userId); err == nil && member.User != nil {
		return d.convertMember(guildId, member), nil
	}

	// Request
	member, err := d.session.GuildMember(guildId, userId, discordgo.WithContext(ctx))
	if err != nil {
		return tracking.Member{}, memberErr(err)
	}
	if member.User == nil {
		return tracking.Member{}, tracking.ErrMemberNotFound
	}
	return d.convertMember(guildId, member), nil
}

func (d *discord) Publish(ctx context.Context, channelId string, embed *discordgo.MessageEmbed) (string, error) {
	message, err := d.session.ChannelMessageSendEmbed(channelId, embed, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return message.ID, nil
}

func (d *discord) Edit(ctx context.Context, channelId string, messageId string, embed *discordgo.MessageEmbed) error {
	_, err := d.session.ChannelMessageEditEmbed(channelId, messageId, embed, discordgo.WithContext(ctx))
	return messageErr(err)
}

// Name of a role of the guild, empty when unknown
func (d *discord) roleName(guildId, roleId string) string {
	if roleId == "" {
		return ""
	}
	role, err := d.session.State.Role(guildId, roleId)
	if err != nil {
		return ""
	}
	return role.Name
}

func (d *discord) guildName(guildId string) string {
	guild, err := d.session.State.Guild(guildId)
	if err != nil {
		return guildId
	}
	return guild.Name
}

func (d *discord) isBot(guildId, userId string) bool {
	member, err := d.session.State.Member(guildId, userId)
	return err == nil && member.User != nil && member.User.Bot
}

// Whether the bot may post embeds in the channel. Unknown
// permissions are left for discord to enforce
func (d *discord) canSend(channelId string) bool {
	if d.session.State.User == nil {
		return true
	}
	permissions, err := d.session.State.UserChannelPermissions(d.session.State.User.ID, channelId)
	if err != nil {
		return true
	}
	needed := int64(discordgo.PermissionSendMessages | discordgo.PermissionEmbedLinks)
	return permissions&needed == needed
}
