package twitch

import (
	"regexp"
	"strings"
)

var (
	channelPattern = regexp.MustCompile(`twitch\.tv/([a-zA-Z0-9_]+)`)
	loginPattern   = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	validUrl       = regexp.MustCompile(`^https?://(www\.)?twitch\.tv/[a-zA-Z0-9_]+/?$`)
)

// Login of a channel url, or of a bare login. Empty if neither
func ExtractUsername(url string) string {
	url = strings.TrimSpace(url)
	if match := channelPattern.FindStringSubmatch(url); match != nil {
		return strings.ToLower(match[1])
	}
	if loginPattern.MatchString(url) {
		return strings.ToLower(url)
	}
	return ""
}

func IsValidURL(url string) bool {
	url = strings.TrimSpace(url)
	return validUrl.MatchString(url) || loginPattern.MatchString(url)
}

func ChannelUrl(login string) string {
	return "https://twitch.tv/" + login
}
