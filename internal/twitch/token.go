package twitch

import (
	"time"
)

// Refresh the token this long before twitch expires it
const tokenMargin = time.Minute

// App access token owned by the client
type appToken struct {
	value     string
	expiresAt time.Time
}

func (token *appToken) valid(now time.Time) bool {
	return token.value != "" && now.Before(token.expiresAt)
}

func (token *appToken) set(value string, expiresIn time.Duration, now time.Time) {
	token.value = value
	token.expiresAt = now.Add(expiresIn - tokenMargin)
}

func (token *appToken) invalidate() {
	token.value = ""
	token.expiresAt = time.Time{}
}
