package twitch

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

func UnmarshalToken(data []byte) (string, time.Duration, error) {

	var raw struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", 0, err
	}
	if raw.AccessToken == "" {
		return "", 0, fmt.Errorf("token response does not contain an access token")
	}
	return raw.AccessToken, time.Duration(raw.ExpiresIn) * time.Second, nil
}

func UnmarshalUser(data []byte) (User, error) {

	var raw struct {
		Data []User `json:"data"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return User{}, err
	}
	if len(raw.Data) == 0 {
		return User{}, ErrUserNotFound
	}
	return raw.Data[0], nil
}

func UnmarshalStream(data []byte) (StreamInfo, error) {

	var raw struct {
		Data []struct {
			Title        string    `json:"title"`
			GameName     string    `json:"game_name"`
			ViewerCount  int       `json:"viewer_count"`
			ThumbnailUrl string    `json:"thumbnail_url"`
			StartedAt    time.Time `json:"started_at"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return StreamInfo{}, err
	}

	// No stream means offline
	if len(raw.Data) == 0 {
		return StreamInfo{IsLive: false}, nil
	}

	stream := raw.Data[0]
	thumbnail := strings.NewReplacer("{width}", "320", "{height}", "180").Replace(stream.ThumbnailUrl)
	return StreamInfo{
		IsLive:    true,
		Title:     stream.Title,
		Game:      stream.GameName,
		Viewers:   stream.ViewerCount,
		Thumbnail: thumbnail,
		StartedAt: stream.StartedAt,
	}, nil
}
