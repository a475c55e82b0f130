package twitch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"apbeeper/internal/common"

	"github.com/rs/zerolog/log"
)

const TOKEN_URL = "https://id.twitch.tv/oauth2/token"
const API_URL = "https://api.twitch.tv/helix"

// Routes inside the helix API
const ROUTE_USERS = "/users?login=%s"
const ROUTE_STREAMS = "/streams?user_id=%s"

type Options struct {
	ClientId     string
	ClientSecret string
	TokenUrl     string
	ApiUrl       string
	Timeout      time.Duration
}

// Client of the Twitch helix API. Safe for concurrent use
type Client struct {
	clientId     string
	clientSecret string
	tokenUrl     string
	apiUrl       string
	proxy        *common.Proxy

	mu    sync.Mutex
	token appToken
	users map[string]User
	now   func() time.Time
}

// Twitch allows 800 points per minute for app tokens
var restrictions = []common.Restriction{{Requests: 800, Duration: time.Minute}}

func NewClient(options Options) *Client {
	if options.TokenUrl == "" {
		options.TokenUrl = TOKEN_URL
	}
	if options.ApiUrl == "" {
		options.ApiUrl = API_URL
	}
	if options.Timeout == 0 {
		options.Timeout = 10 * time.Second
	}
	return &Client{
		clientId:     options.ClientId,
		clientSecret: options.ClientSecret,
		tokenUrl:     options.TokenUrl,
		apiUrl:       strings.TrimSuffix(options.ApiUrl, "/"),
		proxy:        common.NewProxy(map[string]string{"Client-ID": options.ClientId}, restrictions, options.Timeout),
		users:        make(map[string]User),
		now:          time.Now,
	}
}

func (client *Client) Configured() bool {
	return client.clientId != "" && client.clientSecret != ""
}

// Current app token, requesting a new one when it is missing or about to expire
func (client *Client) accessToken(ctx context.Context) (string, error) {

	if !client.Configured() {
		return "", ErrNotConfigured
	}

	client.mu.Lock()
	defer client.mu.Unlock()

	// Check cache
	if client.token.valid(client.now()) {
		return client.token.value, nil
	}

	// Request
	form := url.Values{}
	form.Set("client_id", client.clientId)
	form.Set("client_secret", client.clientSecret)
	form.Set("grant_type", "client_credentials")
	request, err := http.NewRequest(http.MethodPost, client.tokenUrl, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	data, err := client.proxy.Do(ctx, request, true)
	if err != nil {
		return "", fmt.Errorf("could not get twitch access token: %w", err)
	}

	// Decode
	value, expiresIn, err := UnmarshalToken(data)
	if err != nil {
		return "", err
	}
	client.token.set(value, expiresIn, client.now())
	log.Debug().Time("expiresAt", client.token.expiresAt).Msg("New twitch access token")
	return value, nil
}

func (client *Client) GetUser(ctx context.Context, login string) (User, error) {

	login = strings.ToLower(login)

	// Check cache
	client.mu.Lock()
	user, ok := client.users[login]
	client.mu.Unlock()
	if ok {
		return user, nil
	}

	// Request
	data, err := client.request(ctx, fmt.Sprintf(ROUTE_USERS, url.QueryEscape(login)))
	if err != nil {
		return User{}, err
	}

	// Decode
	user, err = UnmarshalUser(data)
	if err != nil {
		return User{}, err
	}
	log.Debug().Str("login", login).Str("id", user.Id).Msg("Found twitch user")

	// Update cache
	client.mu.Lock()
	client.users[login] = user
	client.mu.Unlock()
	return user, nil
}

// Stream of the channel with the provided login or url
func (client *Client) GetStream(ctx context.Context, channel string) (StreamInfo, error) {

	login := ExtractUsername(channel)
	if login == "" {
		return StreamInfo{}, fmt.Errorf("invalid twitch channel %q", channel)
	}
	user, err := client.GetUser(ctx, login)
	if err != nil {
		return StreamInfo{}, err
	}

	data, err := client.request(ctx, fmt.Sprintf(ROUTE_STREAMS, url.QueryEscape(user.Id)))
	if err != nil {
		return StreamInfo{}, err
	}
	return UnmarshalStream(data)
}

// Whether the url points to an existing twitch channel
func (client *Client) ValidateChannel(ctx context.Context, channelUrl string) (bool, error) {

	login := ExtractUsername(channelUrl)
	if login == "" {
		return false, nil
	}
	_, err := client.GetUser(ctx, login)
	if errors.Is(err, ErrUserNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (client *Client) request(ctx context.Context, route string) ([]byte, error) {

	token, err := client.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	request, err := http.NewRequest(http.MethodGet, client.apiUrl+route, nil)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Authorization", "Bearer "+token)

	data, err := client.proxy.Do(ctx, request, true)
	var statusError *common.StatusError
	if errors.As(err, &statusError) && statusError.StatusCode == http.StatusUnauthorized {
		// Revoked or expired early, the next request gets a new one
		client.mu.Lock()
		client.token.invalidate()
		client.mu.Unlock()
	}
	return data, err
}
