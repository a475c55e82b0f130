package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"apbeeper/internal/tracking"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	keyPrefix = "apbeeper:active:"
	genPrefix = "apbeeper:gen:"
	epochKey  = "apbeeper:epoch"
)

// Writes the list only if neither the generation of its key nor the
// global epoch moved since they were read
var fillScript = redis.NewScript(`
local gen = redis.call('GET', KEYS[2]) or ''
local epoch = redis.call('GET', KEYS[3]) or ''
if gen ~= ARGV[1] or epoch ~= ARGV[2] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[3], 'PX', ARGV[4])
return 1
`)

type Config struct {
	Url string
	Ttl time.Duration
}

// SessionCache is a read-through cache of the active session lists in
// front of a session store. Every write through it drops the cached list
// of the game it touches, cleanups drop all of them
type SessionCache struct {
	tracking.SessionStore
	client *redis.Client
	ttl    time.Duration
}

var _ tracking.SessionStore = (*SessionCache)(nil)

func NewSessionCache(store tracking.SessionStore, config Config) (*SessionCache, error) {
	options, err := redis.ParseURL(config.Url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return NewSessionCacheWithClient(store, client, config.Ttl), nil
}

func NewSessionCacheWithClient(store tracking.SessionStore, client *redis.Client, ttl time.Duration) *SessionCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &SessionCache{SessionStore: store, client: client, ttl: ttl}
}

func (cache *SessionCache) Close() error {
	return cache.client.Close()
}

func activeKey(guildId, gameName string) string {
	return keyPrefix + guildId + ":" + tracking.GameKey(gameName)
}

func genKey(guildId, gameName string) string {
	return genPrefix + guildId + ":" + tracking.GameKey(gameName)
}

// Generation of a key and the global epoch, empty when never bumped
func (cache *SessionCache) versions(ctx context.Context, guildId, gameName string) (string, string, error) {
	values, err := cache.client.MGet(ctx, genKey(guildId, gameName), epochKey).Result()
	if err != nil {
		return "", "", err
	}
	version := func(value any) string {
		if str, ok := value.(string); ok {
			return str
		}
		return ""
	}
	return version(values[0]), version(values[1]), nil
}

func (cache *SessionCache) ListActiveSessions(ctx context.Context, guildId, gameName string) ([]tracking.PlaySession, error) {

	key := activeKey(guildId, gameName)

	// Check cache
	data, err := cache.client.Get(ctx, key).Bytes()
	if err == nil {
		var sessions []tracking.PlaySession
		if err := json.Unmarshal(data, &sessions); err == nil {
			return sessions, nil
		}
		log.Warn().Str("key", key).Msg("Dropping undecodable cache entry")
	} else if !errors.Is(err, redis.Nil) {
		log.Warn().Err(err).Str("key", key).Msg("Could not read session cache")
	}

	// Versions are read before the store so an invalidation in between
	// makes the fill a no-op
	gen, epoch, versionErr := cache.versions(ctx, guildId, gameName)

	// Store
	sessions, err := cache.SessionStore.ListActiveSessions(ctx, guildId, gameName)
	if err != nil {
		return nil, err
	}
	if versionErr != nil {
		return sessions, nil
	}
	if data, err := json.Marshal(sessions); err == nil {
		keys := []string{key, genKey(guildId, gameName), epochKey}
		filled, err := fillScript.Run(ctx, cache.client, keys, gen, epoch, data, cache.ttl.Milliseconds()).Int()
		if err != nil {
			log.Warn().Err(err).Str("key", key).Msg("Could not write session cache")
		} else if filled == 0 {
			log.Debug().Str("key", key).Msg("Session list changed while reading, not cached")
		}
	}
	return sessions, nil
}

func (cache *SessionCache) StartSession(ctx context.Context, userId, guildId, gameName string) (uint64, error) {
	id, err := cache.SessionStore.StartSession(ctx, userId, guildId, gameName)
	cache.invalidate(ctx, guildId, gameName)
	return id, err
}

func (cache *SessionCache) EndSession(ctx context.Context, userId, guildId, gameName string) (bool, error) {
	ended, err := cache.SessionStore.EndSession(ctx, userId, guildId, gameName)
	if ended || err != nil {
		cache.invalidate(ctx, guildId, gameName)
	}
	return ended, err
}

func (cache *SessionCache) CleanupStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	count, err := cache.SessionStore.CleanupStale(ctx, maxAge)
	if count > 0 {
		cache.invalidateAll(ctx)
	}
	return count, err
}

// Bumps the generation of the key and drops it in one transaction
func (cache *SessionCache) invalidate(ctx context.Context, guildId, gameName string) {
	key := activeKey(guildId, gameName)
	_, err := cache.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey(guildId, gameName))
		pipe.Del(ctx, key)
		return nil
	})
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Could not invalidate session cache")
	}
}

func (cache *SessionCache) invalidateAll(ctx context.Context) {
	if err := cache.client.Incr(ctx, epochKey).Err(); err != nil {
		log.Warn().Err(err).Msg("Could not invalidate session cache")
		return
	}
	iter := cache.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.Warn().Err(err).Msg("Could not scan session cache")
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := cache.client.Del(ctx, keys...).Err(); err != nil {
		log.Warn().Err(err).Msg("Could not invalidate session cache")
	}
}
