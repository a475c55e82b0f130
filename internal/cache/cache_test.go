package cache

import (
	"context"
	"testing"
	"time"

	"apbeeper/internal/common"
	"apbeeper/internal/tracking"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
)

type SessionCacheSuite struct {
	suite.Suite
	ctx      context.Context
	mini     *miniredis.Miniredis
	clock    *common.ManualClock
	database common.Database
	store    *tracking.DatabaseTracking
	cache    *SessionCache
}

func TestSessionCacheSuite(t *testing.T) {
	suite.Run(t, new(SessionCacheSuite))
}

func (s *SessionCacheSuite) SetupTest() {
	s.ctx = context.Background()
	s.mini = miniredis.RunT(s.T())
	s.clock = common.NewManualClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	database, err := common.OpenDatabase(common.DatabaseOptions{Path: ":memory:"})
	s.Require().NoError(err)
	s.database = database
	s.store, err = tracking.NewDatabaseTracking(database, s.clock)
	s.Require().NoError(err)

	client := redis.NewClient(&redis.Options{Addr: s.mini.Addr()})
	s.cache = NewSessionCacheWithClient(s.store, client, time.Minute)
}

func (s *SessionCacheSuite) TearDownTest() {
	_ = s.cache.Close()
	_ = s.database.Close()
}

func (s *SessionCacheSuite) TestReadThrough() {
	_, err := s.cache.StartSession(s.ctx, "u1", "g1", "apb")
	s.Require().NoError(err)

	sessions, err := s.cache.ListActiveSessions(s.ctx, "g1", "APB")
	s.Require().NoError(err)
	s.Require().Len(sessions, 1)
	s.True(s.mini.Exists(activeKey("g1", "apb")))

	// Written behind the cache, not visible until invalidated
	_, err = s.store.StartSession(s.ctx, "u2", "g1", "apb")
	s.Require().NoError(err)
	sessions, err = s.cache.ListActiveSessions(s.ctx, "g1", "apb")
	s.Require().NoError(err)
	s.Len(sessions, 1)

	s.mini.FastForward(2 * time.Minute)
	sessions, err = s.cache.ListActiveSessions(s.ctx, "g1", "apb")
	s.Require().NoError(err)
	s.Len(sessions, 2)
}

func (s *SessionCacheSuite) TestStartAndEndInvalidate() {
	_, err := s.cache.ListActiveSessions(s.ctx, "g1", "apb")
	s.Require().NoError(err)
	s.True(s.mini.Exists(activeKey("g1", "apb")))

	_, err = s.cache.StartSession(s.ctx, "u1", "g1", "apb")
	s.Require().NoError(err)
	s.False(s.mini.Exists(activeKey("g1", "apb")))

	sessions, err := s.cache.ListActiveSessions(s.ctx, "g1", "apb")
	s.Require().NoError(err)
	s.Len(sessions, 1)

	ended, err := s.cache.EndSession(s.ctx, "u1", "g1", "apb")
	s.Require().NoError(err)
	s.True(ended)
	sessions, err = s.cache.ListActiveSessions(s.ctx, "g1", "apb")
	s.Require().NoError(err)
	s.Empty(sessions)
}

func (s *SessionCacheSuite) TestCleanupInvalidatesEverything() {
	_, err := s.cache.StartSession(s.ctx, "u1", "g1", "apb")
	s.Require().NoError(err)
	_, err = s.cache.StartSession(s.ctx, "u2", "g2", "valorant")
	s.Require().NoError(err)
	_, err = s.cache.ListActiveSessions(s.ctx, "g1", "apb")
	s.Require().NoError(err)
	_, err = s.cache.ListActiveSessions(s.ctx, "g2", "valorant")
	s.Require().NoError(err)
	s.Require().NoError(s.mini.Set("unrelated", "kept"))

	s.clock.Advance(25 * time.Hour)
	count, err := s.cache.CleanupStale(s.ctx, 24*time.Hour)
	s.Require().NoError(err)
	s.Equal(int64(2), count)
	s.False(s.mini.Exists(activeKey("g1", "apb")))
	s.False(s.mini.Exists(activeKey("g2", "valorant")))
	s.True(s.mini.Exists("unrelated"))

	sessions, err := s.cache.ListActiveSessions(s.ctx, "g1", "apb")
	s.Require().NoError(err)
	s.Empty(sessions)
}

func (s *SessionCacheSuite) TestRedisDownFallsBackToStore() {
	_, err := s.cache.StartSession(s.ctx, "u1", "g1", "apb")
	s.Require().NoError(err)
	s.mini.Close()

	sessions, err := s.cache.ListActiveSessions(s.ctx, "g1", "apb")
	s.Require().NoError(err)
	s.Len(sessions, 1)
}

// Runs a callback right after the wrapped store answered a list query
type interleavingStore struct {
	*tracking.DatabaseTracking
	afterList func()
}

func (store *interleavingStore) ListActiveSessions(ctx context.Context, guildId, gameName string) ([]tracking.PlaySession, error) {
	sessions, err := store.DatabaseTracking.ListActiveSessions(ctx, guildId, gameName)
	if store.afterList != nil {
		afterList := store.afterList
		store.afterList = nil
		afterList()
	}
	return sessions, err
}

func (s *SessionCacheSuite) interleaved() (*interleavingStore, *SessionCache) {
	store := &interleavingStore{DatabaseTracking: s.store}
	client := redis.NewClient(&redis.Options{Addr: s.mini.Addr()})
	cache := NewSessionCacheWithClient(store, client, time.Minute)
	s.T().Cleanup(func() { _ = cache.Close() })
	return store, cache
}

func (s *SessionCacheSuite) TestEndDuringFillIsNotCached() {
	store, cache := s.interleaved()
	_, err := cache.StartSession(s.ctx, "u1", "g1", "apb")
	s.Require().NoError(err)

	store.afterList = func() {
		ended, err := cache.EndSession(s.ctx, "u1", "g1", "apb")
		s.Require().NoError(err)
		s.Require().True(ended)
	}
	sessions, err := cache.ListActiveSessions(s.ctx, "g1", "apb")
	s.Require().NoError(err)
	s.Len(sessions, 1)
	s.False(s.mini.Exists(activeKey("g1", "apb")))

	sessions, err = cache.ListActiveSessions(s.ctx, "g1", "apb")
	s.Require().NoError(err)
	s.Empty(sessions)
}

func (s *SessionCacheSuite) TestStartDuringFillIsNotCached() {
	store, cache := s.interleaved()

	store.afterList = func() {
		_, err := cache.StartSession(s.ctx, "u1", "g1", "apb")
		s.Require().NoError(err)
	}
	sessions, err := cache.ListActiveSessions(s.ctx, "g1", "apb")
	s.Require().NoError(err)
	s.Empty(sessions)

	sessions, err = cache.ListActiveSessions(s.ctx, "g1", "apb")
	s.Require().NoError(err)
	s.Len(sessions, 1)
}

func (s *SessionCacheSuite) TestCleanupDuringFillIsNotCached() {
	store, cache := s.interleaved()
	_, err := cache.StartSession(s.ctx, "u1", "g1", "apb")
	s.Require().NoError(err)
	s.clock.Advance(25 * time.Hour)

	store.afterList = func() {
		count, err := cache.CleanupStale(s.ctx, 24*time.Hour)
		s.Require().NoError(err)
		s.Require().Equal(int64(1), count)
	}
	sessions, err := cache.ListActiveSessions(s.ctx, "g1", "apb")
	s.Require().NoError(err)
	s.Len(sessions, 1)

	sessions, err = cache.ListActiveSessions(s.ctx, "g1", "apb")
	s.Require().NoError(err)
	s.Empty(sessions)
}

func (s *SessionCacheSuite) TestUnchangedFillIsCached() {
	_, cache := s.interleaved()
	_, err := cache.StartSession(s.ctx, "u1", "g1", "apb")
	s.Require().NoError(err)

	_, err = cache.ListActiveSessions(s.ctx, "g1", "apb")
	s.Require().NoError(err)
	s.True(s.mini.Exists(activeKey("g1", "apb")))
	ttl := s.mini.TTL(activeKey("g1", "apb"))
	s.Equal(time.Minute, ttl)
}
