//go:build integration

package settings_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"sharereg/internal/settings"
	"sharereg/internal/storage/memory"
	"sharereg/internal/voting"
	"sharereg/pkg/testutil"
	"sharereg/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *settings.RedisCache
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.cache = settings.NewRedisCache(s.redis.Client, time.Minute)
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisCacheSuite) TestRoundTrip() {
	ctx := context.Background()
	tenant := testutil.NewTenant()

	_, ok, err := s.cache.Get(ctx, tenant)
	s.Require().NoError(err)
	s.False(ok)

	s.Require().NoError(s.cache.Set(ctx, tenant, voting.Rules{ExcludeDisputedFromVoting: true}))
	rules, ok, err := s.cache.Get(ctx, tenant)
	s.Require().NoError(err)
	s.True(ok)
	s.True(rules.ExcludeDisputedFromVoting)

	ttl, err := s.redis.Client.TTL(ctx, "sharereg:settings:"+tenant.String()).Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
	s.LessOrEqual(ttl, time.Minute)

	s.Require().NoError(s.cache.Invalidate(ctx, tenant))
	_, ok, err = s.cache.Get(ctx, tenant)
	s.Require().NoError(err)
	s.False(ok)
}

func (s *RedisCacheSuite) TestCorruptEntryIsAnError() {
	ctx := context.Background()
	tenant := testutil.NewTenant()
	s.Require().NoError(s.redis.Client.Set(ctx, "sharereg:settings:"+tenant.String(), "{not json", time.Minute).Err())

	_, _, err := s.cache.Get(ctx, tenant)
	s.Error(err)
}

// Two instances sharing one cache see each other's updates.
func (s *RedisCacheSuite) TestServicesShareCache() {
	store := memory.New()
	writer, err := settings.New(store, settings.WithCache(s.cache))
	s.Require().NoError(err)
	reader, err := settings.New(store, settings.WithCache(settings.NewRedisCache(s.redis.Client, time.Minute)))
	s.Require().NoError(err)

	tenant := testutil.NewTenant()
	ctx := testutil.CallerContext(tenant, time.Now())

	before, err := reader.Rules(ctx, tenant)
	s.Require().NoError(err)
	s.False(before.ExcludeDisputedFromVoting)

	exclude := true
	_, err = writer.Update(ctx, tenant, &settings.UpdateRequest{ExcludeDisputedFromVoting: &exclude})
	s.Require().NoError(err)

	after, err := reader.Rules(ctx, tenant)
	s.Require().NoError(err)
	s.True(after.ExcludeDisputedFromVoting)
}
