//go:build integration

package bucket_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"fundgate/internal/safeguard/store/bucket"
	"fundgate/pkg/testutil/containers"
)

type RedisBucketSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *bucket.RedisStore
}

func TestRedisBucketSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisBucketSuite))
}

func (s *RedisBucketSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.store = bucket.NewRedis(s.redis.Client, "fundgate:test:rate")
}

func (s *RedisBucketSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisBucketSuite) TestAllowUpToLimit() {
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		result, err := s.store.Allow(ctx, "alice", 5, time.Minute)
		s.Require().NoError(err)
		s.True(result.Allowed, "request %d should pass", i)
	}

	result, err := s.store.Allow(ctx, "alice", 5, time.Minute)
	s.Require().NoError(err)
	s.False(result.Allowed)
	s.Zero(result.Remaining)
}

func (s *RedisBucketSuite) TestDeniedRequestConsumesNothing() {
	ctx := context.Background()

	_, err := s.store.Allow(ctx, "alice", 1, time.Minute)
	s.Require().NoError(err)

	for i := 0; i < 5; i++ {
		result, err := s.store.Allow(ctx, "alice", 1, time.Minute)
		s.Require().NoError(err)
		s.False(result.Allowed)
	}

	status, err := s.store.Status(ctx, "alice", 1, time.Minute)
	s.Require().NoError(err)
	s.False(status.Allowed)
	s.Zero(status.Remaining)
}

func (s *RedisBucketSuite) TestWindowSlides() {
	ctx := context.Background()

	// A 300ms window lets early entries age out quickly.
	for i := 0; i < 3; i++ {
		result, err := s.store.Allow(ctx, "alice", 3, 300*time.Millisecond)
		s.Require().NoError(err)
		s.True(result.Allowed)
	}

	result, err := s.store.Allow(ctx, "alice", 3, 300*time.Millisecond)
	s.Require().NoError(err)
	s.False(result.Allowed)

	time.Sleep(350 * time.Millisecond)

	result, err = s.store.Allow(ctx, "alice", 3, 300*time.Millisecond)
	s.Require().NoError(err)
	s.True(result.Allowed, "expired entries free their slots")
}

func (s *RedisBucketSuite) TestKeysAreIndependent() {
	ctx := context.Background()

	_, err := s.store.Allow(ctx, "alice", 1, time.Minute)
	s.Require().NoError(err)

	result, err := s.store.Allow(ctx, "bob", 1, time.Minute)
	s.Require().NoError(err)
	s.True(result.Allowed)
}

func (s *RedisBucketSuite) TestStatus() {
	ctx := context.Background()

	status, err := s.store.Status(ctx, "alice", 2, time.Minute)
	s.Require().NoError(err)
	s.True(status.Allowed)
	s.Equal(2, status.Remaining)

	before := time.Now()
	_, err = s.store.Allow(ctx, "alice", 2, time.Minute)
	s.Require().NoError(err)

	// Repeated reads leave the window untouched.
	for i := 0; i < 5; i++ {
		status, err = s.store.Status(ctx, "alice", 2, time.Minute)
		s.Require().NoError(err)
		s.True(status.Allowed)
		s.Equal(1, status.Remaining)
	}
	s.False(status.ResetAt.Before(before), "reset time reflects the oldest live entry")
}
