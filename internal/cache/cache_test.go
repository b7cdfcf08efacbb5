package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewService_NilClientDisablesCache(t *testing.T) {
	s := NewService(nil, 0)
	assert.Nil(t, s)
	assert.False(t, s.IsAvailable())
}

func TestService_NilReceiverIsNoOp(t *testing.T) {
	var s *Service

	err := s.Set(context.Background(), "k", "v")
	assert.NoError(t, err, "Set on a disabled cache must not error")

	var dest string
	err = s.Get(context.Background(), "k", &dest)
	assert.Error(t, err, "Get on a disabled cache is always a miss")

	err = s.Delete(context.Background(), "k")
	assert.NoError(t, err)

	err = s.SetWithTTL(context.Background(), "k", "v", 0)
	assert.NoError(t, err)
}

func TestGenerateKey(t *testing.T) {
	assert.Equal(t, "robots:example.com:/news", GenerateKey(PrefixRobots, "example.com", "/news"))
	assert.Equal(t, "robots:example.com", GenerateKey(PrefixRobots, "example.com", ""))
	assert.Equal(t, "resolve:https://news.google.com/rss/articles/abc", GenerateKey(PrefixResolver, "https://news.google.com/rss/articles/abc"))
}
