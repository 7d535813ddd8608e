package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisCache_RejectsBadURL(t *testing.T) {
	_, err := NewRedisCache("http://localhost:6379", DefaultPrefix)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid REDIS_URL")
}

func TestRedisCache_KeyPrefix(t *testing.T) {
	r := &RedisCache{prefix: DefaultPrefix}
	assert.Equal(t, "univast:brute_force:lock:10.0.0.1", r.key("brute_force:lock:10.0.0.1"))
}
