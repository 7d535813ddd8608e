package middleware

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/univast-api/utils/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryCache is an in-process cache.Cache
type memoryCache struct {
	mu      sync.Mutex
	values  map[string]string
	expires map[string]time.Time
}

var _ cache.Cache = (*memoryCache)(nil)

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string]string{}, expires: map[string]time.Time{}}
}

func (m *memoryCache) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", cache.ErrNotFound
	}
	return v, nil
}

func (m *memoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = toString(value)
	if expiration > 0 {
		m.expires[key] = time.Now().Add(expiration)
	}
	return nil
}

func (m *memoryCache) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return m.Set(ctx, key, string(data), expiration)
}

func (m *memoryCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	v, err := m.Get(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(v), dest)
}

func (m *memoryCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
		delete(m.expires, k)
	}
	return nil
}

func (m *memoryCache) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.values[key]
	return ok, nil
}

func (m *memoryCache) Increment(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, _ := strconv.ParseInt(m.values[key], 10, 64)
	n++
	m.values[key] = strconv.FormatInt(n, 10)
	return n, nil
}

func (m *memoryCache) Expire(_ context.Context, key string, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expires[key] = time.Now().Add(expiration)
	return nil
}

func (m *memoryCache) TTL(_ context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.expires[key]
	if !ok {
		return -1, nil
	}
	return time.Until(exp), nil
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func TestLockDuration(t *testing.T) {
	assert.Zero(t, lockDuration(4))
	assert.Equal(t, 2*time.Minute, lockDuration(5))
	assert.Equal(t, time.Hour, lockDuration(10))
	assert.Equal(t, 24*time.Hour, lockDuration(30))
}

func TestBruteForceProtection_LocksAfterRepeatedFailures(t *testing.T) {
	ctx := context.Background()
	store := newMemoryCache()
	bf := NewBruteForceProtection(store)

	for i := 0; i < 4; i++ {
		require.NoError(t, bf.RecordFailedAttempt(ctx, "10.0.0.1", "tester"))
	}
	locked, err := bf.IsIPLocked(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, locked)

	require.NoError(t, bf.RecordFailedAttempt(ctx, "10.0.0.1", "tester"))
	locked, err = bf.IsIPLocked(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, locked)

	count, err := bf.GetAttemptCount(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	// Other clients are unaffected
	locked, err = bf.IsIPLocked(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.False(t, locked)

	require.NoError(t, bf.RecordSuccessfulAttempt(ctx, "10.0.0.1", "tester"))
	locked, err = bf.IsIPLocked(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, locked)
	count, err = bf.GetAttemptCount(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestBruteForceProtection_Middleware(t *testing.T) {
	store := newMemoryCache()
	bf := NewBruteForceProtection(store)

	var clientIP string
	app := fiber.New()
	app.Post("/login", bf.CheckAndRecordAttempt(), func(c *fiber.Ctx) error {
		clientIP = c.IP()
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest("POST", "/login", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.NoError(t, store.Set(context.Background(), lockKey(clientIP), "locked", time.Minute))

	resp, err = app.Test(httptest.NewRequest("POST", "/login", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	retry, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	require.NoError(t, err)
	assert.Greater(t, retry, 0)
}
