package settings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	cache := NewMemoryCache(60*time.Second, WithClock(clock.Now))

	assert.True(t, cache.IsExpired(KeyCompanyInfo))

	cache.Set(KeyCompanyInfo, "acme")
	v, ok := cache.Get(KeyCompanyInfo)
	assert.True(t, ok)
	assert.Equal(t, "acme", v)
	assert.False(t, cache.IsExpired(KeyCompanyInfo))

	clock.Advance(60 * time.Second)
	assert.True(t, cache.IsExpired(KeyCompanyInfo))

	_, ok = cache.Get(KeyCompanyInfo)
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Size(), "expired entry is dropped on read")
}

func TestMemoryCacheSetRefreshesExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	cache := NewMemoryCache(time.Minute, WithClock(clock.Now))

	cache.Set(KeyStripeConfig, 1)
	clock.Advance(50 * time.Second)
	cache.Set(KeyStripeConfig, 2)
	clock.Advance(50 * time.Second)

	v, ok := cache.Get(KeyStripeConfig)
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestNoopCache(t *testing.T) {
	var cache NoopCache
	cache.Set(KeyCompanyInfo, "acme")

	_, ok := cache.Get(KeyCompanyInfo)
	assert.False(t, ok)
	assert.True(t, cache.IsExpired(KeyCompanyInfo))
}

func TestNewCache(t *testing.T) {
	assert.IsType(t, NoopCache{}, NewCache(false, time.Minute))

	cache := NewCache(true, time.Minute)
	require.IsType(t, &MemoryCache{}, cache)
	assert.Equal(t, time.Minute, cache.(*MemoryCache).ttl)
}
