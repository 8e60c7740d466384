package downloader

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKeyVariesWithHeaders(t *testing.T) {
	plain := cacheKey("https://example.com/feed.pb", nil)
	withAuth := cacheKey("https://example.com/feed.pb", map[string]string{"Authorization": "Bearer a"})
	withOtherAuth := cacheKey("https://example.com/feed.pb", map[string]string{"Authorization": "Bearer b"})

	assert.NotEqual(t, plain, withAuth, "two consumers of the same URL with different headers must not share a cache entry")
	assert.NotEqual(t, withAuth, withOtherAuth)

	// Header order must not matter.
	a := cacheKey("https://example.com/feed.pb", map[string]string{"X-One": "1", "X-Two": "2"})
	b := cacheKey("https://example.com/feed.pb", map[string]string{"X-Two": "2", "X-One": "1"})
	assert.Equal(t, a, b)
}

func TestMemoryGetCachesUntilTTLExpires(t *testing.T) {
	// HTTPGet needs a real URL; instead exercise Memory.Get's cache
	// bookkeeping directly against its record map.
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.TimeNow = func() time.Time { return now }

	key := cacheKey("https://example.com/a.zip", nil)
	m.records[key] = memoryRecord{data: []byte("cached"), expiration: now.Add(time.Minute)}

	body, err := m.Get(context.Background(), "https://example.com/a.zip", nil, GetOptions{Cache: true, CacheTTL: time.Minute})
	require.NoError(t, err)
	assert.Equal(t, []byte("cached"), body)

	now = now.Add(2 * time.Minute)
	m.records[key] = memoryRecord{data: []byte("stale"), expiration: now.Add(-time.Second)}
	_, err = m.Get(context.Background(), "https://not-a-real-host.invalid/a.zip", nil, GetOptions{Cache: true, CacheTTL: time.Minute, Timeout: time.Millisecond})
	assert.Error(t, err, "expired cache entries must fall through to a real fetch")
}
