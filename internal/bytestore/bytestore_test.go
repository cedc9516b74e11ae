package bytestore

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutAndGet(t *testing.T) {
	s := New()
	key := s.Put([]byte("hello"))
	assert.Equal(t, Hash([]byte("hello")), key)

	data, ok := s.Get(key)
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), data)
}

func TestGetMissing(t *testing.T) {
	s := New()
	_, ok := s.Get("nope")
	assert.False(t, ok)
}

func TestPutIsIdempotent(t *testing.T) {
	s := New()
	k1 := s.Put([]byte("same"))
	k2 := s.Put([]byte("same"))
	assert.Equal(t, k1, k2)
	assert.Equal(t, 1, s.Len())
}

func TestDistinctContentDistinctKeys(t *testing.T) {
	s := New()
	k1 := s.Put([]byte("a"))
	k2 := s.Put([]byte("b"))
	assert.NotEqual(t, k1, k2)
	assert.Equal(t, 2, s.Len())
}

func TestStatsCountHitsAndMisses(t *testing.T) {
	s := New()
	key := s.Put([]byte("x"))

	s.Get(key)
	s.Get(key)
	s.Get("missing")

	stats := s.GetStats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestConcurrentAccess(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				key := s.Put(fmt.Appendf(nil, "payload-%d", j))
				_, ok := s.Get(key)
				assert.True(t, ok)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, s.Len())
}
