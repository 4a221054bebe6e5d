package pagination

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheDoDeduplicates(t *testing.T) {
	cache := NewCache[int]()
	ctx := context.Background()

	var calls int32
	fetch := func(ctx context.Context) (Page[int], error) {
		atomic.AddInt32(&calls, 1)
		return Page[int]{Items: []int{1, 2, 3}}, nil
	}

	page, err := cache.Do(ctx, "k", fetch)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, page.Items)

	// Second call hits the cached entry.
	page, err = cache.Do(ctx, "k", fetch)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, page.Items)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCacheDoCoalescesConcurrentCallers(t *testing.T) {
	cache := NewCache[int]()
	ctx := context.Background()

	release := make(chan struct{})
	var calls int32
	fetch := func(ctx context.Context) (Page[int], error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return Page[int]{Items: []int{42}}, nil
	}

	var wg sync.WaitGroup
	results := make([]Page[int], 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			page, err := cache.Do(ctx, "k", fetch)
			require.NoError(t, err)
			results[i] = page
		}(i)
	}

	time.Sleep(10 * time.Millisecond) // let all callers join the in-flight entry
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "one fetch serves all callers")
	for _, page := range results {
		assert.Equal(t, []int{42}, page.Items)
	}
}

func TestCacheDoesNotRetainErrors(t *testing.T) {
	cache := NewCache[int]()
	ctx := context.Background()

	boom := errors.New("boom")
	var calls int32
	fetch := func(ctx context.Context) (Page[int], error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return Page[int]{}, boom
		}
		return Page[int]{Items: []int{7}}, nil
	}

	_, err := cache.Do(ctx, "k", fetch)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, cache.Len(), "failed entries are dropped")

	page, err := cache.Do(ctx, "k", fetch)
	require.NoError(t, err)
	assert.Equal(t, []int{7}, page.Items)
}

func TestCacheJoinerHonorsContext(t *testing.T) {
	cache := NewCache[int]()

	release := make(chan struct{})
	defer close(release)
	go cache.Do(context.Background(), "k", func(ctx context.Context) (Page[int], error) {
		<-release
		return Page[int]{}, nil
	})

	require.Eventually(t, func() bool { return cache.Len() == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := cache.Do(ctx, "k", func(ctx context.Context) (Page[int], error) {
		t.Fatal("joiner must not fetch")
		return Page[int]{}, nil
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestCacheInvalidatePrefix(t *testing.T) {
	cache := NewCache[int]()
	ctx := context.Background()

	fetch := func(ctx context.Context) (Page[int], error) {
		return Page[int]{}, nil
	}
	for _, key := range []string{"alerts|a", "alerts|b", "cases|a"} {
		_, err := cache.Do(ctx, key, fetch)
		require.NoError(t, err)
	}
	require.Equal(t, 3, cache.Len())

	cache.InvalidatePrefix("alerts|")
	assert.Equal(t, 1, cache.Len())

	cache.Invalidate("cases|a")
	assert.Equal(t, 0, cache.Len())
}
