package datalayer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingFetcher returns a numbered payload per call. When gate is set, each
// call signals started and blocks until gate is closed or receives a value.
type countingFetcher struct {
	calls   atomic.Int64
	started chan struct{}
	gate    chan struct{}
	fail    atomic.Bool
}

func newCountingFetcher(blocking bool) *countingFetcher {
	f := &countingFetcher{started: make(chan struct{}, 16)}
	if blocking {
		f.gate = make(chan struct{})
	}
	return f
}

func (f *countingFetcher) fetch(_ context.Context, key string) ([]byte, error) {
	n := f.calls.Add(1)
	f.started <- struct{}{}
	if f.gate != nil {
		<-f.gate
	}
	if f.fail.Load() {
		return nil, errors.New("connection refused")
	}
	return []byte(fmt.Sprintf(`{"key":%q,"n":%d}`, key, n)), nil
}

func waitStarted(t *testing.T, f *countingFetcher) {
	t.Helper()
	select {
	case <-f.started:
	case <-time.After(2 * time.Second):
		t.Fatal("fetch did not start")
	}
}

func TestCache_ConcurrentGetsShareOneFetch(t *testing.T) {
	f := newCountingFetcher(true)
	c := NewCache(f.fetch, Config{})
	ctx := context.Background()

	const readers = 10
	var wg sync.WaitGroup
	results := make([]Entry, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entry, err := c.Get(ctx, ImagesKey)
			assert.NoError(t, err)
			results[i] = entry
		}(i)
	}

	waitStarted(t, f)
	close(f.gate)
	wg.Wait()

	assert.Equal(t, int64(1), f.calls.Load())
	for _, entry := range results {
		assert.Equal(t, string(results[0].Data), string(entry.Data))
	}
}

func TestCache_GetServesCachedPayload(t *testing.T) {
	f := newCountingFetcher(false)
	c := NewCache(f.fetch, Config{})
	ctx := context.Background()

	first, err := c.Get(ctx, ImagesKey)
	require.NoError(t, err)
	second, err := c.Get(ctx, ImagesKey)
	require.NoError(t, err)

	assert.Equal(t, int64(1), f.calls.Load())
	assert.Equal(t, first.Data, second.Data)
	assert.False(t, second.UpdatedAt.IsZero())
}

func TestCache_PeekReportsLoading(t *testing.T) {
	f := newCountingFetcher(true)
	c := NewCache(f.fetch, Config{})

	assert.Equal(t, Entry{}, c.Peek(ImagesKey))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Get(context.Background(), ImagesKey)
	}()
	waitStarted(t, f)

	loading := c.Peek(ImagesKey)
	assert.True(t, loading.Loading)
	assert.True(t, loading.Validating)
	assert.Nil(t, loading.Data)

	close(f.gate)
	<-done

	loaded := c.Peek(ImagesKey)
	assert.False(t, loaded.Loading)
	assert.False(t, loaded.Validating)
	assert.NotNil(t, loaded.Data)
}

func TestCache_RevalidateRunsExactlyOneFetch(t *testing.T) {
	f := newCountingFetcher(false)
	c := NewCache(f.fetch, Config{})
	ctx := context.Background()

	before, err := c.Get(ctx, ImagesKey)
	require.NoError(t, err)
	require.Equal(t, int64(1), f.calls.Load())

	after, err := c.Revalidate(ctx, ImagesKey)
	require.NoError(t, err)
	assert.Equal(t, int64(2), f.calls.Load())
	assert.NotEqual(t, string(before.Data), string(after.Data))

	cached, err := c.Get(ctx, ImagesKey)
	require.NoError(t, err)
	assert.Equal(t, int64(2), f.calls.Load())
	assert.Equal(t, after.Data, cached.Data)
}

func TestCache_ReadsJoinRevalidation(t *testing.T) {
	f := newCountingFetcher(false)
	c := NewCache(f.fetch, Config{})
	ctx := context.Background()

	_, err := c.Get(ctx, ImagesKey)
	require.NoError(t, err)
	<-f.started

	f.gate = make(chan struct{})
	revalidated := make(chan Entry, 1)
	go func() {
		entry, _ := c.Revalidate(ctx, ImagesKey)
		revalidated <- entry
	}()
	waitStarted(t, f)

	stale := c.Peek(ImagesKey)
	assert.True(t, stale.Validating)
	assert.False(t, stale.Loading)
	assert.NotNil(t, stale.Data)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Get(ctx, ImagesKey)
			assert.NoError(t, err)
		}()
	}
	close(f.gate)
	wg.Wait()
	entry := <-revalidated

	assert.Equal(t, int64(2), f.calls.Load())
	assert.Equal(t, entry.Data, c.Peek(ImagesKey).Data)
}

func TestCache_OlderFetchNeverOverwritesNewer(t *testing.T) {
	f := newCountingFetcher(true)
	c := NewCache(f.fetch, Config{})
	ctx := context.Background()

	slow := make(chan Entry, 1)
	go func() {
		entry, _ := c.Get(ctx, ImagesKey)
		slow <- entry
	}()
	waitStarted(t, f)

	// let the revalidation through while the first fetch is still blocked
	revalidated := make(chan Entry, 1)
	go func() {
		entry, _ := c.Revalidate(ctx, ImagesKey)
		revalidated <- entry
	}()
	waitStarted(t, f)
	f.gate <- struct{}{}
	f.gate <- struct{}{}

	first := <-slow
	newer := <-revalidated
	require.NotEqual(t, string(first.Data), string(newer.Data))

	assert.Equal(t, newer.Data, c.Peek(ImagesKey).Data)
	assert.Equal(t, int64(2), f.calls.Load())
}

func TestCache_FailureKeepsLastPayload(t *testing.T) {
	f := newCountingFetcher(false)
	c := NewCache(f.fetch, Config{})
	ctx := context.Background()

	good, err := c.Get(ctx, ImagesKey)
	require.NoError(t, err)

	f.fail.Store(true)
	failed, err := c.Revalidate(ctx, ImagesKey)
	require.Error(t, err)

	var fe *ClientFetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, ImagesKey, fe.Key)
	assert.Contains(t, fe.Message, "connection refused")
	assert.Equal(t, good.Data, failed.Data)
	assert.Equal(t, good.Data, c.Peek(ImagesKey).Data)
	assert.Error(t, c.Peek(ImagesKey).Err)

	// an entry whose last fetch failed is fetched again on the next read
	f.fail.Store(false)
	recovered, err := c.Get(ctx, ImagesKey)
	require.NoError(t, err)
	assert.Nil(t, recovered.Err)
	assert.Equal(t, int64(3), f.calls.Load())
}

func TestCache_MaxAge(t *testing.T) {
	f := newCountingFetcher(false)
	c := NewCache(f.fetch, Config{MaxAge: time.Minute})
	now := time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := c.Get(ctx, ImagesKey)
	require.NoError(t, err)

	now = now.Add(30 * time.Second)
	_, err = c.Get(ctx, ImagesKey)
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.calls.Load())

	now = now.Add(time.Minute)
	_, err = c.Get(ctx, ImagesKey)
	require.NoError(t, err)
	assert.Equal(t, int64(2), f.calls.Load())
}

func TestCache_CanceledWaiterLeavesFetchRunning(t *testing.T) {
	f := newCountingFetcher(true)
	c := NewCache(f.fetch, Config{})
	ctx, cancel := context.WithCancel(context.Background())

	errs := make(chan error, 1)
	go func() {
		_, err := c.Get(ctx, ImagesKey)
		errs <- err
	}()
	waitStarted(t, f)
	cancel()
	assert.ErrorIs(t, <-errs, context.Canceled)

	close(f.gate)
	require.Eventually(t, func() bool {
		return c.Peek(ImagesKey).Data != nil
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), f.calls.Load())
}

func TestCache_KeysAreIndependentAndBounded(t *testing.T) {
	f := newCountingFetcher(false)
	c := NewCache(f.fetch, Config{MaxEntries: 2})
	ctx := context.Background()

	for _, key := range []string{ImageKey("a"), ImageKey("b"), ImageKey("c")} {
		_, err := c.Get(ctx, key)
		require.NoError(t, err)
	}

	assert.Equal(t, int64(3), f.calls.Load())
	assert.Equal(t, Entry{}, c.Peek(ImageKey("a")))
	assert.NotNil(t, c.Peek(ImageKey("c")).Data)
}

func TestCache_RevalidateAfterEvictionStartsOwnFetch(t *testing.T) {
	f := newCountingFetcher(true)
	c := NewCache(f.fetch, Config{MaxEntries: 1})
	ctx := context.Background()

	go func() { _, _ = c.Revalidate(ctx, ImagesKey) }()
	waitStarted(t, f)

	// evicts the listing while its re-fetch is still running
	go func() { _, _ = c.Get(ctx, ImageKey("b")) }()
	waitStarted(t, f)

	second := make(chan Entry, 1)
	go func() {
		entry, _ := c.Revalidate(ctx, ImagesKey)
		second <- entry
	}()
	waitStarted(t, f)
	assert.Equal(t, int64(3), f.calls.Load())

	for i := 0; i < 3; i++ {
		f.gate <- struct{}{}
	}
	entry := <-second
	assert.Equal(t, fmt.Sprintf(`{"key":%q,"n":3}`, ImagesKey), string(entry.Data))
	assert.Equal(t, int64(3), f.calls.Load())
}

func TestImageKey(t *testing.T) {
	assert.Equal(t, "/api/images/abc", ImageKey("abc"))
	assert.Equal(t, "/api/images/pets/rex", ImageKey("pets/rex"))
	assert.Equal(t, "/api/images/with%20space", ImageKey("with space"))
	assert.Equal(t, "/api/images/what%3F", ImageKey("what?"))
}
