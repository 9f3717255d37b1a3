package cache

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/esri-tilepkg/tilepkg/internal/tileheader"
)

func TestCache_GetHeader_coalescesConcurrentMisses(t *testing.T) {
	c := New(10)
	var loads int64
	started := make(chan struct{})
	release := make(chan struct{})

	load := func(ctx context.Context) (*tileheader.Header, error) {
		if atomic.AddInt64(&loads, 1) == 1 {
			close(started)
			<-release
		}
		return &tileheader.Header{DisplayName: "a"}, nil
	}

	var wg sync.WaitGroup
	results := make([]*tileheader.Header, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := c.GetHeader(context.Background(), "archive", load)
			require.NoError(t, err)
			results[i] = h
		}(i)
	}

	<-started
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt64(&loads))
	for _, h := range results {
		assert.Equal(t, "a", h.DisplayName)
	}
}

func TestCache_GetHeader_cachedOnSecondCall(t *testing.T) {
	c := New(10)
	var loads int64
	load := func(ctx context.Context) (*tileheader.Header, error) {
		atomic.AddInt64(&loads, 1)
		return &tileheader.Header{DisplayName: "a"}, nil
	}

	_, err := c.GetHeader(context.Background(), "archive", load)
	require.NoError(t, err)
	_, err = c.GetHeader(context.Background(), "archive", load)
	require.NoError(t, err)

	assert.EqualValues(t, 1, atomic.LoadInt64(&loads))
}

func TestCache_InvalidateHeader_forcesReload(t *testing.T) {
	c := New(10)
	var loads int64
	load := func(ctx context.Context) (*tileheader.Header, error) {
		n := atomic.AddInt64(&loads, 1)
		return &tileheader.Header{DisplayName: fmt.Sprintf("v%d", n)}, nil
	}

	h1, err := c.GetHeader(context.Background(), "archive", load)
	require.NoError(t, err)
	assert.Equal(t, "v1", h1.DisplayName)

	c.InvalidateHeader("archive")

	h2, err := c.GetHeader(context.Background(), "archive", load)
	require.NoError(t, err)
	assert.Equal(t, "v2", h2.DisplayName)
	assert.EqualValues(t, 2, atomic.LoadInt64(&loads))
}

func TestCache_GetHeader_respectsCallerCancellation(t *testing.T) {
	c := New(10)
	release := make(chan struct{})
	load := func(ctx context.Context) (*tileheader.Header, error) {
		<-release
		return &tileheader.Header{}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.GetHeader(ctx, "archive", load)
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller did not return promptly")
	}
	close(release)
}

func TestCache_headerEviction_dropsLeastRecentlyUsed(t *testing.T) {
	c := New(2)
	load := func(name string) func(context.Context) (*tileheader.Header, error) {
		return func(ctx context.Context) (*tileheader.Header, error) {
			return &tileheader.Header{DisplayName: name}, nil
		}
	}

	_, err := c.GetHeader(context.Background(), "a", load("a"))
	require.NoError(t, err)
	_, err = c.GetHeader(context.Background(), "b", load("b"))
	require.NoError(t, err)
	// touch "a" so "b" becomes the least recently used
	_, err = c.GetHeader(context.Background(), "a", load("a"))
	require.NoError(t, err)
	_, err = c.GetHeader(context.Background(), "c", load("c"))
	require.NoError(t, err)

	_, stillB := c.peekHeader("b")
	_, stillA := c.peekHeader("a")
	_, stillC := c.peekHeader("c")
	assert.False(t, stillB)
	assert.True(t, stillA)
	assert.True(t, stillC)
}

func TestCache_GetResource_cachedAndSeparatedByETag(t *testing.T) {
	c := New(10)
	var loads int64
	load := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt64(&loads, 1)
		return []byte("payload"), nil
	}

	b1, err := c.GetResource(context.Background(), "archive", "etag1", "root.json", load)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), b1)

	_, err = c.GetResource(context.Background(), "archive", "etag1", "root.json", load)
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt64(&loads))

	// a new ETag is a distinct key, so it reloads rather than serving stale bytes
	_, err = c.GetResource(context.Background(), "archive", "etag2", "root.json", load)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt64(&loads))
}

func TestCache_GetSubdivided_coalescesAndCaches(t *testing.T) {
	c := New(10)
	var loads int64
	load := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt64(&loads, 1)
		return []byte("tile"), nil
	}

	_, err := c.GetSubdivided(context.Background(), "archive", 10, 5, 5, load)
	require.NoError(t, err)
	_, err = c.GetSubdivided(context.Background(), "archive", 10, 5, 5, load)
	require.NoError(t, err)

	assert.EqualValues(t, 1, atomic.LoadInt64(&loads))
}

func TestCache_subdividedEviction_halvesWhenOverCapacity(t *testing.T) {
	c := New(2) // maxEntries=2, halving trigger at >4 entries

	for i := uint32(0); i < 6; i++ {
		_, err := c.GetSubdivided(context.Background(), "archive", 10, i, 0, func(ctx context.Context) ([]byte, error) {
			return []byte{byte(i)}, nil
		})
		require.NoError(t, err)
	}

	c.subMu.Lock()
	n := len(c.subdivided)
	c.subMu.Unlock()
	assert.LessOrEqual(t, n, 6)
	assert.Less(t, n, 6, "eviction should have dropped at least one entry once the store exceeded 2*maxEntries")
}
