package subdivide

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPool_boundsConcurrency(t *testing.T) {
	pool := NewPool(2)
	var current, max int64

	run := func() {
		_, _ = pool.Run(context.Background(), func() ([]byte, error) {
			n := atomic.AddInt64(&current, 1)
			for {
				m := atomic.LoadInt64(&max)
				if n <= m || atomic.CompareAndSwapInt64(&max, m, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt64(&current, -1)
			return nil, nil
		})
	}

	done := make(chan struct{})
	for i := 0; i < 6; i++ {
		go func() {
			run()
			done <- struct{}{}
		}()
	}
	for i := 0; i < 6; i++ {
		<-done
	}

	assert.LessOrEqual(t, atomic.LoadInt64(&max), int64(2))
}

func TestPool_cancelledContext(t *testing.T) {
	pool := NewPool(1)

	// Occupy the only slot so the cancelled Run below cannot proceed by
	// racing the channel send against ctx.Done() in the select.
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = pool.Run(context.Background(), func() ([]byte, error) {
			close(started)
			<-release
			return nil, nil
		})
	}()
	<-started
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pool.Run(ctx, func() ([]byte, error) { return []byte("x"), nil })
	assert.Error(t, err)
}
