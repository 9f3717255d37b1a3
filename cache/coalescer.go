package cache

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// coalescer shares one in-flight load among every caller requesting the
// same key, refcounting interest via refCtx so a caller's own
// cancellation only aborts the shared work once nobody else wants it.
type coalescer struct {
	mu       sync.Mutex
	inflight map[string]*refCtx
	group    singleflight.Group
	logger   *logrus.Entry
}

func newCoalescer(logger *logrus.Entry) *coalescer {
	return &coalescer{inflight: make(map[string]*refCtx), logger: logger}
}

// Do runs load exactly once per key among all concurrently coalesced
// callers. Each caller still observes its own ctx: a cancelled caller
// returns ctx.Err() immediately without waiting for the shared load.
func (c *coalescer) Do(ctx context.Context, key string, load func(context.Context) (interface{}, error)) (interface{}, error) {
	c.mu.Lock()
	rc, joined := c.inflight[key]
	if !joined {
		rc = newRefCtx()
		c.inflight[key] = rc
		c.logger.WithFields(logrus.Fields{"load": rc.id, "key": key}).Debug("cache: starting load")
	} else {
		c.logger.WithFields(logrus.Fields{"load": rc.id, "key": key}).Debug("cache: joining in-flight load")
	}
	c.mu.Unlock()

	sharedCtx := rc.Join(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		return load(sharedCtx)
	})

	select {
	case res := <-ch:
		c.mu.Lock()
		delete(c.inflight, key)
		c.mu.Unlock()
		rc.cancel()
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
