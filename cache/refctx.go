package cache

import (
	"context"

	"github.com/google/uuid"
)

// refCtx is a context shared by every caller currently coalesced onto one
// in-flight load. Each caller Join()s with its own context; the shared
// context is cancelled only once every joiner's own context has ended, so
// one caller giving up does not abort work that other callers still want
// (§5: "cancelling one caller does not abort a shared fetch other callers
// still want"). id correlates every log line touching this load across
// the header→directory→bytes→decompress→subdivide chain, regardless of
// which caller's goroutine happens to run it.
type refCtx struct {
	id     string
	ctx    context.Context //nolint:containedctx // deliberately shared across goroutines joining one coalesced load
	cancel context.CancelFunc
	count  chan int // buffered size-1 mailbox holding the current refcount
}

func newRefCtx() *refCtx {
	ctx, cancel := context.WithCancel(context.Background())
	r := &refCtx{id: uuid.New().String(), ctx: ctx, cancel: cancel, count: make(chan int, 1)}
	r.count <- 0
	return r
}

// Join registers callerCtx as an interested party and returns the shared
// context the coalesced load should run against.
func (r *refCtx) Join(callerCtx context.Context) context.Context {
	n := <-r.count
	n++
	r.count <- n

	go func() {
		select {
		case <-callerCtx.Done():
			r.depart()
		case <-r.ctx.Done():
		}
	}()
	return r.ctx
}

func (r *refCtx) depart() {
	n := <-r.count
	n--
	r.count <- n
	if n <= 0 {
		r.cancel()
	}
}
