// Package cache implements the three process-local stores the accessor
// shares across requests: headers, directory/resource blobs, and
// subdivided tiles. Concurrent loads for the same key are coalesced so
// only one actually reads the archive; stale entries are pruned by
// recency (headers, directories/resources) or a coarse size-halving rule
// (subdivided tiles).
package cache

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/esri-tilepkg/tilepkg/internal/bundle"
	"github.com/esri-tilepkg/tilepkg/internal/tileheader"
)

// DefaultMaxEntries is the header/directory/resource store capacity used
// when a non-positive value is passed to New.
const DefaultMaxEntries = 100

// Kind distinguishes the two things a directory/resource slot can hold,
// since a path and an archive key alone are not unique across them (a
// bundle path is never also served as a raw resource, but the tag keeps
// the two namespaces explicit rather than relying on that convention).
type Kind int

const (
	KindResource Kind = iota
	KindTileIndex
)

type dirResourceKey struct {
	ArchiveKey string
	ETag       string
	Path       string
	Kind       Kind
}

func (k dirResourceKey) String() string {
	return fmt.Sprintf("%s|%s|%s|%d", k.ArchiveKey, k.ETag, k.Path, k.Kind)
}

type subdividedKey struct {
	ArchiveKey string
	Z, X, Y    uint32
}

func (k subdividedKey) String() string {
	return fmt.Sprintf("%s|%d|%d|%d", k.ArchiveKey, k.Z, k.X, k.Y)
}

type tileBytesKey struct {
	ArchiveKey string
	ETag       string
	Path       string
	X, Y       uint32
}

func (k tileBytesKey) String() string {
	return fmt.Sprintf("%s|%s|%s|%d|%d", k.ArchiveKey, k.ETag, k.Path, k.X, k.Y)
}

type lruEntry struct {
	value    interface{}
	lastUsed uint64
}

// Cache holds the header store, the directory/resource store, and the
// subdivided-tile store, each with its own coalescing group so an
// in-flight header load never blocks an in-flight resource load.
type Cache struct {
	maxEntries int

	mu      sync.Mutex
	clock   uint64
	headers map[string]*lruEntry
	dirRes  map[dirResourceKey]*lruEntry

	subMu      sync.Mutex
	subdivided map[subdividedKey][]byte

	headerCoalescer *coalescer
	dirResCoalescer *coalescer
	subCoalescer    *coalescer
	tileCoalescer   *coalescer
}

// Option configures a Cache constructed by New.
type Option func(*cacheOptions)

type cacheOptions struct {
	logger *logrus.Entry
}

// WithLogger attaches a logger used to correlate coalesced loads (each
// gets its own id, logged at Debug on join/start) across the
// header→directory→bytes→decompress→subdivide chain.
func WithLogger(logger *logrus.Entry) Option {
	return func(o *cacheOptions) { o.logger = logger }
}

// New returns an empty Cache. maxEntries <= 0 uses DefaultMaxEntries.
func New(maxEntries int, opts ...Option) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	o := cacheOptions{logger: logrus.NewEntry(logrus.StandardLogger())}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache{
		maxEntries:      maxEntries,
		headers:         make(map[string]*lruEntry),
		dirRes:          make(map[dirResourceKey]*lruEntry),
		subdivided:      make(map[subdividedKey][]byte),
		headerCoalescer: newCoalescer(o.logger),
		dirResCoalescer: newCoalescer(o.logger),
		subCoalescer:    newCoalescer(o.logger),
		tileCoalescer:   newCoalescer(o.logger),
	}
}

// GetHeader returns the cached Header for archiveKey, invoking load on a
// miss. Concurrent misses for the same archiveKey share one load.
func (c *Cache) GetHeader(ctx context.Context, archiveKey string, load func(context.Context) (*tileheader.Header, error)) (*tileheader.Header, error) {
	if h, ok := c.peekHeader(archiveKey); ok {
		return h, nil
	}
	v, err := c.headerCoalescer.Do(ctx, archiveKey, func(ctx context.Context) (interface{}, error) {
		return load(ctx)
	})
	if err != nil {
		return nil, err
	}
	h, _ := v.(*tileheader.Header)
	c.storeHeader(archiveKey, h)
	return h, nil
}

// InvalidateHeader drops the cached header for archiveKey, forcing the
// next GetHeader call to reload it. Called on ErrEtagMismatch.
func (c *Cache) InvalidateHeader(archiveKey string) {
	c.mu.Lock()
	delete(c.headers, archiveKey)
	c.mu.Unlock()
}

func (c *Cache) peekHeader(key string) (*tileheader.Header, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.headers[key]
	if !ok {
		return nil, false
	}
	c.clock++
	e.lastUsed = c.clock
	h, _ := e.value.(*tileheader.Header)
	return h, true
}

func (c *Cache) storeHeader(key string, h *tileheader.Header) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.headers[key]; !exists && len(c.headers) >= c.maxEntries {
		evictLRU(c.headers)
	}
	c.clock++
	c.headers[key] = &lruEntry{value: h, lastUsed: c.clock}
}

// GetResource returns the cached bytes of the resource at path, invoking
// load on a miss.
func (c *Cache) GetResource(ctx context.Context, archiveKey, etag, path string, load func(context.Context) ([]byte, error)) ([]byte, error) {
	key := dirResourceKey{ArchiveKey: archiveKey, ETag: etag, Path: path, Kind: KindResource}
	v, err := c.getDirRes(ctx, key, func(ctx context.Context) (interface{}, error) {
		return load(ctx)
	})
	if err != nil {
		return nil, err
	}
	b, _ := v.([]byte)
	return b, nil
}

// GetTileIndex returns the cached BundleDirectory for the bundle at path,
// invoking load on a miss.
func (c *Cache) GetTileIndex(ctx context.Context, archiveKey, etag, path string, load func(context.Context) (*bundle.Directory, error)) (*bundle.Directory, error) {
	key := dirResourceKey{ArchiveKey: archiveKey, ETag: etag, Path: path, Kind: KindTileIndex}
	v, err := c.getDirRes(ctx, key, func(ctx context.Context) (interface{}, error) {
		return load(ctx)
	})
	if err != nil {
		return nil, err
	}
	d, _ := v.(*bundle.Directory)
	return d, nil
}

func (c *Cache) getDirRes(ctx context.Context, key dirResourceKey, load func(context.Context) (interface{}, error)) (interface{}, error) {
	if v, ok := c.peekDirRes(key); ok {
		return v, nil
	}
	v, err := c.dirResCoalescer.Do(ctx, key.String(), load)
	if err != nil {
		return nil, err
	}
	c.storeDirRes(key, v)
	return v, nil
}

func (c *Cache) peekDirRes(key dirResourceKey) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.dirRes[key]
	if !ok {
		return nil, false
	}
	c.clock++
	e.lastUsed = c.clock
	return e.value, true
}

func (c *Cache) storeDirRes(key dirResourceKey, v interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.dirRes[key]; !exists && len(c.dirRes) >= c.maxEntries {
		evictLRU(c.dirRes)
	}
	c.clock++
	c.dirRes[key] = &lruEntry{value: v, lastUsed: c.clock}
}

// GetTileBytes coalesces concurrent loads of the same tile slab so that
// N identical in-flight GetZxy calls for a direct-hit (z,x,y) issue
// exactly one byte-range read against the source, per the coordinate's
// (archiveKey, etag, path, x, y). Unlike GetResource/GetTileIndex, the
// result is not retained once the in-flight load finishes: §4.H's
// stores don't include a long-lived tile-byte cache, only de-duplication
// of concurrent reads is required here.
func (c *Cache) GetTileBytes(ctx context.Context, archiveKey, etag, path string, x, y uint32, load func(context.Context) ([]byte, bool, error)) ([]byte, bool, error) {
	key := tileBytesKey{ArchiveKey: archiveKey, ETag: etag, Path: path, X: x, Y: y}
	type result struct {
		bytes []byte
		found bool
	}
	v, err := c.tileCoalescer.Do(ctx, key.String(), func(ctx context.Context) (interface{}, error) {
		b, found, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return result{bytes: b, found: found}, nil
	})
	if err != nil {
		return nil, false, err
	}
	r, _ := v.(result)
	return r.bytes, r.found, nil
}

// GetSubdivided returns the cached bytes of a previously synthesized
// (z,x,y) tile for archiveKey, invoking load on a miss.
func (c *Cache) GetSubdivided(ctx context.Context, archiveKey string, z, x, y uint32, load func(context.Context) ([]byte, error)) ([]byte, error) {
	key := subdividedKey{ArchiveKey: archiveKey, Z: z, X: x, Y: y}
	if b, ok := c.peekSubdivided(key); ok {
		return b, nil
	}
	v, err := c.subCoalescer.Do(ctx, key.String(), func(ctx context.Context) (interface{}, error) {
		return load(ctx)
	})
	if err != nil {
		return nil, err
	}
	b, _ := v.([]byte)
	c.storeSubdivided(key, b)
	return b, nil
}

func (c *Cache) peekSubdivided(key subdividedKey) ([]byte, bool) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	b, ok := c.subdivided[key]
	return b, ok
}

func (c *Cache) storeSubdivided(key subdividedKey, b []byte) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	c.subdivided[key] = b
	if len(c.subdivided) > 2*c.maxEntries {
		toDelete := len(c.subdivided) / 2
		for k := range c.subdivided {
			if toDelete <= 0 {
				break
			}
			delete(c.subdivided, k)
			toDelete--
		}
	}
}

// evictLRU removes the single least-recently-used entry from m.
func evictLRU[K comparable](m map[K]*lruEntry) {
	var oldestKey K
	oldest := uint64(math.MaxUint64)
	found := false
	for k, e := range m {
		if !found || e.lastUsed < oldest {
			oldest = e.lastUsed
			oldestKey = k
			found = true
		}
	}
	if found {
		delete(m, oldestKey)
	}
}
