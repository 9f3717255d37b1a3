package tilepkg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb/maptile"
	"github.com/sirupsen/logrus"

	"github.com/esri-tilepkg/tilepkg/cache"
	"github.com/esri-tilepkg/tilepkg/internal/bundle"
	"github.com/esri-tilepkg/tilepkg/internal/coverage"
	"github.com/esri-tilepkg/tilepkg/internal/subdivide"
	"github.com/esri-tilepkg/tilepkg/internal/tileheader"
	"github.com/esri-tilepkg/tilepkg/internal/ziparchive"
)

// TileResult is the successful outcome of GetZxy: the tile's bytes plus
// whatever caching metadata the byte source observed on the response that
// produced them.
type TileResult struct {
	Bytes        []byte
	CacheControl string
	Expires      string
}

// Reprober is implemented by ByteSources that can refresh their observed
// size and ETag from the origin after a mismatch is detected
// (httpsource.Source does this). Sources that don't implement it — a
// local file, say — simply have no reprobe step before the retry.
type Reprober interface {
	Reprobe(ctx context.Context) error
}

// PackageFacade is a cached, ETag-consistent view over one TilePackage
// archive: it glues the byte source, archive index, header builder, tile
// locator, coverage map, and subdivider together behind four operations.
type PackageFacade struct {
	src        ByteSource
	archiveKey string
	cache      *cache.Cache
	pool       *subdivide.Pool
	logger     *logrus.Entry

	coverageCheck bool
	maxDz         int
}

// New builds a PackageFacade over src, identified by archiveKey (typically
// the archive's file path or URL). archiveKey's extension — ".tpkx" versus
// anything else — selects raster or vector descriptor handling.
func New(src ByteSource, archiveKey string, opts ...Option) *PackageFacade {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &PackageFacade{
		src:           src,
		archiveKey:    archiveKey,
		cache:         cache.New(o.maxCacheEntries, cache.WithLogger(o.logger)),
		pool:          subdivide.NewPool(o.subdivideConcurrency),
		logger:        o.logger,
		coverageCheck: o.coverageCheck,
		maxDz:         o.maxDz,
	}
}

// GetHeader returns the archive's Header, building and caching it on
// first call.
func (f *PackageFacade) GetHeader(ctx context.Context) (*tileheader.Header, error) {
	return withEtagRetry(f, ctx, f.loadHeader)
}

// GetZxy returns the tile at the given coordinate, or (nil, nil) when it
// is legitimately absent: out-of-range zoom, no bundle covering it,
// absent from its bundle with no usable ancestor, or its synthesis from
// that ancestor failed.
func (f *PackageFacade) GetZxy(ctx context.Context, tile maptile.Tile) (*TileResult, error) {
	return withEtagRetry(f, ctx, func(ctx context.Context) (*TileResult, error) {
		return f.getZxyAttempt(ctx, uint32(tile.Z), tile.X, tile.Y)
	})
}

// GetResource returns the raw bytes of the archive member at path, or
// (nil, nil) if no such member exists.
func (f *PackageFacade) GetResource(ctx context.Context, path string) ([]byte, error) {
	return withEtagRetry(f, ctx, func(ctx context.Context) ([]byte, error) {
		header, err := f.loadHeader(ctx)
		if err != nil {
			return nil, err
		}
		entry, ok := header.Files.Lookup(path)
		if !ok {
			return nil, nil
		}
		return f.cache.GetResource(ctx, f.archiveKey, header.ETag, path, func(ctx context.Context) ([]byte, error) {
			res, err := f.src.Read(ctx, int64(entry.PayloadOffset), int64(entry.Size)) //nolint:gosec // resource sizes bounded well below int64 in practice
			if err != nil {
				return nil, err
			}
			if uint64(len(res.Bytes)) != entry.Size {
				return nil, fmt.Errorf("%w: short read for %s", ErrMalformedArchive, path)
			}
			return res.Bytes, nil
		})
	})
}

// GetMetadata returns the decoded p12/metadata.json document (VTPK only),
// augmented with a "name" key from the Header's display name. It returns
// (nil, nil) when the archive carries no metadata document.
func (f *PackageFacade) GetMetadata(ctx context.Context) (map[string]interface{}, error) {
	return withEtagRetry(f, ctx, func(ctx context.Context) (map[string]interface{}, error) {
		header, err := f.loadHeader(ctx)
		if err != nil {
			return nil, err
		}
		if header.MetadataRange == nil {
			return nil, nil
		}
		raw, err := f.cache.GetResource(ctx, f.archiveKey, header.ETag, "p12/metadata.json", func(ctx context.Context) ([]byte, error) {
			res, err := f.src.Read(ctx, int64(header.MetadataRange.Offset), int64(header.MetadataRange.Size)) //nolint:gosec // metadata documents are small and well within int64 range
			if err != nil {
				return nil, err
			}
			return res.Bytes, nil
		})
		if err != nil {
			return nil, err
		}
		var doc map[string]interface{}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &doc); err != nil {
				return nil, fmt.Errorf("tilepkg: parsing metadata: %w", err)
			}
		}
		if doc == nil {
			doc = map[string]interface{}{}
		}
		doc["name"] = header.DisplayName
		return doc, nil
	})
}

func (f *PackageFacade) loadHeader(ctx context.Context) (*tileheader.Header, error) {
	return f.cache.GetHeader(ctx, f.archiveKey, func(ctx context.Context) (*tileheader.Header, error) {
		index, err := ziparchive.Load(ctx, f.src)
		if err != nil {
			return nil, err
		}
		return tileheader.Build(ctx, f.src, index, f.archiveKey, f.coverageCheck)
	})
}

// getZxyAttempt implements §4.I's getZxyAttempt: a direct bundle lookup,
// falling back to ancestor search and subdivision for indexed VTPKs.
func (f *PackageFacade) getZxyAttempt(ctx context.Context, z, x, y uint32) (*TileResult, error) {
	header, err := f.loadHeader(ctx)
	if err != nil {
		return nil, err
	}
	if z < header.MinZoom || z > header.MaxZoom {
		return nil, nil
	}

	direct, ok, err := f.fetchDirect(ctx, header, z, x, y)
	if err != nil {
		return nil, err
	}
	if ok {
		return direct, nil
	}

	if !header.IsIndexedVector() {
		return nil, nil
	}

	pz, px, py, found := coverage.AncestorSearch(header.Coverage, z, x, y, header.MinZoom)
	if !found {
		return nil, nil
	}
	if dz := int(z - pz); dz > f.maxDz {
		// MaxDzExceeded: returned as TileAbsent, subdivider never invoked.
		return nil, nil
	}

	return f.getSubdivided(ctx, pz, px, py, z, x, y)
}

func (f *PackageFacade) fetchDirect(ctx context.Context, header *tileheader.Header, z, x, y uint32) (*TileResult, bool, error) {
	locator := bundle.NewLocator(bundle.Prefix(header.BundlePrefix()), header.Files)
	path := locator.Path(z, x, y)
	file, ok := locator.FileEntry(path)
	if !ok {
		return nil, false, nil
	}

	dir, err := f.cache.GetTileIndex(ctx, f.archiveKey, header.ETag, path, func(ctx context.Context) (*bundle.Directory, error) {
		return bundle.Load(ctx, f.src, file.PayloadOffset)
	})
	if err != nil {
		return nil, false, err
	}

	raw, found, err := f.cache.GetTileBytes(ctx, f.archiveKey, header.ETag, path, x, y, func(ctx context.Context) ([]byte, bool, error) {
		return locator.Tile(ctx, f.src, file, dir, x, y, header.TileCompression)
	})
	if err != nil || !found {
		return nil, found, err
	}
	return &TileResult{Bytes: raw}, true, nil
}

// getSubdivided fetches the ancestor tile (recursing through the same
// attempt path, in case it too requires subdivision relative to a
// shallower ancestor) and synthesizes (z,x,y) from it, memoizing the
// result in the subdivided-tile store.
func (f *PackageFacade) getSubdivided(ctx context.Context, pz, px, py, z, x, y uint32) (*TileResult, error) {
	ancestor, err := f.getZxyAttempt(ctx, pz, px, py)
	if err != nil {
		return nil, err
	}
	if ancestor == nil {
		return nil, nil
	}

	out, err := f.cache.GetSubdivided(ctx, f.archiveKey, z, x, y, func(ctx context.Context) ([]byte, error) {
		return f.pool.Run(ctx, func() ([]byte, error) {
			return subdivide.Subdivide(ctx, ancestor.Bytes, pz, px, py, z, x, y, subdivide.Options{
				MaxDzWarn: f.maxDz,
				Logger:    f.logger,
			})
		})
	})
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, ErrContainmentViolation) {
			return nil, err
		}
		// Any other synthesis failure (e.g. a malformed ancestor MVT) is
		// logged and served as an absent tile.
		f.logger.WithError(err).WithFields(logrus.Fields{"z": z, "x": x, "y": y}).
			Warn("tilepkg: subdivision failed, tile treated as absent")
		return nil, nil
	}
	return &TileResult{Bytes: out}, nil
}

// withEtagRetry wraps op with the facade's single ETag-mismatch retry
// policy (§4.I, §7): the first ErrEtagMismatch invalidates the cached
// header, reprobes the source if it supports that, and retries op exactly
// once; a second mismatch propagates.
func withEtagRetry[T any](f *PackageFacade, ctx context.Context, op func(context.Context) (T, error)) (T, error) {
	v, err := op(ctx)
	if err == nil || !errors.Is(err, ErrEtagMismatch) {
		return v, err
	}

	f.cache.InvalidateHeader(f.archiveKey)
	if rp, ok := f.src.(Reprober); ok {
		if rerr := rp.Reprobe(ctx); rerr != nil {
			var zero T
			return zero, rerr
		}
	}
	return op(ctx)
}
