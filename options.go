package tilepkg

import "github.com/sirupsen/logrus"

// Option configures a PackageFacade constructed by New.
type Option func(*facadeOptions)

type facadeOptions struct {
	coverageCheck        bool
	maxDz                int
	maxCacheEntries      int
	subdivideConcurrency int
	logger               *logrus.Entry
}

func defaultOptions() facadeOptions {
	return facadeOptions{
		coverageCheck:        true,
		maxDz:                8,
		maxCacheEntries:      100,
		subdivideConcurrency: 4,
		logger:               logrus.NewEntry(logrus.StandardLogger()),
	}
}

// WithCoverageCheck toggles building the coverage map for VTPK archives
// (default true). Disabling it treats every VTPK as unindexed: a miss on
// the direct bundle lookup returns TileAbsent without attempting ancestor
// search or subdivision.
func WithCoverageCheck(enabled bool) Option {
	return func(o *facadeOptions) { o.coverageCheck = enabled }
}

// WithMaxDz caps how many zoom levels a synthesized tile may be derived
// from its ancestor (default 8). Exceeding it returns TileAbsent without
// invoking the subdivider.
func WithMaxDz(maxDz int) Option {
	return func(o *facadeOptions) { o.maxDz = maxDz }
}

// WithMaxCacheEntries sets the header/directory/resource cache's
// recency-pruned capacity (default 100). The subdivided-tile store is
// pruned once its population exceeds 2x this value.
func WithMaxCacheEntries(n int) Option {
	return func(o *facadeOptions) { o.maxCacheEntries = n }
}

// WithSubdivideConcurrency bounds how many subdivisions this facade runs
// at once (default 4).
func WithSubdivideConcurrency(n int) Option {
	return func(o *facadeOptions) { o.subdivideConcurrency = n }
}

// WithLogger attaches a logger used for subdivision diagnostics.
func WithLogger(logger *logrus.Entry) Option {
	return func(o *facadeOptions) { o.logger = logger }
}
