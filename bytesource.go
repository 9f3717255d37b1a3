package tilepkg

import "github.com/esri-tilepkg/tilepkg/internal/core"

// ReadResult carries bytes read from a ByteSource along with whatever
// caching metadata the underlying transport observed.
type ReadResult = core.ReadResult

// ByteSource is a random-access byte range reader with a known size and an
// optional ETag. Implementations exist for local files (NewFileSource) and
// HTTP range requests (httpsource.New).
//
// A ByteSource must tolerate concurrent, overlapping reads: PackageFacade
// and Cache may issue reads from multiple goroutines against the same
// source.
type ByteSource = core.ByteSource
