// Package fakesource provides a minimal in-memory core.ByteSource for
// use in internal package tests, avoiding a dependency from those packages
// on the root tilepkg package's test files.
package fakesource

import (
	"context"
	"fmt"

	"github.com/esri-tilepkg/tilepkg/internal/core"
)

// Source is an in-memory ByteSource backed by a byte slice.
type Source struct {
	data []byte
	etag string
}

// New returns a Source serving data.
func New(data []byte) *Source {
	return &Source{data: data}
}

// NewWithETag returns a Source serving data with a fixed ETag.
func NewWithETag(data []byte, etag string) *Source {
	return &Source{data: data, etag: etag}
}

func (s *Source) Size() int64 { return int64(len(s.data)) }

func (s *Source) ETag() string { return s.etag }

func (s *Source) Read(_ context.Context, offset, length int64) (core.ReadResult, error) {
	if offset < 0 || length < 0 || offset > int64(len(s.data)) {
		return core.ReadResult{}, fmt.Errorf("fakesource: out of range read offset=%d length=%d size=%d", offset, length, len(s.data))
	}
	end := offset + length
	if end > int64(len(s.data)) {
		end = int64(len(s.data))
	}
	out := make([]byte, end-offset)
	copy(out, s.data[offset:end])
	return core.ReadResult{Bytes: out, ETag: s.etag}, nil
}
