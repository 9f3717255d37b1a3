package httpsource_test

import (
	"bytes"
	"context"
	nethttp "net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/esri-tilepkg/tilepkg"
	"github.com/esri-tilepkg/tilepkg/httpsource"
)

func TestSource_Read(t *testing.T) {
	t.Parallel()

	data := []byte("hello tilepackage world")
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("ETag", `"archive-v1"`)
		nethttp.ServeContent(w, r, "archive.tpkx", time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(server.Close)

	src, err := httpsource.New(server.URL)
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), src.Size())
	require.Equal(t, "archive-v1", src.ETag())

	tests := []struct {
		name   string
		offset int64
		length int64
		want   string
	}{
		{name: "read from middle", offset: 6, length: 5, want: "tilep"},
		{name: "read clamps at end of archive", offset: int64(len(data) - 3), length: 10, want: "rld"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := src.Read(context.Background(), tt.offset, tt.length)
			require.NoError(t, err)
			require.Equal(t, tt.want, string(res.Bytes))
			require.Equal(t, "archive-v1", res.ETag)
		})
	}
}

func TestSource_New_FallsBackToHeadWhenRangeUnsupported(t *testing.T) {
	t.Parallel()

	data := []byte("range unsupported archive")
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method == nethttp.MethodHead {
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
			w.Header().Set("ETag", `"head-etag"`)
			return
		}
		_, _ = w.Write(data)
	}))
	t.Cleanup(server.Close)

	src, err := httpsource.New(server.URL)
	require.NoError(t, err)
	require.Equal(t, int64(len(data)), src.Size())
	require.Equal(t, "head-etag", src.ETag())
}

func TestSource_Read_ETagChangeMidSessionRaisesMismatch(t *testing.T) {
	t.Parallel()

	data := []byte("hello tilepackage world")
	var served int32

	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method == nethttp.MethodHead {
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
			w.Header().Set("ETag", `"v1"`)
			return
		}
		// The first GET is New's own probe, the second is the caller's
		// first real read (still the original ETag) and the third is
		// where the origin's content actually changes underneath it.
		n := atomic.AddInt32(&served, 1)
		if n > 2 {
			w.Header().Set("ETag", `"v2"`)
		} else {
			w.Header().Set("ETag", `"v1"`)
		}
		nethttp.ServeContent(w, r, "archive.tpkx", time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(server.Close)

	src, err := httpsource.New(server.URL)
	require.NoError(t, err)
	require.Equal(t, "v1", src.ETag())

	_, err = src.Read(context.Background(), 0, 5)
	require.NoError(t, err)

	_, err = src.Read(context.Background(), 0, 5)
	require.ErrorIs(t, err, tilepkg.ErrEtagMismatch)
	require.True(t, src.MustReload())

	require.NoError(t, src.Reprobe(context.Background()))
	require.False(t, src.MustReload())
	require.Equal(t, "v2", src.ETag())
}

func TestSource_Read_RangeNotSatisfiableUpdatesSizeAndRetries(t *testing.T) {
	t.Parallel()

	full := []byte("hello tilepackage world, now longer than before")
	truncated := full[:10]
	var gets int32

	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Method == nethttp.MethodHead {
			w.Header().Set("Content-Length", strconv.Itoa(len(full)))
			w.Header().Set("ETag", `"stale-size"`)
			return
		}
		// The first GET is New's own size/ETag probe, served against the
		// full body. The second is the caller's real read, landing after
		// the archive has shrunk underneath it: it gets an authoritative
		// 416 naming the new total, so the third (the source's own retry,
		// re-clamped to that total) is the one that actually succeeds.
		switch atomic.AddInt32(&gets, 1) {
		case 1:
			w.Header().Set("ETag", `"stale-size"`)
			nethttp.ServeContent(w, r, "archive.tpkx", time.Time{}, bytes.NewReader(full))
		case 2:
			w.Header().Set("Content-Range", "bytes */10")
			w.WriteHeader(nethttp.StatusRequestedRangeNotSatisfiable)
		default:
			w.Header().Set("ETag", `"stale-size"`)
			nethttp.ServeContent(w, r, "archive.tpkx", time.Time{}, bytes.NewReader(truncated))
		}
	}))
	t.Cleanup(server.Close)

	src, err := httpsource.New(server.URL)
	require.NoError(t, err)
	require.Equal(t, int64(len(full)), src.Size())

	res, err := src.Read(context.Background(), 0, 5)
	require.NoError(t, err)
	require.Equal(t, string(truncated[:5]), string(res.Bytes))
	require.Equal(t, int64(len(truncated)), src.Size())
}

func TestSource_WithHeader_sentOnEveryRequest(t *testing.T) {
	t.Parallel()

	data := []byte("authorized archive bytes")
	var sawAuth int32
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.Header.Get("Authorization") == "Bearer token" {
			atomic.AddInt32(&sawAuth, 1)
		}
		nethttp.ServeContent(w, r, "archive.tpkx", time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(server.Close)

	src, err := httpsource.New(server.URL, httpsource.WithHeader("Authorization", "Bearer token"))
	require.NoError(t, err)

	_, err = src.Read(context.Background(), 0, 4)
	require.NoError(t, err)
	require.GreaterOrEqual(t, atomic.LoadInt32(&sawAuth), int32(2))
}
