// Package httpsource implements tilepkg.ByteSource over HTTP range requests.
package httpsource

import (
	"context"
	"fmt"
	"io"
	nethttp "net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/esri-tilepkg/tilepkg"
)

// Source implements tilepkg.ByteSource via HTTP range requests. It
// discovers total size and the initial ETag with a range probe (falling
// back to HEAD when the server omits Content-Range), and raises
// tilepkg.ErrEtagMismatch whenever a later response's ETag differs from
// the one recorded by that probe — the signal the cache layer uses to invalidate
// and retry exactly once (§4.A, §7 of the design).
type Source struct {
	url     string
	client  *nethttp.Client
	headers nethttp.Header
	logger  *logrus.Entry

	size int64

	// etag is the strong ETag recorded by the probe in New (or by the
	// latest Reprobe). mustReload is set once a later response disagrees;
	// it is reported by MustReload and cleared by Reprobe, and Read itself
	// does not consult it.
	etag       atomic.Value // string
	mustReload atomic.Bool
}

// Option configures a Source.
type Option func(*Source)

// WithClient overrides the HTTP client used for requests.
func WithClient(client *nethttp.Client) Option {
	return func(s *Source) { s.client = client }
}

// WithHeader sets a single header sent on every request (e.g. Authorization).
func WithHeader(key, value string) Option {
	return func(s *Source) {
		if s.headers == nil {
			s.headers = make(nethttp.Header)
		}
		s.headers.Set(key, value)
	}
}

// WithLogger attaches a logger for transport diagnostics.
func WithLogger(logger *logrus.Entry) Option {
	return func(s *Source) { s.logger = logger }
}

// New creates a Source backed by HTTP range requests against url. It probes
// the remote once to discover total size and the initial ETag.
func New(url string, opts ...Option) (*Source, error) {
	s := &Source{
		url:    url,
		client: nethttp.DefaultClient,
		logger: logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = nethttp.DefaultClient
	}

	size, etag, err := s.probe(context.Background())
	if err != nil {
		return nil, err
	}
	s.size = size
	s.etag.Store(etag)
	return s, nil
}

// Size returns the total size of the remote content.
func (s *Source) Size() int64 { return s.size }

// ETag returns the last-observed strong ETag, or "" if none has been seen.
func (s *Source) ETag() string {
	v, _ := s.etag.Load().(string)
	return v
}

// Read returns length bytes starting at offset via a Range request. If the
// response's ETag differs from the one already recorded for this source,
// it sets mustReload and returns tilepkg.ErrEtagMismatch instead of the
// bytes — the archive changed underneath us mid-session.
func (s *Source) Read(ctx context.Context, offset, length int64) (tilepkg.ReadResult, error) {
	if length < 0 || offset < 0 {
		return tilepkg.ReadResult{}, fmt.Errorf("%w: negative offset or length", tilepkg.ErrTransport)
	}
	if length == 0 {
		return tilepkg.ReadResult{}, nil
	}
	if offset >= s.size {
		return tilepkg.ReadResult{}, fmt.Errorf("%w: offset %d beyond size %d", tilepkg.ErrTransport, offset, s.size)
	}
	if offset+length > s.size {
		length = s.size - offset
	}

	resp, err := s.doRange(ctx, offset, offset+length-1, true)
	if err != nil {
		return tilepkg.ReadResult{}, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // best-effort drain for connection reuse
		_ = resp.Body.Close()
	}()

	etag := stripWeak(resp.Header.Get("ETag"))
	if err := s.checkETag(etag); err != nil {
		return tilepkg.ReadResult{}, err
	}

	buf := make([]byte, length)
	n, err := io.ReadFull(resp.Body, buf)
	if err != nil {
		return tilepkg.ReadResult{}, fmt.Errorf("%w: %v", tilepkg.ErrTransport, err) //nolint:errorlint // wraps an io error, not a sentinel
	}

	return tilepkg.ReadResult{
		Bytes:        buf[:n],
		ETag:         etag,
		CacheControl: resp.Header.Get("Cache-Control"),
		Expires:      resp.Header.Get("Expires"),
	}, nil
}

// doRange performs a range GET, retrying exactly once if the server
// returns 416 with an authoritative "Content-Range: bytes */N" — that
// response tells us our cached size is stale without it being an ETag
// mismatch (§4.A(iii)).
func (s *Source) doRange(ctx context.Context, off, end int64, allowRetry bool) (*nethttp.Response, error) {
	resp, err := s.rangeRequest(ctx, off, end)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tilepkg.ErrTransport, err) //nolint:errorlint // wraps a transport-layer error, not a sentinel
	}

	switch resp.StatusCode {
	case nethttp.StatusPartialContent:
		return resp, nil
	case nethttp.StatusRequestedRangeNotSatisfiable:
		total, ok := totalFromContentRange(resp.Header.Get("Content-Range"))
		resp.Body.Close()
		if ok {
			s.size = total
		}
		if allowRetry && ok && off < total {
			newEnd := end
			if newEnd >= total {
				newEnd = total - 1
			}
			return s.doRange(ctx, off, newEnd, false)
		}
		return nil, fmt.Errorf("%w: range not satisfiable", tilepkg.ErrTransport)
	case nethttp.StatusOK:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: range requests not supported", tilepkg.ErrTransport)
	default:
		status := resp.Status
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", tilepkg.ErrTransport, status)
	}
}

// checkETag compares the response ETag to the one already recorded for
// this source. An empty observed ETag (server sends none) is not treated
// as a mismatch — some origins simply don't emit validators.
func (s *Source) checkETag(observed string) error {
	if observed == "" {
		return nil
	}
	current := s.ETag()
	if current == "" {
		s.etag.Store(observed)
		return nil
	}
	if observed != current {
		s.mustReload.Store(true)
		s.logger.WithFields(logrus.Fields{"previous": current, "observed": observed, "url": s.url}).
			Warn("tilepkg: archive etag changed mid-session")
		return tilepkg.ErrEtagMismatch
	}
	return nil
}

// MustReload reports whether a prior read observed an ETag change. The
// facade clears this by calling Reprobe after invalidating its header slot.
func (s *Source) MustReload() bool {
	return s.mustReload.Load()
}

// Reprobe re-reads size and ETag from the origin and clears MustReload.
// The facade calls this as part of its single ETag-mismatch retry.
func (s *Source) Reprobe(ctx context.Context) error {
	size, etag, err := s.probe(ctx)
	if err != nil {
		return err
	}
	s.size = size
	s.etag.Store(etag)
	s.mustReload.Store(false)
	return nil
}

// probe discovers size and ETag via a "bytes=0-4" range request, falling
// back to HEAD when the server omits Content-Range.
func (s *Source) probe(ctx context.Context) (int64, string, error) {
	req, err := s.newRequest(ctx, nethttp.MethodGet)
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Range", "bytes=0-4")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", tilepkg.ErrTransport, err) //nolint:errorlint // wraps a transport-layer error, not a sentinel
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // best-effort drain for connection reuse
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == nethttp.StatusPartialContent {
		if total, ok := totalFromContentRange(resp.Header.Get("Content-Range")); ok {
			return total, stripWeak(resp.Header.Get("ETag")), nil
		}
	}

	// Some servers return 416 for a 0-4 probe against a zero/short body,
	// but still report the authoritative size in Content-Range.
	if resp.StatusCode == nethttp.StatusRequestedRangeNotSatisfiable {
		if total, ok := totalFromContentRange(resp.Header.Get("Content-Range")); ok {
			return total, stripWeak(resp.Header.Get("ETag")), nil
		}
	}

	return s.headProbe(ctx)
}

func (s *Source) headProbe(ctx context.Context) (int64, string, error) {
	req, err := s.newRequest(ctx, nethttp.MethodHead)
	if err != nil {
		return 0, "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("%w: %v", tilepkg.ErrTransport, err) //nolint:errorlint // wraps a transport-layer error, not a sentinel
	}
	defer resp.Body.Close()

	if resp.ContentLength < 0 {
		return 0, "", fmt.Errorf("%w: HEAD response missing Content-Length", tilepkg.ErrTransport)
	}
	return resp.ContentLength, stripWeak(resp.Header.Get("ETag")), nil
}

func (s *Source) newRequest(ctx context.Context, method string) (*nethttp.Request, error) {
	req, err := nethttp.NewRequestWithContext(ctx, method, s.url, nethttp.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", tilepkg.ErrTransport, err) //nolint:errorlint // wraps a request-construction error, not a sentinel
	}
	for key, values := range s.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "identity")
	}
	return req, nil
}

func (s *Source) rangeRequest(ctx context.Context, off, end int64) (*nethttp.Response, error) {
	req, err := s.newRequest(ctx, nethttp.MethodGet)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", off, end))
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 500 {
		resp.Body.Close()
		return nil, fmt.Errorf("range request failed: %s", resp.Status)
	}
	return resp, nil
}

// stripWeak drops a weak "W/" prefix and the surrounding quotes, so both
// `W/"v1"` and `"v1"` are surfaced as v1.
func stripWeak(etag string) string {
	return strings.Trim(strings.TrimPrefix(etag, "W/"), `"`)
}

func totalFromContentRange(value string) (int64, bool) {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, "bytes ") {
		return 0, false
	}
	parts := strings.SplitN(strings.TrimPrefix(value, "bytes "), "/", 2)
	if len(parts) != 2 || parts[1] == "*" {
		return 0, false
	}
	total, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || total < 0 {
		return 0, false
	}
	return total, true
}
