package streaming

import (
	"bytes"
	"context"
	"sync"

	"github.com/budget-analyzer/service-common/internal/runtime/logging"
)

// CachedBodyRequest holds a request whose body has been materialized once
// so it can be read for logging and still be consumed in full downstream.
type CachedBodyRequest struct {
	req   *Request
	cache *CachedStream
}

// NewCachedBodyRequest caches req's body. The upstream body is read on the
// first access, by either the logger or the handler, and never again.
func NewCachedBodyRequest(ctx context.Context, req *Request) *CachedBodyRequest {
	body := req.Body
	if body == nil {
		body = Empty()
	}
	return &CachedBodyRequest{req: req, cache: Cache(ctx, body)}
}

// Request returns a copy of the original request whose Body replays the
// cache.
func (c *CachedBodyRequest) Request() *Request {
	out := c.req.Clone()
	out.Body = c.cache.Stream()
	return out
}

// CachedBody returns the raw cached bytes.
func (c *CachedBodyRequest) CachedBody() *Deferred[[]byte] {
	return c.cache.Bytes()
}

// CachedBodyAsString renders the cached body for a log line, decoded per the
// request's Content-Type charset and truncated at maxBytes.
func (c *CachedBodyRequest) CachedBodyAsString(maxBytes int) *Deferred[string] {
	contentType := c.req.Header.Get("Content-Type")
	return Then(c.cache.Bytes(), func(data []byte) (string, error) {
		return logging.FormatBody(data, len(data), contentType, maxBytes), nil
	})
}

// Release drops the cached body.
func (c *CachedBodyRequest) Release() { c.cache.Release() }

// CapturingResponse copies the leading bytes of every outgoing chunk into a
// buffer while forwarding the chunk itself untouched.
type CapturingResponse struct {
	Response
	limit int

	mu       sync.Mutex
	buf      bytes.Buffer
	total    int
	released bool
}

// NewCapturingResponse wraps resp, keeping at most limit bytes.
func NewCapturingResponse(resp Response, limit int) *CapturingResponse {
	if limit < 0 {
		limit = 0
	}
	return &CapturingResponse{Response: resp, limit: limit}
}

func (c *CapturingResponse) WriteWith(ctx context.Context, body *Stream) *Deferred[struct{}] {
	if body == nil {
		body = Empty()
	}
	return c.Response.WriteWith(ctx, Tap(body, c.capture))
}

func (c *CapturingResponse) capture(p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total += len(p)
	if c.released {
		return
	}
	if room := c.limit - c.buf.Len(); room > 0 {
		if room > len(p) {
			room = len(p)
		}
		c.buf.Write(p[:room])
	}
}

// Body returns a copy of the captured bytes.
func (c *CapturingResponse) Body() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return bytes.Clone(c.buf.Bytes())
}

// Total returns the number of body bytes that passed through.
func (c *CapturingResponse) Total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}

// Release drops the captured bytes and stops capturing.
func (c *CapturingResponse) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released = true
	c.buf = bytes.Buffer{}
}

// Unwrap returns the decorated response.
func (c *CapturingResponse) Unwrap() Response { return c.Response }
