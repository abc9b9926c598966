package blocking

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net"
	"net/http"
)

// CachingRequest holds a fully read request body that can be read any number
// of times. The request handed downstream reads from the cache.
type CachingRequest struct {
	*http.Request
	body []byte
	err  error
}

// NewCachingRequest drains r.Body. A read error is kept: the downstream body
// yields the bytes read so far followed by the same error.
func NewCachingRequest(r *http.Request) *CachingRequest {
	cr := &CachingRequest{Request: r}
	if r.Body == nil || r.Body == http.NoBody {
		return cr
	}
	cr.body, cr.err = io.ReadAll(r.Body)
	_ = r.Body.Close()

	var downstream io.Reader = bytes.NewReader(cr.body)
	if cr.err != nil {
		downstream = io.MultiReader(downstream, errReader{cr.err})
	}
	r.Body = io.NopCloser(downstream)
	return cr
}

// Body returns the cached bytes.
func (c *CachingRequest) Body() []byte { return c.body }

// Reader returns a fresh reader over the cached bytes.
func (c *CachingRequest) Reader() io.Reader { return bytes.NewReader(c.body) }

// Err reports the error met while draining the original body, if any.
func (c *CachingRequest) Err() error { return c.err }

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }

// CachingResponseWriter forwards every write unchanged and keeps at most
// limit leading bytes for logging, along with the status and total size.
type CachingResponseWriter struct {
	http.ResponseWriter
	limit       int
	status      int
	wroteHeader bool
	total       int
	buf         bytes.Buffer
}

// NewCachingResponseWriter wraps w. A limit of zero only tracks status and
// size.
func NewCachingResponseWriter(w http.ResponseWriter, limit int) *CachingResponseWriter {
	if limit < 0 {
		limit = 0
	}
	return &CachingResponseWriter{ResponseWriter: w, limit: limit}
}

func (c *CachingResponseWriter) WriteHeader(status int) {
	if c.wroteHeader {
		return
	}
	c.status = status
	c.wroteHeader = true
	c.ResponseWriter.WriteHeader(status)
}

func (c *CachingResponseWriter) Write(p []byte) (int, error) {
	if !c.wroteHeader {
		c.WriteHeader(http.StatusOK)
	}
	n, err := c.ResponseWriter.Write(p)
	c.total += n
	if room := c.limit - c.buf.Len(); room > 0 && n > 0 {
		if room > n {
			room = n
		}
		c.buf.Write(p[:room])
	}
	return n, err
}

// Status returns the status sent, 200 when the handler wrote a body without
// one, or 0 when nothing has been written yet.
func (c *CachingResponseWriter) Status() int {
	return c.status
}

// Committed reports whether the status line has been sent.
func (c *CachingResponseWriter) Committed() bool { return c.wroteHeader }

// Body returns the captured prefix of the response body.
func (c *CachingResponseWriter) Body() []byte { return c.buf.Bytes() }

// Total returns the number of body bytes written.
func (c *CachingResponseWriter) Total() int { return c.total }

// Release drops the captured bytes.
func (c *CachingResponseWriter) Release() {
	c.buf = bytes.Buffer{}
}

func (c *CachingResponseWriter) Flush() {
	if !c.wroteHeader {
		c.WriteHeader(http.StatusOK)
	}
	if f, ok := c.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (c *CachingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := c.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("blocking: underlying ResponseWriter does not support hijacking")
	}
	return h.Hijack()
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (c *CachingResponseWriter) Unwrap() http.ResponseWriter {
	return c.ResponseWriter
}

// statusOrOK treats an untouched response as 200, which is what net/http
// sends when a handler returns without writing.
func statusOrOK(status int) int {
	if status == 0 {
		return http.StatusOK
	}
	return status
}
