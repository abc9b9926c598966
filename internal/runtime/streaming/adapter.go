package streaming

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/budget-analyzer/service-common/internal/runtime/api"
	"github.com/budget-analyzer/service-common/internal/runtime/ids"
	"github.com/budget-analyzer/service-common/internal/runtime/logging"
)

// ErrResponseClosed is returned by writes attempted after the transport
// stopped waiting for the exchange.
var ErrResponseClosed = errors.New("servicecommon: response closed")

// AdapterOption configures NewHandler.
type AdapterOption func(*adapter)

// WithChunkSize sets the read size for request bodies.
func WithChunkSize(n int) AdapterOption {
	return func(a *adapter) { a.chunkSize = n }
}

// WithAdapterLogger sets the logger used for failures that reach the
// transport unhandled.
func WithAdapterLogger(logger logging.ServiceLogger) AdapterOption {
	return func(a *adapter) { a.logger = logger }
}

type adapter struct {
	handler   Handler
	chunkSize int
	logger    logging.ServiceLogger
}

// NewHandler serves h over net/http. ServeHTTP is the only place that waits:
// it blocks its own goroutine until the exchange settles or the client goes
// away.
func NewHandler(h Handler, opts ...AdapterOption) http.Handler {
	a := &adapter{handler: h, chunkSize: DefaultChunkSize}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *adapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := newHTTPResponse(w)
	defer resp.close()

	req := &Request{
		ID:         ids.NewRequestID(),
		Method:     r.Method,
		URL:        r.URL,
		Header:     r.Header,
		RemoteAddr: r.RemoteAddr,
		Body:       FromReader(r.Body, a.chunkSize),
	}
	ex := NewExchange(ctx, req, resp)

	_, err := invoke(func() *Deferred[struct{}] { return a.handler.Handle(ex) }).Await(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		if log := logging.FromContext(ctx, a.logger); log != nil {
			log.Error("Unhandled exchange failure", err, logging.LogFields{"request_id": req.ID})
		}
		if !resp.Committed() {
			resp.writeResolution(api.ResponseBuilder{}.Resolve(nil))
		}
		return
	}
	_ = resp.commit()
}

// httpResponse writes to a net/http ResponseWriter. Headers are staged in a
// map of its own and copied to the writer on commit. Writes are serialized
// and dropped once ServeHTTP has returned, and stages still running by then
// get a detached header map so the writer is never touched again.
type httpResponse struct {
	w http.ResponseWriter

	mu        sync.Mutex
	header    http.Header
	status    int
	committed bool
	closed    bool
}

func newHTTPResponse(w http.ResponseWriter) *httpResponse {
	return &httpResponse{w: w, header: make(http.Header)}
}

func (h *httpResponse) Header() http.Header {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return make(http.Header)
	}
	return h.header
}

func (h *httpResponse) SetStatus(status int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.committed {
		h.status = status
	}
}

func (h *httpResponse) Status() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

func (h *httpResponse) Committed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.committed
}

func (h *httpResponse) WriteWith(ctx context.Context, body *Stream) *Deferred[struct{}] {
	if err := h.commit(); err != nil {
		return Failed[struct{}](err)
	}
	return Go(ctx, func(ctx context.Context) (struct{}, error) {
		for chunk := range body.Subscribe(ctx) {
			if chunk.Err != nil {
				return struct{}{}, chunk.Err
			}
			if err := h.write(chunk.Data); err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, ctx.Err()
	})
}

// commit sends the status line once.
func (h *httpResponse) commit() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrResponseClosed
	}
	if h.committed {
		return nil
	}
	if h.status == 0 {
		h.status = http.StatusOK
	}
	h.committed = true
	dst := h.w.Header()
	for k, v := range h.header {
		dst[k] = v
	}
	h.w.WriteHeader(h.status)
	return nil
}

func (h *httpResponse) write(p []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrResponseClosed
	}
	if _, err := h.w.Write(p); err != nil {
		return err
	}
	if f, ok := h.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

func (h *httpResponse) writeResolution(res api.Resolution) {
	body, err := res.Encode()
	if err != nil {
		return
	}
	h.Header().Set("Content-Type", api.ContentType)
	h.SetStatus(res.Status)
	if h.commit() == nil {
		_ = h.write(body)
	}
}

func (h *httpResponse) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
}
