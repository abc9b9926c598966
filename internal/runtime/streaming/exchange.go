package streaming

import (
	"context"
	"net/http"
	"net/url"
)

// Request is the inbound half of an Exchange. Body can be subscribed once;
// decorators that need to read it replace it with a replayable copy.
type Request struct {
	// ID identifies the exchange in logs. It is a ULID, not the correlation ID.
	ID         string
	Method     string
	URL        *url.URL
	Header     http.Header
	RemoteAddr string
	Body       *Stream
}

// Path returns the request path, or "" when URL is unset.
func (r *Request) Path() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.Path
}

// Clone returns a shallow copy of r.
func (r *Request) Clone() *Request {
	out := *r
	return &out
}

// Response is the outbound half of an Exchange. The status and headers are
// sent when WriteWith first runs; after that the response is committed.
type Response interface {
	Header() http.Header
	SetStatus(status int)
	// Status returns the status set so far, 0 when none was.
	Status() int
	Committed() bool
	// WriteWith commits the response and streams body to the client.
	WriteWith(ctx context.Context, body *Stream) *Deferred[struct{}]
}

// Exchange is one request/response pair together with the context that
// carries its request-scoped values through every stage.
type Exchange struct {
	ctx      context.Context
	Request  *Request
	Response Response
}

// NewExchange binds req and resp to ctx.
func NewExchange(ctx context.Context, req *Request, resp Response) *Exchange {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Exchange{ctx: ctx, Request: req, Response: resp}
}

// Context returns the exchange context.
func (e *Exchange) Context() context.Context { return e.ctx }

// WithContext returns a copy of e bound to ctx.
func (e *Exchange) WithContext(ctx context.Context) *Exchange {
	out := *e
	out.ctx = ctx
	return &out
}

// Mutate returns a copy of e with the given request and response. A nil
// argument keeps the current one.
func (e *Exchange) Mutate(req *Request, resp Response) *Exchange {
	out := *e
	if req != nil {
		out.Request = req
	}
	if resp != nil {
		out.Response = resp
	}
	return &out
}

// Handler processes an exchange. The returned Deferred settles once the
// response has been written or the handler has failed.
type Handler interface {
	Handle(ex *Exchange) *Deferred[struct{}]
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ex *Exchange) *Deferred[struct{}]

func (f HandlerFunc) Handle(ex *Exchange) *Deferred[struct{}] { return f(ex) }

// WebFilter intercepts an exchange on its way to next.
type WebFilter interface {
	Filter(ex *Exchange, next Handler) *Deferred[struct{}]
}

// WebFilterFunc adapts a function to WebFilter.
type WebFilterFunc func(ex *Exchange, next Handler) *Deferred[struct{}]

func (f WebFilterFunc) Filter(ex *Exchange, next Handler) *Deferred[struct{}] { return f(ex, next) }

// Chain wraps h with filters. The first filter sees the exchange first.
func Chain(h Handler, filters ...WebFilter) Handler {
	for i := len(filters) - 1; i >= 0; i-- {
		h = filtered{filter: filters[i], next: h}
	}
	return h
}

type filtered struct {
	filter WebFilter
	next   Handler
}

func (f filtered) Handle(ex *Exchange) *Deferred[struct{}] {
	return invoke(func() *Deferred[struct{}] { return f.filter.Filter(ex, f.next) })
}

// invoke runs a synchronous stage, turning a panic or a nil result into a
// failed Deferred.
func invoke(fn func() *Deferred[struct{}]) *Deferred[struct{}] {
	d, err := guard(func() (*Deferred[struct{}], error) { return fn(), nil })
	if err != nil {
		return Failed[struct{}](err)
	}
	if d == nil {
		return Failed[struct{}](ErrNilDeferred)
	}
	return d
}
