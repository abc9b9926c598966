package streaming

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

// DefaultChunkSize is the read size used when a body is turned into chunks.
const DefaultChunkSize = 32 * 1024

var (
	// ErrStreamConsumed is delivered to every subscriber after the first.
	ErrStreamConsumed = errors.New("servicecommon: stream already consumed")
	// ErrBodyReleased is delivered when a cached body is read after Release.
	ErrBodyReleased = errors.New("servicecommon: cached body released")
	// ErrNilDeferred reports a continuation that returned no Deferred.
	ErrNilDeferred = errors.New("servicecommon: continuation returned nil deferred")
)

// Chunk is one element of a Stream. A chunk carrying Err is the last one.
type Chunk struct {
	Data []byte
	Err  error
}

// Producer emits chunks through emit until it is done or emit reports that
// the subscriber went away.
type Producer func(ctx context.Context, emit func([]byte) bool) error

// Stream is a lazy sequence of byte chunks that can be consumed once.
// Nothing is produced until Subscribe is called.
type Stream struct {
	produce  Producer
	consumed atomic.Bool
}

// NewStream returns a Stream driven by produce.
func NewStream(produce Producer) *Stream {
	return &Stream{produce: produce}
}

// Subscribe starts the producer and returns its chunks. The channel closes
// after the last chunk or once ctx ends. Only the first call produces
// anything; later calls receive a single ErrStreamConsumed chunk.
func (s *Stream) Subscribe(ctx context.Context) <-chan Chunk {
	ch := make(chan Chunk)
	if s.consumed.Swap(true) {
		go func() {
			defer close(ch)
			select {
			case ch <- Chunk{Err: ErrStreamConsumed}:
			case <-ctx.Done():
			}
		}()
		return ch
	}

	go func() {
		defer close(ch)
		emit := func(data []byte) bool {
			if len(data) == 0 {
				return ctx.Err() == nil
			}
			select {
			case ch <- Chunk{Data: data}:
				return true
			case <-ctx.Done():
				return false
			}
		}
		_, err := guard(func() (struct{}, error) { return struct{}{}, s.produce(ctx, emit) })
		if err == nil && ctx.Err() != nil {
			err = ctx.Err()
		}
		if err != nil {
			select {
			case ch <- Chunk{Err: err}:
			case <-ctx.Done():
			}
		}
	}()
	return ch
}

// FromReader streams r in chunks of at most size bytes. Each chunk owns its
// bytes.
func FromReader(r io.Reader, size int) *Stream {
	if size <= 0 {
		size = DefaultChunkSize
	}
	return NewStream(func(_ context.Context, emit func([]byte) bool) error {
		if r == nil {
			return nil
		}
		buf := make([]byte, size)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				if !emit(chunk) {
					return nil
				}
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
		}
	})
}

// FromChunks streams the given chunks in order.
func FromChunks(chunks ...[]byte) *Stream {
	return NewStream(func(_ context.Context, emit func([]byte) bool) error {
		for _, c := range chunks {
			if !emit(c) {
				return nil
			}
		}
		return nil
	})
}

// Just streams data as a single chunk.
func Just(data []byte) *Stream { return FromChunks(data) }

// Empty streams nothing.
func Empty() *Stream { return FromChunks() }

// Fail streams a single error.
func Fail(err error) *Stream {
	return NewStream(func(context.Context, func([]byte) bool) error { return err })
}

// Join collects every chunk of s into one buffer.
func Join(ctx context.Context, s *Stream) *Deferred[[]byte] {
	return Go(ctx, func(ctx context.Context) ([]byte, error) {
		var buf bytes.Buffer
		for chunk := range s.Subscribe(ctx) {
			if chunk.Err != nil {
				return nil, chunk.Err
			}
			buf.Write(chunk.Data)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	})
}

// Tap forwards every chunk of s unmodified and hands each one to observe
// first. observe must not retain or modify the slice.
func Tap(s *Stream, observe func([]byte)) *Stream {
	return NewStream(func(ctx context.Context, emit func([]byte) bool) error {
		for chunk := range s.Subscribe(ctx) {
			if chunk.Err != nil {
				return chunk.Err
			}
			observe(chunk.Data)
			if !emit(chunk.Data) {
				return nil
			}
		}
		return nil
	})
}

// CachedStream materializes a Stream once and replays it to any number of
// subscribers. The upstream producer runs at most once, on first use.
type CachedStream struct {
	source *Stream
	ctx    context.Context

	mu       sync.Mutex
	joined   *Deferred[[]byte]
	released bool
}

// Cache wraps s. ctx bounds the upstream read.
func Cache(ctx context.Context, s *Stream) *CachedStream {
	return &CachedStream{source: s, ctx: ctx}
}

// Bytes returns the joined body. The slice is shared between callers and
// must not be modified.
func (c *CachedStream) Bytes() *Deferred[[]byte] {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return Failed[[]byte](ErrBodyReleased)
	}
	if c.joined == nil {
		c.joined = Join(c.ctx, c.source)
	}
	joined := c.joined
	c.mu.Unlock()

	return Then(joined, func(data []byte) ([]byte, error) {
		if c.Released() {
			return nil, ErrBodyReleased
		}
		return data, nil
	})
}

// Stream returns a fresh single-use replay of the cached body.
func (c *CachedStream) Stream() *Stream {
	return NewStream(func(ctx context.Context, emit func([]byte) bool) error {
		data, err := c.Bytes().Await(ctx)
		if err != nil {
			return err
		}
		emit(data)
		return nil
	})
}

// Release drops the cached body. Reads started afterwards fail with
// ErrBodyReleased and the upstream producer is never started if it has not
// been already.
func (c *CachedStream) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released = true
	c.joined = nil
}

// Released reports whether Release has been called.
func (c *CachedStream) Released() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released
}
