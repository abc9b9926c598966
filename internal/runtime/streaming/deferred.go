package streaming

import (
	"context"
	"sync"

	errorspkg "github.com/budget-analyzer/service-common/internal/runtime/errors"
)

// Deferred is a value or error that becomes available once. Continuations
// registered with Then, AndThen, Recover and Finally run on the goroutine
// that settles it, so no stage needs to block waiting for another.
type Deferred[T any] struct {
	done chan struct{}

	mu        sync.Mutex
	settled   bool
	callbacks []func()

	val T
	err error
}

func newDeferred[T any]() *Deferred[T] {
	return &Deferred[T]{done: make(chan struct{})}
}

// Resolved returns a Deferred already holding v.
func Resolved[T any](v T) *Deferred[T] {
	d := newDeferred[T]()
	d.settle(v, nil)
	return d
}

// Failed returns a Deferred already holding err.
func Failed[T any](err error) *Deferred[T] {
	d := newDeferred[T]()
	var zero T
	d.settle(zero, err)
	return d
}

// Completed returns a successful Deferred carrying no value.
func Completed() *Deferred[struct{}] {
	return Resolved(struct{}{})
}

// Go runs fn on its own goroutine. A panic in fn fails the Deferred.
func Go[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Deferred[T] {
	d := newDeferred[T]()
	go func() {
		v, err := guard(func() (T, error) { return fn(ctx) })
		d.settle(v, err)
	}()
	return d
}

// Done is closed once the Deferred settles.
func (d *Deferred[T]) Done() <-chan struct{} {
	return d.done
}

// Await waits for the result or for ctx to end, whichever comes first.
func (d *Deferred[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-d.done:
		return d.val, d.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (d *Deferred[T]) settle(v T, err error) {
	d.mu.Lock()
	if d.settled {
		d.mu.Unlock()
		return
	}
	d.settled = true
	d.val, d.err = v, err
	callbacks := d.callbacks
	d.callbacks = nil
	close(d.done)
	d.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}

// onSettle runs cb after d settles, immediately when it already has.
func (d *Deferred[T]) onSettle(cb func()) {
	d.mu.Lock()
	if !d.settled {
		d.callbacks = append(d.callbacks, cb)
		d.mu.Unlock()
		return
	}
	d.mu.Unlock()
	cb()
}

// Then maps a successful result through fn. Failures pass through untouched.
func Then[T, U any](d *Deferred[T], fn func(T) (U, error)) *Deferred[U] {
	out := newDeferred[U]()
	d.onSettle(func() {
		if d.err != nil {
			var zero U
			out.settle(zero, d.err)
			return
		}
		out.settle(guard(func() (U, error) { return fn(d.val) }))
	})
	return out
}

// AndThen continues a successful result with another asynchronous step.
func AndThen[T, U any](d *Deferred[T], fn func(T) *Deferred[U]) *Deferred[U] {
	out := newDeferred[U]()
	d.onSettle(func() {
		if d.err != nil {
			var zero U
			out.settle(zero, d.err)
			return
		}
		next, err := guard(func() (*Deferred[U], error) { return fn(d.val), nil })
		forward(out, next, err)
	})
	return out
}

// Recover replaces a failure with the result of fn.
func Recover[T any](d *Deferred[T], fn func(error) (T, error)) *Deferred[T] {
	out := newDeferred[T]()
	d.onSettle(func() {
		if d.err == nil {
			out.settle(d.val, nil)
			return
		}
		out.settle(guard(func() (T, error) { return fn(d.err) }))
	})
	return out
}

// RecoverWith replaces a failure with another asynchronous step.
func RecoverWith[T any](d *Deferred[T], fn func(error) *Deferred[T]) *Deferred[T] {
	out := newDeferred[T]()
	d.onSettle(func() {
		if d.err == nil {
			out.settle(d.val, nil)
			return
		}
		next, err := guard(func() (*Deferred[T], error) { return fn(d.err), nil })
		forward(out, next, err)
	})
	return out
}

// Finally observes the outcome of d and passes it on unchanged.
func Finally[T any](d *Deferred[T], fn func(T, error)) *Deferred[T] {
	out := newDeferred[T]()
	d.onSettle(func() {
		_, perr := guard(func() (struct{}, error) {
			fn(d.val, d.err)
			return struct{}{}, nil
		})
		if perr != nil && d.err == nil {
			var zero T
			out.settle(zero, perr)
			return
		}
		out.settle(d.val, d.err)
	})
	return out
}

func forward[T any](out, next *Deferred[T], err error) {
	if err != nil || next == nil {
		var zero T
		if err == nil {
			err = ErrNilDeferred
		}
		out.settle(zero, err)
		return
	}
	next.onSettle(func() { out.settle(next.val, next.err) })
}

func guard[T any](fn func() (T, error)) (v T, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			var zero T
			v, err = zero, errorspkg.FromPanic(rec)
		}
	}()
	return fn()
}
