// Package approval correlates sensitive requests with approvals that arrive
// later, from a different call path.
//
// A Registry holds one Future per pending request id. The future settles
// exactly once: with the approved result, with ErrUserRejected, or with
// ErrTimeout when its expiry timer fires first. Use one registry per
// approval kind so ids never collide across kinds.
package approval

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/abcfe/abcfe-keyring/common/logger"
	"github.com/jonboulle/clockwork"
)

var (
	ErrUnknownRequest   = errors.New("approval: unknown request")
	ErrDuplicateRequest = errors.New("approval: duplicate request")
	ErrTimeout          = errors.New("approval: request timed out")
	ErrUserRejected     = errors.New("approval: rejected by user")
)

const DefaultTimeout = 5 * time.Minute

// Future is the outcome cell of one pending request.
type Future[R any] struct {
	done   chan struct{}
	result R
	err    error
}

func newFuture[R any]() *Future[R] {
	return &Future[R]{done: make(chan struct{})}
}

// Done is closed once the request is resolved.
func (f *Future[R]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the request resolves or ctx is done. A cancelled ctx only
// abandons this wait; the request stays pending until approval, rejection or
// expiry.
func (f *Future[R]) Wait(ctx context.Context) (R, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

type entry[D any, R any] struct {
	data   D
	future *Future[R]
	timer  clockwork.Timer
}

// Registry tracks outstanding requests of one approval kind.
type Registry[D any, R any] struct {
	mu      sync.Mutex
	kind    string
	timeout time.Duration
	clock   clockwork.Clock
	pending map[string]*entry[D, R]
}

type options struct {
	timeout time.Duration
	clock   clockwork.Clock
}

type Option func(*options)

// WithTimeout sets the expiry used when Register is called with timeout 0.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

func WithClock(c clockwork.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

func New[D any, R any](kind string, opts ...Option) *Registry[D, R] {
	o := options{timeout: DefaultTimeout, clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Registry[D, R]{
		kind:    kind,
		timeout: o.timeout,
		clock:   o.clock,
		pending: make(map[string]*entry[D, R]),
	}
}

func (r *Registry[D, R]) Kind() string {
	return r.kind
}

// Register stores data under id and starts its expiry timer.
func (r *Registry[D, R]) Register(id string, data D, timeout time.Duration) (*Future[R], error) {
	if timeout <= 0 {
		timeout = r.timeout
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pending[id]; ok {
		return nil, ErrDuplicateRequest
	}

	e := &entry[D, R]{data: data, future: newFuture[R]()}
	e.timer = r.clock.AfterFunc(timeout, func() { r.expire(id, e) })
	r.pending[id] = e

	logger.Debug("[Approval] ", r.kind, " request registered: ", id, " timeout: ", timeout)
	return e.future, nil
}

// Join returns the future of a pending request.
func (r *Registry[D, R]) Join(id string) (*Future[R], bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.pending[id]
	if !ok {
		return nil, false
	}
	return e.future, true
}

// Request registers data under id and waits for its resolution.
func (r *Registry[D, R]) Request(ctx context.Context, id string, data D, timeout time.Duration) (R, error) {
	f, err := r.Register(id, data, timeout)
	if err != nil {
		var zero R
		return zero, err
	}
	return f.Wait(ctx)
}

func (r *Registry[D, R]) GetData(id string) (D, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.pending[id]
	if !ok {
		var zero D
		return zero, ErrUnknownRequest
	}
	return e.data, nil
}

// Approve resolves id with result. It reports whether this call resolved the
// request; unknown or already resolved ids are ignored.
func (r *Registry[D, R]) Approve(id string, result R) bool {
	return r.resolve(id, nil, result, nil)
}

// Reject resolves id with ErrUserRejected.
func (r *Registry[D, R]) Reject(id string) bool {
	var zero R
	return r.resolve(id, nil, zero, ErrUserRejected)
}

// Pending lists the ids currently awaiting resolution.
func (r *Registry[D, R]) Pending() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := make([]string, 0, len(r.pending))
	for id := range r.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry[D, R]) expire(id string, e *entry[D, R]) {
	var zero R
	if r.resolve(id, e, zero, ErrTimeout) {
		logger.Info("[Approval] ", r.kind, " request timed out: ", id)
	}
}

// resolve settles the entry under id. When expected is set, only that exact
// entry may be resolved, so a stale timer never touches a reused id.
func (r *Registry[D, R]) resolve(id string, expected *entry[D, R], result R, err error) bool {
	r.mu.Lock()
	e, ok := r.pending[id]
	if !ok || (expected != nil && e != expected) {
		r.mu.Unlock()
		return false
	}
	delete(r.pending, id)
	r.mu.Unlock()

	e.timer.Stop()
	e.future.result = result
	e.future.err = err
	close(e.future.done)
	return true
}
