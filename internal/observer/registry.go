package observer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Handle identifies one attached observer. It is returned by the Attach
// methods and used to detach.
type Handle string

// Func is a synchronous-style observer.
type Func[P any] func(payload P) error

// AsyncFunc is an asynchronous-style observer. ctx is cancelled when the
// observer is detached or the registry is closed.
type AsyncFunc[P any] func(ctx context.Context, payload P) error

// Options configures a Registry.
type Options struct {
	// Name labels the registry in faults and logs (e.g. "states", "events").
	Name string

	// Workers bounds how many sync observer invocations run at once.
	// Async observers are not counted. Zero or negative means runtime.GOMAXPROCS(0) * 4.
	Workers int

	// Logger receives debug and fault logs. Optional.
	Logger Logger

	// OnFault replaces the default fault handler (which logs). Optional.
	OnFault FaultHandler
}

// task is one attached observer.
type task[P any] struct {
	handle Handle
	key    string
	kind   Kind
	fn     Func[P]
	async  AsyncFunc[P]
	ctx    context.Context
	cancel context.CancelFunc
	failed atomic.Bool
}

// Registry maps keys to attached observers and dispatches payloads to them.
//
// Thread Safety: all methods are safe for concurrent use.
type Registry[K comparable, P any] struct {
	name    string
	logger  Logger
	onFault FaultHandler
	sem     *semaphore.Weighted

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	byKey    map[K]map[Handle]*task[P]
	wildcard map[Handle]*task[P]
	keys     map[Handle]K // reverse index for keyed observers
	closed   bool
}

// NewRegistry creates an empty registry.
func NewRegistry[K comparable, P any](opts Options) *Registry[K, P] {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0) * 4 //nolint:mnd // default pool size per CPU
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	name := opts.Name
	if name == "" {
		name = "observers"
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry[K, P]{
		name:     name,
		logger:   logger,
		sem:      semaphore.NewWeighted(int64(workers)),
		ctx:      ctx,
		cancel:   cancel,
		byKey:    make(map[K]map[Handle]*task[P]),
		wildcard: make(map[Handle]*task[P]),
		keys:     make(map[Handle]K),
	}
	r.onFault = opts.OnFault
	if r.onFault == nil {
		r.onFault = r.logFault
	}
	return r
}

// Attach registers a synchronous-style observer for key.
func (r *Registry[K, P]) Attach(key K, fn Func[P]) Handle {
	return r.attach(&key, &task[P]{kind: KindSync, fn: fn})
}

// AttachAsync registers an asynchronous-style observer for key.
func (r *Registry[K, P]) AttachAsync(key K, fn AsyncFunc[P]) Handle {
	return r.attach(&key, &task[P]{kind: KindAsync, async: fn})
}

// AttachAll registers a synchronous-style observer for every key.
func (r *Registry[K, P]) AttachAll(fn Func[P]) Handle {
	return r.attach(nil, &task[P]{kind: KindSync, fn: fn})
}

// AttachAllAsync registers an asynchronous-style observer for every key.
func (r *Registry[K, P]) AttachAllAsync(fn AsyncFunc[P]) Handle {
	return r.attach(nil, &task[P]{kind: KindAsync, async: fn})
}

// attach stores t under key (nil key means wildcard).
// Returns "" if the registry is already closed.
func (r *Registry[K, P]) attach(key *K, t *task[P]) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		r.logger.Warn("attach on closed observer registry", "registry", r.name)
		return ""
	}

	t.handle = Handle(uuid.NewString())
	t.ctx, t.cancel = context.WithCancel(r.ctx)

	if key == nil {
		t.key = wildcardKey
		r.wildcard[t.handle] = t
	} else {
		t.key = fmt.Sprint(*key)
		set, ok := r.byKey[*key]
		if !ok {
			set = make(map[Handle]*task[P])
			r.byKey[*key] = set
		}
		set[t.handle] = t
		r.keys[t.handle] = *key
	}

	r.logger.Debug("observer attached",
		"registry", r.name,
		"key", t.key,
		"handle", t.handle,
		"kind", t.kind,
	)
	return t.handle
}

// Detach removes the observer and cancels its context, stopping any
// in-flight asynchronous work. Returns false if the handle is unknown.
func (r *Registry[K, P]) Detach(h Handle) bool {
	r.mu.Lock()
	t := r.removeLocked(h)
	r.mu.Unlock()

	if t == nil {
		return false
	}
	t.cancel()
	r.logger.Debug("observer detached", "registry", r.name, "key", t.key, "handle", h)
	return true
}

// removeLocked unlinks the task for h. Caller must hold r.mu.
func (r *Registry[K, P]) removeLocked(h Handle) *task[P] {
	if t, ok := r.wildcard[h]; ok {
		delete(r.wildcard, h)
		return t
	}
	key, ok := r.keys[h]
	if !ok {
		return nil
	}
	delete(r.keys, h)
	set := r.byKey[key]
	t := set[h]
	delete(set, h)
	if len(set) == 0 {
		delete(r.byKey, key)
	}
	return t
}

// Dispatch delivers payload to every observer attached to key and to every
// wildcard observer, as seen at the moment of the call. Observers attached
// or detached afterwards do not affect this fan-out.
//
// Dispatch does not wait for the observers. Returns the number of
// invocations scheduled.
func (r *Registry[K, P]) Dispatch(key K, payload P) int {
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return 0
	}
	targets := make([]*task[P], 0, len(r.byKey[key])+len(r.wildcard))
	for _, t := range r.byKey[key] {
		targets = append(targets, t)
	}
	for _, t := range r.wildcard {
		targets = append(targets, t)
	}
	// Add under the read lock so Close cannot start waiting before
	// these invocations are counted.
	r.wg.Add(len(targets))
	r.mu.RUnlock()

	for _, t := range targets {
		go r.run(t, payload)
	}
	return len(targets)
}

// run executes one observer invocation. Sync invocations take a slot on
// the worker pool; async ones run on their own goroutine, bounded only by
// their context, so chained work cannot starve other observers.
func (r *Registry[K, P]) run(t *task[P], payload P) {
	defer r.wg.Done()

	if t.kind == KindSync {
		if err := r.sem.Acquire(t.ctx, 1); err != nil {
			return // detached or closed while queued
		}
		defer r.sem.Release(1)
	}

	if t.ctx.Err() != nil {
		return
	}

	panicked, err := r.invoke(t, payload)
	if err == nil {
		return
	}

	fault := Fault{
		Registry: r.name,
		Key:      t.key,
		Handle:   t.handle,
		Kind:     t.kind,
		Err:      err,
		Panicked: panicked,
	}

	if t.kind == KindAsync {
		// Cancellation caused by Detach or Close is not a failure.
		if t.ctx.Err() != nil && errors.Is(err, context.Canceled) {
			return
		}
		if !t.failed.CompareAndSwap(false, true) {
			return // already reported once
		}
		fault.Detached = r.Detach(t.handle)
	}

	r.onFault(fault)
}

// invoke calls the observer, converting a panic into an error.
func (r *Registry[K, P]) invoke(t *task[P], payload P) (panicked bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, rec)
			panicked = true
		}
	}()

	if t.kind == KindAsync {
		return false, t.async(t.ctx, payload)
	}
	return false, t.fn(payload)
}

// logFault is the default FaultHandler.
func (r *Registry[K, P]) logFault(f Fault) {
	r.logger.Error("observer failed",
		"registry", f.Registry,
		"key", f.Key,
		"handle", f.Handle,
		"kind", f.Kind,
		"panic", f.Panicked,
		"detached", f.Detached,
		"error", f.Err,
	)
}

// Len returns the number of observers attached to key (wildcards excluded).
func (r *Registry[K, P]) Len(key K) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byKey[key])
}

// Count returns the total number of attached observers.
func (r *Registry[K, P]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.keys) + len(r.wildcard)
}

// Wait blocks until every invocation scheduled so far has finished.
// Intended for tests and orderly shutdown.
func (r *Registry[K, P]) Wait() {
	r.wg.Wait()
}

// Close cancels every observer and waits for in-flight invocations.
// Dispatch and Attach become no-ops afterwards.
func (r *Registry[K, P]) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.byKey = make(map[K]map[Handle]*task[P])
	r.wildcard = make(map[Handle]*task[P])
	r.keys = make(map[Handle]K)
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()
	r.logger.Debug("observer registry closed", "registry", r.name)
}
