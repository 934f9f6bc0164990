// Package loader coalesces concurrent point lookups into batched fetches.
//
// A Loader lives for one logical unit of work (typically a request). Load
// calls issued within the same scheduling window are grouped and satisfied
// with a single batch fetch; results are memoized for the lifetime of the
// Loader and never shared across units of work.
package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrNotFound is the explicit absent marker: a batch fetch resolves a key
// that has no backing record to this error instead of failing the batch.
var ErrNotFound = errors.New("loader: key not found")

// Result is the per-key outcome of a batch fetch. A failed key carries its
// own error and does not affect sibling keys in the same batch.
type Result struct {
	Value []byte
	Err   error
}

// BatchFunc fetches many keys in one round trip. The returned slice must be
// order-preserving: result i corresponds to keys[i]. Missing keys resolve to
// Result{Err: ErrNotFound}.
type BatchFunc func(ctx context.Context, keys []string) []Result

// Options tunes batching behavior.
type Options struct {
	// Wait is the scheduling window: how long the first Load in a batch
	// waits for siblings before the batch fires. Default 1ms.
	Wait time.Duration

	// MaxBatch caps the number of keys in one batch; the batch fires
	// immediately when reached. 0 means no cap.
	MaxBatch int
}

// Loader groups concurrent Load calls into batches. It is safe for
// concurrent use within its unit of work.
type Loader struct {
	fn       BatchFunc
	wait     time.Duration
	maxBatch int

	mu    sync.Mutex
	cur   *batch
	cache map[string]*thunk
}

type batch struct {
	keys   []string
	thunks []*thunk
	fired  bool
}

// thunk is the memoized, awaitable result for one key.
type thunk struct {
	done  chan struct{}
	value []byte
	err   error
}

// New creates a fresh Loader around a batch fetch function. Each logical
// unit of work creates its own Loader; no memoization survives past it.
func New(fn BatchFunc, opts Options) *Loader {
	wait := opts.Wait
	if wait <= 0 {
		wait = time.Millisecond
	}
	return &Loader{
		fn:       fn,
		wait:     wait,
		maxBatch: opts.MaxBatch,
		cache:    make(map[string]*thunk),
	}
}

// Load returns the value for key, blocking until the batch containing it has
// been fetched. Repeated loads of the same key return the memoized result
// without issuing another fetch.
func (l *Loader) Load(ctx context.Context, key string) ([]byte, error) {
	return l.LoadThunk(key)(ctx)
}

// LoadMany loads several keys, preserving input order. Per-key errors are
// positional; the call itself only fails when the context is canceled.
func (l *Loader) LoadMany(ctx context.Context, keys []string) ([]Result, error) {
	thunks := make([]func(context.Context) ([]byte, error), len(keys))
	for i, key := range keys {
		thunks[i] = l.LoadThunk(key)
	}

	results := make([]Result, len(keys))
	for i, wait := range thunks {
		value, err := wait(ctx)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		results[i] = Result{Value: value, Err: err}
	}
	return results, nil
}

// LoadThunk registers key in the current batch and returns a function that
// blocks until its result is available.
func (l *Loader) LoadThunk(key string) func(context.Context) ([]byte, error) {
	l.mu.Lock()

	if t, ok := l.cache[key]; ok {
		l.mu.Unlock()
		return t.wait
	}

	t := &thunk{done: make(chan struct{})}
	l.cache[key] = t

	if l.cur == nil {
		b := &batch{}
		l.cur = b
		// The scheduling window: everything loaded before the timer fires
		// joins this batch.
		time.AfterFunc(l.wait, func() { l.fire(b) })
	}
	b := l.cur
	b.keys = append(b.keys, key)
	b.thunks = append(b.thunks, t)

	if l.maxBatch > 0 && len(b.keys) >= l.maxBatch {
		l.cur = nil
		l.mu.Unlock()
		l.fire(b)
		return t.wait
	}

	l.mu.Unlock()
	return t.wait
}

// fire executes the batch fetch and resolves every thunk in the batch.
func (l *Loader) fire(b *batch) {
	l.mu.Lock()
	if b.fired {
		l.mu.Unlock()
		return
	}
	b.fired = true
	if l.cur == b {
		l.cur = nil
	}
	l.mu.Unlock()

	results := l.fn(context.Background(), b.keys)
	if len(results) != len(b.keys) {
		err := fmt.Errorf("loader: batch function returned %d results for %d keys", len(results), len(b.keys))
		for _, t := range b.thunks {
			t.resolve(nil, err)
		}
		return
	}

	for i, t := range b.thunks {
		t.resolve(results[i].Value, results[i].Err)
	}
}

func (t *thunk) resolve(value []byte, err error) {
	t.value = value
	t.err = err
	close(t.done)
}

func (t *thunk) wait(ctx context.Context) ([]byte, error) {
	select {
	case <-t.done:
		return t.value, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
