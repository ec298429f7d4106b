package translate

import (
	"context"
	"sync"
)

// LookupFunc resolves a word to its accepted translations. Implementations
// must honor ctx cancellation promptly so that abandoned lookups do not
// hold a worker.
type LookupFunc func(ctx context.Context, word string) ([]string, error)

// Pool runs translation lookups on a fixed number of workers.
type Pool struct {
	lookup LookupFunc
	tasks  chan *Future
	wg     sync.WaitGroup
}

// NewPool starts workers goroutines serving lookups through fn.
func NewPool(workers int, fn LookupFunc) *Pool {
	p := &Pool{
		lookup: fn,
		tasks:  make(chan *Future, 256),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit enqueues a lookup for word and returns its Future.
func (p *Pool) Submit(word string) *Future {
	ctx, cancel := context.WithCancel(context.Background())
	f := &Future{
		word:   word,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	p.tasks <- f
	return f
}

// Shutdown stops accepting tasks and waits for in-flight lookups to finish.
func (p *Pool) Shutdown() {
	close(p.tasks)
	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for f := range p.tasks {
		// A task canceled while still queued is resolved without
		// touching the network.
		select {
		case <-f.ctx.Done():
			f.resolve(nil, f.ctx.Err())
			continue
		default:
		}

		translations, err := p.lookup(f.ctx, f.word)
		f.resolve(translations, err)
	}
}

// Future is the handle for one pending lookup.
type Future struct {
	word   string
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	translations []string
	err          error
}

// Word returns the word this lookup resolves.
func (f *Future) Word() string { return f.word }

func (f *Future) resolve(translations []string, err error) {
	f.translations = translations
	f.err = err
	close(f.done)
}

// Wait blocks until the lookup resolves or ctx is done. A canceled lookup
// reports context.Canceled.
func (f *Future) Wait(ctx context.Context) ([]string, error) {
	select {
	case <-f.done:
		return f.translations, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel aborts the lookup. It is safe to call any number of times and
// after the lookup has already resolved.
func (f *Future) Cancel() {
	f.cancel()
}
