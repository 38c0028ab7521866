package ocr

import (
	"context"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// Operation is a pending OCR request. It resolves exactly once.
type Operation struct {
	done   chan struct{}
	result *Result
	ok     bool
}

// Wait blocks until the request resolves or ctx is cancelled. The boolean is
// false when the engine failed, produced nothing, or the wait was cancelled.
func (o *Operation) Wait(ctx context.Context) (*Result, bool) {
	select {
	case <-o.done:
		return o.result, o.ok
	case <-ctx.Done():
		return nil, false
	}
}

func (o *Operation) resolve(r *Result, ok bool) {
	o.result = r
	o.ok = ok
	close(o.done)
}

type task struct {
	engine Engine
	key    cacheKey
	path   string
	params Params
	ctx    context.Context
	op     *Operation
}

type cacheKey struct {
	engine   string
	digest   string
	language string
}

// Controller queues OCR requests across a bounded worker set and caches
// results by (engine, image content, params). It takes ownership of every
// temp file passed to Enqueue and guarantees its removal.
type Controller struct {
	log     zerolog.Logger
	workers int

	mu    sync.Mutex
	cache map[cacheKey]*Result

	startOnce  sync.Once
	closeOnce  sync.Once
	quit       chan struct{}
	foreground chan *task
	background chan *task
}

// NewController returns a controller running up to workers concurrent
// recognitions. Workers start lazily on first enqueue.
func NewController(workers int, log zerolog.Logger) *Controller {
	if workers < 1 {
		workers = 1
	}
	return &Controller{
		log:        log,
		workers:    workers,
		cache:      make(map[cacheKey]*Result),
		quit:       make(chan struct{}),
		foreground: make(chan *task),
		background: make(chan *task),
	}
}

// Close stops the worker goroutines. Enqueued tasks that no worker has
// picked up resolve as failed and their temp files are removed. Safe to
// call more than once.
func (c *Controller) Close() {
	c.closeOnce.Do(func() { close(c.quit) })
}

// HasCachedResult reports whether a result for this engine, image digest and
// params is already cached. The exporter checks this before persisting image
// bytes to disk, so repeated identical pages skip the temp file entirely.
func (c *Controller) HasCachedResult(engine Engine, digest string, params Params) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.cache[cacheKey{engine.Name(), digest, params.LanguageCode}]
	return ok
}

// CachedResult returns the cached result for the key, if present.
func (c *Controller) CachedResult(engine Engine, digest string, params Params) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.cache[cacheKey{engine.Name(), digest, params.LanguageCode}]
	return r, ok
}

// Enqueue submits the image at path for recognition and returns the pending
// operation. Ownership of the file transfers to the controller; it is
// removed after the attempt whether or not recognition succeeds. A cached
// result resolves the operation immediately.
func (c *Controller) Enqueue(ctx context.Context, engine Engine, digest, path string, params Params) *Operation {
	op := &Operation{done: make(chan struct{})}
	if r, ok := c.CachedResult(engine, digest, params); ok {
		if path != "" {
			os.Remove(path)
		}
		op.resolve(r, true)
		return op
	}
	select {
	case <-c.quit:
		if path != "" {
			os.Remove(path)
		}
		op.resolve(nil, false)
		return op
	default:
	}

	key := cacheKey{engine.Name(), digest, params.LanguageCode}

	c.startOnce.Do(func() {
		for i := 0; i < c.workers; i++ {
			go c.work()
		}
	})

	t := &task{engine: engine, key: key, path: path, params: params, ctx: ctx, op: op}
	queue := c.background
	if params.Priority == PriorityForeground {
		queue = c.foreground
	}
	go func() {
		select {
		case queue <- t:
		case <-ctx.Done():
			c.finish(t, nil, false)
		case <-c.quit:
			c.finish(t, nil, false)
		}
	}()
	return op
}

func (c *Controller) work() {
	for {
		// Drain foreground work first.
		select {
		case t := <-c.foreground:
			c.run(t)
			continue
		default:
		}
		select {
		case t := <-c.foreground:
			c.run(t)
		case t := <-c.background:
			c.run(t)
		case <-c.quit:
			return
		}
	}
}

func (c *Controller) run(t *task) {
	if t.ctx.Err() != nil {
		c.finish(t, nil, false)
		return
	}
	result, err := t.engine.ProcessImage(t.ctx, t.path, t.params)
	if err != nil {
		c.log.Warn().Str("engine", t.key.engine).Err(err).Msg("ocr failed")
		c.finish(t, nil, false)
		return
	}
	if result == nil {
		c.finish(t, nil, false)
		return
	}
	c.mu.Lock()
	c.cache[t.key] = result
	c.mu.Unlock()
	c.finish(t, result, true)
}

func (c *Controller) finish(t *task, r *Result, ok bool) {
	if t.path != "" {
		os.Remove(t.path)
	}
	t.op.resolve(r, ok)
}
