package model

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"inferd/pkg/types"
)

// Pool owns one primary context and any number of duplicates created from
// it. Every context is handed to exactly one inference worker.
type Pool struct {
	backend   Backend
	source    WeightSource
	log       zerolog.Logger
	showModel bool

	mu      sync.Mutex
	primary *Context
	dups    []*Context
	nextID  int
	closed  bool
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the pool logger.
func WithLogger(l *zerolog.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.log = l.With().Str("component", "model").Logger()
		}
	}
}

// WithShowModel logs every tensor attribute after the primary loads.
func WithShowModel(on bool) Option { return func(p *Pool) { p.showModel = on } }

// NewPool creates an empty pool over backend. A nil source reads local
// paths only.
func NewPool(backend Backend, source WeightSource, opts ...Option) *Pool {
	if source == nil {
		source = FileSource{}
	}
	p := &Pool{backend: backend, source: source, log: zerolog.Nop()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Context is one model execution context.
type Context struct {
	ID      int
	Primary bool

	pool    *Pool
	session Session
	arena   *arena
	desc    *types.ModelDescriptor

	mu     sync.Mutex
	closed bool
}

// LoadPrimary reads the weight blob at uri, opens the primary session and
// queries its descriptor.
func (p *Pool) LoadPrimary(ctx context.Context, uri string) (*Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, loadError{uri: uri, err: ErrPoolClosed}
	}
	if p.primary != nil {
		return nil, loadError{uri: uri, err: errors.New("primary context already loaded")}
	}
	blob, err := p.source.Read(ctx, uri)
	if err != nil {
		return nil, loadError{uri: uri, err: err}
	}
	a := newArena(blob)
	sess, err := p.backend.Open(a.bytes())
	if err != nil {
		return nil, loadError{uri: uri, err: err}
	}
	desc, err := sess.Describe()
	if err != nil {
		_ = sess.Close()
		return nil, loadError{uri: uri, err: fmt.Errorf("describe: %w", err)}
	}
	desc.WeightsSize = int64(len(blob))
	desc.WeightsDigest = a.digest

	c := &Context{ID: p.nextID, Primary: true, pool: p, session: sess, arena: a, desc: &desc}
	p.nextID++
	p.primary = c
	p.log.Info().
		Str("uri", uri).
		Str("backend", p.backend.Name()).
		Int64("weights_bytes", desc.WeightsSize).
		Str("weights_digest", fmt.Sprintf("%016x", desc.WeightsDigest)).
		Int("inputs", desc.NumInputs()).
		Int("outputs", desc.NumOutputs()).
		Msg("model loaded")
	if p.showModel {
		logDescriptor(p.log, c.desc)
	}
	return c, nil
}

// Duplicate creates a context sharing primary's weights.
func (p *Pool) Duplicate(primary *Context) (*Context, error) {
	if primary == nil || !primary.Primary {
		return nil, dupError{err: errors.New("source is not a primary context")}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, dupError{err: ErrPoolClosed}
	}
	if err := primary.arena.acquire(); err != nil {
		return nil, dupError{err: err}
	}
	sess, err := primary.session.Duplicate()
	if err != nil {
		primary.arena.release()
		return nil, dupError{err: err}
	}
	c := &Context{ID: p.nextID, pool: p, session: sess, arena: primary.arena, desc: primary.desc}
	p.nextID++
	p.dups = append(p.dups, c)
	p.log.Debug().Int("context", c.ID).Msg("duplicate context created")
	return c, nil
}

// Primary returns the primary context, or nil before LoadPrimary.
func (p *Pool) Primary() *Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.primary
}

// Contexts returns the number of open contexts.
func (p *Pool) Contexts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.dups)
	if p.primary != nil {
		n++
	}
	return n
}

// BackendName reports the backend in use.
func (p *Pool) BackendName() string { return p.backend.Name() }

// Close closes duplicates, then the primary, then the backend. It is safe
// to call more than once.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	dups := append([]*Context(nil), p.dups...)
	primary := p.primary
	p.mu.Unlock()

	var errs []error
	for _, c := range dups {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if primary != nil {
		if err := primary.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := p.backend.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (p *Pool) forget(c *Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.primary == c {
		p.primary = nil
		return
	}
	for i, d := range p.dups {
		if d == c {
			p.dups = append(p.dups[:i], p.dups[i+1:]...)
			return
		}
	}
}

// Descriptor returns the model descriptor shared by all contexts of a pool.
func (c *Context) Descriptor() *types.ModelDescriptor { return c.desc }

// Infer runs one synchronous inference: set inputs, run, fetch outputs.
// out must be sized to the descriptor's output count.
func (c *Context) Infer(in *types.InputUnit, out *types.OutputUnit) error {
	if c.isClosed() {
		return &InferError{Stage: StageSetInputs, Err: ErrPoolClosed}
	}
	if in == nil || out == nil {
		return &InferError{Stage: StageSetInputs, Err: errors.New("nil input or output unit")}
	}
	if err := c.session.SetInputs(in.Tensors); err != nil {
		return &InferError{Stage: StageSetInputs, Err: err}
	}
	if err := c.session.Run(); err != nil {
		return &InferError{Stage: StageRun, Err: err}
	}
	if err := c.session.GetOutputs(out.Tensors); err != nil {
		return &InferError{Stage: StageGetOutputs, Err: err}
	}
	return nil
}

// ReleaseOutputs frees backend-owned output contents.
func (c *Context) ReleaseOutputs(out *types.OutputUnit) error {
	if out == nil {
		return nil
	}
	return c.session.ReleaseOutputs(out.Tensors)
}

func (c *Context) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close releases the session. A primary refuses to close while duplicates
// are alive and frees the shared weights when it does close.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	if c.Primary {
		if err := c.arena.free(); err != nil {
			return err
		}
	}
	err := c.session.Close()
	c.closed = true
	if !c.Primary {
		c.arena.release()
	}
	c.pool.forget(c)
	if err != nil {
		return fmt.Errorf("close context %d: %w", c.ID, err)
	}
	return nil
}
