package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"inferd/internal/model"
	"inferd/internal/queue"
	"inferd/internal/stats"
	"inferd/pkg/pluginapi"
	"inferd/pkg/types"
)

// State is the scheduler lifecycle state.
type State string

const (
	StateConstructed State = "constructed"
	StateRunning     State = "running"
	StateDraining    State = "draining"
	StateStopped     State = "stopped"
)

// Scheduler owns the plugin, the model pool, the work queue and every
// worker goroutine.
type Scheduler struct {
	cfg    Config
	log    zerolog.Logger
	runID  string
	plugin pluginapi.Plugin
	req    types.ConfigRequest
	pool   *model.Pool
	desc   *types.ModelDescriptor
	queue  *queue.Queue
	stats  *stats.Stats
	pub    EventPublisher

	// contexts[i] belongs to inference worker i; contexts[0] is the primary.
	contexts []*model.Context

	mu        sync.Mutex
	state     State
	ctx       context.Context
	cancel    context.CancelFunc
	startedAt time.Time
	inputs    []*worker
	infers    []*worker

	// init failures per role; a role with every worker failed makes no progress.
	inputInitFailed atomic.Int32
	inferInitFailed atomic.Int32

	stopOnce sync.Once
}

// New resolves the plugin, reads its configuration, loads the model with
// one context per inference worker and delivers the model descriptor to the
// plugin. No worker runs until Start. On error everything created so far is
// released, including cfg.Backend.
func New(ctx context.Context, cfg Config) (*Scheduler, error) {
	cfg.applyDefaults()
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	runID := uuid.NewString()
	log = log.With().Str("component", "scheduler").Str("run_id", runID).Str("plugin", cfg.Plugin).Logger()

	closeBackend := func() {
		if cfg.Backend != nil {
			if err := cfg.Backend.Close(); err != nil {
				log.Warn().Err(err).Msg("backend close failed")
			}
		}
	}
	if cfg.Backend == nil {
		return nil, loadFailureError{what: "model", err: errors.New("no backend configured")}
	}
	if cfg.Registry == nil {
		closeBackend()
		return nil, loadFailureError{what: "plugin", err: errors.New("no plugin registry")}
	}

	p, err := cfg.Registry.Resolve(cfg.Plugin)
	if err != nil {
		closeBackend()
		return nil, loadFailureError{what: "plugin " + cfg.Plugin, err: err}
	}

	req := types.DefaultConfigRequest()
	if err := p.GetConfig(&req); err != nil {
		closeBackend()
		return nil, configFailureError{stage: "get_config", err: err}
	}
	if err := validateRequest(req); err != nil {
		closeBackend()
		return nil, configFailureError{stage: "config", err: err}
	}
	log.Info().
		Int("input_threads", req.InputThreads).
		Int("output_threads", req.OutputThreads).
		Int("queue_limit", req.QueueLimit).
		Bool("want_float", req.WantFloat).
		Msg("plugin config")

	pool := model.NewPool(cfg.Backend, cfg.Source,
		model.WithLogger(&log),
		model.WithShowModel(cfg.ShowModel || cfg.Diagnostics))
	fail := func(err error) (*Scheduler, error) {
		if cerr := pool.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("model pool close failed")
		}
		return nil, err
	}

	start := time.Now()
	primary, err := pool.LoadPrimary(ctx, cfg.ModelURI)
	cfg.Stats.Record(stats.ModelInit, start, err)
	if err != nil {
		return fail(loadFailureError{what: "model", err: err})
	}
	contexts := []*model.Context{primary}
	for i := 1; i < req.OutputThreads; i++ {
		start := time.Now()
		dup, err := pool.Duplicate(primary)
		cfg.Stats.Record(stats.ModelInit, start, err)
		if err != nil {
			return fail(loadFailureError{what: fmt.Sprintf("model context %d", i), err: err})
		}
		contexts = append(contexts, dup)
	}

	if err := p.SetConfig(primary.Descriptor()); err != nil {
		return fail(configFailureError{stage: "set_config", err: err})
	}

	return &Scheduler{
		cfg:      cfg,
		log:      log,
		runID:    runID,
		plugin:   p,
		req:      req,
		pool:     pool,
		desc:     primary.Descriptor(),
		queue:    queue.New(),
		stats:    cfg.Stats,
		pub:      cfg.Publisher,
		contexts: contexts,
		state:    StateConstructed,
	}, nil
}

func validateRequest(req types.ConfigRequest) error {
	switch {
	case req.InputThreads < 1:
		return fmt.Errorf("input_threads must be >= 1, got %d", req.InputThreads)
	case req.OutputThreads < 1:
		return fmt.Errorf("output_threads must be >= 1, got %d", req.OutputThreads)
	case req.QueueLimit < 0:
		return fmt.Errorf("queue_limit must be >= 0, got %d", req.QueueLimit)
	}
	return nil
}

// Start spawns the inference workers, then the input workers. Workers run
// until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateConstructed:
	case StateRunning:
		return errAlreadyStart
	default:
		return errStopped
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.startedAt = time.Now()
	s.state = StateRunning

	for i, mc := range s.contexts {
		w := s.newWorker(pluginapi.RoleOutput, i)
		w.model = mc
		s.infers = append(s.infers, w)
		s.spawn(w, s.inferenceLoop)
	}
	for i := 0; i < s.req.InputThreads; i++ {
		w := s.newWorker(pluginapi.RoleInput, i)
		s.inputs = append(s.inputs, w)
		s.spawn(w, s.inputLoop)
	}
	s.log.Info().Int("input_workers", len(s.inputs)).Int("inference_workers", len(s.infers)).Msg("scheduler started")
	return nil
}

// Wait blocks until the running context is done. It returns immediately if
// the scheduler was never started.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		return
	}
	<-ctx.Done()
}

// Stop cancels the running context, joins every input worker, wakes and
// joins every inference worker, drops whatever is still queued and closes
// the model pool. Safe to call more than once and before Start.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(s.stop)
}

func (s *Scheduler) stop() {
	s.mu.Lock()
	s.state = StateDraining
	if s.cancel != nil {
		s.cancel()
	}
	inputs, infers := s.inputs, s.infers
	s.mu.Unlock()

	for _, w := range inputs {
		<-w.done
		s.publish(EventInputWorkerJoined, w, nil)
	}
	s.queue.Wake()
	for _, w := range infers {
		<-w.done
		s.publish(EventInferenceWorkerJoined, w, nil)
	}

	if left := s.queue.Drain(); len(left) > 0 {
		s.stats.AddDropped(len(left))
		s.log.Warn().Int("packs", len(left)).Msg("dropping queued input at shutdown")
		s.publish(EventQueueDropped, nil, map[string]any{"packs": len(left)})
	}
	s.stats.SetQueueDepth(0)

	if err := s.pool.Close(); err != nil {
		s.log.Error().Err(err).Msg("model pool close failed")
	}
	if s.cfg.Diagnostics {
		s.stats.Report(s.log)
	}

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()
	s.publish(EventStopped, nil, nil)
	s.log.Info().Msg("scheduler stopped")
}

// RunID identifies this scheduler instance in logs and status.
func (s *Scheduler) RunID() string { return s.runID }

// Descriptor returns the loaded model's descriptor.
func (s *Scheduler) Descriptor() *types.ModelDescriptor { return s.desc }

// Request returns the configuration the plugin asked for.
func (s *Scheduler) Request() types.ConfigRequest { return s.req }

func (s *Scheduler) publish(name string, w *worker, fields map[string]any) {
	e := Event{Name: name, Time: time.Now(), Worker: -1, Fields: fields}
	if w != nil {
		e.Role = w.tc.Role.String()
		e.Worker = w.tc.ID
	}
	s.pub.Publish(e)
}
