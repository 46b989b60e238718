package scheduler

import (
	"time"

	"inferd/pkg/types"
)

// Check reports whether the pipeline can make progress: nil after a
// successful New, an error once Stop ran or when every worker of one role
// failed Init.
func (s *Scheduler) Check() error {
	s.mu.Lock()
	state := s.state
	nIn, nInf := len(s.inputs), len(s.infers)
	s.mu.Unlock()
	if state == StateStopped || state == StateDraining {
		return errStopped
	}
	if nIn > 0 && int(s.inputInitFailed.Load()) == nIn {
		return errNoInputs
	}
	if nInf > 0 && int(s.inferInitFailed.Load()) == nInf {
		return errNoInferencers
	}
	return nil
}

// Running reports whether workers are active and not asked to stop.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateRunning && s.ctx != nil && s.ctx.Err() == nil
}

// State returns the lifecycle state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns a point-in-time summary. Stage counters are included when
// diagnostics are enabled.
func (s *Scheduler) Status() types.StatusResponse {
	s.mu.Lock()
	state, startedAt := s.state, s.startedAt
	s.mu.Unlock()

	st := types.StatusResponse{
		RunID:            s.runID,
		State:            string(state),
		Plugin:           s.plugin.Name(),
		PluginVersion:    s.plugin.Version(),
		Model:            s.cfg.ModelURI,
		Backend:          s.pool.BackendName(),
		InputWorkers:     s.req.InputThreads,
		InferenceWorkers: s.req.OutputThreads,
		ModelContexts:    s.pool.Contexts(),
		QueueLen:         s.queue.Len(),
		QueueLimit:       s.req.QueueLimit,
		DroppedPacks:     int(s.stats.Dropped()),
	}
	if !startedAt.IsZero() {
		st.UptimeSeconds = int64(time.Since(startedAt) / time.Second)
	}
	if s.cfg.Diagnostics {
		st.Stages = s.stats.Snapshot()
	}
	if err := s.Check(); err != nil && state == StateRunning {
		st.Error = err.Error()
	}
	return st
}
