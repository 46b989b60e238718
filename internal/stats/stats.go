// Package stats keeps per-stage call counters for the inference pipeline and
// mirrors them to Prometheus.
package stats

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"inferd/pkg/types"
)

// Stage names a timed pipeline operation.
type Stage string

const (
	ModelInit          Stage = "model_init"
	ModelInfer         Stage = "model_infer"
	ModelRelease       Stage = "model_release"
	PluginInit         Stage = "plugin_init"
	PluginUninit       Stage = "plugin_uninit"
	PluginInput        Stage = "plugin_input"
	PluginInputRelease Stage = "plugin_input_release"
	PluginOutput       Stage = "plugin_output"
	QueueWait          Stage = "queue_wait"
)

// Stages lists every stage in report order.
var Stages = []Stage{
	ModelInit, ModelInfer, ModelRelease,
	PluginInit, PluginUninit, PluginInput, PluginInputRelease, PluginOutput,
	QueueWait,
}

// Counter accumulates calls and elapsed time for one stage. Each counter
// has its own lock so stages never contend with each other.
type Counter struct {
	mu       sync.Mutex
	count    uint64
	failures uint64
	total    time.Duration
}

// Observe records one call of duration d.
func (c *Counter) Observe(d time.Duration, failed bool) {
	c.mu.Lock()
	c.count++
	c.total += d
	if failed {
		c.failures++
	}
	c.mu.Unlock()
}

// Snapshot returns the current totals. AvgMs is 0 when nothing was recorded.
func (c *Counter) Snapshot(stage Stage) types.StageStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := types.StageStats{
		Stage:    string(stage),
		Count:    c.count,
		Failures: c.failures,
		TotalMs:  float64(c.total) / float64(time.Millisecond),
	}
	if c.count > 0 {
		s.AvgMs = s.TotalMs / float64(c.count)
	}
	return s
}

// Stats is the set of stage counters for one scheduler run.
type Stats struct {
	counters map[Stage]*Counter
	dropped  atomic.Uint64
}

// New returns zeroed counters for every stage.
func New() *Stats {
	s := &Stats{counters: make(map[Stage]*Counter, len(Stages))}
	for _, st := range Stages {
		s.counters[st] = &Counter{}
	}
	return s
}

// Record adds one call of stage that started at start. A non-nil err counts
// as a failure.
func (s *Stats) Record(stage Stage, start time.Time, err error) {
	s.Observe(stage, time.Since(start), err != nil)
}

// Observe adds one call of stage with an explicit duration.
func (s *Stats) Observe(stage Stage, d time.Duration, failed bool) {
	c, ok := s.counters[stage]
	if !ok {
		return
	}
	c.Observe(d, failed)
	stageDuration.WithLabelValues(string(stage)).Observe(d.Seconds())
	if failed {
		stageFailures.WithLabelValues(string(stage)).Inc()
	}
}

// Get returns the snapshot of one stage.
func (s *Stats) Get(stage Stage) types.StageStats {
	c, ok := s.counters[stage]
	if !ok {
		return types.StageStats{Stage: string(stage)}
	}
	return c.Snapshot(stage)
}

// Snapshot returns every stage in report order.
func (s *Stats) Snapshot() []types.StageStats {
	out := make([]types.StageStats, 0, len(Stages))
	for _, st := range Stages {
		out = append(out, s.counters[st].Snapshot(st))
	}
	return out
}

// AddDropped counts packs discarded at shutdown.
func (s *Stats) AddDropped(n int) {
	if n <= 0 {
		return
	}
	s.dropped.Add(uint64(n))
	droppedPacks.Add(float64(n))
}

// Dropped returns the number of discarded packs.
func (s *Stats) Dropped() uint64 { return s.dropped.Load() }

// SetQueueDepth publishes the current queue length.
func (s *Stats) SetQueueDepth(n int) { queueDepth.Set(float64(n)) }

// Report logs every stage once.
func (s *Stats) Report(log zerolog.Logger) {
	log.Info().Uint64("dropped_packs", s.Dropped()).Msg("performance statistics")
	for _, st := range s.Snapshot() {
		log.Info().
			Str("stage", st.Stage).
			Uint64("count", st.Count).
			Uint64("failures", st.Failures).
			Float64("total_ms", st.TotalMs).
			Float64("avg_ms", st.AvgMs).
			Msg("stage")
	}
}
