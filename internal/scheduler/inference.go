package scheduler

import (
	"context"
	"time"

	"inferd/internal/queue"
	"inferd/internal/stats"
	"inferd/pkg/types"
)

// inferenceLoop: Init, then dequeue and process until ctx is done and the
// queue wakes it empty, then Uninit.
func (s *Scheduler) inferenceLoop(ctx context.Context, w *worker) {
	if !s.initWorker(w) {
		return
	}
	defer s.uninitWorker(w)

	for ctx.Err() == nil {
		pack, ok := s.queue.Pop(ctx)
		if !ok {
			return
		}
		s.stats.Observe(stats.QueueWait, time.Since(pack.Enqueued), false)
		s.stats.SetQueueDepth(s.queue.Len())
		s.process(w, &pack)
	}
}

// process runs Infer, EmitOutput, ReleaseOutputs and ReleaseInput in order.
// A failed step is logged and the remaining steps are skipped.
func (s *Scheduler) process(w *worker, pack *queue.Pack) {
	out := types.NewOutputUnit(s.desc.NumOutputs(), s.req.WantFloat)
	out.Input = pack.Unit

	start := time.Now()
	err := w.model.Infer(pack.Unit, out)
	s.stats.Record(stats.ModelInfer, start, err)
	if err != nil {
		w.log.Warn().Err(err).Msg("inference failed")
		if s.cfg.ReleaseOnInferFailure {
			s.releaseInput(w, pack)
		}
		return
	}

	start = time.Now()
	err = s.plugin.EmitOutput(w.tc, out)
	s.stats.Record(stats.PluginOutput, start, err)
	if err != nil {
		w.log.Warn().Err(err).Msg("emit output failed")
		return
	}

	start = time.Now()
	err = w.model.ReleaseOutputs(out)
	s.stats.Record(stats.ModelRelease, start, err)
	if err != nil {
		w.log.Warn().Err(err).Msg("release outputs failed")
		return
	}

	s.releaseInput(w, pack)
}

// releaseInput hands the unit back to the plugin and clears it from the pack
// so it cannot be released twice.
func (s *Scheduler) releaseInput(w *worker, pack *queue.Pack) {
	unit := pack.Unit
	if unit == nil {
		return
	}
	pack.Unit = nil
	start := time.Now()
	err := s.plugin.ReleaseInput(w.tc, unit)
	s.stats.Record(stats.PluginInputRelease, start, err)
	if err != nil {
		w.log.Warn().Err(err).Msg("release input failed")
	}
}
