package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/queue"
	"inferd/internal/stats"
)

// inputLoop: Init, then collect and enqueue until ctx is done, then Uninit.
// A failed CollectInput is retried immediately.
func (s *Scheduler) inputLoop(ctx context.Context, w *worker) {
	if !s.initWorker(w) {
		return
	}
	defer s.uninitWorker(w)

	failLog := w.log.Sample(&zerolog.BurstSampler{Burst: 5, Period: time.Second})
	limit := s.req.QueueLimit
	for ctx.Err() == nil {
		start := time.Now()
		unit, err := s.plugin.CollectInput(w.tc)
		if err == nil && unit == nil {
			err = errNilUnit
		}
		s.stats.Record(stats.PluginInput, start, err)
		if err != nil {
			failLog.Warn().Err(err).Msg("collect input failed")
			continue
		}

		if limit > 0 {
			backoff := s.cfg.StallMin
			for ctx.Err() == nil && s.queue.Len() >= limit {
				sleepCtx(ctx, backoff)
				backoff = min(backoff*2, s.cfg.StallMax)
			}
		}
		s.queue.Push(queue.Pack{Unit: unit, Enqueued: time.Now()})
		s.stats.SetQueueDepth(s.queue.Len())
	}
}
