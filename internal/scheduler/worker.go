package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/model"
	"inferd/internal/stats"
	"inferd/pkg/pluginapi"
)

type worker struct {
	tc    *pluginapi.ThreadContext
	model *model.Context
	log   zerolog.Logger
	done  chan struct{}
}

func (s *Scheduler) newWorker(role pluginapi.Role, id int) *worker {
	return &worker{
		tc:   &pluginapi.ThreadContext{ID: id, Role: role, Plugin: s.plugin},
		log:  s.log.With().Str("role", role.String()).Int("worker", id).Logger(),
		done: make(chan struct{}),
	}
}

// spawn runs loop on its own goroutine. A panic ends only this worker.
func (s *Scheduler) spawn(w *worker, loop func(context.Context, *worker)) {
	ctx := s.ctx
	go func() {
		defer close(w.done)
		defer func() {
			var fields map[string]any
			if r := recover(); r != nil {
				w.log.Error().
					Str("panic", fmt.Sprint(r)).
					Bytes("stack", debug.Stack()).
					Msg("worker panicked")
				fields = map[string]any{"panic": fmt.Sprint(r)}
			}
			s.publish(EventWorkerExited, w, fields)
		}()
		loop(ctx, w)
	}()
}

// initWorker calls the plugin's Init. A failure ends the worker.
func (s *Scheduler) initWorker(w *worker) bool {
	start := time.Now()
	err := s.plugin.Init(w.tc)
	s.stats.Record(stats.PluginInit, start, err)
	if err != nil {
		w.log.Error().Err(err).Msg("worker init failed")
		if w.tc.Role == pluginapi.RoleInput {
			s.inputInitFailed.Add(1)
		} else {
			s.inferInitFailed.Add(1)
		}
		s.publish(EventWorkerInitFailed, w, map[string]any{"error": err.Error()})
		return false
	}
	s.publish(EventWorkerStarted, w, nil)
	return true
}

func (s *Scheduler) uninitWorker(w *worker) {
	start := time.Now()
	err := s.plugin.Uninit(w.tc)
	s.stats.Record(stats.PluginUninit, start, err)
	if err != nil {
		w.log.Warn().Err(err).Msg("worker uninit failed")
	}
}

// sleepCtx sleeps for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
