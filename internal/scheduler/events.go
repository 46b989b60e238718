package scheduler

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event names published by the scheduler.
const (
	EventWorkerStarted         = "worker_started"
	EventWorkerInitFailed      = "worker_init_failed"
	EventWorkerExited          = "worker_exited"
	EventInputWorkerJoined     = "input_worker_joined"
	EventInferenceWorkerJoined = "inference_worker_joined"
	EventQueueDropped          = "queue_dropped"
	EventStopped               = "stopped"
)

// Event is one scheduler lifecycle event. Worker is -1 for events that do
// not concern a single worker.
type Event struct {
	Name   string
	Time   time.Time
	Role   string
	Worker int
	Fields map[string]any
}

// EventPublisher receives scheduler events. Publish is called from worker
// goroutines and must not block or panic.
type EventPublisher interface {
	Publish(Event)
}

type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// LogPublisher writes every event to a zerolog logger at debug level.
type LogPublisher struct {
	log zerolog.Logger
}

func NewLogPublisher(l *zerolog.Logger) *LogPublisher {
	if l == nil {
		nop := zerolog.Nop()
		l = &nop
	}
	return &LogPublisher{log: l.With().Str("component", "events").Logger()}
}

func (p *LogPublisher) Publish(e Event) {
	ev := p.log.Debug().Time("at", e.Time).Str("event", e.Name)
	if e.Role != "" {
		ev = ev.Str("role", e.Role)
	}
	if e.Worker >= 0 {
		ev = ev.Int("worker", e.Worker)
	}
	if len(e.Fields) > 0 {
		ev = ev.Fields(e.Fields)
	}
	ev.Msg("scheduler event")
}

// MemoryPublisher records events in publish order.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

func (p *MemoryPublisher) Publish(e Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

// Events returns a copy of everything published so far.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

// Named returns the events called name, in publish order.
func (p *MemoryPublisher) Named(name string) []Event {
	var out []Event
	for _, e := range p.Events() {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}
