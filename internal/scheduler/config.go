package scheduler

import (
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/model"
	"inferd/internal/registry"
	"inferd/internal/stats"
)

// Stall backoff applied by input workers while the queue is at its limit.
const (
	defaultStallMin = time.Millisecond
	defaultStallMax = 50 * time.Millisecond
)

// Config encapsulates everything New needs.
type Config struct {
	// Registry resolves Plugin. Required.
	Registry *registry.Registry
	Plugin   string
	// ModelURI is a local path or gs://bucket/object.
	ModelURI string
	// Backend executes the model. Required; the scheduler closes it on Stop
	// or on a failed New.
	Backend model.Backend
	// Source reads weights; nil means local files only.
	Source model.WeightSource

	// Diagnostics logs tensor attributes at load and the stage report at
	// shutdown.
	Diagnostics bool
	// ShowModel logs tensor attributes without the shutdown report.
	ShowModel bool
	// ReleaseOnInferFailure hands the input unit back to the plugin when
	// inference fails. By default a failed unit is not released.
	ReleaseOnInferFailure bool

	StallMin time.Duration
	StallMax time.Duration

	Stats     *stats.Stats
	Publisher EventPublisher
	Logger    *zerolog.Logger
}

func (c *Config) applyDefaults() {
	if c.StallMin <= 0 {
		c.StallMin = defaultStallMin
	}
	if c.StallMax < c.StallMin {
		c.StallMax = defaultStallMax
		if c.StallMax < c.StallMin {
			c.StallMax = c.StallMin
		}
	}
	if c.Stats == nil {
		c.Stats = stats.New()
	}
	if c.Publisher == nil {
		c.Publisher = noopPublisher{}
	}
}
