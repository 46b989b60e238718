package types

// StageStats summarizes one pipeline stage counter.
type StageStats struct {
	// Stage name (e.g., model_infer, plugin_output, queue_wait).
	Stage string `json:"stage"`
	// Number of recorded calls.
	Count uint64 `json:"count"`
	// Number of failed calls.
	Failures uint64 `json:"failures"`
	// Cumulative duration in milliseconds.
	TotalMs float64 `json:"total_ms"`
	// Average duration in milliseconds (0 when Count is 0).
	AvgMs float64 `json:"avg_ms"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Unique id of this scheduler run.
	RunID string `json:"run_id"`
	// Lifecycle state (constructed, running, draining, stopped, failed).
	State string `json:"state"`
	// Resolved plugin name and version.
	Plugin        string `json:"plugin"`
	PluginVersion int    `json:"plugin_version"`
	// Model weights location.
	Model string `json:"model"`
	// Backend serving the model.
	Backend string `json:"backend"`
	// Worker counts as requested by the plugin.
	InputWorkers     int `json:"input_workers"`
	InferenceWorkers int `json:"inference_workers"`
	// Number of model contexts (1 primary + duplicates).
	ModelContexts int `json:"model_contexts"`
	// Current work queue length and configured limit (0 = unbounded).
	QueueLen   int `json:"queue_len"`
	QueueLimit int `json:"queue_limit"`
	// Packs left in the queue at shutdown.
	DroppedPacks int `json:"dropped_packs"`
	// Uptime in seconds since Start.
	UptimeSeconds int64 `json:"uptime_seconds"`
	// Per-stage counters (only when diagnostics are enabled).
	Stages []StageStats `json:"stages,omitempty"`
	// Startup error, if any.
	Error string `json:"error,omitempty"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}
