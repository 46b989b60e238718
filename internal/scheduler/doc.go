// Package scheduler runs the plugin-hosted inference pipeline: N input
// workers collect units from the plugin into a shared queue, M inference
// workers run them through their own model context and hand the results
// back to the plugin.
//
// Files:
//   - config.go: Config and defaults.
//   - scheduler.go: New, Start, Stop, Wait and lifecycle state.
//   - input.go: input worker loop (collect, stall on queue limit, enqueue).
//   - inference.go: inference worker loop (dequeue, infer, emit, release).
//   - worker.go: per-worker thread context, init/uninit, panic recovery.
//   - status.go: Check, Running and Status snapshots.
//   - events.go, eventpub_memory.go: lifecycle events.
//   - errors.go: startup error types.
package scheduler
