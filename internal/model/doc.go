// Package model owns the accelerated model contexts used by inference
// workers.
//
// Files:
//   - backend.go: Backend and Session interfaces, backend selection.
//   - backend_onnx.go / backend_stub.go: ONNX Runtime backend behind the
//     'onnx' build tag and its fail-fast stub.
//   - weights.go: weight blob sources (local path, gs://bucket/object).
//   - arena.go: ref-counted weight arena shared by primary and duplicates.
//   - pool.go: Pool and Context (load, duplicate, infer, release, close).
//   - describe.go: tensor attribute dump for diagnostic mode.
//   - errors.go: typed errors and predicates.
package model
