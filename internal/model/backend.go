package model

import (
	"fmt"

	"inferd/pkg/types"
)

// Backend opens sessions over a model weight blob.
type Backend interface {
	Name() string
	// Open creates a primary session. weights stays valid and unmodified
	// until every session derived from it is closed.
	Open(weights []byte) (Session, error)
	Close() error
}

// Session is one model execution context. A session is used by a single
// goroutine at a time.
type Session interface {
	Describe() (types.ModelDescriptor, error)
	// Duplicate returns a new session sharing this session's weights.
	Duplicate() (Session, error)
	SetInputs(in []types.Tensor) error
	Run() error
	// GetOutputs fills out, which the caller sized to the descriptor's
	// output count.
	GetOutputs(out []types.OutputTensor) error
	ReleaseOutputs(out []types.OutputTensor) error
	Close() error
}

// BackendOptions configures backend construction.
type BackendOptions struct {
	// ORTLibraryPath is the onnxruntime shared library for the onnx backend.
	ORTLibraryPath string
}

// DefaultBackend is used when no backend name is configured.
const DefaultBackend = "onnx"

// OpenBackend constructs a backend by name.
func OpenBackend(name string, opts BackendOptions) (Backend, error) {
	switch name {
	case "", DefaultBackend:
		return newONNXBackend(opts)
	}
	return nil, fmt.Errorf("unknown backend %q", name)
}
