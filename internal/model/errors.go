package model

import (
	"errors"
	"fmt"
)

// Inference stages reported by InferError.
const (
	StageSetInputs  = "set_inputs"
	StageRun        = "run"
	StageGetOutputs = "get_outputs"
)

// ErrDuplicatesAlive is returned when a primary context is closed while
// duplicates still share its weights.
var ErrDuplicatesAlive = errors.New("model: duplicate contexts still alive")

// ErrPoolClosed is returned by operations on a closed pool.
var ErrPoolClosed = errors.New("model: pool closed")

// loadError wraps failures reading weights or creating the primary context.
type loadError struct {
	uri string
	err error
}

func (e loadError) Error() string { return fmt.Sprintf("load model %s: %v", e.uri, e.err) }
func (e loadError) Unwrap() error { return e.err }

// IsLoadError reports whether err came from LoadPrimary.
func IsLoadError(err error) bool {
	var le loadError
	return errors.As(err, &le)
}

// dupError wraps failures creating a duplicate context.
type dupError struct {
	err error
}

func (e dupError) Error() string { return "duplicate model context: " + e.err.Error() }
func (e dupError) Unwrap() error { return e.err }

// IsDupError reports whether err came from Duplicate.
func IsDupError(err error) bool {
	var de dupError
	return errors.As(err, &de)
}

// InferError reports which inference stage failed.
type InferError struct {
	Stage string
	Err   error
}

func (e *InferError) Error() string { return fmt.Sprintf("infer %s: %v", e.Stage, e.Err) }
func (e *InferError) Unwrap() error { return e.Err }

// IsInferError reports whether err came from Context.Infer.
func IsInferError(err error) bool {
	var ie *InferError
	return errors.As(err, &ie)
}

// InferStage returns the failed stage of an InferError, or "".
func InferStage(err error) string {
	var ie *InferError
	if errors.As(err, &ie) {
		return ie.Stage
	}
	return ""
}

// dependencyUnavailableError signals a backend that is not compiled in or
// whose runtime library cannot be loaded.
type dependencyUnavailableError struct{ msg string }

func (e dependencyUnavailableError) Error() string { return e.msg }

// ErrDependencyUnavailable constructs a dependencyUnavailableError.
func ErrDependencyUnavailable(msg string) error { return dependencyUnavailableError{msg: msg} }

// IsDependencyUnavailable reports whether err indicates a missing runtime dependency.
func IsDependencyUnavailable(err error) bool {
	var de dependencyUnavailableError
	return errors.As(err, &de)
}
