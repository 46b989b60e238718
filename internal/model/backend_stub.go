//go:build !onnx

package model

// Default builds carry no onnxruntime dependency. The real backend lives in
// backend_onnx.go and is compiled with -tags onnx.

func newONNXBackend(BackendOptions) (Backend, error) {
	return nil, ErrDependencyUnavailable("onnx support not built (missing 'onnx' build tag)")
}
