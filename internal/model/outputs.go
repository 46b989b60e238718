package model

import (
	"errors"
	"fmt"
	"reflect"

	"inferd/pkg/types"
)

// nativeValue is a runtime-owned buffer that must be destroyed exactly once.
type nativeValue interface {
	Destroy() error
}

// collectOutputs fills out from vals and attaches each value as the
// tensor's Handle. vals is always consumed: values beyond len(out) are
// destroyed, and on any failure every value, attached or not, is destroyed
// and the handles cleared.
func collectOutputs[V nativeValue](vals []V, out []types.OutputTensor, fill func(*types.OutputTensor, V) error) error {
	if len(out) > len(vals) {
		destroyValues(vals)
		return fmt.Errorf("requested %d outputs, model produced %d", len(out), len(vals))
	}
	for i := range out {
		v := vals[i]
		if isNilValue(v) {
			_ = releaseHandles(out[:i])
			destroyValues(vals[i:])
			return fmt.Errorf("output %d not produced", i)
		}
		o := &out[i]
		o.Index = i
		if err := fill(o, v); err != nil {
			_ = releaseHandles(out[:i])
			destroyValues(vals[i:])
			return fmt.Errorf("output %d: %w", i, err)
		}
		o.Handle = v
	}
	destroyValues(vals[len(out):])
	return nil
}

// releaseHandles destroys every attached handle and clears the tensors'
// contents.
func releaseHandles(out []types.OutputTensor) error {
	var errs []error
	for i := range out {
		if v, ok := out[i].Handle.(nativeValue); ok && !isNilValue(v) {
			if err := v.Destroy(); err != nil {
				errs = append(errs, err)
			}
		}
		out[i].Handle = nil
		out[i].Float = nil
		out[i].Raw = nil
	}
	return errors.Join(errs...)
}

func destroyValues[V nativeValue](vals []V) {
	for _, v := range vals {
		if !isNilValue(v) {
			_ = v.Destroy()
		}
	}
}

func isNilValue[V nativeValue](v V) bool {
	if any(v) == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}
