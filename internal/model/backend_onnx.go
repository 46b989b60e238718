//go:build onnx

package model

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"inferd/pkg/types"
)

var (
	ortInitMu   sync.Mutex
	ortInitRefs int
)

type onnxBackend struct{}

func newONNXBackend(opts BackendOptions) (Backend, error) {
	ortInitMu.Lock()
	defer ortInitMu.Unlock()
	if ortInitRefs == 0 {
		if opts.ORTLibraryPath != "" {
			ort.SetSharedLibraryPath(opts.ORTLibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, ErrDependencyUnavailable("onnxruntime: " + err.Error())
		}
	}
	ortInitRefs++
	return &onnxBackend{}, nil
}

func (b *onnxBackend) Name() string { return "onnx" }

func (b *onnxBackend) Close() error {
	ortInitMu.Lock()
	defer ortInitMu.Unlock()
	if ortInitRefs == 0 {
		return nil
	}
	ortInitRefs--
	if ortInitRefs == 0 {
		return ort.DestroyEnvironment()
	}
	return nil
}

func (b *onnxBackend) Open(weights []byte) (Session, error) {
	ins, outs, err := ort.GetInputOutputInfoWithONNXData(weights)
	if err != nil {
		return nil, fmt.Errorf("reading model io info: %w", err)
	}
	return newONNXSession(weights, ins, outs)
}

// onnxSession runs a DynamicAdvancedSession. Outputs are passed as nil and
// allocated by the runtime on each Run.
type onnxSession struct {
	weights []byte
	ins     []ort.InputOutputInfo
	outs    []ort.InputOutputInfo
	sess    *ort.DynamicAdvancedSession

	inputs  []ort.Value
	outputs []ort.Value
}

func newONNXSession(weights []byte, ins, outs []ort.InputOutputInfo) (*onnxSession, error) {
	sess, err := ort.NewDynamicAdvancedSessionWithONNXData(weights, ioNames(ins), ioNames(outs), nil)
	if err != nil {
		return nil, fmt.Errorf("creating onnx session: %w", err)
	}
	return &onnxSession{weights: weights, ins: ins, outs: outs, sess: sess}, nil
}

func ioNames(infos []ort.InputOutputInfo) []string {
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	return names
}

func (s *onnxSession) Describe() (types.ModelDescriptor, error) {
	d := types.ModelDescriptor{RuntimeVersion: "onnxruntime"}
	for i, info := range s.ins {
		d.Inputs = append(d.Inputs, attrFromInfo(i, info))
	}
	for i, info := range s.outs {
		d.Outputs = append(d.Outputs, attrFromInfo(i, info))
	}
	return d, nil
}

func attrFromInfo(i int, info ort.InputOutputInfo) types.TensorAttr {
	shape := []int64(info.Dimensions)
	et := elemFromORT(info.DataType)
	n := types.ElemCount(shape)
	layout := types.LayoutUndefined
	if len(shape) == 4 {
		switch {
		case shape[1] == 3:
			layout = types.LayoutNCHW
		case shape[3] == 3:
			layout = types.LayoutNHWC
		}
	}
	return types.TensorAttr{
		Index:  i,
		Name:   info.Name,
		Shape:  append([]int64(nil), shape...),
		Elems:  n,
		Size:   n * int64(et.Size()),
		Layout: layout,
		Type:   et,
		Scale:  1,
	}
}

// Duplicate opens another session over the same weight slice.
func (s *onnxSession) Duplicate() (Session, error) {
	return newONNXSession(s.weights, s.ins, s.outs)
}

func (s *onnxSession) SetInputs(in []types.Tensor) error {
	s.destroyInputs()
	if len(in) != len(s.ins) {
		return fmt.Errorf("model expects %d inputs, got %d", len(s.ins), len(in))
	}
	vals := make([]ort.Value, len(in))
	for _, t := range in {
		if t.Index < 0 || t.Index >= len(s.ins) {
			destroyAll(vals)
			return fmt.Errorf("input index %d out of range", t.Index)
		}
		info := s.ins[t.Index]
		shape := t.Shape
		if len(shape) == 0 {
			shape = concreteShape(info.Dimensions)
		}
		dt := ortFromElem(t.Type, info.DataType)
		if t.PassThrough {
			dt = info.DataType
		}
		v, err := ort.NewCustomDataTensor(ort.NewShape(shape...), t.Data, dt)
		if err != nil {
			destroyAll(vals)
			return fmt.Errorf("input %d: %w", t.Index, err)
		}
		vals[t.Index] = v
	}
	s.inputs = vals
	return nil
}

func concreteShape(dims ort.Shape) []int64 {
	out := make([]int64, len(dims))
	for i, d := range dims {
		if d <= 0 {
			d = 1
		}
		out[i] = d
	}
	return out
}

func (s *onnxSession) Run() error {
	if s.inputs == nil {
		return errors.New("inputs not set")
	}
	s.dropOutputs()
	s.outputs = make([]ort.Value, len(s.outs))
	err := s.sess.Run(s.inputs, s.outputs)
	s.destroyInputs()
	return err
}

func (s *onnxSession) GetOutputs(out []types.OutputTensor) error {
	vals := s.outputs
	s.outputs = nil
	return collectOutputs(vals, out, func(o *types.OutputTensor, v ort.Value) error {
		o.Shape = append([]int64(nil), v.GetShape()...)
		return fillOutput(o, v)
	})
}

func (s *onnxSession) dropOutputs() {
	destroyAll(s.outputs)
	s.outputs = nil
}

func fillOutput(o *types.OutputTensor, v ort.Value) error {
	switch t := v.(type) {
	case *ort.Tensor[float32]:
		return fillTyped(o, t.GetData())
	case *ort.Tensor[float64]:
		return fillTyped(o, t.GetData())
	case *ort.Tensor[int64]:
		return fillTyped(o, t.GetData())
	case *ort.Tensor[int32]:
		return fillTyped(o, t.GetData())
	case *ort.Tensor[int8]:
		return fillTyped(o, t.GetData())
	case *ort.Tensor[uint8]:
		return fillTyped(o, t.GetData())
	case *ort.CustomDataTensor:
		if o.WantFloat {
			return errors.New("cannot convert custom data tensor to float")
		}
		o.Raw = append([]byte(nil), t.GetData()...)
		o.Size = len(o.Raw)
		return nil
	}
	return fmt.Errorf("unsupported output value %T", v)
}

type number interface {
	~float32 | ~float64 | ~int64 | ~int32 | ~int8 | ~uint8
}

func fillTyped[T number](o *types.OutputTensor, data []T) error {
	if o.WantFloat {
		o.Float = make([]float32, len(data))
		for i, x := range data {
			o.Float[i] = float32(x)
		}
		o.Size = len(o.Float) * 4
		return nil
	}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, data); err != nil {
		return err
	}
	o.Raw = buf.Bytes()
	o.Size = len(o.Raw)
	return nil
}

func (s *onnxSession) ReleaseOutputs(out []types.OutputTensor) error {
	return releaseHandles(out)
}

func (s *onnxSession) destroyInputs() {
	destroyAll(s.inputs)
	s.inputs = nil
}

func destroyAll(vals []ort.Value) {
	for _, v := range vals {
		if v != nil {
			_ = v.Destroy()
		}
	}
}

func (s *onnxSession) Close() error {
	s.destroyInputs()
	s.dropOutputs()
	return s.sess.Destroy()
}

func elemFromORT(dt ort.TensorElementDataType) types.ElemType {
	switch dt {
	case ort.TensorElementDataTypeFloat16:
		return types.ElemFloat16
	case ort.TensorElementDataTypeInt8:
		return types.ElemInt8
	case ort.TensorElementDataTypeUint8:
		return types.ElemUint8
	case ort.TensorElementDataTypeInt16:
		return types.ElemInt16
	case ort.TensorElementDataTypeInt32:
		return types.ElemInt32
	case ort.TensorElementDataTypeInt64:
		return types.ElemInt64
	case ort.TensorElementDataTypeBool:
		return types.ElemBool
	}
	return types.ElemFloat32
}

// ortFromElem maps a plugin element type, falling back to the model's
// declared type.
func ortFromElem(et types.ElemType, declared ort.TensorElementDataType) ort.TensorElementDataType {
	switch et {
	case types.ElemFloat32:
		return ort.TensorElementDataTypeFloat
	case types.ElemFloat16:
		return ort.TensorElementDataTypeFloat16
	case types.ElemInt8:
		return ort.TensorElementDataTypeInt8
	case types.ElemUint8:
		return ort.TensorElementDataTypeUint8
	case types.ElemInt16:
		return ort.TensorElementDataTypeInt16
	case types.ElemInt32:
		return ort.TensorElementDataTypeInt32
	case types.ElemInt64:
		return ort.TensorElementDataTypeInt64
	case types.ElemBool:
		return ort.TensorElementDataTypeBool
	}
	return declared
}
