package types

// ElemType is the element type of a tensor buffer.
type ElemType int

const (
	ElemFloat32 ElemType = iota
	ElemFloat16
	ElemInt8
	ElemUint8
	ElemInt16
	ElemInt32
	ElemInt64
	ElemBool
)

var elemNames = [...]string{"FP32", "FP16", "INT8", "UINT8", "INT16", "INT32", "INT64", "BOOL"}

func (t ElemType) String() string {
	if t < 0 || int(t) >= len(elemNames) {
		return "UNKNOWN"
	}
	return elemNames[t]
}

// Size returns the byte width of one element, or 0 for unknown types.
func (t ElemType) Size() int {
	switch t {
	case ElemInt8, ElemUint8, ElemBool:
		return 1
	case ElemFloat16, ElemInt16:
		return 2
	case ElemFloat32, ElemInt32:
		return 4
	case ElemInt64:
		return 8
	}
	return 0
}

// Layout describes the memory ordering of an image-like tensor.
type Layout int

const (
	LayoutUndefined Layout = iota
	LayoutNCHW
	LayoutNHWC
)

func (l Layout) String() string {
	switch l {
	case LayoutNCHW:
		return "NCHW"
	case LayoutNHWC:
		return "NHWC"
	}
	return "UNDEFINED"
}

// QuantType is the quantization scheme of a tensor.
type QuantType int

const (
	QuantNone QuantType = iota
	QuantDFP
	QuantAffineAsymmetric
)

func (q QuantType) String() string {
	switch q {
	case QuantDFP:
		return "DFP"
	case QuantAffineAsymmetric:
		return "AFFINE"
	}
	return "NONE"
}

// Tensor is one input buffer handed to the model.
type Tensor struct {
	Index  int
	Type   ElemType
	Layout Layout
	// Shape is optional; backends fall back to the model's declared input shape.
	Shape []int64
	Data  []byte
	// PassThrough asks the backend to feed Data unconverted.
	PassThrough bool
}

// Size returns the buffer size in bytes.
func (t Tensor) Size() int { return len(t.Data) }

// InputUnit is the parcel produced by a plugin's CollectInput. The inference
// worker that dequeues it owns it until ReleaseInput returns.
type InputUnit struct {
	Tensors []Tensor
	// Meta is free for the plugin (frame ids, source names, timestamps).
	Meta any
}

// Len returns the number of component tensors.
func (u *InputUnit) Len() int {
	if u == nil {
		return 0
	}
	return len(u.Tensors)
}

// OutputTensor holds one inference result.
type OutputTensor struct {
	Index     int
	WantFloat bool
	Shape     []int64
	// Float is populated when WantFloat is set, Raw otherwise.
	Float []float32
	Raw   []byte
	Size  int
	// Handle belongs to the backend and is released by ReleaseOutputs.
	Handle any
}

// OutputUnit is the parcel lent to a plugin's EmitOutput.
type OutputUnit struct {
	Tensors []OutputTensor
	// Input is the unit these results were computed from. It is only valid
	// for the duration of EmitOutput.
	Input *InputUnit
}

// NewOutputUnit allocates n zeroed output tensors with the given float preference.
func NewOutputUnit(n int, wantFloat bool) *OutputUnit {
	out := &OutputUnit{Tensors: make([]OutputTensor, n)}
	for i := range out.Tensors {
		out.Tensors[i].Index = i
		out.Tensors[i].WantFloat = wantFloat
	}
	return out
}

// Len returns the number of output tensors.
func (u *OutputUnit) Len() int {
	if u == nil {
		return 0
	}
	return len(u.Tensors)
}
