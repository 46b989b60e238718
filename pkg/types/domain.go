package types

// ConfigRequest is what a plugin asks of the scheduler. It is read once,
// before any worker exists.
type ConfigRequest struct {
	// Number of input (collecting) workers.
	InputThreads int `json:"input_threads"`
	// Number of output (inference) workers; one model context each.
	OutputThreads int `json:"output_threads"`
	// Queue length at which input workers stall before pushing. 0 = unbounded.
	QueueLimit int `json:"queue_limit"`
	// Whether output tensors should be dequantized to float32.
	WantFloat bool `json:"want_float"`
}

// DefaultConfigRequest returns the values used when a plugin leaves fields untouched.
func DefaultConfigRequest() ConfigRequest {
	return ConfigRequest{InputThreads: 1, OutputThreads: 1, QueueLimit: 0, WantFloat: true}
}

// TensorAttr describes one model input or output.
type TensorAttr struct {
	Index     int       `json:"index"`
	Name      string    `json:"name"`
	Shape     []int64   `json:"shape"`
	Elems     int64     `json:"n_elems"`
	Size      int64     `json:"size"`
	Layout    Layout    `json:"layout"`
	Type      ElemType  `json:"type"`
	QuantType QuantType `json:"qnt_type"`
	ZeroPoint int32     `json:"zp"`
	Scale     float32   `json:"scale"`
}

// ModelDescriptor is delivered to the plugin through SetConfig after the
// primary model context is loaded. It must not be modified afterwards.
type ModelDescriptor struct {
	RuntimeVersion string       `json:"runtime_version"`
	Inputs         []TensorAttr `json:"inputs"`
	Outputs        []TensorAttr `json:"outputs"`
	WeightsSize    int64        `json:"weights_size"`
	WeightsDigest  uint64       `json:"weights_digest"`
}

// NumInputs returns the declared input tensor count.
func (d *ModelDescriptor) NumInputs() int { return len(d.Inputs) }

// NumOutputs returns the declared output tensor count.
func (d *ModelDescriptor) NumOutputs() int { return len(d.Outputs) }

// ElemCount multiplies the dimensions of shape; dynamic (<=0) dims count as 1.
func ElemCount(shape []int64) int64 {
	if len(shape) == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range shape {
		if d > 0 {
			n *= d
		}
	}
	return n
}
