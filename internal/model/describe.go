package model

import (
	"github.com/rs/zerolog"

	"inferd/pkg/types"
)

func logDescriptor(log zerolog.Logger, d *types.ModelDescriptor) {
	log.Info().Str("runtime", d.RuntimeVersion).Int("inputs", d.NumInputs()).Int("outputs", d.NumOutputs()).Msg("model descriptor")
	for _, a := range d.Inputs {
		logAttr(log, "input", a)
	}
	for _, a := range d.Outputs {
		logAttr(log, "output", a)
	}
}

func logAttr(log zerolog.Logger, dir string, a types.TensorAttr) {
	log.Info().
		Str("dir", dir).
		Int("index", a.Index).
		Str("name", a.Name).
		Ints64("shape", a.Shape).
		Int64("n_elems", a.Elems).
		Int64("size", a.Size).
		Stringer("layout", a.Layout).
		Stringer("type", a.Type).
		Stringer("qnt_type", a.QuantType).
		Int32("zp", a.ZeroPoint).
		Float32("scale", a.Scale).
		Msg("tensor attr")
}
