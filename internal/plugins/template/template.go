// Package template is the built-in sample plugin. It feeds zero-filled
// tensors shaped after the model's inputs and logs the top-k scores of every
// output. It doubles as a smoke test for a model and backend.
package template

import (
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"inferd/pkg/pluginapi"
	"inferd/pkg/types"
)

// Name is the identifier the plugin registers under.
const Name = "template"

// Options configures the plugin. Zero values keep the scheduler defaults.
type Options struct {
	InputThreads  int
	OutputThreads int
	// QueueLimit caps queued units; zero means twice the output threads.
	QueueLimit int
	// TopK scores logged per output; default 5.
	TopK int
	// Interval paces CollectInput; zero produces as fast as possible.
	Interval time.Duration
	Logger   *zerolog.Logger
}

// Plugin implements pluginapi.Plugin.
type Plugin struct {
	opts Options
	log  zerolog.Logger
	desc *types.ModelDescriptor

	seq     atomic.Uint64
	emitted atomic.Uint64
	live    atomic.Int64
}

var _ pluginapi.Plugin = (*Plugin)(nil)

// New returns a template plugin.
func New(opts Options) *Plugin {
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	l := zerolog.Nop()
	if opts.Logger != nil {
		l = opts.Logger.With().Str("plugin", Name).Logger()
	}
	return &Plugin{opts: opts, log: l}
}

func (p *Plugin) Name() string { return Name }
func (p *Plugin) Version() int { return 1 }

func (p *Plugin) GetConfig(req *types.ConfigRequest) error {
	if p.opts.InputThreads > 0 {
		req.InputThreads = p.opts.InputThreads
	}
	if p.opts.OutputThreads > 0 {
		req.OutputThreads = p.opts.OutputThreads
	}
	switch {
	case p.opts.QueueLimit > 0:
		req.QueueLimit = p.opts.QueueLimit
	case req.QueueLimit <= 0:
		req.QueueLimit = 2 * max(req.OutputThreads, 1)
	}
	req.WantFloat = true
	return nil
}

func (p *Plugin) SetConfig(desc *types.ModelDescriptor) error {
	if desc == nil || desc.NumInputs() == 0 {
		return errors.New("model has no inputs")
	}
	for _, in := range desc.Inputs {
		if inputSize(in) <= 0 {
			return fmt.Errorf("input %d (%s) has no static size", in.Index, in.Name)
		}
	}
	p.desc = desc
	return nil
}

type threadState struct {
	started time.Time
	units   int
}

func (p *Plugin) Init(tc *pluginapi.ThreadContext) error {
	tc.Private = &threadState{started: time.Now()}
	p.log.Debug().Str("role", tc.Role.String()).Int("worker", tc.ID).Msg("worker init")
	return nil
}

func (p *Plugin) Uninit(tc *pluginapi.ThreadContext) error {
	st, ok := tc.Private.(*threadState)
	if !ok {
		return errors.New("thread state missing")
	}
	p.log.Debug().
		Str("role", tc.Role.String()).
		Int("worker", tc.ID).
		Int("units", st.units).
		Dur("lifetime", time.Since(st.started)).
		Msg("worker uninit")
	tc.Private = nil
	return nil
}

func (p *Plugin) CollectInput(tc *pluginapi.ThreadContext) (*types.InputUnit, error) {
	if p.opts.Interval > 0 {
		time.Sleep(p.opts.Interval)
	}
	unit := &types.InputUnit{Meta: p.seq.Add(1)}
	for _, in := range p.desc.Inputs {
		unit.Tensors = append(unit.Tensors, types.Tensor{
			Index:  in.Index,
			Type:   in.Type,
			Layout: in.Layout,
			Shape:  in.Shape,
			Data:   make([]byte, inputSize(in)),
		})
	}
	if st, ok := tc.Private.(*threadState); ok {
		st.units++
	}
	p.live.Add(1)
	return unit, nil
}

func (p *Plugin) ReleaseInput(_ *pluginapi.ThreadContext, in *types.InputUnit) error {
	if in == nil {
		return errors.New("nil input unit")
	}
	in.Tensors = nil
	p.live.Add(-1)
	return nil
}

func (p *Plugin) EmitOutput(tc *pluginapi.ThreadContext, out *types.OutputUnit) error {
	if st, ok := tc.Private.(*threadState); ok {
		st.units++
	}
	p.emitted.Add(1)
	var frame any
	if out.Input != nil {
		frame = out.Input.Meta
	}
	for _, o := range out.Tensors {
		if len(o.Float) == 0 {
			continue
		}
		top := TopK(o.Float, p.opts.TopK)
		ev := p.log.Info().Interface("frame", frame).Int("output", o.Index).Int("worker", tc.ID)
		arr := zerolog.Arr()
		for _, s := range top {
			arr = arr.Dict(zerolog.Dict().Int("class", s.Index).Float32("score", s.Score))
		}
		ev.Array("top", arr).Msg("result")
	}
	return nil
}

// Emitted returns the number of outputs consumed.
func (p *Plugin) Emitted() uint64 { return p.emitted.Load() }

// Outstanding returns collected units not yet released.
func (p *Plugin) Outstanding() int64 { return p.live.Load() }

func inputSize(a types.TensorAttr) int64 {
	if a.Size > 0 {
		return a.Size
	}
	n := a.Elems
	if n <= 0 {
		n = types.ElemCount(a.Shape)
	}
	return n * int64(a.Type.Size())
}

// Score is one ranked output element.
type Score struct {
	Index int
	Score float32
}

// TopK returns the k largest values of vals in descending order. Ties keep
// the lower index first.
func TopK(vals []float32, k int) []Score {
	if k > len(vals) {
		k = len(vals)
	}
	all := make([]Score, len(vals))
	for i, v := range vals {
		all[i] = Score{Index: i, Score: v}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Score > all[j].Score })
	return all[:k]
}
