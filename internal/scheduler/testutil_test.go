package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"inferd/internal/model"
	"inferd/internal/registry"
	"inferd/pkg/pluginapi"
	"inferd/pkg/types"
)

const badByte = 0xFF

// fakePlugin produces numbered single-tensor units and records everything
// the scheduler hands back.
type fakePlugin struct {
	name string
	req  types.ConfigRequest

	getConfigErr error
	setConfigErr error
	initErr      func(tc *pluginapi.ThreadContext) error
	emitHook     func(tc *pluginapi.ThreadContext, out *types.OutputUnit) error
	collectDelay time.Duration
	// bad unit ids carry badByte and fail in the fake backend's Run.
	bad map[int]bool

	next     atomic.Int64
	inits    atomic.Int64
	uninits  atomic.Int64
	released atomic.Int64

	mu         sync.Mutex
	desc       *types.ModelDescriptor
	emitted    []int
	releasedID []int
}

func newFakePlugin(in, out, limit int) *fakePlugin {
	return &fakePlugin{
		name:         "fake",
		req:          types.ConfigRequest{InputThreads: in, OutputThreads: out, QueueLimit: limit, WantFloat: true},
		collectDelay: 200 * time.Microsecond,
		bad:          map[int]bool{},
	}
}

func (p *fakePlugin) Name() string { return p.name }
func (p *fakePlugin) Version() int { return 3 }

func (p *fakePlugin) GetConfig(req *types.ConfigRequest) error {
	if p.getConfigErr != nil {
		return p.getConfigErr
	}
	*req = p.req
	return nil
}

func (p *fakePlugin) SetConfig(desc *types.ModelDescriptor) error {
	if p.setConfigErr != nil {
		return p.setConfigErr
	}
	p.mu.Lock()
	p.desc = desc
	p.mu.Unlock()
	return nil
}

func (p *fakePlugin) Init(tc *pluginapi.ThreadContext) error {
	if p.initErr != nil {
		if err := p.initErr(tc); err != nil {
			return err
		}
	}
	p.inits.Add(1)
	tc.Private = tc.ID
	return nil
}

func (p *fakePlugin) Uninit(tc *pluginapi.ThreadContext) error {
	p.uninits.Add(1)
	tc.Private = nil
	return nil
}

func (p *fakePlugin) CollectInput(*pluginapi.ThreadContext) (*types.InputUnit, error) {
	if p.collectDelay > 0 {
		time.Sleep(p.collectDelay)
	}
	id := int(p.next.Add(1) - 1)
	b := byte(1)
	if p.bad[id] {
		b = badByte
	}
	return &types.InputUnit{Tensors: []types.Tensor{{Index: 0, Type: types.ElemUint8, Data: []byte{b}}}, Meta: id}, nil
}

func (p *fakePlugin) ReleaseInput(_ *pluginapi.ThreadContext, in *types.InputUnit) error {
	p.released.Add(1)
	p.mu.Lock()
	p.releasedID = append(p.releasedID, in.Meta.(int))
	p.mu.Unlock()
	return nil
}

func (p *fakePlugin) EmitOutput(tc *pluginapi.ThreadContext, out *types.OutputUnit) error {
	if p.emitHook != nil {
		if err := p.emitHook(tc, out); err != nil {
			return err
		}
	}
	p.mu.Lock()
	p.emitted = append(p.emitted, out.Input.Meta.(int))
	p.mu.Unlock()
	return nil
}

func (p *fakePlugin) emittedIDs() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.emitted...)
}

func (p *fakePlugin) releasedIDs() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.releasedID...)
}

type fakeBackend struct {
	mu        sync.Mutex
	primaries int
	dups      int
	closed    bool
	openErr   error
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Open([]byte) (model.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openErr != nil {
		return nil, b.openErr
	}
	b.primaries++
	return &fakeSession{b: b}, nil
}

func (b *fakeBackend) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

func (b *fakeBackend) counts() (primaries, dups int, closed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.primaries, b.dups, b.closed
}

type fakeSession struct {
	b  *fakeBackend
	in []types.Tensor
}

func (s *fakeSession) Describe() (types.ModelDescriptor, error) {
	return types.ModelDescriptor{
		RuntimeVersion: "fake",
		Inputs:         []types.TensorAttr{{Name: "in", Shape: []int64{1}, Elems: 1, Size: 1, Type: types.ElemUint8}},
		Outputs: []types.TensorAttr{
			{Index: 0, Name: "a", Shape: []int64{1}, Elems: 1, Size: 4},
			{Index: 1, Name: "b", Shape: []int64{1}, Elems: 1, Size: 4},
		},
	}, nil
}

func (s *fakeSession) Duplicate() (model.Session, error) {
	s.b.mu.Lock()
	s.b.dups++
	s.b.mu.Unlock()
	return &fakeSession{b: s.b}, nil
}

func (s *fakeSession) SetInputs(in []types.Tensor) error {
	s.in = in
	return nil
}

func (s *fakeSession) Run() error {
	if len(s.in) > 0 && len(s.in[0].Data) > 0 && s.in[0].Data[0] == badByte {
		return errors.New("npu fault")
	}
	return nil
}

func (s *fakeSession) GetOutputs(out []types.OutputTensor) error {
	for i := range out {
		out[i].Float = []float32{float32(s.in[0].Data[0])}
		out[i].Size = 4
	}
	return nil
}

func (s *fakeSession) ReleaseOutputs(out []types.OutputTensor) error {
	for i := range out {
		out[i].Float = nil
	}
	return nil
}

func (s *fakeSession) Close() error { return nil }

type testEnv struct {
	plugin  *fakePlugin
	backend *fakeBackend
	pub     *MemoryPublisher
	cfg     Config
}

func newTestEnv(t *testing.T, p *fakePlugin) *testEnv {
	t.Helper()
	reg := registry.New(nil, nil)
	if err := reg.Register(p); err != nil {
		t.Fatalf("register: %v", err)
	}
	b := &fakeBackend{}
	pub := NewMemoryPublisher()
	return &testEnv{
		plugin:  p,
		backend: b,
		pub:     pub,
		cfg: Config{
			Registry:  reg,
			Plugin:    p.name,
			ModelURI:  "model.bin",
			Backend:   b,
			Source:    model.SourceFunc(func(context.Context, string) ([]byte, error) { return []byte("weights"), nil }),
			Publisher: pub,
		},
	}
}

func (e *testEnv) start(t *testing.T) *Scheduler {
	t.Helper()
	s, err := New(context.Background(), e.cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(s.Stop)
	return s
}

// waitFor polls cond until it holds or the timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}
