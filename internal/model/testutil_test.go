package model

import (
	"context"
	"errors"
	"sync"

	"inferd/pkg/types"
)

// recorder collects lifecycle events across fakes in call order.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type fakeBackend struct {
	rec     *recorder
	desc    types.ModelDescriptor
	openErr error
	dupErr  error
	// stage failures applied to every session
	failSet, failRun, failGet bool
	opened                    []*fakeSession
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		rec: &recorder{},
		desc: types.ModelDescriptor{
			RuntimeVersion: "fake-1",
			Inputs:         []types.TensorAttr{{Index: 0, Name: "images", Shape: []int64{1, 3, 4, 4}, Elems: 48, Size: 48, Type: types.ElemUint8, Layout: types.LayoutNCHW}},
			Outputs: []types.TensorAttr{
				{Index: 0, Name: "scores", Shape: []int64{1, 4}, Elems: 4, Size: 16, Type: types.ElemFloat32},
				{Index: 1, Name: "boxes", Shape: []int64{1, 4, 4}, Elems: 16, Size: 64, Type: types.ElemFloat32},
			},
		},
	}
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Open(weights []byte) (Session, error) {
	if b.openErr != nil {
		return nil, b.openErr
	}
	s := &fakeSession{b: b, id: len(b.opened), weights: weights}
	b.opened = append(b.opened, s)
	return s, nil
}

func (b *fakeBackend) Close() error {
	b.rec.add("backend")
	return nil
}

type fakeSession struct {
	b       *fakeBackend
	id      int
	dup     bool
	weights []byte
	inputs  []types.Tensor
	ran     bool
	closed  bool
	runs    int
}

func (s *fakeSession) Describe() (types.ModelDescriptor, error) { return s.b.desc, nil }

func (s *fakeSession) Duplicate() (Session, error) {
	if s.b.dupErr != nil {
		return nil, s.b.dupErr
	}
	d := &fakeSession{b: s.b, id: len(s.b.opened), dup: true, weights: s.weights}
	s.b.opened = append(s.b.opened, d)
	return d, nil
}

func (s *fakeSession) SetInputs(in []types.Tensor) error {
	if s.b.failSet {
		return errors.New("bad input")
	}
	s.inputs = in
	return nil
}

func (s *fakeSession) Run() error {
	if s.b.failRun {
		return errors.New("npu fault")
	}
	s.ran = true
	s.runs++
	return nil
}

func (s *fakeSession) GetOutputs(out []types.OutputTensor) error {
	if s.b.failGet {
		return errors.New("output fetch failed")
	}
	for i := range out {
		out[i].Float = []float32{float32(i), 1}
		out[i].Size = 8
		out[i].Handle = s.id
	}
	return nil
}

func (s *fakeSession) ReleaseOutputs(out []types.OutputTensor) error {
	for i := range out {
		out[i].Float = nil
		out[i].Handle = nil
	}
	return nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	if s.dup {
		s.b.rec.add("dup")
	} else {
		s.b.rec.add("primary")
	}
	return nil
}

func blobSource(blob []byte) WeightSource {
	return SourceFunc(func(_ context.Context, _ string) ([]byte, error) { return blob, nil })
}
