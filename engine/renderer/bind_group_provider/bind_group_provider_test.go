package bind_group_provider

import (
	"slices"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
)

func TestSharedBindingsSurviveRelease(t *testing.T) {
	p := NewBindGroupProvider("trace", WithSharedBuffers(map[int]*wgpu.Buffer{2: nil, 0: nil}), WithBuffer(5, nil))

	if p.Label() != "trace" {
		t.Errorf("got label %q, expected %q", p.Label(), "trace")
	}
	if got := p.Bindings(); !slices.Equal(got, []int{0, 2, 5}) {
		t.Errorf("got bindings %v, expected [0 2 5]", got)
	}
	if !p.IsShared(0) || !p.IsShared(2) || p.IsShared(5) {
		t.Errorf("got shared flags %v %v %v, expected true true false", p.IsShared(0), p.IsShared(2), p.IsShared(5))
	}

	p.SetBuffer(2, nil)
	if p.IsShared(2) {
		t.Error("owned buffer should replace the shared flag")
	}

	p.Release()
	if len(p.Buffers()) != 0 || p.IsShared(0) {
		t.Errorf("got %d buffers after release, expected 0", len(p.Buffers()))
	}
}
