package dispatch

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-wavefront/engine/queue"
)

func TestSize(t *testing.T) {
	const w = 128
	tests := []struct {
		count    uint32
		expected Args
	}{
		{0, Args{0, 1, 1}},
		{1, Args{1, 1, 1}},
		{w, Args{1, 1, 1}},
		{w + 1, Args{2, 1, 1}},
		{10 * w, Args{10, 1, 1}},
	}
	for _, tt := range tests {
		if got := Size(tt.count, w); got != tt.expected {
			t.Errorf("Size(%d): got %v, expected %v", tt.count, got, tt.expected)
		}
		if got := Size(tt.count, w).Threads(w); got < tt.count || got >= tt.count+w {
			t.Errorf("Size(%d) launches %d threads", tt.count, got)
		}
	}
}

func counters(ray, hit, escaped uint32) *queue.Counters {
	c := &queue.Counters{}
	c.Store(queue.QueueRay, ray)
	c.Store(queue.QueueHit, hit)
	c.Store(queue.QueueEscaped, escaped)
	return c
}

func TestWriters(t *testing.T) {
	var args Args

	c := counters(300, 5, 6)
	WriteTraceSize(c, &args, 128)
	if args != (Args{3, 1, 1}) {
		t.Errorf("trace: got %v, expected {3 1 1}", args)
	}
	if got := c.Snapshot(); got != [3]uint32{300, 0, 0} {
		t.Errorf("trace: got counters %v, expected [300 0 0]", got)
	}

	c = counters(300, 5, 129)
	WriteEscapedSize(c, &args, 128)
	if args != (Args{2, 1, 1}) {
		t.Errorf("escaped: got %v, expected {2 1 1}", args)
	}
	if got := c.Snapshot(); got != [3]uint32{300, 5, 129} {
		t.Errorf("escaped: got counters %v, expected them untouched", got)
	}

	c = counters(300, 128, 7)
	WriteScatterSize(c, &args, 128)
	if args != (Args{1, 1, 1}) {
		t.Errorf("scatter: got %v, expected {1 1 1}", args)
	}
	if got := c.Snapshot(); got != [3]uint32{0, 128, 7} {
		t.Errorf("scatter: got counters %v, expected [0 128 7]", got)
	}
}

func TestArgsLayout(t *testing.T) {
	a := Args{4, 5, 6}
	buf := a.Marshal()
	if len(buf) != ArgsSize {
		t.Fatalf("got %d bytes, expected %d", len(buf), ArgsSize)
	}
	if got := Unmarshal(buf); got != a {
		t.Errorf("got %v, expected %v", got, a)
	}
}
