// Package dispatch computes the workgroup counts of the indirect stages of a wavefront
// bounce from the queue counters, and performs the counter resets that prepare each
// stage's output queue.
package dispatch

import (
	_ "embed"
	"encoding/binary"

	"github.com/Carmen-Shannon/oxy-wavefront/common"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/queue"
)

// GPUDispatchArgsSource is the WGSL DispatchArgs struct and the dispatch_size helper used by
// the size-writer kernels. The struct layout matches the indirect dispatch buffer (12 bytes).
//
//go:embed assets/dispatch_args.wgsl
var GPUDispatchArgsSource string

// ArgsSize is the byte size of one indirect dispatch argument triple.
const ArgsSize = 12

// Args is a workgroup-count triple as consumed by an indirect dispatch.
type Args [3]uint32

// Size returns the one-dimensional dispatch covering count threads in workgroups of w.
//
// Parameters:
//   - count: the number of threads needed
//   - w: the workgroup width
//
// Returns:
//   - Args: {ceil(count/w), 1, 1}
func Size(count, w uint32) Args {
	return Args{common.DivCeil(count, w), 1, 1}
}

// Threads returns the total number of invocations the triple launches for a workgroup of
// width w.
func (a Args) Threads(w uint32) uint32 {
	return a[0] * a[1] * a[2] * w
}

// Marshal encodes the triple in the indirect buffer layout.
func (a Args) Marshal() []byte {
	buf := make([]byte, ArgsSize)
	for i, v := range a {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	return buf
}

// Unmarshal decodes a triple written by a size-writer kernel.
func Unmarshal(buf []byte) Args {
	return Args{
		binary.LittleEndian.Uint32(buf[0:]),
		binary.LittleEndian.Uint32(buf[4:]),
		binary.LittleEndian.Uint32(buf[8:]),
	}
}

// WriteTraceSize sizes the intersect stage from the ray count and clears the hit and
// escaped queues it is about to fill.
//
// Parameters:
//   - c: the queue counters
//   - args: the intersect stage's indirect arguments
//   - w: the intersect workgroup width
func WriteTraceSize(c *queue.Counters, args *Args, w uint32) {
	*args = Size(c.Load(queue.QueueRay), w)
	c.Store(queue.QueueHit, 0)
	c.Store(queue.QueueEscaped, 0)
}

// WriteEscapedSize sizes the terminate stage from the escaped count. No counter is reset.
func WriteEscapedSize(c *queue.Counters, args *Args, w uint32) {
	*args = Size(c.Load(queue.QueueEscaped), w)
}

// WriteScatterSize sizes the scatter stage from the hit count, then clears the ray queue
// that scatter refills.
func WriteScatterSize(c *queue.Counters, args *Args, w uint32) {
	hits := c.Load(queue.QueueHit)
	c.Store(queue.QueueRay, 0)
	*args = Size(hits, w)
}
