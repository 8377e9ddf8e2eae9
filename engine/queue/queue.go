// Package queue implements the three compaction queues a wavefront frame moves rays
// through. Producers append with an atomic fetch-and-add on the queue's counter and write
// their record into the returned slot, so concurrent producers never collide. Consumers
// iterate up to a counter value captured when their stage starts.
package queue

import (
	"fmt"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-wavefront/common"
)

// QueueID names one of the three queue counters.
type QueueID int

const (
	// QueueRay holds rays waiting to be intersected.
	QueueRay QueueID = iota

	// QueueHit holds surface hits waiting to be scattered.
	QueueHit

	// QueueEscaped holds rays that missed all geometry and wait to be terminated.
	QueueEscaped
)

func (id QueueID) String() string {
	switch id {
	case QueueRay:
		return "ray"
	case QueueHit:
		return "hit"
	case QueueEscaped:
		return "escaped"
	default:
		return fmt.Sprintf("QueueID(%d)", int(id))
	}
}

// RayRecord is one in-flight path segment. Throughput starts at (1, 1, 1) for a generated
// ray and carries the product of all scatter weights so far. Depth counts the bounces
// that produced the ray.
type RayRecord struct {
	Origin     common.Vec3
	Direction  common.Vec3
	Throughput common.Vec3
	Pixel      [2]uint32
	Depth      uint32
}

// HitRecord is one surface interaction waiting to be scattered. View is the negated
// incoming direction and SurfaceRef is the opaque triangle index used for material lookup.
type HitRecord struct {
	Position   common.Vec3
	Normal     common.Vec3
	View       common.Vec3
	Throughput common.Vec3
	Pixel      [2]uint32
	SurfaceRef uint32
	Depth      uint32
}

// Counters is the [ray, hit, escaped] counter vector. Every mutation is atomic.
type Counters struct {
	v [3]atomic.Uint32
}

// Append increments the counter of id and returns its previous value, the slot the caller
// owns.
//
// Parameters:
//   - id: the queue to append to
//
// Returns:
//   - uint32: the pre-increment value
func (c *Counters) Append(id QueueID) uint32 {
	return c.v[id].Add(1) - 1
}

// Load returns the current value of the counter of id.
func (c *Counters) Load(id QueueID) uint32 {
	return c.v[id].Load()
}

// Store sets the counter of id to n.
func (c *Counters) Store(id QueueID, n uint32) {
	c.v[id].Store(n)
}

// Snapshot returns a copy of all three counters in [ray, hit, escaped] order.
func (c *Counters) Snapshot() [3]uint32 {
	return [3]uint32{c.v[QueueRay].Load(), c.v[QueueHit].Load(), c.v[QueueEscaped].Load()}
}

// Reset zeroes all three counters.
func (c *Counters) Reset() {
	for i := range c.v {
		c.v[i].Store(0)
	}
}

// Store owns the three queue arenas and their counters. Capacity is fixed at construction
// and equals the number of pixels, since at most one path per pixel is in flight.
// Overrunning it is a sizing defect and panics like any slice overrun.
type Store struct {
	Counters Counters

	rays    []RayRecord
	hits    []HitRecord
	escaped []RayRecord
}

// NewStore allocates a Store whose arenas each hold capacity records.
//
// Parameters:
//   - capacity: the number of records per queue
//
// Returns:
//   - *Store: the allocated store with zeroed counters
func NewStore(capacity int) *Store {
	s := &Store{}
	s.Resize(capacity)
	return s
}

// Resize reallocates the arenas for capacity records and zeroes the counters.
func (s *Store) Resize(capacity int) {
	s.rays = make([]RayRecord, capacity)
	s.hits = make([]HitRecord, capacity)
	s.escaped = make([]RayRecord, capacity)
	s.Counters.Reset()
}

// Capacity returns the per-queue record capacity.
func (s *Store) Capacity() int {
	return len(s.rays)
}

// Reset zeroes all three counters. Record contents are left in place and become
// unreachable.
func (s *Store) Reset() {
	s.Counters.Reset()
}

// AppendRay writes r to the next ray slot and returns the slot index.
func (s *Store) AppendRay(r RayRecord) uint32 {
	slot := s.Counters.Append(QueueRay)
	s.rays[slot] = r
	return slot
}

// AppendHit writes h to the next hit slot and returns the slot index.
func (s *Store) AppendHit(h HitRecord) uint32 {
	slot := s.Counters.Append(QueueHit)
	s.hits[slot] = h
	return slot
}

// AppendEscaped writes r to the next escaped slot and returns the slot index.
func (s *Store) AppendEscaped(r RayRecord) uint32 {
	slot := s.Counters.Append(QueueEscaped)
	s.escaped[slot] = r
	return slot
}

// Ray returns the ray record at slot i.
func (s *Store) Ray(i uint32) RayRecord {
	return s.rays[i]
}

// Hit returns the hit record at slot i.
func (s *Store) Hit(i uint32) HitRecord {
	return s.hits[i]
}

// Escaped returns the escaped record at slot i.
func (s *Store) Escaped(i uint32) RayRecord {
	return s.escaped[i]
}
