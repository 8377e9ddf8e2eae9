package queue

import (
	_ "embed"
	"encoding/binary"

	"github.com/Carmen-Shannon/oxy-wavefront/common"
)

// GPURayRecordSource is the canonical WGSL definition of the RayRecord struct.
// Matches RayRecord.Marshal exactly (64 bytes, std430 aligned).
//
//go:embed assets/ray_record.wgsl
var GPURayRecordSource string

// GPUHitRecordSource is the canonical WGSL definition of the HitRecord struct.
// Matches HitRecord.Marshal exactly (64 bytes, std430 aligned).
//
//go:embed assets/hit_record.wgsl
var GPUHitRecordSource string

// GPUQueueCountersSource is the canonical WGSL definition of the QueueCounters struct and
// the QUEUE_* slot constants (12 bytes).
//
//go:embed assets/queue_counters.wgsl
var GPUQueueCountersSource string

const (
	// RayRecordSize is the std430 size of one RayRecord.
	RayRecordSize = 64

	// HitRecordSize is the std430 size of one HitRecord.
	HitRecordSize = 64

	// CountersSize is the size of the counter vector.
	CountersSize = 12
)

// Marshal serializes the record into its 64 byte GPU layout.
//
// Returns:
//   - []byte: the serialized record
func (r RayRecord) Marshal() []byte {
	buf := make([]byte, RayRecordSize)
	common.PutVec3(buf, 0, r.Origin)
	binary.LittleEndian.PutUint32(buf[12:], r.Depth)
	common.PutVec3(buf, 16, r.Direction)
	common.PutVec3(buf, 32, r.Throughput)
	binary.LittleEndian.PutUint32(buf[48:], r.Pixel[0])
	binary.LittleEndian.PutUint32(buf[52:], r.Pixel[1])
	return buf
}

// UnmarshalRayRecord decodes one RayRecord from buf[0:RayRecordSize].
func UnmarshalRayRecord(buf []byte) RayRecord {
	return RayRecord{
		Origin:     common.Vec3At(buf, 0),
		Depth:      binary.LittleEndian.Uint32(buf[12:]),
		Direction:  common.Vec3At(buf, 16),
		Throughput: common.Vec3At(buf, 32),
		Pixel:      [2]uint32{binary.LittleEndian.Uint32(buf[48:]), binary.LittleEndian.Uint32(buf[52:])},
	}
}

// Marshal serializes the record into its 64 byte GPU layout.
//
// Returns:
//   - []byte: the serialized record
func (h HitRecord) Marshal() []byte {
	buf := make([]byte, HitRecordSize)
	common.PutVec3(buf, 0, h.Position)
	binary.LittleEndian.PutUint32(buf[12:], h.Pixel[0])
	common.PutVec3(buf, 16, h.Normal)
	binary.LittleEndian.PutUint32(buf[28:], h.Pixel[1])
	common.PutVec3(buf, 32, h.View)
	binary.LittleEndian.PutUint32(buf[44:], h.SurfaceRef)
	common.PutVec3(buf, 48, h.Throughput)
	binary.LittleEndian.PutUint32(buf[60:], h.Depth)
	return buf
}

// UnmarshalHitRecord decodes one HitRecord from buf[0:HitRecordSize].
func UnmarshalHitRecord(buf []byte) HitRecord {
	return HitRecord{
		Position:   common.Vec3At(buf, 0),
		Normal:     common.Vec3At(buf, 16),
		View:       common.Vec3At(buf, 32),
		SurfaceRef: binary.LittleEndian.Uint32(buf[44:]),
		Throughput: common.Vec3At(buf, 48),
		Depth:      binary.LittleEndian.Uint32(buf[60:]),
		Pixel:      [2]uint32{binary.LittleEndian.Uint32(buf[12:]), binary.LittleEndian.Uint32(buf[28:])},
	}
}

// UnmarshalCounters decodes the [ray, hit, escaped] counter vector read back from the GPU.
func UnmarshalCounters(buf []byte) [3]uint32 {
	return [3]uint32{
		binary.LittleEndian.Uint32(buf[0:]),
		binary.LittleEndian.Uint32(buf[4:]),
		binary.LittleEndian.Uint32(buf[8:]),
	}
}
