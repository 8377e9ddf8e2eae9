package geometry

import (
	_ "embed"
	"encoding/binary"

	"github.com/Carmen-Shannon/oxy-wavefront/common"
)

// GPUVertexSource is the canonical WGSL definition of the Vertex struct.
// Matches the layout written by MarshalVertices (32 bytes, std430 aligned).
//
//go:embed assets/vertex.wgsl
var GPUVertexSource string

// GPUTriangleSource is the canonical WGSL definition of the Triangle struct.
// Matches the layout written by MarshalTriangles (16 bytes).
//
//go:embed assets/triangle.wgsl
var GPUTriangleSource string

// GPUBVHNodeSource is the canonical WGSL definition of the BVHNode struct.
// Matches the layout written by MarshalNodes (32 bytes).
//
//go:embed assets/bvh_node.wgsl
var GPUBVHNodeSource string

// GPUMaterialSource is the canonical WGSL definition of the Material struct.
// Matches the layout written by MarshalMaterials (16 bytes).
//
//go:embed assets/material.wgsl
var GPUMaterialSource string

// GPUIntersectSource holds the WGSL BVH traversal and triangle test. Shaders that include
// it must bind arrays named vertices, triangles and bvh_nodes.
//
//go:embed assets/intersect.wgsl
var GPUIntersectSource string

// Per-element strides of the GPU arrays.
const (
	VertexStride   = 32
	TriangleStride = 16
	NodeStride     = 32
	MaterialStride = 16
)

// MarshalVertices packs positions and normals as array<Vertex>. An empty scene still
// yields one zeroed element because zero-sized storage buffers cannot be bound.
//
// Parameters:
//   - s: the scene to pack
//
// Returns:
//   - []byte: the packed vertex array
func MarshalVertices(s *Scene) []byte {
	buf := make([]byte, max(len(s.Positions), 1)*VertexStride)
	for i, p := range s.Positions {
		off := i * VertexStride
		common.PutVec3(buf, off, p)
		if i < len(s.Normals) {
			common.PutVec3(buf, off+16, s.Normals[i])
		}
	}
	return buf
}

// MarshalTriangles packs the triangle list as array<Triangle>.
//
// Parameters:
//   - s: the scene to pack, in intersector order
//
// Returns:
//   - []byte: the packed triangle array
func MarshalTriangles(s *Scene) []byte {
	buf := make([]byte, max(len(s.Triangles), 1)*TriangleStride)
	for i, t := range s.Triangles {
		off := i * TriangleStride
		binary.LittleEndian.PutUint32(buf[off:], t.V[0])
		binary.LittleEndian.PutUint32(buf[off+4:], t.V[1])
		binary.LittleEndian.PutUint32(buf[off+8:], t.V[2])
		binary.LittleEndian.PutUint32(buf[off+12:], t.Material)
	}
	return buf
}

// MarshalMaterials packs the material table as array<Material>.
//
// Parameters:
//   - s: the scene to pack
//
// Returns:
//   - []byte: the packed material array
func MarshalMaterials(s *Scene) []byte {
	buf := make([]byte, max(len(s.Materials), 1)*MaterialStride)
	for i, m := range s.Materials {
		common.PutVec3(buf, i*MaterialStride, m.Albedo)
	}
	return buf
}

// MarshalNodes packs flattened BVH nodes as array<BVHNode>.
//
// Parameters:
//   - nodes: the nodes returned by BVH.Nodes
//
// Returns:
//   - []byte: the packed node array
func MarshalNodes(nodes []BVHNode) []byte {
	buf := make([]byte, max(len(nodes), 1)*NodeStride)
	for i, n := range nodes {
		off := i * NodeStride
		common.PutVec3(buf, off, n.Bounds.Min)
		binary.LittleEndian.PutUint32(buf[off+12:], n.Offset)
		common.PutVec3(buf, off+16, n.Bounds.Max)
		binary.LittleEndian.PutUint32(buf[off+28:], n.Count)
	}
	return buf
}
