package geometry

// leafThreshold is the triangle count at or below which a node becomes a leaf.
const leafThreshold = 8

// maxDepth bounds the tree height so the fixed traversal stack in the trace kernels can
// never overflow.
const maxDepth = 24

// StackSize is the traversal stack length required by a tree built with NewBVH.
const StackSize = maxDepth + 8

// BVHNode is a flattened bounding volume hierarchy node. Leaves have Count > 0 and cover
// triangles [Offset, Offset+Count). Interior nodes have Count == 0, their left child at the
// next index and their right child at Offset.
type BVHNode struct {
	Bounds AABB
	Offset uint32
	Count  uint32
}

// IsLeaf reports whether the node holds triangles.
func (n BVHNode) IsLeaf() bool {
	return n.Count > 0
}

// BVH is a flattened bounding volume hierarchy over a Scene. Building it reorders the scene
// triangles so every leaf covers a contiguous range.
type BVH struct {
	nodes []BVHNode
	scene Scene
}

var _ Intersector = &BVH{}

// NewBVH builds a BVH over a copy of scene using median splits along the longest axis.
//
// Parameters:
//   - scene: the scene to index, left unmodified
//
// Returns:
//   - *BVH: the built hierarchy
func NewBVH(scene Scene) *BVH {
	tris := make([]Triangle, len(scene.Triangles))
	copy(tris, scene.Triangles)
	scene.Triangles = tris

	b := &BVH{scene: scene}
	if len(tris) == 0 {
		return b
	}

	order := make([]uint32, len(tris))
	for i := range order {
		order[i] = uint32(i)
	}
	b.nodes = make([]BVHNode, 0, 2*len(tris)/leafThreshold+1)
	b.build(order, 0, 0)

	// Rewrite triangles into leaf order so leaves reference contiguous ranges.
	reordered := make([]Triangle, len(order))
	for i, tri := range order {
		reordered[i] = tris[tri]
	}
	b.scene.Triangles = reordered
	return b
}

// build appends the subtree covering order[first:first+len(order)] and returns its index.
func (b *BVH) build(order []uint32, first uint32, depth int) uint32 {
	bounds := triangleBounds(&b.scene, order[0])
	for _, tri := range order[1:] {
		bounds = bounds.Union(triangleBounds(&b.scene, tri))
	}

	index := uint32(len(b.nodes))
	b.nodes = append(b.nodes, BVHNode{Bounds: bounds, Offset: first, Count: uint32(len(order))})
	if len(order) <= leafThreshold || depth >= maxDepth {
		return index
	}

	axis := bounds.LongestAxis()
	if bounds.Max[axis] <= bounds.Min[axis] {
		return index
	}
	split := (bounds.Min[axis] + bounds.Max[axis]) * 0.5

	// In-place partition by centroid.
	mid := 0
	for i, tri := range order {
		if triangleCentroid(&b.scene, tri)[axis] < split {
			order[i], order[mid] = order[mid], order[i]
			mid++
		}
	}
	if mid == 0 || mid == len(order) {
		return index
	}

	b.build(order[:mid], first, depth+1)
	right := b.build(order[mid:], first+uint32(mid), depth+1)
	b.nodes[index].Offset = right
	b.nodes[index].Count = 0
	return index
}

// Nodes returns the flattened node array.
func (b *BVH) Nodes() []BVHNode {
	return b.nodes
}

func (b *BVH) Scene() *Scene {
	return &b.scene
}

func (b *BVH) Intersect(ray Ray, tMin, tMax float32) (Hit, bool) {
	if len(b.nodes) == 0 {
		return Hit{}, false
	}

	var (
		stack   [StackSize]uint32
		sp      = 1
		found   bool
		bestTri uint32
		bestU   float32
		bestV   float32
	)
	closest := tMax
	for sp > 0 {
		sp--
		index := stack[sp]
		node := b.nodes[index]
		if !node.Bounds.Hit(ray, tMin, closest) {
			continue
		}
		if node.IsLeaf() {
			for tri := node.Offset; tri < node.Offset+node.Count; tri++ {
				if t, u, v, ok := intersectTriangle(&b.scene, tri, ray, tMin, closest); ok {
					closest, bestTri, bestU, bestV, found = t, tri, u, v, true
				}
			}
			continue
		}
		stack[sp] = node.Offset
		stack[sp+1] = index + 1
		sp += 2
	}

	if !found {
		return Hit{}, false
	}
	return buildHit(&b.scene, bestTri, ray, closest, bestU, bestV), true
}
