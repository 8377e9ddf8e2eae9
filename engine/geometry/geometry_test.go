package geometry

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-wavefront/common"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/rng"
)

func TestTriangleHit(t *testing.T) {
	b := NewSceneBuilder()
	m := b.AddMaterial(common.Vec3{0.5, 0.5, 0.5})
	b.AddTriangle(common.Vec3{-1, -1, -2}, common.Vec3{1, -1, -2}, common.Vec3{0, 1, -2}, m)
	scene := b.Build()

	for name, in := range map[string]Intersector{"bvh": NewBVH(scene), "brute": NewBruteForce(scene)} {
		hit, ok := in.Intersect(Ray{Direction: common.Vec3{0, 0, -1}}, DefaultTMin, math.MaxFloat32)
		if !ok {
			t.Fatalf("%s: expected a hit", name)
		}
		if math.Abs(float64(hit.T-2)) > 1e-5 {
			t.Errorf("%s: got t %v, expected 2", name, hit.T)
		}
		if !hit.Normal.ApproxEqual(common.Vec3{0, 0, 1}, 1e-5) {
			t.Errorf("%s: got normal %v, expected it to face the ray", name, hit.Normal)
		}
		if _, ok := in.Intersect(Ray{Direction: common.Vec3{0, 0, 1}}, DefaultTMin, math.MaxFloat32); ok {
			t.Errorf("%s: ray pointing away should miss", name)
		}
		if _, ok := in.Intersect(Ray{Direction: common.Vec3{0, 0, -1}}, DefaultTMin, 1); ok {
			t.Errorf("%s: hit beyond tMax should be rejected", name)
		}
	}
}

func TestEmptySceneMisses(t *testing.T) {
	bvh := NewBVH(Scene{})
	if len(bvh.Nodes()) != 0 {
		t.Errorf("got %d nodes, expected 0", len(bvh.Nodes()))
	}
	if _, ok := bvh.Intersect(Ray{Direction: common.Vec3{0, 0, -1}}, DefaultTMin, math.MaxFloat32); ok {
		t.Error("empty scene should never be hit")
	}
}

func TestBVHMatchesBruteForce(t *testing.T) {
	scene := CornellBox()
	bvh := NewBVH(scene)
	brute := NewBruteForce(scene)

	if len(bvh.Scene().Triangles) != len(scene.Triangles) {
		t.Fatalf("got %d triangles, expected %d", len(bvh.Scene().Triangles), len(scene.Triangles))
	}

	s := rng.New(3, 5, 7)
	for i := range 2000 {
		u, v, w := s.Float3()
		origin := common.Vec3{u*1.8 - 0.9, v*1.8 + 0.1, w*1.8 - 0.9}
		a, b, c := s.Float3()
		dir := common.Vec3{a*2 - 1, b*2 - 1, c*2 - 1}.Normalize()
		if dir.LengthSquared() == 0 {
			continue
		}
		ray := Ray{Origin: origin, Direction: dir}

		h1, ok1 := bvh.Intersect(ray, DefaultTMin, math.MaxFloat32)
		h2, ok2 := brute.Intersect(ray, DefaultTMin, math.MaxFloat32)
		if ok1 != ok2 {
			t.Fatalf("ray %d: got hit %v, expected %v", i, ok1, ok2)
		}
		if !ok1 {
			continue
		}
		if math.Abs(float64(h1.T-h2.T)) > 1e-4 {
			t.Fatalf("ray %d: got t %v, expected %v", i, h1.T, h2.T)
		}
		m1 := bvh.Scene().Material(h1.Triangle)
		m2 := brute.Scene().Material(h2.Triangle)
		if math.Abs(float64(h1.T-h2.T)) < 1e-6 && m1 != m2 {
			// Coincident hits on shared edges can pick either triangle of the same surface.
			if !h1.FaceNormal.ApproxEqual(h2.FaceNormal, 1e-4) {
				t.Fatalf("ray %d: got material %v, expected %v", i, m1, m2)
			}
		}
	}
}

func TestBVHLeafRanges(t *testing.T) {
	bvh := NewBVH(CornellBox())
	covered := make([]int, len(bvh.Scene().Triangles))
	for _, n := range bvh.Nodes() {
		if !n.IsLeaf() {
			continue
		}
		if n.Offset+n.Count > uint32(len(covered)) {
			t.Fatalf("leaf range [%d, %d) out of bounds", n.Offset, n.Offset+n.Count)
		}
		for i := n.Offset; i < n.Offset+n.Count; i++ {
			covered[i]++
		}
	}
	for i, c := range covered {
		if c != 1 {
			t.Fatalf("triangle %d covered %d times, expected 1", i, c)
		}
	}
}

func TestClosedBoxAlwaysHits(t *testing.T) {
	b := NewSceneBuilder()
	m := b.AddMaterial(common.Vec3{1, 1, 1})
	b.AddBox(common.Vec3{-1, -1, -1}, common.Vec3{1, 1, 1}, m)
	bvh := NewBVH(b.Build())

	s := rng.New(1, 1, 1)
	for range 1000 {
		a, c, d := s.Float3()
		dir := common.Vec3{a*2 - 1, c*2 - 1, d*2 - 1}.Normalize()
		if dir.LengthSquared() == 0 {
			continue
		}
		hit, ok := bvh.Intersect(Ray{Origin: common.Vec3{0.1, -0.2, 0.3}, Direction: dir}, DefaultTMin, math.MaxFloat32)
		if !ok {
			t.Fatalf("ray %v escaped a closed box", dir)
		}
		if hit.Normal.Dot(dir) > 0 {
			t.Fatalf("normal %v does not face ray %v", hit.Normal, dir)
		}
	}
}

func TestSphereSmoothNormals(t *testing.T) {
	b := NewSceneBuilder()
	m := b.AddMaterial(common.Vec3{1, 1, 1})
	b.AddSphere(common.Vec3{0, 0, -5}, 1, 24, 12, m)
	bvh := NewBVH(b.Build())

	ray := Ray{Origin: common.Vec3{0.3, 0.2, 0}, Direction: common.Vec3{0, 0, -1}}
	hit, ok := bvh.Intersect(ray, DefaultTMin, math.MaxFloat32)
	if !ok {
		t.Fatal("expected a hit")
	}
	expected := hit.Position.Subtract(common.Vec3{0, 0, -5}).Normalize()
	if hit.Normal.Dot(expected) < 0.99 {
		t.Errorf("got smooth normal %v, expected close to %v", hit.Normal, expected)
	}
}

func TestMarshalNodesLayout(t *testing.T) {
	nodes := []BVHNode{{Bounds: AABB{Min: common.Vec3{1, 2, 3}, Max: common.Vec3{4, 5, 6}}, Offset: 7, Count: 8}}
	buf := MarshalNodes(nodes)
	if len(buf) != NodeStride {
		t.Fatalf("got %d bytes, expected %d", len(buf), NodeStride)
	}
	if got := common.Vec3At(buf, 16); got != (common.Vec3{4, 5, 6}) {
		t.Errorf("got max %v, expected {4 5 6}", got)
	}
	if got := binary.LittleEndian.Uint32(buf[12:]); got != 7 {
		t.Errorf("got offset %d, expected 7", got)
	}
	if got := binary.LittleEndian.Uint32(buf[28:]); got != 8 {
		t.Errorf("got count %d, expected 8", got)
	}
	if got := len(MarshalVertices(&Scene{})); got != VertexStride {
		t.Errorf("got %d bytes for an empty vertex array, expected %d", got, VertexStride)
	}
}

func TestMergeOffsetsReferences(t *testing.T) {
	a := NewSceneBuilder()
	a.AddTriangle(common.Vec3{0, 0, 0}, common.Vec3{1, 0, 0}, common.Vec3{0, 1, 0}, a.AddMaterial(common.Vec3{1, 0, 0}))
	b := NewSceneBuilder()
	b.AddTriangle(common.Vec3{0, 0, 1}, common.Vec3{1, 0, 1}, common.Vec3{0, 1, 1}, b.AddMaterial(common.Vec3{0, 1, 0}))

	merged := Merge(a.Build(), b.Build())
	if len(merged.Triangles) != 2 || len(merged.Positions) != 6 || len(merged.Materials) != 2 {
		t.Fatalf("got %d triangles, %d vertices, %d materials", len(merged.Triangles), len(merged.Positions), len(merged.Materials))
	}
	if got := merged.Triangles[1].V; got != [3]uint32{3, 4, 5} {
		t.Errorf("got vertices %v, expected [3 4 5]", got)
	}
	if got := merged.Material(1).Albedo; got != (common.Vec3{0, 1, 0}) {
		t.Errorf("got albedo %v, expected green", got)
	}
}
