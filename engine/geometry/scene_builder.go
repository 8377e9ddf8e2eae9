package geometry

import (
	"math"

	"github.com/Carmen-Shannon/oxy-wavefront/common"
)

// SceneBuilder accumulates triangles, normals and materials into a Scene.
type SceneBuilder struct {
	scene Scene
}

// NewSceneBuilder creates an empty SceneBuilder.
func NewSceneBuilder() *SceneBuilder {
	return &SceneBuilder{}
}

// AddMaterial appends a material and returns its index.
func (b *SceneBuilder) AddMaterial(albedo common.Vec3) uint32 {
	b.scene.Materials = append(b.scene.Materials, Material{Albedo: albedo})
	return uint32(len(b.scene.Materials) - 1)
}

func (b *SceneBuilder) addVertex(p, n common.Vec3) uint32 {
	b.scene.Positions = append(b.scene.Positions, p)
	b.scene.Normals = append(b.scene.Normals, n)
	return uint32(len(b.scene.Positions) - 1)
}

// AddTriangle appends a flat triangle whose vertex normals equal its face normal.
func (b *SceneBuilder) AddTriangle(p0, p1, p2 common.Vec3, material uint32) *SceneBuilder {
	n := p1.Subtract(p0).Cross(p2.Subtract(p0)).Normalize()
	i0 := b.addVertex(p0, n)
	i1 := b.addVertex(p1, n)
	i2 := b.addVertex(p2, n)
	b.scene.Triangles = append(b.scene.Triangles, Triangle{V: [3]uint32{i0, i1, i2}, Material: material})
	return b
}

// AddQuad appends the planar quad p0 p1 p2 p3 (in winding order) as two triangles.
func (b *SceneBuilder) AddQuad(p0, p1, p2, p3 common.Vec3, material uint32) *SceneBuilder {
	n := p1.Subtract(p0).Cross(p2.Subtract(p0)).Normalize()
	i0 := b.addVertex(p0, n)
	i1 := b.addVertex(p1, n)
	i2 := b.addVertex(p2, n)
	i3 := b.addVertex(p3, n)
	b.scene.Triangles = append(b.scene.Triangles,
		Triangle{V: [3]uint32{i0, i1, i2}, Material: material},
		Triangle{V: [3]uint32{i0, i2, i3}, Material: material},
	)
	return b
}

// AddBox appends the six faces of the axis aligned box [lo, hi], wound to face inwards.
// The box is closed, so a ray starting inside it always hits a face.
func (b *SceneBuilder) AddBox(lo, hi common.Vec3, material uint32) *SceneBuilder {
	c := [8]common.Vec3{
		{lo[0], lo[1], lo[2]}, {hi[0], lo[1], lo[2]}, {hi[0], hi[1], lo[2]}, {lo[0], hi[1], lo[2]},
		{lo[0], lo[1], hi[2]}, {hi[0], lo[1], hi[2]}, {hi[0], hi[1], hi[2]}, {lo[0], hi[1], hi[2]},
	}
	faces := [6][4]int{
		{0, 1, 2, 3}, // back
		{5, 4, 7, 6}, // front
		{4, 0, 3, 7}, // left
		{1, 5, 6, 2}, // right
		{4, 5, 1, 0}, // bottom
		{3, 2, 6, 7}, // top
	}
	for _, f := range faces {
		b.AddQuad(c[f[0]], c[f[1]], c[f[2]], c[f[3]], material)
	}
	return b
}

// AddSphere appends a UV sphere with smooth vertex normals.
//
// Parameters:
//   - center: the sphere center
//   - radius: the sphere radius
//   - segments: the number of longitudinal slices, at least 3
//   - rings: the number of latitudinal bands, at least 2
//   - material: the material index
//
// Returns:
//   - *SceneBuilder: the builder for chaining
func (b *SceneBuilder) AddSphere(center common.Vec3, radius float32, segments, rings int, material uint32) *SceneBuilder {
	segments = max(segments, 3)
	rings = max(rings, 2)

	base := uint32(len(b.scene.Positions))
	for r := 0; r <= rings; r++ {
		theta := math.Pi * float64(r) / float64(rings)
		for s := 0; s <= segments; s++ {
			phi := 2 * math.Pi * float64(s) / float64(segments)
			n := common.Vec3{
				float32(math.Sin(theta) * math.Cos(phi)),
				float32(math.Cos(theta)),
				float32(math.Sin(theta) * math.Sin(phi)),
			}
			b.addVertex(center.Add(n.Multiply(radius)), n)
		}
	}

	stride := uint32(segments + 1)
	for r := range uint32(rings) {
		for s := range uint32(segments) {
			i0 := base + r*stride + s
			i1 := i0 + stride
			i2 := i1 + 1
			i3 := i0 + 1
			if r != 0 {
				b.scene.Triangles = append(b.scene.Triangles, Triangle{V: [3]uint32{i0, i3, i2}, Material: material})
			}
			if r != uint32(rings)-1 {
				b.scene.Triangles = append(b.scene.Triangles, Triangle{V: [3]uint32{i0, i2, i1}, Material: material})
			}
		}
	}
	return b
}

// Build returns the accumulated scene. The builder keeps no reference to the result.
func (b *SceneBuilder) Build() Scene {
	out := Scene{
		Positions: append([]common.Vec3(nil), b.scene.Positions...),
		Normals:   append([]common.Vec3(nil), b.scene.Normals...),
		Triangles: append([]Triangle(nil), b.scene.Triangles...),
		Materials: append([]Material(nil), b.scene.Materials...),
	}
	return out
}

// CornellBox builds the classic open-front box with a white floor, ceiling and back wall, a
// red left wall, a green right wall and a smooth sphere. The camera looks down -Z from about
// (0, 1, 3.4).
func CornellBox() Scene {
	b := NewSceneBuilder()
	white := b.AddMaterial(common.Vec3{0.73, 0.73, 0.73})
	red := b.AddMaterial(common.Vec3{0.65, 0.05, 0.05})
	green := b.AddMaterial(common.Vec3{0.12, 0.45, 0.15})
	blue := b.AddMaterial(common.Vec3{0.2, 0.3, 0.8})

	b.AddQuad(common.Vec3{-1, 0, 1}, common.Vec3{1, 0, 1}, common.Vec3{1, 0, -1}, common.Vec3{-1, 0, -1}, white)
	b.AddQuad(common.Vec3{-1, 2, -1}, common.Vec3{1, 2, -1}, common.Vec3{1, 2, 1}, common.Vec3{-1, 2, 1}, white)
	b.AddQuad(common.Vec3{-1, 0, -1}, common.Vec3{1, 0, -1}, common.Vec3{1, 2, -1}, common.Vec3{-1, 2, -1}, white)
	b.AddQuad(common.Vec3{-1, 0, 1}, common.Vec3{-1, 0, -1}, common.Vec3{-1, 2, -1}, common.Vec3{-1, 2, 1}, red)
	b.AddQuad(common.Vec3{1, 0, -1}, common.Vec3{1, 0, 1}, common.Vec3{1, 2, 1}, common.Vec3{1, 2, -1}, green)
	b.AddSphere(common.Vec3{0.3, 0.4, -0.2}, 0.4, 32, 16, blue)
	b.AddBox(common.Vec3{-0.75, 0, -0.7}, common.Vec3{-0.15, 1.2, -0.1}, white)
	return b.Build()
}

// Merge concatenates scenes into one, offsetting vertex and material references of each
// later scene past the ones before it.
func Merge(scenes ...Scene) Scene {
	var out Scene
	for _, s := range scenes {
		vertexBase := uint32(len(out.Positions))
		materialBase := uint32(len(out.Materials))

		out.Positions = append(out.Positions, s.Positions...)
		out.Normals = append(out.Normals, s.Normals...)
		out.Materials = append(out.Materials, s.Materials...)
		for _, tri := range s.Triangles {
			out.Triangles = append(out.Triangles, Triangle{
				V:        [3]uint32{tri.V[0] + vertexBase, tri.V[1] + vertexBase, tri.V[2] + vertexBase},
				Material: tri.Material + materialBase,
			})
		}
	}
	return out
}
