package loader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-wavefront/common"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/geometry"
)

// gltfSceneExtractor flattens the node hierarchy of a parsed document into a single world
// space triangle scene.
type gltfSceneExtractor struct {
	parser        *gltfParser
	root          [16]float32
	defaultAlbedo common.Vec3

	scene geometry.Scene
	// materials maps glTF material indices to scene material indices; -1 is the default.
	materials map[int]uint32
}

func newGLTFSceneExtractor(parser *gltfParser, root [16]float32, defaultAlbedo common.Vec3) *gltfSceneExtractor {
	return &gltfSceneExtractor{
		parser:        parser,
		root:          root,
		defaultAlbedo: defaultAlbedo,
		materials:     make(map[int]uint32),
	}
}

// Extract walks the default scene (or scene 0) and instances every mesh it reaches. A
// document without scenes instances each mesh once at the root transform.
func (e *gltfSceneExtractor) Extract() (geometry.Scene, error) {
	doc := e.parser.document

	if len(doc.Scenes) == 0 {
		for i := range doc.Meshes {
			if err := e.addMesh(i, e.root); err != nil {
				return geometry.Scene{}, err
			}
		}
		return e.scene, nil
	}

	sceneIndex := 0
	if doc.Scene != nil {
		sceneIndex = *doc.Scene
	}
	if sceneIndex < 0 || sceneIndex >= len(doc.Scenes) {
		return geometry.Scene{}, fmt.Errorf("default scene %d out of range", sceneIndex)
	}

	visited := make(map[int]bool)
	for _, n := range doc.Scenes[sceneIndex].Nodes {
		if err := e.addNode(n, e.root, visited); err != nil {
			return geometry.Scene{}, err
		}
	}
	return e.scene, nil
}

func (e *gltfSceneExtractor) addNode(index int, parent [16]float32, visited map[int]bool) error {
	doc := e.parser.document
	if index < 0 || index >= len(doc.Nodes) {
		return fmt.Errorf("node index %d out of range", index)
	}
	if visited[index] {
		return fmt.Errorf("node %d is part of a cycle", index)
	}
	visited[index] = true
	defer delete(visited, index)

	node := &doc.Nodes[index]
	local := nodeMatrix(node)
	var world [16]float32
	common.Mul4(world[:], parent[:], local[:])

	if node.Mesh != nil {
		if err := e.addMesh(*node.Mesh, world); err != nil {
			return fmt.Errorf("node %d: %w", index, err)
		}
	}
	for _, child := range node.Children {
		if err := e.addNode(child, world, visited); err != nil {
			return err
		}
	}
	return nil
}

func (e *gltfSceneExtractor) addMesh(index int, world [16]float32) error {
	doc := e.parser.document
	if index < 0 || index >= len(doc.Meshes) {
		return fmt.Errorf("mesh index %d out of range", index)
	}

	mesh := &doc.Meshes[index]
	for i := range mesh.Primitives {
		prim := &mesh.Primitives[i]
		if prim.Mode != nil && *prim.Mode != gltfPrimitiveModeTriangles {
			common.Logger().Debug("skipping non-triangle primitive", "mesh", mesh.Name, "primitive", i, "mode", *prim.Mode)
			continue
		}
		if err := e.addPrimitive(prim, world); err != nil {
			return fmt.Errorf("mesh %q primitive %d: %w", mesh.Name, i, err)
		}
	}
	return nil
}

func (e *gltfSceneExtractor) addPrimitive(prim *gltfPrimitive, world [16]float32) error {
	posIndex, ok := prim.Attributes[gltfAttributePosition]
	if !ok {
		return fmt.Errorf("missing %s attribute", gltfAttributePosition)
	}
	positions, err := e.parser.ReadVec3(posIndex)
	if err != nil {
		return err
	}

	var indices []uint32
	if prim.Indices != nil {
		if indices, err = e.parser.ReadIndices(*prim.Indices); err != nil {
			return err
		}
	} else {
		indices = make([]uint32, len(positions))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	for _, idx := range indices {
		if int(idx) >= len(positions) {
			return fmt.Errorf("index %d out of range for %d vertices", idx, len(positions))
		}
	}

	var normals []common.Vec3
	if normIndex, ok := prim.Attributes[gltfAttributeNormal]; ok {
		if normals, err = e.parser.ReadVec3(normIndex); err != nil {
			return err
		}
		if len(normals) != len(positions) {
			return fmt.Errorf("got %d normals for %d positions", len(normals), len(positions))
		}
	}

	for i, p := range positions {
		positions[i] = common.TransformPoint(world[:], p)
	}
	if normals == nil {
		normals = generateNormals(positions, indices)
	} else {
		var inverse [16]float32
		if !common.Invert4(inverse[:], world[:]) {
			return fmt.Errorf("node transform is singular")
		}
		for i, n := range normals {
			normals[i] = transformNormal(inverse, n)
		}
	}

	material, err := e.material(prim.Material)
	if err != nil {
		return err
	}

	base := uint32(len(e.scene.Positions))
	e.scene.Positions = append(e.scene.Positions, positions...)
	e.scene.Normals = append(e.scene.Normals, normals...)
	for i := 0; i+2 < len(indices); i += 3 {
		e.scene.Triangles = append(e.scene.Triangles, geometry.Triangle{
			V:        [3]uint32{base + indices[i], base + indices[i+1], base + indices[i+2]},
			Material: material,
		})
	}
	return nil
}

// material returns the scene material for a primitive, appending it on first use. The
// base color factor is linear and becomes the albedo unchanged; it defaults to white as
// in glTF. Primitives without a material use the extractor's default albedo.
func (e *gltfSceneExtractor) material(ref *int) (uint32, error) {
	key := -1
	if ref != nil {
		key = *ref
	}
	if m, ok := e.materials[key]; ok {
		return m, nil
	}

	albedo := e.defaultAlbedo
	if key >= 0 {
		doc := e.parser.document
		if key >= len(doc.Materials) {
			return 0, fmt.Errorf("material index %d out of range", key)
		}
		albedo = common.Vec3{1, 1, 1}
		if pbr := doc.Materials[key].PbrMetallicRoughness; pbr != nil && pbr.BaseColorFactor != nil {
			f := pbr.BaseColorFactor
			albedo = common.Vec3{f[0], f[1], f[2]}
		}
	}

	e.scene.Materials = append(e.scene.Materials, geometry.Material{Albedo: albedo})
	m := uint32(len(e.scene.Materials) - 1)
	e.materials[key] = m
	return m, nil
}

// nodeMatrix returns the node's local transform as T * R * S in column-major order.
func nodeMatrix(n *gltfNode) [16]float32 {
	if n.Matrix != nil {
		return *n.Matrix
	}

	t := [3]float32{}
	if n.Translation != nil {
		t = *n.Translation
	}
	q := [4]float32{0, 0, 0, 1}
	if n.Rotation != nil {
		q = *n.Rotation
	}
	s := [3]float32{1, 1, 1}
	if n.Scale != nil {
		s = *n.Scale
	}

	x, y, z, w := q[0], q[1], q[2], q[3]
	r := [3][3]float32{
		{1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w)},
		{2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w)},
		{2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y)},
	}

	var rs, tm, m [16]float32
	for c := range 3 {
		for row := range 3 {
			rs[c*4+row] = r[row][c] * s[c]
		}
	}
	rs[15] = 1
	common.Translation(tm[:], t[0], t[1], t[2])
	common.Mul4(m[:], tm[:], rs[:])
	return m
}

// transformNormal multiplies n by the transpose of inverse, the normal matrix of the
// transform inverse was computed from.
func transformNormal(inverse [16]float32, n common.Vec3) common.Vec3 {
	var out common.Vec3
	for row := range 3 {
		out[row] = inverse[row*4]*n[0] + inverse[row*4+1]*n[1] + inverse[row*4+2]*n[2]
	}
	return out.Normalize()
}

// generateNormals computes smooth vertex normals by summing the area weighted face normals
// of every triangle sharing a vertex. Vertices touching only degenerate triangles get +Y.
func generateNormals(positions []common.Vec3, indices []uint32) []common.Vec3 {
	accum := make([]common.Vec3, len(positions))
	for i := 0; i+2 < len(indices); i += 3 {
		i0, i1, i2 := indices[i], indices[i+1], indices[i+2]
		p0 := positions[i0]
		face := positions[i1].Subtract(p0).Cross(positions[i2].Subtract(p0))
		accum[i0] = accum[i0].Add(face)
		accum[i1] = accum[i1].Add(face)
		accum[i2] = accum[i2].Add(face)
	}

	for i, n := range accum {
		if n.LengthSquared() < 1e-12 {
			accum[i] = common.Vec3{0, 1, 0}
			continue
		}
		accum[i] = n.Normalize()
	}
	return accum
}
