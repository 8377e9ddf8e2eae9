package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-wavefront/common"
)

// triangleBuffer holds positions (0,0,0) (1,0,0) (0,1,0), three +Z normals and uint16
// indices 0 1 2.
func triangleBuffer() []byte {
	buf := make([]byte, 78)
	positions := []common.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}
	for i, p := range positions {
		common.PutVec3(buf, i*12, p)
		common.PutVec3(buf, 36+i*12, common.Vec3{0, 0, 1})
	}
	for i := range 3 {
		binary.LittleEndian.PutUint16(buf[72+i*2:], uint16(i))
	}
	return buf
}

type fixture struct {
	version  string
	node     string
	normals  bool
	material bool
	// uri is the buffer URI; empty means the GLB binary chunk.
	uri string
}

func (f fixture) json() string {
	version := common.Coalesce(f.version, "2.0")
	node := common.Coalesce(f.node, `{"mesh": 0}`)

	attrs := `"POSITION": 0`
	if f.normals {
		attrs += `, "NORMAL": 1`
	}
	material := ""
	if f.material {
		material = `, "material": 0`
	}
	uri := ""
	if f.uri != "" {
		uri = fmt.Sprintf(`"uri": %q, `, f.uri)
	}

	return fmt.Sprintf(`{
  "asset": {"version": %q},
  "scene": 0,
  "scenes": [{"nodes": [0]}],
  "nodes": [%s],
  "meshes": [{"name": "tri", "primitives": [{"attributes": {%s}, "indices": 2%s}]}],
  "accessors": [
    {"bufferView": 0, "componentType": 5126, "count": 3, "type": "VEC3"},
    {"bufferView": 0, "byteOffset": 36, "componentType": 5126, "count": 3, "type": "VEC3"},
    {"bufferView": 1, "componentType": 5123, "count": 3, "type": "SCALAR"}
  ],
  "bufferViews": [
    {"buffer": 0, "byteOffset": 0, "byteLength": 72},
    {"buffer": 0, "byteOffset": 72, "byteLength": 6}
  ],
  "buffers": [{%s"byteLength": 78}],
  "materials": [{"pbrMetallicRoughness": {"baseColorFactor": [0.2, 0.4, 0.6, 1]}}]
}`, version, node, attrs, material, uri)
}

func dataURI() string {
	return "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(triangleBuffer())
}

func glb(jsonText string, bin []byte) []byte {
	pad := func(b []byte, fill byte) []byte {
		for len(b)%4 != 0 {
			b = append(b, fill)
		}
		return b
	}
	js := pad([]byte(jsonText), ' ')
	bin = pad(append([]byte(nil), bin...), 0)

	var out bytes.Buffer
	_ = binary.Write(&out, binary.LittleEndian, gltfGLBHeader{
		Magic:   gltfGLBMagic,
		Version: gltfGLBVersion,
		Length:  uint32(12 + 8 + len(js) + 8 + len(bin)),
	})
	_ = binary.Write(&out, binary.LittleEndian, gltfGLBChunkHeader{ChunkLength: uint32(len(js)), ChunkType: gltfGLBChunkJSON})
	out.Write(js)
	_ = binary.Write(&out, binary.LittleEndian, gltfGLBChunkHeader{ChunkLength: uint32(len(bin)), ChunkType: gltfGLBChunkBIN})
	out.Write(bin)
	return out.Bytes()
}

func TestLoadReaderTranslatesAndGeneratesNormals(t *testing.T) {
	l := NewLoader(BackendTypeGLTF)
	f := fixture{node: `{"mesh": 0, "translation": [0, 0, -2]}`, material: true, uri: dataURI()}

	scene, err := l.LoadReader("tri", strings.NewReader(f.json()), false)
	if err != nil {
		t.Fatal(err)
	}
	if len(scene.Triangles) != 1 {
		t.Fatalf("got %d triangles, expected 1", len(scene.Triangles))
	}
	if got := scene.Positions[1]; !got.ApproxEqual(common.Vec3{1, 0, -2}, 1e-6) {
		t.Errorf("got position %v, expected (1, 0, -2)", got)
	}
	for i, n := range scene.Normals {
		if !n.ApproxEqual(common.Vec3{0, 0, 1}, 1e-6) {
			t.Errorf("normal %d: got %v, expected +Z", i, n)
		}
	}
	if got := scene.Material(0).Albedo; !got.ApproxEqual(common.Vec3{0.2, 0.4, 0.6}, 1e-6) {
		t.Errorf("got albedo %v, expected (0.2, 0.4, 0.6)", got)
	}
}

func TestNodeRotationAppliesToNormals(t *testing.T) {
	const s = 0.70710678
	node := fmt.Sprintf(`{"mesh": 0, "rotation": [0, %v, 0, %v]}`, s, s)

	for _, normals := range []bool{true, false} {
		l := NewLoader(BackendTypeGLTF)
		f := fixture{node: node, normals: normals, uri: dataURI()}
		scene, err := l.LoadReader("tri", strings.NewReader(f.json()), false)
		if err != nil {
			t.Fatal(err)
		}
		if got := scene.Positions[1]; !got.ApproxEqual(common.Vec3{0, 0, -1}, 1e-5) {
			t.Errorf("normals=%v: got position %v, expected (0, 0, -1)", normals, got)
		}
		if got := scene.Normals[0]; !got.ApproxEqual(common.Vec3{1, 0, 0}, 1e-5) {
			t.Errorf("normals=%v: got normal %v, expected +X", normals, got)
		}
	}
}

func TestNodeAppliesScaleRotationTranslation(t *testing.T) {
	const s = 0.70710678
	node := fmt.Sprintf(`{"mesh": 0, "translation": [1, 0, 0], "rotation": [0, %v, 0, %v], "scale": [2, 2, 2]}`, s, s)

	l := NewLoader(BackendTypeGLTF)
	scene, err := l.LoadReader("tri", strings.NewReader(fixture{node: node, uri: dataURI()}.json()), false)
	if err != nil {
		t.Fatal(err)
	}
	if got := scene.Positions[1]; !got.ApproxEqual(common.Vec3{1, 0, -2}, 1e-5) {
		t.Errorf("got position %v, expected (1, 0, -2)", got)
	}
	if got := scene.Positions[2]; !got.ApproxEqual(common.Vec3{1, 2, 0}, 1e-5) {
		t.Errorf("got position %v, expected (1, 2, 0)", got)
	}
}

func TestLoadGLBMatchesGLTF(t *testing.T) {
	l := NewLoader(BackendTypeGLTF)

	text, err := l.LoadReader("text", strings.NewReader(fixture{normals: true, uri: dataURI()}.json()), false)
	if err != nil {
		t.Fatal(err)
	}
	binaryScene, err := l.LoadReader("binary", bytes.NewReader(glb(fixture{normals: true}.json(), triangleBuffer())), true)
	if err != nil {
		t.Fatal(err)
	}

	if len(binaryScene.Positions) != len(text.Positions) {
		t.Fatalf("got %d positions, expected %d", len(binaryScene.Positions), len(text.Positions))
	}
	for i := range text.Positions {
		if binaryScene.Positions[i] != text.Positions[i] || binaryScene.Normals[i] != text.Normals[i] {
			t.Errorf("vertex %d differs between GLB and glTF", i)
		}
	}
}

func TestLoadCachesByPath(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "tri.bin"), triangleBuffer(), 0o644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "tri.gltf")
	if err := os.WriteFile(path, []byte(fixture{uri: "tri.bin"}.json()), 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(BackendTypeGLTF)
	first, err := l.Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	second, err := l.Load(path)
	if err != nil {
		t.Fatalf("cached load failed: %v", err)
	}
	if len(second.Triangles) != len(first.Triangles) {
		t.Errorf("got %d triangles from cache, expected %d", len(second.Triangles), len(first.Triangles))
	}
	if _, ok := l.Get(path); !ok {
		t.Error("scene missing from cache")
	}
	if got := len(l.Scenes()); got != 1 {
		t.Errorf("got %d cached scenes, expected 1", got)
	}
}

func TestImportSettings(t *testing.T) {
	var root [16]float32
	common.Translation(root[:], 0, 5, 0)
	albedo := common.Vec3{0.1, 0.2, 0.3}

	l := NewLoader(BackendTypeGLTF, WithTransform(root), WithDefaultAlbedo(albedo))
	scene, err := l.LoadReader("tri", strings.NewReader(fixture{uri: dataURI()}.json()), false)
	if err != nil {
		t.Fatal(err)
	}
	if got := scene.Positions[2]; !got.ApproxEqual(common.Vec3{0, 6, 0}, 1e-6) {
		t.Errorf("got position %v, expected (0, 6, 0)", got)
	}
	if got := scene.Material(0).Albedo; got != albedo {
		t.Errorf("got albedo %v, expected %v", got, albedo)
	}
}

func TestLoadErrors(t *testing.T) {
	l := NewLoader(BackendTypeGLTF)

	if _, err := l.Load("model.obj"); err == nil {
		t.Error("expected an error for an unsupported extension")
	}
	if _, err := l.LoadReader("old", strings.NewReader(fixture{version: "1.0", uri: dataURI()}.json()), false); err == nil {
		t.Error("expected an error for glTF 1.0")
	}
	if _, err := l.LoadReader("missing", strings.NewReader(fixture{}.json()), false); err == nil {
		t.Error("expected an error for a buffer without data")
	}
	if _, err := l.LoadReader("cycle", strings.NewReader(fixture{node: `{"mesh": 0, "children": [0]}`, uri: dataURI()}.json()), false); err == nil {
		t.Error("expected an error for a node cycle")
	}
	if _, ok := l.Get("old"); ok {
		t.Error("failed load was cached")
	}
}
