package shader

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
)

const testTraceSource = `
//@oxy:include ray_record
//@oxy:include queue_counters
//@oxy:include frame_params
//@oxy:include camera
//@oxy:include rng
//@oxy:include rng

//@oxy:group 0 0 storage_uniform params frame_params
//@oxy:group 0 1 storage_uniform cam camera
//@oxy:group 0 2 storage_read_write rays array<ray_record>
//@oxy:group 0 3 storage_read_write counters queue_counters
//@oxy:group 0 4 storage_read_write radiance array<vec4f>

@compute @workgroup_size(8, 8)
fn generate(@builtin(global_invocation_id) id: vec3u) {
    if (id.x >= params.width || id.y >= params.height) {
        return;
    }
    var s = rng_seed(id.xy, params.frame);
    let slot = atomicAdd(&counters.count[QUEUE_RAY], 1u);
    rays[slot].pixel = id.xy;
    radiance[0] = vec4f(rng_float2(&s), 0.0, 0.0);
}
`

func TestPreProcessorIncludesOnce(t *testing.T) {
	pp := NewPreProcessor()
	out, err := pp.Process(testTraceSource)
	if err != nil {
		t.Fatalf("failed to process: %v", err)
	}
	if got := strings.Count(out, "fn pcg4d("); got != 1 {
		t.Errorf("got %d copies of the rng library, expected 1", got)
	}
	if strings.Contains(out, annotationPrefix) {
		t.Error("processed source still contains annotations")
	}
	if !strings.Contains(out, "@group(0) @binding(2) var<storage, read_write> rays: array<RayRecord>;") {
		t.Error("missing generated ray queue declaration")
	}
	if !strings.Contains(out, "@group(0) @binding(4) var<storage, read_write> radiance: array<vec4f>;") {
		t.Error("missing generated primitive array declaration")
	}

	decls := pp.Declarations()
	names := make([]string, len(decls))
	for i, d := range decls {
		names[i] = d.VarName()
	}
	if got := strings.Join(names, ","); got != "params,cam,rays,counters,radiance" {
		t.Errorf("got declarations %s, expected params,cam,rays,counters,radiance", got)
	}

	// a second run starts from an empty declaration list
	if _, err := pp.Process("//@oxy:group 1 0 storage_read tris array<triangle>"); err != nil {
		t.Fatal(err)
	}
	if len(pp.Declarations()) != 1 {
		t.Errorf("got %d declarations, expected 1", len(pp.Declarations()))
	}
}

func TestPreProcessorErrors(t *testing.T) {
	tests := map[string]string{
		"unknown include":   "//@oxy:include nothing",
		"library binding":   "//@oxy:group 0 0 storage_read lib rng",
		"unknown type":      "//@oxy:group 0 0 storage_read x array<Nothing>",
		"bad address space": "//@oxy:group 0 0 private x u32",
		"bad group":         "//@oxy:group a 0 storage_read x u32",
		"missing args":      "//@oxy:group 0 0 storage_read x",
		"unknown type kind": "//@oxy:define x",
	}
	for name, src := range tests {
		if _, err := NewPreProcessor().Process(src); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestShaderLayouts(t *testing.T) {
	s := NewShaderFromSource("generate", ShaderTypeCompute, testTraceSource)

	if s.EntryPoint() != "generate" {
		t.Errorf("got entry point %q, expected %q", s.EntryPoint(), "generate")
	}
	if s.WorkgroupSize() != [3]uint32{8, 8, 1} {
		t.Errorf("got workgroup size %v, expected [8 8 1]", s.WorkgroupSize())
	}
	if s.ShaderType().String() != "compute" {
		t.Errorf("got shader type %q, expected compute", s.ShaderType())
	}

	desc := s.BindGroupLayoutDescriptor(0)
	if len(desc.Entries) != 5 {
		t.Fatalf("got %d entries, expected 5", len(desc.Entries))
	}
	expected := []struct {
		kind wgpu.BufferBindingType
		size uint64
	}{
		{wgpu.BufferBindingTypeUniform, 48},
		{wgpu.BufferBindingTypeUniform, 128},
		{wgpu.BufferBindingTypeStorage, 64},
		{wgpu.BufferBindingTypeStorage, 12},
		{wgpu.BufferBindingTypeStorage, 16},
	}
	for i, e := range desc.Entries {
		if e.Binding != uint32(i) {
			t.Errorf("entry %d: got binding %d", i, e.Binding)
		}
		if e.Buffer.Type != expected[i].kind {
			t.Errorf("entry %d: got type %v, expected %v", i, e.Buffer.Type, expected[i].kind)
		}
		if e.Buffer.MinBindingSize != expected[i].size {
			t.Errorf("entry %d: got min size %d, expected %d", i, e.Buffer.MinBindingSize, expected[i].size)
		}
		if e.Visibility != wgpu.ShaderStageCompute {
			t.Errorf("entry %d: got visibility %v", i, e.Visibility)
		}
	}

	if b, ok := s.BindGroupFromVarName(0, "counters"); !ok || b != 3 {
		t.Errorf("got binding %d %v for counters, expected 3 true", b, ok)
	}
	if s.BindGroupVarName(0, 2) != "rays" {
		t.Errorf("got %q at binding 2, expected rays", s.BindGroupVarName(0, 2))
	}
	if s.Module() == nil || s.Module().WGSLDescriptor.Code != s.Source() {
		t.Error("module descriptor does not carry the processed source")
	}
}

func TestRecordStructSizes(t *testing.T) {
	pp := NewPreProcessor()
	src, err := pp.Process("//@oxy:include hit_record\n//@oxy:include bvh_node\n//@oxy:include dispatch_args\n//@oxy:include triangle\n//@oxy:include vertex")
	if err != nil {
		t.Fatal(err)
	}
	sizes := computeStructSizes(parseStructBlocks(stripComments(src)))
	for name, expected := range map[string]uint64{"HitRecord": 64, "BVHNode": 32, "DispatchArgs": 12, "Triangle": 16, "Vertex": 32} {
		if got := sizes[name].size; got != expected {
			t.Errorf("%s: got %d bytes, expected %d", name, got, expected)
		}
	}
}

func TestMissingEntryPointPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected a panic for a shader without an entry point")
		}
	}()
	NewShaderFromSource("empty", ShaderTypeCompute, "//@oxy:include rng")
}

func TestValidate(t *testing.T) {
	sources := map[string]string{
		"generate": testTraceSource,
		"double": `
@group(0) @binding(0) var<storage, read_write> data: array<u32>;

@compute @workgroup_size(64)
fn double(@builtin(global_invocation_id) id: vec3u) {
    data[id.x] = data[id.x] * 2u;
}
`,
	}
	for key, source := range sources {
		t.Run(key, func(t *testing.T) {
			spirv, err := NewShaderFromSource(key, ShaderTypeCompute, source).Validate()
			if err != nil {
				t.Skipf("naga could not compile %s: %v", key, err)
			}
			if len(spirv) < 4 {
				t.Fatal("SPIR-V too short")
			}
			if magic := binary.LittleEndian.Uint32(spirv); magic != 0x07230203 {
				t.Errorf("got SPIR-V magic 0x%08X, expected 0x07230203", magic)
			}
		})
	}
}

func TestTypeLayouts(t *testing.T) {
	table := newLayoutTable(parseStructBlocks(`
struct Inner { a: vec3f, b: f32 }
struct Outer { inner: Inner, m: mat3x3<f32>, tail: array<u32> }
`))
	for typeName, expected := range map[string]wgslTypeLayout{
		"vec3h":              {6, 8},
		"vec2<f32>":          {8, 8},
		"mat4x2f":            {32, 8},
		"atomic<u32>":        {4, 4},
		"array<vec3f, 4>":    {64, 16},
		"array<atomic<u32>>": {4, 4},
		"Inner":              {16, 16},
		"Outer":              {64, 16},
	} {
		got, ok := table.layout(typeName)
		if !ok {
			t.Errorf("%s: not resolved", typeName)
			continue
		}
		if got != expected {
			t.Errorf("%s: got %+v, expected %+v", typeName, got, expected)
		}
	}
	if _, ok := table.layout("texture_2d<f32>"); ok {
		t.Error("texture types have no buffer layout")
	}
}

func TestStripComments(t *testing.T) {
	src := "a /* one /* two */ still */ b // gone\nc"
	if got := stripComments(src); got != "a  b \nc" {
		t.Errorf("got %q, expected %q", got, "a  b \nc")
	}
}
