// annotations.go defines the annotation types, argument constants, and parser for the
// Oxy WGSL shader pre-processor. Annotations are single-line WGSL comments prefixed
// with @oxy: that drive struct and library injection and bind group declaration. The
// parsed group declarations let the path tracer wire its shared buffers to each kernel by
// variable name instead of hand-maintained binding tables.
package shader

import (
	"fmt"
	"strconv"
	"strings"
)

// annotationPrefix is the marker that identifies an Oxy annotation within a WGSL comment line.
const annotationPrefix = "@oxy:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// annotationTypeInclude injects the WGSL source of a registered struct or library at the
	// annotation site. A key included twice in one shader is injected once.
	//
	// Syntax: //@oxy:include <key>
	//
	// Example: //@oxy:include ray_record
	annotationTypeInclude AnnotationType = "include"

	// AnnotationTypeBindingGroup generates a WGSL @group/@binding variable declaration and
	// appends an Annotation to the PreProcessor's declarations list. The type is a registered
	// struct key, a WGSL primitive, or array<> of either.
	//
	// Syntax: //@oxy:group <group> <binding> <address_space> <var_name> <type>
	//
	// Example: //@oxy:group 0 1 storage_read_write rays array<ray_record>
	AnnotationTypeBindingGroup AnnotationType = "group"
)

// Annotation represents a single parsed @oxy: annotation from a WGSL shader source line.
type Annotation struct {
	// Type identifies which annotation was parsed (include or group).
	Type AnnotationType

	// Args holds the annotation's arguments. The contents depend on Type:
	//   - include: [0] = registry key (e.g. "camera")
	//   - group:   [0] = address space, [1] = var name, [2] = type
	Args []AnnotationArg

	// Line is the 1-based line number in the original WGSL source where this annotation
	// was found. Used for error reporting.
	Line int

	// Group is the @group index for group annotations. Nil for include annotations.
	Group *int

	// Binding is the @binding index for group annotations. Nil for include annotations.
	Binding *int
}

// VarName returns the declared variable name of a group annotation.
func (a Annotation) VarName() string {
	if a.Type != AnnotationTypeBindingGroup || len(a.Args) < 2 {
		return ""
	}
	return string(a.Args[1])
}

// AnnotationArg is a typed string constant used as an argument in annotations.
type AnnotationArg string

// ── Registry keys ──────────────────────────────────────────────────────────────
// Struct keys may appear in include and group annotations. Library keys hold only
// functions and constants and may only be included.
const (
	// AnnotationArgCamera identifies the CameraUniform struct and camera_ray helper.
	AnnotationArgCamera AnnotationArg = "camera"

	// AnnotationArgFrameParams identifies the FrameParams struct.
	AnnotationArgFrameParams AnnotationArg = "frame_params"

	// AnnotationArgRayRecord identifies the RayRecord struct used by the ray and escaped queues.
	AnnotationArgRayRecord AnnotationArg = "ray_record"

	// AnnotationArgHitRecord identifies the HitRecord struct used by the hit queue.
	AnnotationArgHitRecord AnnotationArg = "hit_record"

	// AnnotationArgQueueCounters identifies the QueueCounters struct and QUEUE_* constants.
	AnnotationArgQueueCounters AnnotationArg = "queue_counters"

	// AnnotationArgDispatchArgs identifies the DispatchArgs struct and dispatch_size helper.
	AnnotationArgDispatchArgs AnnotationArg = "dispatch_args"

	// AnnotationArgVertex identifies the Vertex struct of the scene vertex array.
	AnnotationArgVertex AnnotationArg = "vertex"

	// AnnotationArgTriangle identifies the Triangle struct of the scene index array.
	AnnotationArgTriangle AnnotationArg = "triangle"

	// AnnotationArgBVHNode identifies the flattened BVHNode struct.
	AnnotationArgBVHNode AnnotationArg = "bvh_node"

	// AnnotationArgMaterial identifies the Material struct.
	AnnotationArgMaterial AnnotationArg = "material"

	// AnnotationArgRNG identifies the PCG4D random stream library.
	AnnotationArgRNG AnnotationArg = "rng"

	// AnnotationArgSampling identifies the Lambert sampling library. Requires rng.
	AnnotationArgSampling AnnotationArg = "sampling"

	// AnnotationArgIntersect identifies the BVH traversal library. Requires vertex, triangle
	// and bvh_node and arrays named vertices, triangles and bvh_nodes.
	AnnotationArgIntersect AnnotationArg = "intersect"

	// AnnotationArgAccumulate identifies the running-mean accumulation library. Requires
	// a params uniform and arrays named radiance and counts.
	AnnotationArgAccumulate AnnotationArg = "accumulate"
)

// ── Address space arguments ────────────────────────────────────────────────────
const (
	// annotationArgStorageTypeUniform maps to var<uniform> in WGSL.
	annotationArgStorageTypeUniform AnnotationArg = "storage_uniform"

	// annotationArgStorageTypeRead maps to var<storage, read> in WGSL.
	annotationArgStorageTypeRead AnnotationArg = "storage_read"

	// annotationArgStorageTypeReadWrite maps to var<storage, read_write> in WGSL.
	annotationArgStorageTypeReadWrite AnnotationArg = "storage_read_write"
)

var addressSpaces = map[AnnotationArg]string{
	annotationArgStorageTypeUniform:   "var<uniform>",
	annotationArgStorageTypeRead:      "var<storage, read>",
	annotationArgStorageTypeReadWrite: "var<storage, read_write>",
}

// parseAnnotation attempts to parse a single line of WGSL source as an @oxy: annotation.
// Returns nil with no error for lines that do not contain the annotation prefix. Registry
// membership of include keys and group types is checked by the PreProcessor.
//
// Parameters:
//   - line: the raw WGSL source line to parse
//   - lineNum: the 1-based line number for error reporting
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: a descriptive error if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "//") {
		return nil, nil
	}
	_, after, ok := strings.Cut(trimmed, annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	switch AnnotationType(args[0]) {
	case annotationTypeInclude:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy include annotation requires exactly one argument", lineNum)
		}
		return &Annotation{
			Type: annotationTypeInclude,
			Args: []AnnotationArg{AnnotationArg(args[1])},
			Line: lineNum,
		}, nil

	case AnnotationTypeBindingGroup:
		if len(args) != 6 {
			return nil, fmt.Errorf("line %d: @oxy group annotation requires five arguments (group, binding, address space, var name, type)", lineNum)
		}
		group, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid group number %q in @oxy group annotation: %w", lineNum, args[1], err)
		}
		binding, err := strconv.Atoi(args[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid binding number %q in @oxy group annotation: %w", lineNum, args[2], err)
		}
		if _, ok := addressSpaces[AnnotationArg(args[3])]; !ok {
			return nil, fmt.Errorf("line %d: unknown address space %q in @oxy group annotation", lineNum, args[3])
		}
		return &Annotation{
			Type:    AnnotationTypeBindingGroup,
			Args:    []AnnotationArg{AnnotationArg(args[3]), AnnotationArg(args[4]), AnnotationArg(args[5])},
			Line:    lineNum,
			Group:   &group,
			Binding: &binding,
		}, nil

	default:
		return nil, fmt.Errorf("line %d: unknown @oxy annotation type %q", lineNum, args[0])
	}
}
