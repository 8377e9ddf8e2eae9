// pre_processor.go implements the Oxy WGSL shader pre-processor. It scans shader
// source code for @oxy: annotations, replaces them with generated WGSL declarations
// or injected sources, and collects the group declarations for resource wiring.
package shader

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-wavefront/engine/accumulation"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/camera"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/dispatch"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/frame"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/geometry"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/queue"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/rng"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/sampling"
)

// registryEntry pairs an embedded WGSL source with the type name emitted in group
// declarations. Libraries have an empty Type and cannot be bound.
type registryEntry struct {
	Source string
	Type   string
}

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	registry     map[AnnotationArg]registryEntry
	declarations []Annotation
}

// PreProcessor processes raw WGSL shader source code containing @oxy: annotations,
// replacing them with generated declarations or injected sources while collecting
// the group declarations.
type PreProcessor interface {
	// Process takes raw WGSL shader source code and replaces every @oxy: annotation with its
	// WGSL output. The declarations list is reset at the start of each call.
	//
	// Parameters:
	//   - source: the raw WGSL shader source code containing annotations to be processed
	//
	// Returns:
	//   - string: the processed WGSL shader source code with annotations replaced
	//   - error: an error if any annotation is malformed or references an unknown key
	Process(source string) (string, error)

	// Declarations returns the group annotations collected during the most recent call to
	// Process, in source order.
	//
	// Returns:
	//   - []Annotation: the declarations collected during the last Process call
	Declarations() []Annotation
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a new PreProcessor with every engine struct and WGSL library
// registered.
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor() PreProcessor {
	return &preProcessor{
		registry: map[AnnotationArg]registryEntry{
			AnnotationArgCamera:        {Source: camera.GPUCameraUniformSource, Type: "CameraUniform"},
			AnnotationArgFrameParams:   {Source: frame.GPUFrameParamsSource, Type: "FrameParams"},
			AnnotationArgRayRecord:     {Source: queue.GPURayRecordSource, Type: "RayRecord"},
			AnnotationArgHitRecord:     {Source: queue.GPUHitRecordSource, Type: "HitRecord"},
			AnnotationArgQueueCounters: {Source: queue.GPUQueueCountersSource, Type: "QueueCounters"},
			AnnotationArgDispatchArgs:  {Source: dispatch.GPUDispatchArgsSource, Type: "DispatchArgs"},
			AnnotationArgVertex:        {Source: geometry.GPUVertexSource, Type: "Vertex"},
			AnnotationArgTriangle:      {Source: geometry.GPUTriangleSource, Type: "Triangle"},
			AnnotationArgBVHNode:       {Source: geometry.GPUBVHNodeSource, Type: "BVHNode"},
			AnnotationArgMaterial:      {Source: geometry.GPUMaterialSource, Type: "Material"},
			AnnotationArgRNG:           {Source: rng.GPURandomSource},
			AnnotationArgSampling:      {Source: sampling.GPUSamplingSource},
			AnnotationArgIntersect:     {Source: geometry.GPUIntersectSource},
			AnnotationArgAccumulate:    {Source: accumulation.GPUAccumulateSource},
		},
	}
}

func (p *preProcessor) Process(source string) (string, error) {
	p.declarations = p.declarations[:0]
	included := make(map[AnnotationArg]bool)

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))

	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case annotationTypeInclude:
			key := a.Args[0]
			entry, ok := p.registry[key]
			if !ok {
				return "", fmt.Errorf("line %d: unknown @oxy:include argument %q", i+1, key)
			}
			if included[key] {
				continue
			}
			included[key] = true
			out = append(out, entry.Source)
		case AnnotationTypeBindingGroup:
			wgslType, err := p.resolveType(string(a.Args[2]))
			if err != nil {
				return "", fmt.Errorf("line %d: %w", i+1, err)
			}
			out = append(out, fmt.Sprintf("@group(%d) @binding(%d) %s %s: %s;", *a.Group, *a.Binding, addressSpaces[a.Args[0]], a.Args[1], wgslType))
			p.declarations = append(p.declarations, *a)
		}
	}

	return strings.Join(out, "\n"), nil
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}

// resolveType maps a group annotation type argument to WGSL. Registered struct keys become
// their struct name, primitives pass through, and array<> wraps either.
func (p *preProcessor) resolveType(arg string) (string, error) {
	if inner, ok := strings.CutPrefix(arg, "array<"); ok {
		inner = strings.TrimSuffix(inner, ">")
		elem, err := p.resolveType(inner)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("array<%s>", elem), nil
	}
	if entry, ok := p.registry[AnnotationArg(arg)]; ok {
		if entry.Type == "" {
			return "", fmt.Errorf("%q is a library and cannot be bound", arg)
		}
		return entry.Type, nil
	}
	if _, ok := builtinLayout(arg); ok {
		return arg, nil
	}
	return "", fmt.Errorf("unknown type %q in @oxy group annotation", arg)
}
