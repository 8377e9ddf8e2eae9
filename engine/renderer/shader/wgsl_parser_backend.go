package shader

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// vectorTypeRegex matches vecN<T> and the vecNf / vecNi / vecNu / vecNh aliases.
	vectorTypeRegex = regexp.MustCompile(`^vec([234])(?:<\s*(\w+)\s*>|([fiuh]))$`)

	// matrixTypeRegex matches matCxR<T> and the matCxRf / matCxRh aliases.
	matrixTypeRegex = regexp.MustCompile(`^mat([234])x([234])(?:<\s*(\w+)\s*>|([fh]))$`)

	scalarAliases = map[string]string{"f": "f32", "i": "i32", "u": "u32", "h": "f16"}
)

// Reference: https://www.w3.org/TR/WGSL/#alignment-and-size
func scalarLayout(name string) (wgslTypeLayout, bool) {
	switch name {
	case "f32", "i32", "u32", "bool":
		return wgslTypeLayout{4, 4}, true
	case "f16":
		return wgslTypeLayout{2, 2}, true
	}
	return wgslTypeLayout{}, false
}

// vectorLayout returns the layout of an n component vector. vec3 is aligned like vec4.
func vectorLayout(n int, scalar string) (wgslTypeLayout, bool) {
	s, ok := scalarLayout(scalar)
	if !ok {
		return wgslTypeLayout{}, false
	}
	size := uint64(n) * s.size
	align := size
	if n == 3 {
		align = 4 * s.size
	}
	return wgslTypeLayout{size, align}, true
}

// builtinLayout resolves scalars, vectors, matrices and atomics.
func builtinLayout(typeName string) (wgslTypeLayout, bool) {
	if l, ok := scalarLayout(typeName); ok {
		return l, true
	}
	if inner, ok := unwrap(typeName, "atomic"); ok {
		return scalarLayout(inner)
	}
	if m := vectorTypeRegex.FindStringSubmatch(typeName); m != nil {
		n, _ := strconv.Atoi(m[1])
		return vectorLayout(n, m[2]+scalarAliases[m[3]])
	}
	if m := matrixTypeRegex.FindStringSubmatch(typeName); m != nil {
		cols, _ := strconv.Atoi(m[1])
		rows, _ := strconv.Atoi(m[2])
		column, ok := vectorLayout(rows, m[3]+scalarAliases[m[4]])
		if !ok {
			return wgslTypeLayout{}, false
		}
		return wgslTypeLayout{uint64(cols) * roundUpAlign(column.align, column.size), column.align}, true
	}
	return wgslTypeLayout{}, false
}

// unwrap returns T for a type written as name<T>.
func unwrap(typeName, name string) (string, bool) {
	if !strings.HasPrefix(typeName, name+"<") || !strings.HasSuffix(typeName, ">") {
		return "", false
	}
	return strings.TrimSpace(typeName[len(name)+1 : len(typeName)-1]), true
}

// roundUpAlign rounds value up to the next multiple of alignment, a power of two.
func roundUpAlign(alignment, value uint64) uint64 {
	if alignment == 0 {
		return value
	}
	return (value + alignment - 1) &^ (alignment - 1)
}

// layoutTable resolves WGSL type layouts against the structs declared in one source,
// memoizing each struct the first time it is needed.
type layoutTable struct {
	structs  map[string]parsedStruct
	resolved map[string]wgslTypeLayout
	visiting map[string]bool
}

func newLayoutTable(structs []parsedStruct) *layoutTable {
	t := &layoutTable{
		structs:  make(map[string]parsedStruct, len(structs)),
		resolved: make(map[string]wgslTypeLayout, len(structs)),
		visiting: make(map[string]bool),
	}
	for _, ps := range structs {
		t.structs[ps.name] = ps
	}
	return t
}

// layout returns the size and alignment of typeName. A runtime-sized array reports one
// element stride, the smallest useful binding size.
func (t *layoutTable) layout(typeName string) (wgslTypeLayout, bool) {
	typeName = strings.TrimSpace(typeName)
	if l, ok := builtinLayout(typeName); ok {
		return l, true
	}
	if l, ok := t.resolved[typeName]; ok {
		return l, true
	}
	if ps, ok := t.structs[typeName]; ok {
		return t.structLayout(ps)
	}

	inner, ok := unwrap(typeName, "array")
	if !ok {
		return wgslTypeLayout{}, false
	}
	parts := splitAtTopLevelCommas(inner)
	elem, ok := t.layout(parts[0])
	if !ok {
		return wgslTypeLayout{}, false
	}
	stride := roundUpAlign(elem.align, elem.size)
	if len(parts) == 1 {
		return wgslTypeLayout{stride, elem.align}, true
	}
	count, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return wgslTypeLayout{}, false
	}
	return wgslTypeLayout{count * stride, elem.align}, true
}

// structLayout places each member at its next aligned offset and rounds the total up to
// the widest member alignment. A trailing runtime-sized array contributes nothing to the
// size unless it is the only member. @builtin members take no buffer space.
func (t *layoutTable) structLayout(ps parsedStruct) (wgslTypeLayout, bool) {
	if t.visiting[ps.name] {
		return wgslTypeLayout{}, false
	}
	t.visiting[ps.name] = true
	defer delete(t.visiting, ps.name)

	var offset uint64
	align := uint64(1)
	for i, field := range ps.fields {
		if field.isBuiltin {
			continue
		}
		l, ok := t.layout(field.typeName)
		if !ok {
			return wgslTypeLayout{}, false
		}
		if align < l.align {
			align = l.align
		}
		if i == len(ps.fields)-1 && isRuntimeArray(field.typeName) && offset > 0 {
			break
		}
		offset = roundUpAlign(l.align, offset) + l.size
	}

	out := wgslTypeLayout{roundUpAlign(align, offset), align}
	t.resolved[ps.name] = out
	return out, true
}

func isRuntimeArray(typeName string) bool {
	inner, ok := unwrap(strings.TrimSpace(typeName), "array")
	return ok && len(splitAtTopLevelCommas(inner)) == 1
}

// computeStructSizes returns the layout of every struct that can be resolved.
func computeStructSizes(structs []parsedStruct) map[string]wgslTypeLayout {
	t := newLayoutTable(structs)
	for _, ps := range structs {
		t.layout(ps.name)
	}
	return t.resolved
}

// stripComments removes line comments and nested block comments in a single pass.
// Newlines are kept so declarations stay on their own lines.
func stripComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))

	depth := 0
	for i := 0; i < len(source); i++ {
		next := byte(0)
		if i+1 < len(source) {
			next = source[i+1]
		}
		switch {
		case source[i] == '/' && next == '*':
			depth++
			i++
		case depth > 0 && source[i] == '*' && next == '/':
			depth--
			i++
		case depth > 0:
		case source[i] == '/' && next == '/':
			for i < len(source) && source[i] != '\n' {
				i++
			}
			if i < len(source) {
				sb.WriteByte('\n')
			}
		default:
			sb.WriteByte(source[i])
		}
	}
	return sb.String()
}

// splitAtTopLevelCommas splits s at commas outside angle brackets, so array<atomic<u32>, 3>
// stays one type.
func splitAtTopLevelCommas(s string) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			depth = max(depth-1, 0)
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}
