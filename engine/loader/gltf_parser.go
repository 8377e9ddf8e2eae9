package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-wavefront/common"
)

var (
	errInvalidGLTFVersion = errors.New("invalid glTF version: must be 2.0")
	errInvalidGLBMagic    = errors.New("invalid GLB magic number")
	errInvalidGLBVersion  = errors.New("invalid GLB version: must be 2")
	errMissingJSONChunk   = errors.New("GLB file missing JSON chunk")
	errInvalidBufferURI   = errors.New("invalid buffer URI")
	errBufferSizeMismatch = errors.New("buffer size mismatch")
	errAccessorOutOfRange = errors.New("accessor reads past the end of its buffer")
)

// gltfParser decodes a glTF or GLB file into a gltfDocument with all buffers resolved, and
// reads typed accessor data out of it.
type gltfParser struct {
	baseDir        string
	document       *gltfDocument
	glbBinaryChunk []byte
}

func newGLTFParser() *gltfParser {
	return &gltfParser{}
}

// Parse loads the file at path. GLB is detected by extension or magic number; anything
// else is parsed as glTF JSON with URIs resolved relative to the file.
func (p *gltfParser) Parse(path string) error {
	p.baseDir = filepath.Dir(path)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".glb") || isGLB(data) {
		return p.parseGLB(data)
	}
	return p.parseGLTF(data)
}

// ParseReader parses a document from r. External buffer URIs resolve against the working
// directory.
func (p *gltfParser) ParseReader(r io.Reader, glb bool) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read data: %w", err)
	}
	if glb {
		return p.parseGLB(data)
	}
	return p.parseGLTF(data)
}

func isGLB(data []byte) bool {
	return len(data) >= 4 && binary.LittleEndian.Uint32(data[:4]) == gltfGLBMagic
}

func (p *gltfParser) parseGLTF(data []byte) error {
	var doc gltfDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to parse glTF JSON: %w", err)
	}
	return p.accept(&doc)
}

func (p *gltfParser) parseGLB(data []byte) error {
	if len(data) < 12 {
		return errors.New("GLB file too small")
	}

	r := bytes.NewReader(data)

	var header gltfGLBHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("failed to read GLB header: %w", err)
	}
	if header.Magic != gltfGLBMagic {
		return errInvalidGLBMagic
	}
	if header.Version != gltfGLBVersion {
		return errInvalidGLBVersion
	}

	var jsonData []byte
	for {
		var chunk gltfGLBChunkHeader
		if err := binary.Read(r, binary.LittleEndian, &chunk); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("failed to read chunk header: %w", err)
		}

		body := make([]byte, chunk.ChunkLength)
		if _, err := io.ReadFull(r, body); err != nil {
			return fmt.Errorf("failed to read chunk data: %w", err)
		}

		switch chunk.ChunkType {
		case gltfGLBChunkJSON:
			jsonData = body
		case gltfGLBChunkBIN:
			p.glbBinaryChunk = body
		}
	}

	if jsonData == nil {
		return errMissingJSONChunk
	}
	return p.parseGLTF(jsonData)
}

func (p *gltfParser) accept(doc *gltfDocument) error {
	if !strings.HasPrefix(doc.Asset.Version, "2.") {
		return errInvalidGLTFVersion
	}
	if len(doc.ExtensionsRequired) > 0 {
		return fmt.Errorf("unsupported required extensions: %s", strings.Join(doc.ExtensionsRequired, ", "))
	}
	if err := p.loadBuffers(doc); err != nil {
		return fmt.Errorf("failed to load buffers: %w", err)
	}
	p.document = doc
	return nil
}

// loadBuffers fills every buffer from its URI, or the first URI-less buffer from the GLB
// binary chunk.
func (p *gltfParser) loadBuffers(doc *gltfDocument) error {
	for i := range doc.Buffers {
		buf := &doc.Buffers[i]

		switch {
		case buf.URI == "" && i == 0 && p.glbBinaryChunk != nil:
			buf.Data = p.glbBinaryChunk
		case buf.URI == "":
			return fmt.Errorf("buffer %d has no URI and no GLB binary chunk", i)
		default:
			data, err := p.loadBufferURI(buf.URI)
			if err != nil {
				return fmt.Errorf("buffer %d: %w", i, err)
			}
			buf.Data = data
		}

		if len(buf.Data) < buf.ByteLength {
			return fmt.Errorf("buffer %d: %w", i, errBufferSizeMismatch)
		}
	}
	return nil
}

func (p *gltfParser) loadBufferURI(uri string) ([]byte, error) {
	if strings.HasPrefix(uri, "data:") {
		return decodeDataURI(uri)
	}

	data, err := os.ReadFile(filepath.Join(p.baseDir, uri))
	if err != nil {
		return nil, fmt.Errorf("failed to load buffer file %q: %w", uri, err)
	}
	return data, nil
}

// decodeDataURI decodes data:[<mediatype>];base64,<data>.
func decodeDataURI(uri string) ([]byte, error) {
	comma := strings.IndexByte(uri, ',')
	if comma < 0 {
		return nil, errInvalidBufferURI
	}
	if header := uri[len("data:"):comma]; !strings.HasSuffix(header, ";base64") {
		return nil, fmt.Errorf("unsupported data URI encoding: %q", header)
	}

	data, err := base64.StdEncoding.DecodeString(uri[comma+1:])
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}
	return data, nil
}

// elements returns the accessor's raw bytes as one tightly packed slice per element,
// honoring the buffer view stride.
func (p *gltfParser) elements(index int) (*gltfAccessor, [][]byte, error) {
	if p.document == nil {
		return nil, nil, errors.New("no document loaded")
	}
	if index < 0 || index >= len(p.document.Accessors) {
		return nil, nil, fmt.Errorf("accessor index %d out of range", index)
	}

	acc := &p.document.Accessors[index]
	if acc.Sparse != nil {
		return nil, nil, fmt.Errorf("accessor %d: sparse accessors are not supported", index)
	}
	if acc.BufferView == nil || *acc.BufferView < 0 || *acc.BufferView >= len(p.document.BufferViews) {
		return nil, nil, fmt.Errorf("accessor %d has no valid bufferView", index)
	}

	bv := &p.document.BufferViews[*acc.BufferView]
	if bv.Buffer < 0 || bv.Buffer >= len(p.document.Buffers) {
		return nil, nil, fmt.Errorf("bufferView %d references missing buffer %d", *acc.BufferView, bv.Buffer)
	}
	data := p.document.Buffers[bv.Buffer].Data

	size := componentTypeSize(acc.ComponentType) * accessorTypeComponents(acc.Type)
	if size == 0 {
		return nil, nil, fmt.Errorf("accessor %d: unsupported layout %s/%d", index, acc.Type, acc.ComponentType)
	}
	stride := size
	if bv.ByteStride != nil && *bv.ByteStride > 0 {
		stride = *bv.ByteStride
	}

	base := bv.ByteOffset + acc.ByteOffset
	out := make([][]byte, acc.Count)
	for i := range out {
		off := base + i*stride
		if off+size > len(data) {
			return nil, nil, fmt.Errorf("accessor %d: %w", index, errAccessorOutOfRange)
		}
		out[i] = data[off : off+size]
	}
	return acc, out, nil
}

// ReadVec3 reads a VEC3 FLOAT accessor.
func (p *gltfParser) ReadVec3(index int) ([]common.Vec3, error) {
	acc, elems, err := p.elements(index)
	if err != nil {
		return nil, err
	}
	if acc.Type != gltfAccessorTypeVec3 || acc.ComponentType != gltfComponentTypeFloat {
		return nil, fmt.Errorf("accessor %d is not VEC3 FLOAT: type=%s, componentType=%d", index, acc.Type, acc.ComponentType)
	}

	out := make([]common.Vec3, len(elems))
	for i, e := range elems {
		out[i] = common.Vec3At(e, 0)
	}
	return out, nil
}

// ReadIndices reads a SCALAR unsigned integer accessor of any width.
func (p *gltfParser) ReadIndices(index int) ([]uint32, error) {
	acc, elems, err := p.elements(index)
	if err != nil {
		return nil, err
	}
	if acc.Type != gltfAccessorTypeScalar {
		return nil, fmt.Errorf("index accessor %d is not SCALAR: type=%s", index, acc.Type)
	}

	out := make([]uint32, len(elems))
	for i, e := range elems {
		switch acc.ComponentType {
		case gltfComponentTypeUnsignedByte:
			out[i] = uint32(e[0])
		case gltfComponentTypeUnsignedShort:
			out[i] = uint32(binary.LittleEndian.Uint16(e))
		case gltfComponentTypeUnsignedInt:
			out[i] = binary.LittleEndian.Uint32(e)
		default:
			return nil, fmt.Errorf("unsupported index component type: %d", acc.ComponentType)
		}
	}
	return out, nil
}

func componentTypeSize(componentType int) int {
	switch componentType {
	case gltfComponentTypeByte, gltfComponentTypeUnsignedByte:
		return 1
	case gltfComponentTypeShort, gltfComponentTypeUnsignedShort:
		return 2
	case gltfComponentTypeUnsignedInt, gltfComponentTypeFloat:
		return 4
	default:
		return 0
	}
}

func accessorTypeComponents(accessorType string) int {
	switch accessorType {
	case gltfAccessorTypeScalar:
		return 1
	case gltfAccessorTypeVec2:
		return 2
	case gltfAccessorTypeVec3:
		return 3
	case gltfAccessorTypeVec4:
		return 4
	default:
		return 0
	}
}
