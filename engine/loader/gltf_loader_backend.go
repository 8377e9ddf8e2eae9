package loader

import (
	"io"

	"github.com/Carmen-Shannon/oxy-wavefront/engine/geometry"
)

// gltfLoaderBackend imports glTF 2.0 and GLB files. Each call uses a fresh parser, so the
// backend is safe for concurrent use.
type gltfLoaderBackend struct {
	settings *importSettings
}

var _ loaderBackend = &gltfLoaderBackend{}

func newGLTFLoaderBackend(settings *importSettings) *gltfLoaderBackend {
	return &gltfLoaderBackend{settings: settings}
}

func (b *gltfLoaderBackend) Load(path string) (geometry.Scene, error) {
	parser := newGLTFParser()
	if err := parser.Parse(path); err != nil {
		return geometry.Scene{}, err
	}
	return b.extract(parser)
}

func (b *gltfLoaderBackend) LoadReader(r io.Reader, isGLB bool) (geometry.Scene, error) {
	parser := newGLTFParser()
	if err := parser.ParseReader(r, isGLB); err != nil {
		return geometry.Scene{}, err
	}
	return b.extract(parser)
}

func (b *gltfLoaderBackend) extract(parser *gltfParser) (geometry.Scene, error) {
	return newGLTFSceneExtractor(parser, b.settings.transform, b.settings.defaultAlbedo).Extract()
}
