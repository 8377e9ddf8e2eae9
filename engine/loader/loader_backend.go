package loader

import (
	"io"

	"github.com/Carmen-Shannon/oxy-wavefront/common"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/geometry"
)

// loaderBackend imports a scene file format into a world space triangle scene.
type loaderBackend interface {
	// Load imports the file at path.
	//
	// Parameters:
	//   - path: the file path to load
	//
	// Returns:
	//   - geometry.Scene: the flattened scene
	//   - error: error if the file cannot be read or is malformed
	Load(path string) (geometry.Scene, error)

	// LoadReader imports a scene from a stream.
	//
	// Parameters:
	//   - r: the reader providing the file contents
	//   - isGLB: true if the reader provides binary container data
	//
	// Returns:
	//   - geometry.Scene: the flattened scene
	//   - error: error if the data is malformed
	LoadReader(r io.Reader, isGLB bool) (geometry.Scene, error)
}

// importSettings are applied by every backend to the scenes it produces.
type importSettings struct {
	transform     [16]float32
	defaultAlbedo common.Vec3
}
