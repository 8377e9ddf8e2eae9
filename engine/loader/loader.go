// Package loader imports static meshes from model files into path tracer scenes. Node
// transforms are baked into world space positions and normals, and each material's base
// color becomes a Lambertian albedo.
package loader

import (
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-wavefront/common"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/geometry"
)

// LoaderBackendType identifies the model file format backend to use.
type LoaderBackendType int

const (
	// BackendTypeGLTF selects the glTF/GLB loader backend.
	BackendTypeGLTF LoaderBackendType = iota
)

// DefaultAlbedo is used for primitives without a material unless overridden.
var DefaultAlbedo = common.Vec3{0.73, 0.73, 0.73}

type loader struct {
	mu sync.RWMutex

	sceneCache map[string]geometry.Scene
	settings   importSettings
	backend    loaderBackend
}

// Loader imports and caches triangle scenes. The file format is abstracted behind a
// backend selected at construction.
type Loader interface {
	// Load imports a model file and caches the result by path. A cached scene is returned
	// without touching the file system.
	//
	// Parameters:
	//   - path: the file path to the model file (.gltf or .glb)
	//
	// Returns:
	//   - geometry.Scene: the imported scene; callers must not modify its slices
	//   - error: error if the format is unsupported or loading fails
	Load(path string) (geometry.Scene, error)

	// LoadReader imports a model from a stream and caches it by name.
	//
	// Parameters:
	//   - name: the cache key for the loaded scene
	//   - r: the reader providing model data
	//   - isGLB: true if the reader provides GLB binary data
	//
	// Returns:
	//   - geometry.Scene: the imported scene
	//   - error: error if loading fails
	LoadReader(name string, r io.Reader, isGLB bool) (geometry.Scene, error)

	// Get retrieves a cached scene by name.
	//
	// Parameters:
	//   - name: the cache key to look up
	//
	// Returns:
	//   - geometry.Scene: the cached scene
	//   - bool: true if the scene was cached
	Get(name string) (geometry.Scene, bool)

	// Scenes returns a copy of the scene cache keyed by name.
	//
	// Returns:
	//   - map[string]geometry.Scene: all cached scenes
	Scenes() map[string]geometry.Scene
}

var _ Loader = &loader{}

// NewLoader creates a new Loader instance with the specified backend type and options applied.
//
// Parameters:
//   - backendType: the type of loader backend to use (e.g., BackendTypeGLTF)
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: a new instance of Loader configured with the provided backend and options
func NewLoader(backendType LoaderBackendType, options ...LoaderBuilderOption) Loader {
	l := &loader{
		sceneCache: make(map[string]geometry.Scene),
		settings:   importSettings{defaultAlbedo: DefaultAlbedo},
	}
	common.Identity(l.settings.transform[:])

	for _, option := range options {
		option(l)
	}

	switch backendType {
	case BackendTypeGLTF:
		l.backend = newGLTFLoaderBackend(&l.settings)
	}
	return l
}

func (l *loader) Load(path string) (geometry.Scene, error) {
	if cached, ok := l.Get(path); ok {
		return cached, nil
	}

	backend, err := l.resolveBackend(path)
	if err != nil {
		return geometry.Scene{}, err
	}

	scene, err := backend.Load(path)
	if err != nil {
		return geometry.Scene{}, fmt.Errorf("failed to load %s: %w", path, err)
	}
	l.store(path, scene)
	return scene, nil
}

func (l *loader) LoadReader(name string, r io.Reader, isGLB bool) (geometry.Scene, error) {
	if cached, ok := l.Get(name); ok {
		return cached, nil
	}
	if l.backend == nil {
		return geometry.Scene{}, fmt.Errorf("loader has no backend")
	}

	scene, err := l.backend.LoadReader(r, isGLB)
	if err != nil {
		return geometry.Scene{}, fmt.Errorf("failed to load from reader %q: %w", name, err)
	}
	l.store(name, scene)
	return scene, nil
}

func (l *loader) Get(name string) (geometry.Scene, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	scene, ok := l.sceneCache[name]
	return scene, ok
}

func (l *loader) Scenes() map[string]geometry.Scene {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return maps.Clone(l.sceneCache)
}

func (l *loader) store(name string, scene geometry.Scene) {
	l.mu.Lock()
	l.sceneCache[name] = scene
	l.mu.Unlock()

	common.Logger().Info("scene loaded", "name", name, "triangles", len(scene.Triangles), "materials", len(scene.Materials))
}

// resolveBackend checks the file extension against the configured backend.
func (l *loader) resolveBackend(path string) (loaderBackend, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".gltf", ".glb":
		if l.backend != nil {
			return l.backend, nil
		}
	}
	return nil, fmt.Errorf("unsupported model format: %s", ext)
}
