package loader

import (
	"github.com/Carmen-Shannon/oxy-wavefront/common"
	"github.com/Carmen-Shannon/oxy-wavefront/engine/geometry"
)

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithScene is an option builder that pre-populates the scene cache.
//
// Parameters:
//   - key: the cache key for the scene
//   - scene: the scene to cache
//
// Returns:
//   - LoaderBuilderOption: a function that applies the scene option to a loader
func WithScene(key string, scene geometry.Scene) LoaderBuilderOption {
	return func(l *loader) {
		l.sceneCache[key] = scene
	}
}

// WithTransform is an option builder that sets a column-major matrix applied on top of
// every imported node transform, for example to place a model inside a room.
//
// Parameters:
//   - m: the root transform
//
// Returns:
//   - LoaderBuilderOption: a function that applies the transform option to a loader
func WithTransform(m [16]float32) LoaderBuilderOption {
	return func(l *loader) {
		l.settings.transform = m
	}
}

// WithDefaultAlbedo sets the albedo of primitives that reference no material.
func WithDefaultAlbedo(albedo common.Vec3) LoaderBuilderOption {
	return func(l *loader) {
		l.settings.defaultAlbedo = albedo
	}
}
