package rng

import _ "embed"

// GPURandomSource holds the WGSL PCG4D functions. Streams seeded with rng_seed and advanced
// with rng_float2 produce the same values as New and Float2.
//
//go:embed assets/rng.wgsl
var GPURandomSource string
