package sampling

import _ "embed"

// GPUSamplingSource holds the WGSL ScatterRecord struct and Lambert sampler. Shaders that
// include it must include the random stream source first.
//
//go:embed assets/sampling.wgsl
var GPUSamplingSource string
