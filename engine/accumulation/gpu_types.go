package accumulation

import (
	_ "embed"
)

// GPUAccumulateSource is the WGSL running-mean update shared by the terminate stage and the
// megakernel. It matches Buffer.Accumulate operation for operation.
//
//go:embed assets/accumulate.wgsl
var GPUAccumulateSource string
