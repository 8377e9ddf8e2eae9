package snapshot

type options struct {
	format   *Format
	exposure float32
	scale    float32
}

// Option configures WriteFile.
type Option func(*options)

// WithFormat forces the output format regardless of the file extension.
func WithFormat(f Format) Option {
	return func(o *options) {
		o.format = &f
	}
}

// WithExposure sets the linear exposure applied before tonemapping.
func WithExposure(exposure float32) Option {
	return func(o *options) {
		if exposure > 0 {
			o.exposure = exposure
		}
	}
}

// WithScale resamples the image by factor before encoding.
func WithScale(factor float32) Option {
	return func(o *options) {
		o.scale = factor
	}
}
