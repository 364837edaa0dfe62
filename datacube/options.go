package datacube

import "go.uber.org/zap"

// Option configures graph construction and stratification.
type Option func(*options)

type options struct {
	log *zap.Logger
}

func defaultOptions() *options {
	return &options{log: zap.NewNop()}
}

// WithLogger attaches a logger to the operation. The default discards
// everything.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

func applyOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}
