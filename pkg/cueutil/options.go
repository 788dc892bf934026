// SPDX-License-Identifier: MPL-2.0

package cueutil

// DefaultMaxFileSize caps how much CUE input ParseAndDecode accepts (1MB).
// Bridge config files are a few dozen lines; anything near the cap is a
// runaway file, not a configuration.
const DefaultMaxFileSize int64 = 1 * 1024 * 1024

// Option adjusts how ParseAndDecode treats its input.
type Option func(*parseOptions)

type parseOptions struct {
	filename    string
	maxFileSize int64
	concrete    bool
}

func defaultOptions() parseOptions {
	return parseOptions{
		filename:    "",
		maxFileSize: DefaultMaxFileSize,
		concrete:    true,
	}
}

// WithFilename names the input in CUE error output, so a user can tell
// which file failed to parse.
func WithFilename(name string) Option {
	return func(o *parseOptions) {
		o.filename = name
	}
}

// WithMaxFileSize overrides the input size cap.
func WithMaxFileSize(size int64) Option {
	return func(o *parseOptions) {
		o.maxFileSize = size
	}
}

// WithConcrete controls whether every field must be concrete after
// unification. Config files leave most fields unset (defaults fill them in
// later), so they parse with WithConcrete(false).
func WithConcrete(concrete bool) Option {
	return func(o *parseOptions) {
		o.concrete = concrete
	}
}
