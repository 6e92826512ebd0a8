package retinex

import "errors"

var (
	// ErrInvalidParameter reports malformed sigmas, weights, constants or clip
	// percentages. It is returned before any computation starts.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrEmptyInput reports an image with zero width or height.
	ErrEmptyInput = errors.New("empty input image")
)

// Thresholds of the numeric degeneracy policy. A channel whose range falls
// below these values is passed through or given a unit denominator instead of
// producing NaN or Inf.
const (
	// Epsilon guards every logarithm against log(0). It sits below the smallest
	// 16-bit step (1/65535) so it never biases a real sample.
	Epsilon = 1e-6

	// MinRange is the smallest channel range that is still rescaled.
	MinRange = 1e-6
)
