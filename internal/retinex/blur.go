package retinex

import (
	"fmt"
	"math"
)

// KernelRadius returns the half-width of the Gaussian kernel used for sigma.
// The kernel spans four standard deviations on each side.
// Radii beyond maxKernelRadius are clamped; such kernels are always folded.
func KernelRadius(sigma float64) int {
	r := math.Round(4 * sigma)
	switch {
	case r < 1:
		return 1
	case r > maxKernelRadius:
		return maxKernelRadius
	}
	return int(r)
}

const (
	maxKernelRadius = 1 << 29
	// foldTapLimit bounds the number of taps summed one by one when folding.
	// Wider kernels use the closed form of the wrapped Gaussian.
	foldTapLimit = 1 << 22
)

// blurKernel holds convolution weights for one axis. Tap j reads the sample
// at offset j-origin.
type blurKernel struct {
	weights []float64
	origin  int
}

// axisKernel returns the kernel for an axis of n samples. A mirrored signal
// repeats every 2n samples, so a kernel wider than that is folded into 2n
// weights. The result is the same and its size is bounded by the image.
func axisKernel(sigma float64, n int) blurKernel {
	if n == 1 {
		return blurKernel{weights: []float64{1}}
	}
	radius := KernelRadius(sigma)
	period := 2 * n
	if 2*radius+1 <= period {
		return blurKernel{weights: gaussianKernel(sigma), origin: radius}
	}
	if 2*radius+1 <= foldTapLimit {
		return blurKernel{weights: foldKernel(sigma, radius, period)}
	}
	return blurKernel{weights: wrappedKernel(sigma, period)}
}

// foldKernel sums the taps of the truncated Gaussian by their offset modulo
// period.
func foldKernel(sigma float64, radius, period int) []float64 {
	w := make([]float64, period)
	denom := 2 * sigma * sigma
	for d := -radius; d <= radius; d++ {
		m := d % period
		if m < 0 {
			m += period
		}
		w[m] += math.Exp(-float64(d*d) / denom)
	}
	return normalizeKernel(w)
}

// wrappedKernel evaluates the wrapped Gaussian on period offsets through its
// Fourier series. The terms fall off as exp(-2(pi*sigma*j/period)^2), so very
// wide kernels are flat.
func wrappedKernel(sigma float64, period int) []float64 {
	w := make([]float64, period)
	p := float64(period)
	for m := range w {
		w[m] = 1
	}
	for j := 1; ; j++ {
		a := math.Pi * sigma * float64(j) / p
		coef := 2 * math.Exp(-2*a*a)
		if coef < 1e-17 {
			break
		}
		for m := range w {
			w[m] += coef * math.Cos(2*math.Pi*float64(j*m)/p)
		}
	}
	return normalizeKernel(w)
}

func normalizeKernel(k []float64) []float64 {
	var sum float64
	for _, v := range k {
		sum += v
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// gaussianKernel returns a normalised 1-D kernel of length 2*radius+1.
func gaussianKernel(sigma float64) []float64 {
	radius := KernelRadius(sigma)
	k := make([]float64, 2*radius+1)
	denom := 2 * sigma * sigma
	for i := range k {
		d := float64(i - radius)
		k[i] = math.Exp(-d * d / denom)
	}
	return normalizeKernel(k)
}

// reflectIndex mirrors i into [0, n) repeating the edge sample
// (fedcba|abcdef|fedcba). It stays defined when the kernel is wider than the
// image by folding as many times as needed.
func reflectIndex(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * n
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - 1 - i
	}
	return i
}

// GaussianBlur smooths a plane with a separable Gaussian of the given sigma
// using mirror padding, so the output keeps the input's shape.
func GaussianBlur(src Plane, sigma float64) (Plane, error) {
	if !(sigma > 0) || math.IsInf(sigma, 1) {
		return Plane{}, fmt.Errorf("%w: blur sigma must be positive, got %g", ErrInvalidParameter, sigma)
	}
	w, h := src.Width, src.Height
	if w <= 0 || h <= 0 {
		return Plane{}, ErrEmptyInput
	}

	kx := axisKernel(sigma, w)
	ky := axisKernel(sigma, h)

	tmp := NewPlane(w, h)
	dst := NewPlane(w, h)

	// Horizontal pass into tmp.
	line := make([]float64, w+len(kx.weights)-1)
	for y := 0; y < h; y++ {
		row := src.Pix[y*w : (y+1)*w]
		for i := range line {
			line[i] = row[reflectIndex(i-kx.origin, w)]
		}
		out := tmp.Pix[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			var acc float64
			for j, k := range kx.weights {
				acc += k * line[x+j]
			}
			out[x] = acc
		}
	}

	// Vertical pass from tmp into dst.
	column := make([]float64, h+len(ky.weights)-1)
	for x := 0; x < w; x++ {
		for i := range column {
			column[i] = tmp.Pix[reflectIndex(i-ky.origin, h)*w+x]
		}
		for y := 0; y < h; y++ {
			var acc float64
			for j, k := range ky.weights {
				acc += k * column[y+j]
			}
			dst.Pix[y*w+x] = acc
		}
	}

	return dst, nil
}
