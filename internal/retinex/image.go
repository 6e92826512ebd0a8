// Package retinex implements Multi-Scale Retinex with Color Restoration (MSRCR)
// over planar floating point images.
package retinex

import "fmt"

// Channel indices of the canonical working order.
const (
	R = iota
	G
	B
)

// Plane is a single channel of samples stored row-major.
type Plane struct {
	Width  int
	Height int
	Pix    []float64
}

// NewPlane allocates a zeroed plane.
func NewPlane(width, height int) Plane {
	return Plane{Width: width, Height: height, Pix: make([]float64, width*height)}
}

// At returns the sample at (x, y).
func (p Plane) At(x, y int) float64 { return p.Pix[y*p.Width+x] }

// Set stores v at (x, y).
func (p Plane) Set(x, y int, v float64) { p.Pix[y*p.Width+x] = v }

// Image is a three channel image in canonical R, G, B order.
// Samples are in [0,1] everywhere except inside the combination step.
type Image struct {
	Width  int
	Height int
	Pix    [3][]float64
}

// NewImage allocates a zeroed image.
func NewImage(width, height int) *Image {
	img := &Image{Width: width, Height: height}
	for c := range img.Pix {
		img.Pix[c] = make([]float64, width*height)
	}
	return img
}

// NewUniform returns an image with every sample of channel c set to v[c].
func NewUniform(width, height int, v [3]float64) *Image {
	img := NewImage(width, height)
	for c := range img.Pix {
		for i := range img.Pix[c] {
			img.Pix[c][i] = v[c]
		}
	}
	return img
}

// Plane returns channel c as a plane sharing the image's storage.
func (img *Image) Plane(c int) Plane {
	return Plane{Width: img.Width, Height: img.Height, Pix: img.Pix[c]}
}

// At returns the three samples at (x, y).
func (img *Image) At(x, y int) [3]float64 {
	i := y*img.Width + x
	return [3]float64{img.Pix[R][i], img.Pix[G][i], img.Pix[B][i]}
}

// Set stores the three samples at (x, y).
func (img *Image) Set(x, y int, v [3]float64) {
	i := y*img.Width + x
	img.Pix[R][i], img.Pix[G][i], img.Pix[B][i] = v[R], v[G], v[B]
}

// Clone returns a deep copy.
func (img *Image) Clone() *Image {
	out := &Image{Width: img.Width, Height: img.Height}
	for c := range img.Pix {
		out.Pix[c] = append([]float64(nil), img.Pix[c]...)
	}
	return out
}

// Empty reports whether the image has no pixels.
func (img *Image) Empty() bool {
	return img == nil || img.Width <= 0 || img.Height <= 0
}

func (img *Image) check() error {
	if img.Empty() {
		return ErrEmptyInput
	}
	n := img.Width * img.Height
	for c := range img.Pix {
		if len(img.Pix[c]) != n {
			return fmt.Errorf("%w: channel %d has %d samples, want %d", ErrInvalidParameter, c, len(img.Pix[c]), n)
		}
	}
	return nil
}
