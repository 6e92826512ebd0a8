// Package touchup provides the optional final touch applied after MSRCR:
// a light denoise and contrast limited adaptive histogram equalisation (CLAHE),
// both on the lightness channel of CIE L*a*b* so colour is left alone.
package touchup

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/gift"
	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/MeKo-Tech/msrcr/internal/retinex"
)

// FinalTouch implements retinex.Stage.
type FinalTouch struct {
	// DenoiseSize is the median filter size on L. Zero disables denoising.
	DenoiseSize int `mapstructure:"denoise_size" json:"denoise_size"`
	// ClipLimit bounds each histogram bin at ClipLimit times the mean bin height.
	ClipLimit float64 `mapstructure:"clip_limit" json:"clip_limit"`
	// TileGrid is the number of tiles per axis.
	TileGrid int `mapstructure:"tile_grid" json:"tile_grid"`
}

// DefaultFinalTouch returns the gentle defaults: 3x3 median, clip 2.0, 8x8 tiles.
func DefaultFinalTouch() FinalTouch {
	return FinalTouch{DenoiseSize: 3, ClipLimit: 2.0, TileGrid: 8}
}

// Validate checks the settings.
func (f FinalTouch) Validate() error {
	if f.DenoiseSize < 0 {
		return fmt.Errorf("%w: denoise size must not be negative, got %d", retinex.ErrInvalidParameter, f.DenoiseSize)
	}
	if !(f.ClipLimit > 0) {
		return fmt.Errorf("%w: clip limit must be positive, got %g", retinex.ErrInvalidParameter, f.ClipLimit)
	}
	if f.TileGrid < 1 {
		return fmt.Errorf("%w: tile grid must be at least 1, got %d", retinex.ErrInvalidParameter, f.TileGrid)
	}
	return nil
}

// Apply returns a touched-up copy of img.
func (f FinalTouch) Apply(img *retinex.Image) (*retinex.Image, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if img.Empty() {
		return nil, retinex.ErrEmptyInput
	}

	n := img.Width * img.Height
	l := make([]float64, n)
	a := make([]float64, n)
	b := make([]float64, n)
	for i := 0; i < n; i++ {
		c := colorful.Color{R: img.Pix[retinex.R][i], G: img.Pix[retinex.G][i], B: img.Pix[retinex.B][i]}
		l[i], a[i], b[i] = c.Lab()
	}

	if f.DenoiseSize > 1 {
		l = median(l, img.Width, img.Height, f.DenoiseSize)
	}
	l = clahe(l, img.Width, img.Height, f.ClipLimit, f.TileGrid)

	out := retinex.NewImage(img.Width, img.Height)
	for i := 0; i < n; i++ {
		c := colorful.Lab(l[i], a[i], b[i]).Clamped()
		out.Pix[retinex.R][i] = c.R
		out.Pix[retinex.G][i] = c.G
		out.Pix[retinex.B][i] = c.B
	}
	return out, nil
}

// median filters a lightness plane in [0,1] through a 16-bit gray image.
func median(l []float64, w, h, size int) []float64 {
	src := image.NewGray16(image.Rect(0, 0, w, h))
	for i, v := range l {
		src.SetGray16(i%w, i/w, color.Gray16{Y: toUnit16(v)})
	}

	g := gift.New(gift.Median(size, false))
	dst := image.NewGray16(g.Bounds(src.Bounds()))
	g.Draw(dst, src)

	out := make([]float64, len(l))
	for i := range out {
		out[i] = float64(dst.Gray16At(i%w, i/w).Y) / 65535
	}
	return out
}

func toUnit16(v float64) uint16 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 65535
	default:
		return uint16(v*65535 + 0.5)
	}
}
