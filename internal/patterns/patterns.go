// Package patterns generates synthetic test images for exercising the
// enhancer: gradients at both bit depths, a contrast chirp, a hard edge and a
// dim noisy scene with a colour cast.
package patterns

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/aquilax/go-perlin"
)

// ErrInvalidConfig is returned for non-positive dimensions.
var ErrInvalidConfig = errors.New("invalid pattern config")

// Config holds the dimensions and seeds shared by all generators.
type Config struct {
	Width  int   `mapstructure:"width"`
	Height int   `mapstructure:"height"`
	Seed   int64 `mapstructure:"seed"`
	// ChirpScaling controls how quickly the chirp frequency rises with x.
	ChirpScaling float64 `mapstructure:"chirp_scaling"`
}

// DefaultConfig returns the 1024x128 layout used for the gradient strips.
func DefaultConfig() Config {
	return Config{Width: 1024, Height: 128, Seed: 1, ChirpScaling: 1e-6}
}

// Validate checks the dimensions.
func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: size must be positive, got %dx%d", ErrInvalidConfig, c.Width, c.Height)
	}
	return nil
}

// Pattern is a named generated image.
type Pattern struct {
	Name  string
	Image image.Image
}

// All generates every pattern in a fixed order.
func All(cfg Config) ([]Pattern, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return []Pattern{
		{Name: "grayscale_8bit", Image: Gradient8(cfg)},
		{Name: "grayscale_16bit", Image: Gradient16(cfg)},
		{Name: "linear", Image: Linear(cfg)},
		{Name: "chirp", Image: Chirp(cfg)},
		{Name: "edge", Image: Edge(cfg)},
		{Name: "lowlight_scene", Image: LowLightScene(cfg)},
	}, nil
}

// Gradient8 is a horizontal ramp with column x set to floor(x/width*255).
func Gradient8(cfg Config) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, cfg.Width, cfg.Height))
	for x := 0; x < cfg.Width; x++ {
		v := uint8(float64(x) / float64(cfg.Width) * 255)
		for y := 0; y < cfg.Height; y++ {
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

// Gradient16 is the 16-bit counterpart of Gradient8.
func Gradient16(cfg Config) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, cfg.Width, cfg.Height))
	for x := 0; x < cfg.Width; x++ {
		v := uint16(float64(x) / float64(cfg.Width) * 65535)
		for y := 0; y < cfg.Height; y++ {
			img.SetGray16(x, y, color.Gray16{Y: v})
		}
	}
	return img
}

// Linear is a ramp whose first column is 0 and last column is 255.
func Linear(cfg Config) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, cfg.Width, cfg.Height))
	for x := 0; x < cfg.Width; x++ {
		var t float64
		if cfg.Width > 1 {
			t = float64(x) / float64(cfg.Width-1)
		}
		v := uint8(math.Round(t * 255))
		for y := 0; y < cfg.Height; y++ {
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

// Chirp renders amp(y) * (1 - sin(k * X^3)) with X running over [0, width/2].
// Amplitude falls from the bottom row to the top; frequency rises with x.
// The result is scaled so its maximum is white.
func Chirp(cfg Config) *image.Gray16 {
	w, h := cfg.Width, cfg.Height
	z := make([]float64, w*h)
	maxZ := 0.0
	for y := 0; y < h; y++ {
		// Row 0 is the top, where the distance from the bottom is h-1.
		amp := 1 / (float64(h-1-y)/50 + 1)
		for x := 0; x < w; x++ {
			var X float64
			if w > 1 {
				X = float64(x) * (float64(w) / 2) / float64(w-1)
			}
			v := amp * (1 - math.Sin(cfg.ChirpScaling*X*X*X))
			z[y*w+x] = v
			maxZ = math.Max(maxZ, v)
		}
	}

	img := image.NewGray16(image.Rect(0, 0, w, h))
	if maxZ == 0 {
		return img
	}
	for i, v := range z {
		img.SetGray16(i%w, i/w, color.Gray16{Y: uint16(v/maxZ*65535 + 0.5)})
	}
	return img
}

// Edge is black on the left half and white on the right half.
func Edge(cfg Config) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, cfg.Width, cfg.Height))
	for y := 0; y < cfg.Height; y++ {
		for x := cfg.Width / 2; x < cfg.Width; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	return img
}

// LowLightScene is a dim Perlin-textured image with a warm colour cast,
// a stand-in for an underexposed photo under tungsten light.
func LowLightScene(cfg Config) *image.NRGBA {
	scale := math.Max(float64(cfg.Width), float64(cfg.Height)) / 6
	noise := perlinField(cfg.Width, cfg.Height, scale, cfg.Seed)
	detail := perlinField(cfg.Width, cfg.Height, scale/8, cfg.Seed+1)

	cast := [3]float64{1.0, 0.78, 0.52}
	img := image.NewNRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	for i := range noise {
		lum := 0.02 + 0.16*noise[i] + 0.04*detail[i]
		img.SetNRGBA(i%cfg.Width, i/cfg.Width, color.NRGBA{
			R: toByte(lum * cast[0]),
			G: toByte(lum * cast[1]),
			B: toByte(lum * cast[2]),
			A: 255,
		})
	}
	return img
}

// perlinField samples 2D Perlin noise mapped to [0,1].
// scale controls the feature size (smaller = more detail).
func perlinField(width, height int, scale float64, seed int64) []float64 {
	// alpha 2 (persistence), beta 2 (lacunarity), 3 octaves
	p := perlin.NewPerlin(2.0, 2.0, 3, seed)

	field := make([]float64, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			val := p.Noise2D(float64(x)/scale, float64(y)/scale)
			field[y*width+x] = math.Max(0, math.Min(1, (val+1)/2))
		}
	}
	return field
}

func toByte(v float64) uint8 {
	return uint8(math.Max(0, math.Min(255, v*255+0.5)))
}
