package retinex

import (
	"fmt"
	"image"
	"image/color"
)

// Depth is the fixed-point precision of a boundary buffer.
type Depth int

const (
	Depth8  Depth = 8
	Depth16 Depth = 16
)

func (d Depth) maxValue() float64 {
	if d == Depth16 {
		return 65535
	}
	return 255
}

// ChannelOrder describes how an interleaved boundary buffer lays out its
// channels. The working representation is always R, G, B; buffers in another
// order are converted on the way in and on the way out.
type ChannelOrder int

const (
	OrderRGB ChannelOrder = iota
	OrderBGR
)

func (o ChannelOrder) String() string {
	if o == OrderBGR {
		return "BGR"
	}
	return "RGB"
}

// offset returns where canonical channel c sits inside one interleaved pixel.
func (o ChannelOrder) offset(c int) int {
	if o == OrderBGR {
		return 2 - c
	}
	return c
}

// DepthOf reports the precision of a decoded Go image. 16-bit models keep
// 16-bit output; everything else is treated as 8-bit.
func DepthOf(src image.Image) Depth {
	switch src.(type) {
	case *image.RGBA64, *image.NRGBA64, *image.Gray16:
		return Depth16
	default:
		return Depth8
	}
}

// FromImage converts a decoded image to the canonical float representation.
// Alpha is discarded; samples are un-premultiplied first.
func FromImage(src image.Image) (*Image, Depth, error) {
	b := src.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, 0, ErrEmptyInput
	}
	depth := DepthOf(src)
	img := NewImage(b.Dx(), b.Dy())

	switch s := src.(type) {
	case *image.NRGBA:
		for y := 0; y < img.Height; y++ {
			row := s.Pix[s.PixOffset(b.Min.X, b.Min.Y+y):]
			for x := 0; x < img.Width; x++ {
				i := y*img.Width + x
				img.Pix[R][i] = float64(row[4*x]) / 255
				img.Pix[G][i] = float64(row[4*x+1]) / 255
				img.Pix[B][i] = float64(row[4*x+2]) / 255
			}
		}
	default:
		for y := 0; y < img.Height; y++ {
			for x := 0; x < img.Width; x++ {
				c := color.NRGBA64Model.Convert(src.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA64)
				i := y*img.Width + x
				img.Pix[R][i] = float64(c.R) / 65535
				img.Pix[G][i] = float64(c.G) / 65535
				img.Pix[B][i] = float64(c.B) / 65535
			}
		}
	}
	return img, depth, nil
}

// ToImage quantises the image to an opaque NRGBA (8-bit) or NRGBA64 (16-bit)
// image. Samples are clamped to [0,1] and rounded half up.
func ToImage(img *Image, depth Depth) image.Image {
	rect := image.Rect(0, 0, img.Width, img.Height)
	if depth == Depth16 {
		dst := image.NewNRGBA64(rect)
		for y := 0; y < img.Height; y++ {
			for x := 0; x < img.Width; x++ {
				v := img.At(x, y)
				dst.SetNRGBA64(x, y, color.NRGBA64{
					R: quantize16(v[R]),
					G: quantize16(v[G]),
					B: quantize16(v[B]),
					A: 0xffff,
				})
			}
		}
		return dst
	}

	dst := image.NewNRGBA(rect)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			v := img.At(x, y)
			dst.SetNRGBA(x, y, color.NRGBA{
				R: quantize8(v[R]),
				G: quantize8(v[G]),
				B: quantize8(v[B]),
				A: 0xff,
			})
		}
	}
	return dst
}

// FromInterleaved8 converts a packed 8-bit buffer in the given order.
func FromInterleaved8(pix []uint8, width, height int, order ChannelOrder) (*Image, error) {
	if err := checkInterleaved(len(pix), width, height); err != nil {
		return nil, err
	}
	img := NewImage(width, height)
	for i := 0; i < width*height; i++ {
		for c := 0; c < 3; c++ {
			img.Pix[c][i] = float64(pix[3*i+order.offset(c)]) / 255
		}
	}
	return img, nil
}

// FromInterleaved16 converts a packed 16-bit buffer in the given order.
func FromInterleaved16(pix []uint16, width, height int, order ChannelOrder) (*Image, error) {
	if err := checkInterleaved(len(pix), width, height); err != nil {
		return nil, err
	}
	img := NewImage(width, height)
	for i := 0; i < width*height; i++ {
		for c := 0; c < 3; c++ {
			img.Pix[c][i] = float64(pix[3*i+order.offset(c)]) / 65535
		}
	}
	return img, nil
}

// Interleaved8 packs the image into an 8-bit buffer in the given order.
func (img *Image) Interleaved8(order ChannelOrder) []uint8 {
	out := make([]uint8, 3*img.Width*img.Height)
	for i := 0; i < img.Width*img.Height; i++ {
		for c := 0; c < 3; c++ {
			out[3*i+order.offset(c)] = quantize8(img.Pix[c][i])
		}
	}
	return out
}

// Interleaved16 packs the image into a 16-bit buffer in the given order.
func (img *Image) Interleaved16(order ChannelOrder) []uint16 {
	out := make([]uint16, 3*img.Width*img.Height)
	for i := 0; i < img.Width*img.Height; i++ {
		for c := 0; c < 3; c++ {
			out[3*i+order.offset(c)] = quantize16(img.Pix[c][i])
		}
	}
	return out
}

func checkInterleaved(n, width, height int) error {
	if width <= 0 || height <= 0 {
		return ErrEmptyInput
	}
	if n != 3*width*height {
		return fmt.Errorf("%w: buffer has %d samples, want %d for %dx%d", ErrInvalidParameter, n, 3*width*height, width, height)
	}
	return nil
}

func quantize8(v float64) uint8 {
	return uint8(clamp01(v)*255 + 0.5)
}

func quantize16(v float64) uint16 {
	return uint16(clamp01(v)*65535 + 0.5)
}
