package codec

import (
	"image"
	"io"

	"github.com/disintegration/gift"
	"github.com/rwcarlsen/goexif/exif"
)

// Orientation is the EXIF orientation tag value (1..8).
type Orientation int

const (
	OrientNormal     Orientation = 1
	OrientFlipH      Orientation = 2
	OrientRotate180  Orientation = 3
	OrientFlipV      Orientation = 4
	OrientTranspose  Orientation = 5
	OrientRotate90CW Orientation = 6
	OrientTransverse Orientation = 7
	OrientRotate270  Orientation = 8
)

// ReadOrientation returns the EXIF orientation of r, or OrientNormal when the
// data carries no usable tag.
func ReadOrientation(r io.Reader) Orientation {
	x, err := exif.Decode(r)
	if err != nil {
		return OrientNormal
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return OrientNormal
	}
	v, err := tag.Int(0)
	if err != nil || v < 1 || v > 8 {
		return OrientNormal
	}
	return Orientation(v)
}

// filter returns the transform that makes an image with this orientation
// upright, or nil for OrientNormal.
func (o Orientation) filter() gift.Filter {
	switch o {
	case OrientFlipH:
		return gift.FlipHorizontal()
	case OrientRotate180:
		return gift.Rotate180()
	case OrientFlipV:
		return gift.FlipVertical()
	case OrientTranspose:
		return gift.Transpose()
	case OrientRotate90CW:
		return gift.Rotate270()
	case OrientTransverse:
		return gift.Transverse()
	case OrientRotate270:
		return gift.Rotate90()
	default:
		return nil
	}
}

// Orient applies the orientation transform to img. 16-bit sources stay 16-bit.
func Orient(img image.Image, o Orientation) image.Image {
	f := o.filter()
	if f == nil {
		return img
	}
	g := gift.New(f)
	bounds := g.Bounds(img.Bounds())

	switch img.(type) {
	case *image.RGBA64, *image.NRGBA64, *image.Gray16:
		dst := image.NewNRGBA64(bounds)
		g.Draw(dst, img)
		return dst
	default:
		dst := image.NewNRGBA(bounds)
		g.Draw(dst, img)
		return dst
	}
}
