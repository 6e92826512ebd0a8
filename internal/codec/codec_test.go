package codec

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage8(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 20), G: uint8(y * 30), B: 77, A: 255})
		}
	}
	return img
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path    string
		want    Format
		wantErr bool
	}{
		{path: "out.png", want: FormatPNG},
		{path: "out.PNG", want: FormatPNG},
		{path: "dir/photo.jpg", want: FormatJPEG},
		{path: "photo.jpeg", want: FormatJPEG},
		{path: "scan.tif", want: FormatTIFF},
		{path: "scan.tiff", want: FormatTIFF},
		{path: "old.bmp", want: FormatBMP},
		{path: "anim.gif", wantErr: true},
		{path: "noext", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := FormatFromPath(tt.path)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeDecode_LosslessRoundTrips(t *testing.T) {
	src := testImage8(6, 4)
	dir := t.TempDir()

	for _, name := range []string{"a.png", "b.bmp", "nested/c.tiff"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, Encode(path, src, Options{}))

			got, _, err := Decode(path)
			require.NoError(t, err)
			require.Equal(t, src.Bounds(), got.Bounds())
			for y := 0; y < 4; y++ {
				for x := 0; x < 6; x++ {
					want := src.NRGBAAt(x, y)
					r, g, b, _ := got.At(x, y).RGBA()
					assert.Equal(t, uint32(want.R), r>>8)
					assert.Equal(t, uint32(want.G), g>>8)
					assert.Equal(t, uint32(want.B), b>>8)
				}
			}
		})
	}
}

func TestEncodeDecode_16BitPNGStays16Bit(t *testing.T) {
	src := image.NewNRGBA64(image.Rect(0, 0, 3, 3))
	src.SetNRGBA64(1, 1, color.NRGBA64{R: 1234, G: 40000, B: 65535, A: 0xffff})

	var buf bytes.Buffer
	require.NoError(t, EncodeTo(&buf, FormatPNG, src, Options{}))

	got, format, err := DecodeReader(&buf)
	require.NoError(t, err)
	assert.Equal(t, "png", format)

	r, g, b, _ := got.At(1, 1).RGBA()
	assert.Equal(t, uint32(1234), r)
	assert.Equal(t, uint32(40000), g)
	assert.Equal(t, uint32(65535), b)
}

func TestEncode_JPEG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.jpg")
	require.NoError(t, Encode(path, testImage8(16, 16), Options{JPEGQuality: 80}))

	got, format, err := Decode(path)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, image.Rect(0, 0, 16, 16), got.Bounds())
}

func TestEncode_UnsupportedExtension(t *testing.T) {
	err := Encode(filepath.Join(t.TempDir(), "out.gif"), testImage8(2, 2), Options{})
	require.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestDecode_MissingAndGarbage(t *testing.T) {
	_, _, err := Decode(filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)

	_, _, err = DecodeReader(bytes.NewReader([]byte("not an image")))
	require.Error(t, err)
}

func TestReadOrientation_NoExif(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, EncodeTo(&buf, FormatJPEG, testImage8(4, 4), Options{}))
	assert.Equal(t, OrientNormal, ReadOrientation(&buf))
}

func TestOrient(t *testing.T) {
	// 3x2 image with a single marker at the top-left corner.
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	src.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})

	tests := []struct {
		name   string
		o      Orientation
		w, h   int
		marker image.Point
	}{
		{name: "normal", o: OrientNormal, w: 3, h: 2, marker: image.Pt(0, 0)},
		{name: "flip horizontal", o: OrientFlipH, w: 3, h: 2, marker: image.Pt(2, 0)},
		{name: "rotate 180", o: OrientRotate180, w: 3, h: 2, marker: image.Pt(2, 1)},
		{name: "flip vertical", o: OrientFlipV, w: 3, h: 2, marker: image.Pt(0, 1)},
		{name: "transpose", o: OrientTranspose, w: 2, h: 3, marker: image.Pt(0, 0)},
		{name: "rotate 90 cw", o: OrientRotate90CW, w: 2, h: 3, marker: image.Pt(1, 0)},
		{name: "transverse", o: OrientTransverse, w: 2, h: 3, marker: image.Pt(1, 2)},
		{name: "rotate 90 ccw", o: OrientRotate270, w: 2, h: 3, marker: image.Pt(0, 2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Orient(src, tt.o)
			b := got.Bounds()
			require.Equal(t, tt.w, b.Dx())
			require.Equal(t, tt.h, b.Dy())

			r, _, _, _ := got.At(b.Min.X+tt.marker.X, b.Min.Y+tt.marker.Y).RGBA()
			assert.Equal(t, uint32(0xffff), r)
		})
	}
}

func TestOrient_Keeps16Bit(t *testing.T) {
	src := image.NewNRGBA64(image.Rect(0, 0, 2, 2))
	got := Orient(src, OrientRotate180)
	assert.IsType(t, &image.NRGBA64{}, got)
}

func TestDownscale(t *testing.T) {
	src := testImage8(40, 20)

	assert.Same(t, src, Downscale(src, 0))
	assert.Same(t, src, Downscale(src, 40))
	assert.Same(t, src, Downscale(src, 100))

	small := Downscale(src, 10)
	assert.Equal(t, 10, small.Bounds().Dx())
	assert.Equal(t, 5, small.Bounds().Dy())
}
