package retinex

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Combine returns gain*(msr*restoration) + offset element-wise. The result is
// in the unnormalised domain and must go through NormalizeChannels.
func Combine(msr, restoration *Image, gain, offset float64) (*Image, error) {
	if err := msr.check(); err != nil {
		return nil, err
	}
	if err := restoration.check(); err != nil {
		return nil, err
	}
	if msr.Width != restoration.Width || msr.Height != restoration.Height {
		return nil, fmt.Errorf("%w: retinex is %dx%d but restoration is %dx%d",
			ErrInvalidParameter, msr.Width, msr.Height, restoration.Width, restoration.Height)
	}

	out := NewImage(msr.Width, msr.Height)
	forEachChannel(func(c int) {
		dst := out.Pix[c]
		floats.MulTo(dst, msr.Pix[c], restoration.Pix[c])
		floats.Scale(gain, dst)
		floats.AddConst(offset, dst)
	})
	return out, nil
}

// NormalizeChannels rescales each channel independently to [0,1]: the
// channel minimum is subtracted, then the result is divided by its maximum.
// A channel whose range is below MinRange keeps a denominator of one and so
// stays effectively constant.
func NormalizeChannels(img *Image) *Image {
	out := img.Clone()
	forEachChannel(func(c int) {
		normalizePlane(out.Pix[c])
	})
	return out
}

func normalizePlane(pix []float64) {
	if len(pix) == 0 {
		return
	}
	floats.AddConst(-floats.Min(pix), pix)
	denom := floats.Max(pix)
	if denom < MinRange {
		denom = 1
	}
	// Divide rather than scale by 1/denom so the maximum lands on exactly 1.
	for i := range pix {
		pix[i] /= denom
	}
}
