package retinex

import (
	"fmt"
	"math"
)

// ApplyGamma clamps to [0,1] and raises every sample to 1/gamma, so gamma
// above one lifts midtones and gamma below one deepens them. A gamma of exactly
// one returns an unchanged copy.
func ApplyGamma(img *Image, gamma float64) (*Image, error) {
	if err := img.check(); err != nil {
		return nil, err
	}
	if !(gamma > 0) || math.IsInf(gamma, 0) {
		return nil, fmt.Errorf("%w: gamma must be positive, got %g", ErrInvalidParameter, gamma)
	}

	out := img.Clone()
	if gamma == 1.0 {
		return out, nil
	}
	exp := 1 / gamma
	forEachChannel(func(c int) {
		pix := out.Pix[c]
		for i, v := range pix {
			pix[i] = math.Pow(clamp01(v), exp)
		}
	})
	return out, nil
}
