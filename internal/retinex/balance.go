package retinex

import (
	"fmt"
	"math"
	"sort"
)

// ColorBalance clips the low and high tails of each channel and stretches the
// remainder to [0,1]. low and high are fractions of the pixel count (0.01 is
// 1%). A channel whose percentile range is below MinRange is passed through.
func ColorBalance(img *Image, low, high float64) (*Image, error) {
	if err := img.check(); err != nil {
		return nil, err
	}
	if !validClip(low) || !validClip(high) {
		return nil, fmt.Errorf("%w: clip fractions must be within [0, 0.5), got %g and %g", ErrInvalidParameter, low, high)
	}

	out := img.Clone()
	forEachChannel(func(c int) {
		balancePlane(out.Pix[c], low, high)
	})
	return out, nil
}

func balancePlane(pix []float64, low, high float64) {
	sorted := append([]float64(nil), pix...)
	sort.Float64s(sorted)
	lo := percentile(sorted, low)
	hi := percentile(sorted, 1-high)
	if hi-lo < MinRange {
		return
	}
	span := hi - lo
	for i, v := range pix {
		pix[i] = clamp01((v - lo) / span)
	}
}

// percentile interpolates linearly between the closest ranks of sorted at
// position (n-1)*p, so p=0 and p=1 hit the extremes exactly.
func percentile(sorted []float64, p float64) float64 {
	pos := float64(len(sorted)-1) * p
	i := int(math.Floor(pos))
	if i >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	f := pos - float64(i)
	return sorted[i]*(1-f) + sorted[i+1]*f
}

func clamp01(v float64) float64 {
	if !(v > 0) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
