package retinex

import (
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// SingleScaleRetinex returns log(I+eps) - log(blur(I, sigma)+eps) for one
// channel. The result is unbounded and not clamped.
func SingleScaleRetinex(src Plane, sigma float64) (Plane, error) {
	surround, err := GaussianBlur(src, sigma)
	if err != nil {
		return Plane{}, err
	}
	for i, v := range src.Pix {
		surround.Pix[i] = math.Log(v+Epsilon) - math.Log(surround.Pix[i]+Epsilon)
	}
	return surround, nil
}

// MultiScaleRetinex computes the weighted sum of single-scale responses for
// each channel independently. Every (channel, scale) pair runs as its own task
// writing a private plane; the planes are summed in scale order once all tasks
// finish, so the result does not depend on scheduling.
func MultiScaleRetinex(img *Image, scales []Scale) (*Image, error) {
	if err := img.check(); err != nil {
		return nil, err
	}
	if len(scales) == 0 {
		return nil, fmt.Errorf("%w: at least one scale is required", ErrInvalidParameter)
	}

	var parts [3][]Plane
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))

	for c := range parts {
		parts[c] = make([]Plane, len(scales))
		for s, scale := range scales {
			g.Go(func() error {
				ssr, err := SingleScaleRetinex(img.Plane(c), scale.Sigma)
				if err != nil {
					return fmt.Errorf("channel %d scale %d: %w", c, s, err)
				}
				parts[c][s] = ssr
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := NewImage(img.Width, img.Height)
	for c := range parts {
		dst := out.Pix[c]
		for s, scale := range scales {
			for i, v := range parts[c][s].Pix {
				dst[i] += scale.Weight * v
			}
		}
	}
	return out, nil
}
