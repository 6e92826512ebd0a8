package retinex

import (
	"fmt"
	"math"
)

// ColorRestoration computes beta * (log(alpha*I_c + eps) - log(sum_c I_c + eps))
// per pixel and channel on the pre-Retinex image. Chromatic pixels get a large
// term; neutral pixels get the same term on every channel.
func ColorRestoration(img *Image, alpha, beta float64) (*Image, error) {
	if err := img.check(); err != nil {
		return nil, err
	}
	if !(alpha > 0) || !(beta > 0) {
		return nil, fmt.Errorf("%w: alpha and beta must be positive, got %g and %g", ErrInvalidParameter, alpha, beta)
	}

	out := NewImage(img.Width, img.Height)
	r, g, b := img.Pix[R], img.Pix[G], img.Pix[B]
	for i := range r {
		logSum := math.Log(r[i] + g[i] + b[i] + Epsilon)
		out.Pix[R][i] = beta * (math.Log(alpha*r[i]+Epsilon) - logSum)
		out.Pix[G][i] = beta * (math.Log(alpha*g[i]+Epsilon) - logSum)
		out.Pix[B][i] = beta * (math.Log(alpha*b[i]+Epsilon) - logSum)
	}
	return out, nil
}
