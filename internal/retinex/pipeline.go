package retinex

import (
	"fmt"
	"image"
	"log/slog"
	"time"
)

// Stage is an independent step run on the finished MSRCR result, such as a
// denoise or local contrast touch-up. The core has no dependency on any
// concrete stage.
type Stage interface {
	Apply(img *Image) (*Image, error)
}

// StageFunc adapts a function to the Stage interface.
type StageFunc func(img *Image) (*Image, error)

// Apply calls f(img).
func (f StageFunc) Apply(img *Image) (*Image, error) { return f(img) }

// Pipeline runs MSRCR in its fixed order:
// retinex, restoration, combine+normalise, optional balance, optional gamma,
// then any Finish stages.
type Pipeline struct {
	Params Params
	Finish []Stage
	Logger *slog.Logger
}

// Enhance runs the MSRCR pipeline with the given parameters.
func Enhance(img *Image, params Params) (*Image, error) {
	p := Pipeline{Params: params}
	return p.Run(img)
}

// EnhanceImage converts a decoded image, enhances it, and converts it back at
// the source's bit depth.
func EnhanceImage(src image.Image, params Params, finish ...Stage) (image.Image, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	img, depth, err := FromImage(src)
	if err != nil {
		return nil, err
	}
	p := Pipeline{Params: params, Finish: finish}
	out, err := p.Run(img)
	if err != nil {
		return nil, err
	}
	return ToImage(out, depth), nil
}

// Run validates the parameters and the input, then produces a new image.
// The input is not modified. On error no output is returned.
func (p *Pipeline) Run(src *Image) (*Image, error) {
	if err := p.Params.Validate(); err != nil {
		return nil, err
	}
	if err := src.check(); err != nil {
		return nil, err
	}

	start := time.Now()
	img := canonical(src)

	msr, err := MultiScaleRetinex(img, p.Params.normalizedScales())
	if err != nil {
		return nil, fmt.Errorf("multi-scale retinex: %w", err)
	}
	p.log().Debug("Retinex computed", "sigmas", p.Params.Sigmas(), "elapsed", time.Since(start))

	restoration, err := ColorRestoration(img, p.Params.Alpha, p.Params.Beta)
	if err != nil {
		return nil, fmt.Errorf("color restoration: %w", err)
	}

	combined, err := Combine(msr, restoration, p.Params.Gain, p.Params.Offset)
	if err != nil {
		return nil, fmt.Errorf("combine: %w", err)
	}
	out := NormalizeChannels(combined)

	if p.Params.ColorBalance {
		out, err = ColorBalance(out, p.Params.BalanceLow, p.Params.BalanceHigh)
		if err != nil {
			return nil, fmt.Errorf("color balance: %w", err)
		}
	}

	if p.Params.OutputGamma != 1.0 {
		out, err = ApplyGamma(out, p.Params.OutputGamma)
		if err != nil {
			return nil, fmt.Errorf("gamma: %w", err)
		}
	}

	for i, stage := range p.Finish {
		out, err = stage.Apply(out)
		if err != nil {
			return nil, fmt.Errorf("finish stage %d: %w", i, err)
		}
	}

	p.log().Debug("MSRCR complete",
		"width", out.Width,
		"height", out.Height,
		"color_balance", p.Params.ColorBalance,
		"gamma", p.Params.OutputGamma,
		"elapsed", time.Since(start),
	)
	return out, nil
}

// canonical returns a copy of src with every sample clamped into [0,1].
func canonical(src *Image) *Image {
	img := src.Clone()
	for c := range img.Pix {
		for i, v := range img.Pix[c] {
			img.Pix[c][i] = clamp01(v)
		}
	}
	return img
}

func (p *Pipeline) log() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}
