package retinex

import (
	"fmt"
	"math"
	"sort"

	"github.com/samber/lo"
)

// Scale is one Gaussian surround of the multi-scale decomposition.
type Scale struct {
	Sigma  float64 `mapstructure:"sigma" json:"sigma"`
	Weight float64 `mapstructure:"weight" json:"weight"`
}

// EqualScales returns one scale per sigma, all with the same weight.
func EqualScales(sigmas ...float64) []Scale {
	if len(sigmas) == 0 {
		return nil
	}
	w := 1.0 / float64(len(sigmas))
	return lo.Map(sigmas, func(s float64, _ int) Scale {
		return Scale{Sigma: s, Weight: w}
	})
}

// Params configures one MSRCR run. BalanceLow and BalanceHigh are fractions
// (0.01 clips 1% of each tail).
type Params struct {
	Scales       []Scale `mapstructure:"scales" json:"scales"`
	Alpha        float64 `mapstructure:"alpha" json:"alpha"`
	Beta         float64 `mapstructure:"beta" json:"beta"`
	Gain         float64 `mapstructure:"gain" json:"gain"`
	Offset       float64 `mapstructure:"offset" json:"offset"`
	ColorBalance bool    `mapstructure:"color_balance" json:"color_balance"`
	BalanceLow   float64 `mapstructure:"balance_low" json:"balance_low"`
	BalanceHigh  float64 `mapstructure:"balance_high" json:"balance_high"`
	OutputGamma  float64 `mapstructure:"output_gamma" json:"output_gamma"`
}

// Restoration constants from the MSRCR literature.
const (
	DefaultAlpha = 125.0
	DefaultBeta  = 46.0
)

// DefaultParams returns the general purpose configuration.
func DefaultParams() Params {
	return Params{
		Scales:       EqualScales(15, 80, 250),
		Alpha:        DefaultAlpha,
		Beta:         DefaultBeta,
		Gain:         1.0,
		Offset:       0.0,
		ColorBalance: true,
		BalanceLow:   0.01,
		BalanceHigh:  0.01,
		OutputGamma:  1.0,
	}
}

// LowLightParams returns the preset for dim handheld photos: tighter surrounds
// and an output gamma of 0.9.
func LowLightParams() Params {
	p := DefaultParams()
	p.Scales = EqualScales(15, 60, 200)
	p.OutputGamma = 0.9
	return p
}

var presets = map[string]func() Params{
	"default":  DefaultParams,
	"lowlight": LowLightParams,
}

// Preset returns the named built-in preset.
func Preset(name string) (Params, bool) {
	fn, ok := presets[name]
	if !ok {
		return Params{}, false
	}
	return fn(), true
}

// PresetNames lists the built-in presets in sorted order.
func PresetNames() []string {
	names := lo.Keys(presets)
	sort.Strings(names)
	return names
}

// Sigmas returns the surround sigmas in scale order.
func (p Params) Sigmas() []float64 {
	return lo.Map(p.Scales, func(s Scale, _ int) float64 { return s.Sigma })
}

// Validate checks every parameter and wraps ErrInvalidParameter on failure.
func (p Params) Validate() error {
	if len(p.Scales) == 0 {
		return fmt.Errorf("%w: at least one scale is required", ErrInvalidParameter)
	}
	for i, s := range p.Scales {
		if !(s.Sigma > 0) || math.IsInf(s.Sigma, 0) {
			return fmt.Errorf("%w: scale %d sigma must be positive, got %g", ErrInvalidParameter, i, s.Sigma)
		}
		if !(s.Weight >= 0) || math.IsInf(s.Weight, 0) {
			return fmt.Errorf("%w: scale %d weight must be non-negative, got %g", ErrInvalidParameter, i, s.Weight)
		}
	}
	if sum := lo.SumBy(p.Scales, func(s Scale) float64 { return s.Weight }); !(sum > 0) {
		return fmt.Errorf("%w: scale weights must sum to a positive value, got %g", ErrInvalidParameter, sum)
	}
	if !(p.Alpha > 0) || math.IsInf(p.Alpha, 0) {
		return fmt.Errorf("%w: alpha must be positive, got %g", ErrInvalidParameter, p.Alpha)
	}
	if !(p.Beta > 0) || math.IsInf(p.Beta, 0) {
		return fmt.Errorf("%w: beta must be positive, got %g", ErrInvalidParameter, p.Beta)
	}
	if !finite(p.Gain) || !finite(p.Offset) {
		return fmt.Errorf("%w: gain and offset must be finite", ErrInvalidParameter)
	}
	if !validClip(p.BalanceLow) {
		return fmt.Errorf("%w: balance low must be within [0, 0.5), got %g", ErrInvalidParameter, p.BalanceLow)
	}
	if !validClip(p.BalanceHigh) {
		return fmt.Errorf("%w: balance high must be within [0, 0.5), got %g", ErrInvalidParameter, p.BalanceHigh)
	}
	if !(p.OutputGamma > 0) || math.IsInf(p.OutputGamma, 0) {
		return fmt.Errorf("%w: output gamma must be positive, got %g", ErrInvalidParameter, p.OutputGamma)
	}
	return nil
}

// normalizedScales returns the scales with weights rescaled to sum to one.
// Validate must have succeeded.
func (p Params) normalizedScales() []Scale {
	sum := lo.SumBy(p.Scales, func(s Scale) float64 { return s.Weight })
	return lo.Map(p.Scales, func(s Scale, _ int) Scale {
		return Scale{Sigma: s.Sigma, Weight: s.Weight / sum}
	})
}

func validClip(v float64) bool { return v >= 0 && v < 0.5 }

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
