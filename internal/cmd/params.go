package cmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/msrcr/internal/retinex"
	"github.com/MeKo-Tech/msrcr/internal/touchup"
)

// addParamFlags registers the preset and per-parameter override flags on c
// and binds them under prefix (for example "enhance.gamma").
func addParamFlags(c *cobra.Command, prefix string) {
	def := retinex.DefaultParams()

	c.Flags().String("preset", "default", "Parameter preset (default, lowlight or a preset from the config file); a bare --preset selects lowlight")
	c.Flags().Lookup("preset").NoOptDefVal = "lowlight"
	c.Flags().Bool("final-touch", false, "Apply a light denoise and CLAHE on L*a*b* lightness after MSRCR")
	c.Flags().String("sigmas", "", "Comma-separated surround sigmas, e.g. 15,80,250 (overrides the preset)")
	c.Flags().String("weights", "", "Comma-separated scale weights; empty means equal weights")
	c.Flags().Float64("alpha", def.Alpha, "Color restoration nonlinearity")
	c.Flags().Float64("beta", def.Beta, "Color restoration gain")
	c.Flags().Float64("gain", def.Gain, "Gain applied to the combined retinex output")
	c.Flags().Float64("offset", def.Offset, "Offset added to the combined retinex output")
	c.Flags().Bool("color-balance", def.ColorBalance, "Stretch each channel between its clip percentiles")
	c.Flags().Float64("balance-low", def.BalanceLow, "Fraction of darkest samples to clip per channel, in [0, 0.5)")
	c.Flags().Float64("balance-high", def.BalanceHigh, "Fraction of brightest samples to clip per channel, in [0, 0.5)")
	c.Flags().Float64("gamma", def.OutputGamma, "Output gamma; samples are raised to 1/gamma")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"preset", "preset"},
		{"final_touch", "final-touch"},
		{"sigmas", "sigmas"},
		{"weights", "weights"},
		{"alpha", "alpha"},
		{"beta", "beta"},
		{"gain", "gain"},
		{"offset", "offset"},
		{"color_balance", "color-balance"},
		{"balance_low", "balance-low"},
		{"balance_high", "balance-high"},
		{"gamma", "gamma"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(prefix+"."+bf.key, c.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

// resolveParams starts from the selected preset and applies every override
// that was set on the command line, in the environment or in the config file.
func resolveParams(prefix string) (retinex.Params, string, error) {
	name := viper.GetString(prefix + ".preset")
	params, err := lookupPreset(name)
	if err != nil {
		return retinex.Params{}, name, err
	}

	if viper.IsSet(prefix + ".sigmas") {
		sigmas, err := parseFloatList(viper.GetString(prefix + ".sigmas"))
		if err != nil {
			return retinex.Params{}, name, fmt.Errorf("invalid sigmas: %w", err)
		}
		if len(sigmas) > 0 {
			params.Scales = retinex.EqualScales(sigmas...)
		}
	}

	if viper.IsSet(prefix + ".weights") {
		weights, err := parseFloatList(viper.GetString(prefix + ".weights"))
		if err != nil {
			return retinex.Params{}, name, fmt.Errorf("invalid weights: %w", err)
		}
		if len(weights) > 0 {
			if len(weights) != len(params.Scales) {
				return retinex.Params{}, name, fmt.Errorf("%w: got %d weights for %d sigmas",
					retinex.ErrInvalidParameter, len(weights), len(params.Scales))
			}
			for i, w := range weights {
				params.Scales[i].Weight = w
			}
		}
	}

	overrides := []struct {
		key string
		dst *float64
	}{
		{"alpha", &params.Alpha},
		{"beta", &params.Beta},
		{"gain", &params.Gain},
		{"offset", &params.Offset},
		{"balance_low", &params.BalanceLow},
		{"balance_high", &params.BalanceHigh},
		{"gamma", &params.OutputGamma},
	}
	for _, o := range overrides {
		if viper.IsSet(prefix + "." + o.key) {
			*o.dst = viper.GetFloat64(prefix + "." + o.key)
		}
	}
	if viper.IsSet(prefix + ".color_balance") {
		params.ColorBalance = viper.GetBool(prefix + ".color_balance")
	}

	if err := params.Validate(); err != nil {
		return retinex.Params{}, name, err
	}
	return params, name, nil
}

// lookupPreset resolves a preset name. Presets declared in the config file
// under presets.<name> take precedence over the built-in ones; fields they
// leave out keep their default values.
func lookupPreset(name string) (retinex.Params, error) {
	key := "presets." + name
	if viper.IsSet(key) {
		params := retinex.DefaultParams()
		params.Scales = nil
		if err := viper.UnmarshalKey(key, &params); err != nil {
			return retinex.Params{}, fmt.Errorf("failed to decode preset %q: %w", name, err)
		}
		if len(params.Scales) == 0 {
			params.Scales = retinex.DefaultParams().Scales
		}
		if lo.EveryBy(params.Scales, func(s retinex.Scale) bool { return s.Weight == 0 }) {
			params.Scales = retinex.EqualScales(lo.Map(params.Scales, func(s retinex.Scale, _ int) float64 {
				return s.Sigma
			})...)
		}
		return params, nil
	}

	if params, ok := retinex.Preset(name); ok {
		return params, nil
	}
	return retinex.Params{}, fmt.Errorf("unknown preset %q (available: %s)", name, strings.Join(presetNames(), ", "))
}

// presetNames lists built-in and configured presets, sorted and unique.
func presetNames() []string {
	names := append(retinex.PresetNames(), lo.Keys(viper.GetStringMap("presets"))...)
	names = lo.Uniq(names)
	sort.Strings(names)
	return names
}

// finishStages returns the optional post-processing stages for prefix.
func finishStages(prefix string) ([]retinex.Stage, error) {
	ft, err := finalTouch(prefix)
	if err != nil || ft == nil {
		return nil, err
	}
	return []retinex.Stage{*ft}, nil
}

// finalTouch returns the final touch settings for prefix, or nil when the
// final touch is off. It may be tuned under the touchup key of the config file.
func finalTouch(prefix string) (*touchup.FinalTouch, error) {
	if !viper.GetBool(prefix + ".final_touch") {
		return nil, nil
	}

	ft := touchup.DefaultFinalTouch()
	if viper.IsSet("touchup") {
		if err := viper.UnmarshalKey("touchup", &ft); err != nil {
			return nil, fmt.Errorf("failed to decode touchup settings: %w", err)
		}
	}
	if err := ft.Validate(); err != nil {
		return nil, err
	}
	return &ft, nil
}

// parseFloatList parses "15, 80,250" into numbers. A blank string is an empty list.
func parseFloatList(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	values := make([]float64, 0, len(parts))
	for i, part := range parts {
		val, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number at position %d: %w", i, err)
		}
		values = append(values, val)
	}
	return values, nil
}
