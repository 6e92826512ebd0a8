package cmd

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List available parameter presets",
	Long:  "List the built-in presets and any presets declared in the config file under 'presets'.",
	RunE:  runPresets,
}

func init() {
	rootCmd.AddCommand(presetsCmd)
}

func runPresets(cmd *cobra.Command, args []string) error {
	for _, name := range presetNames() {
		params, err := lookupPreset(name)
		if err != nil {
			return err
		}
		sigmas := lo.Map(params.Sigmas(), func(s float64, _ int) string { return fmt.Sprintf("%g", s) })
		fmt.Fprintf(cmd.OutOrStdout(), "%-12s sigmas=%s alpha=%g beta=%g gain=%g offset=%g balance=%t (%g/%g) gamma=%g\n",
			name,
			strings.Join(sigmas, ","),
			params.Alpha,
			params.Beta,
			params.Gain,
			params.Offset,
			params.ColorBalance,
			params.BalanceLow,
			params.BalanceHigh,
			params.OutputGamma,
		)
	}
	return nil
}
