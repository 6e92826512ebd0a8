package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/msrcr/internal/codec"
	"github.com/MeKo-Tech/msrcr/internal/retinex"
	"github.com/MeKo-Tech/msrcr/internal/worker"
)

var enhanceCmd = &cobra.Command{
	Use:   "enhance",
	Short: "Enhance a single image",
	Long: `Enhance a single low-light image with MSRCR and write the result.

The output format follows the output file extension (png, jpg, tif, bmp).
16-bit inputs produce 16-bit output where the format supports it.`,
	RunE: runEnhance,
}

func init() {
	rootCmd.AddCommand(enhanceCmd)

	enhanceCmd.Flags().StringP("input", "i", "", "Path to input image (required)")
	enhanceCmd.Flags().StringP("output", "o", "", "Path to save enhanced image (required)")
	enhanceCmd.Flags().Int("preview-width", 0, "Downscale to this width before enhancing (0 keeps full size)")
	enhanceCmd.Flags().Int("jpeg-quality", codec.DefaultJPEGQuality, "JPEG output quality (1-100)")
	addParamFlags(enhanceCmd, "enhance")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"enhance.input", "input"},
		{"enhance.output", "output"},
		{"enhance.preview_width", "preview-width"},
		{"enhance.jpeg_quality", "jpeg-quality"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, enhanceCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runEnhance(cmd *cobra.Command, args []string) error {
	input := viper.GetString("enhance.input")
	output := viper.GetString("enhance.output")
	previewWidth := viper.GetInt("enhance.preview_width")
	jpegQuality := viper.GetInt("enhance.jpeg_quality")

	if logger == nil {
		initLogging()
	}

	if input == "" || output == "" {
		return fmt.Errorf("--input and --output are required")
	}
	if _, err := codec.FormatFromPath(output); err != nil {
		return err
	}

	params, preset, err := resolveParams("enhance")
	if err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	finish, err := finishStages("enhance")
	if err != nil {
		return fmt.Errorf("invalid final touch settings: %w", err)
	}

	logger.Info("Starting enhancement",
		"input", input,
		"output", output,
		"preset", preset,
		"sigmas", params.Sigmas(),
		"gamma", params.OutputGamma,
		"final_touch", len(finish) > 0,
	)

	job := enhanceJob{
		params:       params,
		finish:       finish,
		previewWidth: previewWidth,
		encode:       codec.Options{JPEGQuality: jpegQuality},
	}
	outcome, err := job.run(input, output)
	if err != nil {
		return err
	}

	logger.Info("Image enhanced",
		"size", fmt.Sprintf("%dx%d", outcome.Width, outcome.Height),
		"bytes", humanize.Bytes(uint64(outcome.Bytes)),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "Saved: %s\n", output)
	return nil
}

// enhanceJob holds everything needed to enhance one file.
type enhanceJob struct {
	params       retinex.Params
	finish       []retinex.Stage
	previewWidth int
	encode       codec.Options
}

// run decodes input, enhances it and writes output.
func (j enhanceJob) run(input, output string) (worker.Outcome, error) {
	start := time.Now()

	src, format, err := codec.Decode(input)
	if err != nil {
		return worker.Outcome{}, err
	}
	src = codec.Downscale(src, j.previewWidth)

	enhanced, err := retinex.EnhanceImage(src, j.params, j.finish...)
	if err != nil {
		return worker.Outcome{}, fmt.Errorf("failed to enhance %s: %w", input, err)
	}

	if err := codec.Encode(output, enhanced, j.encode); err != nil {
		return worker.Outcome{}, err
	}

	b := enhanced.Bounds()
	outcome := worker.Outcome{Width: b.Dx(), Height: b.Dy()}
	if info, err := os.Stat(output); err == nil {
		outcome.Bytes = info.Size()
	}

	logger.Debug("Enhanced file",
		"input", input,
		"format", format,
		"depth", retinex.DepthOf(src),
		"elapsed", time.Since(start),
	)
	return outcome, nil
}
