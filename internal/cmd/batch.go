package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/msrcr/internal/catalog"
	"github.com/MeKo-Tech/msrcr/internal/codec"
	"github.com/MeKo-Tech/msrcr/internal/retinex"
	"github.com/MeKo-Tech/msrcr/internal/worker"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Enhance every image in a directory",
	Long: `Enhance all images in a directory tree in parallel.

Outputs mirror the input layout. Formats without an encoder (gif, webp) are
written as png. With --catalog, every result is recorded in a SQLite ledger and
--skip-done skips inputs whose output still exists from a run with identical
parameters and final touch settings.`,
	RunE: runBatch,
}

// inputExtensions are the file types batch mode picks up.
var inputExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".tif": true, ".tiff": true,
	".bmp": true, ".gif": true, ".webp": true,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().String("input-dir", "", "Directory with input images (required)")
	batchCmd.Flags().String("output-dir", "", "Directory for enhanced images (required)")
	batchCmd.Flags().IntP("workers", "w", 0, "Number of parallel workers (default: number of CPUs)")
	batchCmd.Flags().Bool("progress", worker.IsTerminal(os.Stderr), "Show progress bar (default: on for terminals)")
	batchCmd.Flags().String("catalog", "", "SQLite catalog file recording every run (optional)")
	batchCmd.Flags().Bool("skip-done", false, "Skip inputs whose output the catalog lists as done with the same settings")
	batchCmd.Flags().Bool("allow-failures", false, "Exit successfully even if some images fail")
	batchCmd.Flags().Int("jpeg-quality", codec.DefaultJPEGQuality, "JPEG output quality (1-100)")
	addParamFlags(batchCmd, "batch")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"batch.input_dir", "input-dir"},
		{"batch.output_dir", "output-dir"},
		{"batch.workers", "workers"},
		{"batch.progress", "progress"},
		{"batch.catalog", "catalog"},
		{"batch.skip_done", "skip-done"},
		{"batch.allow_failures", "allow-failures"},
		{"batch.jpeg_quality", "jpeg-quality"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, batchCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runBatch(cmd *cobra.Command, args []string) error {
	inputDir := viper.GetString("batch.input_dir")
	outputDir := viper.GetString("batch.output_dir")
	workers := viper.GetInt("batch.workers")
	showProgress := viper.GetBool("batch.progress")
	catalogPath := viper.GetString("batch.catalog")
	skipDone := viper.GetBool("batch.skip_done")
	allowFailures := viper.GetBool("batch.allow_failures")
	jpegQuality := viper.GetInt("batch.jpeg_quality")

	if logger == nil {
		initLogging()
	}

	if inputDir == "" || outputDir == "" {
		return fmt.Errorf("--input-dir and --output-dir are required")
	}
	if skipDone && catalogPath == "" {
		return fmt.Errorf("--skip-done requires --catalog")
	}

	params, preset, err := resolveParams("batch")
	if err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	ft, err := finalTouch("batch")
	if err != nil {
		return fmt.Errorf("invalid final touch settings: %w", err)
	}
	var finish []retinex.Stage
	if ft != nil {
		finish = append(finish, *ft)
	}

	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	tasks, err := collectTasks(inputDir, outputDir)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		logger.Warn("No images found", "input_dir", inputDir)
		return nil
	}

	proc := &batchProcessor{
		job: enhanceJob{
			params: params,
			finish: finish,
			encode: codec.Options{JPEGQuality: jpegQuality},
		},
		skipDone: skipDone,
	}

	if catalogPath != "" {
		cat, err := catalog.Open(catalogPath)
		if err != nil {
			return fmt.Errorf("failed to open catalog: %w", err)
		}
		defer cat.Close()

		run, err := cat.BeginRun(preset, catalog.Settings{Params: params, FinalTouch: ft})
		if err != nil {
			return fmt.Errorf("failed to start catalog run: %w", err)
		}
		proc.catalog = cat
		proc.run = run
		logger.Info("Catalog run started", "catalog", catalogPath, "run_id", run.ID)
	}

	logger.Info("Starting batch enhancement",
		"input_dir", inputDir,
		"output_dir", outputDir,
		"images", len(tasks),
		"workers", workers,
		"preset", preset,
		"final_touch", len(finish) > 0,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received interrupt signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	progress := worker.NewProgress(len(tasks), showProgress)
	pool := worker.New(worker.Config{
		Workers:    workers,
		Processor:  proc,
		OnProgress: progress.Callback(),
	})

	results := pool.Run(ctx, tasks)
	progress.Done()

	for _, r := range results {
		switch {
		case r.Err != nil:
			logger.Error("Image enhancement failed", "input", r.Task.Input, "error", r.Err)
		case !r.Outcome.Skipped:
			fmt.Fprintf(cmd.OutOrStdout(), "Saved: %s\n", r.Task.Output)
		}
	}

	stats := progress.Stats()
	logger.Info(progress.Summary(),
		"skipped", stats.Skipped,
		"failed", stats.Failed,
		"written", humanize.Bytes(uint64(stats.Bytes)),
	)

	if stats.Failed > 0 {
		if allowFailures {
			logger.Warn("Some images failed, but continuing due to --allow-failures flag", "failed_count", stats.Failed)
			return nil
		}
		return fmt.Errorf("%d of %s images failed", stats.Failed, humanize.Comma(int64(len(tasks))))
	}
	return nil
}

// collectTasks walks inputDir and maps every image to a path under outputDir
// with the same relative layout. Inputs without an encoder are written as png;
// if that name is taken by another input, the source extension is kept in the
// name (photo.gif becomes photo_gif.png). Remaining clashes are an error.
func collectTasks(inputDir, outputDir string) ([]worker.Task, error) {
	var tasks []worker.Task
	renamed := make(map[int]string)
	err := filepath.WalkDir(inputDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !inputExtensions[ext] {
			return nil
		}

		rel, err := filepath.Rel(inputDir, path)
		if err != nil {
			return err
		}
		out := filepath.Join(outputDir, rel)
		if _, err := codec.FormatFromPath(out); err != nil {
			renamed[len(tasks)] = ext
			out = strings.TrimSuffix(out, filepath.Ext(out)) + ".png"
		}
		tasks = append(tasks, worker.Task{Input: path, Output: out})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan input directory: %w", err)
	}

	byOutput := func(t worker.Task) string { return t.Output }
	taken := lo.CountValuesBy(tasks, byOutput)
	for i, ext := range renamed {
		if taken[tasks[i].Output] > 1 {
			tasks[i].Output = strings.TrimSuffix(tasks[i].Output, ".png") + "_" + ext[1:] + ".png"
		}
	}

	taken = lo.CountValuesBy(tasks, byOutput)
	for _, t := range tasks {
		if taken[t.Output] > 1 {
			return nil, fmt.Errorf("output %s would be written by more than one input", t.Output)
		}
	}

	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Input < tasks[j].Input })
	return tasks, nil
}

// batchProcessor adapts enhanceJob to the worker pool and keeps the catalog
// up to date.
type batchProcessor struct {
	job      enhanceJob
	catalog  *catalog.Catalog
	run      catalog.Run
	skipDone bool
}

func (p *batchProcessor) Process(ctx context.Context, task worker.Task) (worker.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return worker.Outcome{}, err
	}

	if p.catalog != nil && p.skipDone {
		done, err := p.catalog.Done(task.Input, task.Output, p.run.ParamsHash)
		if err != nil {
			return worker.Outcome{}, err
		}
		if done {
			return worker.Outcome{Skipped: true}, nil
		}
	}

	start := time.Now()
	outcome, procErr := p.job.run(task.Input, task.Output)

	if p.catalog != nil {
		entry := catalog.Entry{
			RunID:      p.run.ID,
			Input:      task.Input,
			Output:     task.Output,
			ParamsHash: p.run.ParamsHash,
			Width:      outcome.Width,
			Height:     outcome.Height,
			Bytes:      outcome.Bytes,
			Elapsed:    time.Since(start),
		}
		if procErr != nil {
			entry.Err = procErr.Error()
		}
		if err := p.catalog.Record(entry); err != nil {
			logger.Warn("Failed to record catalog entry", "input", task.Input, "error", err)
		}
	}

	return outcome, procErr
}
