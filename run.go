package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"video-rewrite/internal/container"
	"video-rewrite/internal/ffmpeg"
	"video-rewrite/internal/filters"
	"video-rewrite/internal/logging"
	"video-rewrite/internal/mediatypes"
	"video-rewrite/internal/startup"
	"video-rewrite/internal/transcode"
)

type runOptions struct {
	Filter   string
	Volume   float64
	Timeout  time.Duration
	Preset   string
	CRF      int
	NoVerify bool
	NoVips   bool
}

func newRunCommand() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run SOURCE DEST",
		Short: "Transcode one file",
		Long: "Transcode SOURCE into DEST, applying a frame filter to the video track. " +
			"DEST is replaced only when the run succeeds.",
		Example: `  video-rewrite run in.mov out.mov
  video-rewrite run --filter sepia --volume 0.8 in.mp4 out.mov
  video-rewrite run --timeout 10m --crf 18 --preset slow in.mov out.mov`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranscode(cmd, opts, args[0], args[1])
		},
	}

	bindRunFlags(cmd.Flags(), opts)
	return cmd
}

func bindRunFlags(flags *pflag.FlagSet, opts *runOptions) {
	flags.StringVarP(&opts.Filter, "filter", "f", filters.Normal, "Filter variant (see 'video-rewrite filters')")
	flags.Float64Var(&opts.Volume, "volume", 1, "Audio gain, 1 keeps the source level")
	flags.DurationVar(&opts.Timeout, "timeout", 0, "Abort the run after this long (0 = no limit)")
	flags.StringVar(&opts.Preset, "preset", "", "x264 preset (default VIDEO_PRESET)")
	flags.IntVar(&opts.CRF, "crf", 0, "x264 CRF 1-51 (default VIDEO_CRF)")
	flags.BoolVar(&opts.NoVerify, "no-verify", false, "Skip inspecting the output before committing it")
	flags.BoolVar(&opts.NoVips, "no-vips", false, "Do not start libvips")
}

// applyRunFlags overrides the environment configuration with the flags the
// user set.
func applyRunFlags(flags *pflag.FlagSet, opts *runOptions, fc ffmpeg.Config) (ffmpeg.Config, error) {
	if flags.Changed("preset") {
		fc.Preset = opts.Preset
	}
	if flags.Changed("crf") {
		if opts.CRF < 1 || opts.CRF > 51 {
			return fc, fmt.Errorf("--crf must be between 1 and 51, got %d", opts.CRF)
		}
		fc.CRF = opts.CRF
	}
	if opts.NoVerify {
		fc.Verify = false
	}
	if opts.Volume < 0 || opts.Volume != opts.Volume {
		return fc, fmt.Errorf("--volume must not be negative")
	}
	if opts.Timeout < 0 {
		return fc, fmt.Errorf("--timeout must not be negative")
	}
	return fc, nil
}

func runTranscode(cmd *cobra.Command, opts *runOptions, source, dest string) error {
	if err := mediatypes.CheckOutput(dest); err != nil {
		return err
	}
	cfg, err := startup.ReadConfig()
	if err != nil {
		return err
	}
	fc, err := applyRunFlags(cmd.Flags(), opts, cfg.FFmpegConfig())
	if err != nil {
		return err
	}

	backend := ffmpeg.New(fc)
	if err := backend.Available(); err != nil {
		return err
	}

	rc := filters.NewRenderContext(cfg.UseVips && !opts.NoVips)
	defer rc.Close()

	filter, err := filters.NewCatalog(rc).New(opts.Filter)
	if err != nil {
		return err
	}

	pipelineOpts := []transcode.Option{transcode.WithFilter(filter)}
	if opts.Volume != 1 {
		pipelineOpts = append(pipelineOpts, transcode.WithAudioTransform(filters.Volume(opts.Volume)))
	}
	pipeline := transcode.New(backend, backend, pipelineOpts...)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	if err := pipeline.Prepare(ctx, source, dest); err != nil {
		return err
	}
	events, err := pipeline.Start(ctx)
	if err != nil {
		pipeline.Cancel()
		return err
	}

	bar := newProgressBar(os.Stderr, filepath.Base(source))
	path, err := transcode.Wait(events, bar.Update)
	bar.Finish()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("timed out after %v: %w", opts.Timeout, err)
		}
		return err
	}

	if summary, err := container.Inspect(path); err == nil {
		if video, ok := summary.Video(); ok {
			logging.Info("Wrote %s: %dx%d %s, %d frames, %v", path, video.Width, video.Height,
				video.Codec, video.Samples, summary.Duration.Round(time.Millisecond))
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
