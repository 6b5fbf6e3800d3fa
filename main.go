package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-mog/config"
	"github.com/nvr-ai/go-mog/gmm"
	"github.com/nvr-ai/go-mog/images"
	"github.com/nvr-ai/go-mog/internal/log"
	"github.com/nvr-ai/go-mog/motion"
	"github.com/nvr-ai/go-mog/pipeline"
	"github.com/nvr-ai/go-mog/plots"
	"github.com/nvr-ai/go-mog/profiler"
	"github.com/nvr-ai/go-mog/store"
)

// options are the command line flags. Flags that were set explicitly override the
// configuration file.
type options struct {
	configPath  string
	video       string
	dir         string
	device      int
	resize      int
	resolution  string
	trainFrames int
	shadows     bool
	channels    int
	filter      string
	showWindow  bool
	snapshotDB  string
	sensor      string
	restore     bool
	logLevel    string
	plotDir     string
	plotPixels  string
}

func parseFlags() (options, map[string]bool) {
	var o options
	flag.StringVar(&o.configPath, "config", "", "Path to a pipeline file (.yaml, .yml or .json)")
	flag.StringVar(&o.video, "video", "", "Path to a video file")
	flag.StringVar(&o.dir, "dir", "", "Directory of frame-<n>.<ext> images")
	flag.IntVar(&o.device, "device", 0, "Camera device index")
	flag.IntVar(&o.resize, "resize", 320, "Downscale frames to this width before modelling (0 keeps the size)")
	flag.StringVar(&o.resolution, "resolution", "", "Fit frames inside a named resolution, e.g. QVGA or 240p")
	flag.IntVar(&o.trainFrames, "train-frames", gmm.DefaultTrainingFrames, "Training frames, counting the first")
	flag.BoolVar(&o.shadows, "shadows", false, "Label shadows separately from foreground")
	flag.IntVar(&o.channels, "channels", 1, "1 for intensity, 3 for per-channel colour")
	flag.StringVar(&o.filter, "filter", config.BackendOpenCV, "Mask cleanup backend: opencv or go")
	flag.BoolVar(&o.showWindow, "show-window", false, "Show the mask in a window")
	flag.StringVar(&o.snapshotDB, "snapshot-db", "", "SQLite file for model snapshots")
	flag.StringVar(&o.sensor, "sensor", "default", "Sensor id used for snapshots")
	flag.BoolVar(&o.restore, "restore", false, "Start from the sensor's latest snapshot")
	flag.StringVar(&o.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	flag.StringVar(&o.plotDir, "plot-dir", "", "Write pixel and fit plots to this directory on exit")
	flag.StringVar(&o.plotPixels, "plot-pixels", "", "Pixels to plot, as x,y;x,y")
	flag.Parse()

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return o, set
}

// resolve merges the configuration file, if any, with explicitly set flags.
func resolve(o options, set map[string]bool) (*config.Pipeline, error) {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}

	if set["video"] {
		cfg.Capture.Video, cfg.Capture.Directory = o.video, ""
	}
	if set["dir"] {
		cfg.Capture.Directory, cfg.Capture.Video = o.dir, ""
	}
	if set["device"] {
		cfg.Capture.Device = o.device
	}
	if set["resize"] {
		cfg.Capture.ResizeWidth = o.resize
	}
	if set["resolution"] {
		cfg.Capture.Resolution = o.resolution
	}
	if set["channels"] {
		cfg.Capture.Channels = o.channels
	}
	if set["train-frames"] {
		cfg.Model.TrainingFrames = o.trainFrames
	}
	if set["shadows"] {
		cfg.Model.Shadow.Enabled = o.shadows
	}
	if set["filter"] {
		cfg.Filter.Backend = o.filter
	}
	if set["snapshot-db"] {
		cfg.Store.Path = o.snapshotDB
	}
	if set["sensor"] {
		cfg.Store.SensorID = o.sensor
	}
	if set["restore"] {
		cfg.Store.Restore = o.restore
	}
	if set["log-level"] {
		cfg.LogLevel = o.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func openSource(cfg config.CaptureConfig) (pipeline.Source, string, error) {
	shaping := pipeline.Shaping{Width: cfg.ResizeWidth, Channels: cfg.Channels}
	if cfg.Resolution != "" {
		res, _ := images.ResolutionByName(cfg.Resolution)
		shaping.Resolution = &res
	}

	switch {
	case cfg.Directory != "":
		src, err := pipeline.NewDirSource(cfg.Directory, shaping)
		if err != nil {
			return nil, "", err
		}
		return src, fmt.Sprintf("directory %s (%d frames)", cfg.Directory, src.Len()), nil
	case cfg.Video != "":
		src, err := pipeline.OpenCapture(0, cfg.Video, shaping)
		return src, "video " + cfg.Video, err
	default:
		src, err := pipeline.OpenCapture(cfg.Device, "", shaping)
		return src, fmt.Sprintf("camera %d", cfg.Device), err
	}
}

func run() error {
	opts, set := parseFlags()
	cfg, err := resolve(opts, set)
	if err != nil {
		return errors.Wrap(err, "configuration")
	}
	log.Init(cfg.LogLevel)
	logger := log.L()

	model, err := gmm.New(cfg.Model)
	if err != nil {
		return err
	}
	model.SetLogger(logger.With("component", "gmm"))

	detector, err := motion.New(cfg.Motion)
	if err != nil {
		return err
	}

	filter := pipeline.NewFilter(cfg.Filter)
	defer filter.Close()

	src, name, err := openSource(cfg.Capture)
	if err != nil {
		return err
	}
	defer src.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prof := profiler.New(profiler.Options{Logger: logger.With("component", "profiler")})
	prof.AddMetricsCollector(pipeline.Collector(model))
	prof.Start(ctx)
	defer prof.Stop()

	runner := &pipeline.Runner{
		Model:            model,
		Detector:         detector,
		Filter:           filter,
		SensorID:         cfg.Store.SensorID,
		SnapshotInterval: cfg.Store.SnapshotInterval,
		Profiler:         prof,
		Logger:           logger,
	}

	if cfg.Store.Path != "" {
		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return err
		}
		defer st.Close()
		runner.Store = st
		if cfg.Store.Restore {
			if _, err := runner.Restore(ctx); err != nil {
				return err
			}
		}
	}

	if opts.plotDir != "" {
		pixels, err := plots.ParsePixels(opts.plotPixels)
		if err != nil {
			return err
		}
		runner.Plotter = plots.NewPixelPlotter(pixels)
	}

	if opts.showWindow {
		win := newWindow("go-mog", stop)
		defer win.Close()
		runner.Display = win.Show
	}

	logger.Info("starting background segmentation",
		"source", name,
		"channels", cfg.Capture.Channels,
		"max_components", cfg.Model.MaxComponents,
		"training_frames", cfg.Model.TrainingFrames,
		"shadows", cfg.Model.Shadow.Enabled,
		"filter", cfg.Filter.Backend,
		"min_area", cfg.Motion.MinArea,
		"min_motion_duration", cfg.Motion.MinMotionDuration,
		"snapshots", cfg.Store.Path != "",
	)

	started := time.Now()
	res, err := runner.Run(ctx, src)
	if err != nil {
		return err
	}

	summary := model.Summary()
	logger.Info("finished",
		"elapsed", time.Since(started).Truncate(time.Millisecond),
		"frames", res.Frames,
		"classified", res.Classified,
		"events", res.Events,
		"resets", res.Resets,
		"snapshots", res.Snapshots,
		"phase", summary.Phase.String(),
		"mean_components", summary.MeanComponents,
		"mean_fit", summary.MeanFit,
	)

	if opts.plotDir != "" {
		n, err := runner.Plotter.GeneratePlots(opts.plotDir)
		if err != nil {
			return err
		}
		if summary.Phase >= gmm.FitComputed {
			if err := plots.FitHistogram(summary, filepath.Join(opts.plotDir, "fit_histogram.png")); err != nil {
				return err
			}
		}
		logger.Info("wrote plots", "dir", opts.plotDir, "pixels", n)
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Error("go-mog failed", "error", err)
		os.Exit(1)
	}
}
