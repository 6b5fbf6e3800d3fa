// Package pipeline - The frame loop: source → mixture model → mask cleanup → motion
// events, with snapshot persistence, profiling and optional pixel plots.
package pipeline

import (
	"context"
	"image"
	"io"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-mog/gmm"
	"github.com/nvr-ai/go-mog/motion"
	"github.com/nvr-ai/go-mog/plots"
	"github.com/nvr-ai/go-mog/profiler"
	"github.com/nvr-ai/go-mog/store"
)

// shutdownTimeout bounds the final snapshot write.
const shutdownTimeout = 5 * time.Second

// Output is handed to the display callback for every classified frame.
type Output struct {
	Frame   *gmm.Frame
	Mask    *gmm.Mask
	Cleaned *gmm.Mask
	Boxes   []image.Rectangle
	Event   motion.Event
}

// Result summarises a run.
type Result struct {
	Frames     int
	Classified int
	Events     int
	Resets     int
	Snapshots  int
}

// Runner drives one sensor's frames through the model.
type Runner struct {
	Model    *gmm.Model
	Detector *motion.Detector
	Filter   Filter

	// Optional collaborators.
	Store    *store.Store
	SensorID string
	// SnapshotInterval saves a periodic snapshot every N classified frames. 0 disables it.
	SnapshotInterval int
	Profiler         *profiler.Profiler
	Plotter          *plots.PixelPlotter
	Display          func(Output)
	Logger           *slog.Logger

	result Result
}

func (r *Runner) log() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Restore loads the latest snapshot of SensorID into the model. It returns false,
// without error, when the store has no snapshot for the sensor.
func (r *Runner) Restore(ctx context.Context) (bool, error) {
	if r.Store == nil {
		return false, nil
	}
	rec, state, err := r.Store.Latest(ctx, r.SensorID)
	if errors.Is(err, store.ErrNotFound) {
		r.log().Info("no snapshot to restore, training from scratch", "sensor", r.SensorID)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := r.Model.Restore(state); err != nil {
		return false, errors.Wrapf(err, "restore snapshot %s", rec.ID)
	}
	r.log().Info("restored snapshot",
		"id", rec.ID, "taken_at", rec.TakenAt, "phase", rec.Phase,
		"width", rec.Width, "height", rec.Height, "frames_seen", rec.FramesSeen)
	return true, nil
}

// Run processes frames until the source is exhausted or ctx is cancelled, then
// writes a shutdown snapshot when a store is configured. Cancellation is not an error.
func (r *Runner) Run(ctx context.Context, src Source) (Result, error) {
	runErr := r.loop(ctx, src)

	if r.Store != nil && r.Model.Phase() >= gmm.FitComputed {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		if err := r.snapshot(sctx, store.ReasonShutdown); err != nil && runErr == nil {
			runErr = err
		}
		cancel()
	}
	if r.Profiler != nil {
		r.Profiler.Report()
	}
	return r.result, runErr
}

func (r *Runner) loop(ctx context.Context, src Source) error {
	for {
		frame, err := src.Next(ctx)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			r.log().Info("source exhausted", "frames", r.result.Frames)
			return nil
		case ctx.Err() != nil:
			r.log().Info("stopping", "reason", ctx.Err())
			return nil
		default:
			return errors.Wrap(err, "read frame")
		}

		if err := r.Step(ctx, frame); err != nil {
			return err
		}
		if ctx.Err() != nil {
			r.log().Info("stopping", "reason", ctx.Err())
			return nil
		}
	}
}

// Step processes one frame. A frame of a new size resets the model and starts
// training again.
func (r *Runner) Step(ctx context.Context, frame *gmm.Frame) error {
	start := time.Now()
	r.result.Frames++
	before := r.Model.Phase()

	if err := frame.Validate(); err != nil {
		return errors.Wrapf(err, "frame %d", r.result.Frames)
	}
	if w, h, ch, ok := r.Model.Dimensions(); ok && (w != frame.Width || h != frame.Height || ch != frame.Channels) {
		r.log().Warn("frame size changed, retraining",
			"was", image.Pt(w, h), "channels", ch,
			"now", image.Pt(frame.Width, frame.Height), "frame_channels", frame.Channels)
		r.Model.Reset()
		r.result.Resets++
		before = gmm.Uninitialized
	}
	mask, err := r.process(frame)
	if err != nil {
		return errors.Wrapf(err, "frame %d", r.result.Frames)
	}

	if r.Plotter != nil {
		r.Plotter.Sample(r.Model, frame, mask)
	}

	after := r.Model.Phase()
	if before < gmm.FitComputed && after >= gmm.FitComputed && r.Store != nil {
		if err := r.snapshot(ctx, store.ReasonTrainingComplete); err != nil {
			return err
		}
	}
	if mask == nil {
		return nil
	}
	r.result.Classified++

	cleaned, boxes, err := r.Filter.Filter(mask)
	if err != nil {
		return errors.Wrap(err, "filter mask")
	}
	ev := r.Detector.Process(cleaned)
	r.Detector.FrameProcessingTime = time.Since(start)

	_, fg, shadow := mask.Counts()
	if r.Profiler != nil {
		r.Profiler.RecordDuration("frame", r.Detector.FrameProcessingTime)
		r.Profiler.RecordMetric("foreground_fraction", ev.Fraction)
		r.Profiler.RecordMetric("shadow_pixels", float64(shadow))
	}

	switch {
	case ev.Started:
		r.result.Events++
		r.log().Info("motion started", "fraction", ev.Fraction, "boxes", len(boxes), "events", r.Detector.MotionEventCount)
	case ev.Ended:
		r.log().Info("motion ended", "duration", ev.Duration)
	}
	r.log().Debug("frame",
		"n", r.result.Frames, "foreground", fg, "shadow", shadow,
		"state", ev.State, "fps", r.Detector.CurrentFPS,
		"processing", r.Detector.FrameProcessingTime)

	if r.Store != nil && r.SnapshotInterval > 0 && r.result.Classified%r.SnapshotInterval == 0 {
		if err := r.snapshot(ctx, store.ReasonPeriodic); err != nil {
			return err
		}
	}

	if r.Display != nil {
		r.Display(Output{Frame: frame, Mask: mask, Cleaned: cleaned, Boxes: boxes, Event: ev})
	}
	return nil
}

func (r *Runner) process(frame *gmm.Frame) (*gmm.Mask, error) {
	if r.Profiler != nil {
		defer r.Profiler.StartOperation("gmm.process")()
	}
	return r.Model.Process(frame)
}

func (r *Runner) snapshot(ctx context.Context, reason string) error {
	state, err := r.Model.Snapshot()
	if err != nil {
		return errors.Wrap(err, "snapshot model")
	}
	id, err := r.Store.Save(ctx, r.SensorID, reason, state)
	if err != nil {
		return err
	}
	r.result.Snapshots++
	r.log().Info("saved snapshot", "id", id, "reason", reason, "frames_seen", state.FramesSeen)
	return nil
}

// Collector exposes model statistics to the profiler.
func Collector(m *gmm.Model) profiler.MetricsCollector {
	return profiler.CollectorFunc(func() map[string]float64 {
		s := m.Summary()
		if s.Mixtures == 0 {
			return nil
		}
		return map[string]float64{
			"mean_components":        s.MeanComponents,
			"mean_fit":               s.MeanFit,
			"dominant_variance_mean": s.DominantVarianceMean,
		}
	})
}
