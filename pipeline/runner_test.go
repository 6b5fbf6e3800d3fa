package pipeline

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-mog/config"
	"github.com/nvr-ai/go-mog/gmm"
	"github.com/nvr-ai/go-mog/internal/log"
	"github.com/nvr-ai/go-mog/motion"
	"github.com/nvr-ai/go-mog/profiler"
	"github.com/nvr-ai/go-mog/store"
)

type sliceSource struct {
	frames []*gmm.Frame
	next   int
}

func (s *sliceSource) Next(ctx context.Context) (*gmm.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.next >= len(s.frames) {
		return nil, io.EOF
	}
	f := s.frames[s.next]
	s.next++
	return f, nil
}

func (s *sliceSource) Close() error { return nil }

// frame returns a size x size frame of 100 with an optional 8x8 block of 250 at (4, 4).
func frame(size int, block bool) *gmm.Frame {
	f := gmm.NewFrame(size, size, 1)
	f.Fill(100)
	if block {
		for y := 4; y < 12; y++ {
			for x := 4; x < 12; x++ {
				f.Set(x, y, 0, 250)
			}
		}
	}
	return f
}

func newRunner(t *testing.T, st *store.Store) *Runner {
	t.Helper()
	cfg := gmm.DefaultConfig()
	cfg.TrainingFrames = 5
	model, err := gmm.New(cfg)
	require.NoError(t, err)
	model.SetLogger(log.Discard())

	mcfg := motion.DefaultConfig()
	mcfg.MinMotionDuration = 0
	det, err := motion.New(mcfg)
	require.NoError(t, err)

	fcfg := config.Default().Filter
	fcfg.Backend = config.BackendGo
	fcfg.Kernel = 3

	return &Runner{
		Model:    model,
		Detector: det,
		Filter:   NewFilter(fcfg),
		Store:    st,
		SensorID: "cam-1",
		Logger:   log.Discard(),
	}
}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// motionStream is 5 training frames, 2 quiet frames, 3 with a block, 4 quiet.
func motionStream() *sliceSource {
	var frames []*gmm.Frame
	for i := 0; i < 7; i++ {
		frames = append(frames, frame(16, false))
	}
	for i := 0; i < 3; i++ {
		frames = append(frames, frame(16, true))
	}
	for i := 0; i < 4; i++ {
		frames = append(frames, frame(16, false))
	}
	return &sliceSource{frames: frames}
}

func TestRunnerEndToEnd(t *testing.T) {
	st := openStore(t)
	r := newRunner(t, st)
	r.Profiler = profiler.New(profiler.Options{Logger: log.Discard()})

	var outputs []Output
	r.Display = func(o Output) { outputs = append(outputs, o) }

	res, err := r.Run(context.Background(), motionStream())
	require.NoError(t, err)

	assert.Equal(t, 14, res.Frames)
	assert.Equal(t, 9, res.Classified)
	assert.Equal(t, 1, res.Events)
	assert.Equal(t, 2, res.Snapshots, "training complete and shutdown")
	assert.Equal(t, 0, res.Resets)
	require.Len(t, outputs, 9)

	blockOut := outputs[2]
	assert.Equal(t, gmm.Foreground, blockOut.Mask.At(8, 8))
	assert.Equal(t, gmm.Foreground, blockOut.Cleaned.At(8, 8))
	assert.Equal(t, gmm.Background, blockOut.Cleaned.At(0, 0))
	assert.InDelta(t, 0.25, blockOut.Event.Fraction, 1e-9)

	assert.True(t, outputs[4].Event.Started)
	assert.Equal(t, motion.Idle, r.Detector.State())

	records, err := st.List(context.Background(), "cam-1")
	require.NoError(t, err)
	require.Len(t, records, 2)

	stats := r.Profiler.Stats()
	assert.Contains(t, stats.Operations, "gmm.process")
	assert.EqualValues(t, 14, stats.Operations["gmm.process"].Count)
	assert.Contains(t, stats.Metrics, "foreground_fraction")
}

func TestRunnerPeriodicSnapshots(t *testing.T) {
	st := openStore(t)
	r := newRunner(t, st)
	r.SnapshotInterval = 3

	res, err := r.Run(context.Background(), motionStream())
	require.NoError(t, err)
	assert.Equal(t, 5, res.Snapshots, "training complete, three periodic, shutdown")
}

func TestRunnerRestore(t *testing.T) {
	st := openStore(t)
	first := newRunner(t, st)
	_, err := first.Run(context.Background(), motionStream())
	require.NoError(t, err)

	second := newRunner(t, st)
	ok, err := second.Restore(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, gmm.Running, second.Model.Phase())

	// The restored model classifies immediately.
	require.NoError(t, second.Step(context.Background(), frame(16, false)))
	assert.Equal(t, 1, second.result.Classified)

	other := newRunner(t, st)
	other.SensorID = "cam-2"
	ok, err = other.Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	none := newRunner(t, nil)
	ok, err = none.Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRunnerRetrainsOnResize(t *testing.T) {
	r := newRunner(t, nil)
	src := &sliceSource{}
	for i := 0; i < 6; i++ {
		src.frames = append(src.frames, frame(16, false))
	}
	for i := 0; i < 3; i++ {
		src.frames = append(src.frames, frame(12, false))
	}

	res, err := r.Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Resets)
	assert.Equal(t, gmm.Training, r.Model.Phase())
	w, h, _, ok := r.Model.Dimensions()
	require.True(t, ok)
	assert.Equal(t, 12, w)
	assert.Equal(t, 12, h)
}

func TestRunnerKeepsModelOnMalformedFrame(t *testing.T) {
	r := newRunner(t, nil)
	for i := 0; i < 6; i++ {
		require.NoError(t, r.Step(context.Background(), frame(16, false)))
	}
	require.Equal(t, gmm.Running, r.Model.Phase())

	bad := &gmm.Frame{Width: 16, Height: 16, Channels: 1, Pix: make([]float64, 3)}
	err := r.Step(context.Background(), bad)
	assert.ErrorIs(t, err, gmm.ErrDimensionMismatch)
	assert.ErrorIs(t, r.Step(context.Background(), &gmm.Frame{}), gmm.ErrDimensionMismatch)

	assert.Zero(t, r.result.Resets)
	assert.Equal(t, gmm.Running, r.Model.Phase())
	assert.Equal(t, 6, r.Model.FramesSeen())
	require.NoError(t, r.Step(context.Background(), frame(16, false)))
}

func TestRunnerStopsOnCancel(t *testing.T) {
	st := openStore(t)
	r := newRunner(t, st)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := r.Run(ctx, motionStream())
	require.NoError(t, err)
	assert.Zero(t, res.Frames)
	assert.Zero(t, res.Snapshots, "an untrained model is not persisted")
}

func TestCollector(t *testing.T) {
	r := newRunner(t, nil)
	c := Collector(r.Model)
	assert.Nil(t, c.CollectMetrics())

	require.NoError(t, r.Step(context.Background(), frame(16, false)))
	m := c.CollectMetrics()
	assert.Equal(t, 1.0, m["mean_components"])
}
