// Package motion - Turns per-frame foreground masks into debounced motion events.
package motion

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-mog/gmm"
)

// ErrInvalidConfiguration is returned by Config.Validate.
var ErrInvalidConfiguration = errors.New("motion: invalid configuration")

// State is the event state of a Detector.
type State int

const (
	// Idle means no motion is being observed.
	Idle State = iota
	// Pending means motion was seen but has not persisted long enough to report.
	Pending
	// Active means a motion event is in progress.
	Active
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Active:
		return "active"
	default:
		return "unknown"
	}
}

// Config contains the event thresholds.
type Config struct {
	// MinArea is the foreground fraction of the frame, in (0, 1], that counts as motion.
	MinArea float64 `json:"min_area" yaml:"min_area"`
	// MinMotionDuration is how long motion must persist before an event starts.
	MinMotionDuration time.Duration `json:"min_motion_duration" yaml:"min_motion_duration"`
	// HysteresisFrames is both the number of motion frames needed to start an event
	// and the number of quiet frames needed to end one.
	HysteresisFrames int `json:"hysteresis_frames" yaml:"hysteresis_frames"`
}

// DefaultConfig returns a default configuration for motion events.
func DefaultConfig() Config {
	return Config{
		MinArea:           0.01,
		MinMotionDuration: 500 * time.Millisecond,
		HysteresisFrames:  3,
	}
}

// Validate checks that every threshold is in range.
func (c Config) Validate() error {
	if !(c.MinArea > 0 && c.MinArea <= 1) {
		return errors.Wrapf(ErrInvalidConfiguration, "min_area must be in (0, 1], got %v", c.MinArea)
	}
	if c.MinMotionDuration < 0 {
		return errors.Wrapf(ErrInvalidConfiguration, "min_motion_duration must be non-negative, got %v", c.MinMotionDuration)
	}
	if c.HysteresisFrames < 1 {
		return errors.Wrapf(ErrInvalidConfiguration, "hysteresis_frames must be >= 1, got %d", c.HysteresisFrames)
	}
	return nil
}

// Event is the outcome of one processed mask.
type Event struct {
	// Fraction is the share of foreground pixels; shadow counts as background.
	Fraction float64
	// Motion reports whether Fraction reached MinArea on this frame.
	Motion bool
	// State is the detector state after this frame.
	State State
	// Started is true on the frame an event is confirmed.
	Started bool
	// Ended is true on the frame an event finishes.
	Ended bool
	// Duration is how long the current (or just ended) event has lasted.
	Duration time.Duration
	// Status is a human-readable summary for overlays and logs.
	Status string
}

// Detector debounces foreground fractions into motion events and tracks frame rates.
type Detector struct {
	// MotionEventCount is the number of confirmed events.
	MotionEventCount int
	// CurrentFPS is the processed frame rate over the last second.
	CurrentFPS float64
	// MotionFPS is the rate of frames with motion over the last second.
	MotionFPS float64
	// FrameProcessingTime is the caller-measured time spent on the last frame.
	FrameProcessingTime time.Duration

	mu           sync.Mutex
	config       Config
	now          func() time.Time
	state        State
	motionStart  time.Time
	motionFrames int
	quietFrames  int
	windowStart  time.Time
	windowFrames int
	windowMotion int
}

// Option customises a Detector.
type Option func(*Detector)

// WithClock replaces time.Now, for tests and offline replays.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) { d.now = now }
}

// New creates a motion detector.
//
// Arguments:
//   - config: The event thresholds.
//   - opts: Optional settings.
//
// Returns:
//   - *Detector: The detector, in the Idle state.
//   - error: An error wrapping ErrInvalidConfiguration.
//
// @example
// detector, err := motion.New(motion.DefaultConfig())
// event := detector.Process(mask)
//
//	if event.Started {
//	    log.Info("motion started", "fraction", event.Fraction)
//	}
func New(config Config, opts ...Option) (*Detector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	d := &Detector{config: config, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Process consumes the mask of one classified frame.
func (d *Detector) Process(mask *gmm.Mask) Event {
	return d.ProcessFraction(mask.ForegroundFraction())
}

// ProcessFraction consumes a precomputed foreground fraction.
func (d *Detector) ProcessFraction(fraction float64) Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	ev := Event{Fraction: fraction, Motion: fraction >= d.config.MinArea}
	d.fps(now, ev.Motion)

	switch d.state {
	case Idle:
		if ev.Motion {
			d.state = Pending
			d.motionStart = now
			d.motionFrames = 1
			d.quietFrames = 0
			d.confirm(now, &ev)
		}
	case Pending:
		if ev.Motion {
			d.motionFrames++
			d.quietFrames = 0
			d.confirm(now, &ev)
		} else {
			d.quietFrames++
			if d.quietFrames >= d.config.HysteresisFrames {
				d.state = Idle
			}
		}
	case Active:
		if ev.Motion {
			d.quietFrames = 0
		} else {
			d.quietFrames++
			if d.quietFrames >= d.config.HysteresisFrames {
				d.state = Idle
				ev.Ended = true
			}
		}
	}

	ev.State = d.state
	if d.state == Active || ev.Ended {
		ev.Duration = now.Sub(d.motionStart)
	}
	ev.Status = d.status(ev)
	return ev
}

func (d *Detector) confirm(now time.Time, ev *Event) {
	if d.motionFrames >= d.config.HysteresisFrames && now.Sub(d.motionStart) >= d.config.MinMotionDuration {
		d.state = Active
		d.MotionEventCount++
		ev.Started = true
	}
}

func (d *Detector) fps(now time.Time, motion bool) {
	if d.windowStart.IsZero() {
		d.windowStart = now
	}
	d.windowFrames++
	if motion {
		d.windowMotion++
	}
	if elapsed := now.Sub(d.windowStart); elapsed >= time.Second {
		secs := elapsed.Seconds()
		d.CurrentFPS = float64(d.windowFrames) / secs
		d.MotionFPS = float64(d.windowMotion) / secs
		d.windowStart = now
		d.windowFrames = 0
		d.windowMotion = 0
	}
}

func (d *Detector) status(ev Event) string {
	switch {
	case ev.Started:
		return fmt.Sprintf("Motion started (%.1f%%)", ev.Fraction*100)
	case ev.Ended:
		return fmt.Sprintf("Motion ended after %s", ev.Duration.Round(time.Millisecond))
	case d.state == Active:
		return fmt.Sprintf("Motion (%.1f%%, %s)", ev.Fraction*100, ev.Duration.Round(time.Millisecond))
	case d.state == Pending:
		return "Motion pending"
	default:
		return "No motion"
	}
}

// State returns the current event state.
func (d *Detector) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Config returns the detector thresholds.
func (d *Detector) Config() Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.config
}

// Reset returns the detector to Idle. Counters are kept.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = Idle
	d.motionFrames = 0
	d.quietFrames = 0
}
