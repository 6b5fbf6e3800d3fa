// Package profiler - Periodic runtime and pipeline statistics for long-running segmentation.
package profiler

import (
	"context"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// MetricsCollector is polled on every sample tick for gauge values, e.g. the
// foreground fraction or the mean number of components per mixture.
type MetricsCollector interface {
	CollectMetrics() map[string]float64
}

// CollectorFunc adapts a function to MetricsCollector.
type CollectorFunc func() map[string]float64

// CollectMetrics calls f.
func (f CollectorFunc) CollectMetrics() map[string]float64 { return f() }

// Options configures a Profiler.
type Options struct {
	// ReportInterval is how often a report is logged (default: 5s).
	ReportInterval time.Duration
	// SampleInterval is how often runtime stats and collectors are sampled (default: 250ms).
	SampleInterval time.Duration
	// MaxSamples bounds every rolling window (default: 600).
	MaxSamples int
	// Logger receives the reports. Defaults to slog.Default().
	Logger *slog.Logger
}

// MetricStats summarises one metric's rolling window.
type MetricStats struct {
	Mean    float64 `json:"mean"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Samples int     `json:"samples"`
	Total   int64   `json:"total"`
}

// OperationStats summarises one operation's rolling timing window.
type OperationStats struct {
	Mean  time.Duration `json:"mean"`
	P95   time.Duration `json:"p95"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Count int64         `json:"count"`
}

// Stats is a point-in-time snapshot of the profiler.
type Stats struct {
	Uptime     time.Duration             `json:"uptime"`
	Goroutines int                       `json:"goroutines"`
	HeapAlloc  uint64                    `json:"heap_alloc"`
	Sys        uint64                    `json:"sys"`
	GCCycles   uint32                    `json:"gc_cycles"`
	Metrics    map[string]MetricStats    `json:"metrics"`
	Operations map[string]OperationStats `json:"operations"`
}

// window is a bounded series of float64 samples.
type window struct {
	values []float64
	total  int64
}

func (w *window) add(v float64, limit int) {
	w.values = append(w.values, v)
	if len(w.values) > limit {
		w.values = w.values[len(w.values)-limit:]
	}
	w.total++
}

// Profiler tracks runtime memory, custom gauges and operation timings, and logs a
// summary at a fixed interval. It is safe for concurrent use.
type Profiler struct {
	reportInterval time.Duration
	sampleInterval time.Duration
	maxSamples     int
	logger         *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.RWMutex
	startTime  time.Time
	running    bool
	memStats   runtime.MemStats
	lastGC     uint32
	metrics    map[string]*window
	operations map[string]*window
	collectors []MetricsCollector
}

// New creates a profiler. It does nothing until Start is called, but metrics and
// operations can be recorded at any time.
//
// Arguments:
//   - opts: Intervals, window size and logger. Zero values select defaults.
//
// Returns:
//   - *Profiler: The profiler.
func New(opts Options) *Profiler {
	if opts.ReportInterval <= 0 {
		opts.ReportInterval = 5 * time.Second
	}
	if opts.SampleInterval <= 0 {
		opts.SampleInterval = 250 * time.Millisecond
	}
	if opts.MaxSamples <= 0 {
		opts.MaxSamples = 600
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Profiler{
		reportInterval: opts.ReportInterval,
		sampleInterval: opts.SampleInterval,
		maxSamples:     opts.MaxSamples,
		logger:         opts.Logger,
		startTime:      time.Now(),
		metrics:        make(map[string]*window),
		operations:     make(map[string]*window),
	}
}

// Start launches the sample and report loops. They stop when ctx is cancelled or
// Stop is called. Calling Start twice is a no-op.
func (p *Profiler) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.startTime = time.Now()

	ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(2)
	go p.loop(ctx, p.sampleInterval, p.sample)
	go p.loop(ctx, p.reportInterval, p.Report)
}

// Stop ends the background loops and waits for them.
func (p *Profiler) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
}

func (p *Profiler) loop(ctx context.Context, every time.Duration, fn func()) {
	defer p.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

// AddMetricsCollector registers a collector polled on every sample tick.
func (p *Profiler) AddMetricsCollector(c MetricsCollector) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.collectors = append(p.collectors, c)
}

// RecordMetric adds one value to the named metric.
func (p *Profiler) RecordMetric(name string, value float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recordLocked(p.metrics, name, value)
}

// StartOperation begins timing an operation.
//
// Returns:
//   - func(): Call it when the operation completes.
//
// @example
// done := prof.StartOperation("gmm.process")
// mask, err := model.Process(frame)
// done()
func (p *Profiler) StartOperation(name string) func() {
	start := time.Now()
	return func() {
		p.RecordDuration(name, time.Since(start))
	}
}

// RecordDuration adds one timing to the named operation.
func (p *Profiler) RecordDuration(name string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recordLocked(p.operations, name, float64(d))
}

func (p *Profiler) recordLocked(into map[string]*window, name string, v float64) {
	w, ok := into[name]
	if !ok {
		w = &window{values: make([]float64, 0, 64)}
		into[name] = w
	}
	w.add(v, p.maxSamples)
}

func (p *Profiler) sample() {
	p.mu.RLock()
	collectors := append([]MetricsCollector(nil), p.collectors...)
	p.mu.RUnlock()

	// Collectors may lock their own state; poll them without holding ours.
	gauges := make([]map[string]float64, 0, len(collectors))
	for _, c := range collectors {
		gauges = append(gauges, c.CollectMetrics())
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	runtime.ReadMemStats(&p.memStats)
	for _, g := range gauges {
		for name, v := range g {
			p.recordLocked(p.metrics, name, v)
		}
	}
}

// Stats returns a snapshot of every metric and operation window.
func (p *Profiler) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	runtime.ReadMemStats(&p.memStats)
	return p.statsLocked()
}

func (p *Profiler) statsLocked() Stats {
	s := Stats{
		Uptime:     time.Since(p.startTime),
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  p.memStats.HeapAlloc,
		Sys:        p.memStats.Sys,
		GCCycles:   p.memStats.NumGC,
		Metrics:    make(map[string]MetricStats, len(p.metrics)),
		Operations: make(map[string]OperationStats, len(p.operations)),
	}
	for name, w := range p.metrics {
		if len(w.values) == 0 {
			continue
		}
		s.Metrics[name] = MetricStats{
			Mean:    stat.Mean(w.values, nil),
			Min:     floats.Min(w.values),
			Max:     floats.Max(w.values),
			Samples: len(w.values),
			Total:   w.total,
		}
	}
	for name, w := range p.operations {
		if len(w.values) == 0 {
			continue
		}
		sorted := append([]float64(nil), w.values...)
		sort.Float64s(sorted)
		s.Operations[name] = OperationStats{
			Mean:  time.Duration(stat.Mean(sorted, nil)),
			P95:   time.Duration(stat.Quantile(0.95, stat.Empirical, sorted, nil)),
			Min:   time.Duration(sorted[0]),
			Max:   time.Duration(sorted[len(sorted)-1]),
			Count: w.total,
		}
	}
	return s
}

// Report logs the current statistics at Info, one record for the runtime and one
// per metric and operation.
func (p *Profiler) Report() {
	p.mu.Lock()
	s := p.statsLocked()
	newGC := s.GCCycles - p.lastGC
	p.lastGC = s.GCCycles
	p.mu.Unlock()

	p.logger.Info("profiler report",
		"uptime", s.Uptime.Truncate(time.Millisecond),
		"goroutines", s.Goroutines,
		"heap_alloc", humanize.IBytes(s.HeapAlloc),
		"sys", humanize.IBytes(s.Sys),
		"gc_cycles", s.GCCycles,
		"gc_new", newGC,
	)
	for _, name := range sortedKeys(s.Metrics) {
		m := s.Metrics[name]
		p.logger.Info("profiler metric", "name", name,
			"mean", m.Mean, "min", m.Min, "max", m.Max, "samples", m.Samples)
	}
	for _, name := range sortedKeys(s.Operations) {
		o := s.Operations[name]
		p.logger.Info("profiler operation", "name", name,
			"mean", o.Mean.Truncate(time.Microsecond),
			"p95", o.P95.Truncate(time.Microsecond),
			"min", o.Min.Truncate(time.Microsecond),
			"max", o.Max.Truncate(time.Microsecond),
			"count", humanize.Comma(o.Count))
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
