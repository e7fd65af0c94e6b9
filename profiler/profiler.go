// Package profiler - Per-stage timing of the detection pipeline.
package profiler

import (
	"sort"
	"sync"
	"time"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"
)

// Stage names recorded by the benchmark suite.
const (
	StageLoad   = "load"
	StageDetect = "detect"
	StageMatch  = "match"
	StageCurve  = "curve"
)

// TimeTracker accumulates the durations of one named operation.
type TimeTracker struct {
	name      string
	durations []float64
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	count     int64
}

func newTimeTracker(name string, first time.Duration) *TimeTracker {
	return &TimeTracker{name: name, minTime: first, maxTime: first}
}

func (t *TimeTracker) add(d time.Duration) {
	t.durations = append(t.durations, float64(d))
	t.totalTime += d
	t.count++
	if d < t.minTime {
		t.minTime = d
	}
	if d > t.maxTime {
		t.maxTime = d
	}
}

// StageStats is a snapshot of one operation's timings.
type StageStats struct {
	Name  string        `json:"name"  yaml:"name"`
	Count int64         `json:"count" yaml:"count"`
	Total time.Duration `json:"total" yaml:"total"`
	Mean  time.Duration `json:"mean"  yaml:"mean"`
	Min   time.Duration `json:"min"   yaml:"min"`
	Max   time.Duration `json:"max"   yaml:"max"`
	P50   time.Duration `json:"p50"   yaml:"p50"`
	P95   time.Duration `json:"p95"   yaml:"p95"`
}

func (t *TimeTracker) snapshot() StageStats {
	s := StageStats{
		Name:  t.name,
		Count: t.count,
		Total: t.totalTime,
		Min:   t.minTime,
		Max:   t.maxTime,
	}
	if mean, err := stats.Mean(t.durations); err == nil {
		s.Mean = time.Duration(mean)
	}
	s.P50 = percentile(t.durations, 50, t.maxTime)
	s.P95 = percentile(t.durations, 95, t.maxTime)
	return s
}

// percentile falls back to fallback when there are too few samples to
// interpolate the requested rank.
func percentile(values []float64, p float64, fallback time.Duration) time.Duration {
	v, err := stats.Percentile(values, p)
	if err != nil {
		return fallback
	}
	return time.Duration(v)
}

// Profiler records operation timings. It is safe for concurrent use.
type Profiler struct {
	mu             sync.Mutex
	startTime      time.Time
	operationTimes map[string]*TimeTracker
}

// New creates an empty profiler.
func New() *Profiler {
	return &Profiler{
		startTime:      time.Now(),
		operationTimes: make(map[string]*TimeTracker),
	}
}

// StartOperation begins timing an operation.
//
// Arguments:
//   - name: The name of the operation to track.
//
// Returns:
//   - func(): Call when the operation completes.
//
// Example:
//
//	done := p.StartOperation(profiler.StageDetect)
//	dets, err := engine.Detect(ctx, img)
//	done()
func (p *Profiler) StartOperation(name string) func() {
	start := time.Now()
	return func() {
		p.Record(name, time.Since(start))
	}
}

// Record adds one duration to the named operation.
func (p *Profiler) Record(name string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tracker, ok := p.operationTimes[name]
	if !ok {
		tracker = newTimeTracker(name, d)
		p.operationTimes[name] = tracker
	}
	tracker.add(d)
}

// Stats returns the snapshot of one operation; ok is false if it was never recorded.
func (p *Profiler) Stats(name string) (s StageStats, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	tracker, ok := p.operationTimes[name]
	if !ok {
		return StageStats{}, false
	}
	return tracker.snapshot(), true
}

// Report returns a snapshot of every operation, sorted by name.
func (p *Profiler) Report() []StageStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]StageStats, 0, len(p.operationTimes))
	for _, tracker := range p.operationTimes {
		out = append(out, tracker.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Uptime is the time since the profiler was created.
func (p *Profiler) Uptime() time.Duration {
	return time.Since(p.startTime)
}

// Log writes one info line per operation, then the profiler uptime.
func (p *Profiler) Log(logger *zap.Logger) {
	report := p.Report()
	for _, s := range report {
		logger.Info("stage timings",
			zap.String("stage", s.Name),
			zap.Int64("count", s.Count),
			zap.Duration("total", s.Total),
			zap.Duration("mean", s.Mean),
			zap.Duration("p95", s.P95),
			zap.Duration("max", s.Max),
		)
	}
	logger.Info("profiler uptime",
		zap.Int("stages", len(report)),
		zap.Duration("uptime", p.Uptime()),
	)
}
