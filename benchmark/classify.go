package benchmark

import (
	"context"
	"image"
	"math/rand"
	"runtime"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nvr-ai/go-detect/common"
	"github.com/nvr-ai/go-detect/dataset"
	"github.com/nvr-ai/go-detect/evaluation"
	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/profiler"
)

const (
	// MaxBackgroundOverlap is the largest share of a background window's area
	// that may fall inside any ground-truth object.
	MaxBackgroundOverlap = 0.1
	// backgroundAttempts bounds the random draws per background window.
	backgroundAttempts = 50
)

// PatchClassifier classifies single patches. inference.Engine satisfies it.
type PatchClassifier interface {
	Classify(patch image.Image) (score float64, sign int, err error)
	Window() image.Point
}

// ClassificationReport is the outcome of a patch classification run.
type ClassificationReport struct {
	Summary dataset.Summary `json:"summary"`
	// GroundTruth is +1 for object patches and -1 for background patches.
	GroundTruth []float64 `json:"ground_truth"`
	// Predictions is the predicted sign of each patch.
	Predictions []float64 `json:"predictions"`
	// Scores is the classifier score of each patch.
	Scores []float64 `json:"scores"`
	// Accuracy is the share of patches whose prediction equals the ground truth.
	Accuracy float64           `json:"accuracy"`
	Curve    *evaluation.Curve `json:"curve"`
	Metrics  PerformanceMetrics `json:"metrics"`
}

type patchResult struct {
	truth []float64
	pred  []float64
	score []float64
}

// RunClassification crops every ground-truth object of ds, plus as many random
// background windows per image as it has objects, and classifies each patch.
//
// Background windows have the classifier window size, lie inside the image and
// overlap no object by more than MaxBackgroundOverlap. Sampling is seeded with
// cfg.BackgroundSeed plus the image index, so results do not depend on the
// worker count. Per image, object patches come first in annotation order.
//
// Arguments:
//   - ctx: Cancels the run.
//   - clf: The patch classifier.
//   - ds: The annotated images.
//
// Returns:
//   - *ClassificationReport: Labels, predictions and the classification curve.
//   - error: A data error for an unreadable image or a classifier error.
func (s *Suite) RunClassification(ctx context.Context, clf PatchClassifier, ds *dataset.Dataset) (*ClassificationReport, error) {
	startMem := memorySnapshot()
	start := time.Now()

	results := make([]patchResult, ds.Len())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i := 0; i < ds.Len(); i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := s.classifyImage(clf, ds.Filename(i), ds.GroundTruth(i), s.cfg.BackgroundSeed+int64(i))
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &ClassificationReport{Summary: ds.Summary()}
	for _, r := range results {
		report.GroundTruth = append(report.GroundTruth, r.truth...)
		report.Predictions = append(report.Predictions, r.pred...)
		report.Scores = append(report.Scores, r.score...)
	}

	correct := 0
	for i := range report.GroundTruth {
		if report.GroundTruth[i] == report.Predictions[i] {
			correct++
		}
	}
	if n := len(report.GroundTruth); n > 0 {
		report.Accuracy = float64(correct) / float64(n)
	}

	done := s.profiler.StartOperation(profiler.StageCurve)
	curve, err := evaluation.NewClassificationCurve(report.GroundTruth, report.Predictions,
		evaluation.WithSmoothing(s.cfg.Evaluation.Smooth))
	done()
	if err != nil {
		return nil, err
	}
	report.Curve = curve

	s.logger.Info("classified",
		zap.Int("images", ds.Len()),
		zap.Int("patches", len(report.GroundTruth)),
		zap.Float64("accuracy", report.Accuracy),
		zap.Float64("average_precision", curve.AveragePrecision),
	)

	total := time.Since(start)
	report.Metrics = PerformanceMetrics{
		Timestamp:     start,
		TotalDuration: total,
		Stages:        s.profiler.Report(),
		MemoryStats:   newMemoryMetrics(startMem, memorySnapshot()),
		CPUStats:      CPUMetrics{NumCPU: runtime.NumCPU(), Workers: s.cfg.Workers},
	}
	if total > 0 {
		report.Metrics.ImagesPerSecond = float64(ds.Len()) / total.Seconds()
	}
	return report, nil
}

func (s *Suite) classifyImage(clf PatchClassifier, path string, gt []common.Detection, seed int64) (patchResult, error) {
	var out patchResult

	done := s.profiler.StartOperation(profiler.StageLoad)
	img, err := s.load(path)
	done()
	if err != nil {
		return out, common.WrapData(err, "load image")
	}
	bounds := images.NewRect(0, 0, img.Bounds().Dx(), img.Bounds().Dy())

	classify := func(r images.Rect, truth float64) error {
		score, sign, err := clf.Classify(images.Crop(img, r))
		if err != nil {
			return errors.Wrapf(err, "classify %v in %s", r, path)
		}
		out.truth = append(out.truth, truth)
		out.pred = append(out.pred, float64(sign))
		out.score = append(out.score, score)
		return nil
	}

	started := time.Now()
	for _, d := range gt {
		r := d.Rect.Intersect(bounds)
		if r.Empty() {
			s.logger.Debug("object outside image", zap.String("file", path), zap.Stringer("rect", d.Rect))
			continue
		}
		if err := classify(r, evaluation.Positive); err != nil {
			return out, err
		}
	}

	for _, r := range sampleBackground(bounds, clf.Window(), gt, len(gt), newRand(seed)) {
		if err := classify(r, evaluation.Negative); err != nil {
			return out, err
		}
	}
	s.profiler.Record(profiler.StageDetect, time.Since(started))

	return out, nil
}

// sampleBackground draws up to n windows of size window inside bounds that
// overlap no object by more than MaxBackgroundOverlap.
func sampleBackground(bounds images.Rect, window image.Point, gt []common.Detection, n int, rng *rand.Rand) []images.Rect {
	maxX := bounds.Width - window.X
	maxY := bounds.Height - window.Y
	if n <= 0 || maxX < 0 || maxY < 0 {
		return nil
	}

	var out []images.Rect
	for len(out) < n {
		found := false
		for attempt := 0; attempt < backgroundAttempts; attempt++ {
			r := images.NewRect(bounds.X+rng.Intn(maxX+1), bounds.Y+rng.Intn(maxY+1), window.X, window.Y)
			if isBackground(r, gt) {
				out = append(out, r)
				found = true
				break
			}
		}
		if !found {
			break
		}
	}
	return out
}

// isBackground measures overlap against the window's own area rather than the
// union, so a small window inside a large object is rejected.
func isBackground(r images.Rect, gt []common.Detection) bool {
	limit := MaxBackgroundOverlap * float64(r.Area())
	for _, d := range gt {
		if float64(r.Intersect(d.Rect).Area()) > limit {
			return false
		}
	}
	return true
}

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}
