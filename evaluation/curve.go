package evaluation

import (
	"math"
	"sort"

	"github.com/nvr-ai/go-detect/common"
)

// Point is one operating point of a precision-recall curve.
type Point struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	Threshold float64 `json:"threshold"`
}

// F is the unnormalised F1-like score p*r/(p+r) used to pick the best
// threshold; 0 when both are 0.
func (p Point) F() float64 {
	if p.Precision+p.Recall == 0 {
		return 0
	}
	return p.Precision * p.Recall / (p.Precision + p.Recall)
}

// Curve is a precision-recall curve ordered by ascending recall.
type Curve struct {
	Points           []Point `json:"points"`
	AveragePrecision float64 `json:"average_precision"`
	Smoothed         bool    `json:"smoothed"`
}

// Option configures curve construction.
type Option func(*options)

type options struct {
	smooth bool
}

// WithSmoothing replaces each precision with the highest precision reached at
// that recall or beyond, making precision non-increasing in recall.
func WithSmoothing(enabled bool) Option {
	return func(o *options) { o.smooth = enabled }
}

// NoGroundTruthCount tells NewDetectionCurve to use the number of positive
// labels as the recall denominator.
const NoGroundTruthCount = -1

// NewDetectionCurve builds the ranked precision-recall curve of a detector.
//
// Detections are ranked by descending response. Walking the ranking, each
// distinct response contributes one point whose threshold is that response:
// precision is the share of detections at or above it that are true positives,
// recall is the number of those true positives over nGroundTruth.
//
// Arguments:
//   - labels: Positive (> 0) or negative label per detection.
//   - responses: Detector response per detection, aligned with labels.
//   - nGroundTruth: Total ground-truth objects, or NoGroundTruthCount.
//   - opts: Curve options.
//
// Returns:
//   - *Curve: The curve and its average precision. No detections give an
//     empty curve with AP 0.
//   - error: A data error when labels and responses differ in length or when
//     more detections are positive than there are ground-truth objects.
func NewDetectionCurve(labels, responses []float64, nGroundTruth int, opts ...Option) (*Curve, error) {
	if len(labels) != len(responses) {
		return nil, common.DataError("%d labels but %d responses", len(labels), len(responses))
	}

	positives := 0
	for _, l := range labels {
		if l > 0 {
			positives++
		}
	}

	denominator, external := nGroundTruth, nGroundTruth >= 0
	if !external {
		denominator = positives
	} else if positives > nGroundTruth {
		return nil, common.DataError("%d true positives exceed %d ground-truth objects", positives, nGroundTruth)
	}

	order := make([]int, len(labels))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return responses[order[a]] > responses[order[b]]
	})

	points := make([]Point, 0, len(order))
	tp, fp := 0, 0
	for k, idx := range order {
		if labels[idx] > 0 {
			tp++
		} else {
			fp++
		}
		if k+1 < len(order) && responses[order[k+1]] == responses[idx] {
			continue
		}
		points = append(points, Point{
			Precision: precision(tp, fp),
			Recall:    recall(tp, denominator, external),
			Threshold: responses[idx],
		})
	}

	return finish(points, opts), nil
}

// NewClassificationCurve builds the curve of a whole-image classifier.
//
// Item i is correct when gt[i] == preds[i]. Items are accumulated in the given
// order, one point per item, with the total item count as recall denominator
// and preds[i] as threshold.
//
// Returns:
//   - *Curve: The curve; empty for no items.
//   - error: A data error when gt and preds differ in length.
func NewClassificationCurve(gt, preds []float64, opts ...Option) (*Curve, error) {
	if len(gt) != len(preds) {
		return nil, common.DataError("%d ground-truth labels but %d predictions", len(gt), len(preds))
	}

	points := make([]Point, 0, len(gt))
	tp, fp := 0, 0
	for i := range gt {
		if gt[i] == preds[i] {
			tp++
		} else {
			fp++
		}
		points = append(points, Point{
			Precision: precision(tp, fp),
			Recall:    float64(tp) / float64(len(gt)),
			Threshold: preds[i],
		})
	}

	return finish(points, opts), nil
}

func finish(points []Point, opts []Option) *Curve {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	sort.SliceStable(points, func(a, b int) bool {
		return points[a].Recall < points[b].Recall
	})
	if o.smooth {
		smooth(points)
	}

	return &Curve{
		Points:           points,
		AveragePrecision: AveragePrecision(points),
		Smoothed:         o.smooth,
	}
}

// precision is tp/(tp+fp), or 1 when nothing was predicted positive.
func precision(tp, fp int) float64 {
	if tp+fp == 0 {
		return 1
	}
	return float64(tp) / float64(tp+fp)
}

// recall is tp/denominator. With nothing to find it is 1 when the denominator
// was derived from the labels, and 0 for an explicit zero ground-truth count.
func recall(tp, denominator int, external bool) float64 {
	if denominator == 0 {
		if external {
			return 0
		}
		return 1
	}
	return float64(tp) / float64(denominator)
}

func smooth(points []Point) {
	for i := len(points) - 2; i >= 0; i-- {
		points[i].Precision = math.Max(points[i].Precision, points[i+1].Precision)
	}
}

// AveragePrecision integrates precision over recall with the trapezoidal rule.
//
// Points must be ordered by ascending recall. Integration starts from the
// operating point where nothing is predicted positive: recall 0, precision 1.
// Each step adds Δrecall*precisionPrev + Δrecall*Δprecision/2.
func AveragePrecision(points []Point) float64 {
	prev := Point{Precision: 1, Recall: 0}
	ap := 0.0
	for _, p := range points {
		dr := p.Recall - prev.Recall
		dp := p.Precision - prev.Precision
		ap += dr*prev.Precision + dr*dp/2
		prev = p
	}
	return ap
}

// BestThreshold returns the point with the highest F; the first one wins ties.
// ok is false for an empty curve.
func (c *Curve) BestThreshold() (best Point, ok bool) {
	bestF := math.Inf(-1)
	for _, p := range c.Points {
		if f := p.F(); f > bestF {
			best, bestF, ok = p, f, true
		}
	}
	return best, ok
}
