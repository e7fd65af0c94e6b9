// Package evaluation - Detection quality: ground-truth matching, precision-recall
// curves and average precision.
package evaluation

import (
	"math"
	"sort"

	"github.com/samber/lo"

	"github.com/nvr-ai/go-detect/common"
)

const (
	// Positive labels a found detection that matched a ground-truth object.
	Positive = 1.0
	// Negative labels a found detection that matched nothing.
	Negative = -1.0
	// Unmatched is the Matches entry of a detection with no ground truth.
	Unmatched = -1
)

// ImageLabels is the outcome of matching one image.
type ImageLabels struct {
	// Labels holds Positive or Negative for each found detection, in the
	// order the detections were given.
	Labels []float64
	// Responses holds each found detection's response, aligned with Labels.
	Responses []float64
	// Matches holds the ground-truth index each detection took, or Unmatched.
	Matches []int
}

// ComputeLabels greedily matches found detections to ground truth.
//
// Detections are visited by descending response (ties keep input order). Each
// one takes the untaken ground-truth box it overlaps most, provided the overlap
// is at least overlapThresh; the first such box wins ties. A taken box is never
// matched again, so each ground-truth object yields at most one true positive.
//
// Arguments:
//   - gt: Ground-truth boxes of the image; responses are ignored.
//   - found: Detections of the image.
//   - overlapThresh: Minimum relative overlap for a match.
//
// Returns:
//   - ImageLabels: Labels, responses and matches aligned with found.
func ComputeLabels(gt, found []common.Detection, overlapThresh float64) ImageLabels {
	out := ImageLabels{
		Labels:    make([]float64, len(found)),
		Responses: make([]float64, len(found)),
		Matches:   make([]int, len(found)),
	}

	order := lo.Range(len(found))
	sort.SliceStable(order, func(a, b int) bool {
		return found[order[a]].Response > found[order[b]].Response
	})

	taken := make([]bool, len(gt))
	for _, idx := range order {
		det := found[idx]
		best, bestOverlap := Unmatched, math.Inf(-1)
		for g, truth := range gt {
			if taken[g] {
				continue
			}
			ov := det.RelativeOverlap(truth)
			if ov >= overlapThresh && ov > bestOverlap {
				best, bestOverlap = g, ov
			}
		}

		out.Responses[idx] = det.Response
		out.Matches[idx] = best
		if best == Unmatched {
			out.Labels[idx] = Negative
			continue
		}
		taken[best] = true
		out.Labels[idx] = Positive
	}

	return out
}

// LabelSet is the dataset-wide concatenation of per-image labels.
type LabelSet struct {
	Labels       []float64 `json:"labels"`
	Responses    []float64 `json:"responses"`
	NGroundTruth int       `json:"n_ground_truth"`
}

// TruePositives counts the Positive labels.
func (s LabelSet) TruePositives() int {
	return lo.CountBy(s.Labels, func(l float64) bool { return l > 0 })
}

// Evaluate matches every image and concatenates the results.
//
// Arguments:
//   - gt: Ground truth per image.
//   - found: Detections per image, aligned with gt.
//   - overlapThresh: Minimum relative overlap for a match, in [0, 1].
//
// Returns:
//   - LabelSet: Labels and responses in image order, and the total number of
//     ground-truth boxes (the recall denominator).
//   - error: A data error when gt and found differ in length, or a
//     configuration error for an out-of-range threshold.
func Evaluate(gt, found [][]common.Detection, overlapThresh float64) (LabelSet, error) {
	if math.IsNaN(overlapThresh) || overlapThresh < 0 || overlapThresh > 1 {
		return LabelSet{}, common.ConfigError("overlap threshold must lie in [0, 1], got %v", overlapThresh)
	}
	if len(gt) != len(found) {
		return LabelSet{}, common.DataError("ground truth covers %d images but detections cover %d", len(gt), len(found))
	}

	var set LabelSet
	for i := range gt {
		img := ComputeLabels(gt[i], found[i], overlapThresh)
		set.Labels = append(set.Labels, img.Labels...)
		set.Responses = append(set.Responses, img.Responses...)
		set.NGroundTruth += len(gt[i])
	}
	return set, nil
}
