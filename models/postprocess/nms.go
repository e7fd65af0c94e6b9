package postprocess

import (
	"sort"

	"github.com/nvr-ai/go-detect/images"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	// IoUThreshold is the overlap above which the lower scored box is suppressed.
	IoUThreshold float64 `json:"iou_threshold" yaml:"iou_threshold"`
}

// ApplyGreedyNMS performs standard greedy Non-Maximum Suppression.
//
// The highest scored remaining candidate is kept and every remaining candidate
// overlapping it by more than IoUThreshold is discarded, until none remain.
// Ties in score keep input order.
//
// Arguments:
//   - candidates: Candidates in any order; the slice is not modified.
//   - config: NMS configuration.
//
// Returns:
//   - []Candidate: The kept candidates by descending score. Nil for no input.
func ApplyGreedyNMS(candidates []Candidate, config NMSConfig) []Candidate {
	n := len(candidates)
	if n == 0 {
		return nil
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return candidates[order[a]].Score > candidates[order[b]].Score
	})

	filtered := make([]Candidate, 0, n)
	used := make([]bool, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}

		anchor := candidates[order[i]]
		filtered = append(filtered, anchor)
		used[i] = true

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}
			if images.CalculateIoU(anchor.Box, candidates[order[j]].Box) > config.IoUThreshold {
				used[j] = true
			}
		}
	}

	return filtered
}
