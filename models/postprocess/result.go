// Package postprocess - Reduction of raw window hits into final detections.
package postprocess

import "github.com/nvr-ai/go-detect/images"

// Candidate is a scored window, either a raw hit from the scanner or the
// representative of a reduced cluster.
type Candidate struct {
	// Box is the window in source-image coordinates.
	Box images.Rect
	// Score is the classifier response. For a cluster it is the best member score.
	Score float64
	// Scale is the pyramid factor the window was found at. For a cluster it is
	// the factor of the best member.
	Scale float64
	// Support is the number of raw hits the candidate stands for; 1 for a raw hit.
	Support int
}

// Rects returns the boxes of candidates in order.
func Rects(candidates []Candidate) []images.Rect {
	rects := make([]images.Rect, len(candidates))
	for i, c := range candidates {
		rects[i] = c.Box
	}
	return rects
}
