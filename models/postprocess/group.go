package postprocess

import (
	"math"

	"github.com/nvr-ai/go-detect/images"
)

// GroupConfig parameterises GroupRectangles.
type GroupConfig struct {
	// Eps is the relative edge tolerance for two windows to be considered the
	// same object, e.g. 0.2.
	Eps float64 `json:"eps" yaml:"eps"`
	// GroupThreshold is the cluster size a cluster must exceed to absorb
	// smaller clusters nested inside it. Zero or less disables grouping.
	GroupThreshold int `json:"group_threshold" yaml:"group_threshold"`
	// StrictCutoff additionally drops every cluster whose size does not exceed
	// GroupThreshold, which is what cv::groupRectangles does.
	StrictCutoff bool `json:"strict_cutoff" yaml:"strict_cutoff"`
}

// Similar reports whether a and b are within eps-relative distance on all four
// edges. The tolerance is eps times the mean of the smaller width and the
// smaller height, so the relation is symmetric.
func Similar(a, b images.Rect, eps float64) bool {
	delta := eps * float64(min(a.Width, b.Width)+min(a.Height, b.Height)) * 0.5
	return math.Abs(float64(a.X-b.X)) <= delta &&
		math.Abs(float64(a.Y-b.Y)) <= delta &&
		math.Abs(float64(a.Right()-b.Right())) <= delta &&
		math.Abs(float64(a.Bottom()-b.Bottom())) <= delta
}

// Partition splits rects into equivalence classes of the transitive closure
// of Similar.
//
// Returns:
//   - []int: The class label of each rect. Labels are dense and numbered in
//     order of first appearance.
//   - int: The number of classes.
func Partition(rects []images.Rect, eps float64) ([]int, int) {
	uf := newUnionFind(len(rects))
	for i := range rects {
		for j := i + 1; j < len(rects); j++ {
			if Similar(rects[i], rects[j], eps) {
				uf.union(i, j)
			}
		}
	}

	labels := make([]int, len(rects))
	ids := make(map[int]int)
	for i := range rects {
		root := uf.find(i)
		id, ok := ids[root]
		if !ok {
			id = len(ids)
			ids[root] = id
		}
		labels[i] = id
	}
	return labels, len(ids)
}

type cluster struct {
	x, y, w, h float64
	n          int
	best       int
}

// GroupRectangles collapses overlapping candidates into one per object.
//
// Candidates are partitioned with Partition. Each class becomes its mean
// rectangle, carrying the highest member score and the class size as Support.
// A class rectangle r1 of size n1 is then dropped when another class rectangle
// r2 of size n2 > GroupThreshold contains it once r2 is grown by Eps of its size
// on every side, and either n2 > max(3, n1) or n1 < 3.
//
// A GroupThreshold of zero or less, or no candidates, returns candidates as-is.
//
// Arguments:
//   - candidates: Raw hits in source-image coordinates.
//   - cfg: Similarity tolerance and absorption threshold.
//
// Returns:
//   - []Candidate: The surviving cluster representatives, in order of each
//     cluster's first member. Never more than the number of clusters.
func GroupRectangles(candidates []Candidate, cfg GroupConfig) []Candidate {
	if cfg.GroupThreshold <= 0 || len(candidates) == 0 {
		return candidates
	}

	labels, n := Partition(Rects(candidates), cfg.Eps)

	clusters := make([]cluster, n)
	for i := range clusters {
		clusters[i].best = -1
	}
	for i, c := range candidates {
		cl := &clusters[labels[i]]
		cl.x += float64(c.Box.X)
		cl.y += float64(c.Box.Y)
		cl.w += float64(c.Box.Width)
		cl.h += float64(c.Box.Height)
		cl.n++
		if cl.best < 0 || c.Score > candidates[cl.best].Score {
			cl.best = i
		}
	}

	rects := make([]images.Rect, n)
	for i, cl := range clusters {
		s := 1 / float64(cl.n)
		rects[i] = images.NewRect(
			int(math.Round(cl.x*s)),
			int(math.Round(cl.y*s)),
			int(math.Round(cl.w*s)),
			int(math.Round(cl.h*s)),
		)
	}

	out := make([]Candidate, 0, n)
	for i, cl := range clusters {
		n1 := cl.n
		if cfg.StrictCutoff && n1 <= cfg.GroupThreshold {
			continue
		}
		if absorbed(i, rects, clusters, cfg) {
			continue
		}

		best := candidates[cl.best]
		out = append(out, Candidate{
			Box:     rects[i],
			Score:   best.Score,
			Scale:   best.Scale,
			Support: n1,
		})
	}

	return out
}

// absorbed reports whether cluster i lies inside a denser cluster.
func absorbed(i int, rects []images.Rect, clusters []cluster, cfg GroupConfig) bool {
	r1, n1 := rects[i], clusters[i].n
	for j, r2 := range rects {
		n2 := clusters[j].n
		if j == i || n2 <= cfg.GroupThreshold {
			continue
		}
		dx := int(math.Round(float64(r2.Width) * cfg.Eps))
		dy := int(math.Round(float64(r2.Height) * cfg.Eps))
		if r2.Expand(dx, dy).Contains(r1) && (n2 > max(3, n1) || n1 < 3) {
			return true
		}
	}
	return false
}

type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	default:
		u.parent[rb] = ra
		u.rank[ra]++
	}
}
