// Package images - Image processing utilities
package images

import (
	"fmt"
	"image"
	"math"
)

// Rect is an axis-aligned window in pixel coordinates.
//
// Unlike image.Rectangle it is stored as origin plus size, which is the form
// detections are scanned, persisted and compared in.
type Rect struct {
	X      int `json:"x"      yaml:"x"`
	Y      int `json:"y"      yaml:"y"`
	Width  int `json:"width"  yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// NewRect builds a Rect from its origin and size.
func NewRect(x, y, width, height int) Rect {
	return Rect{X: x, Y: y, Width: width, Height: height}
}

// FromRectangle converts an image.Rectangle into a Rect.
func FromRectangle(r image.Rectangle) Rect {
	r = r.Canon()
	return Rect{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Rectangle converts the Rect into an image.Rectangle.
func (r Rect) Rectangle() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Right returns the exclusive right edge.
func (r Rect) Right() int { return r.X + r.Width }

// Bottom returns the exclusive bottom edge.
func (r Rect) Bottom() int { return r.Y + r.Height }

// Empty reports whether the rect has no area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Area returns width*height, or 0 for an empty rect.
func (r Rect) Area() int {
	if r.Empty() {
		return 0
	}
	return r.Width * r.Height
}

// Intersect returns the overlapping region of r and o. The result is the zero
// Rect when they do not overlap.
func (r Rect) Intersect(o Rect) Rect {
	x1 := max(r.X, o.X)
	y1 := max(r.Y, o.Y)
	x2 := min(r.Right(), o.Right())
	y2 := min(r.Bottom(), o.Bottom())
	if x2 <= x1 || y2 <= y1 {
		return Rect{}
	}
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// UnionArea returns the area covered by r and o together.
func (r Rect) UnionArea(o Rect) int {
	return r.Area() + o.Area() - r.Intersect(o).Area()
}

// Scale multiplies origin and size by factor, rounding to the nearest pixel.
//
// Arguments:
//   - factor: The multiplier, e.g. 2 to map a half-resolution window back to
//     full resolution.
//
// Returns:
//   - Rect: The scaled rect.
func (r Rect) Scale(factor float64) Rect {
	return Rect{
		X:      int(math.Round(float64(r.X) * factor)),
		Y:      int(math.Round(float64(r.Y) * factor)),
		Width:  int(math.Round(float64(r.Width) * factor)),
		Height: int(math.Round(float64(r.Height) * factor)),
	}
}

// Expand grows the rect by dx on the left and right and by dy on the top and bottom.
func (r Rect) Expand(dx, dy int) Rect {
	return Rect{X: r.X - dx, Y: r.Y - dy, Width: r.Width + 2*dx, Height: r.Height + 2*dy}
}

// Contains reports whether o lies entirely inside r. Shared edges count as inside.
func (r Rect) Contains(o Rect) bool {
	return o.X >= r.X && o.Y >= r.Y && o.Right() <= r.Right() && o.Bottom() <= r.Bottom()
}

// String renders the rect as "x y width height".
func (r Rect) String() string {
	return fmt.Sprintf("%d %d %d %d", r.X, r.Y, r.Width, r.Height)
}

// CalculateIoU returns the Intersection over Union of two rects.
//
// IoU = Area of Intersection / Area of Union
//
//   - 1.0 means the rects are identical.
//   - 0.0 means they don't overlap at all (touching edges included).
//
// The intersection corners are the maximum of the two top-left corners and the
// minimum of the two bottom-right corners. When the resulting width or height is
// zero or negative there is no overlap and 0 is returned before any division, so
// two empty rects never produce NaN.
//
// Arguments:
//   - r: The first rect.
//   - o: The other rect to compare against.
//
// Returns:
//   - float64: A value in [0, 1], symmetric in its arguments.
//
// Example Usage:
// ```go
//
//	a := NewRect(0, 0, 10, 10)
//	b := NewRect(5, 5, 10, 10)
//
//	iou := CalculateIoU(a, b) // 25 / (100 + 100 - 25) = 0.142857
//
// ```
func CalculateIoU(r, o Rect) float64 {
	inter := r.Intersect(o).Area()
	if inter == 0 {
		return 0.0
	}

	// Inclusion-exclusion: Union(A, B) = Area(A) + Area(B) - Intersection(A, B)
	union := r.Area() + o.Area() - inter

	return float64(inter) / float64(union)
}
