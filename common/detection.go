// Package common - Detection entity and error taxonomy shared across the pipeline.
package common

import (
	"strconv"
	"strings"

	"github.com/nvr-ai/go-detect/images"
)

// DetectionFields is the number of whitespace separated fields in a serialized
// detection: x y width height response.
const DetectionFields = 5

// Detection is one final detection: a window and the classifier response for it.
// Values are never mutated after creation; copy instead.
type Detection struct {
	Rect     images.Rect `json:"rect"     yaml:"rect"`
	Response float64     `json:"response" yaml:"response"`
}

// NewDetection builds a Detection from its window and response.
func NewDetection(x, y, width, height int, response float64) Detection {
	return Detection{Rect: images.NewRect(x, y, width, height), Response: response}
}

// Area returns the window area, 0 for an empty window.
func (d Detection) Area() int {
	return d.Rect.Area()
}

// RelativeOverlap is the Jaccard index (IoU) of the two windows.
//
// It is symmetric, lies in [0, 1], is 0 for disjoint windows and exactly 1 for
// equal windows of non-zero area.
func (d Detection) RelativeOverlap(other Detection) float64 {
	return images.CalculateIoU(d.Rect, other.Rect)
}

// String renders the detection in results-file form: "x y width height response".
func (d Detection) String() string {
	var b strings.Builder
	b.WriteString(d.Rect.String())
	b.WriteByte(' ')
	b.WriteString(strconv.FormatFloat(d.Response, 'g', -1, 64))
	return b.String()
}

// ParseDetection reads the five fields written by Detection.String.
//
// Arguments:
//   - fields: x, y, width, height, response.
//
// Returns:
//   - Detection: The parsed detection.
//   - error: A data error if a field is missing or not numeric.
func ParseDetection(fields []string) (Detection, error) {
	if len(fields) != DetectionFields {
		return Detection{}, DataError("detection needs %d fields, got %d", DetectionFields, len(fields))
	}

	var coords [4]int
	for i := range coords {
		v, err := strconv.Atoi(fields[i])
		if err != nil {
			return Detection{}, WrapData(err, "detection coordinate")
		}
		coords[i] = v
	}

	response, err := strconv.ParseFloat(fields[4], 64)
	if err != nil {
		return Detection{}, WrapData(err, "detection response")
	}

	return NewDetection(coords[0], coords[1], coords[2], coords[3], response), nil
}

// Rects returns the windows of dets in order.
func Rects(dets []Detection) []images.Rect {
	rects := make([]images.Rect, len(dets))
	for i, d := range dets {
		rects[i] = d.Rect
	}
	return rects
}
