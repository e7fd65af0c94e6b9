package images

import (
	"image"
	"math"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// DefaultScales is the reference pyramid: the original resolution and half of it.
var DefaultScales = []float64{1.0, 0.5}

// Interpolation names a resampling kernel used when building pyramid levels.
type Interpolation string

const (
	// InterpolationNearest is nearest-neighbour sampling.
	InterpolationNearest Interpolation = "nearest"
	// InterpolationBilinear is bilinear sampling.
	InterpolationBilinear Interpolation = "bilinear"
	// InterpolationBicubic is bicubic sampling.
	InterpolationBicubic Interpolation = "bicubic"
	// InterpolationLanczos is Lanczos-3 sampling.
	InterpolationLanczos Interpolation = "lanczos"
	// InterpolationPyrDown builds power-of-two levels with repeated Gaussian
	// pyrDown steps. It needs the gocv build; other factors use bilinear.
	InterpolationPyrDown Interpolation = "pyrdown"
)

// pyrDown halves an image with a Gaussian pyramid step. Set by the gocv build.
var pyrDown func(image.Image) (image.Image, error)

// PyrDownAvailable reports whether this build can use InterpolationPyrDown.
func PyrDownAvailable() bool {
	return pyrDown != nil
}

// ValidateInterpolation rejects unknown names and pyrdown in builds without
// OpenCV. The empty name means bilinear.
func ValidateInterpolation(i Interpolation) error {
	switch i {
	case "", InterpolationNearest, InterpolationBilinear, InterpolationBicubic, InterpolationLanczos:
		return nil
	case InterpolationPyrDown:
		if !PyrDownAvailable() {
			return errors.New("pyrdown interpolation needs a build with the gocv tag")
		}
		return nil
	default:
		return errors.Errorf("unknown interpolation %q", i)
	}
}

// Function maps the interpolation name onto the nfnt/resize kernel. Unknown or
// empty names, and pyrdown, fall back to bilinear.
func (i Interpolation) Function() resize.InterpolationFunction {
	switch i {
	case InterpolationNearest:
		return resize.NearestNeighbor
	case InterpolationBicubic:
		return resize.Bicubic
	case InterpolationLanczos:
		return resize.Lanczos3
	default:
		return resize.Bilinear
	}
}

// Level is one image of a pyramid.
type Level struct {
	// Image is the resampled image for this level.
	Image image.Image
	// Factor is the size of this level relative to the source, in (0, 1].
	Factor float64
}

// ToSource maps a rect found on this level back into source-image coordinates.
func (l Level) ToSource(r Rect) Rect {
	if l.Factor == 1 {
		return r
	}
	return r.Scale(1 / l.Factor)
}

// ValidateScales checks that every factor lies in (0, 1].
func ValidateScales(scales []float64) error {
	if len(scales) == 0 {
		return errors.New("at least one pyramid scale is required")
	}
	for _, s := range scales {
		if math.IsNaN(s) || s <= 0 || s > 1 {
			return errors.Errorf("pyramid scale %v outside (0, 1]", s)
		}
	}
	return nil
}

// BuildPyramid downsamples img once per factor.
//
// A factor of 1 reuses img as-is. Levels whose size rounds to zero pixels in
// either dimension are left out: no window can be placed on them. With
// InterpolationPyrDown, factors that are powers of one half are built by
// repeated pyrDown steps.
//
// Arguments:
//   - img: The source image.
//   - scales: Size factors in (0, 1], in scan order.
//   - interp: The resampling kernel.
//
// Returns:
//   - []Level: One level per usable factor, in the order given.
//   - error: If img is empty, a factor is invalid or the interpolation is
//     unavailable.
func BuildPyramid(img image.Image, scales []float64, interp Interpolation) ([]Level, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, errors.New("cannot build a pyramid from an empty image")
	}
	if err := ValidateScales(scales); err != nil {
		return nil, err
	}
	if err := ValidateInterpolation(interp); err != nil {
		return nil, err
	}

	b := img.Bounds()
	levels := make([]Level, 0, len(scales))
	for _, s := range scales {
		if s == 1 {
			levels = append(levels, Level{Image: img, Factor: 1})
			continue
		}

		w := int(math.Round(float64(b.Dx()) * s))
		h := int(math.Round(float64(b.Dy()) * s))
		if w < 1 || h < 1 {
			continue
		}

		if steps, ok := halvings(s); ok && interp == InterpolationPyrDown {
			level, err := pyrDownSteps(img, steps)
			if err != nil {
				return nil, errors.Wrapf(err, "pyramid level %v", s)
			}
			levels = append(levels, Level{Image: level, Factor: s})
			continue
		}

		levels = append(levels, Level{
			Image:  resize.Resize(uint(w), uint(h), img, interp.Function()),
			Factor: s,
		})
	}

	return levels, nil
}

// halvings reports how many times s halves 1, if s is a power of one half.
func halvings(s float64) (int, bool) {
	k := -math.Log2(s)
	if k < 1 || k != math.Trunc(k) {
		return 0, false
	}
	return int(k), true
}

func pyrDownSteps(img image.Image, steps int) (image.Image, error) {
	out := img
	for i := 0; i < steps; i++ {
		var err error
		if out, err = pyrDown(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ResizeTo resamples img to exactly size. An image already of that size is
// returned unchanged.
func ResizeTo(img image.Image, size image.Point, interp Interpolation) image.Image {
	if img.Bounds().Size() == size {
		return img
	}
	return resize.Resize(uint(size.X), uint(size.Y), img, interp.Function())
}
