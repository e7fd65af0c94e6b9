//go:build gocv

package images

import (
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

func init() {
	pyrDown = PyrDown
}

// LoadMat decodes path with OpenCV instead of the pure Go decoders.
func LoadMat(path string) (image.Image, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	defer mat.Close()
	if mat.Empty() {
		return nil, errors.Errorf("opencv could not read image %s", path)
	}
	img, err := mat.ToImage()
	if err != nil {
		return nil, errors.Wrapf(err, "convert %s", path)
	}
	return img, nil
}

// PyrDown blurs img with a Gaussian kernel and halves it, the way cv::pyrDown
// builds a classic image pyramid. It is a drop-in for a 0.5 pyramid level.
func PyrDown(img image.Image) (image.Image, error) {
	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, errors.Wrap(err, "image to mat")
	}
	defer src.Close()

	dst := gocv.NewMat()
	defer dst.Close()

	gocv.PyrDown(src, &dst, image.Point{}, gocv.BorderDefault)

	out, err := dst.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "mat to image")
	}
	return out, nil
}

// GroupRectanglesCV runs cv::groupRectangles on rects. Scores are not carried
// through OpenCV, so it is only useful for cross-checking cluster geometry.
func GroupRectanglesCV(rects []Rect, groupThreshold int, eps float64) []Rect {
	in := make([]image.Rectangle, len(rects))
	for i, r := range rects {
		in[i] = r.Rectangle()
	}

	out := gocv.GroupRectangles(in, groupThreshold, eps)

	grouped := make([]Rect, len(out))
	for i, r := range out {
		grouped[i] = FromRectangle(r)
	}
	return grouped
}
