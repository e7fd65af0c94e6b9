// Package preprocess - Patch preprocessing shared by the tiny-image descriptors.
package preprocess

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/chewxy/math32"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-detect/images"
)

// Config defines how a window patch is turned into a grayscale plane.
type Config struct {
	// Name of the descriptor for debugging purposes.
	Name string
	// Window is the patch size the preprocessor expects.
	Window image.Point
	// Scale is the down-scaling factor from the window to the tiny image.
	Scale float64
	// Interpolation is the resampling kernel used for down-scaling.
	Interpolation images.Interpolation
}

// Size returns the tiny-image size for the config, never smaller than 1x1.
func (c Config) Size() image.Point {
	w := int(math.Round(float64(c.Window.X) * c.Scale))
	h := int(math.Round(float64(c.Window.Y) * c.Scale))
	return image.Pt(max(w, 1), max(h, 1))
}

// Validate checks the window and scale.
func (c Config) Validate() error {
	if c.Window.X <= 0 || c.Window.Y <= 0 {
		return fmt.Errorf("invalid window size: %dx%d", c.Window.X, c.Window.Y)
	}
	if math.IsNaN(c.Scale) || c.Scale <= 0 || c.Scale > 1 {
		return fmt.Errorf("tiny image scale %v outside (0, 1]", c.Scale)
	}
	return nil
}

// Plane is a single-channel float32 image stored row-major, values in [0, 1].
type Plane struct {
	Data   []float32
	Width  int
	Height int
}

// At returns the value at (x, y).
func (p *Plane) At(x, y int) float32 {
	return p.Data[y*p.Width+x]
}

// Normalize shifts the plane to zero mean and scales it to unit L2 norm. A
// constant plane becomes all zeros.
func (p *Plane) Normalize() {
	if len(p.Data) == 0 {
		return
	}

	var sum float32
	for _, v := range p.Data {
		sum += v
	}
	mean := sum / float32(len(p.Data))

	var sq float32
	for i := range p.Data {
		p.Data[i] -= mean
		sq += p.Data[i] * p.Data[i]
	}

	norm := math32.Sqrt(sq)
	if norm == 0 {
		return
	}
	for i := range p.Data {
		p.Data[i] /= norm
	}
}

// Float64s copies the plane into a feature vector.
func (p *Plane) Float64s() []float64 {
	out := make([]float64, len(p.Data))
	for i, v := range p.Data {
		out[i] = float64(v)
	}
	return out
}

// Preprocessor turns window patches into tiny grayscale planes.
//
// It holds no mutable state after construction and is safe for concurrent use.
type Preprocessor struct {
	config Config
	size   image.Point
	logger *zap.Logger
}

// NewPreprocessor creates a new preprocessor with the given configuration.
//
// Arguments:
//   - config: The patch preprocessing configuration.
//   - logger: Debug sink; nil disables logging.
//
// Returns:
//   - *Preprocessor: The configured preprocessor.
//   - error: If the configuration is invalid.
//
// @example
//
//	p, err := NewPreprocessor(Config{
//	    Name:   "ti",
//	    Window: image.Pt(64, 128),
//	    Scale:  0.2,
//	}, nil)
//
//	plane, err := p.Process(patch) // 13x26 plane
func NewPreprocessor(config Config, logger *zap.Logger) (*Preprocessor, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "preprocess config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Interpolation == "" {
		config.Interpolation = images.InterpolationBilinear
	}
	return &Preprocessor{config: config, size: config.Size(), logger: logger}, nil
}

// Size is the output plane size.
func (p *Preprocessor) Size() image.Point {
	return p.size
}

// Process resizes patch to the tiny-image size and converts it to grayscale.
//
// Arguments:
//   - patch: A window-sized patch.
//
// Returns:
//   - *Plane: The grayscale plane with values in [0, 1].
//   - error: If the patch is nil or not window-sized.
func (p *Preprocessor) Process(patch image.Image) (*Plane, error) {
	if err := p.validateInput(patch); err != nil {
		return nil, errors.Wrap(err, "input validation failed")
	}

	small := resize.Resize(uint(p.size.X), uint(p.size.Y), patch, p.config.Interpolation.Function())
	plane := toPlane(small)

	if ce := p.logger.Check(zap.DebugLevel, "patch preprocessed"); ce != nil {
		ce.Write(
			zap.String("descriptor", p.config.Name),
			zap.Int("width", plane.Width),
			zap.Int("height", plane.Height),
		)
	}

	return plane, nil
}

func (p *Preprocessor) validateInput(patch image.Image) error {
	if patch == nil {
		return errors.New("patch is nil")
	}
	size := patch.Bounds().Size()
	if size != p.config.Window {
		return fmt.Errorf("patch is %dx%d, want %dx%d", size.X, size.Y, p.config.Window.X, p.config.Window.Y)
	}
	return nil
}

func toPlane(img image.Image) *Plane {
	b := img.Bounds()
	plane := &Plane{
		Data:   make([]float32, b.Dx()*b.Dy()),
		Width:  b.Dx(),
		Height: b.Dy(),
	}
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			plane.Data[i] = float32(g.Y) / 255
			i++
		}
	}
	return plane
}
