// Package tiny - Tiny-image descriptor: the window shrunk to a few hundred
// grayscale pixels, zero-mean and unit-norm.
package tiny

import (
	"image"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-detect/models/model"
	"github.com/nvr-ai/go-detect/models/model/preprocess"
)

// DefaultScale is the reference down-scaling factor.
const DefaultScale = 0.2

// Descriptor computes tiny-image features.
type Descriptor struct {
	pre *preprocess.Preprocessor
	dim int
}

// New builds a tiny-image descriptor for windows of the given size.
//
// Arguments:
//   - cfg: Window size and scale; a zero scale selects DefaultScale.
//   - logger: Debug sink, may be nil.
//
// Returns:
//   - *Descriptor: The descriptor.
//   - error: If the window or scale is invalid.
func New(cfg model.Config, logger *zap.Logger) (*Descriptor, error) {
	pre, err := newPreprocessor(model.DescriptorNameTinyImage, cfg, logger)
	if err != nil {
		return nil, err
	}
	size := pre.Size()
	return &Descriptor{pre: pre, dim: size.X * size.Y}, nil
}

// Name implements model.Descriptor.
func (d *Descriptor) Name() model.Name { return model.DescriptorNameTinyImage }

// Dimension implements model.Descriptor.
func (d *Descriptor) Dimension() int { return d.dim }

// Compute implements model.Descriptor.
func (d *Descriptor) Compute(patch image.Image) ([]float64, error) {
	plane, err := d.pre.Process(patch)
	if err != nil {
		return nil, errors.Wrap(err, "tiny image")
	}
	plane.Normalize()
	return plane.Float64s(), nil
}

func newPreprocessor(name model.Name, cfg model.Config, logger *zap.Logger) (*preprocess.Preprocessor, error) {
	scale := cfg.Scale
	if scale == 0 {
		scale = DefaultScale
	}
	return preprocess.NewPreprocessor(preprocess.Config{
		Name:   string(name),
		Window: cfg.Window,
		Scale:  scale,
	}, logger)
}
