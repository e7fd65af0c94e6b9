// Package tinygrad - Tiny-image gradient descriptor.
package tinygrad

import (
	"image"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/nvr-ai/go-detect/models/model"
	"github.com/nvr-ai/go-detect/models/model/preprocess"
	"github.com/nvr-ai/go-detect/models/tiny"
)

// Descriptor computes the per-pixel gradient magnitude of the tiny image,
// scaled to unit L2 norm.
type Descriptor struct {
	pre *preprocess.Preprocessor
	dim int
}

// New builds a tiny-image gradient descriptor.
func New(cfg model.Config, logger *zap.Logger) (*Descriptor, error) {
	scale := cfg.Scale
	if scale == 0 {
		scale = tiny.DefaultScale
	}
	pre, err := preprocess.NewPreprocessor(preprocess.Config{
		Name:   string(model.DescriptorNameTinyImageGradient),
		Window: cfg.Window,
		Scale:  scale,
	}, logger)
	if err != nil {
		return nil, err
	}
	size := pre.Size()
	return &Descriptor{pre: pre, dim: size.X * size.Y}, nil
}

// Name implements model.Descriptor.
func (d *Descriptor) Name() model.Name { return model.DescriptorNameTinyImageGradient }

// Dimension implements model.Descriptor.
func (d *Descriptor) Dimension() int { return d.dim }

// Compute implements model.Descriptor.
func (d *Descriptor) Compute(patch image.Image) ([]float64, error) {
	plane, err := d.pre.Process(patch)
	if err != nil {
		return nil, errors.Wrap(err, "tiny image gradient")
	}

	out := make([]float64, len(plane.Data))
	for y := 0; y < plane.Height; y++ {
		for x := 0; x < plane.Width; x++ {
			// Central differences, one-sided at the borders.
			dx := plane.At(min(x+1, plane.Width-1), y) - plane.At(max(x-1, 0), y)
			dy := plane.At(x, min(y+1, plane.Height-1)) - plane.At(x, max(y-1, 0))
			out[y*plane.Width+x] = float64(math32.Hypot(dx, dy))
		}
	}

	if n := floats.Norm(out, 2); n > 0 {
		floats.Scale(1/n, out)
	}
	return out, nil
}
