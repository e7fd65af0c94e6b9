// Package model - Descriptor and classifier contracts used by the window scanner.
package model

import (
	"image"
)

// Name is the unique identifier of a descriptor.
type Name string

const (
	// DescriptorNameTinyImage is the down-scaled grayscale patch descriptor.
	DescriptorNameTinyImage Name = "ti"
	// DescriptorNameTinyImageGradient is the gradient magnitude of the tiny image.
	DescriptorNameTinyImageGradient Name = "tig"
	// DescriptorNameHOG names a histogram of oriented gradients descriptor. It
	// is recognised by the registry but no implementation ships with it.
	DescriptorNameHOG Name = "hog"
)

// Descriptor maps a fixed-size patch to a fixed-length feature vector.
//
// Implementations must be deterministic and safe for concurrent use: the same
// descriptor is shared by every image scanned in parallel.
type Descriptor interface {
	// Name identifies the descriptor; it is recorded next to trained weights so
	// a model cannot be paired with the wrong feature layout.
	Name() Name
	// Dimension is the length of every vector Compute returns.
	Dimension() int
	// Compute returns the feature vector of patch.
	Compute(patch image.Image) ([]float64, error)
}

// Classifier is a trained binary decision function over feature vectors.
type Classifier interface {
	// Score is the signed distance of v to the decision boundary.
	Score(v []float64) float64
	// Sign is the predicted class of v: +1 or -1.
	Sign(v []float64) int
	// Dimension is the vector length the classifier was trained on.
	Dimension() int
}

// Config selects and parameterises a descriptor.
type Config struct {
	// Name of the descriptor.
	Name Name `json:"name" yaml:"name"`
	// Scale is the tiny-image down-scaling factor applied to the window, e.g.
	// 0.2 turns a 64x128 window into a 13x26 tiny image.
	Scale float64 `json:"scale" yaml:"scale"`
	// Window is the patch size the descriptor receives.
	Window image.Point `json:"window" yaml:"window"`
}

// DefaultConfig is the reference tiny-image descriptor over 64x128 windows.
func DefaultConfig() Config {
	return Config{
		Name:   DescriptorNameTinyImage,
		Scale:  0.2,
		Window: image.Pt(64, 128),
	}
}
