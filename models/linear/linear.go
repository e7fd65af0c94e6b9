// Package linear - Linear decision function loaded from a trained model file.
package linear

import (
	"bytes"
	"math"
	"os"

	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-detect/common"
	"github.com/nvr-ai/go-detect/models/model"
)

// File is the on-disk form of a trained linear model.
//
// Either Weights+Bias or Detector is set. Detector is the primal vector form
// some trainers emit: the weights followed by the bias as the last element.
type File struct {
	Descriptor model.Name `json:"descriptor"         yaml:"descriptor"`
	Weights    []float64  `json:"weights,omitempty"  yaml:"weights,omitempty"`
	Bias       float64    `json:"bias"               yaml:"bias"`
	Detector   []float64  `json:"detector,omitempty" yaml:"detector,omitempty"`
}

// Classifier scores feature vectors with w·v + b.
type Classifier struct {
	descriptor model.Name
	weights    []float64
	bias       float64
}

// New builds a classifier from trained weights.
//
// Arguments:
//   - descriptor: The descriptor the weights were trained on.
//   - weights: One weight per feature; copied.
//   - bias: The decision offset.
//
// Returns:
//   - *Classifier: The classifier.
//   - error: A configuration error when weights is empty or not finite.
func New(descriptor model.Name, weights []float64, bias float64) (*Classifier, error) {
	if len(weights) == 0 {
		return nil, common.ConfigError("linear model has no weights")
	}
	if floats.HasNaN(weights) || math.IsNaN(bias) || math.IsInf(bias, 0) {
		return nil, common.ConfigError("linear model has NaN weights or a non-finite bias")
	}
	return &Classifier{
		descriptor: descriptor,
		weights:    append([]float64(nil), weights...),
		bias:       bias,
	}, nil
}

// FromPrimal builds a classifier from a weights-then-bias vector.
func FromPrimal(descriptor model.Name, primal []float64) (*Classifier, error) {
	if len(primal) < 2 {
		return nil, common.ConfigError("primal detector needs at least one weight and a bias, got %d values", len(primal))
	}
	n := len(primal) - 1
	return New(descriptor, primal[:n], primal[n])
}

// Load reads a YAML model file.
func Load(path string) (*Classifier, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, common.WrapConfig(err, "read classifier model")
	}

	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, common.WrapConfig(err, "parse classifier model "+path)
	}

	switch {
	case len(f.Detector) > 0 && len(f.Weights) > 0:
		return nil, common.ConfigError("classifier model %s sets both weights and detector", path)
	case len(f.Detector) > 0:
		return FromPrimal(f.Descriptor, f.Detector)
	default:
		return New(f.Descriptor, f.Weights, f.Bias)
	}
}

// Save writes the classifier as a YAML model file.
func (c *Classifier) Save(path string) error {
	data, err := yaml.Marshal(File{Descriptor: c.descriptor, Weights: c.weights, Bias: c.bias})
	if err != nil {
		return common.WrapConfig(err, "encode classifier model")
	}
	return common.WrapConfig(os.WriteFile(path, data, 0o644), "write classifier model")
}

// Descriptor is the descriptor name recorded with the weights. It may be empty
// for models that predate the field.
func (c *Classifier) Descriptor() model.Name { return c.descriptor }

// Dimension implements model.Classifier.
func (c *Classifier) Dimension() int { return len(c.weights) }

// Bias returns the decision offset.
func (c *Classifier) Bias() float64 { return c.bias }

// Primal returns the weights followed by the bias.
func (c *Classifier) Primal() []float64 {
	return append(append([]float64(nil), c.weights...), c.bias)
}

// Score implements model.Classifier. v must have Dimension() elements.
func (c *Classifier) Score(v []float64) float64 {
	return floats.Dot(c.weights, v) + c.bias
}

// Sign implements model.Classifier.
func (c *Classifier) Sign(v []float64) int {
	if c.Score(v) > 0 {
		return 1
	}
	return -1
}
