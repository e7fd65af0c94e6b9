// Package models - registry for descriptors and classifiers.
package models

import (
	"go.uber.org/zap"

	"github.com/nvr-ai/go-detect/common"
	"github.com/nvr-ai/go-detect/models/linear"
	"github.com/nvr-ai/go-detect/models/model"
	"github.com/nvr-ai/go-detect/models/tiny"
	"github.com/nvr-ai/go-detect/models/tinygrad"
)

// NewDescriptor creates the descriptor named by cfg.Name.
//
// This factory is the single place descriptor names are resolved, so adding a
// descriptor means adding a case here and a package under models/.
//
// Arguments:
//   - cfg: Descriptor name, window size and tiny-image scale.
//   - logger: Debug sink, may be nil.
//
// Returns:
//   - model.Descriptor: The descriptor.
//   - error: A configuration error for unknown or unavailable names and for
//     invalid window or scale values.
//
// Example:
//
// ```go
//
//	desc, err := NewDescriptor(model.Config{
//	    Name:   model.DescriptorNameTinyImage,
//	    Window: image.Pt(64, 128),
//	    Scale:  0.2,
//	}, logger)
//
//	if err != nil {
//	    log.Fatalf("Failed to create descriptor: %v", err)
//	}
//
// ```
func NewDescriptor(cfg model.Config, logger *zap.Logger) (model.Descriptor, error) {
	switch cfg.Name {
	case model.DescriptorNameTinyImage:
		d, err := tiny.New(cfg, logger)
		if err != nil {
			return nil, common.WrapConfig(err, "tiny image descriptor")
		}
		return d, nil
	case model.DescriptorNameTinyImageGradient:
		d, err := tinygrad.New(cfg, logger)
		if err != nil {
			return nil, common.WrapConfig(err, "tiny image gradient descriptor")
		}
		return d, nil
	case model.DescriptorNameHOG:
		return nil, common.ConfigError("descriptor %q is not available in this build", cfg.Name)
	default:
		return nil, common.ConfigError("unsupported descriptor name: %q", cfg.Name)
	}
}

// NewClassifier loads the linear model at path and checks it against desc.
//
// Returns:
//   - model.Classifier: The loaded classifier.
//   - error: A configuration error when the file is missing or malformed, was
//     trained on another descriptor, or has the wrong dimension.
func NewClassifier(path string, desc model.Descriptor) (model.Classifier, error) {
	c, err := linear.Load(path)
	if err != nil {
		return nil, err
	}
	if err := CheckCompatible(desc, c); err != nil {
		return nil, err
	}
	if c.Descriptor() != "" && c.Descriptor() != desc.Name() {
		return nil, common.ConfigError("classifier %s was trained on %q features, detector uses %q", path, c.Descriptor(), desc.Name())
	}
	return c, nil
}

// CheckCompatible reports a configuration error when clf cannot score the
// vectors desc produces.
func CheckCompatible(desc model.Descriptor, clf model.Classifier) error {
	if desc == nil || clf == nil {
		return common.ConfigError("descriptor and classifier are both required")
	}
	if desc.Dimension() != clf.Dimension() {
		return common.ConfigError("descriptor %q produces %d features, classifier expects %d",
			desc.Name(), desc.Dimension(), clf.Dimension())
	}
	return nil
}
