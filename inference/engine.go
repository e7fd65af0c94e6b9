// Package inference - Detection engine assembled from a descriptor, a classifier and a scanner.
package inference

import (
	"context"
	"image"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-detect/common"
	"github.com/nvr-ai/go-detect/detector"
	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/models"
	"github.com/nvr-ai/go-detect/models/model"
)

// Engine defines the interface for detection engines.
type Engine interface {
	// Detect returns the final detections in img.
	Detect(ctx context.Context, img image.Image) ([]common.Detection, error)
	// Classify scores a single patch, resampling it to the window size first.
	Classify(patch image.Image) (score float64, sign int, err error)
	// Window is the patch size the engine classifies.
	Window() image.Point
}

// EngineBuilder assembles an Engine with a fluent API. The first failing step
// is kept and reported by Build.
type EngineBuilder struct {
	descCfg model.Config
	desc    model.Descriptor
	clf     model.Classifier
	detCfg  *detector.Config
	logger  *zap.Logger
	err     error
}

// NewEngineBuilder creates a new engine builder.
//
// Returns:
//   - *EngineBuilder: The engine builder.
//
// Example:
//
// ```go
//
//	engine, err := inference.NewEngineBuilder().
//	    WithLogger(logger).
//	    WithDescriptor(model.DefaultConfig()).
//	    WithClassifier("person.yaml").
//	    WithDetector(detector.DefaultConfig()).
//	    Build()
//
// ```
func NewEngineBuilder() *EngineBuilder {
	return &EngineBuilder{}
}

// WithLogger sets the logger passed to every component. Call it first.
func (b *EngineBuilder) WithLogger(logger *zap.Logger) *EngineBuilder {
	b.logger = logger
	return b
}

// WithDescriptor creates the descriptor named by cfg.
//
// Arguments:
//   - cfg: The descriptor configuration.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithDescriptor(cfg model.Config) *EngineBuilder {
	if b.HasError() {
		return b
	}

	desc, err := models.NewDescriptor(cfg, b.logger)
	if err != nil {
		b.err = err
		return b
	}
	b.descCfg = cfg
	b.desc = desc
	return b
}

// WithDescriptorInstance uses an existing descriptor for patches of size window.
func (b *EngineBuilder) WithDescriptorInstance(desc model.Descriptor, window image.Point) *EngineBuilder {
	if b.HasError() {
		return b
	}
	b.descCfg = model.Config{Name: desc.Name(), Window: window}
	b.desc = desc
	return b
}

// WithClassifier loads the linear model at path. The descriptor must be set.
//
// Arguments:
//   - path: The YAML model file.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithClassifier(path string) *EngineBuilder {
	if b.HasError() {
		return b
	}
	if b.desc == nil {
		b.err = common.ConfigError("descriptor must be configured before the classifier")
		return b
	}

	clf, err := models.NewClassifier(path, b.desc)
	if err != nil {
		b.err = err
		return b
	}
	b.clf = clf
	return b
}

// WithClassifierInstance uses an existing classifier.
func (b *EngineBuilder) WithClassifierInstance(clf model.Classifier) *EngineBuilder {
	if b.HasError() {
		return b
	}
	b.clf = clf
	return b
}

// WithDetector sets the scanner configuration.
//
// Arguments:
//   - cfg: The detector configuration. Its window must equal the descriptor window.
//
// Returns:
//   - *EngineBuilder: The engine builder.
func (b *EngineBuilder) WithDetector(cfg detector.Config) *EngineBuilder {
	if b.HasError() {
		return b
	}
	b.detCfg = &cfg
	return b
}

// HasError checks if the engine builder has errors.
//
// Returns:
//   - bool: True if there are errors, false otherwise.
func (b *EngineBuilder) HasError() bool {
	return b.err != nil
}

// MustBuild builds the engine and panics if there is an error.
//
// Returns:
//   - Engine: The engine.
func (b *EngineBuilder) MustBuild() Engine {
	e, err := b.Build()
	if err != nil {
		panic(err)
	}
	return e
}

// Build builds the engine.
//
// Returns:
//   - Engine: The engine.
//   - error: The first builder error, or a configuration error for a missing
//     component or mismatched windows.
func (b *EngineBuilder) Build() (Engine, error) {
	if b.HasError() {
		return nil, b.err
	}
	if b.desc == nil {
		return nil, common.ConfigError("descriptor not configured")
	}
	if b.clf == nil {
		return nil, common.ConfigError("classifier not configured")
	}
	if b.detCfg == nil {
		return nil, common.ConfigError("detector not configured")
	}
	if b.detCfg.Window != b.descCfg.Window {
		return nil, common.ConfigError("detector window %v differs from descriptor window %v",
			b.detCfg.Window, b.descCfg.Window)
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	d, err := detector.New(*b.detCfg, b.desc, b.clf, logger)
	if err != nil {
		return nil, err
	}

	return &engine{
		desc:     b.desc,
		clf:      b.clf,
		detector: d,
		logger:   logger,
	}, nil
}

// engine implements the Engine interface.
type engine struct {
	desc     model.Descriptor
	clf      model.Classifier
	detector *detector.Detector
	logger   *zap.Logger
}

// Detect runs the sliding-window detector over img.
func (e *engine) Detect(ctx context.Context, img image.Image) ([]common.Detection, error) {
	return e.detector.Detect(ctx, img)
}

// Classify resamples patch to the window size, describes it and scores it.
func (e *engine) Classify(patch image.Image) (float64, int, error) {
	if patch == nil || patch.Bounds().Empty() {
		return 0, 0, common.ErrEmptyImage
	}
	cfg := e.detector.Config()
	v, err := e.desc.Compute(images.ResizeTo(patch, cfg.Window, cfg.Interpolation))
	if err != nil {
		return 0, 0, errors.Wrap(err, "describe patch")
	}
	return e.clf.Score(v), e.clf.Sign(v), nil
}

// Window is the detection window size.
func (e *engine) Window() image.Point {
	return e.detector.Config().Window
}
