package benchmark

import (
	"bytes"
	"image"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-detect/common"
	"github.com/nvr-ai/go-detect/detector"
	"github.com/nvr-ai/go-detect/models/model"
)

// EvaluationConfig controls how predictions are scored against ground truth.
type EvaluationConfig struct {
	// OverlapThreshold is the minimum relative overlap for a detection to
	// match a ground-truth window.
	OverlapThreshold float64 `json:"overlap_threshold" yaml:"overlap_threshold"`
	// Smooth makes the precision-recall curve non-increasing in recall.
	Smooth bool `json:"smooth" yaml:"smooth"`
}

// Config is a complete detection and evaluation run.
type Config struct {
	// Descriptor selects the feature extractor. A zero window takes the
	// detector window.
	Descriptor model.Config `json:"descriptor" yaml:"descriptor"`
	// Classifier is the path of the linear model file.
	Classifier string `json:"classifier" yaml:"classifier"`
	// Detector is the scan, pyramid and reduction configuration.
	Detector detector.Config `json:"detector" yaml:"detector"`
	// Evaluation is the matching configuration.
	Evaluation EvaluationConfig `json:"evaluation" yaml:"evaluation"`
	// Workers bounds the number of images processed concurrently.
	Workers int `json:"workers" yaml:"workers"`
	// BackgroundSeed seeds background window sampling for classification runs.
	BackgroundSeed int64 `json:"background_seed" yaml:"background_seed"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level" yaml:"log_level"`
}

// DefaultConfig returns the reference configuration: tiny-image features over
// 64x128 windows, 8 pixel stride, scales 1 and 0.5, grouping with eps 0.2 and
// threshold 2, overlap threshold 0.5 and a single worker.
//
// Returns:
//   - *Config: A fresh configuration the caller may modify.
func DefaultConfig() *Config {
	return &Config{
		Descriptor: model.DefaultConfig(),
		Detector:   detector.DefaultConfig(),
		Evaluation: EvaluationConfig{
			OverlapThreshold: 0.5,
		},
		Workers:        1,
		BackgroundSeed: 1,
		LogLevel:       "info",
	}
}

// LoadConfig reads a YAML configuration on top of DefaultConfig and validates it.
//
// Arguments:
//   - path: The YAML file. Unknown keys are rejected.
//
// Returns:
//   - *Config: The configuration.
//   - error: A configuration error listing every problem found.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, common.WrapConfig(err, "read config")
	}

	cfg := DefaultConfig()
	cfg.Descriptor.Window = image.Point{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, common.WrapConfig(err, "parse config "+path)
	}
	if cfg.Classifier != "" && !filepath.IsAbs(cfg.Classifier) {
		cfg.Classifier = filepath.Join(filepath.Dir(path), cfg.Classifier)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "encode config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create config directory")
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "write config %s", path)
}

// Normalize fills derived values: the descriptor window from the detector.
func (c *Config) Normalize() {
	if c.Descriptor.Window.Eq(image.Point{}) {
		c.Descriptor.Window = c.Detector.Window
	}
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var err error
	err = multierr.Append(err, c.Detector.Validate())
	if c.Descriptor.Window != c.Detector.Window {
		err = multierr.Append(err, errors.Errorf("descriptor window %v differs from detector window %v",
			c.Descriptor.Window, c.Detector.Window))
	}
	if t := c.Evaluation.OverlapThreshold; !(t >= 0 && t <= 1) {
		err = multierr.Append(err, errors.Errorf("overlap threshold must lie in [0, 1], got %v", t))
	}
	if c.Workers < 1 {
		err = multierr.Append(err, errors.Errorf("workers must be at least 1, got %d", c.Workers))
	}
	if _, lerr := zapcore.ParseLevel(c.LogLevel); lerr != nil {
		err = multierr.Append(err, lerr)
	}
	return common.WrapConfig(err, "run config")
}
