// Package detector - Sliding-window object detection over an image pyramid.
package detector

import (
	"context"
	"image"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-detect/common"
	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/models"
	"github.com/nvr-ai/go-detect/models/model"
	"github.com/nvr-ai/go-detect/models/postprocess"
)

// Config represents the configuration for the window scanner.
type Config struct {
	// Window is the fixed detection window size, e.g. 64x128.
	Window image.Point `json:"window" yaml:"window"`
	// Stride is the step between window positions in pixels.
	Stride image.Point `json:"stride" yaml:"stride"`
	// HitThreshold is the minimum classifier score for a window to count as a
	// hit. It may be negative.
	HitThreshold float64 `json:"hit_threshold" yaml:"hit_threshold"`
	// IgnoreSign accepts windows on HitThreshold alone. By default a window
	// also needs a positive predicted sign, so a negative HitThreshold has no
	// effect unless this is set.
	IgnoreSign bool `json:"ignore_sign" yaml:"ignore_sign"`
	// Scales are the pyramid size factors in (0, 1], scanned in order.
	Scales []float64 `json:"scales" yaml:"scales"`
	// Interpolation is the resampling kernel for pyramid levels; pyrdown
	// needs the gocv build.
	Interpolation images.Interpolation `json:"interpolation" yaml:"interpolation"`
	// Reduction turns raw hits into detections.
	Reduction postprocess.Config `json:"reduction" yaml:"reduction"`
}

// DefaultConfig scans 64x128 windows with an 8 pixel stride at full and half
// resolution, then groups the hits.
func DefaultConfig() Config {
	return Config{
		Window:        image.Pt(64, 128),
		Stride:        image.Pt(8, 8),
		HitThreshold:  0,
		Scales:        append([]float64(nil), images.DefaultScales...),
		Interpolation: images.InterpolationBilinear,
		Reduction:     postprocess.DefaultConfig(),
	}
}

// Validate reports every problem with the configuration at once.
func (c Config) Validate() error {
	var err error
	if c.Window.X <= 0 || c.Window.Y <= 0 {
		err = multierr.Append(err, errors.Errorf("window must be positive, got %dx%d", c.Window.X, c.Window.Y))
	}
	if c.Stride.X <= 0 || c.Stride.Y <= 0 {
		err = multierr.Append(err, errors.Errorf("stride must be positive, got %dx%d", c.Stride.X, c.Stride.Y))
	}
	err = multierr.Append(err, images.ValidateScales(c.Scales))
	err = multierr.Append(err, images.ValidateInterpolation(c.Interpolation))
	err = multierr.Append(err, c.Reduction.Validate())
	return common.WrapConfig(err, "detector config")
}

// Detector scans images with a descriptor and classifier pair.
//
// A Detector holds no per-image state and may be shared by goroutines as long
// as its descriptor and classifier are safe for concurrent use.
type Detector struct {
	cfg    Config
	desc   model.Descriptor
	clf    model.Classifier
	logger *zap.Logger
}

// New creates a detector.
//
// Arguments:
//   - cfg: Scan, pyramid and reduction settings.
//   - desc: The descriptor oracle; it receives cfg.Window sized patches.
//   - clf: The classifier oracle; its dimension must match desc.
//   - logger: Debug sink, may be nil.
//
// Returns:
//   - *Detector: The detector.
//   - error: A configuration error.
func New(cfg Config, desc model.Descriptor, clf model.Classifier, logger *zap.Logger) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := models.CheckCompatible(desc, clf); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{cfg: cfg, desc: desc, clf: clf, logger: logger}, nil
}

// Config returns the detector configuration.
func (d *Detector) Config() Config {
	return d.cfg
}

// Scan evaluates the classifier on every window position of every pyramid level.
//
// For each level, windows start at every (i, j) with 0 <= i <= levelWidth-W and
// 0 <= j <= levelHeight-H, stepping by the stride. Accepted windows are mapped
// back to img's coordinate frame with the inverse of the level factor. A level
// smaller than the window contributes nothing.
//
// Arguments:
//   - ctx: Checked between rows; cancellation aborts the scan.
//   - img: The image to scan.
//
// Returns:
//   - []postprocess.Candidate: One raw hit per accepted window, unreduced.
//   - error: common.ErrEmptyImage for a zero-size image, or an oracle failure.
func (d *Detector) Scan(ctx context.Context, img image.Image) ([]postprocess.Candidate, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, common.ErrEmptyImage
	}

	levels, err := images.BuildPyramid(img, d.cfg.Scales, d.cfg.Interpolation)
	if err != nil {
		return nil, errors.Wrap(err, "build pyramid")
	}

	var hits []postprocess.Candidate
	for _, level := range levels {
		found, err := d.scanLevel(ctx, level)
		if err != nil {
			return nil, err
		}
		hits = append(hits, found...)
	}
	return hits, nil
}

func (d *Detector) scanLevel(ctx context.Context, level images.Level) ([]postprocess.Candidate, error) {
	b := level.Image.Bounds()
	w, h := d.cfg.Window.X, d.cfg.Window.Y

	var hits []postprocess.Candidate
	for j := 0; j <= b.Dy()-h; j += d.cfg.Stride.Y {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := 0; i <= b.Dx()-w; i += d.cfg.Stride.X {
			window := images.NewRect(i, j, w, h)

			v, err := d.desc.Compute(images.Crop(level.Image, window))
			if err != nil {
				return nil, errors.Wrapf(err, "describe window %v at scale %v", window, level.Factor)
			}

			score := d.clf.Score(v)
			if !d.accept(score, d.clf.Sign(v)) {
				continue
			}
			hits = append(hits, postprocess.Candidate{
				Box:     level.ToSource(window),
				Score:   score,
				Scale:   level.Factor,
				Support: 1,
			})
		}
	}
	return hits, nil
}

func (d *Detector) accept(score float64, sign int) bool {
	if !d.cfg.IgnoreSign && sign <= 0 {
		return false
	}
	return score >= d.cfg.HitThreshold
}

// Detect scans img and reduces the hits into final detections.
//
// Arguments:
//   - ctx: Cancels the scan.
//   - img: The image to scan.
//
// Returns:
//   - []common.Detection: The detections, owned by the caller.
//   - error: As for Scan.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]common.Detection, error) {
	start := time.Now()

	hits, err := d.Scan(ctx, img)
	if err != nil {
		return nil, err
	}
	reduced := postprocess.Reduce(hits, d.cfg.Reduction)

	d.logger.Debug("scanned image",
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()),
		zap.Int("candidates", len(hits)),
		zap.Int("detections", len(reduced)),
		zap.Duration("elapsed", time.Since(start)),
	)

	return ToDetections(reduced), nil
}

// ToDetections converts candidates to detections, keeping order.
func ToDetections(candidates []postprocess.Candidate) []common.Detection {
	dets := make([]common.Detection, len(candidates))
	for i, c := range candidates {
		dets[i] = common.Detection{Rect: c.Box, Response: c.Score}
	}
	return dets
}

// Detect is the one-call pipeline: scan img with the given oracles, window,
// stride and hit threshold at the default pyramid, then group the hits with
// the default grouping.
func Detect(
	ctx context.Context,
	img image.Image,
	clf model.Classifier,
	desc model.Descriptor,
	window, stride image.Point,
	hitThreshold float64,
) ([]common.Detection, error) {
	cfg := DefaultConfig()
	cfg.Window = window
	cfg.Stride = stride
	cfg.HitThreshold = hitThreshold

	d, err := New(cfg, desc, clf, nil)
	if err != nil {
		return nil, err
	}
	return d.Detect(ctx, img)
}
