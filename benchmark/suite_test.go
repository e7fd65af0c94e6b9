package benchmark

import (
	"context"
	"image"
	"image/color"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-detect/common"
	"github.com/nvr-ai/go-detect/dataset"
	"github.com/nvr-ai/go-detect/images"
	"github.com/nvr-ai/go-detect/profiler"
)

// MockDetector returns scripted detections keyed by image width.
type MockDetector struct {
	byWidth map[int][]common.Detection
	calls   atomic.Int64
	err     error
}

func (m *MockDetector) Detect(ctx context.Context, img image.Image) ([]common.Detection, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	return m.byWidth[img.Bounds().Dx()], nil
}

// mapLoader serves in-memory images by path.
func mapLoader(imgs map[string]image.Image) ImageLoader {
	return func(path string) (image.Image, error) {
		img, ok := imgs[path]
		if !ok {
			return nil, errors.Errorf("no image %s", path)
		}
		return img, nil
	}
}

func testDataset(t *testing.T) (*dataset.Dataset, ImageLoader, *MockDetector) {
	t.Helper()
	ds, err := dataset.New(
		[]string{"a.jpg", "b.jpg"},
		[][]common.Detection{
			{common.NewDetection(0, 0, 10, 10, 0)},
			{common.NewDetection(20, 20, 10, 10, 0), common.NewDetection(50, 50, 10, 10, 0)},
		},
	)
	require.NoError(t, err)

	load := mapLoader(map[string]image.Image{
		"a.jpg": image.NewGray(image.Rect(0, 0, 100, 100)),
		"b.jpg": image.NewGray(image.Rect(0, 0, 120, 100)),
	})
	det := &MockDetector{byWidth: map[int][]common.Detection{
		100: {common.NewDetection(0, 0, 10, 10, 0.9), common.NewDetection(30, 30, 10, 10, 0.8)},
		120: {common.NewDetection(20, 20, 10, 10, 0.7)},
	}}
	return ds, load, det
}

func TestSuite_Run(t *testing.T) {
	for _, workers := range []int{1, 4} {
		ds, load, det := testDataset(t)
		cfg := DefaultConfig()
		cfg.Workers = workers

		report, err := NewSuite(det, cfg, WithLoader(load)).Run(context.Background(), ds)
		require.NoError(t, err)

		assert.Equal(t, int64(2), det.calls.Load())
		assert.Equal(t, dataset.Summary{Images: 2, Positives: 3}, report.Summary)
		assert.Equal(t, []float64{1, -1, 1}, report.Labels.Labels)
		assert.Equal(t, []float64{0.9, 0.8, 0.7}, report.Labels.Responses)
		assert.Equal(t, 3, report.Labels.NGroundTruth)
		assert.InDelta(t, 19.0/36.0, report.Curve.AveragePrecision, 1e-12)

		require.True(t, report.HasBest)
		assert.Equal(t, 0.7, report.Best.Threshold)

		require.Equal(t, 2, report.Predictions.Len())
		assert.Len(t, report.Predictions.GroundTruth(0), 2)
		assert.Equal(t, "b.jpg", report.Predictions.Filename(1))

		assert.Equal(t, 3, report.Metrics.DetectionCount)
		assert.Equal(t, workers, report.Metrics.CPUStats.Workers)
		names := make([]string, 0, len(report.Metrics.Stages))
		for _, s := range report.Metrics.Stages {
			names = append(names, s.Name)
		}
		assert.Equal(t, []string{profiler.StageCurve, profiler.StageDetect, profiler.StageLoad, profiler.StageMatch}, names)
	}
}

func TestSuite_RunErrors(t *testing.T) {
	ds, _, det := testDataset(t)
	_, err := NewSuite(det, nil, WithLoader(mapLoader(nil))).Run(context.Background(), ds)
	assert.True(t, errors.Is(err, common.ErrData))

	ds, load, _ := testDataset(t)
	failing := &MockDetector{err: errors.New("scanner exploded")}
	_, err = NewSuite(failing, nil, WithLoader(load)).Run(context.Background(), ds)
	assert.ErrorContains(t, err, "scanner exploded")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewSuite(det, nil, WithLoader(load)).Run(ctx, ds)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSuite_RunFromPredictions(t *testing.T) {
	ds, load, det := testDataset(t)
	suite := NewSuite(det, nil, WithLoader(load))

	live, err := suite.Run(context.Background(), ds)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "preds.txt")
	require.NoError(t, dataset.Save(path, live.Predictions))
	saved, err := dataset.Load(path)
	require.NoError(t, err)

	replay, err := NewSuite(nil, nil).RunFromPredictions(ds, saved)
	require.NoError(t, err)
	assert.Equal(t, live.Labels, replay.Labels)
	assert.Equal(t, live.Curve.AveragePrecision, replay.Curve.AveragePrecision)

	short, err := dataset.New([]string{"a.jpg"}, [][]common.Detection{nil})
	require.NoError(t, err)
	_, err = suite.RunFromPredictions(ds, short)
	assert.True(t, errors.Is(err, common.ErrData))

	renamed, err := dataset.New([]string{"a.jpg", "c.jpg"}, [][]common.Detection{nil, nil})
	require.NoError(t, err)
	_, err = suite.RunFromPredictions(ds, renamed)
	assert.True(t, errors.Is(err, common.ErrData))
}

// brightnessClassifier predicts +1 for patches that are mostly white.
type brightnessClassifier struct {
	window image.Point
}

func (b brightnessClassifier) Window() image.Point { return b.window }

func (b brightnessClassifier) Classify(patch image.Image) (float64, int, error) {
	bounds := patch.Bounds()
	var sum float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			sum += float64(color.GrayModel.Convert(patch.At(x, y)).(color.Gray).Y) / 255
		}
	}
	score := sum/float64(bounds.Dx()*bounds.Dy()) - 0.5
	if score > 0 {
		return score, 1, nil
	}
	return score, -1, nil
}

func objectImage(w, h int, r images.Rect) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := r.Y; y < r.Bottom(); y++ {
		for x := r.X; x < r.Right(); x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	return img
}

func TestSuite_RunClassification(t *testing.T) {
	object := images.NewRect(10, 10, 16, 16)
	ds, err := dataset.New(
		[]string{"obj.png", "empty.png"},
		[][]common.Detection{{{Rect: object}}, nil},
	)
	require.NoError(t, err)
	load := mapLoader(map[string]image.Image{
		"obj.png":   objectImage(64, 64, object),
		"empty.png": image.NewGray(image.Rect(0, 0, 64, 64)),
	})

	var reports []*ClassificationReport
	for _, workers := range []int{1, 3} {
		cfg := DefaultConfig()
		cfg.Workers = workers
		report, err := NewSuite(nil, cfg, WithLoader(load)).
			RunClassification(context.Background(), brightnessClassifier{window: image.Pt(8, 8)}, ds)
		require.NoError(t, err)
		reports = append(reports, report)
	}

	report := reports[0]
	assert.Equal(t, []float64{1, -1}, report.GroundTruth)
	assert.Equal(t, []float64{1, -1}, report.Predictions)
	assert.Equal(t, 1.0, report.Accuracy)
	assert.Equal(t, 1.0, report.Curve.AveragePrecision)
	assert.Equal(t, reports[0].Scores, reports[1].Scores)
}

func TestSampleBackground(t *testing.T) {
	bounds := images.NewRect(0, 0, 40, 40)
	gt := []common.Detection{{Rect: images.NewRect(0, 0, 20, 40)}}

	got := sampleBackground(bounds, image.Pt(10, 10), gt, 5, newRand(7))
	require.Len(t, got, 5)
	for _, r := range got {
		assert.True(t, bounds.Contains(r), r.String())
		assert.LessOrEqual(t, float64(r.Intersect(gt[0].Rect).Area()), MaxBackgroundOverlap*float64(r.Area()))
	}
	assert.Equal(t, got, sampleBackground(bounds, image.Pt(10, 10), gt, 5, newRand(7)))

	assert.Empty(t, sampleBackground(bounds, image.Pt(50, 10), nil, 3, newRand(1)))
	assert.Empty(t, sampleBackground(bounds, image.Pt(10, 10), nil, 0, newRand(1)))

	full := []common.Detection{{Rect: bounds}}
	assert.Empty(t, sampleBackground(images.NewRect(0, 0, 10, 10), image.Pt(10, 10), full, 2, newRand(1)))
}

func TestIsBackground(t *testing.T) {
	object := []common.Detection{{Rect: images.NewRect(0, 0, 40, 40)}}

	tests := []struct {
		name   string
		window images.Rect
		want   bool
	}{
		{"inside a larger object", images.NewRect(10, 10, 10, 10), false},
		{"mostly outside", images.NewRect(39, 0, 10, 10), true},
		{"a fifth inside", images.NewRect(38, 0, 10, 10), false},
		{"disjoint", images.NewRect(50, 50, 10, 10), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isBackground(tt.window, object))
		})
	}
}

func TestNewSuite_ClampsWorkers(t *testing.T) {
	ds, load, det := testDataset(t)
	cfg := DefaultConfig()
	cfg.Workers = 0

	report, err := NewSuite(det, cfg, WithLoader(load)).Run(context.Background(), ds)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Metrics.CPUStats.Workers)
	assert.Equal(t, 0, cfg.Workers, "caller config is left alone")

	clf := brightnessClassifier{window: image.Pt(8, 8)}
	_, err = NewSuite(nil, cfg, WithLoader(load)).RunClassification(context.Background(), clf, ds)
	require.NoError(t, err)
}
