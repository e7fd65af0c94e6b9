package evaluation

import (
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-detect/common"
)

func TestDetectionCurve_SinglePerfectDetection(t *testing.T) {
	gt := [][]common.Detection{{common.NewDetection(10, 10, 50, 50, 0)}}
	found := [][]common.Detection{{common.NewDetection(10, 10, 50, 50, 2.0)}}

	set, err := Evaluate(gt, found, 0.5)
	require.NoError(t, err)
	assert.Equal(t, []float64{Positive}, set.Labels)
	assert.Equal(t, []float64{2.0}, set.Responses)

	c, err := NewDetectionCurve(set.Labels, set.Responses, set.NGroundTruth)
	require.NoError(t, err)
	require.Len(t, c.Points, 1)
	assert.Equal(t, Point{Precision: 1, Recall: 1, Threshold: 2}, c.Points[0])
	assert.Equal(t, 1.0, c.AveragePrecision)
}

func TestDetectionCurve_MissedObject(t *testing.T) {
	c, err := NewDetectionCurve([]float64{Negative}, []float64{0.7}, 1)
	require.NoError(t, err)
	require.Len(t, c.Points, 1)
	assert.Equal(t, 0.0, c.Points[0].Recall)
	assert.Equal(t, 0.0, c.Points[0].Precision)
	assert.Equal(t, 0.0, c.AveragePrecision)
}

func TestDetectionCurve_DuplicateDetection(t *testing.T) {
	gt := [][]common.Detection{{common.NewDetection(0, 0, 40, 40, 0)}}
	found := [][]common.Detection{{
		common.NewDetection(0, 0, 40, 40, 0.5),
		common.NewDetection(1, 1, 40, 40, 0.9),
	}}

	set, err := Evaluate(gt, found, 0.5)
	require.NoError(t, err)
	assert.Equal(t, []float64{Negative, Positive}, set.Labels)

	c, err := NewDetectionCurve(set.Labels, set.Responses, set.NGroundTruth)
	require.NoError(t, err)
	assert.Equal(t, []Point{
		{Precision: 1, Recall: 1, Threshold: 0.9},
		{Precision: 0.5, Recall: 1, Threshold: 0.5},
	}, c.Points)
	assert.Equal(t, 1.0, c.AveragePrecision)
}

func TestDetectionCurve_Ranking(t *testing.T) {
	labels := []float64{Negative, Positive, Positive, Negative}
	responses := []float64{0.4, 0.9, 0.3, 0.8}

	c, err := NewDetectionCurve(labels, responses, 4)
	require.NoError(t, err)

	// Ranked: 0.9(+) 0.8(-) 0.4(-) 0.3(+)
	assert.Equal(t, []Point{
		{Precision: 1, Recall: 0.25, Threshold: 0.9},
		{Precision: 0.5, Recall: 0.25, Threshold: 0.8},
		{Precision: 1.0 / 3.0, Recall: 0.25, Threshold: 0.4},
		{Precision: 0.5, Recall: 0.5, Threshold: 0.3},
	}, c.Points)

	// 0.25*1 from the anchor, then 0.25*(1/3) + 0.25*(0.5-1/3)/2.
	assert.InDelta(t, 0.25+0.25/3+0.25*(0.5-1.0/3.0)/2, c.AveragePrecision, 1e-12)
}

func TestDetectionCurve_TiedResponsesShareAPoint(t *testing.T) {
	c, err := NewDetectionCurve([]float64{Positive, Negative, Positive}, []float64{0.5, 0.5, 0.2}, 2)
	require.NoError(t, err)
	assert.Equal(t, []Point{
		{Precision: 0.5, Recall: 0.5, Threshold: 0.5},
		{Precision: 2.0 / 3.0, Recall: 1, Threshold: 0.2},
	}, c.Points)
}

func TestDetectionCurve_RecallDenominators(t *testing.T) {
	// Without an external count the positives are the denominator.
	c, err := NewDetectionCurve([]float64{Positive, Negative}, []float64{2, 1}, NoGroundTruthCount)
	require.NoError(t, err)
	assert.Equal(t, 1.0, c.Points[0].Recall)

	// Nothing to find and no external count: vacuous recall.
	c, err = NewDetectionCurve([]float64{Negative}, []float64{1}, NoGroundTruthCount)
	require.NoError(t, err)
	assert.Equal(t, 1.0, c.Points[0].Recall)

	c, err = NewDetectionCurve([]float64{Negative}, []float64{1}, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, c.Points[0].Recall)
	assert.Equal(t, 0.0, c.AveragePrecision)
}

func TestDetectionCurve_Empty(t *testing.T) {
	c, err := NewDetectionCurve(nil, nil, 3)
	require.NoError(t, err)
	assert.Empty(t, c.Points)
	assert.Zero(t, c.AveragePrecision)

	_, ok := c.BestThreshold()
	assert.False(t, ok)
}

func TestDetectionCurve_Errors(t *testing.T) {
	_, err := NewDetectionCurve([]float64{1}, nil, 1)
	assert.True(t, errors.Is(err, common.ErrData))

	_, err = NewDetectionCurve([]float64{1, 1}, []float64{1, 2}, 1)
	assert.True(t, errors.Is(err, common.ErrData))
}

func TestDetectionCurve_Invariants(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for trial := 0; trial < 50; trial++ {
		n := 1 + rng.Intn(200)
		labels := make([]float64, n)
		responses := make([]float64, n)
		positives := 0
		for i := range labels {
			labels[i] = Negative
			if rng.Intn(3) == 0 {
				labels[i] = Positive
				positives++
			}
			responses[i] = float64(rng.Intn(20)) / 10
		}

		for _, smoothOn := range []bool{false, true} {
			c, err := NewDetectionCurve(labels, responses, positives+rng.Intn(5), WithSmoothing(smoothOn))
			require.NoError(t, err)

			for i := 1; i < len(c.Points); i++ {
				assert.GreaterOrEqual(t, c.Points[i].Recall, c.Points[i-1].Recall)
				if smoothOn {
					assert.LessOrEqual(t, c.Points[i].Precision, c.Points[i-1].Precision)
				}
			}
			for _, p := range c.Points {
				assert.GreaterOrEqual(t, p.Precision, 0.0)
				assert.LessOrEqual(t, p.Precision, 1.0)
				assert.GreaterOrEqual(t, p.Recall, 0.0)
				assert.LessOrEqual(t, p.Recall, 1.0)
			}
			assert.GreaterOrEqual(t, c.AveragePrecision, 0.0)
			assert.LessOrEqual(t, c.AveragePrecision, 1.0+1e-12)
		}
	}
}

func TestSmoothing(t *testing.T) {
	labels := []float64{Positive, Negative, Positive}
	responses := []float64{3, 2, 1}

	raw, err := NewDetectionCurve(labels, responses, 2)
	require.NoError(t, err)
	assert.False(t, raw.Smoothed)
	assert.Equal(t, 0.5, raw.Points[1].Precision)

	smoothed, err := NewDetectionCurve(labels, responses, 2, WithSmoothing(true))
	require.NoError(t, err)
	assert.True(t, smoothed.Smoothed)
	assert.Equal(t, 2.0/3.0, smoothed.Points[1].Precision)
	assert.GreaterOrEqual(t, smoothed.AveragePrecision, raw.AveragePrecision)
}

func TestClassificationCurve(t *testing.T) {
	gt := []float64{1, -1, 1, 1}
	preds := []float64{1, 1, 1, -1}

	c, err := NewClassificationCurve(gt, preds)
	require.NoError(t, err)
	assert.Equal(t, []Point{
		{Precision: 1, Recall: 0.25, Threshold: 1},
		{Precision: 0.5, Recall: 0.25, Threshold: 1},
		{Precision: 2.0 / 3.0, Recall: 0.5, Threshold: 1},
		{Precision: 0.5, Recall: 0.5, Threshold: -1},
	}, c.Points)

	_, err = NewClassificationCurve([]float64{1}, nil)
	assert.True(t, errors.Is(err, common.ErrData))

	empty, err := NewClassificationCurve(nil, nil)
	require.NoError(t, err)
	assert.Empty(t, empty.Points)
}

func TestBestThreshold(t *testing.T) {
	c := &Curve{Points: []Point{
		{Precision: 1, Recall: 0.2, Threshold: 3},
		{Precision: 0.8, Recall: 0.6, Threshold: 2},
		{Precision: 0.6, Recall: 0.8, Threshold: 1},
		{Precision: 0, Recall: 0.8, Threshold: 0},
	}}

	best, ok := c.BestThreshold()
	require.True(t, ok)
	// 0.8*0.6/1.4 and 0.6*0.8/1.4 tie: the first wins.
	assert.Equal(t, 2.0, best.Threshold)

	zero := &Curve{Points: []Point{{Precision: 0, Recall: 0, Threshold: 5}}}
	best, ok = zero.BestThreshold()
	require.True(t, ok)
	assert.Equal(t, 5.0, best.Threshold)
}

func TestAveragePrecision(t *testing.T) {
	assert.Zero(t, AveragePrecision(nil))
	assert.Equal(t, 1.0, AveragePrecision([]Point{{Precision: 1, Recall: 1}}))
	assert.InDelta(t, 0.75, AveragePrecision([]Point{{Precision: 0.5, Recall: 1}}), 1e-12)
}
