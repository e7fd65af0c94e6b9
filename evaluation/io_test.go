package evaluation

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-detect/common"
)

func TestPR_RoundTrip(t *testing.T) {
	c, err := NewDetectionCurve([]float64{Positive, Negative, Positive}, []float64{0.9, 0.5, 0.25}, 3)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WritePR(&buf, c))
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, len(c.Points)+1)
	assert.Equal(t, PRHeader, lines[0])
	assert.Equal(t, "1 0.3333333333333333", lines[1])
	for _, line := range lines[1:] {
		assert.Len(t, strings.Fields(line), 2, line)
	}

	points, err := ReadPR(&buf)
	require.NoError(t, err)
	require.Len(t, points, len(c.Points))
	for i, p := range points {
		assert.Equal(t, Point{Precision: c.Points[i].Precision, Recall: c.Points[i].Recall}, p)
	}
}

func TestReadPR(t *testing.T) {
	input := "# header\n\n1 0.5\n  0.75 1 -2.5  \n"
	points, err := ReadPR(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []Point{
		{Precision: 1, Recall: 0.5},
		{Precision: 0.75, Recall: 1, Threshold: -2.5},
	}, points)

	_, err = ReadPR(strings.NewReader("1 0.5 0.2 9\n"))
	assert.True(t, errors.Is(err, common.ErrData))

	_, err = ReadPR(strings.NewReader("1 x\n"))
	assert.True(t, errors.Is(err, common.ErrData))
}

func TestSaveLoadPR(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "pr.txt")
	c := &Curve{Points: []Point{{Precision: 1, Recall: 0.5, Threshold: 3}}}
	require.NoError(t, SavePR(path, c))

	points, err := LoadPR(path)
	require.NoError(t, err)
	assert.Equal(t, []Point{{Precision: 1, Recall: 0.5}}, points)

	_, err = LoadPR(filepath.Join(t.TempDir(), "missing.txt"))
	assert.True(t, errors.Is(err, common.ErrData))
}

func TestDetections_RoundTrip(t *testing.T) {
	dets := []common.Detection{
		common.NewDetection(1, 2, 64, 128, 0.125),
		common.NewDetection(-3, 0, 10, 20, -1.5),
	}

	var buf bytes.Buffer
	require.NoError(t, WriteDetections(&buf, dets))
	assert.Equal(t, "2\n1 2 64 128 0.125\n-3 0 10 20 -1.5\n", buf.String())

	got, err := ReadDetections(&buf)
	require.NoError(t, err)
	assert.Equal(t, dets, got)
}

func TestReadDetections(t *testing.T) {
	got, err := ReadDetections(strings.NewReader("detections\n1\n5 5 10 10 2\n"))
	require.NoError(t, err)
	assert.Equal(t, []common.Detection{common.NewDetection(5, 5, 10, 10, 2)}, got)

	got, err = ReadDetections(strings.NewReader("0\n"))
	require.NoError(t, err)
	assert.Empty(t, got)

	for name, input := range map[string]string{
		"empty":          "",
		"bad count":      "two\n",
		"negative count": "-1\n",
		"truncated":      "2\n1 1 1 1 1\n",
		"bad coordinate": "1\n1 1 x 1 1\n",
		"bad response":   "1\n1 1 1 1 high\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ReadDetections(strings.NewReader(input))
			assert.True(t, errors.Is(err, common.ErrData), "%v", err)
		})
	}
}

func TestSaveLoadDetections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results", "img.txt")
	dets := []common.Detection{common.NewDetection(0, 0, 8, 16, 0.5)}
	require.NoError(t, SaveDetections(path, dets))

	got, err := LoadDetections(path)
	require.NoError(t, err)
	assert.Equal(t, dets, got)
}

func TestPlotCurve(t *testing.T) {
	c, err := NewDetectionCurve([]float64{Positive, Negative}, []float64{2, 1}, 1)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "plots", "pr.png")
	require.NoError(t, PlotCurve(c, "test", path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	empty := filepath.Join(t.TempDir(), "empty.png")
	require.NoError(t, PlotCurve(&Curve{}, "empty", empty))
}
