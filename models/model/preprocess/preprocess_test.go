package preprocess

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniformPatch(w, h int, v uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func TestConfig_Size(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   image.Point
	}{
		{"reference window", Config{Window: image.Pt(64, 128), Scale: 0.2}, image.Pt(13, 26)},
		{"identity", Config{Window: image.Pt(8, 4), Scale: 1}, image.Pt(8, 4)},
		{"clamped to one pixel", Config{Window: image.Pt(2, 2), Scale: 0.1}, image.Pt(1, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.config.Size())
		})
	}
}

func TestNewPreprocessor_InvalidConfig(t *testing.T) {
	for _, cfg := range []Config{
		{Window: image.Pt(0, 128), Scale: 0.2},
		{Window: image.Pt(64, 128), Scale: 0},
		{Window: image.Pt(64, 128), Scale: 1.5},
	} {
		_, err := NewPreprocessor(cfg, nil)
		assert.Error(t, err)
	}
}

func TestPreprocessor_Process(t *testing.T) {
	p, err := NewPreprocessor(Config{Name: "ti", Window: image.Pt(20, 40), Scale: 0.5}, nil)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(10, 20), p.Size())

	plane, err := p.Process(uniformPatch(20, 40, 255))
	require.NoError(t, err)
	require.Len(t, plane.Data, 200)
	assert.Equal(t, 10, plane.Width)
	assert.Equal(t, 20, plane.Height)
	for _, v := range plane.Data {
		assert.InDelta(t, 1.0, v, 0.01)
	}
}

func TestPreprocessor_ProcessColorPatch(t *testing.T) {
	p, err := NewPreprocessor(Config{Window: image.Pt(4, 4), Scale: 1}, nil)
	require.NoError(t, err)

	patch := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			patch.Set(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}
	patch.Set(1, 2, color.RGBA{A: 255})

	plane, err := p.Process(patch)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, plane.At(1, 2), 1e-6)
	assert.InDelta(t, 1.0, plane.At(0, 0), 1e-6)
}

func TestPreprocessor_ValidatesPatch(t *testing.T) {
	p, err := NewPreprocessor(Config{Window: image.Pt(8, 8), Scale: 0.5}, nil)
	require.NoError(t, err)

	_, err = p.Process(nil)
	assert.Error(t, err)

	_, err = p.Process(uniformPatch(8, 9, 0))
	assert.Error(t, err)
}

func TestPlane_Normalize(t *testing.T) {
	plane := &Plane{Data: []float32{1, 2, 3, 4}, Width: 2, Height: 2}
	plane.Normalize()

	var sum, sq float32
	for _, v := range plane.Data {
		sum += v
		sq += v * v
	}
	assert.InDelta(t, 0, sum, 1e-6)
	assert.InDelta(t, 1, sq, 1e-5)

	flat := &Plane{Data: []float32{0.5, 0.5, 0.5}, Width: 3, Height: 1}
	flat.Normalize()
	assert.Equal(t, []float64{0, 0, 0}, flat.Float64s())
}
