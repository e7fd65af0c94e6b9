package postprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-detect/images"
)

func TestApplyGreedyNMS(t *testing.T) {
	in := []Candidate{
		{Box: images.NewRect(0, 0, 100, 100), Score: 0.6},
		{Box: images.NewRect(5, 5, 100, 100), Score: 0.9},
		{Box: images.NewRect(300, 300, 50, 50), Score: 0.1},
		{Box: images.NewRect(10, 0, 100, 100), Score: 0.8},
	}
	snapshot := append([]Candidate(nil), in...)

	out := ApplyGreedyNMS(in, NMSConfig{IoUThreshold: 0.5})
	require.Len(t, out, 2)
	assert.Equal(t, 0.9, out[0].Score)
	assert.Equal(t, 0.1, out[1].Score)
	assert.Equal(t, snapshot, in, "input must not be reordered")
}

func TestApplyGreedyNMS_ThresholdIsExclusive(t *testing.T) {
	a := Candidate{Box: images.NewRect(0, 0, 10, 10), Score: 2}
	b := Candidate{Box: images.NewRect(0, 0, 10, 10), Score: 1}

	assert.Len(t, ApplyGreedyNMS([]Candidate{a, b}, NMSConfig{IoUThreshold: 1}), 2)
	assert.Len(t, ApplyGreedyNMS([]Candidate{a, b}, NMSConfig{IoUThreshold: 0.99}), 1)
}

func TestApplyGreedyNMS_Empty(t *testing.T) {
	assert.Nil(t, ApplyGreedyNMS(nil, NMSConfig{IoUThreshold: 0.5}))
}

func TestReduce(t *testing.T) {
	in := []Candidate{
		{Box: images.NewRect(0, 0, 100, 100), Score: 1},
		{Box: images.NewRect(2, 2, 98, 98), Score: 2},
		{Box: images.NewRect(2, 2, 98, 98), Score: 3},
	}

	cfg := DefaultConfig()
	assert.Len(t, Reduce(in, cfg), 1)

	cfg.Mode = ModeNMS
	out := Reduce(in, cfg)
	require.Len(t, out, 1)
	assert.Equal(t, 3.0, out[0].Score)

	cfg.Mode = ModeNone
	assert.Equal(t, in, Reduce(in, cfg))
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.NoError(t, Config{Mode: ModeNone}.Validate())

	bad := []Config{
		{Mode: "mean-shift"},
		{Mode: ModeGroup, Group: GroupConfig{Eps: -1}},
		{Mode: ModeNMS, NMS: NMSConfig{IoUThreshold: 2}},
	}
	for _, cfg := range bad {
		assert.Error(t, cfg.Validate(), "%+v", cfg)
	}
}
