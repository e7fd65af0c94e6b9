package postprocess

import (
	"math"

	"github.com/nvr-ai/go-detect/common"
)

// Mode selects how raw hits are reduced.
type Mode string

const (
	// ModeGroup clusters hits with GroupRectangles.
	ModeGroup Mode = "group"
	// ModeNMS suppresses hits with ApplyGreedyNMS.
	ModeNMS Mode = "nms"
	// ModeNone keeps every raw hit.
	ModeNone Mode = "none"
)

// Config selects and parameterises the reduction step.
type Config struct {
	Mode  Mode        `json:"mode"  yaml:"mode"`
	Group GroupConfig `json:"group" yaml:"group"`
	NMS   NMSConfig   `json:"nms"   yaml:"nms"`
}

// DefaultConfig groups with eps 0.2 and a group threshold of 2.
func DefaultConfig() Config {
	return Config{
		Mode:  ModeGroup,
		Group: GroupConfig{Eps: 0.2, GroupThreshold: 2},
		NMS:   NMSConfig{IoUThreshold: 0.5},
	}
}

// Validate checks the mode and its parameters.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeGroup, "":
		if math.IsNaN(c.Group.Eps) || c.Group.Eps < 0 {
			return common.ConfigError("grouping eps must be non-negative, got %v", c.Group.Eps)
		}
	case ModeNMS:
		if math.IsNaN(c.NMS.IoUThreshold) || c.NMS.IoUThreshold < 0 || c.NMS.IoUThreshold > 1 {
			return common.ConfigError("nms iou threshold must lie in [0, 1], got %v", c.NMS.IoUThreshold)
		}
	case ModeNone:
	default:
		return common.ConfigError("unknown reduction mode %q", c.Mode)
	}
	return nil
}

// Reduce applies the configured reduction. An empty mode means ModeGroup.
func Reduce(candidates []Candidate, cfg Config) []Candidate {
	switch cfg.Mode {
	case ModeNMS:
		return ApplyGreedyNMS(candidates, cfg.NMS)
	case ModeNone:
		return candidates
	default:
		return GroupRectangles(candidates, cfg.Group)
	}
}
