// Package dataset - Image lists with per-image ground truth, loaded from the
// ImageDatabase text format or a Pascal VOC tree.
package dataset

import (
	"path/filepath"

	"github.com/samber/lo"

	"github.com/nvr-ai/go-detect/common"
)

// Summary describes a dataset. It is computed once when the dataset is built.
type Summary struct {
	// Images is the number of images.
	Images int `json:"images" yaml:"images"`
	// Positives is the number of ground-truth objects.
	Positives int `json:"positives" yaml:"positives"`
	// Negatives is the number of annotated objects of other categories.
	Negatives int `json:"negatives" yaml:"negatives"`
	// Background is the number of images without a ground-truth object.
	Background int `json:"background" yaml:"background"`
}

// Dataset is an ordered list of images with the ground truth of each.
//
// Names are kept as written. Relative names are resolved against dir, the
// directory of the database file they were read from, when a path is asked for.
type Dataset struct {
	names       []string
	dir         string
	groundTruth [][]common.Detection
	summary     Summary
}

// New builds a dataset from parallel filename and ground-truth lists.
//
// Arguments:
//   - filenames: Image paths.
//   - groundTruth: Ground-truth windows per image, aligned with filenames.
//
// Returns:
//   - *Dataset: The dataset; its inputs are copied.
//   - error: A data error when the lists differ in length.
func New(filenames []string, groundTruth [][]common.Detection) (*Dataset, error) {
	return newWithNegatives(filenames, groundTruth, 0)
}

func newWithNegatives(filenames []string, groundTruth [][]common.Detection, negatives int) (*Dataset, error) {
	if len(filenames) != len(groundTruth) {
		return nil, common.DataError("%d filenames but %d ground-truth lists", len(filenames), len(groundTruth))
	}

	ds := &Dataset{
		names:       append([]string(nil), filenames...),
		groundTruth: make([][]common.Detection, len(groundTruth)),
	}
	for i, gt := range groundTruth {
		ds.groundTruth[i] = append([]common.Detection(nil), gt...)
	}

	ds.summary = Summary{
		Images:     len(filenames),
		Positives:  lo.SumBy(groundTruth, func(gt []common.Detection) int { return len(gt) }),
		Negatives:  negatives,
		Background: lo.CountBy(groundTruth, func(gt []common.Detection) bool { return len(gt) == 0 }),
	}
	return ds, nil
}

// Len returns the number of images.
func (d *Dataset) Len() int { return len(d.names) }

// Filename returns the path of image i, resolved against the database directory.
func (d *Dataset) Filename(i int) string { return resolve(d.dir, d.names[i]) }

// Filenames returns the resolved path of every image.
func (d *Dataset) Filenames() []string {
	out := make([]string, len(d.names))
	for i := range d.names {
		out[i] = d.Filename(i)
	}
	return out
}

// Name returns the name of image i as it was written.
func (d *Dataset) Name(i int) string { return d.names[i] }

// Dir returns the directory relative names are resolved against; empty when
// names are used as given.
func (d *Dataset) Dir() string { return d.dir }

// WithDetections returns a dataset over the same images, names and directory
// with dets in place of the ground truth, e.g. the predictions of a run.
//
// Returns:
//   - *Dataset: The new dataset.
//   - error: A data error when dets does not have one list per image.
func (d *Dataset) WithDetections(dets [][]common.Detection) (*Dataset, error) {
	out, err := New(d.names, dets)
	if err != nil {
		return nil, err
	}
	out.dir = d.dir
	return out, nil
}

// GroundTruth returns a copy of the ground truth of image i.
func (d *Dataset) GroundTruth(i int) []common.Detection {
	return append([]common.Detection(nil), d.groundTruth[i]...)
}

// AllGroundTruth returns a copy of the ground truth of every image.
func (d *Dataset) AllGroundTruth() [][]common.Detection {
	out := make([][]common.Detection, len(d.groundTruth))
	for i := range d.groundTruth {
		out[i] = d.GroundTruth(i)
	}
	return out
}

// Summary returns the counts computed when the dataset was built.
func (d *Dataset) Summary() Summary { return d.summary }

func resolve(dir, name string) string {
	if dir == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}
