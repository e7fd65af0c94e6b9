package dataset

import (
	"bufio"
	"encoding/xml"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/nvr-ai/go-detect/common"
	"github.com/nvr-ai/go-detect/images"
)

// VOCConfig locates a Pascal VOC image set.
type VOCConfig struct {
	// Root is the VOC year directory holding Annotations/, ImageSets/ and JPEGImages/.
	Root string `json:"root" yaml:"root"`
	// Set is a list file path, or a set name such as "person_val" that is looked
	// up as Root/ImageSets/Main/<Set>.txt.
	Set string `json:"set" yaml:"set"`
	// Category is the object class that becomes ground truth, compared
	// case-insensitively.
	Category string `json:"category" yaml:"category"`
	// SkipDifficult drops objects flagged difficult from both the ground truth
	// and the negative count.
	SkipDifficult bool `json:"skip_difficult" yaml:"skip_difficult"`
}

// ListPath resolves the image set list file.
func (c VOCConfig) ListPath() string {
	if filepath.Ext(c.Set) == ".txt" {
		return c.Set
	}
	return filepath.Join(c.Root, "ImageSets", "Main", c.Set+".txt")
}

// Annotation is the subset of a VOC annotation XML file the loader reads.
type Annotation struct {
	XMLName  xml.Name `xml:"annotation"`
	Folder   string   `xml:"folder"`
	Filename string   `xml:"filename"`
	Size     struct {
		Width  int `xml:"width"`
		Height int `xml:"height"`
		Depth  int `xml:"depth"`
	} `xml:"size"`
	Objects []Object `xml:"object"`
}

// Object is one annotated object.
type Object struct {
	Name      string      `xml:"name"`
	Pose      string      `xml:"pose"`
	Truncated int         `xml:"truncated"`
	Difficult int         `xml:"difficult"`
	BndBox    BoundingBox `xml:"bndbox"`
}

// BoundingBox holds VOC corner coordinates.
type BoundingBox struct {
	XMin int `xml:"xmin"`
	YMin int `xml:"ymin"`
	XMax int `xml:"xmax"`
	YMax int `xml:"ymax"`
}

// Rect converts the corners to a window of width xmax-xmin and height ymax-ymin.
func (b BoundingBox) Rect() images.Rect {
	return images.NewRect(b.XMin, b.YMin, b.XMax-b.XMin, b.YMax-b.YMin)
}

// LoadAnnotation parses one VOC annotation file.
func LoadAnnotation(path string) (*Annotation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, common.WrapData(err, "read annotation")
	}
	var a Annotation
	if err := xml.Unmarshal(data, &a); err != nil {
		return nil, common.WrapData(err, "parse annotation "+path)
	}
	for i, o := range a.Objects {
		if o.BndBox.XMax < o.BndBox.XMin || o.BndBox.YMax < o.BndBox.YMin {
			return nil, common.DataError("annotation %s object %d has inverted box %+v", path, i, o.BndBox)
		}
	}
	return &a, nil
}

// LoadVOC builds a dataset from a VOC image set.
//
// Each list line is "<id>" or "<id> <flag>"; the flag is read and ignored. The
// image is Root/JPEGImages/<id>.jpg and its annotation Root/Annotations/<id>.xml.
// Objects of cfg.Category become ground truth with response 0; every other
// object counts towards Summary.Negatives.
//
// Arguments:
//   - cfg: Location, category and difficulty handling.
//   - logger: Receives one debug line per image, may be nil.
//
// Returns:
//   - *Dataset: The dataset in list order.
//   - error: A configuration error without a category, or a data error for a
//     missing or malformed list or annotation.
func LoadVOC(cfg VOCConfig, logger *zap.Logger) (*Dataset, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Category == "" {
		return nil, common.ConfigError("voc category is required")
	}

	ids, err := readImageSet(cfg.ListPath())
	if err != nil {
		return nil, err
	}

	filenames := make([]string, 0, len(ids))
	groundTruth := make([][]common.Detection, 0, len(ids))
	negatives := 0
	for _, id := range ids {
		a, err := LoadAnnotation(filepath.Join(cfg.Root, "Annotations", id+".xml"))
		if err != nil {
			return nil, err
		}

		var gt []common.Detection
		for _, o := range a.Objects {
			if cfg.SkipDifficult && o.Difficult != 0 {
				continue
			}
			if !strings.EqualFold(o.Name, cfg.Category) {
				negatives++
				continue
			}
			gt = append(gt, common.Detection{Rect: o.BndBox.Rect()})
		}

		logger.Debug("loaded annotation",
			zap.String("id", id),
			zap.Int("objects", len(a.Objects)),
			zap.Int("positives", len(gt)),
		)
		filenames = append(filenames, filepath.Join(cfg.Root, "JPEGImages", id+".jpg"))
		groundTruth = append(groundTruth, gt)
	}

	return newWithNegatives(filenames, groundTruth, negatives)
}

func readImageSet(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, common.WrapData(err, "open image set")
	}
	defer f.Close()

	var ids []string
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		switch len(fields) {
		case 0:
			continue
		case 1:
		case 2:
			if _, err := strconv.Atoi(fields[1]); err != nil {
				return nil, common.DataError("image set %s line %d: flag %q is not an integer", path, line, fields[1])
			}
		default:
			return nil, common.DataError("image set %s line %d: want \"<id> [flag]\"", path, line)
		}
		ids = append(ids, fields[0])
	}
	if err := sc.Err(); err != nil {
		return nil, common.WrapData(err, "read image set")
	}
	return ids, nil
}
