package evaluation

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detect/common"
)

const (
	// PRHeader is the first line of a precision-recall file.
	PRHeader = "# precision recall threshold"
	// DetectionsSignature optionally precedes the count line of a results file.
	DetectionsSignature = "detections"
)

// WritePR writes the header, then one "precision recall" line per curve point.
// Thresholds are not written; BestThreshold reports the operating point.
func WritePR(w io.Writer, c *Curve) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, PRHeader)
	for _, p := range c.Points {
		fmt.Fprintf(bw, "%s %s\n", formatFloat(p.Precision), formatFloat(p.Recall))
	}
	return errors.Wrap(bw.Flush(), "write precision-recall curve")
}

// ReadPR reads a precision-recall file. Lines starting with '#' and blank lines
// are skipped; a third threshold column is accepted when present.
func ReadPR(r io.Reader) ([]Point, error) {
	var points []Point
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		fields := strings.Fields(text)
		if len(fields) != 2 && len(fields) != 3 {
			return nil, common.DataError("precision-recall line %d: want 2 or 3 fields, got %d", line, len(fields))
		}
		values := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, common.WrapData(err, fmt.Sprintf("precision-recall line %d", line))
			}
			values[i] = v
		}

		p := Point{Precision: values[0], Recall: values[1]}
		if len(values) == 3 {
			p.Threshold = values[2]
		}
		points = append(points, p)
	}
	if err := sc.Err(); err != nil {
		return nil, common.WrapData(err, "read precision-recall file")
	}
	return points, nil
}

// SavePR writes the curve to path.
func SavePR(path string, c *Curve) error {
	return writeFile(path, func(w io.Writer) error { return WritePR(w, c) })
}

// LoadPR reads the curve points stored at path.
func LoadPR(path string) ([]Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, common.WrapData(err, "open precision-recall file")
	}
	defer f.Close()
	return ReadPR(f)
}

// WriteDetections writes a results file: the count, then one
// "x y width height response" line per detection.
func WriteDetections(w io.Writer, dets []common.Detection) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, len(dets))
	for _, d := range dets {
		fmt.Fprintln(bw, d.String())
	}
	return errors.Wrap(bw.Flush(), "write detections")
}

// ReadDetections reads a results file written by WriteDetections. A leading
// "detections" signature line is accepted.
func ReadDetections(r io.Reader) ([]common.Detection, error) {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)

	next := func(what string) (string, error) {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return "", common.WrapData(err, "read detections")
			}
			return "", common.DataError("results file truncated before %s", what)
		}
		return sc.Text(), nil
	}

	tok, err := next("count")
	if err != nil {
		return nil, err
	}
	if tok == DetectionsSignature {
		if tok, err = next("count"); err != nil {
			return nil, err
		}
	}
	n, err := strconv.Atoi(tok)
	if err != nil || n < 0 {
		return nil, common.DataError("results file count %q is not a non-negative integer", tok)
	}

	dets := make([]common.Detection, 0, n)
	fields := make([]string, common.DetectionFields)
	for i := 0; i < n; i++ {
		for f := range fields {
			if fields[f], err = next(fmt.Sprintf("detection %d", i)); err != nil {
				return nil, err
			}
		}
		d, err := common.ParseDetection(fields)
		if err != nil {
			return nil, errors.Wrapf(err, "detection %d", i)
		}
		dets = append(dets, d)
	}
	return dets, nil
}

// SaveDetections writes a results file to path.
func SaveDetections(path string, dets []common.Detection) error {
	return writeFile(path, func(w io.Writer) error { return WriteDetections(w, dets) })
}

// LoadDetections reads the results file at path.
func LoadDetections(path string) ([]common.Detection, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, common.WrapData(err, "open results file")
	}
	defer f.Close()
	return ReadDetections(f)
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create output directory")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
