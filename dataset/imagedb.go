package dataset

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detect/common"
)

// Signature is the optional first token of an ImageDatabase file.
const Signature = "ImageDataset"

// Write stores the dataset in ImageDatabase text form: the signature, the
// image count, then one "filename nDets x y w h response ..." line per image.
// Names are written as held; they must not contain whitespace.
func Write(w io.Writer, d *Dataset) error {
	return write(w, d, d.names)
}

func write(w io.Writer, d *Dataset, names []string) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, Signature)
	fmt.Fprintln(bw, d.Len())
	for i, name := range names {
		fmt.Fprintf(bw, "%s %d", name, len(d.groundTruth[i]))
		for _, det := range d.groundTruth[i] {
			fmt.Fprintf(bw, " %s", det.String())
		}
		fmt.Fprintln(bw)
	}
	return errors.Wrap(bw.Flush(), "write image database")
}

// Read parses an ImageDatabase text stream. The signature is optional; tokens
// may be split across lines in any way.
//
// Arguments:
//   - r: The stream.
//   - dir: Directory that relative names are resolved against; empty uses
//     them as given. Names are stored as written either way.
//
// Returns:
//   - *Dataset: The dataset.
//   - error: A data error on malformed or truncated input.
func Read(r io.Reader, dir string) (*Dataset, error) {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)

	next := func(what string) (string, error) {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return "", common.WrapData(err, "read image database")
			}
			return "", common.DataError("image database truncated before %s", what)
		}
		return sc.Text(), nil
	}
	count := func(what string) (int, error) {
		tok, err := next(what)
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(tok)
		if err != nil || n < 0 {
			return 0, common.DataError("image database %s %q is not a non-negative integer", what, tok)
		}
		return n, nil
	}

	tok, err := next("image count")
	if err != nil {
		return nil, err
	}
	if tok == Signature {
		if tok, err = next("image count"); err != nil {
			return nil, err
		}
	}
	nImages, err := strconv.Atoi(tok)
	if err != nil || nImages < 0 {
		return nil, common.DataError("image database image count %q is not a non-negative integer", tok)
	}

	filenames := make([]string, nImages)
	groundTruth := make([][]common.Detection, nImages)
	fields := make([]string, common.DetectionFields)
	for i := 0; i < nImages; i++ {
		name, err := next(fmt.Sprintf("filename of image %d", i))
		if err != nil {
			return nil, err
		}
		filenames[i] = name

		nDets, err := count(fmt.Sprintf("detection count of image %d", i))
		if err != nil {
			return nil, err
		}
		dets := make([]common.Detection, 0, nDets)
		for j := 0; j < nDets; j++ {
			for f := range fields {
				if fields[f], err = next(fmt.Sprintf("detection %d of image %d", j, i)); err != nil {
					return nil, err
				}
			}
			det, err := common.ParseDetection(fields)
			if err != nil {
				return nil, errors.Wrapf(err, "image %d (%s) detection %d", i, name, j)
			}
			dets = append(dets, det)
		}
		groundTruth[i] = dets
	}

	ds, err := New(filenames, groundTruth)
	if err != nil {
		return nil, err
	}
	ds.dir = dir
	return ds, nil
}

// Load reads the ImageDatabase file at path. Relative image paths inside it
// are resolved against the file's directory.
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, common.WrapData(err, "open image database")
	}
	defer f.Close()

	ds, err := Read(f, filepath.Dir(path))
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return ds, nil
}

// Save writes the dataset to path, creating its directory.
//
// Relative names of a dataset read from another directory are rewritten
// relative to path's directory, so Load finds the same images again.
func Save(path string, d *Dataset) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create image database directory")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := write(f, d, d.namesFrom(filepath.Dir(path))); err != nil {
		f.Close()
		return err
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}

// namesFrom returns the names rebased onto dir. Names used as given and
// absolute names are kept; a name that cannot be made relative to dir is
// written as its absolute path.
func (d *Dataset) namesFrom(dir string) []string {
	names := append([]string(nil), d.names...)
	if d.dir == "" || filepath.Clean(d.dir) == filepath.Clean(dir) {
		return names
	}

	for i, name := range names {
		if filepath.IsAbs(name) {
			continue
		}
		target, err := filepath.Abs(resolve(d.dir, name))
		if err != nil {
			names[i] = resolve(d.dir, name)
			continue
		}
		base, err := filepath.Abs(dir)
		if err != nil {
			names[i] = target
			continue
		}
		if rel, err := filepath.Rel(base, target); err == nil {
			names[i] = rel
		} else {
			names[i] = target
		}
	}
	return names
}
