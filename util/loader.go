package util

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-detect/common"
)

// ImageExtensions are the file extensions treated as images, lower case.
var ImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp"}

// IsImageFile reports whether path has an image extension, ignoring case.
func IsImageFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range ImageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// LoadDirectoryImageFiles lists the image files directly inside a directory.
//
// Arguments:
//   - dir: Directory path containing image files.
//
// Returns:
//   - []string: Image paths sorted by name. Subdirectories are not descended.
//   - error: Error if the directory cannot be read.
func LoadDirectoryImageFiles(dir string) ([]string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read image directory %s", dir)
	}

	var paths []string
	for _, file := range files {
		if file.IsDir() || !IsImageFile(file.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, file.Name()))
	}
	sort.Strings(paths)

	return paths, nil
}

// ExpandImagePaths turns a mix of image files and directories into a flat list
// of image paths. Directories expand in name order; files keep argument order.
//
// Returns:
//   - []string: The image paths.
//   - error: A data error for a missing path or a file without an image extension.
func ExpandImagePaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, common.WrapData(err, "image path")
		}
		if info.IsDir() {
			found, err := LoadDirectoryImageFiles(arg)
			if err != nil {
				return nil, common.WrapData(err, "image path")
			}
			paths = append(paths, found...)
			continue
		}
		if !IsImageFile(arg) {
			return nil, common.DataError("%s is not an image file", arg)
		}
		paths = append(paths, arg)
	}
	return paths, nil
}
