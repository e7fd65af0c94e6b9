package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/nvr-ai/go-detect/common"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestLoadDirectoryImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"frame-10.jpg", "frame-2.PNG", "notes.txt", "a.bmp", "sub/nested.jpg"} {
		touch(t, filepath.Join(dir, name))
	}

	paths, err := LoadDirectoryImageFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.bmp"),
		filepath.Join(dir, "frame-10.jpg"),
		filepath.Join(dir, "frame-2.PNG"),
	}, paths)

	_, err = LoadDirectoryImageFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestExpandImagePaths(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "set", "b.jpg"))
	touch(t, filepath.Join(dir, "set", "a.jpeg"))
	touch(t, filepath.Join(dir, "single.png"))
	touch(t, filepath.Join(dir, "readme.md"))

	paths, err := ExpandImagePaths([]string{filepath.Join(dir, "single.png"), filepath.Join(dir, "set")})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "single.png"),
		filepath.Join(dir, "set", "a.jpeg"),
		filepath.Join(dir, "set", "b.jpg"),
	}, paths)

	_, err = ExpandImagePaths([]string{filepath.Join(dir, "readme.md")})
	assert.True(t, errors.Is(err, common.ErrData))

	_, err = ExpandImagePaths([]string{filepath.Join(dir, "nope.jpg")})
	assert.True(t, errors.Is(err, common.ErrData))
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("debug")
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = NewLogger("warn")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))

	_, err = NewLogger("loud")
	assert.True(t, errors.Is(err, common.ErrConfiguration))
}
