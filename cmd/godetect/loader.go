//go:build !gocv

package main

import (
	"github.com/nvr-ai/go-detect/benchmark"
	"github.com/nvr-ai/go-detect/images"
)

// imageLoader decodes images with the pure Go decoders.
func imageLoader() benchmark.ImageLoader {
	return images.Load
}
