package images

import (
	"fmt"
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"
)

var font *truetype.Font

func init() {
	var err error
	font, err = truetype.Parse(goregular.TTF)
	if err != nil {
		panic(err)
	}
}

// Box is a rect to draw together with the score printed next to it.
type Box struct {
	Rect  Rect
	Score float64
}

// DrawOptions controls overlay rendering.
type DrawOptions struct {
	// Color of the rectangle outline and label.
	Color color.Color
	// LineWidth of the outline in pixels.
	LineWidth float64
	// FontSize of the score label; 0 hides labels.
	FontSize float64
}

// DefaultDrawOptions draws 2px red outlines with a 12pt label.
func DefaultDrawOptions() DrawOptions {
	return DrawOptions{Color: color.RGBA{R: 255, A: 255}, LineWidth: 2, FontSize: 12}
}

// DrawBoxes renders img with an outline (and optional score label) for each box.
//
// Arguments:
//   - img: The background image; it is not modified.
//   - boxes: Rects in img's coordinate frame.
//   - opts: Rendering options.
//
// Returns:
//   - image.Image: A new RGBA image with the overlay.
func DrawBoxes(img image.Image, boxes []Box, opts DrawOptions) image.Image {
	dc := gg.NewContextForImage(img)
	for _, b := range boxes {
		DrawRectangleEmpty(dc, b.Rect.Rectangle(), opts.Color, opts.LineWidth)
		if opts.FontSize > 0 {
			label := fmt.Sprintf("%.2f", b.Score)
			DrawString(dc, label, image.Pt(b.Rect.X+2, b.Rect.Y+2), opts.Color, opts.FontSize)
		}
	}
	return dc.Image()
}

// DrawString writes a string to the given context at a particular point.
func DrawString(dc *gg.Context, text string, p image.Point, c color.Color, size float64) {
	dc.SetFontFace(truetype.NewFace(font, &truetype.Options{Size: size}))
	dc.SetColor(c)
	dc.DrawStringAnchored(text, float64(p.X), float64(p.Y), 0, 1)
}

// DrawRectangleEmpty strokes the outline of r.
func DrawRectangleEmpty(dc *gg.Context, r image.Rectangle, c color.Color, width float64) {
	dc.SetColor(c)
	dc.SetLineWidth(width)
	dc.DrawRectangle(float64(r.Min.X), float64(r.Min.Y), float64(r.Dx()), float64(r.Dy()))
	dc.Stroke()
}
