package evaluation

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotSize is the side length of saved curve plots.
const PlotSize = 5 * vg.Inch

// PlotCurve renders the curve as precision over recall and saves it to path.
// The image format follows the extension (png, svg, pdf, ...).
func PlotCurve(c *Curve, title, path string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Recall"
	p.Y.Label.Text = "Precision"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1
	p.Add(plotter.NewGrid())

	if len(c.Points) > 0 {
		xys := make(plotter.XYs, len(c.Points))
		for i, pt := range c.Points {
			xys[i].X = pt.Recall
			xys[i].Y = pt.Precision
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return errors.Wrap(err, "precision-recall line")
		}
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("AP %.3f", c.AveragePrecision), line)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create plot directory")
	}
	return errors.Wrapf(p.Save(PlotSize, PlotSize, path), "save plot %s", path)
}
