package task

import (
	"image/color"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotHistory renders the report's loss curves to an image file. The format
// follows the extension of path (.png, .svg, .pdf).
func (r *Report) PlotHistory(path string) error {
	if len(r.History) == 0 {
		return errors.New("task: report has no history to plot")
	}

	p := plot.New()
	p.Title.Text = "training history"
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "loss"

	trainXY := make(plotter.XYs, 0, len(r.History))
	valXY := make(plotter.XYs, 0, len(r.History))
	hasVal := false
	for _, m := range r.History {
		trainXY = append(trainXY, plotter.XY{X: float64(m.Epoch), Y: m.TrainLoss})
		if m.ValLoss != 0 {
			hasVal = true
		}
		valXY = append(valXY, plotter.XY{X: float64(m.Epoch), Y: m.ValLoss})
	}

	trainLine, err := plotter.NewLine(trainXY)
	if err != nil {
		return errors.Wrap(err, "building train loss line")
	}
	trainLine.Width = vg.Points(1.2)
	p.Add(trainLine)
	p.Legend.Add("train", trainLine)

	if hasVal {
		valLine, err := plotter.NewLine(valXY)
		if err != nil {
			return errors.Wrap(err, "building validation loss line")
		}
		valLine.Width = vg.Points(1.2)
		valLine.Color = color.RGBA{R: 0xcc, A: 0xff}
		p.Add(valLine)
		p.Legend.Add("val", valLine)
	}

	p.Add(plotter.NewGrid())
	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "saving plot to %s", path)
	}
	return nil
}
