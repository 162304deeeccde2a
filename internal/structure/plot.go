package structure

import (
	"bytes"
	"errors"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var bandLines = []struct {
	value float64
	color color.RGBA
}{
	{90, color.RGBA{R: 0, G: 83, B: 214, A: 255}},
	{70, color.RGBA{R: 101, G: 203, B: 243, A: 255}},
	{50, color.RGBA{R: 255, G: 219, B: 19, A: 255}},
}

// PlotResidueConfidence renders per-residue confidence as an SVG line plot
// with the AlphaFold band thresholds drawn as dashed guides.
func PlotResidueConfidence(residues []Residue) ([]byte, error) {
	if len(residues) == 0 {
		return nil, errors.New("no residues to plot")
	}

	p := plot.New()
	p.Title.Text = "Predicted LDDT per residue"
	p.X.Label.Text = "Residue"
	p.Y.Label.Text = "pLDDT"
	p.Y.Min = 0
	p.Y.Max = 100
	last := float64(len(residues))
	if last < 2 {
		last = 2
	}
	p.X.Min = 1
	p.X.Max = last

	points := make(plotter.XYs, len(residues))
	for i, r := range residues {
		points[i].X = float64(i + 1)
		points[i].Y = r.Confidence
	}

	line, err := plotter.NewLine(points)
	if err != nil {
		return nil, err
	}
	line.LineStyle.Color = color.RGBA{R: 50, G: 100, B: 200, A: 255}
	line.LineStyle.Width = vg.Points(1.5)
	p.Add(line)
	p.Legend.Add("pLDDT", line)
	p.Legend.Top = true

	for _, band := range bandLines {
		guide, err := plotter.NewLine(plotter.XYs{{X: 1, Y: band.value}, {X: last, Y: band.value}})
		if err != nil {
			return nil, err
		}
		guide.LineStyle.Color = band.color
		guide.LineStyle.Width = vg.Points(1)
		guide.LineStyle.Dashes = []vg.Length{vg.Points(3), vg.Points(3)}
		p.Add(guide)
	}

	var buf bytes.Buffer
	writer, err := p.WriterTo(10*vg.Inch, 4*vg.Inch, "svg")
	if err != nil {
		return nil, err
	}
	if _, err := writer.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
