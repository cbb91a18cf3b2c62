// Package plot renders the sweep dataset as an amplitude-vs-frequency
// line plot.
package plot

import (
	"errors"
	"fmt"
	"io"

	gplot "gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var ErrEmptyDataset = errors.New("plot: empty dataset")

// Render builds the plot: X is frequency ("freq"), Y is amplitude ("ampl")
// with the floor clamped to zero.
func Render(title string, freqs, ampls []float64) (*gplot.Plot, error) {
	if len(freqs) != len(ampls) {
		return nil, fmt.Errorf("plot: %d frequencies but %d amplitudes", len(freqs), len(ampls))
	}
	if len(freqs) == 0 {
		return nil, ErrEmptyDataset
	}

	pts := make(plotter.XYs, len(freqs))
	for i := range freqs {
		pts[i].X = freqs[i]
		pts[i].Y = ampls[i]
	}

	p := gplot.New()
	p.Title.Text = title
	p.X.Label.Text = "freq"
	p.Y.Label.Text = "ampl"

	line, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("plot: building line: %w", err)
	}
	p.Add(plotter.NewGrid(), line)

	// Amplitude floor clamps to zero regardless of the data range.
	p.Y.Min = 0

	return p, nil
}

// SavePNG renders the dataset and writes it as a PNG file.
func SavePNG(path, title string, freqs, ampls []float64) error {
	p, err := Render(title, freqs, ampls)
	if err != nil {
		return err
	}
	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("plot: saving %s: %w", path, err)
	}
	return nil
}

// WritePNG renders the dataset and streams the PNG to w.
func WritePNG(w io.Writer, title string, freqs, ampls []float64) error {
	p, err := Render(title, freqs, ampls)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(8*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("plot: encoding png: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("plot: writing png: %w", err)
	}
	return nil
}
