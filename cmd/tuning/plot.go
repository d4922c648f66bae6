package main

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/babushkai/gta-sub001/internal/telemetry"
)

var traceColors = []color.Color{
	color.RGBA{R: 200, G: 40, B: 40, A: 255},
	color.RGBA{R: 40, G: 90, B: 200, A: 255},
	color.RGBA{R: 30, G: 150, B: 60, A: 255},
}

// writeTrace saves a PNG of roll, pitch and lean against step for one
// scenario run and returns its path.
func writeTrace(dir string, r result, samples []telemetry.Sample) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output dir: %w", err)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s - %s", r.Scenario, r.Kind)
	p.X.Label.Text = "Step"
	p.Y.Label.Text = "Angle (deg)"

	series := []struct {
		label string
		value func(telemetry.Sample) float64
	}{
		{"roll", func(s telemetry.Sample) float64 { return s.RollDeg }},
		{"pitch", func(s telemetry.Sample) float64 { return s.PitchDeg }},
		{"lean", func(s telemetry.Sample) float64 { return s.LeanDeg }},
	}
	for i, sr := range series {
		pts := make(plotter.XYs, 0, len(samples))
		for _, s := range samples {
			pts = append(pts, plotter.XY{X: float64(s.Step), Y: sr.value(s)})
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return "", err
		}
		line.Color = traceColors[i]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(sr.label, line)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.png", r.Scenario, r.Kind))
	if err := p.Save(10*vg.Inch, 4*vg.Inch, path); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", path, err)
	}
	return path, nil
}
