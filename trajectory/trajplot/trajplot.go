// Package trajplot renders trajectories as images for inspecting generated velocity profiles.
package trajplot

import (
	"image/color"
	"io"
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"go.viam.com/pathplanner/trajectory"
)

var (
	linearColor  = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	angularColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	capColor     = color.RGBA{R: 127, G: 127, B: 127, A: 255}
)

const (
	width  = 10 * vg.Inch
	height = 5 * vg.Inch
)

// VelocityPlot plots linear speed, angular speed and the path speed cap against time.
func VelocityPlot(traj *trajectory.Trajectory, title string) (*plot.Plot, error) {
	states := traj.States()
	if len(states) == 0 {
		return nil, errors.New("cannot plot an empty trajectory")
	}

	linear := make(plotter.XYs, len(states))
	angular := make(plotter.XYs, len(states))
	var caps plotter.XYs
	for i, s := range states {
		linear[i] = plotter.XY{X: s.Time, Y: s.LinearVelocity}
		angular[i] = plotter.XY{X: s.Time, Y: s.FieldSpeeds.Omega}
		// Unlimited constraints have no cap to draw.
		if !math.IsInf(s.Constraints.MaxVelocity, 0) {
			caps = append(caps, plotter.XY{X: s.Time, Y: s.Constraints.MaxVelocity})
		}
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Speed (m/s, rad/s)"
	if err := addLine(p, linear, linearColor, "linear"); err != nil {
		return nil, err
	}
	if err := addLine(p, angular, angularColor, "angular"); err != nil {
		return nil, err
	}
	if len(caps) > 0 {
		if err := addLine(p, caps, capColor, "max velocity"); err != nil {
			return nil, err
		}
	}
	p.Legend.Top = true
	return p, nil
}

// PathPlot plots the field positions of the trajectory.
func PathPlot(traj *trajectory.Trajectory, title string) (*plot.Plot, error) {
	states := traj.States()
	if len(states) == 0 {
		return nil, errors.New("cannot plot an empty trajectory")
	}
	pts := make(plotter.XYs, len(states))
	for i, s := range states {
		pts[i] = plotter.XY{X: s.Pose.X(), Y: s.Pose.Y()}
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "X (m)"
	p.Y.Label.Text = "Y (m)"
	if err := addLine(p, pts, linearColor, ""); err != nil {
		return nil, err
	}
	scatter, err := plotter.NewScatter(plotter.XYs{pts[0], pts[len(pts)-1]})
	if err != nil {
		return nil, err
	}
	scatter.Color = angularColor
	p.Add(scatter)
	return p, nil
}

func addLine(p *plot.Plot, pts plotter.XYs, c color.Color, label string) error {
	line, err := plotter.NewLine(pts)
	if err != nil {
		return errors.Wrapf(err, "plot %q", label)
	}
	line.Color = c
	line.Width = vg.Points(1)
	p.Add(line)
	if label != "" {
		p.Legend.Add(label, line)
	}
	return nil
}

// WritePNG renders p as a PNG image to w.
func WritePNG(p *plot.Plot, w io.Writer) error {
	writer, err := p.WriterTo(width, height, "png")
	if err != nil {
		return err
	}
	_, err = writer.WriteTo(w)
	return err
}

// Save renders p to file, choosing the format from its extension.
func Save(p *plot.Plot, file string) error {
	return errors.Wrapf(p.Save(width, height, file), "save plot %q", file)
}
