package avatar

import (
	"fmt"
	"io"

	"github.com/fogleman/gg"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// RenderPNG rasterizes the still frame of the scene to a size×size PNG.
// Animation hints are ignored.
func RenderPNG(w io.Writer, s Scene, size int) error {
	dc := gg.NewContext(size, size)
	scale := float64(size) / GridSize
	dc.Scale(scale, scale)

	for _, l := range s.Layers {
		for _, sh := range l.Shapes {
			if err := drawShape(dc, sh, scale); err != nil {
				return err
			}
		}
	}

	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("avatar: encoding png: %w", err)
	}
	return nil
}

// Line widths are not affected by the context transform, so lines take the
// scale explicitly.
func drawShape(dc *gg.Context, sh Shape, scale float64) error {
	color := sh.Fill
	if sh.Kind == KindLine {
		color = sh.Stroke
	}
	c, err := colorful.Hex(color)
	if err != nil {
		return fmt.Errorf("avatar: bad color %q: %w", color, err)
	}
	alpha := sh.Opacity
	if alpha <= 0 {
		alpha = 1
	}
	dc.SetRGBA(c.R, c.G, c.B, alpha)

	switch sh.Kind {
	case KindRect:
		dc.DrawRectangle(sh.X, sh.Y, sh.W, sh.H)
		dc.Fill()
	case KindCircle:
		dc.DrawCircle(sh.X, sh.Y, sh.R)
		dc.Fill()
	case KindPolygon:
		for i, p := range sh.Points {
			if i == 0 {
				dc.MoveTo(p.X, p.Y)
			} else {
				dc.LineTo(p.X, p.Y)
			}
		}
		dc.ClosePath()
		dc.Fill()
	case KindLine:
		a, b := sh.Points[0], sh.Points[1]
		dc.SetLineWidth(sh.StrokeWidth * scale)
		dc.DrawLine(a.X, a.Y, b.X, b.Y)
		dc.Stroke()
	}
	return nil
}
