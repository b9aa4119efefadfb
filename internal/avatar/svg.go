package avatar

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	svg "github.com/ajstarks/svgo"
)

// svgScale maps the 64 grid onto a 128 unit viewBox so the half-pixel
// circle radii stay integral.
const svgScale = 2

// errWriter remembers the first write error, since svgo does not report them.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	e.err = err
	return n, err
}

// RenderSVG writes the scene as a standalone SVG document of size×size
// pixels, including the bob and pulse animations.
func RenderSVG(w io.Writer, s Scene, size int) error {
	ew := &errWriter{w: w}
	canvas := svg.New(ew)
	view := GridSize * svgScale
	canvas.Startview(size, size, 0, 0, view, view)

	canvas.Group(`shape-rendering="crispEdges"`)
	for _, l := range s.Layers {
		canvas.Gid(l.Name)
		for _, sh := range l.Shapes {
			writeShape(canvas, sh)
		}
		if l.Pulse {
			writePulse(canvas)
		}
		canvas.Gend()
	}
	writeBob(canvas, s.Bob)
	canvas.Gend()
	canvas.End()

	if ew.err != nil {
		return fmt.Errorf("avatar: writing svg: %w", ew.err)
	}
	return nil
}

func writeShape(canvas *svg.SVG, sh Shape) {
	if sh.Pulse {
		canvas.Group()
		defer func() {
			writePulse(canvas)
			canvas.Gend()
		}()
	}

	switch sh.Kind {
	case KindRect:
		canvas.Rect(px(sh.X), px(sh.Y), px(sh.W), px(sh.H), paint(sh)...)
	case KindCircle:
		canvas.Circle(px(sh.X), px(sh.Y), px(sh.R), paint(sh)...)
	case KindPolygon:
		xs := make([]int, len(sh.Points))
		ys := make([]int, len(sh.Points))
		for i, p := range sh.Points {
			xs[i], ys[i] = px(p.X), px(p.Y)
		}
		canvas.Polygon(xs, ys, paint(sh)...)
	case KindLine:
		a, b := sh.Points[0], sh.Points[1]
		canvas.Line(px(a.X), px(a.Y), px(b.X), px(b.Y), paint(sh)...)
	}
}

func paint(sh Shape) []string {
	var attrs []string
	if sh.Fill != "" {
		attrs = append(attrs, fmt.Sprintf(`fill="%s"`, sh.Fill))
	}
	if sh.Stroke != "" {
		attrs = append(attrs,
			fmt.Sprintf(`stroke="%s"`, sh.Stroke),
			fmt.Sprintf(`stroke-width="%s"`, num(sh.StrokeWidth*svgScale)),
		)
	}
	if sh.Opacity > 0 && sh.Opacity < 1 {
		attrs = append(attrs, fmt.Sprintf(`opacity="%s"`, num(sh.Opacity)))
	}
	return attrs
}

func writePulse(canvas *svg.SVG) {
	fmt.Fprint(canvas.Writer,
		`<animate attributeName="opacity" values="1;0.4;1" dur="1.5s" repeatCount="indefinite"/>`+"\n")
}

// writeBob emits the idle bounce as a stepped translate: up to the
// amplitude and back down across Steps frames.
func writeBob(canvas *svg.SVG, b Bob) {
	if b.Steps <= 0 || b.Period <= 0 {
		return
	}
	vals := make([]string, 0, b.Steps+1)
	for i := 0; i <= b.Steps; i++ {
		t := 2 * float64(i) / float64(b.Steps)
		if t > 1 {
			t = 2 - t
		}
		vals = append(vals, "0 "+num(-t*b.Amplitude*svgScale))
	}
	fmt.Fprintf(canvas.Writer,
		`<animateTransform attributeName="transform" type="translate" values="%s" dur="%s" calcMode="discrete" repeatCount="indefinite"/>`+"\n",
		strings.Join(vals, ";"), num(b.Period.Seconds())+"s")
}

func px(v float64) int {
	return int(v * svgScale)
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
