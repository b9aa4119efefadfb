package avatar

import "time"

// GridSize is the side length of the logical pixel grid every scene is drawn on.
const GridSize = 64

type ShapeKind int

const (
	KindRect ShapeKind = iota
	KindCircle
	KindPolygon
	KindLine
)

var kindNames = [...]string{"rect", "circle", "polygon", "line"}

func (k ShapeKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

func (k ShapeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Point is a grid coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Shape is one vector primitive. Which fields matter depends on Kind:
// rects use X/Y/W/H, circles X/Y/R, polygons Points, lines Points[0..1]
// with Stroke and StrokeWidth.
type Shape struct {
	Kind        ShapeKind `json:"kind"`
	X           float64   `json:"x,omitempty"`
	Y           float64   `json:"y,omitempty"`
	W           float64   `json:"w,omitempty"`
	H           float64   `json:"h,omitempty"`
	R           float64   `json:"r,omitempty"`
	Points      []Point   `json:"points,omitempty"`
	Fill        string    `json:"fill,omitempty"`
	Stroke      string    `json:"stroke,omitempty"`
	StrokeWidth float64   `json:"strokeWidth,omitempty"`
	Opacity     float64   `json:"opacity,omitempty"`
	Pulse       bool      `json:"pulse,omitempty"`
}

// Layer groups shapes that belong to one slot. Layers are painted in order.
type Layer struct {
	Name   string  `json:"name"`
	Pulse  bool    `json:"pulse,omitempty"`
	Shapes []Shape `json:"shapes"`
}

// Bob describes the idle vertical bounce. It is cosmetic only.
type Bob struct {
	Amplitude float64       `json:"amplitude"`
	Period    time.Duration `json:"periodNs"`
	Steps     int           `json:"steps"`
}

// Scene is the renderer-independent drawing of a descriptor.
type Scene struct {
	Layers []Layer `json:"layers"`
	Bob    Bob     `json:"bob"`
}

func rect(x, y, w, h float64, fill string, opacity float64) Shape {
	return Shape{Kind: KindRect, X: x, Y: y, W: w, H: h, Fill: fill, Opacity: opacity}
}

func circle(cx, cy, r float64, fill string, opacity float64) Shape {
	return Shape{Kind: KindCircle, X: cx, Y: cy, R: r, Fill: fill, Opacity: opacity}
}

func polygon(fill string, opacity float64, pts ...Point) Shape {
	return Shape{Kind: KindPolygon, Points: pts, Fill: fill, Opacity: opacity}
}

func line(x1, y1, x2, y2 float64, stroke string, width, opacity float64) Shape {
	return Shape{
		Kind:        KindLine,
		Points:      []Point{{x1, y1}, {x2, y2}},
		Stroke:      stroke,
		StrokeWidth: width,
		Opacity:     opacity,
	}
}

// BuildScene lays out the descriptor as layered primitives in the fixed
// z-order body, outfit, hair, eyes, accessory.
func BuildScene(d Descriptor) Scene {
	s := Scene{
		Bob: Bob{Amplitude: 2, Period: 1200 * time.Millisecond, Steps: 8},
	}
	s.Layers = append(s.Layers,
		Layer{Name: "body", Shapes: bodyShapes(d.Skin)},
		Layer{Name: "outfit", Shapes: outfitShapes(d.Selection.Outfit, d.OutfitColor)},
		Layer{Name: "hair", Shapes: hairShapes(d.Selection.Hair, d.Hair)},
		Layer{Name: "eyes", Shapes: eyeShapes(d.Selection.Eyes, d.EyeColor)},
	)
	if d.HasAccessory() {
		s.Layers = append(s.Layers, Layer{
			Name:   "accessory",
			Pulse:  d.Selection.Accessory == 3 || d.Selection.Accessory == 5,
			Shapes: accessoryShapes(d.Selection.Accessory, d.AccessoryColor),
		})
	}
	return s
}

func bodyShapes(t Tone) []Shape {
	return []Shape{
		rect(22, 14, 24, 32, t.Shadow, 1),
		rect(24, 48, 4, 8, t.Shadow, 1),
		rect(36, 48, 4, 8, t.Shadow, 1),
		rect(23, 14, 20, 32, t.Main, 1),
		rect(24, 48, 3, 7, t.Main, 1),
		rect(36, 48, 3, 7, t.Main, 1),
		rect(23, 14, 1, 32, t.Highlight, 0.4),
		rect(23, 14, 20, 1, t.Highlight, 0.4),
		// arms
		rect(18, 18, 4, 16, t.Main, 1),
		rect(42, 18, 4, 16, t.Main, 1),
		rect(18, 18, 1, 16, t.Highlight, 0.3),
		rect(45, 18, 1, 16, t.Shadow, 0.3),
	}
}

func hairShapes(style int, t Tone) []Shape {
	switch style {
	case 0: // spiky
		return []Shape{
			rect(22, 10, 20, 8, t.Main, 1),
			rect(23, 8, 2, 2, t.Main, 1),
			rect(27, 6, 3, 4, t.Main, 1),
			rect(33, 6, 3, 4, t.Main, 1),
			rect(22, 10, 20, 1, t.Highlight, 0.4),
			rect(22, 17, 20, 1, t.Shadow, 0.4),
		}
	case 1: // long
		return []Shape{
			rect(20, 10, 24, 8, t.Main, 1),
			rect(20, 18, 4, 20, t.Main, 1),
			rect(40, 18, 4, 20, t.Main, 1),
			rect(20, 10, 1, 28, t.Highlight, 0.3),
			rect(43, 10, 1, 28, t.Shadow, 0.3),
		}
	case 2: // pompadour
		return []Shape{
			rect(20, 6, 24, 12, t.Main, 1),
			rect(21, 4, 22, 2, t.Main, 1),
			rect(20, 6, 24, 2, t.Highlight, 0.4),
			rect(20, 16, 24, 2, t.Shadow, 0.4),
		}
	case 3: // side-swept
		return []Shape{
			rect(18, 10, 28, 8, t.Main, 1),
			rect(18, 18, 8, 10, t.Main, 1),
			rect(18, 10, 28, 2, t.Highlight, 0.3),
			rect(25, 18, 1, 10, t.Shadow, 0.2),
		}
	default: // top-knot
		return []Shape{
			rect(28, 2, 8, 12, t.Main, 1),
			rect(26, 10, 12, 4, t.Main, 1),
			rect(28, 2, 1, 12, t.Highlight, 0.3),
		}
	}
}

func eyeShapes(style int, c string) []Shape {
	switch style {
	case 0: // normal
		return []Shape{
			rect(25, 22, 6, 6, white, 1),
			rect(35, 22, 6, 6, white, 1),
			rect(26, 23, 4, 4, c, 1),
			rect(36, 23, 4, 4, c, 1),
			rect(27, 23, 1, 1, white, 0.8),
			rect(37, 23, 1, 1, white, 0.8),
		}
	case 1: // wink
		return []Shape{
			rect(25, 22, 6, 6, white, 1),
			rect(26, 23, 4, 4, c, 1),
			rect(35, 25, 6, 2, black, 0.5),
			rect(27, 23, 1, 1, white, 0.8),
		}
	case 2: // sunglasses
		return []Shape{
			rect(22, 22, 20, 6, "#1A1A1A", 1),
			rect(23, 23, 18, 1, white, 0.15),
			rect(24, 24, 6, 3, black, 1),
			rect(34, 24, 6, 3, black, 1),
		}
	case 3: // visor
		scan := rect(23, 25, 18, 1, c, 0.1)
		scan.Pulse = true
		return []Shape{
			rect(23, 22, 18, 6, c, 0.2),
			rect(23, 22, 18, 1, c, 1),
			rect(25, 24, 2, 2, c, 1),
			rect(37, 24, 2, 2, c, 1),
			scan,
		}
	case 4: // determined
		return []Shape{
			polygon(white, 1, Point{25, 21}, Point{28, 22}, Point{28, 26}, Point{25, 26}),
			polygon(white, 1, Point{36, 22}, Point{39, 21}, Point{39, 25}, Point{36, 25}),
			rect(26, 23, 2, 2, c, 1),
			rect(37, 23, 2, 2, c, 1),
			line(24, 20, 28, 21, black, 1, 0.5),
			line(36, 21, 40, 20, black, 1, 0.5),
		}
	default: // bored
		return []Shape{
			rect(25, 24, 6, 2, white, 1),
			rect(35, 24, 6, 2, white, 1),
			rect(27, 24, 2, 2, c, 1),
			rect(37, 24, 2, 2, c, 1),
			rect(25, 22, 6, 2, black, 0.2),
			rect(35, 22, 6, 2, black, 0.2),
		}
	}
}

func outfitShapes(style int, c string) []Shape {
	switch style {
	case 0: // tee
		return []Shape{
			rect(22, 36, 20, 10, c, 1),
			rect(18, 18, 4, 8, c, 1),
			rect(42, 18, 4, 8, c, 1),
			rect(22, 36, 20, 2, white, 0.1),
			rect(22, 44, 20, 2, black, 0.1),
		}
	case 1: // hoodie
		return []Shape{
			rect(22, 34, 20, 12, c, 1),
			rect(18, 18, 4, 12, c, 1),
			rect(42, 18, 4, 12, c, 1),
			rect(30, 34, 4, 12, black, 0.1),
			rect(22, 34, 20, 1, white, 0.1),
		}
	case 2: // tactical
		return []Shape{
			rect(22, 34, 20, 12, c, 1),
			rect(22, 34, 2, 12, black, 0.3),
			rect(40, 34, 2, 12, black, 0.3),
			rect(28, 38, 8, 4, black, 0.1),
			rect(28, 38, 8, 1, white, 0.1),
		}
	default: // scarf
		return []Shape{
			rect(22, 32, 20, 14, c, 1),
			rect(22, 32, 20, 5, white, 0.2),
			rect(22, 32, 20, 1, white, 0.2),
			rect(22, 36, 20, 1, black, 0.1),
		}
	}
}

func accessoryShapes(style int, c string) []Shape {
	switch style {
	case 1: // headphones
		return []Shape{
			rect(20, 10, 24, 4, c, 1),
			rect(17, 24, 6, 12, c, 1),
			rect(41, 24, 6, 12, c, 1),
			rect(17, 24, 1, 12, white, 0.3),
			circle(20, 30, 1.5, black, 0.2),
			circle(44, 30, 1.5, black, 0.2),
		}
	case 2: // boombox
		return []Shape{
			rect(4, 44, 14, 14, c, 1),
			rect(5, 42, 12, 2, black, 0.3),
			circle(8, 49, 2.5, black, 0.4),
			circle(14, 49, 2.5, black, 0.4),
			rect(8, 54, 6, 2, black, 0.2),
		}
	case 3: // floating note
		return []Shape{
			polygon(c, 1,
				Point{50, 10}, Point{58, 10}, Point{58, 14}, Point{54, 14},
				Point{54, 22}, Point{58, 22}, Point{58, 26}, Point{50, 26}),
			rect(51, 11, 1, 1, white, 0.6),
		}
	case 4: // wrist device
		return []Shape{
			rect(46, 28, 6, 8, c, 1),
			rect(47, 30, 4, 4, "#22C55E", 0.4),
			rect(47, 30, 4, 1, white, 0.3),
		}
	case 5: // synth cubes
		return []Shape{
			rect(8, 8, 4, 4, c, 1),
			rect(52, 40, 4, 4, c, 1),
			rect(8, 52, 4, 4, c, 0.5),
		}
	}
	return nil
}
