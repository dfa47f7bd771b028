package photolite

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"

	"github.com/photolite/photolite/utils"
)

// Tool selects what a stroke does to the active layer.
type Tool string

const (
	// Brush paints with the brush color over the existing pixels.
	Brush Tool = "brush"
	// Eraser removes alpha along the stroke, always at full strength.
	Eraser Tool = "eraser"
)

// Brush size limits and the step used by the [ and ] keys.
const (
	MinBrushSize  = 1
	MaxBrushSize  = 100
	BrushSizeStep = 5
)

// ParseTool validates a tool name.
func ParseTool(name string) (Tool, error) {
	switch t := Tool(name); t {
	case Brush, Eraser:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTool, name)
}

// Point is a canvas position in pixels.
type Point struct {
	X, Y float64
}

// Stroke is a polyline painted with round caps and joins.
type Stroke struct {
	Points  []Point
	Tool    Tool
	Size    float64
	Color   color.NRGBA
	Opacity float64
}

// kappa is the control point distance of a cubic Bézier approximating a
// quarter of a unit circle.
const kappa = 0.5522847498

// paintSegment strokes the segment a-b onto img.
func paintSegment(img *image.NRGBA, a, b Point, tool Tool, size float64, c color.NRGBA, opacity float64) {
	paintStroke(img, []Point{a, b}, tool, size, c, opacity)
}

// paintStroke strokes the polyline through points onto img in one pass, so
// overlapping segments never paint a pixel twice. The brush composites the
// color at the given opacity with source-over; the eraser ignores color and
// opacity and removes coverage from the destination alpha.
func paintStroke(img *image.NRGBA, points []Point, tool Tool, size float64, c color.NRGBA, opacity float64) {
	mask, origin := strokeMask(img.Bounds(), points, size/2)
	if mask == nil {
		return
	}
	rect := mask.Bounds().Add(origin)

	switch tool {
	case Eraser:
		erase(img, mask, origin)
	default:
		src := c
		src.A = uint8(math.Round(float64(c.A) * utils.Clamp(opacity, 0, 1)))
		draw.DrawMask(img, rect, &image.Uniform{src}, image.Point{}, mask, image.Point{}, draw.Over)
	}
}

// strokeMask merges the capsule masks of every segment of points, keeping
// the highest coverage per pixel. A single point yields a disc.
func strokeMask(bounds image.Rectangle, points []Point, r float64) (*image.Alpha, image.Point) {
	if len(points) == 0 || r <= 0 {
		return nil, image.Point{}
	}
	lo, hi := points[0], points[0]
	for _, p := range points[1:] {
		lo = Point{min(lo.X, p.X), min(lo.Y, p.Y)}
		hi = Point{max(hi.X, p.X), max(hi.Y, p.Y)}
	}
	box := image.Rect(
		int(math.Floor(lo.X-r))-1,
		int(math.Floor(lo.Y-r))-1,
		int(math.Ceil(hi.X+r))+1,
		int(math.Ceil(hi.Y+r))+1,
	).Intersect(bounds)
	if box.Empty() {
		return nil, image.Point{}
	}
	if len(points) <= 2 {
		return segmentMask(box, points[0], points[len(points)-1], r)
	}

	mask := image.NewAlpha(image.Rect(0, 0, box.Dx(), box.Dy()))
	for i := 1; i < len(points); i++ {
		seg, at := segmentMask(box, points[i-1], points[i], r)
		if seg == nil {
			continue
		}
		at = at.Sub(box.Min)
		sb := seg.Bounds()
		for y := sb.Min.Y; y < sb.Max.Y; y++ {
			si := seg.PixOffset(0, y)
			di := mask.PixOffset(at.X, at.Y+y)
			for x := 0; x < sb.Dx(); x++ {
				mask.Pix[di+x] = max(mask.Pix[di+x], seg.Pix[si+x])
			}
		}
	}
	return mask, box.Min
}

// erase scales the destination alpha by the uncovered fraction of each pixel.
func erase(img *image.NRGBA, mask *image.Alpha, origin image.Point) {
	b := mask.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			cov := uint32(mask.AlphaAt(x, y).A)
			if cov == 0 {
				continue
			}
			i := img.PixOffset(x+origin.X, y+origin.Y)
			a := uint32(img.Pix[i+3])
			img.Pix[i+3] = uint8((a*(255-cov) + 127) / 255)
			if img.Pix[i+3] == 0 {
				img.Pix[i], img.Pix[i+1], img.Pix[i+2] = 0, 0, 0
			}
		}
	}
}

// segmentMask rasterizes a capsule of radius r around the segment a-b,
// clipped to bounds. It returns the coverage mask and the position of its
// top left corner inside bounds, or a nil mask when nothing is covered.
func segmentMask(bounds image.Rectangle, a, b Point, r float64) (*image.Alpha, image.Point) {
	if r <= 0 {
		return nil, image.Point{}
	}
	box := image.Rect(
		int(math.Floor(min(a.X, b.X)-r))-1,
		int(math.Floor(min(a.Y, b.Y)-r))-1,
		int(math.Ceil(max(a.X, b.X)+r))+1,
		int(math.Ceil(max(a.Y, b.Y)+r))+1,
	).Intersect(bounds)
	if box.Empty() {
		return nil, image.Point{}
	}

	z := vector.NewRasterizer(box.Dx(), box.Dy())
	off := Point{X: float64(box.Min.X), Y: float64(box.Min.Y)}
	capsule(z, Point{a.X - off.X, a.Y - off.Y}, Point{b.X - off.X, b.Y - off.Y}, r)

	mask := image.NewAlpha(image.Rect(0, 0, box.Dx(), box.Dy()))
	z.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
	return mask, box.Min
}

// capsule adds the outline of a round capped segment to z. A zero length
// segment becomes a disc.
func capsule(z *vector.Rasterizer, a, b Point, r float64) {
	dx, dy := b.X-a.X, b.Y-a.Y
	length := math.Hypot(dx, dy)
	// unit direction d and normal n
	d := Point{1, 0}
	if length > 1e-9 {
		d = Point{dx / length, dy / length}
	}
	n := Point{-d.Y, d.X}
	neg := func(p Point) Point { return Point{-p.X, -p.Y} }

	at := func(c Point, u Point) (float32, float32) {
		return float32(c.X + u.X*r), float32(c.Y + u.Y*r)
	}
	// quarter arc around c from direction u to direction v
	arc := func(c, u, v Point) {
		x1, y1 := float32(c.X+(u.X+kappa*v.X)*r), float32(c.Y+(u.Y+kappa*v.Y)*r)
		x2, y2 := float32(c.X+(v.X+kappa*u.X)*r), float32(c.Y+(v.Y+kappa*u.Y)*r)
		x3, y3 := at(c, v)
		z.CubeTo(x1, y1, x2, y2, x3, y3)
	}

	z.MoveTo(at(a, n))
	z.LineTo(at(b, n))
	arc(b, n, d)
	arc(b, d, neg(n))
	z.LineTo(at(a, neg(n)))
	arc(a, neg(n), neg(d))
	arc(a, neg(d), n)
	z.ClosePath()
}
