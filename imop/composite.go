package imop

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/photolite/photolite/utils"
)

// Op is a Porter-Duff composition operator. The names follow the
// globalCompositeOperation values of the HTML canvas.
type Op string

const (
	Clear   Op = "clear"
	Copy    Op = "copy"
	SrcOver Op = "source-over"
	DstOver Op = "destination-over"
	SrcIn   Op = "source-in"
	DstIn   Op = "destination-in"
	SrcOut  Op = "source-out"
	DstOut  Op = "destination-out"
	SrcAtop Op = "source-atop"
	DstAtop Op = "destination-atop"
	Xor     Op = "xor"
)

// ErrUnsupportedOp is returned when setting an unknown composition operator.
var ErrUnsupportedOp = errors.New("unsupported composite operation")

var ops = []Op{
	Clear,
	Copy,
	SrcOver,
	DstOver,
	SrcIn,
	DstIn,
	SrcOut,
	DstOut,
	SrcAtop,
	DstAtop,
	Xor,
}

// Bitmap is the destination surface of a composition.
type Bitmap struct {
	Img *image.NRGBA
}

// NewBitmap allocates a transparent bitmap.
func NewBitmap(rect image.Rectangle) *Bitmap {
	return &Bitmap{
		Img: image.NewNRGBA(rect),
	}
}

// Composite holds the active composition operator and the global alpha
// applied to the source on every draw.
type Composite struct {
	current Op
	alpha   float64
}

// InitOp returns a Composite set to source-over with full alpha.
func InitOp() *Composite {
	return &Composite{
		current: SrcOver,
		alpha:   1,
	}
}

// Set activates one of the supported composition operators.
func (op *Composite) Set(cop Op) error {
	if !utils.Contains(ops, cop) {
		return fmt.Errorf("%w: %q", ErrUnsupportedOp, cop)
	}
	op.current = cop
	return nil
}

// Get returns the active composition operator.
func (op *Composite) Get() Op {
	return op.current
}

// SetAlpha sets the global alpha, clamped to [0, 1].
func (op *Composite) SetAlpha(a float64) {
	op.alpha = utils.Clamp(a, 0, 1)
}

// Alpha returns the global alpha.
func (op *Composite) Alpha() float64 {
	return op.alpha
}

// Reset restores the default state: source-over, alpha 1.
func (op *Composite) Reset() {
	op.current = SrcOver
	op.alpha = 1
}

// factors returns the Porter-Duff fractions of source and backdrop
// contributing to the result.
func (op *Composite) factors(as, ab float64) (fa, fb float64) {
	switch op.current {
	case Clear:
		return 0, 0
	case Copy:
		return 1, 0
	case SrcOver:
		return 1, 1 - as
	case DstOver:
		return 1 - ab, 1
	case SrcIn:
		return ab, 0
	case DstIn:
		return 0, as
	case SrcOut:
		return 1 - ab, 0
	case DstOut:
		return 0, 1 - as
	case SrcAtop:
		return ab, 1 - as
	case DstAtop:
		return 1 - ab, as
	case Xor:
		return 1 - ab, 1 - as
	}
	return 1, 1 - as
}

// Draw composites src over dst and writes the result into bitmap.
// The bitmap may be dst itself. All three images are expected to share
// the same dimensions; the intersection of their bounds is processed.
// A nil blend is the normal blend mode.
func (op *Composite) Draw(bitmap *Bitmap, src, dst *image.NRGBA, blend *Blend) {
	if bitmap == nil {
		bitmap = NewBitmap(dst.Bounds())
	}
	rect := src.Bounds().Intersect(dst.Bounds()).Intersect(bitmap.Img.Bounds())

	mode := Normal
	if blend != nil {
		mode = blend.Get()
	}

	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			s := src.NRGBAAt(x, y)
			b := dst.NRGBAAt(x, y)

			as := float64(s.A) / 255 * op.alpha
			ab := float64(b.A) / 255

			rs, gs, bs := float64(s.R)/255, float64(s.G)/255, float64(s.B)/255
			rb, gb, bb := float64(b.R)/255, float64(b.G)/255, float64(b.B)/255

			// mix the source color with the backdrop where the backdrop is opaque
			if mode != Normal {
				rs = (1-ab)*rs + ab*mode.apply(rb, rs)
				gs = (1-ab)*gs + ab*mode.apply(gb, gs)
				bs = (1-ab)*bs + ab*mode.apply(bb, bs)
			}

			fa, fb := op.factors(as, ab)
			an := as*fa + ab*fb
			if an <= 0 {
				bitmap.Img.SetNRGBA(x, y, color.NRGBA{})
				continue
			}
			rn := (as*fa*rs + ab*fb*rb) / an
			gn := (as*fa*gs + ab*fb*gb) / an
			bn := (as*fa*bs + ab*fb*bb) / an

			bitmap.Img.SetNRGBA(x, y, color.NRGBA{
				R: toUint8(rn),
				G: toUint8(gn),
				B: toUint8(bn),
				A: toUint8(an),
			})
		}
	}
}

// toUint8 converts a normalized channel value to its 8 bit representation.
func toUint8(v float64) uint8 {
	return uint8(math.Round(utils.Clamp(v, 0, 1) * 255))
}
