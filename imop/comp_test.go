package imop

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComp_Basic(t *testing.T) {
	assert := assert.New(t)

	op := InitOp()
	assert.Equal(SrcOver, op.Get())
	assert.Equal(1.0, op.Alpha())

	assert.NoError(op.Set(Clear))
	assert.Equal(Clear, op.Get())

	err := op.Set("unsupported_composite_operation")
	assert.ErrorIs(err, ErrUnsupportedOp)
	assert.Equal(Clear, op.Get())

	op.SetAlpha(1.7)
	assert.Equal(1.0, op.Alpha())
	op.SetAlpha(-0.2)
	assert.Equal(0.0, op.Alpha())

	op.Reset()
	assert.Equal(SrcOver, op.Get())
	assert.Equal(1.0, op.Alpha())
}

func TestComp_Ops(t *testing.T) {
	transparent := color.NRGBA{}
	cyan := color.NRGBA{R: 33, G: 150, B: 243, A: 255}
	magenta := color.NRGBA{R: 233, G: 30, B: 99, A: 255}

	rect := image.Rect(0, 0, 10, 10)
	source := image.NewNRGBA(rect)
	backdrop := image.NewNRGBA(rect)

	draw.Draw(source, image.Rect(0, 4, 6, 10), &image.Uniform{cyan}, image.Point{}, draw.Src)
	draw.Draw(backdrop, image.Rect(4, 0, 10, 6), &image.Uniform{magenta}, image.Point{}, draw.Src)

	// Three representative pixels: backdrop only, source only and the overlapping area.
	cases := []struct {
		op                           Op
		topRight, bottomLeft, center color.NRGBA
	}{
		{SrcOver, magenta, cyan, cyan},
		{Clear, transparent, transparent, transparent},
		{Copy, transparent, cyan, cyan},
		{DstOver, magenta, cyan, magenta},
		{SrcIn, transparent, transparent, cyan},
		{DstIn, transparent, transparent, magenta},
		{SrcOut, transparent, cyan, transparent},
		{DstOut, magenta, transparent, transparent},
		{SrcAtop, magenta, transparent, cyan},
		{DstAtop, transparent, cyan, magenta},
		{Xor, magenta, cyan, transparent},
	}

	for _, tc := range cases {
		t.Run(string(tc.op), func(t *testing.T) {
			op := InitOp()
			assert.NoError(t, op.Set(tc.op))

			bmp := NewBitmap(rect)
			op.Draw(bmp, source, backdrop, nil)

			assert.Equal(t, tc.topRight, bmp.Img.NRGBAAt(9, 0))
			assert.Equal(t, tc.bottomLeft, bmp.Img.NRGBAAt(0, 9))
			assert.Equal(t, tc.center, bmp.Img.NRGBAAt(5, 5))
		})
	}
}

func TestComp_GlobalAlpha(t *testing.T) {
	assert := assert.New(t)

	rect := image.Rect(0, 0, 1, 1)
	source := image.NewNRGBA(rect)
	backdrop := image.NewNRGBA(rect)
	source.SetNRGBA(0, 0, color.NRGBA{R: 33, G: 150, B: 243, A: 255})
	backdrop.SetNRGBA(0, 0, color.NRGBA{R: 233, G: 30, B: 99, A: 255})

	op := InitOp()
	op.SetAlpha(0.5)

	// In place: the backdrop is also the destination.
	op.Draw(&Bitmap{Img: backdrop}, source, backdrop, nil)
	assert.Equal(color.NRGBA{R: 133, G: 90, B: 171, A: 255}, backdrop.NRGBAAt(0, 0))

	// A half transparent source over a transparent backdrop keeps its color.
	empty := image.NewNRGBA(rect)
	op.Draw(&Bitmap{Img: empty}, source, empty, nil)
	assert.Equal(color.NRGBA{R: 33, G: 150, B: 243, A: 128}, empty.NRGBAAt(0, 0))
}

func TestComp_DstOutErases(t *testing.T) {
	rect := image.Rect(0, 0, 2, 1)
	backdrop := image.NewNRGBA(rect)
	draw.Draw(backdrop, rect, &image.Uniform{color.NRGBA{R: 10, G: 20, B: 30, A: 255}}, image.Point{}, draw.Src)

	mask := image.NewNRGBA(rect)
	mask.SetNRGBA(0, 0, color.NRGBA{A: 255})

	op := InitOp()
	assert.NoError(t, op.Set(DstOut))
	op.Draw(&Bitmap{Img: backdrop}, mask, backdrop, nil)

	assert.Equal(t, uint8(0), backdrop.NRGBAAt(0, 0).A)
	assert.Equal(t, color.NRGBA{R: 10, G: 20, B: 30, A: 255}, backdrop.NRGBAAt(1, 0))
}
