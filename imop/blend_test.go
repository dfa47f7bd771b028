package imop

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlend_Basic(t *testing.T) {
	assert := assert.New(t)

	op := NewBlend()
	assert.Equal(Normal, op.Get())
	assert.Equal(Normal, (&Blend{}).Get())

	err := op.Set("blend_mode_not_supported")
	assert.ErrorIs(err, ErrUnsupportedBlend)
	assert.Equal(Normal, op.Get())

	assert.NoError(op.Set(Darken))
	assert.Equal(Darken, op.Get())
	assert.NoError(op.Set(Lighten))
	assert.Equal(Lighten, op.Get())
}

func TestBlend_Modes(t *testing.T) {
	pinkFront := color.NRGBA{R: 214, G: 20, B: 65, A: 255}
	orangeBack := color.NRGBA{R: 250, G: 121, B: 17, A: 255}

	cases := []struct {
		mode     BlendMode
		expected color.NRGBA
	}{
		{Normal, pinkFront},
		{Darken, color.NRGBA{R: 214, G: 20, B: 17, A: 255}},
		{Lighten, color.NRGBA{R: 250, G: 121, B: 65, A: 255}},
		{Multiply, color.NRGBA{R: 210, G: 9, B: 4, A: 255}},
		{Screen, color.NRGBA{R: 254, G: 132, B: 78, A: 255}},
		{Overlay, color.NRGBA{R: 253, G: 19, B: 9, A: 255}},
		{Difference, color.NRGBA{R: 36, G: 101, B: 48, A: 255}},
		{Exclusion, color.NRGBA{R: 44, G: 122, B: 73, A: 255}},
	}

	rect := image.Rect(0, 0, 1, 1)
	for _, tc := range cases {
		t.Run(string(tc.mode), func(t *testing.T) {
			source := image.NewNRGBA(rect)
			backdrop := image.NewNRGBA(rect)
			source.SetNRGBA(0, 0, pinkFront)
			backdrop.SetNRGBA(0, 0, orangeBack)

			blend := NewBlend()
			require.NoError(t, blend.Set(tc.mode))

			bmp := NewBitmap(rect)
			InitOp().Draw(bmp, source, backdrop, blend)
			assert.Equal(t, tc.expected, bmp.Img.NRGBAAt(0, 0))
		})
	}
}

func TestBlend_TransparentBackdrop(t *testing.T) {
	rect := image.Rect(0, 0, 1, 1)
	source := image.NewNRGBA(rect)
	source.SetNRGBA(0, 0, color.NRGBA{R: 214, G: 20, B: 65, A: 255})

	for _, mode := range blendModes {
		blend := NewBlend()
		require.NoError(t, blend.Set(mode))

		bmp := NewBitmap(rect)
		InitOp().Draw(bmp, source, image.NewNRGBA(rect), blend)
		assert.Equal(t, source.NRGBAAt(0, 0), bmp.Img.NRGBAAt(0, 0), "mode %s", mode)
	}
}

func TestBlend_ParseMode(t *testing.T) {
	assert := assert.New(t)

	op, mode, err := ParseMode("source-over")
	assert.NoError(err)
	assert.Equal(SrcOver, op)
	assert.Equal(Normal, mode)

	op, mode, err = ParseMode("normal")
	assert.NoError(err)
	assert.Equal(SrcOver, op)
	assert.Equal(Normal, mode)

	op, mode, err = ParseMode("multiply")
	assert.NoError(err)
	assert.Equal(SrcOver, op)
	assert.Equal(Multiply, mode)

	op, mode, err = ParseMode("destination-out")
	assert.NoError(err)
	assert.Equal(DstOut, op)
	assert.Equal(Normal, mode)

	_, _, err = ParseMode("luminosity")
	assert.ErrorIs(err, ErrUnsupportedMode)
}
