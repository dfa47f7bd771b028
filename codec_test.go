package photolite

import (
	"bytes"
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/photolite/photolite/utils"
)

func TestCodec_ToNRGBA(t *testing.T) {
	rect := image.Rect(-1, -1, 15, 15)
	colors := palette.Plan9
	testCases := []struct {
		name string
		img  image.Image
	}{
		{
			name: "NRGBA",
			img:  makeNRGBAImage(rect, colors),
		},
		{
			name: "YCbCr-444",
			img:  makeYCbCrImage(rect, colors, image.YCbCrSubsampleRatio444),
		},
		{
			name: "YCbCr-422",
			img:  makeYCbCrImage(rect, colors, image.YCbCrSubsampleRatio422),
		},
		{
			name: "YCbCr-420",
			img:  makeYCbCrImage(rect, colors, image.YCbCrSubsampleRatio420),
		},
		{
			name: "YCbCr-440",
			img:  makeYCbCrImage(rect, colors, image.YCbCrSubsampleRatio440),
		},
		{
			name: "YCbCr-410",
			img:  makeYCbCrImage(rect, colors, image.YCbCrSubsampleRatio410),
		},
		{
			name: "YCbCr-411",
			img:  makeYCbCrImage(rect, colors, image.YCbCrSubsampleRatio411),
		},
		{
			name: "Gray",
			img:  makeGrayImage(rect),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := tc.img.Bounds()
			dst := toNRGBA(tc.img)
			require.Equal(t, image.Rect(0, 0, r.Dx(), r.Dy()), dst.Bounds())

			for y := r.Min.Y; y < r.Max.Y; y++ {
				i := dst.PixOffset(0, y-r.Min.Y)
				got := dst.Pix[i : i+r.Dx()*4]
				want := readRow(tc.img, y)
				if !compareBytes(got, want, 1) {
					t.Errorf("row y=%d: got %v want %v", y, got, want)
				}
			}
		})
	}
}

func TestCodec_ToNRGBAKeepsZeroOriginNRGBA(t *testing.T) {
	img := noiseImage(1)
	assert.Same(t, img, toNRGBA(img))
}

func TestCodec_HistoryCodecsAreLossless(t *testing.T) {
	translucent := noiseImage(2)
	opaque := noiseImage(3)
	for i := 3; i < len(opaque.Pix); i += 4 {
		opaque.Pix[i] = 0xff
	}

	testCases := []struct {
		codec string
		img   *image.NRGBA
	}{
		{"png", translucent},
		{"png", opaque},
		{"bmp", translucent},
		{"bmp", opaque},
	}
	for _, tc := range testCases {
		t.Run(tc.codec, func(t *testing.T) {
			c, err := NewCodec(tc.codec)
			require.NoError(t, err)

			var buf bytes.Buffer
			require.NoError(t, c.Encode(&buf, tc.img))
			got, err := c.Decode(&buf)
			require.NoError(t, err)
			assert.Equal(t, tc.img.Pix, toNRGBA(got).Pix)
		})
	}

	_, err := NewCodec("webp")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestCodec_FormatFromPath(t *testing.T) {
	testCases := map[string]Format{
		"out":          FormatPNG,
		"out.png":      FormatPNG,
		"dir/out.JPG":  FormatJPEG,
		"out.jpeg":     FormatJPEG,
		"out.bmp":      FormatBMP,
		"out.gif":      FormatGIF,
		"out.tif":      FormatTIFF,
	}
	for path, want := range testCases {
		got, err := FormatFromPath(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}

	_, err := FormatFromPath("out.psd")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestCodec_EncodeDecodeImage(t *testing.T) {
	img := noiseImage(4)

	var buf bytes.Buffer
	require.NoError(t, EncodeImage(&buf, img, FormatPNG))
	got, err := DecodeImage(&buf)
	require.NoError(t, err)
	assert.Equal(t, img.Pix, got.Pix)

	_, err = DecodeImage(bytes.NewReader([]byte("not an image")))
	assert.Error(t, err)
}

func TestCodec_FitImage(t *testing.T) {
	testCases := []struct {
		name     string
		w, h     int
		wantSize image.Point
		wantAt   image.Point
	}{
		{"wide", 200, 50, image.Pt(80, 20), image.Pt(0, 20)},
		{"tall", 30, 120, image.Pt(15, 60), image.Pt(32, 0)},
		{"small", 20, 15, image.Pt(80, 60), image.Pt(0, 0)},
		{"exact", 80, 60, image.Pt(80, 60), image.Pt(0, 0)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			img := image.NewNRGBA(image.Rect(0, 0, tc.w, tc.h))
			fitted, at := fitImage(img, 80, 60)
			assert.Equal(t, tc.wantSize, fitted.Bounds().Size())
			assert.Equal(t, tc.wantAt, at)
		})
	}
}

func makeGrayImage(rect image.Rectangle) *image.Gray {
	img := image.NewGray(rect)
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 7)
	}
	return img
}

func makeYCbCrImage(rect image.Rectangle, colors []color.Color, sr image.YCbCrSubsampleRatio) *image.YCbCr {
	img := image.NewYCbCr(rect, sr)
	j := 0
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			iy := img.YOffset(x, y)
			ic := img.COffset(x, y)
			c := color.NRGBAModel.Convert(colors[j]).(color.NRGBA)
			img.Y[iy], img.Cb[ic], img.Cr[ic] = color.RGBToYCbCr(c.R, c.G, c.B)
			j++
		}
	}
	return img
}

func makeNRGBAImage(rect image.Rectangle, colors []color.Color) *image.NRGBA {
	img := image.NewNRGBA(rect)
	fillDrawImage(img, colors)
	return img
}

func fillDrawImage(img draw.Image, colors []color.Color) {
	colorsNRGBA := make([]color.NRGBA, len(colors))
	for i, c := range colors {
		nrgba := color.NRGBAModel.Convert(c).(color.NRGBA)
		nrgba.A = uint8(i % 256)
		colorsNRGBA[i] = nrgba
	}
	rect := img.Bounds()
	i := 0
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			img.Set(x, y, colorsNRGBA[i])
			i++
		}
	}
}

func readRow(img image.Image, y int) []uint8 {
	row := make([]byte, img.Bounds().Dx()*4)
	i := 0
	for x := img.Bounds().Min.X; x < img.Bounds().Max.X; x++ {
		c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
		row[i+0] = c.R
		row[i+1] = c.G
		row[i+2] = c.B
		row[i+3] = c.A
		i += 4
	}
	return row
}

func compareBytes(a, b []uint8, delta int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		if utils.Abs(int(a[i])-int(b[i])) > delta {
			return false
		}
	}
	return true
}
