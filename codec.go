package photolite

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/bmp"
)

// Codec turns layer pixels into an opaque blob and back. History entries are
// stored with a Codec, so implementations have to be lossless.
type Codec interface {
	Encode(w io.Writer, img image.Image) error
	Decode(r io.Reader) (image.Image, error)
}

// PNGCodec stores snapshots as PNG. It trades a little CPU for a much
// smaller memory footprint of the history.
type PNGCodec struct {
	enc png.Encoder
}

// NewPNGCodec returns a PNG codec tuned for speed.
func NewPNGCodec() *PNGCodec {
	return &PNGCodec{enc: png.Encoder{CompressionLevel: png.BestSpeed}}
}

func (c *PNGCodec) Encode(w io.Writer, img image.Image) error { return c.enc.Encode(w, img) }

func (c *PNGCodec) Decode(r io.Reader) (image.Image, error) { return png.Decode(r) }

// BMPCodec stores snapshots as uncompressed BMP.
type BMPCodec struct{}

func (BMPCodec) Encode(w io.Writer, img image.Image) error { return bmp.Encode(w, img) }

func (BMPCodec) Decode(r io.Reader) (image.Image, error) { return bmp.Decode(r) }

// NewCodec returns the history codec registered under name.
func NewCodec(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", "png":
		return NewPNGCodec(), nil
	case "bmp":
		return BMPCodec{}, nil
	}
	return nil, fmt.Errorf("%w: history codec %q", ErrUnsupportedFormat, name)
}

// Format is an export image format.
type Format = imaging.Format

// Supported export formats.
const (
	FormatPNG  = imaging.PNG
	FormatJPEG = imaging.JPEG
	FormatBMP  = imaging.BMP
	FormatGIF  = imaging.GIF
	FormatTIFF = imaging.TIFF
)

// FormatFromPath guesses the export format from a file extension.
// Paths without an extension are exported as PNG.
func FormatFromPath(path string) (Format, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return FormatPNG, nil
	}
	f, err := imaging.FormatFromExtension(ext)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	return f, nil
}

// EncodeImage encodes an image to a destination of type io.Writer.
func EncodeImage(w io.Writer, img image.Image, format Format) error {
	switch format {
	case FormatJPEG:
		return imaging.Encode(w, img, format, imaging.JPEGQuality(100))
	case FormatPNG:
		return imaging.Encode(w, img, format, imaging.PNGCompressionLevel(png.DefaultCompression))
	case FormatBMP, FormatGIF, FormatTIFF:
		return imaging.Encode(w, img, format)
	}
	return fmt.Errorf("%w: %v", ErrUnsupportedFormat, format)
}

// DecodeImage decodes any registered image format, honoring the EXIF orientation.
func DecodeImage(r io.Reader) (*image.NRGBA, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("could not decode the image: %w", err)
	}
	return toNRGBA(img), nil
}

// toNRGBA returns img as an *image.NRGBA with its origin at (0, 0). Such
// images are returned as is, anything else is converted into a copy.
func toNRGBA(img image.Image) *image.NRGBA {
	if dst, ok := img.(*image.NRGBA); ok && dst.Rect.Min == (image.Point{}) {
		return dst
	}
	return imaging.Clone(img)
}

// fitImage scales img to fit inside a width x height canvas, keeping the
// aspect ratio, and returns it together with the offset centering it.
// Pictures smaller than the canvas are scaled up.
func fitImage(img *image.NRGBA, width, height int) (*image.NRGBA, image.Point) {
	iw, ih := img.Bounds().Dx(), img.Bounds().Dy()
	if iw == 0 || ih == 0 {
		return img, image.Point{}
	}
	scale := min(float64(width)/float64(iw), float64(height)/float64(ih))
	w := max(1, int(float64(iw)*scale+0.5))
	h := max(1, int(float64(ih)*scale+0.5))

	if w != iw || h != ih {
		img = imaging.Resize(img, w, h, imaging.Lanczos)
	}
	return img, image.Pt((width-w)/2, (height-h)/2)
}
