package photolite

import (
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// FilterKind names one of the supported pixel filters.
type FilterKind string

const (
	Invert    FilterKind = "invert"
	Grayscale FilterKind = "grayscale"
	Blur      FilterKind = "blur"
)

// DefaultBlurRadius is the blur radius in pixels.
const DefaultBlurRadius = 5

// Filter is a pure pixel transform: the source is never modified and the
// result has the same bounds.
type Filter interface {
	Apply(src *image.NRGBA) *image.NRGBA
}

// ParseFilter validates a filter name.
func ParseFilter(name string) (FilterKind, error) {
	switch k := FilterKind(name); k {
	case Invert, Grayscale, Blur:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFilter, name)
}

// NewFilter returns the filter implementing kind. blurRadius is only used
// by the blur filter; values below one select DefaultBlurRadius.
func NewFilter(kind FilterKind, blurRadius int) (Filter, error) {
	switch kind {
	case Invert:
		return InvertFilter{}, nil
	case Grayscale:
		return GrayscaleFilter{}, nil
	case Blur:
		if blurRadius < 1 {
			blurRadius = DefaultBlurRadius
		}
		return BlurFilter{Radius: blurRadius}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFilter, kind)
}

// InvertFilter replaces every color channel c with 255-c. Alpha is kept.
type InvertFilter struct{}

func (InvertFilter) Apply(src *image.NRGBA) *image.NRGBA {
	return imaging.Invert(src)
}

// GrayscaleFilter sets R, G and B to their rounded arithmetic mean. Alpha is kept.
type GrayscaleFilter struct{}

func (GrayscaleFilter) Apply(src *image.NRGBA) *image.NRGBA {
	return imaging.AdjustFunc(src, func(c color.NRGBA) color.NRGBA {
		avg := uint8((int(c.R) + int(c.G) + int(c.B) + 1) / 3)
		return color.NRGBA{R: avg, G: avg, B: avg, A: c.A}
	})
}

// BlurFilter blurs the whole image with a separable stack blur.
type BlurFilter struct {
	Radius int
}

func (f BlurFilter) Apply(src *image.NRGBA) *image.NRGBA {
	return stackBlur(imaging.Clone(src), f.Radius)
}
