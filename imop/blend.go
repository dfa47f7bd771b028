// Package imop implements the Porter-Duff composition operations and the
// separable blend modes used for mixing a layer with its backdrop.
//
// The image/draw core package implements only the source-over-destination
// and source operators and has no notion of blend modes or of a global alpha.
// This package covers the rest of the operations offered by an HTML canvas
// (globalCompositeOperation and globalAlpha) on non-premultiplied NRGBA images.
package imop

import (
	"errors"
	"fmt"
	"math"

	"github.com/photolite/photolite/utils"
)

// BlendMode is a separable blend mode.
type BlendMode string

const (
	Normal     BlendMode = "normal"
	Darken     BlendMode = "darken"
	Lighten    BlendMode = "lighten"
	Multiply   BlendMode = "multiply"
	Screen     BlendMode = "screen"
	Overlay    BlendMode = "overlay"
	ColorDodge BlendMode = "color-dodge"
	ColorBurn  BlendMode = "color-burn"
	HardLight  BlendMode = "hard-light"
	SoftLight  BlendMode = "soft-light"
	Difference BlendMode = "difference"
	Exclusion  BlendMode = "exclusion"
)

var (
	// ErrUnsupportedBlend is returned when setting an unknown blend mode.
	ErrUnsupportedBlend = errors.New("unsupported blend mode")
	// ErrUnsupportedMode is returned by ParseMode for names which are
	// neither a composition operator nor a blend mode.
	ErrUnsupportedMode = errors.New("unsupported composite mode")
)

var blendModes = []BlendMode{
	Normal,
	Darken,
	Lighten,
	Multiply,
	Screen,
	Overlay,
	ColorDodge,
	ColorBurn,
	HardLight,
	SoftLight,
	Difference,
	Exclusion,
}

// Blend holds the currently active blend mode.
type Blend struct {
	Mode BlendMode
}

// NewBlend initializes a new Blend in normal mode.
func NewBlend() *Blend {
	return &Blend{Mode: Normal}
}

// Set activates one of the supported blend modes.
func (o *Blend) Set(mode BlendMode) error {
	if !utils.Contains(blendModes, mode) {
		return fmt.Errorf("%w: %q", ErrUnsupportedBlend, mode)
	}
	o.Mode = mode
	return nil
}

// Get returns the currently active blend mode.
func (o *Blend) Get() BlendMode {
	if len(o.Mode) > 0 {
		return o.Mode
	}
	return Normal
}

// ParseMode splits a canvas composite operation name into the composition
// operator and the blend mode it stands for. Blend modes always composite
// with source-over; "normal" is an alias of "source-over".
func ParseMode(name string) (Op, BlendMode, error) {
	if name == "" || name == string(Normal) {
		return SrcOver, Normal, nil
	}
	if utils.Contains(ops, Op(name)) {
		return Op(name), Normal, nil
	}
	if utils.Contains(blendModes, BlendMode(name)) {
		return SrcOver, BlendMode(name), nil
	}
	return "", "", fmt.Errorf("%w: %q", ErrUnsupportedMode, name)
}

// apply returns the blended channel value of backdrop cb and source cs.
func (m BlendMode) apply(cb, cs float64) float64 {
	switch m {
	case Darken:
		return utils.Min(cb, cs)
	case Lighten:
		return utils.Max(cb, cs)
	case Multiply:
		return cb * cs
	case Screen:
		return cb + cs - cb*cs
	case Overlay:
		return HardLight.apply(cs, cb)
	case ColorDodge:
		switch {
		case cb == 0:
			return 0
		case cs >= 1:
			return 1
		}
		return utils.Min(1, cb/(1-cs))
	case ColorBurn:
		switch {
		case cb >= 1:
			return 1
		case cs == 0:
			return 0
		}
		return 1 - utils.Min(1, (1-cb)/cs)
	case HardLight:
		if cs <= 0.5 {
			return Multiply.apply(cb, 2*cs)
		}
		return Screen.apply(cb, 2*cs-1)
	case SoftLight:
		if cs <= 0.5 {
			return cb - (1-2*cs)*cb*(1-cb)
		}
		var d float64
		if cb <= 0.25 {
			d = ((16*cb-12)*cb + 4) * cb
		} else {
			d = math.Sqrt(cb)
		}
		return cb + (2*cs-1)*(d-cb)
	case Difference:
		return utils.Abs(cb - cs)
	case Exclusion:
		return cb + cs - 2*cb*cs
	}
	return cs
}
