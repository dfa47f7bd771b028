package photolite

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/google/uuid"
	"github.com/photolite/photolite/imop"
	"github.com/photolite/photolite/utils"
)

// LayerID is the stable identity of a layer. It survives reordering,
// deletion of other layers and restoring the layer from the history.
type LayerID = uuid.UUID

// Mode is the composite operation used when drawing a layer onto the layers
// below it. Any name accepted by imop.ParseMode is valid.
type Mode string

// The most common layer modes.
const (
	ModeNormal     Mode = Mode(imop.SrcOver)
	ModeMultiply   Mode = Mode(imop.Multiply)
	ModeScreen     Mode = Mode(imop.Screen)
	ModeOverlay    Mode = Mode(imop.Overlay)
	ModeDarken     Mode = Mode(imop.Darken)
	ModeLighten    Mode = Mode(imop.Lighten)
	ModeDifference Mode = Mode(imop.Difference)
)

// Validate returns an error if the mode is not a known composite operation.
func (m Mode) Validate() error {
	_, _, err := imop.ParseMode(string(m))
	return err
}

// Layer is a named raster surface of the session's canvas size.
type Layer struct {
	ID      LayerID
	Name    string
	Visible bool
	Mode    Mode
	Opacity float64

	img *image.NRGBA
}

// NewLayer creates a transparent, visible layer in normal mode.
func NewLayer(width, height int, name string) *Layer {
	return newLayerWithID(uuid.New(), width, height, name)
}

func newLayerWithID(id LayerID, width, height int, name string) *Layer {
	return &Layer{
		ID:      id,
		Name:    name,
		Visible: true,
		Mode:    ModeNormal,
		Opacity: 1,
		img:     image.NewNRGBA(image.Rect(0, 0, width, height)),
	}
}

// Image gives direct access to the layer pixels.
func (l *Layer) Image() *image.NRGBA {
	return l.img
}

// Bounds returns the layer rectangle.
func (l *Layer) Bounds() image.Rectangle {
	return l.img.Bounds()
}

// Clear makes every pixel fully transparent.
func (l *Layer) Clear() {
	clear(l.img.Pix)
}

// Fill paints the whole layer with c.
func (l *Layer) Fill(c color.Color) {
	draw.Draw(l.img, l.img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
}

// SetOpacity sets the layer opacity, clamped to [0, 1].
func (l *Layer) SetOpacity(v float64) {
	l.Opacity = utils.Clamp(v, 0, 1)
}

// replace swaps the pixel buffer, keeping the layer size.
func (l *Layer) replace(img *image.NRGBA) {
	if img.Bounds() == l.img.Bounds() {
		l.img = img
		return
	}
	l.Clear()
	draw.Draw(l.img, l.img.Bounds(), img, img.Bounds().Min, draw.Src)
}

// LayerInfo is a read-only description of a layer, as shown in a layer list.
type LayerInfo struct {
	ID      LayerID
	Name    string
	Visible bool
	Mode    Mode
	Opacity float64
	Active  bool
}

func (l *Layer) info(active bool) LayerInfo {
	return LayerInfo{
		ID:      l.ID,
		Name:    l.Name,
		Visible: l.Visible,
		Mode:    l.Mode,
		Opacity: l.Opacity,
		Active:  active,
	}
}
