package photolite

import (
	"image"

	"github.com/photolite/photolite/imop"
)

// Compositor flattens a layer stack into a single output image.
type Compositor struct {
	out   *imop.Bitmap
	comp  *imop.Composite
	blend *imop.Blend
}

// NewCompositor allocates a compositor with an output of the given size.
func NewCompositor(width, height int) *Compositor {
	return &Compositor{
		out:   imop.NewBitmap(image.Rect(0, 0, width, height)),
		comp:  imop.InitOp(),
		blend: imop.NewBlend(),
	}
}

// Render clears the output and draws the visible layers bottom to top, each
// one with its own opacity and mode. The returned image is owned by the
// compositor and is overwritten by the next call.
func (c *Compositor) Render(layers []*Layer) *image.NRGBA {
	clear(c.out.Img.Pix)

	for _, l := range layers {
		if !l.Visible {
			continue
		}
		c.drawLayer(c.out, l)
	}
	return c.out.Img
}

// drawLayer composites l onto dst using the layer's opacity and mode for
// this draw only.
func (c *Compositor) drawLayer(dst *imop.Bitmap, l *Layer) {
	defer func() {
		c.comp.Reset()
		c.blend.Mode = imop.Normal
	}()

	op, mode, err := imop.ParseMode(string(l.Mode))
	if err != nil {
		// layer modes are validated on assignment
		op, mode = imop.SrcOver, imop.Normal
	}
	c.comp.Set(op)
	c.comp.SetAlpha(l.Opacity)
	c.blend.Set(mode)
	c.comp.Draw(dst, l.img, dst.Img, c.blend)
}

// Merge composites top onto bottom in place, with the top layer's opacity
// and mode. The attributes of bottom are left untouched.
func (c *Compositor) Merge(bottom, top *Layer) {
	c.drawLayer(&imop.Bitmap{Img: bottom.img}, top)
}
