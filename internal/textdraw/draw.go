package textdraw

import (
	"image"

	"github.com/vearutop/uhdrframe/internal/codepoint"
	"github.com/vearutop/uhdrframe/internal/pixbuf"
)

// Draw renders text left to right with the pen starting at origin on the
// baseline. Each covered pixel becomes dst*(1-a) + c*a with a = coverage/255.
// Pixels outside dst are skipped, an alpha channel is left untouched.
func Draw[T pixbuf.Sample](f *Font, dst *pixbuf.Buffer[T], text string, origin image.Point, c pixbuf.Color[T]) {
	if !f.Loaded() || dst.Empty() {
		return
	}
	color := c.In(dst.Order)
	colorCh := dst.Channels()
	if dst.Order.HasAlpha() {
		colorCh--
	}

	pen := origin
	for r := range codepoint.String(text) {
		g, ok := f.Glyph(pen, r)
		if ok {
			blendGlyph(dst, g, color[:colorCh])
		}
		pen.X += g.Advance
	}
}

func blendGlyph[T pixbuf.Sample](dst *pixbuf.Buffer[T], g Glyph, color []T) {
	area := g.Rect.Intersect(image.Rect(0, 0, dst.Width, dst.Height))
	if area.Empty() {
		return
	}
	alpha, _ := g.Mask.(*image.Alpha)
	for y := area.Min.Y; y < area.Max.Y; y++ {
		my := g.MaskPoint.Y + y - g.Rect.Min.Y
		for x := area.Min.X; x < area.Max.X; x++ {
			mx := g.MaskPoint.X + x - g.Rect.Min.X
			var cov uint8
			if alpha != nil {
				cov = alpha.AlphaAt(mx, my).A
			} else {
				_, _, _, a := g.Mask.At(mx, my).RGBA()
				cov = uint8(a >> 8)
			}
			if cov == 0 {
				continue
			}
			a := float64(cov) / 255
			p, _ := dst.Pixel(x, y)
			for i, v := range color {
				p[i] = pixbuf.Blend(p[i], v, a)
			}
		}
	}
}
