package uhdrframe

import (
	"image"

	"github.com/sirupsen/logrus"
	"github.com/vearutop/uhdrframe/internal/dual"
	"github.com/vearutop/uhdrframe/internal/exifmeta"
	"github.com/vearutop/uhdrframe/internal/overlay"
	"github.com/vearutop/uhdrframe/internal/pixbuf"
	"github.com/vearutop/uhdrframe/internal/textdraw"
)

// Footer baselines relative to FooterY, and the gap between labels and logo.
const (
	mainBaseline = 52
	subBaseline  = 122
	labelGap     = 40
)

// palette holds footer colors in the regime of one rendition.
type palette[T pixbuf.Sample] struct {
	text, sub pixbuf.Color[T]
}

var (
	sdrPalette = palette[uint8]{
		text: pixbuf.GrayColor[uint8](0),
		sub:  pixbuf.GrayColor[uint8](100),
	}
	// Linear light equivalents of the SDR colors.
	hdrPalette = palette[float32]{
		text: pixbuf.GrayColor[float32](0),
		sub:  pixbuf.GrayColor[float32](0.133),
	}
)

type footerText struct {
	main, sub   *textdraw.Font
	params      string
	date        string
	model, lens string
	origin      image.Point
}

func drawLeft[T pixbuf.Sample](t footerText, dst *pixbuf.Buffer[T], p palette[T]) {
	textdraw.Draw(t.main, dst, t.params, t.origin.Add(image.Pt(0, mainBaseline)), p.text)
	textdraw.Draw(t.sub, dst, t.date, t.origin.Add(image.Pt(0, subBaseline)), p.sub)
}

// drawRight right-aligns the model and lens labels to end labelGap pixels
// left of x.
func drawRight[T pixbuf.Sample](t footerText, dst *pixbuf.Buffer[T], p palette[T], x int) {
	y := t.origin.Y
	w := t.main.MeasureWidth(t.model)
	textdraw.Draw(t.main, dst, t.model, image.Pt(x-labelGap-w, y+mainBaseline), p.text)
	if t.lens != "" {
		w = t.sub.MeasureWidth(t.lens)
		textdraw.Draw(t.sub, dst, t.lens, image.Pt(x-labelGap-w, y+subBaseline), p.sub)
	}
}

// drawFooter writes exposure settings and date on the left of the footer and
// the brand logo with camera and lens names on the right, identically on both
// renditions. It returns the logo path, empty when no logo was drawn.
func (f *Framer) drawFooter(canvas *dual.Image, meta exifmeta.PhotoMeta, fonts *textdraw.Cache) string {
	g := f.cfg.Geometry()
	footerY := g.FooterY()

	t := footerText{
		main:   fonts.Get(f.cfg.MainFont, f.cfg.MainFontSize),
		sub:    fonts.Get(f.cfg.SubFont, f.cfg.SubFontSize),
		params: meta.Params(),
		date:   meta.Date,
		model:  meta.Model,
		lens:   meta.Lens,
		origin: image.Pt(g.Margin, footerY),
	}

	drawLeft(t, canvas.SDR, sdrPalette)
	if canvas.HasHDR() {
		drawLeft(t, canvas.HDR, hdrPalette)
	}

	logoPath := overlay.SelectLogo(meta.Make, f.cfg.LogoDir)
	logo, err := overlay.Load(logoPath, f.cfg.LogoSize)
	if err != nil {
		f.log.WithError(err).WithFields(logrus.Fields{
			"stage": "logo",
			"path":  logoPath,
		}).Warn("logo unavailable")
		return ""
	}

	at := image.Pt(g.Width-g.Margin-f.cfg.LogoSize, footerY)
	if err := overlay.BlendSDR(canvas.SDR, logo, at); err != nil {
		f.log.WithError(err).WithField("stage", "logo").Warn("logo not blended")
		return ""
	}
	if canvas.HasHDR() {
		if err := overlay.BlendHDR(canvas.HDR, logo, at); err != nil {
			f.log.WithError(err).WithField("stage", "logo").Warn("logo not blended on HDR canvas")
		}
	}

	drawRight(t, canvas.SDR, sdrPalette, at.X)
	if canvas.HasHDR() {
		drawRight(t, canvas.HDR, hdrPalette, at.X)
	}
	return logoPath
}
