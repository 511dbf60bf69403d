package layout

import (
	"image"

	"github.com/vearutop/uhdrframe/internal/pixbuf"
)

// Options tune Compose.
type Options struct {
	// Workers bounds the goroutines used by the resampler, 1 by default.
	Workers int
}

// Compose fills a canvas with fill, resizes src into the rectangle returned
// by Place and copies it there. The canvas has the channel order of src.
func Compose[T pixbuf.Sample](g Geometry, src *pixbuf.Buffer[T], fill pixbuf.Color[T], opts ...func(o *Options)) (*pixbuf.Buffer[T], image.Rectangle, error) {
	opt := Options{Workers: 1}
	for _, apply := range opts {
		apply(&opt)
	}

	rect, err := g.Place(src.Width, src.Height)
	if err != nil {
		return nil, image.Rectangle{}, err
	}

	canvas := pixbuf.New[T](g.Width, g.Height, src.Order)
	canvas.Fill(fill.In(src.Order)...)

	resized := Resize(src, rect.Dx(), rect.Dy(), opt.Workers)
	if err := canvas.Paste(resized, rect.Min.X, rect.Min.Y); err != nil {
		return nil, image.Rectangle{}, err
	}
	return canvas, rect, nil
}
