package pixbuf

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/ajroetker/go-highway/hwy"
)

// channelIndex returns the source sample offsets for R, G, B and alpha (-1 if absent).
func channelIndex(o ChannelOrder) (r, g, b, a int) {
	switch o {
	case Gray:
		return 0, 0, 0, -1
	case BGR:
		return 2, 1, 0, -1
	case BGRA:
		return 2, 1, 0, 3
	case RGBA:
		return 0, 1, 2, 3
	default:
		return 0, 1, 2, -1
	}
}

// Reorder converts src to the requested channel order.
// Alpha is dropped when the target has none; opaque fills alpha when the source has none.
func Reorder[T Storage](src *Buffer[T], order ChannelOrder, opaque T) *Buffer[T] {
	dst := New[T](src.Width, src.Height, order)
	sr, sg, sb, sa := channelIndex(src.Order)
	dr, dg, db, da := channelIndex(order)
	sch := src.Channels()
	dch := dst.Channels()
	for y := 0; y < src.Height; y++ {
		srow := src.Row(y)
		drow := dst.Row(y)
		for x := 0; x < src.Width; x++ {
			s := srow[x*sch : x*sch+sch]
			d := drow[x*dch : x*dch+dch]
			if order == Gray {
				d[0] = s[sg]
				continue
			}
			d[dr] = s[sr]
			d[dg] = s[sg]
			d[db] = s[sb]
			if da >= 0 {
				if sa >= 0 {
					d[da] = s[sa]
				} else {
					d[da] = opaque
				}
			}
		}
	}
	return dst
}

// ToRGB drops alpha and normalizes any order to 3-channel RGB.
func ToRGB[T Storage](src *Buffer[T]) *Buffer[T] {
	if src.Order == RGB && src.Stride == src.Width*3 {
		return src
	}
	var zero T
	return Reorder(src, RGB, zero)
}

// HalfToFloat widens a half-float buffer to float32 keeping its channel order.
func HalfToFloat(src *Buffer[hwy.Float16]) *Buffer[float32] {
	dst := New[float32](src.Width, src.Height, src.Order)
	ch := src.Channels()
	for y := 0; y < src.Height; y++ {
		srow := src.Row(y)
		drow := dst.Row(y)
		for i := 0; i < src.Width*ch; i++ {
			drow[i] = hwy.Float16ToFloat32(srow[i])
		}
	}
	return dst
}

// FloatToHalf narrows a float32 buffer to half floats keeping its channel order.
func FloatToHalf(src *Buffer[float32]) *Buffer[hwy.Float16] {
	dst := New[hwy.Float16](src.Width, src.Height, src.Order)
	ch := src.Channels()
	for y := 0; y < src.Height; y++ {
		srow := src.Row(y)
		drow := dst.Row(y)
		for i := 0; i < src.Width*ch; i++ {
			drow[i] = hwy.Float32ToFloat16(srow[i])
		}
	}
	return dst
}

// FromImage copies img into a non-premultiplied RGBA 8-bit buffer.
func FromImage(img image.Image) *Buffer[uint8] {
	bounds := img.Bounds()
	nrgba, ok := img.(*image.NRGBA)
	if !ok {
		nrgba = image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(nrgba, nrgba.Rect, img, bounds.Min, draw.Src)
		bounds = nrgba.Rect
	}
	dst := New[uint8](bounds.Dx(), bounds.Dy(), RGBA)
	for y := 0; y < dst.Height; y++ {
		off := nrgba.PixOffset(bounds.Min.X, bounds.Min.Y+y)
		copy(dst.Row(y), nrgba.Pix[off:off+dst.Width*4])
	}
	return dst
}

// FromImageRGB copies img into a 3-channel RGB 8-bit buffer, discarding alpha.
func FromImageRGB(img image.Image) *Buffer[uint8] {
	bounds := img.Bounds()
	dst := New[uint8](bounds.Dx(), bounds.Dy(), RGB)
	switch src := img.(type) {
	case *image.YCbCr:
		for y := 0; y < dst.Height; y++ {
			row := dst.Row(y)
			for x := 0; x < dst.Width; x++ {
				yi := src.YOffset(bounds.Min.X+x, bounds.Min.Y+y)
				ci := src.COffset(bounds.Min.X+x, bounds.Min.Y+y)
				r, g, b := color.YCbCrToRGB(src.Y[yi], src.Cb[ci], src.Cr[ci])
				row[x*3], row[x*3+1], row[x*3+2] = r, g, b
			}
		}
	case *image.Gray:
		for y := 0; y < dst.Height; y++ {
			row := dst.Row(y)
			for x := 0; x < dst.Width; x++ {
				v := src.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y
				row[x*3], row[x*3+1], row[x*3+2] = v, v, v
			}
		}
	default:
		return Reorder(FromImage(img), RGB, 0)
	}
	return dst
}

// ToNRGBA exposes an 8-bit buffer as an image.
func ToNRGBA(b *Buffer[uint8]) (*image.NRGBA, error) {
	img := image.NewNRGBA(image.Rect(0, 0, b.Width, b.Height))
	var src *Buffer[uint8]
	switch b.Order {
	case RGBA:
		src = b
	case Gray, RGB, BGR, BGRA:
		src = Reorder(b, RGBA, 0xFF)
	default:
		return nil, fmt.Errorf("unsupported channel order %s", b.Order)
	}
	for y := 0; y < b.Height; y++ {
		copy(img.Pix[y*img.Stride:y*img.Stride+b.Width*4], src.Row(y))
	}
	return img, nil
}
