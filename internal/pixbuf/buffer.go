// Package pixbuf provides interleaved pixel buffers shared by the decode, layout,
// compositing and encode stages.
package pixbuf

import (
	"fmt"

	"github.com/ajroetker/go-highway/hwy"
)

// SampleType identifies per-channel storage precision.
type SampleType int

const (
	U8 SampleType = iota
	F16
	F32
)

func (t SampleType) String() string {
	switch t {
	case U8:
		return "u8"
	case F16:
		return "f16"
	case F32:
		return "f32"
	default:
		return fmt.Sprintf("SampleType(%d)", int(t))
	}
}

// ChannelOrder identifies the interleaving of channels within a pixel.
type ChannelOrder int

const (
	Gray ChannelOrder = iota
	RGB
	BGR
	RGBA
	BGRA
)

// Channels returns the number of interleaved samples per pixel.
func (o ChannelOrder) Channels() int {
	switch o {
	case Gray:
		return 1
	case RGB, BGR:
		return 3
	default:
		return 4
	}
}

// HasAlpha reports whether the order carries an alpha channel.
func (o ChannelOrder) HasAlpha() bool {
	return o == RGBA || o == BGRA
}

func (o ChannelOrder) String() string {
	switch o {
	case Gray:
		return "gray"
	case RGB:
		return "rgb"
	case BGR:
		return "bgr"
	case RGBA:
		return "rgba"
	case BGRA:
		return "bgra"
	default:
		return fmt.Sprintf("ChannelOrder(%d)", int(o))
	}
}

// Storage lists sample types a Buffer can hold.
type Storage interface {
	uint8 | float32 | hwy.Float16
}

// Buffer is a 2D interleaved pixel buffer.
//
// Stride is measured in samples and equals Width*Channels unless a buffer
// was created with WithStride.
type Buffer[T Storage] struct {
	Width  int
	Height int
	Stride int
	Order  ChannelOrder
	Pix    []T
}

// New allocates a zeroed buffer.
func New[T Storage](width, height int, order ChannelOrder) *Buffer[T] {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	stride := width * order.Channels()
	return &Buffer[T]{
		Width:  width,
		Height: height,
		Stride: stride,
		Order:  order,
		Pix:    make([]T, stride*height),
	}
}

// WithStride allocates a zeroed buffer with row padding.
func WithStride[T Storage](width, height, stride int, order ChannelOrder) (*Buffer[T], error) {
	if stride < width*order.Channels() {
		return nil, fmt.Errorf("stride %d is smaller than row size %d", stride, width*order.Channels())
	}
	return &Buffer[T]{
		Width:  width,
		Height: height,
		Stride: stride,
		Order:  order,
		Pix:    make([]T, stride*height),
	}, nil
}

// Channels returns the samples per pixel.
func (b *Buffer[T]) Channels() int {
	return b.Order.Channels()
}

// SampleType reports the storage precision of T.
func (b *Buffer[T]) SampleType() SampleType {
	var zero T
	switch any(zero).(type) {
	case float32:
		return F32
	case hwy.Float16:
		return F16
	default:
		return U8
	}
}

// Empty reports whether the buffer has no pixels.
func (b *Buffer[T]) Empty() bool {
	return b == nil || b.Width == 0 || b.Height == 0
}

// In reports whether (x, y) lies inside the buffer.
func (b *Buffer[T]) In(x, y int) bool {
	return x >= 0 && y >= 0 && x < b.Width && y < b.Height
}

// Offset returns the index of the first sample of (x, y) in Pix.
func (b *Buffer[T]) Offset(x, y int) int {
	return y*b.Stride + x*b.Channels()
}

// Pixel returns the samples of (x, y), or false when out of bounds.
// The returned slice aliases Pix.
func (b *Buffer[T]) Pixel(x, y int) ([]T, bool) {
	if !b.In(x, y) {
		return nil, false
	}
	off := b.Offset(x, y)
	return b.Pix[off : off+b.Channels()], true
}

// Row returns the samples of row y without padding.
func (b *Buffer[T]) Row(y int) []T {
	off := y * b.Stride
	return b.Pix[off : off+b.Width*b.Channels()]
}

// Fill sets every pixel to the given channel values.
// Missing trailing values are left untouched.
func (b *Buffer[T]) Fill(values ...T) {
	ch := b.Channels()
	if len(values) > ch {
		values = values[:ch]
	}
	for y := 0; y < b.Height; y++ {
		row := b.Row(y)
		for x := 0; x < b.Width; x++ {
			copy(row[x*ch:], values)
		}
	}
}

// Paste copies src into b with its top-left corner at (x0, y0).
// Both buffers must share a channel order. Pixels falling outside b are skipped.
func (b *Buffer[T]) Paste(src *Buffer[T], x0, y0 int) error {
	if src.Order != b.Order {
		return fmt.Errorf("paste %s into %s: channel order mismatch", src.Order, b.Order)
	}
	ch := b.Channels()
	for y := 0; y < src.Height; y++ {
		dy := y0 + y
		if dy < 0 || dy >= b.Height {
			continue
		}
		xs, xe := 0, src.Width
		if x0 < 0 {
			xs = -x0
		}
		if x0+xe > b.Width {
			xe = b.Width - x0
		}
		if xs >= xe {
			continue
		}
		srow := src.Row(y)
		drow := b.Row(dy)
		copy(drow[(x0+xs)*ch:(x0+xe)*ch], srow[xs*ch:xe*ch])
	}
	return nil
}

// SameSize reports whether two buffers have equal dimensions.
func SameSize[A, B Storage](a *Buffer[A], b *Buffer[B]) bool {
	return a.Width == b.Width && a.Height == b.Height
}
