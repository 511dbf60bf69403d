package pixbuf

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Sample is a sample type that supports compositing.
type Sample interface {
	uint8 | float32
}

// Color is an RGB triple. Color[uint8] holds gamma-encoded 0-255
// intensities, Color[float32] holds linear intensities where 1.0 is SDR white.
type Color[T Sample] [3]T

// RGBColor builds a color from its channels.
func RGBColor[T Sample](r, g, b T) Color[T] {
	return Color[T]{r, g, b}
}

// GrayColor builds a color with equal channels.
func GrayColor[T Sample](v T) Color[T] {
	return Color[T]{v, v, v}
}

// In returns the channel values ordered for o. Alpha, if present, is left zero.
func (c Color[T]) In(o ChannelOrder) []T {
	switch o {
	case Gray:
		return []T{c[0]}
	case BGR:
		return []T{c[2], c[1], c[0]}
	case BGRA:
		return []T{c[2], c[1], c[0], 0}
	case RGBA:
		return []T{c[0], c[1], c[2], 0}
	default:
		return []T{c[0], c[1], c[2]}
	}
}

// DisplayGamma is the power used to move 8-bit overlay values into linear light.
const DisplayGamma = 2.2

// GammaToLinear maps an 8-bit gamma-encoded value to linear light as (v/255)^2.2.
func GammaToLinear(v uint8) float32 {
	switch v {
	case 0:
		return 0
	case 255:
		return 1
	}
	return float32(math.Pow(float64(v)/255, DisplayGamma))
}

// LinearFromGamma converts an 8-bit color with GammaToLinear.
func LinearFromGamma(c Color[uint8]) Color[float32] {
	return Color[float32]{GammaToLinear(c[0]), GammaToLinear(c[1]), GammaToLinear(c[2])}
}

// Blend mixes c over dst with coverage a in [0, 1] as dst*(1-a) + c*a.
// Integer samples are truncated toward zero, float samples are left unclamped.
func Blend[T Sample](dst, c T, a float64) T {
	if a <= 0 {
		return dst
	}
	if a >= 1 {
		return c
	}
	return T(float64(dst)*(1-a) + float64(c)*a)
}

// BlendSaturate is Blend with round-to-nearest and clamping for integer samples.
func BlendSaturate[T Sample](dst, c T, a float64) T {
	if a <= 0 {
		return dst
	}
	return Saturate[T](float64(dst)*(1-a) + float64(c)*a)
}

// Saturate converts v to T, rounding and clamping for integer samples.
func Saturate[T Sample](v float64) T {
	var zero T
	if _, ok := any(zero).(uint8); ok {
		return T(Clamp(math.RoundToEven(v), 0, 255))
	}
	return T(v)
}

// Clamp limits v to [lo, hi].
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
