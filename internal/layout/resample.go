package layout

import (
	"math"
	"sync"

	"github.com/vearutop/uhdrframe/internal/pixbuf"
)

type resampleWeights struct {
	coeffs       []float32
	start        []int
	filterLength int
}

type weightsKey struct {
	src, dst int
}

var weightsCache sync.Map

const lanczosTaps = 6

// getWeights returns normalized Lanczos-3 coefficients mapping src samples to dst.
// When downscaling the kernel is stretched by the scale factor.
func getWeights(src, dst int) resampleWeights {
	key := weightsKey{src: src, dst: dst}
	if cached, ok := weightsCache.Load(key); ok {
		return cached.(resampleWeights)
	}
	scale := float64(src) / float64(dst)
	filterLength := lanczosTaps * int(math.Max(math.Ceil(scale), 1))
	filterFactor := math.Min(1/scale, 1)
	coeffs := make([]float32, dst*filterLength)
	start := make([]int, dst)
	for y := 0; y < dst; y++ {
		center := scale*(float64(y)+0.5) - 0.5
		start[y] = int(math.Floor(center)) - filterLength/2 + 1
		center -= float64(start[y])
		base := y * filterLength
		var sum float64
		for i := 0; i < filterLength; i++ {
			w := lanczos3((center - float64(i)) * filterFactor)
			coeffs[base+i] = float32(w)
			sum += w
		}
		if sum != 0 {
			inv := float32(1 / sum)
			for i := 0; i < filterLength; i++ {
				coeffs[base+i] *= inv
			}
		}
	}
	weights := resampleWeights{coeffs: coeffs, start: start, filterLength: filterLength}
	weightsCache.Store(key, weights)
	return weights
}

func sinc(x float64) float64 {
	x = math.Abs(x) * math.Pi
	if x >= 1.220703e-4 {
		return math.Sin(x) / x
	}
	return 1
}

func lanczos3(in float64) float64 {
	if in > -3 && in < 3 {
		return sinc(in) * sinc(in/3)
	}
	return 0
}

// store converts an accumulated sample back to the buffer type. Bytes are
// rounded and clamped to 0..255, floats only clamped at zero to drop ringing
// below black.
func store[T pixbuf.Sample](v float32) T {
	var zero T
	if _, ok := any(zero).(uint8); ok {
		if v <= 0 {
			return 0
		}
		if v >= 255 {
			return 255
		}
		return T(uint8(v + 0.5))
	}
	return T(max(v, 0))
}

// Resize scales src to w x h with a separable Lanczos-3 filter.
// Rows of each pass are split across at most workers goroutines; the result
// does not depend on the worker count.
func Resize[T pixbuf.Sample](src *pixbuf.Buffer[T], w, h, workers int) *pixbuf.Buffer[T] {
	dst := pixbuf.New[T](w, h, src.Order)
	if src.Empty() || w <= 0 || h <= 0 {
		return dst
	}
	ch := src.Channels()
	srcW, srcH := src.Width, src.Height
	wx := getWeights(srcW, w)
	wy := getWeights(srcH, h)

	temp := make([]float32, w*srcH*ch)
	parallelFor(srcH, workers, func(start, end int) {
		acc := make([]float32, ch)
		for y := start; y < end; y++ {
			row := src.Row(y)
			out := temp[y*w*ch:]
			for x := 0; x < w; x++ {
				clear(acc)
				s, base := wx.start[x], x*wx.filterLength
				for i := 0; i < wx.filterLength; i++ {
					xi := pixbuf.Clamp(s+i, 0, srcW-1) * ch
					k := wx.coeffs[base+i]
					for c := 0; c < ch; c++ {
						acc[c] += float32(row[xi+c]) * k
					}
				}
				copy(out[x*ch:], acc)
			}
		}
	})

	parallelFor(h, workers, func(start, end int) {
		acc := make([]float32, ch)
		for y := start; y < end; y++ {
			s, base := wy.start[y], y*wy.filterLength
			row := dst.Row(y)
			for x := 0; x < w; x++ {
				clear(acc)
				for i := 0; i < wy.filterLength; i++ {
					off := (pixbuf.Clamp(s+i, 0, srcH-1)*w + x) * ch
					k := wy.coeffs[base+i]
					for c := 0; c < ch; c++ {
						acc[c] += temp[off+c] * k
					}
				}
				for c := 0; c < ch; c++ {
					row[x*ch+c] = store[T](acc[c])
				}
			}
		}
	})
	return dst
}

// parallelFor splits [0, total) into contiguous chunks handled by up to
// workers goroutines. Chunks never overlap, so callers may write per-row
// output without locking.
func parallelFor(total, workers int, fn func(start, end int)) {
	if total <= 0 {
		return
	}
	workers = min(max(workers, 1), total)
	if workers == 1 {
		fn(0, total)
		return
	}
	step := (total + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < total; start += step {
		end := min(start+step, total)
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(start, end)
		}()
	}
	wg.Wait()
}
