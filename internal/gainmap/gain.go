package gainmap

import (
	"errors"
	"fmt"
	"math"

	"github.com/ajroetker/go-highway/hwy"
	"github.com/vearutop/uhdrframe/internal/pixbuf"
)

type rgb struct {
	r, g, b float32
}

func (v rgb) max() float32 { return max(v.r, v.g, v.b) }

func (v rgb) clampNeg() rgb {
	return rgb{r: max(v.r, 0), g: max(v.g, 0), b: max(v.b, 0)}
}

func log2f(v float32) float32 { return float32(math.Log2(float64(v))) }
func exp2f(v float32) float32 { return float32(math.Exp2(float64(v))) }

func srgbInvOETF(v float32) float32 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return float32(math.Pow(float64((v+0.055)/1.055), 2.4))
}

// srgbLUT maps 8-bit sRGB codes to linear light.
var srgbLUT = func() (lut [256]float32) {
	for i := range lut {
		lut[i] = srgbInvOETF(float32(i) / 255)
	}
	return lut
}()

func computeGain(sdr, hdr float32) float32 {
	gain := log2f((hdr + hdrOffset) / (sdr + sdrOffset))
	if sdr < 2.0/255.0 {
		gain = min(gain, 2.3)
	}
	return gain
}

func clampGainLog2(v float32) float32 {
	return pixbuf.Clamp(v, -14.3, 15.6)
}

func affineMapGain(gainLog2, minLog2, maxLog2, gamma float32) uint8 {
	denom := maxLog2 - minLog2
	if denom == 0 {
		denom = 1
	}
	mapped := pixbuf.Clamp((gainLog2-minLog2)/denom, 0, 1)
	if gamma != 1 {
		mapped = float32(math.Pow(float64(mapped), float64(gamma)))
	}
	return uint8(pixbuf.Clamp(mapped*255, 0, 255) + 0.5)
}

// boost converts a normalized gain map code to a linear gain factor for channel i.
func boost(code float32, meta *Metadata, i int, weight float32) float32 {
	if meta.Gamma[i] != 1 && meta.Gamma[i] > 0 {
		code = float32(math.Pow(float64(code), float64(1/meta.Gamma[i])))
	}
	logBoost := log2f(meta.MinContentBoost[i])*(1-code) + log2f(meta.MaxContentBoost[i])*code
	return exp2f(logBoost * weight)
}

func applyGain(e rgb, gain rgb, meta *Metadata, weight float32) rgb {
	return rgb{
		r: (e.r+meta.OffsetSDR[0])*boost(gain.r, meta, 0, weight) - meta.OffsetHDR[0],
		g: (e.g+meta.OffsetSDR[1])*boost(gain.g, meta, 1, weight) - meta.OffsetHDR[1],
		b: (e.b+meta.OffsetSDR[2])*boost(gain.b, meta, 2, weight) - meta.OffsetHDR[2],
	}
}

// displayWeight maps a display boost onto the metadata HDR capacity range.
// A boost of zero selects the full HDR rendition.
func displayWeight(meta *Metadata, displayBoost float32) float32 {
	if displayBoost <= 0 {
		return 1
	}
	lo, hi := log2f(meta.HDRCapacityMin), log2f(meta.HDRCapacityMax)
	if hi <= lo {
		return 1
	}
	return pixbuf.Clamp((log2f(displayBoost)-lo)/(hi-lo), 0, 1)
}

// generateOptions control gain map computation.
type generateOptions struct {
	scale        int
	gamma        float32
	multiChannel bool
}

// generate computes a gain map that lifts the sRGB base to the linear HDR rendition.
func generate(sdr *pixbuf.Buffer[uint8], hdr *pixbuf.Buffer[hwy.Float16], opt generateOptions) (*pixbuf.Buffer[uint8], *Metadata, error) {
	if sdr == nil || hdr == nil {
		return nil, nil, errors.New("missing SDR or HDR input")
	}
	if !pixbuf.SameSize(sdr, hdr) {
		return nil, nil, fmt.Errorf("SDR and HDR dimensions must match: %dx%d vs %dx%d", sdr.Width, sdr.Height, hdr.Width, hdr.Height)
	}
	scale := max(opt.scale, 1)
	gamma := opt.gamma
	if gamma <= 0 {
		gamma = DefaultGainMapGamma
	}
	mapW, mapH := sdr.Width/scale, sdr.Height/scale
	if mapW <= 0 || mapH <= 0 {
		return nil, nil, errors.New("gain map scale too large")
	}

	channels := 1
	order := pixbuf.Gray
	if opt.multiChannel {
		channels, order = 3, pixbuf.RGB
	}
	logs := make([]float32, mapW*mapH*channels)
	lo := []float32{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
	hi := []float32{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32}

	for y := 0; y < mapH; y++ {
		for x := 0; x < mapW; x++ {
			s, _ := sdr.Pixel(x*scale, y*scale)
			h, _ := hdr.Pixel(x*scale, y*scale)
			sv := rgb{r: srgbLUT[s[0]], g: srgbLUT[s[1]], b: srgbLUT[s[2]]}
			hv := rgb{
				r: hwy.Float16ToFloat32(h[0]),
				g: hwy.Float16ToFloat32(h[1]),
				b: hwy.Float16ToFloat32(h[2]),
			}.clampNeg()

			idx := (y*mapW + x) * channels
			if channels == 1 {
				logs[idx] = computeGain(sdrWhiteNits*sv.max(), sdrWhiteNits*hv.max())
			} else {
				logs[idx] = computeGain(sdrWhiteNits*sv.r, sdrWhiteNits*hv.r)
				logs[idx+1] = computeGain(sdrWhiteNits*sv.g, sdrWhiteNits*hv.g)
				logs[idx+2] = computeGain(sdrWhiteNits*sv.b, sdrWhiteNits*hv.b)
			}
			for c := 0; c < channels; c++ {
				lo[c] = min(lo[c], logs[idx+c])
				hi[c] = max(hi[c], logs[idx+c])
			}
		}
	}

	for c := 0; c < channels; c++ {
		lo[c], hi[c] = clampGainLog2(lo[c]), clampGainLog2(hi[c])
		if hi[c]-lo[c] < 1e-6 {
			hi[c] = lo[c] + 0.1
		}
	}

	out := pixbuf.New[uint8](mapW, mapH, order)
	for y := 0; y < mapH; y++ {
		row := out.Row(y)
		for x := 0; x < mapW*channels; x++ {
			c := x % channels
			row[x] = affineMapGain(logs[y*mapW*channels+x], lo[c], hi[c], gamma)
		}
	}

	meta := &Metadata{Version: jpegrVersion, UseBaseCG: true, HDRCapacityMin: 1}
	for i := 0; i < 3; i++ {
		c := min(i, channels-1)
		meta.MinContentBoost[i] = exp2f(lo[c])
		meta.MaxContentBoost[i] = exp2f(hi[c])
		meta.Gamma[i] = gamma
		meta.OffsetSDR[i] = sdrOffset
		meta.OffsetHDR[i] = hdrOffset
	}
	meta.HDRCapacityMax = meta.MaxContentBoost[0]
	return out, meta, nil
}

// sampleGain bilinearly samples a gain map at base image coordinates and
// returns normalized codes in [0,1].
func sampleGain(gm *pixbuf.Buffer[uint8], fx, fy float32) rgb {
	fx = pixbuf.Clamp(fx, 0, float32(gm.Width-1))
	fy = pixbuf.Clamp(fy, 0, float32(gm.Height-1))
	x0, y0 := int(fx), int(fy)
	x1, y1 := min(x0+1, gm.Width-1), min(y0+1, gm.Height-1)
	ax, ay := fx-float32(x0), fy-float32(y0)

	at := func(x, y, c int) float32 {
		p, _ := gm.Pixel(x, y)
		return float32(p[min(c, len(p)-1)])
	}
	var v [3]float32
	for c := range v {
		top := at(x0, y0, c)*(1-ax) + at(x1, y0, c)*ax
		bot := at(x0, y1, c)*(1-ax) + at(x1, y1, c)*ax
		v[c] = (top*(1-ay) + bot*ay) / 255
	}
	return rgb{r: v[0], g: v[1], b: v[2]}
}

// reconstruct applies a gain map to an sRGB RGBA base and returns linear RGBA half floats.
func reconstruct(base *pixbuf.Buffer[uint8], gm *pixbuf.Buffer[uint8], meta *Metadata, weight float32) (*pixbuf.Buffer[hwy.Float16], error) {
	if base.Order != pixbuf.RGBA {
		return nil, fmt.Errorf("unexpected base order %s", base.Order)
	}
	if gm.Order != pixbuf.Gray && gm.Order != pixbuf.RGB {
		return nil, fmt.Errorf("unexpected gain map order %s", gm.Order)
	}
	out := pixbuf.New[hwy.Float16](base.Width, base.Height, pixbuf.RGBA)
	sx := float32(gm.Width) / float32(base.Width)
	sy := float32(gm.Height) / float32(base.Height)
	one := hwy.Float32ToFloat16(1)

	for y := 0; y < base.Height; y++ {
		src, dst := base.Row(y), out.Row(y)
		gy := (float32(y)+0.5)*sy - 0.5
		for x := 0; x < base.Width; x++ {
			p := src[x*4 : x*4+4]
			e := rgb{r: srgbLUT[p[0]], g: srgbLUT[p[1]], b: srgbLUT[p[2]]}
			g := sampleGain(gm, (float32(x)+0.5)*sx-0.5, gy)
			h := applyGain(e, g, meta, weight)
			d := dst[x*4 : x*4+4]
			d[0] = hwy.Float32ToFloat16(h.r)
			d[1] = hwy.Float32ToFloat16(h.g)
			d[2] = hwy.Float32ToFloat16(h.b)
			d[3] = one
		}
	}
	return out, nil
}
