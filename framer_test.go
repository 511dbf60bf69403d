package uhdrframe_test

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vearutop/uhdrframe"
	"github.com/vearutop/uhdrframe/internal/dual"
	"github.com/vearutop/uhdrframe/internal/exifmeta"
	"github.com/vearutop/uhdrframe/internal/gainmap"
	"github.com/vearutop/uhdrframe/internal/pixbuf"
	"github.com/vearutop/uhdrframe/internal/testimg"
)

var (
	nikonColor   = color.NRGBA{R: 220, G: 180, B: 0, A: 255}
	defaultColor = color.NRGBA{R: 0, G: 60, B: 200, A: 255}
)

func newFramer(t *testing.T, opts ...func(c *uhdrframe.Config)) (*uhdrframe.Framer, *test.Hook) {
	t.Helper()

	bold, regular := testimg.Fonts(t)
	logos := t.TempDir()
	testimg.Logo(t, logos, "nikon.png", 240, nikonColor)
	testimg.Logo(t, logos, "default.png", 240, defaultColor)

	log, hook := test.NewNullLogger()
	f, err := uhdrframe.New(append([]func(c *uhdrframe.Config){func(c *uhdrframe.Config) {
		c.MainFont = bold
		c.SubFont = regular
		c.LogoDir = logos
		c.Log = log
	}}, opts...)...)
	require.NoError(t, err)
	return f, hook
}

func decodeJPEG(t *testing.T, data []byte) image.Image {
	t.Helper()

	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func assertNear(t *testing.T, want color.NRGBA, got color.Color, tolerance int) {
	t.Helper()

	c := color.NRGBAModel.Convert(got).(color.NRGBA)
	assert.InDelta(t, int(want.R), int(c.R), float64(tolerance), "red")
	assert.InDelta(t, int(want.G), int(c.G), float64(tolerance), "green")
	assert.InDelta(t, int(want.B), int(c.B), float64(tolerance), "blue")
}

// darkPixels counts pixels darker than mid gray in r.
func darkPixels(img image.Image, r image.Rectangle) int {
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
			if c.Y < 128 {
				n++
			}
		}
	}
	return n
}

// Footer regions of the default 2160x2700 canvas.
var (
	logoCenter = image.Pt(2160-80-60, 2700-300+60+60)
	paramsArea = image.Rect(80, 2460, 1000, 2520)
	modelArea  = image.Rect(1000, 2460, 2160-80-120-40, 2520)
)

func TestFramer_Frame_plain(t *testing.T) {
	w, h := 4000, 3000
	if testing.Short() {
		w, h = 400, 300
	}

	f, hook := newFramer(t, func(c *uhdrframe.Config) { c.Workers = 4 })
	res, err := f.Frame(testimg.JPEG(t, w, h, nil))
	require.NoError(t, err)

	assert.False(t, res.HDR)
	assert.False(t, gainmap.Detect(res.Output))
	assert.Equal(t, exifmeta.PhotoMeta{}, res.Meta)
	assert.Equal(t, "default.png", filepath.Base(res.Logo))

	img := decodeJPEG(t, res.Output)
	assert.Equal(t, image.Rect(0, 0, 2160, 2700), img.Bounds())

	assertNear(t, color.NRGBA{R: 255, G: 255, B: 255}, img.At(10, 10), 3)
	assertNear(t, color.NRGBA{R: 255, G: 255, B: 255}, img.At(1080, 2690), 3)
	assertNear(t, defaultColor, img.At(logoCenter.X, logoCenter.Y), 12)
	assert.Zero(t, darkPixels(img, paramsArea), "empty metadata draws no parameters")

	require.NotEmpty(t, hook.AllEntries())
	assert.Equal(t, "metadata", hook.AllEntries()[0].Data["stage"])
	assert.Equal(t, logrus.WarnLevel, hook.AllEntries()[0].Level)
}

func TestFramer_Frame_nikon(t *testing.T) {
	f, _ := newFramer(t)
	res, err := f.Frame(testimg.JPEG(t, 300, 200, &testimg.Nikon))
	require.NoError(t, err)

	assert.False(t, res.HDR)
	assert.Equal(t, "nikon.png", filepath.Base(res.Logo))
	assert.Equal(t, "NIKON Z 6_2", res.Meta.Model)

	img := decodeJPEG(t, res.Output)
	assertNear(t, nikonColor, img.At(logoCenter.X, logoCenter.Y), 12)
	assert.Positive(t, darkPixels(img, paramsArea))
	assert.Positive(t, darkPixels(img, modelArea))

	// EXIF of the input is carried over.
	m, err := exifmeta.ExtractBytes(res.Output)
	require.NoError(t, err)
	assert.Equal(t, res.Meta, m)
}

func TestFramer_Frame_noLogo(t *testing.T) {
	f, hook := newFramer(t, func(c *uhdrframe.Config) { c.LogoDir = t.TempDir() })
	res, err := f.Frame(testimg.JPEG(t, 300, 200, &testimg.Nikon))
	require.NoError(t, err)

	assert.Empty(t, res.Logo)
	img := decodeJPEG(t, res.Output)
	assert.Positive(t, darkPixels(img, paramsArea))
	assert.Zero(t, darkPixels(img, modelArea), "camera name is drawn next to the logo only")

	e := hook.LastEntry()
	require.NotNil(t, e)
	assert.Equal(t, "logo", e.Data["stage"])
}

func TestFramer_Frame_ultraHDR(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "canvas.hdr")
	f, hook := newFramer(t, func(c *uhdrframe.Config) {
		c.HDRDumpPath = dump
		c.Workers = 4
	})

	res, err := f.Frame(testimg.UltraHDR(t, 96, 64, &testimg.Nikon))
	require.NoError(t, err)
	assert.Empty(t, hook.AllEntries())

	assert.True(t, res.HDR)
	assert.True(t, gainmap.Detect(res.Output))

	im, err := dual.Decode(res.Output, nil)
	require.NoError(t, err)
	require.True(t, im.HasHDR())
	assert.Equal(t, 2160, im.SDR.Width)
	assert.Equal(t, 2700, im.SDR.Height)
	assert.Equal(t, 2160, im.HDR.Width)
	assert.Equal(t, 2700, im.HDR.Height)

	// The padding stays at SDR white in both renditions.
	p, _ := im.HDR.Pixel(10, 10)
	assert.InDelta(t, 1.0, p[0], 0.05)

	m, err := exifmeta.ExtractBytes(res.Output)
	require.NoError(t, err)
	assert.Equal(t, "NIKON CORPORATION", m.Make)

	st, err := os.Stat(dump)
	require.NoError(t, err)
	assert.Positive(t, st.Size())
}

func TestFramer_Frame_gainMapOptions(t *testing.T) {
	profile := bytes.Repeat([]byte("Display P3 "), 64)

	src, err := dual.Decode(testimg.UltraHDR(t, 96, 64, nil), nil)
	require.NoError(t, err)
	data, err := dual.Encode(src, dual.EncodeOptions{ICC: profile}, nil)
	require.NoError(t, err)

	f, _ := newFramer(t, func(c *uhdrframe.Config) {
		c.GainMapScale = 8
		c.GainMapGamma = 2
		c.MultiChannel = true
	})
	res, err := f.Frame(data)
	require.NoError(t, err)
	require.True(t, res.HDR)

	icc, err := gainmap.ICCProfile(res.Output)
	require.NoError(t, err)
	assert.Equal(t, profile, icc)

	split, err := gainmap.Split(res.Output)
	require.NoError(t, err)
	assert.InDelta(t, 2, split.Meta.Gamma[0], 1e-3)

	gm, err := jpeg.Decode(bytes.NewReader(split.GainMapJPEG))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 270, 337), gm.Bounds())
	_, gray := gm.(*image.Gray)
	assert.False(t, gray, "multi-channel gain map is stored in color")
}

func TestFramer_Frame_displayBoost(t *testing.T) {
	data := testimg.UltraHDR(t, 96, 64, nil)

	// Right half of the photo, brightened twofold in the HDR rendition.
	const x, y = 1700, 700

	hdrRatio := func(boost float32) float32 {
		f, _ := newFramer(t, func(c *uhdrframe.Config) { c.DisplayBoost = boost })
		res, err := f.Frame(data)
		require.NoError(t, err)

		im, err := dual.Decode(res.Output, nil)
		require.NoError(t, err)
		require.True(t, im.HasHDR())

		s, _ := im.SDR.Pixel(x, y)
		h, _ := im.HDR.Pixel(x, y)
		return h[2] / pixbuf.GammaToLinear(s[2])
	}

	assert.InDelta(t, 2, hdrRatio(0), 0.25)
	assert.InDelta(t, 1, hdrRatio(1), 0.15)

	_, err := uhdrframe.New(func(c *uhdrframe.Config) { c.DisplayBoost = 0.5 })
	assert.Error(t, err)
}

func TestFramer_Frame_corruptGainMap(t *testing.T) {
	f, hook := newFramer(t)

	data := testimg.CorruptGainMap(t, testimg.UltraHDR(t, 64, 64, &testimg.Nikon))
	res, err := f.Frame(data)
	require.NoError(t, err)

	assert.False(t, res.HDR)
	assert.False(t, gainmap.Detect(res.Output))
	assert.Equal(t, image.Rect(0, 0, 2160, 2700), decodeJPEG(t, res.Output).Bounds())

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Data["stage"] == "decode_hdr" && e.Level == logrus.WarnLevel {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestFramer_Frame_undecodable(t *testing.T) {
	f, _ := newFramer(t)
	_, err := f.Frame([]byte("plain text"))
	assert.ErrorIs(t, err, dual.ErrDecode)
}

func TestFramer_Frame_deterministic(t *testing.T) {
	data := testimg.JPEG(t, 120, 90, &testimg.Nikon)

	f1, _ := newFramer(t)
	f4, _ := newFramer(t, func(c *uhdrframe.Config) { c.Workers = 4 })

	r1, err := f1.Frame(data)
	require.NoError(t, err)
	r4, err := f4.Frame(data)
	require.NoError(t, err)
	assert.Equal(t, r1.Output, r4.Output)
}

func TestFramer_FrameFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.jpg")
	out := filepath.Join(dir, "out.jpg")
	require.NoError(t, os.WriteFile(in, testimg.JPEG(t, 60, 40, nil), 0o600))

	f, _ := newFramer(t)
	res, err := f.FrameFile(in, out)
	require.NoError(t, err)

	written, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, res.Output, written)

	// A failed run leaves neither the output nor a temporary file.
	bad := filepath.Join(dir, "bad.jpg")
	require.NoError(t, os.WriteFile(bad, []byte("nope"), 0o600))
	_, err = f.FrameFile(bad, filepath.Join(dir, "bad_out.jpg"))
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"in.jpg", "out.jpg", "bad.jpg"}, names)

	_, err = f.FrameFile(filepath.Join(dir, "missing.jpg"), out)
	assert.Error(t, err)
}

func TestNew_invalidConfig(t *testing.T) {
	_, err := uhdrframe.New(func(c *uhdrframe.Config) { c.Quality = 0 })
	assert.Error(t, err)

	_, err = uhdrframe.New(func(c *uhdrframe.Config) { c.Margin = 2000 })
	assert.Error(t, err)

	_, err = uhdrframe.New(func(c *uhdrframe.Config) { c.LogoSize = -1 })
	assert.Error(t, err)

	_, err = uhdrframe.New(func(c *uhdrframe.Config) { c.GainMapScale = 129 })
	assert.Error(t, err)
}

func TestWriteRGBE(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, uhdrframe.WriteRGBE(&buf, nil))
}
