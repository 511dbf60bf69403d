package dual_test

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vearutop/uhdrframe/internal/dual"
	"github.com/vearutop/uhdrframe/internal/exifmeta"
	"github.com/vearutop/uhdrframe/internal/gainmap"
	"github.com/vearutop/uhdrframe/internal/pixbuf"
	"github.com/vearutop/uhdrframe/internal/testimg"
)

func TestDecode_plain(t *testing.T) {
	log, hook := test.NewNullLogger()

	im, err := dual.Decode(testimg.JPEG(t, 40, 30, nil), log)
	require.NoError(t, err)
	require.NoError(t, im.Validate())

	assert.False(t, im.HasHDR())
	assert.Equal(t, 40, im.SDR.Width)
	assert.Equal(t, 30, im.SDR.Height)
	assert.Equal(t, pixbuf.RGB, im.SDR.Order)
	assert.Empty(t, hook.Entries)
}

func TestDecode_png(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testimg.Gradient(9, 7)))

	im, err := dual.Decode(buf.Bytes(), nil)
	require.NoError(t, err)
	assert.False(t, im.HasHDR())

	p, ok := im.SDR.Pixel(8, 6)
	require.True(t, ok)
	assert.Equal(t, []uint8{255, 255, 96}, p)
}

func TestDecode_ultraHDR(t *testing.T) {
	log, hook := test.NewNullLogger()

	im, err := dual.Decode(testimg.UltraHDR(t, 64, 48, nil), log)
	require.NoError(t, err)
	require.NoError(t, im.Validate())
	require.True(t, im.HasHDR())

	assert.Equal(t, im.SDR.Width, im.HDR.Width)
	assert.Equal(t, im.SDR.Height, im.HDR.Height)
	assert.Equal(t, pixbuf.RGB, im.HDR.Order)
	assert.Empty(t, hook.Entries)

	// The right half was encoded at twice the base brightness.
	l, _ := im.HDR.Pixel(8, 24)
	r, _ := im.HDR.Pixel(56, 24)
	sl, _ := im.SDR.Pixel(8, 24)
	sr, _ := im.SDR.Pixel(56, 24)
	assert.InDelta(t, pixbuf.GammaToLinear(sl[2]), l[2], 0.05)
	assert.InDelta(t, 2*pixbuf.GammaToLinear(sr[2]), r[2], 0.1)
}

func TestDecode_corruptGainMap(t *testing.T) {
	log, hook := test.NewNullLogger()

	data := testimg.CorruptGainMap(t, testimg.UltraHDR(t, 32, 32, nil))
	require.True(t, gainmap.Detect(data))

	im, err := dual.Decode(data, log)
	require.NoError(t, err)
	assert.False(t, im.HasHDR())
	assert.Equal(t, 32, im.SDR.Width)

	require.Len(t, hook.Entries, 1)
	e := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, e.Level)
	assert.Equal(t, "decode_hdr", e.Data["stage"])
	assert.Equal(t, gainmap.CodeDecode.String(), e.Data["code"])
}

func TestDecode_unsplittable(t *testing.T) {
	log, hook := test.NewNullLogger()

	data := testimg.CorruptMetadata(t, testimg.UltraHDR(t, 40, 24, nil))
	require.True(t, gainmap.Detect(data))
	_, err := gainmap.Split(data)
	require.Error(t, err)

	im, err := dual.Decode(data, log)
	require.NoError(t, err)
	require.NotNil(t, im.SDR)
	assert.Nil(t, im.HDR)
	assert.Equal(t, 40, im.SDR.Width)
	assert.Equal(t, 24, im.SDR.Height)

	require.NotEmpty(t, hook.Entries)
	e := hook.Entries[0]
	assert.Equal(t, logrus.WarnLevel, e.Level)
	assert.Equal(t, "decode_sdr", e.Data["stage"])
	assert.Equal(t, gainmap.CodeDecode.String(), e.Data["code"])

	// The plain decoder reads the base image, which is intact.
	p, _ := im.SDR.Pixel(39, 0)
	assert.InDelta(t, 255, int(p[0]), 8)

	// Without a readable base image nothing is left to fall back to.
	hook.Reset()
	_, err = dual.Decode(testimg.CorruptBase(t, data), log)
	assert.ErrorIs(t, err, dual.ErrDecode)
	require.NotEmpty(t, hook.Entries)
	assert.Equal(t, "decode_sdr", hook.Entries[0].Data["stage"])
}

func TestDecodeWithOptions_displayBoost(t *testing.T) {
	data := testimg.UltraHDR(t, 64, 48, nil)

	full, err := dual.DecodeWithOptions(data, dual.DecodeOptions{}, nil)
	require.NoError(t, err)
	capped, err := dual.DecodeWithOptions(data, dual.DecodeOptions{DisplayBoost: 1}, nil)
	require.NoError(t, err)
	require.True(t, capped.HasHDR())

	s, _ := capped.SDR.Pixel(56, 24)
	f, _ := full.HDR.Pixel(56, 24)
	c, _ := capped.HDR.Pixel(56, 24)
	base := pixbuf.GammaToLinear(s[2])
	assert.InDelta(t, 2*base, f[2], 0.1)
	assert.InDelta(t, base, c[2], 0.05)

	log, hook := test.NewNullLogger()
	im, err := dual.DecodeWithOptions(data, dual.DecodeOptions{DisplayBoost: 0.5}, log)
	require.NoError(t, err)
	assert.False(t, im.HasHDR())
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, gainmap.CodeInvalidParam.String(), hook.LastEntry().Data["code"])
}

func TestDecode_garbage(t *testing.T) {
	_, err := dual.Decode([]byte("not an image at all"), nil)
	assert.ErrorIs(t, err, dual.ErrDecode)
}

func TestImage_Validate(t *testing.T) {
	im := &dual.Image{
		SDR: pixbuf.New[uint8](4, 4, pixbuf.RGB),
		HDR: pixbuf.New[float32](4, 3, pixbuf.RGB),
	}
	assert.Error(t, im.Validate())

	im.HDR = pixbuf.New[float32](4, 4, pixbuf.RGBA)
	assert.Error(t, im.Validate())

	im.HDR = pixbuf.New[float32](4, 4, pixbuf.RGB)
	assert.NoError(t, im.Validate())

	assert.Error(t, (&dual.Image{}).Validate())
}

func TestEncode_gainMap(t *testing.T) {
	log, _ := test.NewNullLogger()

	src := testimg.UltraHDR(t, 48, 32, &testimg.Nikon)
	im, err := dual.Decode(src, log)
	require.NoError(t, err)
	require.True(t, im.HasHDR())

	raw, err := exifmeta.RawExif(src)
	require.NoError(t, err)

	opt := dual.DefaultEncodeOptions()
	opt.Exif = raw
	out, err := dual.Encode(im, opt, log)
	require.NoError(t, err)
	assert.True(t, gainmap.Detect(out))

	back, err := dual.Decode(out, log)
	require.NoError(t, err)
	require.True(t, back.HasHDR())
	assert.Equal(t, 48, back.HDR.Width)
	assert.Equal(t, 32, back.HDR.Height)

	m, err := exifmeta.ExtractBytes(out)
	require.NoError(t, err)
	assert.Equal(t, "NIKON Z 6_2", m.Model)
}

func TestEncode_gainMapOptions(t *testing.T) {
	im, err := dual.Decode(testimg.UltraHDR(t, 48, 32, nil), nil)
	require.NoError(t, err)

	profile := []byte("sRGB IEC61966-2.1 test profile")
	out, err := dual.Encode(im, dual.EncodeOptions{
		ICC:          profile,
		GainMapScale: 2,
		GainMapGamma: 2.2,
		MultiChannel: true,
	}, nil)
	require.NoError(t, err)

	icc, err := gainmap.ICCProfile(out)
	require.NoError(t, err)
	assert.Equal(t, profile, icc)

	d := gainmap.NewDecoder()
	defer d.Release()
	require.NoError(t, d.SetImage(out))
	info, err := d.Probe()
	require.NoError(t, err)
	assert.Equal(t, 24, info.GainMapWidth)
	assert.Equal(t, 16, info.GainMapHeight)
	assert.InDelta(t, 2.2, info.Meta.Gamma[0], 1e-3)

	split, err := gainmap.Split(out)
	require.NoError(t, err)
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(split.GainMapJPEG))
	require.NoError(t, err)
	assert.NotEqual(t, color.GrayModel, cfg.ColorModel)

	_, err = dual.Encode(im, dual.EncodeOptions{GainMapScale: 500}, nil)
	assert.Equal(t, gainmap.CodeInvalidParam, gainmap.ErrorCode(err))
}

func TestEncode_plain(t *testing.T) {
	log, hook := test.NewNullLogger()

	src := testimg.JPEG(t, 30, 20, &testimg.Nikon)
	im, err := dual.Decode(src, log)
	require.NoError(t, err)

	raw, err := exifmeta.RawExif(src)
	require.NoError(t, err)

	out, err := dual.Encode(im, dual.EncodeOptions{Quality: 90, Exif: raw}, log)
	require.NoError(t, err)
	assert.False(t, gainmap.Detect(out))
	assert.Empty(t, hook.Entries)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Width)

	m, err := exifmeta.ExtractBytes(out)
	require.NoError(t, err)
	assert.Equal(t, "f/2.8 1/250s 50mm ISO100", m.Params())
}

func TestEncode_invalid(t *testing.T) {
	_, err := dual.Encode(&dual.Image{}, dual.DefaultEncodeOptions(), nil)
	assert.Error(t, err)

	im := &dual.Image{
		SDR: pixbuf.New[uint8](4, 4, pixbuf.RGB),
		HDR: pixbuf.New[float32](4, 4, pixbuf.RGB),
	}
	_, err = dual.Encode(im, dual.EncodeOptions{Quality: 101}, nil)
	assert.Equal(t, gainmap.CodeInvalidParam, gainmap.ErrorCode(err))
}
