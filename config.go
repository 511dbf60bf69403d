package uhdrframe

import (
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/vearutop/uhdrframe/internal/gainmap"
	"github.com/vearutop/uhdrframe/internal/layout"
	"github.com/vearutop/uhdrframe/internal/overlay"
)

// Default font locations.
const (
	DefaultMainFont = "/usr/share/fonts/truetype/noto/NotoSans-Bold.ttf"
	DefaultSubFont  = "/usr/share/fonts/truetype/noto/NotoSans-Regular.ttf"
	DefaultLogoDir  = "logo"
)

// Config controls canvas geometry, footer typography and output encoding.
type Config struct {
	// Width of the canvas, the height is 1.25 times the width.
	Width  int
	Margin int
	Footer int

	LogoSize int
	LogoDir  string

	MainFont     string
	MainFontSize float64
	SubFont      string
	SubFontSize  float64

	// Quality of the base JPEG stream.
	Quality int
	// GainMapQuality of the gain map stream, Quality when zero.
	GainMapQuality int
	// GainMapScale is the downscale factor of the gain map.
	GainMapScale int
	// GainMapGamma is the encoding gamma of gain map codes.
	GainMapGamma float32
	// MultiChannel writes an RGB gain map.
	MultiChannel bool

	// DisplayBoost caps the headroom of the decoded HDR rendition,
	// full capacity when zero.
	DisplayBoost float32

	// Workers bounds resampling goroutines, results do not depend on it.
	Workers int

	// HDRDumpPath receives the linear HDR canvas as Radiance RGBE when set.
	HDRDumpPath string

	Log logrus.FieldLogger
}

// DefaultConfig returns the stock 2160x2700 layout at quality 95.
func DefaultConfig() Config {
	return Config{
		Width:        layout.DefaultWidth,
		Margin:       layout.DefaultMargin,
		Footer:       layout.DefaultFooter,
		LogoSize:     overlay.DefaultSize,
		LogoDir:      DefaultLogoDir,
		MainFont:     DefaultMainFont,
		MainFontSize: 52,
		SubFont:      DefaultSubFont,
		SubFontSize:  40,
		Quality:      gainmap.DefaultQuality,
		GainMapScale: gainmap.DefaultGainMapScale,
		GainMapGamma: gainmap.DefaultGainMapGamma,
		Workers:      1,
		Log:          logrus.StandardLogger(),
	}
}

// Geometry returns the canvas layout.
func (c Config) Geometry() layout.Geometry {
	return layout.NewGeometry(c.Width, c.Margin, c.Footer)
}

// Validate checks that the configuration can produce a canvas.
func (c Config) Validate() error {
	if err := c.Geometry().Validate(); err != nil {
		return err
	}
	if c.LogoSize <= 0 {
		return errors.New("logo size must be positive")
	}
	if c.Quality < 1 || c.Quality > 100 {
		return errors.New("quality must be in [1,100]")
	}
	if c.GainMapQuality < 0 || c.GainMapQuality > 100 {
		return errors.New("gain map quality must be in [1,100]")
	}
	if c.GainMapScale < 0 || c.GainMapScale > 128 {
		return errors.New("gain map scale must be in [1,128]")
	}
	if c.GainMapGamma < 0 {
		return errors.New("gain map gamma must be positive")
	}
	if c.DisplayBoost != 0 && c.DisplayBoost < 1 {
		return errors.New("display boost must be at least 1")
	}
	if c.MainFontSize <= 0 || c.SubFontSize <= 0 {
		return errors.New("font sizes must be positive")
	}
	return nil
}
