package uhdrframe

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/vearutop/uhdrframe/internal/dual"
	"github.com/vearutop/uhdrframe/internal/exifmeta"
	"github.com/vearutop/uhdrframe/internal/gainmap"
	"github.com/vearutop/uhdrframe/internal/layout"
	"github.com/vearutop/uhdrframe/internal/pixbuf"
	"github.com/vearutop/uhdrframe/internal/textdraw"
)

// Framer composes framed photos with a fixed configuration.
type Framer struct {
	cfg Config
	log logrus.FieldLogger
}

// Result describes a framed photo.
type Result struct {
	// Output is the encoded JPEG or gain map container.
	Output []byte
	// HDR reports whether Output is a gain map container.
	HDR  bool
	Meta exifmeta.PhotoMeta
	// Logo is the asset path that was drawn, empty when none loaded.
	Logo string
}

// New creates a Framer from DefaultConfig adjusted by opts.
func New(opts ...func(c *Config)) (*Framer, error) {
	cfg := DefaultConfig()
	for _, apply := range opts {
		apply(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Framer{cfg: cfg, log: cfg.Log}, nil
}

// Frame decodes data, lays it out on the canvas, draws the footer and
// encodes the result.
func (f *Framer) Frame(data []byte) (*Result, error) {
	im, err := dual.DecodeWithOptions(data, dual.DecodeOptions{DisplayBoost: f.cfg.DisplayBoost}, f.log)
	if err != nil {
		return nil, err
	}

	g := f.cfg.Geometry()
	workers := func(o *layout.Options) { o.Workers = f.cfg.Workers }

	canvas := &dual.Image{}
	canvas.SDR, _, err = layout.Compose(g, im.SDR, pixbuf.GrayColor[uint8](255), workers)
	if err != nil {
		return nil, fmt.Errorf("layout sdr: %w", err)
	}
	if im.HasHDR() {
		canvas.HDR, _, err = layout.Compose(g, im.HDR, pixbuf.GrayColor[float32](1), workers)
		if err != nil {
			return nil, fmt.Errorf("layout hdr: %w", err)
		}
	}

	meta, err := exifmeta.ExtractBytes(data)
	if err != nil {
		f.log.WithError(err).WithField("stage", "metadata").Warn("camera metadata unavailable")
	}

	fonts := textdraw.NewCache(f.log)
	defer func() {
		if err := fonts.Close(); err != nil {
			f.log.WithError(err).WithField("stage", "font").Debug("close fonts")
		}
	}()

	logo := f.drawFooter(canvas, meta, fonts)

	if f.cfg.HDRDumpPath != "" && canvas.HasHDR() {
		if err := WriteRGBEFile(f.cfg.HDRDumpPath, canvas.HDR); err != nil {
			f.log.WithError(err).WithField("stage", "hdr_dump").Warn("HDR canvas not written")
		}
	}

	out, err := dual.Encode(canvas, dual.EncodeOptions{
		Quality:        f.cfg.Quality,
		GainMapQuality: f.cfg.GainMapQuality,
		Exif:           f.rawExif(data),
		ICC:            f.iccProfile(data),
		GainMapScale:   f.cfg.GainMapScale,
		GainMapGamma:   f.cfg.GainMapGamma,
		MultiChannel:   f.cfg.MultiChannel,
	}, f.log)
	if err != nil {
		return nil, err
	}

	return &Result{
		Output: out,
		HDR:    canvas.HasHDR(),
		Meta:   meta,
		Logo:   logo,
	}, nil
}

func (f *Framer) rawExif(data []byte) []byte {
	raw, err := exifmeta.RawExif(data)
	if err != nil {
		if !errors.Is(err, exifmeta.ErrNoExif) {
			f.log.WithError(err).WithField("stage", "copy_exif").Debug("EXIF block unreadable")
		}
		return nil
	}
	return raw
}

func (f *Framer) iccProfile(data []byte) []byte {
	profile, err := gainmap.ICCProfile(data)
	if err != nil {
		f.log.WithError(err).WithField("stage", "copy_icc").Debug("ICC profile unreadable")
		return nil
	}
	return profile
}

// FrameFile frames inPath and writes outPath. The output is written to a
// temporary file in the target directory and renamed into place, so a
// failed run leaves no partial file.
func (f *Framer) FrameFile(inPath, outPath string) (*Result, error) {
	data, err := os.ReadFile(filepath.Clean(inPath))
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	res, err := f.Frame(data)
	if err != nil {
		return nil, err
	}
	if err := writeFileAtomic(outPath, res.Output); err != nil {
		return nil, fmt.Errorf("write output: %w", err)
	}
	f.log.WithFields(logrus.Fields{
		"out":   outPath,
		"hdr":   res.HDR,
		"bytes": len(res.Output),
	}).Info("framed photo written")
	return res, nil
}

func writeFileAtomic(path string, data []byte) error {
	path = filepath.Clean(path)
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if tmp != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return err
	}
	tmp = nil
	return nil
}
