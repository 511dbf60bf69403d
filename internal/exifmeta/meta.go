// Package exifmeta reads camera metadata for display and carries raw EXIF
// blocks between JPEG streams.
package exifmeta

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// ErrNoMetadata means the metadata store could not be opened at all.
// Individual missing fields are not errors.
var ErrNoMetadata = errors.New("no metadata")

// PhotoMeta holds display strings; absent fields are empty.
type PhotoMeta struct {
	Make    string
	Model   string
	Lens    string
	ISO     string // "ISO100"
	FNumber string // "f/2.8"
	Shutter string // "1/250s" or "2s"
	Focal   string // "50mm"
	Date    string // "2024-05-01"
}

// Params joins exposure settings as drawn on the frame.
func (m PhotoMeta) Params() string {
	return m.FNumber + " " + m.Shutter + " " + m.Focal + " " + m.ISO
}

// Extract reads EXIF from a JPEG, TIFF or raw EXIF stream.
func Extract(r io.Reader) (PhotoMeta, error) {
	x, err := exif.Decode(r)
	if err != nil && (x == nil || exif.IsCriticalError(err)) {
		return PhotoMeta{}, fmt.Errorf("%w: %w", ErrNoMetadata, err)
	}
	return fromExif(x), nil
}

// ExtractBytes is Extract over an in-memory file.
func ExtractBytes(data []byte) (PhotoMeta, error) {
	return Extract(bytes.NewReader(data))
}

func fromExif(x *exif.Exif) PhotoMeta {
	var m PhotoMeta

	m.Make = stringField(x, exif.Make)
	m.Model = stringField(x, exif.Model)
	m.Lens = stringField(x, exif.LensModel)

	if t, err := x.Get(exif.FNumber); err == nil {
		if v, ok := ratValue(t); ok {
			m.FNumber = "f/" + strconv.FormatFloat(v, 'f', 1, 64)
		}
	}
	if t, err := x.Get(exif.ExposureTime); err == nil {
		if num, den, err := t.Rat2(0); err == nil && num > 0 && den > 0 {
			m.Shutter = formatShutter(num, den)
		}
	}
	if t, err := x.Get(exif.ISOSpeedRatings); err == nil {
		if v, err := t.Int(0); err == nil {
			m.ISO = "ISO" + strconv.Itoa(v)
		}
	}
	if t, err := x.Get(exif.FocalLength); err == nil {
		if v, ok := ratValue(t); ok {
			m.Focal = strconv.FormatFloat(v, 'f', -1, 64) + "mm"
		}
	}
	m.Date = formatDate(stringField(x, exif.DateTimeOriginal))
	return m
}

func stringField(x *exif.Exif, name exif.FieldName) string {
	t, err := x.Get(name)
	if err != nil {
		return ""
	}
	s, err := t.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimRight(strings.TrimSpace(s), "\x00")
}

func ratValue(t *tiff.Tag) (float64, bool) {
	num, den, err := t.Rat2(0)
	if err != nil || den == 0 {
		return 0, false
	}
	return float64(num) / float64(den), true
}

// formatShutter renders whole seconds as "Ns" and fractions as "1/Ns" with N rounded.
func formatShutter(num, den int64) string {
	if num >= den {
		return strconv.FormatInt(num/den, 10) + "s"
	}
	return "1/" + strconv.Itoa(int(0.5+float64(den)/float64(num))) + "s"
}

// formatDate turns "YYYY:MM:DD HH:MM:SS" into "YYYY-MM-DD".
func formatDate(d string) string {
	if len(d) < 10 {
		return ""
	}
	return d[0:4] + "-" + d[5:7] + "-" + d[8:10]
}
