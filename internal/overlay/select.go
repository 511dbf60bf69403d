package overlay

import (
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultLogo is used for makes without a dedicated asset.
const DefaultLogo = "default.png"

var brands = []struct {
	key, file string
}{
	{"nikon", "nikon.png"},
	{"google", "google.png"},
	{"sony", "sony.png"},
	{"canon", "canon.png"},
	{"fujifilm", "fujifilm.png"},
	{"leica", "leica.png"},
	{"apple", "apple.png"},
}

// SelectLogo returns the logo path in dir for a camera make.
func SelectLogo(cameraMake, dir string) string {
	lower := cases.Lower(language.Und).String(cameraMake)
	for _, b := range brands {
		if strings.Contains(lower, b.key) {
			return filepath.Join(dir, b.file)
		}
	}
	return filepath.Join(dir, DefaultLogo)
}
