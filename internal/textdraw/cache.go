package textdraw

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

type cacheKey struct {
	path string
	size float64
}

// Cache opens each (path, size) pair once. Fonts that fail to load are
// logged once and replaced by a Font that renders nothing.
type Cache struct {
	log logrus.FieldLogger

	mu    sync.Mutex
	fonts map[cacheKey]*Font
}

// NewCache creates an empty cache logging to log, or the standard logger if nil.
func NewCache(log logrus.FieldLogger) *Cache {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Cache{log: log, fonts: make(map[cacheKey]*Font)}
}

// Get returns the font for path at size, loading it on first use.
func (c *Cache) Get(path string, size float64) *Font {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey{path: path, size: size}
	if f, ok := c.fonts[key]; ok {
		return f
	}
	f, err := Open(path, size)
	if err != nil {
		c.log.WithError(err).WithFields(logrus.Fields{
			"stage": "font",
			"path":  path,
			"size":  size,
		}).Warn("font unavailable, text will not be drawn")
		f = &Font{size: size}
	}
	c.fonts[key] = f
	return f
}

// Close releases every loaded font.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for key, f := range c.fonts {
		errs = append(errs, f.Close())
		delete(c.fonts, key)
	}
	return errors.Join(errs...)
}
