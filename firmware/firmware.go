// Package firmware fetches firmware images by name.
package firmware

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Provider fetches firmware images asynchronously. Request returns an
// error if the fetch could not be started; otherwise done is called
// exactly once, from another goroutine, with the image or the reason it
// is unavailable.
type Provider interface {
	Request(name string, done func(image []byte, err error)) error
}

// ErrNotFound is reported when no search path holds the image.
var ErrNotFound = errors.New("firmware: image not found")

// DefaultPaths mirror the kernel firmware loader search order.
var DefaultPaths = []string{
	"/lib/firmware/updates",
	"/lib/firmware",
}

// Dir loads images from the first directory in Paths containing them.
type Dir struct {
	Paths []string
}

func (d Dir) Request(name string, done func([]byte, error)) error {
	if name == "" || !filepath.IsLocal(name) {
		return fmt.Errorf("firmware: invalid image name %q", name)
	}
	go func() {
		done(d.Load(name))
	}()
	return nil
}

// Load reads the image synchronously.
func (d Dir) Load(name string) ([]byte, error) {
	paths := d.Paths
	if len(paths) == 0 {
		paths = DefaultPaths
	}
	for _, dir := range paths {
		img, err := os.ReadFile(filepath.Join(dir, name))
		if err == nil {
			return img, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("firmware: %w", err)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}
