// Package cachedir prepares the cache directory handed to the application
// before it is constructed.
package cachedir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/marmos91/alarmclock/internal/logger"
)

// ErrAlreadyConfigured is returned when SetCacheDir is called a second time.
var ErrAlreadyConfigured = errors.New("cache directory already configured")

// ErrNotDirectory is returned when the configured path exists but is not a directory.
var ErrNotDirectory = errors.New("cache path is not a directory")

// Configurator accepts the cache directory once, before the application starts.
type Configurator interface {
	SetCacheDir(path string) error
}

// Dir is the afero-backed Configurator used by the start command.
type Dir struct {
	fs afero.Fs

	mu   sync.RWMutex
	path string
}

// New returns a Dir operating on fs. A nil fs means the OS filesystem.
func New(fs afero.Fs) *Dir {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Dir{fs: fs}
}

// SetCacheDir creates path if needed and records its absolute form.
func (d *Dir) SetCacheDir(path string) error {
	if path == "" {
		return errors.New("cache path is empty")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.path != "" {
		return fmt.Errorf("%w: %s", ErrAlreadyConfigured, d.path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve cache path %q: %w", path, err)
	}

	if err := d.fs.MkdirAll(abs, 0755); err != nil {
		return fmt.Errorf("failed to create cache directory %s: %w", abs, err)
	}

	info, err := d.fs.Stat(abs)
	if err != nil {
		return fmt.Errorf("failed to stat cache directory %s: %w", abs, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrNotDirectory, abs)
	}

	if err := checkWritable(d.fs, abs); err != nil {
		return err
	}

	d.path = abs
	logger.Debug("Cache directory configured", logger.KeyPath, abs)
	return nil
}

// Path returns the configured absolute path, or "" before SetCacheDir succeeds.
func (d *Dir) Path() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.path
}

// Fs returns the filesystem the cache directory lives on, rooted at Path.
// Returns nil before SetCacheDir succeeds.
func (d *Dir) Fs() afero.Fs {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.path == "" {
		return nil
	}
	return afero.NewBasePathFs(d.fs, d.path)
}

// Usage walks the cache directory and returns the total size of regular files in bytes.
func (d *Dir) Usage() (uint64, error) {
	fs := d.Fs()
	if fs == nil {
		return 0, nil
	}

	var total uint64
	err := afero.Walk(fs, string(filepath.Separator), func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			total += uint64(info.Size())
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to measure cache directory: %w", err)
	}
	return total, nil
}

func checkWritable(fs afero.Fs, dir string) error {
	f, err := afero.TempFile(fs, dir, ".probe-*")
	if err != nil {
		return fmt.Errorf("cache directory %s is not writable: %w", dir, err)
	}
	name := f.Name()
	_ = f.Close()
	_ = fs.Remove(name)
	return nil
}
