package state

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// ReadFile reads a settings object from path using the codec picked by its
// extension.
func ReadFile(fs afero.Fs, path string) (map[string]any, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("state: read %s: %w", path, err)
	}
	root, err := decodeSettings(CodecFor(path), data)
	if err != nil {
		return nil, fmt.Errorf("state: decode %s: %w", path, err)
	}
	return root, nil
}

// WriteFile encodes settings with the codec picked by the extension of path
// and replaces path atomically.
func WriteFile(fs afero.Fs, path string, settings map[string]any) error {
	if settings == nil {
		settings = map[string]any{}
	}
	data, err := CodecFor(path).Marshal(settings)
	if err != nil {
		return fmt.Errorf("state: encode %s: %w", path, err)
	}
	return writeAtomic(fs, path, data)
}

// writeAtomic writes data to a temp file beside path and renames it over
// path, so readers never observe a partial file.
func writeAtomic(fs afero.Fs, path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("state: mkdir %s: %w", dir, err)
	}
	tmp, err := afero.TempFile(fs, dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("state: temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = fs.Remove(tmpName)
		return fmt.Errorf("state: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("state: close %s: %w", path, err)
	}
	if err := fs.Chmod(tmpName, 0o644); err != nil && !os.IsNotExist(err) {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("state: chmod %s: %w", path, err)
	}
	if err := fs.Rename(tmpName, path); err != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("state: rename %s: %w", path, err)
	}
	return nil
}
