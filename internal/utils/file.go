package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// OutputSuffix is appended to the source file stem
const OutputSuffix = "_resized"

// ErrNoFileStem is returned for paths with no file name component
var ErrNoFileStem = errors.New("failed to get the file stem")

// FileStem returns the file name of path without its final extension.
// Dot files such as ".profile" are their own stem.
func FileStem(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty path", ErrNoFileStem)
	}
	name := filepath.Base(path)
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return "", fmt.Errorf("%w: %s", ErrNoFileStem, path)
	}

	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if stem == "" {
		return name, nil
	}
	return stem, nil
}

// OutputFilename derives "{stem}_resized.{format}" for src. The format token
// is used verbatim as the extension: "jpeg" stays "jpeg".
func OutputFilename(src, format string) (string, error) {
	stem, err := FileStem(src)
	if err != nil {
		return "", err
	}
	return stem + OutputSuffix + "." + format, nil
}

// OutputPath places the derived filename in outputDir, or beside src when
// outputDir is empty
func OutputPath(src, format, outputDir string) (string, error) {
	name, err := OutputFilename(src, format)
	if err != nil {
		return "", err
	}
	if outputDir == "" {
		outputDir = filepath.Dir(src)
	}
	return filepath.Join(outputDir, name), nil
}

// EnsureDir creates dir and any missing parents. It succeeds when the
// directory already exists, including when another goroutine created it first.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// ResolveOutput is OutputPath followed by creating the destination directory
func ResolveOutput(src, format, outputDir string) (string, error) {
	path, err := OutputPath(src, format, outputDir)
	if err != nil {
		return "", err
	}
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return "", err
	}
	return path, nil
}

// WriteFileAtomic writes data to a temporary file next to path and renames
// it into place, so a reader never sees a partially written file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	name := tmp.Name()

	_, err = tmp.Write(data)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(name, perm)
	}
	if err == nil {
		err = os.Rename(name, path)
	}
	if err != nil {
		os.Remove(name)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
